// Package fulfillment abstracts the warehouse / courier that moves a paid
// order through preparing, shipping and delivery.
package fulfillment

import (
	"context"
	"time"

	"github.com/BearBump/xtreeshop/internal/models"
)

type Progress struct {
	Status    models.StatusCode
	StatusAt  *time.Time
	Reference string
}

type Client interface {
	GetProgress(ctx context.Context, order *models.Order) (Progress, error)
}
