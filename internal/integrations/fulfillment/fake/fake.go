package fake

import (
	"context"
	"fmt"
	"hash/fnv"
	"time"

	"github.com/BearBump/xtreeshop/internal/integrations/fulfillment"
	"github.com/BearBump/xtreeshop/internal/models"
)

// FakeClient advances every order one step per check:
// PAYMENT_ACCEPTED -> PREPARING -> SHIPPED -> DELIVERED.
type FakeClient struct {
	now func() time.Time
}

func New() *FakeClient { return &FakeClient{now: time.Now} }

func (f *FakeClient) GetProgress(ctx context.Context, order *models.Order) (fulfillment.Progress, error) {
	if err := ctx.Err(); err != nil {
		return fulfillment.Progress{}, err
	}
	now := f.now().UTC()

	status := order.Status
	if status == "" {
		status = models.StatusPaymentPending
	}
	if status == models.StatusPaymentPending {
		// payment not settled yet, nothing to ship
		return fulfillment.Progress{Status: status, Reference: reference(order.ID)}, nil
	}
	next := status.Next()

	return fulfillment.Progress{
		Status:    next,
		StatusAt:  &now,
		Reference: reference(order.ID),
	}, nil
}

func reference(orderID uint64) string {
	h := fnv.New32a()
	_, _ = h.Write([]byte(fmt.Sprintf("order|%d", orderID)))
	return fmt.Sprintf("FK-%08x", h.Sum32())
}
