package orders

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/BearBump/xtreeshop/internal/broker/messages"
	"github.com/BearBump/xtreeshop/internal/cache"
	"github.com/BearBump/xtreeshop/internal/models"
	"github.com/BearBump/xtreeshop/internal/storage/pgstore"
	"github.com/pkg/errors"
)

type Repository interface {
	ListOrders(ctx context.Context, f models.OrderFilter) ([]*models.Order, error)
	GetOrder(ctx context.Context, id uint64) (*models.Order, error)
	ListOrderLines(ctx context.Context, orderID uint64) ([]*models.OrderLine, error)
	ListOrderTracking(ctx context.Context, orderID uint64) ([]*models.TrackingEntry, error)
	GetCurrentStatus(ctx context.Context, orderID uint64) (*models.CurrentStatus, error)
	GetUserByID(ctx context.Context, id uint64) (*models.User, error)

	ApplyStatusUpdate(ctx context.Context, upd pgstore.StatusUpdate) (bool, error)
	AppendOrderStatus(ctx context.Context, orderID uint64, code models.StatusCode, at time.Time) error
	RefreshOrder(ctx context.Context, orderID uint64) error
}

type Service struct {
	repo       Repository
	cache      cache.BytesCache
	currentTTL time.Duration

	now func() time.Time
}

func New(repo Repository, c cache.BytesCache, currentTTL time.Duration) *Service {
	return &Service{repo: repo, cache: c, currentTTL: currentTTL, now: time.Now}
}

// List returns the viewer's orders, or every order for admins.
func (s *Service) List(ctx context.Context, viewer *models.User) ([]*models.Order, error) {
	f := models.OrderFilter{}
	if !viewer.Role.IsAdmin() {
		f.UserID = &viewer.ID
	}
	return s.repo.ListOrders(ctx, f)
}

func (s *Service) Get(ctx context.Context, viewer *models.User, id uint64) (*models.OrderDetail, error) {
	o, err := s.repo.GetOrder(ctx, id)
	if err != nil {
		return nil, err
	}
	admin := viewer.Role.IsAdmin()
	if !admin && o.UserID != viewer.ID {
		return nil, models.ErrForbidden
	}

	if cur, err := s.CurrentStatus(ctx, id); err == nil {
		at := cur.At
		o.SetStatus(cur.Status, &at)
	}

	lines, err := s.repo.ListOrderLines(ctx, id)
	if err != nil {
		return nil, err
	}
	tracking, err := s.repo.ListOrderTracking(ctx, id)
	if err != nil {
		return nil, err
	}

	out := &models.OrderDetail{Order: o, Lines: lines, Tracking: tracking}
	if admin {
		customer, err := s.repo.GetUserByID(ctx, o.UserID)
		if err != nil && !errors.Is(err, models.ErrNotFound) {
			return nil, err
		}
		out.Customer = customer
	}
	return out, nil
}

// CurrentStatus reads the latest status through the cache.
func (s *Service) CurrentStatus(ctx context.Context, orderID uint64) (*models.CurrentStatus, error) {
	if s.cacheEnabled() {
		if b, ok, err := s.cache.Get(ctx, currentKey(orderID)); err == nil && ok {
			var cur models.CurrentStatus
			if json.Unmarshal(b, &cur) == nil {
				return &cur, nil
			}
		}
	}

	cur, err := s.repo.GetCurrentStatus(ctx, orderID)
	if err != nil {
		return nil, err
	}
	s.storeCurrent(ctx, cur)
	return cur, nil
}

// ApplyStatusUpdate records a fulfillment check result coming from the worker.
func (s *Service) ApplyStatusUpdate(ctx context.Context, msg messages.OrderStatusUpdated) error {
	if msg.OrderID == 0 {
		return models.NewValidationError("order_id", "order_id is required")
	}
	status := models.StatusCode(msg.Status)
	if msg.Error == nil && !status.Valid() {
		return models.NewValidationError("status", fmt.Sprintf("unknown status %q", msg.Status))
	}
	if msg.CheckedAt.IsZero() {
		msg.CheckedAt = s.now().UTC()
	}
	if msg.NextCheckAt.IsZero() {
		msg.NextCheckAt = msg.CheckedAt.Add(60 * time.Minute)
	}

	upd := pgstore.StatusUpdate{
		OrderID:     msg.OrderID,
		CheckedAt:   msg.CheckedAt,
		StatusAt:    msg.StatusAt,
		NextCheckAt: msg.NextCheckAt,
		Error:       msg.Error,
	}
	if msg.Error == nil {
		upd.Status = status
	}

	changed, err := s.repo.ApplyStatusUpdate(ctx, upd)
	if err != nil {
		return err
	}
	if changed {
		s.refreshCurrent(ctx, msg.OrderID)
	}
	return nil
}

// SetStatus appends a status chosen by an admin and makes the order due for
// the next fulfillment check.
func (s *Service) SetStatus(ctx context.Context, orderID uint64, code models.StatusCode) error {
	if !code.Valid() {
		return models.NewValidationError("status", "invalid status")
	}
	if err := s.repo.AppendOrderStatus(ctx, orderID, code, s.now().UTC()); err != nil {
		return err
	}
	if !code.IsTerminal() {
		if err := s.repo.RefreshOrder(ctx, orderID); err != nil {
			return err
		}
	}
	s.refreshCurrent(ctx, orderID)
	return nil
}

func (s *Service) refreshCurrent(ctx context.Context, orderID uint64) {
	if !s.cacheEnabled() {
		return
	}
	cur, err := s.repo.GetCurrentStatus(ctx, orderID)
	if err != nil {
		_ = s.cache.Delete(ctx, currentKey(orderID))
		return
	}
	s.storeCurrent(ctx, cur)
}

func (s *Service) storeCurrent(ctx context.Context, cur *models.CurrentStatus) {
	if !s.cacheEnabled() {
		return
	}
	b, err := json.Marshal(cur)
	if err != nil {
		return
	}
	_ = s.cache.Set(ctx, currentKey(cur.OrderID), b, s.currentTTL)
}

func (s *Service) cacheEnabled() bool {
	return s.cache != nil && s.currentTTL > 0
}

func currentKey(id uint64) string {
	return fmt.Sprintf("order:%d:current", id)
}
