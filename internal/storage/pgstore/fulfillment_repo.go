package pgstore

import (
	"context"
	"time"

	"github.com/BearBump/xtreeshop/internal/models"
	"github.com/jackc/pgx/v5"
	"github.com/pkg/errors"
)

// StatusUpdate is the outcome of one fulfillment check.
type StatusUpdate struct {
	OrderID uint64

	CheckedAt time.Time

	Status   models.StatusCode
	StatusAt *time.Time

	NextCheckAt time.Time

	Error *string
}

// ClaimDueOrders picks due, paid orders without an open problem whose current
// status is not DELIVERED, and leases them by pushing next_check_at forward so
// other workers skip them. Uses SELECT ... FOR UPDATE SKIP LOCKED.
func (s *Storage) ClaimDueOrders(ctx context.Context, now time.Time, limit int, lease time.Duration) ([]*models.Order, error) {
	tx, err := s.db.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return nil, errors.Wrap(err, "begin tx")
	}
	defer func() { _ = tx.Rollback(ctx) }()

	rows, err := tx.Query(ctx, currentStatusCTE+`
SELECT o.id
FROM orders o
LEFT JOIN current_status cs ON cs.order_id = o.id AND cs.rn = 1
WHERE o.next_check_at <= $1
  AND o.payment_ref IS NOT NULL
  AND NOT o.has_problem
  AND cs.code IS DISTINCT FROM $2
ORDER BY o.next_check_at ASC
LIMIT $3
FOR UPDATE OF o SKIP LOCKED
`, now.UTC(), string(models.StatusDelivered), limit)
	if err != nil {
		return nil, errors.Wrap(err, "select due orders")
	}

	var ids []uint64
	for rows.Next() {
		var id uint64
		if err := rows.Scan(&id); err != nil {
			rows.Close()
			return nil, errors.Wrap(err, "scan due order")
		}
		ids = append(ids, id)
	}
	rows.Close()
	if rows.Err() != nil {
		return nil, errors.Wrap(rows.Err(), "rows")
	}
	if len(ids) == 0 {
		return []*models.Order{}, nil
	}

	leaseUntil := now.UTC().Add(lease)
	if _, err := tx.Exec(ctx, `UPDATE orders SET next_check_at = $2 WHERE id = ANY($1)`, ids, leaseUntil); err != nil {
		return nil, errors.Wrap(err, "lease orders")
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, errors.Wrap(err, "commit tx")
	}

	return s.GetOrdersByIDs(ctx, ids)
}

// ApplyStatusUpdate records a fulfillment check. A successful check appends a
// tracking row only when the status moves forward in the flow; a failed one
// only bumps the failure bookkeeping. It reports whether a row was appended.
func (s *Storage) ApplyStatusUpdate(ctx context.Context, upd StatusUpdate) (bool, error) {
	tx, err := s.db.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return false, errors.Wrap(err, "begin tx")
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if err := lockOrder(ctx, tx, upd.OrderID); err != nil {
		return false, err
	}

	if upd.Error != nil && *upd.Error != "" {
		_, err := tx.Exec(ctx, `
UPDATE orders
SET
  last_checked_at = $2,
  check_fail_count = check_fail_count + 1,
  last_error = $3,
  next_check_at = $4
WHERE id = $1
`, upd.OrderID, upd.CheckedAt.UTC(), *upd.Error, upd.NextCheckAt.UTC())
		if err != nil {
			return false, errors.Wrap(err, "update order (error)")
		}
		if err := tx.Commit(ctx); err != nil {
			return false, errors.Wrap(err, "commit tx")
		}
		return false, nil
	}

	_, err = tx.Exec(ctx, `
UPDATE orders
SET
  last_checked_at = $2,
  check_fail_count = 0,
  last_error = NULL,
  next_check_at = $3
WHERE id = $1
`, upd.OrderID, upd.CheckedAt.UTC(), upd.NextCheckAt.UTC())
	if err != nil {
		return false, errors.Wrap(err, "update order (ok)")
	}

	appended := false
	if upd.Status != "" {
		var current string
		err := tx.QueryRow(ctx, `
SELECT s.code
FROM order_tracking t
JOIN order_statuses s ON s.id = t.status_id
WHERE t.order_id = $1
ORDER BY t.created_at DESC, t.id DESC
LIMIT 1
`, upd.OrderID).Scan(&current)
		if err != nil && !isNoRows(err) {
			return false, errors.Wrap(err, "select current status")
		}

		if upd.Status.Rank() > models.StatusCode(current).Rank() {
			at := upd.CheckedAt
			if upd.StatusAt != nil {
				at = *upd.StatusAt
			}
			if err := insertTracking(ctx, tx, upd.OrderID, upd.Status, at); err != nil {
				return false, err
			}
			appended = true
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return false, errors.Wrap(err, "commit tx")
	}
	return appended, nil
}

// RefreshOrder makes the order due for the next worker cycle.
func (s *Storage) RefreshOrder(ctx context.Context, orderID uint64) error {
	tag, err := s.db.Exec(ctx, `UPDATE orders SET next_check_at = now() WHERE id = $1`, orderID)
	if err != nil {
		return errors.Wrap(err, "refresh order")
	}
	if tag.RowsAffected() == 0 {
		return models.ErrNotFound
	}
	return nil
}
