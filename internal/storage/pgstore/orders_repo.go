package pgstore

import (
	"context"
	"sort"
	"time"

	"github.com/BearBump/xtreeshop/internal/models"
	"github.com/jackc/pgx/v5"
	"github.com/pkg/errors"
)

// currentStatusCTE picks the latest tracking row per order.
const currentStatusCTE = `
WITH current_status AS (
  SELECT
    t.order_id, s.code, t.created_at,
    ROW_NUMBER() OVER (PARTITION BY t.order_id ORDER BY t.created_at DESC, t.id DESC) AS rn
  FROM order_tracking t
  JOIN order_statuses s ON s.id = t.status_id
)
`

const orderSelect = currentStatusCTE + `
SELECT
  o.id, o.user_id, o.total, o.shipping_address, o.payment_ref, o.created_at,
  cs.code, cs.created_at,
  o.has_problem, o.problem_description, o.problem_at,
  u.first_name || ' ' || u.last_name, u.email,
  o.last_checked_at, o.next_check_at, o.check_fail_count, o.last_error
FROM orders o
JOIN users u ON u.id = o.user_id
LEFT JOIN current_status cs ON cs.order_id = o.id AND cs.rn = 1
`

func scanOrder(row pgx.Row) (*models.Order, error) {
	var o models.Order
	var code *string
	var statusAt *time.Time
	if err := row.Scan(
		&o.ID, &o.UserID, &o.Total, &o.ShippingAddress, &o.PaymentRef, &o.CreatedAt,
		&code, &statusAt,
		&o.HasProblem, &o.ProblemDescription, &o.ProblemAt,
		&o.CustomerName, &o.CustomerEmail,
		&o.LastCheckedAt, &o.NextCheckAt, &o.CheckFailCount, &o.LastError,
	); err != nil {
		return nil, err
	}
	if code != nil {
		o.SetStatus(models.StatusCode(*code), statusAt)
	}
	return &o, nil
}

func (s *Storage) queryOrders(ctx context.Context, q string, args ...any) ([]*models.Order, error) {
	rows, err := s.db.Query(ctx, q, args...)
	if err != nil {
		return nil, errors.Wrap(err, "select orders")
	}
	defer rows.Close()

	out := make([]*models.Order, 0)
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			return nil, errors.Wrap(err, "scan order")
		}
		out = append(out, o)
	}
	if rows.Err() != nil {
		return nil, errors.Wrap(rows.Err(), "rows")
	}
	return out, nil
}

// ListOrders returns orders newest first, each with its current status.
func (s *Storage) ListOrders(ctx context.Context, f models.OrderFilter) ([]*models.Order, error) {
	return s.queryOrders(ctx, orderSelect+`
WHERE ($1::BIGINT IS NULL OR o.user_id = $1)
  AND (NOT $2 OR o.has_problem)
ORDER BY o.created_at DESC, o.id DESC
LIMIT NULLIF($3::INT, 0)
`, f.UserID, f.ProblemsOnly, f.Limit)
}

func (s *Storage) GetOrder(ctx context.Context, id uint64) (*models.Order, error) {
	o, err := scanOrder(s.db.QueryRow(ctx, orderSelect+` WHERE o.id = $1`, id))
	if err != nil {
		if isNoRows(err) {
			return nil, models.ErrNotFound
		}
		return nil, errors.Wrap(err, "select order")
	}
	return o, nil
}

func (s *Storage) GetOrdersByIDs(ctx context.Context, ids []uint64) ([]*models.Order, error) {
	if len(ids) == 0 {
		return []*models.Order{}, nil
	}
	return s.queryOrders(ctx, orderSelect+` WHERE o.id = ANY($1) ORDER BY o.id`, ids)
}

func (s *Storage) ListOrderLines(ctx context.Context, orderID uint64) ([]*models.OrderLine, error) {
	rows, err := s.db.Query(ctx, `
SELECT
  i.id, i.order_id, i.product_id, i.product_name, COALESCE(p.image_url, ''),
  i.quantity, i.unit_price, i.line_total
FROM order_items i
LEFT JOIN products p ON p.id = i.product_id
WHERE i.order_id = $1
ORDER BY i.id ASC
`, orderID)
	if err != nil {
		return nil, errors.Wrap(err, "select order items")
	}
	defer rows.Close()

	out := make([]*models.OrderLine, 0)
	for rows.Next() {
		var l models.OrderLine
		if err := rows.Scan(
			&l.ID, &l.OrderID, &l.ProductID, &l.ProductName, &l.ImageURL,
			&l.Quantity, &l.UnitPrice, &l.LineTotal,
		); err != nil {
			return nil, errors.Wrap(err, "scan order item")
		}
		out = append(out, &l)
	}
	if rows.Err() != nil {
		return nil, errors.Wrap(rows.Err(), "rows")
	}
	return out, nil
}

// ListOrderTracking returns the status history oldest first.
func (s *Storage) ListOrderTracking(ctx context.Context, orderID uint64) ([]*models.TrackingEntry, error) {
	rows, err := s.db.Query(ctx, `
SELECT t.id, t.order_id, s.code, t.created_at
FROM order_tracking t
JOIN order_statuses s ON s.id = t.status_id
WHERE t.order_id = $1
ORDER BY t.created_at ASC, t.id ASC
`, orderID)
	if err != nil {
		return nil, errors.Wrap(err, "select tracking")
	}
	defer rows.Close()

	out := make([]*models.TrackingEntry, 0)
	for rows.Next() {
		var e models.TrackingEntry
		var code string
		if err := rows.Scan(&e.ID, &e.OrderID, &code, &e.CreatedAt); err != nil {
			return nil, errors.Wrap(err, "scan tracking")
		}
		e.Status = models.StatusCode(code)
		e.Label = e.Status.Label()
		e.Icon = e.Status.Icon()
		out = append(out, &e)
	}
	if rows.Err() != nil {
		return nil, errors.Wrap(rows.Err(), "rows")
	}
	return out, nil
}

func (s *Storage) GetCurrentStatus(ctx context.Context, orderID uint64) (*models.CurrentStatus, error) {
	var code string
	var at time.Time
	err := s.db.QueryRow(ctx, currentStatusCTE+`
SELECT code, created_at FROM current_status WHERE order_id = $1 AND rn = 1
`, orderID).Scan(&code, &at)
	if err != nil {
		if isNoRows(err) {
			return nil, models.ErrNotFound
		}
		return nil, errors.Wrap(err, "select current status")
	}
	st := models.StatusCode(code)
	return &models.CurrentStatus{OrderID: orderID, Status: st, Label: st.Label(), Icon: st.Icon(), At: at}, nil
}

func insertTracking(ctx context.Context, tx pgx.Tx, orderID uint64, code models.StatusCode, at time.Time) error {
	tag, err := tx.Exec(ctx, `
INSERT INTO order_tracking (order_id, status_id, created_at)
SELECT $1, id, $3 FROM order_statuses WHERE code = $2
`, orderID, string(code), at.UTC())
	if err != nil {
		return errors.Wrap(err, "insert tracking")
	}
	if tag.RowsAffected() == 0 {
		return errors.Errorf("unknown order status %q", code)
	}
	return nil
}

// AppendOrderStatus records a status change regardless of the current status.
func (s *Storage) AppendOrderStatus(ctx context.Context, orderID uint64, code models.StatusCode, at time.Time) error {
	tx, err := s.db.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return errors.Wrap(err, "begin tx")
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if err := lockOrder(ctx, tx, orderID); err != nil {
		return err
	}
	if err := insertTracking(ctx, tx, orderID, code, at); err != nil {
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return errors.Wrap(err, "commit tx")
	}
	return nil
}

func lockOrder(ctx context.Context, tx pgx.Tx, orderID uint64) error {
	var id uint64
	err := tx.QueryRow(ctx, `SELECT id FROM orders WHERE id = $1 FOR UPDATE`, orderID).Scan(&id)
	if err != nil {
		if isNoRows(err) {
			return models.ErrNotFound
		}
		return errors.Wrap(err, "lock order")
	}
	return nil
}

func (s *Storage) MarkOrderProblem(ctx context.Context, orderID uint64, description string, at time.Time) error {
	tag, err := s.db.Exec(ctx, `
UPDATE orders SET has_problem = true, problem_description = $2, problem_at = $3 WHERE id = $1
`, orderID, description, at.UTC())
	if err != nil {
		return errors.Wrap(err, "mark order problem")
	}
	if tag.RowsAffected() == 0 {
		return models.ErrNotFound
	}
	return nil
}

// ResolveOrderProblem clears the problem flag. It fails with a validation
// error when the order has no open problem.
func (s *Storage) ResolveOrderProblem(ctx context.Context, orderID uint64) error {
	tag, err := s.db.Exec(ctx, `
UPDATE orders SET has_problem = false, problem_description = NULL, problem_at = NULL
WHERE id = $1 AND has_problem
`, orderID)
	if err != nil {
		return errors.Wrap(err, "resolve order problem")
	}
	if tag.RowsAffected() > 0 {
		return nil
	}
	var exists bool
	if err := s.db.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM orders WHERE id = $1)`, orderID).Scan(&exists); err != nil {
		return errors.Wrap(err, "select order exists")
	}
	if !exists {
		return models.ErrNotFound
	}
	return models.NewValidationError("order_id", "order has no reported problem")
}

func (s *Storage) ListLinkableOrders(ctx context.Context, userID uint64, limit int) ([]*models.LinkableOrder, error) {
	rows, err := s.db.Query(ctx, currentStatusCTE+`
SELECT o.id, o.total, o.created_at, COALESCE(cs.code, '')
FROM orders o
LEFT JOIN current_status cs ON cs.order_id = o.id AND cs.rn = 1
WHERE o.user_id = $1
ORDER BY o.created_at DESC, o.id DESC
LIMIT $2
`, userID, limit)
	if err != nil {
		return nil, errors.Wrap(err, "select linkable orders")
	}
	defer rows.Close()

	out := make([]*models.LinkableOrder, 0)
	for rows.Next() {
		var lo models.LinkableOrder
		var code string
		if err := rows.Scan(&lo.ID, &lo.Total, &lo.CreatedAt, &code); err != nil {
			return nil, errors.Wrap(err, "scan linkable order")
		}
		lo.Status = models.StatusCode(code)
		out = append(out, &lo)
	}
	if rows.Err() != nil {
		return nil, errors.Wrap(rows.Err(), "rows")
	}
	return out, nil
}

func (s *Storage) OrderBelongsTo(ctx context.Context, orderID, userID uint64) (bool, error) {
	var ok bool
	err := s.db.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM orders WHERE id = $1 AND user_id = $2)`, orderID, userID).Scan(&ok)
	if err != nil {
		return false, errors.Wrap(err, "select order owner")
	}
	return ok, nil
}

// PlaceOrderParams drives the checkout transaction.
type PlaceOrderParams struct {
	UserID          uint64
	ShippingAddress string
	Now             time.Time
	FirstCheckAt    time.Time

	// Price turns the locked cart into order lines and a total.
	Price func(items []*models.CartItem) ([]*models.OrderLine, int64, error)
	// Authorize charges the total once the order row exists and returns the
	// payment reference. An error rolls the whole checkout back.
	Authorize func(ctx context.Context, orderID uint64, total int64) (string, error)
}

type PlacedOrder struct {
	Order *models.Order
	Lines []*models.OrderLine
}

// PlaceOrder turns the user's cart into an order in one transaction:
// stock is decremented, the order, its lines and the PAYMENT_PENDING row are
// written, payment is authorized, PAYMENT_ACCEPTED is appended and the cart
// is emptied.
func (s *Storage) PlaceOrder(ctx context.Context, p PlaceOrderParams) (*PlacedOrder, error) {
	tx, err := s.db.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return nil, errors.Wrap(err, "begin tx")
	}
	defer func() { _ = tx.Rollback(ctx) }()

	rows, err := tx.Query(ctx, cartSelect+` WHERE c.user_id = $1 ORDER BY c.id ASC FOR UPDATE OF c`, p.UserID)
	if err != nil {
		return nil, errors.Wrap(err, "select cart")
	}
	items, err := collectCartItems(rows)
	if err != nil {
		return nil, err
	}
	if len(items) == 0 {
		return nil, models.ErrEmptyCart
	}

	lines, total, err := p.Price(items)
	if err != nil {
		return nil, err
	}

	units := make(map[uint64]int64, len(items))
	for _, it := range items {
		units[it.ProductID] += it.Units()
	}
	productIDs := make([]uint64, 0, len(units))
	for id := range units {
		productIDs = append(productIDs, id)
	}
	// fixed lock order across concurrent checkouts
	sort.Slice(productIDs, func(i, j int) bool { return productIDs[i] < productIDs[j] })
	for _, id := range productIDs {
		tag, err := tx.Exec(ctx, `
UPDATE stock SET quantity = quantity - $2, updated_at = $3
WHERE product_id = $1 AND quantity >= $2
`, id, units[id], p.Now.UTC())
		if err != nil {
			return nil, errors.Wrap(err, "decrement stock")
		}
		if tag.RowsAffected() == 0 {
			return nil, models.ErrInsufficientStock
		}
	}

	var orderID uint64
	err = tx.QueryRow(ctx, `
INSERT INTO orders (user_id, total, shipping_address, created_at, next_check_at)
VALUES ($1,$2,$3,$4,$5)
RETURNING id
`, p.UserID, total, p.ShippingAddress, p.Now.UTC(), p.FirstCheckAt.UTC()).Scan(&orderID)
	if err != nil {
		return nil, errors.Wrap(err, "insert order")
	}

	for _, l := range lines {
		l.OrderID = orderID
		err := tx.QueryRow(ctx, `
INSERT INTO order_items (order_id, product_id, product_name, quantity, unit_price, line_total)
VALUES ($1,$2,$3,$4,$5,$6)
RETURNING id
`, orderID, l.ProductID, l.ProductName, l.Quantity, l.UnitPrice, l.LineTotal).Scan(&l.ID)
		if err != nil {
			return nil, errors.Wrap(err, "insert order item")
		}
	}

	if err := insertTracking(ctx, tx, orderID, models.StatusPaymentPending, p.Now); err != nil {
		return nil, err
	}

	ref, err := p.Authorize(ctx, orderID, total)
	if err != nil {
		return nil, err
	}

	if _, err := tx.Exec(ctx, `UPDATE orders SET payment_ref = $2 WHERE id = $1`, orderID, ref); err != nil {
		return nil, errors.Wrap(err, "update payment ref")
	}
	if err := insertTracking(ctx, tx, orderID, models.StatusPaymentAccepted, p.Now); err != nil {
		return nil, err
	}
	if _, err := tx.Exec(ctx, `DELETE FROM cart_items WHERE user_id = $1`, p.UserID); err != nil {
		return nil, errors.Wrap(err, "clear cart")
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, errors.Wrap(err, "commit tx")
	}

	now := p.Now.UTC()
	o := &models.Order{
		ID:              orderID,
		UserID:          p.UserID,
		Total:           total,
		ShippingAddress: p.ShippingAddress,
		PaymentRef:      &ref,
		CreatedAt:       now,
		NextCheckAt:     p.FirstCheckAt.UTC(),
	}
	o.SetStatus(models.StatusPaymentAccepted, &now)
	return &PlacedOrder{Order: o, Lines: lines}, nil
}
