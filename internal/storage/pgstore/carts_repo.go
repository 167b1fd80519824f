package pgstore

import (
	"context"

	"github.com/BearBump/xtreeshop/internal/models"
	"github.com/jackc/pgx/v5"
	"github.com/pkg/errors"
)

const cartSelect = `
SELECT
  c.id, c.user_id, c.product_id, c.pack_size, c.quantity,
  p.name, p.price, p.image_url, COALESCE(st.quantity, 0)
FROM cart_items c
JOIN products p ON p.id = c.product_id
LEFT JOIN stock st ON st.product_id = p.id
`

func scanCartItem(row pgx.Row) (*models.CartItem, error) {
	var it models.CartItem
	if err := row.Scan(
		&it.ID, &it.UserID, &it.ProductID, &it.PackSize, &it.Quantity,
		&it.ProductName, &it.UnitPrice, &it.ImageURL, &it.Stock,
	); err != nil {
		return nil, err
	}
	return &it, nil
}

func collectCartItems(rows pgx.Rows) ([]*models.CartItem, error) {
	defer rows.Close()
	out := make([]*models.CartItem, 0)
	for rows.Next() {
		it, err := scanCartItem(rows)
		if err != nil {
			return nil, errors.Wrap(err, "scan cart item")
		}
		out = append(out, it)
	}
	if rows.Err() != nil {
		return nil, errors.Wrap(rows.Err(), "rows")
	}
	return out, nil
}

func (s *Storage) ListCartItems(ctx context.Context, userID uint64) ([]*models.CartItem, error) {
	rows, err := s.db.Query(ctx, cartSelect+` WHERE c.user_id = $1 ORDER BY c.id ASC`, userID)
	if err != nil {
		return nil, errors.Wrap(err, "select cart")
	}
	return collectCartItems(rows)
}

// GetCartItem returns ErrNotFound when the line does not exist or belongs to another user.
func (s *Storage) GetCartItem(ctx context.Context, userID, itemID uint64) (*models.CartItem, error) {
	it, err := scanCartItem(s.db.QueryRow(ctx, cartSelect+` WHERE c.id = $1 AND c.user_id = $2`, itemID, userID))
	if err != nil {
		if isNoRows(err) {
			return nil, models.ErrNotFound
		}
		return nil, errors.Wrap(err, "select cart item")
	}
	return it, nil
}

func (s *Storage) FindCartItem(ctx context.Context, userID, productID uint64, packSize int) (*models.CartItem, error) {
	it, err := scanCartItem(s.db.QueryRow(ctx, cartSelect+`
WHERE c.user_id = $1 AND c.product_id = $2 AND c.pack_size = $3`, userID, productID, packSize))
	if err != nil {
		if isNoRows(err) {
			return nil, models.ErrNotFound
		}
		return nil, errors.Wrap(err, "select cart item")
	}
	return it, nil
}

// InsertCartItem adds quantity packs to the (product, pack size) line, creating it when missing.
func (s *Storage) InsertCartItem(ctx context.Context, userID, productID uint64, packSize, quantity int) (uint64, error) {
	var id uint64
	err := s.db.QueryRow(ctx, `
INSERT INTO cart_items (user_id, product_id, pack_size, quantity, created_at)
VALUES ($1,$2,$3,$4, now())
ON CONFLICT (user_id, product_id, pack_size)
DO UPDATE SET quantity = cart_items.quantity + EXCLUDED.quantity
RETURNING id
`, userID, productID, packSize, quantity).Scan(&id)
	if err != nil {
		return 0, errors.Wrap(err, "insert cart item")
	}
	return id, nil
}

func (s *Storage) SetCartItemQuantity(ctx context.Context, userID, itemID uint64, quantity int) error {
	tag, err := s.db.Exec(ctx, `
UPDATE cart_items SET quantity = $3 WHERE id = $1 AND user_id = $2
`, itemID, userID, quantity)
	if err != nil {
		return errors.Wrap(err, "update cart item")
	}
	if tag.RowsAffected() == 0 {
		return models.ErrNotFound
	}
	return nil
}

func (s *Storage) DeleteCartItem(ctx context.Context, userID, itemID uint64) error {
	tag, err := s.db.Exec(ctx, `DELETE FROM cart_items WHERE id = $1 AND user_id = $2`, itemID, userID)
	if err != nil {
		return errors.Wrap(err, "delete cart item")
	}
	if tag.RowsAffected() == 0 {
		return models.ErrNotFound
	}
	return nil
}

func (s *Storage) ClearCart(ctx context.Context, userID uint64) error {
	_, err := s.db.Exec(ctx, `DELETE FROM cart_items WHERE user_id = $1`, userID)
	return errors.Wrap(err, "clear cart")
}

// CountCartPacks sums pack quantities across the cart.
func (s *Storage) CountCartPacks(ctx context.Context, userID uint64) (int64, error) {
	var n int64
	err := s.db.QueryRow(ctx, `SELECT COALESCE(SUM(quantity), 0)::BIGINT FROM cart_items WHERE user_id = $1`, userID).Scan(&n)
	if err != nil {
		return 0, errors.Wrap(err, "count cart")
	}
	return n, nil
}
