package pgstore

import (
	"context"
	"time"

	"github.com/BearBump/xtreeshop/internal/models"
	"github.com/jackc/pgx/v5"
	"github.com/pkg/errors"
)

const productSelect = `
SELECT
  p.id, p.name, p.description, p.price, p.image_url,
  p.primary_color, p.secondary_color, p.accent_color,
  COALESCE(st.quantity, 0), p.created_at
FROM products p
LEFT JOIN stock st ON st.product_id = p.id
`

func scanProduct(row pgx.Row) (*models.Product, error) {
	var p models.Product
	if err := row.Scan(
		&p.ID, &p.Name, &p.Description, &p.Price, &p.ImageURL,
		&p.PrimaryColor, &p.SecondaryColor, &p.AccentColor,
		&p.Stock, &p.CreatedAt,
	); err != nil {
		return nil, err
	}
	return &p, nil
}

func (s *Storage) queryProducts(ctx context.Context, q string, args ...any) ([]*models.Product, error) {
	rows, err := s.db.Query(ctx, q, args...)
	if err != nil {
		return nil, errors.Wrap(err, "select products")
	}
	defer rows.Close()

	out := make([]*models.Product, 0)
	for rows.Next() {
		p, err := scanProduct(rows)
		if err != nil {
			return nil, errors.Wrap(err, "scan product")
		}
		out = append(out, p)
	}
	if rows.Err() != nil {
		return nil, errors.Wrap(rows.Err(), "rows")
	}
	return out, nil
}

// ListProducts returns the catalog in id order.
func (s *Storage) ListProducts(ctx context.Context) ([]*models.Product, error) {
	return s.queryProducts(ctx, productSelect+` ORDER BY p.id ASC`)
}

// ListProductsNewest is the back-office listing.
func (s *Storage) ListProductsNewest(ctx context.Context) ([]*models.Product, error) {
	return s.queryProducts(ctx, productSelect+` ORDER BY p.created_at DESC, p.id DESC`)
}

func (s *Storage) ListLowStock(ctx context.Context, threshold int64) ([]*models.Product, error) {
	return s.queryProducts(ctx, productSelect+`
WHERE COALESCE(st.quantity, 0) < $1
ORDER BY COALESCE(st.quantity, 0) ASC, p.id ASC`, threshold)
}

func (s *Storage) GetProduct(ctx context.Context, id uint64) (*models.Product, error) {
	p, err := scanProduct(s.db.QueryRow(ctx, productSelect+` WHERE p.id = $1`, id))
	if err != nil {
		if isNoRows(err) {
			return nil, models.ErrNotFound
		}
		return nil, errors.Wrap(err, "select product")
	}
	return p, nil
}

// CreateProduct inserts the product and its stock row in one transaction.
func (s *Storage) CreateProduct(ctx context.Context, p *models.Product) (*models.Product, error) {
	tx, err := s.db.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return nil, errors.Wrap(err, "begin tx")
	}
	defer func() { _ = tx.Rollback(ctx) }()

	withDefaultColors(p)

	now := time.Now().UTC()
	var id uint64
	err = tx.QueryRow(ctx, `
INSERT INTO products (name, description, price, image_url, primary_color, secondary_color, accent_color, created_at)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
RETURNING id
`, p.Name, p.Description, p.Price, p.ImageURL, p.PrimaryColor, p.SecondaryColor, p.AccentColor, now).Scan(&id)
	if err != nil {
		return nil, errors.Wrap(err, "insert product")
	}

	if _, err := tx.Exec(ctx, `
INSERT INTO stock (product_id, quantity, updated_at) VALUES ($1,$2,$3)
`, id, p.Stock, now); err != nil {
		return nil, errors.Wrap(err, "insert stock")
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, errors.Wrap(err, "commit tx")
	}

	out := *p
	out.ID = id
	out.CreatedAt = now
	return &out, nil
}

func (s *Storage) UpdateProduct(ctx context.Context, upd models.ProductUpdate) error {
	tx, err := s.db.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return errors.Wrap(err, "begin tx")
	}
	defer func() { _ = tx.Rollback(ctx) }()

	tag, err := tx.Exec(ctx, `
UPDATE products
SET
  name = $2,
  description = $3,
  price = $4,
  image_url = COALESCE($5, image_url),
  primary_color = COALESCE($6, primary_color),
  secondary_color = COALESCE($7, secondary_color),
  accent_color = COALESCE($8, accent_color)
WHERE id = $1
`, upd.ID, upd.Name, upd.Description, upd.Price, upd.ImageURL, upd.PrimaryColor, upd.SecondaryColor, upd.AccentColor)
	if err != nil {
		return errors.Wrap(err, "update product")
	}
	if tag.RowsAffected() == 0 {
		return models.ErrNotFound
	}

	if upd.Stock != nil {
		if _, err := tx.Exec(ctx, `
INSERT INTO stock (product_id, quantity, updated_at) VALUES ($1,$2,now())
ON CONFLICT (product_id) DO UPDATE SET quantity = EXCLUDED.quantity, updated_at = now()
`, upd.ID, *upd.Stock); err != nil {
			return errors.Wrap(err, "upsert stock")
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return errors.Wrap(err, "commit tx")
	}
	return nil
}

// DeleteProduct removes the stock row, then the product.
func (s *Storage) DeleteProduct(ctx context.Context, id uint64) error {
	tx, err := s.db.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return errors.Wrap(err, "begin tx")
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if _, err := tx.Exec(ctx, `DELETE FROM stock WHERE product_id = $1`, id); err != nil {
		return errors.Wrap(err, "delete stock")
	}
	tag, err := tx.Exec(ctx, `DELETE FROM products WHERE id = $1`, id)
	if err != nil {
		return errors.Wrap(err, "delete product")
	}
	if tag.RowsAffected() == 0 {
		return models.ErrNotFound
	}

	if err := tx.Commit(ctx); err != nil {
		return errors.Wrap(err, "commit tx")
	}
	return nil
}

func withDefaultColors(p *models.Product) {
	if p.PrimaryColor == "" {
		p.PrimaryColor = models.DefaultPrimaryColor
	}
	if p.SecondaryColor == "" {
		p.SecondaryColor = models.DefaultSecondaryColor
	}
	if p.AccentColor == "" {
		p.AccentColor = models.DefaultAccentColor
	}
}
