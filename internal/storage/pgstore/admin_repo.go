package pgstore

import (
	"context"
	"time"

	"github.com/BearBump/xtreeshop/internal/models"
	"github.com/pkg/errors"
)

func (s *Storage) DashboardStats(ctx context.Context, lowStockThreshold int64) (models.DashboardStats, error) {
	var st models.DashboardStats
	err := s.db.QueryRow(ctx, `
SELECT
  (SELECT COUNT(*) FROM users WHERE role = 'customer'),
  (SELECT COUNT(*) FROM orders),
  (SELECT COALESCE(SUM(total), 0) FROM orders),
  (SELECT COUNT(*) FROM help_tickets WHERE status = 'pending'),
  (SELECT COUNT(*) FROM orders WHERE has_problem),
  (SELECT COUNT(*) FROM products p LEFT JOIN stock s ON s.product_id = p.id WHERE COALESCE(s.quantity, 0) < $1)
`, lowStockThreshold).Scan(
		&st.Customers, &st.Orders, &st.Revenue,
		&st.PendingTickets, &st.ProblemOrders, &st.LowStockProducts,
	)
	if err != nil {
		return models.DashboardStats{}, errors.Wrap(err, "select dashboard stats")
	}
	return st, nil
}

func (s *Storage) InsertAuditEntry(ctx context.Context, e *models.AuditEntry) error {
	details := e.Details
	if len(details) > 500 {
		details = details[:500]
	}
	_, err := s.db.Exec(ctx, `
INSERT INTO admin_audit_log (admin_id, action, table_name, record_id, details, ip_address, created_at)
VALUES ($1,$2,$3,$4,$5,$6,$7)
`, e.AdminID, e.Action, e.Table, e.RecordID, details, e.IPAddress, time.Now().UTC())
	if err != nil {
		return errors.Wrap(err, "insert audit entry")
	}
	return nil
}

func (s *Storage) ListAuditEntries(ctx context.Context, limit int) ([]*models.AuditEntry, error) {
	rows, err := s.db.Query(ctx, `
SELECT id, admin_id, action, table_name, record_id, details, ip_address, created_at
FROM admin_audit_log
ORDER BY created_at DESC, id DESC
LIMIT $1
`, limit)
	if err != nil {
		return nil, errors.Wrap(err, "select audit log")
	}
	defer rows.Close()

	out := make([]*models.AuditEntry, 0)
	for rows.Next() {
		var e models.AuditEntry
		if err := rows.Scan(&e.ID, &e.AdminID, &e.Action, &e.Table, &e.RecordID, &e.Details, &e.IPAddress, &e.CreatedAt); err != nil {
			return nil, errors.Wrap(err, "scan audit entry")
		}
		out = append(out, &e)
	}
	if rows.Err() != nil {
		return nil, errors.Wrap(rows.Err(), "rows")
	}
	return out, nil
}

// ListUsersWithStats lists accounts with their order totals. Other
// superadmins are hidden from the viewer.
func (s *Storage) ListUsersWithStats(ctx context.Context, viewerID uint64) ([]*models.UserWithStats, error) {
	rows, err := s.db.Query(ctx, `
SELECT
  u.id, u.username, u.first_name, u.last_name, u.email, u.password_hash, u.address, u.role, u.created_at,
  COUNT(o.id), COALESCE(SUM(o.total), 0)
FROM users u
LEFT JOIN orders o ON o.user_id = u.id
WHERE u.role <> 'superadmin' OR u.id = $1
GROUP BY u.id
ORDER BY u.created_at DESC, u.id DESC
`, viewerID)
	if err != nil {
		return nil, errors.Wrap(err, "select users")
	}
	defer rows.Close()

	out := make([]*models.UserWithStats, 0)
	for rows.Next() {
		var u models.UserWithStats
		var role string
		if err := rows.Scan(
			&u.ID, &u.Username, &u.FirstName, &u.LastName, &u.Email, &u.PasswordHash, &u.Address, &role, &u.CreatedAt,
			&u.OrderCount, &u.TotalSpent,
		); err != nil {
			return nil, errors.Wrap(err, "scan user")
		}
		u.Role = models.Role(role)
		out = append(out, &u)
	}
	if rows.Err() != nil {
		return nil, errors.Wrap(rows.Err(), "rows")
	}
	return out, nil
}

func (s *Storage) UpdateUser(ctx context.Context, id uint64, upd models.UserUpdate) error {
	var role *string
	if upd.Role != nil {
		v := string(*upd.Role)
		role = &v
	}
	tag, err := s.db.Exec(ctx, `
UPDATE users
SET
  first_name = COALESCE($2, first_name),
  last_name = COALESCE($3, last_name),
  email = COALESCE($4, email),
  role = COALESCE($5, role)
WHERE id = $1
`, id, upd.FirstName, upd.LastName, upd.Email, role)
	if err != nil {
		if isUniqueViolation(err) {
			return models.NewConflict("email already in use")
		}
		return errors.Wrap(err, "update user")
	}
	if tag.RowsAffected() == 0 {
		return models.ErrNotFound
	}
	return nil
}
