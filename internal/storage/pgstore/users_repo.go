package pgstore

import (
	"context"
	"time"

	"github.com/BearBump/xtreeshop/internal/models"
	"github.com/jackc/pgx/v5"
	"github.com/pkg/errors"
)

const userColumns = `id, username, first_name, last_name, email, password_hash, address, role, created_at`

func scanUser(row pgx.Row) (*models.User, error) {
	var u models.User
	var role string
	if err := row.Scan(
		&u.ID, &u.Username, &u.FirstName, &u.LastName, &u.Email,
		&u.PasswordHash, &u.Address, &role, &u.CreatedAt,
	); err != nil {
		return nil, err
	}
	u.Role = models.Role(role)
	return &u, nil
}

func (s *Storage) CreateUser(ctx context.Context, u *models.User) (*models.User, error) {
	role := u.Role
	if role == "" {
		role = models.RoleCustomer
	}
	row := s.db.QueryRow(ctx, `
INSERT INTO users (username, first_name, last_name, email, password_hash, address, role, created_at)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
RETURNING `+userColumns,
		u.Username, u.FirstName, u.LastName, u.Email, u.PasswordHash, u.Address, string(role), time.Now().UTC())
	out, err := scanUser(row)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, models.NewConflict("email or username already registered")
		}
		return nil, errors.Wrap(err, "insert user")
	}
	return out, nil
}

func (s *Storage) GetUserByID(ctx context.Context, id uint64) (*models.User, error) {
	u, err := scanUser(s.db.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE id = $1`, id))
	if err != nil {
		if isNoRows(err) {
			return nil, models.ErrNotFound
		}
		return nil, errors.Wrap(err, "select user")
	}
	return u, nil
}

func (s *Storage) GetUserByEmail(ctx context.Context, email string) (*models.User, error) {
	u, err := scanUser(s.db.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE lower(email) = lower($1)`, email))
	if err != nil {
		if isNoRows(err) {
			return nil, models.ErrNotFound
		}
		return nil, errors.Wrap(err, "select user by email")
	}
	return u, nil
}

// UserExists reports which of email / username are already taken.
func (s *Storage) UserExists(ctx context.Context, email, username string) (emailTaken, usernameTaken bool, err error) {
	err = s.db.QueryRow(ctx, `
SELECT
  EXISTS (SELECT 1 FROM users WHERE lower(email) = lower($1)),
  EXISTS (SELECT 1 FROM users WHERE lower(username) = lower($2))
`, email, username).Scan(&emailTaken, &usernameTaken)
	if err != nil {
		return false, false, errors.Wrap(err, "select user exists")
	}
	return emailTaken, usernameTaken, nil
}

func (s *Storage) EmailTakenByOther(ctx context.Context, email string, userID uint64) (bool, error) {
	var taken bool
	err := s.db.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM users WHERE lower(email) = lower($1) AND id <> $2)`,
		email, userID).Scan(&taken)
	if err != nil {
		return false, errors.Wrap(err, "select email taken")
	}
	return taken, nil
}

func (s *Storage) UpdateProfile(ctx context.Context, userID uint64, firstName, lastName, address string) error {
	tag, err := s.db.Exec(ctx, `
UPDATE users SET first_name = $2, last_name = $3, address = $4 WHERE id = $1
`, userID, firstName, lastName, address)
	if err != nil {
		return errors.Wrap(err, "update profile")
	}
	if tag.RowsAffected() == 0 {
		return models.ErrNotFound
	}
	return nil
}

func (s *Storage) UpdatePassword(ctx context.Context, userID uint64, hash string) error {
	tag, err := s.db.Exec(ctx, `UPDATE users SET password_hash = $2 WHERE id = $1`, userID, hash)
	if err != nil {
		return errors.Wrap(err, "update password")
	}
	if tag.RowsAffected() == 0 {
		return models.ErrNotFound
	}
	return nil
}

// GetProfileStats returns the order count and lifetime spend of a user.
func (s *Storage) GetProfileStats(ctx context.Context, userID uint64) (orders, spent int64, err error) {
	err = s.db.QueryRow(ctx, `
SELECT COUNT(*), COALESCE(SUM(total), 0)::BIGINT FROM orders WHERE user_id = $1
`, userID).Scan(&orders, &spent)
	if err != nil {
		return 0, 0, errors.Wrap(err, "select profile stats")
	}
	return orders, spent, nil
}

// UpsertSuperadmin creates the account or rewrites the existing one matched by
// email or username, forcing the superadmin role.
func (s *Storage) UpsertSuperadmin(ctx context.Context, u *models.User) (*models.User, bool, error) {
	tx, err := s.db.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return nil, false, errors.Wrap(err, "begin tx")
	}
	defer func() { _ = tx.Rollback(ctx) }()

	var existingID uint64
	err = tx.QueryRow(ctx, `
SELECT id FROM users WHERE lower(email) = lower($1) OR lower(username) = lower($2)
ORDER BY id LIMIT 1 FOR UPDATE
`, u.Email, u.Username).Scan(&existingID)

	created := false
	var out *models.User
	switch {
	case isNoRows(err):
		created = true
		out, err = scanUser(tx.QueryRow(ctx, `
INSERT INTO users (username, first_name, last_name, email, password_hash, address, role, created_at)
VALUES ($1,$2,$3,$4,$5,$6,'superadmin',$7)
RETURNING `+userColumns,
			u.Username, u.FirstName, u.LastName, u.Email, u.PasswordHash, u.Address, time.Now().UTC()))
		if err != nil {
			return nil, false, errors.Wrap(err, "insert superadmin")
		}
	case err != nil:
		return nil, false, errors.Wrap(err, "select superadmin")
	default:
		out, err = scanUser(tx.QueryRow(ctx, `
UPDATE users
SET username = $2, first_name = $3, last_name = $4, email = $5,
    password_hash = $6, role = 'superadmin'
WHERE id = $1
RETURNING `+userColumns,
			existingID, u.Username, u.FirstName, u.LastName, u.Email, u.PasswordHash))
		if err != nil {
			if isUniqueViolation(err) {
				return nil, false, models.NewConflict("email or username belongs to another account")
			}
			return nil, false, errors.Wrap(err, "update superadmin")
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, false, errors.Wrap(err, "commit tx")
	}
	return out, created, nil
}
