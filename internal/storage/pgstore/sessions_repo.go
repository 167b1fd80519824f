package pgstore

import (
	"context"
	"time"

	"github.com/BearBump/xtreeshop/internal/models"
	"github.com/pkg/errors"
)

func (s *Storage) CreateSession(ctx context.Context, sess *models.Session) error {
	_, err := s.db.Exec(ctx, `
INSERT INTO sessions (id, user_id, expires_at, created_at) VALUES ($1,$2,$3,$4)
`, sess.ID, sess.UserID, sess.ExpiresAt.UTC(), sess.CreatedAt.UTC())
	return errors.Wrap(err, "insert session")
}

// GetSessionUser resolves a live session to its user. The user row is read
// on every call so role changes take effect immediately.
func (s *Storage) GetSessionUser(ctx context.Context, sessionID string, now time.Time) (*models.User, error) {
	u, err := scanUser(s.db.QueryRow(ctx, `
SELECT u.id, u.username, u.first_name, u.last_name, u.email, u.password_hash, u.address, u.role, u.created_at
FROM sessions s
JOIN users u ON u.id = s.user_id
WHERE s.id = $1 AND s.expires_at > $2
`, sessionID, now.UTC()))
	if err != nil {
		if isNoRows(err) {
			return nil, models.ErrNotFound
		}
		return nil, errors.Wrap(err, "select session user")
	}
	return u, nil
}

func (s *Storage) DeleteSession(ctx context.Context, sessionID string) error {
	_, err := s.db.Exec(ctx, `DELETE FROM sessions WHERE id = $1`, sessionID)
	return errors.Wrap(err, "delete session")
}

func (s *Storage) DeleteExpiredSessions(ctx context.Context, now time.Time) (int64, error) {
	tag, err := s.db.Exec(ctx, `DELETE FROM sessions WHERE expires_at <= $1`, now.UTC())
	if err != nil {
		return 0, errors.Wrap(err, "delete expired sessions")
	}
	return tag.RowsAffected(), nil
}
