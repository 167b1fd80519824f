package pgstore

import (
	"context"
	"time"

	"github.com/BearBump/xtreeshop/internal/models"
	"github.com/jackc/pgx/v5"
	"github.com/pkg/errors"
)

const ticketSelect = `
SELECT
  t.id, t.user_id, t.order_id, t.subject, t.message, t.priority, t.status,
  t.assigned_admin_id, a.first_name || ' ' || a.last_name,
  (SELECT COUNT(*) FROM help_replies r WHERE r.ticket_id = t.id),
  u.first_name || ' ' || u.last_name, u.email,
  t.created_at, t.updated_at
FROM help_tickets t
JOIN users u ON u.id = t.user_id
LEFT JOIN users a ON a.id = t.assigned_admin_id
`

func scanTicket(row pgx.Row) (*models.Ticket, error) {
	var t models.Ticket
	var priority, status string
	if err := row.Scan(
		&t.ID, &t.UserID, &t.OrderID, &t.Subject, &t.Message, &priority, &status,
		&t.AssignedAdminID, &t.AssignedAdminName,
		&t.ReplyCount,
		&t.CustomerName, &t.CustomerEmail,
		&t.CreatedAt, &t.UpdatedAt,
	); err != nil {
		return nil, err
	}
	t.Priority = models.TicketPriority(priority)
	t.Status = models.TicketStatus(status)
	return &t, nil
}

func (s *Storage) CreateTicket(ctx context.Context, t *models.Ticket) (*models.Ticket, error) {
	now := time.Now().UTC()
	var id uint64
	err := s.db.QueryRow(ctx, `
INSERT INTO help_tickets (user_id, order_id, subject, message, priority, status, created_at, updated_at)
VALUES ($1,$2,$3,$4,$5,$6,$7,$7)
RETURNING id
`, t.UserID, t.OrderID, t.Subject, t.Message, string(t.Priority), string(models.TicketPending), now).Scan(&id)
	if err != nil {
		return nil, errors.Wrap(err, "insert ticket")
	}
	return s.GetTicket(ctx, id)
}

// ListTickets returns a user's tickets newest first, or for admins every
// ticket ordered by priority and then age.
func (s *Storage) ListTickets(ctx context.Context, f models.TicketFilter) ([]*models.Ticket, error) {
	var status *string
	if f.Status != nil {
		v := string(*f.Status)
		status = &v
	}

	order := `ORDER BY t.created_at DESC, t.id DESC`
	if f.UserID == nil {
		order = `
ORDER BY
  CASE t.priority WHEN 'urgent' THEN 4 WHEN 'high' THEN 3 WHEN 'medium' THEN 2 ELSE 1 END DESC,
  t.created_at DESC, t.id DESC`
	}

	rows, err := s.db.Query(ctx, ticketSelect+`
WHERE ($1::BIGINT IS NULL OR t.user_id = $1)
  AND ($2::TEXT IS NULL OR t.status = $2)
`+order+`
LIMIT NULLIF($3::INT, 0)
`, f.UserID, status, f.Limit)
	if err != nil {
		return nil, errors.Wrap(err, "select tickets")
	}
	defer rows.Close()

	out := make([]*models.Ticket, 0)
	for rows.Next() {
		t, err := scanTicket(rows)
		if err != nil {
			return nil, errors.Wrap(err, "scan ticket")
		}
		out = append(out, t)
	}
	if rows.Err() != nil {
		return nil, errors.Wrap(rows.Err(), "rows")
	}
	return out, nil
}

func (s *Storage) GetTicket(ctx context.Context, id uint64) (*models.Ticket, error) {
	t, err := scanTicket(s.db.QueryRow(ctx, ticketSelect+` WHERE t.id = $1`, id))
	if err != nil {
		if isNoRows(err) {
			return nil, models.ErrNotFound
		}
		return nil, errors.Wrap(err, "select ticket")
	}
	return t, nil
}

// ListTicketReplies returns the conversation oldest first.
func (s *Storage) ListTicketReplies(ctx context.Context, ticketID uint64) ([]*models.TicketReply, error) {
	rows, err := s.db.Query(ctx, `
SELECT r.id, r.ticket_id, r.user_id, u.first_name || ' ' || u.last_name, u.role, r.is_admin, r.message, r.created_at
FROM help_replies r
JOIN users u ON u.id = r.user_id
WHERE r.ticket_id = $1
ORDER BY r.created_at ASC, r.id ASC
`, ticketID)
	if err != nil {
		return nil, errors.Wrap(err, "select replies")
	}
	defer rows.Close()

	out := make([]*models.TicketReply, 0)
	for rows.Next() {
		var r models.TicketReply
		var role string
		if err := rows.Scan(&r.ID, &r.TicketID, &r.UserID, &r.AuthorName, &role, &r.IsAdmin, &r.Message, &r.CreatedAt); err != nil {
			return nil, errors.Wrap(err, "scan reply")
		}
		r.AuthorRole = models.Role(role)
		out = append(out, &r)
	}
	if rows.Err() != nil {
		return nil, errors.Wrap(rows.Err(), "rows")
	}
	return out, nil
}

// AddTicketReply stores a reply and bumps the ticket. newStatus and
// assignAdmin are optional; an existing assignment is never overwritten.
func (s *Storage) AddTicketReply(ctx context.Context, r *models.TicketReply, newStatus *models.TicketStatus, assignAdmin *uint64) (*models.TicketReply, error) {
	tx, err := s.db.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return nil, errors.Wrap(err, "begin tx")
	}
	defer func() { _ = tx.Rollback(ctx) }()

	var current string
	err = tx.QueryRow(ctx, `SELECT status FROM help_tickets WHERE id = $1 FOR UPDATE`, r.TicketID).Scan(&current)
	if err != nil {
		if isNoRows(err) {
			return nil, models.ErrNotFound
		}
		return nil, errors.Wrap(err, "lock ticket")
	}
	// admins may reopen a closed ticket by replying
	if !r.IsAdmin && models.TicketStatus(current) == models.TicketClosed {
		return nil, models.ErrTicketClosed
	}

	now := time.Now().UTC()
	err = tx.QueryRow(ctx, `
INSERT INTO help_replies (ticket_id, user_id, message, is_admin, created_at)
VALUES ($1,$2,$3,$4,$5)
RETURNING id
`, r.TicketID, r.UserID, r.Message, r.IsAdmin, now).Scan(&r.ID)
	if err != nil {
		return nil, errors.Wrap(err, "insert reply")
	}
	r.CreatedAt = now

	var status *string
	if newStatus != nil {
		v := string(*newStatus)
		status = &v
	}
	_, err = tx.Exec(ctx, `
UPDATE help_tickets
SET
  status = COALESCE($2, status),
  assigned_admin_id = COALESCE(assigned_admin_id, $3),
  updated_at = $4
WHERE id = $1
`, r.TicketID, status, assignAdmin, now)
	if err != nil {
		return nil, errors.Wrap(err, "update ticket")
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, errors.Wrap(err, "commit tx")
	}
	return r, nil
}

func (s *Storage) SetTicketStatus(ctx context.Context, ticketID uint64, status models.TicketStatus) error {
	tag, err := s.db.Exec(ctx, `
UPDATE help_tickets SET status = $2, updated_at = $3 WHERE id = $1
`, ticketID, string(status), time.Now().UTC())
	if err != nil {
		return errors.Wrap(err, "update ticket status")
	}
	if tag.RowsAffected() == 0 {
		return models.ErrNotFound
	}
	return nil
}
