// Package audit writes the admin audit trail. A failed write is logged and
// never fails the action being audited.
package audit

import (
	"context"

	"github.com/BearBump/xtreeshop/internal/models"
	"go.uber.org/zap"
)

const (
	maxAction  = 100
	maxTable   = 50
	maxDetails = 500
)

type Repository interface {
	InsertAuditEntry(ctx context.Context, e *models.AuditEntry) error
}

type Recorder struct {
	repo Repository
	log  *zap.Logger
}

func New(repo Repository, log *zap.Logger) *Recorder {
	if log == nil {
		log = zap.NewNop()
	}
	return &Recorder{repo: repo, log: log}
}

// Actor identifies who performed an admin action.
type Actor struct {
	AdminID uint64
	IP      string
}

func (r *Recorder) Record(ctx context.Context, actor Actor, action, table string, recordID *uint64, details string) {
	if r == nil || r.repo == nil {
		return
	}
	e := &models.AuditEntry{
		AdminID:   actor.AdminID,
		Action:    truncate(action, maxAction),
		Table:     truncate(table, maxTable),
		RecordID:  recordID,
		Details:   truncate(details, maxDetails),
		IPAddress: actor.IP,
	}
	if err := r.repo.InsertAuditEntry(ctx, e); err != nil {
		r.log.Warn("audit log write failed",
			zap.Uint64("admin_id", actor.AdminID),
			zap.String("action", e.Action),
			zap.Error(err))
	}
}

// truncate keeps at most n runes; the columns are VARCHAR(n).
func truncate(s string, n int) string {
	count := 0
	for i := range s {
		if count == n {
			return s[:i]
		}
		count++
	}
	return s
}
