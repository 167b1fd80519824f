package audit

import (
	"context"
	"errors"
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/BearBump/xtreeshop/internal/models"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

type fakeRepo struct {
	got []*models.AuditEntry
	err error
}

func (f *fakeRepo) InsertAuditEntry(ctx context.Context, e *models.AuditEntry) error {
	f.got = append(f.got, e)
	return f.err
}

func TestRecord_Truncates(t *testing.T) {
	repo := &fakeRepo{}
	id := uint64(9)
	New(repo, nil).Record(context.Background(), Actor{AdminID: 1, IP: "10.0.0.1"},
		"update_product", strings.Repeat("t", 80), &id, strings.Repeat("d", 600))

	require.Len(t, repo.got, 1)
	require.Len(t, repo.got[0].Table, 50)
	require.Len(t, repo.got[0].Details, 500)
	require.Equal(t, "10.0.0.1", repo.got[0].IPAddress)
}

func TestRecord_TruncatesOnRuneBoundary(t *testing.T) {
	repo := &fakeRepo{}
	details := "a" + strings.Repeat("ñ", 300) + strings.Repeat("á", 300)
	New(repo, nil).Record(context.Background(), Actor{AdminID: 1}, "update_product", "products", nil, details)

	got := repo.got[0].Details
	require.True(t, utf8.ValidString(got))
	require.Equal(t, 500, utf8.RuneCountInString(got))
	require.Equal(t, "a"+strings.Repeat("ñ", 300)+strings.Repeat("á", 199), got)

	require.Equal(t, "ñandú", truncate("ñandú", 5))
	require.Equal(t, "ña", truncate("ñandú", 2))
	require.Equal(t, "", truncate("ñandú", 0))
}

func TestRecord_FailureIsLogged(t *testing.T) {
	core, logs := observer.New(zap.WarnLevel)
	repo := &fakeRepo{err: errors.New("db down")}

	New(repo, zap.New(core)).Record(context.Background(), Actor{AdminID: 1}, "delete_product", "products", nil, "")

	require.Equal(t, 1, logs.FilterMessage("audit log write failed").Len())
}
