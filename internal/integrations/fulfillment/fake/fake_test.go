package fake

import (
	"context"
	"testing"

	"github.com/BearBump/xtreeshop/internal/models"
	"github.com/stretchr/testify/require"
)

func TestFakeClient_AdvancesOneStep(t *testing.T) {
	c := New()
	o := &models.Order{ID: 1, Status: models.StatusPaymentAccepted}

	steps := []models.StatusCode{models.StatusPreparing, models.StatusShipped, models.StatusDelivered, models.StatusDelivered}
	for _, want := range steps {
		res, err := c.GetProgress(context.Background(), o)
		require.NoError(t, err)
		require.Equal(t, want, res.Status)
		require.NotNil(t, res.StatusAt)
		o.Status = res.Status
	}
}

func TestFakeClient_ReferenceIsDeterministic(t *testing.T) {
	c := New()
	a, _ := c.GetProgress(context.Background(), &models.Order{ID: 5, Status: models.StatusPreparing})
	b, _ := c.GetProgress(context.Background(), &models.Order{ID: 5, Status: models.StatusShipped})
	require.Equal(t, a.Reference, b.Reference)
	require.Regexp(t, `^FK-[0-9a-f]{8}$`, a.Reference)
}

func TestFakeClient_PendingPaymentStays(t *testing.T) {
	res, err := New().GetProgress(context.Background(), &models.Order{ID: 2, Status: models.StatusPaymentPending})
	require.NoError(t, err)
	require.Equal(t, models.StatusPaymentPending, res.Status)
	require.Nil(t, res.StatusAt)
}
