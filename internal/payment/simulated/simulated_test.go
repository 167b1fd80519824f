package simulated

import (
	"context"
	"testing"
	"time"

	"github.com/BearBump/xtreeshop/internal/payment"
	"github.com/stretchr/testify/require"
)

func charge(number, expiry string) payment.Charge {
	return payment.Charge{
		OrderID: 1,
		Amount:  500,
		Card:    payment.Card{Holder: "Ana Gómez", Number: number, CVV: "123", Expiry: expiry},
	}
}

func newGateway(mode string) *Gateway {
	g := New(mode)
	g.now = func() time.Time { return time.Date(2026, 5, 10, 0, 0, 0, 0, time.UTC) }
	return g
}

func TestAuthorize_Approves(t *testing.T) {
	auth, err := newGateway(ModeSimulated).Authorize(context.Background(), charge("4242 4242 4242 4242", "12/27"))
	require.NoError(t, err)
	require.True(t, auth.Approved)
	require.Contains(t, auth.Reference, "sim_")
}

func TestAuthorize_BadLuhn(t *testing.T) {
	auth, err := newGateway(ModeSimulated).Authorize(context.Background(), charge("4242424242424241", "12/27"))
	require.NoError(t, err)
	require.False(t, auth.Approved)
	require.Equal(t, "invalid card number", auth.Reason)
}

func TestAuthorize_Expiry(t *testing.T) {
	g := newGateway(ModeSimulated)

	auth, _ := g.Authorize(context.Background(), charge("4242424242424242", "04/26"))
	require.False(t, auth.Approved)

	// valid through the end of the expiry month
	auth, _ = g.Authorize(context.Background(), charge("4242424242424242", "05/26"))
	require.True(t, auth.Approved)

	auth, _ = g.Authorize(context.Background(), charge("4242424242424242", "13/26"))
	require.False(t, auth.Approved)
}

func TestAuthorize_DeclineMode(t *testing.T) {
	auth, err := newGateway(ModeDecline).Authorize(context.Background(), charge("4242424242424242", "12/27"))
	require.NoError(t, err)
	require.False(t, auth.Approved)
}

func TestAuthorize_InvalidAmount(t *testing.T) {
	ch := charge("4242424242424242", "12/27")
	ch.Amount = 0
	_, err := newGateway(ModeSimulated).Authorize(context.Background(), ch)
	require.Error(t, err)
}

func TestCardLast4(t *testing.T) {
	require.Equal(t, "4242", payment.Card{Number: "4000 0000 0000 4242"}.Last4())
	require.Equal(t, "12", payment.Card{Number: "12"}.Last4())
}
