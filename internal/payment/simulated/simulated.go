// Package simulated is an in-process payment gateway for development and tests.
// It approves cards that pass the Luhn check and have not expired.
package simulated

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/BearBump/xtreeshop/internal/payment"
	"github.com/google/uuid"
)

const (
	ModeSimulated = "simulated"
	ModeDecline   = "decline"
)

type Gateway struct {
	declineAll bool
	now        func() time.Time
}

func New(mode string) *Gateway {
	return &Gateway{
		declineAll: mode == ModeDecline,
		now:        time.Now,
	}
}

func (g *Gateway) Authorize(ctx context.Context, ch payment.Charge) (payment.Authorization, error) {
	if err := ctx.Err(); err != nil {
		return payment.Authorization{}, err
	}
	if ch.Amount <= 0 {
		return payment.Authorization{}, fmt.Errorf("invalid amount %d", ch.Amount)
	}

	if g.declineAll {
		return decline("declined by issuer"), nil
	}
	number := strings.ReplaceAll(ch.Card.Number, " ", "")
	if !luhn(number) {
		return decline("invalid card number"), nil
	}
	if expired(ch.Card.Expiry, g.now()) {
		return decline("card expired"), nil
	}

	return payment.Authorization{
		Reference: "sim_" + uuid.NewString(),
		Approved:  true,
	}, nil
}

func decline(reason string) payment.Authorization {
	return payment.Authorization{Approved: false, Reason: reason}
}

func luhn(number string) bool {
	if len(number) < 12 || len(number) > 19 {
		return false
	}
	sum := 0
	double := false
	for i := len(number) - 1; i >= 0; i-- {
		c := number[i]
		if c < '0' || c > '9' {
			return false
		}
		d := int(c - '0')
		if double {
			d *= 2
			if d > 9 {
				d -= 9
			}
		}
		sum += d
		double = !double
	}
	return sum%10 == 0
}

// expired treats a card as valid through the last day of its expiry month.
func expired(expiry string, now time.Time) bool {
	parts := strings.Split(expiry, "/")
	if len(parts) != 2 {
		return true
	}
	month, err := strconv.Atoi(parts[0])
	if err != nil || month < 1 || month > 12 {
		return true
	}
	year, err := strconv.Atoi(parts[1])
	if err != nil {
		return true
	}
	if year < 100 {
		year += 2000
	}
	firstOfNext := time.Date(year, time.Month(month)+1, 1, 0, 0, 0, 0, time.UTC)
	return !now.UTC().Before(firstOfNext)
}
