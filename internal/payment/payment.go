// Package payment defines the gateway checkout authorizes charges against.
package payment

import (
	"context"
	"strings"
)

type Card struct {
	Holder string
	Number string
	CVV    string
	Expiry string // MM/YY
}

// Last4 is safe to log.
func (c Card) Last4() string {
	n := strings.ReplaceAll(c.Number, " ", "")
	if len(n) <= 4 {
		return n
	}
	return n[len(n)-4:]
}

type Charge struct {
	OrderID uint64
	UserID  uint64
	Amount  int64
	Card    Card
}

type Authorization struct {
	Reference string
	Approved  bool
	Reason    string
}

type Gateway interface {
	Authorize(ctx context.Context, ch Charge) (Authorization, error)
}
