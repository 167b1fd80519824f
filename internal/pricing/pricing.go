// Package pricing computes pack prices. Packs bundle 6, 12 or 24 cans and
// larger packs get a percentage discount on the gross price.
package pricing

import (
	"sort"

	"github.com/shopspring/decimal"
)

var packDiscounts = map[int]int64{
	6:  0,
	12: 5,
	24: 10,
}

var hundred = decimal.NewFromInt(100)

func IsValidPackSize(n int) bool {
	_, ok := packDiscounts[n]
	return ok
}

// PackSizes returns the configured pack sizes in ascending order.
func PackSizes() []int {
	out := make([]int, 0, len(packDiscounts))
	for n := range packDiscounts {
		out = append(out, n)
	}
	sort.Ints(out)
	return out
}

func DiscountPct(packSize int) int64 {
	return packDiscounts[packSize]
}

type Quote struct {
	PackSize    int   `json:"pack_size"`
	Units       int   `json:"units"`
	UnitPrice   int64 `json:"unit_price"`
	Gross       int64 `json:"gross"`
	Discount    int64 `json:"discount"`
	Final       int64 `json:"final"`
	DiscountPct int64 `json:"discount_pct"`
}

// PackPrice prices one pack. The discount is rounded half up to whole units.
func PackPrice(unitPrice int64, packSize int) Quote {
	pct := DiscountPct(packSize)
	gross := unitPrice * int64(packSize)
	discount := decimal.NewFromInt(gross).
		Mul(decimal.NewFromInt(pct)).
		Div(hundred).
		Round(0).
		IntPart()

	return Quote{
		PackSize:    packSize,
		Units:       packSize,
		UnitPrice:   unitPrice,
		Gross:       gross,
		Discount:    discount,
		Final:       gross - discount,
		DiscountPct: pct,
	}
}

type Line struct {
	Quote
	Packs   int   `json:"packs"`
	Total   int64 `json:"total"`
	Savings int64 `json:"savings"`
}

func LineTotal(unitPrice int64, packSize, packs int) Line {
	q := PackPrice(unitPrice, packSize)
	return Line{
		Quote:   q,
		Packs:   packs,
		Total:   q.Final * int64(packs),
		Savings: q.Discount * int64(packs),
	}
}

// PacksFor quotes every pack size for a product.
func PacksFor(unitPrice int64) []Quote {
	sizes := PackSizes()
	out := make([]Quote, 0, len(sizes))
	for _, n := range sizes {
		out = append(out, PackPrice(unitPrice, n))
	}
	return out
}
