package messages

import "time"

// OrderPlaced is published after a checkout commits.
type OrderPlaced struct {
	OrderID  uint64            `json:"order_id"`
	UserID   uint64            `json:"user_id"`
	Total    int64             `json:"total"`
	Items    []OrderPlacedItem `json:"items"`
	PlacedAt time.Time         `json:"placed_at"`
}

type OrderPlacedItem struct {
	ProductID uint64 `json:"product_id"`
	Quantity  int64  `json:"quantity"`
	UnitPrice int64  `json:"unit_price"`
}

// OrderStatusUpdated carries the result of one fulfillment check.
// Error is set when the provider could not be reached; Status is then empty.
type OrderStatusUpdated struct {
	OrderID   uint64    `json:"order_id"`
	CheckedAt time.Time `json:"checked_at"`

	Status    string     `json:"status,omitempty"`
	StatusAt  *time.Time `json:"status_at,omitempty"`
	Reference string     `json:"reference,omitempty"`

	NextCheckAt time.Time `json:"next_check_at"`
	Source      string    `json:"source,omitempty"`

	Error *string `json:"error,omitempty"`
}
