package models

import "time"

type StatusCode string

const (
	StatusPreparing       StatusCode = "PREPARING"
	StatusShipped         StatusCode = "SHIPPED"
	StatusPaymentAccepted StatusCode = "PAYMENT_ACCEPTED"
	StatusPaymentPending  StatusCode = "PAYMENT_PENDING"
	StatusDelivered       StatusCode = "DELIVERED"
)

// OrderStatus is a row of the static order_statuses lookup table.
type OrderStatus struct {
	ID    int        `json:"id"`
	Code  StatusCode `json:"code"`
	Label string     `json:"label"`
}

var orderStatuses = []OrderStatus{
	{ID: 1, Code: StatusPreparing, Label: "PROCESANDO PEDIDO"},
	{ID: 2, Code: StatusShipped, Label: "EN CAMINO"},
	{ID: 3, Code: StatusPaymentAccepted, Label: "PAGO ACEPTADO"},
	{ID: 4, Code: StatusPaymentPending, Label: "PROCESANDO PAGO"},
	{ID: 5, Code: StatusDelivered, Label: "ENTREGADO/RETIRADO"},
}

var statusIcons = map[StatusCode]string{
	StatusPaymentPending:  "credit-card",
	StatusPaymentAccepted: "check-circle",
	StatusPreparing:       "box",
	StatusShipped:         "truck-fast",
	StatusDelivered:       "circle-check",
}

// fulfillment order after payment
var statusFlow = []StatusCode{
	StatusPaymentPending,
	StatusPaymentAccepted,
	StatusPreparing,
	StatusShipped,
	StatusDelivered,
}

func OrderStatuses() []OrderStatus {
	out := make([]OrderStatus, len(orderStatuses))
	copy(out, orderStatuses)
	return out
}

func StatusByCode(code StatusCode) (OrderStatus, bool) {
	for _, s := range orderStatuses {
		if s.Code == code {
			return s, true
		}
	}
	return OrderStatus{}, false
}

func (c StatusCode) Valid() bool {
	_, ok := StatusByCode(c)
	return ok
}

func (c StatusCode) Label() string {
	if s, ok := StatusByCode(c); ok {
		return s.Label
	}
	return string(c)
}

func (c StatusCode) Icon() string {
	if icon, ok := statusIcons[c]; ok {
		return icon
	}
	return "circle"
}

func (c StatusCode) IsTerminal() bool {
	return c == StatusDelivered
}

// Rank is the position of c in the fulfillment flow, -1 when unknown.
func (c StatusCode) Rank() int {
	for i, s := range statusFlow {
		if s == c {
			return i
		}
	}
	return -1
}

// Next returns the status that follows c in the fulfillment flow.
// Terminal and unknown statuses return themselves.
func (c StatusCode) Next() StatusCode {
	for i, s := range statusFlow {
		if s == c && i+1 < len(statusFlow) {
			return statusFlow[i+1]
		}
	}
	return c
}

type Order struct {
	ID              uint64     `json:"id"`
	UserID          uint64     `json:"user_id"`
	Total           int64      `json:"total"`
	ShippingAddress string     `json:"shipping_address"`
	PaymentRef      *string    `json:"payment_ref,omitempty"`
	CreatedAt       time.Time  `json:"created_at"`
	Status          StatusCode `json:"status"`
	StatusLabel     string     `json:"status_label"`
	StatusIcon      string     `json:"status_icon"`
	StatusAt        *time.Time `json:"status_at,omitempty"`

	HasProblem         bool       `json:"has_problem"`
	ProblemDescription *string    `json:"problem_description,omitempty"`
	ProblemAt          *time.Time `json:"problem_at,omitempty"`

	CustomerName  string `json:"customer_name,omitempty"`
	CustomerEmail string `json:"customer_email,omitempty"`

	LastCheckedAt  *time.Time `json:"-"`
	NextCheckAt    time.Time  `json:"-"`
	CheckFailCount int32      `json:"-"`
	LastError      *string    `json:"-"`
}

// SetStatus fills the derived label and icon.
func (o *Order) SetStatus(code StatusCode, at *time.Time) {
	o.Status = code
	o.StatusLabel = code.Label()
	o.StatusIcon = code.Icon()
	o.StatusAt = at
}

type OrderLine struct {
	ID          uint64  `json:"id"`
	OrderID     uint64  `json:"order_id"`
	ProductID   *uint64 `json:"product_id,omitempty"`
	ProductName string  `json:"product_name"`
	ImageURL    string  `json:"image_url"`
	Quantity    int64   `json:"quantity"`
	UnitPrice   int64   `json:"unit_price"`
	LineTotal   int64   `json:"line_total"`
}

type TrackingEntry struct {
	ID        uint64     `json:"id"`
	OrderID   uint64     `json:"order_id"`
	Status    StatusCode `json:"status"`
	Label     string     `json:"label"`
	Icon      string     `json:"icon"`
	CreatedAt time.Time  `json:"created_at"`
}

type CurrentStatus struct {
	OrderID uint64     `json:"order_id"`
	Status  StatusCode `json:"status"`
	Label   string     `json:"label"`
	Icon    string     `json:"icon"`
	At      time.Time  `json:"at"`
}

type OrderDetail struct {
	Order    *Order           `json:"order"`
	Lines    []*OrderLine     `json:"lines"`
	Tracking []*TrackingEntry `json:"tracking"`
	Customer *User            `json:"customer,omitempty"`
}

// OrderFilter narrows ListOrders. Zero value lists every order.
type OrderFilter struct {
	UserID       *uint64
	ProblemsOnly bool
	Limit        int
}

type LinkableOrder struct {
	ID        uint64     `json:"id"`
	Total     int64      `json:"total"`
	CreatedAt time.Time  `json:"created_at"`
	Status    StatusCode `json:"status"`
}
