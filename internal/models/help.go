package models

import "time"

type TicketPriority string

const (
	PriorityLow    TicketPriority = "low"
	PriorityMedium TicketPriority = "medium"
	PriorityHigh   TicketPriority = "high"
	PriorityUrgent TicketPriority = "urgent"
)

// ParsePriority falls back to medium for anything unknown.
func ParsePriority(s string) TicketPriority {
	switch p := TicketPriority(s); p {
	case PriorityLow, PriorityMedium, PriorityHigh, PriorityUrgent:
		return p
	default:
		return PriorityMedium
	}
}

type TicketStatus string

const (
	TicketPending    TicketStatus = "pending"
	TicketInProgress TicketStatus = "in_progress"
	TicketResolved   TicketStatus = "resolved"
	TicketClosed     TicketStatus = "closed"
)

func (s TicketStatus) Valid() bool {
	switch s {
	case TicketPending, TicketInProgress, TicketResolved, TicketClosed:
		return true
	}
	return false
}

type Ticket struct {
	ID                uint64         `json:"id"`
	UserID            uint64         `json:"user_id"`
	OrderID           *uint64        `json:"order_id,omitempty"`
	Subject           string         `json:"subject"`
	Message           string         `json:"message"`
	Priority          TicketPriority `json:"priority"`
	Status            TicketStatus   `json:"status"`
	AssignedAdminID   *uint64        `json:"assigned_admin_id,omitempty"`
	AssignedAdminName *string        `json:"assigned_admin_name,omitempty"`
	ReplyCount        int            `json:"reply_count"`
	CustomerName      string         `json:"customer_name,omitempty"`
	CustomerEmail     string         `json:"customer_email,omitempty"`
	CreatedAt         time.Time      `json:"created_at"`
	UpdatedAt         time.Time      `json:"updated_at"`
}

type TicketReply struct {
	ID         uint64    `json:"id"`
	TicketID   uint64    `json:"ticket_id"`
	UserID     uint64    `json:"user_id"`
	AuthorName string    `json:"author_name"`
	AuthorRole Role      `json:"author_role"`
	IsAdmin    bool      `json:"is_admin"`
	Message    string    `json:"message"`
	CreatedAt  time.Time `json:"created_at"`
}

type TicketDetail struct {
	Ticket  *Ticket        `json:"ticket"`
	Replies []*TicketReply `json:"replies"`
}

// TicketFilter narrows ListTickets. Zero value lists every ticket.
type TicketFilter struct {
	UserID *uint64
	Status *TicketStatus
	Limit  int
}
