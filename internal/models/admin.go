package models

import "time"

type DashboardStats struct {
	Customers        int64 `json:"customers"`
	Orders           int64 `json:"orders"`
	Revenue          int64 `json:"revenue"`
	PendingTickets   int64 `json:"pending_tickets"`
	ProblemOrders    int64 `json:"problem_orders"`
	LowStockProducts int64 `json:"low_stock_products"`
}

type Dashboard struct {
	Stats         DashboardStats `json:"stats"`
	RecentOrders  []*Order       `json:"recent_orders"`
	RecentTickets []*Ticket      `json:"recent_tickets"`
	LowStock      []*Product     `json:"low_stock"`
}

type AuditEntry struct {
	ID        uint64    `json:"id"`
	AdminID   uint64    `json:"admin_id"`
	Action    string    `json:"action"`
	Table     string    `json:"table"`
	RecordID  *uint64   `json:"record_id,omitempty"`
	Details   string    `json:"details"`
	IPAddress string    `json:"ip_address"`
	CreatedAt time.Time `json:"created_at"`
}
