package models

import "time"

type Role string

const (
	RoleCustomer   Role = "customer"
	RoleAdmin      Role = "admin"
	RoleSuperadmin Role = "superadmin"
)

// IsAdmin reports whether the role may enter the back office.
func (r Role) IsAdmin() bool {
	return r == RoleAdmin || r == RoleSuperadmin
}

type User struct {
	ID           uint64    `json:"id"`
	Username     string    `json:"username"`
	FirstName    string    `json:"first_name"`
	LastName     string    `json:"last_name"`
	Email        string    `json:"email"`
	PasswordHash string    `json:"-"`
	Address      string    `json:"address"`
	Role         Role      `json:"role"`
	CreatedAt    time.Time `json:"created_at"`
}

func (u *User) FullName() string {
	return u.FirstName + " " + u.LastName
}

type Session struct {
	ID        string
	UserID    uint64
	ExpiresAt time.Time
	CreatedAt time.Time
}

// Loyalty levels shown on the profile page.
const (
	LevelNew    = "New"
	LevelBronze = "Bronze"
	LevelSilver = "Silver VIP"
	LevelGold   = "Gold VIP"
)

const pointsPerOrder = 100

type ProfileStats struct {
	TotalOrders int64  `json:"total_orders"`
	TotalSpent  int64  `json:"total_spent"`
	Points      int64  `json:"points"`
	Level       string `json:"level"`
}

func NewProfileStats(orders, spent int64) ProfileStats {
	level := LevelNew
	switch {
	case orders >= 10:
		level = LevelGold
	case orders >= 5:
		level = LevelSilver
	case orders >= 2:
		level = LevelBronze
	}
	return ProfileStats{
		TotalOrders: orders,
		TotalSpent:  spent,
		Points:      orders * pointsPerOrder,
		Level:       level,
	}
}

// UserUpdate is a partial update applied by an admin. Nil fields are left alone.
type UserUpdate struct {
	FirstName *string
	LastName  *string
	Email     *string
	Role      *Role
}

type UserWithStats struct {
	User
	OrderCount int64 `json:"order_count"`
	TotalSpent int64 `json:"total_spent"`
}
