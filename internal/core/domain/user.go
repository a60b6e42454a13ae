package domain

import (
	"time"

	"github.com/google/uuid"
)

// Role controls access to admin surfaces.
type Role string

const (
	RoleUser       Role = "user"
	RoleAdmin      Role = "admin"
	RoleSuperadmin Role = "superadmin"
)

// User is a prepaid-wallet account. Balance is integer VND; it must never
// go negative after a committed transaction.
type User struct {
	ID           uuid.UUID `json:"id"`
	Username     string    `json:"username"`
	PasswordHash string    `json:"-"`
	APIKey       string    `json:"-"`
	Role         Role      `json:"role"`
	Active       bool      `json:"active"`
	Balance      int64     `json:"balance"` // VND, no fractional units
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// IsAdmin reports whether the user may call admin endpoints.
func (u *User) IsAdmin() bool {
	return u.Role == RoleAdmin || u.Role == RoleSuperadmin
}
