package model

import "time"

// Role determines what a user is allowed to do in the marketplace.
type Role string

const (
	RoleBuyer  Role = "buyer"
	RoleSeller Role = "seller"
	RoleAdmin  Role = "admin"
)

// Valid reports whether the role is one of the known values.
func (r Role) Valid() bool {
	switch r {
	case RoleBuyer, RoleSeller, RoleAdmin:
		return true
	}
	return false
}

// User represents a registered marketplace account.
type User struct {
	ID           int64
	Email        string
	PasswordHash string
	Role         Role
	FullName     string
	CreatedAt    time.Time
}
