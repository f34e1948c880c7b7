// Package model defines the data structures used throughout the application.
package model

import (
	"strings"
	"time"
)

// Role determines what a user may do and which ideas they can see.
// Roles are fixed at account creation.
type Role string

const (
	RoleOwner     Role = "owner"
	RoleCustomer  Role = "customer"
	RoleDeveloper Role = "developer"
)

// ParseRole converts a raw string into a Role. The second return value
// is false when s is not one of the three known roles.
func ParseRole(s string) (Role, bool) {
	switch r := Role(s); r {
	case RoleOwner, RoleCustomer, RoleDeveloper:
		return r, true
	}
	return "", false
}

// SelfRegistrable reports whether an anonymous caller may pick this role
// at registration. Owner accounts only come from bootstrap seeding.
func (r Role) SelfRegistrable() bool {
	return r == RoleCustomer || r == RoleDeveloper
}

// User represents a registered account.
//
// PasswordHash is a bcrypt hash and is never serialized to JSON.
// Phone is optional; an empty string means "not provided".
type User struct {
	ID           int64     `json:"id"         db:"id"`
	Name         string    `json:"name"       db:"name"`
	Email        string    `json:"email"      db:"email"`
	Phone        string    `json:"phone"      db:"phone"`
	PasswordHash string    `json:"-"          db:"password_hash"`
	Role         Role      `json:"role"       db:"role"`
	CreatedAt    time.Time `json:"created_at" db:"created_at"`
}

// Identity is the authenticated caller recovered from a bearer token.
type Identity struct {
	UserID int64
	Role   Role
}

// NormalizeEmail trims and lower-cases an address so lookups and the
// uniqueness constraint are case-insensitive.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
