package domain

import "time"

// Role enumerates account roles. Roles carry no ordering; authorization
// checks are exact set membership, never rank comparison.
type Role string

const (
	RoleAdmin  Role = "ADMIN"
	RoleStaff  Role = "STAFF"
	RoleMember Role = "MEMBER"
)

// ValidRole reports whether r is one of the known roles.
func ValidRole(r Role) bool {
	switch r {
	case RoleAdmin, RoleStaff, RoleMember:
		return true
	}
	return false
}

// User is the domain model for a registered account.
type User struct {
	ID           string
	Name         string
	Email        string
	PasswordHash string
	Role         Role
	IsActive     bool
	CreatedAt    time.Time
	UpdatedAt    time.Time
}
