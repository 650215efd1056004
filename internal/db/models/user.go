// Package models - user.go defines the User model for hiring-pipeline accounts with a unique
// username, salted password hash, active flag, and last-login tracking.
package models

import "time"

// User represents a user account in the system. Users are deactivated rather than
// hard-deleted so audit history keeps a resolvable actor.
type User struct {
	ID           int64
	Username     string
	Email        string
	PasswordHash string
	IsActive     bool
	LastLoginAt  *time.Time
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// UserWithRoles carries a user together with their currently assigned roles.
type UserWithRoles struct {
	User
	Roles []Role
}

// RoleNames returns the names of all assigned roles.
func (u *UserWithRoles) RoleNames() []string {
	names := make([]string, 0, len(u.Roles))
	for _, r := range u.Roles {
		names = append(names, r.Name)
	}
	return names
}
