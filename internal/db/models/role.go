// role.go defines the RBAC reference models: roles, permissions, and the two join
// entities that tie users to roles and roles to permissions.
package models

import "time"

// Role is a named permission bundle shared by many users (e.g. "Admin", "Recruiter").
type Role struct {
	ID          int64
	Name        string
	Description string
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// Permission is an atomic capability identified by a (Resource, Action) pair plus a
// unique name such as "candidates:delete". Permissions are immutable reference data.
type Permission struct {
	ID       int64
	Name     string
	Resource string
	Action   string
}

// UserRole links a user to a role. The (UserID, RoleID) pair is unique.
// ExpiresAt is advisory by default: an assignment past its expiry is still returned
// by the permission traversal unless auth.enforce_role_expiry is enabled.
type UserRole struct {
	UserID     int64
	RoleID     int64
	AssignedAt time.Time
	ExpiresAt  *time.Time
}

// RolePermission links a role to a permission. The (RoleID, PermissionID) pair is unique.
type RolePermission struct {
	RoleID       int64
	PermissionID int64
	AssignedAt   time.Time
}
