// audit_log.go defines the AuditLog model for recording classified user actions,
// capturing a denormalized actor snapshot, client IP, affected entity, and a log-type tag.
package models

import "time"

// Log type tags assigned by the audit classifier. The values are mutually exclusive
// and evaluated in a fixed precedence order (see the audit package).
const (
	LogTypeAuthentication     = "Authentication"
	LogTypeUserAction         = "UserAction"
	LogTypeBackgroundFetch    = "BackgroundFetch"
	LogTypeSystemOperation    = "SystemOperation"
	LogTypeDatabaseManagement = "DatabaseManagement"
)

// AuditLog is an append-only record of a classified request. Username and UserRole
// are snapshotted at write time rather than joined live: the record must reflect the
// actor's role at the time of the action, not after a later role change. EntityID is
// a loose reference — audit history outlives the entities it points at.
type AuditLog struct {
	ID        string
	UserID    *int64
	Username  string
	UserRole  string
	IPAddress string
	UserAgent string
	Action    string
	Entity    string
	EntityID  *int64
	Changes   map[string]interface{}
	Details   *string
	LogType   string
	CreatedAt time.Time
}
