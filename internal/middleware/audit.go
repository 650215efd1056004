// audit.go provides Gin middleware that classifies completed requests and records
// them to the audit log.
package middleware

import (
	"context"
	"log/slog"

	"github.com/gin-gonic/gin"
	"github.com/hiring-pipeline/hiring-pipeline/internal/audit"
	"github.com/hiring-pipeline/hiring-pipeline/internal/db/models"
	"github.com/hiring-pipeline/hiring-pipeline/internal/telemetry"
)

// Context keys handlers use to enrich the audit record for their request.
const (
	// ContextAuditChanges holds a map[string]interface{} of field-level changes.
	ContextAuditChanges = "audit_changes"
	// ContextAuditDetails holds a free-form detail string.
	ContextAuditDetails = "audit_details"
)

// Recorder persists one audit log entry. *repositories.AuditRepository satisfies
// it; tests substitute a capture implementation.
type Recorder interface {
	CreateAuditLog(ctx context.Context, log *models.AuditLog) error
}

// AuditMiddleware classifies each completed request against the policy and
// records the named ones through the recorder. Recording is synchronous and
// best-effort: a failed write is logged and counted but never surfaces to the
// client, whose request already succeeded.
func AuditMiddleware(policy *audit.Policy, rec Recorder) gin.HandlerFunc {
	return func(c *gin.Context) {
		// Process request first
		c.Next()

		if c.Request.Method == "OPTIONS" {
			return
		}

		path := c.Request.URL.Path
		if policy.ShouldSkip(path) {
			return
		}

		// Anonymous traffic that got this far (optional-auth routes) is not
		// attributed to anyone and is not recorded.
		userID, authenticated := UserID(c)
		if !authenticated {
			return
		}

		info := audit.RequestInfo{
			Method:         c.Request.Method,
			Path:           path,
			Referer:        c.GetHeader("Referer"),
			DashboardFetch: c.GetHeader(policy.DashboardHeader) != "",
		}

		cls := policy.Classify(info)
		if !cls.Persist {
			telemetry.AuditRecordsSkipped.Inc()
			return
		}

		entry := &models.AuditLog{
			UserID:    &userID,
			Username:  Username(c),
			UserRole:  PrimaryRole(c),
			IPAddress: audit.ClientIP(c.Request.Header, c.Request.RemoteAddr),
			UserAgent: c.Request.UserAgent(),
			Action:    cls.Action,
			Entity:    cls.Entity,
			EntityID:  cls.EntityID,
			LogType:   cls.LogType,
		}

		if changes, exists := c.Get(ContextAuditChanges); exists {
			if m, ok := changes.(map[string]interface{}); ok {
				entry.Changes = m
			}
		}
		if details, exists := c.Get(ContextAuditDetails); exists {
			if s, ok := details.(string); ok && s != "" {
				entry.Details = &s
			}
		}

		if err := rec.CreateAuditLog(c.Request.Context(), entry); err != nil {
			telemetry.AuditWriteFailures.Inc()
			slog.Error("audit log write failed",
				"action", entry.Action,
				"entity", entry.Entity,
				"user_id", userID,
				"error", err)
			return
		}

		telemetry.AuditEntriesTotal.WithLabelValues(entry.LogType).Inc()
	}
}

// PrimaryRole renders the actor's role snapshot for the audit record. Multiple
// roles are joined so the record stays a single denormalized string.
func PrimaryRole(c *gin.Context) string {
	roles := UserRoles(c)
	if len(roles) == 0 {
		return ""
	}
	out := roles[0]
	for _, r := range roles[1:] {
		out += "," + r
	}
	return out
}
