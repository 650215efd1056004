// auditlogs.go implements the audit trail endpoints: filtered listing with
// pagination, per-entity and per-user views, CSV export, purging, and the
// anonymous-allowed self-report endpoint used by front-end actions that never
// reach the classified API surface.
package admin

import (
	"database/sql"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/hiring-pipeline/hiring-pipeline/internal/audit"
	"github.com/hiring-pipeline/hiring-pipeline/internal/config"
	"github.com/hiring-pipeline/hiring-pipeline/internal/db/models"
	"github.com/hiring-pipeline/hiring-pipeline/internal/db/repositories"
	"github.com/hiring-pipeline/hiring-pipeline/internal/middleware"
)

// AuditLogHandlers handles audit trail endpoints
type AuditLogHandlers struct {
	cfg       *config.Config
	db        *sql.DB
	auditRepo *repositories.AuditRepository
}

// NewAuditLogHandlers creates a new AuditLogHandlers instance
func NewAuditLogHandlers(cfg *config.Config, db *sql.DB) *AuditLogHandlers {
	return &AuditLogHandlers{
		cfg:       cfg,
		db:        db,
		auditRepo: repositories.NewAuditRepository(db),
	}
}

type selfReportRequest struct {
	Action   string  `json:"action" binding:"required"`
	Entity   string  `json:"entity" binding:"required"`
	EntityID *int64  `json:"entityId"`
	Details  *string `json:"details"`
}

// auditLogJSON shapes an audit record for API responses.
func auditLogJSON(l *models.AuditLog) gin.H {
	return gin.H{
		"id":        l.ID,
		"createdAt": l.CreatedAt,
		"userId":    l.UserID,
		"username":  l.Username,
		"userRole":  l.UserRole,
		"ipAddress": l.IPAddress,
		"userAgent": l.UserAgent,
		"action":    l.Action,
		"entity":    l.Entity,
		"entityId":  l.EntityID,
		"logType":   l.LogType,
		"changes":   l.Changes,
		"details":   l.Details,
	}
}

func auditLogsJSON(logs []*models.AuditLog) []gin.H {
	out := make([]gin.H, 0, len(logs))
	for _, l := range logs {
		out = append(out, auditLogJSON(l))
	}
	return out
}

// parseAuditFilters reads the shared filter query parameters. Dates accept
// RFC3339 or plain YYYY-MM-DD; a bare end date is pushed to end of day so the
// range is inclusive.
func parseAuditFilters(c *gin.Context) (repositories.AuditFilters, error) {
	var f repositories.AuditFilters

	if v := c.Query("userId"); v != "" {
		id, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return f, fmt.Errorf("invalid userId %q", v)
		}
		f.UserID = &id
	}
	if v := c.Query("username"); v != "" {
		f.Username = &v
	}
	if v := c.Query("action"); v != "" {
		f.Action = &v
	}
	if v := c.Query("entity"); v != "" {
		f.Entity = &v
	}
	if v := c.Query("entityId"); v != "" {
		id, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return f, fmt.Errorf("invalid entityId %q", v)
		}
		f.EntityID = &id
	}
	if v := c.Query("logType"); v != "" {
		f.LogType = &v
	}
	if v := c.Query("fromDate"); v != "" {
		t, err := parseDate(v, false)
		if err != nil {
			return f, fmt.Errorf("invalid fromDate %q", v)
		}
		f.StartDate = &t
	}
	if v := c.Query("toDate"); v != "" {
		t, err := parseDate(v, true)
		if err != nil {
			return f, fmt.Errorf("invalid toDate %q", v)
		}
		f.EndDate = &t
	}

	return f, nil
}

func parseDate(v string, endOfDay bool) (time.Time, error) {
	if t, err := time.Parse(time.RFC3339, v); err == nil {
		return t, nil
	}
	t, err := time.Parse("2006-01-02", v)
	if err != nil {
		return time.Time{}, err
	}
	if endOfDay {
		t = t.Add(24*time.Hour - time.Nanosecond)
	}
	return t, nil
}

func parsePaging(c *gin.Context) (skip, take int) {
	skip, _ = strconv.Atoi(c.DefaultQuery("skip", "0"))
	take, _ = strconv.Atoi(c.DefaultQuery("take", "0"))
	if skip < 0 {
		skip = 0
	}
	return skip, take
}

func (h *AuditLogHandlers) listWithFilters(c *gin.Context, filters repositories.AuditFilters) {
	skip, take := parsePaging(c)

	logs, total, err := h.auditRepo.ListAuditLogs(c.Request.Context(), filters, skip, take)
	if err != nil {
		slog.Error("list audit logs failed", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to list audit logs"})
		return
	}

	if take <= 0 {
		take = repositories.DefaultAuditTake
	}

	c.JSON(http.StatusOK, gin.H{
		"auditLogs":  auditLogsJSON(logs),
		"totalCount": total,
		"skip":       skip,
		"take":       take,
	})
}

// @Summary      List audit logs
// @Description  Get audit records newest-first with optional filters and skip/take pagination. Requires the Admin role.
// @Tags         AuditLogs
// @Security     Bearer
// @Produce      json
// @Param        userId    query  int     false  "Filter by acting user"
// @Param        username  query  string  false  "Filter by username snapshot"
// @Param        action    query  string  false  "Filter by action label"
// @Param        entity    query  string  false  "Filter by entity name"
// @Param        entityId  query  int     false  "Filter by entity ID"
// @Param        logType   query  string  false  "Filter by log type"
// @Param        fromDate  query  string  false  "Range start (RFC3339 or YYYY-MM-DD)"
// @Param        toDate    query  string  false  "Range end, inclusive"
// @Param        skip      query  int     false  "Rows to skip (default 0)"
// @Param        take      query  int     false  "Rows to return (default 100)"
// @Success      200  {object}  map[string]interface{}  "auditLogs, totalCount, skip, take"
// @Failure      400  {object}  map[string]interface{}  "Invalid filter"
// @Router       /api/v1/auditlogs [get]
// ListAuditLogsHandler lists audit records with filters and pagination
// GET /api/v1/auditlogs
func (h *AuditLogHandlers) ListAuditLogsHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		filters, err := parseAuditFilters(c)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}

		h.listWithFilters(c, filters)
	}
}

// @Summary      List audit logs for an entity
// @Description  Get the audit trail of one entity, newest-first.
// @Tags         AuditLogs
// @Security     Bearer
// @Produce      json
// @Param        entity    path  string  true  "Entity name, e.g. Candidate"
// @Param        entityId  path  int     true  "Entity ID"
// @Success      200  {object}  map[string]interface{}  "auditLogs, totalCount, skip, take"
// @Router       /api/v1/auditlogs/entity/{entity}/{entityId} [get]
// ListEntityAuditLogsHandler lists the audit trail of one entity
// GET /api/v1/auditlogs/entity/:entity/:entityId
func (h *AuditLogHandlers) ListEntityAuditLogsHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		entity := c.Param("entity")
		entityID, ok := pathID(c, "entityId")
		if !ok {
			return
		}

		filters := repositories.AuditFilters{Entity: &entity, EntityID: &entityID}
		h.listWithFilters(c, filters)
	}
}

// @Summary      List audit logs for a user
// @Description  Get every action recorded for one acting user, newest-first.
// @Tags         AuditLogs
// @Security     Bearer
// @Produce      json
// @Param        userId  path  int  true  "User ID"
// @Success      200  {object}  map[string]interface{}  "auditLogs, totalCount, skip, take"
// @Router       /api/v1/auditlogs/user/{userId} [get]
// ListUserAuditLogsHandler lists the actions recorded for one user
// GET /api/v1/auditlogs/user/:userId
func (h *AuditLogHandlers) ListUserAuditLogsHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		userID, ok := pathID(c, "userId")
		if !ok {
			return
		}

		filters := repositories.AuditFilters{UserID: &userID}
		h.listWithFilters(c, filters)
	}
}

// @Summary      Export audit logs
// @Description  Download the audit trail as a CSV attachment. Accepts the same filters as the list endpoint; pagination does not apply.
// @Tags         AuditLogs
// @Security     Bearer
// @Produce      text/csv
// @Success      200  {string}  string  "CSV file"
// @Router       /api/v1/auditlogs/export [get]
// ExportAuditLogsHandler streams the filtered audit trail as CSV
// GET /api/v1/auditlogs/export
func (h *AuditLogHandlers) ExportAuditLogsHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		filters, err := parseAuditFilters(c)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}

		logs, err := h.auditRepo.ListAllAuditLogs(c.Request.Context(), filters, h.cfg.Audit.ExportTakeLimit)
		if err != nil {
			slog.Error("audit export failed", "error", err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to export audit logs"})
			return
		}

		filename := "audit-logs-" + time.Now().Format("2006-01-02") + ".csv"
		c.Header("Content-Type", "text/csv")
		c.Header("Content-Disposition", `attachment; filename="`+filename+`"`)
		c.Status(http.StatusOK)

		rows := make([]models.AuditLog, 0, len(logs))
		for _, l := range logs {
			rows = append(rows, *l)
		}
		if err := audit.WriteCSV(c.Writer, rows); err != nil {
			slog.Error("audit export write failed", "error", err)
		}
	}
}

// @Summary      Get audit log
// @Description  Get a single audit record by ID.
// @Tags         AuditLogs
// @Security     Bearer
// @Produce      json
// @Param        id  path  string  true  "Audit record ID"
// @Success      200  {object}  map[string]interface{}  "auditLog"
// @Failure      404  {object}  map[string]interface{}  "Audit log not found"
// @Router       /api/v1/auditlogs/{id} [get]
// GetAuditLogHandler retrieves a single audit record
// GET /api/v1/auditlogs/:id
func (h *AuditLogHandlers) GetAuditLogHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		log, err := h.auditRepo.GetAuditLog(c.Request.Context(), c.Param("id"))
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to retrieve audit log"})
			return
		}
		if log == nil {
			c.JSON(http.StatusNotFound, gin.H{"error": "Audit log not found"})
			return
		}

		c.JSON(http.StatusOK, gin.H{"auditLog": auditLogJSON(log)})
	}
}

// @Summary      Delete audit log
// @Description  Delete a single audit record.
// @Tags         AuditLogs
// @Security     Bearer
// @Produce      json
// @Param        id  path  string  true  "Audit record ID"
// @Success      200  {object}  map[string]interface{}  "message"
// @Failure      404  {object}  map[string]interface{}  "Audit log not found"
// @Router       /api/v1/auditlogs/{id} [delete]
// DeleteAuditLogHandler deletes a single audit record
// DELETE /api/v1/auditlogs/:id
func (h *AuditLogHandlers) DeleteAuditLogHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		deleted, err := h.auditRepo.DeleteAuditLog(c.Request.Context(), c.Param("id"))
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to delete audit log"})
			return
		}
		if !deleted {
			c.JSON(http.StatusNotFound, gin.H{"error": "Audit log not found"})
			return
		}

		c.JSON(http.StatusOK, gin.H{"message": "Audit log deleted"})
	}
}

// @Summary      Clear audit logs
// @Description  Delete the entire audit trail. Irreversible.
// @Tags         AuditLogs
// @Security     Bearer
// @Produce      json
// @Success      200  {object}  map[string]interface{}  "message, deleted"
// @Router       /api/v1/auditlogs/clear [delete]
// ClearAuditLogsHandler purges the entire audit trail
// DELETE /api/v1/auditlogs/clear
func (h *AuditLogHandlers) ClearAuditLogsHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		n, err := h.auditRepo.DeleteAllAuditLogs(c.Request.Context())
		if err != nil {
			slog.Error("audit purge failed", "error", err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to clear audit logs"})
			return
		}

		actor, _ := middleware.UserID(c)
		slog.Warn("audit trail cleared", "deleted", n, "by_user_id", actor)

		c.JSON(http.StatusOK, gin.H{"message": "Audit logs cleared", "deleted": n})
	}
}

// @Summary      Self-report an action
// @Description  Record a front-end action that never reaches the classified API surface, such as opening a report view. Anonymous callers are accepted; the actor snapshot is taken from the token when one is presented.
// @Tags         AuditLogs
// @Accept       json
// @Produce      json
// @Param        body  body  selfReportRequest  true  "Action to record"
// @Success      201  {object}  map[string]interface{}  "auditLog"
// @Failure      400  {object}  map[string]interface{}  "Validation error"
// @Router       /api/v1/auditlogs/log [post]
// SelfReportHandler records a client-reported action
// POST /api/v1/auditlogs/log
func (h *AuditLogHandlers) SelfReportHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		var req selfReportRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "action and entity are required"})
			return
		}

		entry := &models.AuditLog{
			Username:  "Anonymous",
			IPAddress: audit.ClientIP(c.Request.Header, c.Request.RemoteAddr),
			UserAgent: c.Request.UserAgent(),
			Action:    req.Action,
			Entity:    req.Entity,
			EntityID:  req.EntityID,
			Details:   req.Details,
			LogType:   models.LogTypeUserAction,
		}

		if id, ok := middleware.UserID(c); ok {
			entry.UserID = &id
			entry.Username = middleware.Username(c)
			entry.UserRole = middleware.PrimaryRole(c)
		}

		if err := h.auditRepo.CreateAuditLog(c.Request.Context(), entry); err != nil {
			slog.Error("self-reported audit write failed", "error", err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to record action"})
			return
		}

		c.JSON(http.StatusCreated, gin.H{"auditLog": auditLogJSON(entry)})
	}
}
