package audit

import (
	"encoding/csv"
	"encoding/json"
	"io"
	"strconv"
	"time"

	"github.com/hiring-pipeline/hiring-pipeline/internal/db/models"
)

// csvHeader is the fixed export column order.
var csvHeader = []string{
	"id", "created_at", "user_id", "username", "user_role",
	"ip_address", "user_agent", "action", "entity", "entity_id",
	"log_type", "changes", "details",
}

// WriteCSV streams audit logs to w as CSV, header row first. Entries are
// written in the order given; timestamps are formatted RFC 3339.
func WriteCSV(w io.Writer, logs []models.AuditLog) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(csvHeader); err != nil {
		return err
	}

	for _, l := range logs {
		userID := ""
		if l.UserID != nil {
			userID = strconv.FormatInt(*l.UserID, 10)
		}
		entityID := ""
		if l.EntityID != nil {
			entityID = strconv.FormatInt(*l.EntityID, 10)
		}
		changes := ""
		if len(l.Changes) > 0 {
			if b, err := json.Marshal(l.Changes); err == nil {
				changes = string(b)
			}
		}
		details := ""
		if l.Details != nil {
			details = *l.Details
		}

		row := []string{
			l.ID,
			l.CreatedAt.Format(time.RFC3339),
			userID,
			l.Username,
			l.UserRole,
			l.IPAddress,
			l.UserAgent,
			l.Action,
			l.Entity,
			entityID,
			l.LogType,
			changes,
			details,
		}
		if err := cw.Write(row); err != nil {
			return err
		}
	}

	cw.Flush()
	return cw.Error()
}
