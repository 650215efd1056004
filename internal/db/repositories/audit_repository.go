// audit_repository.go implements AuditRepository, providing database queries for writing
// and retrieving audit log entries with support for filtered queries across users,
// entities, and log types.
package repositories

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/hiring-pipeline/hiring-pipeline/internal/db/models"
)

// DefaultAuditTake is the page size applied when a query gives no take.
const DefaultAuditTake = 100

// AuditRepository handles audit log database operations
type AuditRepository struct {
	db *sql.DB
}

// NewAuditRepository creates a new AuditRepository
func NewAuditRepository(db *sql.DB) *AuditRepository {
	return &AuditRepository{db: db}
}

// AuditFilters contains filters for querying audit logs. Nil fields are not
// applied; set fields are combined with AND.
type AuditFilters struct {
	UserID    *int64
	Username  *string
	Action    *string
	Entity    *string
	EntityID  *int64
	LogType   *string
	StartDate *time.Time
	EndDate   *time.Time
}

const auditColumns = `id, user_id, username, user_role, ip_address, user_agent,
		action, entity, entity_id, changes, details, log_type, created_at`

// CreateAuditLog creates a new audit log entry
func (r *AuditRepository) CreateAuditLog(ctx context.Context, log *models.AuditLog) error {
	log.ID = uuid.New().String()
	log.CreatedAt = time.Now()

	// Marshal changes to JSONB
	var changesJSON []byte
	var err error
	if log.Changes != nil {
		changesJSON, err = json.Marshal(log.Changes)
		if err != nil {
			return err
		}
	}

	query := `
		INSERT INTO audit_logs (id, user_id, username, user_role, ip_address, user_agent,
			action, entity, entity_id, changes, details, log_type, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
	`

	_, err = r.db.ExecContext(ctx, query,
		log.ID,
		log.UserID,
		log.Username,
		log.UserRole,
		log.IPAddress,
		log.UserAgent,
		log.Action,
		log.Entity,
		log.EntityID,
		changesJSON,
		log.Details,
		log.LogType,
		log.CreatedAt,
	)

	return err
}

// ListAuditLogs retrieves audit logs newest-first with optional filters and
// pagination, plus the total count matching the filters irrespective of paging.
// A non-positive take falls back to DefaultAuditTake.
func (r *AuditRepository) ListAuditLogs(ctx context.Context, filters AuditFilters, skip, take int) ([]*models.AuditLog, int, error) {
	if take <= 0 {
		take = DefaultAuditTake
	}
	if skip < 0 {
		skip = 0
	}

	countQuery := `SELECT COUNT(*) FROM audit_logs WHERE 1=1`
	query := `SELECT ` + auditColumns + ` FROM audit_logs WHERE 1=1`

	where, args := buildAuditWhere(filters)
	countQuery += where
	query += where

	// Get total count
	var total int
	if err := r.db.QueryRowContext(ctx, countQuery, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	// Add ordering and pagination
	query += fmt.Sprintf(` ORDER BY created_at DESC LIMIT $%d OFFSET $%d`, len(args)+1, len(args)+2)
	args = append(args, take, skip)

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	logs, err := scanAuditLogs(rows)
	if err != nil {
		return nil, 0, err
	}

	return logs, total, nil
}

// ListAllAuditLogs retrieves every audit log matching the filters newest-first
// without pagination. Used by the CSV export. A positive limit caps the result
// set; zero means unbounded.
func (r *AuditRepository) ListAllAuditLogs(ctx context.Context, filters AuditFilters, limit int) ([]*models.AuditLog, error) {
	query := `SELECT ` + auditColumns + ` FROM audit_logs WHERE 1=1`
	where, args := buildAuditWhere(filters)
	query += where + ` ORDER BY created_at DESC`
	if limit > 0 {
		query += fmt.Sprintf(` LIMIT $%d`, len(args)+1)
		args = append(args, limit)
	}

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return scanAuditLogs(rows)
}

// GetAuditLog retrieves a single audit log entry by ID
func (r *AuditRepository) GetAuditLog(ctx context.Context, logID string) (*models.AuditLog, error) {
	query := `SELECT ` + auditColumns + ` FROM audit_logs WHERE id = $1`

	rows, err := r.db.QueryContext(ctx, query, logID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	logs, err := scanAuditLogs(rows)
	if err != nil {
		return nil, err
	}
	if len(logs) == 0 {
		return nil, nil
	}

	return logs[0], nil
}

// DeleteAuditLog removes one audit log entry, reporting whether it existed.
func (r *AuditRepository) DeleteAuditLog(ctx context.Context, logID string) (bool, error) {
	res, err := r.db.ExecContext(ctx, `DELETE FROM audit_logs WHERE id = $1`, logID)
	if err != nil {
		return false, err
	}

	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}

	return n > 0, nil
}

// DeleteAllAuditLogs clears the audit log table and returns how many entries
// were removed.
func (r *AuditRepository) DeleteAllAuditLogs(ctx context.Context) (int64, error) {
	res, err := r.db.ExecContext(ctx, `DELETE FROM audit_logs`)
	if err != nil {
		return 0, err
	}

	return res.RowsAffected()
}

// buildAuditWhere renders the filters into an AND clause chain with positional
// parameters, shared by the page, count, and export queries so they can never
// disagree on what matches.
func buildAuditWhere(filters AuditFilters) (string, []interface{}) {
	where := ""
	args := make([]interface{}, 0)

	add := func(clause string, value interface{}) {
		where += fmt.Sprintf(clause, len(args)+1)
		args = append(args, value)
	}

	if filters.UserID != nil {
		add(` AND user_id = $%d`, *filters.UserID)
	}
	if filters.Username != nil {
		add(` AND username = $%d`, *filters.Username)
	}
	if filters.Action != nil {
		add(` AND action = $%d`, *filters.Action)
	}
	if filters.Entity != nil {
		add(` AND entity = $%d`, *filters.Entity)
	}
	if filters.EntityID != nil {
		add(` AND entity_id = $%d`, *filters.EntityID)
	}
	if filters.LogType != nil {
		add(` AND log_type = $%d`, *filters.LogType)
	}
	if filters.StartDate != nil {
		add(` AND created_at >= $%d`, *filters.StartDate)
	}
	if filters.EndDate != nil {
		add(` AND created_at <= $%d`, *filters.EndDate)
	}

	return where, args
}

func scanAuditLogs(rows *sql.Rows) ([]*models.AuditLog, error) {
	logs := make([]*models.AuditLog, 0)
	for rows.Next() {
		log := &models.AuditLog{}
		var changesJSON []byte

		err := rows.Scan(
			&log.ID,
			&log.UserID,
			&log.Username,
			&log.UserRole,
			&log.IPAddress,
			&log.UserAgent,
			&log.Action,
			&log.Entity,
			&log.EntityID,
			&changesJSON,
			&log.Details,
			&log.LogType,
			&log.CreatedAt,
		)
		if err != nil {
			return nil, err
		}

		if changesJSON != nil {
			if err := json.Unmarshal(changesJSON, &log.Changes); err != nil {
				return nil, err
			}
		}

		logs = append(logs, log)
	}

	return logs, rows.Err()
}
