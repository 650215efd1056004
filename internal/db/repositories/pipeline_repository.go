// pipeline_repository.go implements PipelineRepository, providing database queries for
// candidates, requisitions, applications, and the stage-history trail.
package repositories

import (
	"context"
	"database/sql"
	"time"

	"github.com/hiring-pipeline/hiring-pipeline/internal/db/models"
)

// PipelineRepository handles hiring-pipeline entity database operations
type PipelineRepository struct {
	db *sql.DB
}

// NewPipelineRepository creates a new PipelineRepository
func NewPipelineRepository(db *sql.DB) *PipelineRepository {
	return &PipelineRepository{db: db}
}

// ============================================================================
// Candidates
// ============================================================================

// CreateCandidate creates a new candidate and fills in the generated ID
func (r *PipelineRepository) CreateCandidate(ctx context.Context, c *models.Candidate) error {
	c.CreatedAt = time.Now()
	c.UpdatedAt = c.CreatedAt

	query := `
		INSERT INTO candidates (first_name, last_name, email, phone, source, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id
	`

	return r.db.QueryRowContext(ctx, query,
		c.FirstName, c.LastName, c.Email, c.Phone, c.Source, c.CreatedAt, c.UpdatedAt,
	).Scan(&c.ID)
}

// GetCandidate retrieves a candidate by ID
func (r *PipelineRepository) GetCandidate(ctx context.Context, id int64) (*models.Candidate, error) {
	query := `
		SELECT id, first_name, last_name, email, phone, source, created_at, updated_at
		FROM candidates
		WHERE id = $1
	`

	c := &models.Candidate{}
	err := r.db.QueryRowContext(ctx, query, id).Scan(
		&c.ID, &c.FirstName, &c.LastName, &c.Email, &c.Phone, &c.Source, &c.CreatedAt, &c.UpdatedAt,
	)

	if err == sql.ErrNoRows {
		return nil, nil
	}

	if err != nil {
		return nil, err
	}

	return c, nil
}

// ListCandidates retrieves all candidates, most recently added first
func (r *PipelineRepository) ListCandidates(ctx context.Context) ([]*models.Candidate, error) {
	query := `
		SELECT id, first_name, last_name, email, phone, source, created_at, updated_at
		FROM candidates
		ORDER BY created_at DESC
	`

	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	candidates := make([]*models.Candidate, 0)
	for rows.Next() {
		c := &models.Candidate{}
		if err := rows.Scan(
			&c.ID, &c.FirstName, &c.LastName, &c.Email, &c.Phone, &c.Source, &c.CreatedAt, &c.UpdatedAt,
		); err != nil {
			return nil, err
		}
		candidates = append(candidates, c)
	}

	return candidates, rows.Err()
}

// UpdateCandidate updates a candidate's fields
func (r *PipelineRepository) UpdateCandidate(ctx context.Context, c *models.Candidate) error {
	c.UpdatedAt = time.Now()

	query := `
		UPDATE candidates
		SET first_name = $2, last_name = $3, email = $4, phone = $5, source = $6, updated_at = $7
		WHERE id = $1
	`

	_, err := r.db.ExecContext(ctx, query,
		c.ID, c.FirstName, c.LastName, c.Email, c.Phone, c.Source, c.UpdatedAt,
	)
	return err
}

// DeleteCandidate removes a candidate, reporting whether it existed.
func (r *PipelineRepository) DeleteCandidate(ctx context.Context, id int64) (bool, error) {
	res, err := r.db.ExecContext(ctx, `DELETE FROM candidates WHERE id = $1`, id)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	return n > 0, err
}

// ============================================================================
// Requisitions
// ============================================================================

// CreateRequisition creates a new requisition in draft status
func (r *PipelineRepository) CreateRequisition(ctx context.Context, req *models.Requisition) error {
	req.Status = models.RequisitionDraft
	req.CreatedAt = time.Now()
	req.UpdatedAt = req.CreatedAt

	query := `
		INSERT INTO requisitions (title, department, description, status, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id
	`

	return r.db.QueryRowContext(ctx, query,
		req.Title, req.Department, req.Description, req.Status, req.CreatedAt, req.UpdatedAt,
	).Scan(&req.ID)
}

// GetRequisition retrieves a requisition by ID
func (r *PipelineRepository) GetRequisition(ctx context.Context, id int64) (*models.Requisition, error) {
	query := `
		SELECT id, title, department, description, status, created_at, updated_at
		FROM requisitions
		WHERE id = $1
	`

	req := &models.Requisition{}
	err := r.db.QueryRowContext(ctx, query, id).Scan(
		&req.ID, &req.Title, &req.Department, &req.Description, &req.Status, &req.CreatedAt, &req.UpdatedAt,
	)

	if err == sql.ErrNoRows {
		return nil, nil
	}

	if err != nil {
		return nil, err
	}

	return req, nil
}

// ListRequisitions retrieves requisitions, optionally filtered by status
func (r *PipelineRepository) ListRequisitions(ctx context.Context, status *string) ([]*models.Requisition, error) {
	query := `
		SELECT id, title, department, description, status, created_at, updated_at
		FROM requisitions
	`

	args := make([]interface{}, 0)
	if status != nil {
		query += ` WHERE status = $1`
		args = append(args, *status)
	}
	query += ` ORDER BY created_at DESC`

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	reqs := make([]*models.Requisition, 0)
	for rows.Next() {
		req := &models.Requisition{}
		if err := rows.Scan(
			&req.ID, &req.Title, &req.Department, &req.Description, &req.Status, &req.CreatedAt, &req.UpdatedAt,
		); err != nil {
			return nil, err
		}
		reqs = append(reqs, req)
	}

	return reqs, rows.Err()
}

// UpdateRequisition updates a requisition's descriptive fields
func (r *PipelineRepository) UpdateRequisition(ctx context.Context, req *models.Requisition) error {
	req.UpdatedAt = time.Now()

	query := `
		UPDATE requisitions
		SET title = $2, department = $3, description = $4, updated_at = $5
		WHERE id = $1
	`

	_, err := r.db.ExecContext(ctx, query,
		req.ID, req.Title, req.Department, req.Description, req.UpdatedAt,
	)
	return err
}

// SetRequisitionStatus moves a requisition between lifecycle states, guarded by
// the expected current status. Returns false when the requisition is missing or
// not in the expected state.
func (r *PipelineRepository) SetRequisitionStatus(ctx context.Context, id int64, from, to string) (bool, error) {
	query := `
		UPDATE requisitions
		SET status = $3, updated_at = $4
		WHERE id = $1 AND status = $2
	`

	res, err := r.db.ExecContext(ctx, query, id, from, to, time.Now())
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	return n > 0, err
}

// ============================================================================
// Applications
// ============================================================================

// CreateApplication creates a new application in the initial stage
func (r *PipelineRepository) CreateApplication(ctx context.Context, a *models.Application) error {
	a.AppliedAt = time.Now()
	a.UpdatedAt = a.AppliedAt

	query := `
		INSERT INTO applications (candidate_id, requisition_id, current_stage, status, applied_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id
	`

	return r.db.QueryRowContext(ctx, query,
		a.CandidateID, a.RequisitionID, a.CurrentStage, a.Status, a.AppliedAt, a.UpdatedAt,
	).Scan(&a.ID)
}

// GetApplication retrieves an application by ID
func (r *PipelineRepository) GetApplication(ctx context.Context, id int64) (*models.Application, error) {
	query := `
		SELECT id, candidate_id, requisition_id, current_stage, status, applied_at, updated_at
		FROM applications
		WHERE id = $1
	`

	a := &models.Application{}
	err := r.db.QueryRowContext(ctx, query, id).Scan(
		&a.ID, &a.CandidateID, &a.RequisitionID, &a.CurrentStage, &a.Status, &a.AppliedAt, &a.UpdatedAt,
	)

	if err == sql.ErrNoRows {
		return nil, nil
	}

	if err != nil {
		return nil, err
	}

	return a, nil
}

// ListApplications retrieves applications, optionally scoped to one requisition
// or one candidate
func (r *PipelineRepository) ListApplications(ctx context.Context, requisitionID, candidateID *int64) ([]*models.Application, error) {
	query := `
		SELECT id, candidate_id, requisition_id, current_stage, status, applied_at, updated_at
		FROM applications
		WHERE 1=1
	`

	args := make([]interface{}, 0)
	if requisitionID != nil {
		query += ` AND requisition_id = $1`
		args = append(args, *requisitionID)
	}
	if candidateID != nil {
		if len(args) == 0 {
			query += ` AND candidate_id = $1`
		} else {
			query += ` AND candidate_id = $2`
		}
		args = append(args, *candidateID)
	}
	query += ` ORDER BY applied_at DESC`

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	apps := make([]*models.Application, 0)
	for rows.Next() {
		a := &models.Application{}
		if err := rows.Scan(
			&a.ID, &a.CandidateID, &a.RequisitionID, &a.CurrentStage, &a.Status, &a.AppliedAt, &a.UpdatedAt,
		); err != nil {
			return nil, err
		}
		apps = append(apps, a)
	}

	return apps, rows.Err()
}

// MoveApplicationStage transitions an application to a new stage and appends the
// stage-history row in one transaction, so the trail can never miss a move.
// Returns the previous stage and false when the application does not exist.
func (r *PipelineRepository) MoveApplicationStage(ctx context.Context, applicationID int64, toStage string, movedBy *int64, note *string) (string, bool, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return "", false, err
	}
	defer tx.Rollback()

	now := time.Now()

	var fromStage string
	lock := `SELECT current_stage FROM applications WHERE id = $1 FOR UPDATE`
	err = tx.QueryRowContext(ctx, lock, applicationID).Scan(&fromStage)
	if err == sql.ErrNoRows {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}

	update := `
		UPDATE applications
		SET current_stage = $2, updated_at = $3
		WHERE id = $1
	`
	if _, err := tx.ExecContext(ctx, update, applicationID, toStage, now); err != nil {
		return "", false, err
	}

	insert := `
		INSERT INTO stage_history (application_id, from_stage, to_stage, moved_by, note, moved_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`

	if _, err := tx.ExecContext(ctx, insert, applicationID, fromStage, toStage, movedBy, note, now); err != nil {
		return "", false, err
	}

	if err := tx.Commit(); err != nil {
		return "", false, err
	}

	return fromStage, true, nil
}

// ============================================================================
// Stage history
// ============================================================================

// ListStageHistory retrieves the stage transitions of one application in order
func (r *PipelineRepository) ListStageHistory(ctx context.Context, applicationID int64) ([]*models.StageHistory, error) {
	query := `
		SELECT id, application_id, from_stage, to_stage, moved_by, note, moved_at
		FROM stage_history
		WHERE application_id = $1
		ORDER BY moved_at
	`

	rows, err := r.db.QueryContext(ctx, query, applicationID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	history := make([]*models.StageHistory, 0)
	for rows.Next() {
		h := &models.StageHistory{}
		if err := rows.Scan(
			&h.ID, &h.ApplicationID, &h.FromStage, &h.ToStage, &h.MovedBy, &h.Note, &h.MovedAt,
		); err != nil {
			return nil, err
		}
		history = append(history, h)
	}

	return history, rows.Err()
}
