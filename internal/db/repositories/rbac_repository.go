// rbac_repository.go implements RBACRepository, providing database queries for role and
// permission management, user-role assignment, and the permission traversal behind
// every authorization decision.
package repositories

import (
	"context"
	"database/sql"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/hiring-pipeline/hiring-pipeline/internal/db/models"
)

// RBACRepository handles database operations for RBAC features
type RBACRepository struct {
	db *sqlx.DB
}

// NewRBACRepository creates a new RBAC repository
func NewRBACRepository(db *sqlx.DB) *RBACRepository {
	return &RBACRepository{db: db}
}

// ============================================================================
// Roles
// ============================================================================

// ListRoles returns all roles ordered by name
func (r *RBACRepository) ListRoles(ctx context.Context) ([]*models.Role, error) {
	query := `SELECT id, name, description, created_at, updated_at FROM roles ORDER BY name`

	rows, err := r.db.QueryxContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var roles []*models.Role
	for rows.Next() {
		var role models.Role
		if err := rows.Scan(&role.ID, &role.Name, &role.Description, &role.CreatedAt, &role.UpdatedAt); err != nil {
			return nil, err
		}
		roles = append(roles, &role)
	}

	return roles, rows.Err()
}

// GetRole retrieves a role by ID
func (r *RBACRepository) GetRole(ctx context.Context, id int64) (*models.Role, error) {
	query := `SELECT id, name, description, created_at, updated_at FROM roles WHERE id = $1`

	var role models.Role
	err := r.db.QueryRowxContext(ctx, query, id).Scan(&role.ID, &role.Name, &role.Description, &role.CreatedAt, &role.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	return &role, nil
}

// GetRoleByName retrieves a role by name
func (r *RBACRepository) GetRoleByName(ctx context.Context, name string) (*models.Role, error) {
	query := `SELECT id, name, description, created_at, updated_at FROM roles WHERE name = $1`

	var role models.Role
	err := r.db.QueryRowxContext(ctx, query, name).Scan(&role.ID, &role.Name, &role.Description, &role.CreatedAt, &role.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	return &role, nil
}

// CreateRole creates a new role and fills in the generated ID
func (r *RBACRepository) CreateRole(ctx context.Context, role *models.Role) error {
	role.CreatedAt = time.Now()
	role.UpdatedAt = role.CreatedAt

	query := `INSERT INTO roles (name, description, created_at, updated_at)
			  VALUES ($1, $2, $3, $4) RETURNING id`

	return r.db.QueryRowxContext(ctx, query,
		role.Name, role.Description, role.CreatedAt, role.UpdatedAt).Scan(&role.ID)
}

// UpdateRole updates a role's name and description
func (r *RBACRepository) UpdateRole(ctx context.Context, role *models.Role) error {
	query := `UPDATE roles SET name = $2, description = $3, updated_at = $4 WHERE id = $1`

	_, err := r.db.ExecContext(ctx, query, role.ID, role.Name, role.Description, time.Now())
	return err
}

// DeleteRole deletes a role. Assignments and grants cascade in the schema.
func (r *RBACRepository) DeleteRole(ctx context.Context, id int64) error {
	query := `DELETE FROM roles WHERE id = $1`
	_, err := r.db.ExecContext(ctx, query, id)
	return err
}

// ============================================================================
// Permissions
// ============================================================================

// ListPermissions returns the full permission catalogue ordered by name
func (r *RBACRepository) ListPermissions(ctx context.Context) ([]*models.Permission, error) {
	query := `SELECT id, name, resource, action FROM permissions ORDER BY name`

	rows, err := r.db.QueryxContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var perms []*models.Permission
	for rows.Next() {
		var p models.Permission
		if err := rows.Scan(&p.ID, &p.Name, &p.Resource, &p.Action); err != nil {
			return nil, err
		}
		perms = append(perms, &p)
	}

	return perms, rows.Err()
}

// GetRolePermissions returns the permissions granted to one role
func (r *RBACRepository) GetRolePermissions(ctx context.Context, roleID int64) ([]*models.Permission, error) {
	query := `SELECT p.id, p.name, p.resource, p.action
			  FROM permissions p
			  JOIN role_permissions rp ON rp.permission_id = p.id
			  WHERE rp.role_id = $1
			  ORDER BY p.name`

	rows, err := r.db.QueryxContext(ctx, query, roleID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var perms []*models.Permission
	for rows.Next() {
		var p models.Permission
		if err := rows.Scan(&p.ID, &p.Name, &p.Resource, &p.Action); err != nil {
			return nil, err
		}
		perms = append(perms, &p)
	}

	return perms, rows.Err()
}

// AttachPermission grants a permission to a role. Re-granting is a no-op.
func (r *RBACRepository) AttachPermission(ctx context.Context, roleID, permissionID int64) error {
	query := `INSERT INTO role_permissions (role_id, permission_id, assigned_at)
			  VALUES ($1, $2, $3)
			  ON CONFLICT (role_id, permission_id) DO NOTHING`

	_, err := r.db.ExecContext(ctx, query, roleID, permissionID, time.Now())
	return err
}

// DetachPermission removes a permission grant from a role
func (r *RBACRepository) DetachPermission(ctx context.Context, roleID, permissionID int64) error {
	query := `DELETE FROM role_permissions WHERE role_id = $1 AND permission_id = $2`
	_, err := r.db.ExecContext(ctx, query, roleID, permissionID)
	return err
}

// ============================================================================
// User-role assignment
// ============================================================================

// AssignRole assigns a role to a user, optionally with an expiry. Re-assigning an
// existing pair updates the expiry instead of erroring.
func (r *RBACRepository) AssignRole(ctx context.Context, userID, roleID int64, expiresAt *time.Time) error {
	query := `INSERT INTO user_roles (user_id, role_id, assigned_at, expires_at)
			  VALUES ($1, $2, $3, $4)
			  ON CONFLICT (user_id, role_id) DO UPDATE SET expires_at = EXCLUDED.expires_at`

	_, err := r.db.ExecContext(ctx, query, userID, roleID, time.Now(), expiresAt)
	return err
}

// RemoveRole removes a role assignment from a user
func (r *RBACRepository) RemoveRole(ctx context.Context, userID, roleID int64) error {
	query := `DELETE FROM user_roles WHERE user_id = $1 AND role_id = $2`
	_, err := r.db.ExecContext(ctx, query, userID, roleID)
	return err
}

// GetUserRoles returns the roles assigned to a user. With enforceExpiry set,
// assignments past their expiry are filtered out; otherwise expiry is advisory
// and expired assignments still count.
func (r *RBACRepository) GetUserRoles(ctx context.Context, userID int64, enforceExpiry bool) ([]*models.Role, error) {
	query := `SELECT r.id, r.name, r.description, r.created_at, r.updated_at
			  FROM roles r
			  JOIN user_roles ur ON ur.role_id = r.id
			  WHERE ur.user_id = $1`
	if enforceExpiry {
		query += ` AND (ur.expires_at IS NULL OR ur.expires_at > NOW())`
	}
	query += ` ORDER BY r.name`

	rows, err := r.db.QueryxContext(ctx, query, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var roles []*models.Role
	for rows.Next() {
		var role models.Role
		if err := rows.Scan(&role.ID, &role.Name, &role.Description, &role.CreatedAt, &role.UpdatedAt); err != nil {
			return nil, err
		}
		roles = append(roles, &role)
	}

	return roles, rows.Err()
}

// ListAssignments returns the raw user-role assignment rows for a user, expiry
// included, for administrative display.
func (r *RBACRepository) ListAssignments(ctx context.Context, userID int64) ([]*models.UserRole, error) {
	query := `SELECT user_id, role_id, assigned_at, expires_at
			  FROM user_roles WHERE user_id = $1 ORDER BY assigned_at`

	rows, err := r.db.QueryxContext(ctx, query, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var assignments []*models.UserRole
	for rows.Next() {
		var ur models.UserRole
		if err := rows.Scan(&ur.UserID, &ur.RoleID, &ur.AssignedAt, &ur.ExpiresAt); err != nil {
			return nil, err
		}
		assignments = append(assignments, &ur)
	}

	return assignments, rows.Err()
}

// ============================================================================
// Permission traversal
// ============================================================================

// GetEffectivePermissions resolves a user's permission names by walking user →
// roles → permissions in one query. Names are deduplicated in SQL: a permission
// granted through several roles appears once. This is the single code path every
// permission check goes through.
func (r *RBACRepository) GetEffectivePermissions(ctx context.Context, userID int64, enforceExpiry bool) ([]string, error) {
	query := `SELECT DISTINCT p.name
			  FROM permissions p
			  JOIN role_permissions rp ON rp.permission_id = p.id
			  JOIN user_roles ur ON ur.role_id = rp.role_id
			  WHERE ur.user_id = $1`
	if enforceExpiry {
		query += ` AND (ur.expires_at IS NULL OR ur.expires_at > NOW())`
	}
	query += ` ORDER BY p.name`

	rows, err := r.db.QueryxContext(ctx, query, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	perms := make([]string, 0)
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, err
		}
		perms = append(perms, name)
	}

	return perms, rows.Err()
}
