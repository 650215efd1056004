package repositories

import (
	"context"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/hiring-pipeline/hiring-pipeline/internal/db/models"
)

// ---------------------------------------------------------------------------
// Column definitions
// ---------------------------------------------------------------------------

var roleCols = []string{"id", "name", "description", "created_at", "updated_at"}
var permCols = []string{"id", "name", "resource", "action"}

// ---------------------------------------------------------------------------
// Helpers
// ---------------------------------------------------------------------------

func newRBACRepo(t *testing.T) (*RBACRepository, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return NewRBACRepository(sqlx.NewDb(db, "postgres")), mock
}

func sampleRoleRow() *sqlmock.Rows {
	return sqlmock.NewRows(roleCols).
		AddRow(int64(1), "Recruiter", "Owns candidate sourcing", time.Now(), time.Now())
}

// ---------------------------------------------------------------------------
// Roles
// ---------------------------------------------------------------------------

func TestListRoles(t *testing.T) {
	repo, mock := newRBACRepo(t)
	rows := sampleRoleRow().
		AddRow(int64(2), "Admin", "Full access", time.Now(), time.Now())
	mock.ExpectQuery("SELECT id.*FROM roles.*ORDER BY name").
		WillReturnRows(rows)

	roles, err := repo.ListRoles(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(roles) != 2 {
		t.Errorf("len(roles) = %d, want 2", len(roles))
	}
}

func TestGetRole_NotFound(t *testing.T) {
	repo, mock := newRBACRepo(t)
	mock.ExpectQuery("SELECT id.*FROM roles.*WHERE id").
		WillReturnRows(sqlmock.NewRows(roleCols))

	role, err := repo.GetRole(context.Background(), 99)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if role != nil {
		t.Errorf("role = %+v, want nil", role)
	}
}

func TestGetRoleByName_Found(t *testing.T) {
	repo, mock := newRBACRepo(t)
	mock.ExpectQuery("SELECT id.*FROM roles.*WHERE name").
		WillReturnRows(sampleRoleRow())

	role, err := repo.GetRoleByName(context.Background(), "Recruiter")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if role == nil || role.Name != "Recruiter" {
		t.Errorf("role = %+v, want Recruiter row", role)
	}
}

func TestCreateRole(t *testing.T) {
	repo, mock := newRBACRepo(t)
	mock.ExpectQuery("INSERT INTO roles").
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(int64(5)))

	role := &models.Role{Name: "Interviewer", Description: "Conducts interviews"}
	if err := repo.CreateRole(context.Background(), role); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if role.ID != 5 {
		t.Errorf("ID = %d, want 5", role.ID)
	}
}

func TestDeleteRole(t *testing.T) {
	repo, mock := newRBACRepo(t)
	mock.ExpectExec("DELETE FROM roles").
		WithArgs(int64(5)).
		WillReturnResult(sqlmock.NewResult(0, 1))

	if err := repo.DeleteRole(context.Background(), 5); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

// ---------------------------------------------------------------------------
// Permissions
// ---------------------------------------------------------------------------

func TestGetRolePermissions(t *testing.T) {
	repo, mock := newRBACRepo(t)
	rows := sqlmock.NewRows(permCols).
		AddRow(int64(1), "candidates:read", "candidates", "read").
		AddRow(int64(2), "candidates:write", "candidates", "write")
	mock.ExpectQuery("SELECT p.id.*JOIN role_permissions").
		WithArgs(int64(1)).
		WillReturnRows(rows)

	perms, err := repo.GetRolePermissions(context.Background(), 1)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(perms) != 2 {
		t.Fatalf("len(perms) = %d, want 2", len(perms))
	}
	if perms[0].Name != "candidates:read" {
		t.Errorf("perms[0].Name = %q", perms[0].Name)
	}
}

func TestAttachPermission(t *testing.T) {
	repo, mock := newRBACRepo(t)
	mock.ExpectExec("INSERT INTO role_permissions").
		WithArgs(int64(1), int64(2), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))

	if err := repo.AttachPermission(context.Background(), 1, 2); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

// ---------------------------------------------------------------------------
// User-role assignment
// ---------------------------------------------------------------------------

func TestAssignRole_WithExpiry(t *testing.T) {
	repo, mock := newRBACRepo(t)
	expires := time.Now().Add(24 * time.Hour)
	mock.ExpectExec("INSERT INTO user_roles").
		WithArgs(int64(3), int64(1), sqlmock.AnyArg(), expires).
		WillReturnResult(sqlmock.NewResult(0, 1))

	if err := repo.AssignRole(context.Background(), 3, 1, &expires); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestRemoveRole(t *testing.T) {
	repo, mock := newRBACRepo(t)
	mock.ExpectExec("DELETE FROM user_roles").
		WithArgs(int64(3), int64(1)).
		WillReturnResult(sqlmock.NewResult(0, 1))

	if err := repo.RemoveRole(context.Background(), 3, 1); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestGetUserRoles_AdvisoryExpiry(t *testing.T) {
	repo, mock := newRBACRepo(t)
	mock.ExpectQuery("SELECT r.id.*JOIN user_roles.*WHERE ur.user_id = \\$1 ORDER BY").
		WithArgs(int64(3)).
		WillReturnRows(sampleRoleRow())

	roles, err := repo.GetUserRoles(context.Background(), 3, false)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(roles) != 1 {
		t.Errorf("len(roles) = %d, want 1", len(roles))
	}
}

func TestGetUserRoles_EnforcedExpiry(t *testing.T) {
	repo, mock := newRBACRepo(t)
	mock.ExpectQuery("SELECT r.id.*JOIN user_roles.*expires_at IS NULL OR ur.expires_at").
		WithArgs(int64(3)).
		WillReturnRows(sqlmock.NewRows(roleCols))

	roles, err := repo.GetUserRoles(context.Background(), 3, true)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(roles) != 0 {
		t.Errorf("len(roles) = %d, want 0", len(roles))
	}
}

// ---------------------------------------------------------------------------
// Permission traversal
// ---------------------------------------------------------------------------

func TestGetEffectivePermissions(t *testing.T) {
	repo, mock := newRBACRepo(t)
	rows := sqlmock.NewRows([]string{"name"}).
		AddRow("candidates:read").
		AddRow("requisitions:read")
	mock.ExpectQuery("SELECT DISTINCT p.name.*JOIN user_roles").
		WithArgs(int64(3)).
		WillReturnRows(rows)

	perms, err := repo.GetEffectivePermissions(context.Background(), 3, false)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(perms) != 2 {
		t.Fatalf("len(perms) = %d, want 2", len(perms))
	}
	if perms[0] != "candidates:read" {
		t.Errorf("perms[0] = %q", perms[0])
	}
}

func TestGetEffectivePermissions_NoRoles(t *testing.T) {
	repo, mock := newRBACRepo(t)
	mock.ExpectQuery("SELECT DISTINCT p.name.*JOIN user_roles").
		WithArgs(int64(9)).
		WillReturnRows(sqlmock.NewRows([]string{"name"}))

	perms, err := repo.GetEffectivePermissions(context.Background(), 9, false)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if perms == nil {
		t.Fatal("perms = nil, want empty slice")
	}
	if len(perms) != 0 {
		t.Errorf("len(perms) = %d, want 0", len(perms))
	}
}

func TestGetEffectivePermissions_DBError(t *testing.T) {
	repo, mock := newRBACRepo(t)
	mock.ExpectQuery("SELECT DISTINCT p.name").WillReturnError(errDB)

	if _, err := repo.GetEffectivePermissions(context.Background(), 3, false); err == nil {
		t.Error("expected error, got nil")
	}
}
