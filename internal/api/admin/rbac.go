// rbac.go implements handlers for role and permission administration: role CRUD,
// the permission catalogue, role-permission grants, and user-role assignment.
package admin

import (
	"database/sql"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/jmoiron/sqlx"

	"github.com/hiring-pipeline/hiring-pipeline/internal/config"
	"github.com/hiring-pipeline/hiring-pipeline/internal/db/models"
	"github.com/hiring-pipeline/hiring-pipeline/internal/db/repositories"
)

// RBACHandlers handles role and permission management endpoints
type RBACHandlers struct {
	cfg      *config.Config
	db       *sql.DB
	rbacRepo *repositories.RBACRepository
	userRepo *repositories.UserRepository
}

// NewRBACHandlers creates a new RBACHandlers instance
func NewRBACHandlers(cfg *config.Config, db *sql.DB) *RBACHandlers {
	return &RBACHandlers{
		cfg:      cfg,
		db:       db,
		rbacRepo: repositories.NewRBACRepository(sqlx.NewDb(db, "postgres")),
		userRepo: repositories.NewUserRepository(db),
	}
}

type roleRequest struct {
	Name        string `json:"name" binding:"required"`
	Description string `json:"description"`
}

type grantRequest struct {
	PermissionID int64 `json:"permissionId" binding:"required"`
}

type assignRoleRequest struct {
	RoleID    int64      `json:"roleId" binding:"required"`
	ExpiresAt *time.Time `json:"expiresAt"`
}

// @Summary      List roles
// @Description  Get all roles ordered by name.
// @Tags         RBAC
// @Security     Bearer
// @Produce      json
// @Success      200  {object}  map[string]interface{}  "roles"
// @Router       /api/v1/roles [get]
// ListRolesHandler lists all roles
// GET /api/v1/roles
func (h *RBACHandlers) ListRolesHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		roles, err := h.rbacRepo.ListRoles(c.Request.Context())
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to list roles"})
			return
		}

		c.JSON(http.StatusOK, gin.H{"roles": roles})
	}
}

// @Summary      Get role
// @Description  Get a role by ID with its granted permissions.
// @Tags         RBAC
// @Security     Bearer
// @Produce      json
// @Param        id  path  int  true  "Role ID"
// @Success      200  {object}  map[string]interface{}  "role, permissions"
// @Failure      404  {object}  map[string]interface{}  "Role not found"
// @Router       /api/v1/roles/{id} [get]
// GetRoleHandler retrieves a role and its permissions
// GET /api/v1/roles/:id
func (h *RBACHandlers) GetRoleHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := pathID(c, "id")
		if !ok {
			return
		}

		role, err := h.rbacRepo.GetRole(c.Request.Context(), id)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to retrieve role"})
			return
		}
		if role == nil {
			c.JSON(http.StatusNotFound, gin.H{"error": "Role not found"})
			return
		}

		perms, err := h.rbacRepo.GetRolePermissions(c.Request.Context(), id)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to retrieve role permissions"})
			return
		}

		c.JSON(http.StatusOK, gin.H{"role": role, "permissions": perms})
	}
}

// @Summary      Create role
// @Description  Create a new role. Role names are unique.
// @Tags         RBAC
// @Security     Bearer
// @Accept       json
// @Produce      json
// @Param        body  body  roleRequest  true  "New role"
// @Success      201  {object}  map[string]interface{}  "role"
// @Failure      409  {object}  map[string]interface{}  "Role name already taken"
// @Router       /api/v1/roles [post]
// CreateRoleHandler creates a new role
// POST /api/v1/roles
func (h *RBACHandlers) CreateRoleHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		var req roleRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "name is required"})
			return
		}

		taken, err := h.rbacRepo.GetRoleByName(c.Request.Context(), req.Name)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to create role"})
			return
		}
		if taken != nil {
			c.JSON(http.StatusConflict, gin.H{"error": "Role name already taken"})
			return
		}

		// The unique index still backstops a concurrent create of the same name.
		role := &models.Role{Name: req.Name, Description: req.Description}
		if err := h.rbacRepo.CreateRole(c.Request.Context(), role); err != nil {
			if isUniqueViolation(err) {
				c.JSON(http.StatusConflict, gin.H{"error": "Role name already taken"})
				return
			}
			slog.Error("create role failed", "error", err, "name", req.Name)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to create role"})
			return
		}

		slog.Info("role created", "role_id", role.ID, "name", role.Name)
		c.JSON(http.StatusCreated, gin.H{"role": role})
	}
}

// @Summary      Update role
// @Description  Update a role's name and description.
// @Tags         RBAC
// @Security     Bearer
// @Accept       json
// @Produce      json
// @Param        id    path  int          true  "Role ID"
// @Param        body  body  roleRequest  true  "Updated role"
// @Success      200  {object}  map[string]interface{}  "role"
// @Failure      404  {object}  map[string]interface{}  "Role not found"
// @Router       /api/v1/roles/{id} [put]
// UpdateRoleHandler updates a role
// PUT /api/v1/roles/:id
func (h *RBACHandlers) UpdateRoleHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := pathID(c, "id")
		if !ok {
			return
		}

		var req roleRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "name is required"})
			return
		}

		role, err := h.rbacRepo.GetRole(c.Request.Context(), id)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to retrieve role"})
			return
		}
		if role == nil {
			c.JSON(http.StatusNotFound, gin.H{"error": "Role not found"})
			return
		}

		role.Name = req.Name
		role.Description = req.Description
		if err := h.rbacRepo.UpdateRole(c.Request.Context(), role); err != nil {
			if isUniqueViolation(err) {
				c.JSON(http.StatusConflict, gin.H{"error": "Role name already taken"})
				return
			}
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to update role"})
			return
		}

		c.JSON(http.StatusOK, gin.H{"role": role})
	}
}

// @Summary      Delete role
// @Description  Delete a role. Grants and user assignments cascade.
// @Tags         RBAC
// @Security     Bearer
// @Produce      json
// @Param        id  path  int  true  "Role ID"
// @Success      200  {object}  map[string]interface{}  "message"
// @Failure      404  {object}  map[string]interface{}  "Role not found"
// @Router       /api/v1/roles/{id} [delete]
// DeleteRoleHandler deletes a role
// DELETE /api/v1/roles/:id
func (h *RBACHandlers) DeleteRoleHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := pathID(c, "id")
		if !ok {
			return
		}

		role, err := h.rbacRepo.GetRole(c.Request.Context(), id)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to retrieve role"})
			return
		}
		if role == nil {
			c.JSON(http.StatusNotFound, gin.H{"error": "Role not found"})
			return
		}

		if err := h.rbacRepo.DeleteRole(c.Request.Context(), id); err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to delete role"})
			return
		}

		slog.Info("role deleted", "role_id", id, "name", role.Name)
		c.JSON(http.StatusOK, gin.H{"message": "Role deleted"})
	}
}

// @Summary      List permissions
// @Description  Get the full permission catalogue. Permissions are seeded reference data and are not editable through the API.
// @Tags         RBAC
// @Security     Bearer
// @Produce      json
// @Success      200  {object}  map[string]interface{}  "permissions"
// @Router       /api/v1/permissions [get]
// ListPermissionsHandler lists the permission catalogue
// GET /api/v1/permissions
func (h *RBACHandlers) ListPermissionsHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		perms, err := h.rbacRepo.ListPermissions(c.Request.Context())
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to list permissions"})
			return
		}

		c.JSON(http.StatusOK, gin.H{"permissions": perms})
	}
}

// @Summary      Grant permission to role
// @Description  Grant a permission to a role. Re-granting an existing pair is a no-op.
// @Tags         RBAC
// @Security     Bearer
// @Accept       json
// @Produce      json
// @Param        id    path  int           true  "Role ID"
// @Param        body  body  grantRequest  true  "Permission to grant"
// @Success      200  {object}  map[string]interface{}  "message"
// @Failure      404  {object}  map[string]interface{}  "Role not found"
// @Router       /api/v1/roles/{id}/permissions [post]
// GrantPermissionHandler grants a permission to a role
// POST /api/v1/roles/:id/permissions
func (h *RBACHandlers) GrantPermissionHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := pathID(c, "id")
		if !ok {
			return
		}

		var req grantRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "permissionId is required"})
			return
		}

		role, err := h.rbacRepo.GetRole(c.Request.Context(), id)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to retrieve role"})
			return
		}
		if role == nil {
			c.JSON(http.StatusNotFound, gin.H{"error": "Role not found"})
			return
		}

		if err := h.rbacRepo.AttachPermission(c.Request.Context(), id, req.PermissionID); err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to grant permission"})
			return
		}

		slog.Info("permission granted", "role_id", id, "permission_id", req.PermissionID)
		c.JSON(http.StatusOK, gin.H{"message": "Permission granted"})
	}
}

// @Summary      Revoke permission from role
// @Description  Remove a permission grant from a role.
// @Tags         RBAC
// @Security     Bearer
// @Produce      json
// @Param        id            path  int  true  "Role ID"
// @Param        permissionId  path  int  true  "Permission ID"
// @Success      200  {object}  map[string]interface{}  "message"
// @Router       /api/v1/roles/{id}/permissions/{permissionId} [delete]
// RevokePermissionHandler removes a permission grant from a role
// DELETE /api/v1/roles/:id/permissions/:permissionId
func (h *RBACHandlers) RevokePermissionHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := pathID(c, "id")
		if !ok {
			return
		}
		permID, ok := pathID(c, "permissionId")
		if !ok {
			return
		}

		if err := h.rbacRepo.DetachPermission(c.Request.Context(), id, permID); err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to revoke permission"})
			return
		}

		c.JSON(http.StatusOK, gin.H{"message": "Permission revoked"})
	}
}

// @Summary      Assign role to user
// @Description  Assign a role to a user, optionally with an expiry. Re-assigning an existing pair updates the expiry.
// @Tags         RBAC
// @Security     Bearer
// @Accept       json
// @Produce      json
// @Param        id    path  int                true  "User ID"
// @Param        body  body  assignRoleRequest  true  "Role assignment"
// @Success      200  {object}  map[string]interface{}  "message"
// @Failure      404  {object}  map[string]interface{}  "User or role not found"
// @Router       /api/v1/users/{id}/roles [post]
// AssignRoleHandler assigns a role to a user
// POST /api/v1/users/:id/roles
func (h *RBACHandlers) AssignRoleHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := pathID(c, "id")
		if !ok {
			return
		}

		var req assignRoleRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "roleId is required"})
			return
		}

		user, err := h.userRepo.GetUserByID(c.Request.Context(), id)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to retrieve user"})
			return
		}
		if user == nil {
			c.JSON(http.StatusNotFound, gin.H{"error": "User not found"})
			return
		}

		role, err := h.rbacRepo.GetRole(c.Request.Context(), req.RoleID)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to retrieve role"})
			return
		}
		if role == nil {
			c.JSON(http.StatusNotFound, gin.H{"error": "Role not found"})
			return
		}

		if err := h.rbacRepo.AssignRole(c.Request.Context(), id, req.RoleID, req.ExpiresAt); err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to assign role"})
			return
		}

		slog.Info("role assigned", "user_id", id, "role_id", req.RoleID)
		c.JSON(http.StatusOK, gin.H{"message": "Role assigned"})
	}
}

// @Summary      List a user's role assignments
// @Description  Get the raw role assignment rows for a user, expiry included.
// @Tags         RBAC
// @Security     Bearer
// @Produce      json
// @Param        id  path  int  true  "User ID"
// @Success      200  {object}  map[string]interface{}  "assignments"
// @Failure      404  {object}  map[string]interface{}  "User not found"
// @Router       /api/v1/users/{id}/roles [get]
// ListUserRolesHandler lists a user's role assignments
// GET /api/v1/users/:id/roles
func (h *RBACHandlers) ListUserRolesHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := pathID(c, "id")
		if !ok {
			return
		}

		user, err := h.userRepo.GetUserByID(c.Request.Context(), id)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to retrieve user"})
			return
		}
		if user == nil {
			c.JSON(http.StatusNotFound, gin.H{"error": "User not found"})
			return
		}

		assignments, err := h.rbacRepo.ListAssignments(c.Request.Context(), id)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to retrieve role assignments"})
			return
		}

		c.JSON(http.StatusOK, gin.H{"assignments": assignments})
	}
}

// @Summary      Remove role from user
// @Description  Remove a role assignment from a user.
// @Tags         RBAC
// @Security     Bearer
// @Produce      json
// @Param        id      path  int  true  "User ID"
// @Param        roleId  path  int  true  "Role ID"
// @Success      200  {object}  map[string]interface{}  "message"
// @Router       /api/v1/users/{id}/roles/{roleId} [delete]
// RemoveRoleHandler removes a role assignment from a user
// DELETE /api/v1/users/:id/roles/:roleId
func (h *RBACHandlers) RemoveRoleHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := pathID(c, "id")
		if !ok {
			return
		}
		roleID, ok := pathID(c, "roleId")
		if !ok {
			return
		}

		if err := h.rbacRepo.RemoveRole(c.Request.Context(), id, roleID); err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to remove role"})
			return
		}

		c.JSON(http.StatusOK, gin.H{"message": "Role removed"})
	}
}
