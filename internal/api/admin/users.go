// users.go implements handlers for user account management: listing, creation,
// profile and password updates, and deactivation. Accounts are deactivated rather
// than deleted so audit history keeps a resolvable actor.
package admin

import (
	"database/sql"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/hiring-pipeline/hiring-pipeline/internal/auth"
	"github.com/hiring-pipeline/hiring-pipeline/internal/config"
	"github.com/hiring-pipeline/hiring-pipeline/internal/db/models"
	"github.com/hiring-pipeline/hiring-pipeline/internal/db/repositories"
)

// pqUniqueViolation is the postgres error code for unique-constraint conflicts.
const pqUniqueViolation = "23505"

// UserHandlers handles user management endpoints
type UserHandlers struct {
	cfg      *config.Config
	db       *sql.DB
	userRepo *repositories.UserRepository
	rbacRepo *repositories.RBACRepository
}

// NewUserHandlers creates a new UserHandlers instance
func NewUserHandlers(cfg *config.Config, db *sql.DB) *UserHandlers {
	return &UserHandlers{
		cfg:      cfg,
		db:       db,
		userRepo: repositories.NewUserRepository(db),
		rbacRepo: repositories.NewRBACRepository(sqlx.NewDb(db, "postgres")),
	}
}

type createUserRequest struct {
	Username string `json:"username" binding:"required"`
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required,min=8"`
}

type updateUserRequest struct {
	Email string `json:"email" binding:"required,email"`
}

type changePasswordRequest struct {
	Password string `json:"password" binding:"required,min=8"`
}

// publicUser shapes a user for API responses, omitting the password hash.
func publicUser(u *models.User) gin.H {
	return gin.H{
		"id":          u.ID,
		"username":    u.Username,
		"email":       u.Email,
		"isActive":    u.IsActive,
		"lastLoginAt": u.LastLoginAt,
		"createdAt":   u.CreatedAt,
		"updatedAt":   u.UpdatedAt,
	}
}

// pathID parses the :id route parameter as an int64.
func pathID(c *gin.Context, name string) (int64, bool) {
	id, err := strconv.ParseInt(c.Param(name), 10, 64)
	if err != nil || id < 1 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid " + name})
		return 0, false
	}
	return id, true
}

func isUniqueViolation(err error) bool {
	pqErr, ok := err.(*pq.Error)
	return ok && pqErr.Code == pqUniqueViolation
}

// @Summary      List users
// @Description  Get all user accounts ordered by username. Requires the Admin role.
// @Tags         Users
// @Security     Bearer
// @Produce      json
// @Success      200  {object}  map[string]interface{}  "users: []user"
// @Failure      401  {object}  map[string]interface{}  "Unauthorized"
// @Failure      500  {object}  map[string]interface{}  "Internal server error"
// @Router       /api/v1/users [get]
// ListUsersHandler lists all users
// GET /api/v1/users
func (h *UserHandlers) ListUsersHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		users, err := h.userRepo.ListUsers(c.Request.Context())
		if err != nil {
			slog.Error("list users failed", "error", err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to list users"})
			return
		}

		out := make([]gin.H, 0, len(users))
		for _, u := range users {
			out = append(out, publicUser(u))
		}

		c.JSON(http.StatusOK, gin.H{"users": out})
	}
}

// @Summary      Get user
// @Description  Get a user by ID together with their current role assignments.
// @Tags         Users
// @Security     Bearer
// @Produce      json
// @Param        id  path  int  true  "User ID"
// @Success      200  {object}  map[string]interface{}  "user, roles"
// @Failure      404  {object}  map[string]interface{}  "User not found"
// @Router       /api/v1/users/{id} [get]
// GetUserHandler retrieves a specific user by ID
// GET /api/v1/users/:id
func (h *UserHandlers) GetUserHandler() gin.HandlerFunc {
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

		roles, err := h.rbacRepo.GetUserRoles(c.Request.Context(), id, h.cfg.Auth.EnforceRoleExpiry)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to retrieve user roles"})
			return
		}

		uw := models.UserWithRoles{User: *user}
		for _, r := range roles {
			uw.Roles = append(uw.Roles, *r)
		}

		c.JSON(http.StatusOK, gin.H{
			"user":      publicUser(user),
			"roles":     roles,
			"roleNames": uw.RoleNames(),
		})
	}
}

// @Summary      Create user
// @Description  Create a new user account. The password is bcrypt-hashed before storage.
// @Tags         Users
// @Security     Bearer
// @Accept       json
// @Produce      json
// @Param        body  body  createUserRequest  true  "New user"
// @Success      201  {object}  map[string]interface{}  "user"
// @Failure      400  {object}  map[string]interface{}  "Validation error"
// @Failure      409  {object}  map[string]interface{}  "Username or email already taken"
// @Router       /api/v1/users [post]
// CreateUserHandler creates a new user account
// POST /api/v1/users
func (h *UserHandlers) CreateUserHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		var req createUserRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "username, email, and a password of at least 8 characters are required"})
			return
		}

		hash, err := auth.HashPassword(req.Password)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to create user"})
			return
		}

		user := &models.User{
			Username:     req.Username,
			Email:        req.Email,
			PasswordHash: hash,
			IsActive:     true,
		}

		if err := h.userRepo.CreateUser(c.Request.Context(), user); err != nil {
			if isUniqueViolation(err) {
				c.JSON(http.StatusConflict, gin.H{"error": "Username or email already taken"})
				return
			}
			slog.Error("create user failed", "error", err, "username", req.Username)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to create user"})
			return
		}

		slog.Info("user created", "user_id", user.ID, "username", user.Username)
		c.JSON(http.StatusCreated, gin.H{"user": publicUser(user)})
	}
}

// @Summary      Update user
// @Description  Update a user's profile fields.
// @Tags         Users
// @Security     Bearer
// @Accept       json
// @Produce      json
// @Param        id    path  int                true  "User ID"
// @Param        body  body  updateUserRequest  true  "Updated fields"
// @Success      200  {object}  map[string]interface{}  "user"
// @Failure      404  {object}  map[string]interface{}  "User not found"
// @Router       /api/v1/users/{id} [put]
// UpdateUserHandler updates a user's profile
// PUT /api/v1/users/:id
func (h *UserHandlers) UpdateUserHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := pathID(c, "id")
		if !ok {
			return
		}

		var req updateUserRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "A valid email is required"})
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

		user.Email = req.Email
		if err := h.userRepo.UpdateUser(c.Request.Context(), user); err != nil {
			if isUniqueViolation(err) {
				c.JSON(http.StatusConflict, gin.H{"error": "Email already taken"})
				return
			}
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to update user"})
			return
		}

		c.JSON(http.StatusOK, gin.H{"user": publicUser(user)})
	}
}

// @Summary      Change password
// @Description  Replace a user's password. The new password is bcrypt-hashed before storage.
// @Tags         Users
// @Security     Bearer
// @Accept       json
// @Produce      json
// @Param        id    path  int                    true  "User ID"
// @Param        body  body  changePasswordRequest  true  "New password"
// @Success      200  {object}  map[string]interface{}  "message"
// @Failure      404  {object}  map[string]interface{}  "User not found"
// @Router       /api/v1/users/{id}/password [put]
// ChangePasswordHandler replaces a user's password
// PUT /api/v1/users/:id/password
func (h *UserHandlers) ChangePasswordHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := pathID(c, "id")
		if !ok {
			return
		}

		var req changePasswordRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "A password of at least 8 characters is required"})
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

		hash, err := auth.HashPassword(req.Password)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to update password"})
			return
		}

		if err := h.userRepo.UpdatePassword(c.Request.Context(), id, hash); err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to update password"})
			return
		}

		slog.Info("password changed", "user_id", id)
		c.JSON(http.StatusOK, gin.H{"message": "Password updated"})
	}
}

// @Summary      Deactivate user
// @Description  Deactivate a user account. Accounts are never hard-deleted; a deactivated user can no longer authenticate but stays resolvable in audit history.
// @Tags         Users
// @Security     Bearer
// @Produce      json
// @Param        id  path  int  true  "User ID"
// @Success      200  {object}  map[string]interface{}  "message"
// @Failure      404  {object}  map[string]interface{}  "User not found"
// @Router       /api/v1/users/{id} [delete]
// DeactivateUserHandler deactivates a user account
// DELETE /api/v1/users/:id and POST /api/v1/users/:id/deactivate
func (h *UserHandlers) DeactivateUserHandler() gin.HandlerFunc {
	return h.setActiveHandler(false, "User deactivated")
}

// ActivateUserHandler reactivates a previously deactivated account
// POST /api/v1/users/:id/activate
func (h *UserHandlers) ActivateUserHandler() gin.HandlerFunc {
	return h.setActiveHandler(true, "User activated")
}

func (h *UserHandlers) setActiveHandler(active bool, message string) gin.HandlerFunc {
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

		if err := h.userRepo.SetActive(c.Request.Context(), id, active); err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to update user"})
			return
		}

		slog.Info("user active flag changed", "user_id", id, "active", active)
		c.JSON(http.StatusOK, gin.H{"message": message})
	}
}

// @Summary      Get effective permissions
// @Description  Resolve a user's current roles and effective permission names on demand. This runs the same traversal used at login, so the result reflects role changes made after any outstanding token was issued.
// @Tags         Users
// @Security     Bearer
// @Produce      json
// @Param        id  path  int  true  "User ID"
// @Success      200  {object}  map[string]interface{}  "userId, roles, permissions"
// @Failure      404  {object}  map[string]interface{}  "User not found"
// @Router       /api/v1/users/{id}/permissions [get]
// GetUserPermissionsHandler resolves a user's live roles and permissions
// GET /api/v1/users/:id/permissions
func (h *UserHandlers) GetUserPermissionsHandler() gin.HandlerFunc {
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

		enforce := h.cfg.Auth.EnforceRoleExpiry

		roles, err := h.rbacRepo.GetUserRoles(c.Request.Context(), id, enforce)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to resolve roles"})
			return
		}

		perms, err := h.rbacRepo.GetEffectivePermissions(c.Request.Context(), id, enforce)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to resolve permissions"})
			return
		}

		names := make([]string, 0, len(roles))
		for _, r := range roles {
			names = append(names, r.Name)
		}

		c.JSON(http.StatusOK, gin.H{
			"userId":      id,
			"roles":       names,
			"permissions": perms,
		})
	}
}
