// auth.go implements password login, refresh-token rotation, and revocation handlers.
// Every authentication failure, whatever its cause, answers with the same generic
// 401 so a caller cannot probe which part of the credential was wrong.
package admin

import (
	"database/sql"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/jmoiron/sqlx"

	"github.com/hiring-pipeline/hiring-pipeline/internal/audit"
	"github.com/hiring-pipeline/hiring-pipeline/internal/auth"
	"github.com/hiring-pipeline/hiring-pipeline/internal/config"
	"github.com/hiring-pipeline/hiring-pipeline/internal/db/models"
	"github.com/hiring-pipeline/hiring-pipeline/internal/db/repositories"
	"github.com/hiring-pipeline/hiring-pipeline/internal/middleware"
	"github.com/hiring-pipeline/hiring-pipeline/internal/telemetry"
)

const genericAuthError = "Invalid or missing credentials"

// dummyHash is a valid bcrypt hash compared against when the username does not
// resolve, keeping the login path's cost roughly uniform.
const dummyHash = "$2a$10$N9qo8uLOickgx2ZMRZoMyeIjZAgcfl7p92ldGxad68LJZdL17lhWy"

// AuthHandlers handles login, token refresh, and revocation endpoints
type AuthHandlers struct {
	cfg       *config.Config
	db        *sql.DB
	userRepo  *repositories.UserRepository
	rbacRepo  *repositories.RBACRepository
	tokenRepo *repositories.TokenRepository
}

// NewAuthHandlers creates a new AuthHandlers instance
func NewAuthHandlers(cfg *config.Config, db *sql.DB) *AuthHandlers {
	return &AuthHandlers{
		cfg:       cfg,
		db:        db,
		userRepo:  repositories.NewUserRepository(db),
		rbacRepo:  repositories.NewRBACRepository(sqlx.NewDb(db, "postgres")),
		tokenRepo: repositories.NewTokenRepository(db),
	}
}

type loginRequest struct {
	Username string `json:"username" binding:"required"`
	Password string `json:"password" binding:"required"`
}

type refreshRequest struct {
	RefreshToken string `json:"refreshToken" binding:"required"`
}

type revokeRequest struct {
	RefreshToken string `json:"refreshToken" binding:"required"`
}

// tokenBundle is the response body shared by login and refresh.
func tokenBundle(token, refreshToken string, expiresAt time.Time, user *models.User, roles, permissions []string) gin.H {
	return gin.H{
		"token":        token,
		"refreshToken": refreshToken,
		"expiresAt":    expiresAt.UTC().Format(time.RFC3339),
		"user": gin.H{
			"id":          user.ID,
			"username":    user.Username,
			"email":       user.Email,
			"roles":       roles,
			"permissions": permissions,
		},
	}
}

// resolveAccess runs the single permission traversal used by both login and the
// on-demand /users/:id/permissions endpoint, plus the user's current role names.
func (h *AuthHandlers) resolveAccess(c *gin.Context, userID int64) ([]string, []string, error) {
	enforce := h.cfg.Auth.EnforceRoleExpiry

	roles, err := h.rbacRepo.GetUserRoles(c.Request.Context(), userID, enforce)
	if err != nil {
		return nil, nil, err
	}

	names := make([]string, 0, len(roles))
	for _, r := range roles {
		names = append(names, r.Name)
	}

	perms, err := h.rbacRepo.GetEffectivePermissions(c.Request.Context(), userID, enforce)
	if err != nil {
		return nil, nil, err
	}

	return names, perms, nil
}

func (h *AuthHandlers) issueRefreshToken(c *gin.Context, userID int64) (*models.RefreshToken, error) {
	now := time.Now()
	token := &models.RefreshToken{
		UserID:      userID,
		Token:       repositories.NewTokenValue(),
		IssuedAt:    now,
		ExpiresAt:   now.Add(h.cfg.Auth.RefreshTokenTTL),
		CreatedByIP: audit.ClientIP(c.Request.Header, c.Request.RemoteAddr),
	}

	if err := h.tokenRepo.CreateToken(c.Request.Context(), token); err != nil {
		return nil, err
	}

	return token, nil
}

// @Summary      Login
// @Description  Authenticate with username and password. Returns a short-lived access token with role and permission claims plus a single-use refresh token.
// @Tags         Auth
// @Accept       json
// @Produce      json
// @Param        body  body  loginRequest  true  "Credentials"
// @Success      200  {object}  map[string]interface{}  "token, refreshToken, expiresAt, user"
// @Failure      401  {object}  map[string]interface{}  "Invalid credentials"
// @Router       /api/v1/auth/login [post]
// LoginHandler authenticates a user and issues a token pair
// POST /api/v1/auth/login
func (h *AuthHandlers) LoginHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		var req loginRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			telemetry.LoginAttemptsTotal.WithLabelValues("failure").Inc()
			c.JSON(http.StatusUnauthorized, gin.H{"error": genericAuthError})
			return
		}

		user, err := h.userRepo.GetUserByUsername(c.Request.Context(), req.Username)
		if err != nil {
			slog.Error("login: user lookup failed", "error", err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Login failed"})
			return
		}

		// Unknown user, wrong password, and deactivated account all take the
		// same exit. The hash comparison runs even for unknown users so
		// response timing does not reveal whether the username exists.
		hash := dummyHash
		if user != nil {
			hash = user.PasswordHash
		}
		if !auth.CheckPassword(req.Password, hash) || user == nil || !user.IsActive {
			telemetry.LoginAttemptsTotal.WithLabelValues("failure").Inc()
			c.JSON(http.StatusUnauthorized, gin.H{"error": genericAuthError})
			return
		}

		roles, perms, err := h.resolveAccess(c, user.ID)
		if err != nil {
			slog.Error("login: access resolution failed", "error", err, "user_id", user.ID)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Login failed"})
			return
		}

		expiresAt := time.Now().Add(h.cfg.Auth.AccessTokenTTL)
		token, err := auth.GenerateToken(user.ID, user.Username, user.Email, user.IsActive,
			roles, perms, h.cfg.Auth.Issuer, h.cfg.Auth.AccessTokenTTL)
		if err != nil {
			slog.Error("login: token generation failed", "error", err, "user_id", user.ID)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Login failed"})
			return
		}

		refresh, err := h.issueRefreshToken(c, user.ID)
		if err != nil {
			slog.Error("login: refresh token creation failed", "error", err, "user_id", user.ID)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Login failed"})
			return
		}

		if err := h.userRepo.UpdateLastLogin(c.Request.Context(), user.ID); err != nil {
			slog.Warn("login: last-login update failed", "error", err, "user_id", user.ID)
		}

		telemetry.LoginAttemptsTotal.WithLabelValues("success").Inc()
		slog.Info("user logged in", "user_id", user.ID, "username", user.Username)

		c.JSON(http.StatusOK, tokenBundle(token, refresh.Token, expiresAt, user, roles, perms))
	}
}

// @Summary      Refresh access token
// @Description  Exchange a refresh token for a new token pair. The presented token is revoked and linked to its replacement; a reused token is rejected.
// @Tags         Auth
// @Accept       json
// @Produce      json
// @Param        body  body  refreshRequest  true  "Refresh token"
// @Success      200  {object}  map[string]interface{}  "token, refreshToken, expiresAt, user"
// @Failure      401  {object}  map[string]interface{}  "Invalid credentials"
// @Router       /api/v1/auth/refresh [post]
// RefreshHandler rotates a refresh token and issues a fresh access token
// POST /api/v1/auth/refresh
func (h *AuthHandlers) RefreshHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		var req refreshRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			telemetry.TokenRefreshTotal.WithLabelValues("failure").Inc()
			c.JSON(http.StatusUnauthorized, gin.H{"error": genericAuthError})
			return
		}

		ip := audit.ClientIP(c.Request.Header, c.Request.RemoteAddr)

		userID, next, rotated, err := h.tokenRepo.RotateToken(
			c.Request.Context(), req.RefreshToken, ip, h.cfg.Auth.RefreshTokenTTL)
		if err != nil {
			slog.Error("refresh: rotation failed", "error", err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Refresh failed"})
			return
		}
		if !rotated {
			// Unknown, expired, revoked, or already consumed by a concurrent
			// refresh. All indistinguishable to the caller.
			telemetry.TokenRefreshTotal.WithLabelValues("failure").Inc()
			c.JSON(http.StatusUnauthorized, gin.H{"error": genericAuthError})
			return
		}

		user, err := h.userRepo.GetUserByID(c.Request.Context(), userID)
		if err != nil {
			slog.Error("refresh: user lookup failed", "error", err, "user_id", userID)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Refresh failed"})
			return
		}
		if user == nil || !user.IsActive {
			telemetry.TokenRefreshTotal.WithLabelValues("failure").Inc()
			c.JSON(http.StatusUnauthorized, gin.H{"error": genericAuthError})
			return
		}

		roles, perms, err := h.resolveAccess(c, user.ID)
		if err != nil {
			slog.Error("refresh: access resolution failed", "error", err, "user_id", user.ID)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Refresh failed"})
			return
		}

		expiresAt := time.Now().Add(h.cfg.Auth.AccessTokenTTL)
		token, err := auth.GenerateToken(user.ID, user.Username, user.Email, user.IsActive,
			roles, perms, h.cfg.Auth.Issuer, h.cfg.Auth.AccessTokenTTL)
		if err != nil {
			slog.Error("refresh: token generation failed", "error", err, "user_id", user.ID)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Refresh failed"})
			return
		}

		telemetry.TokenRefreshTotal.WithLabelValues("success").Inc()

		c.JSON(http.StatusOK, tokenBundle(token, next.Token, expiresAt, user, roles, perms))
	}
}

// @Summary      Revoke a refresh token
// @Description  Revoke a single refresh token. Revoking an unknown or already-revoked token reports not found rather than erroring.
// @Tags         Auth
// @Accept       json
// @Produce      json
// @Param        body  body  revokeRequest  true  "Refresh token"
// @Success      200  {object}  map[string]interface{}  "message"
// @Failure      404  {object}  map[string]interface{}  "Token not found or already revoked"
// @Router       /api/v1/auth/revoke [post]
// RevokeHandler revokes a single refresh token
// POST /api/v1/auth/revoke
func (h *AuthHandlers) RevokeHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		var req revokeRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "refreshToken is required"})
			return
		}

		existing, err := h.tokenRepo.GetByToken(c.Request.Context(), req.RefreshToken)
		if err != nil {
			slog.Error("revoke: token lookup failed", "error", err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Revocation failed"})
			return
		}
		if existing == nil || !existing.IsUsable(time.Now()) {
			c.JSON(http.StatusNotFound, gin.H{"error": "Token not found or already revoked"})
			return
		}

		ip := audit.ClientIP(c.Request.Header, c.Request.RemoteAddr)

		// The UPDATE re-checks usability, so a concurrent revoke between the
		// lookup and here still lands on the not-found branch.
		revoked, err := h.tokenRepo.RevokeToken(c.Request.Context(), req.RefreshToken, ip)
		if err != nil {
			slog.Error("revoke: token revocation failed", "error", err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Revocation failed"})
			return
		}
		if !revoked {
			c.JSON(http.StatusNotFound, gin.H{"error": "Token not found or already revoked"})
			return
		}

		c.JSON(http.StatusOK, gin.H{"message": "Token revoked"})
	}
}

// @Summary      Logout
// @Description  Revoke every usable refresh token belonging to the authenticated caller.
// @Tags         Auth
// @Security     Bearer
// @Produce      json
// @Success      200  {object}  map[string]interface{}  "message, revoked"
// @Failure      401  {object}  map[string]interface{}  "Unauthorized"
// @Router       /api/v1/auth/logout [post]
// LogoutHandler revokes all refresh tokens for the authenticated user
// POST /api/v1/auth/logout
func (h *AuthHandlers) LogoutHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		userID, ok := middleware.UserID(c)
		if !ok {
			c.JSON(http.StatusUnauthorized, gin.H{"error": genericAuthError})
			return
		}

		ip := audit.ClientIP(c.Request.Header, c.Request.RemoteAddr)

		n, err := h.tokenRepo.RevokeAllForUser(c.Request.Context(), userID, ip)
		if err != nil {
			slog.Error("logout: revocation failed", "error", err, "user_id", userID)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Logout failed"})
			return
		}

		slog.Info("user logged out", "user_id", userID, "tokens_revoked", n)

		c.JSON(http.StatusOK, gin.H{"message": "Logged out", "revoked": n})
	}
}
