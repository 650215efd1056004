// Package api wires together all HTTP routes for the hiring pipeline backend.
//
// Route grouping philosophy:
//   - /api/v1/auth/ carries credential exchange (login, refresh, revoke) and is
//     deliberately unauthenticated but sits behind the strictest rate limit
//     tier, since it is the brute-force surface.
//   - Everything else under /api/v1/ requires a bearer token and passes through
//     the audit middleware, which classifies each completed request and records
//     the named ones. User, role, and audit-log administration additionally
//     require the Admin role; pipeline routes are gated per-route by the roles
//     that own each workflow step.
//   - POST /api/v1/auditlogs/log accepts anonymous self-reports (the audit
//     trail must be able to name failures from callers who never got a token),
//     so it uses optional authentication.
//
// Middleware ordering on the authenticated group is security headers and
// request IDs first (global), then rate limiting, then authentication, then
// per-route role gates, then audit. Audit runs innermost so that it observes
// the caller identity the auth middleware resolved and the final status the
// handler produced.
package api

import (
	"database/sql"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/hiring-pipeline/hiring-pipeline/internal/api/admin"
	"github.com/hiring-pipeline/hiring-pipeline/internal/api/pipeline"
	"github.com/hiring-pipeline/hiring-pipeline/internal/audit"
	"github.com/hiring-pipeline/hiring-pipeline/internal/auth"
	"github.com/hiring-pipeline/hiring-pipeline/internal/config"
	"github.com/hiring-pipeline/hiring-pipeline/internal/db/repositories"
	"github.com/hiring-pipeline/hiring-pipeline/internal/middleware"
)

// BackgroundServices holds references to background resources that must be
// stopped during graceful shutdown. The caller (cmd/server) is responsible for
// calling Shutdown() when the process receives a termination signal.
type BackgroundServices struct {
	rateLimiters []*middleware.RateLimiter
}

// Shutdown stops all background goroutines. It should be called after the HTTP
// server has been shut down so that in-flight requests are drained first.
func (bg *BackgroundServices) Shutdown() {
	slog.Info("stopping background services")
	for _, rl := range bg.rateLimiters {
		rl.Stop()
	}
	slog.Info("all background services stopped")
}

// NewRouter creates and configures the Gin router
func NewRouter(cfg *config.Config, db *sql.DB) (*gin.Engine, *BackgroundServices) {
	router := gin.New()

	// Global middleware
	router.Use(gin.Recovery())
	router.Use(middleware.RequestIDMiddleware())
	router.Use(middleware.MetricsMiddleware())
	router.Use(LoggerMiddleware(cfg))
	router.Use(middleware.SecurityHeadersMiddleware(middleware.APISecurityHeadersConfig()))

	// Health check endpoint
	router.GET("/health", healthCheckHandler(db))

	// Handler sets. Each constructor builds its own repositories over the
	// shared connection pool.
	authHandlers := admin.NewAuthHandlers(cfg, db)
	userHandlers := admin.NewUserHandlers(cfg, db)
	rbacHandlers := admin.NewRBACHandlers(cfg, db)
	auditHandlers := admin.NewAuditLogHandlers(cfg, db)
	candidateHandlers := pipeline.NewCandidateHandlers(cfg, db)
	requisitionHandlers := pipeline.NewRequisitionHandlers(cfg, db)
	applicationHandlers := pipeline.NewApplicationHandlers(cfg, db)

	auditRepo := repositories.NewAuditRepository(db)
	auditPolicy := auditPolicyFromConfig(cfg)

	// Rate limiters are shared per tier, not per route, so that a client
	// hammering one endpoint burns its budget for the whole tier. Nil limiters
	// (rate limiting disabled) make RateLimitMiddleware a pass-through.
	authRateLimiter, generalRateLimiter, exportRateLimiter := rateLimitTiers(cfg)

	apiV1 := router.Group("/api/v1")
	{
		// Credential exchange. No bearer token required, strictest limiter.
		authGroup := apiV1.Group("/auth")
		authGroup.Use(middleware.RateLimitMiddleware(authRateLimiter))
		{
			authGroup.POST("/login", authHandlers.LoginHandler())
			authGroup.POST("/refresh", authHandlers.RefreshHandler())
			authGroup.POST("/revoke", authHandlers.RevokeHandler())
			authGroup.POST("/logout", middleware.AuthMiddleware(), authHandlers.LogoutHandler())
		}

		// Anonymous-allowed audit self-report. Authenticated callers get
		// their identity snapshotted onto the record; anonymous callers are
		// recorded as such. The path is on the classifier skip list, so the
		// surrounding audit middleware never double-writes it.
		selfReportGroup := apiV1.Group("")
		selfReportGroup.Use(middleware.RateLimitMiddleware(generalRateLimiter))
		selfReportGroup.Use(middleware.OptionalAuthMiddleware())
		{
			selfReportGroup.POST("/auditlogs/log", auditHandlers.SelfReportHandler())
		}

		// All remaining routes require a valid bearer token and are audited.
		authenticatedGroup := apiV1.Group("")
		authenticatedGroup.Use(middleware.RateLimitMiddleware(generalRateLimiter))
		authenticatedGroup.Use(middleware.AuthMiddleware())
		if cfg.Audit.Enabled {
			authenticatedGroup.Use(middleware.AuditMiddleware(auditPolicy, auditRepo))
		}
		{
			// User administration (Admin only)
			usersGroup := authenticatedGroup.Group("/users")
			usersGroup.Use(middleware.RequireAdmin())
			{
				usersGroup.GET("", userHandlers.ListUsersHandler())
				usersGroup.GET("/:id", userHandlers.GetUserHandler())
				usersGroup.POST("", userHandlers.CreateUserHandler())
				usersGroup.PUT("/:id", userHandlers.UpdateUserHandler())
				usersGroup.PUT("/:id/password", userHandlers.ChangePasswordHandler())
				usersGroup.DELETE("/:id", userHandlers.DeactivateUserHandler())
				usersGroup.POST("/:id/activate", userHandlers.ActivateUserHandler())
				usersGroup.GET("/:id/permissions", userHandlers.GetUserPermissionsHandler())
				usersGroup.GET("/:id/roles", rbacHandlers.ListUserRolesHandler())
				usersGroup.POST("/:id/roles", rbacHandlers.AssignRoleHandler())
				usersGroup.DELETE("/:id/roles/:roleId", rbacHandlers.RemoveRoleHandler())
			}

			// Role and permission administration (Admin only)
			rolesGroup := authenticatedGroup.Group("/roles")
			rolesGroup.Use(middleware.RequireAdmin())
			{
				rolesGroup.GET("", rbacHandlers.ListRolesHandler())
				rolesGroup.GET("/:id", rbacHandlers.GetRoleHandler())
				rolesGroup.POST("", rbacHandlers.CreateRoleHandler())
				rolesGroup.PUT("/:id", rbacHandlers.UpdateRoleHandler())
				rolesGroup.DELETE("/:id", rbacHandlers.DeleteRoleHandler())
				rolesGroup.POST("/:id/permissions", rbacHandlers.GrantPermissionHandler())
				rolesGroup.DELETE("/:id/permissions/:permissionId", rbacHandlers.RevokePermissionHandler())
			}
			authenticatedGroup.GET("/permissions",
				middleware.RequireAdmin(),
				rbacHandlers.ListPermissionsHandler())

			// Audit trail (Admin only). Export gets its own stricter limiter
			// on top of the general one since CSV dumps are expensive.
			auditGroup := authenticatedGroup.Group("/auditlogs")
			auditGroup.Use(middleware.RequireAdmin())
			{
				auditGroup.GET("", auditHandlers.ListAuditLogsHandler())
				auditGroup.GET("/entity/:entity/:entityId", auditHandlers.ListEntityAuditLogsHandler())
				auditGroup.GET("/user/:userId", auditHandlers.ListUserAuditLogsHandler())
				auditGroup.GET("/export",
					middleware.RateLimitMiddleware(exportRateLimiter),
					auditHandlers.ExportAuditLogsHandler())
				auditGroup.DELETE("/clear", auditHandlers.ClearAuditLogsHandler())
				auditGroup.GET("/:id", auditHandlers.GetAuditLogHandler())
				auditGroup.DELETE("/:id", auditHandlers.DeleteAuditLogHandler())
			}

			// Candidates: everyone involved in hiring can read, recruiters
			// own the records.
			candidatesGroup := authenticatedGroup.Group("/candidates")
			{
				candidatesGroup.GET("", candidateHandlers.ListCandidatesHandler())
				candidatesGroup.GET("/:id", candidateHandlers.GetCandidateHandler())
				candidatesGroup.POST("",
					middleware.RequireAnyRole(auth.RoleAdmin, auth.RoleRecruiter),
					candidateHandlers.CreateCandidateHandler())
				candidatesGroup.PUT("/:id",
					middleware.RequireAnyRole(auth.RoleAdmin, auth.RoleRecruiter),
					candidateHandlers.UpdateCandidateHandler())
				candidatesGroup.DELETE("/:id",
					middleware.RequirePermission("candidates:delete"),
					candidateHandlers.DeleteCandidateHandler())
			}

			// Requisitions: hiring managers draft and close their own reqs,
			// recruiters publish.
			requisitionsGroup := authenticatedGroup.Group("/requisitions")
			{
				requisitionsGroup.GET("", requisitionHandlers.ListRequisitionsHandler())
				requisitionsGroup.GET("/:id", requisitionHandlers.GetRequisitionHandler())
				requisitionsGroup.POST("",
					middleware.RequireAnyRole(auth.RoleAdmin, auth.RoleRecruiter, auth.RoleHiringManager),
					requisitionHandlers.CreateRequisitionHandler())
				requisitionsGroup.PUT("/:id",
					middleware.RequireAnyRole(auth.RoleAdmin, auth.RoleRecruiter, auth.RoleHiringManager),
					requisitionHandlers.UpdateRequisitionHandler())
				requisitionsGroup.POST("/:id/publish",
					middleware.RequireAnyRole(auth.RoleAdmin, auth.RoleRecruiter),
					requisitionHandlers.PublishRequisitionHandler())
				requisitionsGroup.POST("/:id/close",
					middleware.RequireAnyRole(auth.RoleAdmin, auth.RoleRecruiter, auth.RoleHiringManager),
					requisitionHandlers.CloseRequisitionHandler())
			}

			// Applications and stage history
			applicationsGroup := authenticatedGroup.Group("/applications")
			{
				applicationsGroup.GET("", applicationHandlers.ListApplicationsHandler())
				applicationsGroup.GET("/:id", applicationHandlers.GetApplicationHandler())
				applicationsGroup.POST("",
					middleware.RequireAnyRole(auth.RoleAdmin, auth.RoleRecruiter),
					applicationHandlers.CreateApplicationHandler())
				applicationsGroup.POST("/:id/stage",
					middleware.RequireAnyRole(auth.RoleAdmin, auth.RoleRecruiter, auth.RoleHiringManager),
					applicationHandlers.MoveStageHandler())
				applicationsGroup.GET("/:id/stagehistory", applicationHandlers.ListStageHistoryHandler())
			}
		}
	}

	backgroundServices := &BackgroundServices{}
	for _, rl := range []*middleware.RateLimiter{authRateLimiter, generalRateLimiter, exportRateLimiter} {
		if rl != nil {
			backgroundServices.rateLimiters = append(backgroundServices.rateLimiters, rl)
		}
	}

	return router, backgroundServices
}

// auditPolicyFromConfig extends the built-in classification policy with any
// deployment-specific skip prefixes from the audit config.
func auditPolicyFromConfig(cfg *config.Config) *audit.Policy {
	policy := audit.DefaultPolicy()
	policy.SkipPrefixes = append(policy.SkipPrefixes, cfg.Audit.ExtraSkipPrefixes...)
	return policy
}

// rateLimitTiers builds the three limiter tiers from the security config. A
// disabled config yields nil limiters. The configured requests_per_minute and
// burst override the general tier only; the auth and export tiers keep their
// deliberately stricter budgets.
func rateLimitTiers(cfg *config.Config) (authRL, generalRL, exportRL *middleware.RateLimiter) {
	if !cfg.Security.RateLimiting.Enabled {
		return nil, nil, nil
	}

	general := middleware.DefaultRateLimitConfig()
	if v := cfg.Security.RateLimiting.RequestsPerMinute; v > 0 {
		general.RequestsPerMinute = v
	}
	if v := cfg.Security.RateLimiting.Burst; v > 0 {
		general.BurstSize = v
	}

	return middleware.NewRateLimiter(middleware.AuthRateLimitConfig()),
		middleware.NewRateLimiter(general),
		middleware.NewRateLimiter(middleware.ExportRateLimitConfig())
}

// @Summary      Health check
// @Description  Returns the health status of the service, including database connectivity.
// @Tags         System
// @Produce      json
// @Success      200  {object}  map[string]interface{}  "status: healthy"
// @Failure      503  {object}  map[string]interface{}  "status: unhealthy"
// @Router       /health [get]
// healthCheckHandler returns the health status of the service.
func healthCheckHandler(db *sql.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		// Check database connection
		if err := db.Ping(); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{
				"status": "unhealthy",
				"error":  "database connection failed",
			})
			return
		}

		c.JSON(http.StatusOK, gin.H{
			"status": "healthy",
			"time":   time.Now().UTC().Format(time.RFC3339),
		})
	}
}

// LoggerMiddleware logs each request through slog once the handler chain has
// completed. Output format follows the logging config (json or text).
func LoggerMiddleware(cfg *config.Config) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path
		query := c.Request.URL.RawQuery

		c.Next()

		latency := time.Since(start)

		if cfg.Logging.Format == "json" {
			logJSON(c, latency, path, query)
		} else {
			logText(c, latency, path, query)
		}
	}
}

// logJSON logs a request as a JSON-structured slog record.
func logJSON(c *gin.Context, latency time.Duration, path, query string) {
	requestID, _ := c.Get(middleware.RequestIDKey)
	slog.LogAttrs(
		c.Request.Context(),
		slog.LevelInfo,
		"http request",
		slog.String("method", c.Request.Method),
		slog.String("path", path),
		slog.String("query", query),
		slog.Int("status", c.Writer.Status()),
		slog.Int("size", c.Writer.Size()),
		slog.Duration("latency", latency),
		slog.String("client_ip", c.ClientIP()),
		slog.Any("request_id", requestID),
	)
}

// logText logs a request in a human-readable single line.
func logText(c *gin.Context, latency time.Duration, path, query string) {
	if query != "" {
		path = path + "?" + query
	}
	slog.Info("http request",
		"method", c.Request.Method,
		"path", path,
		"status", c.Writer.Status(),
		"latency", latency,
		"client_ip", c.ClientIP(),
	)
}
