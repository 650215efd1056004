// applications.go implements application endpoints, including the stage-move
// operation that appends to the stage-history trail.
package pipeline

import (
	"database/sql"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/hiring-pipeline/hiring-pipeline/internal/config"
	"github.com/hiring-pipeline/hiring-pipeline/internal/db/models"
	"github.com/hiring-pipeline/hiring-pipeline/internal/db/repositories"
	"github.com/hiring-pipeline/hiring-pipeline/internal/middleware"
	"github.com/hiring-pipeline/hiring-pipeline/internal/telemetry"
)

// ApplicationHandlers handles application and stage-history endpoints
type ApplicationHandlers struct {
	cfg  *config.Config
	db   *sql.DB
	repo *repositories.PipelineRepository
}

// NewApplicationHandlers creates a new ApplicationHandlers instance
func NewApplicationHandlers(cfg *config.Config, db *sql.DB) *ApplicationHandlers {
	return &ApplicationHandlers{
		cfg:  cfg,
		db:   db,
		repo: repositories.NewPipelineRepository(db),
	}
}

type createApplicationRequest struct {
	CandidateID   int64 `json:"candidateId" binding:"required"`
	RequisitionID int64 `json:"requisitionId" binding:"required"`
}

type moveStageRequest struct {
	ToStage string  `json:"toStage" binding:"required"`
	Note    *string `json:"note"`
}

// @Summary      List applications
// @Description  Get applications, optionally scoped to one requisition or one candidate.
// @Tags         Applications
// @Security     Bearer
// @Produce      json
// @Param        requisitionId  query  int  false  "Filter by requisition"
// @Param        candidateId    query  int  false  "Filter by candidate"
// @Success      200  {object}  map[string]interface{}  "applications"
// @Router       /api/v1/applications [get]
// ListApplicationsHandler lists applications
// GET /api/v1/applications
func (h *ApplicationHandlers) ListApplicationsHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		var requisitionID, candidateID *int64
		if v := c.Query("requisitionId"); v != "" {
			id, err := strconv.ParseInt(v, 10, 64)
			if err != nil {
				c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid requisitionId"})
				return
			}
			requisitionID = &id
		}
		if v := c.Query("candidateId"); v != "" {
			id, err := strconv.ParseInt(v, 10, 64)
			if err != nil {
				c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid candidateId"})
				return
			}
			candidateID = &id
		}

		apps, err := h.repo.ListApplications(c.Request.Context(), requisitionID, candidateID)
		if err != nil {
			slog.Error("list applications failed", "error", err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to list applications"})
			return
		}

		c.JSON(http.StatusOK, gin.H{"applications": apps})
	}
}

// @Summary      Get application
// @Tags         Applications
// @Security     Bearer
// @Produce      json
// @Param        id  path  int  true  "Application ID"
// @Success      200  {object}  map[string]interface{}  "application"
// @Failure      404  {object}  map[string]interface{}  "Application not found"
// @Router       /api/v1/applications/{id} [get]
// GetApplicationHandler retrieves an application by ID
// GET /api/v1/applications/:id
func (h *ApplicationHandlers) GetApplicationHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := pathID(c, "id")
		if !ok {
			return
		}

		app, err := h.repo.GetApplication(c.Request.Context(), id)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to retrieve application"})
			return
		}
		if app == nil {
			c.JSON(http.StatusNotFound, gin.H{"error": "Application not found"})
			return
		}

		c.JSON(http.StatusOK, gin.H{"application": app})
	}
}

// @Summary      Create application
// @Description  Apply a candidate to a published requisition. An application starts in the applied stage; the (candidate, requisition) pair is unique.
// @Tags         Applications
// @Security     Bearer
// @Accept       json
// @Produce      json
// @Param        body  body  createApplicationRequest  true  "New application"
// @Success      201  {object}  map[string]interface{}  "application"
// @Failure      404  {object}  map[string]interface{}  "Candidate or requisition not found"
// @Failure      409  {object}  map[string]interface{}  "Already applied or requisition not open"
// @Router       /api/v1/applications [post]
// CreateApplicationHandler applies a candidate to a requisition
// POST /api/v1/applications
func (h *ApplicationHandlers) CreateApplicationHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		var body createApplicationRequest
		if err := c.ShouldBindJSON(&body); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "candidateId and requisitionId are required"})
			return
		}

		candidate, err := h.repo.GetCandidate(c.Request.Context(), body.CandidateID)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to create application"})
			return
		}
		if candidate == nil {
			c.JSON(http.StatusNotFound, gin.H{"error": "Candidate not found"})
			return
		}

		req, err := h.repo.GetRequisition(c.Request.Context(), body.RequisitionID)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to create application"})
			return
		}
		if req == nil {
			c.JSON(http.StatusNotFound, gin.H{"error": "Requisition not found"})
			return
		}
		if req.Status != models.RequisitionPublished {
			c.JSON(http.StatusConflict, gin.H{"error": "Requisition is not open for applications"})
			return
		}

		app := &models.Application{
			CandidateID:   body.CandidateID,
			RequisitionID: body.RequisitionID,
			CurrentStage:  models.StageApplied,
			Status:        models.ApplicationActive,
		}

		if err := h.repo.CreateApplication(c.Request.Context(), app); err != nil {
			if isUniqueViolation(err) {
				c.JSON(http.StatusConflict, gin.H{"error": "Candidate has already applied to this requisition"})
				return
			}
			slog.Error("create application failed", "error", err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to create application"})
			return
		}

		c.JSON(http.StatusCreated, gin.H{"application": app})
	}
}

// @Summary      Move application stage
// @Description  Move an application to another pipeline stage. The transition is appended to the stage-history trail in the same transaction.
// @Tags         Applications
// @Security     Bearer
// @Accept       json
// @Produce      json
// @Param        id    path  int               true  "Application ID"
// @Param        body  body  moveStageRequest  true  "Target stage"
// @Success      200  {object}  map[string]interface{}  "message, fromStage, toStage"
// @Failure      400  {object}  map[string]interface{}  "Unknown stage"
// @Failure      404  {object}  map[string]interface{}  "Application not found"
// @Router       /api/v1/applications/{id}/stage [post]
// MoveStageHandler moves an application to another stage
// POST /api/v1/applications/:id/stage
func (h *ApplicationHandlers) MoveStageHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := pathID(c, "id")
		if !ok {
			return
		}

		var body moveStageRequest
		if err := c.ShouldBindJSON(&body); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "toStage is required"})
			return
		}
		if !models.ValidStage(body.ToStage) {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Unknown stage: " + body.ToStage})
			return
		}

		var movedBy *int64
		if actor, ok := middleware.UserID(c); ok {
			movedBy = &actor
		}

		fromStage, moved, err := h.repo.MoveApplicationStage(c.Request.Context(), id, body.ToStage, movedBy, body.Note)
		if err != nil {
			slog.Error("stage move failed", "error", err, "application_id", id)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to move stage"})
			return
		}
		if !moved {
			c.JSON(http.StatusNotFound, gin.H{"error": "Application not found"})
			return
		}

		telemetry.StageMovesTotal.WithLabelValues(body.ToStage).Inc()
		slog.Info("application stage moved",
			"application_id", id, "from", fromStage, "to", body.ToStage)

		// Surface the transition to the audit middleware.
		c.Set(middleware.ContextAuditChanges, map[string]interface{}{
			"fromStage": fromStage,
			"toStage":   body.ToStage,
		})

		c.JSON(http.StatusOK, gin.H{
			"message":   "Stage updated",
			"fromStage": fromStage,
			"toStage":   body.ToStage,
		})
	}
}

// @Summary      List stage history
// @Description  Get the append-only stage transition trail of one application, oldest first.
// @Tags         Applications
// @Security     Bearer
// @Produce      json
// @Param        id  path  int  true  "Application ID"
// @Success      200  {object}  map[string]interface{}  "stageHistory"
// @Failure      404  {object}  map[string]interface{}  "Application not found"
// @Router       /api/v1/applications/{id}/stagehistory [get]
// ListStageHistoryHandler lists an application's stage transitions
// GET /api/v1/applications/:id/stagehistory
func (h *ApplicationHandlers) ListStageHistoryHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := pathID(c, "id")
		if !ok {
			return
		}

		app, err := h.repo.GetApplication(c.Request.Context(), id)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to retrieve application"})
			return
		}
		if app == nil {
			c.JSON(http.StatusNotFound, gin.H{"error": "Application not found"})
			return
		}

		history, err := h.repo.ListStageHistory(c.Request.Context(), id)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to retrieve stage history"})
			return
		}

		c.JSON(http.StatusOK, gin.H{"stageHistory": history})
	}
}
