// requisitions.go implements job requisition endpoints, including the
// draft/published/closed lifecycle transitions.
package pipeline

import (
	"database/sql"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/hiring-pipeline/hiring-pipeline/internal/config"
	"github.com/hiring-pipeline/hiring-pipeline/internal/db/models"
	"github.com/hiring-pipeline/hiring-pipeline/internal/db/repositories"
)

// RequisitionHandlers handles requisition endpoints
type RequisitionHandlers struct {
	cfg  *config.Config
	db   *sql.DB
	repo *repositories.PipelineRepository
}

// NewRequisitionHandlers creates a new RequisitionHandlers instance
func NewRequisitionHandlers(cfg *config.Config, db *sql.DB) *RequisitionHandlers {
	return &RequisitionHandlers{
		cfg:  cfg,
		db:   db,
		repo: repositories.NewPipelineRepository(db),
	}
}

type requisitionRequest struct {
	Title       string `json:"title" binding:"required"`
	Department  string `json:"department" binding:"required"`
	Description string `json:"description"`
}

// @Summary      List requisitions
// @Description  Get all requisitions, optionally filtered by lifecycle status.
// @Tags         Requisitions
// @Security     Bearer
// @Produce      json
// @Param        status  query  string  false  "draft, published, or closed"
// @Success      200  {object}  map[string]interface{}  "requisitions"
// @Router       /api/v1/requisitions [get]
// ListRequisitionsHandler lists requisitions
// GET /api/v1/requisitions
func (h *RequisitionHandlers) ListRequisitionsHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		var status *string
		if v := c.Query("status"); v != "" {
			if v != models.RequisitionDraft && v != models.RequisitionPublished && v != models.RequisitionClosed {
				c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid status"})
				return
			}
			status = &v
		}

		reqs, err := h.repo.ListRequisitions(c.Request.Context(), status)
		if err != nil {
			slog.Error("list requisitions failed", "error", err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to list requisitions"})
			return
		}

		c.JSON(http.StatusOK, gin.H{"requisitions": reqs})
	}
}

// @Summary      Get requisition
// @Tags         Requisitions
// @Security     Bearer
// @Produce      json
// @Param        id  path  int  true  "Requisition ID"
// @Success      200  {object}  map[string]interface{}  "requisition"
// @Failure      404  {object}  map[string]interface{}  "Requisition not found"
// @Router       /api/v1/requisitions/{id} [get]
// GetRequisitionHandler retrieves a requisition by ID
// GET /api/v1/requisitions/:id
func (h *RequisitionHandlers) GetRequisitionHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := pathID(c, "id")
		if !ok {
			return
		}

		req, err := h.repo.GetRequisition(c.Request.Context(), id)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to retrieve requisition"})
			return
		}
		if req == nil {
			c.JSON(http.StatusNotFound, gin.H{"error": "Requisition not found"})
			return
		}

		c.JSON(http.StatusOK, gin.H{"requisition": req})
	}
}

// @Summary      Create requisition
// @Description  Create a new requisition. New requisitions always start in draft.
// @Tags         Requisitions
// @Security     Bearer
// @Accept       json
// @Produce      json
// @Param        body  body  requisitionRequest  true  "New requisition"
// @Success      201  {object}  map[string]interface{}  "requisition"
// @Router       /api/v1/requisitions [post]
// CreateRequisitionHandler creates a new draft requisition
// POST /api/v1/requisitions
func (h *RequisitionHandlers) CreateRequisitionHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		var body requisitionRequest
		if err := c.ShouldBindJSON(&body); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "title and department are required"})
			return
		}

		req := &models.Requisition{
			Title:       body.Title,
			Department:  body.Department,
			Description: body.Description,
		}

		if err := h.repo.CreateRequisition(c.Request.Context(), req); err != nil {
			slog.Error("create requisition failed", "error", err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to create requisition"})
			return
		}

		c.JSON(http.StatusCreated, gin.H{"requisition": req})
	}
}

// @Summary      Update requisition
// @Tags         Requisitions
// @Security     Bearer
// @Accept       json
// @Produce      json
// @Param        id    path  int                 true  "Requisition ID"
// @Param        body  body  requisitionRequest  true  "Updated fields"
// @Success      200  {object}  map[string]interface{}  "requisition"
// @Failure      404  {object}  map[string]interface{}  "Requisition not found"
// @Router       /api/v1/requisitions/{id} [put]
// UpdateRequisitionHandler updates a requisition's descriptive fields
// PUT /api/v1/requisitions/:id
func (h *RequisitionHandlers) UpdateRequisitionHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := pathID(c, "id")
		if !ok {
			return
		}

		var body requisitionRequest
		if err := c.ShouldBindJSON(&body); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "title and department are required"})
			return
		}

		req, err := h.repo.GetRequisition(c.Request.Context(), id)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to retrieve requisition"})
			return
		}
		if req == nil {
			c.JSON(http.StatusNotFound, gin.H{"error": "Requisition not found"})
			return
		}

		req.Title = body.Title
		req.Department = body.Department
		req.Description = body.Description

		if err := h.repo.UpdateRequisition(c.Request.Context(), req); err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to update requisition"})
			return
		}

		c.JSON(http.StatusOK, gin.H{"requisition": req})
	}
}

// @Summary      Publish requisition
// @Description  Move a draft requisition to published so candidates can apply. Only drafts can be published.
// @Tags         Requisitions
// @Security     Bearer
// @Produce      json
// @Param        id  path  int  true  "Requisition ID"
// @Success      200  {object}  map[string]interface{}  "message"
// @Failure      409  {object}  map[string]interface{}  "Not in draft status"
// @Router       /api/v1/requisitions/{id}/publish [post]
// PublishRequisitionHandler publishes a draft requisition
// POST /api/v1/requisitions/:id/publish
func (h *RequisitionHandlers) PublishRequisitionHandler() gin.HandlerFunc {
	return h.transitionHandler(models.RequisitionDraft, models.RequisitionPublished, "Requisition published")
}

// @Summary      Close requisition
// @Description  Close a published requisition. Only published requisitions can be closed.
// @Tags         Requisitions
// @Security     Bearer
// @Produce      json
// @Param        id  path  int  true  "Requisition ID"
// @Success      200  {object}  map[string]interface{}  "message"
// @Failure      409  {object}  map[string]interface{}  "Not in published status"
// @Router       /api/v1/requisitions/{id}/close [post]
// CloseRequisitionHandler closes a published requisition
// POST /api/v1/requisitions/:id/close
func (h *RequisitionHandlers) CloseRequisitionHandler() gin.HandlerFunc {
	return h.transitionHandler(models.RequisitionPublished, models.RequisitionClosed, "Requisition closed")
}

// transitionHandler guards a status transition with a conditional update: the
// row only changes when it is currently in the expected source status.
func (h *RequisitionHandlers) transitionHandler(from, to, message string) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := pathID(c, "id")
		if !ok {
			return
		}

		moved, err := h.repo.SetRequisitionStatus(c.Request.Context(), id, from, to)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to update requisition"})
			return
		}
		if !moved {
			req, err := h.repo.GetRequisition(c.Request.Context(), id)
			if err != nil {
				c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to update requisition"})
				return
			}
			if req == nil {
				c.JSON(http.StatusNotFound, gin.H{"error": "Requisition not found"})
				return
			}
			c.JSON(http.StatusConflict, gin.H{"error": "Requisition is not in " + from + " status"})
			return
		}

		slog.Info("requisition status changed", "requisition_id", id, "from", from, "to", to)
		c.JSON(http.StatusOK, gin.H{"message": message})
	}
}
