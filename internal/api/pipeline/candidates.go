// Package pipeline implements the hiring-pipeline entity endpoints: candidates,
// job requisitions, applications, and the stage-history trail. These are the
// routes the audit classifier watches; the entity names in its table line up
// with the path segments registered here.
package pipeline

import (
	"database/sql"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/lib/pq"

	"github.com/hiring-pipeline/hiring-pipeline/internal/config"
	"github.com/hiring-pipeline/hiring-pipeline/internal/db/models"
	"github.com/hiring-pipeline/hiring-pipeline/internal/db/repositories"
)

// CandidateHandlers handles candidate CRUD endpoints
type CandidateHandlers struct {
	cfg  *config.Config
	db   *sql.DB
	repo *repositories.PipelineRepository
}

// NewCandidateHandlers creates a new CandidateHandlers instance
func NewCandidateHandlers(cfg *config.Config, db *sql.DB) *CandidateHandlers {
	return &CandidateHandlers{
		cfg:  cfg,
		db:   db,
		repo: repositories.NewPipelineRepository(db),
	}
}

type candidateRequest struct {
	FirstName string  `json:"firstName" binding:"required"`
	LastName  string  `json:"lastName" binding:"required"`
	Email     string  `json:"email" binding:"required,email"`
	Phone     *string `json:"phone"`
	Source    string  `json:"source"`
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
	return ok && pqErr.Code == "23505"
}

// @Summary      List candidates
// @Description  Get all candidates, most recently added first.
// @Tags         Candidates
// @Security     Bearer
// @Produce      json
// @Success      200  {object}  map[string]interface{}  "candidates"
// @Router       /api/v1/candidates [get]
// ListCandidatesHandler lists all candidates
// GET /api/v1/candidates
func (h *CandidateHandlers) ListCandidatesHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		candidates, err := h.repo.ListCandidates(c.Request.Context())
		if err != nil {
			slog.Error("list candidates failed", "error", err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to list candidates"})
			return
		}

		c.JSON(http.StatusOK, gin.H{"candidates": candidates})
	}
}

// @Summary      Get candidate
// @Tags         Candidates
// @Security     Bearer
// @Produce      json
// @Param        id  path  int  true  "Candidate ID"
// @Success      200  {object}  map[string]interface{}  "candidate"
// @Failure      404  {object}  map[string]interface{}  "Candidate not found"
// @Router       /api/v1/candidates/{id} [get]
// GetCandidateHandler retrieves a candidate by ID
// GET /api/v1/candidates/:id
func (h *CandidateHandlers) GetCandidateHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := pathID(c, "id")
		if !ok {
			return
		}

		candidate, err := h.repo.GetCandidate(c.Request.Context(), id)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to retrieve candidate"})
			return
		}
		if candidate == nil {
			c.JSON(http.StatusNotFound, gin.H{"error": "Candidate not found"})
			return
		}

		c.JSON(http.StatusOK, gin.H{"candidate": candidate})
	}
}

// @Summary      Create candidate
// @Tags         Candidates
// @Security     Bearer
// @Accept       json
// @Produce      json
// @Param        body  body  candidateRequest  true  "New candidate"
// @Success      201  {object}  map[string]interface{}  "candidate"
// @Failure      409  {object}  map[string]interface{}  "Email already registered"
// @Router       /api/v1/candidates [post]
// CreateCandidateHandler creates a new candidate
// POST /api/v1/candidates
func (h *CandidateHandlers) CreateCandidateHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		var req candidateRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "firstName, lastName, and a valid email are required"})
			return
		}

		candidate := &models.Candidate{
			FirstName: req.FirstName,
			LastName:  req.LastName,
			Email:     req.Email,
			Phone:     req.Phone,
			Source:    req.Source,
		}

		if err := h.repo.CreateCandidate(c.Request.Context(), candidate); err != nil {
			if isUniqueViolation(err) {
				c.JSON(http.StatusConflict, gin.H{"error": "Email already registered"})
				return
			}
			slog.Error("create candidate failed", "error", err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to create candidate"})
			return
		}

		c.JSON(http.StatusCreated, gin.H{"candidate": candidate})
	}
}

// @Summary      Update candidate
// @Tags         Candidates
// @Security     Bearer
// @Accept       json
// @Produce      json
// @Param        id    path  int               true  "Candidate ID"
// @Param        body  body  candidateRequest  true  "Updated fields"
// @Success      200  {object}  map[string]interface{}  "candidate"
// @Failure      404  {object}  map[string]interface{}  "Candidate not found"
// @Router       /api/v1/candidates/{id} [put]
// UpdateCandidateHandler updates a candidate
// PUT /api/v1/candidates/:id
func (h *CandidateHandlers) UpdateCandidateHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := pathID(c, "id")
		if !ok {
			return
		}

		var req candidateRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "firstName, lastName, and a valid email are required"})
			return
		}

		candidate, err := h.repo.GetCandidate(c.Request.Context(), id)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to retrieve candidate"})
			return
		}
		if candidate == nil {
			c.JSON(http.StatusNotFound, gin.H{"error": "Candidate not found"})
			return
		}

		candidate.FirstName = req.FirstName
		candidate.LastName = req.LastName
		candidate.Email = req.Email
		candidate.Phone = req.Phone
		candidate.Source = req.Source

		if err := h.repo.UpdateCandidate(c.Request.Context(), candidate); err != nil {
			if isUniqueViolation(err) {
				c.JSON(http.StatusConflict, gin.H{"error": "Email already registered"})
				return
			}
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to update candidate"})
			return
		}

		c.JSON(http.StatusOK, gin.H{"candidate": candidate})
	}
}

// @Summary      Delete candidate
// @Tags         Candidates
// @Security     Bearer
// @Produce      json
// @Param        id  path  int  true  "Candidate ID"
// @Success      200  {object}  map[string]interface{}  "message"
// @Failure      404  {object}  map[string]interface{}  "Candidate not found"
// @Router       /api/v1/candidates/{id} [delete]
// DeleteCandidateHandler deletes a candidate
// DELETE /api/v1/candidates/:id
func (h *CandidateHandlers) DeleteCandidateHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := pathID(c, "id")
		if !ok {
			return
		}

		deleted, err := h.repo.DeleteCandidate(c.Request.Context(), id)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to delete candidate"})
			return
		}
		if !deleted {
			c.JSON(http.StatusNotFound, gin.H{"error": "Candidate not found"})
			return
		}

		slog.Info("candidate deleted", "candidate_id", id)
		c.JSON(http.StatusOK, gin.H{"message": "Candidate deleted"})
	}
}
