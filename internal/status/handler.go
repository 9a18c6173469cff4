package status

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"litigation-backend/internal/shared/server/respond"
)

// Handler exposes the polling endpoints.
type Handler struct {
	Repo Repo
}

func NewHandler(repo Repo) *Handler {
	return &Handler{Repo: repo}
}

// RegisterRoutes attaches the read routes to the router group.
func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.GET("/status/:id", h.getStatus)
	rg.GET("/status/user/:userId", h.getLatestForUser)
	rg.GET("/jobs/:id", h.getJob)
}

func (h *Handler) getStatus(c *gin.Context) {
	rec, err := h.Repo.GetByID(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.respondLookupError(c, err)
		return
	}
	c.Set("statusId", rec.ID)
	respond.JSON(c, http.StatusOK, processView(rec))
}

func (h *Handler) getLatestForUser(c *gin.Context) {
	rec, err := h.Repo.GetLatestByOwner(c.Request.Context(), c.Param("userId"))
	if err != nil {
		h.respondLookupError(c, err)
		return
	}
	c.Set("statusId", rec.ID)
	respond.JSON(c, http.StatusOK, processView(rec))
}

func (h *Handler) getJob(c *gin.Context) {
	rec, err := h.Repo.GetByID(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.respondLookupError(c, err)
		return
	}
	c.Set("jobId", rec.ID)
	respond.JSON(c, http.StatusOK, jobView(rec))
}

func (h *Handler) respondLookupError(c *gin.Context, err error) {
	if errors.Is(err, ErrNotFound) {
		respond.Error(c, http.StatusNotFound, "not_found", "status record not found", nil)
		return
	}
	respond.Error(c, http.StatusInternalServerError, "internal_error", "failed to fetch status", nil)
}

func processView(rec Record) gin.H {
	view := gin.H{
		"id":              rec.ID,
		"status":          rec.Status,
		"currentStep":     rec.CurrentStep,
		"totalSteps":      rec.TotalSteps,
		"stepDescription": rec.StepDescription,
		"createdAt":       rec.CreatedAt.Format(time.RFC3339),
		"updatedAt":       rec.UpdatedAt.Format(time.RFC3339),
	}
	if rec.DocumentID != "" {
		view["documentId"] = rec.DocumentID
	}
	if rec.RagID != "" {
		view["ragId"] = rec.RagID
	}
	if rec.Error != nil {
		view["error"] = *rec.Error
	}
	if rec.ProjectName != "" {
		view["projectName"] = rec.ProjectName
	}
	return view
}

func jobView(rec Record) gin.H {
	view := gin.H{
		"id":         rec.ID,
		"status":     rec.Status,
		"created_at": rec.CreatedAt.Format(time.RFC3339),
		"updated_at": rec.UpdatedAt.Format(time.RFC3339),
	}
	if rec.Status == StatusCompleted && len(rec.Results) > 0 {
		view["results"] = rec.Results
	}
	if rec.Error != nil {
		view["error"] = *rec.Error
	}
	if rec.ErrorCode != nil {
		view["error_code"] = *rec.ErrorCode
	}
	return view
}
