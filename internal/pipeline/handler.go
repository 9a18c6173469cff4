package pipeline

import (
	"errors"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"

	"litigation-backend/internal/shared/server/middleware"
	"litigation-backend/internal/shared/server/respond"
)

const maxUploadSize = 50 << 20 // 50MB across all files

// Handler exposes pipeline submission over HTTP.
type Handler struct {
	Svc *Service
}

// NewHandler constructs a Handler.
func NewHandler(svc *Service) *Handler {
	return &Handler{Svc: svc}
}

// RegisterRoutes attaches pipeline routes to the router group.
func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.POST("/process", h.process)
}

func (h *Handler) process(c *gin.Context) {
	userID := middleware.UserIDFromContext(c)
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxUploadSize)

	form, err := c.MultipartForm()
	if err != nil {
		respond.Error(c, http.StatusBadRequest, "validation_error", "multipart form is required", nil)
		return
	}
	headers := form.File["pdf"]
	if len(headers) == 0 {
		headers = form.File["file"]
	}
	if len(headers) == 0 {
		respond.Error(c, http.StatusBadRequest, "validation_error", "at least one pdf file is required", nil)
		return
	}

	in := SubmitInput{
		UserID:    userID,
		SessionID: c.PostForm("sessionId"),
		Files:     make([]File, 0, len(headers)),
	}
	for _, fh := range headers {
		f, err := fh.Open()
		if err != nil {
			respond.Error(c, http.StatusBadRequest, "validation_error", "unable to read file", nil)
			return
		}
		data, readErr := io.ReadAll(f)
		f.Close()
		if readErr != nil {
			respond.Error(c, http.StatusBadRequest, "validation_error", "unable to read file", nil)
			return
		}
		in.Files = append(in.Files, File{Name: fh.Filename, Data: data})
	}

	res, err := h.Svc.Submit(c.Request.Context(), in)
	if err != nil {
		switch {
		case errors.Is(err, ErrInvalidInput):
			respond.Error(c, http.StatusBadRequest, "validation_error", err.Error(), nil)
		case errors.Is(err, ErrBusy):
			respond.Error(c, http.StatusServiceUnavailable, "busy", "pipeline is at capacity, retry shortly", nil)
		default:
			respond.Error(c, http.StatusInternalServerError, "internal_error", "failed to start processing", nil)
		}
		return
	}

	respond.JSON(c, http.StatusAccepted, gin.H{
		"status":   "processing",
		"statusId": res.StatusID,
		"jobId":    res.JobID,
	})
}
