package documents

import (
	"context"
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"litigation-backend/internal/shared/server/middleware"
	"litigation-backend/internal/shared/server/respond"
)

const maxUploadSize = 50 << 20 // 50MB across all files

// KeyResolver resolves the provider credential for a caller.
// Implemented by users.Service.
type KeyResolver interface {
	ResolveAPIKey(ctx context.Context, userID string) (string, error)
}

// Handler wires HTTP handlers to the service.
type Handler struct {
	Svc  *Service
	Keys KeyResolver
}

// NewHandler constructs a Handler.
func NewHandler(svc *Service, keys KeyResolver) *Handler {
	return &Handler{Svc: svc, Keys: keys}
}

// RegisterRoutes attaches document routes to the router group.
func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.POST("/documents", h.ingest)
	rg.GET("/documents", h.list)
	rg.GET("/documents/:id", h.get)
	rg.DELETE("/documents/rag/:ragId", h.deleteByRag)
}

func (h *Handler) ingest(c *gin.Context) {
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

	apiKey, err := h.Keys.ResolveAPIKey(c.Request.Context(), userID)
	if err != nil {
		respond.Error(c, http.StatusBadRequest, "validation_error", "no provider api key available", nil)
		return
	}

	files := make([]UploadFile, 0, len(headers))
	closers := make([]interface{ Close() error }, 0, len(headers))
	defer func() {
		for _, closer := range closers {
			closer.Close()
		}
	}()
	for _, fh := range headers {
		f, err := fh.Open()
		if err != nil {
			respond.Error(c, http.StatusBadRequest, "validation_error", "unable to read file", nil)
			return
		}
		closers = append(closers, f)
		files = append(files, UploadFile{FileName: fh.Filename, Reader: f})
	}

	doc, err := h.Svc.Ingest(c.Request.Context(), userID, apiKey, files)
	if err != nil {
		switch {
		case errors.Is(err, ErrInvalidInput):
			respond.Error(c, http.StatusBadRequest, "validation_error", err.Error(), nil)
		default:
			respond.Error(c, http.StatusInternalServerError, "internal_error", "failed to ingest documents", nil)
		}
		return
	}

	respond.JSON(c, http.StatusCreated, toResponse(doc))
}

func (h *Handler) get(c *gin.Context) {
	userID := middleware.UserIDFromContext(c)

	doc, err := h.Svc.Get(c.Request.Context(), userID, c.Param("id"))
	if err != nil {
		switch {
		case errors.Is(err, ErrNotFound):
			respond.Error(c, http.StatusNotFound, "not_found", "document not found", nil)
		case errors.Is(err, ErrInvalidInput):
			respond.Error(c, http.StatusBadRequest, "validation_error", err.Error(), nil)
		default:
			respond.Error(c, http.StatusInternalServerError, "internal_error", "failed to fetch document", nil)
		}
		return
	}

	respond.JSON(c, http.StatusOK, toResponse(doc))
}

func (h *Handler) list(c *gin.Context) {
	userID := middleware.UserIDFromContext(c)

	limit := 20
	offset := 0
	if v := c.Query("limit"); v != "" {
		if parsed, err := strconv.Atoi(v); err == nil {
			limit = parsed
		}
	}
	if limit < 0 {
		limit = 0
	}
	if limit > 50 {
		limit = 50
	}
	if v := c.Query("offset"); v != "" {
		if parsed, err := strconv.Atoi(v); err == nil {
			offset = parsed
		}
	}
	if offset < 0 {
		offset = 0
	}

	docs, err := h.Svc.List(c.Request.Context(), userID, limit, offset)
	if err != nil {
		respond.Error(c, http.StatusInternalServerError, "internal_error", "failed to list documents", nil)
		return
	}

	resp := make([]DocumentResponse, 0, len(docs))
	for _, doc := range docs {
		resp = append(resp, toResponse(doc))
	}
	respond.JSON(c, http.StatusOK, resp)
}

func (h *Handler) deleteByRag(c *gin.Context) {
	userID := middleware.UserIDFromContext(c)
	ragID := c.Param("ragId")

	apiKey, _ := h.Keys.ResolveAPIKey(c.Request.Context(), userID)

	err := h.Svc.DeleteByRag(c.Request.Context(), userID, apiKey, ragID)
	if err != nil {
		switch {
		case errors.Is(err, ErrNotFound):
			respond.Error(c, http.StatusNotFound, "not_found", "document not found", nil)
		case errors.Is(err, ErrInvalidInput):
			respond.Error(c, http.StatusBadRequest, "validation_error", err.Error(), nil)
		default:
			respond.Error(c, http.StatusInternalServerError, "internal_error", "failed to delete document", nil)
		}
		return
	}

	respond.JSON(c, http.StatusOK, gin.H{"deleted": true, "ragId": ragID})
}
