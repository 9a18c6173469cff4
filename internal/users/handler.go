package users

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"litigation-backend/internal/shared/server/middleware"
	"litigation-backend/internal/shared/server/respond"
)

type Handler struct {
	Svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{Svc: svc}
}

func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.GET("/me", h.me)
	rg.PUT("/me/api-key", h.saveAPIKey)
	rg.POST("/me/onboarded", h.markOnboarded)
}

func (h *Handler) me(c *gin.Context) {
	userID, ok := h.requireUser(c)
	if !ok {
		return
	}
	user, err := h.Svc.GetByID(c.Request.Context(), userID)
	if err != nil {
		if err == ErrNotFound {
			respond.Error(c, http.StatusNotFound, "not_found", "user not found", nil)
			return
		}
		respond.Error(c, http.StatusInternalServerError, "internal_error", "failed to load user", nil)
		return
	}
	respond.JSON(c, http.StatusOK, gin.H{
		"id":          user.ID,
		"email":       user.Email,
		"fullName":    user.FullName,
		"pictureUrl":  user.PictureURL,
		"isOnboarded": user.IsOnboarded,
		"isNewUser":   user.IsNewUser,
		"hasApiKey":   user.APIKey != "",
	})
}

func (h *Handler) saveAPIKey(c *gin.Context) {
	userID, ok := h.requireUser(c)
	if !ok {
		return
	}
	var body struct {
		APIKey string `json:"apiKey"`
	}
	if err := c.ShouldBindJSON(&body); err != nil || strings.TrimSpace(body.APIKey) == "" {
		respond.Error(c, http.StatusBadRequest, "invalid_request", "apiKey is required", nil)
		return
	}
	if err := h.Svc.SaveAPIKey(c.Request.Context(), userID, body.APIKey); err != nil {
		if err == ErrNotFound {
			respond.Error(c, http.StatusNotFound, "not_found", "user not found", nil)
			return
		}
		respond.Error(c, http.StatusInternalServerError, "internal_error", "failed to save api key", nil)
		return
	}
	respond.JSON(c, http.StatusOK, gin.H{"saved": true})
}

func (h *Handler) markOnboarded(c *gin.Context) {
	userID, ok := h.requireUser(c)
	if !ok {
		return
	}
	if err := h.Svc.MarkOnboarded(c.Request.Context(), userID); err != nil {
		if err == ErrNotFound {
			respond.Error(c, http.StatusNotFound, "not_found", "user not found", nil)
			return
		}
		respond.Error(c, http.StatusInternalServerError, "internal_error", "failed to update user", nil)
		return
	}
	respond.JSON(c, http.StatusOK, gin.H{"isOnboarded": true})
}

func (h *Handler) requireUser(c *gin.Context) (string, bool) {
	if h.Svc == nil {
		respond.Error(c, http.StatusInternalServerError, "internal_error", "service unavailable", nil)
		return "", false
	}
	if isGuest, ok := c.Get("isGuest"); ok {
		if guest, ok2 := isGuest.(bool); ok2 && guest {
			respond.Error(c, http.StatusUnauthorized, "unauthorized", "login required", nil)
			return "", false
		}
	}
	return middleware.UserIDFromContext(c), true
}
