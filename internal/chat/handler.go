package chat

import (
	"context"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"litigation-backend/internal/agent"
	"litigation-backend/internal/shared/server/middleware"
	"litigation-backend/internal/shared/server/respond"
	"litigation-backend/internal/shared/telemetry"
)

// Asker is the inference surface. Implemented by agent.Client.
type Asker interface {
	Ask(ctx context.Context, apiKey string, input agent.AskInput) (agent.Response, error)
}

// KeyResolver resolves the provider credential for a caller.
// Implemented by users.Service.
type KeyResolver interface {
	ResolveAPIKey(ctx context.Context, userID string) (string, error)
}

// Handler exposes conversational Q&A against a trained index.
type Handler struct {
	Agent   Asker
	Keys    KeyResolver
	AgentID string
}

func NewHandler(asker Asker, keys KeyResolver, agentID string) *Handler {
	return &Handler{Agent: asker, Keys: keys, AgentID: agentID}
}

// RegisterRoutes attaches chat routes to the router group.
func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.POST("/chat", h.chat)
}

type chatRequest struct {
	Message   string `json:"message"`
	SessionID string `json:"sessionId"`
	RagID     string `json:"ragId"`
}

func (h *Handler) chat(c *gin.Context) {
	userID := middleware.UserIDFromContext(c)

	var req chatRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respond.Error(c, http.StatusBadRequest, "validation_error", "invalid request body", nil)
		return
	}
	if strings.TrimSpace(req.Message) == "" {
		respond.Error(c, http.StatusBadRequest, "validation_error", "message is required", nil)
		return
	}

	apiKey, err := h.Keys.ResolveAPIKey(c.Request.Context(), userID)
	if err != nil {
		respond.Error(c, http.StatusBadRequest, "validation_error", "no provider api key available", nil)
		return
	}

	resp, err := h.Agent.Ask(c.Request.Context(), apiKey, agent.AskInput{
		AgentID:   h.AgentID,
		SessionID: req.SessionID,
		Message:   req.Message,
		RagID:     req.RagID,
	})
	if err != nil {
		telemetry.Warn("chat inference failed", map[string]any{
			"user_id": userID,
			"error":   err.Error(),
		})
		respond.Error(c, http.StatusBadGateway, "agent_error", "agent request failed", nil)
		return
	}

	respond.JSON(c, http.StatusOK, gin.H{
		"response":  resp.Response,
		"sessionId": resp.SessionID,
	})
}
