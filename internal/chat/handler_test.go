package chat

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"

	"litigation-backend/internal/agent"
	"litigation-backend/internal/shared/server/middleware"
)

type fakeAsker struct {
	lastInput agent.AskInput
	err       error
}

func (f *fakeAsker) Ask(ctx context.Context, apiKey string, input agent.AskInput) (agent.Response, error) {
	f.lastInput = input
	if f.err != nil {
		return agent.Response{}, f.err
	}
	return agent.Response{Response: "the filing deadline is in 30 days", SessionID: input.SessionID}, nil
}

type staticKeys struct{}

func (staticKeys) ResolveAPIKey(ctx context.Context, userID string) (string, error) {
	return "test-key", nil
}

func newTestRouter(t *testing.T, asker *fakeAsker) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)

	handler := NewHandler(asker, staticKeys{}, "agent-chat")
	r := gin.New()
	r.Use(middleware.RequestID(), middleware.Auth("dev"))
	handler.RegisterRoutes(r.Group("/api/v1"))
	return r
}

func TestChatAnswers(t *testing.T) {
	asker := &fakeAsker{}
	router := newTestRouter(t, asker)

	body, _ := json.Marshal(map[string]string{
		"message":   "when is the filing deadline?",
		"sessionId": "session-1",
		"ragId":     "rag-1",
	})
	req := httptest.NewRequest(http.MethodPost, "/api/v1/chat", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Guest-Id", "test-guest")
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, req)

	if resp.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d: %s", resp.Code, resp.Body.String())
	}
	var out struct {
		Response  string `json:"response"`
		SessionID string `json:"sessionId"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if out.Response == "" || out.SessionID != "session-1" {
		t.Fatalf("unexpected response %+v", out)
	}
	if asker.lastInput.RagID != "rag-1" || asker.lastInput.AgentID != "agent-chat" {
		t.Fatalf("unexpected ask input %+v", asker.lastInput)
	}
}

func TestChatRequiresMessage(t *testing.T) {
	router := newTestRouter(t, &fakeAsker{})

	body, _ := json.Marshal(map[string]string{"sessionId": "session-1"})
	req := httptest.NewRequest(http.MethodPost, "/api/v1/chat", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Guest-Id", "test-guest")
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, req)

	if resp.Code != http.StatusBadRequest {
		t.Fatalf("expected status 400, got %d", resp.Code)
	}
}

func TestChatAgentFailure(t *testing.T) {
	router := newTestRouter(t, &fakeAsker{err: errors.New("upstream down")})

	body, _ := json.Marshal(map[string]string{"message": "hello"})
	req := httptest.NewRequest(http.MethodPost, "/api/v1/chat", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Guest-Id", "test-guest")
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, req)

	if resp.Code != http.StatusBadGateway {
		t.Fatalf("expected status 502, got %d", resp.Code)
	}
}
