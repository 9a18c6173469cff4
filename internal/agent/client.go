package agent

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Client talks to the inference provider (Lyzr agent API).
type Client struct {
	baseURL    string
	httpClient *http.Client

	// UserID identifies this deployment to the provider.
	UserID string
	// RagBaseURL is embedded in knowledge-base features so the agent can
	// reach the index.
	RagBaseURL string
}

// NewClient constructs an agent client for the given base URL.
func NewClient(baseURL, ragBaseURL string) *Client {
	timeout := 180 * time.Second
	if raw := strings.TrimSpace(os.Getenv("AGENT_TIMEOUT_SECONDS")); raw != "" {
		if parsed, err := strconv.Atoi(raw); err == nil && parsed > 0 {
			timeout = time.Duration(parsed) * time.Second
		}
	}
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: timeout},
		UserID:     "default@lyzr.ai",
		RagBaseURL: strings.TrimRight(ragBaseURL, "/"),
	}
}

// AskInput is one inference request.
type AskInput struct {
	AgentID   string
	SessionID string
	Message   string
	// RagID, when set, attaches the knowledge base to the conversation.
	RagID string
}

// Response is the provider's answer plus the session it ran under.
type Response struct {
	Response  string          `json:"response"`
	SessionID string          `json:"session_id"`
	Raw       json.RawMessage `json:"-"`
}

type chatRequest struct {
	UserID    string    `json:"user_id"`
	AgentID   string    `json:"agent_id"`
	SessionID string    `json:"session_id"`
	Message   string    `json:"message"`
	Features  []feature `json:"features,omitempty"`
}

type feature struct {
	Type     string        `json:"type"`
	Config   featureConfig `json:"config"`
	Priority int           `json:"priority"`
}

type featureConfig struct {
	LyzrRag ragConfig `json:"lyzr_rag"`
}

type ragConfig struct {
	BaseURL string    `json:"base_url"`
	RagID   string    `json:"rag_id"`
	Params  ragParams `json:"params"`
}

type ragParams struct {
	TopK           int     `json:"top_k"`
	RetrievalType  string  `json:"retrieval_type"`
	ScoreThreshold float64 `json:"score_threshold"`
}

// Ask runs one inference call. A fresh session id is minted when the
// caller does not supply one.
func (c *Client) Ask(ctx context.Context, apiKey string, input AskInput) (Response, error) {
	if strings.TrimSpace(input.AgentID) == "" {
		return Response{}, fmt.Errorf("agent ask: agent id is required")
	}
	if strings.TrimSpace(input.Message) == "" {
		return Response{}, fmt.Errorf("agent ask: message is required")
	}
	sessionID := input.SessionID
	if sessionID == "" {
		sessionID = uuid.NewString()
	}

	body := chatRequest{
		UserID:    c.UserID,
		AgentID:   input.AgentID,
		SessionID: sessionID,
		Message:   input.Message,
	}
	if input.RagID != "" {
		body.Features = []feature{{
			Type: "KNOWLEDGE_BASE",
			Config: featureConfig{
				LyzrRag: ragConfig{
					BaseURL: c.RagBaseURL,
					RagID:   input.RagID,
					Params: ragParams{
						TopK:           7,
						RetrievalType:  "mmr",
						ScoreThreshold: 0,
					},
				},
			},
		}}
	}

	payload, err := json.Marshal(body)
	if err != nil {
		return Response{}, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/v3/inference/chat/", bytes.NewReader(payload))
	if err != nil {
		return Response{}, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("accept", "application/json")
	req.Header.Set("x-api-key", apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return Response{}, fmt.Errorf("agent ask agent=%s: %w", input.AgentID, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return Response{}, err
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return Response{}, fmt.Errorf("agent ask agent=%s: status %d: %s", input.AgentID, resp.StatusCode, snippet(raw))
	}

	var parsed Response
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return Response{}, fmt.Errorf("agent ask agent=%s: response parse: %w", input.AgentID, err)
	}
	if parsed.Response == "" {
		return Response{}, fmt.Errorf("agent ask agent=%s: empty response", input.AgentID)
	}
	parsed.Raw = raw
	if parsed.SessionID == "" {
		parsed.SessionID = sessionID
	}
	return parsed, nil
}

func snippet(raw []byte) string {
	const max = 512
	s := strings.TrimSpace(string(raw))
	if len(s) > max {
		return s[:max]
	}
	return s
}
