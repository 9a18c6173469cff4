package rag

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"litigation-backend/internal/shared/telemetry"
)

// Client talks to the knowledge-base provider (Lyzr RAG API).
// Credentials are per-call: each caller brings their own key.
type Client struct {
	baseURL    string
	httpClient *http.Client

	// Index defaults, overridable from configuration.
	UserID         string
	LLMModel       string
	EmbeddingModel string
	VectorStore    string
}

// NewClient constructs a RAG client for the given base URL.
func NewClient(baseURL string) *Client {
	timeout := 120 * time.Second
	if raw := strings.TrimSpace(os.Getenv("RAG_TIMEOUT_SECONDS")); raw != "" {
		if parsed, err := strconv.Atoi(raw); err == nil && parsed > 0 {
			timeout = time.Duration(parsed) * time.Second
		}
	}
	return &Client{
		baseURL:        strings.TrimRight(baseURL, "/"),
		httpClient:     &http.Client{Timeout: timeout},
		UserID:         "default@lyzr.ai",
		LLMModel:       "gpt-4o-mini",
		EmbeddingModel: "text-embedding-ada-002",
		VectorStore:    "Qdrant [Lyzr]",
	}
}

// BaseURL returns the configured endpoint, for embedding in agent
// knowledge-base features.
func (c *Client) BaseURL() string {
	return c.baseURL
}

type createIndexRequest struct {
	UserID                string `json:"user_id"`
	Description           string `json:"description"`
	LLMCredentialID       string `json:"llm_credential_id"`
	EmbeddingCredentialID string `json:"embedding_credential_id"`
	VectorDBCredentialID  string `json:"vector_db_credential_id"`
	VectorStoreProvider   string `json:"vector_store_provider"`
	CollectionName        string `json:"collection_name"`
	LLMModel              string `json:"llm_model"`
	EmbeddingModel        string `json:"embedding_model"`
}

type createIndexResponse struct {
	ID string `json:"id"`
}

// CreateIndex creates a fresh vector index and returns its id.
func (c *Client) CreateIndex(ctx context.Context, apiKey, collectionName string) (string, error) {
	body := createIndexRequest{
		UserID:                c.UserID,
		Description:           "litigation analyser index",
		LLMCredentialID:       "lyzr_openai",
		EmbeddingCredentialID: "lyzr_openai",
		VectorDBCredentialID:  "lyzr_qdrant",
		VectorStoreProvider:   c.VectorStore,
		CollectionName:        collectionName,
		LLMModel:              c.LLMModel,
		EmbeddingModel:        c.EmbeddingModel,
	}
	var parsed createIndexResponse
	if err := c.postJSON(ctx, apiKey, "/v3/rag/", body, &parsed); err != nil {
		return "", fmt.Errorf("create index: %w", err)
	}
	if parsed.ID == "" {
		return "", fmt.Errorf("create index: response missing id")
	}
	return parsed.ID, nil
}

// TextEntry is one piece of training text with its source label.
type TextEntry struct {
	Text   string
	Source string
}

type trainTextRequest struct {
	Data []trainTextItem `json:"data"`

	ChunkSize    int `json:"chunk_size"`
	ChunkOverlap int `json:"chunk_overlap"`
}

type trainTextItem struct {
	Text      string         `json:"text"`
	Source    string         `json:"source"`
	ExtraInfo map[string]any `json:"extra_info"`
}

// TrainText feeds text into an existing index. Entries are joined into
// one chunked payload, the way the provider expects.
func (c *Client) TrainText(ctx context.Context, apiKey, ragID string, entries []TextEntry) error {
	if len(entries) == 0 {
		return fmt.Errorf("train text: no entries")
	}
	texts := make([]string, 0, len(entries))
	for _, e := range entries {
		texts = append(texts, e.Text)
	}
	body := trainTextRequest{
		Data: []trainTextItem{{
			Text:      strings.Join(texts, "\n\n"),
			Source:    "string",
			ExtraInfo: map[string]any{},
		}},
		ChunkSize:    1000,
		ChunkOverlap: 100,
	}
	path := "/v3/train/text/?rag_id=" + url.QueryEscape(ragID)
	if err := c.postJSON(ctx, apiKey, path, body, nil); err != nil {
		return fmt.Errorf("train text rag=%s: %w", ragID, err)
	}
	return nil
}

// TrainPDF uploads a raw PDF for indexing.
func (c *Client) TrainPDF(ctx context.Context, apiKey, ragID, fileName string, r io.Reader) error {
	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)
	part, err := writer.CreateFormFile("file", fileName)
	if err != nil {
		return fmt.Errorf("train pdf rag=%s: %w", ragID, err)
	}
	if _, err := io.Copy(part, r); err != nil {
		return fmt.Errorf("train pdf rag=%s: read file: %w", ragID, err)
	}
	if err := writer.Close(); err != nil {
		return fmt.Errorf("train pdf rag=%s: %w", ragID, err)
	}

	endpoint := c.baseURL + "/v3/train/pdf/?rag_id=" + url.QueryEscape(ragID)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, &buf)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())
	req.Header.Set("x-api-key", apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("train pdf rag=%s: %w", ragID, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("train pdf rag=%s: status %d: %s", ragID, resp.StatusCode, readSnippet(resp.Body))
	}
	return nil
}

type parseTextRequest struct {
	Text string `json:"text"`
}

type parseTextResponse struct {
	ParsedText string `json:"parsed_text"`
}

// ParseText cleans text for training. Failures fall back to the raw
// input so a flaky parser never sinks a run.
func (c *Client) ParseText(ctx context.Context, apiKey, text string) string {
	if strings.TrimSpace(text) == "" {
		return ""
	}
	var parsed parseTextResponse
	if err := c.postJSON(ctx, apiKey, "/v3/parse/txt/", parseTextRequest{Text: text}, &parsed); err != nil {
		telemetry.Warn("parse text failed, using raw text", map[string]any{"error": err.Error()})
		return text
	}
	if parsed.ParsedText == "" {
		return text
	}
	return parsed.ParsedText
}

// DeleteIndex removes an index.
func (c *Client) DeleteIndex(ctx context.Context, apiKey, ragID string) error {
	endpoint := c.baseURL + "/v3/rag/" + url.PathEscape(ragID) + "/"
	req, err := http.NewRequestWithContext(ctx, http.MethodDelete, endpoint, nil)
	if err != nil {
		return err
	}
	req.Header.Set("x-api-key", apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("delete index rag=%s: %w", ragID, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("delete index rag=%s: status %d: %s", ragID, resp.StatusCode, readSnippet(resp.Body))
	}
	return nil
}

func (c *Client) postJSON(ctx context.Context, apiKey, path string, body any, out any) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(payload))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("x-api-key", apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("status %d: %s", resp.StatusCode, readSnippet(resp.Body))
	}
	if out == nil {
		return nil
	}
	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("response parse: %w", err)
	}
	return nil
}

func readSnippet(r io.Reader) string {
	raw, err := io.ReadAll(io.LimitReader(r, 512))
	if err != nil {
		return ""
	}
	return strings.TrimSpace(string(raw))
}
