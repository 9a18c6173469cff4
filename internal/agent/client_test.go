package agent

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestAskAttachesKnowledgeBaseWhenRagSet(t *testing.T) {
	var gotBody chatRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v3/inference/chat/" {
			t.Errorf("unexpected path: %s", r.URL.Path)
		}
		if r.Header.Get("x-api-key") != "key" {
			t.Errorf("unexpected api key: %s", r.Header.Get("x-api-key"))
		}
		if err := json.NewDecoder(r.Body).Decode(&gotBody); err != nil {
			t.Errorf("decode body: %v", err)
		}
		io.WriteString(w, `{"response":"short summary here","session_id":"sess-1"}`)
	}))
	t.Cleanup(srv.Close)

	client := NewClient(srv.URL, "https://rag.example.com")
	resp, err := client.Ask(context.Background(), "key", AskInput{
		AgentID:   "agent-short",
		SessionID: "sess-1",
		Message:   "summarize",
		RagID:     "rag-1",
	})
	if err != nil {
		t.Fatalf("Ask: %v", err)
	}
	if resp.Response != "short summary here" {
		t.Fatalf("unexpected response: %s", resp.Response)
	}
	if len(gotBody.Features) != 1 {
		t.Fatalf("expected one knowledge-base feature, got %d", len(gotBody.Features))
	}
	feat := gotBody.Features[0]
	if feat.Type != "KNOWLEDGE_BASE" {
		t.Fatalf("unexpected feature type: %s", feat.Type)
	}
	if feat.Config.LyzrRag.RagID != "rag-1" {
		t.Fatalf("unexpected rag id: %s", feat.Config.LyzrRag.RagID)
	}
	if feat.Config.LyzrRag.Params.TopK != 7 || feat.Config.LyzrRag.Params.RetrievalType != "mmr" {
		t.Fatalf("unexpected retrieval params: %+v", feat.Config.LyzrRag.Params)
	}
}

func TestAskOmitsFeaturesWithoutRag(t *testing.T) {
	var gotBody chatRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := json.NewDecoder(r.Body).Decode(&gotBody); err != nil {
			t.Errorf("decode body: %v", err)
		}
		io.WriteString(w, `{"response":"hello"}`)
	}))
	t.Cleanup(srv.Close)

	client := NewClient(srv.URL, "https://rag.example.com")
	resp, err := client.Ask(context.Background(), "key", AskInput{AgentID: "agent-1", Message: "hi"})
	if err != nil {
		t.Fatalf("Ask: %v", err)
	}
	if len(gotBody.Features) != 0 {
		t.Fatalf("expected no features, got %d", len(gotBody.Features))
	}
	if gotBody.SessionID == "" {
		t.Fatalf("expected a minted session id")
	}
	if resp.SessionID == "" {
		t.Fatalf("expected session id in response")
	}
}

func TestAskSurfacesProviderError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
		io.WriteString(w, "upstream unavailable")
	}))
	t.Cleanup(srv.Close)

	client := NewClient(srv.URL, "https://rag.example.com")
	_, err := client.Ask(context.Background(), "key", AskInput{AgentID: "agent-1", Message: "hi"})
	if err == nil {
		t.Fatal("expected error")
	}
	if !strings.Contains(err.Error(), "status 502") {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestAskRejectsEmptyMessage(t *testing.T) {
	client := NewClient("http://localhost:0", "http://localhost:0")
	if _, err := client.Ask(context.Background(), "key", AskInput{AgentID: "agent-1"}); err == nil {
		t.Fatal("expected validation error")
	}
}
