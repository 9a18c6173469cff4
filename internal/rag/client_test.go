package rag

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestCreateIndexSendsCollectionAndKey(t *testing.T) {
	var gotKey string
	var gotBody createIndexRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v3/rag/" {
			t.Errorf("unexpected path: %s", r.URL.Path)
		}
		gotKey = r.Header.Get("x-api-key")
		if err := json.NewDecoder(r.Body).Decode(&gotBody); err != nil {
			t.Errorf("decode body: %v", err)
		}
		w.Header().Set("Content-Type", "application/json")
		io.WriteString(w, `{"id":"rag-123"}`)
	}))
	t.Cleanup(srv.Close)

	client := NewClient(srv.URL)
	ragID, err := client.CreateIndex(context.Background(), "user-key", "litigation-abc")
	if err != nil {
		t.Fatalf("CreateIndex: %v", err)
	}
	if ragID != "rag-123" {
		t.Fatalf("unexpected rag id: %s", ragID)
	}
	if gotKey != "user-key" {
		t.Fatalf("unexpected api key: %s", gotKey)
	}
	if gotBody.CollectionName != "litigation-abc" {
		t.Fatalf("unexpected collection: %s", gotBody.CollectionName)
	}
	if gotBody.VectorStoreProvider == "" || gotBody.EmbeddingModel == "" {
		t.Fatalf("expected index defaults, got %+v", gotBody)
	}
}

func TestCreateIndexSurfacesProviderError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusPaymentRequired)
		io.WriteString(w, "credits exhausted")
	}))
	t.Cleanup(srv.Close)

	client := NewClient(srv.URL)
	_, err := client.CreateIndex(context.Background(), "key", "c")
	if err == nil {
		t.Fatal("expected error")
	}
	if !strings.Contains(err.Error(), "status 402") || !strings.Contains(err.Error(), "credits exhausted") {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestTrainTextJoinsEntries(t *testing.T) {
	var gotBody trainTextRequest
	var gotRagID string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !strings.HasPrefix(r.URL.Path, "/v3/train/text/") {
			t.Errorf("unexpected path: %s", r.URL.Path)
		}
		gotRagID = r.URL.Query().Get("rag_id")
		if err := json.NewDecoder(r.Body).Decode(&gotBody); err != nil {
			t.Errorf("decode body: %v", err)
		}
		w.WriteHeader(http.StatusOK)
	}))
	t.Cleanup(srv.Close)

	client := NewClient(srv.URL)
	err := client.TrainText(context.Background(), "key", "rag-1", []TextEntry{
		{Text: "first document", Source: "a.pdf"},
		{Text: "second document", Source: "b.pdf"},
	})
	if err != nil {
		t.Fatalf("TrainText: %v", err)
	}
	if gotRagID != "rag-1" {
		t.Fatalf("unexpected rag_id: %s", gotRagID)
	}
	if len(gotBody.Data) != 1 {
		t.Fatalf("expected one joined item, got %d", len(gotBody.Data))
	}
	if !strings.Contains(gotBody.Data[0].Text, "first document") || !strings.Contains(gotBody.Data[0].Text, "second document") {
		t.Fatalf("expected joined text, got %q", gotBody.Data[0].Text)
	}
	if gotBody.ChunkSize != 1000 || gotBody.ChunkOverlap != 100 {
		t.Fatalf("unexpected chunking: %+v", gotBody)
	}
}

func TestParseTextFallsBackOnError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	t.Cleanup(srv.Close)

	client := NewClient(srv.URL)
	got := client.ParseText(context.Background(), "key", "raw contract text")
	if got != "raw contract text" {
		t.Fatalf("expected raw text fallback, got %q", got)
	}
}

func TestParseTextReturnsParsed(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, `{"parsed_text":"cleaned text"}`)
	}))
	t.Cleanup(srv.Close)

	client := NewClient(srv.URL)
	got := client.ParseText(context.Background(), "key", "raw")
	if got != "cleaned text" {
		t.Fatalf("expected parsed text, got %q", got)
	}
}

func TestTrainPDFUploadsMultipart(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := r.ParseMultipartForm(1 << 20); err != nil {
			t.Errorf("parse multipart: %v", err)
		}
		f, header, err := r.FormFile("file")
		if err != nil {
			t.Errorf("form file: %v", err)
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		defer f.Close()
		if header.Filename != "complaint.pdf" {
			t.Errorf("unexpected filename: %s", header.Filename)
		}
		w.WriteHeader(http.StatusOK)
	}))
	t.Cleanup(srv.Close)

	client := NewClient(srv.URL)
	err := client.TrainPDF(context.Background(), "key", "rag-1", "complaint.pdf", strings.NewReader("%PDF-1.4"))
	if err != nil {
		t.Fatalf("TrainPDF: %v", err)
	}
}
