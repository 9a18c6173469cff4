package pipeline

import (
	"bytes"
	"context"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"

	"litigation-backend/internal/shared/server/middleware"
	"litigation-backend/internal/status"
)

func newTestRouter(t *testing.T) (*gin.Engine, testDeps) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	deps := newTestService(t)
	handler := NewHandler(deps.svc)

	r := gin.New()
	r.Use(middleware.RequestID(), middleware.Auth("dev"))
	handler.RegisterRoutes(r.Group("/api/v1"))
	return r, deps
}

func TestProcessAccepted(t *testing.T) {
	router, deps := newTestRouter(t)

	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)
	if err := writer.WriteField("sessionId", "session-1"); err != nil {
		t.Fatalf("write field: %v", err)
	}
	fw, err := writer.CreateFormFile("pdf", "complaint.pdf")
	if err != nil {
		t.Fatalf("create form file: %v", err)
	}
	if _, err := fw.Write([]byte("%PDF-1.4 plaintiff alleges")); err != nil {
		t.Fatalf("write file: %v", err)
	}
	if err := writer.Close(); err != nil {
		t.Fatalf("close writer: %v", err)
	}

	req := httptest.NewRequest(http.MethodPost, "/api/v1/process", body)
	req.Header.Set("Content-Type", writer.FormDataContentType())
	req.Header.Set("X-Guest-Id", "test-guest")
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, req)

	if resp.Code != http.StatusAccepted {
		t.Fatalf("expected status 202, got %d: %s", resp.Code, resp.Body.String())
	}
	var out struct {
		Status   string `json:"status"`
		StatusID string `json:"statusId"`
		JobID    string `json:"jobId"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if out.Status != "processing" || out.StatusID == "" || out.JobID == "" {
		t.Fatalf("unexpected response %+v", out)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := deps.svc.Runner.Shutdown(ctx); err != nil {
		t.Fatalf("runner did not drain: %v", err)
	}
	rec, err := deps.statusRepo.GetByID(ctx, out.StatusID)
	if err != nil {
		t.Fatalf("get process record: %v", err)
	}
	if rec.Status != status.StatusCompleted {
		t.Fatalf("expected completed run, got %s (%s)", rec.Status, rec.StepDescription)
	}
}

func TestProcessRequiresFile(t *testing.T) {
	router, _ := newTestRouter(t)

	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)
	if err := writer.WriteField("sessionId", "session-1"); err != nil {
		t.Fatalf("write field: %v", err)
	}
	if err := writer.Close(); err != nil {
		t.Fatalf("close writer: %v", err)
	}

	req := httptest.NewRequest(http.MethodPost, "/api/v1/process", body)
	req.Header.Set("Content-Type", writer.FormDataContentType())
	req.Header.Set("X-Guest-Id", "test-guest")
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, req)

	if resp.Code != http.StatusBadRequest {
		t.Fatalf("expected status 400, got %d", resp.Code)
	}
}

func TestProcessBusyReturns503(t *testing.T) {
	router, deps := newTestRouter(t)
	deps.svc.Runner = NewRunner(1)
	release := make(chan struct{})
	if err := deps.svc.Runner.Submit(func() { <-release }); err != nil {
		t.Fatalf("occupy slot: %v", err)
	}
	defer close(release)

	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)
	fw, err := writer.CreateFormFile("pdf", "complaint.pdf")
	if err != nil {
		t.Fatalf("create form file: %v", err)
	}
	if _, err := fw.Write([]byte("%PDF-1.4")); err != nil {
		t.Fatalf("write file: %v", err)
	}
	if err := writer.Close(); err != nil {
		t.Fatalf("close writer: %v", err)
	}

	req := httptest.NewRequest(http.MethodPost, "/api/v1/process", body)
	req.Header.Set("Content-Type", writer.FormDataContentType())
	req.Header.Set("X-Guest-Id", "test-guest")
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, req)

	if resp.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected status 503, got %d: %s", resp.Code, resp.Body.String())
	}
}
