package server

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/visiora/visiora-agent/internal/database"
	"github.com/visiora/visiora-agent/internal/models"
)

func setupTestServer(t *testing.T) (*Server, func()) {
	t.Helper()

	// Create temporary database
	tmpDir, err := os.MkdirTemp("", "visiora-server-test-*")
	if err != nil {
		t.Fatalf("Failed to create temp dir: %v", err)
	}

	dbPath := filepath.Join(tmpDir, "test.db")
	db, err := database.NewDatabase(dbPath)
	if err != nil {
		os.RemoveAll(tmpDir)
		t.Fatalf("Failed to create test database: %v", err)
	}

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	server := NewServer(db, "127.0.0.1:0", Options{MaxBodyBytes: 4096}, logger) // Port 0 for testing

	cleanup := func() {
		db.Close()
		os.RemoveAll(tmpDir)
	}

	return server, cleanup
}

func testEvent(eventType models.EventType) models.Event {
	return models.Event{
		TrackingID: "site-1",
		VisitorID:  "visitor-1",
		SessionID:  "session-1",
		Timestamp:  "2024-03-01T12:00:00.000Z",
		EventType:  eventType,
		Properties: map[string]any{},
		Context:    models.Context{PageURL: "https://example.com/", PagePath: "/"},
	}
}

func post(t *testing.T, handler http.Handler, path string, body []byte) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, path, bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)
	return w
}

func TestNewServer(t *testing.T) {
	server, cleanup := setupTestServer(t)
	defer cleanup()

	if server == nil {
		t.Fatal("Expected non-nil server")
	}
	if server.db == nil {
		t.Fatal("Expected non-nil database")
	}
	if server.address != "127.0.0.1:0" {
		t.Errorf("Expected address 127.0.0.1:0, got %s", server.address)
	}
	if server.opts.ShutdownTimeout != 30*time.Second {
		t.Errorf("Expected default shutdown timeout, got %v", server.opts.ShutdownTimeout)
	}
}

func TestHandleHealthz(t *testing.T) {
	server, cleanup := setupTestServer(t)
	defer cleanup()

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	w := httptest.NewRecorder()

	server.handleHealthz(w, req)

	resp := w.Result()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("Expected status 200, got %d", resp.StatusCode)
	}

	body := w.Body.String()
	if body != "ok" {
		t.Errorf("Expected body 'ok', got %s", body)
	}
}

func TestHandleIngestSuccess(t *testing.T) {
	server, cleanup := setupTestServer(t)
	defer cleanup()

	batch := models.Batch{Events: []models.Event{testEvent(models.EventPageView), testEvent(models.EventClick)}}
	jsonData, _ := json.Marshal(batch)

	w := post(t, server.Handler(), "/ingest", jsonData)

	if w.Code != http.StatusNoContent {
		t.Errorf("Expected status 204, got %d", w.Code)
	}
}

func TestHandleIngestInvalidJSON(t *testing.T) {
	server, cleanup := setupTestServer(t)
	defer cleanup()

	w := post(t, server.Handler(), "/ingest", []byte(`{"events": [invalid json]}`))

	if w.Code != http.StatusBadRequest {
		t.Errorf("Expected status 400, got %d", w.Code)
	}
}

func TestHandleIngestEmptyBatch(t *testing.T) {
	server, cleanup := setupTestServer(t)
	defer cleanup()

	w := post(t, server.Handler(), "/ingest", []byte(`{"events":[]}`))

	if w.Code != http.StatusNoContent {
		t.Errorf("Expected status 204, got %d", w.Code)
	}
}

func TestHandleIngestInvalidEvent(t *testing.T) {
	server, cleanup := setupTestServer(t)
	defer cleanup()

	bad := testEvent("navigate")
	jsonData, _ := json.Marshal(models.Batch{Events: []models.Event{bad}})

	w := post(t, server.Handler(), "/ingest", jsonData)

	if w.Code != http.StatusBadRequest {
		t.Errorf("Expected status 400, got %d", w.Code)
	}
}

func TestHandleIngestTooLarge(t *testing.T) {
	server, cleanup := setupTestServer(t)
	defer cleanup()

	e := testEvent(models.EventCustom)
	e.Properties["blob"] = strings.Repeat("x", 8192)
	jsonData, _ := json.Marshal(models.Batch{Events: []models.Event{e}})

	w := post(t, server.Handler(), "/ingest", jsonData)

	if w.Code != http.StatusRequestEntityTooLarge {
		t.Errorf("Expected status 413, got %d", w.Code)
	}
}

func TestStatsAndRecent(t *testing.T) {
	server, cleanup := setupTestServer(t)
	defer cleanup()
	handler := server.Handler()

	batch := models.Batch{Events: []models.Event{
		testEvent(models.EventPageView),
		testEvent(models.EventScrollDepth),
		testEvent(models.EventScrollDepth),
	}}
	jsonData, _ := json.Marshal(batch)
	if w := post(t, handler, "/events", jsonData); w.Code != http.StatusNoContent {
		t.Fatalf("Expected status 204, got %d", w.Code)
	}

	w := httptest.NewRecorder()
	handler.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/stats", nil))
	var stats struct {
		Total  int            `json:"total"`
		ByType map[string]int `json:"by_type"`
	}
	if err := json.NewDecoder(w.Body).Decode(&stats); err != nil {
		t.Fatalf("Failed to decode stats: %v", err)
	}
	if stats.Total != 3 || stats.ByType["scroll_depth"] != 2 || stats.ByType["heartbeat"] != 0 {
		t.Errorf("Unexpected stats: %+v", stats)
	}

	w = httptest.NewRecorder()
	handler.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/events?limit=2", nil))
	var recent models.Batch
	if err := json.NewDecoder(w.Body).Decode(&recent); err != nil {
		t.Fatalf("Failed to decode events: %v", err)
	}
	if len(recent.Events) != 2 {
		t.Errorf("Expected 2 events, got %d", len(recent.Events))
	}
}

func TestSetupRoutes(t *testing.T) {
	server, cleanup := setupTestServer(t)
	defer cleanup()

	router := server.setupRoutes()
	if router == nil {
		t.Fatal("Expected non-nil router")
	}

	tests := []struct {
		path   string
		method string
		status int
	}{
		{"/healthz", http.MethodGet, http.StatusOK},
		{"/stats", http.MethodGet, http.StatusOK},
		{"/events?limit=0", http.MethodGet, http.StatusBadRequest},
		{"/ingest", http.MethodGet, http.StatusMethodNotAllowed}, // Only POST allowed
		{"/events", http.MethodPut, http.StatusMethodNotAllowed},
	}

	for _, tt := range tests {
		t.Run(tt.method+" "+tt.path, func(t *testing.T) {
			req := httptest.NewRequest(tt.method, tt.path, nil)
			w := httptest.NewRecorder()

			router.ServeHTTP(w, req)

			if w.Code != tt.status {
				t.Errorf("Expected status %d for %s %s, got %d", tt.status, tt.method, tt.path, w.Code)
			}
		})
	}
}

func TestCORSPreflight(t *testing.T) {
	server, cleanup := setupTestServer(t)
	defer cleanup()

	req := httptest.NewRequest(http.MethodOptions, "/ingest", nil)
	req.Header.Set("Origin", "https://shop.example")
	req.Header.Set("Access-Control-Request-Method", http.MethodPost)
	req.Header.Set("Access-Control-Request-Headers", "Content-Type")
	w := httptest.NewRecorder()

	server.Handler().ServeHTTP(w, req)

	if got := w.Header().Get("Access-Control-Allow-Origin"); got != "*" {
		t.Errorf("Expected Access-Control-Allow-Origin *, got %q", got)
	}
}

func TestServeShutsDownOnCancel(t *testing.T) {
	server, cleanup := setupTestServer(t)
	defer cleanup()

	listener, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("Failed to listen: %v", err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- server.Serve(ctx, listener) }()

	url := "http://" + listener.Addr().String() + "/healthz"
	var resp *http.Response
	for i := 0; i < 50; i++ {
		resp, err = http.Get(url)
		if err == nil {
			break
		}
		time.Sleep(10 * time.Millisecond)
	}
	if err != nil {
		t.Fatalf("Server did not answer: %v", err)
	}
	resp.Body.Close()

	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Errorf("Serve() error = %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("Server did not shut down")
	}
}
