package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
)

const testAPIKey = "test-secret-key-12345"

// logSink collects JSON log lines written through slog.
type logSink struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (s *logSink) Write(p []byte) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.buf.Write(p)
}

// entries returns every log line whose msg equals msg.
func (s *logSink) entries(msg string) []map[string]any {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []map[string]any
	for _, line := range strings.Split(strings.TrimSpace(s.buf.String()), "\n") {
		var entry map[string]any
		if err := json.Unmarshal([]byte(line), &entry); err != nil {
			continue
		}
		if entry["msg"] == msg {
			out = append(out, entry)
		}
	}
	return out
}

func (s *logSink) String() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.buf.String()
}

// captureLogs routes the default slog logger into a sink for the test.
func captureLogs(t *testing.T) *logSink {
	t.Helper()
	sink := &logSink{}
	old := slog.Default()
	slog.SetDefault(slog.New(slog.NewJSONHandler(sink, &slog.HandlerOptions{Level: slog.LevelDebug})))
	t.Cleanup(func() { slog.SetDefault(old) })
	return sink
}

func countPlans(t *testing.T, h *Handler) int {
	t.Helper()
	plans, err := h.store.ListPlans(context.Background())
	if err != nil {
		t.Fatalf("ListPlans() error = %v", err)
	}
	return len(plans)
}

// --- Auth ---

func TestAuth_BatchRejectedBeforeAnythingIsApplied(t *testing.T) {
	handler, _ := newSQLiteHandler(t, testAPIKey)
	router := NewRouter(handler)
	body := `{"operations": [{"action": "CREATE", "data": {"name": "Crate"}}]}`

	tests := []struct {
		name   string
		header string
	}{
		{"no header", ""},
		{"wrong key", "Bearer wrong-key"},
		{"basic scheme", "Basic " + testAPIKey},
		{"lowercase scheme", "bearer " + testAPIKey},
		{"empty token", "Bearer "},
		{"whitespace token", "Bearer    "},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, "/api/v1/plan/batch", strings.NewReader(body))
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			w := httptest.NewRecorder()
			router.ServeHTTP(w, req)

			if w.Code != http.StatusUnauthorized {
				t.Fatalf("status = %d, want %d", w.Code, http.StatusUnauthorized)
			}
			if ct := w.Header().Get("Content-Type"); ct != "application/problem+json" {
				t.Errorf("Content-Type = %q, want application/problem+json", ct)
			}
			var p Problem
			if err := json.Unmarshal(w.Body.Bytes(), &p); err != nil {
				t.Fatalf("failed to decode problem: %v", err)
			}
			if p.Type != "https://holocene.dev/errors/unauthorized" {
				t.Errorf("type = %q", p.Type)
			}
			if strings.Contains(w.Body.String(), testAPIKey) {
				t.Error("response leaks the API key")
			}
			if n := countPlans(t, handler); n != 0 {
				t.Errorf("plans = %d after rejected batch, want 0", n)
			}
		})
	}
}

func TestAuth_BatchAppliedWithValidKey(t *testing.T) {
	handler, _ := newSQLiteHandler(t, testAPIKey)
	router := NewRouter(handler)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/plan/batch",
		strings.NewReader(`{"operations": [{"action": "CREATE", "data": {"name": "Crate"}}]}`))
	req.Header.Set("Authorization", "Bearer "+testAPIKey)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d; body = %s", w.Code, http.StatusOK, w.Body.String())
	}
	if n := countPlans(t, handler); n != 1 {
		t.Errorf("plans = %d, want 1", n)
	}
}

func TestAuth_EmptyKeyLeavesBatchOpen(t *testing.T) {
	handler, _ := newSQLiteHandler(t, "")
	router := NewRouter(handler)

	for _, header := range []string{"", "Bearer anything"} {
		req := httptest.NewRequest(http.MethodPost, "/api/v1/plan/batch",
			strings.NewReader(`{"operations": [{"action": "CREATE", "data": {"length": 1}}]}`))
		if header != "" {
			req.Header.Set("Authorization", header)
		}
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)

		if w.Code != http.StatusOK {
			t.Errorf("header %q: status = %d, want %d", header, w.Code, http.StatusOK)
		}
	}
	if n := countPlans(t, handler); n != 2 {
		t.Errorf("plans = %d, want 2", n)
	}
}

func TestAuth_FailureLoggedWithoutKey(t *testing.T) {
	sink := captureLogs(t)
	handler, _ := newSQLiteHandler(t, testAPIKey)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/plan", nil)
	req.Header.Set("Authorization", "Bearer not-"+testAPIKey)
	NewRouter(handler).ServeHTTP(httptest.NewRecorder(), req)

	failures := sink.entries("auth failure")
	if len(failures) != 1 {
		t.Fatalf("auth failure entries = %d, want 1", len(failures))
	}
	if failures[0]["path"] != "/api/v1/plan" {
		t.Errorf("path = %v", failures[0]["path"])
	}
	if strings.Contains(sink.String(), testAPIKey) {
		t.Error("logs contain the API key")
	}
}

func TestExtractBearerToken(t *testing.T) {
	tests := []struct {
		header string
		want   string
	}{
		{"Bearer abc", "abc"},
		{"Bearer  padded  ", "padded"},
		{"Bearer ", ""},
		{"bearer abc", ""},
		{"Token abc", ""},
		{"", ""},
	}
	for _, tt := range tests {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		if tt.header != "" {
			req.Header.Set("Authorization", tt.header)
		}
		if got := extractBearerToken(req); got != tt.want {
			t.Errorf("extractBearerToken(%q) = %q, want %q", tt.header, got, tt.want)
		}
	}
}

// --- Logging ---

func TestLogging_BatchFailureCarriesRequestID(t *testing.T) {
	sink := captureLogs(t)
	ms := &mockStore{insertErr: errors.New("disk I/O error")}
	router := NewRouter(NewHandler(ms, nil, "", "test"))

	w := postBatch(t, router, `{"operations": [{"action": "CREATE", "data": {"name": "A"}}]}`)
	if w.Code != http.StatusInternalServerError {
		t.Fatalf("status = %d, want %d", w.Code, http.StatusInternalServerError)
	}

	failed := sink.entries("batch failed")
	if len(failed) != 1 {
		t.Fatalf("batch failed entries = %d, want 1; logs:\n%s", len(failed), sink)
	}
	reqID, _ := failed[0]["request_id"].(string)
	if reqID == "" {
		t.Fatalf("batch failed entry has no request_id: %v", failed[0])
	}
	if failed[0]["failed_index"] != float64(0) || failed[0]["committed"] != float64(0) {
		t.Errorf("failed_index/committed = %v/%v, want 0/0", failed[0]["failed_index"], failed[0]["committed"])
	}

	completed := sink.entries("request completed")
	if len(completed) != 1 {
		t.Fatalf("request completed entries = %d, want 1", len(completed))
	}
	if completed[0]["request_id"] != reqID {
		t.Errorf("request completed request_id = %v, want %q", completed[0]["request_id"], reqID)
	}
	if completed[0]["level"] != "ERROR" || completed[0]["status"] != float64(500) {
		t.Errorf("request completed = %v, want ERROR/500", completed[0])
	}
}

func TestLogging_RequestCompletedFields(t *testing.T) {
	sink := captureLogs(t)
	handler, _ := newSQLiteHandler(t, testAPIKey)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/plan/batch", strings.NewReader(`{"operations": []}`))
	req.Header.Set("Authorization", "Bearer "+testAPIKey)
	req.RemoteAddr = "192.0.2.7:5150"
	NewRouter(handler).ServeHTTP(httptest.NewRecorder(), req)

	completed := sink.entries("request completed")
	if len(completed) != 1 {
		t.Fatalf("request completed entries = %d, want 1", len(completed))
	}
	entry := completed[0]
	want := map[string]any{
		"component":   "api",
		"method":      http.MethodPost,
		"path":        "/api/v1/plan/batch",
		"status":      float64(200),
		"level":       "INFO",
		"remote_addr": "192.0.2.7:5150",
	}
	for k, v := range want {
		if entry[k] != v {
			t.Errorf("%s = %v, want %v", k, entry[k], v)
		}
	}
	if _, ok := entry["duration_ms"]; !ok {
		t.Error("missing duration_ms")
	}
	if strings.Contains(sink.String(), testAPIKey) {
		t.Error("logs contain the API key")
	}
}

func TestLogging_LevelFollowsStatus(t *testing.T) {
	tests := []struct {
		status int
		want   slog.Level
	}{
		{http.StatusOK, slog.LevelInfo},
		{http.StatusTemporaryRedirect, slog.LevelInfo},
		{http.StatusUnauthorized, slog.LevelWarn},
		{http.StatusRequestEntityTooLarge, slog.LevelWarn},
		{http.StatusInternalServerError, slog.LevelError},
		{http.StatusServiceUnavailable, slog.LevelError},
	}
	for _, tt := range tests {
		if got := logLevelForStatus(tt.status); got != tt.want {
			t.Errorf("logLevelForStatus(%d) = %v, want %v", tt.status, got, tt.want)
		}
	}
}

func TestResponseWriter_FirstStatusWins(t *testing.T) {
	rw := &responseWriter{ResponseWriter: httptest.NewRecorder(), statusCode: http.StatusOK}

	rw.WriteHeader(http.StatusUnprocessableEntity)
	rw.WriteHeader(http.StatusOK)

	if rw.statusCode != http.StatusUnprocessableEntity {
		t.Errorf("statusCode = %d, want %d", rw.statusCode, http.StatusUnprocessableEntity)
	}
}

// --- Recovery ---

func TestRecovery_PanicBecomesProblemWithoutDetails(t *testing.T) {
	sink := captureLogs(t)
	h := RecoveryMiddleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		panic("plan table corrupted at /var/lib/holocene.db")
	}))

	w := httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/api/v1/plan/batch", nil))

	if w.Code != http.StatusInternalServerError {
		t.Fatalf("status = %d, want %d", w.Code, http.StatusInternalServerError)
	}
	if strings.Contains(w.Body.String(), "holocene.db") {
		t.Error("response leaks panic value")
	}
	if len(sink.entries("panic recovered")) != 1 {
		t.Error("expected one panic recovered log entry")
	}
}

func TestRecovery_AbortHandlerPropagates(t *testing.T) {
	h := RecoveryMiddleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		panic(http.ErrAbortHandler)
	}))

	defer func() {
		if got := recover(); got != http.ErrAbortHandler {
			t.Errorf("recovered %v, want http.ErrAbortHandler", got)
		}
	}()
	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/api/v1/plan", nil))
	t.Error("ServeHTTP returned; ErrAbortHandler was swallowed")
}
