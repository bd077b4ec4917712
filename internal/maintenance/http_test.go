package maintenance

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/leonunix/esdoc/internal/config"
)

func newTestHandler(t *testing.T, caller *fakeCaller) http.Handler {
	t.Helper()
	r, err := NewRunner([]config.JobConfig{
		{Name: "refresh", Schedule: "@hourly", Method: "indices.refresh", Indices: []string{"people"}},
		{Name: "health", Schedule: "@hourly", Method: "cluster.health"},
	}, caller)
	if err != nil {
		t.Fatalf("NewRunner: %v", err)
	}
	return r.Handler()
}

func TestHandler_Health(t *testing.T) {
	h := newTestHandler(t, &fakeCaller{})
	w := httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health", nil))
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}
	if !strings.Contains(w.Body.String(), `"status":"ok"`) {
		t.Errorf("unexpected body %s", w.Body.String())
	}
}

func TestHandler_Jobs(t *testing.T) {
	h := newTestHandler(t, &fakeCaller{})
	w := httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/jobs", nil))
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}

	var jobs []map[string]any
	if err := json.Unmarshal(w.Body.Bytes(), &jobs); err != nil {
		t.Fatalf("decoding /jobs: %v", err)
	}
	if len(jobs) != 2 {
		t.Fatalf("jobs = %d, want 2", len(jobs))
	}
	want := map[string]any{
		"name":     "refresh",
		"schedule": "@hourly",
		"method":   "indices.refresh",
		"indices":  []any{"people"},
	}
	if len(jobs[0]) != len(want) {
		t.Errorf("job keys = %v, want %v", jobs[0], want)
	}
	for k, v := range want {
		got, _ := json.Marshal(jobs[0][k])
		exp, _ := json.Marshal(v)
		if string(got) != string(exp) {
			t.Errorf("%s = %s, want %s", k, got, exp)
		}
	}
	if _, ok := jobs[1]["indices"]; ok {
		t.Errorf("job without indices should omit the key: %v", jobs[1])
	}
}

func TestHandler_Metrics(t *testing.T) {
	h := newTestHandler(t, &fakeCaller{})
	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodPost, "/jobs/refresh/run", nil))

	w := httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}
	if !strings.Contains(w.Body.String(), `esdoc_maintenance_runs_total{job="refresh",status="ok"}`) {
		t.Error("expected esdoc collectors in the exposition")
	}
}

func TestHandler_RunJob(t *testing.T) {
	caller := &fakeCaller{fail: map[string]error{"cluster.health": errors.New("unavailable")}}
	h := newTestHandler(t, caller)

	tests := []struct {
		path   string
		status int
	}{
		{"/jobs/refresh/run", http.StatusOK},
		{"/jobs/health/run", http.StatusBadGateway},
		{"/jobs/missing/run", http.StatusNotFound},
	}
	for _, tt := range tests {
		w := httptest.NewRecorder()
		h.ServeHTTP(w, httptest.NewRequest(http.MethodPost, tt.path, nil))
		if w.Code != tt.status {
			t.Errorf("%s: status = %d, want %d", tt.path, w.Code, tt.status)
		}
	}
	if len(caller.calls) != 2 {
		t.Errorf("calls = %d, want 2", len(caller.calls))
	}
}
