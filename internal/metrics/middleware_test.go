package metrics

import (
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestHTTPMiddleware(t *testing.T) {
	reg := NewRegistry()

	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusAccepted)
	})

	wrapped := HTTPMiddleware(reg)(handler)

	req := httptest.NewRequest("POST", "/api/v1/backtest", nil)
	w := httptest.NewRecorder()
	wrapped.ServeHTTP(w, req)

	if w.Code != http.StatusAccepted {
		t.Errorf("expected status %d, got %d", http.StatusAccepted, w.Code)
	}

	mfs, err := reg.Gather()
	if err != nil {
		t.Fatalf("gather failed: %v", err)
	}

	var found bool
	for _, mf := range mfs {
		if mf.GetName() != "http_requests_total" {
			continue
		}
		found = true
		for _, m := range mf.GetMetric() {
			for _, label := range m.GetLabel() {
				if label.GetName() == "status" && label.GetValue() != "2xx" {
					t.Errorf("expected status label 2xx, got %s", label.GetValue())
				}
			}
		}
	}
	if !found {
		t.Error("expected http_requests_total to be recorded")
	}
}

func TestHTTPMiddleware_CollapsesJobIDLabel(t *testing.T) {
	reg := NewRegistry()
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {})
	wrapped := HTTPMiddleware(reg)(handler)

	// Two polls of different jobs must land on one path label.
	for _, id := range []string{"3f1c9a", "b42d77"} {
		req := httptest.NewRequest("GET", "/api/v1/backtest/"+id, nil)
		wrapped.ServeHTTP(httptest.NewRecorder(), req)
	}

	mfs, err := reg.Gather()
	if err != nil {
		t.Fatalf("gather failed: %v", err)
	}
	for _, mf := range mfs {
		if mf.GetName() != "http_requests_total" {
			continue
		}
		if n := len(mf.GetMetric()); n != 1 {
			t.Fatalf("expected a single label set, got %d", n)
		}
		for _, label := range mf.GetMetric()[0].GetLabel() {
			if label.GetName() == "path" && label.GetValue() != "/api/v1/backtest/{id}" {
				t.Errorf("expected collapsed path label, got %s", label.GetValue())
			}
		}
	}
}

func TestRouteLabel(t *testing.T) {
	tests := []struct {
		path string
		want string
	}{
		{"/api/v1/backtest/3f1c9a-uuid", "/api/v1/backtest/{id}"},
		{"/api/v1/backtest", "/api/v1/backtest"},
		{"/api/v1/backtest/", "/api/v1/backtest/"},
		{"/api/v1/strategies", "/api/v1/strategies"},
		{"/healthz", "/healthz"},
	}
	for _, tt := range tests {
		if got := routeLabel(tt.path); got != tt.want {
			t.Errorf("routeLabel(%q) = %q, want %q", tt.path, got, tt.want)
		}
	}
}

func TestResponseWriter_DefaultsTo200(t *testing.T) {
	reg := NewRegistry()

	// Handler that never calls WriteHeader.
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("ok"))
	})

	wrapped := HTTPMiddleware(reg)(handler)

	req := httptest.NewRequest("GET", "/healthz", nil)
	w := httptest.NewRecorder()
	wrapped.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Errorf("expected implicit 200, got %d", w.Code)
	}
}
