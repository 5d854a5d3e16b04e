package handlers

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
)

func TestRouterHealthAndNotImplementedGroups(t *testing.T) {
	start := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	router := NewRouter(WithHealthHandlers(NewHealthHandlers(
		WithHealthBuildInfo(BuildInfo{Version: "1.2.3", StartedAt: start}),
		WithHealthClock(func() time.Time { return start.Add(time.Minute) }),
	)))

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)
	if rr.Code != http.StatusOK {
		t.Fatalf("healthz status = %d", rr.Code)
	}
	var health map[string]any
	if err := json.Unmarshal(rr.Body.Bytes(), &health); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if health["version"] != "1.2.3" || health["uptime"] != "1m0s" {
		t.Fatalf("unexpected health payload %v", health)
	}

	req = httptest.NewRequest(http.MethodPost, "/api/v1/commission/quote", nil)
	rr = httptest.NewRecorder()
	router.ServeHTTP(rr, req)
	if rr.Code != http.StatusNotImplemented {
		t.Fatalf("unconfigured group status = %d, want 501", rr.Code)
	}

	req = httptest.NewRequest(http.MethodGet, "/nowhere", nil)
	rr = httptest.NewRecorder()
	router.ServeHTTP(rr, req)
	if rr.Code != http.StatusNotFound {
		t.Fatalf("unknown route status = %d, want 404", rr.Code)
	}
}

func TestRouterMountsConfiguredGroups(t *testing.T) {
	router := NewRouter(
		WithCommissionRoutes(func(r chi.Router) {
			r.Get("/tiers", func(w http.ResponseWriter, req *http.Request) {
				w.WriteHeader(http.StatusOK)
			})
		}),
	)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/commission/tiers", nil)
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)
	if rr.Code != http.StatusOK {
		t.Fatalf("configured route status = %d", rr.Code)
	}
}
