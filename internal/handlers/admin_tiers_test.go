package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	firebaseauth "firebase.google.com/go/v4/auth"
	"github.com/go-chi/chi/v5"

	"github.com/marketloop/api/internal/platform/auth"
	"github.com/marketloop/api/internal/platform/idempotency"
	"github.com/marketloop/api/internal/services"
)

type stubTokenVerifier struct {
	token *firebaseauth.Token
	err   error
}

func (s *stubTokenVerifier) VerifyIDToken(ctx context.Context, idToken string) (*firebaseauth.Token, error) {
	if s.err != nil {
		return nil, s.err
	}
	return s.token, nil
}

type stubTierAdminService struct {
	lastCmd services.UpdateTiersCommand
	result  services.TierUpdateResult
	err     error
	calls   int
}

func (s *stubTierAdminService) UpdateTiers(ctx context.Context, cmd services.UpdateTiersCommand) (services.TierUpdateResult, error) {
	s.calls++
	s.lastCmd = cmd
	if s.err != nil {
		return services.TierUpdateResult{}, s.err
	}
	return s.result, nil
}

func adminToken(roles ...string) *firebaseauth.Token {
	claims := map[string]any{}
	if len(roles) > 0 {
		entries := make([]any, 0, len(roles))
		for _, role := range roles {
			entries = append(entries, role)
		}
		claims["roles"] = entries
	}
	return &firebaseauth.Token{UID: "admin-uid", Claims: claims}
}

func newAdminRouter(verifier auth.TokenVerifier, svc services.TierAdminService, middlewares ...func(http.Handler) http.Handler) chi.Router {
	authn := auth.NewAuthenticator(verifier)
	tiers := &stubTierProvider{config: services.CommissionTierConfig{
		LowThreshold: 600, LowRate: 0.14, MidThreshold: 2400, MidRate: 0.09, HighRate: 0.04,
	}}
	r := chi.NewRouter()
	r.Route("/admin", NewAdminTierHandlers(authn, svc, tiers, middlewares...).Routes)
	return r
}

const validTierBody = `{"lowThreshold": 600, "lowRate": 0.14, "midThreshold": 2400, "midRate": 0.09, "highRate": 0.04}`

func TestAdminTierHandlersPutTiers(t *testing.T) {
	svc := &stubTierAdminService{result: services.TierUpdateResult{
		ConfigID:  "tier_01HTEST",
		Tiers:     services.CommissionTierConfig{LowThreshold: 600, LowRate: 0.14, MidThreshold: 2400, MidRate: 0.09, HighRate: 0.04},
		CreatedAt: time.Date(2026, 4, 1, 9, 0, 0, 0, time.UTC),
		EventID:   "evt_01HTEST",
	}}
	router := newAdminRouter(&stubTokenVerifier{token: adminToken(auth.RoleAdmin)}, svc)

	req := httptest.NewRequest(http.MethodPut, "/admin/commission/tiers", strings.NewReader(validTierBody))
	req.Header.Set("Authorization", "Bearer valid-token")
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rr.Code, rr.Body.String())
	}
	if svc.lastCmd.UpdatedBy != "admin-uid" {
		t.Fatalf("updated by = %q", svc.lastCmd.UpdatedBy)
	}
	if svc.lastCmd.Tiers.MidThreshold != 2400 {
		t.Fatalf("unexpected command %#v", svc.lastCmd)
	}

	var body updateTiersResponse
	if err := json.Unmarshal(rr.Body.Bytes(), &body); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if body.ConfigID != "tier_01HTEST" || body.EventID != "evt_01HTEST" {
		t.Fatalf("unexpected body %#v", body)
	}
}

func TestAdminTierHandlersRetriedPutDoesNotDuplicate(t *testing.T) {
	svc := &stubTierAdminService{result: services.TierUpdateResult{
		ConfigID:  "tier_01HRETRY",
		Tiers:     services.CommissionTierConfig{LowThreshold: 600, LowRate: 0.14, MidThreshold: 2400, MidRate: 0.09, HighRate: 0.04},
		CreatedAt: time.Date(2026, 4, 1, 9, 0, 0, 0, time.UTC),
	}}
	router := newAdminRouter(
		&stubTokenVerifier{token: adminToken(auth.RoleAdmin)},
		svc,
		idempotency.Middleware(idempotency.NewMemoryStore()),
	)

	send := func() *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodPut, "/admin/commission/tiers", strings.NewReader(validTierBody))
		req.Header.Set("Authorization", "Bearer valid-token")
		req.Header.Set("Idempotency-Key", "tiers-update-1")
		rr := httptest.NewRecorder()
		router.ServeHTTP(rr, req)
		return rr
	}

	rr1 := send()
	if rr1.Code != http.StatusOK {
		t.Fatalf("first status = %d, body = %s", rr1.Code, rr1.Body.String())
	}

	rr2 := send()
	if rr2.Code != http.StatusOK {
		t.Fatalf("retry status = %d, body = %s", rr2.Code, rr2.Body.String())
	}

	if svc.calls != 1 {
		t.Fatalf("retry must not reach the service again, got %d calls", svc.calls)
	}
	if rr2.Header().Get("X-Idempotent-Replay") != "true" {
		t.Fatal("expected the retry to be served from the stored response")
	}
	if rr2.Body.String() != rr1.Body.String() {
		t.Fatalf("replayed body = %s, want %s", rr2.Body.String(), rr1.Body.String())
	}
}

func TestAdminTierHandlersGetTiers(t *testing.T) {
	router := newAdminRouter(&stubTokenVerifier{token: adminToken(auth.RoleAdmin)}, &stubTierAdminService{})

	req := httptest.NewRequest(http.MethodGet, "/admin/commission/tiers", nil)
	req.Header.Set("Authorization", "Bearer valid-token")
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rr.Code, rr.Body.String())
	}

	var body tiersResponse
	if err := json.Unmarshal(rr.Body.Bytes(), &body); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if body.MidThreshold != 2400 || body.LowRate != 0.14 {
		t.Fatalf("unexpected body %#v", body)
	}
}

func TestAdminTierHandlersRequiresAdminRole(t *testing.T) {
	svc := &stubTierAdminService{}
	router := newAdminRouter(&stubTokenVerifier{token: adminToken("support")}, svc)

	req := httptest.NewRequest(http.MethodPut, "/admin/commission/tiers", strings.NewReader(validTierBody))
	req.Header.Set("Authorization", "Bearer valid-token")
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	if rr.Code != http.StatusForbidden {
		t.Fatalf("status = %d, want 403", rr.Code)
	}
	if svc.lastCmd.Tiers != (services.CommissionTierConfig{}) {
		t.Fatalf("service must not be invoked without the admin role")
	}
}

func TestAdminTierHandlersRejectsMissingToken(t *testing.T) {
	router := newAdminRouter(&stubTokenVerifier{token: adminToken(auth.RoleAdmin)}, &stubTierAdminService{})

	req := httptest.NewRequest(http.MethodPut, "/admin/commission/tiers", strings.NewReader(validTierBody))
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	if rr.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", rr.Code)
	}
}

func TestAdminTierHandlersRejectsInvalidToken(t *testing.T) {
	router := newAdminRouter(&stubTokenVerifier{err: errors.New("expired")}, &stubTierAdminService{})

	req := httptest.NewRequest(http.MethodPut, "/admin/commission/tiers", strings.NewReader(validTierBody))
	req.Header.Set("Authorization", "Bearer expired-token")
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	if rr.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", rr.Code)
	}
}

func TestAdminTierHandlersValidationAndFailureMapping(t *testing.T) {
	cases := []struct {
		name string
		body string
		err  error
		want int
	}{
		{"missing field", `{"lowThreshold": 600}`, nil, http.StatusBadRequest},
		{"invalid config", validTierBody, services.ErrTierAdminInvalidInput, http.StatusUnprocessableEntity},
		{"store unavailable", validTierBody, services.ErrTierAdminUnavailable, http.StatusServiceUnavailable},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			svc := &stubTierAdminService{err: tc.err}
			router := newAdminRouter(&stubTokenVerifier{token: adminToken(auth.RoleAdmin)}, svc)

			req := httptest.NewRequest(http.MethodPut, "/admin/commission/tiers", strings.NewReader(tc.body))
			req.Header.Set("Authorization", "Bearer valid-token")
			rr := httptest.NewRecorder()
			router.ServeHTTP(rr, req)

			if rr.Code != tc.want {
				t.Fatalf("status = %d, want %d, body = %s", rr.Code, tc.want, rr.Body.String())
			}
		})
	}
}
