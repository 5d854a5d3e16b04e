package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"

	"github.com/marketloop/api/internal/domain"
	"github.com/marketloop/api/internal/services"
)

type stubTrustScoreService struct {
	lastSellerID string
	result       services.TrustScoreResult
	err          error
}

func (s *stubTrustScoreService) ScoreSeller(ctx context.Context, sellerID string) (services.TrustScoreResult, error) {
	s.lastSellerID = sellerID
	if s.err != nil {
		return services.TrustScoreResult{}, s.err
	}
	return s.result, nil
}

func newTrustRouter(h *TrustHandlers) chi.Router {
	r := chi.NewRouter()
	r.Route("/sellers", h.Routes)
	return r
}

func TestTrustHandlersGetTrustScore(t *testing.T) {
	svc := &stubTrustScoreService{result: services.TrustScoreResult{
		Total:      95,
		Max:        100,
		Percentage: 95,
		Level:      domain.TrustLevelTop,
		Label:      "Top seller",
		Factors: []services.TrustFactor{
			{Name: "Verification", Score: 25, Max: 25, Detail: "Identity verified"},
			{Name: "Responsiveness", Score: 15, Max: 15, Detail: "Avg reply: 20 min"},
		},
	}}
	router := newTrustRouter(NewTrustHandlers(svc))

	req := httptest.NewRequest(http.MethodGet, "/sellers/seller-1/trust-score", nil)
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rr.Code, rr.Body.String())
	}
	if svc.lastSellerID != "seller-1" {
		t.Fatalf("seller id = %q", svc.lastSellerID)
	}

	var body trustScoreResponse
	if err := json.Unmarshal(rr.Body.Bytes(), &body); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if body.Total != 95 || body.Level != "top" || body.Label != "Top seller" {
		t.Fatalf("unexpected body %#v", body)
	}
	if len(body.Factors) != 2 || body.Factors[1].Detail != "Avg reply: 20 min" {
		t.Fatalf("unexpected factors %#v", body.Factors)
	}
}

func TestTrustHandlersScoreFailure(t *testing.T) {
	svc := &stubTrustScoreService{err: errors.New("bad seller id")}
	router := newTrustRouter(NewTrustHandlers(svc))

	req := httptest.NewRequest(http.MethodGet, "/sellers/seller-1/trust-score", nil)
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	if rr.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rr.Code)
	}
}
