package handlers

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/marketloop/api/internal/platform/httpx"
	"github.com/marketloop/api/internal/services"
)

// TrustHandlers exposes the seller trust score endpoint.
type TrustHandlers struct {
	scores services.TrustScoreService
}

// NewTrustHandlers constructs handlers over the trust score calculator.
func NewTrustHandlers(scores services.TrustScoreService) *TrustHandlers {
	return &TrustHandlers{scores: scores}
}

// Routes wires the /sellers endpoints onto the provided router.
func (h *TrustHandlers) Routes(r chi.Router) {
	if r == nil {
		return
	}
	r.Get("/{sellerId}/trust-score", h.getTrustScore)
}

type trustFactorPayload struct {
	Name   string `json:"name"`
	Score  int    `json:"score"`
	Max    int    `json:"max"`
	Detail string `json:"detail"`
}

type trustScoreResponse struct {
	SellerID   string               `json:"sellerId"`
	Total      int                  `json:"total"`
	Max        int                  `json:"max"`
	Percentage int                  `json:"percentage"`
	Level      string               `json:"level"`
	Label      string               `json:"label"`
	Factors    []trustFactorPayload `json:"factors"`
}

func (h *TrustHandlers) getTrustScore(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.scores == nil {
		httpx.WriteError(ctx, w, httpx.NewError("trust_unavailable", "trust score service is unavailable", http.StatusServiceUnavailable))
		return
	}

	sellerID := strings.TrimSpace(chi.URLParam(r, "sellerId"))
	if sellerID == "" {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "seller id is required", http.StatusBadRequest))
		return
	}

	result, err := h.scores.ScoreSeller(ctx, sellerID)
	if err != nil {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "failed to score seller", http.StatusBadRequest))
		return
	}

	factors := make([]trustFactorPayload, 0, len(result.Factors))
	for _, factor := range result.Factors {
		factors = append(factors, trustFactorPayload{
			Name:   factor.Name,
			Score:  factor.Score,
			Max:    factor.Max,
			Detail: factor.Detail,
		})
	}

	writeJSONResponse(w, http.StatusOK, trustScoreResponse{
		SellerID:   sellerID,
		Total:      result.Total,
		Max:        result.Max,
		Percentage: result.Percentage,
		Level:      string(result.Level),
		Label:      result.Label,
		Factors:    factors,
	})
}
