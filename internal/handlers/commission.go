package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/marketloop/api/internal/platform/httpx"
	"github.com/marketloop/api/internal/platform/textutil"
	"github.com/marketloop/api/internal/services"
)

const maxQuoteBodySize = 4 * 1024

// CommissionHandlers exposes the public commission endpoints.
type CommissionHandlers struct {
	commission services.CommissionService
	tiers      services.TierProvider
}

// NewCommissionHandlers constructs handlers over the commission calculator and tier provider.
func NewCommissionHandlers(commission services.CommissionService, tiers services.TierProvider) *CommissionHandlers {
	return &CommissionHandlers{
		commission: commission,
		tiers:      tiers,
	}
}

// Routes wires the /commission endpoints onto the provided router.
func (h *CommissionHandlers) Routes(r chi.Router) {
	if r == nil {
		return
	}
	r.Get("/tiers", h.getTiers)
	r.Post("/quote", h.postQuote)
}

type tiersResponse struct {
	LowThreshold float64 `json:"lowThreshold"`
	LowRate      float64 `json:"lowRate"`
	MidThreshold float64 `json:"midThreshold"`
	MidRate      float64 `json:"midRate"`
	HighRate     float64 `json:"highRate"`
}

func (h *CommissionHandlers) getTiers(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.tiers == nil {
		httpx.WriteError(ctx, w, httpx.NewError("commission_unavailable", "commission service is unavailable", http.StatusServiceUnavailable))
		return
	}

	tiers, err := h.tiers.GetTiers(ctx)
	if err != nil {
		httpx.WriteError(ctx, w, httpx.NewError("commission_unavailable", "failed to load tier configuration", http.StatusServiceUnavailable))
		return
	}

	writeJSONResponse(w, http.StatusOK, tiersResponse{
		LowThreshold: tiers.LowThreshold,
		LowRate:      tiers.LowRate,
		MidThreshold: tiers.MidThreshold,
		MidRate:      tiers.MidRate,
		HighRate:     tiers.HighRate,
	})
}

type quoteRequest struct {
	Price       *float64 `json:"price"`
	PromoActive bool     `json:"promoActive"`
}

type quoteResponse struct {
	Price            float64           `json:"price"`
	Rate             float64           `json:"rate"`
	Tier             string            `json:"tier"`
	TierLabel        string            `json:"tierLabel"`
	CommissionAmount float64           `json:"commissionAmount"`
	NetSellerAmount  float64           `json:"netSellerAmount"`
	PromoApplied     bool              `json:"promoApplied"`
	Display          map[string]string `json:"display"`
}

func (h *CommissionHandlers) postQuote(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.commission == nil {
		httpx.WriteError(ctx, w, httpx.NewError("commission_unavailable", "commission service is unavailable", http.StatusServiceUnavailable))
		return
	}

	body, err := readLimitedBody(r, maxQuoteBodySize)
	if err != nil {
		switch {
		case errors.Is(err, errBodyTooLarge):
			httpx.WriteError(ctx, w, httpx.NewError("payload_too_large", "request body exceeds allowed size", http.StatusRequestEntityTooLarge))
		default:
			httpx.WriteError(ctx, w, httpx.NewError("invalid_request", err.Error(), http.StatusBadRequest))
		}
		return
	}

	var req quoteRequest
	if err := json.Unmarshal(body, &req); err != nil {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", fmt.Sprintf("invalid JSON payload: %v", err), http.StatusBadRequest))
		return
	}
	if req.Price == nil {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "price is required", http.StatusBadRequest))
		return
	}
	if math.IsNaN(*req.Price) || math.IsInf(*req.Price, 0) {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "price must be a finite number", http.StatusBadRequest))
		return
	}

	breakdown, err := h.commission.CalculateCommission(ctx, services.CalculateCommissionCommand{
		Price:       *req.Price,
		PromoActive: req.PromoActive,
	})
	if err != nil {
		httpx.WriteError(ctx, w, httpx.NewError("commission_unavailable", "failed to calculate commission", http.StatusServiceUnavailable))
		return
	}

	writeJSONResponse(w, http.StatusOK, quoteResponse{
		Price:            breakdown.Price,
		Rate:             breakdown.Rate,
		Tier:             string(breakdown.Tier),
		TierLabel:        breakdown.TierLabel,
		CommissionAmount: breakdown.CommissionAmount,
		NetSellerAmount:  breakdown.NetSellerAmount,
		PromoApplied:     breakdown.PromoApplied,
		Display: map[string]string{
			"price":      textutil.FormatAmount(breakdown.Price),
			"commission": textutil.FormatAmount(breakdown.CommissionAmount),
			"net":        textutil.FormatAmount(breakdown.NetSellerAmount),
			"rate":       textutil.FormatPercent(breakdown.Rate),
		},
	})
}
