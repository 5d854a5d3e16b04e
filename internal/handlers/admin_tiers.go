package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/marketloop/api/internal/platform/auth"
	"github.com/marketloop/api/internal/platform/httpx"
	"github.com/marketloop/api/internal/services"
)

const maxTierBodySize = 8 * 1024

// AdminTierHandlers exposes the administrator tier configuration endpoints.
type AdminTierHandlers struct {
	authn       *auth.Authenticator
	admin       services.TierAdminService
	tiers       services.TierProvider
	middlewares []func(http.Handler) http.Handler
}

// NewAdminTierHandlers constructs handlers enforcing the admin role before applying
// tier updates. Extra middlewares (request de-duplication) run after the role check
// so they see the authenticated identity and never cache rejected requests.
func NewAdminTierHandlers(authn *auth.Authenticator, admin services.TierAdminService, tiers services.TierProvider, middlewares ...func(http.Handler) http.Handler) *AdminTierHandlers {
	return &AdminTierHandlers{
		authn:       authn,
		admin:       admin,
		tiers:       tiers,
		middlewares: middlewares,
	}
}

// Routes wires the /admin/commission endpoints onto the provided router.
func (h *AdminTierHandlers) Routes(r chi.Router) {
	if r == nil {
		return
	}
	if h.authn != nil {
		r.Use(h.authn.RequireRole(auth.RoleAdmin))
	}
	for _, mw := range h.middlewares {
		if mw != nil {
			r.Use(mw)
		}
	}
	r.Get("/commission/tiers", h.getTiers)
	r.Put("/commission/tiers", h.putTiers)
}

type updateTiersRequest struct {
	LowThreshold *float64 `json:"lowThreshold"`
	LowRate      *float64 `json:"lowRate"`
	MidThreshold *float64 `json:"midThreshold"`
	MidRate      *float64 `json:"midRate"`
	HighRate     *float64 `json:"highRate"`
}

type updateTiersResponse struct {
	ConfigID  string        `json:"configId"`
	Tiers     tiersResponse `json:"tiers"`
	CreatedAt string        `json:"createdAt"`
	EventID   string        `json:"eventId,omitempty"`
}

func (h *AdminTierHandlers) getTiers(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.tiers == nil {
		httpx.WriteError(ctx, w, httpx.NewError("admin_unavailable", "tier configuration is unavailable", http.StatusServiceUnavailable))
		return
	}

	tiers, err := h.tiers.GetTiers(ctx)
	if err != nil {
		httpx.WriteError(ctx, w, httpx.NewError("internal_error", "failed to load tier configuration", http.StatusInternalServerError))
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

func (h *AdminTierHandlers) putTiers(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.admin == nil {
		httpx.WriteError(ctx, w, httpx.NewError("admin_unavailable", "tier admin service is unavailable", http.StatusServiceUnavailable))
		return
	}

	body, err := readLimitedBody(r, maxTierBodySize)
	if err != nil {
		switch {
		case errors.Is(err, errBodyTooLarge):
			httpx.WriteError(ctx, w, httpx.NewError("payload_too_large", "request body exceeds allowed size", http.StatusRequestEntityTooLarge))
		default:
			httpx.WriteError(ctx, w, httpx.NewError("invalid_request", err.Error(), http.StatusBadRequest))
		}
		return
	}

	var req updateTiersRequest
	if err := json.Unmarshal(body, &req); err != nil {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", fmt.Sprintf("invalid JSON payload: %v", err), http.StatusBadRequest))
		return
	}
	if req.LowThreshold == nil || req.LowRate == nil || req.MidThreshold == nil || req.MidRate == nil || req.HighRate == nil {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "all five tier fields are required", http.StatusBadRequest))
		return
	}

	cmd := services.UpdateTiersCommand{
		Tiers: services.CommissionTierConfig{
			LowThreshold: *req.LowThreshold,
			LowRate:      *req.LowRate,
			MidThreshold: *req.MidThreshold,
			MidRate:      *req.MidRate,
			HighRate:     *req.HighRate,
		},
	}
	if identity, ok := auth.IdentityFromContext(ctx); ok && strings.TrimSpace(identity.UID) != "" {
		cmd.UpdatedBy = identity.UID
	}

	result, err := h.admin.UpdateTiers(ctx, cmd)
	if err != nil {
		h.writeTierError(ctx, w, err)
		return
	}

	writeJSONResponse(w, http.StatusOK, updateTiersResponse{
		ConfigID: result.ConfigID,
		Tiers: tiersResponse{
			LowThreshold: result.Tiers.LowThreshold,
			LowRate:      result.Tiers.LowRate,
			MidThreshold: result.Tiers.MidThreshold,
			MidRate:      result.Tiers.MidRate,
			HighRate:     result.Tiers.HighRate,
		},
		CreatedAt: result.CreatedAt.UTC().Format(time.RFC3339Nano),
		EventID:   result.EventID,
	})
}

func (h *AdminTierHandlers) writeTierError(ctx context.Context, w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, services.ErrTierAdminInvalidInput):
		httpx.WriteError(ctx, w, httpx.NewError("invalid_tier_config", err.Error(), http.StatusUnprocessableEntity))
	case errors.Is(err, services.ErrTierAdminUnavailable):
		httpx.WriteError(ctx, w, httpx.NewError("configuration_store_unavailable", "failed to persist tier configuration", http.StatusServiceUnavailable))
	default:
		httpx.WriteError(ctx, w, httpx.NewError("internal_error", "unexpected error applying tier update", http.StatusInternalServerError))
	}
}
