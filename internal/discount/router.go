package discount

import (
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/fxforge/platform/internal/httpx"
)

// Router mounts the public campaign endpoints: the live-campaign listing for
// the storefront and promo-code lookup at checkout.
func Router(svc *Service, log *slog.Logger) chi.Router {
	r := chi.NewRouter()
	r.Get("/active", handleListLive(svc, log))
	r.Get("/code/{code}", handleLookup(svc, log))
	return r
}

// AdminRouter mounts campaign CRUD. Callers mount it behind auth.RequireAdmin.
func AdminRouter(svc *Service, log *slog.Logger) chi.Router {
	r := chi.NewRouter()
	r.Get("/", handleList(svc, log))
	r.Post("/", handleCreate(svc, log))
	r.Put("/{id}", handleUpdate(svc, log))
	r.Delete("/{id}", handleDelete(svc, log))
	return r
}

type campaignPayload struct {
	Name           string    `json:"name"`
	PromoCode      string    `json:"promo_code"`
	Type           string    `json:"discount_type"`
	Value          float64   `json:"discount_value"`
	ProductIDs     []string  `json:"product_ids"`
	Active         bool      `json:"active"`
	StartsAt       time.Time `json:"starts_at"`
	EndsAt         time.Time `json:"ends_at"`
	MaxRedemptions int       `json:"max_redemptions"`
}

type campaignResponse struct {
	ID              string    `json:"id"`
	Name            string    `json:"name"`
	PromoCode       string    `json:"promo_code,omitempty"`
	Type            string    `json:"discount_type"`
	Value           float64   `json:"discount_value"`
	ProductIDs      []string  `json:"product_ids,omitempty"`
	Active          bool      `json:"active"`
	StartsAt        time.Time `json:"starts_at"`
	EndsAt          time.Time `json:"ends_at"`
	MaxRedemptions  int       `json:"max_redemptions,omitempty"`
	RedemptionCount int       `json:"redemption_count"`
}

func toCampaignResponse(c *Campaign) campaignResponse {
	return campaignResponse{
		ID:              c.ID.String(),
		Name:            c.Name,
		PromoCode:       c.PromoCode,
		Type:            string(c.Type),
		Value:           c.Value,
		ProductIDs:      c.ProductIDs,
		Active:          c.Active,
		StartsAt:        c.StartsAt,
		EndsAt:          c.EndsAt,
		MaxRedemptions:  c.MaxRedemptions,
		RedemptionCount: c.RedemptionCount,
	}
}

func campaignList(campaigns []Campaign) []campaignResponse {
	resp := make([]campaignResponse, 0, len(campaigns))
	for i := range campaigns {
		resp = append(resp, toCampaignResponse(&campaigns[i]))
	}
	return resp
}

func handleListLive(svc *Service, log *slog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		campaigns, err := svc.ListLive(r.Context())
		if err != nil {
			httpx.RespondError(w, r, log, err)
			return
		}
		httpx.OK(w, campaignList(campaigns))
	}
}

func handleLookup(svc *Service, log *slog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		c, err := svc.Lookup(r.Context(), chi.URLParam(r, "code"))
		switch {
		case errors.Is(err, ErrCampaignNotFound):
			httpx.RespondError(w, r, log, httpx.NewError(http.StatusNotFound, "Promo code not found"))
		case errors.Is(err, ErrCampaignNotLive):
			httpx.RespondError(w, r, log, httpx.NewError(http.StatusGone, "Promo code is no longer valid"))
		case err != nil:
			httpx.RespondError(w, r, log, err)
		default:
			httpx.OK(w, toCampaignResponse(c))
		}
	}
}

func handleList(svc *Service, log *slog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		campaigns, err := svc.List(r.Context())
		if err != nil {
			httpx.RespondError(w, r, log, err)
			return
		}
		httpx.OK(w, campaignList(campaigns))
	}
}

func decodeCampaign(r *http.Request) (*Campaign, error) {
	var p campaignPayload
	if err := httpx.Decode(r, &p); err != nil {
		return nil, err
	}
	return &Campaign{
		Name:           p.Name,
		PromoCode:      p.PromoCode,
		Type:           Type(p.Type),
		Value:          p.Value,
		ProductIDs:     p.ProductIDs,
		Active:         p.Active,
		StartsAt:       p.StartsAt,
		EndsAt:         p.EndsAt,
		MaxRedemptions: p.MaxRedemptions,
	}, nil
}

func handleCreate(svc *Service, log *slog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		c, err := decodeCampaign(r)
		if err != nil {
			httpx.RespondError(w, r, log, err)
			return
		}
		if err := svc.Create(r.Context(), c); err != nil {
			respondCampaignError(w, r, log, err)
			return
		}
		httpx.JSON(w, http.StatusCreated, toCampaignResponse(c))
	}
}

func handleUpdate(svc *Service, log *slog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := uuid.Parse(chi.URLParam(r, "id"))
		if err != nil {
			httpx.RespondError(w, r, log, httpx.BadRequest("Invalid campaign id"))
			return
		}
		c, err := decodeCampaign(r)
		if err != nil {
			httpx.RespondError(w, r, log, err)
			return
		}
		c.ID = id
		if err := svc.Update(r.Context(), c); err != nil {
			respondCampaignError(w, r, log, err)
			return
		}
		httpx.OK(w, toCampaignResponse(c))
	}
}

func handleDelete(svc *Service, log *slog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := uuid.Parse(chi.URLParam(r, "id"))
		if err != nil {
			httpx.RespondError(w, r, log, httpx.BadRequest("Invalid campaign id"))
			return
		}
		if err := svc.Delete(r.Context(), id); err != nil {
			respondCampaignError(w, r, log, err)
			return
		}
		httpx.OK(w, map[string]bool{"success": true})
	}
}

func respondCampaignError(w http.ResponseWriter, r *http.Request, log *slog.Logger, err error) {
	switch {
	case errors.Is(err, ErrInvalidCampaign):
		httpx.RespondError(w, r, log, httpx.BadRequest(err.Error()))
	case errors.Is(err, ErrDuplicateCode):
		httpx.RespondError(w, r, log, httpx.NewError(http.StatusConflict, "Promo code already in use"))
	case errors.Is(err, ErrCampaignNotFound):
		httpx.RespondError(w, r, log, httpx.NewError(http.StatusNotFound, "Campaign not found"))
	default:
		httpx.RespondError(w, r, log, err)
	}
}
