package affiliate

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/fxforge/platform/internal/auth"
	"github.com/fxforge/platform/internal/httpx"
)

// Router mounts the affiliate endpoints for authenticated users. Callers
// mount it behind the auth middleware.
func Router(svc *Service, log *slog.Logger) chi.Router {
	r := chi.NewRouter()
	r.Post("/apply", handleApply(svc, log))
	r.Get("/me", handleMe(svc, log))
	r.Get("/stats", handleStats(svc, log))
	return r
}

// AdminRouter mounts the application review endpoints. Callers mount it
// behind auth.RequireAdmin.
func AdminRouter(svc *Service, log *slog.Logger) chi.Router {
	r := chi.NewRouter()
	r.Get("/applications", handleList(svc, log))
	r.Post("/applications/{id}/review", handleReview(svc, log))
	return r
}

// TrackRouter mounts the unauthenticated tracking endpoints used by the
// landing pages.
func TrackRouter(svc *Service, log *slog.Logger) chi.Router {
	r := chi.NewRouter()
	r.Post("/click", handleClick(svc, log))
	r.Post("/signup", handleSignup(svc, log))
	return r
}

type applyRequest struct {
	Email      string `json:"email"`
	FullName   string `json:"full_name"`
	SocialLink string `json:"social_link"`
}

type applicationResponse struct {
	ID         string `json:"id"`
	Status     string `json:"status"`
	Email      string `json:"email"`
	FullName   string `json:"full_name"`
	SocialLink string `json:"social_link,omitempty"`
}

func toApplicationResponse(app *Application) applicationResponse {
	return applicationResponse{
		ID:         app.ID.String(),
		Status:     string(app.Status),
		Email:      app.Email,
		FullName:   app.FullName,
		SocialLink: app.SocialLink,
	}
}

func handleApply(svc *Service, log *slog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, ok := auth.UserIDFromContext(r.Context())
		if !ok {
			httpx.RespondError(w, r, log, httpx.ErrAuthenticationRequired)
			return
		}

		var req applyRequest
		if err := httpx.Decode(r, &req); err != nil {
			httpx.RespondError(w, r, log, err)
			return
		}
		if req.Email == "" || req.FullName == "" {
			httpx.RespondError(w, r, log, httpx.BadRequest("Email and full name are required"))
			return
		}

		app, err := svc.Apply(r.Context(), ApplyParams{
			UserID:     userID,
			Email:      req.Email,
			FullName:   req.FullName,
			SocialLink: req.SocialLink,
		})
		if errors.Is(err, ErrAlreadyApplied) {
			httpx.RespondError(w, r, log, httpx.NewError(http.StatusConflict, "Application already submitted"))
			return
		}
		if err != nil {
			httpx.RespondError(w, r, log, err)
			return
		}
		httpx.JSON(w, http.StatusCreated, toApplicationResponse(app))
	}
}

type meResponse struct {
	Application *applicationResponse `json:"application,omitempty"`
	Affiliate   *affiliateResponse   `json:"affiliate,omitempty"`
}

type affiliateResponse struct {
	ReferralCode      string `json:"referral_code"`
	CommissionRateBps int    `json:"commission_rate_bps"`
	PayoutStatus      string `json:"payout_status"`
}

func handleMe(svc *Service, log *slog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, ok := auth.UserIDFromContext(r.Context())
		if !ok {
			httpx.RespondError(w, r, log, httpx.ErrAuthenticationRequired)
			return
		}

		var resp meResponse
		if app, err := svc.ApplicationFor(r.Context(), userID); err == nil {
			ar := toApplicationResponse(app)
			resp.Application = &ar
		} else if !errors.Is(err, ErrApplicationNotFound) {
			httpx.RespondError(w, r, log, err)
			return
		}
		if a, err := svc.AffiliateFor(r.Context(), userID); err == nil {
			resp.Affiliate = &affiliateResponse{
				ReferralCode:      a.ReferralCode,
				CommissionRateBps: a.CommissionRateBps,
				PayoutStatus:      a.PayoutStatus,
			}
		} else if !errors.Is(err, ErrAffiliateNotFound) {
			httpx.RespondError(w, r, log, err)
			return
		}
		httpx.OK(w, resp)
	}
}

func handleStats(svc *Service, log *slog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, ok := auth.UserIDFromContext(r.Context())
		if !ok {
			httpx.RespondError(w, r, log, httpx.ErrAuthenticationRequired)
			return
		}

		stats, err := svc.StatsFor(r.Context(), userID)
		if errors.Is(err, ErrAffiliateNotFound) {
			httpx.RespondError(w, r, log, httpx.NewError(http.StatusNotFound, "Not an affiliate"))
			return
		}
		if err != nil {
			httpx.RespondError(w, r, log, err)
			return
		}
		httpx.OK(w, stats)
	}
}

func handleList(svc *Service, log *slog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		status := ApplicationStatus(r.URL.Query().Get("status"))
		apps, err := svc.ListApplications(r.Context(), status)
		if err != nil {
			httpx.RespondError(w, r, log, err)
			return
		}

		resp := make([]applicationResponse, 0, len(apps))
		for i := range apps {
			resp = append(resp, toApplicationResponse(&apps[i]))
		}
		httpx.OK(w, resp)
	}
}

type reviewRequest struct {
	Approve bool `json:"approve"`
}

func handleReview(svc *Service, log *slog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := uuid.Parse(chi.URLParam(r, "id"))
		if err != nil {
			httpx.RespondError(w, r, log, httpx.BadRequest("Invalid application id"))
			return
		}

		var req reviewRequest
		if err := httpx.Decode(r, &req); err != nil {
			httpx.RespondError(w, r, log, err)
			return
		}

		app, err := svc.Review(r.Context(), id, req.Approve)
		switch {
		case errors.Is(err, ErrApplicationNotFound):
			httpx.RespondError(w, r, log, httpx.NewError(http.StatusNotFound, "Application not found"))
		case errors.Is(err, ErrAlreadyReviewed):
			httpx.RespondError(w, r, log, httpx.NewError(http.StatusConflict, "Application already reviewed"))
		case err != nil:
			httpx.RespondError(w, r, log, err)
		default:
			httpx.OK(w, toApplicationResponse(app))
		}
	}
}

type clickRequest struct {
	Ref string `json:"ref"`
}

func handleClick(svc *Service, log *slog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req clickRequest
		if err := httpx.Decode(r, &req); err != nil {
			httpx.RespondError(w, r, log, err)
			return
		}
		if req.Ref == "" {
			httpx.RespondError(w, r, log, httpx.BadRequest("Referral code is required"))
			return
		}
		if err := svc.TrackClick(r.Context(), req.Ref); err != nil {
			httpx.RespondError(w, r, log, err)
			return
		}
		httpx.OK(w, map[string]bool{"success": true})
	}
}

type signupRequest struct {
	Ref    string `json:"ref"`
	UserID string `json:"user_id"`
}

func handleSignup(svc *Service, log *slog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req signupRequest
		if err := httpx.Decode(r, &req); err != nil {
			httpx.RespondError(w, r, log, err)
			return
		}
		if req.Ref == "" {
			httpx.RespondError(w, r, log, httpx.BadRequest("Referral code is required"))
			return
		}
		userID, err := uuid.Parse(req.UserID)
		if err != nil {
			httpx.RespondError(w, r, log, httpx.BadRequest("Invalid user_id"))
			return
		}
		if err := svc.TrackSignup(r.Context(), req.Ref, userID); err != nil {
			httpx.RespondError(w, r, log, err)
			return
		}
		httpx.OK(w, map[string]bool{"success": true})
	}
}
