package checkout

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/fxforge/platform/internal/auth"
	"github.com/fxforge/platform/internal/billing"
	"github.com/fxforge/platform/internal/httpx"
	"github.com/fxforge/platform/internal/plan"
)

// Directory resolves the authenticated user's email when the request body
// does not carry one.
type Directory interface {
	EmailFor(ctx context.Context, userID uuid.UUID) (string, error)
}

// Router mounts the checkout endpoints. Callers mount it behind the auth
// middleware; the verify route is also used by the post-payment result pages.
// users may be nil, in which case the request body must carry the email.
func Router(svc *Service, users Directory, log *slog.Logger) chi.Router {
	r := chi.NewRouter()
	r.Post("/{provider}", handleCreate(svc, users, log))
	r.Get("/{provider}/verify", handleVerify(svc, log))
	return r
}

type createRequest struct {
	PlanID             string            `json:"ea_plan_id"`
	Email              string            `json:"email"`
	Amount             float64           `json:"amount"`
	Currency           string            `json:"currency"`
	ProductID          string            `json:"polar_product_id"`
	DiscountID         string            `json:"discount_id"`
	AllowDiscountCodes *bool             `json:"allow_discount_codes"`
	Metadata           map[string]string `json:"metadata"`
}

type createResponse struct {
	ID          string `json:"id"`
	Status      string `json:"status"`
	CheckoutURL string `json:"checkoutUrl"`
	URL         string `json:"url"`
	Reference   string `json:"reference,omitempty"`
	AccessCode  string `json:"access_code,omitempty"`
	Amount      int64  `json:"amount,omitempty"`
	Currency    string `json:"currency,omitempty"`
}

func handleCreate(svc *Service, users Directory, log *slog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, ok := auth.UserIDFromContext(r.Context())
		if !ok {
			httpx.RespondError(w, r, log, httpx.ErrAuthenticationRequired)
			return
		}

		var req createRequest
		if err := httpx.Decode(r, &req); err != nil {
			httpx.RespondError(w, r, log, err)
			return
		}

		email := req.Email
		if email == "" && users != nil {
			resolved, err := users.EmailFor(r.Context(), userID)
			if err != nil {
				log.WarnContext(r.Context(), "email lookup failed", "user_id", userID, "error", err)
			} else {
				email = resolved
			}
		}

		var planID uuid.UUID
		if req.PlanID != "" {
			id, err := uuid.Parse(req.PlanID)
			if err != nil {
				httpx.RespondError(w, r, log, httpx.BadRequest("Invalid ea_plan_id"))
				return
			}
			planID = id
		}

		allowDiscounts := true
		if req.AllowDiscountCodes != nil {
			allowDiscounts = *req.AllowDiscountCodes
		}

		sess, err := svc.Create(r.Context(), Params{
			Provider:           chi.URLParam(r, "provider"),
			UserID:             userID,
			Email:              email,
			PlanID:             planID,
			Amount:             req.Amount,
			Currency:           req.Currency,
			ProductID:          req.ProductID,
			DiscountID:         req.DiscountID,
			AllowDiscountCodes: allowDiscounts,
			Metadata:           req.Metadata,
		})
		if err != nil {
			respondCheckoutError(w, r, log, err)
			return
		}

		httpx.OK(w, createResponse{
			ID:          sess.ID,
			Status:      sess.Status,
			CheckoutURL: sess.URL,
			URL:         sess.URL,
			Reference:   sess.ID,
			AccessCode:  sess.AccessCode,
			Amount:      sess.AmountMinor,
			Currency:    sess.Currency,
		})
	}
}

type verifyResponse struct {
	ID       string            `json:"id"`
	Status   string            `json:"status"`
	Provider string            `json:"provider"`
	Paid     bool              `json:"paid"`
	Metadata map[string]string `json:"metadata,omitempty"`
}

func handleVerify(svc *Service, log *slog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := r.URL.Query().Get("id")
		if id == "" {
			id = r.URL.Query().Get("reference")
		}
		if id == "" {
			httpx.RespondError(w, r, log, httpx.BadRequest("Reference is required"))
			return
		}

		providerName := chi.URLParam(r, "provider")
		status, err := svc.Verify(r.Context(), providerName, id)
		if err != nil {
			respondCheckoutError(w, r, log, err)
			return
		}

		httpx.OK(w, verifyResponse{
			ID:       status.ID,
			Status:   status.Status,
			Provider: providerName,
			Paid:     status.Paid,
			Metadata: status.Metadata,
		})
	}
}

func respondCheckoutError(w http.ResponseWriter, r *http.Request, log *slog.Logger, err error) {
	var upstream *billing.UpstreamError
	switch {
	case errors.Is(err, plan.ErrPlanNotFound), errors.Is(err, plan.ErrPlanInactive):
		httpx.JSON(w, http.StatusNotFound, httpx.Error{Message: "Plan not found or inactive"})
	case errors.Is(err, plan.ErrMappingMissing):
		httpx.JSON(w, http.StatusInternalServerError, httpx.Error{Message: err.Error()})
	case errors.Is(err, ErrUnknownProvider), errors.Is(err, ErrInvalidAmount):
		httpx.RespondError(w, r, log, httpx.BadRequest(err.Error()))
	case errors.Is(err, ErrEmailRequired):
		httpx.RespondError(w, r, log, httpx.BadRequest("Customer email is required"))
	case errors.As(err, &upstream):
		httpx.RespondError(w, r, log, httpx.Upstream(upstream.Status, upstream.Message))
	default:
		httpx.RespondError(w, r, log, err)
	}
}
