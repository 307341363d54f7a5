// Package webhook receives payment provider callbacks and drives idempotent
// license issuance: verify the signature, record the event once, filter the
// type, then issue.
package webhook

import (
	"errors"
	"io"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/fxforge/platform/internal/billing"
	"github.com/fxforge/platform/internal/httpx"
	"github.com/fxforge/platform/internal/license"
	"github.com/fxforge/platform/internal/plan"
)

// maxBodyBytes caps webhook payload size.
const maxBodyBytes = int64(1 << 16)

// handledTypes lists the event types that result in a license, per provider.
// Everything else is acknowledged and ignored.
var handledTypes = map[string]map[string]bool{
	"polar": {
		"checkout.succeeded":   true,
		"subscription.created": true,
		"subscription.updated": true,
	},
	"paystack": {
		"charge.success": true,
	},
	"stripe": {
		"checkout.session.completed": true,
	},
}

// Router mounts one POST receiver per registered provider at /{name}.
func Router(svc *license.Service, log *slog.Logger, providers ...billing.Provider) chi.Router {
	r := chi.NewRouter()
	for _, p := range providers {
		r.Post("/"+p.Name(), Handler(svc, p, log))
	}
	return r
}

// Handler builds the receiver for one provider. Failures before the ledger
// insert return 4xx/5xx so the provider retries; everything after is
// acknowledged with 200 to stop redelivery.
func Handler(svc *license.Service, provider billing.Provider, log *slog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
		payload, err := io.ReadAll(r.Body)
		if err != nil {
			httpx.RespondError(w, r, log, httpx.BadRequest("Failed to read webhook payload"))
			return
		}

		ev, err := provider.ParseWebhook(r.Context(), payload, r.Header)
		if err != nil {
			switch {
			case errors.Is(err, billing.ErrMissingSignature):
				httpx.JSON(w, http.StatusUnauthorized, httpx.Error{Message: "Missing webhook signature"})
			case errors.Is(err, billing.ErrInvalidSignature):
				httpx.JSON(w, http.StatusUnauthorized, httpx.Error{Message: "Invalid webhook signature"})
			default:
				httpx.JSON(w, http.StatusBadRequest, httpx.Error{Message: "Invalid webhook event shape"})
			}
			return
		}

		fresh, err := svc.RecordEvent(r.Context(), license.Event{
			Provider:  ev.Provider,
			EventID:   ev.ID,
			EventType: ev.Type,
			Payload:   ev.Raw,
		})
		if err != nil {
			log.ErrorContext(r.Context(), "webhook ledger insert failed",
				"provider", ev.Provider, "event_id", ev.ID, "error", err)
			httpx.RespondError(w, r, log, err)
			return
		}
		if !fresh {
			httpx.OK(w, map[string]any{"success": true, "idempotent": true})
			return
		}

		if !handledTypes[ev.Provider][ev.Type] {
			httpx.OK(w, map[string]any{"success": true, "ignored": true})
			return
		}

		if ev.UserID == uuid.Nil || ev.PlanID == uuid.Nil {
			log.WarnContext(r.Context(), "webhook event missing checkout metadata",
				"provider", ev.Provider, "event_id", ev.ID, "event_type", ev.Type)
			httpx.OK(w, map[string]any{"success": true, "skipped": "Missing ea_plan_id or user_id metadata"})
			return
		}

		l, created, err := svc.Issue(r.Context(), license.IssueParams{
			Provider:       ev.Provider,
			UserID:         ev.UserID,
			PlanID:         ev.PlanID,
			CheckoutID:     ev.CheckoutID,
			SubscriptionID: ev.SubscriptionID,
			OrderID:        ev.OrderID,
		})
		if err != nil {
			if errors.Is(err, plan.ErrPlanNotFound) {
				httpx.JSON(w, http.StatusNotFound, httpx.Error{Message: "Plan not found for webhook event"})
				return
			}
			log.ErrorContext(r.Context(), "license issuance failed",
				"provider", ev.Provider, "event_id", ev.ID, "error", err)
			httpx.RespondError(w, r, log, err)
			return
		}
		if !created {
			httpx.OK(w, map[string]any{"success": true, "idempotent": true})
			return
		}

		log.InfoContext(r.Context(), "license issued from webhook",
			"provider", ev.Provider, "event_id", ev.ID, "license_id", l.ID)
		httpx.OK(w, map[string]any{"success": true, "license_id": l.ID, "license_key": l.Key})
	}
}
