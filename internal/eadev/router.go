package eadev

import (
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/fxforge/platform/internal/auth"
	"github.com/fxforge/platform/internal/httpx"
)

// Router mounts the request endpoints for authenticated traders.
func Router(svc *Service, log *slog.Logger) chi.Router {
	r := chi.NewRouter()
	r.Post("/", handleSubmit(svc, log))
	r.Get("/", handleListMine(svc, log))
	return r
}

// AdminRouter mounts the review queue. Callers mount it behind
// auth.RequireAdmin.
func AdminRouter(svc *Service, log *slog.Logger) chi.Router {
	r := chi.NewRouter()
	r.Get("/", handleList(svc, log))
	r.Post("/{id}/decide", handleDecide(svc, log))
	return r
}

type submitRequest struct {
	StrategyName string `json:"strategy_name"`
	Requirements string `json:"requirements"`
}

type requestResponse struct {
	ID           string    `json:"id"`
	StrategyName string    `json:"strategy_name"`
	Requirements string    `json:"requirements"`
	Status       string    `json:"status"`
	CreatedAt    time.Time `json:"created_at"`
}

func toRequestResponse(req *Request) requestResponse {
	return requestResponse{
		ID:           req.ID.String(),
		StrategyName: req.StrategyName,
		Requirements: req.Requirements,
		Status:       string(req.Status),
		CreatedAt:    req.CreatedAt,
	}
}

func requestList(requests []Request) []requestResponse {
	resp := make([]requestResponse, 0, len(requests))
	for i := range requests {
		resp = append(resp, toRequestResponse(&requests[i]))
	}
	return resp
}

func handleSubmit(svc *Service, log *slog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, ok := auth.UserIDFromContext(r.Context())
		if !ok {
			httpx.RespondError(w, r, log, httpx.ErrAuthenticationRequired)
			return
		}

		var req submitRequest
		if err := httpx.Decode(r, &req); err != nil {
			httpx.RespondError(w, r, log, err)
			return
		}

		created, err := svc.Submit(r.Context(), SubmitParams{
			UserID:       userID,
			StrategyName: req.StrategyName,
			Requirements: req.Requirements,
		})
		if errors.Is(err, ErrMissingFields) {
			httpx.RespondError(w, r, log, httpx.BadRequest(err.Error()))
			return
		}
		if err != nil {
			httpx.RespondError(w, r, log, err)
			return
		}
		httpx.JSON(w, http.StatusCreated, toRequestResponse(created))
	}
}

func handleListMine(svc *Service, log *slog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, ok := auth.UserIDFromContext(r.Context())
		if !ok {
			httpx.RespondError(w, r, log, httpx.ErrAuthenticationRequired)
			return
		}

		requests, err := svc.ListMine(r.Context(), userID)
		if err != nil {
			httpx.RespondError(w, r, log, err)
			return
		}
		httpx.OK(w, requestList(requests))
	}
}

func handleList(svc *Service, log *slog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		requests, err := svc.List(r.Context(), Status(r.URL.Query().Get("status")))
		if err != nil {
			httpx.RespondError(w, r, log, err)
			return
		}
		httpx.OK(w, requestList(requests))
	}
}

type decideRequest struct {
	Approve bool `json:"approve"`
}

func handleDecide(svc *Service, log *slog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := uuid.Parse(chi.URLParam(r, "id"))
		if err != nil {
			httpx.RespondError(w, r, log, httpx.BadRequest("Invalid request id"))
			return
		}

		var req decideRequest
		if err := httpx.Decode(r, &req); err != nil {
			httpx.RespondError(w, r, log, err)
			return
		}

		decided, err := svc.Decide(r.Context(), id, req.Approve)
		switch {
		case errors.Is(err, ErrRequestNotFound):
			httpx.RespondError(w, r, log, httpx.NewError(http.StatusNotFound, "Request not found"))
		case errors.Is(err, ErrAlreadyDecided):
			httpx.RespondError(w, r, log, httpx.NewError(http.StatusConflict, "Request already decided"))
		case err != nil:
			httpx.RespondError(w, r, log, err)
		default:
			httpx.OK(w, toRequestResponse(decided))
		}
	}
}
