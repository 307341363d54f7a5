package support

import (
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/fxforge/platform/internal/httpx"
)

// Router mounts the public contact-form endpoint.
func Router(svc *Service, log *slog.Logger) chi.Router {
	r := chi.NewRouter()
	r.Post("/", handleSubmit(svc, log))
	return r
}

// AdminRouter mounts the ticket queue. Callers mount it behind
// auth.RequireAdmin.
func AdminRouter(svc *Service, log *slog.Logger) chi.Router {
	r := chi.NewRouter()
	r.Get("/", handleList(svc, log))
	r.Post("/{id}/reply", handleReply(svc, log))
	r.Post("/{id}/resolve", handleResolve(svc, log))
	return r
}

type submitRequest struct {
	Name    string `json:"name"`
	Email   string `json:"email"`
	Topic   string `json:"topic"`
	Message string `json:"message"`
}

type ticketResponse struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Email     string    `json:"email"`
	Topic     string    `json:"topic"`
	Message   string    `json:"message"`
	Status    string    `json:"status"`
	CreatedAt time.Time `json:"created_at"`
}

func toTicketResponse(t *Ticket) ticketResponse {
	return ticketResponse{
		ID:        t.ID.String(),
		Name:      t.Name,
		Email:     t.Email,
		Topic:     t.Topic,
		Message:   t.Message,
		Status:    string(t.Status),
		CreatedAt: t.CreatedAt,
	}
}

func handleSubmit(svc *Service, log *slog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req submitRequest
		if err := httpx.Decode(r, &req); err != nil {
			httpx.RespondError(w, r, log, err)
			return
		}

		t, err := svc.Submit(r.Context(), SubmitParams{
			Name:    req.Name,
			Email:   req.Email,
			Topic:   req.Topic,
			Message: req.Message,
		})
		if errors.Is(err, ErrMissingFields) {
			httpx.RespondError(w, r, log, httpx.BadRequest(err.Error()))
			return
		}
		if err != nil {
			httpx.RespondError(w, r, log, err)
			return
		}
		httpx.JSON(w, http.StatusCreated, map[string]any{"success": true, "id": t.ID.String()})
	}
}

func handleList(svc *Service, log *slog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		tickets, err := svc.List(r.Context(), Status(r.URL.Query().Get("status")))
		if err != nil {
			httpx.RespondError(w, r, log, err)
			return
		}
		resp := make([]ticketResponse, 0, len(tickets))
		for i := range tickets {
			resp = append(resp, toTicketResponse(&tickets[i]))
		}
		httpx.OK(w, resp)
	}
}

type replyRequest struct {
	Subject string `json:"subject"`
	Message string `json:"message"`
}

func handleReply(svc *Service, log *slog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := uuid.Parse(chi.URLParam(r, "id"))
		if err != nil {
			httpx.RespondError(w, r, log, httpx.BadRequest("Invalid ticket id"))
			return
		}

		var req replyRequest
		if err := httpx.Decode(r, &req); err != nil {
			httpx.RespondError(w, r, log, err)
			return
		}

		t, err := svc.Reply(r.Context(), id, ReplyParams{Subject: req.Subject, Message: req.Message})
		switch {
		case errors.Is(err, ErrTicketNotFound):
			httpx.RespondError(w, r, log, httpx.NewError(http.StatusNotFound, "Ticket not found"))
		case errors.Is(err, ErrTicketResolved):
			httpx.RespondError(w, r, log, httpx.NewError(http.StatusConflict, "Ticket already resolved"))
		case errors.Is(err, ErrReplyMissingField):
			httpx.RespondError(w, r, log, httpx.BadRequest(err.Error()))
		case err != nil:
			httpx.RespondError(w, r, log, err)
		default:
			httpx.OK(w, toTicketResponse(t))
		}
	}
}

func handleResolve(svc *Service, log *slog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := uuid.Parse(chi.URLParam(r, "id"))
		if err != nil {
			httpx.RespondError(w, r, log, httpx.BadRequest("Invalid ticket id"))
			return
		}

		err = svc.Resolve(r.Context(), id)
		if errors.Is(err, ErrTicketNotFound) {
			httpx.RespondError(w, r, log, httpx.NewError(http.StatusNotFound, "Ticket not found"))
			return
		}
		if err != nil {
			httpx.RespondError(w, r, log, err)
			return
		}
		httpx.OK(w, map[string]bool{"success": true})
	}
}
