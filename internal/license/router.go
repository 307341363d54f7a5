package license

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

// Router mounts the license endpoints. The validate and heartbeat routes are
// called by EA instances with a license key, not a user token; the dashboard
// and admin routes require auth middleware mounted by the caller.
func Router(svc *Service, log *slog.Logger) chi.Router {
	r := chi.NewRouter()
	r.Post("/validate", handleValidate(svc, log))
	r.Post("/heartbeat", handleHeartbeat(svc, log))
	return r
}

// UserRouter mounts the authenticated dashboard routes.
func UserRouter(svc *Service, log *slog.Logger) chi.Router {
	r := chi.NewRouter()
	r.Get("/", handleListLicenses(svc, log))
	return r
}

// AdminRouter mounts the admin license operations.
func AdminRouter(svc *Service, log *slog.Logger) chi.Router {
	r := chi.NewRouter()
	r.Post("/{id}/revoke", handleRevoke(svc, log))
	r.Post("/{id}/sync", handleResync(svc, log))
	return r
}

type validateRequest struct {
	LicenseKey    string       `json:"license_key"`
	HardwareInfo  HardwareInfo `json:"hardware_info"`
	EAProductCode string       `json:"ea_product_code"`
	EAInstanceID  string       `json:"ea_instance_id"`
	MT5Account    string       `json:"mt5_account"`
}

type validateResponse struct {
	Valid            bool      `json:"valid"`
	SessionToken     string    `json:"session_token,omitempty"`
	SessionExpiresAt time.Time `json:"session_expires_at,omitempty"`
	LicenseExpiresAt time.Time `json:"license_expires_at,omitempty"`
	MaxSessions      int       `json:"max_sessions,omitempty"`
	Error            string    `json:"error,omitempty"`
}

func handleValidate(svc *Service, log *slog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req validateRequest
		if err := httpx.Decode(r, &req); err != nil {
			httpx.RespondError(w, r, log, err)
			return
		}
		if req.LicenseKey == "" || req.EAProductCode == "" || req.EAInstanceID == "" {
			httpx.JSON(w, http.StatusBadRequest, validateResponse{Valid: false, Error: "Missing required parameters"})
			return
		}

		result, err := svc.Validate(r.Context(), ValidateParams{
			Key:           req.LicenseKey,
			Hardware:      req.HardwareInfo,
			EAProductCode: req.EAProductCode,
			EAInstanceID:  req.EAInstanceID,
			MT5Account:    req.MT5Account,
			IPAddress:     r.RemoteAddr,
			UserAgent:     r.UserAgent(),
		})
		if err != nil {
			status, msg := validateFailure(err)
			httpx.JSON(w, status, validateResponse{Valid: false, Error: msg})
			if status == http.StatusInternalServerError {
				log.ErrorContext(r.Context(), "license validation failed", "error", err)
			}
			return
		}

		httpx.OK(w, validateResponse{
			Valid:            true,
			SessionToken:     result.SessionToken,
			SessionExpiresAt: result.SessionExpiresAt,
			LicenseExpiresAt: result.LicenseExpiresAt,
			MaxSessions:      result.MaxSessions,
		})
	}
}

func validateFailure(err error) (int, string) {
	switch {
	case errors.Is(err, ErrNotFound):
		return http.StatusForbidden, "Invalid license key"
	case errors.Is(err, ErrLicenseExpired):
		return http.StatusForbidden, "License has expired"
	case errors.Is(err, ErrLicenseNotActive):
		return http.StatusForbidden, err.Error()
	case errors.Is(err, ErrHardwareMismatch):
		return http.StatusForbidden, "Hardware mismatch - license bound to different machine"
	case errors.Is(err, ErrNotAuthorized):
		return http.StatusForbidden, "EA not authorized for this license"
	case errors.Is(err, ErrTooManySessions):
		return http.StatusForbidden, err.Error()
	case errors.Is(err, ErrRateLimited):
		return http.StatusTooManyRequests, "Rate limit exceeded"
	}
	return http.StatusInternalServerError, "Internal server error"
}

type heartbeatRequest struct {
	SessionToken string `json:"session_token"`
	EAInstanceID string `json:"ea_instance_id"`
}

type heartbeatResponse struct {
	Success       bool      `json:"success"`
	ExpiresAt     time.Time `json:"expires_at,omitempty"`
	LicenseStatus Status    `json:"license_status,omitempty"`
	Error         string    `json:"error,omitempty"`
	Action        string    `json:"action,omitempty"`
}

func handleHeartbeat(svc *Service, log *slog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req heartbeatRequest
		if err := httpx.Decode(r, &req); err != nil {
			httpx.RespondError(w, r, log, err)
			return
		}
		if req.SessionToken == "" || req.EAInstanceID == "" {
			httpx.JSON(w, http.StatusBadRequest, heartbeatResponse{
				Success: false, Error: "Missing session token or EA instance ID"})
			return
		}

		result, err := svc.Heartbeat(r.Context(), HeartbeatParams{
			SessionToken: req.SessionToken,
			EAInstanceID: req.EAInstanceID,
		})
		if err != nil {
			switch {
			case errors.Is(err, ErrSessionNotFound):
				httpx.JSON(w, http.StatusForbidden, heartbeatResponse{Success: false, Error: "Invalid session token"})
			case errors.Is(err, ErrLicenseExpired):
				httpx.JSON(w, http.StatusForbidden, heartbeatResponse{
					Success: false, Error: "License has expired", Action: "terminate"})
			case errors.Is(err, ErrLicenseNotActive):
				httpx.JSON(w, http.StatusForbidden, heartbeatResponse{
					Success: false, Error: err.Error(), Action: "terminate"})
			default:
				log.ErrorContext(r.Context(), "heartbeat failed", "error", err)
				httpx.JSON(w, http.StatusInternalServerError, heartbeatResponse{
					Success: false, Error: "Internal server error"})
			}
			return
		}

		httpx.OK(w, heartbeatResponse{
			Success:       true,
			ExpiresAt:     result.SessionExpiresAt,
			LicenseStatus: result.LicenseStatus,
		})
	}
}

func handleListLicenses(svc *Service, log *slog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, ok := auth.UserIDFromContext(r.Context())
		if !ok {
			httpx.RespondError(w, r, log, httpx.ErrAuthenticationRequired)
			return
		}

		licenses, err := svc.ListByUser(r.Context(), userID)
		if err != nil {
			httpx.RespondError(w, r, log, err)
			return
		}
		httpx.OK(w, map[string]any{"licenses": licenses})
	}
}

func handleRevoke(svc *Service, log *slog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := uuid.Parse(chi.URLParam(r, "id"))
		if err != nil {
			httpx.RespondError(w, r, log, httpx.BadRequest("Invalid license id"))
			return
		}
		if err := svc.Revoke(r.Context(), id); err != nil {
			if errors.Is(err, ErrNotFound) {
				httpx.RespondError(w, r, log, httpx.ErrNotFound)
				return
			}
			httpx.RespondError(w, r, log, err)
			return
		}
		httpx.OK(w, map[string]any{"success": true})
	}
}

func handleResync(svc *Service, log *slog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := uuid.Parse(chi.URLParam(r, "id"))
		if err != nil {
			httpx.RespondError(w, r, log, httpx.BadRequest("Invalid license id"))
			return
		}
		if err := svc.Resync(r.Context(), id); err != nil {
			if errors.Is(err, ErrNotFound) {
				httpx.RespondError(w, r, log, httpx.ErrNotFound)
				return
			}
			httpx.RespondError(w, r, log, err)
			return
		}
		httpx.OK(w, map[string]any{"success": true})
	}
}
