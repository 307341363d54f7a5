package artifact

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/fxforge/platform/internal/auth"
	"github.com/fxforge/platform/internal/httpx"
)

// Router mounts the authenticated download endpoints.
func Router(svc *Service, log *slog.Logger) chi.Router {
	r := chi.NewRouter()
	r.Get("/{code}/download", handleDownload(svc, log))
	r.Get("/{code}/download/{version}", handleDownload(svc, log))
	return r
}

type downloadResponse struct {
	DownloadURL      string `json:"download_url"`
	Version          string `json:"version"`
	ExpiresInSeconds int    `json:"expires_in_seconds"`
}

func handleDownload(svc *Service, log *slog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, ok := auth.UserIDFromContext(r.Context())
		if !ok {
			httpx.RespondError(w, r, log, httpx.ErrAuthenticationRequired)
			return
		}

		grant, err := svc.ResolveDownload(r.Context(), userID,
			chi.URLParam(r, "code"), chi.URLParam(r, "version"))
		if err != nil {
			switch {
			case errors.Is(err, ErrNoActiveLicense):
				httpx.JSON(w, http.StatusForbidden, httpx.Error{Message: "No active license for this product"})
			case errors.Is(err, ErrArtifactNotFound):
				httpx.RespondError(w, r, log, httpx.ErrNotFound)
			default:
				httpx.RespondError(w, r, log, err)
			}
			return
		}

		httpx.OK(w, downloadResponse{
			DownloadURL:      grant.URL,
			Version:          grant.Version,
			ExpiresInSeconds: int(grant.ExpiresIn.Seconds()),
		})
	}
}
