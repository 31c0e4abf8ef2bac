package server

import (
	"crypto/subtle"
	"encoding/json"
	"log/slog"
	"net/http"
	"path"
	"strings"

	"github.com/danielgtaylor/huma/v2"
)

// AuthConfig is the shared-secret gate for webhook callers. An empty
// secret disables authentication, matching a workspace that has not
// configured one yet.
type AuthConfig struct {
	SharedSecret string
}

// newAuthMiddleware enforces the X-Webhook-Secret header on every API
// route except health.
func newAuthMiddleware(basePath string, cfg AuthConfig, logger *slog.Logger) func(http.Handler) http.Handler {
	healthPath := path.Join(basePath, "health")
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
			if basePath != "" && !strings.HasPrefix(req.URL.Path, basePath) {
				next.ServeHTTP(w, req)
				return
			}
			if req.URL.Path == healthPath {
				next.ServeHTTP(w, req)
				return
			}
			if cfg.SharedSecret == "" {
				next.ServeHTTP(w, req)
				return
			}

			given := strings.TrimSpace(req.Header.Get("X-Webhook-Secret"))
			if subtle.ConstantTimeCompare([]byte(given), []byte(cfg.SharedSecret)) != 1 {
				logger.Warn("webhook_auth_rejected", "path", req.URL.Path)
				respondStatusError(w, newAPIError(http.StatusUnauthorized, "invalid_webhook_secret", "invalid webhook shared secret", nil))
				return
			}
			next.ServeHTTP(w, req)
		})
	}
}

func respondStatusError(w http.ResponseWriter, err huma.StatusError) {
	status := http.StatusInternalServerError
	if e, ok := err.(interface{ GetStatus() int }); ok {
		status = e.GetStatus()
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(err)
}
