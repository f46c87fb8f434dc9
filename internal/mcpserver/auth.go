package mcpserver

import (
	"net/http"

	"github.com/snappy-loop/factcheck/internal/auth"
)

// AuthMiddleware returns an http middleware that validates Authorization: Bearer <key>
// using auth.Service. On failure it responds with 401 JSON and does not call next.
// When the service has no key configured every request passes.
func AuthMiddleware(authService *auth.Service) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !authService.Enabled() {
				next.ServeHTTP(w, r)
				return
			}
			apiKey, err := auth.KeyFromRequest(r)
			if err != nil {
				writeJSONError(w, http.StatusUnauthorized, err.Error())
				return
			}
			if err := authService.ValidateAPIKey(apiKey); err != nil {
				writeJSONError(w, http.StatusUnauthorized, err.Error())
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
