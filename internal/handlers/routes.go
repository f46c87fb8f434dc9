package handlers

import (
	"net/http"

	"github.com/gorilla/mux"
)

// NewRouter registers every HTTP route. authMiddleware guards the fact-check
// endpoints and may be nil.
func NewRouter(h *Handler, authMiddleware mux.MiddlewareFunc) *mux.Router {
	r := mux.NewRouter()
	r.Use(RequestLogger)
	r.HandleFunc("/", h.Index).Methods(http.MethodGet)
	r.HandleFunc("/healthz", h.Healthz).Methods(http.MethodGet)

	api := r.NewRoute().Subrouter()
	if authMiddleware != nil {
		api.Use(authMiddleware)
	}
	for _, path := range []string{"/fact/check/", "/fact/check"} {
		api.HandleFunc(path, h.FactCheck).Methods(http.MethodPost)
		api.HandleFunc(path, h.FactCheckUsage).Methods(http.MethodGet)
	}
	api.HandleFunc("/fact/check/ws", h.FactCheckWS).Methods(http.MethodGet)
	return r
}
