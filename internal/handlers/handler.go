package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/rs/zerolog/log"
	"github.com/snappy-loop/factcheck/internal/agents"
	"github.com/snappy-loop/factcheck/internal/models"
	"github.com/snappy-loop/factcheck/internal/services"
	"github.com/snappy-loop/factcheck/internal/upstream"
)

// Error codes returned with upstream failures.
const (
	CodeUpstreamUnavailable = "upstream_unavailable"
	CodeUpstreamUnparseable = "upstream_unparseable"
	CodeUpstreamTimeout     = "upstream_timeout"
	CodeStepsExhausted      = "agent_steps_exhausted"
)

const usageMessage = "Please use POST method to send the text for fact-checking."

// factCheckService is the subset of services.FactCheckService used by handlers.
type factCheckService interface {
	Check(ctx context.Context, text string) (*models.FactCheckResult, error)
}

// Handler contains all HTTP handlers
type Handler struct {
	factCheck    factCheckService
	maxBodyBytes int64
}

// NewHandler creates a new handler
func NewHandler(factCheck factCheckService, maxBodyBytes int64) *Handler {
	return &Handler{
		factCheck:    factCheck,
		maxBodyBytes: maxBodyBytes,
	}
}

// Healthz handles GET /healthz
func (h *Handler) Healthz(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// classifyError maps a pipeline error to the HTTP status and body the API returns.
func classifyError(err error) (int, any) {
	switch {
	case errors.Is(err, services.ErrNoClaim):
		return http.StatusNotFound, models.MessageResponse{Message: models.NoClaimsFound}
	case errors.Is(err, services.ErrTextTooLong):
		return http.StatusBadRequest, models.ErrorResponse{Error: err.Error()}
	case errors.Is(err, agents.ErrStepsExhausted):
		return http.StatusGatewayTimeout, models.ErrorResponse{Error: "fact-check did not reach a conclusion in time", Code: CodeStepsExhausted}
	case errors.Is(err, upstream.ErrTimeout), errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout, models.ErrorResponse{Error: "upstream provider timed out", Code: CodeUpstreamTimeout}
	case errors.Is(err, upstream.ErrUnparseable):
		return http.StatusBadGateway, models.ErrorResponse{Error: "upstream provider returned an unexpected response", Code: CodeUpstreamUnparseable}
	case errors.Is(err, upstream.ErrUnavailable):
		return http.StatusBadGateway, models.ErrorResponse{Error: "upstream provider unavailable", Code: CodeUpstreamUnavailable}
	default:
		return http.StatusInternalServerError, models.ErrorResponse{Error: "internal error"}
	}
}

func writeServiceError(w http.ResponseWriter, r *http.Request, err error) {
	status, body := classifyError(err)
	if status >= http.StatusInternalServerError {
		log.Ctx(r.Context()).Error().Err(err).Int("status", status).Msg("Fact-check failed")
	}
	writeJSON(w, status, body)
}

func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		log.Error().Err(err).Msg("Failed to encode JSON response")
	}
}

func writeJSONError(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]string{"error": message})
}
