package auth

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/rs/zerolog/log"
	"golang.org/x/crypto/bcrypt"
)

var (
	ErrMissingKey = errors.New("missing api key")
	ErrInvalidKey = errors.New("invalid api key")
)

// Service checks API keys against a single bcrypt hash (API_KEY_HASH).
// A Service with an empty hash lets every request through.
type Service struct {
	keyHash []byte
}

// NewService creates a new auth service
func NewService(keyHash string) *Service {
	return &Service{keyHash: []byte(strings.TrimSpace(keyHash))}
}

// Enabled reports whether an API key is required.
func (s *Service) Enabled() bool {
	return s != nil && len(s.keyHash) > 0
}

// ValidateAPIKey compares apiKey with the configured hash.
func (s *Service) ValidateAPIKey(apiKey string) error {
	if !s.Enabled() {
		return nil
	}
	if apiKey == "" {
		return ErrMissingKey
	}
	if err := bcrypt.CompareHashAndPassword(s.keyHash, []byte(apiKey)); err != nil {
		return ErrInvalidKey
	}
	return nil
}

// HashAPIKey returns the bcrypt hash to put in API_KEY_HASH for apiKey.
func HashAPIKey(apiKey string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(apiKey), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(hash), nil
}

// KeyFromRequest returns the bearer token, or the X-API-Key header when no
// Authorization header is present.
func KeyFromRequest(r *http.Request) (string, error) {
	authHeader := r.Header.Get("Authorization")
	if authHeader == "" {
		return strings.TrimSpace(r.Header.Get("X-API-Key")), nil
	}
	parts := strings.SplitN(authHeader, " ", 2)
	if len(parts) != 2 || strings.ToLower(parts[0]) != "bearer" {
		return "", errors.New("invalid authorization header format")
	}
	return strings.TrimSpace(parts[1]), nil
}

// Middleware creates an authentication middleware
func (s *Service) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !s.Enabled() {
			next.ServeHTTP(w, r)
			return
		}
		apiKey, err := KeyFromRequest(r)
		if err != nil {
			writeJSONError(w, http.StatusUnauthorized, err.Error())
			return
		}
		if err := s.ValidateAPIKey(apiKey); err != nil {
			log.Ctx(r.Context()).Debug().Err(err).Msg("API key rejected")
			writeJSONError(w, http.StatusUnauthorized, err.Error())
			return
		}
		next.ServeHTTP(w, r)
	})
}

func writeJSONError(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]string{"error": message})
}
