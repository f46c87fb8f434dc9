package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/rs/zerolog/log"
	"github.com/snappy-loop/factcheck/internal/agents"
	"github.com/snappy-loop/factcheck/internal/config"
	"github.com/snappy-loop/factcheck/internal/models"
)

var (
	// ErrNoClaim means the text holds no checkable claim; the verifier is not run.
	ErrNoClaim = errors.New(models.NoClaimsFound)
	// ErrTextTooLong means the input exceeds MAX_INPUT_LENGTH characters.
	ErrTextTooLong = errors.New("text is too long")
)

// FactCheckService runs the extract-then-verify pipeline for one request at a time.
// It holds no per-request state and is safe for concurrent use.
type FactCheckService struct {
	extractor      agents.ClaimExtractor
	verifier       agents.ClaimVerifier
	requestTimeout time.Duration
	maxInputLength int
}

// NewFactCheckService creates a new FactCheckService
func NewFactCheckService(extractor agents.ClaimExtractor, verifier agents.ClaimVerifier, cfg *config.Config) *FactCheckService {
	return &FactCheckService{
		extractor:      extractor,
		verifier:       verifier,
		requestTimeout: cfg.RequestTimeout,
		maxInputLength: cfg.MaxInputLength,
	}
}

// Extract runs only the claim extractor. It returns ErrNoClaim when the text has no claim.
func (s *FactCheckService) Extract(ctx context.Context, text string) (*models.Claim, error) {
	ctx, cancel := s.withDeadline(ctx)
	defer cancel()
	return s.extract(ctx, text)
}

// Check extracts the claim from text and verifies it.
func (s *FactCheckService) Check(ctx context.Context, text string) (*models.FactCheckResult, error) {
	ctx, cancel := s.withDeadline(ctx)
	defer cancel()
	start := time.Now()

	claim, err := s.extract(ctx, text)
	if err != nil {
		return nil, err
	}
	agents.ObserverFrom(ctx).ClaimExtracted(*claim)

	verification, err := s.verifier.VerifyClaim(ctx, claim.Claim)
	if err != nil {
		log.Ctx(ctx).Warn().Err(err).Str("claim", claim.Claim).Msg("Claim verification failed")
		return nil, fmt.Errorf("verify claim: %w", err)
	}

	log.Ctx(ctx).Info().
		Str("claim", claim.Claim).
		Int("score", verification.Verdict.Score).
		Dur("took", time.Since(start)).
		Msg("Fact-check completed")
	return &models.FactCheckResult{Claim: *claim, Verification: *verification}, nil
}

func (s *FactCheckService) extract(ctx context.Context, text string) (*models.Claim, error) {
	if s.maxInputLength > 0 && utf8.RuneCountInString(text) > s.maxInputLength {
		return nil, fmt.Errorf("%w: maximum is %d characters", ErrTextTooLong, s.maxInputLength)
	}
	if strings.TrimSpace(text) == "" {
		return nil, ErrNoClaim
	}

	claim, err := s.extractor.ExtractClaim(ctx, text)
	if err != nil {
		log.Ctx(ctx).Warn().Err(err).Int("text_len", len(text)).Msg("Claim extraction failed")
		return nil, fmt.Errorf("extract claim: %w", err)
	}
	if !claim.HasClaim() {
		log.Ctx(ctx).Info().Int("text_len", len(text)).Msg("No claim found")
		return nil, ErrNoClaim
	}
	return claim, nil
}

func (s *FactCheckService) withDeadline(ctx context.Context) (context.Context, context.CancelFunc) {
	if s.requestTimeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, s.requestTimeout)
}
