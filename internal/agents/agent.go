package agents

import (
	"context"

	"github.com/snappy-loop/factcheck/internal/models"
)

// ClaimExtractor pulls the single checkable claim out of free text.
type ClaimExtractor interface {
	ExtractClaim(ctx context.Context, text string) (*models.Claim, error)
}

// ClaimVerifier investigates a claim and returns a scored verdict.
type ClaimVerifier interface {
	VerifyClaim(ctx context.Context, claim string) (*models.Verification, error)
}

// Scorer turns the agent's free-text conclusion into a ScoreAndComments.
type Scorer interface {
	ScoreVerdict(ctx context.Context, claim, answer string) (*models.ScoreAndComments, error)
}

// Observer receives progress of a fact-check as it happens.
type Observer interface {
	ClaimExtracted(claim models.Claim)
	StepCompleted(step models.AgentStep)
}

// ObserverFuncs adapts plain functions to Observer. Nil fields are skipped.
type ObserverFuncs struct {
	OnClaim func(models.Claim)
	OnStep  func(models.AgentStep)
}

func (o ObserverFuncs) ClaimExtracted(claim models.Claim) {
	if o.OnClaim != nil {
		o.OnClaim(claim)
	}
}

func (o ObserverFuncs) StepCompleted(step models.AgentStep) {
	if o.OnStep != nil {
		o.OnStep(step)
	}
}

type observerKey struct{}

// WithObserver attaches obs to ctx.
func WithObserver(ctx context.Context, obs Observer) context.Context {
	return context.WithValue(ctx, observerKey{}, obs)
}

// ObserverFrom returns the observer attached to ctx, or a no-op one.
func ObserverFrom(ctx context.Context) Observer {
	if obs, ok := ctx.Value(observerKey{}).(Observer); ok && obs != nil {
		return obs
	}
	return ObserverFuncs{}
}
