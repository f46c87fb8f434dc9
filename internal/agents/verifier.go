package agents

import (
	"context"
	"time"

	"github.com/rs/zerolog"
	"github.com/snappy-loop/factcheck/internal/llm"
	"github.com/snappy-loop/factcheck/internal/models"
	"github.com/snappy-loop/factcheck/internal/tools"
)

// Verifier runs the agent over a claim and scores its conclusion.
type Verifier struct {
	Executor *Executor
	Scorer   Scorer
}

// NewVerifier builds a Verifier on the client's chat model and scorer.
func NewVerifier(client *llm.Client, bindings []tools.Binding, maxSteps int, stepTimeout time.Duration) *Verifier {
	return &Verifier{
		Executor: &Executor{
			Model:       client.ChatModel(),
			Tools:       bindings,
			MaxSteps:    maxSteps,
			StepTimeout: stepTimeout,
			Temperature: client.AgentTemperature(),
			Retry:       client.RetryPolicy(),
		},
		Scorer: client,
	}
}

// VerifyClaim investigates claim and returns the verdict with the steps taken.
// When the agent fails, the returned Verification still carries its steps.
func (v *Verifier) VerifyClaim(ctx context.Context, claim string) (*models.Verification, error) {
	start := time.Now()
	answer, steps, err := v.Executor.Run(ctx, claim)
	result := &models.Verification{Answer: answer, Steps: steps}
	if err != nil {
		return result, err
	}

	verdict, err := v.Scorer.ScoreVerdict(ctx, claim, answer)
	if err != nil {
		return result, err
	}
	result.Verdict = *verdict
	zerolog.Ctx(ctx).Info().
		Int("score", verdict.Score).
		Int("steps", len(steps)).
		Dur("took", time.Since(start)).
		Msg("Claim verified")
	return result, nil
}
