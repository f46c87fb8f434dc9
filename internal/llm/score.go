package llm

import (
	"context"

	"github.com/rs/zerolog/log"
	"github.com/snappy-loop/factcheck/internal/models"
)

const scoreSystemPrompt = `You convert the conclusion of a fact-checking investigation into a verdict.
Return a score between 0 and 10 based on how true the claim is (0 means completely false, 10 means completely true) and a comment: a short description followed by what you think about it. Answer rationally and be factual.`

// ScorePrompt builds the prompt that turns the agent's final answer into a verdict.
func (c *Client) ScorePrompt(claim, answer string) Prompt {
	return Prompt{
		Caller:      "ScoreVerdict",
		System:      scoreSystemPrompt,
		Human:       "Claim: " + claim + "\n\nInvestigation result:\n" + answer,
		Temperature: *c.opts.ParseTemperature,
		Schema:      scoreResponseSchema(),
	}
}

// ScoreVerdict re-parses the agent's free-text answer into a ScoreAndComments.
// Scores outside [0,10] and missing fields are returned as ErrUnparseable.
func (c *Client) ScoreVerdict(ctx context.Context, claim, answer string) (*models.ScoreAndComments, error) {
	raw, err := c.GenerateRaw(ctx, c.ScorePrompt(claim, answer))
	if err != nil {
		return nil, err
	}
	parsed := DecodeScore(raw)
	if !parsed.Valid() {
		log.Warn().Err(parsed.Err).Int("raw_len", len(parsed.Raw)).Msg("Verdict returned unparseable output")
		return nil, parsed.Err
	}
	log.Debug().Int("score", parsed.Value.Score).Msg("Verdict scored")
	return &parsed.Value, nil
}
