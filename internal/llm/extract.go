package llm

import (
	"context"
	"strings"

	"github.com/rs/zerolog/log"
	"github.com/snappy-loop/factcheck/internal/models"
)

const extractSystemPrompt = `You are a part of the fact-checking assistant. You will be given a text and you need to check if it contains any claims. If it does, return the claim. If it doesn't, return 'No claims found'.`

// ExtractPrompt builds the prompt that asks the model for the single claim in text.
func (c *Client) ExtractPrompt(text string) Prompt {
	return Prompt{
		Caller:      "ExtractClaim",
		System:      extractSystemPrompt,
		Human:       "Check the following text for claims and list them out as a text can have multiple claims: " + text,
		Temperature: *c.opts.ExtractTemperature,
		Schema:      claimResponseSchema(),
	}
}

// ExtractClaim detects and extracts one factual claim from free text.
// A text without claims is not an error: the returned Claim has HasClaim() == false.
func (c *Client) ExtractClaim(ctx context.Context, text string) (*models.Claim, error) {
	raw, err := c.GenerateRaw(ctx, c.ExtractPrompt(text))
	if err != nil {
		return nil, err
	}
	parsed := DecodeClaim(raw)
	if !parsed.Valid() {
		log.Warn().Err(parsed.Err).Int("raw_len", len(parsed.Raw)).Msg("Claim extraction returned unparseable output")
		return nil, parsed.Err
	}
	claim := parsed.Value
	claim.Claim = strings.TrimSpace(claim.Claim)
	log.Debug().Bool("is_claim", claim.IsClaim).Str("claim", claim.Claim).Msg("Claim extracted")
	return &claim, nil
}
