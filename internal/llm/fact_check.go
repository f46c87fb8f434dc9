package llm

import (
	"context"
	"errors"
	"strings"
	"unicode/utf8"

	"github.com/rs/zerolog/log"
	unifiedgenai "google.golang.org/genai"
)

// ErrGroundingNotConfigured is returned when grounded search is requested but the
// unified (Gemini) client is not configured.
var ErrGroundingNotConfigured = errors.New("grounded search unavailable: unified AI client not configured")

const maxGroundedResultLen = 4096

const groundedSearchPrompt = `You are a research assistant. Use web search to find current, trustworthy information about the query below.
Summarize the most relevant findings in a few sentences and mention the sources you relied on. Do not judge the query, just report what the sources say.`

// GroundedSearch answers a search query using Gemini with Google Search grounding.
// The result is a short plain-text summary meant to be fed back to the agent as an observation.
// It makes a single attempt; the search tool wrapping it owns retries and rate limits.
func (c *Client) GroundedSearch(ctx context.Context, query string) (string, error) {
	if strings.TrimSpace(query) == "" {
		return "", nil
	}
	if c.unifiedClient == nil {
		log.Warn().Msg("GroundedSearch: unified client not configured")
		return "", ErrGroundingNotConfigured
	}

	contents := unifiedgenai.Text(groundedSearchPrompt + "\n\nQuery:\n" + query)
	config := &unifiedgenai.GenerateContentConfig{
		Temperature: unifiedgenai.Ptr(float32(0)),
		Tools: []*unifiedgenai.Tool{
			{GoogleSearch: &unifiedgenai.GoogleSearch{}},
		},
	}

	log.Debug().Str("model", c.opts.Model).Str("query", query).Msg("Grounded search")
	result, err := c.unifiedClient.Models.GenerateContent(ctx, c.opts.Model, contents, config)
	if err != nil {
		return "", err
	}
	out := strings.TrimSpace(result.Text())
	if utf8.RuneCountInString(out) > maxGroundedResultLen {
		out = string([]rune(out)[:maxGroundedResultLen])
	}
	return out, nil
}
