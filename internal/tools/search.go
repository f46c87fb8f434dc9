package tools

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/snappy-loop/factcheck/internal/upstream"
	lctools "github.com/tmc/langchaingo/tools"
	"github.com/tmc/langchaingo/tools/duckduckgo"
	"golang.org/x/time/rate"
)

// Search providers selectable with SEARCH_PROVIDER.
const (
	ProviderTavily     = "tavily"
	ProviderDuckDuckGo = "duckduckgo"
	ProviderGoogle     = "google"
)

const webSearchDescription = "Search the internet for current information about a claim. Input is a search query. Returns the most relevant results as text."

// GroundedSearcher answers a query with a search-grounded model.
type GroundedSearcher interface {
	GroundedSearch(ctx context.Context, query string) (string, error)
}

// GroundedSearch adapts a GroundedSearcher to the tool interface.
type GroundedSearch struct {
	Searcher GroundedSearcher
}

func (g *GroundedSearch) Name() string        { return "google_search" }
func (g *GroundedSearch) Description() string { return webSearchDescription }

func (g *GroundedSearch) Call(ctx context.Context, input string) (string, error) {
	return g.Searcher.GroundedSearch(ctx, input)
}

// SearchConfig selects and tunes the web search backend.
type SearchConfig struct {
	Provider     string
	TavilyAPIKey string
	MaxResults   int
	UserAgent    string
	RatePerSec   float64
	Burst        int
	Retry        upstream.Policy
}

// NewWebSearch builds the web search tool for cfg.Provider, wrapped in a rate
// limit and the retry policy. grounded is only used for ProviderGoogle.
func NewWebSearch(cfg SearchConfig, grounded GroundedSearcher) (lctools.Tool, error) {
	if cfg.MaxResults <= 0 {
		cfg.MaxResults = 5
	}
	var tool lctools.Tool
	switch strings.ToLower(cfg.Provider) {
	case ProviderTavily, "":
		if cfg.TavilyAPIKey == "" {
			return nil, fmt.Errorf("search provider %q requires TAVILY_API_KEY", ProviderTavily)
		}
		tool = &TavilySearch{Client: NewTavilyClient(cfg.TavilyAPIKey, cfg.MaxResults, 0)}
	case ProviderDuckDuckGo:
		userAgent := cfg.UserAgent
		if userAgent == "" {
			userAgent = duckduckgo.DefaultUserAgent
		}
		ddg, err := duckduckgo.New(cfg.MaxResults, userAgent)
		if err != nil {
			return nil, fmt.Errorf("duckduckgo: %w", err)
		}
		tool = ddg
	case ProviderGoogle:
		if grounded == nil {
			return nil, fmt.Errorf("search provider %q requires a Gemini API key", ProviderGoogle)
		}
		tool = &GroundedSearch{Searcher: grounded}
	default:
		return nil, fmt.Errorf("unknown search provider %q", cfg.Provider)
	}

	var limiter *rate.Limiter
	if cfg.RatePerSec > 0 {
		burst := cfg.Burst
		if burst <= 0 {
			burst = 1
		}
		limiter = rate.NewLimiter(rate.Limit(cfg.RatePerSec), burst)
	}
	log.Info().Str("provider", tool.Name()).Float64("rate_per_sec", cfg.RatePerSec).Int("max_results", cfg.MaxResults).Msg("Web search tool configured")
	return Guard(tool, webSearchDescription, limiter, cfg.Retry), nil
}

// Guarded wraps a tool with a rate limiter and the provider retry policy.
type Guarded struct {
	inner       lctools.Tool
	description string
	limiter     *rate.Limiter
	policy      upstream.Policy
}

// Guard wraps tool. A nil limiter disables rate limiting; an empty description
// keeps the inner tool's.
func Guard(tool lctools.Tool, description string, limiter *rate.Limiter, policy upstream.Policy) *Guarded {
	return &Guarded{inner: tool, description: description, limiter: limiter, policy: policy}
}

func (g *Guarded) Name() string { return g.inner.Name() }

func (g *Guarded) Description() string {
	if g.description != "" {
		return g.description
	}
	return g.inner.Description()
}

// Call waits for the limiter, then calls the inner tool under the retry policy.
func (g *Guarded) Call(ctx context.Context, input string) (string, error) {
	if g.limiter != nil {
		if err := g.limiter.Wait(ctx); err != nil {
			return "", upstream.Classify(g.inner.Name(), err)
		}
	}
	start := time.Now()
	var out string
	err := upstream.Do(ctx, g.policy, g.inner.Name(), func(ctx context.Context) error {
		res, err := g.inner.Call(ctx, input)
		if err != nil {
			return err
		}
		out = res
		return nil
	})
	log.Debug().Str("tool", g.inner.Name()).Str("input", input).Dur("took", time.Since(start)).Err(err).Msg("Tool call")
	if err != nil {
		return "", err
	}
	return out, nil
}
