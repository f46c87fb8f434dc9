package llm

import (
	"context"
	"net/http"
	"net/url"
	"path"
	"strings"

	"github.com/google/generative-ai-go/genai"
	"github.com/rs/zerolog/log"
	"github.com/snappy-loop/factcheck/internal/upstream"
	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/googleai"
	"google.golang.org/api/option"
	unifiedgenai "google.golang.org/genai"
)

// maxGeminiResponseLogBytes is the max length of a Gemini response body to log in full (to avoid huge logs).
const maxGeminiResponseLogBytes = 8192

// Default sampling temperatures of the three model calls in a fact-check.
const (
	DefaultExtractTemperature = 0.7
	DefaultAgentTemperature   = 0.3
	DefaultParseTemperature   = 0.8
)

const defaultModel = "gemini-2.0-flash"

// httpClientForEndpoint returns an http.Client that rewrites request URLs to the given base endpoint (e.g. http://host.docker.internal:31300/gemini).
func httpClientForEndpoint(baseEndpoint string) *http.Client {
	base, err := url.Parse(baseEndpoint)
	if err != nil {
		log.Warn().Err(err).Str("endpoint", baseEndpoint).Msg("Invalid GEMINI_API_ENDPOINT, using default")
		return nil
	}
	base.Path = strings.TrimSuffix(base.Path, "/")
	return &http.Client{
		Transport: &endpointRoundTripper{base: base, next: http.DefaultTransport},
	}
}

// endpointRoundTripper rewrites request URLs to a custom base (scheme, host, path prefix).
type endpointRoundTripper struct {
	base *url.URL
	next http.RoundTripper
}

func (e *endpointRoundTripper) RoundTrip(req *http.Request) (*http.Response, error) {
	req2 := req.Clone(req.Context())
	req2.URL.Scheme = e.base.Scheme
	req2.URL.Host = e.base.Host
	req2.URL.Path = path.Join(e.base.Path, strings.TrimPrefix(req.URL.Path, "/"))
	if req.URL.RawQuery != "" {
		req2.URL.RawQuery = req.URL.RawQuery
	}
	return e.next.RoundTrip(req2)
}

// logGeminiResponse logs Gemini response text, truncating if over maxGeminiResponseLogBytes.
func logGeminiResponse(caller, raw string) {
	if len(raw) <= maxGeminiResponseLogBytes {
		log.Debug().Str("caller", caller).Str("gemini_response", raw).Msg("Gemini response")
		return
	}
	log.Debug().
		Str("caller", caller).
		Str("gemini_response", raw[:maxGeminiResponseLogBytes]+"... [truncated]").
		Int("gemini_response_len", len(raw)).
		Msg("Gemini response")
}

// Options configures a Client.
type Options struct {
	APIKey      string
	APIEndpoint string // optional Gemini API base URL override
	Model       string

	// Sampling temperatures; nil selects the default, 0 is a valid setting.
	ExtractTemperature *float64
	AgentTemperature   *float64
	ParseTemperature   *float64
	MaxOutputTokens    int

	Retry upstream.Policy
}

// Float returns a pointer to v, for the temperature options.
func Float(v float64) *float64 {
	return &v
}

func (o *Options) applyDefaults() {
	if o.Model == "" {
		o.Model = defaultModel
	}
	if o.ExtractTemperature == nil {
		o.ExtractTemperature = Float(DefaultExtractTemperature)
	}
	if o.AgentTemperature == nil {
		o.AgentTemperature = Float(DefaultAgentTemperature)
	}
	if o.ParseTemperature == nil {
		o.ParseTemperature = Float(DefaultParseTemperature)
	}
	if o.MaxOutputTokens == 0 {
		o.MaxOutputTokens = 2000
	}
	if o.Retry.Attempts == 0 {
		o.Retry = upstream.DefaultPolicy()
	}
}

// Client holds every model handle the pipeline uses. It is built once at startup
// and shared by all requests; none of its fields change after construction.
type Client struct {
	opts          Options
	chat          llms.Model           // langchaingo chat + tool calling
	genaiClient   *genai.Client        // schema-constrained JSON output
	unifiedClient *unifiedgenai.Client // Google Search grounding
}

// NewClient creates a Gemini-backed client.
// apiEndpoint: optional Gemini API base URL (e.g. http://host.docker.internal:31300/gemini); when set, all Gemini calls use this endpoint.
func NewClient(ctx context.Context, opts Options) *Client {
	opts.applyDefaults()

	var langchaingoHTTPClient *http.Client
	if opts.APIEndpoint != "" {
		langchaingoHTTPClient = httpClientForEndpoint(opts.APIEndpoint)
	}

	chatOpts := []googleai.Option{
		googleai.WithAPIKey(opts.APIKey),
		googleai.WithDefaultModel(opts.Model),
		googleai.WithDefaultMaxTokens(opts.MaxOutputTokens),
	}
	if langchaingoHTTPClient != nil {
		chatOpts = append(chatOpts, googleai.WithHTTPClient(langchaingoHTTPClient))
	}
	var chat llms.Model
	chatModel, err := googleai.New(ctx, chatOpts...)
	if err != nil {
		log.Error().Err(err).Str("model", opts.Model).Msg("Failed to initialize chat model")
	} else {
		chat = chatModel
	}

	// genai client for schema-constrained JSON; requires API key
	var genaiClient *genai.Client
	if opts.APIKey != "" {
		genaiOpts := []option.ClientOption{option.WithAPIKey(opts.APIKey)}
		if opts.APIEndpoint != "" {
			genaiOpts = append(genaiOpts, option.WithEndpoint(opts.APIEndpoint))
		}
		genaiClient, err = genai.NewClient(ctx, genaiOpts...)
		if err != nil {
			log.Error().Err(err).Msg("Failed to initialize genai client for structured output")
		}
	}

	// Unified genai client for Google Search grounding
	var unifiedClient *unifiedgenai.Client
	if opts.APIKey != "" {
		unifiedCfg := &unifiedgenai.ClientConfig{APIKey: opts.APIKey, Backend: unifiedgenai.BackendGeminiAPI}
		if opts.APIEndpoint != "" {
			unifiedCfg.HTTPOptions = unifiedgenai.HTTPOptions{BaseURL: opts.APIEndpoint}
		}
		unifiedClient, err = unifiedgenai.NewClient(ctx, unifiedCfg)
		if err != nil {
			log.Error().Err(err).Msg("Failed to initialize unified genai client for search grounding")
		}
	}

	log.Info().
		Str("model", opts.Model).
		Float64("extract_temperature", *opts.ExtractTemperature).
		Float64("agent_temperature", *opts.AgentTemperature).
		Float64("parse_temperature", *opts.ParseTemperature).
		Str("api_endpoint", opts.APIEndpoint).
		Bool("chat_model", chat != nil).
		Bool("genai_client", genaiClient != nil).
		Bool("unified_grounding", unifiedClient != nil).
		Msg("LLM client initialized")

	return &Client{
		opts:          opts,
		chat:          chat,
		genaiClient:   genaiClient,
		unifiedClient: unifiedClient,
	}
}

// NewClientFromModel builds a client around an existing langchaingo model. Structured
// output then goes through the JSON-mode tier only and search grounding is unavailable.
func NewClientFromModel(model llms.Model, opts Options) *Client {
	opts.applyDefaults()
	return &Client{opts: opts, chat: model}
}

// ChatModel returns the tool-calling model used by the verification agent.
func (c *Client) ChatModel() llms.Model {
	return c.chat
}

// AgentTemperature returns the sampling temperature for agent turns.
func (c *Client) AgentTemperature() float64 {
	return *c.opts.AgentTemperature
}

// RetryPolicy returns the retry policy applied to provider calls.
func (c *Client) RetryPolicy() upstream.Policy {
	return c.opts.Retry
}

// Close releases the underlying SDK clients.
func (c *Client) Close() error {
	if c.genaiClient != nil {
		return c.genaiClient.Close()
	}
	return nil
}
