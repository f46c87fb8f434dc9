package services

import (
	"context"
	"fmt"
	"time"

	"github.com/snappy-loop/factcheck/internal/agents"
	"github.com/snappy-loop/factcheck/internal/config"
	"github.com/snappy-loop/factcheck/internal/llm"
	"github.com/snappy-loop/factcheck/internal/tools"
	"github.com/snappy-loop/factcheck/internal/upstream"
)

// RetryPolicy returns the provider call policy configured in cfg.
func RetryPolicy(cfg *config.Config) upstream.Policy {
	return upstream.Policy{
		Attempts:    uint(cfg.RetryAttempts),
		BaseDelay:   cfg.RetryBaseDelay,
		MaxDelay:    cfg.RetryMaxDelay,
		CallTimeout: cfg.ProviderCallTimeout,
	}
}

// Build wires the Gemini client, the agent tools and the pipeline from cfg.
// The returned client must be closed by the caller.
func Build(ctx context.Context, cfg *config.Config) (*FactCheckService, *llm.Client, error) {
	if cfg.GeminiAPIKey == "" {
		return nil, nil, fmt.Errorf("GEMINI_API_KEY is required")
	}
	policy := RetryPolicy(cfg)
	client := llm.NewClient(ctx, llm.Options{
		APIKey:             cfg.GeminiAPIKey,
		APIEndpoint:        cfg.GeminiAPIEndpoint,
		Model:              cfg.GeminiModelFlash,
		ExtractTemperature: llm.Float(cfg.ExtractTemperature),
		AgentTemperature:   llm.Float(cfg.AgentTemperature),
		ParseTemperature:   llm.Float(cfg.ParseTemperature),
		MaxOutputTokens:    cfg.MaxOutputTokens,
		Retry:              policy,
	})
	if client.ChatModel() == nil {
		client.Close()
		return nil, nil, fmt.Errorf("gemini chat model could not be initialized")
	}

	search, err := tools.NewWebSearch(tools.SearchConfig{
		Provider:     cfg.SearchProvider,
		TavilyAPIKey: cfg.TavilyAPIKey,
		MaxResults:   cfg.SearchMaxResults,
		RatePerSec:   cfg.SearchRatePerSec,
		Burst:        cfg.SearchBurst,
		Retry:        policy,
	}, client)
	if err != nil {
		client.Close()
		return nil, nil, err
	}
	loc, err := time.LoadLocation(cfg.Timezone)
	if err != nil {
		loc = time.UTC
	}
	bindings, err := tools.Toolset(search, tools.NewDateTool(loc))
	if err != nil {
		client.Close()
		return nil, nil, err
	}

	verifier := agents.NewVerifier(client, bindings, cfg.AgentMaxSteps, cfg.AgentStepTimeout)
	return NewFactCheckService(client, verifier, cfg), client, nil
}
