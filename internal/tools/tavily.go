package tools

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/snappy-loop/factcheck/internal/upstream"
)

// DefaultTavilyURL is the Tavily search endpoint.
const DefaultTavilyURL = "https://api.tavily.com/search"

const maxErrorBodyBytes = 512

// TavilyClient handles communication with the Tavily search API.
type TavilyClient struct {
	BaseURL    string
	APIKey     string
	MaxResults int
	HTTPClient *http.Client
}

// NewTavilyClient creates a new Tavily client.
func NewTavilyClient(apiKey string, maxResults int, timeout time.Duration) *TavilyClient {
	return &TavilyClient{
		BaseURL:    DefaultTavilyURL,
		APIKey:     apiKey,
		MaxResults: maxResults,
		HTTPClient: &http.Client{Timeout: timeout},
	}
}

// TavilyResult is one search hit.
type TavilyResult struct {
	Title   string  `json:"title,omitempty"`
	URL     string  `json:"url"`
	Content string  `json:"content"`
	Score   float64 `json:"score,omitempty"`
}

type tavilyRequest struct {
	Query       string `json:"query"`
	MaxResults  int    `json:"max_results,omitempty"`
	SearchDepth string `json:"search_depth"`
}

type tavilyResponse struct {
	Query   string         `json:"query"`
	Results []TavilyResult `json:"results"`
}

// Search runs query against Tavily. Non-2xx responses are returned as *upstream.StatusError.
func (c *TavilyClient) Search(ctx context.Context, query string) ([]TavilyResult, error) {
	body, err := json.Marshal(tavilyRequest{Query: query, MaxResults: c.MaxResults, SearchDepth: "basic"})
	if err != nil {
		return nil, fmt.Errorf("failed to encode request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.BaseURL, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.APIKey)

	client := c.HTTPClient
	if client == nil {
		client = http.DefaultClient
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("tavily request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBodyBytes))
		return nil, &upstream.StatusError{Provider: "tavily", StatusCode: resp.StatusCode, Body: strings.TrimSpace(string(msg))}
	}

	var out tavilyResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, upstream.Unparseable("tavily", err)
	}
	if c.MaxResults > 0 && len(out.Results) > c.MaxResults {
		out.Results = out.Results[:c.MaxResults]
	}
	return out.Results, nil
}

// TavilySearch exposes TavilyClient as an agent tool.
type TavilySearch struct {
	Client *TavilyClient
}

func (t *TavilySearch) Name() string { return "tavily_search_results" }

func (t *TavilySearch) Description() string {
	return "A search engine optimized for comprehensive, accurate and trusted results. Useful for answering questions about current events. Input should be a search query."
}

// Call returns the hits as a JSON list of {url, content} objects.
func (t *TavilySearch) Call(ctx context.Context, input string) (string, error) {
	results, err := t.Client.Search(ctx, input)
	if err != nil {
		return "", err
	}
	if len(results) == 0 {
		return "No search results found.", nil
	}
	type hit struct {
		URL     string `json:"url"`
		Content string `json:"content"`
	}
	hits := make([]hit, 0, len(results))
	for _, r := range results {
		hits = append(hits, hit{URL: r.URL, Content: r.Content})
	}
	b, err := json.Marshal(hits)
	if err != nil {
		return "", err
	}
	return string(b), nil
}
