package llm

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/google/generative-ai-go/genai"
	"github.com/rs/zerolog/log"
	"github.com/snappy-loop/factcheck/internal/models"
	"github.com/snappy-loop/factcheck/internal/upstream"
	"github.com/tmc/langchaingo/llms"
)

const providerGemini = "gemini"

var validate = validator.New(validator.WithRequiredStructEnabled())

// Prompt is the first stage of a structured call: instructions, the user message and
// the schema the reply has to follow.
type Prompt struct {
	Caller      string
	System      string
	Human       string
	Temperature float64
	Schema      *genai.Schema
}

// GenerateRaw runs a prompt and returns the model's raw text (the second stage).
// Transient provider failures are retried per the client's policy.
func (c *Client) GenerateRaw(ctx context.Context, p Prompt) (string, error) {
	var raw string
	err := upstream.Do(ctx, c.opts.Retry, providerGemini, func(ctx context.Context) error {
		out, err := c.generateStructured(ctx, p)
		if err != nil {
			return err
		}
		raw = out
		return nil
	})
	if err != nil {
		return "", err
	}
	log.Debug().Str("caller", p.Caller).Int("response_len", len(raw)).Msg("Structured LLM response")
	logGeminiResponse(p.Caller, raw)
	return raw, nil
}

// generateStructured uses genai with a ResponseSchema when available; otherwise
// langchaingo with system + user messages and the JSON MIME type.
func (c *Client) generateStructured(ctx context.Context, p Prompt) (string, error) {
	if c.genaiClient != nil && p.Schema != nil {
		model := c.genaiClient.GenerativeModel(c.opts.Model)
		model.SetTemperature(float32(p.Temperature))
		model.SetMaxOutputTokens(int32(c.opts.MaxOutputTokens))
		model.ResponseMIMEType = "application/json"
		model.ResponseSchema = p.Schema
		model.SystemInstruction = genai.NewUserContent(genai.Text(p.System))

		resp, err := model.GenerateContent(ctx, genai.Text(p.Human))
		if err != nil {
			return "", err
		}
		return extractTextFromGenaiResponse(resp), nil
	}
	if c.chat == nil {
		return "", fmt.Errorf("%w: no structured-output model configured", upstream.ErrUnavailable)
	}

	messages := []llms.MessageContent{
		{Role: llms.ChatMessageTypeSystem, Parts: []llms.ContentPart{llms.TextContent{Text: p.System}}},
		{Role: llms.ChatMessageTypeHuman, Parts: []llms.ContentPart{llms.TextContent{Text: p.Human}}},
	}
	resp, err := c.chat.GenerateContent(ctx, messages,
		llms.WithTemperature(p.Temperature),
		llms.WithMaxTokens(c.opts.MaxOutputTokens),
		llms.WithResponseMIMEType("application/json"),
	)
	if err != nil {
		return "", err
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("%w: empty response from model", upstream.ErrUnavailable)
	}
	return resp.Choices[0].Content, nil
}

// extractTextFromGenaiResponse returns the concatenated text from the first candidate's parts.
func extractTextFromGenaiResponse(resp *genai.GenerateContentResponse) string {
	if resp == nil || len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return ""
	}
	var b strings.Builder
	for _, part := range resp.Candidates[0].Content.Parts {
		if text, ok := part.(genai.Text); ok {
			b.WriteString(string(text))
		}
	}
	return b.String()
}

// stripCodeFence removes a surrounding ```json fence that models sometimes add
// despite the JSON MIME type.
func stripCodeFence(raw string) string {
	s := strings.TrimSpace(raw)
	s = strings.TrimPrefix(s, "```json")
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimSuffix(s, "```")
	return strings.TrimSpace(s)
}

// decodeStrict is the third stage: raw text to a validated record. Required keys
// must be present in the JSON object and the record must pass its validate tags;
// nothing is coerced or clamped.
func decodeStrict[T any](stage, raw string, requiredKeys ...string) models.Parsed[T] {
	out := models.Parsed[T]{Raw: raw}
	body := stripCodeFence(raw)
	if body == "" {
		out.Err = upstream.Unparseable(stage, errors.New("empty response"))
		return out
	}

	var fields map[string]json.RawMessage
	if err := json.Unmarshal([]byte(body), &fields); err != nil {
		out.Err = upstream.Unparseable(stage, fmt.Errorf("parse JSON: %w", err))
		return out
	}
	for _, key := range requiredKeys {
		v, ok := fields[key]
		if !ok || string(v) == "null" {
			out.Err = upstream.Unparseable(stage, fmt.Errorf("missing field %q", key))
			return out
		}
	}

	var value T
	if err := json.Unmarshal([]byte(body), &value); err != nil {
		out.Err = upstream.Unparseable(stage, fmt.Errorf("decode: %w", err))
		return out
	}
	if err := validate.Struct(value); err != nil {
		out.Err = upstream.Unparseable(stage, fmt.Errorf("validate: %w", err))
		return out
	}
	out.Value = value
	return out
}

// DecodeClaim parses extractor output into a Claim.
func DecodeClaim(raw string) models.Parsed[models.Claim] {
	return decodeStrict[models.Claim]("claim", raw, "isClaim")
}

// DecodeScore parses verdict output into a ScoreAndComments. Scores outside
// [0,10] are a parse error.
func DecodeScore(raw string) models.Parsed[models.ScoreAndComments] {
	return decodeStrict[models.ScoreAndComments]("score", raw, "score", "comments")
}

// claimResponseSchema returns the genai.Schema for {"isClaim": bool, "claim": string}.
func claimResponseSchema() *genai.Schema {
	return &genai.Schema{
		Type: genai.TypeObject,
		Properties: map[string]*genai.Schema{
			"isClaim": {
				Type:        genai.TypeBoolean,
				Description: "Whether the text contains a claim or not.",
			},
			"claim": {
				Type:        genai.TypeString,
				Description: "The claim to be fact-checked. The claim should be a single sentence.",
			},
		},
		Required: []string{"isClaim", "claim"},
	}
}

// scoreResponseSchema returns the genai.Schema for {"score": int, "comments": string}.
func scoreResponseSchema() *genai.Schema {
	return &genai.Schema{
		Type: genai.TypeObject,
		Properties: map[string]*genai.Schema{
			"score": {
				Type:        genai.TypeInteger,
				Description: "How confident you are that the claim is true, 0 means completely false and 10 means completely true (integer between 0 and 10).",
			},
			"comments": {
				Type:        genai.TypeString,
				Description: "Comments about the claim: a short description followed by what you think about it.",
			},
		},
		Required: []string{"score", "comments"},
	}
}
