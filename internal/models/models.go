package models

import "strings"

// NoClaimsFound is the sentinel claim text the extractor returns when the input
// holds nothing checkable.
const NoClaimsFound = "No claims found"

// Claim is the single checkable sentence extracted from user text.
type Claim struct {
	IsClaim bool   `json:"isClaim"`
	Claim   string `json:"claim" validate:"required_if=IsClaim true"`
}

// HasClaim reports whether the claim should go on to verification.
func (c Claim) HasClaim() bool {
	if !c.IsClaim {
		return false
	}
	text := strings.TrimSpace(c.Claim)
	return text != "" && !strings.EqualFold(text, NoClaimsFound)
}

// ScoreAndComments is the verdict on a claim: 0 means completely false, 10 completely true.
type ScoreAndComments struct {
	Score    int    `json:"score" validate:"min=0,max=10"`
	Comments string `json:"comments" validate:"required"`
}

// Parsed is the outcome of decoding raw model output into T. Exactly one of
// Value (when Err is nil) or Err is meaningful; Raw always holds the model text.
type Parsed[T any] struct {
	Value T
	Raw   string
	Err   error
}

// Valid reports whether decoding succeeded.
func (p Parsed[T]) Valid() bool {
	return p.Err == nil
}

// StepKind is the type of an agent step.
type StepKind string

const (
	StepToolCall    StepKind = "tool_call"
	StepFinalAnswer StepKind = "final_answer"
)

// AgentStep records one turn of the verification agent.
type AgentStep struct {
	Index       int      `json:"index"`
	Kind        StepKind `json:"kind"`
	Tool        string   `json:"tool,omitempty"`
	Input       string   `json:"input,omitempty"`
	Observation string   `json:"observation,omitempty"`
	ToolError   bool     `json:"tool_error,omitempty"`
	Answer      string   `json:"answer,omitempty"`
}

// Verification is the full result of verifying one claim.
type Verification struct {
	Verdict ScoreAndComments `json:"verdict"`
	Answer  string           `json:"answer"`
	Steps   []AgentStep      `json:"steps"`
}

// FactCheckResult is what the pipeline returns for one request.
type FactCheckResult struct {
	Claim        Claim        `json:"claim"`
	Verification Verification `json:"verification"`
}

// FactCheckRequest is the body of POST /fact/check/. Text is a pointer so a
// missing field can be told apart from an empty one.
type FactCheckRequest struct {
	Text *string `json:"text"`
}

// FactCheckResponse is the body of a successful POST /fact/check/.
type FactCheckResponse struct {
	Res ScoreAndComments `json:"res"`
}

// MessageResponse carries informational messages (GET usage, no claim found).
type MessageResponse struct {
	Message string `json:"message"`
}

// ErrorResponse carries a failed request's error and, for upstream failures, a code.
type ErrorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code,omitempty"`
}
