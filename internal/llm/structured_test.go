package llm

import (
	"context"
	"errors"
	"net"
	"strings"
	"testing"
	"time"

	"github.com/snappy-loop/factcheck/internal/llm/llmtest"
	"github.com/snappy-loop/factcheck/internal/upstream"
)

func testOptions() Options {
	return Options{
		Retry: upstream.Policy{Attempts: 3, BaseDelay: time.Millisecond, MaxDelay: 2 * time.Millisecond},
	}
}

func TestDecodeClaim(t *testing.T) {
	tests := []struct {
		name      string
		raw       string
		wantErr   bool
		wantClaim bool
	}{
		{"claim", `{"isClaim": true, "claim": "The Eiffel Tower is in Paris."}`, false, true},
		{"fenced", "```json\n{\"isClaim\": true, \"claim\": \"Water boils at 100C.\"}\n```", false, true},
		{"no claim", `{"isClaim": false, "claim": "No claims found"}`, false, false},
		{"no claim sentinel with isClaim true", `{"isClaim": true, "claim": "no claims found"}`, false, false},
		{"no claim without claim field", `{"isClaim": false}`, false, false},
		{"missing isClaim", `{"claim": "The sky is blue."}`, true, false},
		{"null isClaim", `{"isClaim": null, "claim": "x"}`, true, false},
		{"empty claim", `{"isClaim": true, "claim": ""}`, true, false},
		{"wrong type", `{"isClaim": "yes", "claim": "x"}`, true, false},
		{"not json", `The claim is that the sky is blue.`, true, false},
		{"empty", "  ", true, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := DecodeClaim(tt.raw)
			if got.Raw != tt.raw {
				t.Errorf("Raw = %q, want %q", got.Raw, tt.raw)
			}
			if tt.wantErr {
				if got.Valid() {
					t.Fatalf("expected parse error, got %+v", got.Value)
				}
				if !errors.Is(got.Err, upstream.ErrUnparseable) {
					t.Errorf("expected ErrUnparseable, got %v", got.Err)
				}
				return
			}
			if !got.Valid() {
				t.Fatalf("unexpected error: %v", got.Err)
			}
			if got.Value.HasClaim() != tt.wantClaim {
				t.Errorf("HasClaim() = %v, want %v", got.Value.HasClaim(), tt.wantClaim)
			}
		})
	}
}

func TestDecodeScore(t *testing.T) {
	tests := []struct {
		name      string
		raw       string
		wantErr   bool
		wantScore int
	}{
		{"zero", `{"score": 0, "comments": "False."}`, false, 0},
		{"ten", `{"score": 10, "comments": "True."}`, false, 10},
		{"middle", `{"score": 6, "comments": "Mostly true."}`, false, 6},
		{"negative", `{"score": -1, "comments": "x"}`, true, 0},
		{"above range", `{"score": 11, "comments": "x"}`, true, 0},
		{"float", `{"score": 7.5, "comments": "x"}`, true, 0},
		{"string score", `{"score": "7", "comments": "x"}`, true, 0},
		{"missing score", `{"comments": "x"}`, true, 0},
		{"missing comments", `{"score": 5}`, true, 0},
		{"empty comments", `{"score": 5, "comments": ""}`, true, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := DecodeScore(tt.raw)
			if tt.wantErr {
				if got.Valid() {
					t.Fatalf("expected parse error, got %+v", got.Value)
				}
				if !errors.Is(got.Err, upstream.ErrUnparseable) {
					t.Errorf("expected ErrUnparseable, got %v", got.Err)
				}
				return
			}
			if !got.Valid() {
				t.Fatalf("unexpected error: %v", got.Err)
			}
			if got.Value.Score != tt.wantScore {
				t.Errorf("Score = %d, want %d", got.Value.Score, tt.wantScore)
			}
			if got.Value.Score < 0 || got.Value.Score > 10 {
				t.Errorf("score %d out of range", got.Value.Score)
			}
		})
	}
}

func TestExtractPrompt(t *testing.T) {
	c := NewClientFromModel(&llmtest.Model{}, Options{})
	p := c.ExtractPrompt("Paris is the capital of France.")
	if p.Temperature != DefaultExtractTemperature {
		t.Errorf("Temperature = %v, want %v", p.Temperature, DefaultExtractTemperature)
	}
	if !strings.HasSuffix(p.Human, "Paris is the capital of France.") {
		t.Errorf("human message does not end with the input text: %q", p.Human)
	}
	if p.Schema == nil || len(p.Schema.Required) != 2 {
		t.Errorf("expected claim schema with two required fields")
	}
}

func TestExtractClaim_UsesJSONModeAndTemperature(t *testing.T) {
	model := &llmtest.Model{Replies: []llmtest.Reply{
		llmtest.Text(`{"isClaim": true, "claim": " The Moon orbits the Earth. "}`),
	}}
	c := NewClientFromModel(model, testOptions())

	claim, err := c.ExtractClaim(context.Background(), "Did you know the Moon orbits the Earth?")
	if err != nil {
		t.Fatalf("ExtractClaim: %v", err)
	}
	if claim.Claim != "The Moon orbits the Earth." {
		t.Errorf("Claim = %q", claim.Claim)
	}
	calls := model.Calls()
	if len(calls) != 1 {
		t.Fatalf("expected 1 call, got %d", len(calls))
	}
	if calls[0].Options.Temperature != 0.7 {
		t.Errorf("Temperature = %v, want 0.7", calls[0].Options.Temperature)
	}
	if calls[0].Options.ResponseMIMEType != "application/json" {
		t.Errorf("ResponseMIMEType = %q", calls[0].Options.ResponseMIMEType)
	}
}

func TestOptions_ZeroTemperatureKept(t *testing.T) {
	model := &llmtest.Model{Replies: []llmtest.Reply{
		llmtest.Text(`{"isClaim": true, "claim": "Water boils at 100C."}`),
	}}
	opts := testOptions()
	opts.ExtractTemperature = Float(0)
	opts.AgentTemperature = Float(0)
	c := NewClientFromModel(model, opts)

	if got := c.AgentTemperature(); got != 0 {
		t.Errorf("AgentTemperature = %v, want 0", got)
	}
	if _, err := c.ExtractClaim(context.Background(), "Water boils at 100C."); err != nil {
		t.Fatalf("ExtractClaim: %v", err)
	}
	if got := model.Calls()[0].Options.Temperature; got != 0 {
		t.Errorf("extract Temperature = %v, want 0", got)
	}
	if got := *c.opts.ParseTemperature; got != DefaultParseTemperature {
		t.Errorf("unset ParseTemperature = %v, want default %v", got, DefaultParseTemperature)
	}
}

func TestExtractClaim_UnparseableIsNotRetried(t *testing.T) {
	model := &llmtest.Model{Replies: []llmtest.Reply{llmtest.Text("I think there is a claim here.")}, Repeat: true}
	c := NewClientFromModel(model, testOptions())

	_, err := c.ExtractClaim(context.Background(), "anything")
	if !errors.Is(err, upstream.ErrUnparseable) {
		t.Fatalf("expected ErrUnparseable, got %v", err)
	}
	if n := model.CallCount(); n != 1 {
		t.Errorf("expected exactly one model call, got %d", n)
	}
}

func TestExtractClaim_RetriesTransientFailure(t *testing.T) {
	model := &llmtest.Model{Replies: []llmtest.Reply{
		{Err: &upstream.StatusError{Provider: "gemini", StatusCode: 503}},
		llmtest.Text(`{"isClaim": false, "claim": "No claims found"}`),
	}}
	c := NewClientFromModel(model, testOptions())

	claim, err := c.ExtractClaim(context.Background(), "hello there")
	if err != nil {
		t.Fatalf("ExtractClaim: %v", err)
	}
	if claim.HasClaim() {
		t.Errorf("expected no claim, got %+v", claim)
	}
	if n := model.CallCount(); n != 2 {
		t.Errorf("expected 2 calls, got %d", n)
	}
}

func TestExtractClaim_UnavailableAfterRetries(t *testing.T) {
	dialErr := &net.OpError{Op: "dial", Net: "tcp", Err: errors.New("connection refused")}
	model := &llmtest.Model{Replies: []llmtest.Reply{{Err: dialErr}}, Repeat: true}
	c := NewClientFromModel(model, testOptions())

	_, err := c.ExtractClaim(context.Background(), "hello")
	if !errors.Is(err, upstream.ErrUnavailable) {
		t.Fatalf("expected ErrUnavailable, got %v", err)
	}
	if n := model.CallCount(); n != 3 {
		t.Errorf("expected 3 attempts, got %d", n)
	}
}

func TestExtractClaim_PermanentFailureNotRetried(t *testing.T) {
	model := &llmtest.Model{Replies: []llmtest.Reply{{Err: errors.New("blocked: finish reason SAFETY")}}, Repeat: true}
	c := NewClientFromModel(model, testOptions())

	_, err := c.ExtractClaim(context.Background(), "hello")
	if !errors.Is(err, upstream.ErrUnavailable) {
		t.Fatalf("expected ErrUnavailable, got %v", err)
	}
	if n := model.CallCount(); n != 1 {
		t.Errorf("expected 1 attempt, got %d", n)
	}
}

func TestScoreVerdict(t *testing.T) {
	model := &llmtest.Model{Replies: []llmtest.Reply{
		llmtest.Text(`{"score": 9, "comments": "Confirmed by several sources."}`),
	}}
	c := NewClientFromModel(model, testOptions())

	verdict, err := c.ScoreVerdict(context.Background(), "The Moon orbits the Earth.", "Multiple sources confirm it.")
	if err != nil {
		t.Fatalf("ScoreVerdict: %v", err)
	}
	if verdict.Score != 9 || verdict.Comments == "" {
		t.Errorf("unexpected verdict %+v", verdict)
	}
	if got := model.Calls()[0].Options.Temperature; got != 0.8 {
		t.Errorf("Temperature = %v, want 0.8", got)
	}
}

func TestScoreVerdict_OutOfRangeRejected(t *testing.T) {
	model := &llmtest.Model{Replies: []llmtest.Reply{llmtest.Text(`{"score": 42, "comments": "Very true."}`)}}
	c := NewClientFromModel(model, testOptions())

	_, err := c.ScoreVerdict(context.Background(), "claim", "answer")
	if !errors.Is(err, upstream.ErrUnparseable) {
		t.Fatalf("expected ErrUnparseable, got %v", err)
	}
}

func TestGroundedSearch_NotConfigured(t *testing.T) {
	c := NewClientFromModel(&llmtest.Model{}, Options{})
	if _, err := c.GroundedSearch(context.Background(), "weather"); !errors.Is(err, ErrGroundingNotConfigured) {
		t.Errorf("expected ErrGroundingNotConfigured, got %v", err)
	}
}

func TestStripCodeFence(t *testing.T) {
	tests := map[string]string{
		"{}":                  "{}",
		"```json\n{}\n```":    "{}",
		"```\n{\"a\":1}\n```": `{"a":1}`,
		"  {}  ":              "{}",
	}
	for in, want := range tests {
		if got := stripCodeFence(in); got != want {
			t.Errorf("stripCodeFence(%q) = %q, want %q", in, got, want)
		}
	}
}
