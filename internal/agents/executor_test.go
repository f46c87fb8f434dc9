package agents

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/snappy-loop/factcheck/internal/llm/llmtest"
	"github.com/snappy-loop/factcheck/internal/models"
	"github.com/snappy-loop/factcheck/internal/tools"
	"github.com/snappy-loop/factcheck/internal/upstream"
	"github.com/tmc/langchaingo/llms"
)

type fakeSearch struct {
	mu      sync.Mutex
	queries []string
	result  string
	err     error
}

func (f *fakeSearch) Name() string        { return "fake_search" }
func (f *fakeSearch) Description() string { return "fake search" }

func (f *fakeSearch) Call(_ context.Context, input string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.queries = append(f.queries, input)
	if f.err != nil {
		return "", f.err
	}
	return f.result, nil
}

type fakeScorer struct {
	verdict *models.ScoreAndComments
	err     error
	answer  string
}

func (f *fakeScorer) ScoreVerdict(_ context.Context, _ string, answer string) (*models.ScoreAndComments, error) {
	f.answer = answer
	if f.err != nil {
		return nil, f.err
	}
	return f.verdict, nil
}

func newBindings(t *testing.T, search *fakeSearch) []tools.Binding {
	t.Helper()
	date := &tools.DateTool{Now: func() time.Time { return time.Date(2025, time.June, 1, 9, 0, 0, 0, time.UTC) }}
	bindings, err := tools.Toolset(search, date)
	if err != nil {
		t.Fatalf("Toolset: %v", err)
	}
	return bindings
}

func TestExecutor_TerminatesAgainstAlwaysToolModel(t *testing.T) {
	model := &llmtest.Model{
		Replies: []llmtest.Reply{llmtest.ToolCall("", tools.WebSearchName, `{"query": "again"}`)},
		Repeat:  true,
	}
	search := &fakeSearch{result: "nothing useful"}
	exec := &Executor{Model: model, Tools: newBindings(t, search), MaxSteps: 4, StepTimeout: time.Second}

	answer, steps, err := exec.Run(context.Background(), "The sea is made of lemonade.")
	if !errors.Is(err, ErrStepsExhausted) {
		t.Fatalf("expected ErrStepsExhausted, got %v", err)
	}
	if answer != "" {
		t.Errorf("expected no answer, got %q", answer)
	}
	if n := model.CallCount(); n != 4 {
		t.Errorf("expected 4 model turns, got %d", n)
	}
	if len(steps) != 4 || len(search.queries) != 4 {
		t.Errorf("expected 4 tool steps, got %d steps and %d searches", len(steps), len(search.queries))
	}
}

func TestExecutor_TimeSensitiveClaimUsesDateTool(t *testing.T) {
	model := &llmtest.Model{Replies: []llmtest.Reply{
		llmtest.ToolCall("call-1", tools.TodayDateName, `{"format": "%Y"}`),
		llmtest.ToolCall("call-2", tools.WebSearchName, `{"query": "current president of France 2025"}`),
		llmtest.Text("The claim is accurate as of 2025. Score 9."),
	}}
	search := &fakeSearch{result: `[{"url":"https://example.org","content":"Emmanuel Macron is president."}]`}
	exec := &Executor{Model: model, Tools: newBindings(t, search), MaxSteps: 5, StepTimeout: time.Second, Temperature: 0.3}

	answer, steps, err := exec.Run(context.Background(), "Emmanuel Macron is currently the president of France.")
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if !strings.Contains(answer, "accurate") {
		t.Errorf("unexpected answer %q", answer)
	}
	if len(steps) != 3 {
		t.Fatalf("expected 3 steps, got %d: %+v", len(steps), steps)
	}
	if steps[0].Tool != tools.TodayDateName || steps[0].Observation != "2025" || steps[0].Input != "%Y" {
		t.Errorf("unexpected date step %+v", steps[0])
	}
	if steps[1].Tool != tools.WebSearchName || search.queries[0] != "current president of France 2025" {
		t.Errorf("unexpected search step %+v", steps[1])
	}
	if steps[2].Kind != models.StepFinalAnswer {
		t.Errorf("last step kind = %s", steps[2].Kind)
	}

	calls := model.Calls()
	if got := calls[0].Options.Temperature; got != 0.3 {
		t.Errorf("Temperature = %v, want 0.3", got)
	}
	if got := len(calls[0].Options.Tools); got != 2 {
		t.Errorf("expected 2 tool definitions, got %d", got)
	}
	last := calls[2].Messages[len(calls[2].Messages)-1]
	if last.Role != llms.ChatMessageTypeTool {
		t.Fatalf("expected tool message before final turn, got %s", last.Role)
	}
	resp, ok := last.Parts[0].(llms.ToolCallResponse)
	if !ok || resp.ToolCallID != "call-2" || !strings.Contains(resp.Content, "Macron") {
		t.Errorf("unexpected tool response %+v", last.Parts[0])
	}
}

func TestExecutor_ToolErrorBecomesObservation(t *testing.T) {
	model := &llmtest.Model{Replies: []llmtest.Reply{
		llmtest.ToolCall("c1", tools.WebSearchName, `{"query": "q"}`),
		llmtest.ToolCall("c2", "browse_web", `{"url": "https://example.org"}`),
		llmtest.ToolCall("c3", tools.WebSearchName, `{"query": 7}`),
		llmtest.Text("Could not verify; sources unavailable. Score 5."),
	}}
	search := &fakeSearch{err: &upstream.StatusError{Provider: "tavily", StatusCode: 500}}
	exec := &Executor{Model: model, Tools: newBindings(t, search), MaxSteps: 5, StepTimeout: time.Second}

	_, steps, err := exec.Run(context.Background(), "claim")
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(steps) != 4 {
		t.Fatalf("expected 4 steps, got %d", len(steps))
	}
	for i, want := range []string{"failed", "unknown tool", "must be a string"} {
		if !steps[i].ToolError || !strings.Contains(steps[i].Observation, want) {
			t.Errorf("step %d: expected tool error containing %q, got %+v", i, want, steps[i])
		}
	}
	if len(search.queries) != 1 {
		t.Errorf("expected search to be attempted once, got %d", len(search.queries))
	}
}

func TestExecutor_StepTimeout(t *testing.T) {
	model := &llmtest.Model{Replies: []llmtest.Reply{{Content: "late", Delay: time.Second}}}
	exec := &Executor{Model: model, Tools: newBindings(t, &fakeSearch{}), MaxSteps: 3, StepTimeout: 20 * time.Millisecond}

	_, _, err := exec.Run(context.Background(), "claim")
	if !errors.Is(err, upstream.ErrTimeout) {
		t.Fatalf("expected ErrTimeout, got %v", err)
	}
}

func TestExecutor_EmptyFinalAnswer(t *testing.T) {
	model := &llmtest.Model{Replies: []llmtest.Reply{llmtest.Text("   ")}}
	exec := &Executor{Model: model, Tools: newBindings(t, &fakeSearch{}), MaxSteps: 3, StepTimeout: time.Second}

	_, _, err := exec.Run(context.Background(), "claim")
	if !errors.Is(err, upstream.ErrUnparseable) {
		t.Fatalf("expected ErrUnparseable, got %v", err)
	}
}

func TestExecutor_ReportsStepsToObserver(t *testing.T) {
	model := &llmtest.Model{Replies: []llmtest.Reply{
		llmtest.ToolCall("", tools.TodayDateName, `{}`),
		llmtest.Text("done"),
	}}
	exec := &Executor{Model: model, Tools: newBindings(t, &fakeSearch{}), MaxSteps: 3, StepTimeout: time.Second}

	var seen []models.AgentStep
	ctx := WithObserver(context.Background(), ObserverFuncs{OnStep: func(s models.AgentStep) { seen = append(seen, s) }})
	if _, _, err := exec.Run(ctx, "claim"); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(seen) != 2 {
		t.Fatalf("expected 2 observed steps, got %d", len(seen))
	}
	if seen[0].Observation != "2025-06-01" || seen[0].Index != 0 || seen[1].Index != 1 {
		t.Errorf("unexpected observed steps %+v", seen)
	}
}

func TestVerifier_VerifyClaim(t *testing.T) {
	model := &llmtest.Model{Replies: []llmtest.Reply{
		llmtest.ToolCall("c1", tools.WebSearchName, `{"query": "boiling point of water"}`),
		llmtest.Text("Water boils at 100 degrees Celsius at sea level. Fully true."),
	}}
	scorer := &fakeScorer{verdict: &models.ScoreAndComments{Score: 10, Comments: "Well established."}}
	v := &Verifier{
		Executor: &Executor{Model: model, Tools: newBindings(t, &fakeSearch{result: "100 C"}), MaxSteps: 4, StepTimeout: time.Second},
		Scorer:   scorer,
	}

	got, err := v.VerifyClaim(context.Background(), "Water boils at 100 degrees Celsius at sea level.")
	if err != nil {
		t.Fatalf("VerifyClaim: %v", err)
	}
	if got.Verdict.Score != 10 || got.Verdict.Comments == "" {
		t.Errorf("unexpected verdict %+v", got.Verdict)
	}
	if !strings.HasPrefix(scorer.answer, "Water boils") {
		t.Errorf("scorer received %q", scorer.answer)
	}
	if len(got.Steps) != 2 {
		t.Errorf("expected 2 steps, got %d", len(got.Steps))
	}
}

func TestVerifier_ScoreParseErrorIsHard(t *testing.T) {
	model := &llmtest.Model{Replies: []llmtest.Reply{llmtest.Text("True.")}}
	v := &Verifier{
		Executor: &Executor{Model: model, Tools: newBindings(t, &fakeSearch{}), MaxSteps: 2, StepTimeout: time.Second},
		Scorer:   &fakeScorer{err: upstream.Unparseable("score", errors.New("score out of range"))},
	}
	got, err := v.VerifyClaim(context.Background(), "claim")
	if !errors.Is(err, upstream.ErrUnparseable) {
		t.Fatalf("expected ErrUnparseable, got %v", err)
	}
	if got == nil || got.Answer != "True." {
		t.Errorf("expected partial verification with the answer, got %+v", got)
	}
}
