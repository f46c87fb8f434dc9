package agents

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/snappy-loop/factcheck/internal/models"
	"github.com/snappy-loop/factcheck/internal/tools"
	"github.com/snappy-loop/factcheck/internal/upstream"
	"github.com/tmc/langchaingo/llms"
)

// ErrStepsExhausted is returned when the agent has not produced a final answer
// within MaxSteps model turns.
var ErrStepsExhausted = errors.New("agent step limit reached without a final answer")

const (
	DefaultMaxSteps    = 8
	DefaultStepTimeout = 60 * time.Second
)

const verifierSystemPrompt = `You are a part of the fact-checking assistant. Given a claim you need to fact check it by searching the internet; a web_search tool is provided to you for that. You have to make sure you check it with the current date (use the get_today_date tool) if it is a fact that can change over time.
When you are done investigating, answer without calling a tool: state how true the claim is on a scale from 0 to 10 and explain briefly what you found. Answer rationally and be factual.`

// Executor runs the tool-calling loop: each turn the model either calls tools,
// whose observations are appended to the conversation, or gives its final answer.
type Executor struct {
	Model       llms.Model
	Tools       []tools.Binding
	MaxSteps    int
	StepTimeout time.Duration
	Temperature float64
	Retry       upstream.Policy
}

// Run investigates claim and returns the agent's final answer together with the
// steps it took. On ErrStepsExhausted the steps taken so far are still returned.
func (e *Executor) Run(ctx context.Context, claim string) (string, []models.AgentStep, error) {
	if e.Model == nil {
		return "", nil, fmt.Errorf("%w: no agent model configured", upstream.ErrUnavailable)
	}
	maxSteps := e.MaxSteps
	if maxSteps <= 0 {
		maxSteps = DefaultMaxSteps
	}
	stepTimeout := e.StepTimeout
	if stepTimeout <= 0 {
		stepTimeout = DefaultStepTimeout
	}

	logger := zerolog.Ctx(ctx)
	observer := ObserverFrom(ctx)
	byName := make(map[string]tools.Binding, len(e.Tools))
	defs := make([]llms.Tool, 0, len(e.Tools))
	for _, b := range e.Tools {
		byName[b.Name] = b
		defs = append(defs, b.Definition())
	}

	messages := []llms.MessageContent{
		llms.TextParts(llms.ChatMessageTypeSystem, verifierSystemPrompt),
		llms.TextParts(llms.ChatMessageTypeHuman, claim),
	}
	var steps []models.AgentStep

	for turn := 1; turn <= maxSteps; turn++ {
		stepCtx, cancel := context.WithTimeout(ctx, stepTimeout)
		choice, err := e.generate(stepCtx, messages, defs)
		if err != nil {
			cancel()
			return "", steps, fmt.Errorf("agent turn %d: %w", turn, err)
		}

		if len(choice.ToolCalls) == 0 {
			cancel()
			answer := strings.TrimSpace(choice.Content)
			if answer == "" {
				return "", steps, upstream.Unparseable("agent", errors.New("empty final answer"))
			}
			step := models.AgentStep{Index: len(steps), Kind: models.StepFinalAnswer, Answer: answer}
			steps = append(steps, step)
			observer.StepCompleted(step)
			logger.Debug().Int("turn", turn).Int("answer_len", len(answer)).Msg("Agent final answer")
			return answer, steps, nil
		}

		calls := make([]llms.ToolCall, len(choice.ToolCalls))
		aiParts := make([]llms.ContentPart, 0, len(calls))
		for i, tc := range choice.ToolCalls {
			if tc.ID == "" {
				tc.ID = uuid.NewString()
			}
			if tc.Type == "" {
				tc.Type = "function"
			}
			calls[i] = tc
			aiParts = append(aiParts, tc)
		}
		messages = append(messages, llms.MessageContent{Role: llms.ChatMessageTypeAI, Parts: aiParts})

		for _, tc := range calls {
			step := e.runTool(stepCtx, byName, tc)
			if err := stepCtx.Err(); err != nil {
				cancel()
				return "", steps, fmt.Errorf("agent turn %d: %w", turn, upstream.Classify("agent", err))
			}
			step.Index = len(steps)
			steps = append(steps, step)
			observer.StepCompleted(step)
			logger.Debug().
				Int("turn", turn).
				Str("tool", step.Tool).
				Str("input", step.Input).
				Bool("tool_error", step.ToolError).
				Int("observation_len", len(step.Observation)).
				Msg("Agent tool call")

			messages = append(messages, llms.MessageContent{
				Role: llms.ChatMessageTypeTool,
				Parts: []llms.ContentPart{llms.ToolCallResponse{
					ToolCallID: tc.ID,
					Name:       tc.FunctionCall.Name,
					Content:    step.Observation,
				}},
			})
		}
		cancel()
	}

	logger.Warn().Int("max_steps", maxSteps).Int("tool_calls", len(steps)).Msg("Agent step limit reached")
	return "", steps, ErrStepsExhausted
}

func (e *Executor) generate(ctx context.Context, messages []llms.MessageContent, defs []llms.Tool) (*llms.ContentChoice, error) {
	var choice *llms.ContentChoice
	err := upstream.Do(ctx, e.Retry, "gemini", func(ctx context.Context) error {
		resp, err := e.Model.GenerateContent(ctx, messages,
			llms.WithTools(defs),
			llms.WithTemperature(e.Temperature),
		)
		if err != nil {
			return err
		}
		if len(resp.Choices) == 0 {
			return fmt.Errorf("%w: empty response from model", upstream.ErrUnavailable)
		}
		choice = resp.Choices[0]
		return nil
	})
	return choice, err
}

// runTool executes one tool call. Failures become an error observation for the model.
func (e *Executor) runTool(ctx context.Context, byName map[string]tools.Binding, tc llms.ToolCall) models.AgentStep {
	step := models.AgentStep{Kind: models.StepToolCall}
	if tc.FunctionCall == nil {
		step.ToolError = true
		step.Observation = "Error: tool call without a function."
		return step
	}
	step.Tool = tc.FunctionCall.Name
	step.Input = tc.FunctionCall.Arguments

	binding, ok := byName[tc.FunctionCall.Name]
	if !ok {
		step.ToolError = true
		step.Observation = fmt.Sprintf("Error: unknown tool %q. Available tools: %s.", tc.FunctionCall.Name, strings.Join(toolNames(e.Tools), ", "))
		return step
	}
	input, err := binding.Input(tc.FunctionCall.Arguments)
	if err != nil {
		step.ToolError = true
		step.Observation = "Error: " + err.Error()
		return step
	}
	step.Input = input

	out, err := binding.Tool.Call(ctx, input)
	if err != nil {
		step.ToolError = true
		step.Observation = fmt.Sprintf("Error: %s failed: %v", binding.Name, err)
		return step
	}
	step.Observation = out
	return step
}

func toolNames(bindings []tools.Binding) []string {
	names := make([]string, 0, len(bindings))
	for _, b := range bindings {
		names = append(names, b.Name)
	}
	return names
}
