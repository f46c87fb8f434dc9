// Package llmtest provides a scripted llms.Model for tests.
package llmtest

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/tmc/langchaingo/llms"
)

// ErrScriptExhausted is returned when the model is called more times than it has replies.
var ErrScriptExhausted = errors.New("llmtest: no scripted reply left")

// Reply is one scripted model turn.
type Reply struct {
	Content   string
	ToolCalls []llms.ToolCall
	Err       error
	Delay     time.Duration
}

// Call is one recorded invocation.
type Call struct {
	Messages []llms.MessageContent
	Options  llms.CallOptions
}

// Model replays Replies in order. When Repeat is set, the last reply is replayed forever.
type Model struct {
	Replies []Reply
	Repeat  bool

	mu    sync.Mutex
	next  int
	calls []Call
}

var _ llms.Model = (*Model)(nil)

// Text is a reply with plain content.
func Text(content string) Reply {
	return Reply{Content: content}
}

// ToolCall is a reply asking for one tool invocation.
func ToolCall(id, name, arguments string) Reply {
	return Reply{ToolCalls: []llms.ToolCall{{
		ID:   id,
		Type: "function",
		FunctionCall: &llms.FunctionCall{
			Name:      name,
			Arguments: arguments,
		},
	}}}
}

// GenerateContent implements llms.Model.
func (m *Model) GenerateContent(ctx context.Context, messages []llms.MessageContent, options ...llms.CallOption) (*llms.ContentResponse, error) {
	var opts llms.CallOptions
	for _, o := range options {
		o(&opts)
	}

	m.mu.Lock()
	m.calls = append(m.calls, Call{Messages: append([]llms.MessageContent(nil), messages...), Options: opts})
	var reply Reply
	switch {
	case m.next < len(m.Replies):
		reply = m.Replies[m.next]
		m.next++
	case m.Repeat && len(m.Replies) > 0:
		reply = m.Replies[len(m.Replies)-1]
	default:
		m.mu.Unlock()
		return nil, ErrScriptExhausted
	}
	m.mu.Unlock()

	if reply.Delay > 0 {
		select {
		case <-time.After(reply.Delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if reply.Err != nil {
		return nil, reply.Err
	}
	return &llms.ContentResponse{Choices: []*llms.ContentChoice{{
		Content:   reply.Content,
		ToolCalls: reply.ToolCalls,
	}}}, nil
}

// Call implements llms.Model.
func (m *Model) Call(ctx context.Context, prompt string, options ...llms.CallOption) (string, error) {
	return llms.GenerateFromSinglePrompt(ctx, m, prompt, options...)
}

// Calls returns a copy of the recorded invocations.
func (m *Model) Calls() []Call {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]Call(nil), m.calls...)
}

// CallCount returns how many times the model was invoked.
func (m *Model) CallCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.calls)
}

// LastText returns the text of the last human message of call i, for assertions.
func (m *Model) LastText(i int) string {
	calls := m.Calls()
	if i < 0 || i >= len(calls) {
		return ""
	}
	msgs := calls[i].Messages
	for j := len(msgs) - 1; j >= 0; j-- {
		if msgs[j].Role != llms.ChatMessageTypeHuman {
			continue
		}
		for _, p := range msgs[j].Parts {
			if t, ok := p.(llms.TextContent); ok {
				return t.Text
			}
		}
	}
	return ""
}
