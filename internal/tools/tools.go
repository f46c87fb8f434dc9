// Package tools holds the tools the verification agent can call: web search
// (Tavily, DuckDuckGo or Google-grounded Gemini) and the current date.
package tools

import (
	"encoding/json"
	"fmt"

	"github.com/invopop/jsonschema"
	"github.com/tmc/langchaingo/llms"
	lctools "github.com/tmc/langchaingo/tools"
)

const (
	// WebSearchName is the function name the agent uses for web search.
	WebSearchName = "web_search"
	// TodayDateName is the function name the agent uses for the current date.
	TodayDateName = "get_today_date"
)

// SearchArgs are the arguments of web_search.
type SearchArgs struct {
	Query string `json:"query" jsonschema:"description=The search query. Keep it short and specific."`
}

// DateArgs are the arguments of get_today_date.
type DateArgs struct {
	Format string `json:"format,omitempty" jsonschema:"description=strftime format of the returned date. Defaults to %Y-%m-%d."`
}

// Binding pairs a tool with the function declaration the model sees. The tool
// receives the value of the InputKey argument as its input string.
type Binding struct {
	Tool       lctools.Tool
	Name       string
	Parameters map[string]any
	InputKey   string
}

// Definition returns the function declaration sent to the model.
func (b Binding) Definition() llms.Tool {
	return llms.Tool{
		Type: "function",
		Function: &llms.FunctionDefinition{
			Name:        b.Name,
			Description: b.Tool.Description(),
			Parameters:  b.Parameters,
		},
	}
}

// Input extracts the tool input from the model's JSON arguments. An empty
// arguments object yields an empty input.
func (b Binding) Input(arguments string) (string, error) {
	if arguments == "" {
		return "", nil
	}
	var args map[string]any
	if err := json.Unmarshal([]byte(arguments), &args); err != nil {
		return "", fmt.Errorf("invalid arguments for %s: %w", b.Name, err)
	}
	v, ok := args[b.InputKey]
	if !ok || v == nil {
		return "", nil
	}
	s, ok := v.(string)
	if !ok {
		return "", fmt.Errorf("argument %q of %s must be a string", b.InputKey, b.Name)
	}
	return s, nil
}

// Bind builds a Binding whose parameters are reflected from args.
func Bind(name string, tool lctools.Tool, args any, inputKey string) (Binding, error) {
	params, err := Parameters(args)
	if err != nil {
		return Binding{}, fmt.Errorf("schema for %s: %w", name, err)
	}
	return Binding{Tool: tool, Name: name, Parameters: params, InputKey: inputKey}, nil
}

// Parameters reflects v into the map form function declarations expect.
func Parameters(v any) (map[string]any, error) {
	r := &jsonschema.Reflector{DoNotReference: true, ExpandedStruct: true}
	schema := r.Reflect(v)
	b, err := json.Marshal(schema)
	if err != nil {
		return nil, err
	}
	var out map[string]any
	if err := json.Unmarshal(b, &out); err != nil {
		return nil, err
	}
	delete(out, "$schema")
	delete(out, "$id")
	delete(out, "additionalProperties")
	return out, nil
}

// Toolset binds the web search and date tools under the names the agent is prompted with.
func Toolset(search, date lctools.Tool) ([]Binding, error) {
	searchBinding, err := Bind(WebSearchName, search, &SearchArgs{}, "query")
	if err != nil {
		return nil, err
	}
	dateBinding, err := Bind(TodayDateName, date, &DateArgs{}, "format")
	if err != nil {
		return nil, err
	}
	return []Binding{searchBinding, dateBinding}, nil
}
