package mcpserver

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/rs/zerolog/log"
	"github.com/snappy-loop/factcheck/internal/models"
	"github.com/snappy-loop/factcheck/internal/services"
	"github.com/snappy-loop/factcheck/internal/tools"
)

const protocolVersion = "2024-11-05"

// JSON-RPC 2.0 request
type jsonRPCRequest struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      interface{}     `json:"id"`
	Method  string          `json:"method"`
	Params  json.RawMessage `json:"params"`
}

// JSON-RPC 2.0 response
type jsonRPCResponse struct {
	JSONRPC string      `json:"jsonrpc"`
	ID      interface{} `json:"id"`
	Result  interface{} `json:"result,omitempty"`
	Error   *rpcError   `json:"error,omitempty"`
}

type rpcError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

// MCP tools/list result
type toolsListResult struct {
	Tools      []mcpTool `json:"tools"`
	NextCursor *string   `json:"nextCursor,omitempty"`
}

type mcpTool struct {
	Name        string         `json:"name"`
	Description string         `json:"description"`
	InputSchema map[string]any `json:"inputSchema"`
}

// MCP tools/call result
type toolsCallResult struct {
	Content []contentItem `json:"content"`
	IsError bool          `json:"isError"`
}

type contentItem struct {
	Type string `json:"type"`
	Text string `json:"text,omitempty"`
}

// TextArgs are the arguments of both MCP tools.
type TextArgs struct {
	Text string `json:"text" jsonschema:"description=Free text that may contain a factual claim."`
}

// FactChecker is the pipeline the MCP tools expose.
type FactChecker interface {
	Check(ctx context.Context, text string) (*models.FactCheckResult, error)
	Extract(ctx context.Context, text string) (*models.Claim, error)
}

// Server implements MCP JSON-RPC 2.0 over HTTP (initialize, tools/list and tools/call).
type Server struct {
	checker FactChecker
	tools   []mcpTool
}

// NewServer returns a new MCP server backed by checker.
func NewServer(checker FactChecker) (*Server, error) {
	schema, err := tools.Parameters(&TextArgs{})
	if err != nil {
		return nil, err
	}
	return &Server{
		checker: checker,
		tools: []mcpTool{
			{
				Name:        "fact_check",
				Description: "Extract the main factual claim from text, verify it with web search and return a score from 0 (false) to 10 (true) with comments",
				InputSchema: schema,
			},
			{
				Name:        "extract_claim",
				Description: "Extract the single factual claim contained in text without verifying it",
				InputSchema: schema,
			},
		},
	}, nil
}

// Handler returns the HTTP handler for JSON-RPC requests.
func (s *Server) Handler() http.Handler {
	return http.HandlerFunc(s.serveJSONRPC)
}

func (s *Server) serveJSONRPC(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeJSONError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	var req jsonRPCRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeRPCError(w, req.ID, -32700, "Parse error")
		return
	}
	if req.JSONRPC != "2.0" {
		writeRPCError(w, req.ID, -32600, "Invalid Request")
		return
	}

	var result interface{}
	var rpcErr *rpcError
	switch req.Method {
	case "initialize":
		result = map[string]any{
			"protocolVersion": protocolVersion,
			"capabilities":    map[string]any{"tools": map[string]any{}},
			"serverInfo":      map[string]any{"name": "factcheck", "version": "1.0.0"},
		}
	case "notifications/initialized":
		w.WriteHeader(http.StatusAccepted)
		return
	case "tools/list":
		result = &toolsListResult{Tools: s.tools}
	case "tools/call":
		result, rpcErr = s.handleToolsCall(r.Context(), req.Params)
	default:
		writeRPCError(w, req.ID, -32601, "Method not found")
		return
	}

	if rpcErr != nil {
		writeRPCError(w, req.ID, rpcErr.Code, rpcErr.Message)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(jsonRPCResponse{JSONRPC: "2.0", ID: req.ID, Result: result})
}

type toolsCallParams struct {
	Name      string                 `json:"name"`
	Arguments map[string]interface{} `json:"arguments"`
}

func (s *Server) handleToolsCall(ctx context.Context, paramsRaw json.RawMessage) (interface{}, *rpcError) {
	var params toolsCallParams
	if err := json.Unmarshal(paramsRaw, &params); err != nil {
		return nil, &rpcError{Code: -32602, Message: "Invalid params"}
	}
	text, ok := params.Arguments["text"].(string)
	switch params.Name {
	case "fact_check", "extract_claim":
		if !ok {
			return nil, &rpcError{Code: -32602, Message: "text parameter is required"}
		}
	default:
		return nil, &rpcError{Code: -32602, Message: "Unknown tool: " + params.Name}
	}

	log.Ctx(ctx).Info().Str("tool", params.Name).Int("text_len", len(text)).Msg("MCP tool call")
	if params.Name == "extract_claim" {
		claim, err := s.checker.Extract(ctx, text)
		if errors.Is(err, services.ErrNoClaim) {
			return textResult(models.Claim{IsClaim: false, Claim: models.NoClaimsFound}, false), nil
		}
		if err != nil {
			return errorResult(err), nil
		}
		return textResult(claim, false), nil
	}

	result, err := s.checker.Check(ctx, text)
	if errors.Is(err, services.ErrNoClaim) {
		return textResult(models.MessageResponse{Message: models.NoClaimsFound}, false), nil
	}
	if err != nil {
		return errorResult(err), nil
	}
	return textResult(struct {
		Claim string                  `json:"claim"`
		Res   models.ScoreAndComments `json:"res"`
		Steps []models.AgentStep      `json:"steps"`
	}{result.Claim.Claim, result.Verification.Verdict, result.Verification.Steps}, false), nil
}

func textResult(v any, isError bool) *toolsCallResult {
	raw, _ := json.Marshal(v)
	return &toolsCallResult{
		Content: []contentItem{{Type: "text", Text: string(raw)}},
		IsError: isError,
	}
}

func errorResult(err error) *toolsCallResult {
	msg := err.Error()
	if i := strings.Index(msg, "\n"); i >= 0 {
		msg = msg[:i]
	}
	return &toolsCallResult{
		Content: []contentItem{{Type: "text", Text: msg}},
		IsError: true,
	}
}

func writeJSONError(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]string{"error": message})
}

func writeRPCError(w http.ResponseWriter, id interface{}, code int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(jsonRPCResponse{
		JSONRPC: "2.0",
		ID:      id,
		Error:   &rpcError{Code: code, Message: message},
	})
}
