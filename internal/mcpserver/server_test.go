package mcpserver

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/snappy-loop/factcheck/internal/auth"
	"github.com/snappy-loop/factcheck/internal/models"
	"github.com/snappy-loop/factcheck/internal/services"
	"github.com/snappy-loop/factcheck/internal/upstream"
)

type fakeChecker struct {
	checkErr   error
	extractErr error
}

func (f *fakeChecker) Check(_ context.Context, text string) (*models.FactCheckResult, error) {
	if f.checkErr != nil {
		return nil, f.checkErr
	}
	return &models.FactCheckResult{
		Claim:        models.Claim{IsClaim: true, Claim: text},
		Verification: models.Verification{Verdict: models.ScoreAndComments{Score: 3, Comments: "Doubtful."}},
	}, nil
}

func (f *fakeChecker) Extract(_ context.Context, text string) (*models.Claim, error) {
	if f.extractErr != nil {
		return nil, f.extractErr
	}
	return &models.Claim{IsClaim: true, Claim: text}, nil
}

func rpc(t *testing.T, h http.Handler, body string) jsonRPCResponse {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(body))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("status %d: %s", rec.Code, rec.Body.String())
	}
	var resp jsonRPCResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	return resp
}

func callResult(t *testing.T, resp jsonRPCResponse) (string, bool) {
	t.Helper()
	if resp.Error != nil {
		t.Fatalf("rpc error: %+v", resp.Error)
	}
	raw, _ := json.Marshal(resp.Result)
	var res toolsCallResult
	if err := json.Unmarshal(raw, &res); err != nil {
		t.Fatal(err)
	}
	if len(res.Content) != 1 {
		t.Fatalf("expected one content item, got %d", len(res.Content))
	}
	return res.Content[0].Text, res.IsError
}

func newTestServer(t *testing.T, checker FactChecker) http.Handler {
	t.Helper()
	s, err := NewServer(checker)
	if err != nil {
		t.Fatalf("NewServer: %v", err)
	}
	return s.Handler()
}

func TestToolsList(t *testing.T) {
	resp := rpc(t, newTestServer(t, &fakeChecker{}), `{"jsonrpc":"2.0","id":1,"method":"tools/list"}`)
	raw, _ := json.Marshal(resp.Result)
	var list toolsListResult
	if err := json.Unmarshal(raw, &list); err != nil {
		t.Fatal(err)
	}
	if len(list.Tools) != 2 || list.Tools[0].Name != "fact_check" || list.Tools[1].Name != "extract_claim" {
		t.Fatalf("unexpected tools %+v", list.Tools)
	}
	props, _ := list.Tools[0].InputSchema["properties"].(map[string]any)
	if _, ok := props["text"]; !ok {
		t.Errorf("input schema lacks text: %v", list.Tools[0].InputSchema)
	}
}

func TestToolsCall_FactCheck(t *testing.T) {
	h := newTestServer(t, &fakeChecker{})
	text, isErr := callResult(t, rpc(t, h, `{"jsonrpc":"2.0","id":2,"method":"tools/call","params":{"name":"fact_check","arguments":{"text":"Bananas are blue."}}}`))
	if isErr {
		t.Fatalf("unexpected tool error: %s", text)
	}
	var out struct {
		Claim string                  `json:"claim"`
		Res   models.ScoreAndComments `json:"res"`
	}
	if err := json.Unmarshal([]byte(text), &out); err != nil {
		t.Fatal(err)
	}
	if out.Claim != "Bananas are blue." || out.Res.Score != 3 {
		t.Errorf("unexpected output %+v", out)
	}
}

func TestToolsCall_Outcomes(t *testing.T) {
	tests := []struct {
		name    string
		checker *fakeChecker
		tool    string
		wantErr bool
		want    string
	}{
		{"no claim", &fakeChecker{checkErr: services.ErrNoClaim}, "fact_check", false, "No claims found"},
		{"upstream", &fakeChecker{checkErr: upstream.ErrUnavailable}, "fact_check", true, "upstream unavailable"},
		{"extract", &fakeChecker{}, "extract_claim", false, `"isClaim":true`},
		{"extract no claim", &fakeChecker{extractErr: services.ErrNoClaim}, "extract_claim", false, `"isClaim":false,"claim":"No claims found"`},
		{"extract failure", &fakeChecker{extractErr: errors.New("boom")}, "extract_claim", true, "boom"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			body := `{"jsonrpc":"2.0","id":3,"method":"tools/call","params":{"name":"` + tt.tool + `","arguments":{"text":"x"}}}`
			text, isErr := callResult(t, rpc(t, newTestServer(t, tt.checker), body))
			if isErr != tt.wantErr {
				t.Errorf("isError = %v, want %v (%s)", isErr, tt.wantErr, text)
			}
			if !strings.Contains(text, tt.want) {
				t.Errorf("text %q does not contain %q", text, tt.want)
			}
		})
	}
}

func TestToolsCall_InvalidParams(t *testing.T) {
	h := newTestServer(t, &fakeChecker{})
	resp := rpc(t, h, `{"jsonrpc":"2.0","id":4,"method":"tools/call","params":{"name":"fact_check","arguments":{}}}`)
	if resp.Error == nil || resp.Error.Code != -32602 {
		t.Errorf("expected -32602, got %+v", resp.Error)
	}
	resp = rpc(t, h, `{"jsonrpc":"2.0","id":5,"method":"tools/call","params":{"name":"nope","arguments":{"text":"x"}}}`)
	if resp.Error == nil || !strings.Contains(resp.Error.Message, "Unknown tool") {
		t.Errorf("expected unknown tool error, got %+v", resp.Error)
	}
	resp = rpc(t, h, `{"jsonrpc":"2.0","id":6,"method":"resources/list"}`)
	if resp.Error == nil || resp.Error.Code != -32601 {
		t.Errorf("expected -32601, got %+v", resp.Error)
	}
	resp = rpc(t, h, `{"jsonrpc":"1.0","id":7,"method":"tools/list"}`)
	if resp.Error == nil || resp.Error.Code != -32600 {
		t.Errorf("expected -32600, got %+v", resp.Error)
	}
}

func TestInitialize(t *testing.T) {
	resp := rpc(t, newTestServer(t, &fakeChecker{}), `{"jsonrpc":"2.0","id":1,"method":"initialize","params":{}}`)
	result, _ := resp.Result.(map[string]any)
	if result["protocolVersion"] != protocolVersion {
		t.Errorf("unexpected initialize result %v", resp.Result)
	}
}

func TestAuthMiddleware(t *testing.T) {
	hash, err := auth.HashAPIKey("k")
	if err != nil {
		t.Fatal(err)
	}
	h := AuthMiddleware(auth.NewService(hash))(newTestServer(t, &fakeChecker{}))

	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"jsonrpc":"2.0","id":1,"method":"tools/list"}`))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	if rec.Code != http.StatusUnauthorized {
		t.Errorf("expected 401 without key, got %d", rec.Code)
	}

	req = httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"jsonrpc":"2.0","id":1,"method":"tools/list"}`))
	req.Header.Set("Authorization", "Bearer k")
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Errorf("expected 200 with key, got %d", rec.Code)
	}
}
