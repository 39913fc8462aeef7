package api

import (
	"context"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/narastore/narastore/internal/rfp"
	"github.com/narastore/narastore/internal/storage"
)

// --- helpers ---

func newTestMCPDeps(t *testing.T) (MCPDeps, *storage.Store) {
	t.Helper()
	store, err := storage.Open(":memory:")
	if err != nil {
		t.Fatalf("opening store: %v", err)
	}
	t.Cleanup(func() { store.Close() })

	return MCPDeps{Store: store, Now: func() time.Time { return testNow }}, store
}

func toolText(t *testing.T, result *mcp.CallToolResult) string {
	t.Helper()
	if len(result.Content) == 0 {
		t.Fatal("no content in result")
	}
	tc, ok := result.Content[0].(mcp.TextContent)
	if !ok {
		t.Fatalf("expected TextContent, got %T", result.Content[0])
	}
	return tc.Text
}

func makeCallToolRequest(name string, args map[string]interface{}) mcp.CallToolRequest {
	return mcp.CallToolRequest{
		Params: mcp.CallToolParams{
			Name:      name,
			Arguments: args,
		},
	}
}

func callTool(t *testing.T, handler func(context.Context, mcp.CallToolRequest) (*mcp.CallToolResult, error), args map[string]interface{}) *mcp.CallToolResult {
	t.Helper()
	result, err := handler(context.Background(), makeCallToolRequest("test", args))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	return result
}

// --- tests ---

func TestNewMCPServer_RegistersTools(t *testing.T) {
	deps, _ := newTestMCPDeps(t)
	if s := NewMCPServer(deps); s == nil {
		t.Fatal("NewMCPServer returned nil")
	}
}

func TestMCPTool_ListRFPs(t *testing.T) {
	deps, store := newTestMCPDeps(t)
	seedRFP(t, store, rfp.RFP{Title: "a.pdf", Status: rfp.StatusCompleted, StructuredAnalysis: sampleAnalysis()})
	seedRFP(t, store, rfp.RFP{Title: "b.pdf"})

	result := callTool(t, mcpListRFPs(deps), nil)
	if result.IsError {
		t.Fatalf("unexpected error: %s", toolText(t, result))
	}
	var all []rfpListing
	if err := json.Unmarshal([]byte(toolText(t, result)), &all); err != nil {
		t.Fatalf("failed to parse response: %v", err)
	}
	if len(all) != 2 {
		t.Fatalf("expected 2 rfps, got %d", len(all))
	}

	result = callTool(t, mcpListRFPs(deps), map[string]interface{}{"status": "completed"})
	var completed []rfpListing
	if err := json.Unmarshal([]byte(toolText(t, result)), &completed); err != nil {
		t.Fatalf("failed to parse response: %v", err)
	}
	if len(completed) != 1 || completed[0].ProjectName != "차세대 민원 시스템 구축" {
		t.Errorf("completed = %+v", completed)
	}

	result = callTool(t, mcpListRFPs(deps), map[string]interface{}{"status": "done"})
	if !result.IsError {
		t.Error("expected error for unknown status")
	}
}

func TestMCPTool_GetRFP(t *testing.T) {
	deps, store := newTestMCPDeps(t)
	id := seedRFP(t, store, rfp.RFP{Title: "a.pdf", Status: rfp.StatusCompleted})
	if _, err := store.CreateTodos(context.Background(), id, []string{"x", "y"}); err != nil {
		t.Fatal(err)
	}

	result := callTool(t, mcpGetRFP(deps), map[string]interface{}{"id": id})
	if result.IsError {
		t.Fatalf("unexpected error: %s", toolText(t, result))
	}
	var detail rfpDetail
	if err := json.Unmarshal([]byte(toolText(t, result)), &detail); err != nil {
		t.Fatal(err)
	}
	if detail.ID != id || len(detail.Todos) != 2 {
		t.Errorf("detail = %+v", detail)
	}

	if result := callTool(t, mcpGetRFP(deps), map[string]interface{}{"id": "missing"}); !result.IsError {
		t.Error("expected error for missing rfp")
	}
	if result := callTool(t, mcpGetRFP(deps), nil); !result.IsError {
		t.Error("expected error without id")
	}
}

func TestMCPTool_DashboardStats(t *testing.T) {
	deps, store := newTestMCPDeps(t)
	seedRFP(t, store, rfp.RFP{Title: "a.pdf", AnalysisDate: "2026-10-14", Status: rfp.StatusCompleted})

	result := callTool(t, mcpDashboardStats(deps), map[string]interface{}{"period": "1month"})
	if result.IsError {
		t.Fatalf("unexpected error: %s", toolText(t, result))
	}
	var got dashboardResponse
	if err := json.Unmarshal([]byte(toolText(t, result)), &got); err != nil {
		t.Fatal(err)
	}
	if got.Stats.TotalRFPs != 1 || len(got.Activity) != 30 || got.Activity[29].Count != 1 {
		t.Errorf("dashboard = %+v", got)
	}

	if result := callTool(t, mcpDashboardStats(deps), map[string]interface{}{"period": "decade"}); !result.IsError {
		t.Error("expected error for unknown period")
	}
}

func TestMCPTool_SearchPersonnel(t *testing.T) {
	deps, store := newTestMCPDeps(t)
	p, err := rfp.NewPersonnel("김철수", "과장", "PL", 8, []string{"Go", "Kubernetes"})
	if err != nil {
		t.Fatal(err)
	}
	if _, err := store.CreatePersonnel(context.Background(), p); err != nil {
		t.Fatal(err)
	}

	result := callTool(t, mcpSearchPersonnel(deps), map[string]interface{}{"query": "kube"})
	var found []rfp.Personnel
	if err := json.Unmarshal([]byte(toolText(t, result)), &found); err != nil {
		t.Fatal(err)
	}
	if len(found) != 1 || found[0].Name != "김철수" {
		t.Errorf("found = %+v", found)
	}

	result = callTool(t, mcpSearchPersonnel(deps), map[string]interface{}{"query": "cobol"})
	if toolText(t, result) != "[]" {
		t.Errorf("no-match result = %s, want []", toolText(t, result))
	}
}

func TestMCPTool_AddAndToggleTodo(t *testing.T) {
	deps, store := newTestMCPDeps(t)
	rfpID := seedRFP(t, store, rfp.RFP{Title: "a.pdf"})

	result := callTool(t, mcpAddTodo(deps), map[string]interface{}{"rfp_id": rfpID, "text": "발표 자료 준비"})
	if result.IsError {
		t.Fatalf("unexpected error: %s", toolText(t, result))
	}
	todos, err := store.ListTodos(context.Background(), storage.TodoFilter{RFPID: rfpID})
	if err != nil {
		t.Fatal(err)
	}
	if len(todos) != 1 || todos[0].Text != "발표 자료 준비" {
		t.Fatalf("todos = %+v", todos)
	}

	result = callTool(t, mcpToggleTodo(deps), map[string]interface{}{"id": todos[0].ID})
	if result.IsError || !strings.Contains(toolText(t, result), "completed") {
		t.Errorf("toggle result = %s", toolText(t, result))
	}
	todo, err := store.GetTodo(context.Background(), todos[0].ID)
	if err != nil {
		t.Fatal(err)
	}
	if !todo.Completed {
		t.Error("todo not completed after toggle")
	}

	if result := callTool(t, mcpAddTodo(deps), map[string]interface{}{"rfp_id": "missing", "text": "x"}); !result.IsError {
		t.Error("expected error for missing rfp")
	}
	if result := callTool(t, mcpAddTodo(deps), map[string]interface{}{"rfp_id": rfpID, "text": "  "}); !result.IsError {
		t.Error("expected error for blank text")
	}
	if result := callTool(t, mcpToggleTodo(deps), map[string]interface{}{"id": "missing"}); !result.IsError {
		t.Error("expected error for missing todo")
	}
}

func TestMCPResource_RFPs(t *testing.T) {
	deps, store := newTestMCPDeps(t)
	seedRFP(t, store, rfp.RFP{Title: "a.pdf", AnalysisDate: "2026-10-14"})

	contents, err := mcpResourceRFPs(deps)(context.Background(), mcp.ReadResourceRequest{
		Params: mcp.ReadResourceParams{URI: "narastore://rfps"},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(contents) != 1 {
		t.Fatalf("expected 1 content, got %d", len(contents))
	}
	tc, ok := contents[0].(mcp.TextResourceContents)
	if !ok {
		t.Fatalf("expected TextResourceContents, got %T", contents[0])
	}
	if tc.URI != "narastore://rfps" || !strings.Contains(tc.Text, `"title":"a.pdf"`) {
		t.Errorf("resource = %+v", tc)
	}
}
