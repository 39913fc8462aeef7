package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/narastore/narastore/internal/dashboard"
	"github.com/narastore/narastore/internal/rfp"
	"github.com/narastore/narastore/internal/staffing"
	"github.com/narastore/narastore/internal/storage"
)

// MCPDeps holds dependencies for the MCP server.
type MCPDeps struct {
	Store *storage.Store
	Now   func() time.Time // defaults to time.Now
}

func (d MCPDeps) now() time.Time {
	if d.Now != nil {
		return d.Now()
	}
	return time.Now()
}

// NewMCPServer creates an MCP server with all narastore tools and resources registered.
func NewMCPServer(deps MCPDeps) *server.MCPServer {
	s := server.NewMCPServer(
		"narastore",
		"1.0.0",
		server.WithToolCapabilities(true),
		server.WithResourceCapabilities(false, true),
		server.WithInstructions("narastore: analyzed government RFPs, their to-do lists and the staffing roster."),
		server.WithRecovery(),
	)

	s.AddTool(
		mcp.NewTool("list_rfps",
			mcp.WithDescription("List analyzed RFPs, newest first."),
			mcp.WithString("status", mcp.Description("Only return RFPs in this status (pending, completed, error)")),
		),
		mcpListRFPs(deps),
	)

	s.AddTool(
		mcp.NewTool("get_rfp",
			mcp.WithDescription("Return one RFP with its structured analysis and to-do list."),
			mcp.WithString("id", mcp.Description("RFP id"), mcp.Required()),
		),
		mcpGetRFP(deps),
	)

	s.AddTool(
		mcp.NewTool("dashboard_stats",
			mcp.WithDescription("Return dashboard counters and the upload activity series."),
			mcp.WithString("period", mcp.Description("7days (default), 1month or 1year")),
		),
		mcpDashboardStats(deps),
	)

	s.AddTool(
		mcp.NewTool("search_personnel",
			mcp.WithDescription("Search the staffing roster by name or technology."),
			mcp.WithString("query", mcp.Description("Name or technology substring; empty returns everyone")),
		),
		mcpSearchPersonnel(deps),
	)

	s.AddTool(
		mcp.NewTool("add_todo",
			mcp.WithDescription("Add a to-do item to an RFP."),
			mcp.WithString("rfp_id", mcp.Description("RFP id"), mcp.Required()),
			mcp.WithString("text", mcp.Description("To-do text"), mcp.Required()),
		),
		mcpAddTodo(deps),
	)

	s.AddTool(
		mcp.NewTool("toggle_todo",
			mcp.WithDescription("Flip the completed flag of a to-do item."),
			mcp.WithString("id", mcp.Description("To-do id"), mcp.Required()),
		),
		mcpToggleTodo(deps),
	)

	s.AddResource(
		mcp.NewResource(
			"narastore://rfps",
			"RFPs",
			mcp.WithResourceDescription("Every RFP with its status, newest first"),
			mcp.WithMIMEType("application/json"),
		),
		mcpResourceRFPs(deps),
	)

	return s
}

type rfpListing struct {
	ID           string     `json:"id"`
	Title        string     `json:"title"`
	AnalysisDate string     `json:"analysis_date"`
	Status       rfp.Status `json:"status"`
	ProjectName  string     `json:"project_name,omitempty"`
	Budget       string     `json:"budget,omitempty"`
}

func listing(r rfp.RFP) rfpListing {
	l := rfpListing{ID: r.ID, Title: r.Title, AnalysisDate: r.AnalysisDate, Status: r.Status}
	if r.StructuredAnalysis != nil {
		l.ProjectName = r.StructuredAnalysis.Summary.ProjectName
		l.Budget = r.StructuredAnalysis.Summary.Budget
	}
	return l
}

func mcpListRFPs(deps MCPDeps) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		status := rfp.Status(strings.TrimSpace(req.GetString("status", "")))
		if status != "" && !status.Valid() {
			return mcpError(fmt.Sprintf("unknown status %q", status)), nil
		}

		rfps, err := deps.Store.ListRFPs(ctx)
		if err != nil {
			return mcpError(fmt.Sprintf("failed to list rfps: %v", err)), nil
		}

		results := []rfpListing{}
		for _, r := range rfps {
			if status == "" || r.Status == status {
				results = append(results, listing(r))
			}
		}
		return mcpJSON(results)
	}
}

func mcpGetRFP(deps MCPDeps) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		id, err := req.RequireString("id")
		if err != nil {
			return mcpError("id is required"), nil
		}

		record, err := deps.Store.GetRFP(ctx, id)
		if errors.Is(err, storage.ErrNotFound) {
			return mcpError(fmt.Sprintf("rfp %s not found", id)), nil
		}
		if err != nil {
			return mcpError(fmt.Sprintf("failed to get rfp: %v", err)), nil
		}
		todos, err := deps.Store.ListTodos(ctx, storage.TodoFilter{RFPID: id})
		if err != nil {
			return mcpError(fmt.Sprintf("failed to list todos: %v", err)), nil
		}
		return mcpJSON(rfpDetail{RFP: record, Todos: todos})
	}
}

func mcpDashboardStats(deps MCPDeps) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		period, err := dashboard.ParsePeriod(req.GetString("period", ""))
		if err != nil {
			return mcpError(err.Error()), nil
		}
		rfps, todos, err := loadAll(ctx, deps.Store)
		if err != nil {
			return mcpError(fmt.Sprintf("failed to load dashboard data: %v", err)), nil
		}
		return mcpJSON(dashboardResponse{
			Period:   period,
			Stats:    dashboard.ComputeStats(rfps, todos),
			Activity: dashboard.ActivitySeries(rfps, period, deps.now()),
		})
	}
}

func mcpSearchPersonnel(deps MCPDeps) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		personnel, err := deps.Store.ListPersonnel(ctx)
		if err != nil {
			return mcpError(fmt.Sprintf("failed to list personnel: %v", err)), nil
		}
		found := staffing.Search(personnel, req.GetString("query", ""))
		if len(found) == 0 {
			return mcpText("[]"), nil
		}
		return mcpJSON(found)
	}
}

func mcpAddTodo(deps MCPDeps) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		rfpID, err := req.RequireString("rfp_id")
		if err != nil {
			return mcpError("rfp_id is required"), nil
		}
		text, err := req.RequireString("text")
		if err != nil || strings.TrimSpace(text) == "" {
			return mcpError("text is required"), nil
		}

		if _, err := deps.Store.GetRFP(ctx, rfpID); errors.Is(err, storage.ErrNotFound) {
			return mcpError(fmt.Sprintf("rfp %s not found", rfpID)), nil
		} else if err != nil {
			return mcpError(fmt.Sprintf("failed to get rfp: %v", err)), nil
		}

		id, err := deps.Store.CreateTodo(ctx, rfpID, strings.TrimSpace(text))
		if err != nil {
			return mcpError(fmt.Sprintf("failed to add todo: %v", err)), nil
		}
		return mcpText(fmt.Sprintf("Added todo %s", id)), nil
	}
}

func mcpToggleTodo(deps MCPDeps) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		id, err := req.RequireString("id")
		if err != nil {
			return mcpError("id is required"), nil
		}

		completed, err := deps.Store.ToggleTodo(ctx, id)
		if errors.Is(err, storage.ErrNotFound) {
			return mcpError(fmt.Sprintf("todo %s not found", id)), nil
		}
		if err != nil {
			return mcpError(fmt.Sprintf("failed to toggle todo: %v", err)), nil
		}
		state := "open"
		if completed {
			state = "completed"
		}
		return mcpText(fmt.Sprintf("Todo %s is now %s", id, state)), nil
	}
}

func mcpResourceRFPs(deps MCPDeps) server.ResourceHandlerFunc {
	return func(ctx context.Context, req mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
		rfps, err := deps.Store.ListRFPs(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to list rfps: %w", err)
		}

		results := make([]rfpListing, len(rfps))
		for i, r := range rfps {
			results[i] = listing(r)
		}
		b, err := json.Marshal(results)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal rfps: %w", err)
		}

		return []mcp.ResourceContents{
			mcp.TextResourceContents{
				URI:      req.Params.URI,
				MIMEType: "application/json",
				Text:     string(b),
			},
		}, nil
	}
}

func mcpJSON(v any) (*mcp.CallToolResult, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return mcpError(fmt.Sprintf("failed to marshal results: %v", err)), nil
	}
	return mcpText(string(b)), nil
}

func mcpText(text string) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{
			mcp.TextContent{Type: "text", Text: text},
		},
	}
}

func mcpError(msg string) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{
			mcp.TextContent{Type: "text", Text: msg},
		},
		IsError: true,
	}
}
