// Package mcpserver exposes Vigil's host status as Model Context Protocol
// tools so that other assistants can ask the same questions a user can ask
// out loud.
//
// Tools:
//
//   - status_summary: battery, memory and CPU in one sentence
//   - top_memory_process: the process using the most memory
//   - recent_alerts: the latest alerts, newest first
//   - check_levels: the last observed level of each periodic check
//   - run_check: run one check now and report its level
package mcpserver

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/MrWong99/vigil/internal/monitor"
)

const defaultRecentLimit = 10

// Monitor is the part of *monitor.Monitor the tools read.
type Monitor interface {
	StatusSummary(ctx context.Context) string
	TopMemoryProcess(ctx context.Context) string
	Recent(n int) []monitor.Alert
	Checks() []string
	Level(name string) (string, bool)
	CheckNow(ctx context.Context, name string) error
}

// RecentArgs are the arguments of the recent_alerts tool.
type RecentArgs struct {
	Limit int `json:"limit,omitempty" jsonschema:"maximum number of alerts to return, default 10"`
}

// CheckArgs are the arguments of the run_check tool.
type CheckArgs struct {
	Check string `json:"check" jsonschema:"check to run: battery, memory, uptime, disk or cpu"`
}

type noArgs struct{}

// New creates an MCP server with the Vigil tools registered.
func New(m Monitor, version string) *mcp.Server {
	s := mcp.NewServer(&mcp.Implementation{Name: "vigil", Version: version}, nil)
	t := &tools{m: m}

	mcp.AddTool(s, &mcp.Tool{
		Name:        "status_summary",
		Description: "Summarize battery, memory and CPU usage of the host in one sentence.",
	}, t.statusSummary)
	mcp.AddTool(s, &mcp.Tool{
		Name:        "top_memory_process",
		Description: "Name the process using the most memory and how much it uses.",
	}, t.topMemoryProcess)
	mcp.AddTool(s, &mcp.Tool{
		Name:        "recent_alerts",
		Description: "List the latest host alerts (battery, memory, disk, CPU, uptime), newest first.",
	}, t.recentAlerts)
	mcp.AddTool(s, &mcp.Tool{
		Name:        "check_levels",
		Description: "Report the last observed level of every periodic host check.",
	}, t.checkLevels)
	mcp.AddTool(s, &mcp.Tool{
		Name:        "run_check",
		Description: "Run one host check immediately and report its level.",
	}, t.runCheck)
	return s
}

// Handler serves s over the streamable HTTP transport.
func Handler(s *mcp.Server) http.Handler {
	return mcp.NewStreamableHTTPHandler(func(*http.Request) *mcp.Server { return s }, nil)
}

type tools struct {
	m Monitor
}

func text(s string) *mcp.CallToolResult {
	return &mcp.CallToolResult{Content: []mcp.Content{&mcp.TextContent{Text: s}}}
}

func toolError(s string) *mcp.CallToolResult {
	r := text(s)
	r.IsError = true
	return r
}

func (t *tools) statusSummary(ctx context.Context, _ *mcp.CallToolRequest, _ noArgs) (*mcp.CallToolResult, any, error) {
	return text(t.m.StatusSummary(ctx)), nil, nil
}

func (t *tools) topMemoryProcess(ctx context.Context, _ *mcp.CallToolRequest, _ noArgs) (*mcp.CallToolResult, any, error) {
	return text(t.m.TopMemoryProcess(ctx)), nil, nil
}

func (t *tools) recentAlerts(_ context.Context, _ *mcp.CallToolRequest, args RecentArgs) (*mcp.CallToolResult, any, error) {
	limit := args.Limit
	if limit <= 0 {
		limit = defaultRecentLimit
	}
	alerts := t.m.Recent(limit)
	if len(alerts) == 0 {
		return text("No alerts since startup."), nil, nil
	}
	var b strings.Builder
	for _, a := range alerts {
		fmt.Fprintf(&b, "%s [%s] %s: %s\n", a.Time.Format(time.RFC3339), a.Severity, a.Category, a.Message)
	}
	return text(strings.TrimRight(b.String(), "\n")), nil, nil
}

func (t *tools) checkLevels(_ context.Context, _ *mcp.CallToolRequest, _ noArgs) (*mcp.CallToolResult, any, error) {
	lines := make([]string, 0, len(t.m.Checks()))
	for _, name := range t.m.Checks() {
		level, ok := t.m.Level(name)
		if !ok {
			level = "not checked yet"
		}
		lines = append(lines, name+": "+level)
	}
	return text(strings.Join(lines, "\n")), nil, nil
}

func (t *tools) runCheck(ctx context.Context, _ *mcp.CallToolRequest, args CheckArgs) (*mcp.CallToolResult, any, error) {
	if err := t.m.CheckNow(ctx, args.Check); err != nil {
		return toolError(fmt.Sprintf("check %q failed: %v", args.Check, err)), nil, nil
	}
	level, _ := t.m.Level(args.Check)
	return text(args.Check + ": " + level), nil, nil
}
