package agent

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"sync"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"noderig/internal/config"
	"noderig/internal/reporting"
	"noderig/pkg/logging"
)

// PlanRunner runs a test plan.
type PlanRunner interface {
	Run(ctx context.Context, planPath string) (*reporting.SuiteResult, error)
}

// Server is an MCP server wrapping a PlanRunner. Runs are serialized: nodes
// of two plans would compete for the same ports.
type Server struct {
	runner PlanRunner
	mcp    *server.MCPServer

	runMu sync.Mutex
	mu    sync.Mutex
	last  *reporting.SuiteResult
}

// NewServer creates the server and registers its tools.
func NewServer(runner PlanRunner, version string) *Server {
	s := &Server{
		runner: runner,
		mcp: server.NewMCPServer(
			"noderig",
			version,
			server.WithToolCapabilities(false),
		),
	}

	s.mcp.AddTool(mcp.NewTool("run_test_plan",
		mcp.WithDescription("Run every scenario of a node test plan and return the suite result"),
		mcp.WithString("config_path", mcp.Required(), mcp.Description("Path to the test plan YAML file")),
	), s.handleRunTestPlan)

	s.mcp.AddTool(mcp.NewTool("validate_test_plan",
		mcp.WithDescription("Load and validate a node test plan without running it"),
		mcp.WithString("config_path", mcp.Required(), mcp.Description("Path to the test plan YAML file")),
	), s.handleValidateTestPlan)

	s.mcp.AddTool(mcp.NewTool("get_last_result",
		mcp.WithDescription("Return the suite result of the most recent run"),
	), s.handleGetLastResult)

	return s
}

// Serve speaks MCP on in and out until ctx ends or in is closed.
func (s *Server) Serve(ctx context.Context, in io.Reader, out io.Writer) error {
	logging.Info("Agent", "Serving MCP on stdio")
	return server.NewStdioServer(s.mcp).Listen(ctx, in, out)
}

func (s *Server) handleRunTestPlan(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	path, err := request.RequireString("config_path")
	if err != nil {
		return mcp.NewToolResultError("config_path parameter is required"), nil
	}

	s.runMu.Lock()
	defer s.runMu.Unlock()

	result, runErr := s.runner.Run(ctx, path)
	if result == nil {
		return mcp.NewToolResultError(fmt.Sprintf("Test plan could not run: %v", runErr)), nil
	}

	s.mu.Lock()
	s.last = result
	s.mu.Unlock()

	data, err := json.MarshalIndent(result, "", "  ")
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Failed to format test results: %v", err)), nil
	}
	if runErr != nil {
		return mcp.NewToolResultError(fmt.Sprintf("%v\n%s", runErr, data)), nil
	}
	return mcp.NewToolResultText(string(data)), nil
}

type planSummary struct {
	Path      string            `json:"path"`
	Runtime   string            `json:"runtime"`
	Scenarios []scenarioSummary `json:"scenarios"`
}

type scenarioSummary struct {
	Name         string   `json:"name"`
	Nodes        []string `json:"nodes"`
	TestPackages []string `json:"test_packages"`
	SetupCount   int      `json:"setup_packages"`
	TimeoutSecs  uint64   `json:"timeout_secs"`
}

func (s *Server) handleValidateTestPlan(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	path, err := request.RequireString("config_path")
	if err != nil {
		return mcp.NewToolResultError("config_path parameter is required"), nil
	}

	plan, err := config.Load(path)
	if err != nil {
		if config.IsValidationError(err) {
			return mcp.NewToolResultError(fmt.Sprintf("Validation failed: %v", err)), nil
		}
		return mcp.NewToolResultError(fmt.Sprintf("Failed to load test plan: %v", err)), nil
	}

	summary := planSummary{Path: path, Runtime: "fetch " + plan.Runtime.FetchVersion}
	if plan.Runtime.IsLocal() {
		summary.Runtime = "compile " + plan.Runtime.RepoPath
	}
	for _, sc := range plan.Scenarios {
		summary.Scenarios = append(summary.Scenarios, scenarioSummary{
			Name:         sc.Name,
			Nodes:        sc.NodeNames(),
			TestPackages: sc.TestNames(),
			SetupCount:   len(sc.SetupPackagePaths),
			TimeoutSecs:  sc.TimeoutSecs,
		})
	}

	data, err := json.MarshalIndent(summary, "", "  ")
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Failed to format validation result: %v", err)), nil
	}
	return mcp.NewToolResultText(string(data)), nil
}

func (s *Server) handleGetLastResult(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	s.mu.Lock()
	last := s.last
	s.mu.Unlock()

	if last == nil {
		return mcp.NewToolResultText("No test results available. Run run_test_plan first."), nil
	}
	data, err := json.MarshalIndent(last, "", "  ")
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Failed to format test results: %v", err)), nil
	}
	return mcp.NewToolResultText(string(data)), nil
}
