package cmd

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"noderig/internal/agent"
	"noderig/internal/message"
	"noderig/internal/reporting"
	"noderig/internal/scenario"
)

// DefaultPlanPath is the test plan used when none is given.
const DefaultPlanPath = "tests.yaml"

type runTestsOptions struct {
	verbose   bool
	debug     bool
	output    string
	reportDir string
	mcpServer bool
}

func newRunTestsCmd() *cobra.Command {
	opts := &runTestsOptions{}

	cmd := &cobra.Command{
		Use:   "run-tests [PLAN]",
		Short: "Run the scenarios of a test plan",
		Long: `Run every scenario of a test plan (default: tests.yaml).

For each scenario the packages are built, the nodes are launched and
waited on, setup packages are installed on every node, test packages are
loaded into the first (master) node and the tests are run across all
nodes. The nodes are always torn down afterwards, also when the scenario
fails or the run is interrupted.

Scenarios run in order and the run stops at the first failing scenario.

In MCP server mode (--mcp-server) the command instead serves the
run_test_plan, validate_test_plan and get_last_result tools over stdio.`,
		Example: `  noderig run-tests
  noderig run-tests ./tests/chess.yaml --verbose
  noderig run-tests --output json > result.json
  noderig run-tests --report ./reports
  noderig run-tests --mcp-server`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			planPath := DefaultPlanPath
			if len(args) == 1 {
				planPath = args[0]
			}
			return runTests(cmd.Context(), cmd.OutOrStdout(), planPath, opts)
		},
	}

	cmd.Flags().BoolVar(&opts.verbose, "verbose", false, "Show per-phase progress")
	cmd.Flags().BoolVar(&opts.debug, "debug", false, "Enable debug logging")
	cmd.Flags().StringVar(&opts.output, "output", string(reporting.FormatConsole), "Output format (console, quiet, json)")
	cmd.Flags().StringVar(&opts.reportDir, "report", "", "Directory to save a detailed JSON report in")
	cmd.Flags().BoolVar(&opts.mcpServer, "mcp-server", false, "Run as MCP server (stdio transport)")

	cmd.MarkFlagsMutuallyExclusive("mcp-server", "output")
	cmd.MarkFlagsMutuallyExclusive("mcp-server", "report")

	_ = cmd.RegisterFlagCompletionFunc("output", func(*cobra.Command, []string, string) ([]string, cobra.ShellCompDirective) {
		return []string{"console", "quiet", "json"}, cobra.ShellCompDirectiveDefault
	})

	return cmd
}

func runTests(ctx context.Context, out io.Writer, planPath string, opts *runTestsOptions) error {
	if ctx == nil {
		ctx = context.Background()
	}
	client := message.NewClient()

	if opts.mcpServer {
		// stdout carries the protocol, so nothing else may write to it.
		driver := scenario.NewDriver(client, reporting.NewQuietReporter(io.Discard))
		driver.Orchestrator.HandleSignals = false

		ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
		defer stop()

		return agent.NewServer(driver, rootCmd.Version).Serve(ctx, os.Stdin, os.Stdout)
	}

	reporter, err := reporting.New(reporting.Format(opts.output), out, opts.verbose, opts.reportDir)
	if err != nil {
		return err
	}

	driver := scenario.NewDriver(client, reporter)
	suite, err := driver.Run(ctx, planPath)
	if err != nil {
		return err
	}
	if !suite.Passed() {
		return fmt.Errorf("test plan %s failed", planPath)
	}
	return nil
}
