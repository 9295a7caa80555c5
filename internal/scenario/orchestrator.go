package scenario

import (
	"context"
	"fmt"
	"net"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"noderig/internal/build"
	"noderig/internal/cleanup"
	"noderig/internal/config"
	"noderig/internal/message"
	"noderig/internal/netplane"
	"noderig/internal/node"
	"noderig/internal/packages"
	"noderig/internal/reporting"
	"noderig/internal/tester"
	"noderig/pkg/logging"
)

// BootWaiter waits until a node answers.
type BootWaiter interface {
	AwaitBoot(ctx context.Context, port, maxAttempts int) error
}

// PackageLoader pushes packages into a booted node.
type PackageLoader interface {
	LoadSetups(ctx context.Context, setupPaths []string, port int) error
	LoadTests(ctx context.Context, testPackages []config.TestPackage, port int) error
}

// TestRunner drives a distributed run and interprets the master's verdict.
type TestRunner interface {
	RunDistributed(ctx context.Context, testNames []string, ports []int, nodeNames []string, timeoutSecs uint64) error
}

// NetworkPlane simulates the network between nodes until ctx ends.
type NetworkPlane interface {
	Serve(ctx context.Context, ln net.Listener) error
}

type clientRunner struct {
	client *message.Client
}

func (r clientRunner) RunDistributed(ctx context.Context, testNames []string, ports []int, nodeNames []string, timeoutSecs uint64) error {
	return tester.RunDistributed(ctx, r.client, testNames, ports, nodeNames, timeoutSecs)
}

// Outcome describes a finished scenario, passed or not.
type Outcome struct {
	RunID      string
	Terminated int
}

// Orchestrator runs single scenarios. Its fields are configuration only, so
// a copy is an independent orchestrator.
type Orchestrator struct {
	RuntimePath string

	// Builder compiles packages. When nil, each scenario's configured build
	// command is used.
	Builder         build.Builder
	Launcher        node.Launcher
	Boot            BootWaiter
	Loader          PackageLoader
	Runner          TestRunner
	NewNetworkPlane func(config.Defects) NetworkPlane
	Reporter        reporting.Reporter

	BootAttempts   int
	TerminateGrace time.Duration
	// Detached starts every node in its own process group.
	Detached bool
	// HandleSignals tears the scenario down on SIGINT or SIGTERM.
	HandleSignals bool
}

// NewOrchestrator returns an orchestrator wired to real nodes through client.
func NewOrchestrator(runtimePath string, client *message.Client, reporter reporting.Reporter) *Orchestrator {
	return &Orchestrator{
		RuntimePath: runtimePath,
		Launcher:    node.RuntimeLauncher{},
		Boot:        node.NewBootWaiter(client),
		Loader:      packages.NewLoader(client),
		Runner:      clientRunner{client: client},
		NewNetworkPlane: func(d config.Defects) NetworkPlane {
			return netplane.NewRouter(d)
		},
		Reporter:       reporter,
		BootAttempts:   node.DefaultBootAttempts,
		TerminateGrace: node.DefaultTerminateGrace,
		Detached:       true,
		HandleSignals:  true,
	}
}

// Run executes one scenario. Supervision (cleanup worker, signal bridge and
// network plane) is started first and torn down exactly once before Run
// returns. The returned error is the scenario's own failure; teardown
// problems are only logged.
func (o *Orchestrator) Run(ctx context.Context, sc config.Scenario) (Outcome, error) {
	out := Outcome{RunID: uuid.NewString()}
	o.Reporter.ReportScenarioStart(sc.Name, out.RunID, len(sc.Nodes))
	logging.Info("Scenario", "Starting scenario %q (run %s) with %d node(s)", sc.Name, out.RunID, len(sc.Nodes))

	scope, cancel := context.WithCancel(ctx)
	defer cancel()
	g, gctx := errgroup.WithContext(scope)

	worker := cleanup.NewWorker(o.TerminateGrace)
	g.Go(func() error { return worker.Run(gctx) })

	if o.HandleSignals {
		bridge := cleanup.NewSignalBridge()
		g.Go(func() error { return bridge.Run(gctx) })
	}

	var runErr error
	ln, err := net.Listen("tcp", fmt.Sprintf("localhost:%d", sc.NetworkRouter.Port))
	if err != nil {
		runErr = inPhase(reporting.PhaseLaunch, fmt.Errorf("failed to bind network plane port %d: %w", sc.NetworkRouter.Port, err))
	} else {
		plane := o.NewNetworkPlane(sc.NetworkRouter.Defects)
		g.Go(func() error { return plane.Serve(gctx, ln) })
		runErr = o.execute(gctx, sc, worker)
	}

	o.Reporter.ReportPhase(sc.Name, reporting.PhaseTeardown)
	cancel()
	waitErr := g.Wait()
	out.Terminated = worker.Terminated()
	o.Reporter.ReportTeardown(sc.Name, out.Terminated)
	logging.Info("Scenario", "Scenario %q torn down, %d node(s) terminated", sc.Name, out.Terminated)

	if waitErr != nil {
		if runErr == nil || isCancellation(runErr) {
			// A supervisor stopped the scenario: report why.
			runErr = inPhase(FailedPhase(runErr), waitErr)
		} else {
			logging.Warn("Scenario", "Supervision ended with error during teardown: %v", waitErr)
		}
	}

	if runErr != nil {
		logging.Error("Scenario", runErr, "Scenario %q failed", sc.Name)
	}
	return out, runErr
}

func (o *Orchestrator) execute(ctx context.Context, sc config.Scenario, worker *cleanup.Worker) error {
	o.Reporter.ReportPhase(sc.Name, reporting.PhaseBuild)
	if err := o.buildAll(ctx, sc); err != nil {
		return inPhase(reporting.PhaseBuild, err)
	}

	o.Reporter.ReportPhase(sc.Name, reporting.PhaseLaunch)
	ports, err := o.launchAll(ctx, sc, worker)
	if err != nil {
		return inPhase(reporting.PhaseLaunch, err)
	}

	o.Reporter.ReportPhase(sc.Name, reporting.PhaseBoot)
	for _, port := range ports {
		if err := o.Boot.AwaitBoot(ctx, port, o.BootAttempts); err != nil {
			return inPhase(reporting.PhaseBoot, err)
		}
		logging.Info("Scenario", "Node on port %d booted", port)
	}

	o.Reporter.ReportPhase(sc.Name, reporting.PhaseLoad)
	for _, port := range ports {
		if err := o.Loader.LoadSetups(ctx, sc.SetupPackagePaths, port); err != nil {
			return inPhase(reporting.PhaseLoad, err)
		}
	}
	if err := o.Loader.LoadTests(ctx, sc.TestPackages, sc.Master().Port); err != nil {
		return inPhase(reporting.PhaseLoad, err)
	}

	o.Reporter.ReportPhase(sc.Name, reporting.PhaseRun)
	err = o.Runner.RunDistributed(ctx, sc.TestNames(), ports, sc.NodeNames(), sc.TimeoutSecs)
	return inPhase(reporting.PhaseRun, err)
}

func (o *Orchestrator) buildAll(ctx context.Context, sc config.Scenario) error {
	builder := o.Builder
	if builder == nil {
		builder = build.NewCommandBuilder(sc.PackageBuildCommand)
	}
	for _, path := range sc.SetupPackagePaths {
		if err := builder.Build(ctx, path, sc.PackageBuildVerbose); err != nil {
			return err
		}
	}
	for _, tp := range sc.TestPackages {
		if err := builder.Build(ctx, tp.Path, sc.PackageBuildVerbose); err != nil {
			return err
		}
	}
	return nil
}

// launchAll starts every node in order and hands each to worker. The first
// port returned is the master's.
func (o *Orchestrator) launchAll(ctx context.Context, sc config.Scenario, worker *cleanup.Worker) ([]int, error) {
	ports := make([]int, 0, len(sc.Nodes))
	for _, n := range sc.Nodes {
		home, err := node.PrepareHome(n.Home)
		if err != nil {
			return nil, err
		}

		proc, err := o.Launcher.Launch(ctx, node.LaunchSpec{
			RuntimePath:      o.RuntimePath,
			Home:             home,
			Port:             n.Port,
			NetworkPlanePort: sc.NetworkRouter.Port,
			Args:             node.Args(n),
			Verbose:          n.RuntimeVerbose,
			Detached:         o.Detached,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to launch node %s on port %d: %w", n.Name, n.Port, err)
		}
		if err := worker.Record(proc); err != nil {
			proc.Terminate(o.TerminateGrace)
			return nil, err
		}
		logging.Info("Scenario", "Launched node %s (pid %d) on port %d", n.Name, proc.PID, n.Port)
		ports = append(ports, n.Port)
	}
	return ports, nil
}
