package scenario

import (
	"context"
	"fmt"
	"time"

	"noderig/internal/config"
	"noderig/internal/message"
	"noderig/internal/node"
	"noderig/internal/reporting"
	"noderig/pkg/logging"
)

// RuntimeResolver returns the path of the node runtime binary for plan.
type RuntimeResolver func(ctx context.Context, plan *config.TestPlan) (string, error)

// Driver runs whole test plans.
type Driver struct {
	Resolve RuntimeResolver
	// Orchestrator is the template for every scenario; RuntimePath is filled
	// in per plan.
	Orchestrator *Orchestrator
	Reporter     reporting.Reporter
}

// NewDriver returns a driver talking to real nodes.
func NewDriver(client *message.Client, reporter reporting.Reporter) *Driver {
	return &Driver{
		Resolve:      node.ResolveRuntime,
		Orchestrator: NewOrchestrator("", client, reporter),
		Reporter:     reporter,
	}
}

// Run loads the plan at planPath, resolves the runtime and runs each
// scenario in order. It stops at the first failing scenario and returns its
// error; the remaining scenarios are reported as skipped. The suite result
// is nil only when the plan or runtime could not be prepared.
func (d *Driver) Run(ctx context.Context, planPath string) (*reporting.SuiteResult, error) {
	plan, err := config.Load(planPath)
	if err != nil {
		return nil, err
	}

	runtimePath, err := d.Resolve(ctx, plan)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve node runtime: %w", err)
	}
	logging.Info("Driver", "Using node runtime %s", runtimePath)

	orch := *d.Orchestrator
	orch.RuntimePath = runtimePath
	orch.Reporter = d.Reporter

	suite := &reporting.SuiteResult{PlanPath: planPath, StartTime: time.Now()}
	d.Reporter.ReportStart(planPath, len(plan.Scenarios))

	var firstErr error
	for _, sc := range plan.Scenarios {
		if firstErr != nil {
			skipped := reporting.ScenarioResult{Name: sc.Name, Nodes: len(sc.Nodes), Result: reporting.ResultSkipped}
			suite.Add(skipped)
			d.Reporter.ReportScenarioResult(skipped)
			continue
		}

		start := time.Now()
		out, err := orch.Run(ctx, sc)
		end := time.Now()

		result := reporting.ScenarioResult{
			Name:       sc.Name,
			RunID:      out.RunID,
			Nodes:      len(sc.Nodes),
			Result:     Classify(err),
			Terminated: out.Terminated,
			StartTime:  start,
			EndTime:    end,
			Duration:   end.Sub(start),
		}
		if err != nil {
			result.Phase = FailedPhase(err)
			result.Error = err.Error()
			firstErr = fmt.Errorf("scenario %q failed: %w", sc.Name, err)
		}
		suite.Add(result)
		d.Reporter.ReportScenarioResult(result)
	}

	suite.EndTime = time.Now()
	suite.Duration = suite.EndTime.Sub(suite.StartTime)
	d.Reporter.ReportSuiteResult(*suite)
	return suite, firstErr
}
