// Package reporting presents scenario and suite results.
package reporting

import (
	"time"
)

// Result is the outcome of a scenario or suite.
type Result string

const (
	// ResultPassed means the master returned a Pass verdict.
	ResultPassed Result = "PASSED"
	// ResultFailed means a test failed on the nodes.
	ResultFailed Result = "FAILED"
	// ResultError means the scenario could not complete: a build, launch,
	// boot, transport or protocol error.
	ResultError Result = "ERROR"
	// ResultSkipped means the scenario never ran because an earlier one
	// failed.
	ResultSkipped Result = "SKIPPED"
)

// Phase is a step of the scenario lifecycle.
type Phase string

const (
	PhaseBuild    Phase = "build"
	PhaseLaunch   Phase = "launch"
	PhaseBoot     Phase = "boot"
	PhaseLoad     Phase = "load"
	PhaseRun      Phase = "run"
	PhaseTeardown Phase = "teardown"
)

// ScenarioResult is the outcome of one scenario.
type ScenarioResult struct {
	Name  string `json:"name"`
	RunID string `json:"run_id,omitempty"`
	Nodes int    `json:"nodes"`

	Result Result `json:"result"`
	// Phase is the phase that failed; empty on success.
	Phase Phase  `json:"phase,omitempty"`
	Error string `json:"error,omitempty"`

	// Terminated is the number of node processes stopped during teardown.
	Terminated int `json:"terminated"`

	StartTime time.Time     `json:"start_time"`
	EndTime   time.Time     `json:"end_time"`
	Duration  time.Duration `json:"duration"`
}

// SuiteResult is the outcome of a whole test plan.
type SuiteResult struct {
	PlanPath string `json:"plan_path"`

	TotalScenarios   int `json:"total_scenarios"`
	PassedScenarios  int `json:"passed_scenarios"`
	FailedScenarios  int `json:"failed_scenarios"`
	ErrorScenarios   int `json:"error_scenarios"`
	SkippedScenarios int `json:"skipped_scenarios"`

	StartTime time.Time     `json:"start_time"`
	EndTime   time.Time     `json:"end_time"`
	Duration  time.Duration `json:"duration"`

	ScenarioResults []ScenarioResult `json:"scenario_results"`
}

// Add appends r and updates the counters.
func (s *SuiteResult) Add(r ScenarioResult) {
	s.ScenarioResults = append(s.ScenarioResults, r)
	s.TotalScenarios++
	switch r.Result {
	case ResultPassed:
		s.PassedScenarios++
	case ResultFailed:
		s.FailedScenarios++
	case ResultError:
		s.ErrorScenarios++
	case ResultSkipped:
		s.SkippedScenarios++
	}
}

// Passed reports whether no scenario failed or errored.
func (s *SuiteResult) Passed() bool {
	return s.FailedScenarios == 0 && s.ErrorScenarios == 0
}

// Reporter receives progress and results as a plan runs.
type Reporter interface {
	// ReportStart is called once before the first scenario.
	ReportStart(planPath string, scenarios int)
	// ReportScenarioStart is called when a scenario begins.
	ReportScenarioStart(name, runID string, nodes int)
	// ReportPhase is called as a scenario enters each phase.
	ReportPhase(scenario string, phase Phase)
	// ReportTeardown is called exactly once per scenario, after teardown.
	ReportTeardown(scenario string, terminated int)
	// ReportScenarioResult is called when a scenario completes.
	ReportScenarioResult(result ScenarioResult)
	// ReportSuiteResult is called when the plan completes.
	ReportSuiteResult(result SuiteResult)
}
