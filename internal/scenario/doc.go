// Package scenario runs test plans.
//
// An Orchestrator takes one scenario through its lifecycle: build the
// packages, launch every node, wait for each to boot, load setup and test
// packages, run the tests across all nodes and finally tear everything down.
// Teardown happens exactly once per scenario, whether the scenario passed,
// failed in any phase, or was interrupted.
//
// A Driver loads a plan, resolves the node runtime and runs the plan's
// scenarios in order, stopping at the first failure.
package scenario
