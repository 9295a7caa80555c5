// Package agent exposes the test runner to AI assistants as an MCP server
// over stdio.
//
// Tools:
//   - run_test_plan: run a test plan and return the suite result as JSON
//   - validate_test_plan: load and validate a plan without running it
//   - get_last_result: return the result of the previous run
package agent
