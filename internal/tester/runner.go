package tester

import (
	"context"
	"errors"
	"fmt"
	"time"

	"noderig/internal/message"
	"noderig/pkg/logging"
)

const (
	subsystem = "Runner"

	// ResponseWait is the response wait carried by every Run command.
	ResponseWait = 15 * time.Second
)

// RunDistributed issues Run to every worker port and then to the master
// port, the first of ports, and interprets the master's verdict. Workers are
// only checked for a 200 status. The test timeout is enforced by the remote
// coordinator, not locally.
func RunDistributed(ctx context.Context, client *message.Client, testNames []string, ports []int, nodeNames []string, timeoutSecs uint64) error {
	if len(ports) == 0 {
		return fmt.Errorf("no nodes to run tests on")
	}
	masterPort, workerPorts := ports[0], ports[1:]

	req := message.Request{
		Process:      Process,
		ResponseWait: ResponseWait,
		Body: Run{
			InputNodeNames: nodeNames,
			TestNames:      testNames,
			TestTimeout:    timeoutSecs,
		}.Body(),
	}

	for _, port := range workerPorts {
		logging.Debug(subsystem, "Setting up worker node on port %d", port)
		if err := client.CheckStatus(ctx, message.NodeURL(port), req); err != nil {
			return fmt.Errorf("failed to set up worker node on port %d: %w", port, err)
		}
	}

	logging.Info(subsystem, "Running tests...")
	resp, err := client.Call(ctx, message.NodeURL(masterPort), req)
	if err != nil {
		return fmt.Errorf("FAIL: %w", err)
	}

	verdict, err := ParseVerdict(resp.Body)
	if err != nil {
		return fmt.Errorf("FAIL: could not parse verdict from master on port %d: %w", masterPort, err)
	}
	return Interpret(verdict)
}

// Interpret maps a Run verdict to an error. Pass is nil.
func Interpret(v Verdict) error {
	switch v.Kind {
	case VerdictPass:
		logging.Info(subsystem, "PASS")
		return nil
	case VerdictFail:
		if v.Failure == nil {
			return errors.New("FAIL: verdict without failure details")
		}
		return &FailError{Failure: *v.Failure}
	default:
		return ErrUnexpectedResponse
	}
}
