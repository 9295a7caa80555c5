package scenario

import (
	"context"
	"errors"

	"noderig/internal/node"
	"noderig/internal/reporting"
	"noderig/internal/tester"
)

// PhaseError records the lifecycle phase a scenario failed in.
type PhaseError struct {
	Phase reporting.Phase
	Err   error
}

func (e *PhaseError) Error() string {
	return e.Err.Error()
}

func (e *PhaseError) Unwrap() error {
	return e.Err
}

func inPhase(phase reporting.Phase, err error) error {
	if err == nil {
		return nil
	}
	return &PhaseError{Phase: phase, Err: err}
}

// FailedPhase returns the phase err happened in, or "" if unknown.
func FailedPhase(err error) reporting.Phase {
	var pe *PhaseError
	if errors.As(err, &pe) {
		return pe.Phase
	}
	return ""
}

// Classify maps a scenario error to a result. A failing test is a failure;
// anything else that stopped the scenario is an error.
func Classify(err error) reporting.Result {
	if err == nil {
		return reporting.ResultPassed
	}
	var fail *tester.FailError
	if errors.As(err, &fail) {
		return reporting.ResultFailed
	}
	return reporting.ResultError
}

func isCancellation(err error) bool {
	return errors.Is(err, context.Canceled) || errors.Is(err, node.ErrBootCancelled)
}
