package cleanup

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"noderig/pkg/logging"
)

// ErrInterrupted is returned by the signal bridge when the run is
// interrupted from outside.
var ErrInterrupted = errors.New("interrupted")

// SignalBridge turns an external interrupt into scenario cancellation.
type SignalBridge struct {
	sigs chan os.Signal
}

// NewSignalBridge starts listening for sigs right away; SIGINT and SIGTERM
// when none are given.
func NewSignalBridge(sigs ...os.Signal) *SignalBridge {
	if len(sigs) == 0 {
		sigs = []os.Signal{os.Interrupt, syscall.SIGTERM}
	}
	b := &SignalBridge{sigs: make(chan os.Signal, 1)}
	signal.Notify(b.sigs, sigs...)
	return b
}

// Run returns ErrInterrupted when a signal arrives and nil once ctx ends.
// Either way it stops listening.
func (b *SignalBridge) Run(ctx context.Context) error {
	defer signal.Stop(b.sigs)
	select {
	case sig := <-b.sigs:
		logging.Warn("Cleanup", "Received %s, tearing down", sig)
		return fmt.Errorf("%w by %s", ErrInterrupted, sig)
	case <-ctx.Done():
		return nil
	}
}
