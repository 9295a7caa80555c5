// Package cleanup owns node processes for the lifetime of a scenario and
// terminates them when the scenario ends.
package cleanup

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"noderig/internal/node"
	"noderig/pkg/logging"
)

// ErrStopped is returned by Record once the worker has torn down.
var ErrStopped = errors.New("cleanup worker stopped")

// Terminator is a process the worker can stop.
type Terminator interface {
	Terminate(grace time.Duration) error
}

// Worker records node processes and terminates all of them once its context
// ends. It is the only owner of the processes recorded with it.
type Worker struct {
	grace   time.Duration
	records chan Terminator
	done    chan struct{}

	terminated atomic.Int32
}

// NewWorker returns a worker that gives each process grace to exit before
// killing it.
func NewWorker(grace time.Duration) *Worker {
	if grace <= 0 {
		grace = node.DefaultTerminateGrace
	}
	return &Worker{
		grace:   grace,
		records: make(chan Terminator),
		done:    make(chan struct{}),
	}
}

// Record hands p to the worker. If the worker has already stopped, p is not
// taken and ErrStopped is returned; the caller still owns p.
func (w *Worker) Record(p Terminator) error {
	select {
	case w.records <- p:
		return nil
	case <-w.done:
		return ErrStopped
	}
}

// Run accepts records until ctx ends, then terminates every recorded process
// and returns. Termination failures are logged.
func (w *Worker) Run(ctx context.Context) error {
	var procs []Terminator
loop:
	for {
		select {
		case p := <-w.records:
			procs = append(procs, p)
		case <-ctx.Done():
			break loop
		}
	}

	logging.Info("Cleanup", "Tearing down %d node(s)", len(procs))
	var wg sync.WaitGroup
	for _, p := range procs {
		wg.Add(1)
		go func(p Terminator) {
			defer wg.Done()
			if err := p.Terminate(w.grace); err != nil {
				logging.Error("Cleanup", err, "Failed to terminate node")
				return
			}
			w.terminated.Add(1)
		}(p)
	}
	wg.Wait()

	close(w.done)
	logging.Info("Cleanup", "Done tearing down")
	return nil
}

// Terminated is the number of processes stopped cleanly. It is final once
// Run has returned.
func (w *Worker) Terminated() int {
	return int(w.terminated.Load())
}
