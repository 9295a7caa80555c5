package node

import (
	"context"
	"errors"
	"fmt"
	"time"

	"noderig/internal/message"
	"noderig/pkg/logging"
)

const (
	// DefaultBootAttempts is the number of probes per node.
	DefaultBootAttempts = 5
	// DefaultBootInterval is the fixed pause between probes.
	DefaultBootInterval = time.Second

	probePath         = "/tester:sys/pkg"
	probeResponseWait = 15 * time.Second
)

// ErrBootCancelled is returned when a boot wait is cancelled.
var ErrBootCancelled = errors.New("boot wait cancelled")

// BootError is returned when a node never answered a probe.
type BootError struct {
	Port     int
	Attempts int
}

func (e *BootError) Error() string {
	return fmt.Sprintf("could not connect to node on port %d after %d attempts", e.Port, e.Attempts)
}

// BootWaiter probes nodes until they answer.
type BootWaiter struct {
	Client   *message.Client
	Interval time.Duration
}

// NewBootWaiter returns a waiter with the default one second interval.
func NewBootWaiter(client *message.Client) *BootWaiter {
	return &BootWaiter{Client: client, Interval: DefaultBootInterval}
}

// AwaitBoot sends a directory-listing probe to the node on port up to
// maxAttempts times, pausing Interval between attempts. It returns as soon as
// one probe is answered, ErrBootCancelled if ctx ends while waiting, and a
// *BootError once the attempts are used up.
func (w *BootWaiter) AwaitBoot(ctx context.Context, port, maxAttempts int) error {
	url := message.NodeURL(port)
	probe := message.Request{
		Process:      message.VFSProcess,
		ResponseWait: probeResponseWait,
		Body:         message.ReadDir(probePath),
	}

	for attempt := 1; attempt <= maxAttempts; attempt++ {
		if ctx.Err() != nil {
			return ErrBootCancelled
		}

		_, err := w.Client.Call(ctx, url, probe)
		if err == nil {
			logging.Debug("BootWaiter", "Node on port %d answered probe %d", port, attempt)
			return nil
		}
		if ctx.Err() != nil {
			return ErrBootCancelled
		}
		logging.Debug("BootWaiter", "Node on port %d not ready (attempt %d/%d): %v", port, attempt, maxAttempts, err)

		if attempt == maxAttempts {
			break
		}

		timer := time.NewTimer(w.Interval)
		select {
		case <-timer.C:
		case <-ctx.Done():
			timer.Stop()
			return ErrBootCancelled
		}
	}
	return &BootError{Port: port, Attempts: maxAttempts}
}
