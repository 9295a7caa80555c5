package node

import (
	"fmt"
	"io"
	"os/exec"
	"sync"
	"time"

	"noderig/pkg/logging"
)

// DefaultTerminateGrace is how long a node may take to exit after SIGTERM
// before it is killed.
const DefaultTerminateGrace = 5 * time.Second

// Process is a running node. It is created when the node is launched and is
// never mutated afterwards, except by Terminate.
type Process struct {
	PID  int
	Home string
	Port int

	cmd      *exec.Cmd
	output   io.Closer
	detached bool

	done    chan struct{}
	waitErr error

	closeOnce sync.Once
}

// StartProcess starts cmd and wraps it. output, if not nil, is closed once
// the process has been terminated. A detached process runs in its own
// process group.
func StartProcess(cmd *exec.Cmd, home string, port int, output io.Closer, detached bool) (*Process, error) {
	if detached {
		setProcessGroup(cmd)
	}
	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("failed to start %s: %w", cmd.Path, err)
	}

	p := &Process{
		PID:      cmd.Process.Pid,
		Home:     home,
		Port:     port,
		cmd:      cmd,
		output:   output,
		detached: detached,
		done:     make(chan struct{}),
	}
	go func() {
		p.waitErr = cmd.Wait()
		close(p.done)
	}()
	return p, nil
}

// Done is closed once the process has exited.
func (p *Process) Done() <-chan struct{} {
	return p.done
}

// Exited reports whether the process has exited.
func (p *Process) Exited() bool {
	select {
	case <-p.done:
		return true
	default:
		return false
	}
}

// Terminate asks the node to stop, waits up to grace and then kills it.
// It is safe to call on a process that already exited.
func (p *Process) Terminate(grace time.Duration) error {
	defer p.closeOutput()

	if p.Exited() {
		return nil
	}

	logging.Debug("Process", "Terminating node pid %d (%s)", p.PID, p.Home)
	if err := terminate(p.cmd.Process, p.detached); err != nil && !p.Exited() {
		logging.Warn("Process", "SIGTERM to pid %d failed: %v", p.PID, err)
	}

	select {
	case <-p.done:
		return nil
	case <-time.After(grace):
	}

	logging.Warn("Process", "Node pid %d did not exit within %v, killing", p.PID, grace)
	if err := kill(p.cmd.Process, p.detached); err != nil && !p.Exited() {
		return fmt.Errorf("failed to kill pid %d: %w", p.PID, err)
	}
	<-p.done
	return nil
}

func (p *Process) closeOutput() {
	p.closeOnce.Do(func() {
		if p.output != nil {
			p.output.Close()
		}
	})
}
