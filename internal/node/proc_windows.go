//go:build windows

package node

import (
	"os"
	"os/exec"
)

func setProcessGroup(cmd *exec.Cmd) {}

func terminate(proc *os.Process, group bool) error {
	return proc.Kill()
}

func kill(proc *os.Process, group bool) error {
	return proc.Kill()
}
