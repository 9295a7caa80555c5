//go:build unix

package node

import (
	"os"
	"os/exec"
	"syscall"
)

func setProcessGroup(cmd *exec.Cmd) {
	if cmd.SysProcAttr == nil {
		cmd.SysProcAttr = &syscall.SysProcAttr{}
	}
	cmd.SysProcAttr.Setpgid = true
}

func terminate(proc *os.Process, group bool) error {
	if group {
		return syscall.Kill(-proc.Pid, syscall.SIGTERM)
	}
	return proc.Signal(syscall.SIGTERM)
}

func kill(proc *os.Process, group bool) error {
	if group {
		return syscall.Kill(-proc.Pid, syscall.SIGKILL)
	}
	return proc.Kill()
}
