package node

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"

	"github.com/kballard/go-shellquote"

	"noderig/internal/config"
	"noderig/pkg/logging"
)

// stateDirs are the per-node state directories removed before every boot.
var stateDirs = []string{"kernel", "kv", "sqlite", "vfs"}

// LogFileName is the file in a node's home that receives its output.
const LogFileName = "runtime.log"

// LaunchSpec is everything needed to start one node.
type LaunchSpec struct {
	RuntimePath      string
	Home             string
	Port             int
	NetworkPlanePort int
	Args             []string
	Verbose          bool
	Detached         bool
}

// Launcher starts node processes.
type Launcher interface {
	Launch(ctx context.Context, spec LaunchSpec) (*Process, error)
}

// RuntimeLauncher launches the node runtime binary.
type RuntimeLauncher struct{}

// Launch starts the runtime. The process is not bound to ctx: it lives until
// it is terminated explicitly.
func (RuntimeLauncher) Launch(ctx context.Context, spec LaunchSpec) (*Process, error) {
	argv := CommandLine(spec)
	logging.Info("Launcher", "Starting node: %s %s", spec.RuntimePath, shellquote.Join(argv...))

	cmd := exec.Command(spec.RuntimePath, argv...)
	cmd.Dir = spec.Home

	var output io.WriteCloser
	if spec.Verbose {
		cmd.Stdout = os.Stdout
		cmd.Stderr = os.Stderr
	} else {
		f, err := os.OpenFile(filepath.Join(spec.Home, LogFileName), os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0644)
		if err != nil {
			return nil, fmt.Errorf("failed to open node log: %w", err)
		}
		cmd.Stdout = f
		cmd.Stderr = f
		output = f
	}

	proc, err := StartProcess(cmd, spec.Home, spec.Port, output, spec.Detached)
	if err != nil {
		if output != nil {
			output.Close()
		}
		return nil, err
	}
	return proc, nil
}

// CommandLine assembles the runtime's arguments for spec.
func CommandLine(spec LaunchSpec) []string {
	argv := []string{
		spec.Home,
		"--port", strconv.Itoa(spec.Port),
		"--network-router-port", strconv.Itoa(spec.NetworkPlanePort),
	}
	return append(argv, spec.Args...)
}

// Args builds the node-specific runtime flags from a NodeSpec.
func Args(n config.NodeSpec) []string {
	args := []string{"--fake-node-name", n.Name}
	if n.RPC != "" {
		args = append(args, "--rpc", n.RPC)
	}
	if n.Password != "" {
		args = append(args, "--password", n.Password)
	}
	if n.IsTestnet {
		args = append(args, "--testnet")
	}
	return args
}

// PrepareHome creates home if needed, removes any previous node state below
// it and returns its canonical path.
func PrepareHome(home string) (string, error) {
	if err := os.MkdirAll(home, 0755); err != nil {
		return "", fmt.Errorf("failed to create node home %s: %w", home, err)
	}
	abs, err := filepath.Abs(home)
	if err != nil {
		return "", fmt.Errorf("failed to resolve node home %s: %w", home, err)
	}
	canonical, err := filepath.EvalSymlinks(abs)
	if err != nil {
		return "", fmt.Errorf("failed to resolve node home %s: %w", home, err)
	}

	for _, dir := range stateDirs {
		if err := os.RemoveAll(filepath.Join(canonical, dir)); err != nil {
			return "", fmt.Errorf("failed to clear %s in node home %s: %w", dir, canonical, err)
		}
	}
	return canonical, nil
}
