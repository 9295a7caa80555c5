package scenario

import (
	"context"
	"errors"
	"net"
	"os/exec"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"noderig/internal/config"
	"noderig/internal/node"
	"noderig/internal/reporting"
)

type fakeBuilder struct {
	mu    sync.Mutex
	built []string
	fail  string
}

func (b *fakeBuilder) Build(_ context.Context, path string, _ bool) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.built = append(b.built, path)
	if path == b.fail {
		return errors.New("build broke")
	}
	return nil
}

// sleepLauncher starts a real long-running process per node.
type sleepLauncher struct {
	mu    sync.Mutex
	specs []node.LaunchSpec
	procs []*node.Process
}

func (l *sleepLauncher) Launch(_ context.Context, spec node.LaunchSpec) (*node.Process, error) {
	proc, err := node.StartProcess(exec.Command("sleep", "30"), spec.Home, spec.Port, nil, spec.Detached)
	if err != nil {
		return nil, err
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	l.specs = append(l.specs, spec)
	l.procs = append(l.procs, proc)
	return proc, nil
}

func (l *sleepLauncher) processes() []*node.Process {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]*node.Process(nil), l.procs...)
}

type fakeBoot struct {
	mu     sync.Mutex
	probed []int
	fail   map[int]error
}

func (b *fakeBoot) AwaitBoot(_ context.Context, port, _ int) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.probed = append(b.probed, port)
	return b.fail[port]
}

type fakeLoader struct {
	mu         sync.Mutex
	setupPorts []int
	testPort   int
	setupErr   error
	testErr    error
}

func (l *fakeLoader) LoadSetups(_ context.Context, _ []string, port int) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.setupPorts = append(l.setupPorts, port)
	return l.setupErr
}

func (l *fakeLoader) LoadTests(_ context.Context, _ []config.TestPackage, port int) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.testPort = port
	return l.testErr
}

type fakeRunner struct {
	calls     int
	ports     []int
	nodeNames []string
	testNames []string
	timeout   uint64
	err       error
}

func (r *fakeRunner) RunDistributed(_ context.Context, testNames []string, ports []int, nodeNames []string, timeoutSecs uint64) error {
	r.calls++
	r.testNames = testNames
	r.ports = ports
	r.nodeNames = nodeNames
	r.timeout = timeoutSecs
	return r.err
}

// idlePlane accepts nothing and stops with its context.
type idlePlane struct{}

func (idlePlane) Serve(ctx context.Context, ln net.Listener) error {
	<-ctx.Done()
	return ln.Close()
}

type recordingReporter struct {
	mu        sync.Mutex
	phases    []reporting.Phase
	teardowns []int
	results   []reporting.ScenarioResult
	suites    []reporting.SuiteResult
}

func (r *recordingReporter) ReportStart(string, int)                 {}
func (r *recordingReporter) ReportScenarioStart(string, string, int) {}

func (r *recordingReporter) ReportPhase(_ string, phase reporting.Phase) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.phases = append(r.phases, phase)
}

func (r *recordingReporter) ReportTeardown(_ string, terminated int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.teardowns = append(r.teardowns, terminated)
}

func (r *recordingReporter) ReportScenarioResult(result reporting.ScenarioResult) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.results = append(r.results, result)
}

func (r *recordingReporter) ReportSuiteResult(result reporting.SuiteResult) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.suites = append(r.suites, result)
}

func freePort(t *testing.T) int {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	port := ln.Addr().(*net.TCPAddr).Port
	require.NoError(t, ln.Close())
	return port
}

type harness struct {
	builder  *fakeBuilder
	launcher *sleepLauncher
	boot     *fakeBoot
	loader   *fakeLoader
	runner   *fakeRunner
	reporter *recordingReporter
	orch     *Orchestrator
}

func newHarness() *harness {
	h := &harness{
		builder:  &fakeBuilder{},
		launcher: &sleepLauncher{},
		boot:     &fakeBoot{fail: map[int]error{}},
		loader:   &fakeLoader{},
		runner:   &fakeRunner{},
		reporter: &recordingReporter{},
	}
	h.orch = &Orchestrator{
		RuntimePath:     "/opt/runtime",
		Builder:         h.builder,
		Launcher:        h.launcher,
		Boot:            h.boot,
		Loader:          h.loader,
		Runner:          h.runner,
		NewNetworkPlane: func(config.Defects) NetworkPlane { return idlePlane{} },
		Reporter:        h.reporter,
		BootAttempts:    5,
		TerminateGrace:  node.DefaultTerminateGrace,
		Detached:        true,
	}
	return h
}

func twoNodeScenario(t *testing.T) config.Scenario {
	t.Helper()
	return config.Scenario{
		Name:              "pair",
		SetupPackagePaths: []string{"/src/setup"},
		TestPackages: []config.TestPackage{
			{Path: "/src/chat_test"},
			{Path: "/src/chess_test"},
		},
		Nodes: []config.NodeSpec{
			{Port: freePort(t), Home: t.TempDir(), Name: "first.dev"},
			{Port: freePort(t), Home: t.TempDir(), Name: "second.dev", IsTestnet: true},
		},
		NetworkRouter: config.NetworkRouter{Port: freePort(t)},
		TimeoutSecs:   30,
	}
}
