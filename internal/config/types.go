package config

import (
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

const (
	DefaultRuntimeRepository = "kinode-dao/kinode"
	DefaultRuntimeBinary     = "kinode"
	DefaultBuildCommand      = "kit build"
)

// TestPlan is the top-level test plan. It is immutable once loaded.
type TestPlan struct {
	Runtime             Runtime    `yaml:"runtime"`
	RuntimeBuildRelease bool       `yaml:"runtime_build_release,omitempty"`
	RuntimeBuildVerbose bool       `yaml:"runtime_build_verbose,omitempty"`
	Scenarios           []Scenario `yaml:"tests"`
}

// Runtime selects the node runtime binary: either a published version to
// fetch or a local source checkout to compile.
type Runtime struct {
	FetchVersion string `yaml:"fetch_version,omitempty"`
	RepoPath     string `yaml:"repo_path,omitempty"`
	// Repository is the GitHub owner/name published versions come from.
	Repository string `yaml:"repository,omitempty"`
	// Binary is the executable name inside a release or build output.
	Binary string `yaml:"binary,omitempty"`
}

// IsLocal reports whether the runtime is compiled from a local checkout.
func (r Runtime) IsLocal() bool {
	return r.RepoPath != ""
}

// Scenario is one independent boot, inject, run and teardown cycle.
type Scenario struct {
	Name                string        `yaml:"name,omitempty"`
	SetupPackagePaths   []string      `yaml:"setup_package_paths,omitempty"`
	TestPackages        []TestPackage `yaml:"test_packages"`
	Nodes               []NodeSpec    `yaml:"nodes"`
	NetworkRouter       NetworkRouter `yaml:"network_router"`
	TimeoutSecs         uint64        `yaml:"timeout_secs"`
	PackageBuildVerbose bool          `yaml:"package_build_verbose,omitempty"`
	// PackageBuildCommand overrides the command used to build packages.
	PackageBuildCommand string `yaml:"package_build_command,omitempty"`
}

// Master returns the designated master node.
func (s Scenario) Master() NodeSpec {
	return s.Nodes[0]
}

// TestNames returns the package paths in declaration order.
func (s Scenario) TestNames() []string {
	names := make([]string, len(s.TestPackages))
	for i, tp := range s.TestPackages {
		names[i] = tp.Path
	}
	return names
}

// NodeNames returns the node display names in node order.
func (s Scenario) NodeNames() []string {
	names := make([]string, len(s.Nodes))
	for i, n := range s.Nodes {
		names[i] = n.Name
	}
	return names
}

// TestPackage is a package of tests and the capabilities granted to it.
type TestPackage struct {
	Path              string   `yaml:"path"`
	GrantCapabilities []string `yaml:"grant_capabilities,omitempty"`
}

// Name is the package identity: the basename of its path.
func (tp TestPackage) Name() string {
	return filepath.Base(filepath.Clean(tp.Path))
}

// NodeSpec describes one node of a scenario.
type NodeSpec struct {
	Port           int    `yaml:"port"`
	Home           string `yaml:"home"`
	Name           string `yaml:"fake_node_name"`
	RPC            string `yaml:"rpc,omitempty"`
	Password       string `yaml:"password,omitempty"`
	IsTestnet      bool   `yaml:"is_testnet,omitempty"`
	RuntimeVerbose bool   `yaml:"runtime_verbose,omitempty"`
}

// NetworkRouter configures the network plane of a scenario.
type NetworkRouter struct {
	Port    int     `yaml:"port"`
	Defects Defects `yaml:"defects,omitempty"`
}

// Defects are the simulated network faults. The zero value means a perfect
// network.
type Defects struct {
	Latency  time.Duration `yaml:"latency,omitempty"`
	DropRate float64       `yaml:"drop_rate,omitempty"`
}

// None reports whether no fault is simulated.
func (d Defects) None() bool {
	return d.Latency == 0 && d.DropRate == 0
}

// UnmarshalYAML accepts the scalar "None" as well as a mapping.
func (d *Defects) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind == yaml.ScalarNode {
		if strings.EqualFold(node.Value, "none") || node.Value == "" {
			*d = Defects{}
			return nil
		}
		return fmt.Errorf("line %d: unknown defects %q", node.Line, node.Value)
	}

	type plain Defects
	var out plain
	if err := node.Decode(&out); err != nil {
		return err
	}
	*d = Defects(out)
	return nil
}
