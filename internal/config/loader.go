package config

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/hashicorp/go-version"
	"gopkg.in/yaml.v3"
)

// For mocking in tests
var osUserHomeDir = os.UserHomeDir

// ValidationError collects every problem found in a plan.
type ValidationError struct {
	Problems []string
}

func (e *ValidationError) Error() string {
	return "invalid test plan: " + strings.Join(e.Problems, "; ")
}

// Load reads, expands and validates the test plan at path.
func Load(path string) (*TestPlan, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read test plan %s: %w", path, err)
	}

	plan, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("failed to parse test plan %s: %w", path, err)
	}
	return plan, nil
}

// Parse decodes a plan from YAML, expands home paths, applies defaults and
// validates the result.
func Parse(data []byte) (*TestPlan, error) {
	var plan TestPlan
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&plan); err != nil {
		return nil, err
	}

	plan.ExpandHomePaths()
	plan.applyDefaults()

	if err := plan.Validate(); err != nil {
		return nil, err
	}
	return &plan, nil
}

func (p *TestPlan) applyDefaults() {
	if p.Runtime.Repository == "" {
		p.Runtime.Repository = DefaultRuntimeRepository
	}
	if p.Runtime.Binary == "" {
		p.Runtime.Binary = DefaultRuntimeBinary
	}
	for i := range p.Scenarios {
		s := &p.Scenarios[i]
		if s.Name == "" {
			s.Name = fmt.Sprintf("scenario-%d", i+1)
		}
		if s.PackageBuildCommand == "" {
			s.PackageBuildCommand = DefaultBuildCommand
		}
	}
}

// ExpandHomePaths replaces a leading "~/" in every path of the plan.
func (p *TestPlan) ExpandHomePaths() {
	p.Runtime.RepoPath = expandHome(p.Runtime.RepoPath)
	for i := range p.Scenarios {
		s := &p.Scenarios[i]
		for j := range s.SetupPackagePaths {
			s.SetupPackagePaths[j] = expandHome(s.SetupPackagePaths[j])
		}
		for j := range s.TestPackages {
			s.TestPackages[j].Path = expandHome(s.TestPackages[j].Path)
		}
		for j := range s.Nodes {
			s.Nodes[j].Home = expandHome(s.Nodes[j].Home)
		}
	}
}

func expandHome(path string) string {
	if !strings.HasPrefix(path, "~/") {
		return path
	}
	home, err := osUserHomeDir()
	if err != nil {
		return path
	}
	return filepath.Join(home, path[2:])
}

// Validate checks the plan for configuration errors without touching the
// filesystem.
func (p *TestPlan) Validate() error {
	var problems []string
	add := func(format string, args ...interface{}) {
		problems = append(problems, fmt.Sprintf(format, args...))
	}

	switch {
	case p.Runtime.FetchVersion == "" && p.Runtime.RepoPath == "":
		add("runtime: one of fetch_version or repo_path is required")
	case p.Runtime.FetchVersion != "" && p.Runtime.RepoPath != "":
		add("runtime: fetch_version and repo_path are mutually exclusive")
	case p.Runtime.FetchVersion != "":
		if _, err := version.NewVersion(p.Runtime.FetchVersion); err != nil {
			add("runtime: invalid fetch_version %q: %v", p.Runtime.FetchVersion, err)
		}
	}

	if len(p.Scenarios) == 0 {
		add("tests: at least one scenario is required")
	}

	for i, s := range p.Scenarios {
		prefix := fmt.Sprintf("tests[%d]", i)
		if len(s.Nodes) == 0 {
			add("%s: at least one node is required", prefix)
		}
		if !validPort(s.NetworkRouter.Port) {
			add("%s.network_router: invalid port %d", prefix, s.NetworkRouter.Port)
		}
		if s.NetworkRouter.Defects.DropRate < 0 || s.NetworkRouter.Defects.DropRate > 1 {
			add("%s.network_router: drop_rate must be within [0, 1]", prefix)
		}
		if s.NetworkRouter.Defects.Latency < 0 {
			add("%s.network_router: latency must not be negative", prefix)
		}

		ports := map[int]bool{s.NetworkRouter.Port: true}
		for j, n := range s.Nodes {
			nodePrefix := fmt.Sprintf("%s.nodes[%d]", prefix, j)
			if !validPort(n.Port) {
				add("%s: invalid port %d", nodePrefix, n.Port)
			} else if ports[n.Port] {
				add("%s: port %d is already used in this scenario", nodePrefix, n.Port)
			}
			ports[n.Port] = true
			if n.Home == "" {
				add("%s: home is required", nodePrefix)
			}
			if n.Name == "" {
				add("%s: fake_node_name is required", nodePrefix)
			}
		}

		for j, tp := range s.TestPackages {
			if tp.Path == "" {
				add("%s.test_packages[%d]: path is required", prefix, j)
			}
		}
		for j, sp := range s.SetupPackagePaths {
			if sp == "" {
				add("%s.setup_package_paths[%d]: empty path", prefix, j)
			}
		}
	}

	if len(problems) > 0 {
		return &ValidationError{Problems: problems}
	}
	return nil
}

func validPort(port int) bool {
	return port > 0 && port <= 65535
}

// IsValidationError reports whether err is a configuration error.
func IsValidationError(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}
