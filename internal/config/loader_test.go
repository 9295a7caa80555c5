package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const validPlan = `
runtime:
  repo_path: ~/src/kinode
runtime_build_release: true
tests:
  - setup_package_paths:
      - ~/pkgs/chat
    test_packages:
      - path: ~/pkgs/chat_test/
        grant_capabilities: ["chat:chat:template.os"]
    timeout_secs: 5
    network_router:
      port: 9001
      defects: None
    nodes:
      - port: 8080
        home: ~/nodes/first
        fake_node_name: first.dev
        password: secret
      - port: 8081
        home: /tmp/nodes/second
        fake_node_name: second.dev
        is_testnet: true
`

func withHome(t *testing.T, home string) {
	t.Helper()
	orig := osUserHomeDir
	osUserHomeDir = func() (string, error) { return home, nil }
	t.Cleanup(func() { osUserHomeDir = orig })
}

func TestParseValidPlan(t *testing.T) {
	withHome(t, "/home/tester")

	plan, err := Parse([]byte(validPlan))
	require.NoError(t, err)

	assert.Equal(t, "/home/tester/src/kinode", plan.Runtime.RepoPath)
	assert.True(t, plan.Runtime.IsLocal())
	assert.True(t, plan.RuntimeBuildRelease)
	assert.Equal(t, DefaultRuntimeBinary, plan.Runtime.Binary)
	assert.Equal(t, DefaultRuntimeRepository, plan.Runtime.Repository)

	require.Len(t, plan.Scenarios, 1)
	s := plan.Scenarios[0]
	assert.Equal(t, "scenario-1", s.Name)
	assert.Equal(t, DefaultBuildCommand, s.PackageBuildCommand)
	assert.Equal(t, []string{"/home/tester/pkgs/chat"}, s.SetupPackagePaths)
	assert.Equal(t, "/home/tester/pkgs/chat_test", s.TestPackages[0].Path)
	assert.Equal(t, "chat_test", s.TestPackages[0].Name())
	assert.Equal(t, "/home/tester/nodes/first", s.Nodes[0].Home)
	assert.Equal(t, "/tmp/nodes/second", s.Nodes[1].Home)
	assert.True(t, s.NetworkRouter.Defects.None())
	assert.Equal(t, 8080, s.Master().Port)
	assert.Equal(t, []string{"first.dev", "second.dev"}, s.NodeNames())
	assert.Equal(t, []string{"/home/tester/pkgs/chat_test"}, s.TestNames())
}

func TestParseDefectsMapping(t *testing.T) {
	plan, err := Parse([]byte(`
runtime:
  fetch_version: "0.9.4"
tests:
  - name: lossy
    timeout_secs: 1
    network_router:
      port: 9001
      defects:
        latency: 50ms
        drop_rate: 0.25
    nodes:
      - {port: 8080, home: /tmp/a, fake_node_name: a.dev}
`))
	require.NoError(t, err)
	d := plan.Scenarios[0].NetworkRouter.Defects
	assert.Equal(t, 50*time.Millisecond, d.Latency)
	assert.Equal(t, 0.25, d.DropRate)
	assert.False(t, d.None())
}

func TestParseInvalidPlans(t *testing.T) {
	tests := []struct {
		name string
		yaml string
		want string
	}{
		{
			name: "no runtime",
			yaml: `tests: [{network_router: {port: 9001}, nodes: [{port: 8080, home: /a, fake_node_name: a}]}]`,
			want: "one of fetch_version or repo_path",
		},
		{
			name: "both runtimes",
			yaml: `{runtime: {fetch_version: "1.0.0", repo_path: /src}, tests: [{network_router: {port: 9001}, nodes: [{port: 8080, home: /a, fake_node_name: a}]}]}`,
			want: "mutually exclusive",
		},
		{
			name: "bad version",
			yaml: `{runtime: {fetch_version: "latest-ish"}, tests: [{network_router: {port: 9001}, nodes: [{port: 8080, home: /a, fake_node_name: a}]}]}`,
			want: "invalid fetch_version",
		},
		{
			name: "duplicate ports",
			yaml: `{runtime: {fetch_version: "1.0.0"}, tests: [{network_router: {port: 9001}, nodes: [{port: 8080, home: /a, fake_node_name: a}, {port: 8080, home: /b, fake_node_name: b}]}]}`,
			want: "port 8080 is already used",
		},
		{
			name: "node port equals router port",
			yaml: `{runtime: {fetch_version: "1.0.0"}, tests: [{network_router: {port: 9001}, nodes: [{port: 9001, home: /a, fake_node_name: a}]}]}`,
			want: "port 9001 is already used",
		},
		{
			name: "no nodes",
			yaml: `{runtime: {fetch_version: "1.0.0"}, tests: [{network_router: {port: 9001}}]}`,
			want: "at least one node",
		},
		{
			name: "unknown defects",
			yaml: `{runtime: {fetch_version: "1.0.0"}, tests: [{network_router: {port: 9001, defects: Chaos}, nodes: [{port: 8080, home: /a, fake_node_name: a}]}]}`,
			want: "unknown defects",
		},
		{
			name: "unknown field",
			yaml: `{runtime: {fetch_version: "1.0.0"}, bogus: 1, tests: []}`,
			want: "bogus",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]byte(tt.yaml))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestValidationErrorType(t *testing.T) {
	_, err := Parse([]byte(`{runtime: {fetch_version: "1.0.0"}, tests: []}`))
	require.Error(t, err)
	assert.True(t, IsValidationError(err))
}

func TestLoad(t *testing.T) {
	withHome(t, "/home/tester")
	path := filepath.Join(t.TempDir(), "plan.yaml")
	require.NoError(t, os.WriteFile(path, []byte(validPlan), 0644))

	plan, err := Load(path)
	require.NoError(t, err)
	assert.Len(t, plan.Scenarios[0].Nodes, 2)

	_, err = Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}
