package cmd

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"noderig/internal/message"
)

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&out)
	rootCmd.SetArgs(args)
	t.Cleanup(func() {
		rootCmd.SetOut(nil)
		rootCmd.SetErr(nil)
		rootCmd.SetArgs(nil)
	})
	err := rootCmd.Execute()
	return out.String(), err
}

func TestSetVersion(t *testing.T) {
	SetVersion("1.2.3-test")
	assert.Equal(t, "1.2.3-test", rootCmd.Version)
}

func TestRootCommand(t *testing.T) {
	assert.Equal(t, "noderig", rootCmd.Use)
	assert.NotEmpty(t, rootCmd.Short)
	assert.NotEmpty(t, rootCmd.Long)
	assert.True(t, rootCmd.SilenceUsage)

	var names []string
	for _, c := range rootCmd.Commands() {
		names = append(names, c.Name())
	}
	assert.Subset(t, names, []string{"version", "run-tests", "inject-message", "install-package"})
}

func TestVersionCommand(t *testing.T) {
	SetVersion("0.4.2")

	out, err := execute(t, "version")

	require.NoError(t, err)
	assert.Equal(t, "noderig version 0.4.2\n", out)
}

func TestInvalidLogFormat(t *testing.T) {
	_, err := execute(t, "version", "--log-format", "xml")
	assert.Error(t, err)
	logFormat = "text"
}

func TestInjectMessage(t *testing.T) {
	var got message.Envelope
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/rpc:distro:sys/message", r.URL.Path)
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.Write([]byte(`{"body":[112,97,115,115],"lazy_load_blob":null}`))
	}))
	defer srv.Close()

	out, err := execute(t, "inject-message", "--url", srv.URL, "--process", "vfs:distro:sys", "--expects-response", "5", `{"action":"ReadDir"}`)

	require.NoError(t, err)
	assert.Equal(t, "vfs:distro:sys", got.Process)
	assert.Equal(t, `{"action":"ReadDir"}`, got.Body)
	require.NotNil(t, got.ExpectsResponse)
	assert.Equal(t, uint64(5), *got.ExpectsResponse)
	assert.Contains(t, out, "body: pass")
}

func TestInjectMessage_RequiresProcess(t *testing.T) {
	_, err := execute(t, "inject-message", "{}")
	assert.Error(t, err)
}

func TestRunTests_InvalidPlan(t *testing.T) {
	path := filepath.Join(t.TempDir(), "plan.yaml")
	require.NoError(t, os.WriteFile(path, []byte("tests: []\n"), 0644))

	_, err := execute(t, "run-tests", path)

	require.Error(t, err)
	assert.Contains(t, err.Error(), "at least one scenario")
}

func TestRunTests_UnknownOutput(t *testing.T) {
	_, err := execute(t, "run-tests", "--output", "xml", "plan.yaml")
	assert.Error(t, err)
}
