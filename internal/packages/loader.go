// Package packages pushes setup and test packages into booted nodes.
package packages

import (
	"context"
	"encoding/json"
	"fmt"
	"path/filepath"
	"time"

	"noderig/internal/config"
	"noderig/internal/message"
	"noderig/pkg/logging"
)

const (
	testsDir          = "/tester:sys/tests"
	grantManifestName = "grant_capabilities.json"
	writeResponseWait = 15 * time.Second
)

// Publisher installs a package directory on the node at url.
type Publisher interface {
	PublishAndInstall(ctx context.Context, packageDir, url string) error
}

// Loader writes packages into nodes.
type Loader struct {
	Client    *message.Client
	Publisher Publisher
}

// NewLoader returns a Loader that installs setup packages through the app
// store.
func NewLoader(client *message.Client) *Loader {
	return &Loader{Client: client, Publisher: &AppStorePublisher{Client: client}}
}

// LoadSetups installs each setup package on the node at port, in order. The
// first failure aborts.
func (l *Loader) LoadSetups(ctx context.Context, setupPaths []string, port int) error {
	logging.Info("Loader", "Loading setup packages...")
	url := message.NodeURL(port)
	for _, path := range setupPaths {
		if err := l.Publisher.PublishAndInstall(ctx, path, url); err != nil {
			return fmt.Errorf("failed to install setup package %s: %w", path, err)
		}
	}
	logging.Info("Loader", "Done loading setup packages.")
	return nil
}

// LoadTests writes every test binary to the node's tests directory, then the
// capability grant manifest. Writes already performed are not rolled back.
func (l *Loader) LoadTests(ctx context.Context, testPackages []config.TestPackage, port int) error {
	logging.Info("Loader", "Loading tests...")
	url := message.NodeURL(port)

	for _, tp := range testPackages {
		name := tp.Name()
		req := message.Request{
			Process:      message.VFSProcess,
			ResponseWait: writeResponseWait,
			Body:         message.Write(fmt.Sprintf("%s/%s.wasm", testsDir, name)),
			BytesPath:    BinaryPath(tp),
		}
		if _, err := l.Client.Call(ctx, url, req); err != nil {
			return fmt.Errorf("failed to load tests: %w", err)
		}
		logging.Debug("Loader", "Wrote test binary %s to node on port %d", name, port)
	}

	manifest, err := GrantManifest(testPackages)
	if err != nil {
		return err
	}
	req := message.Request{
		Process:      message.VFSProcess,
		ResponseWait: writeResponseWait,
		Body:         message.Write(testsDir + "/" + grantManifestName),
		Bytes:        manifest,
	}
	if _, err := l.Client.Call(ctx, url, req); err != nil {
		return fmt.Errorf("failed to load tests capabilities: %w", err)
	}

	logging.Info("Loader", "Done loading tests.")
	return nil
}

// BinaryPath is where a built test package leaves its binary.
func BinaryPath(tp config.TestPackage) string {
	return filepath.Join(tp.Path, "pkg", tp.Name()+".wasm")
}

// GrantManifest maps each package name to its capability grants.
func GrantManifest(testPackages []config.TestPackage) ([]byte, error) {
	grants := make(map[string][]string, len(testPackages))
	for _, tp := range testPackages {
		caps := tp.GrantCapabilities
		if caps == nil {
			caps = []string{}
		}
		grants[tp.Name()] = caps
	}
	data, err := json.Marshal(grants)
	if err != nil {
		return nil, fmt.Errorf("failed to encode capability grants: %w", err)
	}
	return data, nil
}
