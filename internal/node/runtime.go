package node

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/creativeprojects/go-selfupdate"

	"noderig/internal/config"
	"noderig/pkg/logging"
)

// ErrInvalidRepoPath is returned when a local runtime checkout is missing or
// is not a directory.
var ErrInvalidRepoPath = errors.New("invalid runtime repo path")

// For mocking in tests
var osUserCacheDir = os.UserCacheDir

// ResolveRuntime returns the path of the runtime binary described by plan,
// compiling or downloading it as needed.
func ResolveRuntime(ctx context.Context, plan *config.TestPlan) (string, error) {
	rt := plan.Runtime
	if !rt.IsLocal() {
		return FetchRuntime(ctx, rt.Repository, rt.Binary, rt.FetchVersion)
	}

	info, err := os.Stat(rt.RepoPath)
	if err != nil {
		return "", fmt.Errorf("%w: %s does not exist", ErrInvalidRepoPath, rt.RepoPath)
	}
	if !info.IsDir() {
		return "", fmt.Errorf("%w: %s must be a directory (the repo)", ErrInvalidRepoPath, rt.RepoPath)
	}

	if err := CompileRuntime(ctx, rt.RepoPath, plan.RuntimeBuildVerbose, plan.RuntimeBuildRelease); err != nil {
		return "", err
	}
	path := CompiledRuntimePath(rt.RepoPath, rt.Binary, plan.RuntimeBuildRelease)
	if _, err := os.Stat(path); err != nil {
		return "", fmt.Errorf("compiled runtime not found at %s: %w", path, err)
	}
	return path, nil
}

// CompiledRuntimePath is where a local build leaves the runtime binary.
func CompiledRuntimePath(repoPath, binary string, release bool) string {
	profile := "debug"
	if release {
		profile = "release"
	}
	return filepath.Join(repoPath, "target", profile, binary)
}

// CompileRuntime builds the runtime from a local checkout with cargo.
func CompileRuntime(ctx context.Context, repoPath string, verbose, release bool) error {
	args := []string{"build"}
	if release {
		args = append(args, "--release")
	}
	logging.Info("Runtime", "Compiling runtime in %s (release=%t)", repoPath, release)

	cmd := exec.CommandContext(ctx, "cargo", args...)
	cmd.Dir = repoPath

	var stderr bytes.Buffer
	if verbose {
		cmd.Stdout = os.Stdout
		cmd.Stderr = os.Stderr
	} else {
		cmd.Stdout = io.Discard
		cmd.Stderr = &stderr
	}

	if err := cmd.Run(); err != nil {
		if ctx.Err() != nil {
			return fmt.Errorf("runtime compile in %s interrupted: %w", repoPath, ctx.Err())
		}
		return fmt.Errorf("failed to compile runtime in %s: %w. Stderr: %s", repoPath, err, strings.TrimSpace(stderr.String()))
	}
	return nil
}

// FetchRuntime downloads the published runtime version from repository's
// GitHub releases into the user cache. A cached copy is reused.
func FetchRuntime(ctx context.Context, repository, binary, version string) (string, error) {
	cacheDir, err := osUserCacheDir()
	if err != nil {
		return "", fmt.Errorf("failed to locate cache directory: %w", err)
	}
	dir := filepath.Join(cacheDir, "noderig", "runtime", version)
	target := filepath.Join(dir, binary)

	if info, err := os.Stat(target); err == nil && info.Size() > 0 {
		logging.Info("Runtime", "Using cached runtime %s", target)
		return target, nil
	}

	tag := version
	if !strings.HasPrefix(tag, "v") {
		tag = "v" + tag
	}
	logging.Info("Runtime", "Fetching runtime %s %s", repository, tag)

	source, err := selfupdate.NewGitHubSource(selfupdate.GitHubConfig{})
	if err != nil {
		return "", fmt.Errorf("failed to create release source: %w", err)
	}
	updater, err := selfupdate.NewUpdater(selfupdate.Config{Source: source})
	if err != nil {
		return "", fmt.Errorf("failed to create updater: %w", err)
	}

	release, found, err := updater.DetectVersion(ctx, selfupdate.ParseSlug(repository), tag)
	if err != nil {
		return "", fmt.Errorf("failed to look up runtime %s: %w", tag, err)
	}
	if !found {
		return "", fmt.Errorf("runtime %s not published for this platform in %s", tag, repository)
	}

	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", fmt.Errorf("failed to create runtime cache: %w", err)
	}
	// UpdateTo replaces an existing file.
	if err := os.WriteFile(target, nil, 0755); err != nil {
		return "", fmt.Errorf("failed to create runtime placeholder: %w", err)
	}
	if err := updater.UpdateTo(ctx, release, target); err != nil {
		os.Remove(target)
		return "", fmt.Errorf("failed to download runtime %s: %w", tag, err)
	}

	logging.Info("Runtime", "Runtime %s installed at %s", release.Version(), target)
	return target, nil
}
