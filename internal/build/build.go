// Package build compiles packages with an external build tool.
package build

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"strings"

	"github.com/kballard/go-shellquote"

	"noderig/internal/config"
	"noderig/pkg/logging"
)

// ErrEmptyCommand is returned when the build command has no words.
var ErrEmptyCommand = errors.New("empty package build command")

// Builder compiles one package directory.
type Builder interface {
	Build(ctx context.Context, packagePath string, verbose bool) error
}

// CommandBuilder runs a shell-style command line with the package path
// appended, e.g. "kit build /path/to/pkg".
type CommandBuilder struct {
	Command string
	// Stdout and Stderr receive the tool's output when verbose. They default
	// to the process streams.
	Stdout io.Writer
	Stderr io.Writer
}

// NewCommandBuilder returns a builder for command, falling back to the
// default build command when empty.
func NewCommandBuilder(command string) *CommandBuilder {
	if strings.TrimSpace(command) == "" {
		command = config.DefaultBuildCommand
	}
	return &CommandBuilder{Command: command}
}

// Build runs the command. Output is shown only when verbose; otherwise
// stderr is attached to the returned error.
func (b *CommandBuilder) Build(ctx context.Context, packagePath string, verbose bool) error {
	words, err := shellquote.Split(b.Command)
	if err != nil {
		return fmt.Errorf("failed to parse package build command %q: %w", b.Command, err)
	}
	if len(words) == 0 {
		return ErrEmptyCommand
	}
	words = append(words, packagePath)
	logging.Info("Build", "Building %s: %s", packagePath, shellquote.Join(words...))

	cmd := exec.CommandContext(ctx, words[0], words[1:]...)
	var stderr bytes.Buffer
	if verbose {
		cmd.Stdout = writerOr(b.Stdout, os.Stdout)
		cmd.Stderr = writerOr(b.Stderr, os.Stderr)
	} else {
		cmd.Stdout = io.Discard
		cmd.Stderr = &stderr
	}

	if err := cmd.Run(); err != nil {
		if ctx.Err() != nil {
			return fmt.Errorf("build of %s interrupted: %w", packagePath, ctx.Err())
		}
		return fmt.Errorf("failed to build package %s: %w. Stderr: %s", packagePath, err, strings.TrimSpace(stderr.String()))
	}
	return nil
}

func writerOr(w, fallback io.Writer) io.Writer {
	if w != nil {
		return w
	}
	return fallback
}
