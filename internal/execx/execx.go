package execx

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"
	"strings"

	"github.com/rs/zerolog/log"
)

// Runner invokes external tools with a fixed working directory and optional
// extra environment. The zero value runs in the process working directory
// with the inherited environment.
type Runner struct {
	// Dir is the working directory for every command. Empty means inherit.
	Dir string
	// Env holds extra KEY=VALUE entries appended to the inherited environment.
	Env []string
	// Quiet suppresses streaming of the tool's stdout/stderr to the process
	// streams. Captured output still appears in wrapped errors.
	Quiet bool
}

// ErrNotFound reports a tool missing from PATH in a form suitable for
// user-facing diagnostics.
type ErrNotFound struct {
	Tool string
}

func (e *ErrNotFound) Error() string {
	return fmt.Sprintf("required tool %q not found in PATH", e.Tool)
}

// Available reports whether the named tool resolves on PATH.
func Available(tool string) bool {
	_, err := exec.LookPath(tool)
	return err == nil
}

// Run executes name with args, streaming output unless Quiet is set.
// A non-zero exit returns an error carrying the tail of stderr.
func (r *Runner) Run(ctx context.Context, name string, args ...string) error {
	if _, err := exec.LookPath(name); err != nil {
		return &ErrNotFound{Tool: name}
	}
	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Dir = r.Dir
	if len(r.Env) > 0 {
		cmd.Env = append(os.Environ(), r.Env...)
	}
	var stderr bytes.Buffer
	if r.Quiet {
		cmd.Stdout = nil
		cmd.Stderr = &stderr
	} else {
		cmd.Stdout = os.Stdout
		cmd.Stderr = os.Stderr
	}
	log.Debug().Str("cmd", name).Strs("args", args).Str("dir", r.Dir).Msg("exec")
	if err := cmd.Run(); err != nil {
		if msg := tail(stderr.String(), 2000); msg != "" {
			return fmt.Errorf("%s: %w: %s", name, err, msg)
		}
		return fmt.Errorf("%s: %w", name, err)
	}
	return nil
}

// Output executes name with args and returns trimmed stdout. Stderr is
// captured and folded into the error on failure.
func (r *Runner) Output(ctx context.Context, name string, args ...string) (string, error) {
	if _, err := exec.LookPath(name); err != nil {
		return "", &ErrNotFound{Tool: name}
	}
	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Dir = r.Dir
	if len(r.Env) > 0 {
		cmd.Env = append(os.Environ(), r.Env...)
	}
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	log.Debug().Str("cmd", name).Strs("args", args).Str("dir", r.Dir).Msg("exec")
	if err := cmd.Run(); err != nil {
		if msg := tail(stderr.String(), 2000); msg != "" {
			return "", fmt.Errorf("%s: %w: %s", name, err, msg)
		}
		return "", fmt.Errorf("%s: %w", name, err)
	}
	return strings.TrimSpace(stdout.String()), nil
}

func tail(s string, max int) string {
	s = strings.TrimSpace(s)
	if len(s) > max {
		s = s[len(s)-max:]
	}
	return s
}
