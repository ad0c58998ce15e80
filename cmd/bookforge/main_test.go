package main

import (
	"errors"
	"fmt"
	"testing"

	"github.com/bookforge/bookforge/internal/project"
)

func TestExitCode(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"no manifest", project.ErrNoManifest, 2},
		{"invalid manifest", fmt.Errorf("load: %w", project.ErrInvalidManifest), 2},
		{"target not found", fmt.Errorf("resolve: %w", project.ErrTargetNotFound), 2},
		{"bad bare format", project.ErrFormatWithoutManifest, 2},
		{"tool failure", errors.New("xsltproc: exit status 1"), 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := exitCode(tt.err); got != tt.want {
				t.Errorf("exitCode(%v) = %d, want %d", tt.err, got, tt.want)
			}
		})
	}
}

func TestSetLogLevel(t *testing.T) {
	for _, v := range []string{"debug", "info", "warn", "error", ""} {
		if err := setLogLevel(v); err != nil {
			t.Errorf("setLogLevel(%q) = %v", v, err)
		}
	}
	if err := setLogLevel("chatty"); err == nil {
		t.Error("unknown level should error")
	}
}
