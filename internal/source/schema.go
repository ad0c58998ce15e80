package source

import (
	"context"
	"errors"
	"os"
	"path/filepath"

	"github.com/rs/zerolog/log"

	"github.com/bookforge/bookforge/internal/execx"
)

// schemaValidator is the RELAX NG validator invoked when available.
const schemaValidator = "jing"

// FindSchema returns the RELAX NG schema for the project, preferring the
// BOOKFORGE_SCHEMA environment variable, then schema/*.rng under root.
func FindSchema(root string) string {
	if p := os.Getenv("BOOKFORGE_SCHEMA"); p != "" {
		return p
	}
	if root == "" {
		return ""
	}
	matches, _ := filepath.Glob(filepath.Join(root, "schema", "*.rng"))
	if len(matches) > 0 {
		return matches[0]
	}
	return ""
}

// ValidateSchema checks the source against the RELAX NG schema. A missing
// validator or schema is a silent skip: conformance problems are advisory and
// the build proceeds either way. The returned error describes violations and
// is intended to be logged as a warning by the caller.
func ValidateSchema(ctx context.Context, sourcePath, schemaPath string) error {
	if schemaPath == "" {
		log.Debug().Msg("no schema available, skipping conformance check")
		return nil
	}
	if !execx.Available(schemaValidator) {
		log.Debug().Str("tool", schemaValidator).Msg("validator not installed, skipping conformance check")
		return nil
	}
	r := &execx.Runner{Quiet: true}
	if _, err := r.Output(ctx, schemaValidator, schemaPath, sourcePath); err != nil {
		var nf *execx.ErrNotFound
		if errors.As(err, &nf) {
			return nil
		}
		return err
	}
	return nil
}
