// Package publish pushes built HTML to the docs/ directory of the project's
// git repository, where static-site hosting picks it up.
package publish

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/rs/zerolog/log"

	"github.com/bookforge/bookforge/internal/execx"
)

// DocsDir is the repository subdirectory hosting providers serve from.
const DocsDir = "docs"

// ErrNotARepo is returned when the project is not under git version control.
var ErrNotARepo = errors.New("project is not a git repository")

// ErrNoOrigin is returned when the repository has no origin remote to push to.
var ErrNoOrigin = errors.New(`git repository has no "origin" remote`)

// Publisher copies built output into docs/ and pushes it.
type Publisher struct {
	// Root is the project root, which must be inside the git worktree.
	Root string
}

// Publish stages the output of target into docs/, commits, and pushes.
// outputDir must hold a finished HTML build.
func (p *Publisher) Publish(ctx context.Context, target, outputDir string) error {
	r := &execx.Runner{Dir: p.Root, Quiet: true}

	if out, err := r.Output(ctx, "git", "rev-parse", "--is-inside-work-tree"); err != nil || out != "true" {
		return ErrNotARepo
	}
	if _, err := r.Output(ctx, "git", "remote", "get-url", "origin"); err != nil {
		return ErrNoOrigin
	}
	if out, err := r.Output(ctx, "git", "status", "--porcelain", "--", ".", ":!"+DocsDir); err == nil && out != "" {
		log.Warn().Msg("worktree has uncommitted changes outside docs/; they will not be published")
	}

	if broken, err := CheckLinks(outputDir); err == nil && len(broken) > 0 {
		log.Warn().Int("count", len(broken)).Msg("built output has broken internal links")
		for _, b := range broken {
			log.Warn().Str("link", b).Msg("broken link")
		}
	}

	docs := filepath.Join(p.Root, DocsDir)
	if err := os.RemoveAll(docs); err != nil {
		return fmt.Errorf("clear docs dir: %w", err)
	}
	if err := copyTree(outputDir, docs); err != nil {
		return fmt.Errorf("stage docs dir: %w", err)
	}
	// Hosting providers otherwise run the output through their site builder.
	if err := os.WriteFile(filepath.Join(docs, ".nojekyll"), nil, 0o644); err != nil {
		return fmt.Errorf("write .nojekyll: %w", err)
	}

	if err := r.Run(ctx, "git", "add", DocsDir); err != nil {
		return fmt.Errorf("stage docs: %w", err)
	}
	staged, err := r.Output(ctx, "git", "status", "--porcelain", "--", DocsDir)
	if err != nil {
		return fmt.Errorf("inspect staged docs: %w", err)
	}
	if staged == "" {
		log.Info().Msg("docs/ already up to date, nothing to publish")
		return nil
	}
	msg := fmt.Sprintf("Publish %s build to %s/", target, DocsDir)
	if err := r.Run(ctx, "git", "commit", "-m", msg); err != nil {
		return fmt.Errorf("commit docs: %w", err)
	}
	if err := r.Run(ctx, "git", "push", "origin"); err != nil {
		return fmt.Errorf("push docs: %w", err)
	}
	log.Info().Str("target", target).Msg("published; allow a few minutes for the host to refresh")
	return nil
}

func copyTree(src, dst string) error {
	return filepath.WalkDir(src, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		rel, err := filepath.Rel(src, path)
		if err != nil {
			return err
		}
		out := filepath.Join(dst, rel)
		if d.IsDir() {
			return os.MkdirAll(out, 0o755)
		}
		if !d.Type().IsRegular() {
			return nil
		}
		in, err := os.Open(path)
		if err != nil {
			return err
		}
		defer in.Close()
		f, err := os.Create(out)
		if err != nil {
			return err
		}
		if _, err := io.Copy(f, in); err != nil {
			f.Close()
			return err
		}
		return f.Close()
	})
}
