// Package engine dispatches resolved builds to the external XSL
// transformation engine and the TeX toolchain. It owns no document
// semantics: it prepares directories, assembles command lines, and reports
// tool failures.
package engine

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/rs/zerolog/log"

	"github.com/bookforge/bookforge/internal/execx"
	"github.com/bookforge/bookforge/internal/project"
)

// Builder invokes the external transformation engine for one resolved build.
type Builder struct {
	// Command is the XSL driver executable, e.g. xsltproc.
	Command string
	// PDFEngine compiles the LaTeX artifact, e.g. pdflatex.
	PDFEngine string
	// XSLDir holds the per-format stylesheets. Resolved from the
	// BOOKFORGE_XSL environment variable or <root>/xsl by the caller.
	XSLDir string
}

// Options tweak a single dispatch.
type Options struct {
	// OnlyAssets skips the main target build.
	OnlyAssets bool
	// CompilePDF additionally compiles a latex-format build to PDF.
	CompilePDF bool
	// Force rebuilds even when the input fingerprint is unchanged.
	Force bool
}

// Stylesheet returns the driver stylesheet for format.
func (bd *Builder) Stylesheet(format string) string {
	return filepath.Join(bd.XSLDir, format+".xsl")
}

// Build dispatches one resolved target. effective is the include-expanded
// source, used only for fingerprinting.
func (bd *Builder) Build(ctx context.Context, b project.Build, effective []byte, opt Options) error {
	if opt.OnlyAssets {
		log.Info().Str("target", b.Name).Msg("asset-only run, skipping main build")
		return nil
	}

	pubData, err := os.ReadFile(b.Publication)
	if err != nil {
		return fmt.Errorf("read publication file: %w", err)
	}
	fp := Fingerprint(b.Format, effective, pubData, b.Params)
	if !opt.Force && ReadStamp(b.OutputDir) == fp {
		log.Info().Str("target", b.Name).Msg("inputs unchanged since last build, skipping")
		return nil
	}

	if err := bd.prepareOutput(b.OutputDir); err != nil {
		return err
	}

	switch b.Format {
	case project.FormatHTML, project.FormatLaTeX:
		if err := bd.transform(ctx, b, b.Format, b.OutputDir); err != nil {
			return err
		}
		if b.Format == project.FormatLaTeX && opt.CompilePDF {
			if err := bd.compilePDF(ctx, b.OutputDir, b.OutputDir); err != nil {
				return err
			}
		}
	case project.FormatPDF:
		if err := bd.buildPDF(ctx, b); err != nil {
			return err
		}
	default:
		return fmt.Errorf("unsupported build format %q", b.Format)
	}

	if err := WriteStamp(b.OutputDir, fp); err != nil {
		log.Warn().Err(err).Msg("could not record build stamp")
	}
	log.Info().Str("target", b.Name).Str("out", b.OutputDir).Msg("build complete")
	return nil
}

// prepareOutput removes a stale output directory and recreates it, so the
// engine never merges with leftovers of a previous build.
func (bd *Builder) prepareOutput(dir string) error {
	if fi, err := os.Stat(dir); err == nil && fi.IsDir() {
		if err := os.RemoveAll(dir); err != nil {
			return fmt.Errorf("clear output dir: %w", err)
		}
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create output dir: %w", err)
	}
	return nil
}

// transform runs the XSL driver for format, writing into outDir.
func (bd *Builder) transform(ctx context.Context, b project.Build, format, outDir string) error {
	args := transformArgs(bd.Stylesheet(format), b, outDir)
	r := &execx.Runner{Dir: outDir}
	if err := r.Run(ctx, bd.Command, args...); err != nil {
		return fmt.Errorf("engine %s build: %w", format, err)
	}
	return nil
}

// transformArgs assembles the engine command line: xinclude resolution on,
// publication file and stringparams forwarded, output rooted at outDir.
func transformArgs(stylesheet string, b project.Build, outDir string) []string {
	args := []string{"--xinclude"}
	args = append(args, "--stringparam", "publisher", b.Publication)
	keys := make([]string, 0, len(b.Params))
	for k := range b.Params {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		args = append(args, "--stringparam", k, b.Params[k])
	}
	args = append(args, "-o", outDir+string(os.PathSeparator), stylesheet, b.Source)
	return args
}

// buildPDF produces LaTeX into a scratch dir, compiles it, and moves the
// PDF into the target output dir.
func (bd *Builder) buildPDF(ctx context.Context, b project.Build) error {
	scratch, err := os.MkdirTemp("", "bookforge-pdf-*")
	if err != nil {
		return fmt.Errorf("scratch dir: %w", err)
	}
	defer os.RemoveAll(scratch)

	if err := bd.transform(ctx, b, project.FormatLaTeX, scratch); err != nil {
		return err
	}
	return bd.compilePDF(ctx, scratch, b.OutputDir)
}

// compilePDF runs the TeX engine twice (cross-references need two passes)
// against the main .tex file in texDir, then moves the PDF into outDir.
func (bd *Builder) compilePDF(ctx context.Context, texDir, outDir string) error {
	texFile, err := mainTexFile(texDir)
	if err != nil {
		return err
	}
	r := &execx.Runner{Dir: texDir}
	for pass := 1; pass <= 2; pass++ {
		log.Debug().Int("pass", pass).Str("file", texFile).Msg("tex compile")
		if err := r.Run(ctx, bd.PDFEngine, "-interaction=nonstopmode", "-halt-on-error", texFile); err != nil {
			return fmt.Errorf("%s pass %d: %w", bd.PDFEngine, pass, err)
		}
	}
	pdf := texFile[:len(texFile)-len(filepath.Ext(texFile))] + ".pdf"
	src := filepath.Join(texDir, pdf)
	if texDir == outDir {
		log.Info().Str("pdf", src).Msg("generated pdf")
		return nil
	}
	if err := os.MkdirAll(outDir, 0o755); err != nil {
		return err
	}
	dst := filepath.Join(outDir, pdf)
	if err := os.Rename(src, dst); err != nil {
		// Cross-device moves fall back to copy.
		data, rerr := os.ReadFile(src)
		if rerr != nil {
			return fmt.Errorf("move pdf: %w", err)
		}
		if werr := os.WriteFile(dst, data, 0o644); werr != nil {
			return fmt.Errorf("move pdf: %w", werr)
		}
	}
	log.Info().Str("pdf", dst).Msg("generated pdf")
	return nil
}

// mainTexFile picks the .tex file to compile: main.tex when present,
// otherwise the only .tex file in the directory.
func mainTexFile(dir string) (string, error) {
	if _, err := os.Stat(filepath.Join(dir, "main.tex")); err == nil {
		return "main.tex", nil
	}
	matches, err := filepath.Glob(filepath.Join(dir, "*.tex"))
	if err != nil || len(matches) == 0 {
		return "", fmt.Errorf("no .tex file produced in %s", dir)
	}
	if len(matches) > 1 {
		return "", fmt.Errorf("ambiguous .tex output in %s, expected main.tex", dir)
	}
	return filepath.Base(matches[0]), nil
}
