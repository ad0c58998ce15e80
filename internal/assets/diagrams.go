// Package assets regenerates images coded in the source, compiling each
// diagram with the TeX toolchain and converting to the requested format.
package assets

import (
	"bytes"
	"context"
	"encoding/xml"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/rs/zerolog/log"

	"github.com/bookforge/bookforge/internal/execx"
)

// Formats the generator can emit.
var Formats = []string{"svg", "pdf", "eps", "tex"}

// ValidFormat reports whether f is a supported diagram output format.
func ValidFormat(f string) bool {
	for _, v := range Formats {
		if v == f {
			return true
		}
	}
	return false
}

// Diagram is one latex-image element lifted from the effective source.
type Diagram struct {
	// ID names the artifact file. Taken from xml:id when present, otherwise
	// assigned positionally.
	ID     string
	Source string
}

// ExtractDiagrams collects every latex-image element and its inner content.
func ExtractDiagrams(effective []byte) ([]Diagram, error) {
	var out []Diagram
	dec := xml.NewDecoder(bytes.NewReader(effective))
	dec.Strict = false
	n := 0
	for {
		tok, err := dec.Token()
		if err == io.EOF {
			return out, nil
		}
		if err != nil {
			return out, err
		}
		se, ok := tok.(xml.StartElement)
		if !ok || se.Name.Local != "latex-image" {
			continue
		}
		n++
		id := ""
		for _, a := range se.Attr {
			if a.Name.Local == "id" {
				id = a.Value
			}
		}
		if id == "" {
			id = fmt.Sprintf("latex-image-%d", n)
		}
		var body strings.Builder
		depth := 1
		for depth > 0 {
			t, err := dec.Token()
			if err != nil {
				return out, fmt.Errorf("unterminated latex-image %s: %w", id, err)
			}
			switch t := t.(type) {
			case xml.StartElement:
				depth++
			case xml.EndElement:
				depth--
			case xml.CharData:
				body.Write(t)
			}
		}
		out = append(out, Diagram{ID: id, Source: strings.TrimSpace(body.String())})
	}
}

// Generator compiles diagrams into OutDir.
type Generator struct {
	// LatexEngine compiles the standalone wrapper, e.g. pdflatex.
	LatexEngine string
	// OutDir receives the artifacts, conventionally
	// <generated>/latex-image.
	OutDir string
}

// Generate produces one artifact per diagram in the given format. Failures
// are isolated per diagram: each is logged and the rest proceed. The error
// is non-nil only when every diagram failed.
func (g *Generator) Generate(ctx context.Context, diagrams []Diagram, format string) error {
	if !ValidFormat(format) {
		return fmt.Errorf("unsupported diagram format %q, want one of %s", format, strings.Join(Formats, ", "))
	}
	if len(diagrams) == 0 {
		log.Info().Msg("no diagrams in source, nothing to generate")
		return nil
	}
	if err := os.MkdirAll(g.OutDir, 0o755); err != nil {
		return fmt.Errorf("create diagram dir: %w", err)
	}

	failed := 0
	for _, d := range diagrams {
		if err := g.generateOne(ctx, d, format); err != nil {
			failed++
			log.Warn().Err(err).Str("diagram", d.ID).Msg("diagram generation failed, continuing")
			continue
		}
		log.Debug().Str("diagram", d.ID).Str("format", format).Msg("diagram generated")
	}
	log.Info().Int("total", len(diagrams)).Int("failed", failed).Str("format", format).Msg("diagram pass done")
	if failed == len(diagrams) {
		return fmt.Errorf("all %d diagrams failed to generate", failed)
	}
	return nil
}

func (g *Generator) generateOne(ctx context.Context, d Diagram, format string) error {
	if format == "tex" {
		return os.WriteFile(filepath.Join(g.OutDir, d.ID+".tex"), []byte(wrapStandalone(d.Source)), 0o644)
	}

	scratch, err := os.MkdirTemp("", "bookforge-diagram-*")
	if err != nil {
		return err
	}
	defer os.RemoveAll(scratch)

	texFile := filepath.Join(scratch, d.ID+".tex")
	if err := os.WriteFile(texFile, []byte(wrapStandalone(d.Source)), 0o644); err != nil {
		return err
	}
	r := &execx.Runner{Dir: scratch, Quiet: true}
	if err := r.Run(ctx, g.LatexEngine, "-interaction=nonstopmode", "-halt-on-error", d.ID+".tex"); err != nil {
		return err
	}
	pdf := filepath.Join(scratch, d.ID+".pdf")

	switch format {
	case "pdf":
		return copyFile(pdf, filepath.Join(g.OutDir, d.ID+".pdf"))
	case "svg":
		dst := filepath.Join(g.OutDir, d.ID+".svg")
		return r.Run(ctx, "pdf2svg", pdf, dst)
	case "eps":
		dst := filepath.Join(g.OutDir, d.ID+".eps")
		return r.Run(ctx, "pdftops", "-eps", pdf, dst)
	}
	return fmt.Errorf("unsupported diagram format %q", format)
}

// wrapStandalone embeds diagram code in a minimal standalone document so the
// TeX engine produces a tightly cropped page.
func wrapStandalone(body string) string {
	var b strings.Builder
	b.WriteString("\\documentclass[crop]{standalone}\n")
	b.WriteString("\\usepackage{tikz}\n")
	b.WriteString("\\usepackage{amsmath,amssymb}\n")
	b.WriteString("\\begin{document}\n")
	b.WriteString(body)
	b.WriteString("\n\\end{document}\n")
	return b.String()
}

func copyFile(src, dst string) error {
	data, err := os.ReadFile(src)
	if err != nil {
		return err
	}
	return os.WriteFile(dst, data, 0o644)
}
