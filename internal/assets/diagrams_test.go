package assets

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestExtractDiagrams(t *testing.T) {
	doc := []byte(`<book>
	<figure>
		<latex-image xml:id="fig-axes">
			\begin{tikzpicture}\draw (0,0) -- (1,1);\end{tikzpicture}
		</latex-image>
	</figure>
	<latex-image>\begin{tikzpicture}\draw (0,0) circle (1);\end{tikzpicture}</latex-image>
</book>`)
	ds, err := ExtractDiagrams(doc)
	if err != nil {
		t.Fatalf("extract: %v", err)
	}
	if len(ds) != 2 {
		t.Fatalf("expected 2 diagrams, got %d", len(ds))
	}
	if ds[0].ID != "fig-axes" {
		t.Errorf("first id = %q", ds[0].ID)
	}
	if !strings.Contains(ds[0].Source, `\draw (0,0) -- (1,1);`) {
		t.Errorf("first source = %q", ds[0].Source)
	}
	if ds[1].ID != "latex-image-2" {
		t.Errorf("positional id = %q", ds[1].ID)
	}
}

func TestExtractDiagrams_None(t *testing.T) {
	ds, err := ExtractDiagrams([]byte(`<book><p>plain</p></book>`))
	if err != nil {
		t.Fatal(err)
	}
	if len(ds) != 0 {
		t.Errorf("expected none, got %d", len(ds))
	}
}

func TestValidFormat(t *testing.T) {
	for _, f := range Formats {
		if !ValidFormat(f) {
			t.Errorf("%s should be valid", f)
		}
	}
	if ValidFormat("png") {
		t.Error("png is not supported")
	}
}

func TestGenerate_TexFormat(t *testing.T) {
	out := filepath.Join(t.TempDir(), "latex-image")
	g := &Generator{LatexEngine: "pdflatex", OutDir: out}
	ds := []Diagram{
		{ID: "fig-a", Source: `\begin{tikzpicture}\draw (0,0);\end{tikzpicture}`},
		{ID: "fig-b", Source: `\begin{tikzpicture}\draw (1,1);\end{tikzpicture}`},
	}
	if err := g.Generate(context.Background(), ds, "tex"); err != nil {
		t.Fatalf("generate: %v", err)
	}
	data, err := os.ReadFile(filepath.Join(out, "fig-a.tex"))
	if err != nil {
		t.Fatalf("artifact missing: %v", err)
	}
	s := string(data)
	if !strings.Contains(s, `\documentclass[crop]{standalone}`) {
		t.Errorf("standalone wrapper missing: %s", s)
	}
	if !strings.Contains(s, `\draw (0,0);`) {
		t.Errorf("diagram body missing: %s", s)
	}
}

func TestGenerate_BadFormat(t *testing.T) {
	g := &Generator{OutDir: t.TempDir()}
	if err := g.Generate(context.Background(), []Diagram{{ID: "x"}}, "png"); err == nil {
		t.Fatal("unsupported format should error")
	}
}

func TestGenerate_Empty(t *testing.T) {
	g := &Generator{OutDir: filepath.Join(t.TempDir(), "never-created")}
	if err := g.Generate(context.Background(), nil, "svg"); err != nil {
		t.Fatalf("empty generate should succeed: %v", err)
	}
	if _, err := os.Stat(g.OutDir); !os.IsNotExist(err) {
		t.Error("out dir should not be created for empty input")
	}
}
