package source

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func write(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestCheckWellFormed(t *testing.T) {
	dir := t.TempDir()
	good := write(t, dir, "good.xml", `<?xml version="1.0"?><book><chapter/></book>`)
	if err := CheckWellFormed(good); err != nil {
		t.Errorf("good file flagged: %v", err)
	}

	bad := write(t, dir, "bad.xml", "<book>\n<chapter>\n</book>")
	err := CheckWellFormed(bad)
	if err == nil {
		t.Fatal("mismatched tags not flagged")
	}
	var syn *SyntaxError
	if !errors.As(err, &syn) {
		t.Fatalf("expected SyntaxError, got %T", err)
	}
	if syn.Line != 3 {
		t.Errorf("line = %d, want 3", syn.Line)
	}
	if !strings.Contains(err.Error(), "bad.xml:3") {
		t.Errorf("diagnostic should carry file:line, got %q", err.Error())
	}
}

func TestExpand(t *testing.T) {
	dir := t.TempDir()
	write(t, dir, "chapters/one.xml", `<?xml version="1.0"?><chapter><title>One</title></chapter>`)
	main := write(t, dir, "main.xml",
		`<?xml version="1.0"?><book xmlns:xi="http://www.w3.org/2001/XInclude"><xi:include href="chapters/one.xml"/></book>`)

	out, err := Expand(main)
	if err != nil {
		t.Fatalf("expand: %v", err)
	}
	s := string(out)
	if !strings.Contains(s, "<title>One</title>") {
		t.Errorf("included content missing: %s", s)
	}
	if strings.Contains(s, "xi:include") {
		t.Errorf("include element left behind: %s", s)
	}
	if strings.Count(s, "<?xml") != 1 {
		t.Errorf("inner XML declaration should be stripped: %s", s)
	}
}

func TestExpand_Nested(t *testing.T) {
	dir := t.TempDir()
	write(t, dir, "sect.xml", `<section>deep</section>`)
	write(t, dir, "ch.xml", `<chapter><xi:include href="sect.xml"/></chapter>`)
	main := write(t, dir, "main.xml", `<book><xi:include href="ch.xml"/></book>`)

	out, err := Expand(main)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(out), "deep") {
		t.Errorf("nested include not expanded: %s", out)
	}
}

func TestExpand_AttributeVariants(t *testing.T) {
	dir := t.TempDir()
	write(t, dir, "ch.xml", `<chapter>spliced</chapter>`)
	main := write(t, dir, "main.xml", `<book>
		<xi:include href="ch.xml" parse="xml"/>
		<xi:include parse="xml" href='ch.xml'/>
		<xi:include href="ch.xml"></xi:include>
	</book>`)

	out, err := Expand(main)
	if err != nil {
		t.Fatalf("expand: %v", err)
	}
	s := string(out)
	if strings.Contains(s, "xi:include") {
		t.Errorf("include element left behind: %s", s)
	}
	if strings.Count(s, "spliced") != 3 {
		t.Errorf("expected all 3 include forms expanded: %s", s)
	}
}

func TestExpand_NoHref(t *testing.T) {
	dir := t.TempDir()
	main := write(t, dir, "main.xml", `<book><xi:include parse="xml"/></book>`)
	if _, err := Expand(main); err == nil {
		t.Fatal("include without href should fail")
	}
}

func TestExpand_Cycle(t *testing.T) {
	dir := t.TempDir()
	write(t, dir, "a.xml", `<a><xi:include href="b.xml"/></a>`)
	write(t, dir, "b.xml", `<b><xi:include href="a.xml"/></b>`)

	_, err := Expand(filepath.Join(dir, "a.xml"))
	if !errors.Is(err, ErrIncludeCycle) {
		t.Fatalf("expected ErrIncludeCycle, got %v", err)
	}
}

func TestExpand_MissingInclude(t *testing.T) {
	dir := t.TempDir()
	main := write(t, dir, "main.xml", `<book><xi:include href="gone.xml"/></book>`)
	if _, err := Expand(main); err == nil {
		t.Fatal("missing include should fail")
	}
}

func TestScan(t *testing.T) {
	doc := []byte(`<book>
		<latex-image>x</latex-image>
		<latex-image>y</latex-image>
		<asymptote>z</asymptote>
		<video youtube="abc123"/>
		<video/>
		<interactive preview="p.png"/>
		<interactive/>
		<webwork seed="1"/>
		<exercise-interactive/>
	</book>`)
	r, err := Scan(doc)
	if err != nil {
		t.Fatalf("scan: %v", err)
	}
	if r.LatexImages != 2 || r.Asymptote != 1 || r.Sageplot != 0 {
		t.Errorf("images = %+v", r)
	}
	if r.YoutubeVideo != 1 {
		t.Errorf("youtube = %d, want 1", r.YoutubeVideo)
	}
	if r.Interactive != 1 {
		t.Errorf("interactive without preview = %d, want 1", r.Interactive)
	}
	// Only elements the exercise pass actually renders count, so the
	// "rerun with --exercises" advisory never points at an empty pass.
	if r.Exercises != 1 {
		t.Errorf("exercises = %d, want 1", r.Exercises)
	}
}

func TestAssetReport_NeedsDiagramPass(t *testing.T) {
	tests := []struct {
		name   string
		r      AssetReport
		format string
		want   bool
	}{
		{"html with latex-image", AssetReport{LatexImages: 1}, "html", true},
		{"html clean", AssetReport{}, "html", false},
		{"latex ignores latex-image", AssetReport{LatexImages: 3}, "latex", false},
		{"latex with youtube", AssetReport{YoutubeVideo: 1}, "latex", true},
		{"pdf with interactive", AssetReport{Interactive: 1}, "pdf", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.r.NeedsDiagramPass(tt.format); got != tt.want {
				t.Errorf("NeedsDiagramPass(%s) = %v, want %v", tt.format, got, tt.want)
			}
		})
	}
}
