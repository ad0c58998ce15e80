package project

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/rs/zerolog/log"
)

// Built-in defaults used when neither flags nor manifest supply a value.
const (
	DefaultSource = "source/main.xml"
	outputBase    = "output"
)

// Formats the engine can produce.
const (
	FormatHTML  = "html"
	FormatLaTeX = "latex"
	FormatPDF   = "pdf"
)

// ErrTargetNotFound is returned when the requested target is absent from the
// manifest.
var ErrTargetNotFound = errors.New("build target not found in project manifest")

// ErrFormatWithoutManifest is returned when building without a manifest and
// the requested target name is not a directly buildable format.
var ErrFormatWithoutManifest = errors.New(`without a project manifest only "html" or "latex" can be built`)

// Overrides carries command-line values that take precedence over the
// manifest during resolution. Zero values mean "not supplied".
type Overrides struct {
	Target      string
	Source      string
	OutputDir   string
	Publication string
	Params      map[string]string
}

// Build is a fully resolved build configuration. All paths are absolute.
type Build struct {
	// Root is the project root directory, empty when no manifest exists.
	Root        string
	Name        string
	Source      string
	OutputDir   string
	Publication string
	Format      string
	Params      map[string]string

	// PublicationDefaulted is set when no publication file was supplied by
	// flags or manifest and the embedded fallback should be used.
	PublicationDefaulted bool
}

// Resolve merges command-line overrides with the manifest (which may be nil)
// and built-in defaults into a complete build configuration.
//
// Precedence per field: explicit override, then manifest value, then default.
func Resolve(m *Manifest, ov Overrides) (Build, error) {
	if m == nil {
		return resolveBare(ov)
	}

	name := ov.Target
	t, ok := m.Target(name)
	if !ok {
		if name == "" {
			return Build{}, fmt.Errorf("%w: manifest declares no targets", ErrTargetNotFound)
		}
		return Build{}, fmt.Errorf("%w: %q", ErrTargetNotFound, name)
	}
	if name == "" {
		log.Info().Str("target", t.Name).Msg("no target supplied, using first target of manifest")
	}

	b := Build{Root: m.Dir, Name: t.Name, Params: map[string]string{}}
	for _, p := range t.Params {
		b.Params[p.Key] = strings.TrimSpace(p.Value)
	}
	for k, v := range ov.Params {
		b.Params[k] = v
	}

	src := firstNonEmpty(ov.Source, strings.TrimSpace(t.Source), DefaultSource)
	out := firstNonEmpty(ov.OutputDir, strings.TrimSpace(t.OutputDir), filepath.Join(outputBase, t.Name))
	b.Source = absJoin(m.Dir, src)
	b.OutputDir = absJoin(m.Dir, out)

	pub := firstNonEmpty(ov.Publication, strings.TrimSpace(t.Publication))
	// A publisher stringparam names the publication file directly; it wins
	// over the manifest element. The engine receives the resolved file as
	// its publisher param, so the raw key never passes through.
	if p, ok := b.Params["publisher"]; ok {
		if ov.Publication == "" {
			pub = p
		}
		delete(b.Params, "publisher")
	}
	if pub == "" {
		log.Warn().Str("target", t.Name).Msg("no publication file in manifest, using built-in default")
		b.PublicationDefaulted = true
	} else {
		b.Publication = absJoin(m.Dir, pub)
	}

	b.Format = strings.TrimSpace(t.Format)
	if b.Format == "" {
		log.Warn().Str("target", t.Name).Msgf("no format listed in manifest, building with %q as the format", t.Name)
		b.Format = t.Name
	}
	return b, nil
}

// resolveBare handles the manifest-less case: the target name doubles as the
// output format and only html/latex are accepted.
func resolveBare(ov Overrides) (Build, error) {
	format := ov.Target
	if format == "" {
		format = FormatHTML
	}
	if format != FormatHTML && format != FormatLaTeX {
		return Build{}, fmt.Errorf("%w: got %q", ErrFormatWithoutManifest, format)
	}
	b := Build{
		Name:   format,
		Format: format,
		Params: map[string]string{},
	}
	for k, v := range ov.Params {
		b.Params[k] = v
	}
	b.Source = absJoin("", firstNonEmpty(ov.Source, DefaultSource))
	b.OutputDir = absJoin("", firstNonEmpty(ov.OutputDir, filepath.Join(outputBase, format)))
	pub := ov.Publication
	if p, ok := b.Params["publisher"]; ok {
		if pub == "" {
			pub = p
		}
		delete(b.Params, "publisher")
	}
	if pub != "" {
		b.Publication = absJoin("", pub)
	} else {
		b.PublicationDefaulted = true
	}
	return b, nil
}

// ParseParams turns repeated "key:value" flag values into a map. Values may
// themselves contain colons; only the first splits.
func ParseParams(pairs []string) (map[string]string, error) {
	params := map[string]string{}
	for _, p := range pairs {
		key, value, ok := strings.Cut(p, ":")
		if !ok || strings.TrimSpace(key) == "" {
			return nil, fmt.Errorf("malformed stringparam %q, want key:value", p)
		}
		params[strings.TrimSpace(key)] = strings.TrimSpace(value)
	}
	return params, nil
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}

func absJoin(dir, path string) string {
	if path == "" {
		return ""
	}
	if !filepath.IsAbs(path) {
		path = filepath.Join(dir, path)
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		return path
	}
	return abs
}
