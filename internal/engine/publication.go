package engine

import (
	"encoding/xml"
	"fmt"
	"os"
	"path/filepath"
)

// Publication is the slice of the publication file this layer needs: the
// external and generated asset directories, resolved relative to the source
// file. Everything else in the file belongs to the engine.
type Publication struct {
	External  string
	Generated string
}

type publicationXML struct {
	XMLName xml.Name `xml:"publication"`
	Source  struct {
		Directories struct {
			External  string `xml:"external,attr"`
			Generated string `xml:"generated,attr"`
		} `xml:"directories"`
	} `xml:"source"`
}

// ParsePublication extracts the asset directory declarations from raw
// publication file content.
func ParsePublication(data []byte) (Publication, error) {
	var p publicationXML
	if err := xml.Unmarshal(data, &p); err != nil {
		return Publication{}, fmt.Errorf("parse publication file: %w", err)
	}
	return Publication{
		External:  p.Source.Directories.External,
		Generated: p.Source.Directories.Generated,
	}, nil
}

// LoadPublication reads and parses the publication file at path.
func LoadPublication(path string) (Publication, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Publication{}, fmt.Errorf("read publication file: %w", err)
	}
	return ParsePublication(data)
}

// EnsureAssetDirs creates the external and generated directories relative to
// the directory of sourcePath, so the engine never trips over their absence.
func (p Publication) EnsureAssetDirs(sourcePath string) error {
	base := filepath.Dir(sourcePath)
	for _, d := range []string{p.External, p.Generated} {
		if d == "" {
			continue
		}
		dir := d
		if !filepath.IsAbs(dir) {
			dir = filepath.Join(base, dir)
		}
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("ensure asset dir %s: %w", dir, err)
		}
	}
	return nil
}

// GeneratedDir returns the absolute generated-assets directory for the given
// source file, defaulting to generated-assets beside it.
func (p Publication) GeneratedDir(sourcePath string) string {
	d := p.Generated
	if d == "" {
		d = "generated-assets"
	}
	if !filepath.IsAbs(d) {
		d = filepath.Join(filepath.Dir(sourcePath), d)
	}
	return d
}
