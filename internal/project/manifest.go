package project

import (
	"encoding/xml"
	"errors"
	"fmt"
	"os"
	"path/filepath"
)

// ManifestName is the file the locator searches for when resolving the
// project root.
const ManifestName = "project.xml"

// ErrNoManifest is returned when an operation requires a project manifest
// and none exists at or above the working directory.
var ErrNoManifest = errors.New("no project manifest found")

// ErrInvalidManifest wraps XML parse failures of the manifest file.
var ErrInvalidManifest = errors.New("invalid project manifest")

// Manifest is the project descriptor enumerating named build targets. It is
// read-only input: nothing in this layer ever writes it back.
type Manifest struct {
	XMLName xml.Name `xml:"project"`
	Targets []Target `xml:"targets>target"`

	// Dir is the directory the manifest was loaded from.
	Dir string `xml:"-"`
}

// Target is one named build configuration from the manifest.
type Target struct {
	Name        string        `xml:"name,attr"`
	Source      string        `xml:"source"`
	OutputDir   string        `xml:"output-dir"`
	Publication string        `xml:"publication"`
	Format      string        `xml:"format"`
	Params      []StringParam `xml:"stringparam"`
}

// StringParam is a key/value pair forwarded to the transformation engine.
type StringParam struct {
	Key   string `xml:"key,attr"`
	Value string `xml:",chardata"`
}

// LoadManifest parses the manifest at dir/ManifestName.
func LoadManifest(dir string) (*Manifest, error) {
	path := filepath.Join(dir, ManifestName)
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrNoManifest
		}
		return nil, fmt.Errorf("read manifest: %w", err)
	}
	var m Manifest
	if err := xml.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrInvalidManifest, path, err)
	}
	m.Dir = dir
	return &m, nil
}

// Target returns the named target, or the first target when name is empty.
// The second return reports whether a target was found.
func (m *Manifest) Target(name string) (Target, bool) {
	if len(m.Targets) == 0 {
		return Target{}, false
	}
	if name == "" {
		return m.Targets[0], true
	}
	for _, t := range m.Targets {
		if t.Name == name {
			return t, true
		}
	}
	return Target{}, false
}

// Locate walks from start upward looking for a manifest file and returns the
// directory containing it. It returns ErrNoManifest when the filesystem root
// is reached without finding one.
func Locate(start string) (string, error) {
	dir, err := filepath.Abs(start)
	if err != nil {
		return "", err
	}
	for {
		if fi, err := os.Stat(filepath.Join(dir, ManifestName)); err == nil && !fi.IsDir() {
			return dir, nil
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return "", ErrNoManifest
		}
		dir = parent
	}
}
