// Package templates owns project scaffolding: embedded starter trees for the
// supported document kinds, the manifest template written by init, and the
// fallback publication file substituted when a project supplies none.
package templates

import (
	"embed"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
)

//go:embed all:files
var content embed.FS

// Kinds lists the embedded starter templates, in display order.
func Kinds() []string {
	return []string{"book", "article"}
}

// Known reports whether kind names an embedded starter template.
func Known(kind string) bool {
	for _, k := range Kinds() {
		if k == kind {
			return true
		}
	}
	return false
}

// Scaffold copies the embedded tree for kind into dir, creating directories
// as needed. Existing files are overwritten; the caller is expected to have
// refused to scaffold over an existing project already.
func Scaffold(kind, dir string) error {
	if !Known(kind) {
		return fmt.Errorf("unknown template %q, want one of %s", kind, strings.Join(Kinds(), ", "))
	}
	root := "files/" + kind
	return fs.WalkDir(content, root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		rel := strings.TrimPrefix(path, root)
		rel = strings.TrimPrefix(rel, "/")
		dst := filepath.Join(dir, filepath.FromSlash(rel))
		if d.IsDir() {
			return os.MkdirAll(dst, 0o755)
		}
		data, err := content.ReadFile(path)
		if err != nil {
			return err
		}
		return os.WriteFile(dst, data, 0o644)
	})
}

// WriteManifest writes the commented manifest template into dir, for
// retrofitting an existing source tree.
func WriteManifest(dir string) error {
	data, err := content.ReadFile("files/project.xml")
	if err != nil {
		return err
	}
	return os.WriteFile(filepath.Join(dir, "project.xml"), data, 0o644)
}

// DefaultPublication returns the built-in publication file used when a
// target names none.
func DefaultPublication() []byte {
	data, err := content.ReadFile("files/publication.xml")
	if err != nil {
		// The file is embedded at compile time; absence is a build defect.
		panic(err)
	}
	return data
}
