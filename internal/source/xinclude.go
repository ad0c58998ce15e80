package source

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
)

// maxIncludeDepth bounds recursion so a miswired project cannot loop forever.
const maxIncludeDepth = 32

// ErrIncludeCycle is returned when a file transitively includes itself.
var ErrIncludeCycle = errors.New("include cycle detected")

var (
	// Matches the whole include element, self-closing or with an explicit
	// end tag, whatever other attributes it carries.
	includeRe = regexp.MustCompile(`<xi:include\b[^>]*?(?:/>|>\s*</xi:include\s*>)`)
	hrefRe    = regexp.MustCompile(`href\s*=\s*(?:"([^"]+)"|'([^']+)')`)
	xmlDeclRe = regexp.MustCompile(`^\s*<\?xml[^?]*\?>`)
)

// Expand reads the document at path and splices in every xi:include target
// recursively, producing the effective document the engine will see. Included
// fragments have their XML declaration stripped. Hrefs resolve relative to
// the including file.
func Expand(path string) ([]byte, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, err
	}
	return expand(abs, map[string]bool{}, 0)
}

func expand(path string, active map[string]bool, depth int) ([]byte, error) {
	if depth > maxIncludeDepth {
		return nil, fmt.Errorf("includes nested deeper than %d at %s", maxIncludeDepth, path)
	}
	if active[path] {
		return nil, fmt.Errorf("%w: %s", ErrIncludeCycle, path)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read include: %w", err)
	}
	active[path] = true
	defer delete(active, path)

	dir := filepath.Dir(path)
	var splErr error
	out := includeRe.ReplaceAllFunc(data, func(m []byte) []byte {
		if splErr != nil {
			return nil
		}
		hm := hrefRe.FindSubmatch(m)
		if hm == nil {
			splErr = fmt.Errorf("include without href in %s", path)
			return nil
		}
		href := string(hm[1])
		if href == "" {
			href = string(hm[2])
		}
		child := href
		if !filepath.IsAbs(child) {
			child = filepath.Join(dir, href)
		}
		frag, err := expand(child, active, depth+1)
		if err != nil {
			splErr = err
			return nil
		}
		return xmlDeclRe.ReplaceAll(frag, nil)
	})
	if splErr != nil {
		return nil, splErr
	}
	return out, nil
}
