package publish

import (
	"os"
	"path/filepath"
	"sort"
	"strings"

	"golang.org/x/net/html"
)

// CheckLinks walks built HTML under dir and reports internal hrefs and srcs
// that do not resolve to a file in the output tree. External schemes,
// fragments, and absolute-URL references are out of scope: only artifacts
// this build produced can be vouched for.
func CheckLinks(dir string) ([]string, error) {
	var broken []string
	seen := map[string]bool{}
	err := filepath.WalkDir(dir, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() || !strings.HasSuffix(path, ".html") {
			return nil
		}
		f, err := os.Open(path)
		if err != nil {
			return err
		}
		doc, perr := html.Parse(f)
		f.Close()
		if perr != nil {
			// Not this layer's job to validate the engine's HTML.
			return nil
		}
		for _, ref := range collectRefs(doc) {
			if !internalRef(ref) {
				continue
			}
			target := strings.SplitN(ref, "#", 2)[0]
			target = strings.SplitN(target, "?", 2)[0]
			if target == "" {
				continue
			}
			resolved := filepath.Join(filepath.Dir(path), filepath.FromSlash(target))
			if _, err := os.Stat(resolved); err != nil {
				rel, rerr := filepath.Rel(dir, path)
				if rerr != nil {
					rel = path
				}
				key := rel + " -> " + ref
				if !seen[key] {
					seen[key] = true
					broken = append(broken, key)
				}
			}
		}
		return nil
	})
	sort.Strings(broken)
	return broken, err
}

func collectRefs(n *html.Node) []string {
	var refs []string
	var walk func(*html.Node)
	walk = func(cur *html.Node) {
		if cur.Type == html.ElementNode {
			for _, a := range cur.Attr {
				if a.Key == "href" || a.Key == "src" {
					refs = append(refs, a.Val)
				}
			}
		}
		for c := cur.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(n)
	return refs
}

func internalRef(ref string) bool {
	switch {
	case ref == "", strings.HasPrefix(ref, "#"):
		return false
	case strings.HasPrefix(ref, "/"):
		// Site-absolute paths depend on the hosting prefix.
		return false
	case strings.Contains(ref, "://"), strings.HasPrefix(ref, "mailto:"),
		strings.HasPrefix(ref, "data:"), strings.HasPrefix(ref, "javascript:"):
		return false
	}
	return true
}
