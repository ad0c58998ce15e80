package templates

import (
	"archive/zip"
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"
)

const fetchTimeout = 60 * time.Second

// ScaffoldFromZipURL downloads a zipped template from url and extracts it
// into dir. The archive is rooted at the directory of the first project.xml
// found, so archives with a wrapping top-level folder work unchanged.
func ScaffoldFromZipURL(ctx context.Context, client *http.Client, url, dir string) error {
	if client == nil {
		client = &http.Client{Timeout: fetchTimeout}
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return fmt.Errorf("new request: %w", err)
	}
	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("download template: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("download template: unexpected status %s", resp.Status)
	}
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("download template: %w", err)
	}
	return extractZip(data, dir)
}

func extractZip(data []byte, dir string) error {
	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return fmt.Errorf("open archive: %w", err)
	}

	// Root the extraction at the first manifest in the archive.
	root := ""
	found := false
	for _, f := range zr.File {
		if path.Base(f.Name) == "project.xml" {
			root = path.Dir(f.Name)
			found = true
			break
		}
	}
	if !found {
		return fmt.Errorf("archive contains no project.xml")
	}
	if root == "." {
		root = ""
	}

	for _, f := range zr.File {
		rel := strings.TrimPrefix(f.Name, root)
		rel = strings.TrimPrefix(rel, "/")
		if rel == "" || (root != "" && !strings.HasPrefix(f.Name, root+"/")) {
			continue
		}
		// Guard against path traversal out of dir.
		dst := filepath.Join(dir, filepath.FromSlash(rel))
		if !strings.HasPrefix(dst, filepath.Clean(dir)+string(os.PathSeparator)) {
			return fmt.Errorf("archive entry escapes target directory: %s", f.Name)
		}
		if f.FileInfo().IsDir() {
			if err := os.MkdirAll(dst, 0o755); err != nil {
				return err
			}
			continue
		}
		if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
			return err
		}
		rc, err := f.Open()
		if err != nil {
			return fmt.Errorf("read archive entry %s: %w", f.Name, err)
		}
		out, err := os.Create(dst)
		if err != nil {
			rc.Close()
			return err
		}
		_, cerr := io.Copy(out, rc)
		rc.Close()
		if err := out.Close(); err != nil && cerr == nil {
			cerr = err
		}
		if cerr != nil {
			return fmt.Errorf("extract %s: %w", f.Name, cerr)
		}
	}
	return nil
}
