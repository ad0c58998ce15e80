package server

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
)

// DefaultWatchInterval is the polling period for the watch loop.
const DefaultWatchInterval = time.Second

// Watcher polls a source tree for modifications and reruns a build callback.
// Polling keeps the loop portable; the tree sizes involved make a scan per
// second cheap.
type Watcher struct {
	// Dir is the tree to poll.
	Dir string
	// Interval between scans. Zero means DefaultWatchInterval.
	Interval time.Duration
	// OnChange runs after a change settles. Errors are logged, not fatal:
	// a broken edit should not kill the preview session.
	OnChange func(ctx context.Context) error
}

// Run polls until ctx is canceled.
func (w *Watcher) Run(ctx context.Context) error {
	interval := w.Interval
	if interval <= 0 {
		interval = DefaultWatchInterval
	}
	last, err := snapshot(w.Dir)
	if err != nil {
		return err
	}
	log.Info().Str("dir", w.Dir).Msg("watching for changes")

	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			cur, err := snapshot(w.Dir)
			if err != nil {
				log.Warn().Err(err).Msg("watch scan failed")
				continue
			}
			if !changed(last, cur) {
				continue
			}
			last = cur
			log.Info().Msg("source changed, rebuilding")
			if w.OnChange != nil {
				if err := w.OnChange(ctx); err != nil {
					log.Error().Err(err).Msg("rebuild failed, still watching")
				}
			}
		}
	}
}

// snapshot records the mtime of every regular file under dir, skipping
// hidden entries.
func snapshot(dir string) (map[string]time.Time, error) {
	out := map[string]time.Time{}
	err := filepath.WalkDir(dir, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		name := d.Name()
		if strings.HasPrefix(name, ".") && path != dir {
			if d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		if d.IsDir() {
			return nil
		}
		info, err := d.Info()
		if err != nil {
			return nil
		}
		out[path] = info.ModTime()
		return nil
	})
	return out, err
}

func changed(a, b map[string]time.Time) bool {
	if len(a) != len(b) {
		return true
	}
	for k, v := range b {
		if old, ok := a[k]; !ok || !old.Equal(v) {
			return true
		}
	}
	return false
}
