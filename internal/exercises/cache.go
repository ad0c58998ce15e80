package exercises

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"time"
)

// Cache stores render responses on disk as <key>.meta.json and <key>.body
// where key hashes the server and every problem input. Deterministic and
// eviction-free: exercise renders are small and rebuilding clears naturally
// when inputs change.
type Cache struct {
	Dir string
}

// entry captures provenance for a cached fragment.
type entry struct {
	Server  string    `json:"server"`
	Ref     string    `json:"ref"`
	SavedAt time.Time `json:"saved_at"`
}

func (c *Cache) ensureDir() error {
	if c == nil || c.Dir == "" {
		return errors.New("cache dir not configured")
	}
	return os.MkdirAll(c.Dir, 0o755)
}

func key(server string, ex Exercise) string {
	h := sha256.New()
	for _, s := range []string{server, ex.Source, ex.Seed, ex.Inline} {
		h.Write([]byte(s))
		h.Write([]byte{0})
	}
	return hex.EncodeToString(h.Sum(nil))
}

func (c *Cache) metaPath(k string) string { return filepath.Join(c.Dir, k+".meta.json") }
func (c *Cache) bodyPath(k string) string { return filepath.Join(c.Dir, k+".body") }

// Load returns the cached fragment for the exercise, if present.
func (c *Cache) Load(_ context.Context, server string, ex Exercise) ([]byte, error) {
	if err := c.ensureDir(); err != nil {
		return nil, err
	}
	return os.ReadFile(c.bodyPath(key(server, ex)))
}

// Save stores a rendered fragment. The body lands first so a crash between
// the two writes leaves no meta pointing at nothing.
func (c *Cache) Save(_ context.Context, server string, ex Exercise, body []byte) error {
	if err := c.ensureDir(); err != nil {
		return err
	}
	k := key(server, ex)
	if err := os.WriteFile(c.bodyPath(k), body, 0o644); err != nil {
		return err
	}
	meta := entry{Server: server, Ref: ex.ID, SavedAt: time.Now().UTC()}
	tmp := c.metaPath(k) + ".tmp"
	f, err := os.Create(tmp)
	if err != nil {
		return err
	}
	if err := json.NewEncoder(f).Encode(&meta); err != nil {
		f.Close()
		return err
	}
	if err := f.Close(); err != nil {
		return err
	}
	return os.Rename(tmp, c.metaPath(k))
}

// PurgeByAge removes cache entries older than maxAge and reports how many
// were dropped.
func (c *Cache) PurgeByAge(maxAge time.Duration) (int, error) {
	if c == nil || c.Dir == "" || maxAge <= 0 {
		return 0, nil
	}
	metas, err := filepath.Glob(filepath.Join(c.Dir, "*.meta.json"))
	if err != nil {
		return 0, err
	}
	removed := 0
	cutoff := time.Now().Add(-maxAge)
	for _, m := range metas {
		data, err := os.ReadFile(m)
		if err != nil {
			continue
		}
		var e entry
		if err := json.Unmarshal(data, &e); err != nil || e.SavedAt.Before(cutoff) {
			k := filepath.Base(m)
			k = k[:len(k)-len(".meta.json")]
			_ = os.Remove(c.bodyPath(k))
			_ = os.Remove(m)
			removed++
		}
	}
	return removed, nil
}
