package exercises

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"
	"time"
)

func TestExtract(t *testing.T) {
	doc := []byte(`<book>
	<exercise>
		<webwork xml:id="ww-quadratic" source="Library/Quadratics/solve.pg" seed="42"/>
	</exercise>
	<exercise>
		<webwork seed="7"><statement>Compute 1+1.</statement></webwork>
	</exercise>
</book>`)
	exs, err := Extract(doc)
	if err != nil {
		t.Fatalf("extract: %v", err)
	}
	if len(exs) != 2 {
		t.Fatalf("expected 2 exercises, got %d", len(exs))
	}
	if exs[0].ID != "ww-quadratic" || exs[0].Source != "Library/Quadratics/solve.pg" || exs[0].Seed != "42" {
		t.Errorf("first exercise = %+v", exs[0])
	}
	if exs[1].ID != "exercise-2" {
		t.Errorf("positional id = %q", exs[1].ID)
	}
	if !strings.Contains(exs[1].Inline, "Compute 1+1.") {
		t.Errorf("inline body = %q", exs[1].Inline)
	}
}

func renderServer(t *testing.T, hits *atomic.Int32) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		if r.Method != http.MethodPost || r.URL.Path != "/render-api" {
			http.Error(w, "bad request", http.StatusBadRequest)
			return
		}
		if err := r.ParseForm(); err != nil {
			http.Error(w, "bad form", http.StatusBadRequest)
			return
		}
		seed := r.Form.Get("problemSeed")
		_, _ = w.Write([]byte(`<statement seed="` + seed + `">rendered</statement>`))
	}))
}

func TestClientRender(t *testing.T) {
	var hits atomic.Int32
	srv := renderServer(t, &hits)
	defer srv.Close()

	c := &Client{Server: srv.URL, HTTPClient: srv.Client(), MaxAttempts: 2, PerRequestTimeout: 5 * time.Second}
	frag, err := c.Render(context.Background(), Exercise{ID: "e1", Seed: "42", Source: "Library/x.pg"})
	if err != nil {
		t.Fatalf("render: %v", err)
	}
	if !strings.Contains(string(frag), `seed="42"`) {
		t.Errorf("fragment = %s", frag)
	}
}

func TestClientRender_CacheHit(t *testing.T) {
	var hits atomic.Int32
	srv := renderServer(t, &hits)
	defer srv.Close()

	c := &Client{Server: srv.URL, HTTPClient: srv.Client(), Cache: &Cache{Dir: t.TempDir()}}
	ex := Exercise{ID: "e1", Seed: "1", Inline: "problem"}
	if _, err := c.Render(context.Background(), ex); err != nil {
		t.Fatal(err)
	}
	if _, err := c.Render(context.Background(), ex); err != nil {
		t.Fatal(err)
	}
	if hits.Load() != 1 {
		t.Errorf("expected 1 server hit with warm cache, got %d", hits.Load())
	}

	// A different seed misses the cache.
	ex.Seed = "2"
	if _, err := c.Render(context.Background(), ex); err != nil {
		t.Fatal(err)
	}
	if hits.Load() != 2 {
		t.Errorf("expected cache miss on changed seed, got %d hits", hits.Load())
	}
}

func TestClientRender_RetriesThenFails(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		http.Error(w, "down", http.StatusInternalServerError)
	}))
	defer srv.Close()

	c := &Client{Server: srv.URL, HTTPClient: srv.Client(), MaxAttempts: 3}
	if _, err := c.Render(context.Background(), Exercise{ID: "e1"}); err == nil {
		t.Fatal("expected error from failing server")
	}
	if hits.Load() != 3 {
		t.Errorf("expected 3 attempts, got %d", hits.Load())
	}
}

func TestRenderAll_Isolation(t *testing.T) {
	var n atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if n.Add(1)%2 == 0 {
			http.Error(w, "flaky", http.StatusInternalServerError)
			return
		}
		_, _ = w.Write([]byte(`<statement>ok</statement>`))
	}))
	defer srv.Close()

	c := &Client{Server: srv.URL, HTTPClient: srv.Client()}
	rendered, err := c.RenderAll(context.Background(), []Exercise{{ID: "a"}, {ID: "b"}, {ID: "c"}})
	if err != nil {
		t.Fatalf("partial failure must not fail the pass: %v", err)
	}
	if len(rendered) != 2 {
		t.Errorf("expected 2 rendered, got %d", len(rendered))
	}
}

func TestRenderAll_AllFailed(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "down", http.StatusInternalServerError)
	}))
	defer srv.Close()

	c := &Client{Server: srv.URL, HTTPClient: srv.Client()}
	if _, err := c.RenderAll(context.Background(), []Exercise{{ID: "a"}, {ID: "b"}}); err == nil {
		t.Fatal("total failure should surface an error")
	}
}

func TestWriteRepresentations(t *testing.T) {
	path := filepath.Join(t.TempDir(), RepresentationsName)
	rendered := []Rendered{
		{Exercise: Exercise{ID: "e1", Seed: "42"}, Fragment: []byte(`<statement>one</statement>`)},
		{Exercise: Exercise{ID: "e2"}, Fragment: []byte(`<statement>two</statement>`)},
	}
	if err := WriteRepresentations(path, rendered); err != nil {
		t.Fatalf("write: %v", err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	s := string(data)
	for _, want := range []string{`ref="e1"`, `seed="42"`, "<statement>one</statement>", "<statement>two</statement>"} {
		if !strings.Contains(s, want) {
			t.Errorf("representations missing %q:\n%s", want, s)
		}
	}
}

func TestCachePurgeByAge(t *testing.T) {
	dir := t.TempDir()
	c := &Cache{Dir: dir}
	ex := Exercise{ID: "e1", Seed: "1"}
	if err := c.Save(context.Background(), "srv", ex, []byte("body")); err != nil {
		t.Fatal(err)
	}
	// Nothing is old enough yet.
	removed, err := c.PurgeByAge(time.Hour)
	if err != nil || removed != 0 {
		t.Fatalf("purge = %d, %v", removed, err)
	}
	// A tiny max age sweeps the entry.
	time.Sleep(10 * time.Millisecond)
	removed, err = c.PurgeByAge(time.Millisecond)
	if err != nil || removed != 1 {
		t.Fatalf("purge = %d, %v", removed, err)
	}
	if _, err := c.Load(context.Background(), "srv", ex); err == nil {
		t.Error("entry should be gone after purge")
	}
}
