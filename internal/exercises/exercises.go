// Package exercises regenerates server-rendered exercises: interactive
// problems are posted to a render server and the returned XML fragments are
// consolidated into a representations file beside the main source, where the
// engine picks them up on the next build.
package exercises

import (
	"bytes"
	"context"
	"encoding/xml"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
)

// RepresentationsName is the consolidated output file, written next to the
// main source file.
const RepresentationsName = "exercise-representations.xml"

// Exercise is one server-rendered problem lifted from the effective source.
type Exercise struct {
	// ID names the problem; xml:id when present, positional otherwise.
	ID string
	// Source is the problem library path from the source attribute, empty
	// for inline problems.
	Source string
	// Seed randomizes parameterized problems.
	Seed string
	// Inline holds the problem body for inline problems.
	Inline string
}

// Extract collects every server-rendered exercise element from the effective
// document.
func Extract(effective []byte) ([]Exercise, error) {
	var out []Exercise
	dec := xml.NewDecoder(bytes.NewReader(effective))
	dec.Strict = false
	n := 0
	for {
		tok, err := dec.Token()
		if err == io.EOF {
			return out, nil
		}
		if err != nil {
			return out, err
		}
		se, ok := tok.(xml.StartElement)
		if !ok || se.Name.Local != "webwork" {
			continue
		}
		n++
		ex := Exercise{ID: fmt.Sprintf("exercise-%d", n)}
		for _, a := range se.Attr {
			switch a.Name.Local {
			case "id":
				ex.ID = a.Value
			case "source":
				ex.Source = a.Value
			case "seed":
				ex.Seed = a.Value
			}
		}
		var body strings.Builder
		depth := 1
		for depth > 0 {
			t, err := dec.Token()
			if err != nil {
				return out, fmt.Errorf("unterminated exercise %s: %w", ex.ID, err)
			}
			switch t := t.(type) {
			case xml.StartElement:
				depth++
			case xml.EndElement:
				depth--
			case xml.CharData:
				body.Write(t)
			}
		}
		ex.Inline = strings.TrimSpace(body.String())
		out = append(out, ex)
	}
}

// Rendered pairs an exercise with the XML fragment the server produced.
type Rendered struct {
	Exercise Exercise
	Fragment []byte
}

// Client renders exercises against a server, with bounded retry and an
// optional on-disk cache keyed by the problem inputs.
type Client struct {
	Server     string
	HTTPClient *http.Client
	// MaxAttempts includes the initial attempt. Minimum 1.
	MaxAttempts int
	// PerRequestTimeout bounds each request.
	PerRequestTimeout time.Duration
	Cache             *Cache
}

// renderPath is the server endpoint accepting problem submissions.
const renderPath = "/render-api"

// Render posts one exercise and returns the XML fragment.
func (c *Client) Render(ctx context.Context, ex Exercise) ([]byte, error) {
	if c.Cache != nil {
		if body, err := c.Cache.Load(ctx, c.Server, ex); err == nil {
			log.Debug().Str("exercise", ex.ID).Msg("render served from cache")
			return body, nil
		}
	}
	attempts := c.MaxAttempts
	if attempts <= 0 {
		attempts = 1
	}
	var lastErr error
	for i := 0; i < attempts; i++ {
		body, err := c.tryOnce(ctx, ex)
		if err == nil {
			if c.Cache != nil {
				if cerr := c.Cache.Save(ctx, c.Server, ex, body); cerr != nil {
					log.Debug().Err(cerr).Msg("render cache write failed")
				}
			}
			return body, nil
		}
		lastErr = err
		if i < attempts-1 {
			time.Sleep(time.Duration(i+1) * 200 * time.Millisecond)
		}
	}
	return nil, lastErr
}

func (c *Client) tryOnce(ctx context.Context, ex Exercise) ([]byte, error) {
	if c.PerRequestTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.PerRequestTimeout)
		defer cancel()
	}
	form := url.Values{}
	form.Set("outputformat", "xml")
	form.Set("problemSeed", ex.Seed)
	if ex.Source != "" {
		form.Set("sourceFilePath", ex.Source)
	} else {
		form.Set("problemSource", ex.Inline)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		strings.TrimRight(c.Server, "/")+renderPath, strings.NewReader(form.Encode()))
	if err != nil {
		return nil, fmt.Errorf("new request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	client := c.HTTPClient
	if client == nil {
		client = http.DefaultClient
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("render request: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("render server returned %s", resp.Status)
	}
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read render response: %w", err)
	}
	return body, nil
}

// RenderAll renders every exercise with per-problem failure isolation. The
// error is non-nil only when every exercise failed.
func (c *Client) RenderAll(ctx context.Context, exs []Exercise) ([]Rendered, error) {
	out := make([]Rendered, 0, len(exs))
	failed := 0
	for _, ex := range exs {
		frag, err := c.Render(ctx, ex)
		if err != nil {
			failed++
			log.Warn().Err(err).Str("exercise", ex.ID).Msg("exercise render failed, continuing")
			continue
		}
		out = append(out, Rendered{Exercise: ex, Fragment: frag})
	}
	log.Info().Int("total", len(exs)).Int("failed", failed).Msg("exercise pass done")
	if len(exs) > 0 && failed == len(exs) {
		return out, fmt.Errorf("all %d exercises failed to render", failed)
	}
	return out, nil
}

type representationsXML struct {
	XMLName   xml.Name            `xml:"exercise-representations"`
	Generated string              `xml:"generated,attr"`
	Exercises []representationXML `xml:"exercise"`
}

type representationXML struct {
	Ref      string `xml:"ref,attr"`
	Seed     string `xml:"seed,attr,omitempty"`
	Fragment string `xml:",innerxml"`
}

// WriteRepresentations writes the consolidated representations document.
func WriteRepresentations(path string, rendered []Rendered) error {
	doc := representationsXML{Generated: time.Now().UTC().Format(time.RFC3339)}
	for _, r := range rendered {
		doc.Exercises = append(doc.Exercises, representationXML{
			Ref:      r.Exercise.ID,
			Seed:     r.Exercise.Seed,
			Fragment: string(r.Fragment),
		})
	}
	data, err := xml.MarshalIndent(doc, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal representations: %w", err)
	}
	data = append([]byte(xml.Header), data...)
	data = append(data, '\n')
	return os.WriteFile(path, data, 0o644)
}
