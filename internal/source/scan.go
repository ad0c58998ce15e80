package source

import (
	"bytes"
	"encoding/xml"
	"io"
)

// AssetReport summarizes elements in the effective document whose rendering
// requires generated assets or exercise processing.
type AssetReport struct {
	LatexImages  int
	Asymptote    int
	Sageplot     int
	YoutubeVideo int
	Interactive  int // interactive elements lacking a static preview
	Exercises    int // server-rendered exercise elements
}

// Scan tokenizes the effective (include-expanded) document and counts the
// asset-bearing elements.
func Scan(effective []byte) (AssetReport, error) {
	var r AssetReport
	dec := xml.NewDecoder(bytes.NewReader(effective))
	// The authoring format leans on entities the tokenizer does not know;
	// pass them through rather than failing the scan.
	dec.Strict = false
	for {
		tok, err := dec.Token()
		if err == io.EOF {
			return r, nil
		}
		if err != nil {
			return r, err
		}
		se, ok := tok.(xml.StartElement)
		if !ok {
			continue
		}
		switch se.Name.Local {
		case "latex-image":
			r.LatexImages++
		case "asymptote":
			r.Asymptote++
		case "sageplot":
			r.Sageplot++
		case "video":
			if hasAttr(se, "youtube") {
				r.YoutubeVideo++
			}
		case "interactive":
			if !hasAttr(se, "preview") {
				r.Interactive++
			}
		case "webwork":
			r.Exercises++
		}
	}
}

// NeedsDiagramPass reports whether building format without regenerating
// diagrams would leave stale or missing images.
func (r AssetReport) NeedsDiagramPass(format string) bool {
	switch format {
	case "html":
		return r.LatexImages+r.Asymptote+r.Sageplot > 0
	case "latex", "pdf":
		return r.Asymptote+r.Sageplot+r.YoutubeVideo+r.Interactive > 0
	}
	return false
}

func hasAttr(se xml.StartElement, name string) bool {
	for _, a := range se.Attr {
		if a.Name.Local == name && a.Value != "" {
			return true
		}
	}
	return false
}
