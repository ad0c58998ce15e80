// Package source inspects authoring-format XML before a build: syntax
// checking, include expansion, and scanning for elements that need generated
// assets. The document semantics stay with the external engine; this layer
// only answers "is it safe and sensible to hand this to the engine".
package source

import (
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"os"
)

// SyntaxError reports an XML well-formedness failure with its position.
type SyntaxError struct {
	Path string
	Line int
	Msg  string
}

func (e *SyntaxError) Error() string {
	return fmt.Sprintf("%s:%d: %s", e.Path, e.Line, e.Msg)
}

// CheckWellFormed scans the file with a tokenizer and returns a SyntaxError
// on the first malformation. Schema conformance is a separate, softer check.
func CheckWellFormed(path string) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("open source: %w", err)
	}
	defer f.Close()

	dec := xml.NewDecoder(f)
	for {
		_, err := dec.Token()
		if err == io.EOF {
			return nil
		}
		if err != nil {
			var syn *xml.SyntaxError
			if errors.As(err, &syn) {
				return &SyntaxError{Path: path, Line: syn.Line, Msg: syn.Msg}
			}
			return &SyntaxError{Path: path, Line: int(dec.InputOffset()), Msg: err.Error()}
		}
	}
}
