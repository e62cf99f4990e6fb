// Package format turns message markup into plain text suitable for indexing.
package format

import (
	"bytes"
	"fmt"

	"github.com/jaytaylor/html2text"
	"golang.org/x/net/html"
)

// Converter renders HTML bodies as plain text.
type Converter struct {
	// KeepLinks leaves link targets next to the anchor text and keeps
	// emphasis markers.
	KeepLinks bool
}

// HTML2Text strips markup, unwraps layout tables and drops link targets.
// Lines are not re-wrapped.
func (c Converter) HTML2Text(raw []byte) (string, error) {
	doc, err := html.Parse(bytes.NewReader(raw))
	if err != nil {
		return "", fmt.Errorf("html.Parse failed: %w", err)
	}

	SimplifyLayout(doc)

	text, err := html2text.FromHTMLNode(doc, html2text.Options{
		OmitLinks: !c.KeepLinks,
		TextOnly:  !c.KeepLinks,
	})
	if err != nil {
		return "", fmt.Errorf("html2text.FromHTMLNode failed: %w", err)
	}

	return text, nil
}
