package format

import (
	"bytes"
	"slices"
	"strings"

	"golang.org/x/net/html"
)

const maxSimplifyPasses = 10

// UnwrapTableLayout removes single-column layout tables from HTML content while
// keeping tables that carry tabular data. Unparseable input is returned as is.
func UnwrapTableLayout(htmlContent []byte) []byte {
	doc, err := html.Parse(bytes.NewReader(htmlContent))
	if err != nil {
		return htmlContent
	}

	SimplifyLayout(doc)

	var buf bytes.Buffer
	if err := html.Render(&buf, doc); err != nil {
		return htmlContent
	}

	return buf.Bytes()
}

// SimplifyLayout unwraps layout tables in place until the tree stops changing.
func SimplifyLayout(doc *html.Node) {
	for range maxSimplifyPasses {
		if !simplifyNode(doc) {
			return
		}
	}
}

func simplifyNode(n *html.Node) bool {
	changed := false

	// children first, so nested layout tables collapse before their parents
	for child := n.FirstChild; child != nil; {
		next := child.NextSibling
		if simplifyNode(child) {
			changed = true
		}
		child = next
	}

	if isElement(n, "table") && inspectTable(n).isLayout(n) {
		unwrapTable(n)
		changed = true
	}

	return changed
}

// tableShape is what a single walk over a table subtree learns about it.
type tableShape struct {
	hasHeaders  bool
	maxColumns  int
	contentRows int
	rowCells    []int
}

func inspectTable(table *html.Node) tableShape {
	var shape tableShape

	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if isElement(n, "th") || isElement(n, "thead") {
			shape.hasHeaders = true
		}
		if isElement(n, "tr") {
			cells := countCells(n)
			shape.rowCells = append(shape.rowCells, cells)
			shape.maxColumns = max(shape.maxColumns, cells)
			if hasText(n) {
				shape.contentRows++
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(table)

	return shape
}

func (s tableShape) isLayout(table *html.Node) bool {
	if s.hasHeaders || s.maxColumns > 1 {
		return false
	}

	for _, attr := range table.Attr {
		if attr.Key == "id" && (attr.Val == "main" || strings.Contains(attr.Val, "layout") || strings.Contains(attr.Val, "wrapper")) {
			return true
		}
	}

	// a long run of identically shaped rows reads as a data list
	if s.contentRows > 5 && uniformRows(s.rowCells) {
		return false
	}

	return true
}

func uniformRows(counts []int) bool {
	if len(counts) < 2 {
		return false
	}

	return !slices.ContainsFunc(counts[1:], func(c int) bool { return c != counts[0] })
}

func countCells(row *html.Node) int {
	cells := 0
	for c := row.FirstChild; c != nil; c = c.NextSibling {
		if isElement(c, "td") || isElement(c, "th") {
			cells++
		}
	}

	return cells
}

func hasText(n *html.Node) bool {
	if n.Type == html.TextNode {
		return strings.TrimSpace(n.Data) != ""
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if hasText(c) {
			return true
		}
	}

	return false
}

func unwrapTable(table *html.Node) {
	parent := table.Parent
	if parent == nil {
		return
	}

	var content []*html.Node
	collectTableContent(table, &content)

	for _, node := range content {
		parent.InsertBefore(node, table)
	}
	parent.RemoveChild(table)
}

func collectTableContent(n *html.Node, content *[]*html.Node) {
	switch {
	case n.Type == html.ElementNode && isTablePart(n.Data):
		before := len(*content)
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			collectTableContent(c, content)
		}
		// rows become lines
		if n.Data == "tr" && len(*content) > before {
			*content = append(*content, &html.Node{Type: html.TextNode, Data: "\n"})
		}
	case n.Type == html.ElementNode:
		*content = append(*content, cloneNode(n))
	case n.Type == html.TextNode && strings.TrimSpace(n.Data) != "":
		*content = append(*content, &html.Node{Type: html.TextNode, Data: n.Data})
	}
}

func isTablePart(tag string) bool {
	switch tag {
	case "table", "tbody", "thead", "tfoot", "tr", "td", "th":
		return true
	}

	return false
}

func isElement(n *html.Node, tag string) bool {
	return n.Type == html.ElementNode && n.Data == tag
}

func cloneNode(n *html.Node) *html.Node {
	clone := &html.Node{
		Type: n.Type,
		Data: n.Data,
		Attr: slices.Clone(n.Attr),
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		clone.AppendChild(cloneNode(c))
	}

	return clone
}
