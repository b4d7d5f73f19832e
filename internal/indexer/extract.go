package indexer

import (
	"bytes"
	"strings"

	"golang.org/x/net/html"
	"golang.org/x/text/cases"
	"golang.org/x/text/unicode/norm"

	"github.com/lodeworks/lode/internal/errors"
)

// Document holds the text content extracted from an HTML page.
type Document struct {
	Title string
	Text  string
}

// skipElements are elements whose text content never reaches the index.
var skipElements = map[string]struct{}{
	"script":   {},
	"style":    {},
	"noscript": {},
	"template": {},
	"iframe":   {},
}

// Extract parses HTML and collects the page title and visible text.
// Whitespace runs are collapsed to single spaces.
func Extract(content []byte) (Document, error) {
	doc, err := html.Parse(bytes.NewReader(content))
	if err != nil {
		return Document{}, errors.NewIOError(errors.ErrCodeExtractFailed,
			"failed to parse html document", err)
	}

	var title strings.Builder
	var text strings.Builder
	inTitle := false

	var traverse func(*html.Node)
	traverse = func(n *html.Node) {
		switch n.Type {
		case html.ElementNode:
			if _, skip := skipElements[n.Data]; skip {
				return
			}
			if n.Data == "title" {
				inTitle = true
				defer func() { inTitle = false }()
			}
		case html.TextNode:
			if inTitle {
				title.WriteString(n.Data)
			} else {
				text.WriteString(n.Data)
				text.WriteByte(' ')
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			traverse(c)
		}
	}
	traverse(doc)

	return Document{
		Title: collapseSpace(norm.NFC.String(title.String())),
		Text:  collapseSpace(norm.NFC.String(text.String())),
	}, nil
}

// Normalize prepares text for storage and lookup: unicode normalization to
// NFC, case folding, and whitespace collapsing. Folding rather than
// lowercasing keeps lookups stable for scripts where the two differ.
func Normalize(s string) string {
	return collapseSpace(cases.Fold().String(norm.NFC.String(s)))
}

func collapseSpace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
