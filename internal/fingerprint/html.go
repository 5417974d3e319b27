package fingerprint

import (
	"bytes"
	"fmt"
	"io"
	"strings"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

// ScriptSources parses an HTML document and returns the src attribute of
// every <script> element in document order. Inline scripts are skipped.
func ScriptSources(r io.Reader) ([]string, error) {
	doc, err := html.Parse(r)
	if err != nil {
		return nil, fmt.Errorf("parse html: %w", err)
	}
	var sources []string
	collectScriptSources(doc, &sources)
	return sources, nil
}

func collectScriptSources(n *html.Node, dst *[]string) {
	if n.Type == html.ElementNode && n.DataAtom == atom.Script {
		for _, attr := range n.Attr {
			if attr.Namespace == "" && strings.EqualFold(attr.Key, "src") {
				if src := strings.TrimSpace(attr.Val); src != "" {
					*dst = append(*dst, src)
				}
				break
			}
		}
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		collectScriptSources(c, dst)
	}
}

// FromHTML parses an HTML document and returns its bundle fingerprint.
func FromHTML(r io.Reader) (string, error) {
	sources, err := ScriptSources(r)
	if err != nil {
		return "", err
	}
	return Extract(sources), nil
}

// FromBytes is FromHTML over an in-memory document.
func FromBytes(data []byte) (string, error) {
	return FromHTML(bytes.NewReader(data))
}
