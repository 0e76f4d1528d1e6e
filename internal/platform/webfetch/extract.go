package webfetch

import (
	"net/url"
	"strings"

	"github.com/go-shiori/go-readability"
	"golang.org/x/net/html"
)

var skipElements = map[string]bool{
	"script":   true,
	"style":    true,
	"noscript": true,
	"template": true,
}

// TagText returns the text found inside any of tags, one block per outermost matching element.
func TagText(rawHTML string, tags []string) (string, error) {
	doc, err := html.Parse(strings.NewReader(rawHTML))
	if err != nil {
		return "", err
	}
	want := make(map[string]bool, len(tags))
	for _, t := range tags {
		if t = strings.ToLower(strings.TrimSpace(t)); t != "" {
			want[t] = true
		}
	}

	var blocks []string
	var collect func(n *html.Node, b *strings.Builder)
	collect = func(n *html.Node, b *strings.Builder) {
		switch n.Type {
		case html.TextNode:
			if s := strings.TrimSpace(n.Data); s != "" {
				if b.Len() > 0 {
					b.WriteByte(' ')
				}
				b.WriteString(s)
			}
			return
		case html.ElementNode:
			if skipElements[n.Data] {
				return
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			collect(c, b)
		}
	}
	var walk func(n *html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode {
			if skipElements[n.Data] {
				return
			}
			if want[n.Data] {
				var b strings.Builder
				collect(n, &b)
				if b.Len() > 0 {
					blocks = append(blocks, b.String())
				}
				return
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(doc)
	return strings.Join(blocks, "\n"), nil
}

// ExtractText applies the tag filter and falls back to readability when the filter finds nothing.
func ExtractText(rawHTML string, pageURL string, tags []string) (string, error) {
	text, err := TagText(rawHTML, tags)
	if err == nil && strings.TrimSpace(text) != "" {
		return text, nil
	}
	u, perr := url.Parse(pageURL)
	if perr != nil {
		u = &url.URL{}
	}
	article, rerr := readability.FromReader(strings.NewReader(rawHTML), u)
	if rerr != nil {
		if err != nil {
			return "", err
		}
		return "", rerr
	}
	return strings.TrimSpace(article.TextContent), nil
}
