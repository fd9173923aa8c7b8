package browser

import (
	"strconv"
	"strings"

	"golang.org/x/net/html"
)

// Elements whose content is never laid out.
var notRendered = map[string]bool{
	"head":     true,
	"script":   true,
	"style":    true,
	"template": true,
	"noscript": true,
	"title":    true,
	"meta":     true,
	"link":     true,
	"base":     true,
}

// Elements that take up space without any text content.
var replaced = map[string]bool{
	"img":      true,
	"input":    true,
	"textarea": true,
	"select":   true,
	"button":   true,
	"video":    true,
	"audio":    true,
	"canvas":   true,
	"svg":      true,
	"iframe":   true,
	"object":   true,
	"embed":    true,
	"hr":       true,
	"progress": true,
	"meter":    true,
}

// isVisible approximates what a browser-driven test runner means by "visible": the
// element is rendered, is not hidden or transparent by itself or an ancestor, and takes
// up space.
func isVisible(n *html.Node, styleOf func(*html.Node) declarations) bool {
	if n == nil || n.Type != html.ElementNode {
		return false
	}
	if hiddenByVisibility(n, styleOf) {
		return false
	}
	for a := n; a != nil && a.Type == html.ElementNode; a = a.Parent {
		style := styleOf(a)
		if notRendered[a.Data] || hasAttr(a, "hidden") || style["display"] == "none" || isZeroLength(style["opacity"]) {
			return false
		}
		if a.Data == "input" && strings.EqualFold(attr(a, "type"), "hidden") {
			return false
		}
	}
	if n.Data == "body" || n.Data == "html" {
		return true
	}
	decls := styleOf(n)
	if isZeroLength(decls["width"]) || isZeroLength(decls["height"]) {
		return false
	}
	return hasRenderableContent(n)
}

// hiddenByVisibility looks at the nearest declared visibility property, since it is
// inherited and a descendant can override it.
func hiddenByVisibility(n *html.Node, styleOf func(*html.Node) declarations) bool {
	for a := n; a != nil && a.Type == html.ElementNode; a = a.Parent {
		if v, ok := styleOf(a)["visibility"]; ok && v != "inherit" {
			return v == "hidden" || v == "collapse"
		}
	}
	return false
}

func hasRenderableContent(n *html.Node) bool {
	if replaced[n.Data] {
		return true
	}
	if strings.TrimSpace(renderedText(n)) != "" {
		return true
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if c.Type == html.ElementNode && !notRendered[c.Data] && hasRenderableContent(c) {
			return true
		}
	}
	return false
}

func isZeroLength(value string) bool {
	if value == "" {
		return false
	}
	num := strings.TrimRight(value, "abcdefghijklmnopqrstuvwxyz%")
	f, err := strconv.ParseFloat(strings.TrimSpace(num), 64)
	return err == nil && f == 0
}

func hasAttr(n *html.Node, key string) bool {
	for _, a := range n.Attr {
		if a.Key == key {
			return true
		}
	}
	return false
}

func attr(n *html.Node, key string) string {
	for _, a := range n.Attr {
		if a.Key == key {
			return a.Val
		}
	}
	return ""
}
