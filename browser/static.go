package browser

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/aicodereview/page-smoke-tests/client"
	"github.com/aicodereview/page-smoke-tests/framework"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html"
)

// StaticBrowser loads pages with a plain HTTP GET and evaluates them with goquery. No
// scripts run. It holds no cookies, so every visit is a fresh session.
type StaticBrowser struct {
	client *client.Client
	styles *styleCache
}

// NewStatic creates a StaticBrowser. A nil client gets default settings; a cache size of
// zero or less gets a default size.
func NewStatic(c *client.Client, styleCacheSize int) (*StaticBrowser, error) {
	if c == nil {
		c = client.New(0)
	}
	styles, err := newStyleCache(styleCacheSize)
	if err != nil {
		return nil, err
	}
	return &StaticBrowser{client: c, styles: styles}, nil
}

// Visit fetches url. As in a browser-driven test runner, the visit fails if the response
// is not a 2xx status or is not an HTML document.
func (b *StaticBrowser) Visit(ctx context.Context, url string, logger framework.Logger) (Page, error) {
	if logger == nil {
		logger = framework.NullLogger()
	}
	header := make(http.Header)
	header.Set("Accept", "text/html,application/xhtml+xml")
	resp, err := b.client.Do(ctx, client.RequestParams{URL: url, Header: header, FailOnStatusCode: true}, logger)
	if err != nil {
		var se *client.StatusError
		if errors.As(err, &se) {
			return nil, &NavigationError{URL: url, Reason: fmt.Sprintf("server responded with HTTP status %d", se.Status)}
		}
		return nil, &NavigationError{URL: url, Err: err}
	}

	contentType := resp.ContentType()
	if contentType == "" {
		contentType = strings.Split(http.DetectContentType(resp.Body), ";")[0]
	}
	if contentType != "text/html" && contentType != "application/xhtml+xml" {
		return nil, &NavigationError{URL: url, Reason: fmt.Sprintf("content type was %q, not HTML", contentType)}
	}

	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(resp.Body))
	if err != nil {
		return nil, &NavigationError{URL: url, Reason: "could not parse HTML", Err: err}
	}
	logger.Printf("Loaded %s", resp.URL)
	return &staticPage{url: resp.URL, doc: doc, styles: b.styles}, nil
}

// Close is a no-op; it exists to satisfy Browser.
func (b *StaticBrowser) Close() error {
	return nil
}

type staticPage struct {
	url      string
	doc      *goquery.Document
	styles   *styleCache
	computed *computedStyles
}

func (p *staticPage) URL() string {
	return p.url
}

func (p *staticPage) Find(ctx context.Context, selector string) ([]Element, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	var ret []Element
	p.doc.Find(selector).Each(func(_ int, s *goquery.Selection) {
		ret = append(ret, &staticElement{page: p, node: s.Nodes[0]})
	})
	return ret, nil
}

func (p *staticPage) FindByText(ctx context.Context, text string) ([]Element, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	want := collapseWhitespace(text)
	var ret []Element
	p.doc.Find("body").Each(func(_ int, s *goquery.Selection) {
		for _, n := range s.Nodes {
			for _, match := range deepestContaining(n, want) {
				ret = append(ret, &staticElement{page: p, node: match})
			}
		}
	})
	return ret, nil
}

func (p *staticPage) Close() error {
	return nil
}

func (p *staticPage) styleOf(n *html.Node) declarations {
	if p.computed == nil {
		p.computed = p.styles.compute(p.doc)
	}
	return p.computed.of(n)
}

type staticElement struct {
	page *staticPage
	node *html.Node
}

func (e *staticElement) Visible(ctx context.Context) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	return isVisible(e.node, e.page.styleOf), nil
}

func (e *staticElement) Describe() string {
	return describeNode(e.node)
}

// deepestContaining walks the subtree under n and returns the elements whose rendered
// text contains want while none of their element children does.
func deepestContaining(n *html.Node, want string) []*html.Node {
	if n.Type != html.ElementNode || notRendered[n.Data] {
		return nil
	}
	if !strings.Contains(collapseWhitespace(renderedText(n)), want) {
		return nil
	}
	var deeper []*html.Node
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		deeper = append(deeper, deepestContaining(c, want)...)
	}
	if len(deeper) > 0 {
		return deeper
	}
	return []*html.Node{n}
}

// renderedText is like the text content of n, but excluding elements that never render.
func renderedText(n *html.Node) string {
	var buf strings.Builder
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		switch n.Type {
		case html.TextNode:
			buf.WriteString(n.Data)
		case html.ElementNode:
			if notRendered[n.Data] {
				return
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(n)
	return buf.String()
}

func describeNode(n *html.Node) string {
	var buf strings.Builder
	buf.WriteString("<" + n.Data)
	for _, a := range n.Attr {
		if a.Key == "id" || a.Key == "class" {
			fmt.Fprintf(&buf, " %s=%q", a.Key, a.Val)
		}
	}
	buf.WriteString(">")
	return buf.String()
}
