// Package browser provides the page-automation collaborator used by the smoke tests:
// navigating to a URL, finding elements by selector or by text, and deciding whether an
// element is visible.
//
// There are two drivers. The static driver fetches the page over HTTP and evaluates it
// with an HTML parser, approximating visibility from markup and stylesheets; it needs
// nothing installed and is the default. The chrome driver runs a real headless Chromium
// over the DevTools protocol, so scripts run and visibility comes from actual layout.
package browser

import (
	"context"
	"fmt"
	"strings"

	"github.com/aicodereview/page-smoke-tests/client"
	"github.com/aicodereview/page-smoke-tests/framework"
)

const (
	// KindStatic is the HTML-parsing driver.
	KindStatic = "static"
	// KindChrome is the headless Chromium driver.
	KindChrome = "chrome"
)

// Kinds lists the valid driver names.
var Kinds = []string{KindStatic, KindChrome}

// Browser opens pages. Each call to Visit starts from a clean session: no cookies or
// storage carry over from previous visits.
type Browser interface {
	Visit(ctx context.Context, url string, logger framework.Logger) (Page, error)
	Close() error
}

// Page is a loaded document. Lookups never wait; callers that want to wait for content
// to appear poll.
type Page interface {
	URL() string

	// Find returns all elements matching a CSS selector, in document order.
	Find(ctx context.Context, selector string) ([]Element, error)

	// FindByText returns the deepest elements whose rendered text contains text, in
	// document order. Whitespace is collapsed on both sides before comparing.
	FindByText(ctx context.Context, text string) ([]Element, error)

	Close() error
}

// Element is a single node in a Page.
type Element interface {
	Visible(ctx context.Context) (bool, error)
	Describe() string
}

// Options configures Open.
type Options struct {
	Kind string

	// Client is used by the static driver to fetch pages. If nil, a client with default
	// settings is created.
	Client *client.Client

	// ChromeBin is the path of the Chromium executable. If empty, the chrome driver looks
	// for an installed browser and downloads one if none is found.
	ChromeBin string

	// ShowBrowser disables headless mode for the chrome driver.
	ShowBrowser bool

	// StyleCacheSize is the number of parsed stylesheets the static driver keeps.
	StyleCacheSize int

	Logger framework.Logger
}

// Open starts a browser of the requested kind.
func Open(opts Options) (Browser, error) {
	if opts.Logger == nil {
		opts.Logger = framework.NullLogger()
	}
	switch opts.Kind {
	case "", KindStatic:
		return NewStatic(opts.Client, opts.StyleCacheSize)
	case KindChrome:
		return OpenChrome(opts.ChromeBin, !opts.ShowBrowser, opts.Logger)
	default:
		return nil, fmt.Errorf("unknown browser %q (must be one of: %s)", opts.Kind, strings.Join(Kinds, ", "))
	}
}

// NavigationError means a page could not be loaded: the target did not respond, or it
// responded with something other than a successful HTML document.
type NavigationError struct {
	URL    string
	Reason string
	Err    error
}

func (e *NavigationError) Error() string {
	msg := fmt.Sprintf("failed to load %s", e.URL)
	if e.Reason != "" {
		msg += ": " + e.Reason
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *NavigationError) Unwrap() error {
	return e.Err
}

func collapseWhitespace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
