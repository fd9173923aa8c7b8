package smoketests

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/aicodereview/page-smoke-tests/browser"
	"github.com/aicodereview/page-smoke-tests/client"
	"github.com/aicodereview/page-smoke-tests/framework"

	"github.com/stretchr/testify/require"
)

// T represents a test or subtest in our smoke test suite.
//
// It implements the same basic functionality as Go's testing.T, but in an environment that is outside
// of the Go test runner, and with some extra features such as debug logging that are convenient for
// our use case. Those features are provided by our lower-level framework package.
//
// It also provides the page-level operations the tests are written in terms of: visiting a path,
// finding content, and making raw requests. Paths are resolved against the configured base URL.
//
// To make test assertions, you can use the assert and require packages, passing the *T as if it were
// a *testing.T. The Subject methods have assertions built in, which fail the test and immediately
// exit if the expected content does not appear in time.
type T struct {
	context *framework.Context
	env     *Environment
}

func newTestScope(context *framework.Context, env *Environment) *T {
	return &T{context: context, env: env}
}

// Errorf is called by assertions to log a test failure. It does not cause an immediate exit.
func (t *T) Errorf(format string, args ...interface{}) {
	t.context.Errorf(format, args...)
}

// FailNow is called by assertions when a test should fail and immediately exit. The methods in
// the require package call FailNow.
func (t *T) FailNow() {
	t.context.FailNow()
}

// Run runs a subtest. This is equivalent to the Run method of testing.T.
func (t *T) Run(name string, action func(*T)) {
	t.context.Run(name, func(c *framework.Context) {
		action(newTestScope(c, t.env))
	})
}

// Debug logs some debug output for the test. The output will be passed to the test logger at
// the end of the test.
func (t *T) Debug(format string, args ...interface{}) {
	t.context.Debug(format, args...)
}

// Defer schedules cleanup for the end of the test.
func (t *T) Defer(fn func()) {
	t.context.Defer(fn)
}

// Visit navigates to path, relative to the base URL. The test fails and immediately exits if the
// page cannot be loaded. The page is closed when the test ends.
func (t *T) Visit(path string) *Page {
	url := t.resolve(path)
	ctx, cancel := context.WithTimeout(t.context.Context(), t.env.Config.PageLoadTimeout)
	defer cancel()

	page, err := t.env.Browser.Visit(ctx, url, t.context.DebugLogger())
	require.NoError(t, err, "visit to %s failed", url)
	t.Defer(func() {
		if err := page.Close(); err != nil {
			t.Debug("error closing page: %s", err)
		}
	})
	return &Page{t: t, page: page}
}

// Request performs a raw HTTP request, with params.URL relative to the base URL. The test fails and
// immediately exits on a transport error, or on a non-2xx status if params.FailOnStatusCode is set.
func (t *T) Request(params client.RequestParams) client.Response {
	params.URL = t.resolve(params.URL)
	resp, err := t.env.Client.Do(t.context.Context(), params, t.context.DebugLogger())
	require.NoError(t, err, "request to %s failed", params.URL)
	return resp
}

func (t *T) resolve(path string) string {
	url, err := t.env.Config.ResolveURL(path)
	require.NoError(t, err)
	return url
}

// Page is a page that a test has visited.
type Page struct {
	t    *T
	page browser.Page
}

// Get refers to the elements matching a CSS selector.
func (p *Page) Get(selector string) *Subject {
	return &Subject{
		page:        p,
		description: fmt.Sprintf("element %q", selector),
		query: func(ctx context.Context) ([]browser.Element, error) {
			return p.page.Find(ctx, selector)
		},
	}
}

// Contains refers to the deepest element containing text. If several do, the first in document
// order is used.
func (p *Page) Contains(text string) *Subject {
	return &Subject{
		page:        p,
		description: fmt.Sprintf("content %q", text),
		query: func(ctx context.Context) ([]browser.Element, error) {
			els, err := p.page.FindByText(ctx, text)
			if len(els) > 1 {
				els = els[:1]
			}
			return els, err
		},
	}
}

// Subject is a lazily evaluated element query. Each assertion re-runs the query until it is
// satisfied or the command timeout expires.
type Subject struct {
	page        *Page
	description string
	query       func(context.Context) ([]browser.Element, error)
}

// ShouldExist asserts that at least one element matches.
func (s *Subject) ShouldExist() *Subject {
	s.await("exist", func(ctx context.Context, els []browser.Element) (bool, error) {
		return len(els) > 0, nil
	})
	return s
}

// ShouldBeVisible asserts that at least one element matches and is visible.
func (s *Subject) ShouldBeVisible() *Subject {
	s.await("be visible", func(ctx context.Context, els []browser.Element) (bool, error) {
		if len(els) == 0 {
			return false, nil
		}
		for _, el := range els {
			visible, err := el.Visible(ctx)
			if err != nil {
				return false, err
			}
			if visible {
				return true, nil
			}
		}
		return false, nil
	})
	return s
}

func (s *Subject) await(expectation string, condition func(context.Context, []browser.Element) (bool, error)) {
	t := s.page.t
	timeout := t.env.Config.CommandTimeout
	ctx, cancel := context.WithTimeout(t.context.Context(), timeout)
	defer cancel()
	ticker := time.NewTicker(t.env.Config.PollInterval)
	defer ticker.Stop()

	var (
		lastErr   error
		lastFound []browser.Element
		attempts  int
	)
	for {
		attempts++
		els, err := s.query(ctx)
		if err == nil {
			lastFound = els
			var ok bool
			ok, err = condition(ctx, els)
			if ok {
				t.Debug("%s satisfied \"%s\" after %d attempt(s)", s.description, expectation, attempts)
				return
			}
		}
		if err != nil && ctx.Err() == nil {
			lastErr = err
		}
		select {
		case <-ctx.Done():
			require.Fail(t, fmt.Sprintf("expected %s to %s", s.description, expectation),
				"timed out after %s on %s; %s", timeout, s.page.page.URL(), describeLast(lastFound, lastErr))
		case <-ticker.C:
		}
	}
}

func describeLast(found []browser.Element, err error) string {
	if err != nil {
		return "last error: " + err.Error()
	}
	if len(found) == 0 {
		return "no matching element was found"
	}
	var names []string
	for _, el := range found {
		names = append(names, el.Describe())
	}
	return "found " + strings.Join(names, ", ") + " but the condition was not met"
}
