package browser

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/aicodereview/page-smoke-tests/client"

	"github.com/launchdarkly/go-test-helpers/v2/httphelpers"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const homePage = "<h1>AI Code Review Pipeline</h1><p>This app deploys automatically!</p>"

func htmlHandler(status int, body string) http.Handler {
	h := make(http.Header)
	h.Set("Content-Type", "text/html; charset=utf-8")
	return httphelpers.HandlerWithResponse(status, h, []byte(body))
}

func withStaticPage(t *testing.T, body string, action func(Page)) {
	httphelpers.WithServer(htmlHandler(200, body), func(server *httptest.Server) {
		b, err := NewStatic(client.New(0), 0)
		require.NoError(t, err)
		page, err := b.Visit(context.Background(), server.URL+"/", nil)
		require.NoError(t, err)
		action(page)
	})
}

func describeAll(els []Element) []string {
	var ret []string
	for _, e := range els {
		ret = append(ret, e.Describe())
	}
	return ret
}

func TestStaticVisitLoadsPage(t *testing.T) {
	withStaticPage(t, homePage, func(page Page) {
		els, err := page.Find(context.Background(), "h1")
		require.NoError(t, err)
		assert.Equal(t, []string{"<h1>"}, describeAll(els))

		els, err = page.Find(context.Background(), "p")
		require.NoError(t, err)
		assert.Len(t, els, 1)

		els, err = page.Find(context.Background(), "body")
		require.NoError(t, err)
		require.Len(t, els, 1)
		visible, err := els[0].Visible(context.Background())
		require.NoError(t, err)
		assert.True(t, visible)
	})
}

func TestStaticFindByTextReturnsDeepestElement(t *testing.T) {
	body := `<div id="outer"><section><p class="lead">This app <b>deploys</b> automatically!</p></section></div>
		<script>var s = "AI Code Review Pipeline";</script>
		<h1>  AI Code
		Review Pipeline </h1>`
	withStaticPage(t, body, func(page Page) {
		els, err := page.FindByText(context.Background(), "This app deploys automatically!")
		require.NoError(t, err)
		assert.Equal(t, []string{`<p class="lead">`}, describeAll(els))

		els, err = page.FindByText(context.Background(), "deploys")
		require.NoError(t, err)
		assert.Equal(t, []string{"<b>"}, describeAll(els))

		els, err = page.FindByText(context.Background(), "AI Code Review Pipeline")
		require.NoError(t, err)
		assert.Equal(t, []string{"<h1>"}, describeAll(els), "script text should not match")

		els, err = page.FindByText(context.Background(), "not on the page")
		require.NoError(t, err)
		assert.Empty(t, els)
	})
}

func TestStaticVisitFailsOnErrorStatus(t *testing.T) {
	httphelpers.WithServer(htmlHandler(500, "<h1>oops</h1>"), func(server *httptest.Server) {
		b, err := NewStatic(nil, 0)
		require.NoError(t, err)
		_, err = b.Visit(context.Background(), server.URL, nil)
		var ne *NavigationError
		require.True(t, errors.As(err, &ne))
		assert.Contains(t, ne.Error(), "HTTP status 500")
	})
}

func TestStaticVisitFailsOnNonHTMLContent(t *testing.T) {
	h := make(http.Header)
	h.Set("Content-Type", "application/json")
	handler := httphelpers.HandlerWithResponse(200, h, []byte(`{"ok":true}`))
	httphelpers.WithServer(handler, func(server *httptest.Server) {
		b, err := NewStatic(nil, 0)
		require.NoError(t, err)
		_, err = b.Visit(context.Background(), server.URL, nil)
		var ne *NavigationError
		require.True(t, errors.As(err, &ne))
		assert.Contains(t, ne.Error(), `content type was "application/json"`)
	})
}

func TestStaticVisitSniffsMissingContentType(t *testing.T) {
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header()["Content-Type"] = nil // suppress the server's own sniffing
		_, _ = w.Write([]byte(homePage))
	})
	httphelpers.WithServer(handler, func(server *httptest.Server) {
		b, err := NewStatic(nil, 0)
		require.NoError(t, err)
		_, err = b.Visit(context.Background(), server.URL, nil)
		assert.NoError(t, err)
	})
}

func TestStaticVisitFailsWhenUnreachable(t *testing.T) {
	server := httptest.NewServer(htmlHandler(200, homePage))
	url := server.URL
	server.Close()

	b, err := NewStatic(nil, 0)
	require.NoError(t, err)
	_, err = b.Visit(context.Background(), url, nil)
	var ne *NavigationError
	require.True(t, errors.As(err, &ne))
	var te *client.TransportError
	assert.True(t, errors.As(err, &te))
}

func TestStaticLookupsRespectCancelledContext(t *testing.T) {
	withStaticPage(t, homePage, func(page Page) {
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		_, err := page.Find(ctx, "h1")
		assert.Error(t, err)
		_, err = page.FindByText(ctx, "AI")
		assert.Error(t, err)
	})
}

func TestOpenRejectsUnknownKind(t *testing.T) {
	_, err := Open(Options{Kind: "netscape"})
	assert.EqualError(t, err, `unknown browser "netscape" (must be one of: static, chrome)`)

	b, err := Open(Options{})
	require.NoError(t, err)
	assert.IsType(t, &StaticBrowser{}, b)
}
