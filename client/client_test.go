package client

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
	"unicode/utf8"

	"github.com/aicodereview/page-smoke-tests/framework"

	"github.com/launchdarkly/go-test-helpers/v2/httphelpers"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func htmlHeaders() http.Header {
	h := make(http.Header)
	h.Set("Content-Type", "text/html; charset=utf-8")
	return h
}

func TestSuccessfulRequest(t *testing.T) {
	handler := httphelpers.HandlerWithResponse(200, htmlHeaders(), []byte("<h1>hello</h1>"))
	httphelpers.WithServer(handler, func(server *httptest.Server) {
		var logger framework.CapturingLogger
		resp, err := New(0).Do(context.Background(), RequestParams{URL: server.URL + "/", FailOnStatusCode: true}, &logger)
		require.NoError(t, err)

		assert.Equal(t, 200, resp.Status)
		assert.True(t, resp.IsSuccess())
		assert.Equal(t, "<h1>hello</h1>", string(resp.Body))
		assert.Equal(t, "text/html", resp.ContentType())
		assert.Equal(t, server.URL+"/", resp.URL)
		assert.Len(t, logger.Output(), 2)
	})
}

func TestNon2xxStatusIsNotAnErrorByDefault(t *testing.T) {
	httphelpers.WithServer(httphelpers.HandlerWithStatus(404), func(server *httptest.Server) {
		resp, err := New(0).Do(context.Background(), RequestParams{URL: server.URL}, nil)
		require.NoError(t, err)
		assert.Equal(t, 404, resp.Status)
		assert.False(t, resp.IsSuccess())
	})
}

func TestNon2xxStatusWithFailOnStatusCode(t *testing.T) {
	handler := httphelpers.HandlerWithResponse(503, nil, []byte("down for maintenance"))
	httphelpers.WithServer(handler, func(server *httptest.Server) {
		resp, err := New(0).Do(context.Background(), RequestParams{URL: server.URL, FailOnStatusCode: true}, nil)
		require.Error(t, err)

		var se *StatusError
		require.True(t, errors.As(err, &se))
		assert.Equal(t, 503, se.Status)
		assert.Equal(t, 503, resp.Status)
		assert.Contains(t, err.Error(), "returned HTTP status 503: down for maintenance")
	})
}

func TestConnectionRefusedIsTransportError(t *testing.T) {
	server := httptest.NewServer(httphelpers.HandlerWithStatus(200))
	url := server.URL
	server.Close()

	_, err := New(time.Second).Do(context.Background(), RequestParams{URL: url}, nil)
	require.Error(t, err)

	var te *TransportError
	require.True(t, errors.As(err, &te))
	assert.Equal(t, "GET", te.Method)
	assert.Equal(t, url, te.URL)
}

func TestBrokenConnectionIsTransportError(t *testing.T) {
	httphelpers.WithServer(httphelpers.BrokenConnectionHandler(), func(server *httptest.Server) {
		_, err := New(time.Second).Do(context.Background(), RequestParams{URL: server.URL}, nil)
		var te *TransportError
		assert.True(t, errors.As(err, &te))
	})
}

func TestMalformedURLIsTransportError(t *testing.T) {
	_, err := New(0).Do(context.Background(), RequestParams{URL: "http://[::1"}, nil)
	var te *TransportError
	assert.True(t, errors.As(err, &te))
}

func TestMethodAndHeadersAreSent(t *testing.T) {
	handler, requestsCh := httphelpers.RecordingHandler(httphelpers.HandlerWithStatus(204))
	httphelpers.WithServer(handler, func(server *httptest.Server) {
		header := make(http.Header)
		header.Set("X-Smoke", "yes")
		_, err := New(0).Do(context.Background(), RequestParams{Method: "HEAD", URL: server.URL, Header: header}, nil)
		require.NoError(t, err)

		r := <-requestsCh
		assert.Equal(t, "HEAD", r.Request.Method)
		assert.Equal(t, "yes", r.Request.Header.Get("X-Smoke"))
	})
}

func TestRedirectsAreFollowed(t *testing.T) {
	mux := http.NewServeMux()
	mux.Handle("/old", http.RedirectHandler("/new", http.StatusMovedPermanently))
	mux.Handle("/new", httphelpers.HandlerWithStatus(200))
	httphelpers.WithServer(mux, func(server *httptest.Server) {
		resp, err := New(0).Do(context.Background(), RequestParams{URL: server.URL + "/old"}, nil)
		require.NoError(t, err)
		assert.Equal(t, 200, resp.Status)
		assert.Equal(t, server.URL+"/new", resp.URL)
	})
}

func TestCancelledContext(t *testing.T) {
	httphelpers.WithServer(httphelpers.HandlerWithStatus(200), func(server *httptest.Server) {
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		_, err := New(0).Do(ctx, RequestParams{URL: server.URL}, nil)
		assert.True(t, errors.Is(err, context.Canceled))
	})
}

func TestStatusErrorTruncatesLongBody(t *testing.T) {
	body := make([]byte, 500)
	for i := range body {
		body[i] = 'x'
	}
	err := &StatusError{Method: "GET", URL: "http://x", Status: 500, Body: body}
	assert.Contains(t, err.Error(), "... [truncated]")
	assert.Less(t, len(err.Error()), 300)
}

func TestStatusErrorTruncatesOnRuneBoundary(t *testing.T) {
	body := []byte(strings.Repeat("x", maxBodyInError-1) + "é and more")
	err := &StatusError{Method: "GET", URL: "http://x", Status: 500, Body: body}
	msg := err.Error()
	assert.True(t, utf8.ValidString(msg), "message was %q", msg)
	assert.True(t, strings.HasSuffix(msg, strings.Repeat("x", maxBodyInError-1)+"... [truncated]"))
}
