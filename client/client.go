// Package client implements the raw HTTP request utility used by the smoke tests, for
// checks that care about the transport-level response rather than the rendered page.
package client

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/aicodereview/page-smoke-tests/framework"
)

const (
	// DefaultTimeout is used if no timeout is specified. It is the time allowed for an
	// entire request, including reading the body.
	DefaultTimeout = time.Second * 30

	maxRedirects = 10
)

// RequestParams describes a single request.
type RequestParams struct {
	// Method defaults to GET.
	Method string
	URL    string
	Header http.Header
	Body   io.Reader

	// FailOnStatusCode causes Do to return a *StatusError for any status outside of 2xx.
	// When it is false, every response that arrives is returned as-is.
	FailOnStatusCode bool
}

// Response is what came back from the target.
type Response struct {
	Status int
	Header http.Header
	Body   []byte

	// URL is the final URL after following redirects.
	URL string
}

// IsSuccess is true for any 2xx status.
func (r Response) IsSuccess() bool {
	return r.Status >= 200 && r.Status < 300
}

// ContentType returns the media type of the response without parameters.
func (r Response) ContentType() string {
	return mediaType(r.Header.Get("Content-Type"))
}

// Client performs requests against the target. The zero value is not usable; call New.
type Client struct {
	http *http.Client
}

// New creates a Client whose requests time out after the given duration. A zero timeout
// means DefaultTimeout.
func New(timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Client{
		http: &http.Client{
			Timeout: timeout,
			CheckRedirect: func(req *http.Request, via []*http.Request) error {
				if len(via) >= maxRedirects {
					return fmt.Errorf("stopped after %d redirects", maxRedirects)
				}
				return nil
			},
		},
	}
}

// HTTPClient exposes the underlying client, for callers that need to reuse its settings.
func (c *Client) HTTPClient() *http.Client {
	return c.http
}

// Do performs the request. Network-level problems are returned as *TransportError. If
// params.FailOnStatusCode is set, a non-2xx status is returned as *StatusError along with
// the response.
//
// The logger may be nil.
func (c *Client) Do(ctx context.Context, params RequestParams, logger framework.Logger) (Response, error) {
	if logger == nil {
		logger = framework.NullLogger()
	}
	method := params.Method
	if method == "" {
		method = http.MethodGet
	}

	req, err := http.NewRequestWithContext(ctx, method, params.URL, params.Body)
	if err != nil {
		return Response{}, &TransportError{Method: method, URL: params.URL, Err: err}
	}
	for name, values := range params.Header {
		for _, v := range values {
			req.Header.Add(name, v)
		}
	}

	logger.Printf("%s %s", method, params.URL)
	started := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		logger.Printf("%s %s failed: %s", method, params.URL, err)
		return Response{}, &TransportError{Method: method, URL: params.URL, Err: err}
	}
	body, err := io.ReadAll(resp.Body)
	_ = resp.Body.Close()
	if err != nil {
		return Response{}, &TransportError{Method: method, URL: params.URL, Err: fmt.Errorf("error reading response body: %w", err)}
	}

	ret := Response{
		Status: resp.StatusCode,
		Header: resp.Header,
		Body:   body,
		URL:    resp.Request.URL.String(),
	}
	logger.Printf("%s %s returned HTTP %d (%d bytes, %s)", method, params.URL, ret.Status, len(body),
		time.Since(started).Round(time.Millisecond))

	if params.FailOnStatusCode && !ret.IsSuccess() {
		return ret, &StatusError{Method: method, URL: params.URL, Status: ret.Status, Body: body}
	}
	return ret, nil
}
