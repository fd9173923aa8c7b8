package client

import (
	"fmt"
	"mime"
	"strings"
	"unicode/utf8"
)

const maxBodyInError = 200

// TransportError means no HTTP response was received: the target was unreachable, the
// connection broke, or the request timed out.
type TransportError struct {
	Method string
	URL    string
	Err    error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("%s %s failed: %s", e.Method, e.URL, e.Err)
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

// StatusError is returned when a response arrived but its status was not 2xx and the
// request asked to fail on that.
type StatusError struct {
	Method string
	URL    string
	Status int
	Body   []byte
}

func (e *StatusError) Error() string {
	msg := fmt.Sprintf("%s %s returned HTTP status %d", e.Method, e.URL, e.Status)
	if body := strings.TrimSpace(string(e.Body)); body != "" {
		if len(body) > maxBodyInError {
			cut := maxBodyInError
			for cut > 0 && !utf8.RuneStart(body[cut]) {
				cut--
			}
			body = body[:cut] + "... [truncated]"
		}
		msg += ": " + body
	}
	return msg
}

func mediaType(contentType string) string {
	if contentType == "" {
		return ""
	}
	mt, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		return strings.ToLower(strings.TrimSpace(strings.Split(contentType, ";")[0]))
	}
	return mt
}
