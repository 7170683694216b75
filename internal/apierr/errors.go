// Package apierr holds the error values shared by the X platform client and
// the image service client.
package apierr

import (
	"fmt"
	"strings"
)

// TransportError reports a request that never produced an HTTP response.
type TransportError struct {
	Op  string // e.g. "GET https://api.twitter.com/2/users/me"
	Err error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("%s: transport: %v", e.Op, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

// APIError is a non-2xx response from either remote service.
type APIError struct {
	Op          string
	Status      int
	ContentType string
	Body        string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("%s: HTTP %d: %s", e.Op, e.Status, Diagnose(e.ContentType, []byte(e.Body)))
}

// DecodeError is a 2xx response whose body did not decode into the expected
// payload. Body holds the raw response text.
type DecodeError struct {
	Op   string
	Body string
	Err  error
}

func (e *DecodeError) Error() string {
	body := strings.TrimSpace(e.Body)
	if body == "" {
		return fmt.Sprintf("%s: failed to parse response: %v", e.Op, e.Err)
	}
	return fmt.Sprintf("%s: failed to parse response: %v: %s", e.Op, e.Err, body)
}

func (e *DecodeError) Unwrap() error { return e.Err }
