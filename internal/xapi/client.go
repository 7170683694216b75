// Package xapi talks to the X platform: OAuth1-signed requests, identity and
// timeline lookups, the chunked media upload and v2 post creation.
package xapi

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"runtime"
	"time"

	"github.com/dghubble/oauth1"
	"github.com/dghubble/sling"

	"github.com/mikequentel/capyhourly/internal/apierr"
	"github.com/mikequentel/capyhourly/internal/config"
	"github.com/mikequentel/capyhourly/internal/model"
)

// Version is reported in the User-Agent header.
const Version = "0.1.0"

const (
	defaultAPIURL    = config.DefaultAPIURL
	defaultUploadURL = config.DefaultUploadURL
	defaultTimeout   = 30 * time.Second
)

// Options configure a Client. Zero values use the production endpoints.
type Options struct {
	APIURL    string
	UploadURL string
	Timeout   time.Duration

	// Transport is the round tripper underneath the signing transport.
	// nil uses http.DefaultTransport.
	Transport http.RoundTripper

	// Now is used for media handle expiry; nil uses time.Now.
	Now func() time.Time
}

// Client signs and sends X API requests.
type Client struct {
	http      *http.Client
	apiURL    string
	uploadURL string
	userAgent string
	now       func() time.Time
}

// NewClient builds a Client whose every request is signed with creds.
func NewClient(creds config.Credentials, opts Options) *Client {
	if opts.APIURL == "" {
		opts.APIURL = defaultAPIURL
	}
	if opts.UploadURL == "" {
		opts.UploadURL = defaultUploadURL
	}
	if opts.Timeout <= 0 {
		opts.Timeout = defaultTimeout
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}

	ctx := context.Background()
	if opts.Transport != nil {
		ctx = context.WithValue(ctx, oauth1.HTTPClient, &http.Client{Transport: opts.Transport})
	}
	cfg := oauth1.NewConfig(creds.ConsumerKey, creds.ConsumerSecret)
	token := oauth1.NewToken(creds.AccessToken, creds.AccessSecret)
	httpClient := cfg.Client(ctx, token)
	httpClient.Timeout = opts.Timeout

	return &Client{
		http:      httpClient,
		apiURL:    opts.APIURL,
		uploadURL: opts.UploadURL,
		userAgent: fmt.Sprintf("capyhourly/%s on %s", Version, runtime.GOOS),
		now:       opts.Now,
	}
}

// HTTPClient returns the signing HTTP client, for callers that drive other
// X API libraries with the same credentials.
func (c *Client) HTTPClient() *http.Client {
	return c.http
}

// request describes one signed call. path is resolved against the API base
// URL unless it is already absolute.
type request struct {
	method      string
	path        string
	query       any // go-querystring tagged struct
	body        io.Reader
	contentType string
}

func (r request) op() string {
	return r.method + " " + r.path
}

func (c *Client) newRequest(ctx context.Context, r request) (*http.Request, error) {
	s := sling.New().Base(c.apiURL).
		Set("Accept", "application/json").
		Set("User-Agent", c.userAgent)

	switch r.method {
	case http.MethodGet:
		s = s.Get(r.path)
	case http.MethodPost:
		s = s.Post(r.path)
	default:
		return nil, fmt.Errorf("unsupported method %q", r.method)
	}
	if r.query != nil {
		s = s.QueryStruct(r.query)
	}
	if r.body != nil {
		s = s.Body(r.body)
		if r.contentType != "" {
			s = s.Set("Content-Type", r.contentType)
		}
	}

	req, err := s.Request()
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	return req.WithContext(ctx), nil
}

// send signs and sends r and reads the whole body. It does not look at the
// status code.
func (c *Client) send(ctx context.Context, r request) (*http.Response, []byte, error) {
	req, err := c.newRequest(ctx, r)
	if err != nil {
		return nil, nil, err
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, nil, &apierr.TransportError{Op: r.op(), Err: err}
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, nil, &apierr.TransportError{Op: r.op(), Err: fmt.Errorf("read body: %w", err)}
	}
	return resp, body, nil
}

func isSuccess(status int) bool {
	return status >= 200 && status < 300
}

// execute sends r and decodes the body as T.
func execute[T any](ctx context.Context, c *Client, r request) (T, error) {
	return executeWith(ctx, c, r, decodeJSON[T])
}

// executeData sends r and decodes the body as an Envelope[T], returning data.
func executeData[T any](ctx context.Context, c *Client, r request) (T, error) {
	return executeWith(ctx, c, r, model.DecodeEnvelope[T])
}

func executeWith[T any](ctx context.Context, c *Client, r request, decode func([]byte) (T, error)) (T, error) {
	var zero T
	resp, body, err := c.send(ctx, r)
	if err != nil {
		return zero, err
	}
	if !isSuccess(resp.StatusCode) {
		return zero, &apierr.APIError{
			Op:          r.op(),
			Status:      resp.StatusCode,
			ContentType: resp.Header.Get("Content-Type"),
			Body:        string(body),
		}
	}
	v, err := decode(body)
	if err != nil {
		return zero, &apierr.DecodeError{Op: r.op(), Body: string(body), Err: err}
	}
	return v, nil
}

func decodeJSON[T any](body []byte) (T, error) {
	var v T
	err := json.Unmarshal(body, &v)
	return v, err
}
