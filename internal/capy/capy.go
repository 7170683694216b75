// Package capy fetches random capybara images from the capy.lol service.
package capy

import (
	"context"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"strings"
	"time"

	"github.com/dghubble/sling"

	"github.com/mikequentel/capyhourly/internal/apierr"
)

const (
	defaultImageURL = "https://api.capy.lol/v1/capybara"
	defaultTimeout  = 30 * time.Second
	userAgent       = "capyhourly"
)

// ErrMissingContentType means the image response carried no Content-Type,
// so the image cannot be typed for upload.
var ErrMissingContentType = errors.New("missing content-type header")

// extensions is the upload allow-list.
var extensions = map[string]string{
	"image/jpeg": "jpg",
	"image/png":  "png",
}

// UnsupportedMediaError is an image type outside the allow-list.
type UnsupportedMediaError struct {
	ContentType string
}

func (e *UnsupportedMediaError) Error() string {
	return fmt.Sprintf("unsupported media type: `%s`", e.ContentType)
}

// Image is one fetched image. It lives for a single posting cycle.
type Image struct {
	ContentType string
	Data        []byte
}

// Extension returns the file extension for an allow-listed content type.
func Extension(contentType string) (string, error) {
	ext, ok := extensions[contentType]
	if !ok {
		return "", &UnsupportedMediaError{ContentType: contentType}
	}
	return ext, nil
}

// Filename is the upload file name for the image, e.g. "capybara.jpg".
func (img Image) Filename() (string, error) {
	ext, err := Extension(img.ContentType)
	if err != nil {
		return "", err
	}
	return "capybara." + ext, nil
}

type Options struct {
	URL       string
	Timeout   time.Duration
	Transport http.RoundTripper
}

// Client fetches images. Requests are unauthenticated.
type Client struct {
	http *http.Client
	url  string
}

func NewClient(opts Options) *Client {
	if opts.URL == "" {
		opts.URL = defaultImageURL
	}
	if opts.Timeout <= 0 {
		opts.Timeout = defaultTimeout
	}
	return &Client{
		http: &http.Client{Timeout: opts.Timeout, Transport: opts.Transport},
		url:  opts.URL,
	}
}

// Fetch downloads one random image. The content type is normalised (no
// parameters, lower case) but not checked against the allow-list.
func (c *Client) Fetch(ctx context.Context) (Image, error) {
	op := http.MethodGet + " " + c.url
	req, err := sling.New().Get(c.url).Set("User-Agent", userAgent).Request()
	if err != nil {
		return Image{}, fmt.Errorf("create request: %w", err)
	}

	resp, err := c.http.Do(req.WithContext(ctx))
	if err != nil {
		return Image{}, &apierr.TransportError{Op: op, Err: err}
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return Image{}, &apierr.TransportError{Op: op, Err: fmt.Errorf("read body: %w", err)}
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return Image{}, &apierr.APIError{
			Op:          op,
			Status:      resp.StatusCode,
			ContentType: resp.Header.Get("Content-Type"),
			Body:        string(body),
		}
	}

	raw := strings.TrimSpace(resp.Header.Get("Content-Type"))
	if raw == "" {
		return Image{}, fmt.Errorf("%s: %w", op, ErrMissingContentType)
	}
	contentType, _, err := mime.ParseMediaType(raw)
	if err != nil {
		return Image{}, fmt.Errorf("%s: bad content-type %q: %w", op, raw, err)
	}
	if len(body) == 0 {
		return Image{}, fmt.Errorf("%s: empty image body", op)
	}
	return Image{ContentType: strings.ToLower(contentType), Data: body}, nil
}
