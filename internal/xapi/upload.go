package xapi

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"mime/multipart"
	"net/http"
	"time"

	"github.com/mikequentel/capyhourly/internal/apierr"
	"github.com/mikequentel/capyhourly/internal/model"
)

// MaxSegmentBytes is the largest payload sent as a single APPEND segment.
// Uploads are always one segment; bigger payloads are rejected up front.
const MaxSegmentBytes = 5 * 1024 * 1024

// Upload phases, in protocol order.
const (
	PhaseInit     = "INIT"
	PhaseAppend   = "APPEND"
	PhaseFinalize = "FINALIZE"
)

// MediaHandle identifies one uploaded media item. It may back exactly one
// post and is void once ExpiresAfter has elapsed since IssuedAt.
type MediaHandle struct {
	ID           string
	ExpiresAfter time.Duration // zero when the platform did not report one
	IssuedAt     time.Time
}

// Expired reports whether the handle's lifetime has elapsed at now.
func (h MediaHandle) Expired(now time.Time) bool {
	return h.ExpiresAfter > 0 && !now.Before(h.IssuedAt.Add(h.ExpiresAfter))
}

func (h MediaHandle) check(now time.Time) error {
	if h.ID == "" {
		return errors.New("media handle has no id")
	}
	if h.Expired(now) {
		return &MediaExpiredError{MediaID: h.ID, ExpiredAt: h.IssuedAt.Add(h.ExpiresAfter)}
	}
	return nil
}

// MediaExpiredError is returned when a media handle is used past its expiry.
type MediaExpiredError struct {
	MediaID   string
	ExpiredAt time.Time
}

func (e *MediaExpiredError) Error() string {
	return fmt.Sprintf("media %s expired at %s", e.MediaID, e.ExpiredAt.Format(time.RFC3339))
}

// UploadPhaseError is a failed upload step that is not covered by the
// generic request errors: a rejected APPEND or an oversized payload.
// A rejected APPEND wraps the *apierr.APIError for the response.
type UploadPhaseError struct {
	Phase  string
	Status int
	Body   string
	Err    error
}

func (e *UploadPhaseError) Error() string {
	if e.Status != 0 {
		return fmt.Sprintf("media upload %s failed: HTTP %d: %s", e.Phase, e.Status, apierr.Diagnose("", []byte(e.Body)))
	}
	return fmt.Sprintf("media upload %s failed: %v", e.Phase, e.Err)
}

func (e *UploadPhaseError) Unwrap() error { return e.Err }

type mediaCommand struct {
	Command      string `url:"command"`
	TotalBytes   int    `url:"total_bytes,omitempty"`
	MediaType    string `url:"media_type,omitempty"`
	MediaID      string `url:"media_id,omitempty"`
	SegmentIndex *int   `url:"segment_index,omitempty"`
}

// UploadMedia runs the INIT, APPEND, FINALIZE sequence for data and returns
// the media handle issued by INIT. The whole payload goes in segment 0.
func (c *Client) UploadMedia(ctx context.Context, contentType, filename string, data []byte) (MediaHandle, error) {
	if len(data) == 0 {
		return MediaHandle{}, &UploadPhaseError{Phase: PhaseInit, Err: errors.New("empty media payload")}
	}
	if len(data) > MaxSegmentBytes {
		return MediaHandle{}, &UploadPhaseError{
			Phase: PhaseInit,
			Err:   fmt.Errorf("payload of %d bytes exceeds the single-segment limit of %d", len(data), MaxSegmentBytes),
		}
	}

	handle, err := c.initUpload(ctx, contentType, len(data))
	if err != nil {
		return MediaHandle{}, err
	}
	if err := c.appendSegment(ctx, handle.ID, filename, data); err != nil {
		return MediaHandle{}, err
	}
	if err := c.finalizeUpload(ctx, handle); err != nil {
		return MediaHandle{}, err
	}
	return handle, nil
}

func (c *Client) initUpload(ctx context.Context, contentType string, size int) (MediaHandle, error) {
	r := request{
		method: http.MethodPost,
		path:   c.uploadURL,
		query:  mediaCommand{Command: PhaseInit, TotalBytes: size, MediaType: contentType},
	}
	resp, err := execute[model.MediaUploadResp](ctx, c, r)
	if err != nil {
		return MediaHandle{}, err
	}
	id := resp.ID()
	if id == "" {
		return MediaHandle{}, &apierr.DecodeError{Op: r.op(), Err: errors.New("missing media_id in INIT response")}
	}
	return MediaHandle{
		ID:           id,
		ExpiresAfter: time.Duration(resp.ExpiresAfterSecs) * time.Second,
		IssuedAt:     c.now(),
	}, nil
}

// appendSegment bypasses the JSON path: X answers a good APPEND with an
// empty body, so only the status is checked.
func (c *Client) appendSegment(ctx context.Context, mediaID, filename string, data []byte) error {
	var buf bytes.Buffer
	form := multipart.NewWriter(&buf)
	part, err := form.CreateFormFile("media", filename)
	if err != nil {
		return fmt.Errorf("create media part: %w", err)
	}
	if _, err := part.Write(data); err != nil {
		return fmt.Errorf("write media part: %w", err)
	}
	if err := form.Close(); err != nil {
		return fmt.Errorf("close multipart form: %w", err)
	}

	segment := 0
	r := request{
		method:      http.MethodPost,
		path:        c.uploadURL,
		query:       mediaCommand{Command: PhaseAppend, MediaID: mediaID, SegmentIndex: &segment},
		body:        &buf,
		contentType: form.FormDataContentType(),
	}
	resp, body, err := c.send(ctx, r)
	if err != nil {
		return err
	}
	if !isSuccess(resp.StatusCode) {
		return &UploadPhaseError{
			Phase:  PhaseAppend,
			Status: resp.StatusCode,
			Body:   string(body),
			Err: &apierr.APIError{
				Op:          r.op(),
				Status:      resp.StatusCode,
				ContentType: resp.Header.Get("Content-Type"),
				Body:        string(body),
			},
		}
	}
	return nil
}

func (c *Client) finalizeUpload(ctx context.Context, handle MediaHandle) error {
	if err := handle.check(c.now()); err != nil {
		return err
	}
	_, err := execute[model.MediaUploadResp](ctx, c, request{
		method: http.MethodPost,
		path:   c.uploadURL,
		query:  mediaCommand{Command: PhaseFinalize, MediaID: handle.ID},
	})
	return err
}
