// Package legacy publishes posts through the v1.1 statuses/update endpoint
// for accounts whose access level does not include v2 tweet creation.
package legacy

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/dghubble/go-twitter/twitter"

	"github.com/mikequentel/capyhourly/internal/apierr"
	"github.com/mikequentel/capyhourly/internal/xapi"
)

const updateOp = "POST /1.1/statuses/update.json"

// StatusPublisher posts via go-twitter's Statuses.Update.
type StatusPublisher struct {
	client *twitter.Client
	now    func() time.Time
}

var _ xapi.Publisher = (*StatusPublisher)(nil)

// NewStatusPublisher wraps an already-signing HTTP client, normally
// (*xapi.Client).HTTPClient().
func NewStatusPublisher(httpClient *http.Client) *StatusPublisher {
	return &StatusPublisher{client: twitter.NewClient(httpClient), now: time.Now}
}

// CreatePost publishes text with the media attached and returns the status id.
// go-twitter has no context support; the HTTP client's timeout bounds the call.
func (p *StatusPublisher) CreatePost(ctx context.Context, text string, media xapi.MediaHandle) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if media.Expired(p.now()) {
		return "", &xapi.MediaExpiredError{MediaID: media.ID, ExpiredAt: media.IssuedAt.Add(media.ExpiresAfter)}
	}
	mediaID, err := strconv.ParseInt(media.ID, 10, 64)
	if err != nil {
		return "", fmt.Errorf("v1.1 status update needs a numeric media id, got %q: %w", media.ID, err)
	}

	tweet, resp, err := p.client.Statuses.Update(text, &twitter.StatusUpdateParams{
		MediaIds: []int64{mediaID},
	})
	if err != nil {
		return "", classify(resp, err)
	}
	if tweet == nil || tweet.IDStr == "" {
		return "", &apierr.DecodeError{Op: updateOp, Err: errors.New("missing status id")}
	}
	return tweet.IDStr, nil
}

func classify(resp *http.Response, err error) error {
	if resp == nil {
		return &apierr.TransportError{Op: updateOp, Err: err}
	}
	body := err.Error()
	var twErr twitter.APIError
	if errors.As(err, &twErr) {
		if b, mErr := json.Marshal(twErr); mErr == nil {
			body = string(b)
		}
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return &apierr.APIError{
			Op:          updateOp,
			Status:      resp.StatusCode,
			ContentType: "application/json",
			Body:        body,
		}
	}
	return &apierr.DecodeError{Op: updateOp, Body: body, Err: err}
}
