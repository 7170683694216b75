package xapi

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/mikequentel/capyhourly/internal/apierr"
	"github.com/mikequentel/capyhourly/internal/model"
)

// Publisher creates a post that references one uploaded media handle.
type Publisher interface {
	CreatePost(ctx context.Context, text string, media MediaHandle) (string, error)
}

var _ Publisher = (*Client)(nil)

// CreatePost publishes text with the media attached via POST /2/tweets and
// returns the new tweet id.
func (c *Client) CreatePost(ctx context.Context, text string, media MediaHandle) (string, error) {
	if err := media.check(c.now()); err != nil {
		return "", err
	}
	payload, err := json.Marshal(model.TweetReq{
		Text:  text,
		Media: &model.TweetMedia{MediaIDs: []string{media.ID}},
	})
	if err != nil {
		return "", fmt.Errorf("encode tweet: %w", err)
	}

	r := request{
		method:      http.MethodPost,
		path:        "/2/tweets",
		body:        bytes.NewReader(payload),
		contentType: "application/json",
	}
	tweet, err := executeData[model.TweetResp](ctx, c, r)
	if err != nil {
		return "", err
	}
	if tweet.ID == "" {
		return "", &apierr.DecodeError{Op: r.op(), Err: errors.New("missing tweet id")}
	}
	return tweet.ID, nil
}
