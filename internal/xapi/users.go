package xapi

import (
	"context"
	"net/http"
	"net/url"
	"time"

	"github.com/mikequentel/capyhourly/internal/model"
)

type userFieldsParams struct {
	UserFields string `url:"user.fields"`
}

type tweetFieldsParams struct {
	TweetFields string `url:"tweet.fields"`
}

// Me returns the authenticated user.
func (c *Client) Me(ctx context.Context) (model.User, error) {
	return executeData[model.User](ctx, c, request{
		method: http.MethodGet,
		path:   "/2/users/me",
		query:  userFieldsParams{UserFields: "id,username"},
	})
}

// LastPostTime returns the creation time of userID's most recent tweet.
// A user with no tweets gets now-interval, so posting may start at once.
func (c *Client) LastPostTime(ctx context.Context, userID string, interval time.Duration) (time.Time, error) {
	tweets, err := executeData[[]model.Tweet](ctx, c, request{
		method: http.MethodGet,
		path:   "/2/users/" + url.PathEscape(userID) + "/tweets",
		query:  tweetFieldsParams{TweetFields: "created_at"},
	})
	if err != nil {
		return time.Time{}, err
	}
	if len(tweets) == 0 {
		return c.now().Add(-interval), nil
	}
	return tweets[0].CreatedAt, nil
}
