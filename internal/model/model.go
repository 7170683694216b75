package model

import (
	"strconv"
	"time"
)

// --- v2 users/me ---

type User struct {
	ID       string `json:"id"`
	Username string `json:"username"`
}

// --- v2 users/:id/tweets ---

type Tweet struct {
	ID        string    `json:"id"`
	CreatedAt time.Time `json:"created_at"`
}

// --- v2 create tweet ---

type TweetReq struct {
	Text  string      `json:"text"`
	Media *TweetMedia `json:"media,omitempty"`
}
type TweetMedia struct {
	MediaIDs []string `json:"media_ids"`
}
type TweetResp struct {
	ID   string `json:"id"`
	Text string `json:"text"`
}

// --- v1.1 media/upload (chunked) ---

type MediaUploadResp struct {
	MediaID          int64  `json:"media_id"`
	MediaIDString    string `json:"media_id_string"`
	ExpiresAfterSecs int64  `json:"expires_after_secs"`
	Size             int64  `json:"size,omitempty"`
}

// ID prefers media_id_string and falls back to the numeric id.
func (r MediaUploadResp) ID() string {
	if r.MediaIDString != "" {
		return r.MediaIDString
	}
	if r.MediaID != 0 {
		return strconv.FormatInt(r.MediaID, 10)
	}
	return ""
}
