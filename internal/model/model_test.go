package model

import (
	"encoding/json"
	"errors"
	"testing"
	"time"
)

func TestDecodeEnvelope_User(t *testing.T) {
	u, err := DecodeEnvelope[User]([]byte(`{"data":{"id":"42","username":"capyhourly"}}`))
	if err != nil {
		t.Fatal(err)
	}
	if u.ID != "42" || u.Username != "capyhourly" {
		t.Errorf("unexpected user: %+v", u)
	}
}

func TestDecodeEnvelope_NullTimeline(t *testing.T) {
	tweets, err := DecodeEnvelope[[]Tweet]([]byte(`{"data":null,"meta":{"result_count":0}}`))
	if err != nil {
		t.Fatal(err)
	}
	if len(tweets) != 0 {
		t.Errorf("expected no tweets, got %v", tweets)
	}
}

func TestDecodeEnvelope_Timeline(t *testing.T) {
	tweets, err := DecodeEnvelope[[]Tweet]([]byte(`{"data":[{"id":"1","created_at":"2026-10-16T09:50:00.000Z"}]}`))
	if err != nil {
		t.Fatal(err)
	}
	want := time.Date(2026, 10, 16, 9, 50, 0, 0, time.UTC)
	if len(tweets) != 1 || !tweets[0].CreatedAt.Equal(want) {
		t.Errorf("unexpected tweets: %+v", tweets)
	}
}

func TestDecodeEnvelope_Malformed(t *testing.T) {
	if _, err := DecodeEnvelope[User]([]byte(`<html>`)); err == nil {
		t.Fatal("expected error for malformed body")
	}
}

func TestDecodeEnvelope_Unsuccessful(t *testing.T) {
	_, err := DecodeEnvelope[User]([]byte(`{"success":false,"data":null}`))
	if !errors.Is(err, ErrUnsuccessful) {
		t.Errorf("expected ErrUnsuccessful, got %v", err)
	}
}

func TestMediaUploadResp_ID(t *testing.T) {
	tests := []struct {
		name string
		resp MediaUploadResp
		want string
	}{
		{"string id", MediaUploadResp{MediaIDString: "123", MediaID: 123}, "123"},
		{"numeric fallback", MediaUploadResp{MediaID: 9999999999}, "9999999999"},
		{"missing", MediaUploadResp{}, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.resp.ID(); got != tt.want {
				t.Errorf("ID() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestTweetReq_OmitsEmptyMedia(t *testing.T) {
	b, err := json.Marshal(TweetReq{Text: "#capybara"})
	if err != nil {
		t.Fatal(err)
	}
	if string(b) != `{"text":"#capybara"}` {
		t.Errorf("unexpected body: %s", b)
	}
}
