package pipeline

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/mikequentel/capyhourly/internal/apierr"
	"github.com/mikequentel/capyhourly/internal/capy"
	"github.com/mikequentel/capyhourly/internal/config"
	"github.com/mikequentel/capyhourly/internal/ledger"
	"github.com/mikequentel/capyhourly/internal/model"
	"github.com/mikequentel/capyhourly/internal/xapi"
)

// fakeX serves the media upload and v2 tweet endpoints and records the
// order of calls.
type fakeX struct {
	mu         sync.Mutex
	calls      []string
	tweetBody  []byte
	failStatus int // when set, every call returns it
}

func (f *fakeX) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()

	call := r.Method + " " + r.URL.Path
	if cmd := r.URL.Query().Get("command"); cmd != "" {
		call += " " + cmd + " " + r.URL.Query().Get("media_id")
	}
	f.calls = append(f.calls, strings.TrimSpace(call))

	if f.failStatus != 0 {
		w.WriteHeader(f.failStatus)
		w.Write([]byte(`{"title":"Unauthorized","status":401,"detail":"Unauthorized"}`))
		return
	}

	switch {
	case r.URL.Path == "/1.1/media/upload.json":
		switch r.URL.Query().Get("command") {
		case "INIT":
			w.Write([]byte(`{"media_id":123,"media_id_string":"123","expires_after_secs":86400}`))
		case "APPEND":
			w.WriteHeader(http.StatusOK)
		case "FINALIZE":
			w.Write([]byte(`{"media_id":123,"media_id_string":"123","size":4,"expires_after_secs":86400}`))
		}
	case r.URL.Path == "/2/tweets":
		f.tweetBody, _ = io.ReadAll(r.Body)
		w.WriteHeader(http.StatusCreated)
		w.Write([]byte(`{"data":{"id":"555","text":"#capybara"}}`))
	default:
		http.NotFound(w, r)
	}
}

func (f *fakeX) snapshot() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.calls...)
}

func imageServer(t *testing.T, contentType string) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", contentType)
		w.Write([]byte("capy"))
	}))
	t.Cleanup(srv.Close)
	return srv
}

type memRecorder struct {
	posts []ledger.Post
}

func (m *memRecorder) Record(_ context.Context, p ledger.Post) error {
	m.posts = append(m.posts, p)
	return nil
}

func newPipeline(t *testing.T, imgSrv *httptest.Server, x *fakeX, log io.Writer) (*Pipeline, *memRecorder) {
	t.Helper()
	xSrv := httptest.NewServer(x)
	t.Cleanup(xSrv.Close)

	client := xapi.NewClient(config.Credentials{
		ConsumerKey: "ck", ConsumerSecret: "cs", AccessToken: "at", AccessSecret: "as",
	}, xapi.Options{APIURL: xSrv.URL, UploadURL: xSrv.URL + "/1.1/media/upload.json"})

	if log == nil {
		log = io.Discard
	}
	rec := &memRecorder{}
	return &Pipeline{
		Images:    capy.NewClient(capy.Options{URL: imgSrv.URL + "/v1/capybara"}),
		Uploader:  client,
		Publisher: client,
		Ledger:    rec,
		Text:      "#capybara",
		Log:       zerolog.New(log),
		Now:       func() time.Time { return time.Date(2026, 10, 16, 12, 0, 0, 0, time.UTC) },
	}, rec
}

func TestRunCycle_UploadsAndPosts(t *testing.T) {
	x := &fakeX{}
	var logs bytes.Buffer
	p, rec := newPipeline(t, imageServer(t, "image/jpeg"), x, &logs)

	if err := p.RunCycle(context.Background()); err != nil {
		t.Fatal(err)
	}

	want := []string{
		"POST /1.1/media/upload.json INIT",
		"POST /1.1/media/upload.json APPEND 123",
		"POST /1.1/media/upload.json FINALIZE 123",
		"POST /2/tweets",
	}
	got := x.snapshot()
	if strings.Join(got, "\n") != strings.Join(want, "\n") {
		t.Errorf("calls:\n%s\nwant:\n%s", strings.Join(got, "\n"), strings.Join(want, "\n"))
	}

	var req model.TweetReq
	if err := json.Unmarshal(x.tweetBody, &req); err != nil {
		t.Fatal(err)
	}
	if req.Text != "#capybara" || req.Media == nil || len(req.Media.MediaIDs) != 1 || req.Media.MediaIDs[0] != "123" {
		t.Errorf("unexpected tweet body: %s", x.tweetBody)
	}

	if len(rec.posts) != 1 {
		t.Fatalf("expected 1 ledger entry, got %d", len(rec.posts))
	}
	if p := rec.posts[0]; p.TweetID != "555" || p.MediaID != "123" || p.ContentType != "image/jpeg" || p.SizeBytes != 4 {
		t.Errorf("unexpected ledger entry: %+v", p)
	}

	for _, line := range []string{"Getting image", "Uploading image", "Posting tweet...", "Posted tweet"} {
		if !strings.Contains(logs.String(), line) {
			t.Errorf("log missing %q:\n%s", line, logs.String())
		}
	}
	if !strings.Contains(logs.String(), `"cycle":`) {
		t.Errorf("expected cycle id in logs:\n%s", logs.String())
	}
}

func TestRunCycle_FreshHandlePerCycle(t *testing.T) {
	x := &fakeX{}
	p, _ := newPipeline(t, imageServer(t, "image/png"), x, nil)

	for i := 0; i < 2; i++ {
		if err := p.RunCycle(context.Background()); err != nil {
			t.Fatal(err)
		}
	}
	inits := 0
	for _, c := range x.snapshot() {
		if strings.HasSuffix(c, "INIT") {
			inits++
		}
	}
	if inits != 2 {
		t.Errorf("expected a new INIT per cycle, got %d", inits)
	}
}

func TestRunCycle_UnsupportedMediaSkipsUpload(t *testing.T) {
	x := &fakeX{}
	p, rec := newPipeline(t, imageServer(t, "image/gif"), x, nil)

	err := p.RunCycle(context.Background())
	var unsupported *capy.UnsupportedMediaError
	if !errors.As(err, &unsupported) {
		t.Fatalf("expected UnsupportedMediaError, got %v", err)
	}
	if unsupported.ContentType != "image/gif" {
		t.Errorf("ContentType = %q", unsupported.ContentType)
	}
	if calls := x.snapshot(); len(calls) != 0 {
		t.Errorf("no call may reach the platform, got %v", calls)
	}
	if len(rec.posts) != 0 {
		t.Error("nothing should be recorded")
	}
}

func TestRunCycle_UnauthorizedPropagates(t *testing.T) {
	x := &fakeX{failStatus: http.StatusUnauthorized}
	p, _ := newPipeline(t, imageServer(t, "image/jpeg"), x, nil)

	err := p.RunCycle(context.Background())
	var apiErr *apierr.APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("expected APIError, got %v", err)
	}
	if apiErr.Status != http.StatusUnauthorized {
		t.Errorf("Status = %d", apiErr.Status)
	}
	if calls := x.snapshot(); len(calls) != 1 {
		t.Errorf("expected a single INIT attempt and no retry, got %v", calls)
	}
}

func TestRunCycle_ImageFetchFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	t.Cleanup(srv.Close)
	x := &fakeX{}
	p, _ := newPipeline(t, srv, x, nil)

	err := p.RunCycle(context.Background())
	var apiErr *apierr.APIError
	if !errors.As(err, &apiErr) || apiErr.Status != http.StatusBadGateway {
		t.Fatalf("expected 502 APIError, got %v", err)
	}
	if len(x.snapshot()) != 0 {
		t.Error("no platform call expected")
	}
}

func TestRunCycle_WithoutLedger(t *testing.T) {
	x := &fakeX{}
	p, _ := newPipeline(t, imageServer(t, "image/jpeg"), x, nil)
	p.Ledger = nil

	if err := p.RunCycle(context.Background()); err != nil {
		t.Fatal(err)
	}
}

func TestPreview(t *testing.T) {
	x := &fakeX{}
	var logs bytes.Buffer
	p, _ := newPipeline(t, imageServer(t, "image/png"), x, &logs)

	if err := p.Preview(context.Background()); err != nil {
		t.Fatal(err)
	}
	if len(x.snapshot()) != 0 {
		t.Error("dry run must not call the platform")
	}
	if !strings.Contains(logs.String(), "capybara.png") {
		t.Errorf("expected file name in preview log:\n%s", logs.String())
	}
}
