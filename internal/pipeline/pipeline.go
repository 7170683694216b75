// Package pipeline runs one posting cycle: fetch an image, check its type,
// upload it and post it.
package pipeline

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/mikequentel/capyhourly/internal/capy"
	"github.com/mikequentel/capyhourly/internal/ledger"
	"github.com/mikequentel/capyhourly/internal/xapi"
)

type ImageSource interface {
	Fetch(ctx context.Context) (capy.Image, error)
}

type Uploader interface {
	UploadMedia(ctx context.Context, contentType, filename string, data []byte) (xapi.MediaHandle, error)
}

type Recorder interface {
	Record(ctx context.Context, p ledger.Post) error
}

var (
	_ ImageSource = (*capy.Client)(nil)
	_ Uploader    = (*xapi.Client)(nil)
	_ Recorder    = (*ledger.Ledger)(nil)
)

// Pipeline holds the collaborators of a cycle. Ledger may be nil.
type Pipeline struct {
	Images    ImageSource
	Uploader  Uploader
	Publisher xapi.Publisher
	Ledger    Recorder
	Text      string
	Log       zerolog.Logger
	Now       func() time.Time
}

// RunCycle performs one full cycle. Any failure aborts the cycle; the media
// handle is never reused.
func (p *Pipeline) RunCycle(ctx context.Context) error {
	log := p.Log.With().Str("cycle", uuid.NewString()).Logger()

	log.Info().Msg("Getting image")
	img, filename, err := p.fetch(ctx)
	if err != nil {
		return err
	}

	log.Info().Str("content_type", img.ContentType).Int("bytes", len(img.Data)).Msg("Uploading image")
	media, err := p.Uploader.UploadMedia(ctx, img.ContentType, filename, img.Data)
	if err != nil {
		return fmt.Errorf("upload media: %w", err)
	}

	log.Info().Str("media_id", media.ID).Msg("Posting tweet...")
	tweetID, err := p.Publisher.CreatePost(ctx, p.Text, media)
	if err != nil {
		return fmt.Errorf("create post: %w", err)
	}
	log.Info().Str("tweet_id", tweetID).Msg("Posted tweet")

	if p.Ledger != nil {
		if err := p.Ledger.Record(ctx, ledger.Post{
			TweetID:     tweetID,
			MediaID:     media.ID,
			ContentType: img.ContentType,
			SizeBytes:   len(img.Data),
			PostedAt:    p.now(),
		}); err != nil {
			return err
		}
		log.Debug().Str("tweet_id", tweetID).Msg("Recorded post in ledger")
	}
	return nil
}

// Preview fetches and checks one image without touching the platform.
func (p *Pipeline) Preview(ctx context.Context) error {
	img, filename, err := p.fetch(ctx)
	if err != nil {
		return err
	}
	p.Log.Info().
		Str("text", p.Text).
		Str("file", filename).
		Str("content_type", img.ContentType).
		Int("bytes", len(img.Data)).
		Msg("DRY RUN: would upload and post")
	return nil
}

func (p *Pipeline) fetch(ctx context.Context) (capy.Image, string, error) {
	img, err := p.Images.Fetch(ctx)
	if err != nil {
		return capy.Image{}, "", fmt.Errorf("fetch image: %w", err)
	}
	filename, err := img.Filename()
	if err != nil {
		return capy.Image{}, "", err
	}
	return img, filename, nil
}

func (p *Pipeline) now() time.Time {
	if p.Now != nil {
		return p.Now()
	}
	return time.Now()
}
