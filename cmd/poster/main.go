package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"github.com/mikequentel/capyhourly/internal/capy"
	"github.com/mikequentel/capyhourly/internal/config"
	"github.com/mikequentel/capyhourly/internal/ledger"
	"github.com/mikequentel/capyhourly/internal/logging"
	"github.com/mikequentel/capyhourly/internal/pipeline"
	"github.com/mikequentel/capyhourly/internal/schedule"
	"github.com/mikequentel/capyhourly/internal/xapi"
	"github.com/mikequentel/capyhourly/internal/xapi/legacy"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// --- Config (defaults, capyhourly.yaml, .env, env) ---
	cfg, err := config.Load("")
	if err != nil {
		bootLog := logging.New(os.Stdout, "info")
		bootLog.Fatal().Err(err).Msg("invalid configuration")
	}
	log := logging.New(os.Stdout, cfg.LogLevel)

	if err := run(ctx, cfg, log); err != nil {
		if errors.Is(err, context.Canceled) {
			log.Info().Msg("Shutting down")
			return
		}
		stop()
		log.Fatal().Err(err).Msg("capyhourly stopped")
	}
}

func run(ctx context.Context, cfg config.Config, log zerolog.Logger) error {
	p := &pipeline.Pipeline{
		Images: capy.NewClient(capy.Options{URL: cfg.ImageURL, Timeout: cfg.RequestTimeout}),
		Text:   cfg.PostText,
		Log:    log,
	}

	// --- dry run: fetch + validate one image, no platform calls ---
	if cfg.DryRun {
		log.Info().Msg("DRY RUN (no platform calls)")
		return p.Preview(ctx)
	}

	// X client; every request is signed with the same credentials.
	client := xapi.NewClient(cfg.Credentials, xapi.Options{
		APIURL:    cfg.APIURL,
		UploadURL: cfg.UploadURL,
		Timeout:   cfg.RequestTimeout,
	})
	p.Uploader = client
	p.Publisher = newPublisher(cfg.PostEndpoint, client)

	me, err := client.Me(ctx)
	if err != nil {
		return fmt.Errorf("get authenticated user: %w", err)
	}
	log.Info().Msgf("Logged in as @%s (%s)", me.Username, me.ID)

	last, err := client.LastPostTime(ctx, me.ID, cfg.PostInterval)
	if err != nil {
		return fmt.Errorf("get last tweet: %w", err)
	}

	// --- ledger ---
	if cfg.DBPath != "" {
		l, err := ledger.Open(ctx, cfg.DBPath)
		if err != nil {
			return err
		}
		defer l.Close()
		p.Ledger = l

		n, err := l.Count(ctx)
		if err != nil {
			return fmt.Errorf("count ledger posts: %w", err)
		}
		log.Info().Int("posts", n).Str("db", cfg.DBPath).Msg("Opened post ledger")

		recorded, ok, err := l.Last(ctx)
		if err != nil {
			return fmt.Errorf("read ledger: %w", err)
		}
		if ok {
			last = laterOf(last, recorded.PostedAt)
		}
	}
	log.Info().Msgf("Last tweet on: %s", last.Format(time.RFC3339))

	return schedule.New(cfg.PostInterval, log).Run(ctx, last, p.RunCycle)
}

func newPublisher(endpoint string, client *xapi.Client) xapi.Publisher {
	if endpoint == config.EndpointLegacy {
		return legacy.NewStatusPublisher(client.HTTPClient())
	}
	return client
}

func laterOf(a, b time.Time) time.Time {
	if b.After(a) {
		return b
	}
	return a
}
