// Package ledger keeps a local SQLite record of published posts.
package ledger

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "modernc.org/sqlite"
)

const schema = `
CREATE TABLE IF NOT EXISTS posts (
	id           INTEGER PRIMARY KEY,
	tweet_id     TEXT NOT NULL,
	media_id     TEXT NOT NULL,
	content_type TEXT NOT NULL,
	size_bytes   INTEGER NOT NULL,
	posted_at    TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS posts_posted_at ON posts (posted_at);
`

// timeLayout is fixed width so posted_at sorts chronologically as text.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

// Post is one published post.
type Post struct {
	TweetID     string
	MediaID     string
	ContentType string
	SizeBytes   int
	PostedAt    time.Time
}

type Ledger struct {
	db *sql.DB
}

// Open opens (creating if needed) the ledger database at path.
// ":memory:" is accepted for tests.
func Open(ctx context.Context, path string) (*Ledger, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open ledger: %w", err)
	}
	// A single connection keeps ":memory:" databases shared.
	db.SetMaxOpenConns(1)
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping ledger: %w", err)
	}
	if _, err := db.ExecContext(ctx, schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("create ledger schema: %w", err)
	}
	return &Ledger{db: db}, nil
}

func (l *Ledger) Close() error {
	return l.db.Close()
}

// Record stores p.
func (l *Ledger) Record(ctx context.Context, p Post) error {
	_, err := l.db.ExecContext(ctx,
		`INSERT INTO posts (tweet_id, media_id, content_type, size_bytes, posted_at) VALUES (?, ?, ?, ?, ?)`,
		p.TweetID, p.MediaID, p.ContentType, p.SizeBytes, p.PostedAt.UTC().Format(timeLayout))
	if err != nil {
		return fmt.Errorf("record post %s: %w", p.TweetID, err)
	}
	return nil
}

// Last returns the most recent post. ok is false for an empty ledger.
func (l *Ledger) Last(ctx context.Context) (p Post, ok bool, err error) {
	const sqlq = `
SELECT tweet_id, media_id, content_type, size_bytes, posted_at
FROM posts
ORDER BY posted_at DESC, id DESC
LIMIT 1;
`
	var postedAt string
	row := l.db.QueryRowContext(ctx, sqlq)
	if err := row.Scan(&p.TweetID, &p.MediaID, &p.ContentType, &p.SizeBytes, &postedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Post{}, false, nil
		}
		return Post{}, false, err
	}
	p.PostedAt, err = time.Parse(timeLayout, postedAt)
	if err != nil {
		return Post{}, false, fmt.Errorf("parse posted_at %q: %w", postedAt, err)
	}
	return p, true, nil
}

// Count returns how many posts are recorded.
func (l *Ledger) Count(ctx context.Context) (int, error) {
	var n int
	err := l.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM posts`).Scan(&n)
	return n, err
}
