package source

import (
	"context"
	"errors"
	"time"
)

// Post represents a single item fetched from a monitored account.
type Post struct {
	ID       string    // platform-assigned unique ID
	Account  string    // handle of the monitored account
	Text     string    // full post text
	URL      string    // link to the original post
	PostedAt time.Time // publication timestamp
	IsReply  bool      // post is a reply to another post
	IsRepost bool      // post is a repost of another account's post
}

// ErrUnavailable wraps network, auth and decode failures. The caller
// skips the account for the current cycle and retries on the next one.
var ErrUnavailable = errors.New("source unavailable")

// Source fetches the most recent posts for one monitored account,
// most-recent-first, bounded by the source's page size.
type Source interface {
	// Name returns the source identifier (e.g. "twitter").
	Name() string

	// Fetch returns the account's most recent posts.
	Fetch(ctx context.Context, handle string) ([]Post, error)
}
