// Package poller drives the fetch-filter-forward cycle over all
// monitored accounts.
package poller

import (
	"context"
	"errors"
	"fmt"
	"log"
	"math/rand"
	"strings"
	"time"

	"github.com/mkarpov/crier/internal/gate"
	"github.com/mkarpov/crier/internal/sink"
	"github.com/mkarpov/crier/internal/source"
	"github.com/mkarpov/crier/internal/store"
)

// SeenStore tracks which post IDs have already been forwarded.
type SeenStore interface {
	Seen(ctx context.Context, postID string) (bool, error)
	Mark(ctx context.Context, rec store.Record) error
}

// Account pairs a monitored handle with the source that fetches it.
type Account struct {
	Handle string
	Source source.Source
}

// Poller polls all accounts and forwards unseen qualifying posts.
type Poller struct {
	Accounts  []Account
	Sink      sink.Sink
	Store     SeenStore
	Gate      gate.Gate // nil admits everything
	Subreddit string
	FlairID   string
	Interval  time.Duration
	Jitter    time.Duration
	Lookback  time.Duration // posts older than this are never forwarded

	// overridable in tests
	now func() time.Time
}

// Run polls until ctx is cancelled, sleeping interval plus or minus
// jitter between cycles. The in-flight cycle finishes its current
// account before exiting.
func (p *Poller) Run(ctx context.Context) {
	for {
		start := time.Now()
		forwarded := p.Cycle(ctx)
		log.Printf("[poller] cycle done: %d forwarded in %v", forwarded, time.Since(start).Round(time.Millisecond))

		select {
		case <-ctx.Done():
			return
		case <-time.After(p.delay()):
		}
	}
}

// Cycle makes one pass over all accounts and returns the number of
// posts forwarded. A failure for one account never aborts the pass.
func (p *Poller) Cycle(ctx context.Context) int {
	forwarded := 0
	for _, acc := range p.Accounts {
		if ctx.Err() != nil {
			return forwarded
		}
		forwarded += p.pollAccount(ctx, acc)
	}
	return forwarded
}

func (p *Poller) pollAccount(ctx context.Context, acc Account) int {
	posts, err := acc.Source.Fetch(ctx, acc.Handle)
	if err != nil {
		log.Printf("[poller] @%s: fetch failed, skipping this cycle: %v", acc.Handle, err)
		return 0
	}

	var cutoff time.Time
	if p.Lookback > 0 {
		cutoff = p.timeNow().Add(-p.Lookback)
	}

	forwarded := 0
	// Sources return most-recent-first; forward oldest-first so the
	// community sees posts in publication order.
	for i := len(posts) - 1; i >= 0; i-- {
		post := posts[i]

		if post.IsReply || post.IsRepost {
			continue
		}
		if !cutoff.IsZero() && post.PostedAt.Before(cutoff) {
			continue
		}

		seen, err := p.Store.Seen(ctx, post.ID)
		if err != nil {
			log.Printf("[poller] @%s: seen lookup for %s failed: %v", acc.Handle, post.ID, err)
			continue
		}
		if seen {
			continue
		}

		if p.Gate != nil {
			if v := p.Gate.Check(post.Text); !v.Admit {
				log.Printf("[poller] @%s: post %s denied by gate: %s", acc.Handle, post.ID, v.Reason)
				// Denials are final for this post; record it so it is
				// not re-evaluated every cycle.
				p.mark(ctx, acc.Handle, post)
				continue
			}
		}

		created, err := p.Sink.Submit(ctx, sink.Submission{
			Subreddit: p.Subreddit,
			Title:     submissionTitle(acc.Handle, post.Text),
			URL:       post.URL,
			FlairID:   p.FlairID,
		})
		if err != nil {
			var rej *sink.RejectedError
			if errors.As(err, &rej) && rej.Permanent() {
				log.Printf("[poller] @%s: post %s permanently rejected (%s), marking as handled", acc.Handle, post.ID, rej.Reason)
				p.mark(ctx, acc.Handle, post)
			} else {
				log.Printf("[poller] @%s: submit %s failed, will retry next cycle: %v", acc.Handle, post.ID, err)
			}
			continue
		}

		p.mark(ctx, acc.Handle, post)
		forwarded++
		log.Printf("[poller] @%s: forwarded %s as %s", acc.Handle, post.ID, created.Fullname)
	}
	return forwarded
}

// mark records the post as handled. A mark failure is logged loudly:
// until it succeeds on a later attempt the no-duplicate guarantee rests
// on the subreddit's own duplicate-link policy.
func (p *Poller) mark(ctx context.Context, handle string, post source.Post) {
	err := p.Store.Mark(ctx, store.Record{
		PostID:      post.ID,
		Account:     handle,
		Title:       submissionTitle(handle, post.Text),
		URL:         post.URL,
		ForwardedAt: p.timeNow(),
	})
	if err != nil {
		log.Printf("[poller] @%s: MARK FAILED for %s, duplicate possible: %v", handle, post.ID, err)
	}
}

func (p *Poller) delay() time.Duration {
	d := p.Interval
	if p.Jitter > 0 {
		d += time.Duration(rand.Int63n(int64(2*p.Jitter))) - p.Jitter
	}
	if d < time.Second {
		d = time.Second
	}
	return d
}

func (p *Poller) timeNow() time.Time {
	if p.now != nil {
		return p.now()
	}
	return time.Now()
}

// submissionTitle builds the forum post title from the handle and the
// post text, collapsed to one line.
func submissionTitle(handle, text string) string {
	text = strings.Join(strings.Fields(text), " ")
	return fmt.Sprintf("New post from @%s: %s", handle, text)
}
