package source

import (
	"context"
	"errors"
	"fmt"
	"html"
	"net/http"
	"regexp"
	"strings"
	"time"

	"github.com/mmcdole/gofeed"
)

const (
	rssSourceName   = "rss"
	rssFetchTimeout = 30 * time.Second
	rssUserAgent    = "Mozilla/5.0 (compatible; crier/1.0; +https://github.com/mkarpov/crier)"
)

var (
	htmlTagRe    = regexp.MustCompile(`<[^>]*>`)
	whitespaceRe = regexp.MustCompile(`\s{3,}`)
)

// RSSSource fetches posts from per-account mirror feeds. Mirror feeds
// carry only the account's own top-level posts, so reply/repost flags
// stay false.
type RSSSource struct {
	feeds    map[string]string // handle -> feed URL
	pageSize int
	client   *http.Client
}

// NewRSS creates a mirror-feed source. At least one handle is required.
func NewRSS(feeds map[string]string, pageSize int) (*RSSSource, error) {
	if len(feeds) == 0 {
		return nil, errors.New("rss: at least one feed is required")
	}
	if pageSize <= 0 {
		pageSize = 20
	}
	return &RSSSource{
		feeds:    feeds,
		pageSize: pageSize,
		client: &http.Client{
			Timeout:   rssFetchTimeout,
			Transport: &rssTransport{base: http.DefaultTransport},
		},
	}, nil
}

func (rs *RSSSource) Name() string {
	return rssSourceName
}

func (rs *RSSSource) Fetch(ctx context.Context, handle string) ([]Post, error) {
	feedURL, ok := rs.feeds[handle]
	if !ok {
		return nil, fmt.Errorf("rss: no feed configured for %q", handle)
	}

	ctx, cancel := context.WithTimeout(ctx, rssFetchTimeout)
	defer cancel()

	fp := gofeed.NewParser()
	fp.Client = rs.client
	feed, err := fp.ParseURLWithContext(feedURL, ctx)
	if err != nil {
		return nil, fmt.Errorf("fetch %s: %w: %v", feedURL, ErrUnavailable, err)
	}

	return postsFromFeed(feed, handle, rs.pageSize), nil
}

// rssTransport injects a User-Agent header into every request.
type rssTransport struct {
	base http.RoundTripper
}

func (t *rssTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	req.Header.Set("User-Agent", rssUserAgent)
	return t.base.RoundTrip(req)
}

func postsFromFeed(feed *gofeed.Feed, handle string, limit int) []Post {
	var posts []Post
	for _, item := range feed.Items {
		if len(posts) >= limit {
			break
		}
		postedAt := itemPublishedTime(item)
		if postedAt.IsZero() {
			continue
		}

		posts = append(posts, Post{
			ID:       itemID(item),
			Account:  handle,
			Text:     itemText(item),
			URL:      item.Link,
			PostedAt: postedAt,
		})
	}
	return posts
}

func itemPublishedTime(item *gofeed.Item) time.Time {
	if item.PublishedParsed != nil {
		return *item.PublishedParsed
	}
	if item.UpdatedParsed != nil {
		return *item.UpdatedParsed
	}
	return time.Time{}
}

func itemID(item *gofeed.Item) string {
	if item.GUID != "" {
		return item.GUID
	}
	return item.Link
}

func itemText(item *gofeed.Item) string {
	raw := item.Content
	if raw == "" {
		raw = item.Description
	}

	text := stripHTML(raw)

	if item.Title != "" && !strings.Contains(text, item.Title) {
		text = item.Title + "\n\n" + text
	}

	return strings.TrimSpace(text)
}

func stripHTML(s string) string {
	s = htmlTagRe.ReplaceAllString(s, " ")
	s = html.UnescapeString(s)
	s = whitespaceRe.ReplaceAllString(s, "\n\n")
	return strings.TrimSpace(s)
}
