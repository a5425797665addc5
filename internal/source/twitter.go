package source

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"
)

const (
	twitterSourceName = "twitter"
	twitterBaseURL    = "https://api.twitter.com"
	twitterPostURL    = "https://x.com"
	twitterTimeout    = 30 * time.Second
)

// TwitterSource fetches recent posts from user timelines via the X API v2.
type TwitterSource struct {
	bearerToken string
	pageSize    int
	client      *http.Client
	baseURL     string

	// handle -> numeric user ID, resolved once per process
	userIDs map[string]string
}

// NewTwitter creates a timeline source. A bearer token is required.
func NewTwitter(bearerToken string, pageSize int) (*TwitterSource, error) {
	if bearerToken == "" {
		return nil, errors.New("twitter: bearer token is required")
	}
	if pageSize < 5 {
		pageSize = 5
	}
	if pageSize > 100 {
		pageSize = 100
	}
	return &TwitterSource{
		bearerToken: bearerToken,
		pageSize:    pageSize,
		client:      &http.Client{Timeout: twitterTimeout},
		baseURL:     twitterBaseURL,
		userIDs:     make(map[string]string),
	}, nil
}

func (ts *TwitterSource) Name() string {
	return twitterSourceName
}

func (ts *TwitterSource) Fetch(ctx context.Context, handle string) ([]Post, error) {
	userID, err := ts.lookupUserID(ctx, handle)
	if err != nil {
		return nil, err
	}

	query := url.Values{}
	query.Set("max_results", strconv.Itoa(ts.pageSize))
	query.Set("tweet.fields", "created_at,referenced_tweets")

	endpoint := fmt.Sprintf("%s/2/users/%s/tweets?%s", ts.baseURL, userID, query.Encode())

	var timeline tweetTimeline
	if err := ts.getJSON(ctx, endpoint, &timeline); err != nil {
		return nil, fmt.Errorf("timeline for @%s: %w", handle, err)
	}

	return postsFromTimeline(timeline, handle), nil
}

// lookupUserID resolves a handle to its numeric user ID, caching the result.
func (ts *TwitterSource) lookupUserID(ctx context.Context, handle string) (string, error) {
	if id, ok := ts.userIDs[handle]; ok {
		return id, nil
	}

	endpoint := fmt.Sprintf("%s/2/users/by/username/%s", ts.baseURL, url.PathEscape(handle))

	var lookup userLookup
	if err := ts.getJSON(ctx, endpoint, &lookup); err != nil {
		return "", fmt.Errorf("lookup @%s: %w", handle, err)
	}
	if lookup.Data.ID == "" {
		return "", fmt.Errorf("lookup @%s: %w: empty user ID", handle, ErrUnavailable)
	}

	ts.userIDs[handle] = lookup.Data.ID
	return lookup.Data.ID, nil
}

func (ts *TwitterSource) getJSON(ctx context.Context, endpoint string, out any) error {
	ctx, cancel := context.WithTimeout(ctx, twitterTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+ts.bearerToken)

	resp, err := ts.client.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("%w: status %d", ErrUnavailable, resp.StatusCode)
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("%w: decode response: %v", ErrUnavailable, err)
	}
	return nil
}

func postsFromTimeline(timeline tweetTimeline, handle string) []Post {
	var posts []Post
	for _, tw := range timeline.Data {
		postedAt, _ := time.Parse(time.RFC3339, tw.CreatedAt)

		var isReply, isRepost bool
		for _, ref := range tw.ReferencedTweets {
			switch ref.Type {
			case "replied_to":
				isReply = true
			case "retweeted", "quoted":
				// Quote tweets are reposts with commentary; the
				// community only wants the account's own originals.
				isRepost = true
			}
		}

		posts = append(posts, Post{
			ID:       tw.ID,
			Account:  handle,
			Text:     tw.Text,
			URL:      fmt.Sprintf("%s/%s/status/%s", twitterPostURL, handle, tw.ID),
			PostedAt: postedAt,
			IsReply:  isReply,
			IsRepost: isRepost,
		})
	}
	return posts
}

type userLookup struct {
	Data struct {
		ID       string `json:"id"`
		Username string `json:"username"`
	} `json:"data"`
}

type tweetTimeline struct {
	Data []tweet `json:"data"`
}

type tweet struct {
	ID               string           `json:"id"`
	Text             string           `json:"text"`
	CreatedAt        string           `json:"created_at"`
	ReferencedTweets []tweetReference `json:"referenced_tweets"`
}

type tweetReference struct {
	Type string `json:"type"`
	ID   string `json:"id"`
}
