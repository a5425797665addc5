package sink

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"
)

const (
	redditOAuthURL   = "https://oauth.reddit.com"
	redditTokenURL   = "https://www.reddit.com/api/v1/access_token"
	redditTimeout    = 30 * time.Second
	redditTitleLimit = 300

	// refresh the token this long before it actually expires
	tokenSlack = 1 * time.Minute
)

// Pacer throttles outgoing API calls. Acquire blocks until a call is allowed.
type Pacer interface {
	Acquire()
}

// Credentials for a Reddit "script" app (password grant).
type Credentials struct {
	ClientID     string
	ClientSecret string
	Username     string
	Password     string
}

// RedditSink submits link and self posts via the Reddit API.
type RedditSink struct {
	creds     Credentials
	userAgent string
	signature string
	pacer     Pacer
	client    *http.Client

	baseURL  string
	tokenURL string

	token       string
	tokenExpiry time.Time
}

// NewReddit creates a Reddit sink. All credentials are required; pacer
// may be nil to disable request pacing.
func NewReddit(creds Credentials, userAgent, signature string, pacer Pacer) (*RedditSink, error) {
	if creds.ClientID == "" || creds.ClientSecret == "" || creds.Username == "" || creds.Password == "" {
		return nil, errors.New("reddit: client_id, client_secret, username and password are required")
	}
	if userAgent == "" {
		return nil, errors.New("reddit: user agent is required")
	}
	return &RedditSink{
		creds:     creds,
		userAgent: userAgent,
		signature: signature,
		pacer:     pacer,
		client:    &http.Client{Timeout: redditTimeout},
		baseURL:   redditOAuthURL,
		tokenURL:  redditTokenURL,
	}, nil
}

func (rk *RedditSink) Submit(ctx context.Context, sub Submission) (Created, error) {
	if strings.TrimSpace(sub.Subreddit) == "" {
		return Created{}, errors.New("reddit: subreddit is required")
	}
	if strings.TrimSpace(sub.Title) == "" {
		return Created{}, errors.New("reddit: title is required")
	}

	if rk.pacer != nil {
		rk.pacer.Acquire()
	}

	if err := rk.ensureToken(ctx); err != nil {
		return Created{}, err
	}

	form := url.Values{}
	form.Set("sr", sub.Subreddit)
	form.Set("title", truncateRunes(sub.Title, redditTitleLimit))
	form.Set("api_type", "json")
	form.Set("resubmit", "false")
	if sub.URL != "" {
		form.Set("kind", "link")
		form.Set("url", sub.URL)
	} else {
		form.Set("kind", "self")
		form.Set("text", rk.withSignature(sub.Body))
	}
	if sub.FlairID != "" {
		form.Set("flair_id", sub.FlairID)
	}

	req, err := rk.newRequest(ctx, http.MethodPost, rk.baseURL+"/api/submit", form)
	if err != nil {
		return Created{}, err
	}
	req.Header.Set("Authorization", "bearer "+rk.token)

	resp, err := rk.client.Do(req)
	if err != nil {
		return Created{}, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	defer func() { _ = resp.Body.Close() }()

	switch {
	case resp.StatusCode == http.StatusUnauthorized:
		// force a fresh token on the next attempt
		rk.token = ""
		return Created{}, fmt.Errorf("%w: token expired", ErrUnavailable)
	case resp.StatusCode == http.StatusTooManyRequests:
		return Created{}, &RejectedError{Reason: "RATELIMIT", Message: "HTTP 429"}
	case resp.StatusCode != http.StatusOK:
		return Created{}, fmt.Errorf("%w: status %d", ErrUnavailable, resp.StatusCode)
	}

	var body submitResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return Created{}, fmt.Errorf("%w: decode response: %v", ErrUnavailable, err)
	}

	if len(body.JSON.Errors) > 0 {
		return Created{}, rejectionFromErrors(body.JSON.Errors)
	}

	return Created{
		Fullname:  body.JSON.Data.Name,
		Permalink: body.JSON.Data.URL,
	}, nil
}

// ensureToken fetches an OAuth token via the password grant if the
// cached one is missing or about to expire.
func (rk *RedditSink) ensureToken(ctx context.Context) error {
	if rk.token != "" && time.Now().Before(rk.tokenExpiry.Add(-tokenSlack)) {
		return nil
	}

	form := url.Values{}
	form.Set("grant_type", "password")
	form.Set("username", rk.creds.Username)
	form.Set("password", rk.creds.Password)

	req, err := rk.newRequest(ctx, http.MethodPost, rk.tokenURL, form)
	if err != nil {
		return err
	}
	req.SetBasicAuth(rk.creds.ClientID, rk.creds.ClientSecret)

	resp, err := rk.client.Do(req)
	if err != nil {
		return fmt.Errorf("%w: fetch token: %v", ErrUnavailable, err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("%w: token endpoint status %d", ErrUnavailable, resp.StatusCode)
	}

	var tok tokenResponse
	if err := json.NewDecoder(resp.Body).Decode(&tok); err != nil {
		return fmt.Errorf("%w: decode token: %v", ErrUnavailable, err)
	}
	if tok.AccessToken == "" {
		return fmt.Errorf("%w: empty access token", ErrUnavailable)
	}

	rk.token = tok.AccessToken
	rk.tokenExpiry = time.Now().Add(time.Duration(tok.ExpiresIn) * time.Second)
	return nil
}

func (rk *RedditSink) newRequest(ctx context.Context, method, endpoint string, form url.Values) (*http.Request, error) {
	req, err := http.NewRequestWithContext(ctx, method, endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("User-Agent", rk.userAgent)
	return req, nil
}

func (rk *RedditSink) withSignature(body string) string {
	if rk.signature == "" {
		return body
	}
	if body == "" {
		return rk.signature
	}
	return body + "\n\n" + rk.signature
}

// rejectionFromErrors maps the API's error tuples to a RejectedError.
// Tuples look like ["RATELIMIT", "you are doing that too much", "ratelimit"].
func rejectionFromErrors(apiErrors [][]any) error {
	reason := "UNKNOWN"
	message := ""
	if len(apiErrors[0]) > 0 {
		if s, ok := apiErrors[0][0].(string); ok {
			reason = s
		}
	}
	if len(apiErrors[0]) > 1 {
		if s, ok := apiErrors[0][1].(string); ok {
			message = s
		}
	}
	return &RejectedError{Reason: reason, Message: message}
}

func truncateRunes(s string, n int) string {
	if n <= 0 || s == "" {
		return ""
	}
	count := 0
	for i := range s {
		if count == n {
			return s[:i]
		}
		count++
	}
	return s
}

type tokenResponse struct {
	AccessToken string `json:"access_token"`
	ExpiresIn   int    `json:"expires_in"`
}

type submitResponse struct {
	JSON struct {
		Errors [][]any `json:"errors"`
		Data   struct {
			Name string `json:"name"`
			URL  string `json:"url"`
		} `json:"data"`
	} `json:"json"`
}
