package sink

import (
	"context"
	"errors"
	"fmt"
)

// Submission is the content of one forum post. URL set means a link
// post; otherwise Body is submitted as a self post.
type Submission struct {
	Subreddit string
	Title     string
	URL       string
	Body      string
	FlairID   string
}

// Created identifies the post the forum assigned on success.
type Created struct {
	Fullname  string // e.g. "t3_abc123"
	Permalink string
}

// ErrUnavailable wraps transport failures, 5xx responses and expired
// auth. The submission may be retried on a later cycle.
var ErrUnavailable = errors.New("sink unavailable")

// RejectedError is an API-level refusal of a specific submission, such
// as a rate limit or the subreddit's duplicate-link policy.
type RejectedError struct {
	Reason  string // API error code, e.g. "RATELIMIT", "ALREADY_SUB"
	Message string
}

func (e *RejectedError) Error() string {
	return fmt.Sprintf("submission rejected: %s: %s", e.Reason, e.Message)
}

// Permanent reports whether resubmitting the same content can never
// succeed. Permanent rejections are safe to record as handled.
func (e *RejectedError) Permanent() bool {
	return e.Reason == "ALREADY_SUB"
}

// Sink submits posts to the destination community. It gives no
// deduplication guarantee; callers must prevent duplicate calls.
type Sink interface {
	Submit(ctx context.Context, sub Submission) (Created, error)
}
