package cli

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/mkarpov/crier/internal/config"
	"github.com/mkarpov/crier/internal/source"
)

type stubSource struct {
	posts []source.Post
	err   error
}

func (s *stubSource) Name() string { return "stub" }

func (s *stubSource) Fetch(_ context.Context, _ string) ([]source.Post, error) {
	if s.err != nil {
		return nil, s.err
	}
	return s.posts, nil
}

func TestCheckSource(t *testing.T) {
	ctx := context.Background()

	src := &stubSource{posts: []source.Post{
		{ID: "1", Account: "larryvc", Text: "hello", PostedAt: time.Now()},
		{ID: "2", Account: "larryvc", Text: "again", PostedAt: time.Now()},
	}}
	n, err := checkSource(ctx, src, "larryvc")
	if err != nil {
		t.Fatalf("check source: %v", err)
	}
	if n != 2 {
		t.Fatalf("post count = %d, want 2", n)
	}

	src = &stubSource{err: errors.New("connection refused")}
	if _, err := checkSource(ctx, src, "larryvc"); err == nil {
		t.Fatal("expected fetch error to surface")
	}
}

func TestFirstOfEachKind(t *testing.T) {
	accounts := []config.AccountConfig{
		{Handle: "larryvc", Kind: "twitter"},
		{Handle: "ryancohen", Kind: "twitter"},
		{Handle: "TheRoaringKitty", Kind: "rss", Feed: "https://mirror.example.com/rss"},
		{Handle: "another", Kind: "rss", Feed: "https://mirror.example.com/rss2"},
	}

	picked := firstOfEachKind(accounts)
	if len(picked) != 2 {
		t.Fatalf("picked %d accounts, want 2", len(picked))
	}
	if picked[0].Handle != "larryvc" || picked[0].Kind != "twitter" {
		t.Errorf("picked[0] = %+v", picked[0])
	}
	if picked[1].Handle != "TheRoaringKitty" || picked[1].Kind != "rss" {
		t.Errorf("picked[1] = %+v", picked[1])
	}
}

func TestFirstOfEachKindEmpty(t *testing.T) {
	if got := firstOfEachKind(nil); len(got) != 0 {
		t.Fatalf("picked %d accounts from empty config", len(got))
	}
}
