package feed

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/lysyi3m/tweet-relay/app/source"
)

func TestSourceRecentPosts(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/alice/rss" {
			t.Errorf("Unexpected path %s", r.URL.Path)
		}
		if r.Header.Get("User-Agent") != "test-agent" {
			t.Errorf("Expected user agent test-agent, got %q", r.Header.Get("User-Agent"))
		}
		w.Write([]byte(testFeed))
	}))
	defer server.Close()

	src := NewSource(server.URL+"/%s/rss", server.Client(), "test-agent")

	user, err := src.LookupUser(context.Background(), "alice")
	if err != nil {
		t.Fatal(err)
	}

	posts, err := src.RecentPosts(context.Background(), user, 10)
	if err != nil {
		t.Fatal(err)
	}

	if len(posts) != 2 {
		t.Fatalf("Expected 2 original posts, got %d", len(posts))
	}
	if posts[0].ID != "1001" || posts[1].ID != "1004" {
		t.Errorf("Expected ids 1001 and 1004, got %s and %s", posts[0].ID, posts[1].ID)
	}
	if len(posts[0].Links) != 1 || posts[0].Links[0].URL != "https://example.com/a" {
		t.Errorf("Expected one extracted link, got %+v", posts[0].Links)
	}

	limited, err := src.RecentPosts(context.Background(), user, 1)
	if err != nil {
		t.Fatal(err)
	}
	if len(limited) != 1 {
		t.Errorf("Expected 1 post with count 1, got %d", len(limited))
	}
}

func TestSourceRateLimit(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Retry-After", "5")
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer server.Close()

	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	src := NewSource(server.URL+"/%s/rss", server.Client(), "")
	src.now = func() time.Time { return now }

	_, err := src.RecentPosts(context.Background(), source.User{Username: "alice"}, 5)

	var rateLimit *source.RateLimitError
	if !errors.As(err, &rateLimit) {
		t.Fatalf("Expected RateLimitError, got: %v", err)
	}
	if !rateLimit.Reset.Equal(now.Add(5 * time.Second)) {
		t.Errorf("Expected reset in 5s, got %v", rateLimit.Reset)
	}
}

func TestSourceUnknownAccount(t *testing.T) {
	server := httptest.NewServer(http.NotFoundHandler())
	defer server.Close()

	src := NewSource(server.URL+"/%s/rss", server.Client(), "")
	_, err := src.RecentPosts(context.Background(), source.User{Username: "ghost"}, 5)
	if !errors.Is(err, source.ErrUnknownAccount) {
		t.Errorf("Expected ErrUnknownAccount, got: %v", err)
	}
}
