package source

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/lysyi3m/tweet-relay/app/rewrite"
)

var (
	// ErrNotConfigured marks configuration errors such as missing credentials.
	ErrNotConfigured = errors.New("upstream not configured")

	ErrUnknownAccount = errors.New("unknown upstream account")
)

// RateLimitError is returned by an upstream that asked us to back off until Reset.
type RateLimitError struct {
	Reset time.Time
}

func (e *RateLimitError) Error() string {
	if e.Reset.IsZero() {
		return "upstream rate limit exceeded"
	}
	return fmt.Sprintf("upstream rate limit exceeded, resets at %s", e.Reset.Format(time.RFC3339))
}

type User struct {
	ID       string
	Username string
	Name     string
}

// Post is an original upstream post with its embedded link entities.
type Post struct {
	ID        string
	Text      string
	Links     []rewrite.Link
	CreatedAt *time.Time
}

// Upstream is the platform the posts are fetched from.
type Upstream interface {
	LookupUser(ctx context.Context, username string) (User, error)
	// RecentPosts returns up to count recent posts that are neither reshares nor replies.
	RecentPosts(ctx context.Context, user User, count int) ([]Post, error)
	Permalink(username, postID string) string
}
