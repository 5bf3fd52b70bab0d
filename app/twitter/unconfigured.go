package twitter

import (
	"context"

	"github.com/lysyi3m/tweet-relay/app/source"
)

var _ source.Upstream = Unconfigured{}

// Unconfigured stands in for a Client that could not be built. Every call
// returns the construction error, so the phase that needs the upstream fails
// with it.
type Unconfigured struct {
	Err error
}

func (u Unconfigured) LookupUser(ctx context.Context, username string) (source.User, error) {
	return source.User{}, u.Err
}

func (u Unconfigured) RecentPosts(ctx context.Context, user source.User, count int) ([]source.Post, error) {
	return nil, u.Err
}

func (u Unconfigured) Permalink(username, postID string) string {
	return ""
}

func (u Unconfigured) CreateTweet(ctx context.Context, text string) (string, error) {
	return "", u.Err
}

func (u Unconfigured) Me(ctx context.Context) (source.User, error) {
	return source.User{}, u.Err
}
