package source

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/lysyi3m/tweet-relay/app/database"
	"github.com/lysyi3m/tweet-relay/app/rewrite"
)

// DefaultResetBuffer is added to the reset time of a rate limit before retrying.
const DefaultResetBuffer = time.Second

// Fetcher pulls recent posts of one account into the store.
type Fetcher struct {
	upstream    Upstream
	accounts    database.AccountRepository
	tweets      database.TweetRepository
	logs        database.LogRepository
	rewriter    *rewrite.Rewriter
	resetBuffer time.Duration
	now         func() time.Time
	sleep       func(ctx context.Context, d time.Duration) error
}

func NewFetcher(upstream Upstream, accounts database.AccountRepository, tweets database.TweetRepository,
	logs database.LogRepository, rewriter *rewrite.Rewriter, resetBuffer time.Duration) *Fetcher {
	return &Fetcher{
		upstream:    upstream,
		accounts:    accounts,
		tweets:      tweets,
		logs:        logs,
		rewriter:    rewriter,
		resetBuffer: resetBuffer,
		now:         time.Now,
		sleep:       Sleep,
	}
}

// FetchRecent stores up to max new posts of the account and returns how many
// were stored. A rate limit is waited out and the fetch retried exactly once.
func (f *Fetcher) FetchRecent(ctx context.Context, username string, max int) (int, error) {
	if max <= 0 {
		return 0, nil
	}

	account, err := f.accounts.GetAccountByUsername(ctx, username)
	if errors.Is(err, database.ErrNotFound) {
		return 0, fmt.Errorf("account @%s: %w", username, err)
	}
	if err != nil {
		return 0, err
	}

	stored, err := f.fetch(ctx, account, max)

	var rateLimit *RateLimitError
	if errors.As(err, &rateLimit) {
		wait := rateLimit.Reset.Sub(f.now()) + f.resetBuffer
		if wait < f.resetBuffer {
			wait = f.resetBuffer
		}

		slog.Warn("Rate limited, waiting before retry", "account", account.Username, "wait", wait.String())
		f.addLog(ctx, database.ActionFetch,
			fmt.Sprintf("Rate limited while fetching @%s, retrying in %s", account.Username, wait.Round(time.Second)),
			database.StatusInfo)

		if err := f.sleep(ctx, wait); err != nil {
			return 0, err
		}
		stored, err = f.fetch(ctx, account, max)
	}
	if err != nil {
		return 0, fmt.Errorf("failed to fetch tweets for @%s: %w", account.Username, err)
	}

	return stored, nil
}

func (f *Fetcher) fetch(ctx context.Context, account *database.Account, max int) (int, error) {
	user, err := f.upstream.LookupUser(ctx, account.Username)
	if err != nil {
		return 0, err
	}

	posts, err := f.upstream.RecentPosts(ctx, user, max)
	if err != nil {
		return 0, err
	}
	if len(posts) > max {
		posts = posts[:max]
	}

	stored := 0
	for _, post := range posts {
		modified, err := f.rewriter.RewriteLinks(ctx, post.Text, post.Links)
		if err != nil {
			return stored, fmt.Errorf("failed to rewrite links: %w", err)
		}

		ok, err := f.tweets.InsertTweet(ctx, database.NewTweet{
			TwitterID:    post.ID,
			AccountID:    account.ID,
			OriginalText: post.Text,
			ModifiedText: modified,
			OriginalURL:  f.upstream.Permalink(account.Username, post.ID),
		})
		if err != nil {
			return stored, err
		}
		if ok {
			stored++
		}
	}

	if err := f.accounts.UpdateLastSync(ctx, account.ID, f.now()); err != nil {
		return stored, err
	}

	slog.Debug("Fetched tweets", "account", account.Username, "received", len(posts), "stored", stored)
	f.addLog(ctx, database.ActionFetch,
		fmt.Sprintf("Fetched %d tweets from @%s (%d new)", len(posts), account.Username, stored),
		database.StatusSuccess)

	return stored, nil
}

func (f *Fetcher) addLog(ctx context.Context, action, description, status string) {
	if err := f.logs.AddLog(ctx, action, description, status); err != nil {
		slog.Error("Failed to write activity log", "action", action, "error", err)
	}
}

// Sleep blocks for d or until ctx is done.
func Sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
