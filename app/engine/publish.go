package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/lysyi3m/tweet-relay/app/database"
	"github.com/lysyi3m/tweet-relay/app/source"
)

// WithinActiveHours reports whether the time of day of now lies in
// [start, end). Both bounds are "HH:MM" and compared as strings, so windows
// that wrap past midnight never match.
func WithinActiveHours(now time.Time, start, end string) bool {
	hm := now.Format("15:04")
	return hm >= start && hm < end
}

func startOfDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}

// ProcessDue publishes due tweets within the daily quota and active hours.
// A failed tweet is logged and the batch continues.
func (e *Engine) ProcessDue(ctx context.Context) (int, error) {
	e.publishMu.Lock()
	defer e.publishMu.Unlock()

	settings, err := e.repos.Settings.GetSettings(ctx)
	if err != nil {
		e.logError(ctx, database.ActionPost, "Failed to load settings", err)
		return 0, err
	}

	if !settings.SystemEnabled {
		slog.Debug("System disabled, not posting")
		return 0, nil
	}

	now := e.now().In(e.cfg.Location)
	if !WithinActiveHours(now, settings.ActiveHoursStart, settings.ActiveHoursEnd) {
		slog.Debug("Outside active hours, not posting",
			"time", now.Format("15:04"),
			"start", settings.ActiveHoursStart,
			"end", settings.ActiveHoursEnd)
		return 0, nil
	}

	if settings.DailyQuota <= 0 {
		return 0, nil
	}

	due, err := e.repos.Tweets.ListDue(ctx, now, settings.DailyQuota)
	if err != nil {
		e.logError(ctx, database.ActionPost, "Failed to list due tweets", err)
		return 0, err
	}
	if len(due) == 0 {
		slog.Debug("No tweets due")
		return 0, nil
	}

	postedToday, err := e.repos.Tweets.CountPostedSince(ctx, startOfDay(now))
	if err != nil {
		e.logError(ctx, database.ActionPost, "Failed to count tweets posted today", err)
		return 0, err
	}

	remaining := settings.DailyQuota - postedToday
	if remaining <= 0 {
		slog.Info("Daily quota reached", "quota", settings.DailyQuota, "posted_today", postedToday)
		return 0, nil
	}
	if len(due) > remaining {
		due = due[:remaining]
	}

	posted := 0
	for i, tweet := range due {
		if i > 0 {
			if err := e.sleep(ctx, e.cfg.PublishPause); err != nil {
				return posted, err
			}
		}

		if err := e.publish(ctx, tweet); err != nil {
			e.logError(ctx, database.ActionPost, fmt.Sprintf("Error posting tweet %d", tweet.ID), err)
			if errors.Is(err, source.ErrNotConfigured) {
				return posted, err
			}
			continue
		}
		posted++
	}

	return posted, nil
}

// PostTweet publishes one tweet immediately, outside the schedule.
func (e *Engine) PostTweet(ctx context.Context, id int64) error {
	e.publishMu.Lock()
	defer e.publishMu.Unlock()

	tweet, err := e.repos.Tweets.GetTweet(ctx, id)
	if err != nil {
		return err
	}
	if tweet.Posted {
		return ErrAlreadyPosted
	}

	if err := e.publish(ctx, *tweet); err != nil {
		e.logError(ctx, database.ActionPost, fmt.Sprintf("Error posting tweet %d", tweet.ID), err)
		return err
	}
	return nil
}

func (e *Engine) publish(ctx context.Context, tweet database.Tweet) error {
	text, err := e.rewriter.Rewrite(ctx, tweet.Text())
	if err != nil {
		return fmt.Errorf("failed to rewrite urls: %w", err)
	}

	upstreamID, err := e.publisher.Publish(ctx, text)
	if err != nil {
		return err
	}

	// The tweet is live upstream; record it even if ctx is cancelled now.
	ctx = context.WithoutCancel(ctx)

	ok, err := e.repos.Tweets.MarkPosted(ctx, tweet.ID, e.now())
	if err != nil {
		return fmt.Errorf("posted as %s but failed to mark tweet posted: %w", upstreamID, err)
	}
	if !ok {
		slog.Warn("Tweet was already marked posted", "tweet_id", tweet.ID, "upstream_id", upstreamID)
	}

	slog.Info("Tweet posted", "tweet_id", tweet.ID, "upstream_id", upstreamID)
	e.addLog(ctx, database.ActionPost,
		fmt.Sprintf("Posted tweet %d (upstream id %s)", tweet.ID, upstreamID),
		database.StatusSuccess)

	return nil
}
