package engine

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/lysyi3m/tweet-relay/app/database"
)

// ScheduleBacklog assigns publish times to up to count backlog tweets, oldest
// first. The i-th selected tweet is scheduled at now + i * time_between_posts.
func (e *Engine) ScheduleBacklog(ctx context.Context, count int) (int, error) {
	if count <= 0 {
		return 0, nil
	}

	settings, err := e.repos.Settings.GetSettings(ctx)
	if err != nil {
		e.logError(ctx, database.ActionSchedule, "Failed to load settings", err)
		return 0, err
	}

	backlog, err := e.repos.Tweets.ListBacklog(ctx, count)
	if err != nil {
		e.logError(ctx, database.ActionSchedule, "Failed to list backlog", err)
		return 0, err
	}

	if len(backlog) == 0 {
		slog.Debug("No backlog tweets to schedule")
		return 0, nil
	}

	now := e.now()
	interval := time.Duration(settings.TimeBetweenPosts) * time.Minute

	scheduled := 0
	for i, tweet := range backlog {
		at := now.Add(time.Duration(i) * interval)

		ok, err := e.repos.Tweets.ScheduleTweet(ctx, tweet.ID, at)
		if err != nil {
			e.logError(ctx, database.ActionSchedule, fmt.Sprintf("Failed to schedule tweet %d", tweet.ID), err)
			return scheduled, err
		}
		if !ok {
			slog.Debug("Tweet no longer in backlog, skipping", "tweet_id", tweet.ID)
			continue
		}
		scheduled++
	}

	e.addLog(ctx, database.ActionSchedule,
		fmt.Sprintf("Scheduled %d tweets, %d minutes apart", scheduled, settings.TimeBetweenPosts),
		database.StatusInfo)

	return scheduled, nil
}
