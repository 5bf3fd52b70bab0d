package tasks

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
)

type ProcessDueTask struct {
	Task
	runner Runner
}

func NewProcessDueTask(runner Runner) *ProcessDueTask {
	return &ProcessDueTask{
		Task:   NewTask(TaskTypeProcessDue, ""),
		runner: runner,
	}
}

func (t *ProcessDueTask) Execute(ctx context.Context) error {
	if err := checkContext(ctx); err != nil {
		return err
	}

	posted, err := t.runner.ProcessDue(ctx)
	if err != nil {
		return fmt.Errorf("failed to process due tweets: %w", err)
	}

	slog.Info("Task completed",
		"type", string(t.Type),
		"duration", t.GetDuration(),
		"posted", posted)

	return nil
}

type PostTweetTask struct {
	Task
	TweetID int64
	runner  Runner
}

func NewPostTweetTask(runner Runner, tweetID int64) *PostTweetTask {
	task := &PostTweetTask{
		Task:    NewTask(TaskTypePostTweet, strconv.FormatInt(tweetID, 10)),
		TweetID: tweetID,
		runner:  runner,
	}
	// A failed publish may still have reached upstream.
	task.MaxRetries = 0
	return task
}

func (t *PostTweetTask) Execute(ctx context.Context) error {
	if err := checkContext(ctx); err != nil {
		return err
	}

	if err := t.runner.PostTweet(ctx, t.TweetID); err != nil {
		return fmt.Errorf("failed to post tweet %d: %w", t.TweetID, err)
	}

	slog.Info("Task completed",
		"type", string(t.Type),
		"tweet_id", t.TweetID,
		"duration", t.GetDuration())

	return nil
}
