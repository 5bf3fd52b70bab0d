package tasks

import (
	"context"
	"fmt"
	"log/slog"
)

type FetchAllTask struct {
	Task
	runner Runner
}

func NewFetchAllTask(runner Runner) *FetchAllTask {
	return &FetchAllTask{
		Task:   NewTask(TaskTypeFetchAll, ""),
		runner: runner,
	}
}

func (t *FetchAllTask) Execute(ctx context.Context) error {
	if err := checkContext(ctx); err != nil {
		return err
	}

	fetched, err := t.runner.FetchAll(ctx)
	if err != nil {
		return fmt.Errorf("failed to fetch accounts: %w", err)
	}

	slog.Info("Task completed",
		"type", string(t.Type),
		"duration", t.GetDuration(),
		"fetched", fetched)

	return nil
}

type FetchAccountTask struct {
	Task
	Username string
	Count    int
	runner   Runner
}

func NewFetchAccountTask(runner Runner, username string, count int) *FetchAccountTask {
	return &FetchAccountTask{
		Task:     NewTask(TaskTypeFetchAccount, username),
		Username: username,
		Count:    count,
		runner:   runner,
	}
}

func (t *FetchAccountTask) Execute(ctx context.Context) error {
	if err := checkContext(ctx); err != nil {
		return err
	}

	fetched, err := t.runner.FetchAccount(ctx, t.Username, t.Count)
	if err != nil {
		return fmt.Errorf("failed to fetch @%s: %w", t.Username, err)
	}

	slog.Info("Task completed",
		"type", string(t.Type),
		"account", t.Username,
		"duration", t.GetDuration(),
		"fetched", fetched)

	return nil
}
