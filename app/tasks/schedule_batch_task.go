package tasks

import (
	"context"
	"fmt"
	"log/slog"
)

type ScheduleBatchTask struct {
	Task
	Count  int
	runner Runner
}

func NewScheduleBatchTask(runner Runner, count int) *ScheduleBatchTask {
	return &ScheduleBatchTask{
		Task:   NewTask(TaskTypeScheduleBatch, ""),
		Count:  count,
		runner: runner,
	}
}

func (t *ScheduleBatchTask) Execute(ctx context.Context) error {
	if err := checkContext(ctx); err != nil {
		return err
	}

	scheduled, err := t.runner.ScheduleBacklog(ctx, t.Count)
	if err != nil {
		return fmt.Errorf("failed to schedule backlog: %w", err)
	}

	slog.Info("Task completed",
		"type", string(t.Type),
		"duration", t.GetDuration(),
		"requested", t.Count,
		"scheduled", scheduled)

	return nil
}
