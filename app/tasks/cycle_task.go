package tasks

import (
	"context"
	"fmt"
	"log/slog"
)

type CycleTask struct {
	Task
	runner Runner
}

func NewCycleTask(runner Runner) *CycleTask {
	task := &CycleTask{
		Task:   NewTask(TaskTypeCycle, ""),
		runner: runner,
	}
	// The next timed cycle is the retry.
	task.MaxRetries = 0
	return task
}

func (t *CycleTask) Execute(ctx context.Context) error {
	if err := checkContext(ctx); err != nil {
		return err
	}

	if err := t.runner.RunCycle(ctx); err != nil {
		return fmt.Errorf("cycle failed: %w", err)
	}

	slog.Info("Task completed",
		"type", string(t.Type),
		"duration", t.GetDuration())

	return nil
}
