package tasks

import (
	"context"
	"fmt"
	"log/slog"
)

type SyncSeedTask struct {
	Task
	seed SeedApplier
}

func NewSyncSeedTask(seed SeedApplier) *SyncSeedTask {
	return &SyncSeedTask{
		Task: NewTask(TaskTypeSyncSeed, ""),
		seed: seed,
	}
}

func (t *SyncSeedTask) Execute(ctx context.Context) error {
	if err := checkContext(ctx); err != nil {
		return err
	}

	if err := t.seed.Apply(ctx); err != nil {
		slog.Error("Task failed", "type", string(t.Type), "error", err)
		return fmt.Errorf("failed to sync seed to database: %w", err)
	}

	slog.Info("Task completed",
		"type", string(t.Type),
		"duration", t.GetDuration())

	return nil
}
