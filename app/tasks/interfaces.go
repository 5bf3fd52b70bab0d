package tasks

import "context"

// TaskSchedulerInterface is what the HTTP layer needs from the scheduler:
// lifecycle control and a non-blocking queue.
type TaskSchedulerInterface interface {
	Start()
	Stop()
	EnqueueTask(task TaskInterface) error
	Stats() Stats
}

// Runner is the set of pipeline operations tasks dispatch to.
type Runner interface {
	RunCycle(ctx context.Context) error
	FetchAll(ctx context.Context) (int, error)
	FetchAccount(ctx context.Context, username string, count int) (int, error)
	ProcessDue(ctx context.Context) (int, error)
	ScheduleBacklog(ctx context.Context, count int) (int, error)
	PostTweet(ctx context.Context, id int64) error
}

type SeedApplier interface {
	Apply(ctx context.Context) error
}
