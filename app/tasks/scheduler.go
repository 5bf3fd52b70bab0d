package tasks

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/jpillora/backoff"
	"github.com/robfig/cron/v3"

	"github.com/lysyi3m/tweet-relay/app/database"
	"github.com/lysyi3m/tweet-relay/app/engine"
	"github.com/lysyi3m/tweet-relay/app/source"
)

const (
	DefaultCycleSchedule = "*/30 * * * *"
	DefaultWorkerCount   = 3

	queueSize       = 100
	taskTimeout     = 15 * time.Minute
	shutdownTimeout = 30 * time.Second
)

var _ TaskSchedulerInterface = (*Scheduler)(nil)

type Options struct {
	CycleSchedule string // standard five-field cron expression
	WorkerCount   int
}

type Stats struct {
	Running     bool       `json:"running"`
	Workers     int        `json:"workers"`
	QueueSize   int        `json:"queue_size"`
	Processed   int64      `json:"processed"`
	Failed      int64      `json:"failed"`
	LastCycleAt *time.Time `json:"last_cycle_at,omitempty"`
	NextCycleAt *time.Time `json:"next_cycle_at,omitempty"`
}

// Scheduler triggers the recurring cycle from cron and runs manually
// requested tasks on a small worker pool.
type Scheduler struct {
	runner      Runner
	seed        SeedApplier
	cron        *cron.Cron
	workerCount int

	ctx       context.Context
	cancel    context.CancelFunc
	wg        sync.WaitGroup
	taskQueue chan TaskInterface

	mu          sync.Mutex
	started     bool
	stopped     bool
	lastCycleAt *time.Time

	processed atomic.Int64
	failed    atomic.Int64

	backoff backoff.Backoff
}

// NewScheduler validates the cycle schedule and prepares the scheduler.
// seed may be nil when no seed file is configured.
func NewScheduler(runner Runner, seed SeedApplier, opts Options) (*Scheduler, error) {
	if opts.CycleSchedule == "" {
		opts.CycleSchedule = DefaultCycleSchedule
	}
	if opts.WorkerCount <= 0 {
		opts.WorkerCount = DefaultWorkerCount
	}

	logger := cronLogger{}
	c := cron.New(
		cron.WithLogger(logger),
		cron.WithChain(cron.Recover(logger), cron.SkipIfStillRunning(logger)),
	)

	ctx, cancel := context.WithCancel(context.Background())

	s := &Scheduler{
		runner:      runner,
		seed:        seed,
		cron:        c,
		workerCount: opts.WorkerCount,
		ctx:         ctx,
		cancel:      cancel,
		taskQueue:   make(chan TaskInterface, queueSize),
		backoff: backoff.Backoff{
			Min:    time.Second,
			Max:    30 * time.Second,
			Factor: 2,
			Jitter: true,
		},
	}

	if _, err := c.AddFunc(opts.CycleSchedule, s.runCycle); err != nil {
		cancel()
		return nil, fmt.Errorf("invalid cycle schedule %q: %w", opts.CycleSchedule, err)
	}

	return s, nil
}

// Start launches the workers and the cron trigger and queues the seed sync.
// Calling it again, or after Stop, does nothing.
func (s *Scheduler) Start() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.started || s.stopped {
		return
	}
	s.started = true

	for i := 0; i < s.workerCount; i++ {
		s.wg.Add(1)
		go s.worker(i)
	}

	s.cron.Start()

	if s.seed != nil {
		if err := s.EnqueueTask(NewSyncSeedTask(s.seed)); err != nil {
			slog.Warn("Failed to enqueue seed sync", "error", err)
		}
	}

	slog.Info("Scheduler started", "workers", s.workerCount)
}

// Stop halts the cron trigger, waits for a running cycle to finish and then
// stops the workers. It is safe to call more than once.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	if s.stopped {
		s.mu.Unlock()
		return
	}
	s.stopped = true
	started := s.started
	s.mu.Unlock()

	if started {
		select {
		case <-s.cron.Stop().Done():
		case <-time.After(shutdownTimeout):
			slog.Warn("Timed out waiting for running cycle")
		}
	}

	s.cancel()
	s.wg.Wait()

	slog.Info("Scheduler stopped")
}

func (s *Scheduler) EnqueueTask(task TaskInterface) error {
	select {
	case <-s.ctx.Done():
		return s.ctx.Err()
	default:
	}

	select {
	case s.taskQueue <- task:
		return nil
	default:
		return fmt.Errorf("task queue is full")
	}
}

func (s *Scheduler) Stats() Stats {
	s.mu.Lock()
	stats := Stats{
		Running:     s.started && !s.stopped,
		Workers:     s.workerCount,
		LastCycleAt: s.lastCycleAt,
	}
	s.mu.Unlock()

	stats.QueueSize = len(s.taskQueue)
	stats.Processed = s.processed.Load()
	stats.Failed = s.failed.Load()

	if entries := s.cron.Entries(); len(entries) > 0 && !entries[0].Next.IsZero() {
		next := entries[0].Next
		stats.NextCycleAt = &next
	}

	return stats
}

// runCycle is the cron job. It runs inline so SkipIfStillRunning sees it.
func (s *Scheduler) runCycle() {
	task := NewCycleTask(s.runner)
	s.executeTask(-1, task)

	now := time.Now()
	s.mu.Lock()
	s.lastCycleAt = &now
	s.mu.Unlock()
}

func (s *Scheduler) worker(id int) {
	defer s.wg.Done()

	for {
		select {
		case task := <-s.taskQueue:
			s.executeTask(id, task)

		case <-s.ctx.Done():
			return
		}
	}
}

func (s *Scheduler) executeTask(workerID int, task TaskInterface) {
	task.Start()

	taskCtx, cancel := context.WithTimeout(s.ctx, taskTimeout)
	defer cancel()

	err := task.Execute(taskCtx)
	s.processed.Add(1)
	if err == nil {
		return
	}

	s.failed.Add(1)
	slog.Error("Worker task execution failed", "worker_id", workerID, "type", string(task.GetType()), "id", task.GetID(), "target", task.GetTarget(), "retry_count", task.GetRetryCount(), "error", err)

	if !task.CanRetry() || isPermanent(err) {
		if task.GetMaxRetries() > 0 {
			slog.Error("Task failed permanently", "type", string(task.GetType()), "id", task.GetID(), "retry_count", task.GetRetryCount(), "max_retries", task.GetMaxRetries(), "last_error", err)
		}
		return
	}

	task.IncrementRetryCount()
	retryDelay := s.backoff.ForAttempt(float64(task.GetRetryCount() - 1))

	slog.Warn("Task retry scheduled", "type", string(task.GetType()), "target", task.GetTarget(), "retry_count", task.GetRetryCount(), "max_retries", task.GetMaxRetries(), "delay", retryDelay.String())

	go func() {
		timer := time.NewTimer(retryDelay)
		defer timer.Stop()

		select {
		case <-s.ctx.Done():
			slog.Debug("Scheduler stopped, skipping task retry", "type", string(task.GetType()), "id", task.GetID())
		case <-timer.C:
			if retryErr := s.EnqueueTask(task); retryErr != nil {
				slog.Error("Failed to re-enqueue task for retry", "type", string(task.GetType()), "id", task.GetID(), "retry_count", task.GetRetryCount(), "error", retryErr)
			}
		}
	}()
}

// isPermanent reports errors that a retry cannot fix. A rate limit has
// already been waited out and retried once by the fetcher.
func isPermanent(err error) bool {
	var rateLimit *source.RateLimitError
	return errors.As(err, &rateLimit) ||
		errors.Is(err, source.ErrNotConfigured) ||
		errors.Is(err, source.ErrUnknownAccount) ||
		errors.Is(err, database.ErrNotFound) ||
		errors.Is(err, engine.ErrAlreadyPosted) ||
		errors.Is(err, context.Canceled)
}

type cronLogger struct{}

func (cronLogger) Info(msg string, keysAndValues ...interface{}) {
	slog.Debug("cron: "+msg, keysAndValues...)
}

func (cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	slog.Error("cron: "+msg, append(keysAndValues, "error", err)...)
}
