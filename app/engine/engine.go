// Package engine runs the fetch, schedule and publish phases of the posting
// pipeline. It keeps no state between calls: quota and schedules are always
// recomputed from the store.
package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/lysyi3m/tweet-relay/app/database"
	"github.com/lysyi3m/tweet-relay/app/source"
)

const (
	DefaultFetchCap     = 50
	DefaultFetchPause   = 2 * time.Second
	DefaultPublishPause = 5 * time.Second
)

var ErrAlreadyPosted = errors.New("tweet already posted")

type Fetcher interface {
	FetchRecent(ctx context.Context, username string, max int) (int, error)
}

type Publisher interface {
	Publish(ctx context.Context, text string) (string, error)
}

type Rewriter interface {
	Rewrite(ctx context.Context, text string) (string, error)
}

type Repositories struct {
	Accounts database.AccountRepository
	Tweets   database.TweetRepository
	Settings database.SettingRepository
	Logs     database.LogRepository
}

type Config struct {
	FetchCap     int
	FetchPause   time.Duration
	PublishPause time.Duration
	Location     *time.Location // local day and active hours; time.Local if nil
}

type Engine struct {
	repos     Repositories
	fetcher   Fetcher
	publisher Publisher
	rewriter  Rewriter
	cfg       Config

	now   func() time.Time
	sleep func(ctx context.Context, d time.Duration) error

	cycleMu   sync.Mutex
	publishMu sync.Mutex
}

func New(repos Repositories, fetcher Fetcher, publisher Publisher, rewriter Rewriter, cfg Config) *Engine {
	if cfg.FetchCap <= 0 {
		cfg.FetchCap = DefaultFetchCap
	}
	if cfg.Location == nil {
		cfg.Location = time.Local
	}

	return &Engine{
		repos:     repos,
		fetcher:   fetcher,
		publisher: publisher,
		rewriter:  rewriter,
		cfg:       cfg,
		now:       time.Now,
		sleep:     source.Sleep,
	}
}

// RunCycle runs fetch, backlog scheduling and publishing in order. A cycle
// started while another one is running is skipped. Only configuration errors
// and cancellation are returned; other failures are logged and the next phase
// still runs.
func (e *Engine) RunCycle(ctx context.Context) error {
	if !e.cycleMu.TryLock() {
		slog.Warn("Cycle already running, skipping")
		return nil
	}
	defer e.cycleMu.Unlock()

	settings, err := e.repos.Settings.GetSettings(ctx)
	if err != nil {
		e.logError(ctx, database.ActionCycle, "Failed to load settings", err)
		return err
	}

	if !settings.SystemEnabled {
		slog.Debug("System disabled, skipping cycle")
		return nil
	}

	start := e.now()
	slog.Info("Cycle started")

	fetched, err := e.FetchAll(ctx)
	if e.isFatal(ctx, err) {
		return err
	}

	scheduled, err := e.ScheduleBacklog(ctx, settings.DailyQuota)
	if e.isFatal(ctx, err) {
		return err
	}

	posted, err := e.ProcessDue(ctx)
	if e.isFatal(ctx, err) {
		return err
	}

	slog.Info("Cycle completed",
		"fetched", fetched,
		"scheduled", scheduled,
		"posted", posted,
		"duration", e.now().Sub(start))

	return nil
}

func (e *Engine) isFatal(ctx context.Context, err error) bool {
	if err == nil {
		return false
	}
	return errors.Is(err, source.ErrNotConfigured) || ctx.Err() != nil
}

func (e *Engine) addLog(ctx context.Context, action, description, status string) {
	if err := e.repos.Logs.AddLog(ctx, action, description, status); err != nil {
		slog.Error("Failed to write activity log", "action", action, "error", err)
	}
}

func (e *Engine) logError(ctx context.Context, action, description string, err error) {
	slog.Error(description, "action", action, "error", err)
	e.addLog(ctx, action, fmt.Sprintf("%s: %v", description, err), database.StatusError)
}
