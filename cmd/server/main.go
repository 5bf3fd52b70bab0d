package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/gofrs/flock"

	"github.com/lysyi3m/tweet-relay/app/api"
	"github.com/lysyi3m/tweet-relay/app/cfg"
	"github.com/lysyi3m/tweet-relay/app/database"
	"github.com/lysyi3m/tweet-relay/app/engine"
	"github.com/lysyi3m/tweet-relay/app/feed"
	"github.com/lysyi3m/tweet-relay/app/publisher"
	"github.com/lysyi3m/tweet-relay/app/rewrite"
	"github.com/lysyi3m/tweet-relay/app/seed"
	"github.com/lysyi3m/tweet-relay/app/source"
	"github.com/lysyi3m/tweet-relay/app/tasks"
	"github.com/lysyi3m/tweet-relay/app/twitter"
)

func main() {
	appCfg, err := cfg.Load()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	if appCfg == nil {
		// Help was shown
		return
	}

	setupLogger(appCfg.Debug)

	if err := run(appCfg); err != nil {
		slog.Error("Tweet Relay stopped with error", "error", err)
		os.Exit(1)
	}
}

func setupLogger(debug bool) {
	level := slog.LevelInfo
	if debug {
		level = slog.LevelDebug
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: level})))
}

func run(appCfg *cfg.Cfg) error {
	slog.Info("Starting Tweet Relay", "version", appCfg.Version, "timezone", time.Local.String())

	if err := os.MkdirAll(filepath.Dir(appCfg.DBPath), 0o755); err != nil {
		return fmt.Errorf("failed to create data directory: %w", err)
	}

	lock := flock.New(appCfg.DBPath + ".lock")
	locked, err := lock.TryLock()
	if err != nil {
		return fmt.Errorf("failed to acquire instance lock: %w", err)
	}
	if !locked {
		return fmt.Errorf("another instance is already using %s", appCfg.DBPath)
	}
	defer lock.Unlock()

	db, err := database.Open(appCfg.DBPath)
	if err != nil {
		return err
	}
	defer db.Close()

	version, dirty, err := database.RunMigrations(db)
	if err != nil {
		return err
	}
	slog.Info("Database ready", "path", appCfg.DBPath, "schema_version", version, "dirty", dirty)

	repos := engine.Repositories{
		Accounts: database.NewAccountRepository(db),
		Tweets:   database.NewTweetRepository(db),
		Settings: database.NewSettingRepository(db),
		Logs:     database.NewLogRepository(db),
	}
	replacements := database.NewReplacementRepository(db)
	rewriter := rewrite.New(replacements, repos.Settings)

	upstream, poster, verifier := buildUpstream(appCfg)

	fetcher := source.NewFetcher(upstream, repos.Accounts, repos.Tweets, repos.Logs, rewriter, appCfg.RateLimitBuffer)
	pipeline := engine.New(repos, fetcher, publisher.New(poster), rewriter, engine.Config{
		FetchCap:     appCfg.FetchCap,
		FetchPause:   appCfg.FetchPause,
		PublishPause: appCfg.PublishPause,
		Location:     time.Local,
	})

	var seedApplier tasks.SeedApplier
	if appCfg.SeedFile != "" {
		s, err := seed.Load(appCfg.SeedFile)
		if err != nil {
			return err
		}
		seedApplier = seed.NewApplier(s, repos.Accounts, replacements, repos.Settings)
		slog.Info("Seed loaded", "file", appCfg.SeedFile, "accounts", len(s.Accounts), "replacements", len(s.URLReplacements))
	}

	scheduler, err := tasks.NewScheduler(pipeline, seedApplier, tasks.Options{
		CycleSchedule: appCfg.CycleSchedule,
		WorkerCount:   appCfg.WorkerCount,
	})
	if err != nil {
		return err
	}
	scheduler.Start()
	defer scheduler.Stop()

	handler := api.NewHandler(repos, replacements, pipeline, scheduler, verifier, appCfg.FetchCap)
	server := api.NewServer(handler, appCfg.APIAccessKey)

	httpServer := &http.Server{
		Addr:         ":" + appCfg.Port,
		Handler:      server,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	serverErrChan := make(chan error, 1)
	go func() {
		slog.Info("Starting HTTP server", "port", appCfg.Port, "api_enabled", appCfg.APIAccessKey != "")
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErrChan <- fmt.Errorf("HTTP server error: %w", err)
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	var runErr error
	select {
	case sig := <-sigChan:
		slog.Info("Received signal", "signal", sig.String())
	case runErr = <-serverErrChan:
	}

	slog.Info("Shutting down gracefully")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		slog.Error("HTTP server shutdown error", "error", err)
	} else {
		slog.Info("HTTP server stopped")
	}

	// Scheduler, database and lock are released by the deferred calls.
	return runErr
}

// buildUpstream picks the fetch source, the poster and the credential check.
// Missing Twitter credentials are not fatal at startup: the affected calls
// fail with a configuration error instead.
func buildUpstream(appCfg *cfg.Cfg) (source.Upstream, publisher.Poster, api.Verifier) {
	client, err := twitter.NewClient(twitter.Credentials{
		APIKey:       appCfg.TwitterCreds.APIKey,
		APISecret:    appCfg.TwitterCreds.APISecret,
		AccessToken:  appCfg.TwitterCreds.AccessToken,
		AccessSecret: appCfg.TwitterCreds.AccessSecret,
	}, twitter.WithBaseURL(appCfg.TwitterAPIURL), twitter.WithUserAgent(appCfg.UserAgent))

	var (
		upstream source.Upstream
		poster   publisher.Poster
		verifier api.Verifier
	)
	if err != nil {
		slog.Warn("Twitter client not configured", "error", err)
		unconfigured := twitter.Unconfigured{Err: err}
		upstream, poster, verifier = unconfigured, unconfigured, unconfigured
	} else {
		upstream, poster, verifier = client, client, client
	}

	if appCfg.Source == cfg.SourceRSS {
		httpClient := &http.Client{Timeout: 30 * time.Second}
		upstream = feed.NewSource(appCfg.RSSURLTemplate, httpClient, appCfg.UserAgent)
		slog.Info("Fetching from RSS feeds", "url_template", appCfg.RSSURLTemplate)
	}

	if appCfg.DryRun {
		poster = publisher.DryRun{}
		slog.Info("Dry run enabled, tweets will be logged instead of posted")
	}

	return upstream, poster, verifier
}
