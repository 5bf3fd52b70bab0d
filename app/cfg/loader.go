package cfg

import (
	"cmp"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"time"

	"github.com/jessevdk/go-flags"
	"github.com/joho/godotenv"
)

// Version is set at build time via -ldflags
var Version = "dev"

func GetVersion() string {
	return cmp.Or(Version, "unknown")
}

type rawCfg struct {
	// Storage
	DBPath   string `long:"db-path" env:"DB_PATH" default:"./data/tweet-relay.db" description:"SQLite database file"`
	SeedFile string `long:"seed-file" env:"SEED_FILE" description:"YAML file with accounts, URL replacements and initial settings"`

	// HTTP server
	Port         string `long:"port" env:"PORT" default:"8080" description:"HTTP server port"`
	APIAccessKey string `long:"api-key" env:"API_ACCESS_KEY" description:"API access key; the /api routes are disabled without it"`

	// Background work
	WorkerCount     int           `long:"worker-count" env:"WORKER_COUNT" default:"3" description:"Number of background workers for manual actions"`
	CycleSchedule   string        `long:"cycle-schedule" env:"CYCLE_SCHEDULE" default:"*/30 * * * *" description:"Cron expression for the fetch/schedule/publish cycle"`
	FetchCap        int           `long:"fetch-cap" env:"FETCH_CAP" default:"50" description:"Maximum tweets fetched per cycle across all accounts"`
	FetchPause      time.Duration `long:"fetch-pause" env:"FETCH_PAUSE" default:"2s" description:"Pause between account fetches"`
	PublishPause    time.Duration `long:"publish-pause" env:"PUBLISH_PAUSE" default:"5s" description:"Pause between published tweets"`
	RateLimitBuffer time.Duration `long:"rate-limit-buffer" env:"RATE_LIMIT_BUFFER" default:"1s" description:"Extra wait after a rate limit reset"`

	// Upstream
	Source              string `long:"source" env:"SOURCE" default:"twitter" choice:"twitter" choice:"rss" description:"Where tweets are fetched from"`
	RSSURLTemplate      string `long:"rss-url-template" env:"RSS_URL_TEMPLATE" default:"https://nitter.net/%s/rss" description:"Per-account feed URL for the rss source (%s is the username)"`
	TwitterAPIURL       string `long:"twitter-api-url" env:"TWITTER_API_URL" default:"https://api.twitter.com" description:"Twitter API base URL"`
	TwitterAPIKey       string `long:"twitter-api-key" env:"TWITTER_API_KEY" description:"Twitter consumer key"`
	TwitterAPISecret    string `long:"twitter-api-secret" env:"TWITTER_API_SECRET" description:"Twitter consumer secret"`
	TwitterAccessToken  string `long:"twitter-access-token" env:"TWITTER_ACCESS_TOKEN" description:"Twitter access token"`
	TwitterAccessSecret string `long:"twitter-access-secret" env:"TWITTER_ACCESS_SECRET" description:"Twitter access token secret"`
	DryRun              bool   `long:"dry-run" env:"DRY_RUN" description:"Log tweets instead of posting them"`

	// Application metadata
	UserAgent string `long:"user-agent" env:"USER_AGENT" default:"Tweet Relay/1.0" description:"User agent string for HTTP requests"`
	Timezone  string `long:"timezone" env:"TZ" default:"UTC" description:"Timezone for the posting day and active hours (e.g., UTC, Europe/Kyiv)"`
	Debug     bool   `long:"debug" env:"DEBUG" description:"Enable debug logging"`
}

// Load reads .env when present and parses the process arguments.
// It returns nil, nil when help was requested.
func Load() (*Cfg, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("failed to load .env: %w", err)
	}

	return LoadArgs(os.Args[1:])
}

func LoadArgs(args []string) (*Cfg, error) {
	var raw rawCfg

	parser := flags.NewParser(&raw, flags.Default)

	if _, err := parser.ParseArgs(args); err != nil {
		if flagsErr, ok := err.(*flags.Error); ok {
			if flagsErr.Type == flags.ErrHelp {
				return nil, nil
			}
		}
		return nil, fmt.Errorf("failed to parse configuration: %w", err)
	}

	if raw.FetchCap <= 0 {
		return nil, fmt.Errorf("fetch cap must be positive, got %d", raw.FetchCap)
	}

	cfg := &Cfg{
		DBPath:          raw.DBPath,
		SeedFile:        raw.SeedFile,
		Port:            raw.Port,
		APIAccessKey:    raw.APIAccessKey,
		WorkerCount:     raw.WorkerCount,
		CycleSchedule:   raw.CycleSchedule,
		FetchCap:        raw.FetchCap,
		FetchPause:      raw.FetchPause,
		PublishPause:    raw.PublishPause,
		RateLimitBuffer: raw.RateLimitBuffer,
		Source:          raw.Source,
		RSSURLTemplate:  raw.RSSURLTemplate,
		TwitterAPIURL:   raw.TwitterAPIURL,
		TwitterCreds: TwitterCreds{
			APIKey:       raw.TwitterAPIKey,
			APISecret:    raw.TwitterAPISecret,
			AccessToken:  raw.TwitterAccessToken,
			AccessSecret: raw.TwitterAccessSecret,
		},
		DryRun:    raw.DryRun,
		UserAgent: raw.UserAgent,
		Timezone:  raw.Timezone,
		Debug:     raw.Debug,
		Version:   GetVersion(),
	}

	if err := applyTimezone(cfg.Timezone); err != nil {
		fmt.Printf("Warning: Invalid timezone '%s', using system default: %v\n", cfg.Timezone, err)
	}

	return cfg, nil
}

func applyTimezone(timezone string) error {
	if timezone != "" {
		if loc, err := time.LoadLocation(timezone); err != nil {
			return err
		} else {
			time.Local = loc
		}
	}
	return nil
}
