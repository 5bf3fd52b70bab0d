package cfg

import "time"

type Cfg struct {
	// Storage
	DBPath   string
	SeedFile string

	// HTTP server
	Port         string
	APIAccessKey string

	// Background work
	WorkerCount     int
	CycleSchedule   string
	FetchCap        int
	FetchPause      time.Duration
	PublishPause    time.Duration
	RateLimitBuffer time.Duration

	// Upstream
	Source         string
	RSSURLTemplate string
	TwitterAPIURL  string
	TwitterCreds   TwitterCreds
	DryRun         bool

	// Application metadata
	UserAgent string
	Timezone  string
	Debug     bool
	Version   string
}

type TwitterCreds struct {
	APIKey       string
	APISecret    string
	AccessToken  string
	AccessSecret string
}

const (
	SourceTwitter = "twitter"
	SourceRSS     = "rss"
)
