package database

import (
	"context"
	"time"
)

type AccountRepository interface {
	GetAccountByUsername(ctx context.Context, username string) (*Account, error)
	ListAccounts(ctx context.Context) ([]Account, error)
	ListActiveAccounts(ctx context.Context) ([]Account, error)
	CountAccounts(ctx context.Context) (int, error)

	UpsertAccount(ctx context.Context, input AccountInput) (*Account, error)
	UpdateLastSync(ctx context.Context, accountID int64, at time.Time) error
	DeleteAccount(ctx context.Context, accountID int64) error
}

type TweetRepository interface {
	GetTweet(ctx context.Context, id int64) (*Tweet, error)
	ListBacklog(ctx context.Context, limit int) ([]Tweet, error)
	ListDue(ctx context.Context, now time.Time, limit int) ([]Tweet, error)
	CountPostedSince(ctx context.Context, since time.Time) (int, error)
	Stats(ctx context.Context) (TweetStats, error)

	InsertTweet(ctx context.Context, tweet NewTweet) (bool, error)
	ScheduleTweet(ctx context.Context, id int64, at time.Time) (bool, error)
	MarkPosted(ctx context.Context, id int64, at time.Time) (bool, error)
}

type ReplacementRepository interface {
	GetReplacementURL(ctx context.Context, originalURL string) (string, bool, error)
	IsReplacementTarget(ctx context.Context, url string) (bool, error)
	ListReplacements(ctx context.Context) ([]URLReplacement, error)

	UpsertReplacement(ctx context.Context, originalURL, replacementURL string) error
}

type SettingRepository interface {
	GetSettings(ctx context.Context) (Settings, error)
	GetAllSettings(ctx context.Context) (map[string]string, error)

	SetSetting(ctx context.Context, key, value string) error
	EnsureSetting(ctx context.Context, key, value string) (bool, error)
}

type LogRepository interface {
	ListLogs(ctx context.Context, filter LogFilter) ([]LogEntry, error)

	AddLog(ctx context.Context, action, description, status string) error
	ClearLogs(ctx context.Context) error
}
