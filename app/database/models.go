package database

import (
	"time"
)

// Account is a monitored upstream account.
type Account struct {
	ID          int64
	Username    string
	Name        string
	Description string
	Active      bool
	LastSync    *time.Time
	CreatedAt   time.Time
}

// Tweet is an item tracked from creation through scheduling to posting.
// Posted is true exactly when PostedAt is set.
type Tweet struct {
	ID           int64
	TwitterID    *string // nil for manually authored items
	AccountID    *int64
	OriginalText string
	ModifiedText *string
	OriginalURL  string
	Posted       bool
	ScheduledFor *time.Time
	PostedAt     *time.Time
	CreatedAt    time.Time
}

// Text returns the text that should go out: the rewritten text when present.
func (t Tweet) Text() string {
	if t.ModifiedText != nil && *t.ModifiedText != "" {
		return *t.ModifiedText
	}
	return t.OriginalText
}

type URLReplacement struct {
	ID             int64
	OriginalURL    string // scheme stripped
	ReplacementURL string
}

type LogEntry struct {
	ID          int64
	Action      string
	Description string
	Status      string
	CreatedAt   time.Time
}
