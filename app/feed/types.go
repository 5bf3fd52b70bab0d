package feed

import (
	"time"
)

// Item is a normalized feed entry.
type Item struct {
	GUID        string
	Title       string
	Link        string
	Description string
	PublishedAt *time.Time
}
