package database

// Log statuses.
const (
	StatusInfo    = "info"
	StatusSuccess = "success"
	StatusError   = "error"
)

// Log actions.
const (
	ActionFetch    = "fetch_tweets"
	ActionSchedule = "schedule_tweets"
	ActionPost     = "post_tweet"
	ActionCycle    = "scheduler"
	ActionSystem   = "system"
)

type AccountInput struct {
	Username    string
	Name        string
	Description string
	Active      bool
}

type NewTweet struct {
	TwitterID    string
	AccountID    int64
	OriginalText string
	ModifiedText string
	OriginalURL  string
}

type TweetStats struct {
	Backlog int
	Queued  int
	Posted  int
}

type LogFilter struct {
	Limit  int
	Status string
}
