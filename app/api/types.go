package api

import (
	"context"

	"github.com/lysyi3m/tweet-relay/app/database"
	"github.com/lysyi3m/tweet-relay/app/engine"
	"github.com/lysyi3m/tweet-relay/app/source"
	"github.com/lysyi3m/tweet-relay/app/tasks"
)

const defaultActionCount = 10

// Verifier checks upstream credentials by resolving the authenticated user.
type Verifier interface {
	Me(ctx context.Context) (source.User, error)
}

type Handler struct {
	repos        engine.Repositories
	replacements database.ReplacementRepository
	runner       tasks.Runner
	scheduler    tasks.TaskSchedulerInterface
	verifier     Verifier
	fetchCap     int
}

type countRequest struct {
	Count *int `json:"count"`
}

type logResponse struct {
	ID          int64  `json:"id"`
	Action      string `json:"action"`
	Description string `json:"description"`
	Status      string `json:"status"`
	CreatedAt   string `json:"created_at"`
}

type accountResponse struct {
	ID          int64   `json:"id"`
	Username    string  `json:"username"`
	Name        string  `json:"name"`
	Description string  `json:"description"`
	Active      bool    `json:"active"`
	LastSync    *string `json:"last_sync"`
	CreatedAt   string  `json:"created_at"`
}

type replacementResponse struct {
	ID             int64  `json:"id"`
	OriginalURL    string `json:"original_url"`
	ReplacementURL string `json:"replacement_url"`
}
