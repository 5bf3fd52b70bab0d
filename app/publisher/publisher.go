package publisher

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/google/uuid"
	"github.com/lysyi3m/tweet-relay/app/rewrite"
	"golang.org/x/text/unicode/norm"
)

const (
	MaxWeightedLength = 280

	// Every URL counts as a shortened link of this length.
	urlWeight = 23
)

var (
	ErrEmptyText = errors.New("text is empty")
	ErrTooLong   = errors.New("text exceeds maximum length")
)

// Poster submits text upstream and returns the new post id.
type Poster interface {
	CreateTweet(ctx context.Context, text string) (string, error)
}

type Publisher struct {
	poster Poster
}

func New(poster Poster) *Publisher {
	return &Publisher{poster: poster}
}

// Publish validates text and submits it once. Retrying is left to the caller.
func (p *Publisher) Publish(ctx context.Context, text string) (string, error) {
	text = norm.NFC.String(strings.TrimSpace(text))
	if text == "" {
		return "", ErrEmptyText
	}

	if length := WeightedLength(text); length > MaxWeightedLength {
		return "", fmt.Errorf("%w: %d > %d", ErrTooLong, length, MaxWeightedLength)
	}

	id, err := p.poster.CreateTweet(ctx, text)
	if err != nil {
		return "", fmt.Errorf("failed to publish: %w", err)
	}

	return id, nil
}

// WeightedLength counts text the way the upstream does: URLs count as a fixed
// length, code points in the Latin and general punctuation ranges count one,
// everything else counts two.
func WeightedLength(text string) int {
	text = norm.NFC.String(text)

	length := 0
	for _, url := range rewrite.ExtractURLs(text) {
		length += urlWeight
		text = strings.Replace(text, url, "", 1)
	}

	for _, r := range text {
		length += runeWeight(r)
	}
	return length
}

func runeWeight(r rune) int {
	switch {
	case r <= 0x10FF,
		r >= 0x2000 && r <= 0x200D,
		r >= 0x2010 && r <= 0x201F,
		r >= 0x2032 && r <= 0x2037:
		return 1
	}
	return 2
}

// DryRun logs what would be posted instead of posting it.
type DryRun struct{}

func (DryRun) CreateTweet(ctx context.Context, text string) (string, error) {
	id := "dry-run-" + uuid.NewString()
	slog.Info("Dry run, not posting", "id", id, "text", text)
	return id, nil
}
