package publisher

import (
	"context"
	"errors"
	"strings"
	"testing"
)

// MockPoster records posted texts
type MockPoster struct {
	texts []string
	err   error
}

func (m *MockPoster) CreateTweet(ctx context.Context, text string) (string, error) {
	if m.err != nil {
		return "", m.err
	}
	m.texts = append(m.texts, text)
	return "id-1", nil
}

func TestPublish(t *testing.T) {
	poster := &MockPoster{}
	p := New(poster)

	id, err := p.Publish(context.Background(), "  hello world  ")
	if err != nil {
		t.Fatal(err)
	}
	if id != "id-1" {
		t.Errorf("Expected id id-1, got %s", id)
	}
	if len(poster.texts) != 1 || poster.texts[0] != "hello world" {
		t.Errorf("Expected trimmed text to be posted once, got %v", poster.texts)
	}
}

func TestPublishRejectsInvalidText(t *testing.T) {
	poster := &MockPoster{}
	p := New(poster)

	if _, err := p.Publish(context.Background(), "   "); !errors.Is(err, ErrEmptyText) {
		t.Errorf("Expected ErrEmptyText, got %v", err)
	}
	if _, err := p.Publish(context.Background(), strings.Repeat("a", 281)); !errors.Is(err, ErrTooLong) {
		t.Errorf("Expected ErrTooLong, got %v", err)
	}
	if len(poster.texts) != 0 {
		t.Errorf("Expected nothing posted, got %v", poster.texts)
	}
}

func TestPublishDoesNotRetry(t *testing.T) {
	poster := &MockPoster{err: errors.New("upstream down")}
	p := New(poster)

	if _, err := p.Publish(context.Background(), "hi"); err == nil {
		t.Error("Expected upstream error")
	}
}

func TestWeightedLength(t *testing.T) {
	tests := []struct {
		name     string
		text     string
		expected int
	}{
		{"ascii", "hello", 5},
		{"url counts fixed", "see https://example.com/a/very/long/path/that/keeps/going", 4 + 23},
		{"cjk counts double", "日本", 4},
		{"combining sequence normalized", "e\u0301", 1},
		{"general punctuation counts single", "a\u2014b", 3},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := WeightedLength(tt.text); got != tt.expected {
				t.Errorf("Expected %d, got %d", tt.expected, got)
			}
		})
	}
}

func TestDryRun(t *testing.T) {
	id, err := DryRun{}.CreateTweet(context.Background(), "hello")
	if err != nil {
		t.Fatal(err)
	}
	if !strings.HasPrefix(id, "dry-run-") {
		t.Errorf("Expected dry-run id, got %s", id)
	}
}
