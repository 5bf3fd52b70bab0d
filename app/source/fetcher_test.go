package source

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/lysyi3m/tweet-relay/app/database"
	"github.com/lysyi3m/tweet-relay/app/rewrite"
)

type testStore struct {
	accounts *database.AccountRepo
	tweets   *database.TweetRepo
	logs     *database.LogRepo
	rewriter *rewrite.Rewriter
}

func newTestStore(t *testing.T) *testStore {
	t.Helper()

	db, err := database.Open(filepath.Join(t.TempDir(), "source.db"))
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { db.Close() })
	if _, _, err := database.RunMigrations(db); err != nil {
		t.Fatal(err)
	}

	return &testStore{
		accounts: database.NewAccountRepository(db),
		tweets:   database.NewTweetRepository(db),
		logs:     database.NewLogRepository(db),
		rewriter: rewrite.New(database.NewReplacementRepository(db), database.NewSettingRepository(db)),
	}
}

// MockUpstream serves scripted responses, one per RecentPosts call
type MockUpstream struct {
	responses []mockResponse
	calls     int
	maxSeen   []int
}

type mockResponse struct {
	posts []Post
	err   error
}

func (m *MockUpstream) LookupUser(ctx context.Context, username string) (User, error) {
	return User{ID: "id-" + username, Username: username}, nil
}

func (m *MockUpstream) RecentPosts(ctx context.Context, user User, max int) ([]Post, error) {
	m.maxSeen = append(m.maxSeen, max)
	if m.calls >= len(m.responses) {
		m.calls++
		return nil, nil
	}
	resp := m.responses[m.calls]
	m.calls++
	return resp.posts, resp.err
}

func (m *MockUpstream) Permalink(username, postID string) string {
	return "https://twitter.com/" + username + "/status/" + postID
}

func newTestFetcher(t *testing.T, upstream Upstream) (*Fetcher, *testStore, *[]time.Duration) {
	t.Helper()

	store := newTestStore(t)
	if _, err := store.accounts.UpsertAccount(context.Background(), database.AccountInput{Username: "alice", Active: true}); err != nil {
		t.Fatal(err)
	}

	var slept []time.Duration
	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

	fetcher := NewFetcher(upstream, store.accounts, store.tweets, store.logs, store.rewriter, DefaultResetBuffer)
	fetcher.now = func() time.Time { return now }
	fetcher.sleep = func(ctx context.Context, d time.Duration) error {
		slept = append(slept, d)
		return nil
	}

	return fetcher, store, &slept
}

func TestFetchRecentStoresNewPosts(t *testing.T) {
	ctx := context.Background()
	upstream := &MockUpstream{responses: []mockResponse{{posts: []Post{
		{ID: "1", Text: "Donate https://t.co/abc", Links: []rewrite.Link{{URL: "https://t.co/abc", ExpandedURL: "https://evil.example/give"}}},
		{ID: "2", Text: "No links"},
	}}}}
	fetcher, store, _ := newTestFetcher(t, upstream)

	stored, err := fetcher.FetchRecent(ctx, "alice", 10)
	if err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}
	if stored != 2 {
		t.Errorf("Expected 2 stored tweets, got %d", stored)
	}

	tweet, err := store.tweets.GetTweet(ctx, 1)
	if err != nil {
		t.Fatal(err)
	}
	if tweet.ModifiedText == nil || *tweet.ModifiedText != "Donate "+database.DefaultDonationURL {
		t.Errorf("Expected rewritten link, got %v", tweet.ModifiedText)
	}
	if tweet.OriginalText != "Donate https://t.co/abc" {
		t.Errorf("Expected original text kept, got %s", tweet.OriginalText)
	}
	if tweet.OriginalURL != "https://twitter.com/alice/status/1" {
		t.Errorf("Expected permalink, got %s", tweet.OriginalURL)
	}

	account, err := store.accounts.GetAccountByUsername(ctx, "alice")
	if err != nil {
		t.Fatal(err)
	}
	if account.LastSync == nil {
		t.Error("Expected last sync to be set")
	}

	logs, err := store.logs.ListLogs(ctx, database.LogFilter{Status: database.StatusSuccess})
	if err != nil {
		t.Fatal(err)
	}
	if len(logs) != 1 || logs[0].Action != database.ActionFetch {
		t.Errorf("Expected one success log, got %+v", logs)
	}
}

func TestFetchRecentSkipsDuplicates(t *testing.T) {
	ctx := context.Background()
	posts := []Post{{ID: "1", Text: "one"}, {ID: "2", Text: "two"}}
	upstream := &MockUpstream{responses: []mockResponse{{posts: posts}, {posts: posts}}}
	fetcher, _, _ := newTestFetcher(t, upstream)

	if _, err := fetcher.FetchRecent(ctx, "alice", 5); err != nil {
		t.Fatal(err)
	}
	stored, err := fetcher.FetchRecent(ctx, "alice", 5)
	if err != nil {
		t.Fatal(err)
	}
	if stored != 0 {
		t.Errorf("Expected 0 new tweets on refetch, got %d", stored)
	}
}

func TestFetchRecentRetriesOnceAfterRateLimit(t *testing.T) {
	reset := time.Date(2024, 5, 1, 12, 0, 5, 0, time.UTC)
	upstream := &MockUpstream{responses: []mockResponse{
		{err: &RateLimitError{Reset: reset}},
		{posts: []Post{{ID: "9", Text: "after the wait"}}},
	}}
	fetcher, _, slept := newTestFetcher(t, upstream)

	stored, err := fetcher.FetchRecent(context.Background(), "alice", 3)
	if err != nil {
		t.Fatalf("Expected retry to succeed, got: %v", err)
	}
	if stored != 1 {
		t.Errorf("Expected 1 stored tweet, got %d", stored)
	}
	if len(*slept) != 1 || (*slept)[0] != 6*time.Second {
		t.Errorf("Expected a single 6s wait, got %v", *slept)
	}
	if upstream.calls != 2 {
		t.Errorf("Expected 2 upstream calls, got %d", upstream.calls)
	}
}

func TestFetchRecentFailsOnSecondRateLimit(t *testing.T) {
	reset := time.Date(2024, 5, 1, 12, 0, 5, 0, time.UTC)
	upstream := &MockUpstream{responses: []mockResponse{
		{err: &RateLimitError{Reset: reset}},
		{err: &RateLimitError{Reset: reset.Add(time.Minute)}},
		{posts: []Post{{ID: "never"}}},
	}}
	fetcher, _, slept := newTestFetcher(t, upstream)

	_, err := fetcher.FetchRecent(context.Background(), "alice", 3)

	var rateLimit *RateLimitError
	if !errors.As(err, &rateLimit) {
		t.Fatalf("Expected RateLimitError, got: %v", err)
	}
	if upstream.calls != 2 {
		t.Errorf("Expected exactly one retry, got %d calls", upstream.calls)
	}
	if len(*slept) != 1 {
		t.Errorf("Expected a single wait, got %v", *slept)
	}
}

func TestFetchRecentDoesNotRetryOtherErrors(t *testing.T) {
	upstream := &MockUpstream{responses: []mockResponse{{err: ErrUnknownAccount}}}
	fetcher, _, slept := newTestFetcher(t, upstream)

	_, err := fetcher.FetchRecent(context.Background(), "alice", 3)
	if !errors.Is(err, ErrUnknownAccount) {
		t.Errorf("Expected ErrUnknownAccount, got: %v", err)
	}
	if upstream.calls != 1 || len(*slept) != 0 {
		t.Errorf("Expected no retry, got %d calls and waits %v", upstream.calls, *slept)
	}
}

func TestFetchRecentUnknownAccount(t *testing.T) {
	upstream := &MockUpstream{}
	fetcher, _, _ := newTestFetcher(t, upstream)

	if _, err := fetcher.FetchRecent(context.Background(), "nobody", 3); !errors.Is(err, database.ErrNotFound) {
		t.Errorf("Expected ErrNotFound for account missing from the store, got: %v", err)
	}
	if upstream.calls != 0 {
		t.Errorf("Expected no upstream calls, got %d", upstream.calls)
	}
}

func TestFetchRecentTruncatesToMax(t *testing.T) {
	upstream := &MockUpstream{responses: []mockResponse{{posts: []Post{
		{ID: "1", Text: "a"}, {ID: "2", Text: "b"}, {ID: "3", Text: "c"},
	}}}}
	fetcher, _, _ := newTestFetcher(t, upstream)

	stored, err := fetcher.FetchRecent(context.Background(), "alice", 2)
	if err != nil {
		t.Fatal(err)
	}
	if stored != 2 {
		t.Errorf("Expected 2 stored tweets, got %d", stored)
	}

	if stored, _ := fetcher.FetchRecent(context.Background(), "alice", 0); stored != 0 {
		t.Errorf("Expected 0 for non-positive max, got %d", stored)
	}
}
