package twitter

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/lysyi3m/tweet-relay/app/source"
)

var testCreds = Credentials{APIKey: "key", APISecret: "secret", AccessToken: "token", AccessSecret: "token-secret"}

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()

	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	client, err := NewClient(testCreds, WithBaseURL(server.URL), WithUserAgent("test-agent"))
	if err != nil {
		t.Fatal(err)
	}
	return client
}

func TestNewClientRequiresCredentials(t *testing.T) {
	_, err := NewClient(Credentials{APIKey: "key", AccessToken: "token"})
	if !errors.Is(err, ErrMissingCredentials) {
		t.Fatalf("Expected ErrMissingCredentials, got: %v", err)
	}
	if !errors.Is(err, source.ErrNotConfigured) {
		t.Error("Expected missing credentials to be a configuration error")
	}
	if !strings.Contains(err.Error(), "TWITTER_API_SECRET") || !strings.Contains(err.Error(), "TWITTER_ACCESS_SECRET") {
		t.Errorf("Expected missing variables to be named, got: %v", err)
	}
}

func TestLookupUser(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/2/users/by/username/alice" {
			t.Errorf("Unexpected path %s", r.URL.Path)
		}
		if !strings.HasPrefix(r.Header.Get("Authorization"), "OAuth ") {
			t.Errorf("Expected OAuth authorization header, got %q", r.Header.Get("Authorization"))
		}
		if r.Header.Get("User-Agent") != "test-agent" {
			t.Errorf("Expected user agent test-agent, got %q", r.Header.Get("User-Agent"))
		}
		w.Write([]byte(`{"data":{"id":"123","name":"Alice","username":"alice"}}`))
	})

	user, err := client.LookupUser(context.Background(), "alice")
	if err != nil {
		t.Fatal(err)
	}
	if user.ID != "123" || user.Name != "Alice" {
		t.Errorf("Expected user 123/Alice, got %+v", user)
	}
}

func TestLookupUserNotFound(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"errors":[{"title":"Not Found Error","detail":"Could not find user"}]}`))
	})

	_, err := client.LookupUser(context.Background(), "ghost")
	if !errors.Is(err, source.ErrUnknownAccount) {
		t.Errorf("Expected ErrUnknownAccount, got: %v", err)
	}
}

func TestRecentPosts(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/2/users/123/tweets" {
			t.Errorf("Unexpected path %s", r.URL.Path)
		}
		q := r.URL.Query()
		if q.Get("max_results") != "5" {
			t.Errorf("Expected max_results clamped to 5, got %s", q.Get("max_results"))
		}
		if q.Get("exclude") != "retweets,replies" {
			t.Errorf("Expected retweets and replies excluded, got %s", q.Get("exclude"))
		}
		w.Write([]byte(`{"data":[
			{"id":"1","text":"one https://t.co/a","created_at":"2024-05-01T10:00:00.000Z",
			 "entities":{"urls":[{"url":"https://t.co/a","expanded_url":"https://example.com/a"}]}},
			{"id":"2","text":"two"},
			{"id":"3","text":"three"}
		],"meta":{"result_count":3}}`))
	})

	posts, err := client.RecentPosts(context.Background(), source.User{ID: "123"}, 2)
	if err != nil {
		t.Fatal(err)
	}
	if len(posts) != 2 {
		t.Fatalf("Expected 2 posts, got %d", len(posts))
	}
	if len(posts[0].Links) != 1 || posts[0].Links[0].ExpandedURL != "https://example.com/a" {
		t.Errorf("Expected link entity, got %+v", posts[0].Links)
	}
	if posts[0].CreatedAt == nil || posts[0].CreatedAt.Hour() != 10 {
		t.Errorf("Expected created_at to be parsed, got %v", posts[0].CreatedAt)
	}
}

func TestRateLimitResponse(t *testing.T) {
	reset := time.Date(2024, 5, 1, 12, 0, 5, 0, time.UTC)
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("x-rate-limit-reset", "1714564805")
		w.WriteHeader(http.StatusTooManyRequests)
	})

	_, err := client.RecentPosts(context.Background(), source.User{ID: "123"}, 10)

	var rateLimit *source.RateLimitError
	if !errors.As(err, &rateLimit) {
		t.Fatalf("Expected RateLimitError, got: %v", err)
	}
	if !rateLimit.Reset.Equal(reset) {
		t.Errorf("Expected reset %v, got %v", reset, rateLimit.Reset)
	}
}

func TestCreateTweet(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/2/tweets" {
			t.Errorf("Unexpected request %s %s", r.Method, r.URL.Path)
		}
		var body createTweetRequest
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			t.Fatal(err)
		}
		if body.Text != "hello" {
			t.Errorf("Expected text hello, got %s", body.Text)
		}
		w.WriteHeader(http.StatusCreated)
		w.Write([]byte(`{"data":{"id":"999","text":"hello"}}`))
	})

	id, err := client.CreateTweet(context.Background(), "hello")
	if err != nil {
		t.Fatal(err)
	}
	if id != "999" {
		t.Errorf("Expected id 999, got %s", id)
	}
}

func TestAPIErrorResponse(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		w.Write([]byte(`{"title":"Unauthorized"}`))
	})

	_, err := client.Me(context.Background())

	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("Expected APIError, got: %v", err)
	}
	if apiErr.StatusCode != http.StatusUnauthorized {
		t.Errorf("Expected status 401, got %d", apiErr.StatusCode)
	}
}

func TestUnconfiguredReturnsError(t *testing.T) {
	u := Unconfigured{Err: ErrMissingCredentials}

	if _, err := u.CreateTweet(context.Background(), "x"); !errors.Is(err, source.ErrNotConfigured) {
		t.Errorf("Expected configuration error, got: %v", err)
	}
	if _, err := u.LookupUser(context.Background(), "alice"); !errors.Is(err, source.ErrNotConfigured) {
		t.Errorf("Expected configuration error, got: %v", err)
	}
}
