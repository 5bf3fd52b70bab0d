// Package twitter is a minimal client for the Twitter API v2 endpoints used to
// read timelines and create posts, signed with OAuth 1.0a user context.
package twitter

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/dghubble/oauth1"
	"github.com/lysyi3m/tweet-relay/app/rewrite"
	"github.com/lysyi3m/tweet-relay/app/source"
)

const (
	DefaultBaseURL = "https://api.twitter.com"

	minTimelineResults = 5
	maxTimelineResults = 100
)

var ErrMissingCredentials = fmt.Errorf("%w: missing twitter credentials", source.ErrNotConfigured)

var _ source.Upstream = (*Client)(nil)

type Client struct {
	baseURL    string
	userAgent  string
	httpClient *http.Client
}

type Option func(*Client)

func WithBaseURL(baseURL string) Option {
	return func(c *Client) {
		c.baseURL = strings.TrimRight(baseURL, "/")
	}
}

func WithUserAgent(userAgent string) Option {
	return func(c *Client) {
		c.userAgent = userAgent
	}
}

// NewClient builds a signed client. Every credential is required.
func NewClient(creds Credentials, opts ...Option) (*Client, error) {
	var missing []string
	if creds.APIKey == "" {
		missing = append(missing, "TWITTER_API_KEY")
	}
	if creds.APISecret == "" {
		missing = append(missing, "TWITTER_API_SECRET")
	}
	if creds.AccessToken == "" {
		missing = append(missing, "TWITTER_ACCESS_TOKEN")
	}
	if creds.AccessSecret == "" {
		missing = append(missing, "TWITTER_ACCESS_SECRET")
	}
	if len(missing) > 0 {
		return nil, fmt.Errorf("%w (%s)", ErrMissingCredentials, strings.Join(missing, ", "))
	}

	config := oauth1.NewConfig(creds.APIKey, creds.APISecret)
	token := oauth1.NewToken(creds.AccessToken, creds.AccessSecret)

	httpClient := config.Client(oauth1.NoContext, token)
	httpClient.Timeout = 30 * time.Second

	c := &Client{
		baseURL:    DefaultBaseURL,
		httpClient: httpClient,
	}
	for _, opt := range opts {
		opt(c)
	}

	return c, nil
}

func (c *Client) LookupUser(ctx context.Context, username string) (source.User, error) {
	var resp userResponse
	err := c.do(ctx, http.MethodGet, "/2/users/by/username/"+url.PathEscape(username), nil, nil, &resp)
	if err != nil {
		var apiErr *APIError
		if errors.As(err, &apiErr) && apiErr.StatusCode == http.StatusNotFound {
			return source.User{}, fmt.Errorf("%w: @%s", source.ErrUnknownAccount, username)
		}
		return source.User{}, err
	}

	if resp.Data == nil {
		return source.User{}, fmt.Errorf("%w: @%s", source.ErrUnknownAccount, username)
	}

	return source.User{ID: resp.Data.ID, Username: resp.Data.Username, Name: resp.Data.Name}, nil
}

// RecentPosts reads the user timeline without retweets and replies.
func (c *Client) RecentPosts(ctx context.Context, user source.User, count int) ([]source.Post, error) {
	if count <= 0 {
		return nil, nil
	}

	// The endpoint only accepts max_results between 5 and 100.
	limit := min(max(count, minTimelineResults), maxTimelineResults)

	query := url.Values{}
	query.Set("max_results", strconv.Itoa(limit))
	query.Set("exclude", "retweets,replies")
	query.Set("tweet.fields", "created_at,entities")

	var resp timelineResponse
	if err := c.do(ctx, http.MethodGet, "/2/users/"+url.PathEscape(user.ID)+"/tweets", query, nil, &resp); err != nil {
		return nil, err
	}

	posts := make([]source.Post, 0, len(resp.Data))
	for _, tweet := range resp.Data {
		post := source.Post{ID: tweet.ID, Text: tweet.Text, CreatedAt: tweet.CreatedAt}
		if tweet.Entities != nil {
			for _, entity := range tweet.Entities.URLs {
				post.Links = append(post.Links, rewrite.Link{URL: entity.URL, ExpandedURL: entity.ExpandedURL})
			}
		}
		posts = append(posts, post)
		if len(posts) == count {
			break
		}
	}

	return posts, nil
}

func (c *Client) Permalink(username, postID string) string {
	return fmt.Sprintf("https://twitter.com/%s/status/%s", username, postID)
}

// CreateTweet posts text and returns the new tweet id.
func (c *Client) CreateTweet(ctx context.Context, text string) (string, error) {
	var resp createTweetResponse
	if err := c.do(ctx, http.MethodPost, "/2/tweets", nil, createTweetRequest{Text: text}, &resp); err != nil {
		return "", err
	}
	if resp.Data.ID == "" {
		return "", fmt.Errorf("create tweet response has no id")
	}
	return resp.Data.ID, nil
}

// Me returns the authenticated user and so verifies the credentials.
func (c *Client) Me(ctx context.Context) (source.User, error) {
	var resp userResponse
	if err := c.do(ctx, http.MethodGet, "/2/users/me", nil, nil, &resp); err != nil {
		return source.User{}, err
	}
	if resp.Data == nil {
		return source.User{}, fmt.Errorf("users/me response has no data")
	}
	return source.User{ID: resp.Data.ID, Username: resp.Data.Username, Name: resp.Data.Name}, nil
}

func (c *Client) do(ctx context.Context, method, path string, query url.Values, body, result any) error {
	endpoint := c.baseURL + path
	if len(query) > 0 {
		endpoint += "?" + query.Encode()
	}

	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to marshal request: %w", err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, endpoint, reader)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.userAgent != "" {
		req.Header.Set("User-Agent", c.userAgent)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode == http.StatusTooManyRequests {
		return &source.RateLimitError{Reset: parseReset(resp.Header.Get("x-rate-limit-reset"))}
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return &APIError{StatusCode: resp.StatusCode, Body: string(respBody)}
	}

	if result != nil {
		if err := json.Unmarshal(respBody, result); err != nil {
			return fmt.Errorf("failed to decode response: %w", err)
		}
	}

	return nil
}

// parseReset reads the epoch-seconds reset header; a missing value yields the zero time.
func parseReset(value string) time.Time {
	seconds, err := strconv.ParseInt(strings.TrimSpace(value), 10, 64)
	if err != nil || seconds <= 0 {
		return time.Time{}
	}
	return time.Unix(seconds, 0)
}
