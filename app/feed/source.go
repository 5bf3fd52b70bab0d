package feed

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"path"
	"strconv"
	"strings"
	"time"

	"github.com/lysyi3m/tweet-relay/app/rewrite"
	"github.com/lysyi3m/tweet-relay/app/source"
)

var _ source.Upstream = (*Source)(nil)

// Title prefixes used by Nitter-style feeds for reposts and replies.
var skippedPrefixes = []string{"RT by ", "R to @"}

// Source reads account timelines from per-account RSS feeds.
type Source struct {
	urlTemplate string // fmt template with one %s for the username
	httpClient  *http.Client
	parser      *Parser
	userAgent   string
	now         func() time.Time
}

func NewSource(urlTemplate string, httpClient *http.Client, userAgent string) *Source {
	return &Source{
		urlTemplate: urlTemplate,
		httpClient:  httpClient,
		parser:      NewParser(),
		userAgent:   userAgent,
		now:         time.Now,
	}
}

// LookupUser needs no round trip: feeds are addressed by username.
func (s *Source) LookupUser(ctx context.Context, username string) (source.User, error) {
	return source.User{ID: username, Username: username}, nil
}

func (s *Source) RecentPosts(ctx context.Context, user source.User, count int) ([]source.Post, error) {
	if count <= 0 {
		return nil, nil
	}

	data, err := s.fetchFeed(ctx, fmt.Sprintf(s.urlTemplate, url.PathEscape(user.Username)))
	if err != nil {
		return nil, err
	}

	items, err := s.parser.Run(data)
	if err != nil {
		return nil, err
	}

	posts := make([]source.Post, 0, count)
	for _, item := range items {
		if isRepostOrReply(item.Title) {
			continue
		}

		id := postID(item)
		if id == "" || item.Title == "" {
			continue
		}

		post := source.Post{ID: id, Text: item.Title, CreatedAt: item.PublishedAt}
		for _, link := range rewrite.ExtractURLs(item.Title) {
			post.Links = append(post.Links, rewrite.Link{URL: link})
		}
		posts = append(posts, post)

		if len(posts) == count {
			break
		}
	}

	return posts, nil
}

func (s *Source) Permalink(username, postID string) string {
	return fmt.Sprintf("https://twitter.com/%s/status/%s", username, postID)
}

func (s *Source) fetchFeed(ctx context.Context, feedURL string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, feedURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	if s.userAgent != "" {
		req.Header.Set("User-Agent", s.userAgent)
	}

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch feed: %w", err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusTooManyRequests:
		return nil, &source.RateLimitError{Reset: s.retryAfter(resp.Header.Get("Retry-After"))}
	case resp.StatusCode == http.StatusNotFound:
		return nil, fmt.Errorf("%w: feed %s", source.ErrUnknownAccount, feedURL)
	case resp.StatusCode != http.StatusOK:
		return nil, fmt.Errorf("HTTP error: %d %s", resp.StatusCode, resp.Status)
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}

	return data, nil
}

// retryAfter accepts both delay-seconds and HTTP-date forms.
func (s *Source) retryAfter(value string) time.Time {
	value = strings.TrimSpace(value)
	if value == "" {
		return time.Time{}
	}
	if seconds, err := strconv.Atoi(value); err == nil {
		return s.now().Add(time.Duration(seconds) * time.Second)
	}
	if t, err := http.ParseTime(value); err == nil {
		return t
	}
	return time.Time{}
}

func isRepostOrReply(title string) bool {
	for _, prefix := range skippedPrefixes {
		if strings.HasPrefix(title, prefix) {
			return true
		}
	}
	return false
}

// postID takes the status id from the last path segment of the item link.
func postID(item Item) string {
	link := item.Link
	if link == "" {
		link = item.GUID
	}

	u, err := url.Parse(link)
	if err != nil || u.Path == "" {
		return item.GUID
	}

	id := path.Base(strings.TrimRight(u.Path, "/"))
	if id == "." || id == "/" {
		return item.GUID
	}
	return id
}
