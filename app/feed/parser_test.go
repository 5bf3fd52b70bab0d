package feed

import (
	"testing"
)

const testFeed = `<?xml version="1.0"?>
<rss version="2.0">
  <channel>
    <title>alice / Twitter</title>
    <link>https://nitter.net/alice</link>
    <description>Twitter feed for: @alice</description>
    <item>
      <title>Fresh post with a link https://example.com/a</title>
      <link>https://nitter.net/alice/status/1001#m</link>
      <guid>https://nitter.net/alice/status/1001#m</guid>
      <pubDate>Mon, 03 Jul 2023 10:00:00 GMT</pubDate>
    </item>
    <item>
      <title>RT by @alice: someone else said this</title>
      <link>https://nitter.net/bob/status/1002#m</link>
    </item>
    <item>
      <title>R to @carol: a reply</title>
      <link>https://nitter.net/alice/status/1003#m</link>
    </item>
    <item>
      <title>Fish &amp; chips</title>
      <link>https://nitter.net/alice/status/1004#m</link>
    </item>
  </channel>
</rss>`

func TestParseRSS2(t *testing.T) {
	parser := NewParser()
	items, err := parser.Run([]byte(testFeed))

	if err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}

	if len(items) != 4 {
		t.Fatalf("Expected 4 items, got: %d", len(items))
	}

	item1 := items[0]
	if item1.Title != "Fresh post with a link https://example.com/a" {
		t.Errorf("Expected title of first item, got: %s", item1.Title)
	}
	if item1.Link != "https://nitter.net/alice/status/1001#m" {
		t.Errorf("Expected link 'https://nitter.net/alice/status/1001#m', got: %s", item1.Link)
	}
	if item1.PublishedAt == nil {
		t.Error("Expected published date to be parsed")
	}

	if items[3].Title != "Fish & chips" {
		t.Errorf("Expected unescaped title 'Fish & chips', got: %s", items[3].Title)
	}
}

func TestParseInvalidFeed(t *testing.T) {
	parser := NewParser()
	if _, err := parser.Run([]byte("not a feed")); err == nil {
		t.Error("Expected error for invalid feed")
	}
}
