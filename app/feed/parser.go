package feed

import (
	"bytes"
	"cmp"
	"fmt"
	"html"
	"strings"

	"github.com/mmcdole/gofeed"
)

type Parser struct {
	gofeedParser *gofeed.Parser
}

func NewParser() *Parser {
	return &Parser{
		gofeedParser: gofeed.NewParser(),
	}
}

func (p *Parser) Run(data []byte) ([]Item, error) {
	feed, err := p.gofeedParser.Parse(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("failed to parse feed: %w", err)
	}

	items := make([]Item, 0, len(feed.Items))
	for _, item := range feed.Items {
		if item == nil {
			continue
		}
		items = append(items, p.normalizeItem(item))
	}

	return items, nil
}

func (p *Parser) normalizeItem(item *gofeed.Item) Item {
	return Item{
		GUID:        cmp.Or(item.GUID, item.Link),
		Title:       strings.TrimSpace(html.UnescapeString(item.Title)),
		Link:        item.Link,
		Description: item.Description,
		PublishedAt: item.PublishedParsed,
	}
}
