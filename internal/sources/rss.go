package sources

import (
	"context"
	"fmt"
	"time"

	"github.com/araddon/dateparse"
	"github.com/mmcdole/gofeed"

	"github.com/hblund/newsticker/internal/models"
	"github.com/hblund/newsticker/internal/ratelimit"
)

// RSSFetcher parses an RSS or Atom feed into news items.
type RSSFetcher struct {
	source  models.Source
	parser  *gofeed.Parser
	limiter *ratelimit.Limiter
	config  FetcherConfig
}

func NewRSSFetcher(source models.Source, limiter *ratelimit.Limiter, config FetcherConfig) *RSSFetcher {
	parser := gofeed.NewParser()
	parser.UserAgent = config.UserAgent
	return &RSSFetcher{
		source:  source,
		parser:  parser,
		limiter: limiter,
		config:  config,
	}
}

func (f *RSSFetcher) SourceURL() string {
	return f.source.URL
}

func (f *RSSFetcher) Fetch(ctx context.Context) ([]models.NewsItem, error) {
	if f.limiter != nil {
		f.limiter.Wait(f.source.URL)
	}

	ctxWithTimeout, cancel := context.WithTimeout(ctx, f.config.Timeout)
	defer cancel()

	feed, err := f.parser.ParseURLWithContext(f.source.URL, ctxWithTimeout)
	if err != nil {
		return nil, fmt.Errorf("failed to parse RSS feed %s: %w", f.source.URL, err)
	}

	items := make([]models.NewsItem, 0, len(feed.Items))
	for i, entry := range feed.Items {
		if f.config.MaxItems > 0 && i >= f.config.MaxItems {
			break
		}

		title := entry.Title
		if title == "" {
			title = "No title"
		}

		items = append(items, models.NewsItem{
			Title:       title,
			Link:        entry.Link,
			PublishedAt: entryTime(entry),
			Description: entry.Description,
			SourceURL:   f.source.URL,
		})
	}

	return items, nil
}

// entryTime extracts the entry's publish time. It stays nil when the
// feed omits a date or provides one nothing can parse; such items are
// always included by the recency filter and sort last.
func entryTime(entry *gofeed.Item) *time.Time {
	if entry.PublishedParsed != nil {
		t := *entry.PublishedParsed
		return &t
	}
	if entry.UpdatedParsed != nil {
		t := *entry.UpdatedParsed
		return &t
	}
	if entry.Published != "" {
		if t, err := dateparse.ParseAny(entry.Published); err == nil {
			return &t
		}
	}
	return nil
}
