package sources

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/araddon/dateparse"

	"github.com/hblund/newsticker/internal/logging"
	"github.com/hblund/newsticker/internal/models"
	"github.com/hblund/newsticker/internal/ratelimit"
)

// HTMLFetcher scrapes headlines off a page with configurable CSS
// selectors. Pages that need a browser engine to render their items
// yield nothing, which is logged as a soft warning and otherwise
// treated as an empty source.
type HTMLFetcher struct {
	source  models.Source
	limiter *ratelimit.Limiter
	config  FetcherConfig
	client  *http.Client
	logger  *logging.Logger
	now     func() time.Time
}

func NewHTMLFetcher(source models.Source, limiter *ratelimit.Limiter, config FetcherConfig, logger *logging.Logger) *HTMLFetcher {
	return &HTMLFetcher{
		source:  source,
		limiter: limiter,
		config:  config,
		client:  &http.Client{Timeout: config.Timeout},
		logger:  logger,
		now:     time.Now,
	}
}

func (f *HTMLFetcher) SourceURL() string {
	return f.source.URL
}

func (f *HTMLFetcher) Fetch(ctx context.Context) ([]models.NewsItem, error) {
	if f.limiter != nil {
		f.limiter.Wait(f.source.URL)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, f.source.URL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("User-Agent", f.config.UserAgent)

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch page: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("page returned status %d", resp.StatusCode)
	}

	doc, err := goquery.NewDocumentFromReader(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to parse page HTML: %w", err)
	}

	base, err := url.Parse(f.source.URL)
	if err != nil {
		return nil, fmt.Errorf("invalid source URL: %w", err)
	}

	fetchTime := f.now()
	items := make([]models.NewsItem, 0)
	doc.Find(f.source.ItemSelector).Each(func(i int, s *goquery.Selection) {
		if f.config.MaxItems > 0 && len(items) >= f.config.MaxItems {
			return
		}

		title := f.extractTitle(s)
		if len(title) < f.config.MinTitleLength {
			return
		}

		items = append(items, models.NewsItem{
			Title:       title,
			Link:        f.extractLink(s, base),
			PublishedAt: f.extractDate(s, fetchTime),
			SourceURL:   f.source.URL,
		})
	})

	if len(items) == 0 {
		// Likely a dynamic page rendered client-side; those are
		// unsupported and contribute nothing.
		f.logger.Warn("No items extracted from HTML source", logging.WithFields(map[string]interface{}{
			"source":   f.source.URL,
			"selector": f.source.ItemSelector,
		}))
	}

	return items, nil
}

// extractTitle reads the title text: the item's own text when the
// title selector equals the item selector, a nested lookup otherwise.
func (f *HTMLFetcher) extractTitle(s *goquery.Selection) string {
	if f.source.TitleSelector == f.source.ItemSelector {
		return strings.TrimSpace(s.Text())
	}
	return strings.TrimSpace(s.Find(f.source.TitleSelector).Text())
}

func (f *HTMLFetcher) extractLink(s *goquery.Selection, base *url.URL) string {
	link, _ := s.Find(f.source.LinkSelector).First().Attr("href")
	if link == "" {
		link, _ = s.Find("a").First().Attr("href")
	}
	if link == "" {
		if href, ok := s.Attr("href"); ok {
			link = href
		}
	}
	return resolveLink(link, base)
}

// extractDate parses the date selector's text. Missing or unparsable
// dates get the fetch time as a synthetic publish time, so scraped
// items participate in recency filtering.
func (f *HTMLFetcher) extractDate(s *goquery.Selection, fetchTime time.Time) *time.Time {
	if f.source.DateSelector != "" {
		text := strings.TrimSpace(s.Find(f.source.DateSelector).Text())
		if text != "" {
			if t, err := dateparse.ParseAny(text); err == nil {
				return &t
			}
		}
	}
	return &fetchTime
}

// resolveLink makes a scraped href absolute against the page origin.
func resolveLink(link string, base *url.URL) string {
	if link == "" {
		return ""
	}
	ref, err := url.Parse(link)
	if err != nil {
		return link
	}
	return base.ResolveReference(ref).String()
}
