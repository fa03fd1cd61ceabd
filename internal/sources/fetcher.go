package sources

import (
	"context"
	"fmt"
	"time"

	"github.com/hblund/newsticker/internal/logging"
	"github.com/hblund/newsticker/internal/models"
	"github.com/hblund/newsticker/internal/ratelimit"
)

// Fetcher retrieves the current items of one configured source. A
// fetch error never crosses the pipeline boundary; the pipeline maps
// it to an empty item list for that source.
type Fetcher interface {
	SourceURL() string
	Fetch(ctx context.Context) ([]models.NewsItem, error)
}

// FetchResult is one source's contribution to an aggregation cycle.
type FetchResult struct {
	Items     []models.NewsItem
	SourceURL string
	Err       error
}

// FetcherConfig bounds every fetch.
type FetcherConfig struct {
	Timeout        time.Duration
	MaxItems       int
	UserAgent      string
	MinTitleLength int
}

func DefaultConfig() FetcherConfig {
	return FetcherConfig{
		Timeout:        20 * time.Second,
		MaxItems:       50,
		UserAgent:      "Mozilla/5.0 (compatible; NewsTicker/1.0)",
		MinTitleLength: 5,
	}
}

// New builds the fetcher variant matching the source kind. The
// tagged union is resolved here, once, at the boundary.
func New(src models.Source, limiter *ratelimit.Limiter, config FetcherConfig, logger *logging.Logger) (Fetcher, error) {
	src.Normalize()

	switch src.Kind {
	case models.SourceRSS:
		return NewRSSFetcher(src, limiter, config), nil
	case models.SourceHTML:
		if src.ItemSelector == "" {
			return nil, fmt.Errorf("html source %s requires an item selector", src.URL)
		}
		return NewHTMLFetcher(src, limiter, config, logger), nil
	default:
		return nil, fmt.Errorf("unknown source kind %q for %s", src.Kind, src.URL)
	}
}
