// Package pipeline runs one aggregation cycle: favicon resolution,
// concurrent source fetches with per-source failure isolation,
// recency filtering and a final stable sort.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/hblund/newsticker/internal/iconcache"
	"github.com/hblund/newsticker/internal/logging"
	"github.com/hblund/newsticker/internal/models"
	"github.com/hblund/newsticker/internal/ratelimit"
	"github.com/hblund/newsticker/internal/sources"
)

// SortDirection orders the final item sequence by publish time. The
// zero value is invalid on purpose: the two historical front-ends of
// this system disagreed on a default, so callers must choose.
type SortDirection int

const (
	SortUnspecified SortDirection = iota
	SortNewestFirst
	SortOldestFirst
)

// ErrSortDirectionRequired is returned by New when no sort direction
// was chosen.
var ErrSortDirectionRequired = errors.New("sort direction must be specified")

// Request is one aggregation cycle's input.
type Request struct {
	Sources            []models.Source
	RecencyWindowHours float64
}

// Pipeline aggregates headlines from configured sources. It holds no
// item state between cycles; every Run is a fresh best-effort attempt
// and the caller owns retry policy.
type Pipeline struct {
	icons      *iconcache.Cache
	limiter    *ratelimit.Limiter
	fetcherCfg sources.FetcherConfig
	direction  SortDirection
	logger     *logging.Logger
	generation atomic.Uint64
	now        func() time.Time
}

func New(icons *iconcache.Cache, limiter *ratelimit.Limiter, fetcherCfg sources.FetcherConfig, direction SortDirection, logger *logging.Logger) (*Pipeline, error) {
	if direction != SortNewestFirst && direction != SortOldestFirst {
		return nil, ErrSortDirectionRequired
	}
	return &Pipeline{
		icons:      icons,
		limiter:    limiter,
		fetcherCfg: fetcherCfg,
		direction:  direction,
		logger:     logger,
		now:        time.Now,
	}, nil
}

// Run executes one cycle. Per-source failures are logged and mapped
// to empty contributions; an error return means the cycle itself
// could not run and no partial result exists. Each result carries a
// cycle ID and a monotonically increasing generation number so a
// caller overlapping cycles can drop stale late arrivals.
func (p *Pipeline) Run(ctx context.Context, req Request) (*models.AggregatedResult, error) {
	if len(req.Sources) == 0 {
		return nil, errors.New("no sources configured")
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	cycleID := uuid.NewString()
	generation := p.generation.Add(1)

	fetchers, err := sources.CreateFetchers(req.Sources, p.limiter, p.fetcherCfg, p.logger)
	if err != nil {
		return nil, fmt.Errorf("invalid source configuration: %w", err)
	}

	refs := p.resolveIcons(ctx, fetchers)

	allItems, warnings := p.fetchAll(ctx, fetchers, refs)

	now := p.now()
	filtered := p.filterByRecency(allItems, now, req.RecencyWindowHours)
	p.sortItems(filtered)

	p.logger.Info("Aggregation cycle complete", logging.WithFields(map[string]interface{}{
		"cycle":       cycleID,
		"generation":  generation,
		"sources":     len(fetchers),
		"total_items": len(filtered),
	}))

	return &models.AggregatedResult{
		Items:       filtered,
		TotalCount:  len(filtered),
		FetchedAt:   now,
		SourceCount: len(fetchers),
		CycleID:     cycleID,
		Generation:  generation,
		Warnings:    warnings,
	}, nil
}

// resolveIcons bulk-resolves one icon reference per distinct source
// URL before any fetching starts.
func (p *Pipeline) resolveIcons(ctx context.Context, fetchers []sources.Fetcher) map[string]string {
	if p.icons == nil {
		return nil
	}
	urls := make([]string, 0, len(fetchers))
	for _, f := range fetchers {
		urls = append(urls, f.SourceURL())
	}
	return p.icons.GetAll(ctx, urls)
}

// fetchAll dispatches one fetch per source concurrently and collects
// everything. A failing source contributes nothing and is recorded as
// a warning; it never aborts the batch.
func (p *Pipeline) fetchAll(ctx context.Context, fetchers []sources.Fetcher, refs map[string]string) ([]models.NewsItem, []string) {
	var wg sync.WaitGroup
	results := make(chan sources.FetchResult, len(fetchers))

	for _, fetcher := range fetchers {
		wg.Add(1)
		go func(f sources.Fetcher) {
			defer wg.Done()

			items, err := f.Fetch(ctx)
			results <- sources.FetchResult{
				Items:     items,
				SourceURL: f.SourceURL(),
				Err:       err,
			}
		}(fetcher)
	}

	go func() {
		wg.Wait()
		close(results)
	}()

	allItems := make([]models.NewsItem, 0)
	var warnings []string
	for result := range results {
		if result.Err != nil {
			p.logger.Warn("Failed to fetch from source", logging.WithFields(map[string]interface{}{
				"source": result.SourceURL,
				"error":  result.Err.Error(),
			}))
			warnings = append(warnings, fmt.Sprintf("%s: %s", result.SourceURL, result.Err))
			continue
		}

		p.logger.Debug("Fetched items from source", logging.WithFields(map[string]interface{}{
			"source": result.SourceURL,
			"count":  len(result.Items),
		}))

		ref := refs[result.SourceURL]
		for i := range result.Items {
			result.Items[i].Favicon = ref
		}
		allItems = append(allItems, result.Items...)
	}

	return allItems, warnings
}

// filterByRecency keeps items inside the window. Dateless items are
// always kept; the cutoff boundary is inclusive; items dated in the
// future are clock-skew artifacts and always dropped.
func (p *Pipeline) filterByRecency(items []models.NewsItem, now time.Time, windowHours float64) []models.NewsItem {
	if windowHours <= 0 {
		return items
	}
	cutoff := now.Add(-time.Duration(windowHours * float64(time.Hour)))

	kept := make([]models.NewsItem, 0, len(items))
	for _, item := range items {
		if !item.HasDate() {
			kept = append(kept, item)
			continue
		}
		if item.PublishedAt.After(now) {
			continue
		}
		if item.PublishedAt.Before(cutoff) {
			continue
		}
		kept = append(kept, item)
	}
	return kept
}

// sortItems stable-sorts by publish time in the configured direction.
// Dateless items are not comparable and always order last.
func (p *Pipeline) sortItems(items []models.NewsItem) {
	sort.SliceStable(items, func(i, j int) bool {
		a, b := items[i], items[j]
		switch {
		case !a.HasDate():
			return false
		case !b.HasDate():
			return true
		case p.direction == SortOldestFirst:
			return a.PublishedAt.Before(*b.PublishedAt)
		default:
			return a.PublishedAt.After(*b.PublishedAt)
		}
	})
}
