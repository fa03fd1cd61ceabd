package models

import "time"

// NewsItem is a single aggregated headline. Items are built fresh on
// every fetch cycle and never mutated after the pipeline emits them.
type NewsItem struct {
	Title       string     `json:"title"`
	Link        string     `json:"link"`
	PublishedAt *time.Time `json:"pubDate,omitempty"`
	Description string     `json:"description"`
	SourceURL   string     `json:"source"`
	Favicon     string     `json:"favicon,omitempty"`
}

// HasDate reports whether the item carries a parsable publish time.
// Items without one are never filtered out by recency and sort after
// all dated items.
func (it *NewsItem) HasDate() bool {
	return it.PublishedAt != nil && !it.PublishedAt.IsZero()
}

// AggregatedResult is the envelope a pipeline cycle returns to its
// caller alongside the flat item list.
type AggregatedResult struct {
	Items       []NewsItem `json:"items"`
	TotalCount  int        `json:"totalCount"`
	FetchedAt   time.Time  `json:"fetchedAt"`
	SourceCount int        `json:"sourceCount"`
	CycleID     string     `json:"cycleId"`
	Generation  uint64     `json:"generation"`
	Warnings    []string   `json:"warnings,omitempty"`
}
