package models

import "strings"

// SourceKind discriminates the two supported source variants.
type SourceKind string

const (
	SourceRSS  SourceKind = "rss"
	SourceHTML SourceKind = "html"
)

// Source is a configured origin of news items. The URL is its
// identity. HTML sources carry CSS selectors for item extraction;
// selectors on an RSS source are ignored.
type Source struct {
	URL  string     `json:"url"`
	Kind SourceKind `json:"type"`

	// HTML extraction selectors. TitleSelector defaults to
	// ItemSelector and LinkSelector defaults to "a" when empty.
	ItemSelector  string `json:"selector,omitempty"`
	TitleSelector string `json:"titleSelector,omitempty"`
	LinkSelector  string `json:"linkSelector,omitempty"`
	DateSelector  string `json:"dateSelector,omitempty"`
}

// LooksLikeFeed reports whether a URL matches the feed-shape
// heuristics (".xml", "/rss", "/feed").
func LooksLikeFeed(url string) bool {
	lower := strings.ToLower(url)
	return strings.Contains(lower, ".xml") ||
		strings.Contains(lower, "/rss") ||
		strings.Contains(lower, "/feed")
}

// Normalize fills in defaults. A missing kind is inferred: a source
// that carries an item selector is HTML, anything else (feed-shaped
// URLs included) is RSS. HTML selector defaults are then applied.
func (s *Source) Normalize() {
	if s.Kind == "" {
		if s.ItemSelector != "" && !LooksLikeFeed(s.URL) {
			s.Kind = SourceHTML
		} else {
			s.Kind = SourceRSS
		}
	}
	if s.Kind == SourceHTML {
		if s.TitleSelector == "" {
			s.TitleSelector = s.ItemSelector
		}
		if s.LinkSelector == "" {
			s.LinkSelector = "a"
		}
	}
}
