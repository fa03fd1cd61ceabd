package sources

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/hblund/newsticker/internal/models"
	"github.com/hblund/newsticker/internal/ratelimit"
)

const feedTemplate = `<?xml version="1.0" encoding="UTF-8"?>
<rss version="2.0">
  <channel>
    <title>Test Feed</title>
    <link>https://example.com</link>
    %s
  </channel>
</rss>`

func serveFeed(t *testing.T, itemsXML string) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/rss+xml")
		fmt.Fprintf(w, feedTemplate, itemsXML)
	}))
}

func TestDefaultConfig(t *testing.T) {
	config := DefaultConfig()

	if config.Timeout != 20*time.Second {
		t.Errorf("DefaultConfig().Timeout = %v, want %v", config.Timeout, 20*time.Second)
	}
	if config.MaxItems != 50 {
		t.Errorf("DefaultConfig().MaxItems = %d, want 50", config.MaxItems)
	}
	if config.MinTitleLength != 5 {
		t.Errorf("DefaultConfig().MinTitleLength = %d, want 5", config.MinTitleLength)
	}
}

func TestRSSFetcher_Fetch(t *testing.T) {
	server := serveFeed(t, `
    <item>
      <title>Breaking story</title>
      <link>https://example.com/story</link>
      <description>Something happened</description>
      <pubDate>Mon, 02 Jan 2006 15:04:05 GMT</pubDate>
    </item>`)
	defer server.Close()

	fetcher := NewRSSFetcher(models.Source{URL: server.URL, Kind: models.SourceRSS}, ratelimit.New(0), DefaultConfig())
	items, err := fetcher.Fetch(context.Background())
	if err != nil {
		t.Fatalf("Fetch() error = %v", err)
	}

	if len(items) != 1 {
		t.Fatalf("Fetch() returned %d items, want 1", len(items))
	}
	item := items[0]
	if item.Title != "Breaking story" {
		t.Errorf("Title = %q, want %q", item.Title, "Breaking story")
	}
	if item.Link != "https://example.com/story" {
		t.Errorf("Link = %q, want %q", item.Link, "https://example.com/story")
	}
	if item.Description != "Something happened" {
		t.Errorf("Description = %q, want %q", item.Description, "Something happened")
	}
	if item.SourceURL != server.URL {
		t.Errorf("SourceURL = %q, want %q", item.SourceURL, server.URL)
	}
	if item.PublishedAt == nil {
		t.Fatal("PublishedAt should be set")
	}
	want := time.Date(2006, 1, 2, 15, 4, 5, 0, time.UTC)
	if !item.PublishedAt.Equal(want) {
		t.Errorf("PublishedAt = %v, want %v", item.PublishedAt, want)
	}
}

func TestRSSFetcher_Fetch_Defaults(t *testing.T) {
	server := serveFeed(t, `
    <item>
      <link>https://example.com/untitled</link>
    </item>`)
	defer server.Close()

	fetcher := NewRSSFetcher(models.Source{URL: server.URL, Kind: models.SourceRSS}, ratelimit.New(0), DefaultConfig())
	items, err := fetcher.Fetch(context.Background())
	if err != nil {
		t.Fatalf("Fetch() error = %v", err)
	}

	if len(items) != 1 {
		t.Fatalf("Fetch() returned %d items, want 1", len(items))
	}
	if items[0].Title != "No title" {
		t.Errorf("Title = %q, want default %q", items[0].Title, "No title")
	}
	if items[0].Description != "" {
		t.Errorf("Description = %q, want empty", items[0].Description)
	}
	if items[0].PublishedAt != nil {
		t.Errorf("PublishedAt = %v, want nil for dateless entry", items[0].PublishedAt)
	}
}

func TestRSSFetcher_Fetch_MaxItems(t *testing.T) {
	var itemsXML string
	for i := 0; i < 10; i++ {
		itemsXML += fmt.Sprintf(`<item><title>Story %d</title></item>`, i)
	}
	server := serveFeed(t, itemsXML)
	defer server.Close()

	config := DefaultConfig()
	config.MaxItems = 3
	fetcher := NewRSSFetcher(models.Source{URL: server.URL, Kind: models.SourceRSS}, ratelimit.New(0), config)

	items, err := fetcher.Fetch(context.Background())
	if err != nil {
		t.Fatalf("Fetch() error = %v", err)
	}
	if len(items) != 3 {
		t.Errorf("Fetch() returned %d items, want 3", len(items))
	}
}

func TestRSSFetcher_Fetch_NetworkError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	fetcher := NewRSSFetcher(models.Source{URL: server.URL, Kind: models.SourceRSS}, ratelimit.New(0), DefaultConfig())
	if _, err := fetcher.Fetch(context.Background()); err == nil {
		t.Error("Fetch() should fail on a 500 response")
	}
}
