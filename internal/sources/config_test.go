package sources

import (
	"testing"

	"github.com/hblund/newsticker/internal/models"
	"github.com/hblund/newsticker/internal/ratelimit"
	"github.com/hblund/newsticker/internal/testutil"
)

func TestParseSources_MixedShapes(t *testing.T) {
	data := []byte(`[
		"https://example.com/feed.xml",
		{"url": "https://news.example.com", "type": "html", "selector": ".headline", "titleSelector": ".title"},
		{"url": "https://other.example.com/rss"}
	]`)

	srcs, err := ParseSources(data)
	if err != nil {
		t.Fatalf("ParseSources() error = %v", err)
	}
	if len(srcs) != 3 {
		t.Fatalf("ParseSources() returned %d sources, want 3", len(srcs))
	}

	if srcs[0].Kind != models.SourceRSS {
		t.Errorf("bare feed URL kind = %q, want rss", srcs[0].Kind)
	}
	if srcs[1].Kind != models.SourceHTML {
		t.Errorf("explicit html source kind = %q, want html", srcs[1].Kind)
	}
	if srcs[1].LinkSelector != "a" {
		t.Errorf("LinkSelector = %q, want default %q", srcs[1].LinkSelector, "a")
	}
	if srcs[2].Kind != models.SourceRSS {
		t.Errorf("/rss URL kind = %q, want rss", srcs[2].Kind)
	}
}

func TestParseSources_TitleSelectorDefault(t *testing.T) {
	data := []byte(`[{"url": "https://news.example.com", "type": "html", "selector": ".item"}]`)

	srcs, err := ParseSources(data)
	if err != nil {
		t.Fatalf("ParseSources() error = %v", err)
	}
	if srcs[0].TitleSelector != ".item" {
		t.Errorf("TitleSelector = %q, want item selector %q", srcs[0].TitleSelector, ".item")
	}
}

func TestParseSources_Errors(t *testing.T) {
	tests := []struct {
		name string
		data string
	}{
		{"not an array", `{"url": "https://example.com"}`},
		{"missing url", `[{"type": "rss"}]`},
		{"bad element", `[42]`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := ParseSources([]byte(tt.data)); err == nil {
				t.Error("ParseSources() should fail")
			}
		})
	}
}

func TestCreateFetchers(t *testing.T) {
	srcs := []models.Source{
		{URL: "https://example.com/feed.xml", Kind: models.SourceRSS},
		{URL: "https://news.example.com", Kind: models.SourceHTML, ItemSelector: ".headline"},
	}

	fetchers, err := CreateFetchers(srcs, ratelimit.New(0), DefaultConfig(), testutil.NullLogger())
	if err != nil {
		t.Fatalf("CreateFetchers() error = %v", err)
	}
	if len(fetchers) != 2 {
		t.Fatalf("CreateFetchers() returned %d fetchers, want 2", len(fetchers))
	}

	if _, ok := fetchers[0].(*RSSFetcher); !ok {
		t.Errorf("fetchers[0] = %T, want *RSSFetcher", fetchers[0])
	}
	if _, ok := fetchers[1].(*HTMLFetcher); !ok {
		t.Errorf("fetchers[1] = %T, want *HTMLFetcher", fetchers[1])
	}
}

func TestCreateFetchers_HTMLWithoutSelectorFails(t *testing.T) {
	srcs := []models.Source{
		{URL: "https://news.example.com", Kind: models.SourceHTML},
	}

	if _, err := CreateFetchers(srcs, ratelimit.New(0), DefaultConfig(), testutil.NullLogger()); err == nil {
		t.Error("CreateFetchers() should reject an html source without selectors")
	}
}
