// Package favicon discovers the best icon URL for a news source's
// site by fetching its root page and ranking candidate references
// found in the markup.
package favicon

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"sort"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"github.com/hblund/newsticker/internal/logging"
)

// domainRewrites maps feed-only subdomains to the main site that
// actually serves the icon. Kept as an explicit lookup table so the
// exceptions are visible in one place.
var domainRewrites = map[string]string{
	"rss.dw.com":       "www.dw.com",
	"rss.nytimes.com":  "www.nytimes.com",
	"feeds.bbci.co.uk": "www.bbc.com",
}

// Resolver finds icon URLs. It performs no caching; iconcache owns
// memoization and persistence.
type Resolver struct {
	client    *http.Client
	userAgent string
	logger    *logging.Logger
}

func NewResolver(timeout time.Duration, userAgent string, logger *logging.Logger) *Resolver {
	return &Resolver{
		client:    &http.Client{Timeout: timeout},
		userAgent: userAgent,
		logger:    logger,
	}
}

// Resolve returns the best icon URL for the site behind pageURL. The
// page's root domain is fetched, not the feed path itself. When no
// candidate is found in the markup, {origin}/favicon.ico is returned.
func (r *Resolver) Resolve(ctx context.Context, pageURL string) (string, error) {
	base, err := url.Parse(pageURL)
	if err != nil || base.Host == "" {
		return "", fmt.Errorf("invalid page URL %q: %w", pageURL, err)
	}

	if rewritten, ok := domainRewrites[strings.ToLower(base.Host)]; ok {
		base.Host = rewritten
	}

	origin := &url.URL{Scheme: base.Scheme, Host: base.Host}
	if origin.Scheme == "" {
		origin.Scheme = "https"
	}
	fallback := origin.String() + "/favicon.ico"

	doc, err := r.fetchDocument(ctx, origin.String())
	if err != nil {
		return "", err
	}

	candidates := extractCandidates(doc, origin)
	if len(candidates) == 0 {
		r.logger.Debug("No icon candidates in markup, using fallback", logging.WithField("origin", origin.String()))
		return fallback, nil
	}

	sort.SliceStable(candidates, func(i, j int) bool {
		return candidatePriority(candidates[i]) < candidatePriority(candidates[j])
	})

	return candidates[0], nil
}

func (r *Resolver) fetchDocument(ctx context.Context, pageURL string) (*goquery.Document, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, pageURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("User-Agent", r.userAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml")

	resp, err := r.client.Do(req)
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
	return doc, nil
}

var iconLinkRels = map[string]bool{
	"icon":                         true,
	"shortcut icon":                true,
	"apple-touch-icon":             true,
	"apple-touch-icon-precomposed": true,
}

func extractCandidates(doc *goquery.Document, origin *url.URL) []string {
	var candidates []string
	seen := make(map[string]bool)

	add := func(ref string) {
		ref = strings.TrimSpace(ref)
		if ref == "" {
			return
		}
		abs := absolutize(ref, origin)
		if abs == "" || seen[abs] {
			return
		}
		seen[abs] = true
		candidates = append(candidates, abs)
	}

	// Icon link tags, PNG-typed ones first.
	doc.Find("link[rel]").Each(func(_ int, s *goquery.Selection) {
		rel, _ := s.Attr("rel")
		if !iconLinkRels[strings.ToLower(strings.TrimSpace(rel))] {
			return
		}
		if typ, _ := s.Attr("type"); strings.EqualFold(typ, "image/png") {
			if href, ok := s.Attr("href"); ok {
				add(href)
			}
		}
	})
	doc.Find("link[rel]").Each(func(_ int, s *goquery.Selection) {
		rel, _ := s.Attr("rel")
		if !iconLinkRels[strings.ToLower(strings.TrimSpace(rel))] {
			return
		}
		if href, ok := s.Attr("href"); ok {
			add(href)
		}
	})

	// Open Graph image.
	doc.Find(`meta[property="og:image"]`).Each(func(_ int, s *goquery.Selection) {
		if content, ok := s.Attr("content"); ok {
			add(content)
		}
	})

	// Bare favicon-looking hrefs anywhere in the document.
	doc.Find("[href]").Each(func(_ int, s *goquery.Selection) {
		href, _ := s.Attr("href")
		lower := strings.ToLower(href)
		if strings.Contains(lower, "favicon") || strings.HasSuffix(lower, ".ico") {
			add(href)
		}
	})

	// Structured-data logo fields.
	doc.Find(`script[type="application/ld+json"]`).Each(func(_ int, s *goquery.Selection) {
		for _, logo := range structuredDataLogos(s.Text()) {
			add(logo)
		}
	})

	return candidates
}

// structuredDataLogos pulls "logo" values out of a JSON-LD block.
// The value may be a plain string or an ImageObject with a "url".
func structuredDataLogos(raw string) []string {
	var parsed interface{}
	if err := json.Unmarshal([]byte(raw), &parsed); err != nil {
		return nil
	}

	var logos []string
	var walk func(node interface{})
	walk = func(node interface{}) {
		switch v := node.(type) {
		case map[string]interface{}:
			if logo, ok := v["logo"]; ok {
				switch lv := logo.(type) {
				case string:
					logos = append(logos, lv)
				case map[string]interface{}:
					if u, ok := lv["url"].(string); ok {
						logos = append(logos, u)
					}
				}
			}
			for _, child := range v {
				walk(child)
			}
		case []interface{}:
			for _, child := range v {
				walk(child)
			}
		}
	}
	walk(parsed)
	return logos
}

// absolutize normalizes a candidate reference to an absolute URL.
// Protocol-relative references inherit the origin's scheme,
// root-relative paths join the origin, absolute URLs pass through and
// anything else is joined as a path segment.
func absolutize(ref string, origin *url.URL) string {
	switch {
	case strings.HasPrefix(ref, "//"):
		return origin.Scheme + ":" + ref
	case strings.HasPrefix(ref, "/"):
		return origin.String() + ref
	case strings.HasPrefix(ref, "http://"), strings.HasPrefix(ref, "https://"):
		return ref
	case strings.HasPrefix(ref, "data:"):
		return ref
	default:
		return origin.String() + "/" + ref
	}
}

// candidatePriority scores a candidate URL; lower is better. Explicit
// favicon references beat apple-touch and plain extension matches,
// and anything that smells like a page logo or social card image
// ranks near the bottom since those are usually oversized.
func candidatePriority(candidate string) int {
	lower := strings.ToLower(candidate)
	isPNG := strings.Contains(lower, ".png")

	switch {
	case strings.Contains(lower, "favicon"):
		return 0
	case strings.Contains(lower, "shortcut"):
		return 1
	case strings.Contains(lower, "apple-touch-icon"):
		return 2
	case strings.HasSuffix(lower, ".ico"):
		return 3
	case isPNG && (strings.Contains(lower, "16") || strings.Contains(lower, "32") || strings.Contains(lower, "small")):
		return 4
	case isPNG:
		return 5
	case strings.Contains(lower, ".svg"):
		return 6
	case strings.Contains(lower, ".jpg"), strings.Contains(lower, ".jpeg"):
		return 7
	case strings.Contains(lower, "logo"), strings.Contains(lower, "og"), strings.Contains(lower, "brand"):
		return 8
	default:
		return 9
	}
}
