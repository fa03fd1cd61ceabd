package iconcache

import (
	"context"
	"crypto/sha256"
	"encoding/base64"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/hblund/newsticker/internal/imagesniff"
	"github.com/hblund/newsticker/internal/logging"
	"github.com/hblund/newsticker/internal/ratelimit"
)

const (
	// DefaultMaxDownloadBytes bounds a single icon transfer.
	DefaultMaxDownloadBytes = 1 << 20
	// DefaultRetention is how long Sweep keeps cached icons.
	DefaultRetention = 30 * 24 * time.Hour
)

// IconResolver finds the icon URL for a source's site.
type IconResolver interface {
	Resolve(ctx context.Context, pageURL string) (string, error)
}

// Options configures a Cache.
type Options struct {
	MaxDownloadBytes int64
	DownloadTimeout  time.Duration
	UserAgent        string
}

// Cache is the two-tier icon cache: an in-memory map for the process
// lifetime in front of a persistent Store that survives restarts.
// Every blob returned from either tier passes imagesniff validation;
// anything that fails is purged and treated as a miss.
type Cache struct {
	store     Store
	resolver  IconResolver
	limiter   *ratelimit.Limiter
	logger    *logging.Logger
	client    *http.Client
	maxBytes  int64
	userAgent string

	mu    sync.Mutex
	refs  map[string]string
	index map[string]Entry
}

// New builds a Cache over the given store. Startup validates every
// stored icon blob, deletes the ones that no longer sniff as images
// and drops index entries whose blob is gone.
func New(ctx context.Context, store Store, resolver IconResolver, limiter *ratelimit.Limiter, opts Options, logger *logging.Logger) (*Cache, error) {
	maxBytes := opts.MaxDownloadBytes
	if maxBytes <= 0 {
		maxBytes = DefaultMaxDownloadBytes
	}
	timeout := opts.DownloadTimeout
	if timeout <= 0 {
		timeout = 15 * time.Second
	}

	c := &Cache{
		store:     store,
		resolver:  resolver,
		limiter:   limiter,
		logger:    logger,
		client:    &http.Client{Timeout: timeout},
		maxBytes:  maxBytes,
		userAgent: opts.UserAgent,
		refs:      make(map[string]string),
	}

	if err := c.loadAndValidate(ctx); err != nil {
		return nil, err
	}
	return c, nil
}

func (c *Cache) loadAndValidate(ctx context.Context) error {
	names, err := c.store.ListIcons(ctx)
	if err != nil {
		return fmt.Errorf("failed to list cached icons: %w", err)
	}

	valid := make(map[string]bool, len(names))
	for _, name := range names {
		data, err := c.store.ReadIcon(ctx, name)
		if err != nil || imagesniff.Classify(data) == imagesniff.Unknown {
			c.logger.Warn("Purging invalid cached icon", logging.WithField("file", name))
			if err := c.store.DeleteIcon(ctx, name); err != nil {
				c.logger.Error("Failed to delete invalid icon", logging.WithFields(map[string]interface{}{
					"file":  name,
					"error": err.Error(),
				}))
			}
			continue
		}
		valid[name] = true
	}

	index, err := c.store.LoadIndex(ctx)
	if err != nil {
		return fmt.Errorf("failed to load icon index: %w", err)
	}

	dropped := false
	for source, entry := range index {
		if entry.File != "" && !valid[entry.File] {
			delete(index, source)
			dropped = true
		}
	}
	c.index = index

	if dropped {
		if err := c.store.SaveIndex(ctx, index); err != nil {
			c.logger.Error("Failed to rewrite icon index", logging.WithField("error", err.Error()))
		}
	}
	return nil
}

// Get returns an embeddable icon reference for the source URL, or ""
// when none could be produced. The result is memoized for the process
// lifetime, including negative results, so a source is resolved over
// the network at most once per cache lifetime.
func (c *Cache) Get(ctx context.Context, sourceURL string) string {
	c.mu.Lock()
	if ref, ok := c.refs[sourceURL]; ok {
		c.mu.Unlock()
		return ref
	}
	entry, hasEntry := c.index[sourceURL]
	c.mu.Unlock()

	if hasEntry {
		if ref, ok := c.fromStore(ctx, sourceURL, entry); ok {
			return ref
		}
	}

	ref := c.resolveAndCache(ctx, sourceURL)

	c.mu.Lock()
	c.refs[sourceURL] = ref
	c.mu.Unlock()
	return ref
}

// fromStore serves a hit from the persistent tier, re-validating the
// bytes first. Invalid blobs are deleted and the entry removed so the
// caller falls through to a fresh resolution.
func (c *Cache) fromStore(ctx context.Context, sourceURL string, entry Entry) (string, bool) {
	if entry.File == "" {
		if entry.IconURL != "" && directlyUsable(entry.IconURL) {
			c.memoize(sourceURL, entry.IconURL)
			return entry.IconURL, true
		}
		return "", false
	}

	data, err := c.store.ReadIcon(ctx, entry.File)
	if err == nil && imagesniff.IsValid(data, entry.IconURL) {
		ref := inlineRef(data, entry.IconURL)
		c.memoize(sourceURL, ref)
		return ref, true
	}

	c.logger.Warn("Cached icon failed validation, discarding", logging.WithFields(map[string]interface{}{
		"source": sourceURL,
		"file":   entry.File,
	}))
	if err := c.store.DeleteIcon(ctx, entry.File); err != nil {
		c.logger.Error("Failed to delete invalid icon", logging.WithField("error", err.Error()))
	}
	c.dropEntry(ctx, sourceURL)
	return "", false
}

func (c *Cache) resolveAndCache(ctx context.Context, sourceURL string) string {
	iconURL, err := c.resolver.Resolve(ctx, sourceURL)
	if err != nil {
		c.logger.Warn("Icon resolution failed", logging.WithFields(map[string]interface{}{
			"source": sourceURL,
			"error":  err.Error(),
		}))
		return ""
	}

	// Directly usable raster and vector formats are referenced as-is,
	// no download needed. Only ICO and ambiguous formats get fetched
	// and converted to a data URL.
	if directlyUsable(iconURL) {
		c.putEntry(ctx, sourceURL, Entry{
			SourceURL: sourceURL,
			IconURL:   iconURL,
			UpdatedAt: time.Now(),
		})
		return iconURL
	}

	data, err := c.download(ctx, iconURL)
	if err != nil {
		c.logger.Warn("Icon download failed", logging.WithFields(map[string]interface{}{
			"icon":   iconURL,
			"source": sourceURL,
			"error":  err.Error(),
		}))
		return ""
	}

	if !imagesniff.IsValid(data, iconURL) {
		// Not an image. Fall back to the remote URL unchanged rather
		// than persisting junk.
		c.logger.Warn("Downloaded icon failed validation", logging.WithFields(map[string]interface{}{
			"icon":   iconURL,
			"source": sourceURL,
		}))
		return iconURL
	}

	name := iconFileName(sourceURL)
	if err := c.store.WriteIcon(ctx, name, data); err != nil {
		c.logger.Error("Failed to persist icon", logging.WithField("error", err.Error()))
		return inlineRef(data, iconURL)
	}
	c.putEntry(ctx, sourceURL, Entry{
		SourceURL: sourceURL,
		IconURL:   iconURL,
		File:      name,
		UpdatedAt: time.Now(),
	})

	return inlineRef(data, iconURL)
}

// GetAll resolves all source URLs concurrently and returns the full
// result map once every resolution has finished. Results for a batch
// are written before any consumer reads the map.
func (c *Cache) GetAll(ctx context.Context, sourceURLs []string) map[string]string {
	refs := make(map[string]string, len(sourceURLs))

	var mu sync.Mutex
	var wg sync.WaitGroup
	for _, sourceURL := range sourceURLs {
		mu.Lock()
		_, dup := refs[sourceURL]
		if !dup {
			refs[sourceURL] = ""
		}
		mu.Unlock()
		if dup {
			continue
		}

		wg.Add(1)
		go func(u string) {
			defer wg.Done()
			ref := c.Get(ctx, u)
			mu.Lock()
			refs[u] = ref
			mu.Unlock()
		}(sourceURL)
	}
	wg.Wait()

	return refs
}

// Sweep removes cached icons older than maxAge and returns how many
// entries were dropped.
func (c *Cache) Sweep(ctx context.Context, maxAge time.Duration) (int, error) {
	if maxAge <= 0 {
		maxAge = DefaultRetention
	}
	cutoff := time.Now().Add(-maxAge)

	c.mu.Lock()
	defer c.mu.Unlock()

	removed := 0
	for source, entry := range c.index {
		if !entry.UpdatedAt.Before(cutoff) {
			continue
		}
		if entry.File != "" {
			if err := c.store.DeleteIcon(ctx, entry.File); err != nil {
				return removed, err
			}
		}
		delete(c.index, source)
		delete(c.refs, source)
		removed++
	}

	if removed > 0 {
		if err := c.store.SaveIndex(ctx, c.index); err != nil {
			return removed, err
		}
	}
	return removed, nil
}

// Clear wipes both tiers entirely.
func (c *Cache) Clear(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.refs = make(map[string]string)
	c.index = make(map[string]Entry)
	return c.store.Clear(ctx)
}

func (c *Cache) memoize(sourceURL, ref string) {
	c.mu.Lock()
	c.refs[sourceURL] = ref
	c.mu.Unlock()
}

func (c *Cache) putEntry(ctx context.Context, sourceURL string, entry Entry) {
	c.mu.Lock()
	c.index[sourceURL] = entry
	snapshot := make(map[string]Entry, len(c.index))
	for k, v := range c.index {
		snapshot[k] = v
	}
	c.mu.Unlock()

	// Whole-snapshot rewrite; concurrent writers can only leave a
	// stale index behind, never a torn one.
	if err := c.store.SaveIndex(ctx, snapshot); err != nil {
		c.logger.Error("Failed to rewrite icon index", logging.WithField("error", err.Error()))
	}
}

func (c *Cache) dropEntry(ctx context.Context, sourceURL string) {
	c.mu.Lock()
	delete(c.index, sourceURL)
	snapshot := make(map[string]Entry, len(c.index))
	for k, v := range c.index {
		snapshot[k] = v
	}
	c.mu.Unlock()

	if err := c.store.SaveIndex(ctx, snapshot); err != nil {
		c.logger.Error("Failed to rewrite icon index", logging.WithField("error", err.Error()))
	}
}

func (c *Cache) download(ctx context.Context, iconURL string) ([]byte, error) {
	if c.limiter != nil {
		c.limiter.Wait(iconURL)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, iconURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	if c.userAgent != "" {
		req.Header.Set("User-Agent", c.userAgent)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to download icon: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("icon download returned status %d", resp.StatusCode)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, c.maxBytes+1))
	if err != nil {
		return nil, fmt.Errorf("failed to read icon body: %w", err)
	}
	if int64(len(data)) > c.maxBytes {
		return nil, fmt.Errorf("icon exceeds %d byte limit", c.maxBytes)
	}
	return data, nil
}

// inlineRef encodes icon bytes as a self-contained data URL. When the
// bytes only passed validation through URL-hint leniency the MIME
// falls back to image/png, which browsers render fine for the PNG
// payloads such servers typically mislabel.
func inlineRef(data []byte, iconURL string) string {
	format := imagesniff.Classify(data)
	mime := format.MIME()
	if format == imagesniff.Unknown {
		mime = "image/png"
	}
	return "data:" + mime + ";base64," + base64.StdEncoding.EncodeToString(data)
}

// iconFileName derives the deterministic cache file name from the
// source URL and its host.
func iconFileName(sourceURL string) string {
	host := sourceURL
	if u, err := url.Parse(sourceURL); err == nil && u.Host != "" {
		host = u.Host
	}
	hash := sha256.Sum256([]byte(sourceURL + host))
	return fmt.Sprintf("%x", hash[:8])
}

// directlyUsable reports whether an icon URL points at a format that
// can be referenced without conversion.
func directlyUsable(iconURL string) bool {
	path := iconURL
	if i := strings.IndexAny(path, "?#"); i >= 0 {
		path = path[:i]
	}
	lower := strings.ToLower(path)
	for _, ext := range []string{".png", ".gif", ".svg", ".jpg", ".jpeg"} {
		if strings.HasSuffix(lower, ext) {
			return true
		}
	}
	return false
}
