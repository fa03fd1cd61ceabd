package sources

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/hblund/newsticker/internal/logging"
	"github.com/hblund/newsticker/internal/models"
	"github.com/hblund/newsticker/internal/ratelimit"
)

// LoadSources reads a JSON source list from a config file. Each
// element is either a bare URL string (kind auto-detected) or an
// object with explicit type and selectors.
func LoadSources(configPath string) ([]models.Source, error) {
	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read sources config: %w", err)
	}
	return ParseSources(data)
}

// ParseSources decodes the two supported source shapes into the
// normalized tagged form. Nothing downstream of this boundary
// inspects raw config again.
func ParseSources(data []byte) ([]models.Source, error) {
	var raw []json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("failed to parse sources config: %w", err)
	}

	srcs := make([]models.Source, 0, len(raw))
	for i, elem := range raw {
		var bare string
		if err := json.Unmarshal(elem, &bare); err == nil {
			src := models.Source{URL: bare}
			src.Normalize()
			srcs = append(srcs, src)
			continue
		}

		var src models.Source
		if err := json.Unmarshal(elem, &src); err != nil {
			return nil, fmt.Errorf("source %d: expected a URL string or source object: %w", i, err)
		}
		if src.URL == "" {
			return nil, fmt.Errorf("source %d: missing url", i)
		}
		src.Normalize()
		srcs = append(srcs, src)
	}

	return srcs, nil
}

// CreateFetchers builds one fetcher per source.
func CreateFetchers(srcs []models.Source, limiter *ratelimit.Limiter, config FetcherConfig, logger *logging.Logger) ([]Fetcher, error) {
	fetchers := make([]Fetcher, 0, len(srcs))
	for _, src := range srcs {
		fetcher, err := New(src, limiter, config, logger)
		if err != nil {
			return nil, err
		}
		fetchers = append(fetchers, fetcher)
	}
	return fetchers, nil
}
