package occstore

import (
	"context"
	"log/slog"

	"github.com/couchcryptid/sdm-pipeline/internal/domain"
)

// Fetcher is the upstream occurrence source being decorated.
type Fetcher interface {
	FetchOccurrences(ctx context.Context, scientificName string) ([]domain.Occurrence, error)
}

// CachedFetcher wraps a Fetcher with the SQLite store: cache hits skip the
// network entirely, fresh fetches are written through.
type CachedFetcher struct {
	inner  Fetcher
	store  *Store
	logger *slog.Logger
}

// NewCachedFetcher creates a cache decorator around an occurrence fetcher.
func NewCachedFetcher(inner Fetcher, store *Store, logger *slog.Logger) *CachedFetcher {
	return &CachedFetcher{inner: inner, store: store, logger: logger}
}

// FetchOccurrences serves a prior fetch for the species when one exists,
// otherwise delegates and stores the result. Only non-empty results are
// cached so a transient empty answer can be retried on the next run.
func (c *CachedFetcher) FetchOccurrences(ctx context.Context, scientificName string) ([]domain.Occurrence, error) {
	recs, found, err := c.store.Load(ctx, scientificName)
	if err != nil {
		return nil, err
	}
	if found {
		c.logger.Info("occurrence cache hit", "species", scientificName, "records", len(recs))
		return recs, nil
	}

	recs, err = c.inner.FetchOccurrences(ctx, scientificName)
	if err != nil {
		return nil, err
	}
	if len(recs) > 0 {
		if err := c.store.Save(ctx, scientificName, recs); err != nil {
			// Cache writes never fail the run; the fetch already succeeded.
			c.logger.Warn("occurrence cache write failed", "species", scientificName, "error", err)
		}
	}
	return recs, nil
}
