package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/huddlewire/article-ingest/internal/ingest"
)

// ImageCacheStore is the durable memo behind the image usability prober.
type ImageCacheStore struct {
	pool querier
}

// NewImageCacheStore constructs a store over an existing pool.
func NewImageCacheStore(pool querier) (*ImageCacheStore, error) {
	if pool == nil {
		return nil, fmt.Errorf("pool is required")
	}
	return &ImageCacheStore{pool: pool}, nil
}

const getImageEntrySQL = `
SELECT url, ok, content_type, bytes, checked_at
FROM image_cache
WHERE url = $1`

// Get returns the memoized verdict for the URL, or nil on a miss.
func (s *ImageCacheStore) Get(ctx context.Context, url string) (*ingest.ImageCacheEntry, error) {
	var entry ingest.ImageCacheEntry
	err := s.pool.QueryRow(ctx, getImageEntrySQL, url).Scan(
		&entry.URL,
		&entry.OK,
		&entry.ContentType,
		&entry.Bytes,
		&entry.CheckedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get image cache entry: %w", err)
	}
	return &entry, nil
}

const putImageEntrySQL = `
INSERT INTO image_cache (url, ok, content_type, bytes, checked_at)
VALUES ($1,$2,$3,$4,$5)
ON CONFLICT (url) DO UPDATE SET
	ok           = EXCLUDED.ok,
	content_type = EXCLUDED.content_type,
	bytes        = EXCLUDED.bytes,
	checked_at   = EXCLUDED.checked_at`

// Put writes the verdict, replacing any previous one for the URL.
func (s *ImageCacheStore) Put(ctx context.Context, entry *ingest.ImageCacheEntry) error {
	if entry == nil || entry.URL == "" {
		return fmt.Errorf("image cache entry url is required")
	}
	_, err := s.pool.Exec(ctx, putImageEntrySQL,
		entry.URL,
		entry.OK,
		entry.ContentType,
		entry.Bytes,
		entry.CheckedAt,
	)
	if err != nil {
		return fmt.Errorf("put image cache entry: %w", err)
	}
	return nil
}
