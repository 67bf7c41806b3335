package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/huddlewire/article-ingest/internal/ingest"
)

// SourceStore reads configured source rows. The probe-and-commit flow
// that writes them lives outside this service.
type SourceStore struct {
	pool querier
}

// NewSourceStore constructs a store over an existing pool.
func NewSourceStore(pool querier) (*SourceStore, error) {
	if pool == nil {
		return nil, fmt.Errorf("pool is required")
	}
	return &SourceStore{pool: pool}, nil
}

const sourceColumns = `
	id,
	homepage_url,
	rss_url,
	sitemap_url,
	scrape_selector,
	scrape_path,
	adapter_key,
	adapter_config,
	fetch_mode,
	allowed,
	priority`

// GetSource retrieves one source row by id.
func (s *SourceStore) GetSource(ctx context.Context, id string) (ingest.Source, error) {
	query := "SELECT" + sourceColumns + " FROM sources WHERE id = $1"

	var src ingest.Source
	err := s.pool.QueryRow(ctx, query, id).Scan(
		&src.ID,
		&src.HomepageURL,
		&src.RSSURL,
		&src.SitemapURL,
		&src.ScrapeSelector,
		&src.ScrapePath,
		&src.AdapterKey,
		&src.AdapterConfig,
		&src.FetchMode,
		&src.Allowed,
		&src.Priority,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return ingest.Source{}, ingest.ErrNotFound
	}
	if err != nil {
		return ingest.Source{}, fmt.Errorf("get source %s: %w", id, err)
	}
	return src, nil
}

// ListAllowedSources returns all allowed sources ordered by priority.
func (s *SourceStore) ListAllowedSources(ctx context.Context) ([]ingest.Source, error) {
	query := "SELECT" + sourceColumns + " FROM sources WHERE allowed ORDER BY priority DESC, id"

	rows, err := s.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("list sources: %w", err)
	}
	defer rows.Close()

	var sources []ingest.Source
	for rows.Next() {
		var src ingest.Source
		if err := rows.Scan(
			&src.ID,
			&src.HomepageURL,
			&src.RSSURL,
			&src.SitemapURL,
			&src.ScrapeSelector,
			&src.ScrapePath,
			&src.AdapterKey,
			&src.AdapterConfig,
			&src.FetchMode,
			&src.Allowed,
			&src.Priority,
		); err != nil {
			return nil, fmt.Errorf("scan source row: %w", err)
		}
		sources = append(sources, src)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate source rows: %w", err)
	}
	return sources, nil
}
