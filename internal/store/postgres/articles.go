// Package postgres provides Postgres-backed persistence implementations.
package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/huddlewire/article-ingest/internal/ingest"
)

// querier is the subset of pgxpool.Pool the stores use; pgxmock satisfies
// it in tests.
type querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	Close()
}

// PoolConfig controls the shared Postgres connection pool.
type PoolConfig struct {
	DSN             string
	MaxConns        int32
	MinConns        int32
	MaxConnLifetime time.Duration
}

// NewPool builds a pgx pool from config.
func NewPool(ctx context.Context, cfg PoolConfig) (*pgxpool.Pool, error) {
	if cfg.DSN == "" {
		return nil, fmt.Errorf("db.dsn is required")
	}
	poolCfg, err := pgxpool.ParseConfig(cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("parse postgres dsn: %w", err)
	}
	if cfg.MaxConns > 0 {
		poolCfg.MaxConns = cfg.MaxConns
	}
	if cfg.MinConns > 0 {
		poolCfg.MinConns = cfg.MinConns
	}
	if cfg.MaxConnLifetime > 0 {
		poolCfg.MaxConnLifetime = cfg.MaxConnLifetime
	}
	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	return pool, nil
}

// ArticleStore persists normalized articles keyed by canonical URL.
type ArticleStore struct {
	pool querier
}

// NewArticleStore constructs a store over an existing pool.
func NewArticleStore(pool querier) (*ArticleStore, error) {
	if pool == nil {
		return nil, fmt.Errorf("pool is required")
	}
	return &ArticleStore{pool: pool}, nil
}

// Close releases the underlying pool resources.
func (s *ArticleStore) Close() {
	if s == nil || s.pool == nil {
		return
	}
	s.pool.Close()
}

// upsertArticleSQL merges on canonical_url. COALESCE keeps any column the
// incoming row would null out, is_player_page only ever flips to true,
// and (xmax = 0) distinguishes insert from update in one round trip.
const upsertArticleSQL = `
INSERT INTO articles (
	canonical_url,
	url,
	domain,
	title,
	cleaned_title,
	topics,
	primary_topic,
	secondary_topic,
	week,
	published_at,
	image_url,
	is_player_page,
	players,
	fingerprint,
	updated_at
) VALUES (
	$1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,now()
)
ON CONFLICT (canonical_url) DO UPDATE SET
	url             = COALESCE(NULLIF(EXCLUDED.url, ''), articles.url),
	domain          = COALESCE(NULLIF(EXCLUDED.domain, ''), articles.domain),
	title           = COALESCE(NULLIF(EXCLUDED.title, ''), articles.title),
	cleaned_title   = COALESCE(NULLIF(EXCLUDED.cleaned_title, ''), articles.cleaned_title),
	topics          = CASE WHEN EXCLUDED.topics IS NULL OR EXCLUDED.topics = '{}' THEN articles.topics ELSE EXCLUDED.topics END,
	primary_topic   = COALESCE(NULLIF(EXCLUDED.primary_topic, ''), articles.primary_topic),
	secondary_topic = COALESCE(NULLIF(EXCLUDED.secondary_topic, ''), articles.secondary_topic),
	week            = COALESCE(EXCLUDED.week, articles.week),
	published_at    = COALESCE(EXCLUDED.published_at, articles.published_at),
	image_url       = COALESCE(NULLIF(EXCLUDED.image_url, ''), articles.image_url),
	is_player_page  = articles.is_player_page OR EXCLUDED.is_player_page,
	players         = CASE WHEN EXCLUDED.players IS NULL OR EXCLUDED.players = '{}' THEN articles.players ELSE EXCLUDED.players END,
	fingerprint     = COALESCE(NULLIF(EXCLUDED.fingerprint, ''), articles.fingerprint),
	updated_at      = now()
RETURNING (xmax = 0)`

// Upsert inserts or merges the article and reports whether a new row was
// created.
func (s *ArticleStore) Upsert(ctx context.Context, article ingest.NormalizedArticle) (bool, error) {
	if s == nil || s.pool == nil {
		return false, fmt.Errorf("article store is not configured")
	}
	if article.CanonicalURL == "" {
		return false, fmt.Errorf("canonical url is required")
	}

	var created bool
	err := s.pool.QueryRow(ctx, upsertArticleSQL,
		article.CanonicalURL,
		article.URL,
		article.Domain,
		article.Title,
		article.CleanedTitle,
		article.Topics,
		article.PrimaryTopic,
		article.SecondaryTopic,
		article.Week,
		article.PublishedAt,
		article.ImageURL,
		article.IsPlayerPage,
		article.Players,
		article.Fingerprint,
	).Scan(&created)
	if err != nil {
		return false, fmt.Errorf("upsert article %s: %w", article.CanonicalURL, err)
	}
	return created, nil
}

const getArticleSQL = `
SELECT
	canonical_url,
	url,
	domain,
	title,
	cleaned_title,
	topics,
	primary_topic,
	secondary_topic,
	week,
	published_at,
	image_url,
	is_player_page,
	players,
	fingerprint
FROM articles
WHERE canonical_url = $1`

// GetByCanonicalURL retrieves one article row.
func (s *ArticleStore) GetByCanonicalURL(ctx context.Context, canonicalURL string) (ingest.NormalizedArticle, error) {
	var a ingest.NormalizedArticle
	err := s.pool.QueryRow(ctx, getArticleSQL, canonicalURL).Scan(
		&a.CanonicalURL,
		&a.URL,
		&a.Domain,
		&a.Title,
		&a.CleanedTitle,
		&a.Topics,
		&a.PrimaryTopic,
		&a.SecondaryTopic,
		&a.Week,
		&a.PublishedAt,
		&a.ImageURL,
		&a.IsPlayerPage,
		&a.Players,
		&a.Fingerprint,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return ingest.NormalizedArticle{}, ingest.ErrNotFound
	}
	if err != nil {
		return ingest.NormalizedArticle{}, fmt.Errorf("get article %s: %w", canonicalURL, err)
	}
	return a, nil
}
