package ingest

import (
	"context"
	"time"
)

// ArticleStore persists normalized articles keyed by canonical URL.
type ArticleStore interface {
	// Upsert inserts or merges the article and reports whether the row was
	// newly created, derived from the write itself rather than a separate
	// existence check.
	Upsert(ctx context.Context, article NormalizedArticle) (created bool, err error)
	GetByCanonicalURL(ctx context.Context, canonicalURL string) (NormalizedArticle, error)
}

// SourceStore reads configured sources. Writes happen in the external
// probe-and-commit flow.
type SourceStore interface {
	GetSource(ctx context.Context, id string) (Source, error)
	ListAllowedSources(ctx context.Context) ([]Source, error)
}

// ImageCacheStore is the durable backing for image usability probes.
// Get returns nil with no error on a cache miss.
type ImageCacheStore interface {
	Get(ctx context.Context, url string) (*ImageCacheEntry, error)
	Put(ctx context.Context, entry *ImageCacheEntry) error
}

// Publisher pushes upsert events to Pub/Sub (or an in-memory fake).
type Publisher interface {
	Publish(ctx context.Context, topic string, payload any) (string, error)
}

// SnapshotStore archives raw fetched payloads and returns a URI.
type SnapshotStore interface {
	PutObject(ctx context.Context, path string, contentType string, data []byte) (string, error)
}

// HTMLFetcher retrieves a document body over HTTP.
type HTMLFetcher interface {
	Fetch(ctx context.Context, url string) (Page, error)
}

// Page is the result of one outbound document fetch.
type Page struct {
	URL        string
	StatusCode int
	Body       []byte
	Duration   time.Duration
	Rendered   bool
}

// Clock returns the current time (useful for testing).
type Clock interface {
	Now() time.Time
}
