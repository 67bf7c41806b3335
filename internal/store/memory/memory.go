// Package memory provides in-memory store implementations for tests and
// local development.
package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/huddlewire/article-ingest/internal/ingest"
)

// ArticleStore keeps normalized articles in a map keyed by canonical URL
// with the same merge semantics as the Postgres store.
type ArticleStore struct {
	mu       sync.RWMutex
	articles map[string]ingest.NormalizedArticle
}

// NewArticleStore builds an empty in-memory article store.
func NewArticleStore() *ArticleStore {
	return &ArticleStore{articles: map[string]ingest.NormalizedArticle{}}
}

// Upsert merges the article into the map. Known non-empty fields are
// never overwritten by empty ones, and the player-page flag only ever
// flips to true.
func (s *ArticleStore) Upsert(_ context.Context, article ingest.NormalizedArticle) (bool, error) {
	if article.CanonicalURL == "" {
		return false, fmt.Errorf("canonical url is required")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	existing, ok := s.articles[article.CanonicalURL]
	if !ok {
		s.articles[article.CanonicalURL] = article
		return true, nil
	}
	s.articles[article.CanonicalURL] = merge(existing, article)
	return false, nil
}

// GetByCanonicalURL retrieves one article.
func (s *ArticleStore) GetByCanonicalURL(_ context.Context, canonicalURL string) (ingest.NormalizedArticle, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	article, ok := s.articles[canonicalURL]
	if !ok {
		return ingest.NormalizedArticle{}, ingest.ErrNotFound
	}
	return article, nil
}

// Len reports the number of stored articles.
func (s *ArticleStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.articles)
}

func merge(existing, incoming ingest.NormalizedArticle) ingest.NormalizedArticle {
	out := existing
	out.URL = pick(incoming.URL, existing.URL)
	out.Domain = pick(incoming.Domain, existing.Domain)
	out.Title = pick(incoming.Title, existing.Title)
	out.CleanedTitle = pick(incoming.CleanedTitle, existing.CleanedTitle)
	if len(incoming.Topics) > 0 {
		out.Topics = incoming.Topics
	}
	out.PrimaryTopic = pick(incoming.PrimaryTopic, existing.PrimaryTopic)
	out.SecondaryTopic = pick(incoming.SecondaryTopic, existing.SecondaryTopic)
	if incoming.Week != nil {
		out.Week = incoming.Week
	}
	if incoming.PublishedAt != nil {
		out.PublishedAt = incoming.PublishedAt
	}
	out.ImageURL = pick(incoming.ImageURL, existing.ImageURL)
	out.IsPlayerPage = existing.IsPlayerPage || incoming.IsPlayerPage
	if len(incoming.Players) > 0 {
		out.Players = incoming.Players
	}
	out.Fingerprint = pick(incoming.Fingerprint, existing.Fingerprint)
	return out
}

func pick(incoming, existing string) string {
	if incoming != "" {
		return incoming
	}
	return existing
}

// SourceStore serves a fixed set of sources.
type SourceStore struct {
	mu      sync.RWMutex
	sources map[string]ingest.Source
}

// NewSourceStore builds a source store seeded with the given sources.
func NewSourceStore(sources ...ingest.Source) *SourceStore {
	m := make(map[string]ingest.Source, len(sources))
	for _, src := range sources {
		m[src.ID] = src
	}
	return &SourceStore{sources: m}
}

// GetSource retrieves one source by id.
func (s *SourceStore) GetSource(_ context.Context, id string) (ingest.Source, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	src, ok := s.sources[id]
	if !ok {
		return ingest.Source{}, ingest.ErrNotFound
	}
	return src, nil
}

// ListAllowedSources returns allowed sources ordered by priority.
func (s *SourceStore) ListAllowedSources(_ context.Context) ([]ingest.Source, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []ingest.Source
	for _, src := range s.sources {
		if src.Allowed {
			out = append(out, src)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Priority != out[j].Priority {
			return out[i].Priority > out[j].Priority
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

// Put adds or replaces a source.
func (s *SourceStore) Put(src ingest.Source) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sources[src.ID] = src
}

// ImageCacheStore memoizes image verdicts in a map.
type ImageCacheStore struct {
	mu      sync.RWMutex
	entries map[string]ingest.ImageCacheEntry
}

// NewImageCacheStore builds an empty in-memory image cache.
func NewImageCacheStore() *ImageCacheStore {
	return &ImageCacheStore{entries: map[string]ingest.ImageCacheEntry{}}
}

// Get returns the memoized verdict, or nil on a miss.
func (s *ImageCacheStore) Get(_ context.Context, url string) (*ingest.ImageCacheEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	entry, ok := s.entries[url]
	if !ok {
		return nil, nil
	}
	return &entry, nil
}

// Put writes the verdict, replacing any previous one.
func (s *ImageCacheStore) Put(_ context.Context, entry *ingest.ImageCacheEntry) error {
	if entry == nil || entry.URL == "" {
		return fmt.Errorf("image cache entry url is required")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries[entry.URL] = *entry
	return nil
}
