// Package adapters hosts per-publisher integrations for sites whose
// content is easier to reach through a structured endpoint than through
// feeds or homepage scraping.
package adapters

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/huddlewire/article-ingest/internal/ingest"
)

// Adapter is one publisher integration. Implementations are treated as
// fallible black boxes: callers get errors, never panics.
type Adapter interface {
	// Key identifies the adapter in source configuration.
	Key() string
	// Match reports whether the adapter covers the given host.
	Match(host string) bool
	// Preview returns up to limit candidate items for probe reporting.
	Preview(ctx context.Context, limit int) ([]ingest.CandidateItem, error)
	// Index returns the publisher's current article listing.
	Index(ctx context.Context) ([]ingest.CandidateItem, error)
	// Article resolves a single article URL to a candidate item.
	Article(ctx context.Context, url string) (*ingest.CandidateItem, error)
}

// Registry is a static ordered adapter list. Order matters for host
// matching when coverage overlaps.
type Registry struct {
	adapters []Adapter
}

// NewRegistry wraps each adapter in panic recovery and preserves order.
func NewRegistry(logger *zap.Logger, adapters ...Adapter) *Registry {
	wrapped := make([]Adapter, 0, len(adapters))
	for _, a := range adapters {
		wrapped = append(wrapped, &recovering{inner: a, logger: logger})
	}
	return &Registry{adapters: wrapped}
}

// DefaultRegistry returns the built-in publisher integrations.
func DefaultRegistry(client *http.Client, userAgent string, logger *zap.Logger) *Registry {
	if client == nil {
		client = &http.Client{Timeout: 15 * time.Second}
	}
	return NewRegistry(logger,
		NewFantasyProsAdapter(client, userAgent),
		NewRotowireAdapter(client, userAgent),
	)
}

// Lookup finds an adapter by configuration key.
func (r *Registry) Lookup(key string) (Adapter, bool) {
	key = strings.ToLower(strings.TrimSpace(key))
	for _, a := range r.adapters {
		if a.Key() == key {
			return a, true
		}
	}
	return nil, false
}

// ForHost returns the first adapter claiming the host.
func (r *Registry) ForHost(host string) (Adapter, bool) {
	host = strings.ToLower(strings.TrimPrefix(host, "www."))
	for _, a := range r.adapters {
		if a.Match(host) {
			return a, true
		}
	}
	return nil, false
}

// Matching returns every adapter claiming the host, in registration
// order.
func (r *Registry) Matching(host string) []Adapter {
	host = strings.ToLower(strings.TrimPrefix(host, "www."))
	var out []Adapter
	for _, a := range r.adapters {
		if a.Match(host) {
			out = append(out, a)
		}
	}
	return out
}

// Keys lists registered adapter keys in registration order.
func (r *Registry) Keys() []string {
	keys := make([]string, 0, len(r.adapters))
	for _, a := range r.adapters {
		keys = append(keys, a.Key())
	}
	return keys
}

// recovering converts adapter panics into errors so one broken publisher
// integration cannot take down a run.
type recovering struct {
	inner  Adapter
	logger *zap.Logger
}

func (r *recovering) Key() string { return r.inner.Key() }

func (r *recovering) Match(host string) bool {
	ok, _ := guard(r, "match", func() (bool, error) {
		return r.inner.Match(host), nil
	})
	return ok
}

func (r *recovering) Preview(ctx context.Context, limit int) ([]ingest.CandidateItem, error) {
	return guard(r, "preview", func() ([]ingest.CandidateItem, error) {
		return r.inner.Preview(ctx, limit)
	})
}

func (r *recovering) Index(ctx context.Context) ([]ingest.CandidateItem, error) {
	return guard(r, "index", func() ([]ingest.CandidateItem, error) {
		return r.inner.Index(ctx)
	})
}

func (r *recovering) Article(ctx context.Context, url string) (*ingest.CandidateItem, error) {
	return guard(r, "article", func() (*ingest.CandidateItem, error) {
		return r.inner.Article(ctx, url)
	})
}

func guard[T any](r *recovering, op string, fn func() (T, error)) (result T, err error) {
	defer func() {
		if p := recover(); p != nil {
			var zero T
			result = zero
			err = fmt.Errorf("adapter %s panicked during %s: %v", r.inner.Key(), op, p)
			r.logger.Error("adapter panic recovered",
				zap.String("adapter", r.inner.Key()),
				zap.String("op", op),
				zap.Any("panic", p))
		}
	}()
	return fn()
}
