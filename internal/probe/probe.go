// Package probe inspects an unconfigured publisher site and recommends
// how to fetch its content.
package probe

import (
	"context"
	"fmt"
	"net/url"
	"sort"
	"strings"

	"go.uber.org/zap"

	"github.com/huddlewire/article-ingest/internal/adapters"
	"github.com/huddlewire/article-ingest/internal/feeds"
	"github.com/huddlewire/article-ingest/internal/ingest"
	"github.com/huddlewire/article-ingest/internal/metrics"
	"github.com/huddlewire/article-ingest/internal/normalize"
	"github.com/huddlewire/article-ingest/internal/scrape"
)

// conventionalFeedPaths are tried against every probed site before any
// feeds declared in the homepage markup.
var conventionalFeedPaths = []string{
	"/feed",
	"/feed/",
	"/rss",
	"/rss.xml",
	"/feed.xml",
	"/atom.xml",
	"/index.xml",
	"/feeds/posts/default",
	"/blog/feed",
	"/news/rss",
}

const sampleURLLimit = 3

// Engine probes a site with every available method and scores the
// results. Individual candidate failures are recorded, never fatal.
type Engine struct {
	fetcher      ingest.HTMLFetcher
	parser       *feeds.Parser
	registry     *adapters.Registry
	logger       *zap.Logger
	previewLimit int
}

// NewEngine builds a probe engine. previewLimit caps the operator
// preview list; values over 50 are clamped.
func NewEngine(fetcher ingest.HTMLFetcher, parser *feeds.Parser, registry *adapters.Registry, previewLimit int, logger *zap.Logger) *Engine {
	if previewLimit <= 0 || previewLimit > 50 {
		previewLimit = 50
	}
	return &Engine{
		fetcher:      fetcher,
		parser:       parser,
		registry:     registry,
		logger:       logger,
		previewLimit: previewLimit,
	}
}

// NormalizeBase forces https, strips query and fragment, and trims any
// trailing slash so probe results key on a stable site URL.
func NormalizeBase(raw string) (string, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", fmt.Errorf("empty url")
	}
	if !strings.Contains(raw, "://") {
		raw = "https://" + raw
	}
	u, err := url.Parse(raw)
	if err != nil {
		return "", fmt.Errorf("parse url: %w", err)
	}
	if u.Host == "" {
		return "", fmt.Errorf("url %q has no host", raw)
	}
	u.Scheme = "https"
	u.RawQuery = ""
	u.Fragment = ""
	u.Path = strings.TrimRight(u.Path, "/")
	return u.String(), nil
}

// Probe runs feed, scrape, and adapter discovery against the URL and
// returns the scored result with a recommendation and preview.
func (e *Engine) Probe(ctx context.Context, rawURL string) (*ingest.ProbeResult, error) {
	base, err := NormalizeBase(rawURL)
	if err != nil {
		return nil, err
	}
	baseURL, _ := url.Parse(base)
	host := baseURL.Hostname()

	result := &ingest.ProbeResult{BaseURL: base}

	var homepage []byte
	page, err := e.fetcher.Fetch(ctx, base)
	if err != nil {
		e.logger.Warn("probe homepage fetch failed", zap.String("url", base), zap.Error(err))
	} else {
		homepage = page.Body
	}

	result.Feeds = e.probeFeeds(ctx, base, homepage)
	result.Scrapes = e.probeSelectors(homepage, base, host)
	result.Adapters = e.probeAdapters(ctx, host)
	result.Recommendation = recommend(result)
	result.Preview = e.preview(ctx, base, homepage, result)

	metrics.ObserveRecommendation(result.Recommendation.Method)
	return result, nil
}

// probeFeeds tries conventional feed paths plus any alternates declared
// in the homepage markup.
func (e *Engine) probeFeeds(ctx context.Context, base string, homepage []byte) []ingest.FeedCandidate {
	urls := make([]string, 0, len(conventionalFeedPaths)+4)
	seen := map[string]struct{}{}
	add := func(u string) {
		if u == "" {
			return
		}
		if _, dup := seen[u]; dup {
			return
		}
		seen[u] = struct{}{}
		urls = append(urls, u)
	}
	for _, path := range conventionalFeedPaths {
		add(base + path)
	}
	if homepage != nil {
		for _, alt := range scrape.AlternateFeedLinks(homepage, base) {
			add(alt)
		}
	}

	candidates := make([]ingest.FeedCandidate, 0, len(urls))
	for _, feedURL := range urls {
		candidates = append(candidates, e.tryFeed(ctx, feedURL))
	}
	return candidates
}

func (e *Engine) tryFeed(ctx context.Context, feedURL string) ingest.FeedCandidate {
	candidate := ingest.FeedCandidate{URL: feedURL}

	page, err := e.fetcher.Fetch(ctx, feedURL)
	if err != nil {
		candidate.Error = err.Error()
		return candidate
	}
	items, err := e.parser.Parse(page.Body)
	if err != nil {
		candidate.Error = err.Error()
		return candidate
	}
	candidate.ItemCount = len(items)
	candidate.OK = len(items) >= 1
	return candidate
}

// probeSelectors evaluates the host's selector list against the fetched
// homepage.
func (e *Engine) probeSelectors(homepage []byte, base, host string) []ingest.ScrapeCandidate {
	selectors := scrape.SelectorsForHost(host)
	candidates := make([]ingest.ScrapeCandidate, 0, len(selectors))
	for _, selector := range selectors {
		candidate := ingest.ScrapeCandidate{Selector: selector}
		if homepage == nil {
			candidate.Error = "homepage unavailable"
			candidates = append(candidates, candidate)
			continue
		}
		links, err := scrape.ExtractLinks(homepage, base, selector)
		if err != nil {
			candidate.Error = err.Error()
			candidates = append(candidates, candidate)
			continue
		}
		candidate.LinkCount = len(links)
		candidate.OK = len(links) >= 1
		for i := 0; i < len(links) && i < sampleURLLimit; i++ {
			candidate.SampleURLs = append(candidate.SampleURLs, links[i].URL)
		}
		candidates = append(candidates, candidate)
	}
	return candidates
}

func (e *Engine) probeAdapters(ctx context.Context, host string) []ingest.AdapterCandidate {
	matched := e.registry.Matching(host)
	candidates := make([]ingest.AdapterCandidate, 0, len(matched))
	for _, adapter := range matched {
		candidate := ingest.AdapterCandidate{Key: adapter.Key()}
		items, err := adapter.Preview(ctx, e.previewLimit)
		if err != nil {
			candidate.Error = err.Error()
		} else {
			candidate.ItemCount = len(items)
			candidate.OK = len(items) >= 1
		}
		candidates = append(candidates, candidate)
	}
	return candidates
}

// recommend picks feed > adapter > scrape > none. Within a method the
// highest yield wins; the rationale always names the method and yield.
func recommend(result *ingest.ProbeResult) ingest.Recommendation {
	feedCands := append([]ingest.FeedCandidate(nil), result.Feeds...)
	sort.SliceStable(feedCands, func(i, j int) bool { return feedCands[i].ItemCount > feedCands[j].ItemCount })
	for _, f := range feedCands {
		if f.OK {
			return ingest.Recommendation{
				Method:    "rss",
				FeedURL:   f.URL,
				Rationale: fmt.Sprintf("rss feed %s returned %d items", f.URL, f.ItemCount),
			}
		}
	}

	adapterCands := append([]ingest.AdapterCandidate(nil), result.Adapters...)
	sort.SliceStable(adapterCands, func(i, j int) bool { return adapterCands[i].ItemCount > adapterCands[j].ItemCount })
	for _, a := range adapterCands {
		if a.OK {
			return ingest.Recommendation{
				Method:    "adapter",
				Adapter:   a.Key,
				Rationale: fmt.Sprintf("adapter %q returned %d items", a.Key, a.ItemCount),
			}
		}
	}

	scrapes := append([]ingest.ScrapeCandidate(nil), result.Scrapes...)
	sort.SliceStable(scrapes, func(i, j int) bool { return scrapes[i].LinkCount > scrapes[j].LinkCount })
	for _, s := range scrapes {
		if s.OK {
			return ingest.Recommendation{
				Method:    "scrape",
				Selector:  s.Selector,
				Rationale: fmt.Sprintf("selector %q matched %d article links", s.Selector, s.LinkCount),
			}
		}
	}

	return ingest.Recommendation{
		Method:    "none",
		Rationale: "no feed, adapter, or selector produced items; the site needs a custom selector",
	}
}

// preview re-materializes the recommended method's output as a deduped,
// capped list for operator review.
func (e *Engine) preview(ctx context.Context, base string, homepage []byte, result *ingest.ProbeResult) []ingest.CandidateItem {
	var items []ingest.CandidateItem
	rec := result.Recommendation

	switch rec.Method {
	case "rss":
		page, err := e.fetcher.Fetch(ctx, rec.FeedURL)
		if err != nil {
			break
		}
		parsed, _ := e.parser.Parse(page.Body)
		items = keepArticleLinks(parsed)
	case "adapter":
		if adapter, ok := e.registry.Lookup(rec.Adapter); ok {
			fetched, _ := adapter.Preview(ctx, e.previewLimit)
			items = keepArticleLinks(fetched)
		}
	case "scrape":
		if homepage == nil {
			break
		}
		links, err := scrape.ExtractLinks(homepage, base, rec.Selector)
		if err != nil {
			break
		}
		items = scrape.ToCandidates(links, 0)
	}

	deduped := make([]ingest.CandidateItem, 0, len(items))
	seen := map[string]struct{}{}
	for _, item := range items {
		key := normalize.CanonicalURL(item.Link)
		if key == "" {
			continue
		}
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		deduped = append(deduped, item)
		if len(deduped) >= e.previewLimit {
			break
		}
	}
	return deduped
}

// keepArticleLinks drops hub and chrome links (tag pages, video indexes,
// author listings) that feeds and adapters sometimes carry alongside
// articles.
func keepArticleLinks(items []ingest.CandidateItem) []ingest.CandidateItem {
	kept := items[:0]
	for _, item := range items {
		if scrape.IsArticlePath(item.Link) {
			kept = append(kept, item)
		}
	}
	return kept
}
