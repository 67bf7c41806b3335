// Package dispatch executes the fetch strategy for a configured source,
// with ordered fallback in auto mode and strict no-substitution
// semantics for explicit requests.
package dispatch

import (
	"context"
	"encoding/xml"
	"fmt"
	"net/url"
	"strings"

	"go.uber.org/zap"

	"github.com/huddlewire/article-ingest/internal/adapters"
	"github.com/huddlewire/article-ingest/internal/feeds"
	"github.com/huddlewire/article-ingest/internal/fetch"
	"github.com/huddlewire/article-ingest/internal/ingest"
	"github.com/huddlewire/article-ingest/internal/metrics"
	"github.com/huddlewire/article-ingest/internal/scrape"
)

// Dispatcher turns one configured source into candidate items.
type Dispatcher struct {
	fetcher  ingest.HTMLFetcher
	renderer ingest.HTMLFetcher
	detector *fetch.RenderDetector
	parser   *feeds.Parser
	registry *adapters.Registry
	logger   *zap.Logger
}

// NewDispatcher wires a dispatcher. renderer is the optional headless
// fallback used when static scrape HTML looks script-rendered; nil
// disables it.
func NewDispatcher(fetcher ingest.HTMLFetcher, renderer ingest.HTMLFetcher, detector *fetch.RenderDetector, parser *feeds.Parser, registry *adapters.Registry, logger *zap.Logger) *Dispatcher {
	return &Dispatcher{
		fetcher:  fetcher,
		renderer: renderer,
		detector: detector,
		parser:   parser,
		registry: registry,
		logger:   logger,
	}
}

// Fetch resolves the strategy for src and returns candidate items plus
// the method that produced them.
//
// Resolution order: the explicit argument, then the source's non-auto
// fetch mode, then a configuration heuristic (adapter > rss > scrape).
// An explicitly requested method that fails or yields nothing returns
// that result as-is; substitution only happens in auto mode.
func (d *Dispatcher) Fetch(ctx context.Context, src ingest.Source, limit int, explicit ingest.FetchMode) ([]ingest.CandidateItem, string, error) {
	items, method, _, err := d.FetchWithPayload(ctx, src, limit, explicit)
	return items, method, err
}

// FetchWithPayload additionally returns the raw primary document the
// winning strategy fetched (feed XML, homepage HTML, or sitemap XML) so
// callers can archive it. Adapter results carry no payload.
func (d *Dispatcher) FetchWithPayload(ctx context.Context, src ingest.Source, limit int, explicit ingest.FetchMode) ([]ingest.CandidateItem, string, []byte, error) {
	if explicit != "" && explicit != ingest.FetchModeAuto {
		strategy, err := ingest.StrategyFor(src, explicit)
		if err != nil {
			return nil, string(explicit), nil, err
		}
		items, payload, err := d.run(ctx, src, strategy, limit)
		return items, strategy.Method(), payload, err
	}

	if src.FetchMode != "" && src.FetchMode != ingest.FetchModeAuto {
		strategy, err := ingest.StrategyFor(src, src.FetchMode)
		if err != nil {
			return nil, string(src.FetchMode), nil, err
		}
		items, payload, err := d.run(ctx, src, strategy, limit)
		return items, strategy.Method(), payload, err
	}

	if strategy, ok := heuristicStrategy(src); ok {
		items, payload, err := d.run(ctx, src, strategy, limit)
		outcome := "empty"
		switch {
		case err != nil:
			outcome = "error"
		case len(items) > 0:
			outcome = "ok"
		}
		metrics.ObserveFetchStage(strategy.Method(), outcome)
		if outcome == "ok" {
			return items, strategy.Method(), payload, nil
		}
		if err != nil {
			d.logger.Debug("configured method failed, falling back to cascade",
				zap.String("source_id", src.ID),
				zap.String("method", strategy.Method()),
				zap.Error(err))
		}
		var homepage []byte
		if s, isScrape := strategy.(ingest.ScrapeStrategy); isScrape && s.Path == "" {
			homepage = payload
		}
		return d.autoCascade(ctx, src, limit, strategy.Method(), homepage, err)
	}

	return d.autoCascade(ctx, src, limit, "", nil, nil)
}

// heuristicStrategy picks the first method to try in auto mode: adapter
// beats rss beats a configured selector. A pick that errors or yields
// nothing continues into the cascade; only explicit requests return a
// failure as-is.
func heuristicStrategy(src ingest.Source) (ingest.Strategy, bool) {
	switch {
	case src.AdapterKey != "":
		return ingest.AdapterStrategy{Key: src.AdapterKey, Config: src.AdapterConfig}, true
	case src.RSSURL != "":
		return ingest.RSSStrategy{FeedURL: src.RSSURL}, true
	case src.ScrapeSelector != "":
		return ingest.ScrapeStrategy{Selector: src.ScrapeSelector, Path: src.ScrapePath}, true
	}
	return nil, false
}

func (d *Dispatcher) run(ctx context.Context, src ingest.Source, strategy ingest.Strategy, limit int) ([]ingest.CandidateItem, []byte, error) {
	switch s := strategy.(type) {
	case ingest.RSSStrategy:
		return d.fetchFeed(ctx, s.FeedURL, limit)
	case ingest.ScrapeStrategy:
		return d.scrapeWithPage(ctx, src, s, limit)
	case ingest.AdapterStrategy:
		items, err := d.fetchAdapter(ctx, s, limit)
		return items, nil, err
	default:
		return nil, nil, fmt.Errorf("unhandled strategy %T", strategy)
	}
}

// autoCascade tries rss, homepage scrape, sitemap listing, then feeds
// autodiscovered from the homepage markup. The first stage yielding at
// least one item wins. tried names a stage already attempted upstream so
// it is not repeated; triedPage carries its homepage body for the
// autodiscovery stage, and firstErr its failure.
func (d *Dispatcher) autoCascade(ctx context.Context, src ingest.Source, limit int, tried string, triedPage []byte, firstErr error) ([]ingest.CandidateItem, string, []byte, error) {
	record := func(stage string, items []ingest.CandidateItem, err error) bool {
		outcome := "empty"
		switch {
		case err != nil:
			outcome = "error"
			if firstErr == nil {
				firstErr = err
			}
		case len(items) > 0:
			outcome = "ok"
		}
		metrics.ObserveFetchStage(stage, outcome)
		return err == nil && len(items) > 0
	}

	if src.RSSURL != "" && tried != "rss" {
		items, payload, err := d.fetchFeed(ctx, src.RSSURL, limit)
		if record("rss", items, err) {
			return items, "rss", payload, nil
		}
	}

	homepage := triedPage
	if src.HomepageURL != "" && tried != "scrape" {
		strategy := ingest.ScrapeStrategy{Selector: src.ScrapeSelector, Path: src.ScrapePath}
		items, page, err := d.scrapeWithPage(ctx, src, strategy, limit)
		homepage = page
		if record("scrape", items, err) {
			return items, "scrape", page, nil
		}
	}

	if src.SitemapURL != "" {
		items, payload, err := d.fetchSitemap(ctx, src.SitemapURL, limit)
		if record("sitemap", items, err) {
			return items, "sitemap", payload, nil
		}
	}

	if homepage != nil {
		for _, feedURL := range scrape.AlternateFeedLinks(homepage, src.HomepageURL) {
			items, payload, err := d.fetchFeed(ctx, feedURL, limit)
			if record("autodiscover", items, err) {
				return items, "rss", payload, nil
			}
		}
	}

	if firstErr != nil {
		return nil, "auto", nil, fmt.Errorf("auto cascade exhausted for source %s: %w", src.ID, firstErr)
	}
	return nil, "auto", nil, ingest.ErrNoItems
}

func (d *Dispatcher) fetchFeed(ctx context.Context, feedURL string, limit int) ([]ingest.CandidateItem, []byte, error) {
	page, err := d.fetcher.Fetch(ctx, feedURL)
	if err != nil {
		return nil, nil, fmt.Errorf("fetch feed %s: %w", feedURL, err)
	}
	items, err := d.parser.Parse(page.Body)
	if err != nil {
		return nil, page.Body, fmt.Errorf("parse feed %s: %w", feedURL, err)
	}
	return capItems(items, limit), page.Body, nil
}

// scrapeWithPage also returns the fetched homepage body so the auto
// cascade can reuse it for feed autodiscovery.
func (d *Dispatcher) scrapeWithPage(ctx context.Context, src ingest.Source, strategy ingest.ScrapeStrategy, limit int) ([]ingest.CandidateItem, []byte, error) {
	target := src.HomepageURL
	if strategy.Path != "" {
		joined, err := url.JoinPath(src.HomepageURL, strategy.Path)
		if err != nil {
			return nil, nil, fmt.Errorf("join scrape path %q: %w", strategy.Path, err)
		}
		target = joined
	}

	page, err := d.fetcher.Fetch(ctx, target)
	if err != nil {
		return nil, nil, fmt.Errorf("fetch page %s: %w", target, err)
	}

	if d.renderer != nil && d.detector != nil && d.detector.ShouldRender(page) {
		d.logger.Debug("static html looks script-rendered, promoting to headless",
			zap.String("url", target))
		rendered, rerr := d.renderer.Fetch(ctx, target)
		if rerr != nil {
			d.logger.Warn("headless render failed, keeping static html",
				zap.String("url", target), zap.Error(rerr))
		} else {
			page = rendered
		}
	}

	selector := strategy.Selector
	if selector == "" {
		selector = scrape.DefaultSelector
	}
	links, err := scrape.ExtractLinks(page.Body, target, selector)
	if err != nil {
		return nil, page.Body, fmt.Errorf("extract links from %s: %w", target, err)
	}
	return scrape.ToCandidates(links, limit), page.Body, nil
}

func (d *Dispatcher) fetchAdapter(ctx context.Context, strategy ingest.AdapterStrategy, limit int) ([]ingest.CandidateItem, error) {
	adapter, ok := d.registry.Lookup(strategy.Key)
	if !ok {
		return nil, fmt.Errorf("%w: %q", ingest.ErrUnknownAdapter, strategy.Key)
	}
	items, err := adapter.Preview(ctx, limit)
	if err != nil {
		return nil, fmt.Errorf("adapter %q: %w", strategy.Key, err)
	}
	filtered := items[:0]
	for _, item := range items {
		if scrape.IsArticlePath(item.Link) {
			filtered = append(filtered, item)
		}
	}
	return capItems(filtered, limit), nil
}

// urlSitemap is the plain sitemap schema; news sitemaps also decode into
// it since the extra elements are ignored.
type urlSitemap struct {
	URLs []struct {
		Loc  string `xml:"loc"`
		News struct {
			Title string `xml:"title"`
		} `xml:"news"`
	} `xml:"url"`
}

func (d *Dispatcher) fetchSitemap(ctx context.Context, sitemapURL string, limit int) ([]ingest.CandidateItem, []byte, error) {
	page, err := d.fetcher.Fetch(ctx, sitemapURL)
	if err != nil {
		return nil, nil, fmt.Errorf("fetch sitemap %s: %w", sitemapURL, err)
	}

	var sitemap urlSitemap
	if err := xml.Unmarshal(page.Body, &sitemap); err != nil {
		return nil, page.Body, fmt.Errorf("parse sitemap %s: %w", sitemapURL, err)
	}

	items := make([]ingest.CandidateItem, 0, len(sitemap.URLs))
	for _, entry := range sitemap.URLs {
		link := strings.TrimSpace(entry.Loc)
		if !strings.HasPrefix(link, "http") || !scrape.IsArticlePath(link) {
			continue
		}
		items = append(items, ingest.CandidateItem{
			Title: strings.TrimSpace(entry.News.Title),
			Link:  link,
		})
	}
	return capItems(items, limit), page.Body, nil
}

func capItems(items []ingest.CandidateItem, limit int) []ingest.CandidateItem {
	if limit > 0 && len(items) > limit {
		return items[:limit]
	}
	return items
}
