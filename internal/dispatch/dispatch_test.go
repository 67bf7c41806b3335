package dispatch

import (
	"context"
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/huddlewire/article-ingest/internal/adapters"
	"github.com/huddlewire/article-ingest/internal/feeds"
	"github.com/huddlewire/article-ingest/internal/ingest"
)

type fakeFetcher struct {
	pages map[string]string
	calls []string
}

func (f *fakeFetcher) Fetch(_ context.Context, url string) (ingest.Page, error) {
	f.calls = append(f.calls, url)
	body, ok := f.pages[url]
	if !ok {
		return ingest.Page{}, fmt.Errorf("404 for %s", url)
	}
	return ingest.Page{URL: url, StatusCode: 200, Body: []byte(body)}, nil
}

type fakeAdapter struct {
	key   string
	items []ingest.CandidateItem
	err   error
}

func (a *fakeAdapter) Key() string { return a.key }
func (a *fakeAdapter) Match(string) bool { return true }
func (a *fakeAdapter) Preview(_ context.Context, limit int) ([]ingest.CandidateItem, error) {
	if a.err != nil {
		return nil, a.err
	}
	if limit > 0 && len(a.items) > limit {
		return a.items[:limit], nil
	}
	return a.items, nil
}
func (a *fakeAdapter) Index(ctx context.Context) ([]ingest.CandidateItem, error) {
	return a.Preview(ctx, 0)
}
func (a *fakeAdapter) Article(context.Context, string) (*ingest.CandidateItem, error) {
	return nil, ingest.ErrNotFound
}

func rssPayload(n int) string {
	var b strings.Builder
	b.WriteString(`<?xml version="1.0"?><rss version="2.0"><channel><title>Site</title>`)
	for i := 0; i < n; i++ {
		fmt.Fprintf(&b, `<item><title>Article %d</title><link>https://site.example.com/news/article-%d</link></item>`, i, i)
	}
	b.WriteString(`</channel></rss>`)
	return b.String()
}

func newDispatcher(f *fakeFetcher, reg *adapters.Registry) *Dispatcher {
	if reg == nil {
		reg = adapters.NewRegistry(zap.NewNop())
	}
	return NewDispatcher(f, nil, nil, feeds.NewParser(), reg, zap.NewNop())
}

func TestExplicitModeNeverSubstitutes(t *testing.T) {
	t.Parallel()

	f := &fakeFetcher{pages: map[string]string{
		"https://site.example.com": `<html><body><article><a href="/news/a">A</a></article></body></html>`,
	}}
	d := newDispatcher(f, nil)

	src := ingest.Source{
		ID:          "s1",
		HomepageURL: "https://site.example.com",
		FetchMode:   ingest.FetchModeAuto,
	}

	items, method, err := d.Fetch(context.Background(), src, 10, ingest.FetchModeRSS)
	require.ErrorIs(t, err, ingest.ErrNoFeedConfigured)
	require.Equal(t, "rss", method)
	require.Nil(t, items)
	require.Empty(t, f.calls, "a failed explicit request must not fetch anything else")
}

func TestExplicitEmptyResultReturnedAsIs(t *testing.T) {
	t.Parallel()

	f := &fakeFetcher{pages: map[string]string{
		"https://site.example.com":      `<html><body><div>no links</div></body></html>`,
		"https://site.example.com/feed": rssPayload(5),
	}}
	d := newDispatcher(f, nil)

	src := ingest.Source{
		ID:          "s1",
		HomepageURL: "https://site.example.com",
		RSSURL:      "https://site.example.com/feed",
	}

	items, method, err := d.Fetch(context.Background(), src, 10, ingest.FetchModeScrape)
	require.NoError(t, err)
	require.Equal(t, "scrape", method)
	require.Empty(t, items, "empty explicit scrape must not fall back to the working feed")
	require.Equal(t, []string{"https://site.example.com"}, f.calls)
}

func TestNonAutoFetchModeHonored(t *testing.T) {
	t.Parallel()

	f := &fakeFetcher{pages: map[string]string{
		"https://site.example.com/feed": rssPayload(7),
	}}
	d := newDispatcher(f, nil)

	src := ingest.Source{
		ID:          "s1",
		HomepageURL: "https://site.example.com",
		RSSURL:      "https://site.example.com/feed",
		FetchMode:   ingest.FetchModeRSS,
	}

	items, method, err := d.Fetch(context.Background(), src, 5, "")
	require.NoError(t, err)
	require.Equal(t, "rss", method)
	require.Len(t, items, 5)
}

func TestHeuristicPrefersAdapter(t *testing.T) {
	t.Parallel()

	reg := adapters.NewRegistry(zap.NewNop(), &fakeAdapter{
		key: "site",
		items: []ingest.CandidateItem{
			{Title: "A", Link: "https://site.example.com/news/a"},
		},
	})
	f := &fakeFetcher{pages: map[string]string{}}
	d := newDispatcher(f, reg)

	src := ingest.Source{
		ID:          "s1",
		HomepageURL: "https://site.example.com",
		RSSURL:      "https://site.example.com/feed",
		AdapterKey:  "site",
		FetchMode:   ingest.FetchModeAuto,
	}

	items, method, err := d.Fetch(context.Background(), src, 10, "")
	require.NoError(t, err)
	require.Equal(t, "adapter", method)
	require.Len(t, items, 1)
	require.Empty(t, f.calls, "adapter heuristic must not touch the feed")
}

func TestAutoCascadeFeedToScrape(t *testing.T) {
	t.Parallel()

	f := &fakeFetcher{pages: map[string]string{
		// No feed page; homepage scrape succeeds.
		"https://site.example.com": `<html><body>
			<article><a href="/news/waiver-wire-week-4">Waiver Wire Week 4</a></article>
			<article><a href="/news/start-sit">Start Sit</a></article>
		</body></html>`,
	}}
	d := newDispatcher(f, nil)

	src := ingest.Source{
		ID:          "s1",
		HomepageURL: "https://site.example.com",
		RSSURL:      "https://site.example.com/feed",
		FetchMode:   ingest.FetchModeAuto,
	}

	items, method, err := d.Fetch(context.Background(), src, 10, "")
	require.NoError(t, err)
	require.Equal(t, "scrape", method)
	require.Len(t, items, 2)
}

func TestAutoAdapterFailureFallsBackToFeed(t *testing.T) {
	t.Parallel()

	reg := adapters.NewRegistry(zap.NewNop(), &fakeAdapter{
		key: "site",
		err: fmt.Errorf("upstream api down"),
	})
	f := &fakeFetcher{pages: map[string]string{
		"https://site.example.com/feed": rssPayload(4),
	}}
	d := newDispatcher(f, reg)

	src := ingest.Source{
		ID:          "s1",
		HomepageURL: "https://site.example.com",
		RSSURL:      "https://site.example.com/feed",
		AdapterKey:  "site",
		FetchMode:   ingest.FetchModeAuto,
	}

	items, method, err := d.Fetch(context.Background(), src, 10, "")
	require.NoError(t, err)
	require.Equal(t, "rss", method)
	require.Len(t, items, 4)
}

func TestAutoEmptySelectorFallsThroughToAutodiscovery(t *testing.T) {
	t.Parallel()

	f := &fakeFetcher{pages: map[string]string{
		"https://site.example.com": `<html><head>
			<link rel="alternate" type="application/rss+xml" href="/hidden/feed.xml">
		</head><body><div>nothing the selector matches</div></body></html>`,
		"https://site.example.com/hidden/feed.xml": rssPayload(2),
	}}
	d := newDispatcher(f, nil)

	src := ingest.Source{
		ID:             "s1",
		HomepageURL:    "https://site.example.com",
		ScrapeSelector: "div.headlines a[href]",
		FetchMode:      ingest.FetchModeAuto,
	}

	items, method, err := d.Fetch(context.Background(), src, 10, "")
	require.NoError(t, err)
	require.Equal(t, "rss", method)
	require.Len(t, items, 2)
	require.Equal(t, []string{
		"https://site.example.com",
		"https://site.example.com/hidden/feed.xml",
	}, f.calls, "the homepage already fetched for the selector is reused for autodiscovery")
}

func TestAutoCascadeReachesSitemap(t *testing.T) {
	t.Parallel()

	f := &fakeFetcher{pages: map[string]string{
		"https://site.example.com": `<html><body><div>rendered client side</div></body></html>`,
		"https://site.example.com/sitemap.xml": `<?xml version="1.0"?>
			<urlset xmlns="http://www.sitemaps.org/schemas/sitemap/0.9">
				<url><loc>https://site.example.com/news/injury-updates</loc></url>
				<url><loc>https://site.example.com/tags/injury</loc></url>
			</urlset>`,
	}}
	d := newDispatcher(f, nil)

	src := ingest.Source{
		ID:          "s1",
		HomepageURL: "https://site.example.com",
		SitemapURL:  "https://site.example.com/sitemap.xml",
		FetchMode:   ingest.FetchModeAuto,
	}

	items, method, err := d.Fetch(context.Background(), src, 10, "")
	require.NoError(t, err)
	require.Equal(t, "sitemap", method)
	require.Len(t, items, 1, "hub paths are filtered from sitemap listings")
	require.Equal(t, "https://site.example.com/news/injury-updates", items[0].Link)
}

func TestAutoCascadeAutodiscoversFeed(t *testing.T) {
	t.Parallel()

	f := &fakeFetcher{pages: map[string]string{
		"https://site.example.com": `<html><head>
			<link rel="alternate" type="application/rss+xml" href="/hidden/feed.xml">
		</head><body><div>nothing scrapable</div></body></html>`,
		"https://site.example.com/hidden/feed.xml": rssPayload(3),
	}}
	d := newDispatcher(f, nil)

	src := ingest.Source{
		ID:          "s1",
		HomepageURL: "https://site.example.com",
		FetchMode:   ingest.FetchModeAuto,
	}

	items, method, err := d.Fetch(context.Background(), src, 10, "")
	require.NoError(t, err)
	require.Equal(t, "rss", method)
	require.Len(t, items, 3)
}

func TestAutoCascadeExhausted(t *testing.T) {
	t.Parallel()

	f := &fakeFetcher{pages: map[string]string{
		"https://site.example.com": `<html><body><div>nothing</div></body></html>`,
	}}
	d := newDispatcher(f, nil)

	src := ingest.Source{
		ID:          "s1",
		HomepageURL: "https://site.example.com",
		FetchMode:   ingest.FetchModeAuto,
	}

	items, _, err := d.Fetch(context.Background(), src, 10, "")
	require.Error(t, err)
	require.Empty(t, items)
}
