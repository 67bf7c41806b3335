package images

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/huddlewire/article-ingest/internal/ingest"
)

type fakeProber struct {
	mu     sync.Mutex
	usable map[string]bool
	probed []string
}

func (p *fakeProber) IsUsable(_ context.Context, url string) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.probed = append(p.probed, url)
	return p.usable[url]
}

type fakeFetcher struct {
	pages map[string]string
	calls int
}

func (f *fakeFetcher) Fetch(_ context.Context, url string) (ingest.Page, error) {
	f.calls++
	body, ok := f.pages[url]
	if !ok {
		return ingest.Page{}, ingest.ErrNotFound
	}
	return ingest.Page{URL: url, StatusCode: 200, Body: []byte(body)}, nil
}

func TestResolveFeedImageWins(t *testing.T) {
	t.Parallel()

	prober := &fakeProber{usable: map[string]bool{
		"https://example.com/uploads/hero.jpg": true,
	}}
	fetcher := &fakeFetcher{}
	r := NewResolver(fetcher, prober, 200, "", zap.NewNop())

	got := r.Resolve(context.Background(), Request{
		CanonicalURL: "https://example.com/article",
		FeedImageURL: "https://example.com/uploads/hero.jpg",
	})
	require.Equal(t, "https://example.com/uploads/hero.jpg", got)
	require.Zero(t, fetcher.calls, "usable feed image must short-circuit the page fetch")
}

func TestResolveFallsThroughToOpenGraph(t *testing.T) {
	t.Parallel()

	const page = `<html><head>
		<meta property="og:image" content="/img/og-hero.jpg">
		<meta name="twitter:image" content="https://example.com/img/tw-hero.jpg">
	</head><body></body></html>`

	prober := &fakeProber{usable: map[string]bool{
		"https://example.com/img/tw-hero.jpg": true,
	}}
	fetcher := &fakeFetcher{pages: map[string]string{
		"https://example.com/article": page,
	}}
	r := NewResolver(fetcher, prober, 200, "", zap.NewNop())

	got := r.Resolve(context.Background(), Request{
		CanonicalURL: "https://example.com/article",
		FeedImageURL: "https://example.com/favicon.ico",
	})
	require.Equal(t, "https://example.com/img/tw-hero.jpg", got)
	// The relative og:image was absolutized and probed first.
	require.Contains(t, prober.probed, "https://example.com/img/og-hero.jpg")
}

func TestResolveScrapesJSONLDAndBody(t *testing.T) {
	t.Parallel()

	const page = `<html><head>
		<script type="application/ld+json">
		{"@type":"NewsArticle","image":{"url":"https://example.com/img/ld-hero.jpg"}}
		</script>
	</head><body>
		<article><img src="https://example.com/img/inline.jpg"></article>
	</body></html>`

	prober := &fakeProber{usable: map[string]bool{
		"https://example.com/img/inline.jpg": true,
	}}
	r := NewResolver(&fakeFetcher{}, prober, 200, "", zap.NewNop())

	got := r.Resolve(context.Background(), Request{
		CanonicalURL: "https://example.com/article",
		PageHTML:     page,
	})
	require.Equal(t, "https://example.com/img/inline.jpg", got)
	require.Contains(t, prober.probed, "https://example.com/img/ld-hero.jpg")
}

func TestResolveHeadshotForPlayerPage(t *testing.T) {
	t.Parallel()

	prober := &fakeProber{usable: map[string]bool{
		"https://cdn.example.com/headshots/christian-mccaffrey.png": true,
	}}
	r := NewResolver(&fakeFetcher{}, prober, 200, "https://cdn.example.com/headshots", zap.NewNop())

	got := r.Resolve(context.Background(), Request{
		CanonicalURL: "https://example.com/players/christian-mccaffrey",
		PageHTML:     "<html><body>no images here</body></html>",
		IsPlayerPage: true,
		Players:      []string{"Christian McCaffrey"},
	})
	require.Equal(t, "https://cdn.example.com/headshots/christian-mccaffrey.png", got)
}

func TestResolveHeadshotSkippedForMultiplePlayers(t *testing.T) {
	t.Parallel()

	prober := &fakeProber{usable: map[string]bool{}}
	r := NewResolver(&fakeFetcher{}, prober, 200, "https://cdn.example.com/headshots", zap.NewNop())

	got := r.Resolve(context.Background(), Request{
		PageHTML:     "<html><body></body></html>",
		IsPlayerPage: true,
		Players:      []string{"Justin Jefferson", "CeeDee Lamb"},
	})
	require.Empty(t, got)
	require.Empty(t, prober.probed)
}

func TestResolveNoImageIsValid(t *testing.T) {
	t.Parallel()

	r := NewResolver(&fakeFetcher{}, &fakeProber{usable: map[string]bool{}}, 200, "", zap.NewNop())
	got := r.Resolve(context.Background(), Request{
		CanonicalURL: "https://example.com/article",
		PageHTML:     "<html><body><p>words only</p></body></html>",
	})
	require.Empty(t, got)
}
