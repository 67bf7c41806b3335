package adapters

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/huddlewire/article-ingest/internal/ingest"
)

type panicAdapter struct{}

func (panicAdapter) Key() string { return "broken" }
func (panicAdapter) Match(host string) bool { return host == "broken.example.com" }
func (panicAdapter) Preview(context.Context, int) ([]ingest.CandidateItem, error) {
	panic("listing blew up")
}
func (panicAdapter) Index(context.Context) ([]ingest.CandidateItem, error) {
	panic("listing blew up")
}
func (panicAdapter) Article(context.Context, string) (*ingest.CandidateItem, error) {
	panic("article blew up")
}

func TestRegistryLookupAndMatch(t *testing.T) {
	t.Parallel()

	reg := DefaultRegistry(nil, "huddlewire-test", zap.NewNop())

	a, ok := reg.Lookup("fantasypros")
	require.True(t, ok)
	require.Equal(t, "fantasypros", a.Key())

	_, ok = reg.Lookup("nope")
	require.False(t, ok)

	a, ok = reg.ForHost("www.rotowire.com")
	require.True(t, ok)
	require.Equal(t, "rotowire", a.Key())

	require.Equal(t, []string{"fantasypros", "rotowire"}, reg.Keys())
}

func TestRegistryRecoversAdapterPanic(t *testing.T) {
	t.Parallel()

	reg := NewRegistry(zap.NewNop(), panicAdapter{})
	a, ok := reg.Lookup("broken")
	require.True(t, ok)

	items, err := a.Index(context.Background())
	require.Error(t, err)
	require.Contains(t, err.Error(), "panicked")
	require.Nil(t, items)

	art, err := a.Article(context.Background(), "https://broken.example.com/x")
	require.Error(t, err)
	require.Nil(t, art)
}

func TestFantasyProsIndex(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "application/json", r.Header.Get("Accept"))
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"articles":[
			{"title":"Week 4 Waiver Wire Targets","url":"https://www.fantasypros.com/2026/09/week-4-waiver-wire/","published":"2026-09-22T09:30:00Z","image_url":"https://images.fantasypros.com/waiver.jpg","summary":"Adds for week 4."},
			{"title":"relative link dropped","url":"/2026/09/relative/"}
		]}`))
	}))
	t.Cleanup(srv.Close)

	a := NewFantasyProsAdapter(srv.Client(), "huddlewire-test")
	a.apiURL = srv.URL

	items, err := a.Index(context.Background())
	require.NoError(t, err)
	require.Len(t, items, 1)
	require.Equal(t, "Week 4 Waiver Wire Targets", items[0].Title)
	require.NotNil(t, items[0].PublishedAt)
	require.Equal(t, time.Date(2026, 9, 22, 9, 30, 0, 0, time.UTC), items[0].PublishedAt.UTC())

	preview, err := a.Preview(context.Background(), 1)
	require.NoError(t, err)
	require.Len(t, preview, 1)
}

func TestFantasyProsIndexServerError(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	t.Cleanup(srv.Close)

	a := NewFantasyProsAdapter(srv.Client(), "")
	a.apiURL = srv.URL

	_, err := a.Index(context.Background())
	var transient *ingest.TransientError
	require.ErrorAs(t, err, &transient)
	require.Equal(t, http.StatusBadGateway, transient.StatusCode)
}

const rotowireSitemap = `<?xml version="1.0" encoding="UTF-8"?>
<urlset xmlns="http://www.sitemaps.org/schemas/sitemap/0.9"
        xmlns:news="http://www.google.com/schemas/sitemap-news/0.9"
        xmlns:image="http://www.google.com/schemas/sitemap-image/1.1">
  <url>
    <loc>https://www.rotowire.com/football/article/start-sit-week-3</loc>
    <news:news>
      <news:title>Start or Sit: Week 3 Calls</news:title>
      <news:publication_date>2026-09-17T12:00:00Z</news:publication_date>
    </news:news>
    <image:image>
      <image:loc>https://img.rotowire.com/start-sit.jpg</image:loc>
    </image:image>
  </url>
</urlset>`

func TestRotowireIndexParsesNewsSitemap(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/xml")
		w.Write([]byte(rotowireSitemap))
	}))
	t.Cleanup(srv.Close)

	a := NewRotowireAdapter(srv.Client(), "huddlewire-test")
	a.sitemapURL = srv.URL

	items, err := a.Index(context.Background())
	require.NoError(t, err)
	require.Len(t, items, 1)
	require.Equal(t, "Start or Sit: Week 3 Calls", items[0].Title)
	require.Equal(t, "https://img.rotowire.com/start-sit.jpg", items[0].ImageURL)
	require.NotNil(t, items[0].PublishedAt)
}

func TestRotowireArticleFallsBackToPageMeta(t *testing.T) {
	t.Parallel()

	mux := http.NewServeMux()
	mux.HandleFunc("/sitemap-news.xml", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(rotowireSitemap))
	})
	mux.HandleFunc("/football/article/older-piece", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`<html><head>
			<meta property="og:title" content="Target Share Risers">
			<meta property="og:image" content="https://img.rotowire.com/targets.jpg">
			<meta property="article:published_time" content="2026-09-10T08:00:00Z">
		</head><body></body></html>`))
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)

	a := NewRotowireAdapter(srv.Client(), "")
	a.sitemapURL = srv.URL + "/sitemap-news.xml"

	item, err := a.Article(context.Background(), srv.URL+"/football/article/older-piece")
	require.NoError(t, err)
	require.Equal(t, "Target Share Risers", item.Title)
	require.Equal(t, "https://img.rotowire.com/targets.jpg", item.ImageURL)
	require.NotNil(t, item.PublishedAt)
}
