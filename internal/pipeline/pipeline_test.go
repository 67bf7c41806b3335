package pipeline

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/huddlewire/article-ingest/internal/adapters"
	"github.com/huddlewire/article-ingest/internal/archive"
	"github.com/huddlewire/article-ingest/internal/dispatch"
	"github.com/huddlewire/article-ingest/internal/feeds"
	"github.com/huddlewire/article-ingest/internal/fetch"
	"github.com/huddlewire/article-ingest/internal/ingest"
	pubmemory "github.com/huddlewire/article-ingest/internal/publisher/memory"
	"github.com/huddlewire/article-ingest/internal/store/memory"
)

type fakeFetcher struct {
	mu    sync.Mutex
	pages map[string]string
	fails map[string]error
}

func (f *fakeFetcher) Fetch(_ context.Context, url string) (ingest.Page, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err, ok := f.fails[url]; ok {
		return ingest.Page{}, err
	}
	body, ok := f.pages[url]
	if !ok {
		return ingest.Page{}, fmt.Errorf("unexpected fetch %s", url)
	}
	return ingest.Page{URL: url, StatusCode: 200, Body: []byte(body)}, nil
}

func rssPayload(host string, n int) string {
	var b strings.Builder
	b.WriteString(`<?xml version="1.0"?><rss version="2.0"><channel><title>Site</title>`)
	for i := 0; i < n; i++ {
		fmt.Fprintf(&b, `<item><title>Week 3 Waiver Wire Targets %d</title><link>https://%s/article-%d</link></item>`, i, host, i)
	}
	b.WriteString(`</channel></rss>`)
	return b.String()
}

func newTestOrchestrator(t *testing.T, fetcher ingest.HTMLFetcher, sources *memory.SourceStore, cfg Config) (*Orchestrator, *memory.ArticleStore, *pubmemory.Publisher) {
	t.Helper()
	logger := zap.NewNop()
	dispatcher := dispatch.NewDispatcher(
		fetcher, nil, fetch.NewRenderDetector(0), feeds.NewParser(),
		adapters.NewRegistry(logger), logger)
	articles := memory.NewArticleStore()
	publisher := pubmemory.New()
	if cfg.EventTopic == "" {
		cfg.EventTopic = "articles.upserted"
	}
	orch := New(sources, articles, dispatcher, nil, publisher, nil, nil, cfg, logger)
	return orch, articles, publisher
}

func TestIngestSourcePersistsAndPublishes(t *testing.T) {
	t.Parallel()

	src := ingest.Source{
		ID:          "rotoguru",
		HomepageURL: "https://rotoguru.example.com",
		RSSURL:      "https://rotoguru.example.com/feed.xml",
		FetchMode:   ingest.FetchModeRSS,
		Allowed:     true,
	}
	fetcher := &fakeFetcher{pages: map[string]string{
		src.RSSURL: rssPayload("rotoguru.example.com", 3),
	}}
	orch, articles, publisher := newTestOrchestrator(t, fetcher, memory.NewSourceStore(src), Config{})

	result, err := orch.IngestSource(context.Background(), "rotoguru", "")
	require.NoError(t, err)
	require.NotEmpty(t, result.RunID)
	require.Equal(t, 3, result.Counters.Fetched)
	require.Equal(t, 3, result.Counters.Inserted)
	require.Zero(t, result.Counters.Errors)
	require.Equal(t, 3, articles.Len())

	stored, err := articles.GetByCanonicalURL(context.Background(), "https://rotoguru.example.com/article-0")
	require.NoError(t, err)
	require.Contains(t, stored.Topics, "waiver-wire")
	require.NotNil(t, stored.Week)
	require.Equal(t, 3, *stored.Week)
	require.NotEmpty(t, stored.Fingerprint)

	messages := publisher.Messages()
	require.Len(t, messages, 3)
	require.Equal(t, "articles.upserted", messages[0].Topic)
	event, ok := messages[0].Payload.(ingest.UpsertEvent)
	require.True(t, ok)
	require.Equal(t, result.RunID, event.RunID)
	require.True(t, event.Created)
}

func TestIngestSourceRerunUpdatesInsteadOfDuplicating(t *testing.T) {
	t.Parallel()

	src := ingest.Source{
		ID:          "rotoguru",
		HomepageURL: "https://rotoguru.example.com",
		RSSURL:      "https://rotoguru.example.com/feed.xml",
		FetchMode:   ingest.FetchModeRSS,
		Allowed:     true,
	}
	fetcher := &fakeFetcher{pages: map[string]string{
		src.RSSURL: rssPayload("rotoguru.example.com", 2),
	}}
	orch, articles, _ := newTestOrchestrator(t, fetcher, memory.NewSourceStore(src), Config{})

	first, err := orch.IngestSource(context.Background(), "rotoguru", "")
	require.NoError(t, err)
	require.Equal(t, 2, first.Counters.Inserted)

	second, err := orch.IngestSource(context.Background(), "rotoguru", "")
	require.NoError(t, err)
	require.Zero(t, second.Counters.Inserted)
	require.Equal(t, 2, second.Counters.Updated)
	require.Equal(t, 2, articles.Len())
}

func TestIngestSourceUnknownID(t *testing.T) {
	t.Parallel()

	orch, _, _ := newTestOrchestrator(t, &fakeFetcher{}, memory.NewSourceStore(), Config{})
	_, err := orch.IngestSource(context.Background(), "missing", "")
	require.Error(t, err)
}

func TestIngestAllIsolatesFailingSource(t *testing.T) {
	t.Parallel()

	healthy := ingest.Source{
		ID:          "healthy",
		HomepageURL: "https://healthy.example.com",
		RSSURL:      "https://healthy.example.com/feed.xml",
		FetchMode:   ingest.FetchModeRSS,
		Allowed:     true,
		Priority:    2,
	}
	broken := ingest.Source{
		ID:          "broken",
		HomepageURL: "https://broken.example.com",
		RSSURL:      "https://broken.example.com/feed.xml",
		FetchMode:   ingest.FetchModeRSS,
		Allowed:     true,
		Priority:    1,
	}
	fetcher := &fakeFetcher{
		pages: map[string]string{
			healthy.RSSURL: rssPayload("healthy.example.com", 4),
		},
		fails: map[string]error{
			broken.RSSURL: fmt.Errorf("connection refused"),
		},
	}
	orch, articles, _ := newTestOrchestrator(t, fetcher,
		memory.NewSourceStore(healthy, broken), Config{Workers: 2})

	result, err := orch.IngestAll(context.Background())
	require.NoError(t, err)
	require.Len(t, result.Sources, 2)
	require.Equal(t, 4, result.Sources["healthy"].Inserted)
	require.Equal(t, 1, result.Sources["broken"].Errors)
	require.Equal(t, 4, result.Counters.Inserted)
	require.Equal(t, 1, result.Counters.Errors)
	require.Equal(t, 4, articles.Len())
}

func TestIngestAllNoSources(t *testing.T) {
	t.Parallel()

	orch, _, _ := newTestOrchestrator(t, &fakeFetcher{}, memory.NewSourceStore(), Config{})
	result, err := orch.IngestAll(context.Background())
	require.NoError(t, err)
	require.Empty(t, result.Sources)
	require.Zero(t, result.Counters.Fetched)
}

func TestIngestSourceArchivesFetchedPayload(t *testing.T) {
	t.Parallel()

	src := ingest.Source{
		ID:          "rotoguru",
		HomepageURL: "https://rotoguru.example.com",
		RSSURL:      "https://rotoguru.example.com/feed.xml",
		FetchMode:   ingest.FetchModeRSS,
		Allowed:     true,
	}
	fetcher := &fakeFetcher{pages: map[string]string{
		src.RSSURL: rssPayload("rotoguru.example.com", 1),
	}}
	logger := zap.NewNop()
	dispatcher := dispatch.NewDispatcher(
		fetcher, nil, fetch.NewRenderDetector(0), feeds.NewParser(),
		adapters.NewRegistry(logger), logger)
	snapshots := archive.NewMemory()
	orch := New(memory.NewSourceStore(src), memory.NewArticleStore(), dispatcher,
		nil, nil, snapshots, nil, Config{}, logger)

	_, err := orch.IngestSource(context.Background(), "rotoguru", "")
	require.NoError(t, err)
	require.Equal(t, 1, snapshots.Len())
}

func TestArchiveSnapshot(t *testing.T) {
	t.Parallel()

	snapshots := archive.NewMemory()
	orch := New(memory.NewSourceStore(), memory.NewArticleStore(), nil, nil,
		nil, snapshots, nil, Config{}, zap.NewNop())

	uri, err := orch.ArchiveSnapshot(context.Background(), "rotoguru", []byte("<html>body</html>"))
	require.NoError(t, err)
	require.True(t, strings.HasPrefix(uri, "mem://"))
	require.Contains(t, uri, "snapshots/rotoguru/")
	require.Equal(t, 1, snapshots.Len())

	// Same payload hashes to the same path.
	again, err := orch.ArchiveSnapshot(context.Background(), "rotoguru", []byte("<html>body</html>"))
	require.NoError(t, err)
	require.Equal(t, uri, again)
	require.Equal(t, 1, snapshots.Len())
}

func TestArchiveSnapshotDisabled(t *testing.T) {
	t.Parallel()

	orch := New(memory.NewSourceStore(), memory.NewArticleStore(), nil, nil,
		nil, nil, nil, Config{}, zap.NewNop())
	uri, err := orch.ArchiveSnapshot(context.Background(), "rotoguru", []byte("<html>"))
	require.NoError(t, err)
	require.Empty(t, uri)
}
