// Package pipeline composes dispatch, classification, normalization,
// image resolution, and upsert into source ingestion runs.
package pipeline

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/huddlewire/article-ingest/internal/classify"
	"github.com/huddlewire/article-ingest/internal/dispatch"
	"github.com/huddlewire/article-ingest/internal/images"
	"github.com/huddlewire/article-ingest/internal/ingest"
	"github.com/huddlewire/article-ingest/internal/metrics"
	"github.com/huddlewire/article-ingest/internal/normalize"
)

// Config controls run behavior.
type Config struct {
	// Workers bounds the all-sources pool, clamped to [1,8].
	Workers int
	// ItemBatchSize bounds concurrent per-item enrichment within one
	// source, keeping simultaneous connections to a publisher small.
	ItemBatchSize int
	// ItemLimit caps candidate items pulled per source; 0 means no cap.
	ItemLimit int
	// EventTopic is the Pub/Sub topic for upsert events; empty disables
	// publishing.
	EventTopic string
	// SnapshotContentType tags archived payloads.
	SnapshotContentType string
}

// Orchestrator runs the ingestion pipeline for one or many sources.
type Orchestrator struct {
	sources    ingest.SourceStore
	articles   ingest.ArticleStore
	dispatcher *dispatch.Dispatcher
	resolver   *images.Resolver
	publisher  ingest.Publisher
	snapshots  ingest.SnapshotStore
	clock      ingest.Clock
	logger     *zap.Logger
	cfg        Config
}

// New constructs an orchestrator. publisher and snapshots may be nil to
// disable events and archiving; clock may be nil for wall-clock time.
func New(
	sources ingest.SourceStore,
	articles ingest.ArticleStore,
	dispatcher *dispatch.Dispatcher,
	resolver *images.Resolver,
	publisher ingest.Publisher,
	snapshots ingest.SnapshotStore,
	clock ingest.Clock,
	cfg Config,
	logger *zap.Logger,
) *Orchestrator {
	if cfg.Workers < 1 {
		cfg.Workers = 1
	}
	if cfg.Workers > 8 {
		cfg.Workers = 8
	}
	if cfg.ItemBatchSize <= 0 {
		cfg.ItemBatchSize = 6
	}
	if cfg.SnapshotContentType == "" {
		cfg.SnapshotContentType = "text/html; charset=utf-8"
	}
	if clock == nil {
		clock = systemClock{}
	}
	return &Orchestrator{
		sources:    sources,
		articles:   articles,
		dispatcher: dispatcher,
		resolver:   resolver,
		publisher:  publisher,
		snapshots:  snapshots,
		clock:      clock,
		logger:     logger,
		cfg:        cfg,
	}
}

type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now() }

// RunResult reports one finished run.
type RunResult struct {
	RunID    string                        `json:"run_id"`
	Counters ingest.RunCounters            `json:"counters"`
	Sources  map[string]ingest.RunCounters `json:"sources,omitempty"`
}

// IngestSource runs the pipeline for one source id.
func (o *Orchestrator) IngestSource(ctx context.Context, sourceID string, explicit ingest.FetchMode) (RunResult, error) {
	runID := uuid.NewString()

	src, err := o.sources.GetSource(ctx, sourceID)
	if err != nil {
		return RunResult{RunID: runID}, fmt.Errorf("load source %s: %w", sourceID, err)
	}

	counters := o.ingestOne(ctx, runID, src, explicit)
	return RunResult{
		RunID:    runID,
		Counters: counters,
		Sources:  map[string]ingest.RunCounters{src.ID: counters},
	}, nil
}

// IngestAll runs every allowed source through a bounded worker pool. One
// source's failure is counted, never fatal to siblings.
func (o *Orchestrator) IngestAll(ctx context.Context) (RunResult, error) {
	runID := uuid.NewString()

	sources, err := o.sources.ListAllowedSources(ctx)
	if err != nil {
		return RunResult{RunID: runID}, fmt.Errorf("list sources: %w", err)
	}

	result := RunResult{
		RunID:   runID,
		Sources: make(map[string]ingest.RunCounters, len(sources)),
	}
	if len(sources) == 0 {
		return result, nil
	}

	queue := make(chan ingest.Source)
	var mu sync.Mutex
	var wg sync.WaitGroup

	for i := 0; i < o.cfg.Workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			metrics.IncActiveWorkers()
			defer metrics.DecActiveWorkers()
			for src := range queue {
				counters := o.ingestOne(ctx, runID, src, "")
				mu.Lock()
				result.Sources[src.ID] = counters
				result.Counters.Add(counters)
				mu.Unlock()
			}
		}()
	}

	for _, src := range sources {
		select {
		case queue <- src:
		case <-ctx.Done():
		}
		if ctx.Err() != nil {
			break
		}
	}
	close(queue)
	wg.Wait()

	return result, ctx.Err()
}

// ingestOne is the per-source run: dispatch, then batched per-item
// enrichment and upsert.
func (o *Orchestrator) ingestOne(ctx context.Context, runID string, src ingest.Source, explicit ingest.FetchMode) ingest.RunCounters {
	start := o.clock.Now()
	var counters ingest.RunCounters
	logger := o.logger.With(
		zap.String("run_id", runID),
		zap.String("source_id", src.ID),
	)

	items, method, payload, err := o.dispatcher.FetchWithPayload(ctx, src, o.cfg.ItemLimit, explicit)
	if err != nil {
		logger.Warn("fetch failed", zap.String("method", method), zap.Error(err))
		counters.Errors++
		metrics.ObserveRun(src.HomepageURL, "error", o.clock.Now().Sub(start))
		return counters
	}
	counters.Fetched = len(items)
	logger.Info("fetched candidates",
		zap.String("method", method),
		zap.Int("count", len(items)))

	if uri, aerr := o.ArchiveSnapshot(ctx, src.ID, payload); aerr != nil {
		logger.Warn("snapshot archive failed", zap.Error(aerr))
	} else if uri != "" {
		logger.Debug("snapshot archived", zap.String("uri", uri))
	}

	for batchStart := 0; batchStart < len(items); batchStart += o.cfg.ItemBatchSize {
		end := batchStart + o.cfg.ItemBatchSize
		if end > len(items) {
			end = len(items)
		}
		batch := items[batchStart:end]

		articles := make([]*ingest.NormalizedArticle, len(batch))
		var wg sync.WaitGroup
		for i, item := range batch {
			wg.Add(1)
			go func(i int, item ingest.CandidateItem) {
				defer wg.Done()
				articles[i] = o.enrich(ctx, src, item)
			}(i, item)
		}
		wg.Wait()

		// Writes stay sequential; no transaction spans network I/O.
		for _, article := range articles {
			if article == nil {
				counters.Skipped++
				metrics.ObserveItem(src.HomepageURL, "skipped")
				continue
			}
			counters.Extracted++
			created, err := o.articles.Upsert(ctx, *article)
			if err != nil {
				logger.Warn("upsert failed",
					zap.String("canonical_url", article.CanonicalURL), zap.Error(err))
				counters.Errors++
				metrics.ObserveItem(src.HomepageURL, "error")
				continue
			}
			metrics.ObserveUpsert(created)
			if created {
				counters.Inserted++
				metrics.ObserveItem(src.HomepageURL, "inserted")
			} else {
				counters.Updated++
				metrics.ObserveItem(src.HomepageURL, "updated")
			}
			o.publishEvent(ctx, logger, runID, src.ID, article.CanonicalURL, created)
		}
	}

	status := "ok"
	if counters.Errors > 0 {
		status = "partial"
	}
	metrics.ObserveRun(src.HomepageURL, status, o.clock.Now().Sub(start))
	logger.Info("source run finished",
		zap.Int("fetched", counters.Fetched),
		zap.Int("inserted", counters.Inserted),
		zap.Int("updated", counters.Updated),
		zap.Int("skipped", counters.Skipped),
		zap.Int("errors", counters.Errors))
	return counters
}

// enrich turns one candidate item into a normalized article. Ambiguity
// never fails the item; a nil return means the item was unusable.
func (o *Orchestrator) enrich(ctx context.Context, src ingest.Source, item ingest.CandidateItem) *ingest.NormalizedArticle {
	canonical := normalize.CanonicalURL(item.Link)
	if canonical == "" {
		return nil
	}

	verdict := classify.Classify(classify.Input{
		Title:     item.Title,
		URL:       item.Link,
		Snippet:   item.Snippet,
		Publisher: normalize.Domain(src.HomepageURL),
	})

	cleaned := normalize.CleanTitle(item.Title)
	if verdict.DisplayTitle != "" {
		cleaned = verdict.DisplayTitle
	}

	article := &ingest.NormalizedArticle{
		CanonicalURL:   canonical,
		URL:            item.Link,
		Domain:         normalize.Domain(item.Link),
		Title:          item.Title,
		CleanedTitle:   cleaned,
		Topics:         classify.Strings(verdict.Topics),
		PrimaryTopic:   string(verdict.PrimaryTopic),
		SecondaryTopic: string(verdict.SecondaryTopic),
		Week:           normalize.InferWeek(item.Title, item.Link, o.clock.Now()),
		PublishedAt:    item.PublishedAt,
		IsPlayerPage:   verdict.IsPlayerPage,
		Players:        verdict.Players,
		Fingerprint:    normalize.Fingerprint(canonical, cleaned),
	}

	if o.resolver != nil {
		article.ImageURL = o.resolver.Resolve(ctx, images.Request{
			CanonicalURL: canonical,
			FeedImageURL: item.ImageURL,
			IsPlayerPage: verdict.IsPlayerPage,
			Players:      verdict.Players,
		})
	}
	return article
}

func (o *Orchestrator) publishEvent(ctx context.Context, logger *zap.Logger, runID, sourceID, canonicalURL string, created bool) {
	if o.publisher == nil || o.cfg.EventTopic == "" {
		return
	}
	event := ingest.UpsertEvent{
		CanonicalURL: canonicalURL,
		SourceID:     sourceID,
		RunID:        runID,
		Created:      created,
		Timestamp:    o.clock.Now().UTC(),
	}
	if _, err := o.publisher.Publish(ctx, o.cfg.EventTopic, event); err != nil {
		logger.Warn("event publish failed",
			zap.String("canonical_url", canonicalURL), zap.Error(err))
	}
}

// ArchiveSnapshot stores a raw fetched payload for later replay and
// returns its URI. A nil snapshot store disables archiving.
func (o *Orchestrator) ArchiveSnapshot(ctx context.Context, sourceID string, payload []byte) (string, error) {
	if o.snapshots == nil || len(payload) == 0 {
		return "", nil
	}
	sum := sha256.Sum256(payload)
	path := fmt.Sprintf("snapshots/%s/%s.html", sourceID, hex.EncodeToString(sum[:8]))
	uri, err := o.snapshots.PutObject(ctx, path, o.cfg.SnapshotContentType, payload)
	if err != nil {
		return "", fmt.Errorf("archive snapshot for %s: %w", sourceID, err)
	}
	return uri, nil
}
