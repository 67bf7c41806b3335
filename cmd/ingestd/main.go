// Package main wires together the ingestion service binary.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	gcppubsub "cloud.google.com/go/pubsub"
	"cloud.google.com/go/storage"
	"go.uber.org/zap"

	"github.com/huddlewire/article-ingest/internal/adapters"
	"github.com/huddlewire/article-ingest/internal/api"
	"github.com/huddlewire/article-ingest/internal/archive"
	"github.com/huddlewire/article-ingest/internal/config"
	"github.com/huddlewire/article-ingest/internal/dispatch"
	"github.com/huddlewire/article-ingest/internal/feeds"
	"github.com/huddlewire/article-ingest/internal/fetch"
	"github.com/huddlewire/article-ingest/internal/fetch/headless"
	"github.com/huddlewire/article-ingest/internal/images"
	"github.com/huddlewire/article-ingest/internal/ingest"
	"github.com/huddlewire/article-ingest/internal/logging"
	"github.com/huddlewire/article-ingest/internal/pipeline"
	"github.com/huddlewire/article-ingest/internal/probe"
	memorypublisher "github.com/huddlewire/article-ingest/internal/publisher/memory"
	pubsubpublisher "github.com/huddlewire/article-ingest/internal/publisher/pubsub"
	"github.com/huddlewire/article-ingest/internal/store/memory"
	"github.com/huddlewire/article-ingest/internal/store/postgres"
)

func main() {
	cfgPath := flag.String("config", "", "Path to config file")
	flag.Parse()

	cfg, err := config.Load(*cfgPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "load config failed: %v\n", err)
		os.Exit(1)
	}
	logger, err := logging.New(cfg.Logging.Development, cfg.Logging.Level)
	if err != nil {
		fmt.Fprintf(os.Stderr, "logger init failed: %v\n", err)
		os.Exit(1)
	}
	defer func() {
		if syncErr := logger.Sync(); syncErr != nil {
			fmt.Fprintf(os.Stderr, "logger sync failed: %v\n", syncErr)
		}
	}()
	zap.ReplaceGlobals(logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, logger); err != nil {
		logger.Error("service exited", zap.Error(err))
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg config.Config, logger *zap.Logger) error {
	sources, articles, imageCache, cleanupDB, err := buildStores(ctx, cfg)
	if err != nil {
		return err
	}
	defer cleanupDB()

	publisher, cleanupPub, err := buildPublisher(ctx, cfg)
	if err != nil {
		return err
	}
	defer cleanupPub()

	snapshots, err := buildSnapshots(ctx, cfg)
	if err != nil {
		return err
	}

	fetcher := fetch.NewCollyFetcher(fetch.Config{
		UserAgent:      cfg.Ingest.UserAgent,
		Timeout:        cfg.FetchTimeout(),
		MaxRetries:     cfg.HTTP.MaxRetries,
		BackoffInitial: time.Duration(cfg.HTTP.BackoffInitialMs) * time.Millisecond,
		BackoffMax:     time.Duration(cfg.HTTP.BackoffMaxMs) * time.Millisecond,
	})
	var renderer ingest.HTMLFetcher
	if cfg.Headless.Enabled {
		r := headless.NewRenderer(headless.Config{
			UserAgent:         cfg.Ingest.UserAgent,
			NavigationTimeout: time.Duration(cfg.Headless.NavTimeoutSec) * time.Second,
		})
		defer r.Close()
		renderer = r
	}

	registry := adapters.DefaultRegistry(
		&http.Client{Timeout: cfg.FetchTimeout()},
		cfg.Ingest.UserAgent,
		logger.Named("adapters"),
	)
	parser := feeds.NewParser()
	detector := fetch.NewRenderDetector(0)

	prober := images.NewProber(imageCache, images.ProberOptions{
		MaxConcurrent: cfg.Images.MaxConcurrentProbes,
		MinBytes:      int64(cfg.Images.MinBytes),
		Timeout:       cfg.ProbeTimeout(),
		UserAgent:     cfg.Ingest.UserAgent,
	}, logger.Named("images"))
	resolver := images.NewResolver(
		fetcher, prober, cfg.Images.MinDimension, cfg.Images.HeadshotBaseURL,
		logger.Named("images"))

	dispatcher := dispatch.NewDispatcher(
		fetcher, renderer, detector, parser, registry, logger.Named("dispatch"))

	orchestrator := pipeline.New(
		sources, articles, dispatcher, resolver, publisher, snapshots, nil,
		pipeline.Config{
			Workers:             cfg.Ingest.Workers,
			ItemBatchSize:       cfg.Ingest.ItemBatchSize,
			ItemLimit:           cfg.Ingest.ItemLimit,
			EventTopic:          cfg.PubSub.TopicName,
			SnapshotContentType: cfg.Snapshots.ContentType,
		},
		logger.Named("pipeline"))

	engine := probe.NewEngine(
		fetcher, parser, registry, cfg.Ingest.PreviewLimit, logger.Named("probe"))

	apiServer := api.NewServer(engine, orchestrator, sources, cfg, logger.Named("api"))

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:           apiServer.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		logger.Info("http server started", zap.Int("port", cfg.Server.Port))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http server error", zap.Error(err))
		}
	}()

	<-ctx.Done()
	logger.Info("shutdown initiated")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown: %w", err)
	}
	logger.Info("shutdown complete")
	return nil
}

func buildStores(ctx context.Context, cfg config.Config) (ingest.SourceStore, ingest.ArticleStore, ingest.ImageCacheStore, func(), error) {
	switch cfg.DB.Provider {
	case "postgres":
		lifetime, err := time.ParseDuration(cfg.DB.MaxConnLifetime)
		if err != nil && cfg.DB.MaxConnLifetime != "" {
			return nil, nil, nil, nil, fmt.Errorf("parse db.max_conn_lifetime: %w", err)
		}
		pool, err := postgres.NewPool(ctx, postgres.PoolConfig{
			DSN:             cfg.DB.DSN,
			MaxConns:        cfg.DB.MaxConns,
			MinConns:        cfg.DB.MinConns,
			MaxConnLifetime: lifetime,
		})
		if err != nil {
			return nil, nil, nil, nil, fmt.Errorf("connect postgres: %w", err)
		}
		sources, err := postgres.NewSourceStore(pool)
		if err != nil {
			return nil, nil, nil, nil, err
		}
		articles, err := postgres.NewArticleStore(pool)
		if err != nil {
			return nil, nil, nil, nil, err
		}
		imageCache, err := postgres.NewImageCacheStore(pool)
		if err != nil {
			return nil, nil, nil, nil, err
		}
		return sources, articles, imageCache, pool.Close, nil
	case "memory":
		return memory.NewSourceStore(), memory.NewArticleStore(), memory.NewImageCacheStore(), func() {}, nil
	default:
		return nil, nil, nil, nil, fmt.Errorf("unknown db.provider %q", cfg.DB.Provider)
	}
}

func buildPublisher(ctx context.Context, cfg config.Config) (ingest.Publisher, func(), error) {
	switch cfg.PubSub.Provider {
	case "pubsub":
		client, err := gcppubsub.NewClient(ctx, cfg.PubSub.ProjectID)
		if err != nil {
			return nil, nil, fmt.Errorf("connect pubsub: %w", err)
		}
		pub := pubsubpublisher.New(client)
		return pub, func() { _ = pub.Close() }, nil
	case "memory":
		return memorypublisher.New(), func() {}, nil
	default:
		return nil, nil, fmt.Errorf("unknown pubsub.provider %q", cfg.PubSub.Provider)
	}
}

func buildSnapshots(ctx context.Context, cfg config.Config) (ingest.SnapshotStore, error) {
	switch cfg.Snapshots.Provider {
	case "gcs":
		client, err := storage.NewClient(ctx)
		if err != nil {
			return nil, fmt.Errorf("connect gcs: %w", err)
		}
		return archive.NewGCS(client, archive.GCSConfig{
			Bucket: cfg.Snapshots.GCSBucket,
			Prefix: cfg.Snapshots.Prefix,
		})
	case "local":
		return archive.NewLocal(archive.LocalConfig{BaseDir: cfg.Snapshots.BaseDir})
	case "memory":
		return archive.NewMemory(), nil
	case "none", "":
		return nil, nil
	default:
		return nil, fmt.Errorf("unknown snapshots.provider %q", cfg.Snapshots.Provider)
	}
}
