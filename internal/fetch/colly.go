// Package fetch retrieves publisher documents over HTTP using gocolly.
package fetch

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/gocolly/colly/v2"

	"github.com/huddlewire/article-ingest/internal/ingest"
)

// Config controls collector behavior.
type Config struct {
	UserAgent      string
	Timeout        time.Duration
	MaxRetries     int
	BackoffInitial time.Duration
	BackoffMax     time.Duration
}

// CollyFetcher implements ingest.HTMLFetcher using the Colly collector.
type CollyFetcher struct {
	cfg           Config
	retry         *ingest.ExponentialRetryPolicy
	baseCollector *colly.Collector
}

// NewCollyFetcher builds a CollyFetcher.
func NewCollyFetcher(cfg Config) *CollyFetcher {
	c := colly.NewCollector(colly.Async(false))
	c.IgnoreRobotsTxt = false
	c.WithTransport(newHTTPTransport())
	return &CollyFetcher{
		cfg:           cfg,
		retry:         ingest.NewRetryPolicy(cfg.MaxRetries, cfg.BackoffInitial, cfg.BackoffMax),
		baseCollector: c,
	}
}

// Fetch executes an HTTP GET, retrying transient failures with jittered
// exponential backoff.
func (f *CollyFetcher) Fetch(ctx context.Context, url string) (ingest.Page, error) {
	var lastErr error
	for attempt := 0; ; attempt++ {
		page, err := f.fetchOnce(ctx, url)
		if err == nil {
			return page, nil
		}
		lastErr = err
		if !f.retry.ShouldRetry(err, attempt) {
			return ingest.Page{}, lastErr
		}
		select {
		case <-ctx.Done():
			return ingest.Page{}, fmt.Errorf("fetch canceled: %w", ctx.Err())
		case <-time.After(f.retry.Backoff(attempt)):
		}
	}
}

func (f *CollyFetcher) fetchOnce(ctx context.Context, url string) (ingest.Page, error) {
	collector := f.baseCollector.Clone()
	if f.cfg.UserAgent != "" {
		collector.UserAgent = f.cfg.UserAgent
	}
	timeout := f.cfg.Timeout
	if timeout == 0 {
		timeout = 15 * time.Second
	}
	collector.SetRequestTimeout(timeout)

	var (
		result   ingest.Page
		fetchErr error
	)
	start := time.Now()

	collector.OnResponse(func(r *colly.Response) {
		result = ingest.Page{
			URL:        r.Request.URL.String(),
			StatusCode: r.StatusCode,
			Body:       append([]byte(nil), r.Body...),
			Duration:   time.Since(start),
		}
	})
	collector.OnError(func(r *colly.Response, err error) {
		status := 0
		if r != nil {
			status = r.StatusCode
		}
		if status >= 500 || status == http.StatusTooManyRequests {
			fetchErr = &ingest.TransientError{StatusCode: status, Err: err}
			return
		}
		var netErr net.Error
		if errors.As(err, &netErr) && netErr.Timeout() {
			fetchErr = &ingest.TransientError{Err: err}
			return
		}
		fetchErr = err
	})

	if err := f.runCollector(ctx, collector, url, &fetchErr); err != nil {
		return ingest.Page{}, err
	}
	return result, nil
}

func (f *CollyFetcher) runCollector(ctx context.Context, collector *colly.Collector, url string, fetchErr *error) error {
	done := make(chan error, 1)
	go func() {
		done <- collector.Visit(url)
	}()

	select {
	case <-ctx.Done():
		return fmt.Errorf("fetch canceled: %w", ctx.Err())
	case err := <-done:
		if *fetchErr != nil {
			return fmt.Errorf("fetch %s: %w", url, *fetchErr)
		}
		if err != nil {
			return fmt.Errorf("visit %s: %w", url, err)
		}
		return nil
	}
}

func newHTTPTransport() *http.Transport {
	return &http.Transport{
		Proxy: http.ProxyFromEnvironment,
		DialContext: (&net.Dialer{
			Timeout:   10 * time.Second,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		TLSHandshakeTimeout:   15 * time.Second,
		ExpectContinueTimeout: 1 * time.Second,
		MaxIdleConns:          100,
		IdleConnTimeout:       90 * time.Second,
	}
}
