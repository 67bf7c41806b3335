package images

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/huddlewire/article-ingest/internal/ingest"
	"github.com/huddlewire/article-ingest/internal/metrics"
)

// Prober verifies that an image URL actually serves a plausible image.
// Results are memoized in a durable store; concurrent probes of the same
// URL collapse into one outbound request, and total outbound concurrency
// is bounded by a semaphore.
type Prober struct {
	store  ingest.ImageCacheStore
	client *http.Client
	logger *zap.Logger

	minBytes int64
	timeout  time.Duration

	// Slots acquire in FIFO order because channel receives on a full
	// buffered channel wake waiters in queue order.
	slots chan struct{}

	mu       sync.Mutex
	inflight map[string]*probeCall
}

type probeCall struct {
	done   chan struct{}
	usable bool
}

// ProberOptions carries the tunables for outbound image verification.
type ProberOptions struct {
	MaxConcurrent int
	MinBytes      int64
	Timeout       time.Duration
	UserAgent     string
}

// NewProber wires a verification prober over the given durable cache.
func NewProber(store ingest.ImageCacheStore, opts ProberOptions, logger *zap.Logger) *Prober {
	if opts.MaxConcurrent <= 0 {
		opts.MaxConcurrent = 4
	}
	if opts.MinBytes <= 0 {
		opts.MinBytes = 2048
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 10 * time.Second
	}
	client := &http.Client{
		Timeout:   opts.Timeout,
		Transport: &userAgentTransport{agent: opts.UserAgent, next: http.DefaultTransport},
	}
	return &Prober{
		store:    store,
		client:   client,
		logger:   logger,
		minBytes: opts.MinBytes,
		timeout:  opts.Timeout,
		slots:    make(chan struct{}, opts.MaxConcurrent),
		inflight: make(map[string]*probeCall),
	}
}

type userAgentTransport struct {
	agent string
	next  http.RoundTripper
}

func (t *userAgentTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	if t.agent != "" {
		req.Header.Set("User-Agent", t.agent)
	}
	return t.next.RoundTrip(req)
}

// IsUsable reports whether the image URL serves real image bytes. A cached
// verdict is trusted indefinitely in either direction, so transient origin
// failures need a cache flush to retry.
func (p *Prober) IsUsable(ctx context.Context, url string) bool {
	if entry, err := p.store.Get(ctx, url); err == nil && entry != nil {
		metrics.IncImageProbeCached()
		return entry.OK
	}

	p.mu.Lock()
	if call, ok := p.inflight[url]; ok {
		p.mu.Unlock()
		select {
		case <-call.done:
			return call.usable
		case <-ctx.Done():
			return false
		}
	}
	call := &probeCall{done: make(chan struct{})}
	p.inflight[url] = call
	p.mu.Unlock()

	call.usable = p.probe(ctx, url)
	close(call.done)

	p.mu.Lock()
	delete(p.inflight, url)
	p.mu.Unlock()

	return call.usable
}

// probe acquires a slot, performs the network verification, and persists
// the verdict regardless of outcome.
func (p *Prober) probe(ctx context.Context, url string) bool {
	select {
	case p.slots <- struct{}{}:
	case <-ctx.Done():
		return false
	}
	defer func() { <-p.slots }()

	start := time.Now()
	verdict := p.verify(ctx, url)
	result := "unusable"
	if verdict.ok {
		result = "usable"
	}
	metrics.ObserveImageProbe(result, time.Since(start))
	if !verdict.ok {
		p.logger.Debug("image rejected",
			zap.String("url", url), zap.String("reason", verdict.reason))
	}

	entry := &ingest.ImageCacheEntry{
		URL:         url,
		OK:          verdict.ok,
		ContentType: verdict.contentType,
		Bytes:       verdict.bytes,
		CheckedAt:   time.Now().UTC(),
	}
	if err := p.store.Put(ctx, entry); err != nil {
		p.logger.Warn("image cache persist failed", zap.String("url", url), zap.Error(err))
	}
	return verdict.ok
}

type probeVerdict struct {
	ok          bool
	contentType string
	bytes       int64
	reason      string
}

// verify runs a HEAD first and falls back to a ranged GET when HEAD is
// refused or uninformative.
func (p *Prober) verify(ctx context.Context, url string) probeVerdict {
	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	verdict, conclusive := p.head(ctx, url)
	if conclusive {
		return verdict
	}
	return p.rangedGet(ctx, url)
}

func (p *Prober) head(ctx context.Context, url string) (probeVerdict, bool) {
	req, err := http.NewRequestWithContext(ctx, http.MethodHead, url, nil)
	if err != nil {
		return probeVerdict{reason: "invalid url: " + err.Error()}, true
	}
	resp, err := p.client.Do(req)
	if err != nil {
		return probeVerdict{}, false
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusMethodNotAllowed, resp.StatusCode == http.StatusNotImplemented:
		return probeVerdict{}, false
	case resp.StatusCode != http.StatusOK:
		return probeVerdict{reason: fmt.Sprintf("head status %d", resp.StatusCode)}, true
	}

	ct := resp.Header.Get("Content-Type")
	if !isImageContentType(ct) {
		// Some CDNs omit or mangle the type on HEAD; let GET decide.
		if ct == "" {
			return probeVerdict{}, false
		}
		return probeVerdict{contentType: ct, reason: "content-type " + ct}, true
	}
	if resp.ContentLength < 0 {
		return probeVerdict{}, false
	}
	if resp.ContentLength < p.minBytes {
		return probeVerdict{
			contentType: ct,
			bytes:       resp.ContentLength,
			reason:      fmt.Sprintf("content-length %d below minimum", resp.ContentLength),
		}, true
	}
	return probeVerdict{ok: true, contentType: ct, bytes: resp.ContentLength}, true
}

func (p *Prober) rangedGet(ctx context.Context, url string) probeVerdict {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return probeVerdict{reason: "invalid url: " + err.Error()}
	}
	req.Header.Set("Range", "bytes=0-2047")

	resp, err := p.client.Do(req)
	if err != nil {
		return probeVerdict{reason: "request failed: " + err.Error()}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusPartialContent {
		return probeVerdict{reason: fmt.Sprintf("get status %d", resp.StatusCode)}
	}

	buf := make([]byte, 512)
	n, _ := io.ReadFull(resp.Body, buf)
	sniffed := http.DetectContentType(buf[:n])
	if !isImageContentType(sniffed) {
		return probeVerdict{contentType: sniffed, reason: "sniffed " + sniffed}
	}

	total := resp.ContentLength
	if resp.StatusCode == http.StatusPartialContent {
		total = totalFromContentRange(resp.Header.Get("Content-Range"))
	}
	if total > 0 && total < p.minBytes {
		return probeVerdict{
			contentType: sniffed,
			bytes:       total,
			reason:      fmt.Sprintf("total size %d below minimum", total),
		}
	}
	return probeVerdict{ok: true, contentType: sniffed, bytes: total}
}

func isImageContentType(ct string) bool {
	ct = strings.ToLower(strings.TrimSpace(ct))
	if i := strings.IndexByte(ct, ';'); i >= 0 {
		ct = strings.TrimSpace(ct[:i])
	}
	if !strings.HasPrefix(ct, "image/") {
		return false
	}
	return ct != "image/svg+xml" && ct != "image/x-icon" && ct != "image/vnd.microsoft.icon"
}

// totalFromContentRange extracts the total size from "bytes 0-2047/52310".
func totalFromContentRange(header string) int64 {
	i := strings.LastIndexByte(header, '/')
	if i < 0 || i == len(header)-1 {
		return 0
	}
	var total int64
	if _, err := fmt.Sscanf(header[i+1:], "%d", &total); err != nil {
		return 0
	}
	return total
}
