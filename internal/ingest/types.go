// Package ingest defines core types shared across the ingestion subsystems.
package ingest

import (
	"time"
)

// FetchMode is the persisted strategy a configured source uses to retrieve
// candidate items.
type FetchMode string

// Fetch mode values persisted on source rows.
const (
	FetchModeAuto    FetchMode = "auto"
	FetchModeRSS     FetchMode = "rss"
	FetchModeScrape  FetchMode = "scrape"
	FetchModeAdapter FetchMode = "adapter"
)

// Source is a configured publisher site. It is written by the external
// probe-and-commit flow and read-only at fetch time. At most one of
// {RSSURL, ScrapeSelector, AdapterKey} is populated; switching FetchMode
// clears the others upstream.
type Source struct {
	ID             string            `json:"id"`
	HomepageURL    string            `json:"homepage_url"`
	RSSURL         string            `json:"rss_url,omitempty"`
	SitemapURL     string            `json:"sitemap_url,omitempty"`
	ScrapeSelector string            `json:"scrape_selector,omitempty"`
	ScrapePath     string            `json:"scrape_path,omitempty"`
	AdapterKey     string            `json:"adapter_key,omitempty"`
	AdapterConfig  map[string]string `json:"adapter_config,omitempty"`
	FetchMode      FetchMode         `json:"fetch_mode"`
	Allowed        bool              `json:"allowed"`
	Priority       int               `json:"priority"`
}

// CandidateItem is an ephemeral item produced by the fetch dispatcher.
// It is never persisted directly.
type CandidateItem struct {
	Title       string     `json:"title"`
	Link        string     `json:"link"`
	PublishedAt *time.Time `json:"published_at,omitempty"`

	// ImageURL carries a structured feed media candidate, when the feed
	// declared one. It is the first tier of the image cascade.
	ImageURL string `json:"image_url,omitempty"`
	// Snippet is an optional short description used by the classifier.
	Snippet string `json:"snippet,omitempty"`
}

// NormalizedArticle is the durable record keyed by CanonicalURL.
// A field already known non-null must never be overwritten with null.
type NormalizedArticle struct {
	CanonicalURL   string     `json:"canonical_url"`
	URL            string     `json:"url"`
	Domain         string     `json:"domain"`
	Title          string     `json:"title"`
	CleanedTitle   string     `json:"cleaned_title"`
	Topics         []string   `json:"topics"`
	PrimaryTopic   string     `json:"primary_topic"`
	SecondaryTopic string     `json:"secondary_topic,omitempty"`
	Week           *int       `json:"week,omitempty"`
	PublishedAt    *time.Time `json:"published_at,omitempty"`
	ImageURL       string     `json:"image_url,omitempty"`
	IsPlayerPage   bool       `json:"is_player_page"`
	Players        []string   `json:"players,omitempty"`
	Fingerprint    string     `json:"fingerprint"`
}

// ImageCacheEntry memoizes one image usability probe. Entries have no TTL;
// a true result is trusted until an external staleness trigger forces a
// re-check.
type ImageCacheEntry struct {
	URL         string    `json:"url"`
	OK          bool      `json:"ok"`
	ContentType string    `json:"content_type,omitempty"`
	Bytes       int64     `json:"bytes"`
	CheckedAt   time.Time `json:"checked_at"`
}

// FeedCandidate records one probed feed URL.
type FeedCandidate struct {
	URL       string `json:"url"`
	OK        bool   `json:"ok"`
	ItemCount int    `json:"item_count"`
	Error     string `json:"error,omitempty"`
}

// ScrapeCandidate records one probed CSS selector.
type ScrapeCandidate struct {
	Selector   string   `json:"selector"`
	OK         bool     `json:"ok"`
	LinkCount  int      `json:"link_count"`
	SampleURLs []string `json:"sample_urls,omitempty"`
	Error      string   `json:"error,omitempty"`
}

// AdapterCandidate records one probed adapter.
type AdapterCandidate struct {
	Key       string `json:"key"`
	OK        bool   `json:"ok"`
	ItemCount int    `json:"item_count"`
	Error     string `json:"error,omitempty"`
}

// Recommendation is the probe engine's proposal for how to configure a
// source. Method is one of "rss", "adapter", "scrape", or "none".
type Recommendation struct {
	Method    string `json:"method"`
	FeedURL   string `json:"feed_url,omitempty"`
	Selector  string `json:"selector,omitempty"`
	Adapter   string `json:"adapter,omitempty"`
	Rationale string `json:"rationale"`
}

// ProbeResult is the ephemeral outcome of probing an unconfigured URL.
// It drives an external commit action and is never persisted.
type ProbeResult struct {
	BaseURL        string             `json:"base_url"`
	Feeds          []FeedCandidate    `json:"feeds"`
	Scrapes        []ScrapeCandidate  `json:"scrapes"`
	Adapters       []AdapterCandidate `json:"adapters"`
	Recommendation Recommendation     `json:"recommendation"`
	Preview        []CandidateItem    `json:"preview"`
}

// RunCounters tracks per-run outcomes so partial-success runs stay
// observable and re-runnable.
type RunCounters struct {
	Fetched   int `json:"fetched"`
	Extracted int `json:"extracted"`
	Inserted  int `json:"inserted"`
	Updated   int `json:"updated"`
	Skipped   int `json:"skipped"`
	Errors    int `json:"errors"`
}

// Add accumulates another run's counters, used when aggregating across
// sources.
func (c *RunCounters) Add(other RunCounters) {
	c.Fetched += other.Fetched
	c.Extracted += other.Extracted
	c.Inserted += other.Inserted
	c.Updated += other.Updated
	c.Skipped += other.Skipped
	c.Errors += other.Errors
}

// UpsertEvent is published after a successful article write for the
// downstream summary and social consumers. They depend only on
// CanonicalURL as a stable reference.
type UpsertEvent struct {
	CanonicalURL string    `json:"canonical_url"`
	SourceID     string    `json:"source_id"`
	RunID        string    `json:"run_id"`
	Created      bool      `json:"created"`
	Timestamp    time.Time `json:"timestamp"`
}
