package ingest

import "fmt"

// Strategy is a closed tagged variant describing how to fetch one source.
// Each case carries only the fields its method requires; dispatch happens
// by exhaustive type switch rather than string comparison.
type Strategy interface {
	strategy()
	Method() string
}

// RSSStrategy fetches a syndication feed.
type RSSStrategy struct {
	FeedURL string
}

// ScrapeStrategy extracts links from homepage markup.
type ScrapeStrategy struct {
	Selector string
	Path     string
}

// AdapterStrategy delegates to a registered per-publisher adapter.
type AdapterStrategy struct {
	Key    string
	Config map[string]string
}

func (RSSStrategy) strategy()     {}
func (ScrapeStrategy) strategy()  {}
func (AdapterStrategy) strategy() {}

// Method names the strategy for logs and rationale strings.
func (RSSStrategy) Method() string { return "rss" }
func (ScrapeStrategy) Method() string { return "scrape" }
func (AdapterStrategy) Method() string { return "adapter" }

// StrategyFor resolves a non-auto fetch mode into its strategy, or returns
// the matching configuration sentinel when the mode's required field is
// absent.
func StrategyFor(src Source, mode FetchMode) (Strategy, error) {
	switch mode {
	case FetchModeRSS:
		if src.RSSURL == "" {
			return nil, ErrNoFeedConfigured
		}
		return RSSStrategy{FeedURL: src.RSSURL}, nil
	case FetchModeScrape:
		return ScrapeStrategy{Selector: src.ScrapeSelector, Path: src.ScrapePath}, nil
	case FetchModeAdapter:
		if src.AdapterKey == "" {
			return nil, ErrNoAdapterConfigured
		}
		return AdapterStrategy{Key: src.AdapterKey, Config: src.AdapterConfig}, nil
	default:
		return nil, fmt.Errorf("fetch mode %q has no direct strategy", mode)
	}
}
