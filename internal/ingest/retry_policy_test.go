package ingest

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestShouldRetryTransientErrors(t *testing.T) {
	t.Parallel()

	p := NewExponentialRetryPolicy()
	transient := &TransientError{StatusCode: 503, Err: errors.New("upstream")}

	require.True(t, p.ShouldRetry(transient, 0))
	require.True(t, p.ShouldRetry(fmt.Errorf("fetch: %w", transient), 1))
	require.False(t, p.ShouldRetry(transient, 3))
}

func TestShouldNotRetryPermanentOrCanceled(t *testing.T) {
	t.Parallel()

	p := NewExponentialRetryPolicy()

	require.False(t, p.ShouldRetry(nil, 0))
	require.False(t, p.ShouldRetry(errors.New("404 not found"), 0))
	require.False(t, p.ShouldRetry(context.Canceled, 0))
	require.False(t, p.ShouldRetry(fmt.Errorf("fetch: %w", context.DeadlineExceeded), 0))
}

func TestBackoffGrowsAndStaysBounded(t *testing.T) {
	t.Parallel()

	p := NewRetryPolicy(5, 100*time.Millisecond, time.Second)

	first := p.Backoff(0)
	require.Greater(t, first, time.Duration(0))
	require.LessOrEqual(t, first, 100*time.Millisecond)

	// Deep attempts clamp to the max delay.
	deep := p.Backoff(10)
	require.LessOrEqual(t, deep, time.Second)
}

func TestStrategyForRequiresConfiguredFields(t *testing.T) {
	t.Parallel()

	src := Source{
		ID:     "site",
		RSSURL: "https://site.example.com/feed",
	}

	strategy, err := StrategyFor(src, FetchModeRSS)
	require.NoError(t, err)
	require.Equal(t, "rss", strategy.Method())

	_, err = StrategyFor(Source{ID: "bare"}, FetchModeRSS)
	require.ErrorIs(t, err, ErrNoFeedConfigured)

	_, err = StrategyFor(Source{ID: "bare"}, FetchModeAdapter)
	require.ErrorIs(t, err, ErrNoAdapterConfigured)

	// Scrape always resolves; an empty selector falls back downstream.
	strategy, err = StrategyFor(Source{ID: "bare"}, FetchModeScrape)
	require.NoError(t, err)
	require.Equal(t, "scrape", strategy.Method())

	_, err = StrategyFor(src, FetchModeAuto)
	require.Error(t, err)
}
