package ingest

import "errors"

// Sentinel errors shared across the pipeline. Configuration sentinels are
// hard errors only when a method was explicitly requested; in auto mode the
// dispatcher treats them as a skipped stage.
var (
	ErrNotFound            = errors.New("not found")
	ErrNoFeedConfigured    = errors.New("source has no feed url configured")
	ErrNoAdapterConfigured = errors.New("source has no adapter configured")
	ErrUnknownAdapter      = errors.New("unknown adapter key")
	ErrNoItems             = errors.New("no items yielded")
)
