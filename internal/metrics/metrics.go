package metrics

import (
	"time"
)

// Metrics defines the interface for collecting block storage metrics.
// All methods are safe for concurrent use and non-blocking.
type Metrics interface {
	// Cache metrics
	IncCacheHits(kind string)
	IncCacheMisses(kind string)

	// Storage metrics
	IncStorageFetches(kind string)
	ObserveFetchLatency(kind string, latency time.Duration)
	AddBlocksSaved(count int)
	AddBlocksDeleted(count int)

	// Form metrics
	IncFormSubmissions(outcome string)

	// Sweeper metrics
	AddSweeperDeleted(count int)
}

// Form submission outcomes.
const (
	OutcomeSaved    = "saved"
	OutcomeRejected = "rejected"
	OutcomeFailed   = "failed"
)
