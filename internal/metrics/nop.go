package metrics

import (
	"time"
)

// NopMetrics is a no-op implementation of the Metrics interface.
// Use this when metrics collection is disabled.
type NopMetrics struct{}

// NewNopMetrics creates a new NopMetrics instance.
func NewNopMetrics() *NopMetrics {
	return &NopMetrics{}
}

func (m *NopMetrics) IncCacheHits(kind string)   {}
func (m *NopMetrics) IncCacheMisses(kind string) {}

func (m *NopMetrics) IncStorageFetches(kind string)                          {}
func (m *NopMetrics) ObserveFetchLatency(kind string, latency time.Duration) {}
func (m *NopMetrics) AddBlocksSaved(count int)                               {}
func (m *NopMetrics) AddBlocksDeleted(count int)                             {}

func (m *NopMetrics) IncFormSubmissions(outcome string) {}

func (m *NopMetrics) AddSweeperDeleted(count int) {}

var _ Metrics = (*NopMetrics)(nil)
