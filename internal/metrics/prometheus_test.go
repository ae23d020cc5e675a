package metrics

import (
	"io"
	"net/http/httptest"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPrometheusMetrics_Counters(t *testing.T) {
	m := NewPrometheusMetrics("awful")

	m.IncCacheHits("post")
	m.IncCacheHits("post")
	m.IncCacheMisses("site")
	m.AddBlocksSaved(3)
	m.IncFormSubmissions(OutcomeRejected)

	assert.Equal(t, 2.0, testutil.ToFloat64(m.cacheHits.WithLabelValues("post")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.cacheMisses.WithLabelValues("site")))
	assert.Equal(t, 3.0, testutil.ToFloat64(m.blocksSaved))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.formSubmissions.WithLabelValues(OutcomeRejected)))
}

func TestPrometheusMetrics_Handler(t *testing.T) {
	m := NewPrometheusMetrics("awful")
	m.AddSweeperDeleted(2)

	rec := httptest.NewRecorder()
	m.HTTPHandler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	body, err := io.ReadAll(rec.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), "awful_sweeper_deleted_total 2")
}
