package metrics_test

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/furfur/central/internal/metrics"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"
)

func TestCounters(t *testing.T) {
	reg := prometheus.NewRegistry()
	collector := metrics.New(reg)

	collector.GrantIssued("main")
	collector.GrantIssued("main")
	collector.GrantBlocked("main")
	collector.WhitelistBanIssued("main", 3)

	require.InDelta(t, 2.0, testutil.ToFloat64(collector.GrantCounter.WithLabelValues("main")), 0.0001)
	require.InDelta(t, 1.0, testutil.ToFloat64(collector.GrantBlockedCounter.WithLabelValues("main")), 0.0001)
	require.InDelta(t, 3.0, testutil.ToFloat64(collector.InvalidatedCounter.WithLabelValues("main")), 0.0001)
}

func TestNilMetrics(t *testing.T) {
	var collector *metrics.Metrics

	require.NotPanics(t, func() {
		collector.GrantIssued("main")
		collector.LinkResult("ok")
	})
}

func TestHandler(t *testing.T) {
	gin.SetMode(gin.TestMode)

	reg := prometheus.NewRegistry()
	metrics.New(reg).DonationRecorded("2")

	engine := gin.New()
	metrics.NewHandler(engine, reg)

	recorder := httptest.NewRecorder()
	engine.ServeHTTP(recorder, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	require.Equal(t, http.StatusOK, recorder.Code)
	require.Contains(t, recorder.Body.String(), `central_donations_total{tier="2"} 1`)
}
