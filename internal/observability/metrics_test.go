package observability

import (
	"io"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func value(t *testing.T, m prometheus.Metric) float64 {
	t.Helper()
	var pb dto.Metric
	require.NoError(t, m.Write(&pb))
	switch {
	case pb.Counter != nil:
		return pb.Counter.GetValue()
	case pb.Gauge != nil:
		return pb.Gauge.GetValue()
	}
	t.Fatalf("unsupported metric type")
	return 0
}

func TestRecordRun(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewMetrics("test", reg)

	m.RecordRun("GLOBAL_COMPOUNDING", StatusOK, 2*time.Second, 250)
	m.RecordRun("GLOBAL_COMPOUNDING", StatusCancelled, time.Second, 10)

	assert.Equal(t, 1.0, value(t, m.RunsTotal.WithLabelValues("GLOBAL_COMPOUNDING", StatusOK)))
	assert.Equal(t, 1.0, value(t, m.RunsTotal.WithLabelValues("GLOBAL_COMPOUNDING", StatusCancelled)))
	assert.Equal(t, 260.0, value(t, m.DaysSimulated.WithLabelValues("GLOBAL_COMPOUNDING")))
	assert.Greater(t, value(t, m.LastSuccessfulRun), 0.0)
}

func TestRecordTradesAndReturn(t *testing.T) {
	m := NewMetrics("test", prometheus.NewRegistry())

	m.RecordTrades("INDEPENDENT_CHUNK", 5, 3)
	m.RecordReturn("INDEPENDENT_CHUNK", 12.5)

	assert.Equal(t, 5.0, value(t, m.TradesSimulated.WithLabelValues("INDEPENDENT_CHUNK", "BUY")))
	assert.Equal(t, 3.0, value(t, m.TradesSimulated.WithLabelValues("INDEPENDENT_CHUNK", "SELL")))
	assert.Equal(t, 12.5, value(t, m.FinalReturnPct.WithLabelValues("INDEPENDENT_CHUNK")))
}

func TestTrackInFlight(t *testing.T) {
	m := NewMetrics("test", prometheus.NewRegistry())

	done := m.TrackInFlight()
	assert.Equal(t, 1.0, value(t, m.RunsInFlight))
	done()
	assert.Equal(t, 0.0, value(t, m.RunsInFlight))
}

func TestNilMetricsIsSafe(t *testing.T) {
	var m *Metrics
	m.RecordRun("x", StatusOK, time.Second, 1)
	m.RecordTrades("x", 1, 1)
	m.RecordReturn("x", 1)
	m.RecordDBQuery("postgres", "insert", 0.1, nil)
	m.TrackInFlight()()
}

func TestHandler(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewMetrics("test", reg)
	m.BarsIngested.Add(3)

	rec := httptest.NewRecorder()
	Handler(reg).ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))

	body, err := io.ReadAll(rec.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), "test_ingestion_price_bars_total 3")
}
