package observability

import (
	"context"
	stderrors "errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/attribute"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"

	"cvoptimizer/internal/ai"
	"cvoptimizer/internal/config"
)

func allMetricsOn() config.CustomMetricsConfig {
	return config.CustomMetricsConfig{
		AIOperations:    config.AIOperationsMetricsConfig{Enabled: true, TrackDuration: true, TrackTokenUsage: true},
		BusinessMetrics: config.BusinessMetricsConfig{Enabled: true, TrackTokenSpend: true},
		Infrastructure:  config.InfrastructureMetricsConfig{Enabled: true, TrackRateLimits: true},
	}
}

func newTestManager(t *testing.T, custom config.CustomMetricsConfig) (*ObservabilityManager, *sdkmetric.ManualReader) {
	t.Helper()
	reader := sdkmetric.NewManualReader()
	om, err := NewObservabilityManager(ObservabilityConfig{
		ServiceName:   "cvoptimizer-test",
		Enabled:       true,
		SampleRate:    1.0,
		CustomMetrics: custom,
		extraReaders:  []sdkmetric.Reader{reader},
	}, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = om.Shutdown(context.Background()) })
	return om, reader
}

// counterTotal sums every data point of the named counter.
func counterTotal(t *testing.T, reader *sdkmetric.ManualReader, name string) int64 {
	t.Helper()
	var rm metricdata.ResourceMetrics
	require.NoError(t, reader.Collect(context.Background(), &rm))
	var total int64
	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			if m.Name != name {
				continue
			}
			if sum, ok := m.Data.(metricdata.Sum[int64]); ok {
				for _, dp := range sum.DataPoints {
					total += dp.Value
				}
			}
		}
	}
	return total
}

func TestRecordBusinessMetric(t *testing.T) {
	om, reader := newTestManager(t, allMetricsOn())
	m := om.GetMetrics()
	ctx := context.Background()

	m.RecordBusinessMetric(ctx, MetricCVAnalyzed, true)
	m.RecordBusinessMetric(ctx, MetricCVAnalyzed, false, attribute.String("format", "pdf"))
	m.RecordBusinessMetric(ctx, MetricTalentSubmitted, true)
	m.RecordBusinessMetric(ctx, MetricRateLimitHit, false)
	m.RecordBusinessMetric(ctx, "unknown", true)
	m.RecordTokenSpend(ctx, "compare", 2)
	m.RecordTokenSpend(ctx, "edit", 0)

	assert.Equal(t, int64(2), counterTotal(t, reader, "cvoptimizer_cvs_analyzed_total"))
	assert.Equal(t, int64(1), counterTotal(t, reader, "cvoptimizer_talent_submissions_total"))
	assert.Equal(t, int64(1), counterTotal(t, reader, "cvoptimizer_rate_limit_hits_total"))
	assert.Equal(t, int64(2), counterTotal(t, reader, "cvoptimizer_wallet_tokens_spent_total"))
}

func TestBusinessMetricsDisabled(t *testing.T) {
	custom := allMetricsOn()
	custom.BusinessMetrics.Enabled = false
	custom.Infrastructure.TrackRateLimits = false
	om, reader := newTestManager(t, custom)
	m := om.GetMetrics()

	m.RecordBusinessMetric(context.Background(), MetricJobCompared, true)
	m.RecordBusinessMetric(context.Background(), MetricRateLimitHit, false)
	m.RecordTokenSpend(context.Background(), "compare", 2)

	assert.Zero(t, counterTotal(t, reader, "cvoptimizer_jobs_compared_total"))
	assert.Zero(t, counterTotal(t, reader, "cvoptimizer_rate_limit_hits_total"))
	assert.Zero(t, counterTotal(t, reader, "cvoptimizer_wallet_tokens_spent_total"))
}

func TestTrackAIOperationWithTokens(t *testing.T) {
	om, reader := newTestManager(t, allMetricsOn())
	m := om.GetMetrics()

	err := m.TrackAIOperationWithTokens(context.Background(), "analyze", func(context.Context) *AIOperationResult {
		return &AIOperationResult{TokenUsage: &ai.TokenUsage{InputTokens: 10, OutputTokens: 5, TotalTokens: 15}}
	})
	require.NoError(t, err)

	failure := stderrors.New("model down")
	err = m.TrackAIOperationWithTokens(context.Background(), "analyze", func(context.Context) *AIOperationResult {
		return &AIOperationResult{Error: failure}
	})
	assert.ErrorIs(t, err, failure)

	assert.Equal(t, int64(2), counterTotal(t, reader, "cvoptimizer_ai_requests_total"))
	assert.Equal(t, int64(1), counterTotal(t, reader, "cvoptimizer_ai_errors_total"))
}

func TestDisabledManagerIsNoop(t *testing.T) {
	om, err := NewObservabilityManager(ObservabilityConfig{Enabled: false}, nil)
	require.NoError(t, err)

	m := om.GetMetrics()
	m.RecordBusinessMetric(context.Background(), MetricCVEdited, true)
	m.RecordTokenSpend(context.Background(), "analyze", 1)

	called := false
	err = m.TrackAIOperationWithTokens(context.Background(), "edit", func(context.Context) *AIOperationResult {
		called = true
		return nil
	})
	require.NoError(t, err)
	assert.True(t, called)

	h := om.HTTPMiddleware()(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	}))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusTeapot, rec.Code)
	assert.Nil(t, om.MetricsHandler())
	assert.NoError(t, om.Shutdown(context.Background()))
}

func TestPrometheusHandlerWithoutDedicatedPort(t *testing.T) {
	om, err := NewObservabilityManager(ObservabilityConfig{
		ServiceName:   "cvoptimizer-test",
		Enabled:       true,
		SampleRate:    1.0,
		CustomMetrics: allMetricsOn(),
		Prometheus:    PrometheusConfig{Enabled: true, Endpoint: "/metrics"},
	}, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = om.Shutdown(context.Background()) })

	om.GetMetrics().RecordBusinessMetric(context.Background(), MetricDocumentExtracted, true)

	handler := om.MetricsHandler()
	require.NotNil(t, handler)

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	body, _ := io.ReadAll(rec.Body)
	assert.Contains(t, string(body), "cvoptimizer_documents_extracted_total")
}

func TestGetObservabilityConfig(t *testing.T) {
	cfg := &config.Config{}
	cfg.Observability.Enabled = true
	cfg.Observability.ServiceName = "cvoptimizer"
	cfg.Observability.SampleRate = 0.5
	cfg.Observability.Tracing.Enabled = true
	cfg.Observability.Metrics.Enabled = true
	cfg.Observability.Prometheus = config.PrometheusConfig{Enabled: true, Endpoint: "/metrics", Port: "9090"}

	obs := GetObservabilityConfig(cfg, "1.2.3")
	assert.Equal(t, "1.2.3", obs.ServiceVersion)
	assert.Equal(t, 0.5, obs.SampleRate)
	assert.True(t, obs.Prometheus.Enabled)

	cfg.Observability.Tracing.Enabled = false
	cfg.Observability.Metrics.Enabled = false
	obs = GetObservabilityConfig(cfg, "1.2.3")
	assert.Zero(t, obs.SampleRate)
	assert.False(t, obs.Prometheus.Enabled)

	assert.False(t, GetObservabilityConfig(nil, "dev").Enabled)
}
