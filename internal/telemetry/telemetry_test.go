package telemetry_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/jonesrussell/north-cloud/categorizer/internal/telemetry"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// providerOnce ensures we only create one default-registry Provider per test
// run to avoid duplicate Prometheus metric registration errors.
var (
	testProvider *telemetry.Provider
	providerOnce sync.Once
)

func getTestProvider(t *testing.T) *telemetry.Provider {
	t.Helper()
	providerOnce.Do(func() {
		testProvider = telemetry.NewProvider()
	})
	return testProvider
}

func TestNewProvider(t *testing.T) {
	provider := getTestProvider(t)
	require.NotNil(t, provider)
	assert.NotNil(t, provider.Tracer)
	assert.NotNil(t, provider.Metrics)
}

func scrape(t *testing.T, p *telemetry.Provider) string {
	t.Helper()

	rec := httptest.NewRecorder()
	p.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	return rec.Body.String()
}

func TestRecordClassification(t *testing.T) {
	t.Parallel()

	p := telemetry.NewProviderWithRegistry(prometheus.NewRegistry())

	p.RecordClassification("categorized", "Precio", "", time.Millisecond)
	p.RecordClassification("categorized", "Precio", "", time.Millisecond)
	p.RecordClassification("noise", "", "too_short", time.Microsecond)

	body := scrape(t, p)
	assert.Contains(t, body, `categorizer_comments_classified_total{category="Precio",outcome="categorized"} 2`)
	assert.Contains(t, body, `categorizer_noise_total{reason="too_short"} 1`)
}

func TestRecordBatch(t *testing.T) {
	t.Parallel()

	p := telemetry.NewProviderWithRegistry(prometheus.NewRegistry())

	p.RecordBatch(telemetry.BatchRetried, 0, 0)
	p.RecordBatch(telemetry.BatchCommitted, 100, 50*time.Millisecond)
	p.RecordWrites(90, 10)
	p.SetActiveWorkers(2)
	p.SetActiveWorkers(-1)
	p.SetPending("fallback", 42)

	body := scrape(t, p)
	assert.Contains(t, body, `categorizer_batches_total{status="retried"} 1`)
	assert.Contains(t, body, `categorizer_rows_written_total{result="updated"} 90`)
	assert.Contains(t, body, "categorizer_active_workers 1")
	assert.Contains(t, body, `categorizer_pending_rows{selector="fallback"} 42`)
}

func TestHandlerServesRegistry(t *testing.T) {
	t.Parallel()

	p := telemetry.NewProviderWithRegistry(prometheus.NewRegistry())
	p.RecordBatch(telemetry.BatchCommitted, 10, time.Millisecond)

	assert.True(t, strings.Contains(scrape(t, p), "categorizer_batch_size_count 1"))
}

func TestStartSpan(t *testing.T) {
	p := getTestProvider(t)

	ctx, span := p.StartSpan(context.Background(), "test")
	defer span.End()
	assert.NotNil(t, ctx)
}
