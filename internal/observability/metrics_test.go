package observability

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMetricsCounters(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewMetrics(reg)

	m.IncPapersUpserted()
	m.IncPapersUpserted()
	m.IncSkipped("pdfsync", "download")
	m.IncAsk("answered")
	m.ObserveIndexBuild(1.5, 12)

	assert.Equal(t, 2.0, testutil.ToFloat64(m.PapersUpserted))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.ItemsSkipped.WithLabelValues("pdfsync", "download")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.AskTotal.WithLabelValues("answered")))

	families, err := reg.Gather()
	require.NoError(t, err)
	assert.NotEmpty(t, families)
}

func TestMetricsNilSafe(t *testing.T) {
	var m *Metrics
	m.IncPapersUpserted()
	m.IncPDFsStored()
	m.IncHTMLProcessed()
	m.IncPDFsExported()
	m.IncSkipped("x", "y")
	m.IncAsk("answered")
	m.IncRetrievalFailure()
	m.IncProviderError("openai", "rate")
	m.ObserveIndexBuild(1, 1)
}

func TestPushNoURL(t *testing.T) {
	assert.NoError(t, Push("", "job", prometheus.NewRegistry()))
}

func TestParseLevel(t *testing.T) {
	assert.Equal(t, "debug", parseLevel("DEBUG").String())
	assert.Equal(t, "warn", parseLevel("warning").String())
	assert.Equal(t, "info", parseLevel("nope").String())
}
