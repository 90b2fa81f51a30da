package observability

import (
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/push"
)

const namespace = "mowakeb"

// Metrics holds every collector the commands and the chatbot report to. All
// methods are safe on a nil *Metrics so components can run without metrics.
type Metrics struct {
	PapersUpserted prometheus.Counter
	ItemsSkipped   *prometheus.CounterVec
	PDFsStored     prometheus.Counter
	HTMLProcessed  prometheus.Counter
	PDFsExported   prometheus.Counter

	IndexBuildSeconds prometheus.Histogram
	DocumentsIndexed  prometheus.Histogram
	AskTotal          *prometheus.CounterVec
	RetrievalFailures prometheus.Counter
	ProviderErrors    *prometheus.CounterVec
}

// NewMetrics registers the collectors with reg. Pass prometheus.NewRegistry()
// in tests to avoid duplicate registration on the default registry.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		PapersUpserted: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "papers_upserted_total",
			Help:      "Papers written to the papers table by the weekly ingester.",
		}),
		ItemsSkipped: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "items_skipped_total",
			Help:      "Batch items skipped or failed, by component and reason.",
		}, []string{"component", "reason"}),
		PDFsStored: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "pdfs_stored_total",
			Help:      "PDFs uploaded to object storage and recorded on their row.",
		}),
		HTMLProcessed: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "html_processed_total",
			Help:      "HTML result files uploaded and marked PROCESSED.",
		}),
		PDFsExported: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "pdfs_exported_total",
			Help:      "PDFs written into the export archive.",
		}),
		IndexBuildSeconds: f.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "qa_index_build_seconds",
			Help:      "Time spent building the retrieval index for an uploaded paper.",
			Buckets:   []float64{1, 5, 15, 30, 60, 120, 300, 600},
		}),
		DocumentsIndexed: f.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "qa_documents_indexed",
			Help:      "Documents (text chunks and figure descriptions) per built index.",
			Buckets:   prometheus.ExponentialBuckets(1, 2, 12),
		}),
		AskTotal: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "qa_ask_total",
			Help:      "Questions answered, by outcome.",
		}, []string{"outcome"}),
		RetrievalFailures: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "qa_retrieval_failures_total",
			Help:      "Questions answered without context because retrieval failed.",
		}),
		ProviderErrors: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "provider_errors_total",
			Help:      "Model provider call failures, by provider and error class.",
		}, []string{"provider", "error_type"}),
	}
}

func (m *Metrics) IncSkipped(component, reason string) {
	if m == nil {
		return
	}
	m.ItemsSkipped.WithLabelValues(component, reason).Inc()
}

func (m *Metrics) IncProviderError(provider, errorType string) {
	if m == nil {
		return
	}
	m.ProviderErrors.WithLabelValues(provider, errorType).Inc()
}

func (m *Metrics) IncAsk(outcome string) {
	if m == nil {
		return
	}
	m.AskTotal.WithLabelValues(outcome).Inc()
}

func (m *Metrics) IncPapersUpserted() {
	if m == nil {
		return
	}
	m.PapersUpserted.Inc()
}

func (m *Metrics) IncPDFsStored() {
	if m == nil {
		return
	}
	m.PDFsStored.Inc()
}

func (m *Metrics) IncHTMLProcessed() {
	if m == nil {
		return
	}
	m.HTMLProcessed.Inc()
}

func (m *Metrics) IncPDFsExported() {
	if m == nil {
		return
	}
	m.PDFsExported.Inc()
}

func (m *Metrics) IncRetrievalFailure() {
	if m == nil {
		return
	}
	m.RetrievalFailures.Inc()
}

func (m *Metrics) ObserveIndexBuild(seconds float64, docs int) {
	if m == nil {
		return
	}
	m.IndexBuildSeconds.Observe(seconds)
	m.DocumentsIndexed.Observe(float64(docs))
}

// Push sends everything gathered by g to a Prometheus Pushgateway under job.
// Batch commands call it once before exiting; an empty url is a no-op.
func Push(url, job string, g prometheus.Gatherer) error {
	if url == "" {
		return nil
	}
	if err := push.New(url, job).Gatherer(g).Push(); err != nil {
		return fmt.Errorf("push metrics: %w", err)
	}
	return nil
}
