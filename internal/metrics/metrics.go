package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"sync2notion/internal/classify"
)

const namespace = "sync2notion"

// Recorder counts classified uploads and finished batches on its own registry.
type Recorder struct {
	registry      *prometheus.Registry
	outcomes      *prometheus.CounterVec
	batches       *prometheus.CounterVec
	batchDuration prometheus.Histogram
}

func NewRecorder() *Recorder {
	r := &Recorder{
		registry: prometheus.NewRegistry(),
		outcomes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "upload_outcomes_total",
			Help:      "Classified upload outcomes by kind.",
		}, []string{"kind"}),
		batches: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "batches_total",
			Help:      "Finished batches by result.",
		}, []string{"result"}),
		batchDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "batch_duration_seconds",
			Help:      "Wall time of finished batches.",
			Buckets:   prometheus.ExponentialBuckets(0.5, 2, 10),
		}),
	}
	r.registry.MustRegister(
		r.outcomes,
		r.batches,
		r.batchDuration,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return r
}

func (r *Recorder) ObserveOutcome(kind classify.Kind) {
	r.outcomes.WithLabelValues(string(kind)).Inc()
}

func (r *Recorder) ObserveBatch(result string, elapsed time.Duration) {
	r.batches.WithLabelValues(result).Inc()
	r.batchDuration.Observe(elapsed.Seconds())
}

// Handler exposes the registry in the Prometheus text format.
func (r *Recorder) Handler() http.Handler {
	return promhttp.HandlerFor(r.registry, promhttp.HandlerOpts{Registry: r.registry})
}
