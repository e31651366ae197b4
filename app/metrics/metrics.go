// Package metrics provides Prometheus metrics for synchronization passes.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// PassesTotal counts completed synchronization passes.
	PassesTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: "rssfeeds",
			Name:      "sync_passes_total",
			Help:      "Total number of synchronization passes",
		},
	)

	// PassDuration measures synchronization pass duration.
	PassDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "rssfeeds",
			Name:      "sync_pass_duration_seconds",
			Help:      "Duration of synchronization passes in seconds",
			Buckets:   []float64{0.1, 0.5, 1, 2.5, 5, 10, 30, 60, 120, 300},
		},
	)

	// PostsTotal counts posts changed by synchronization, by action.
	PostsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "rssfeeds",
			Name:      "posts_total",
			Help:      "Posts added, updated or deleted by synchronization",
		},
		[]string{"action"},
	)

	// FetchesTotal counts source link downloads by status.
	FetchesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "rssfeeds",
			Name:      "fetches_total",
			Help:      "Total number of source link downloads",
		},
		[]string{"status"},
	)

	// FetchDuration measures source link download duration.
	FetchDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "rssfeeds",
			Name:      "fetch_duration_seconds",
			Help:      "Duration of source link downloads in seconds",
			Buckets:   prometheus.DefBuckets,
		},
	)
)

// Recorder feeds engine events into the package metrics.
type Recorder struct{}

func NewRecorder() *Recorder {
	return &Recorder{}
}

// ObserveFetch records a download; ok is false for broken links.
func (r *Recorder) ObserveFetch(ok bool, duration time.Duration) {
	status := "ok"
	if !ok {
		status = "broken"
	}
	FetchesTotal.WithLabelValues(status).Inc()
	FetchDuration.Observe(duration.Seconds())
}

func (r *Recorder) ObservePass(added, updated, deleted int, duration time.Duration) {
	PassesTotal.Inc()
	PassDuration.Observe(duration.Seconds())
	PostsTotal.WithLabelValues("added").Add(float64(added))
	PostsTotal.WithLabelValues("updated").Add(float64(updated))
	PostsTotal.WithLabelValues("deleted").Add(float64(deleted))
}
