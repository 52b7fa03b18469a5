package metrics

import (
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	imagesProcessed = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "pdfeditor",
			Name:      "images_processed_total",
			Help:      "Images visited by the downsampler, by outcome",
		},
		[]string{"outcome"},
	)

	attemptsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "pdfeditor",
			Name:      "save_attempts_total",
			Help:      "Open-downsample-save cycles by preset",
		},
		[]string{"preset"},
	)

	runsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "pdfeditor",
			Name:      "compress_runs_total",
			Help:      "Compression runs by mode and result",
		},
		[]string{"mode", "result"},
	)

	runLatency = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "pdfeditor",
			Name:      "compress_duration_seconds",
			Help:      "Duration of compression runs by mode",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"mode"},
	)

	bytesSaved = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "pdfeditor",
			Name:      "bytes_saved_total",
			Help:      "Bytes removed from documents by compression",
		},
	)

	activeJobs = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "pdfeditor",
			Name:      "active_jobs",
			Help:      "Compression jobs currently running",
		},
	)

	registerOnce sync.Once
)

// Init registers collectors. Safe to call more than once.
func Init() {
	registerOnce.Do(func() {
		prometheus.MustRegister(imagesProcessed, attemptsTotal, runsTotal, runLatency, bytesSaved, activeJobs)
	})
}

// Handler returns the http.Handler for /metrics
func Handler() http.Handler { return promhttp.Handler() }

func ObserveImage(outcome string)  { imagesProcessed.WithLabelValues(outcome).Inc() }
func ObserveAttempt(preset string) { attemptsTotal.WithLabelValues(preset).Inc() }

// ObserveRun records a finished compression run.
func ObserveRun(mode, result string, dur time.Duration) {
	runsTotal.WithLabelValues(mode, result).Inc()
	runLatency.WithLabelValues(mode).Observe(dur.Seconds())
}

func AddBytesSaved(n int64) {
	if n > 0 {
		bytesSaved.Add(float64(n))
	}
}

func JobStarted()  { activeJobs.Inc() }
func JobFinished() { activeJobs.Dec() }
