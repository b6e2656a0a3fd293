// Package metrics exposes Prometheus metrics for download runs.
package metrics

import (
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const (
	// Namespace is the namespace for all spritefetch metrics.
	Namespace = "spritefetch"

	// Subsystem is the subsystem for download metrics.
	Subsystem = "download"
)

// Status label values.
const (
	StatusStored = "stored"
	StatusFailed = "failed"
)

// Recorder holds the Prometheus metrics of one process.
//
// Every Recorder owns a private registry, so several runs in one process
// (tests, the TUI) never collide on registration.
type Recorder struct {
	registry *prometheus.Registry

	RecordsTotal   *prometheus.CounterVec
	BytesStored    prometheus.Counter
	RecordDuration *prometheus.HistogramVec
	SlotsInUse     prometheus.Gauge
	SlotsPeak      prometheus.Gauge
	Concurrency    prometheus.Gauge
	RunDuration    *prometheus.HistogramVec
	RunsTotal      *prometheus.CounterVec

	mu    sync.Mutex
	inUse int
	peak  int
}

// New creates a Recorder and registers its metrics together with the Go
// runtime and process collectors.
func New() *Recorder {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	factory := promauto.With(reg)
	r := &Recorder{registry: reg}

	r.RecordsTotal = factory.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: Namespace,
			Subsystem: Subsystem,
			Name:      "records_total",
			Help:      "Total number of records that reached a terminal state",
		},
		[]string{"strategy", "status", "stage"},
	)

	r.BytesStored = factory.NewCounter(
		prometheus.CounterOpts{
			Namespace: Namespace,
			Subsystem: Subsystem,
			Name:      "bytes_stored_total",
			Help:      "Total number of bytes written to the store",
		},
	)

	r.RecordDuration = factory.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: Namespace,
			Subsystem: Subsystem,
			Name:      "record_duration_seconds",
			Help:      "Time from slot acquisition to terminal state per record",
			Buckets:   prometheus.ExponentialBuckets(0.01, 2, 12), // 10ms to ~20s
		},
		[]string{"strategy", "status"},
	)

	r.SlotsInUse = factory.NewGauge(
		prometheus.GaugeOpts{
			Namespace: Namespace,
			Subsystem: Subsystem,
			Name:      "slots_in_use",
			Help:      "Number of concurrency slots currently held",
		},
	)

	r.SlotsPeak = factory.NewGauge(
		prometheus.GaugeOpts{
			Namespace: Namespace,
			Subsystem: Subsystem,
			Name:      "slots_in_use_peak",
			Help:      "Highest number of concurrency slots held at once",
		},
	)

	r.Concurrency = factory.NewGauge(
		prometheus.GaugeOpts{
			Namespace: Namespace,
			Subsystem: Subsystem,
			Name:      "concurrency_limit",
			Help:      "Configured concurrency bound of the current run",
		},
	)

	r.RunDuration = factory.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: Namespace,
			Subsystem: Subsystem,
			Name:      "run_duration_seconds",
			Help:      "Wall-clock duration of a whole run",
			Buckets:   prometheus.ExponentialBuckets(0.1, 2, 12),
		},
		[]string{"strategy"},
	)

	r.RunsTotal = factory.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: Namespace,
			Subsystem: Subsystem,
			Name:      "runs_total",
			Help:      "Total number of completed runs",
		},
		[]string{"strategy"},
	)

	return r
}

// Registry returns the private registry.
func (r *Recorder) Registry() *prometheus.Registry {
	return r.registry
}

// Handler serves the registry in the Prometheus exposition format.
func (r *Recorder) Handler() http.Handler {
	return promhttp.HandlerFor(r.registry, promhttp.HandlerOpts{Registry: r.registry})
}

// SetConcurrency records the bound of the run about to start and resets
// the peak.
func (r *Recorder) SetConcurrency(n int) {
	r.mu.Lock()
	r.peak = r.inUse
	r.mu.Unlock()

	r.Concurrency.Set(float64(n))
	r.SlotsPeak.Set(float64(r.Peak()))
}

// Acquire records that a concurrency slot was taken.
func (r *Recorder) Acquire() {
	r.mu.Lock()
	r.inUse++
	if r.inUse > r.peak {
		r.peak = r.inUse
	}
	inUse, peak := r.inUse, r.peak
	r.mu.Unlock()

	r.SlotsInUse.Set(float64(inUse))
	r.SlotsPeak.Set(float64(peak))
}

// Release records that a concurrency slot was given back.
func (r *Recorder) Release() {
	r.mu.Lock()
	r.inUse--
	inUse := r.inUse
	r.mu.Unlock()

	r.SlotsInUse.Set(float64(inUse))
}

// Peak returns the highest number of slots held at once since the last
// SetConcurrency.
func (r *Recorder) Peak() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.peak
}

// ObserveRecord records one terminal record outcome. stage is empty for
// stored records.
func (r *Recorder) ObserveRecord(strategy, status, stage string, bytes int, elapsed time.Duration) {
	r.RecordsTotal.WithLabelValues(strategy, status, stage).Inc()
	r.RecordDuration.WithLabelValues(strategy, status).Observe(elapsed.Seconds())
	if status == StatusStored {
		r.BytesStored.Add(float64(bytes))
	}
}

// ObserveRun records a finished run.
func (r *Recorder) ObserveRun(strategy string, elapsed time.Duration) {
	r.RunsTotal.WithLabelValues(strategy).Inc()
	r.RunDuration.WithLabelValues(strategy).Observe(elapsed.Seconds())
}
