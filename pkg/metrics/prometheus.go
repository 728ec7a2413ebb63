package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Recorder implements domain.repository.Metrics using Prometheus.
type Recorder struct {
	iterations   prometheus.Counter
	loopDuration prometheus.Histogram
	frequency    prometheus.Gauge
	soc          prometheus.Gauge
	powerBalance prometheus.Gauge
	sentTotal    *prometheus.CounterVec
	errorsTotal  *prometheus.CounterVec
	haltsTotal   *prometheus.CounterVec
	latency      *prometheus.HistogramVec
}

// New creates a recorder on the default registerer.
func New() *Recorder {
	return NewWithRegisterer(prometheus.DefaultRegisterer)
}

// NewWithRegisterer creates a recorder whose collectors live in reg.
func NewWithRegisterer(reg prometheus.Registerer) *Recorder {
	f := promauto.With(reg)
	return &Recorder{
		iterations: f.NewCounter(prometheus.CounterOpts{
			Name: "microgrid_loop_iterations_total",
			Help: "Total number of completed control loop iterations",
		}),
		loopDuration: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "microgrid_loop_duration_seconds",
			Help:    "Wall time of one control loop iteration",
			Buckets: []float64{.0005, .001, .0025, .005, .01, .025, .05, .1, .25, .5, 1},
		}),
		frequency: f.NewGauge(prometheus.GaugeOpts{
			Name: "microgrid_frequency_hertz",
			Help: "Simulated grid frequency",
		}),
		soc: f.NewGauge(prometheus.GaugeOpts{
			Name: "microgrid_state_of_charge_percent",
			Help: "Simulated battery state of charge",
		}),
		powerBalance: f.NewGauge(prometheus.GaugeOpts{
			Name: "microgrid_power_balance_watts",
			Help: "Ambient power balance perturbation",
		}),
		sentTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "microgrid_records_sent_total",
				Help: "Total number of records sent to a telemetry backend",
			},
			[]string{"backend"},
		),
		errorsTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "microgrid_errors_total",
				Help: "Total number of errors encountered",
			},
			[]string{"type"},
		),
		haltsTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "microgrid_halts_total",
				Help: "Loop halts by reason",
			},
			[]string{"reason"},
		),
		latency: f.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "microgrid_operation_duration_seconds",
				Help:    "Duration of operations in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"operation"},
		),
	}
}

// RecordIteration counts one iteration and observes its duration.
func (r *Recorder) RecordIteration(seconds float64) {
	r.iterations.Inc()
	r.loopDuration.Observe(seconds)
}

func (r *Recorder) RecordState(freq, soc, powerBalance float64) {
	r.frequency.Set(freq)
	r.soc.Set(soc)
	r.powerBalance.Set(powerBalance)
}

// RecordSent records a record delivered to a backend.
func (r *Recorder) RecordSent(backend string) {
	r.sentTotal.WithLabelValues(backend).Inc()
}

// RecordError records an error occurrence.
func (r *Recorder) RecordError(kind string) {
	r.errorsTotal.WithLabelValues(kind).Inc()
}

func (r *Recorder) RecordHalt(reason string) {
	r.haltsTotal.WithLabelValues(reason).Inc()
}

// RecordLatency records operation latency in seconds.
func (r *Recorder) RecordLatency(op string, seconds float64) {
	r.latency.WithLabelValues(op).Observe(seconds)
}

// Nop discards everything. Useful in tests and tools.
type Nop struct{}

func (Nop) RecordIteration(float64)             {}
func (Nop) RecordState(float64, float64, float64) {}
func (Nop) RecordSent(string)                   {}
func (Nop) RecordError(string)                  {}
func (Nop) RecordHalt(string)                   {}
func (Nop) RecordLatency(string, float64)       {}
