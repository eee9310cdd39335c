// Package metrics provides the Prometheus and InfluxDB implementations of the
// core metrics sinks.
package metrics

import (
	"strconv"

	"github.com/prometheus/client_golang/prometheus"

	coremetrics "ambuplan/core/metrics"
)

// PromSink records scheduling activity in Prometheus metrics.
type PromSink struct {
	runs       *prometheus.CounterVec
	runSeconds *prometheus.HistogramVec
	unassigned *prometheus.HistogramVec
	cost       *prometheus.HistogramVec
	lookups    *prometheus.CounterVec
	taskEvents *prometheus.CounterVec
}

// NewPromSink registers the scheduling metrics on the default registerer. The
// Prometheus HTTP endpoint is served separately, see StartPromServer.
func NewPromSink() (*PromSink, error) {
	return NewPromSinkWithRegistry(prometheus.DefaultRegisterer)
}

// NewPromSinkWithRegistry registers metrics on the provided registerer. A nil
// registerer defaults to the global one. Re-registration reuses the existing
// collectors, so independent sinks can share one registry.
func NewPromSinkWithRegistry(reg prometheus.Registerer) (*PromSink, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	s := &PromSink{
		runs: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "scheduling_runs_total",
			Help: "Total number of scheduling runs",
		}, []string{"algorithm", "status"}),
		runSeconds: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "scheduling_run_seconds",
			Help:    "Wall-clock duration of scheduling runs",
			Buckets: prometheus.DefBuckets,
		}, []string{"algorithm"}),
		unassigned: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "scheduling_unassigned_bookings",
			Help:    "Bookings left unassigned per run",
			Buckets: []float64{0, 1, 2, 5, 10, 20, 50},
		}, []string{"algorithm"}),
		cost: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "scheduling_total_cost",
			Help:    "Evaluated schedule cost per run",
			Buckets: prometheus.ExponentialBuckets(10, 2.5, 10),
		}, []string{"algorithm"}),
		lookups: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "travel_oracle_lookups_total",
			Help: "Distance matrix lookups by cache outcome",
		}, []string{"cache_hit", "fallback"}),
		taskEvents: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "task_transitions_total",
			Help: "Asynchronous task state transitions",
		}, []string{"status"}),
	}

	collectors := []prometheus.Collector{s.runs, s.runSeconds, s.unassigned, s.cost, s.lookups, s.taskEvents}
	for i, c := range collectors {
		if err := reg.Register(c); err != nil {
			are, ok := err.(prometheus.AlreadyRegisteredError)
			if !ok {
				return nil, err
			}
			collectors[i] = are.ExistingCollector
		}
	}
	s.runs = collectors[0].(*prometheus.CounterVec)
	s.runSeconds = collectors[1].(*prometheus.HistogramVec)
	s.unassigned = collectors[2].(*prometheus.HistogramVec)
	s.cost = collectors[3].(*prometheus.HistogramVec)
	s.lookups = collectors[4].(*prometheus.CounterVec)
	s.taskEvents = collectors[5].(*prometheus.CounterVec)
	return s, nil
}

// RecordRun implements coremetrics.MetricsSink.
func (s *PromSink) RecordRun(res coremetrics.RunResult) error {
	s.runs.WithLabelValues(res.Algorithm, res.Status).Inc()
	s.runSeconds.WithLabelValues(res.Algorithm).Observe(res.Elapsed.Seconds())
	s.unassigned.WithLabelValues(res.Algorithm).Observe(float64(res.Unassigned))
	s.cost.WithLabelValues(res.Algorithm).Observe(res.TotalCost)
	return nil
}

// RecordOracleLookup implements coremetrics.OracleRecorder.
func (s *PromSink) RecordOracleLookup(ev coremetrics.OracleLookup) error {
	s.lookups.WithLabelValues(strconv.FormatBool(ev.CacheHit), strconv.FormatBool(ev.Fallback)).Inc()
	return nil
}

// RecordTask implements coremetrics.TaskRecorder.
func (s *PromSink) RecordTask(ev coremetrics.TaskEvent) error {
	s.taskEvents.WithLabelValues(ev.Status).Inc()
	return nil
}
