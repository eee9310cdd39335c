package metrics

import (
	coremetrics "ambuplan/core/metrics"
)

// NewSinks assembles the sinks enabled in the configuration into one
// MultiSink. With nothing enabled the result only holds a NopSink, which is
// always safe to record into.
func NewSinks(cfg coremetrics.Config) (*MultiSink, error) {
	cfg.SetDefaults()
	var sinks []coremetrics.MetricsSink
	if cfg.PrometheusEnabled {
		prom, err := NewPromSink()
		if err != nil {
			return nil, err
		}
		sinks = append(sinks, prom)
	}
	if cfg.InfluxEnabled {
		sinks = append(sinks, NewInfluxSinkWithFallback(cfg.InfluxURL, cfg.InfluxToken, cfg.InfluxOrg, cfg.InfluxBucket))
	}
	if len(sinks) == 0 {
		sinks = append(sinks, coremetrics.NopSink{})
	}
	return NewMultiSink(sinks...), nil
}
