package metrics

import coremetrics "ambuplan/core/metrics"

// MultiSink fans records out to several sinks. Run results go to every sink;
// oracle and task records only to the sinks implementing those recorders.
type MultiSink struct {
	Sinks []coremetrics.MetricsSink
}

// NewMultiSink creates a MultiSink over the provided sinks.
func NewMultiSink(sinks ...coremetrics.MetricsSink) *MultiSink {
	return &MultiSink{Sinks: sinks}
}

// RecordRun forwards to all sinks, returning the first error encountered.
func (m *MultiSink) RecordRun(res coremetrics.RunResult) error {
	for _, s := range m.Sinks {
		if err := s.RecordRun(res); err != nil {
			return err
		}
	}
	return nil
}

// RecordOracleLookup forwards lookups to sinks that record them.
func (m *MultiSink) RecordOracleLookup(ev coremetrics.OracleLookup) error {
	for _, s := range m.Sinks {
		if rec, ok := s.(coremetrics.OracleRecorder); ok {
			if err := rec.RecordOracleLookup(ev); err != nil {
				return err
			}
		}
	}
	return nil
}

// RecordTask forwards task transitions to sinks that record them.
func (m *MultiSink) RecordTask(ev coremetrics.TaskEvent) error {
	for _, s := range m.Sinks {
		if rec, ok := s.(coremetrics.TaskRecorder); ok {
			if err := rec.RecordTask(ev); err != nil {
				return err
			}
		}
	}
	return nil
}
