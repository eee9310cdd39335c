package metrics

import "time"

// RunResult summarizes one scheduling run for observability purposes.
type RunResult struct {
	Algorithm    string
	Status       string
	Assigned     int
	Unassigned   int
	VehiclesUsed int
	TotalCost    float64
	Elapsed      time.Duration
	Err          string
	Time         time.Time
}

// MetricsSink records scheduling run results.
type MetricsSink interface {
	RecordRun(res RunResult) error
}

// OracleLookup captures one distance/duration resolution.
type OracleLookup struct {
	CacheHit bool
	Fallback bool
	Err      string
	Time     time.Time
}

// OracleRecorder records travel oracle lookups.
type OracleRecorder interface {
	RecordOracleLookup(ev OracleLookup) error
}

// TaskEvent captures a task state transition.
type TaskEvent struct {
	TaskID string
	Status string
	Time   time.Time
}

// TaskRecorder records task lifecycle transitions.
type TaskRecorder interface {
	RecordTask(ev TaskEvent) error
}

// NopSink implements every recorder with no-op methods.
type NopSink struct{}

func (NopSink) RecordRun(RunResult) error             { return nil }
func (NopSink) RecordOracleLookup(OracleLookup) error { return nil }
func (NopSink) RecordTask(TaskEvent) error            { return nil }
