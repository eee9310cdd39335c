package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	coremetrics "ambuplan/core/metrics"
)

func TestPromSinkRecordsRuns(t *testing.T) {
	reg := prometheus.NewRegistry()
	sink, err := NewPromSinkWithRegistry(reg)
	require.NoError(t, err)

	require.NoError(t, sink.RecordRun(coremetrics.RunResult{
		Algorithm: "greedy", Status: "FEASIBLE",
		Assigned: 5, Unassigned: 1, TotalCost: 420.5, Elapsed: 120 * time.Millisecond,
	}))
	require.NoError(t, sink.RecordRun(coremetrics.RunResult{
		Algorithm: "constraint", Status: "OPTIMAL",
	}))

	assert.Equal(t, 1.0, testutil.ToFloat64(sink.runs.WithLabelValues("greedy", "FEASIBLE")))
	assert.Equal(t, 1.0, testutil.ToFloat64(sink.runs.WithLabelValues("constraint", "OPTIMAL")))
}

func TestPromSinkRecordsLookupsAndTasks(t *testing.T) {
	reg := prometheus.NewRegistry()
	sink, err := NewPromSinkWithRegistry(reg)
	require.NoError(t, err)

	require.NoError(t, sink.RecordOracleLookup(coremetrics.OracleLookup{CacheHit: true}))
	require.NoError(t, sink.RecordOracleLookup(coremetrics.OracleLookup{CacheHit: true}))
	require.NoError(t, sink.RecordOracleLookup(coremetrics.OracleLookup{Fallback: true}))
	require.NoError(t, sink.RecordTask(coremetrics.TaskEvent{TaskID: "t-1", Status: "COMPLETED"}))

	assert.Equal(t, 2.0, testutil.ToFloat64(sink.lookups.WithLabelValues("true", "false")))
	assert.Equal(t, 1.0, testutil.ToFloat64(sink.lookups.WithLabelValues("false", "true")))
	assert.Equal(t, 1.0, testutil.ToFloat64(sink.taskEvents.WithLabelValues("COMPLETED")))
}

func TestPromSinkReregistration(t *testing.T) {
	reg := prometheus.NewRegistry()
	first, err := NewPromSinkWithRegistry(reg)
	require.NoError(t, err)
	second, err := NewPromSinkWithRegistry(reg)
	require.NoError(t, err)

	require.NoError(t, first.RecordRun(coremetrics.RunResult{Algorithm: "greedy", Status: "FEASIBLE"}))
	require.NoError(t, second.RecordRun(coremetrics.RunResult{Algorithm: "greedy", Status: "FEASIBLE"}))

	// Both sinks share the collectors that survived re-registration.
	assert.Equal(t, 2.0, testutil.ToFloat64(second.runs.WithLabelValues("greedy", "FEASIBLE")))
}
