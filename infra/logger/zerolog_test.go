package logger

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestZerologOutputCarriesComponent(t *testing.T) {
	var buf bytes.Buffer
	l := NewWithWriter(&buf, "scheduler", "debug")
	l.Infof("run finished in %dms", 42)
	out := buf.String()
	assert.Contains(t, out, `"component":"scheduler"`)
	assert.Contains(t, out, "run finished in 42ms")
}

func TestZerologLevelFiltering(t *testing.T) {
	var buf bytes.Buffer
	l := NewWithWriter(&buf, "api", "warn")
	l.Debugf("noise")
	l.Infof("still noise")
	require.Empty(t, buf.String())
	l.Warnf("kept")
	assert.Contains(t, buf.String(), "kept")
}

func TestZerologStructuredFields(t *testing.T) {
	var buf bytes.Buffer
	l := NewWithWriter(&buf, "tasks", "debug")
	l.Debugw("task enqueued", map[string]any{"task": "t-1", "queue": 3})
	out := buf.String()
	assert.Contains(t, out, `"task":"t-1"`)
	assert.Contains(t, out, `"queue":3`)
}

func TestZerologUnknownLevelDefaultsToInfo(t *testing.T) {
	var buf bytes.Buffer
	l := NewWithWriter(&buf, "api", "chatty")
	l.Debugf("hidden")
	require.Empty(t, buf.String())
	l.Infof("shown")
	assert.Contains(t, buf.String(), "shown")
}
