package logger

import (
	"bytes"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestJSONLogEntryString(t *testing.T) {
	var parsed map[string]interface{}

	require.NoError(t, json.Unmarshal([]byte(JSONLogEntry{Message: "Test message"}.String()), &parsed))
	assert.Equal(t, "Test message", parsed["message"])
	assert.Equal(t, "INFO", parsed["severity"])

	entry := JSONLogEntry{
		Message:  "Test message",
		Severity: "ERROR",
		Metadata: map[string]interface{}{"key1": "value1", "key2": 42},
	}
	parsed = nil
	require.NoError(t, json.Unmarshal([]byte(entry.String()), &parsed))
	assert.Equal(t, "ERROR", parsed["severity"])
	metadata := parsed["metadata"].(map[string]interface{})
	assert.Equal(t, "value1", metadata["key1"])
	assert.Equal(t, float64(42), metadata["key2"])
}

func newSinkJSON(t *testing.T, level LogLevel) (*jsonLogger, *bytes.Buffer) {
	t.Helper()
	var buf bytes.Buffer
	log := NewJSONLoggerWithSink(&buf, level).(*jsonLogger)
	ts := time.Date(2026, 10, 14, 12, 0, 0, 0, time.UTC)
	log.now = func() time.Time { return ts }
	return log, &buf
}

func TestJSONLoggerSink(t *testing.T) {
	log, buf := newSinkJSON(t, LevelDebug)
	log.Trace("dropped")
	log.Warn("rate limit hit for %s", "visitor_1")

	var parsed JSONLogEntry
	require.NoError(t, json.Unmarshal(bytes.TrimSpace(buf.Bytes()), &parsed))
	assert.Equal(t, "WARNING", parsed.Severity)
	assert.Equal(t, "rate limit hit for visitor_1", parsed.Message)
	assert.Equal(t, 2026, parsed.Timestamp.Year())
}

func TestJSONLoggerPrefixBecomesComponent(t *testing.T) {
	log, buf := newSinkJSON(t, LevelTrace)
	child := log.WithPrefix("[contact]").WithPrefix("relay")
	child.Info("sent")

	var parsed JSONLogEntry
	require.NoError(t, json.Unmarshal(bytes.TrimSpace(buf.Bytes()), &parsed))
	assert.Equal(t, "contact relay", parsed.Component)
}

func TestJSONLoggerWithLiftsTraceAndComponent(t *testing.T) {
	log, buf := newSinkJSON(t, LevelTrace)
	child := log.With(map[string]interface{}{
		"trace":     "abc123",
		"component": "ticker",
		"symbols":   5,
	})
	child.Info("refreshed")

	var parsed JSONLogEntry
	require.NoError(t, json.Unmarshal(bytes.TrimSpace(buf.Bytes()), &parsed))
	assert.Equal(t, "abc123", parsed.Trace)
	assert.Equal(t, "ticker", parsed.Component)
	assert.Equal(t, float64(5), parsed.Metadata["symbols"])
	_, hasTrace := parsed.Metadata["trace"]
	assert.False(t, hasTrace)
}

func TestJSONLoggerStripsColor(t *testing.T) {
	log, buf := newSinkJSON(t, LevelTrace)
	log.Info(RedBold + "alert" + Reset)

	var parsed JSONLogEntry
	require.NoError(t, json.Unmarshal(bytes.TrimSpace(buf.Bytes()), &parsed))
	assert.Equal(t, "alert", parsed.Message)
}
