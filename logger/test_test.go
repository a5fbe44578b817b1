package logger

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTestLoggerMethods(t *testing.T) {
	log := NewTestLogger()

	log.Trace("Trace message", 1)
	log.Debug("Debug message", 2)
	log.Info("Info message", 3)
	log.Warn("Warn message", 4)
	log.Error("Error message", 5)

	entries := log.Entries()
	assert.Len(t, entries, 5)
	assert.Equal(t, "TRACE", entries[0].Severity)
	assert.Equal(t, []interface{}{1}, entries[0].Arguments)
	assert.Equal(t, "WARNING", entries[3].Severity)
	assert.Equal(t, "Error message", entries[4].Message)
	assert.Equal(t, 1, log.Count("ERROR"))
}

func TestTestLoggerWithSharesRecord(t *testing.T) {
	log := NewTestLogger()
	child := log.With(map[string]interface{}{"key1": "value1"}).With(map[string]interface{}{"key2": 42})
	child.Info("retry attempt %d/%d", 1, 3)

	entries := log.Entries()
	assert.Len(t, entries, 1)
	assert.Equal(t, "value1", entries[0].Metadata["key1"])
	assert.Equal(t, 42, entries[0].Metadata["key2"])
	assert.True(t, log.Contains("INFO", "retry attempt 1/3"))
}

func TestTestLoggerPassThroughs(t *testing.T) {
	log := NewTestLogger()
	assert.Equal(t, log, log.WithContext(context.Background()))
	assert.Equal(t, log, log.WithPrefix("prefix"))
	assert.True(t, log.IsLevelEnabled(LevelTrace))
}

func TestTestLoggerStack(t *testing.T) {
	log1 := NewTestLogger()
	log2 := NewTestLogger()
	stacked := log1.Stack(log2)
	stacked.Warn("careful")
	assert.True(t, log1.Contains("WARNING", "careful"))
	assert.True(t, log2.Contains("WARNING", "careful"))
}

func TestTestLoggerConcurrent(t *testing.T) {
	log := NewTestLogger()
	var wg sync.WaitGroup
	for i := range 20 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			log.Debug("worker %d", i)
		}()
	}
	wg.Wait()
	assert.Equal(t, 20, log.Count("DEBUG"))
}
