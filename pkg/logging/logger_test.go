package logging

import (
	"bytes"
	"encoding/json"
	"errors"
	"os"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewLogger(t *testing.T) {
	logger := NewLogger()

	assert.NotNil(t, logger)
	assert.Equal(t, INFO, logger.level)
	assert.Equal(t, "text", logger.format)
	assert.Equal(t, os.Stdout, logger.output)
	assert.Equal(t, "prophet", logger.service)
}

func TestParseLevel(t *testing.T) {
	assert.Equal(t, DEBUG, ParseLevel("debug"))
	assert.Equal(t, WARN, ParseLevel("WARN"))
	assert.Equal(t, ERROR, ParseLevel("error"))
	assert.Equal(t, INFO, ParseLevel("info"))
	assert.Equal(t, INFO, ParseLevel("nonsense"))
}

func TestLogger_LevelFiltering(t *testing.T) {
	tests := []struct {
		name      string
		level     Level
		wantDebug bool
		wantInfo  bool
		wantWarn  bool
	}{
		{"debug level passes everything", DEBUG, true, true, true},
		{"info level drops debug", INFO, false, true, true},
		{"error level drops warn", ERROR, false, false, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			logger := NewLogger()
			logger.SetOutput(&buf)
			logger.SetLevel(tt.level)

			logger.Debug("debug message")
			logger.Info("info message")
			logger.Warn("warn message")

			out := buf.String()
			assert.Equal(t, tt.wantDebug, strings.Contains(out, "debug message"))
			assert.Equal(t, tt.wantInfo, strings.Contains(out, "info message"))
			assert.Equal(t, tt.wantWarn, strings.Contains(out, "warn message"))
		})
	}
}

func TestLogger_TextFormat(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger()
	logger.SetOutput(&buf)

	logger.Info("scoring pairs", Component("pipeline"), String("condition", "Ctrl"), Int("pairs", 42))

	out := buf.String()
	assert.Contains(t, out, "[INFO] scoring pairs")
	assert.Contains(t, out, "component=pipeline")
	assert.Contains(t, out, "condition=Ctrl")
	assert.Contains(t, out, "pairs=42")
}

func TestLogger_JSONFormat(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger()
	logger.SetOutput(&buf)
	logger.SetFormat("JSON")

	logger.Error("store failed", errors.New("disk full"), Component("resultstore"))

	var entry Entry
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "ERROR", entry.Level)
	assert.Equal(t, "store failed", entry.Message)
	assert.Equal(t, "disk full", entry.Error)
	assert.Equal(t, "resultstore", entry.Component)
	assert.Equal(t, "prophet", entry.Service)
	assert.NotEmpty(t, entry.Timestamp)
}

func TestFieldLogger_AttachesFields(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger()
	logger.SetOutput(&buf)

	fl := logger.WithFields(Component("scheduler"), String("job", "nightly"))
	fl.Info("job scheduled", String("schedule", "@daily"))

	out := buf.String()
	assert.Contains(t, out, "component=scheduler")
	assert.Contains(t, out, "job=nightly")
	assert.Contains(t, out, "schedule=@daily")
}

func TestGetLogger_Singleton(t *testing.T) {
	first := GetLogger()
	second := GetLogger()
	assert.Same(t, first, second)
}
