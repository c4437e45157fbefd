package logging

import (
	"bytes"
	"errors"
	"strings"
	"testing"
)

func TestNewLogger(t *testing.T) {
	tests := []struct {
		name   string
		config *Config
	}{
		{name: "nil config", config: nil},
		{name: "debug level", config: &Config{Level: LevelDebug, Output: &bytes.Buffer{}}},
		{name: "error level", config: &Config{Level: LevelError, Output: &bytes.Buffer{}}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			logger := NewLogger(tt.config)
			if logger == nil {
				t.Error("NewLogger() returned nil")
			}
		})
	}
}

func TestLoggerLevelGating(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger(&Config{Level: LevelWarn, Output: &buf})

	logger.Debug("debug message")
	logger.Info("info message")
	if buf.Len() != 0 {
		t.Errorf("expected debug/info suppressed at LevelWarn, got: %s", buf.String())
	}

	logger.Warn("warn message")
	if !strings.Contains(buf.String(), "warn message") {
		t.Errorf("expected warn message, got: %s", buf.String())
	}
}

func TestLoggerWithTask(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger(&Config{Level: LevelDebug, Output: &buf})

	taskLogger := logger.WithTask(42, "idle")
	taskLogger.Info("task created")

	output := buf.String()
	if !strings.Contains(output, "pid=42") {
		t.Errorf("expected pid=42 in output, got: %s", output)
	}
	if !strings.Contains(output, "task=idle") {
		t.Errorf("expected task=idle in output, got: %s", output)
	}

	// A field chained onto a task logger accumulates rather than replacing.
	buf.Reset()
	tickLogger := taskLogger.WithTick(7)
	tickLogger.Debug("tick event")

	output = buf.String()
	if !strings.Contains(output, "pid=42") || !strings.Contains(output, "tick=7") {
		t.Errorf("expected pid=42 and tick=7 in output, got: %s", output)
	}
}

func TestLoggerWithError(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger(&Config{Level: LevelDebug, Output: &buf})

	testErr := errors.New("heap exhausted")
	logger.WithError(testErr).Error("task create failed")

	output := buf.String()
	if !strings.Contains(output, "heap exhausted") {
		t.Errorf("expected %q in output, got: %s", "heap exhausted", output)
	}
}

func TestLoggerDoesNotMutateParentFields(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger(&Config{Level: LevelDebug, Output: &buf})

	base := logger.WithTask(1, "low")
	_ = base.WithTick(1)
	_ = base.WithTick(2)

	buf.Reset()
	base.Info("base still bare")
	output := buf.String()
	if strings.Contains(output, "tick=") {
		t.Errorf("expected base logger unaffected by derived loggers, got: %s", output)
	}
}

func TestNilLoggerIsNoOp(t *testing.T) {
	var l *Logger
	// None of these may panic; a nil Logger is the documented "no logger
	// configured" case call sites in internal/kern rely on.
	l.Debug("ignored")
	l.Info("ignored")
	l.Warn("ignored")
	l.Error("ignored")
	l.Infof("ignored %d", 1)
	if got := l.WithTask(1, "x"); got != nil {
		t.Errorf("expected WithTask on nil Logger to stay nil, got %v", got)
	}
}

func TestGlobalLoggerFunctions(t *testing.T) {
	var buf bytes.Buffer
	SetDefault(NewLogger(&Config{Level: LevelDebug, Output: &buf}))

	Debug("debug message", "key", "value")
	output := buf.String()
	if !strings.Contains(output, "debug message") {
		t.Errorf("Expected debug message, got: %s", output)
	}
	if !strings.Contains(output, "key=value") {
		t.Errorf("Expected key=value, got: %s", output)
	}

	buf.Reset()
	Info("info message")
	if !strings.Contains(buf.String(), "info message") {
		t.Errorf("Expected info message, got: %s", buf.String())
	}

	buf.Reset()
	Warn("warning message")
	if !strings.Contains(buf.String(), "warning message") {
		t.Errorf("Expected warning message, got: %s", buf.String())
	}

	buf.Reset()
	Error("error message")
	if !strings.Contains(buf.String(), "error message") {
		t.Errorf("Expected error message, got: %s", buf.String())
	}
}
