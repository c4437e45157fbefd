// Package logging provides level-gated logging for the kernel and its
// surrounding tooling, with a chain of structured context fields (task
// pid/name, scheduler tick, error) that scheduler call sites attach once
// and every subsequent log line on that derived Logger then carries.
package logging

import (
	"fmt"
	"io"
	"log"
	"os"
	"sync"
)

// core is the state shared by a Logger and every Logger derived from it
// via With*, so concurrent writers created from the same root never
// interleave output on the underlying writer.
type core struct {
	logger *log.Logger
	level  LogLevel
	mu     sync.Mutex
}

// Logger wraps stdlib log with level support and an inherited chain of
// structured fields. A nil *Logger is valid and discards everything, so
// callers never need to guard an optional logger before using it.
type Logger struct {
	c      *core
	fields []any
}

var (
	defaultLogger *Logger
	mu            sync.RWMutex
)

// LogLevel represents the available log levels
type LogLevel int

const (
	LevelDebug LogLevel = iota
	LevelInfo
	LevelWarn
	LevelError
)

// Config holds logging configuration
type Config struct {
	Level  LogLevel
	Output io.Writer
}

// DefaultConfig returns a sensible default configuration
func DefaultConfig() *Config {
	return &Config{
		Level:  LevelInfo,
		Output: os.Stderr,
	}
}

// NewLogger creates a new logger
func NewLogger(config *Config) *Logger {
	if config == nil {
		config = DefaultConfig()
	}
	output := config.Output
	if output == nil {
		output = os.Stderr
	}
	return &Logger{c: &core{logger: log.New(output, "", log.LstdFlags), level: config.Level}}
}

// Default returns the default logger, creating it if necessary
func Default() *Logger {
	mu.RLock()
	if defaultLogger != nil {
		defer mu.RUnlock()
		return defaultLogger
	}
	mu.RUnlock()

	mu.Lock()
	defer mu.Unlock()
	if defaultLogger == nil {
		defaultLogger = NewLogger(nil)
	}
	return defaultLogger
}

// SetDefault sets the default logger
func SetDefault(logger *Logger) {
	mu.Lock()
	defer mu.Unlock()
	defaultLogger = logger
}

// WithField returns a Logger that prefixes every subsequent log line with
// key=value, in addition to the fields it already carries.
func (l *Logger) WithField(key string, value any) *Logger {
	if l == nil {
		return nil
	}
	next := make([]any, len(l.fields), len(l.fields)+2)
	copy(next, l.fields)
	next = append(next, key, value)
	return &Logger{c: l.c, fields: next}
}

// WithTask tags every subsequent log line with a task's pid and name — the
// identifying pair every scheduler trace in internal/kern needs, since a
// task can be renamed-in-log-only by neither (pids get reused, names
// don't uniquely identify a live task either).
func (l *Logger) WithTask(pid uint16, name string) *Logger {
	return l.WithField("pid", pid).WithField("task", name)
}

// WithTick tags every subsequent log line with the scheduler tick it
// happened on.
func (l *Logger) WithTick(tick uint64) *Logger {
	return l.WithField("tick", tick)
}

// WithError tags every subsequent log line with an error value.
func (l *Logger) WithError(err error) *Logger {
	return l.WithField("error", err)
}

// formatArgs converts key-value pairs to a string
func formatArgs(args []any) string {
	if len(args) == 0 {
		return ""
	}
	var result string
	for i := 0; i < len(args); i += 2 {
		if i+1 < len(args) {
			if result != "" {
				result += " "
			}
			result += fmt.Sprintf("%v=%v", args[i], args[i+1])
		}
	}
	if result != "" {
		return " " + result
	}
	return ""
}

func (l *Logger) log(level LogLevel, prefix, msg string, args ...any) {
	if l == nil {
		return
	}
	if level < l.c.level {
		return
	}
	all := args
	if len(l.fields) > 0 {
		all = make([]any, 0, len(l.fields)+len(args))
		all = append(all, l.fields...)
		all = append(all, args...)
	}
	l.c.mu.Lock()
	defer l.c.mu.Unlock()
	l.c.logger.Printf("%s %s%s", prefix, msg, formatArgs(all))
}

func (l *Logger) Debug(msg string, args ...any) {
	l.log(LevelDebug, "[DEBUG]", msg, args...)
}

func (l *Logger) Info(msg string, args ...any) {
	l.log(LevelInfo, "[INFO]", msg, args...)
}

func (l *Logger) Warn(msg string, args ...any) {
	l.log(LevelWarn, "[WARN]", msg, args...)
}

func (l *Logger) Error(msg string, args ...any) {
	l.log(LevelError, "[ERROR]", msg, args...)
}

// Printf-style logging
func (l *Logger) Debugf(format string, args ...any) {
	l.log(LevelDebug, "[DEBUG]", fmt.Sprintf(format, args...))
}

func (l *Logger) Infof(format string, args ...any) {
	l.log(LevelInfo, "[INFO]", fmt.Sprintf(format, args...))
}

func (l *Logger) Warnf(format string, args ...any) {
	l.log(LevelWarn, "[WARN]", fmt.Sprintf(format, args...))
}

func (l *Logger) Errorf(format string, args ...any) {
	l.log(LevelError, "[ERROR]", fmt.Sprintf(format, args...))
}

// Printf for compatibility
func (l *Logger) Printf(format string, args ...any) {
	l.Infof(format, args...)
}

// Global convenience functions
func Debug(msg string, args ...any) {
	Default().Debug(msg, args...)
}

func Info(msg string, args ...any) {
	Default().Info(msg, args...)
}

func Warn(msg string, args ...any) {
	Default().Warn(msg, args...)
}

func Error(msg string, args ...any) {
	Default().Error(msg, args...)
}
