// Package logging provides leveled structured logging for the pipeline.
// Entries carry a component tag and arbitrary typed fields, and render as
// text or JSON.
package logging

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"sync"
	"time"
)

// Level represents a logging level.
type Level int

const (
	DEBUG Level = iota
	INFO
	WARN
	ERROR
)

// String returns the string representation of Level.
func (l Level) String() string {
	switch l {
	case DEBUG:
		return "DEBUG"
	case INFO:
		return "INFO"
	case WARN:
		return "WARN"
	case ERROR:
		return "ERROR"
	default:
		return "UNKNOWN"
	}
}

// ParseLevel maps a config string to a Level, defaulting to INFO.
func ParseLevel(s string) Level {
	switch strings.ToLower(s) {
	case "debug":
		return DEBUG
	case "warn":
		return WARN
	case "error":
		return ERROR
	default:
		return INFO
	}
}

// Entry is a structured log entry.
type Entry struct {
	Timestamp string         `json:"timestamp"`
	Level     string         `json:"level"`
	Message   string         `json:"message"`
	Service   string         `json:"service,omitempty"`
	Component string         `json:"component,omitempty"`
	Error     string         `json:"error,omitempty"`
	Fields    map[string]any `json:"fields,omitempty"`
	File      string         `json:"file,omitempty"`
	Line      int            `json:"line,omitempty"`
}

// Logger writes leveled structured entries.
type Logger struct {
	level   Level
	format  string // "json" or "text"
	output  io.Writer
	mu      sync.RWMutex
	service string
}

// NewLogger creates a text logger at INFO writing to stdout.
func NewLogger() *Logger {
	return &Logger{
		level:   INFO,
		format:  "text",
		output:  os.Stdout,
		service: "prophet",
	}
}

// SetLevel sets the logging level.
func (l *Logger) SetLevel(level Level) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.level = level
}

// SetFormat sets the logging format ("json" or "text").
func (l *Logger) SetFormat(format string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.format = strings.ToLower(format)
}

// SetOutput sets the logging output destination.
func (l *Logger) SetOutput(output io.Writer) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.output = output
}

// Debug logs a debug message.
func (l *Logger) Debug(msg string, fields ...Field) {
	l.log(DEBUG, msg, fields...)
}

// Info logs an info message.
func (l *Logger) Info(msg string, fields ...Field) {
	l.log(INFO, msg, fields...)
}

// Warn logs a warning message.
func (l *Logger) Warn(msg string, fields ...Field) {
	l.log(WARN, msg, fields...)
}

// Error logs an error message.
func (l *Logger) Error(msg string, err error, fields ...Field) {
	if err != nil {
		fields = append(fields, Err(err))
	}
	l.log(ERROR, msg, fields...)
}

// WithFields returns a logger that attaches fields to every entry.
func (l *Logger) WithFields(fields ...Field) *FieldLogger {
	return &FieldLogger{logger: l, fields: fields}
}

func (l *Logger) log(level Level, msg string, fields ...Field) {
	l.mu.RLock()
	if level < l.level {
		l.mu.RUnlock()
		return
	}
	l.mu.RUnlock()

	entry := l.createEntry(level, msg, fields...)

	var output string
	if l.format == "json" {
		if jsonBytes, err := json.Marshal(entry); err == nil {
			output = string(jsonBytes)
		} else {
			output = fmt.Sprintf("Failed to marshal log entry: %v", err)
		}
	} else {
		output = l.formatTextEntry(entry)
	}

	l.mu.RLock()
	defer l.mu.RUnlock()
	fmt.Fprintln(l.output, output)
}

func (l *Logger) createEntry(level Level, msg string, fields ...Field) *Entry {
	entry := &Entry{
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		Level:     level.String(),
		Message:   msg,
		Service:   l.service,
		Fields:    make(map[string]any),
	}

	if _, file, line, ok := runtime.Caller(3); ok {
		entry.File = filepath.Base(file)
		entry.Line = line
	}

	for _, field := range fields {
		field.Apply(entry)
	}
	return entry
}

func (l *Logger) formatTextEntry(entry *Entry) string {
	var builder strings.Builder

	builder.WriteString(fmt.Sprintf("%s [%s] %s",
		entry.Timestamp,
		entry.Level,
		entry.Message))

	if entry.Component != "" {
		builder.WriteString(fmt.Sprintf(" component=%s", entry.Component))
	}
	if entry.Error != "" {
		builder.WriteString(fmt.Sprintf(" error=%s", entry.Error))
	}
	for key, value := range entry.Fields {
		if str, ok := value.(string); ok {
			builder.WriteString(fmt.Sprintf(" %s=%s", key, str))
		} else {
			builder.WriteString(fmt.Sprintf(" %s=%v", key, value))
		}
	}
	if entry.File != "" && entry.Line != 0 {
		builder.WriteString(fmt.Sprintf(" (%s:%d)", entry.File, entry.Line))
	}
	return builder.String()
}

// Field represents a log field.
type Field interface {
	Apply(entry *Entry)
}

type stringField struct {
	key, value string
}

func (f stringField) Apply(entry *Entry) { entry.Fields[f.key] = f.value }

type intField struct {
	key   string
	value int
}

func (f intField) Apply(entry *Entry) { entry.Fields[f.key] = f.value }

type floatField struct {
	key   string
	value float64
}

func (f floatField) Apply(entry *Entry) { entry.Fields[f.key] = f.value }

type durationField struct {
	key   string
	value time.Duration
}

func (f durationField) Apply(entry *Entry) { entry.Fields[f.key] = f.value.String() }

type errorField struct {
	err error
}

func (f errorField) Apply(entry *Entry) { entry.Error = f.err.Error() }

type componentField struct {
	component string
}

func (f componentField) Apply(entry *Entry) { entry.Component = f.component }

// String creates a string field.
func String(key, value string) Field { return stringField{key: key, value: value} }

// Int creates an integer field.
func Int(key string, value int) Field { return intField{key: key, value: value} }

// Float creates a float field.
func Float(key string, value float64) Field { return floatField{key: key, value: value} }

// Duration creates a duration field.
func Duration(key string, value time.Duration) Field { return durationField{key: key, value: value} }

// Err creates an error field.
func Err(err error) Field { return errorField{err: err} }

// Component creates a component field.
func Component(component string) Field { return componentField{component: component} }

// FieldLogger attaches a fixed field set to every entry.
type FieldLogger struct {
	logger *Logger
	fields []Field
}

// Debug logs a debug message with the attached fields.
func (fl *FieldLogger) Debug(msg string, fields ...Field) {
	fl.logger.Debug(msg, append(fl.fields, fields...)...)
}

// Info logs an info message with the attached fields.
func (fl *FieldLogger) Info(msg string, fields ...Field) {
	fl.logger.Info(msg, append(fl.fields, fields...)...)
}

// Warn logs a warning message with the attached fields.
func (fl *FieldLogger) Warn(msg string, fields ...Field) {
	fl.logger.Warn(msg, append(fl.fields, fields...)...)
}

// Error logs an error message with the attached fields.
func (fl *FieldLogger) Error(msg string, err error, fields ...Field) {
	fl.logger.Error(msg, err, append(fl.fields, fields...)...)
}

var (
	globalLogger *Logger
	loggerOnce   sync.Once
)

// GetLogger returns the global logger instance.
func GetLogger() *Logger {
	loggerOnce.Do(func() {
		globalLogger = NewLogger()
	})
	return globalLogger
}
