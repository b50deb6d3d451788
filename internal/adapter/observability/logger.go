// Package observability provides the structured logger used across the
// polling pipeline.
package observability

import (
	"context"
	"encoding/json"
	"log"
	"sort"
	"strings"
	"time"
)

// LogLevel defines the logging verbosity level.
type LogLevel int

const (
	LogLevelDebug LogLevel = iota
	LogLevelInfo
	LogLevelError
)

// LogFormat defines the output format for logs.
type LogFormat int

const (
	LogFormatHuman LogFormat = iota
	LogFormatJSON
)

// ParseLevel maps a config string to a LogLevel, defaulting to info.
func ParseLevel(s string) LogLevel {
	switch strings.ToLower(s) {
	case "debug":
		return LogLevelDebug
	case "error":
		return LogLevelError
	default:
		return LogLevelInfo
	}
}

// Logger writes leveled, structured log records to the process log.
type Logger struct {
	level  LogLevel
	format LogFormat
}

// NewLogger creates a logger with the specified level and format.
func NewLogger(level LogLevel, format LogFormat) *Logger {
	return &Logger{level: level, format: format}
}

// LogDebug logs a debug message with structured fields.
func (l *Logger) LogDebug(ctx context.Context, message string, fields map[string]interface{}) {
	if l.level > LogLevelDebug {
		return
	}
	l.emit("debug", message, fields)
}

// LogInfo logs an informational message with structured fields.
func (l *Logger) LogInfo(ctx context.Context, message string, fields map[string]interface{}) {
	if l.level > LogLevelInfo {
		return
	}
	l.emit("info", message, fields)
}

// LogWarning logs a warning message with structured fields.
func (l *Logger) LogWarning(ctx context.Context, message string, fields map[string]interface{}) {
	if l.level > LogLevelInfo {
		return
	}
	l.emit("warning", message, fields)
}

// LogError logs an error message with structured fields.
func (l *Logger) LogError(ctx context.Context, message string, fields map[string]interface{}) {
	l.emit("error", message, fields)
}

func (l *Logger) emit(level, message string, fields map[string]interface{}) {
	if l.format == LogFormatJSON {
		record := make(map[string]interface{}, len(fields)+3)
		for k, v := range fields {
			record[k] = v
		}
		record["level"] = level
		record["msg"] = message
		record["timestamp"] = time.Now().UTC().Format(time.RFC3339)

		encoded, err := json.Marshal(record)
		if err != nil {
			log.Printf("[%s] %s %v", strings.ToUpper(level), message, fields)
			return
		}
		log.Print(string(encoded))
		return
	}

	log.Printf("[%s] %s%s", strings.ToUpper(level), message, formatFields(fields))
}

// formatFields renders fields as " (k=v, k=v)" with deterministic ordering.
func formatFields(fields map[string]interface{}) string {
	if len(fields) == 0 {
		return ""
	}
	keys := make([]string, 0, len(fields))
	for k := range fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var b strings.Builder
	b.WriteString(" (")
	for i, k := range keys {
		if i > 0 {
			b.WriteString(", ")
		}
		b.WriteString(k)
		b.WriteString("=")
		b.WriteString(strings.TrimSpace(strings.ReplaceAll(toString(fields[k]), "\n", " ")))
	}
	b.WriteString(")")
	return b.String()
}

func toString(v interface{}) string {
	switch val := v.(type) {
	case string:
		return val
	case error:
		return val.Error()
	default:
		encoded, err := json.Marshal(val)
		if err != nil {
			return "?"
		}
		return string(encoded)
	}
}
