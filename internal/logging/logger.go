// Package logging provides the structured logger used across Horizon.
//
// Log lines carry a message, a level, optional key/value fields and an
// optional correlation ID. The retention controller assigns one correlation
// ID per tick so every line emitted by a tick can be grouped.
package logging

import (
	"encoding/json"
	"io"
	"os"
	"runtime"
	"sort"
	"strconv"
	"sync"
	"time"
)

// Level is the severity of a log line.
type Level int

const (
	LevelDebug Level = iota
	LevelInfo
	LevelWarn
	LevelError
)

func (l Level) String() string {
	switch l {
	case LevelDebug:
		return "debug"
	case LevelInfo:
		return "info"
	case LevelWarn:
		return "warn"
	case LevelError:
		return "error"
	default:
		return "unknown"
	}
}

// ParseLevel maps a level name to a Level. Unknown names map to LevelInfo.
func ParseLevel(s string) Level {
	switch s {
	case "debug":
		return LevelDebug
	case "warn", "warning":
		return LevelWarn
	case "error":
		return LevelError
	default:
		return LevelInfo
	}
}

// Format selects how log lines are rendered.
type Format int

const (
	FormatJSON Format = iota
	FormatText
)

// ParseFormat maps "json" or "text" to a Format. Unknown names map to JSON.
func ParseFormat(s string) Format {
	if s == "text" {
		return FormatText
	}
	return FormatJSON
}

// Entry is one rendered log line.
type Entry struct {
	Timestamp     time.Time      `json:"timestamp"`
	Level         string         `json:"level"`
	Message       string         `json:"message"`
	CorrelationID string         `json:"correlationId,omitempty"`
	Caller        string         `json:"caller,omitempty"`
	Fields        map[string]any `json:"fields,omitempty"`
}

// Config holds the settings used by New.
type Config struct {
	Level     Level
	Format    Format
	Output    io.Writer
	AddCaller bool
}

// Logger writes structured log lines. Loggers derived with With or
// WithCorrelationID share the parent's output and lock.
type Logger struct {
	out           *syncWriter
	level         Level
	format        Format
	addCaller     bool
	fields        map[string]any
	correlationID string
}

type syncWriter struct {
	mu sync.Mutex
	w  io.Writer
}

func (s *syncWriter) write(p []byte) {
	s.mu.Lock()
	_, _ = s.w.Write(p)
	s.mu.Unlock()
}

// New creates a Logger. A nil Output writes to stderr.
func New(cfg Config) *Logger {
	out := cfg.Output
	if out == nil {
		out = os.Stderr
	}
	return &Logger{
		out:       &syncWriter{w: out},
		level:     cfg.Level,
		format:    cfg.Format,
		addCaller: cfg.AddCaller,
	}
}

// DefaultLogger returns an info-level JSON logger on stderr.
func DefaultLogger() *Logger {
	return New(Config{Level: LevelInfo, Format: FormatJSON})
}

// Nop returns a logger that discards everything.
func Nop() *Logger {
	return New(Config{Level: LevelError + 1, Output: io.Discard})
}

// Level returns the minimum level this logger emits.
func (l *Logger) Level() Level {
	return l.level
}

func (l *Logger) clone() *Logger {
	c := *l
	c.fields = make(map[string]any, len(l.fields))
	for k, v := range l.fields {
		c.fields[k] = v
	}
	return &c
}

// With returns a child logger that adds fields to every line.
func (l *Logger) With(fields map[string]any) *Logger {
	c := l.clone()
	for k, v := range fields {
		c.fields[k] = v
	}
	return c
}

// WithCorrelationID returns a child logger tagged with id.
func (l *Logger) WithCorrelationID(id string) *Logger {
	c := l.clone()
	c.correlationID = id
	return c
}

// CorrelationID returns the logger's correlation ID, if any.
func (l *Logger) CorrelationID() string {
	return l.correlationID
}

func (l *Logger) Debug(msg string)                          { l.log(LevelDebug, msg, nil) }
func (l *Logger) Debugf(msg string, fields map[string]any) { l.log(LevelDebug, msg, fields) }
func (l *Logger) Info(msg string)                           { l.log(LevelInfo, msg, nil) }
func (l *Logger) Infof(msg string, fields map[string]any)  { l.log(LevelInfo, msg, fields) }
func (l *Logger) Warn(msg string)                           { l.log(LevelWarn, msg, nil) }
func (l *Logger) Warnf(msg string, fields map[string]any)  { l.log(LevelWarn, msg, fields) }
func (l *Logger) Error(msg string)                          { l.log(LevelError, msg, nil) }
func (l *Logger) Errorf(msg string, fields map[string]any) { l.log(LevelError, msg, fields) }

func (l *Logger) log(level Level, msg string, extra map[string]any) {
	if level < l.level {
		return
	}

	entry := Entry{
		Timestamp:     time.Now().UTC(),
		Level:         level.String(),
		Message:       msg,
		CorrelationID: l.correlationID,
	}

	if l.addCaller {
		if _, file, line, ok := runtime.Caller(2); ok {
			entry.Caller = file + ":" + strconv.Itoa(line)
		}
	}

	if len(l.fields)+len(extra) > 0 {
		entry.Fields = make(map[string]any, len(l.fields)+len(extra))
		for k, v := range l.fields {
			entry.Fields[k] = v
		}
		for k, v := range extra {
			if err, ok := v.(error); ok {
				v = err.Error()
			}
			entry.Fields[k] = v
		}
	}

	var data []byte
	if l.format == FormatText {
		data = formatText(entry)
	} else {
		data, _ = json.Marshal(entry)
		data = append(data, '\n')
	}
	l.out.write(data)
}

func formatText(e Entry) []byte {
	buf := make([]byte, 0, 256)
	buf = e.Timestamp.AppendFormat(buf, time.RFC3339)
	buf = append(buf, " ["...)
	buf = append(buf, e.Level...)
	buf = append(buf, "] "...)
	buf = append(buf, e.Message...)

	if e.CorrelationID != "" {
		buf = append(buf, " correlationId="...)
		buf = append(buf, e.CorrelationID...)
	}
	if e.Caller != "" {
		buf = append(buf, " caller="...)
		buf = append(buf, e.Caller...)
	}

	keys := make([]string, 0, len(e.Fields))
	for k := range e.Fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		buf = append(buf, ' ')
		buf = append(buf, k...)
		buf = append(buf, '=')
		switch v := e.Fields[k].(type) {
		case string:
			buf = append(buf, v...)
		case error:
			buf = append(buf, v.Error()...)
		default:
			data, _ := json.Marshal(v)
			buf = append(buf, data...)
		}
	}
	return append(buf, '\n')
}
