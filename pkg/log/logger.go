// Leveled logging for the temperature tower post-processor
//
// The rewriter core reports through the Echo interface so that callers (CLI,
// tests, the websocket monitor) can route human-readable progress and
// diagnostic messages wherever they want. Logger is the default Echo sink.
//
// Copyright (C) 2026  TempTower Go Team
//
// This file may be distributed under the terms of the GNU GPLv3 license.

package log

import (
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"time"
)

// LogLevel represents the severity of a log message
type LogLevel int

const (
	// DEBUG level for detailed debugging information
	DEBUG LogLevel = iota

	// INFO level for general informational messages
	INFO

	// WARN level for warning messages
	WARN

	// ERROR level for error messages
	ERROR
)

// String returns the string representation of the log level
func (l LogLevel) String() string {
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

// ParseLevel parses a string into a LogLevel
func ParseLevel(s string) LogLevel {
	switch strings.ToUpper(s) {
	case "DEBUG":
		return DEBUG
	case "INFO":
		return INFO
	case "WARN", "WARNING":
		return WARN
	case "ERROR":
		return ERROR
	default:
		return INFO
	}
}

// Echo is the log/progress channel consumed by the rewriter core. Messages
// are human-readable and not meant for machine parsing; Progress receives a
// monotonically increasing percentage string such as "37%".
type Echo interface {
	Debug(msg string, args ...interface{})
	Info(msg string, args ...interface{})
	Warn(msg string, args ...interface{})
	Error(msg string, args ...interface{})
	Progress(percent string)
}

// Logger is a leveled text logger with an optional prefix
type Logger struct {
	mu           sync.Mutex
	prefix       string
	writer       io.Writer
	level        LogLevel
	timeFormat   string
	colorize     bool
	showProgress bool
	lastProgress string
}

var ansiColors = map[LogLevel]string{
	DEBUG: "\x1b[36m", // Cyan
	INFO:  "\x1b[32m", // Green
	WARN:  "\x1b[33m", // Yellow
	ERROR: "\x1b[31m", // Red
}

const ansiReset = "\x1b[0m"

// New creates a new logger with the given prefix
func New(prefix string) *Logger {
	l := &Logger{
		prefix:     prefix,
		writer:     os.Stderr,
		level:      INFO,
		timeFormat: "2006-01-02 15:04:05.000",
		colorize:   os.Getenv("NO_COLOR") == "",
	}
	if levelStr := os.Getenv("TEMPTOWER_LOG_LEVEL"); levelStr != "" {
		l.level = ParseLevel(levelStr)
	}
	return l
}

// SetLevel sets the minimum log level
func (l *Logger) SetLevel(level LogLevel) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.level = level
}

// SetWriter sets the output writer (e.g., for testing)
func (l *Logger) SetWriter(w io.Writer) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.writer = w
}

// SetColorize enables or disables colorized output
func (l *Logger) SetColorize(enable bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.colorize = enable
}

// SetShowProgress enables echoing of per-line progress percentages. Off by
// default since a large gcode file produces one update per line.
func (l *Logger) SetShowProgress(enable bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.showProgress = enable
}

// WithPrefix returns a new logger that shares nothing with the original
// except its configuration
func (l *Logger) WithPrefix(prefix string) *Logger {
	l.mu.Lock()
	defer l.mu.Unlock()
	return &Logger{
		prefix:     prefix,
		writer:     l.writer,
		level:      l.level,
		timeFormat: l.timeFormat,
		colorize:   l.colorize,
	}
}

func (l *Logger) log(level LogLevel, msg string, args ...interface{}) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if level < l.level {
		return
	}
	if len(args) > 0 {
		msg = fmt.Sprintf(msg, args...)
	}

	var sb strings.Builder
	sb.WriteString(time.Now().Format(l.timeFormat))
	sb.WriteString(" [")
	sb.WriteString(fmt.Sprintf("%-5s", level.String()))
	sb.WriteString("] ")
	if l.colorize {
		sb.WriteString(ansiColors[level])
	}
	sb.WriteString(l.prefix)
	if l.colorize {
		sb.WriteString(ansiReset)
	}
	sb.WriteString(": ")
	sb.WriteString(msg)
	sb.WriteString("\n")
	fmt.Fprint(l.writer, sb.String())
}

// Debug logs a message at DEBUG level
func (l *Logger) Debug(msg string, args ...interface{}) {
	l.log(DEBUG, msg, args...)
}

// Info logs a message at INFO level
func (l *Logger) Info(msg string, args ...interface{}) {
	l.log(INFO, msg, args...)
}

// Warn logs a message at WARN level
func (l *Logger) Warn(msg string, args ...interface{}) {
	l.log(WARN, msg, args...)
}

// Error logs a message at ERROR level
func (l *Logger) Error(msg string, args ...interface{}) {
	l.log(ERROR, msg, args...)
}

// Progress records the latest progress percentage; echoed at DEBUG level,
// or INFO when SetShowProgress(true) was called.
func (l *Logger) Progress(percent string) {
	l.mu.Lock()
	show := l.showProgress
	l.lastProgress = percent
	l.mu.Unlock()
	if show {
		l.log(INFO, "progress %s", percent)
	} else {
		l.log(DEBUG, "progress %s", percent)
	}
}

// LastProgress returns the most recent progress percentage
func (l *Logger) LastProgress() string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.lastProgress
}

// Nop is an Echo that discards everything; used by tests and benchmarks.
type Nop struct{}

// Debug discards the message
func (Nop) Debug(string, ...interface{}) {}

// Info discards the message
func (Nop) Info(string, ...interface{}) {}

// Warn discards the message
func (Nop) Warn(string, ...interface{}) {}

// Error discards the message
func (Nop) Error(string, ...interface{}) {}

// Progress discards the percentage
func (Nop) Progress(string) {}
