// Package logger provides leveled logging with support for debug, info, warn, and error levels.
// It wraps the standard log package to provide level-based filtering and either
// plain-text or one-object-per-line JSON output.
package logger

import (
	"encoding/json"
	"fmt"
	"io"
	"log"
	"os"
	"runtime"
	"strings"
	"sync"
	"time"
)

// Level represents a logging level
type Level int

const (
	// DebugLevel logs are typically voluminous, and are usually disabled in production.
	DebugLevel Level = iota
	// InfoLevel is the default logging priority.
	InfoLevel
	// WarnLevel logs are more important than Info, but don't need individual human review.
	WarnLevel
	// ErrorLevel logs are high-priority. If a run is healthy, it shouldn't generate any error-level logs.
	ErrorLevel
)

var levelNames = map[Level]string{
	DebugLevel: "DEBUG",
	InfoLevel:  "INFO",
	WarnLevel:  "WARN",
	ErrorLevel: "ERROR",
}

// ParseLevel maps a config level name to a Level, defaulting to InfoLevel.
func ParseLevel(level string) Level {
	switch strings.ToLower(level) {
	case "debug":
		return DebugLevel
	case "warn":
		return WarnLevel
	case "error":
		return ErrorLevel
	default:
		return InfoLevel
	}
}

// Logger provides leveled logging
type Logger struct {
	level  Level
	json   bool
	logger *log.Logger
}

var (
	mu sync.RWMutex
	// Global logger instance
	defaultLogger *Logger
)

// Init initializes the default logger with the specified level and format
func Init(level string, format string) {
	initWith(os.Stderr, ParseLevel(level), format)
}

// SetOutput redirects the default logger, keeping its level and format.
// Mainly useful in tests.
func SetOutput(w io.Writer) {
	mu.Lock()
	defer mu.Unlock()
	if defaultLogger == nil {
		defaultLogger = newLogger(w, InfoLevel, "text")
		return
	}
	defaultLogger.logger.SetOutput(w)
}

func initWith(w io.Writer, l Level, format string) {
	mu.Lock()
	defer mu.Unlock()
	defaultLogger = newLogger(w, l, format)
}

func newLogger(w io.Writer, l Level, format string) *Logger {
	if strings.ToLower(format) == "json" {
		return &Logger{level: l, json: true, logger: log.New(w, "", 0)}
	}
	return &Logger{level: l, logger: log.New(w, "", log.LstdFlags|log.Lmicroseconds|log.Lshortfile)}
}

type jsonLine struct {
	Time    string `json:"time"`
	Level   string `json:"level"`
	Caller  string `json:"caller,omitempty"`
	Message string `json:"msg"`
}

// output writes one record. calldepth counts frames above output.
func output(l Level, name string, calldepth int, format string, args ...interface{}) {
	mu.RLock()
	lg := defaultLogger
	mu.RUnlock()
	if lg == nil || lg.level > l {
		return
	}

	msg := fmt.Sprintf(format, args...)
	if !lg.json {
		_ = lg.logger.Output(calldepth+1, "["+name+"] "+msg)
		return
	}

	line := jsonLine{Time: time.Now().UTC().Format(time.RFC3339Nano), Level: strings.ToLower(name), Message: msg}
	if _, file, no, ok := runtime.Caller(calldepth); ok {
		line.Caller = fmt.Sprintf("%s:%d", shortFile(file), no)
	}
	b, err := json.Marshal(line)
	if err != nil {
		_ = lg.logger.Output(calldepth+1, "["+name+"] "+msg)
		return
	}
	_ = lg.logger.Output(calldepth+1, string(b))
}

func shortFile(path string) string {
	if i := strings.LastIndexByte(path, '/'); i >= 0 {
		return path[i+1:]
	}
	return path
}

// Debug logs a message at DebugLevel
func Debug(format string, args ...interface{}) {
	output(DebugLevel, levelNames[DebugLevel], 2, format, args...)
}

// Info logs a message at InfoLevel
func Info(format string, args ...interface{}) {
	output(InfoLevel, levelNames[InfoLevel], 2, format, args...)
}

// Warn logs a message at WarnLevel
func Warn(format string, args ...interface{}) {
	output(WarnLevel, levelNames[WarnLevel], 2, format, args...)
}

// Error logs a message at ErrorLevel
func Error(format string, args ...interface{}) {
	output(ErrorLevel, levelNames[ErrorLevel], 2, format, args...)
}

// Fatal logs a message at ErrorLevel and exits
func Fatal(format string, args ...interface{}) {
	mu.RLock()
	lg := defaultLogger
	mu.RUnlock()
	if lg == nil {
		log.Fatalf("[FATAL] "+format, args...)
	}
	output(ErrorLevel, "FATAL", 2, format, args...)
	os.Exit(1)
}
