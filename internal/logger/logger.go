package logger

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"runtime"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/rama-kairi/minios/internal/config"
)

// LogLevel represents the severity level of a log entry
type LogLevel int

const (
	DEBUG LogLevel = iota
	INFO
	WARN
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

// defaultLogFile is used when the output is configured as "file"
const defaultLogFile = "minios.log"

// LogEntry represents a single log entry
type LogEntry struct {
	Timestamp string                 `json:"timestamp"`
	Level     string                 `json:"level"`
	Message   string                 `json:"message"`
	Component string                 `json:"component,omitempty"`
	SessionID string                 `json:"session_id,omitempty"`
	User      string                 `json:"user,omitempty"`
	Command   string                 `json:"command,omitempty"`
	Duration  string                 `json:"duration,omitempty"`
	Error     string                 `json:"error,omitempty"`
	File      string                 `json:"file,omitempty"`
	Line      int                    `json:"line,omitempty"`
	Fields    map[string]interface{} `json:"fields,omitempty"`
}

// Logger provides structured logging capabilities
type Logger struct {
	level      LogLevel
	format     string
	output     io.Writer
	mu         *sync.RWMutex
	component  string
	baseFields map[string]interface{}
	fileHandle *os.File
}

// NewLogger creates a new logger instance
func NewLogger(cfg *config.LoggingConfig, component string) (*Logger, error) {
	level := parseLogLevel(cfg.Level)

	var output io.Writer
	var fileHandle *os.File
	switch cfg.Output {
	case "stderr":
		output = os.Stderr
	case "stdout":
		output = os.Stdout
	case "discard":
		output = io.Discard
	case "file":
		file, err := os.OpenFile(defaultLogFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			return nil, fmt.Errorf("failed to open log file: %w", err)
		}
		output = file
		fileHandle = file
	default:
		// Treat as file path
		if strings.HasPrefix(cfg.Output, "/") || strings.Contains(cfg.Output, ".log") {
			file, err := os.OpenFile(cfg.Output, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
			if err != nil {
				return nil, fmt.Errorf("failed to open log file %s: %w", cfg.Output, err)
			}
			output = file
			fileHandle = file
		} else {
			output = os.Stderr
		}
	}

	return &Logger{
		level:      level,
		format:     cfg.Format,
		output:     output,
		mu:         &sync.RWMutex{},
		component:  component,
		baseFields: make(map[string]interface{}),
		fileHandle: fileHandle,
	}, nil
}

// New creates a logger writing to an arbitrary writer
func New(w io.Writer, level, format, component string) *Logger {
	return &Logger{
		level:      parseLogLevel(level),
		format:     format,
		output:     w,
		mu:         &sync.RWMutex{},
		component:  component,
		baseFields: make(map[string]interface{}),
	}
}

// Nop returns a logger that discards everything
func Nop() *Logger {
	return New(io.Discard, "error", "text", "")
}

// Close closes any open file handles
func (l *Logger) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.fileHandle != nil {
		err := l.fileHandle.Close()
		l.fileHandle = nil
		return err
	}
	return nil
}

// SetLevel sets the logging level
func (l *Logger) SetLevel(level string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.level = parseLogLevel(level)
}

// SetBaseField sets a base field that will be included in all log entries
func (l *Logger) SetBaseField(key string, value interface{}) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.baseFields[key] = value
}

// WithFields returns a new logger instance with additional fields.
// Derived loggers share the parent's output and lock.
func (l *Logger) WithFields(fields map[string]interface{}) *Logger {
	l.mu.RLock()
	defer l.mu.RUnlock()

	newLogger := &Logger{
		level:      l.level,
		format:     l.format,
		output:     l.output,
		mu:         l.mu,
		component:  l.component,
		baseFields: make(map[string]interface{}, len(l.baseFields)+len(fields)),
	}

	for k, v := range l.baseFields {
		newLogger.baseFields[k] = v
	}

	for k, v := range fields {
		newLogger.baseFields[k] = v
	}

	return newLogger
}

// WithSession returns a logger with session ID and user
func (l *Logger) WithSession(sessionID, user string) *Logger {
	return l.WithFields(map[string]interface{}{
		"session_id": sessionID,
		"user":       user,
	})
}

// WithComponent returns a logger with component name
func (l *Logger) WithComponent(component string) *Logger {
	newLogger := l.WithFields(nil)
	newLogger.component = component
	return newLogger
}

// Debug logs a debug message
func (l *Logger) Debug(message string, fields ...map[string]interface{}) {
	l.log(DEBUG, message, "", fields...)
}

// Info logs an info message
func (l *Logger) Info(message string, fields ...map[string]interface{}) {
	l.log(INFO, message, "", fields...)
}

// Warn logs a warning message
func (l *Logger) Warn(message string, fields ...map[string]interface{}) {
	l.log(WARN, message, "", fields...)
}

// Error logs an error message
func (l *Logger) Error(message string, err error, fields ...map[string]interface{}) {
	errorStr := ""
	if err != nil {
		errorStr = err.Error()
	}
	l.log(ERROR, message, errorStr, fields...)
}

// LogCommand logs a dispatched command
func (l *Logger) LogCommand(command string, args []string, duration time.Duration, err error) {
	fields := map[string]interface{}{
		"command":  command,
		"args":     len(args),
		"duration": duration.String(),
	}

	if err != nil {
		l.Error("Command finished with error", err, fields)
	} else {
		l.Debug("Command finished", fields)
	}
}

// LogAuthEvent logs login, logout and registration events
func (l *Logger) LogAuthEvent(event, username string, success bool, fields ...map[string]interface{}) {
	authFields := map[string]interface{}{
		"event":   event,
		"user":    username,
		"success": success,
	}

	if len(fields) > 0 {
		for k, v := range fields[0] {
			authFields[k] = v
		}
	}

	if success {
		l.Info(fmt.Sprintf("Auth %s", event), authFields)
	} else {
		l.Warn(fmt.Sprintf("Auth %s failed", event), authFields)
	}
}

// log is the internal logging method
func (l *Logger) log(level LogLevel, message, errorStr string, fields ...map[string]interface{}) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	if level < l.level {
		return
	}

	_, file, line, ok := runtime.Caller(3)
	if ok {
		parts := strings.Split(file, "/")
		file = parts[len(parts)-1]
	}

	entry := LogEntry{
		Timestamp: time.Now().UTC().Format(time.RFC3339Nano),
		Level:     level.String(),
		Message:   message,
		Component: l.component,
		Error:     errorStr,
		File:      file,
		Line:      line,
		Fields:    make(map[string]interface{}),
	}

	for k, v := range l.baseFields {
		entry.setField(k, v)
	}

	if len(fields) > 0 {
		for k, v := range fields[0] {
			entry.setField(k, v)
		}
	}

	if len(entry.Fields) == 0 {
		entry.Fields = nil
	}

	var output string
	if l.format == "json" {
		data, _ := json.Marshal(entry)
		output = string(data) + "\n"
	} else {
		output = l.formatTextEntry(entry)
	}

	l.output.Write([]byte(output))
}

// setField routes well-known keys to their dedicated entry fields
func (e *LogEntry) setField(k string, v interface{}) {
	switch k {
	case "session_id":
		e.SessionID = fmt.Sprintf("%v", v)
	case "user":
		e.User = fmt.Sprintf("%v", v)
	case "command":
		e.Command = fmt.Sprintf("%v", v)
	case "duration":
		e.Duration = fmt.Sprintf("%v", v)
	default:
		e.Fields[k] = v
	}
}

// formatTextEntry formats a log entry as human-readable text
func (l *Logger) formatTextEntry(entry LogEntry) string {
	var parts []string

	parts = append(parts, fmt.Sprintf("[%s] %s", entry.Timestamp[:19], entry.Level))

	if entry.Component != "" {
		parts = append(parts, fmt.Sprintf("[%s]", entry.Component))
	}

	if entry.SessionID != "" {
		sessionID := entry.SessionID
		if len(sessionID) > 8 {
			sessionID = sessionID[:8]
		}
		parts = append(parts, fmt.Sprintf("[session:%s]", sessionID))
	}

	if entry.User != "" {
		parts = append(parts, fmt.Sprintf("[user:%s]", entry.User))
	}

	parts = append(parts, entry.Message)

	if entry.Error != "" {
		parts = append(parts, fmt.Sprintf("error=%s", entry.Error))
	}

	if entry.Command != "" {
		parts = append(parts, fmt.Sprintf("cmd=%q", entry.Command))
	}

	if entry.Duration != "" {
		parts = append(parts, fmt.Sprintf("duration=%s", entry.Duration))
	}

	if entry.Fields != nil {
		keys := make([]string, 0, len(entry.Fields))
		for k := range entry.Fields {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			parts = append(parts, fmt.Sprintf("%s=%v", k, entry.Fields[k]))
		}
	}

	// File and line (only in debug mode)
	if l.level == DEBUG && entry.File != "" {
		parts = append(parts, fmt.Sprintf("(%s:%d)", entry.File, entry.Line))
	}

	return strings.Join(parts, " ") + "\n"
}

// parseLogLevel converts a string to LogLevel
func parseLogLevel(level string) LogLevel {
	switch strings.ToLower(level) {
	case "debug":
		return DEBUG
	case "info":
		return INFO
	case "warn", "warning":
		return WARN
	case "error":
		return ERROR
	default:
		return INFO
	}
}
