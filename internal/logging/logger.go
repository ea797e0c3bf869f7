// Package logging provides the process-wide structured logger used during
// background execution. Records are JSON lines written to a size-capped
// ring file shared with the main application.
package logging

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// Logger writes leveled JSON log records to a single sink.
type Logger struct {
	mu       sync.Mutex
	out      io.Writer
	minLevel Level
	ring     *RingFile
}

var (
	// global is nil until Init installs the file-backed logger.
	global   *Logger
	globalMu sync.RWMutex
	once     sync.Once

	// fallback receives records before Init and after a failed Init.
	// Stderr so the host's console capture still sees them.
	fallback = &Logger{out: os.Stderr, minLevel: LevelInfo}
)

// Init initializes the process-wide logger with a ring file sink at path,
// creating parent directories as needed. The first call wins; later calls
// log a debug record on the existing sink and change nothing. If the path
// cannot be opened the stderr fallback stays active. Init never panics.
func Init(path string) {
	initialized := false
	once.Do(func() {
		initialized = true
		logger, err := openFileLogger(path)
		if err != nil {
			fallback.Error("failed to open log file, keeping stderr sink", err,
				map[string]interface{}{"path": path})
			return
		}

		globalMu.Lock()
		global = logger
		globalMu.Unlock()

		logger.Info("background logging initialized", map[string]interface{}{"path": path})
	})

	if !initialized {
		Get().Debug("logger already initialized", map[string]interface{}{"path": path})
	}
}

// Get returns the process-wide logger, or the stderr fallback before Init.
func Get() *Logger {
	globalMu.RLock()
	defer globalMu.RUnlock()

	if global != nil {
		return global
	}
	return fallback
}

// openFileLogger opens a ring file sink at path. The file sink records all
// levels; filtering is the host's concern for forwarded records.
func openFileLogger(path string) (*Logger, error) {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create log directory: %w", err)
		}
	}

	ring, err := OpenRingFile(path, DefaultRingSize)
	if err != nil {
		return nil, err
	}

	return &Logger{
		out:      ring,
		minLevel: LevelTrace,
		ring:     ring,
	}, nil
}

// LogEntry represents a structured log entry.
type LogEntry struct {
	Timestamp string                 `json:"timestamp"`
	Level     string                 `json:"level"`
	Message   string                 `json:"message"`
	Error     string                 `json:"error,omitempty"`
	Context   map[string]interface{} `json:"context,omitempty"`
}

// log writes a log entry at the specified level.
func (l *Logger) log(level Level, message string, err error, context map[string]interface{}) {
	if !l.shouldLog(level) {
		return
	}

	entry := LogEntry{
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		Level:     level.String(),
		Message:   message,
		Context:   context,
	}
	if err != nil {
		entry.Error = err.Error()
	}

	data, jsonErr := json.Marshal(entry)
	if jsonErr != nil {
		// Nothing sane to do with an unmarshalable record.
		return
	}
	data = append(data, '\n')

	// One locked write per record keeps concurrent lines whole.
	l.mu.Lock()
	defer l.mu.Unlock()
	l.out.Write(data)
}

// shouldLog checks if a level should be logged. Unknown records always pass,
// since an out-of-range code from the host is itself worth seeing.
func (l *Logger) shouldLog(level Level) bool {
	return level == LevelUnknown || level >= l.minLevel
}

// Log writes a record at an arbitrary level, as decoded from the host.
func (l *Logger) Log(level Level, message string, context ...map[string]interface{}) {
	l.log(level, message, nil, mergeContext(context...))
}

// Trace logs a trace message.
func (l *Logger) Trace(message string, context ...map[string]interface{}) {
	l.log(LevelTrace, message, nil, mergeContext(context...))
}

// Debug logs a debug message.
func (l *Logger) Debug(message string, context ...map[string]interface{}) {
	l.log(LevelDebug, message, nil, mergeContext(context...))
}

// Info logs an info message.
func (l *Logger) Info(message string, context ...map[string]interface{}) {
	l.log(LevelInfo, message, nil, mergeContext(context...))
}

// Warn logs a warning message.
func (l *Logger) Warn(message string, context ...map[string]interface{}) {
	l.log(LevelWarn, message, nil, mergeContext(context...))
}

// Error logs an error message.
func (l *Logger) Error(message string, err error, context ...map[string]interface{}) {
	l.log(LevelError, message, err, mergeContext(context...))
}

// mergeContext merges multiple context maps.
func mergeContext(context ...map[string]interface{}) map[string]interface{} {
	if len(context) == 0 {
		return nil
	}
	if len(context) == 1 {
		return context[0]
	}
	merged := make(map[string]interface{})
	for _, c := range context {
		for k, v := range c {
			merged[k] = v
		}
	}
	return merged
}

// Convenience functions using the process-wide logger

func Log(level Level, message string, context ...map[string]interface{}) {
	Get().Log(level, message, context...)
}

func Trace(message string, context ...map[string]interface{}) {
	Get().Trace(message, context...)
}

func Debug(message string, context ...map[string]interface{}) {
	Get().Debug(message, context...)
}

func Info(message string, context ...map[string]interface{}) {
	Get().Info(message, context...)
}

func Warn(message string, context ...map[string]interface{}) {
	Get().Warn(message, context...)
}

func Error(message string, err error, context ...map[string]interface{}) {
	Get().Error(message, err, context...)
}
