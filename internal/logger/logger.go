package logger

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/rs/zerolog"
)

// Level is the logging level.
type Level int

const (
	Debug Level = iota
	Info
	Warn
	Error
)

// Logger is a basic logger wrapper.
type Logger struct {
	level   Level
	logger  zerolog.Logger
	enabled bool
	closer  io.Closer
}

var (
	mu           sync.RWMutex
	globalLogger *Logger
)

// Init initializes the logger.
func Init(enabled bool, levelStr, logFile string, console bool) error {
	if !enabled {
		swap(&Logger{enabled: false})
		return nil
	}

	level := parseLevel(levelStr)
	var writers []io.Writer
	var closer io.Closer

	if logFile != "" {
		dir := filepath.Dir(logFile)
		if dir != "." && dir != "" {
			if err := os.MkdirAll(dir, 0755); err != nil {
				return fmt.Errorf("failed to create log directory: %w", err)
			}
		}
		f, err := os.OpenFile(logFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
		if err != nil {
			return fmt.Errorf("failed to open log file: %w", err)
		}
		writers = append(writers, f)
		closer = f
	}

	if console || len(writers) == 0 {
		writers = append(writers, zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: "2006-01-02 15:04:05"})
	}

	swap(&Logger{
		level:   level,
		logger:  zerolog.New(zerolog.MultiLevelWriter(writers...)).With().Timestamp().Logger(),
		enabled: true,
		closer:  closer,
	})
	return nil
}

// SetOutput routes all log output to w at the given level. Used by tests.
func SetOutput(w io.Writer, levelStr string) {
	swap(&Logger{
		level:   parseLevel(levelStr),
		logger:  zerolog.New(w).With().Timestamp().Logger(),
		enabled: true,
	})
}

// Close releases the log file, if any.
func Close() error {
	mu.Lock()
	defer mu.Unlock()
	if globalLogger == nil || globalLogger.closer == nil {
		return nil
	}
	err := globalLogger.closer.Close()
	globalLogger.closer = nil
	return err
}

func swap(l *Logger) {
	mu.Lock()
	defer mu.Unlock()
	if globalLogger != nil && globalLogger.closer != nil {
		_ = globalLogger.closer.Close()
	}
	globalLogger = l
}

func parseLevel(levelStr string) Level {
	switch strings.ToLower(levelStr) {
	case "debug":
		return Debug
	case "info":
		return Info
	case "warn", "warning":
		return Warn
	case "error":
		return Error
	default:
		return Info
	}
}

// active returns the logger if it accepts level. Callers hold mu.
func active(level Level) *Logger {
	if globalLogger == nil || !globalLogger.enabled || globalLogger.level > level {
		return nil
	}
	return globalLogger
}

// logf keeps the read lock for the whole write so swap and Close cannot
// close the underlying file mid-write.
func logf(level Level, format string, args []interface{}) {
	mu.RLock()
	defer mu.RUnlock()
	l := active(level)
	if l == nil {
		return
	}
	var ev *zerolog.Event
	switch level {
	case Debug:
		ev = l.logger.Debug()
	case Warn:
		ev = l.logger.Warn()
	case Error:
		ev = l.logger.Error()
	default:
		ev = l.logger.Info()
	}
	ev.Msgf(format, args...)
}

// Debugf logs a debug message.
func Debugf(format string, args ...interface{}) {
	logf(Debug, format, args)
}

// Infof logs an info message.
func Infof(format string, args ...interface{}) {
	logf(Info, format, args)
}

// Warnf logs a warning.
func Warnf(format string, args ...interface{}) {
	logf(Warn, format, args)
}

// Errorf logs an error message.
func Errorf(format string, args ...interface{}) {
	logf(Error, format, args)
}
