// internal/logger/logger.go
package logger

import (
	"io"
	"os"
	"strings"
	"sync"

	"github.com/rs/zerolog"
)

var (
	mu  sync.RWMutex
	log = newLogger(os.Stderr)
)

func newLogger(w io.Writer) zerolog.Logger {
	return zerolog.New(zerolog.ConsoleWriter{Out: w, TimeFormat: "15:04:05"}).With().Timestamp().Logger()
}

// Init initializes the logger. TAKEOUT_GEOTAG_LOG_LEVEL sets the starting level.
func Init() {
	SetLevel(os.Getenv("TAKEOUT_GEOTAG_LOG_LEVEL"))
}

// SetOutput sets the output for all levels
func SetOutput(w io.Writer) {
	mu.Lock()
	defer mu.Unlock()
	log = newLogger(w)
}

// SetLevel sets the log level; unknown values fall back to info
func SetLevel(levelStr string) {
	switch strings.ToLower(levelStr) {
	case "debug":
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	case "warn", "warning":
		zerolog.SetGlobalLevel(zerolog.WarnLevel)
	case "error":
		zerolog.SetGlobalLevel(zerolog.ErrorLevel)
	default:
		zerolog.SetGlobalLevel(zerolog.InfoLevel)
	}
}

// Logger returns the underlying structured logger
func Logger() *zerolog.Logger {
	mu.RLock()
	defer mu.RUnlock()
	l := log
	return &l
}

// Debug logs a debug message
func Debug(format string, v ...interface{}) {
	Logger().Debug().Msgf(format, v...)
}

// Info logs an info message
func Info(format string, v ...interface{}) {
	Logger().Info().Msgf(format, v...)
}

// Warn logs a warning message
func Warn(format string, v ...interface{}) {
	Logger().Warn().Msgf(format, v...)
}

// Error logs an error message
func Error(format string, v ...interface{}) {
	Logger().Error().Msgf(format, v...)
}
