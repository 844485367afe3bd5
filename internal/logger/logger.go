// Package logger configures the process-wide zerolog logger.
package logger

import (
	"io"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	lumberjack "gopkg.in/natefinch/lumberjack.v2"
)

// Logger is the global logger instance.
var Logger = zerolog.New(os.Stderr).With().Timestamp().Logger()

// Initialize sets up the global logger. Console output goes to stderr; a
// non-empty logFile adds a rotating JSON file next to it.
func Initialize(logLevel, logFile string) {
	zerolog.TimeFieldFormat = time.RFC3339

	var out io.Writer = zerolog.ConsoleWriter{
		Out:        os.Stderr,
		TimeFormat: "2006-01-02 15:04:05",
	}
	if logFile != "" {
		out = zerolog.MultiLevelWriter(out, FileWriter(logFile))
	}

	Logger = New(out, logLevel)
	log.Logger = Logger
}

// New builds a logger writing to w at the given level. Unknown levels fall
// back to info.
func New(w io.Writer, logLevel string) zerolog.Logger {
	return zerolog.New(w).
		Level(ParseLevel(logLevel)).
		With().
		Timestamp().
		Logger()
}

// ParseLevel maps debug, info, warn and error to zerolog levels.
func ParseLevel(logLevel string) zerolog.Level {
	switch strings.ToLower(logLevel) {
	case "debug":
		return zerolog.DebugLevel
	case "warn", "warning":
		return zerolog.WarnLevel
	case "error":
		return zerolog.ErrorLevel
	default:
		return zerolog.InfoLevel
	}
}

// FileWriter returns a size-rotated log file writer.
func FileWriter(path string) io.Writer {
	return &lumberjack.Logger{
		Filename:   path,
		MaxSize:    100, // megabytes
		MaxBackups: 5,
		MaxAge:     28, // days
		Compress:   true,
	}
}

// Get returns the global logger instance.
func Get() *zerolog.Logger {
	return &Logger
}

// GetForComponent returns a logger with a component field for filtering.
func GetForComponent(component string) zerolog.Logger {
	return Logger.With().Str("component", component).Logger()
}
