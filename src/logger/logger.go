package logger

import (
	"fmt"
	"io"
	"os"
	"strings"

	"portfolio-stream/src/models"

	"github.com/rs/zerolog"
)

// -----------------------------------------------------------------------------

// Logger provides structured logging functionality
type Logger struct {
	name   string
	base   zerolog.Logger
	logger zerolog.Logger
}

// -----------------------------------------------------------------------------

// NewLogger creates a new Logger instance writing JSON lines to stdout.
// cfg may be nil, in which case the level defaults to INFO.
func NewLogger(cfg *models.MConfig, name string) *Logger {
	return NewLoggerWithWriter(cfg, name, os.Stdout)
}

// -----------------------------------------------------------------------------

// NewLoggerWithWriter is NewLogger with an explicit output.
func NewLoggerWithWriter(cfg *models.MConfig, name string, w io.Writer) *Logger {
	level := zerolog.InfoLevel
	if cfg != nil {
		level = parseLevel(cfg.LogLevel)
	}

	base := zerolog.New(w).Level(level).With().Timestamp().Logger()
	return &Logger{
		name:   name,
		base:   base,
		logger: base.With().Str("component", name).Logger(),
	}
}

// -----------------------------------------------------------------------------

// Named returns a logger sharing the same output and level under a new name.
func (l *Logger) Named(name string) *Logger {
	return &Logger{
		name:   name,
		base:   l.base,
		logger: l.base.With().Str("component", name).Logger(),
	}
}

// -----------------------------------------------------------------------------

func parseLevel(level string) zerolog.Level {
	switch strings.ToUpper(level) {
	case "DEBUG":
		return zerolog.DebugLevel
	case "WARNING", "WARN":
		return zerolog.WarnLevel
	case "ERROR":
		return zerolog.ErrorLevel
	default:
		return zerolog.InfoLevel
	}
}

// -----------------------------------------------------------------------------

// Debug logs diagnostic messages
func (l *Logger) Debug(format string, args ...interface{}) {
	l.logger.Debug().Msg(fmt.Sprintf(format, args...))
}

// -----------------------------------------------------------------------------

// Warning logs recoverable problems
func (l *Logger) Warning(format string, args ...interface{}) {
	l.logger.Warn().Msg(fmt.Sprintf(format, args...))
}

// -----------------------------------------------------------------------------

// Info logs informational messages
func (l *Logger) Info(format string, args ...interface{}) {
	l.logger.Info().Msg(fmt.Sprintf(format, args...))
}

// -----------------------------------------------------------------------------

// Error logs error messages
func (l *Logger) Error(format string, args ...interface{}) {
	l.logger.Error().Msg(fmt.Sprintf(format, args...))
}

// -----------------------------------------------------------------------------

// Critical logs critical errors and exits the application
func (l *Logger) Critical(format string, args ...interface{}) {
	l.logger.WithLevel(zerolog.FatalLevel).Msg(fmt.Sprintf(format, args...))
	os.Exit(1)
}
