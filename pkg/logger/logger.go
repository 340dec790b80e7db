// Package logger provides the process-wide structured logger.
package logger

import (
	"context"
	"io"
	"os"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

var (
	once   sync.Once
	logger zerolog.Logger
)

type Level = zerolog.Level

const (
	DebugLevel = zerolog.DebugLevel
	InfoLevel  = zerolog.InfoLevel
	WarnLevel  = zerolog.WarnLevel
	ErrorLevel = zerolog.ErrorLevel
	FatalLevel = zerolog.FatalLevel
)

// Config controls the global logger's destination and format.
type Config struct {
	Level      string `yaml:"level" json:"level"`
	Format     string `yaml:"format" json:"format"` // json/console
	Output     string `yaml:"output" json:"output"` // stdout/stderr/file
	FilePath   string `yaml:"file_path,omitempty" json:"file_path,omitempty"`
	TimeFormat string `yaml:"time_format,omitempty" json:"time_format,omitempty"`
}

func DefaultConfig() Config {
	return Config{
		Level:      "info",
		Format:     "console",
		Output:     "stdout",
		TimeFormat: time.RFC3339,
	}
}

// Init configures the global logger. Safe to call multiple times; only the
// first call takes effect.
func Init(cfg Config) {
	once.Do(func() {
		level := parseLevel(cfg.Level)
		zerolog.SetGlobalLevel(level)

		var output io.Writer
		switch cfg.Output {
		case "stderr":
			output = os.Stderr
		case "file":
			if cfg.FilePath != "" {
				if f, err := os.OpenFile(cfg.FilePath, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644); err == nil {
					output = f
				} else {
					output = os.Stdout
				}
			} else {
				output = os.Stdout
			}
		default:
			output = os.Stdout
		}

		if cfg.Format == "console" {
			output = zerolog.ConsoleWriter{Out: output, TimeFormat: cfg.TimeFormat}
		}

		logger = zerolog.New(output).With().Timestamp().Logger()
	})
}

func parseLevel(level string) zerolog.Level {
	switch level {
	case "debug":
		return zerolog.DebugLevel
	case "info":
		return zerolog.InfoLevel
	case "warn", "warning":
		return zerolog.WarnLevel
	case "error":
		return zerolog.ErrorLevel
	case "fatal":
		return zerolog.FatalLevel
	default:
		return zerolog.InfoLevel
	}
}

// Get returns the global logger, initializing it with defaults if Init has
// not been called yet.
func Get() *zerolog.Logger {
	Init(DefaultConfig())
	return &logger
}

// WithContext returns a logger enriched with the request ID carried on ctx,
// if any.
func WithContext(ctx context.Context) *zerolog.Logger {
	l := Get().With().Logger()
	if reqID, ok := ctx.Value(ctxKeyRequestID).(string); ok {
		l = l.With().Str("request_id", reqID).Logger()
	}
	return &l
}

type ctxKey int

const ctxKeyRequestID ctxKey = iota

func Debug() *zerolog.Event { return Get().Debug() }
func Info() *zerolog.Event  { return Get().Info() }
func Warn() *zerolog.Event  { return Get().Warn() }
func Error() *zerolog.Event { return Get().Error() }
func Fatal() *zerolog.Event { return Get().Fatal() }

func WithError(err error) *zerolog.Event { return Get().Error().Err(err) }

func WithField(key string, value interface{}) *zerolog.Logger {
	l := Get().With().Interface(key, value).Logger()
	return &l
}

func WithFields(fields map[string]interface{}) *zerolog.Logger {
	ctx := Get().With()
	for k, v := range fields {
		ctx = ctx.Interface(k, v)
	}
	l := ctx.Logger()
	return &l
}

// RosterLogger is the component logger used by the solve pipeline.
type RosterLogger struct {
	base *zerolog.Logger
}

func NewRosterLogger() *RosterLogger {
	l := Get().With().Str("component", "engine").Logger()
	return &RosterLogger{base: &l}
}

// StartSolve logs the start of a quarter solve attempt.
func (l *RosterLogger) StartSolve(quarterStart string, staffCount, dayCount int) {
	l.base.Info().
		Str("quarter_start", quarterStart).
		Int("staff", staffCount).
		Int("days", dayCount).
		Msg("starting roster solve")
}

// ConstraintViolation logs a hard constraint breach surfaced by the
// validator.
func (l *RosterLogger) ConstraintViolation(constraint, details string) {
	l.base.Warn().
		Str("constraint", constraint).
		Str("details", details).
		Msg("constraint violated")
}

// SolveComplete logs the outcome of a solve attempt.
func (l *RosterLogger) SolveComplete(quarterStart string, duration time.Duration, feasible bool) {
	l.base.Info().
		Str("quarter_start", quarterStart).
		Dur("duration", duration).
		Bool("feasible", feasible).
		Msg("roster solve complete")
}
