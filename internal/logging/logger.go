package logging

import (
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/sirupsen/logrus"
	"gopkg.in/natefinch/lumberjack.v2"
)

// RotationConfig describes the optional rotating log file.
type RotationConfig struct {
	Path       string
	MaxSizeMB  int
	MaxBackups int
	MaxAgeDays int
}

// StandardLogger gives every component the same structured fields.
type StandardLogger struct {
	logger *slog.Logger
	closer io.Closer
}

// NewStandardLogger writes JSON logs to stdout.
func NewStandardLogger(logLevel string, environment string) *StandardLogger {
	return NewRotatingLogger(logLevel, environment, RotationConfig{})
}

// NewRotatingLogger writes JSON logs to stdout and, when rotation.Path is set,
// to a lumberjack-managed file.
func NewRotatingLogger(logLevel string, environment string, rotation RotationConfig) *StandardLogger {
	var out io.Writer = os.Stdout
	var closer io.Closer

	if rotation.Path != "" {
		file := &lumberjack.Logger{
			Filename:   rotation.Path,
			MaxSize:    rotation.MaxSizeMB,
			MaxBackups: rotation.MaxBackups,
			MaxAge:     rotation.MaxAgeDays,
			Compress:   true,
		}
		out = io.MultiWriter(os.Stdout, file)
		closer = file
	}

	handler := slog.NewJSONHandler(out, &slog.HandlerOptions{Level: getSlogLevel(logLevel)})
	logger := slog.New(handler)
	if environment != "" {
		logger = logger.With("environment", environment)
	}
	return &StandardLogger{logger: logger, closer: closer}
}

// NewWithHandler is used by tests and by the OTLP bridge.
func NewWithHandler(handler slog.Handler) *StandardLogger {
	return &StandardLogger{logger: slog.New(handler)}
}

// NewDiscardLogger drops everything.
func NewDiscardLogger() *StandardLogger {
	return NewWithHandler(slog.NewJSONHandler(io.Discard, nil))
}

func (l *StandardLogger) WithService(serviceName string) *slog.Logger {
	return l.logger.With("service", serviceName)
}

func (l *StandardLogger) WithComponent(componentName string) *slog.Logger {
	return l.logger.With("component", componentName)
}

func (l *StandardLogger) WithError(err error) *slog.Logger {
	if err == nil {
		return l.logger
	}
	return l.logger.With("error", err.Error())
}

// LogStartup logs application startup information
func (l *StandardLogger) LogStartup(serviceName string, version string, port int) {
	l.logger.Info("Application startup",
		"service", serviceName,
		"version", version,
		"port", port,
		"event", "startup",
	)
}

// LogShutdown logs application shutdown information
func (l *StandardLogger) LogShutdown(serviceName string, reason string) {
	l.logger.Info("Application shutdown",
		"service", serviceName,
		"reason", reason,
		"event", "shutdown",
	)
}

// LogBusinessEvent logs domain events such as a completed collection cycle.
func (l *StandardLogger) LogBusinessEvent(eventType string, details map[string]interface{}) {
	fields := []interface{}{"event", "business", "event_type", eventType}
	for k, v := range details {
		fields = append(fields, k, v)
	}
	l.logger.Info("Business event", fields...)
}

// Logger returns the underlying *slog.Logger
func (l *StandardLogger) Logger() *slog.Logger {
	return l.logger
}

// Close releases the rotating file, if any.
func (l *StandardLogger) Close() error {
	if l.closer == nil {
		return nil
	}
	return l.closer.Close()
}

// getSlogLevel converts string level to slog.Level
func getSlogLevel(level string) slog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// ParseLogrusLevel converts string level to logrus.Level
func ParseLogrusLevel(level string) logrus.Level {
	switch strings.ToLower(level) {
	case "debug":
		return logrus.DebugLevel
	case "warn", "warning":
		return logrus.WarnLevel
	case "error":
		return logrus.ErrorLevel
	default:
		return logrus.InfoLevel
	}
}

// ConfigureLogrus aligns the logrus standard logger used by the storage layer
// with the slog level and JSON output.
func ConfigureLogrus(level string) {
	logrus.SetFormatter(&logrus.JSONFormatter{})
	logrus.SetLevel(ParseLogrusLevel(level))
}
