package logging

import (
	"os"
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Logger is a wrapper around zap.Logger
type Logger struct {
	*zap.Logger
}

// Config holds logging configuration
type Config struct {
	// Level is the log level (debug, info, warn, error)
	Level string
	// Format is the log format (json or console)
	Format string
	// OutputPaths is a list of paths to write logs to
	OutputPaths []string
	// Development enables development mode (caller and stack traces)
	Development bool
}

// DefaultConfig returns the configuration used by the CLI.
// Logs go to stderr so command output on stdout stays clean.
func DefaultConfig() Config {
	return Config{
		Level:       "warn",
		Format:      "console",
		OutputPaths: []string{"stderr"},
	}
}

// DevelopmentConfig returns a configuration for development
func DevelopmentConfig() Config {
	return Config{
		Level:       "debug",
		Format:      "console",
		OutputPaths: []string{"stderr"},
		Development: true,
	}
}

// NewLogger creates a new logger with the given configuration
func NewLogger(config Config) (*Logger, error) {
	var encoderConfig zapcore.EncoderConfig
	if config.Development {
		encoderConfig = zap.NewDevelopmentEncoderConfig()
	} else {
		encoderConfig = zap.NewProductionEncoderConfig()
	}
	encoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	encoderConfig.EncodeDuration = zapcore.StringDurationEncoder

	outputs := config.OutputPaths
	if len(outputs) == 0 {
		outputs = []string{"stderr"}
	}
	format := config.Format
	if format == "" {
		format = "console"
	}

	zapConfig := zap.Config{
		Level:             zap.NewAtomicLevelAt(parseLevel(config.Level)),
		Development:       config.Development,
		DisableCaller:     !config.Development,
		DisableStacktrace: !config.Development,
		Encoding:          format,
		EncoderConfig:     encoderConfig,
		OutputPaths:       outputs,
		ErrorOutputPaths:  []string{"stderr"},
	}

	logger, err := zapConfig.Build()
	if err != nil {
		return nil, err
	}

	return &Logger{logger}, nil
}

// NewLoggerFromEnv creates a logger based on environment variables
// BANK_LOG_LEVEL: log level (default: warn)
// BANK_LOG_FORMAT: log format (default: console)
// BANK_LOG_DEV: enable development mode (default: false)
func NewLoggerFromEnv() (*Logger, error) {
	config := DefaultConfig()
	if os.Getenv("BANK_LOG_DEV") == "true" {
		config = DevelopmentConfig()
	}
	if level := os.Getenv("BANK_LOG_LEVEL"); level != "" {
		config.Level = level
	}
	if format := os.Getenv("BANK_LOG_FORMAT"); format != "" {
		config.Format = format
	}

	return NewLogger(config)
}

// NewNoOpLogger creates a logger that discards all logs
func NewNoOpLogger() *Logger {
	return &Logger{zap.NewNop()}
}

func parseLevel(level string) zapcore.Level {
	switch strings.ToLower(level) {
	case "debug":
		return zapcore.DebugLevel
	case "info":
		return zapcore.InfoLevel
	case "warn", "warning":
		return zapcore.WarnLevel
	case "error":
		return zapcore.ErrorLevel
	default:
		return zapcore.InfoLevel
	}
}

// With creates a child logger with additional fields
func (l *Logger) With(fields ...zap.Field) *Logger {
	return &Logger{l.Logger.With(fields...)}
}

// Named creates a child logger with a name
func (l *Logger) Named(name string) *Logger {
	return &Logger{l.Logger.Named(name)}
}

// Component returns the child logger used by one client component,
// e.g. Component("state", "transfers").
func (l *Logger) Component(parts ...string) *Logger {
	child := l
	for _, p := range parts {
		child = child.Named(p)
	}
	return child
}

// Token returns a field with the bearer token masked.
func Token(token string) zap.Field {
	return zap.String("token", MaskSecret(token))
}

// MaskSecret keeps only the last four characters of s.
func MaskSecret(s string) string {
	if s == "" {
		return ""
	}
	if len(s) <= 4 {
		return "****"
	}
	return "****" + s[len(s)-4:]
}

var global = NewNoOpLogger()

// SetGlobal sets the global logger instance
func SetGlobal(logger *Logger) {
	global = logger
}

// L returns the global logger instance
func L() *Logger {
	return global
}
