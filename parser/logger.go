package parser

import (
	"log/slog"

	"go.uber.org/zap"
)

// Logger is the interface that oasengine uses for structured logging.
//
// It uses variadic key-value pairs for structured attributes, following the
// same convention as log/slog:
//
//	logger.Debug("route resolved", "method", "GET", "path", "/pets/{id}")
//
// # Usage with log/slog
//
//	handler := slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelDebug})
//	logger := parser.NewSlogAdapter(slog.New(handler))
//
// # Usage with zap
//
//	z, _ := zap.NewProduction()
//	logger := parser.NewZapAdapter(z)
type Logger interface {
	// Debug logs at debug level. Use for detailed diagnostic information.
	Debug(msg string, attrs ...any)

	// Info logs at info level. Use for general operational information.
	Info(msg string, attrs ...any)

	// Warn logs at warn level. Use for potentially harmful situations.
	Warn(msg string, attrs ...any)

	// Error logs at error level. Use for error conditions.
	Error(msg string, attrs ...any)

	// With returns a new Logger with the given attributes prepended to every log.
	With(attrs ...any) Logger
}

// NopLogger is a no-op logger that discards all output.
// It is the default logger used when no logger is configured.
type NopLogger struct{}

// Debug implements Logger.
func (NopLogger) Debug(_ string, _ ...any) {}

// Info implements Logger.
func (NopLogger) Info(_ string, _ ...any) {}

// Warn implements Logger.
func (NopLogger) Warn(_ string, _ ...any) {}

// Error implements Logger.
func (NopLogger) Error(_ string, _ ...any) {}

// With implements Logger.
func (n NopLogger) With(_ ...any) Logger { return n }

var _ Logger = NopLogger{}

// SlogAdapter wraps a *slog.Logger to implement the Logger interface.
type SlogAdapter struct {
	logger *slog.Logger
}

// NewSlogAdapter creates a new SlogAdapter from a *slog.Logger.
// If logger is nil, slog.Default() is used.
func NewSlogAdapter(logger *slog.Logger) *SlogAdapter {
	if logger == nil {
		logger = slog.Default()
	}
	return &SlogAdapter{logger: logger}
}

// Debug implements Logger.
func (s *SlogAdapter) Debug(msg string, attrs ...any) {
	s.logger.Debug(msg, attrs...)
}

// Info implements Logger.
func (s *SlogAdapter) Info(msg string, attrs ...any) {
	s.logger.Info(msg, attrs...)
}

// Warn implements Logger.
func (s *SlogAdapter) Warn(msg string, attrs ...any) {
	s.logger.Warn(msg, attrs...)
}

// Error implements Logger.
func (s *SlogAdapter) Error(msg string, attrs ...any) {
	s.logger.Error(msg, attrs...)
}

// With implements Logger.
func (s *SlogAdapter) With(attrs ...any) Logger {
	return &SlogAdapter{logger: s.logger.With(attrs...)}
}

var _ Logger = (*SlogAdapter)(nil)

// ZapAdapter wraps a zap logger using its sugared key-value API.
type ZapAdapter struct {
	logger *zap.SugaredLogger
}

// NewZapAdapter creates a ZapAdapter. A nil logger falls back to zap.L().
func NewZapAdapter(logger *zap.Logger) *ZapAdapter {
	if logger == nil {
		logger = zap.L()
	}
	return &ZapAdapter{logger: logger.Sugar()}
}

// Debug implements Logger.
func (z *ZapAdapter) Debug(msg string, attrs ...any) { z.logger.Debugw(msg, attrs...) }

// Info implements Logger.
func (z *ZapAdapter) Info(msg string, attrs ...any) { z.logger.Infow(msg, attrs...) }

// Warn implements Logger.
func (z *ZapAdapter) Warn(msg string, attrs ...any) { z.logger.Warnw(msg, attrs...) }

// Error implements Logger.
func (z *ZapAdapter) Error(msg string, attrs ...any) { z.logger.Errorw(msg, attrs...) }

// With implements Logger.
func (z *ZapAdapter) With(attrs ...any) Logger {
	return &ZapAdapter{logger: z.logger.With(attrs...)}
}

// Sync flushes buffered log entries.
func (z *ZapAdapter) Sync() error {
	return z.logger.Sync()
}

var _ Logger = (*ZapAdapter)(nil)
