// Package commands provides CLI command handlers for oasengine.
package commands

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"strconv"
	"strings"

	"github.com/goccy/go-json"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.yaml.in/yaml/v4"

	"github.com/erraggy/oasengine"
	"github.com/erraggy/oasengine/parser"
)

// Output format constants
const (
	FormatText = "text"
	FormatJSON = "json"
	FormatYAML = "yaml"
)

// Log format constants
const (
	LogFormatText = "text"
	LogFormatJSON = "json"
	LogFormatZap  = "zap"
)

// StdinFilePath is the special file path used to indicate reading from stdin.
const StdinFilePath = "-"

// ValidateOutputFormat validates an output format and returns an error if invalid.
func ValidateOutputFormat(format string) error {
	if format != FormatText && format != FormatJSON && format != FormatYAML {
		return fmt.Errorf("invalid format '%s'. Valid formats: %s, %s, %s", format, FormatText, FormatJSON, FormatYAML)
	}
	return nil
}

// OutputStructured writes data to w in the specified format (json or yaml).
func OutputStructured(w io.Writer, data any, format string) error {
	var (
		out []byte
		err error
	)
	switch format {
	case FormatJSON:
		out, err = json.MarshalIndent(data, "", "  ")
	case FormatYAML:
		out, err = yaml.Marshal(data)
	default:
		return fmt.Errorf("invalid format for structured output: %s", format)
	}
	if err != nil {
		return fmt.Errorf("marshaling to %s: %w", format, err)
	}
	Writef(w, "%s\n", strings.TrimRight(string(out), "\n"))
	return nil
}

// Writef writes formatted output to the writer.
// If the write fails, it logs to stderr (useful for debugging).
func Writef(w io.Writer, format string, args ...any) {
	if _, err := fmt.Fprintf(w, format, args...); err != nil {
		_, _ = fmt.Fprintf(os.Stderr, "write error: %v\n", err)
	}
}

// FormatSpecPath returns "<stdin>" for StdinFilePath, otherwise the path.
func FormatSpecPath(specPath string) string {
	if specPath == StdinFilePath {
		return "<stdin>"
	}
	return specPath
}

// OutputSpecHeader writes the version banner shared by the text outputs.
func OutputSpecHeader(w io.Writer, specPath string, doc *parser.Document) {
	Writef(w, "oasengine version: %s\n", oasengine.Version())
	Writef(w, "Contract: %s\n", FormatSpecPath(specPath))
	Writef(w, "OAS Version: %s\n", doc.Version)
	if doc.OpenAPI.Info != nil {
		Writef(w, "Title: %s (%s)\n", doc.OpenAPI.Info.Title, doc.OpenAPI.Info.Version)
	}
}

// LogFlags are the logging flags shared by commands that log.
type LogFlags struct {
	Format string
	Level  string
}

// defaultLogFlags reads OASENGINE_LOG_FORMAT and OASENGINE_LOG_LEVEL.
func defaultLogFlags() LogFlags {
	return LogFlags{
		Format: envString("OASENGINE_LOG_FORMAT", LogFormatText),
		Level:  envString("OASENGINE_LOG_LEVEL", "info"),
	}
}

// NewLogger builds the logger selected by f, writing to w. The zap logger
// always writes to stderr.
func NewLogger(f LogFlags, w io.Writer) (parser.Logger, error) {
	switch f.Format {
	case LogFormatText, LogFormatJSON:
		var level slog.Level
		if err := level.UnmarshalText([]byte(f.Level)); err != nil {
			return nil, fmt.Errorf("invalid log level %q: %w", f.Level, err)
		}
		opts := &slog.HandlerOptions{Level: level}
		var h slog.Handler = slog.NewTextHandler(w, opts)
		if f.Format == LogFormatJSON {
			h = slog.NewJSONHandler(w, opts)
		}
		return parser.NewSlogAdapter(slog.New(h)), nil
	case LogFormatZap:
		level, err := zapcore.ParseLevel(f.Level)
		if err != nil {
			return nil, fmt.Errorf("invalid log level %q: %w", f.Level, err)
		}
		cfg := zap.NewProductionConfig()
		cfg.Level = zap.NewAtomicLevelAt(level)
		z, err := cfg.Build()
		if err != nil {
			return nil, fmt.Errorf("building zap logger: %w", err)
		}
		return parser.NewZapAdapter(z), nil
	default:
		return nil, fmt.Errorf("invalid log format '%s'. Valid formats: %s, %s, %s", f.Format, LogFormatText, LogFormatJSON, LogFormatZap)
	}
}

func envString(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func envBool(key string, def bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		slog.Warn("invalid env var, using default", "key", key, "value", v, "default", def)
		return def
	}
	return b
}

func envInt64(key string, def int64) int64 {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	n, err := strconv.ParseInt(v, 10, 64)
	if err != nil || n <= 0 {
		slog.Warn("invalid env var, using default", "key", key, "value", v, "default", def)
		return def
	}
	return n
}
