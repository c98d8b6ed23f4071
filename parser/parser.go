package parser

import (
	"errors"
	"fmt"
	"io"
	"os"

	"go.yaml.in/yaml/v4"

	"github.com/erraggy/oasengine/oaserrors"
)

// Option is a function that configures a parse operation
type Option func(*parseConfig) error

// parseConfig holds configuration for a parse operation
type parseConfig struct {
	// Input source (exactly one must be set)
	filePath *string
	reader   io.Reader
	bytes    []byte

	logger     Logger
	sourceName *string
}

// ParseWithOptions parses a contract using functional options.
//
// Example:
//
//	doc, err := parser.ParseWithOptions(
//	    parser.WithFilePath("openapi.yaml"),
//	    parser.WithLogger(parser.NewSlogAdapter(nil)),
//	)
func ParseWithOptions(opts ...Option) (*Document, error) {
	cfg, err := applyOptions(opts...)
	if err != nil {
		return nil, fmt.Errorf("parser: invalid options: %w", err)
	}

	var (
		data   []byte
		name   string
		format = SourceFormatUnknown
	)
	switch {
	case cfg.filePath != nil:
		data, err = os.ReadFile(*cfg.filePath)
		if err != nil {
			return nil, fmt.Errorf("parser: failed to read file: %w", err)
		}
		name = *cfg.filePath
		format = detectFormatFromPath(name)
	case cfg.reader != nil:
		data, err = io.ReadAll(cfg.reader)
		if err != nil {
			return nil, fmt.Errorf("parser: failed to read data: %w", err)
		}
		name = "ParseReader"
	default:
		data = cfg.bytes
		name = "ParseBytes"
	}
	if format == SourceFormatUnknown {
		format = detectFormatFromContent(data)
	}
	if cfg.sourceName != nil {
		name = *cfg.sourceName
	}

	doc, err := parseBytes(data, name)
	if err != nil {
		return nil, err
	}
	doc.SourceFormat = format
	cfg.logger.Debug("parsed contract",
		"source", name,
		"format", string(format),
		"version", doc.Version,
		"paths", len(doc.pathOrder),
	)
	return doc, nil
}

// ParseFile parses the contract at path.
func ParseFile(path string) (*Document, error) {
	return ParseWithOptions(WithFilePath(path))
}

// ParseBytes parses a contract held in memory.
func ParseBytes(data []byte) (*Document, error) {
	return ParseWithOptions(WithBytes(data))
}

func parseBytes(data []byte, name string) (*Document, error) {
	var root yaml.Node
	if err := yaml.Unmarshal(data, &root); err != nil {
		perr := &oaserrors.ParseError{Path: name, Message: "invalid YAML or JSON", Cause: err}
		var loadErrs *yaml.LoadErrors
		if errors.As(err, &loadErrs) && len(loadErrs.Errors) > 0 {
			perr.Line = loadErrs.Errors[0].Line
		}
		return nil, perr
	}
	v, err := nodeToValue(&root, 0)
	if err != nil {
		return nil, &oaserrors.ParseError{Path: name, Cause: err}
	}
	m, ok := v.(map[string]any)
	if !ok {
		return nil, &oaserrors.ParseError{Path: name, Message: fmt.Sprintf("document root must be an object, got %T", v)}
	}
	doc := &Document{
		SourcePath: name,
		Data:       m,
		pathOrder:  mappingKeys(childNode(&root, "paths")),
	}
	if err := doc.Reload(); err != nil {
		return nil, err
	}
	return doc, nil
}

// applyOptions applies option functions and validates configuration
func applyOptions(opts ...Option) (*parseConfig, error) {
	cfg := &parseConfig{logger: NopLogger{}}
	for _, opt := range opts {
		if err := opt(cfg); err != nil {
			return nil, err
		}
	}

	sources := 0
	for _, set := range []bool{cfg.filePath != nil, cfg.reader != nil, cfg.bytes != nil} {
		if set {
			sources++
		}
	}
	switch sources {
	case 0:
		return nil, &oaserrors.ConfigError{Message: "must specify an input source (use WithFilePath, WithReader, or WithBytes)"}
	case 1:
		return cfg, nil
	default:
		return nil, &oaserrors.ConfigError{Message: "must specify exactly one input source"}
	}
}

// WithFilePath specifies a file path as the input source
func WithFilePath(path string) Option {
	return func(cfg *parseConfig) error {
		cfg.filePath = &path
		return nil
	}
}

// WithReader specifies an io.Reader as the input source
func WithReader(r io.Reader) Option {
	return func(cfg *parseConfig) error {
		if r == nil {
			return &oaserrors.ConfigError{Option: "WithReader", Message: "reader must not be nil"}
		}
		cfg.reader = r
		return nil
	}
}

// WithBytes specifies a byte slice as the input source
func WithBytes(data []byte) Option {
	return func(cfg *parseConfig) error {
		if data == nil {
			data = []byte{}
		}
		cfg.bytes = data
		return nil
	}
}

// WithLogger sets the logger used while parsing
func WithLogger(l Logger) Option {
	return func(cfg *parseConfig) error {
		if l != nil {
			cfg.logger = l
		}
		return nil
	}
}

// WithSourceName overrides Document.SourcePath
func WithSourceName(name string) Option {
	return func(cfg *parseConfig) error {
		cfg.sourceName = &name
		return nil
	}
}
