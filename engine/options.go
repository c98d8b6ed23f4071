package engine

import (
	"net/http"

	"github.com/erraggy/oasengine/internal/mediatype"
	"github.com/erraggy/oasengine/oaserrors"
	"github.com/erraggy/oasengine/parser"
	"github.com/erraggy/oasengine/schema"
)

// DefaultMaxBodySize is the request body limit used when WithMaxBodySize is
// not given.
const DefaultMaxBodySize int64 = 100000

// Option is a functional option for configuring an Engine.
type Option func(*config) error

// ResponseValidationFunc receives the issues found in a response. Returning
// an error aborts the request with a fatal error.
type ResponseValidationFunc func(ctx *Context, verr *oaserrors.ValidationError) error

// ErrorHandler writes errors that Run returned to the caller.
type ErrorHandler func(w http.ResponseWriter, r *http.Request, err error)

// config holds the configuration for an Engine.
type config struct {
	// Contract source (exactly one must be set)
	doc      *parser.Document
	filePath string

	// Handlers
	controllers          map[string]Controller
	defaultHandler       Handler
	allowMissingHandlers bool

	authenticators map[string]Authenticator
	parsers        *mediatype.Registry[MediaTypeParser]
	formats        *schema.Formats

	// Request handling
	maxBodySize          int64
	ignoreServers        bool
	autoHandleHTTPErrors bool
	errorHandler         ErrorHandler
	plugins              []Plugin

	// Response validation
	onResponseValidation     ResponseValidationFunc
	validateDefaultResponses bool
	treatReturnedJSONAsPure  bool

	logger parser.Logger
}

// defaultConfig returns the default configuration.
func defaultConfig() *config {
	return &config{
		controllers:          make(map[string]Controller),
		allowMissingHandlers: true,
		authenticators:       make(map[string]Authenticator),
		parsers:              DefaultParsers(),
		formats:              schema.DefaultFormats(),
		maxBodySize:          DefaultMaxBodySize,
		autoHandleHTTPErrors: true,
		errorHandler:         WriteError,
		logger:               parser.NopLogger{},
	}
}

func applyOptions(opts ...Option) (*config, error) {
	cfg := defaultConfig()
	for _, opt := range opts {
		if err := opt(cfg); err != nil {
			return nil, err
		}
	}
	return cfg, nil
}

// WithDocument compiles an already parsed contract. The document is copied;
// later changes to it do not affect the engine.
func WithDocument(doc *parser.Document) Option {
	return func(c *config) error {
		if doc == nil {
			return &oaserrors.ConfigError{Option: "WithDocument", Message: "document cannot be nil"}
		}
		c.doc = doc
		return nil
	}
}

// WithFilePath sets the path of the contract to load.
func WithFilePath(path string) Option {
	return func(c *config) error {
		if path == "" {
			return &oaserrors.ConfigError{Option: "WithFilePath", Message: "path cannot be empty"}
		}
		c.filePath = path
		return nil
	}
}

// WithControllers registers controllers by name. The empty name is the
// default controller, used by operations without x-controller.
func WithControllers(controllers map[string]Controller) Option {
	return func(c *config) error {
		for name, ctrl := range controllers {
			dst := c.controllers[name]
			if dst == nil {
				dst = make(Controller, len(ctrl))
				c.controllers[name] = dst
			}
			for id, h := range ctrl {
				if h == nil {
					return &oaserrors.ConfigError{Option: "WithControllers", Value: id, Message: "handler cannot be nil"}
				}
				dst[id] = h
			}
		}
		return nil
	}
}

// WithHandler registers h for operationID in the default controller.
func WithHandler(operationID string, h Handler) Option {
	return WithControllers(map[string]Controller{"": {operationID: h}})
}

// WithDefaultHandler serves every operation that has no registered handler.
func WithDefaultHandler(h Handler) Option {
	return func(c *config) error {
		c.defaultHandler = h
		return nil
	}
}

// WithAllowMissingHandlers controls whether operations without a handler
// are skipped (the default) or rejected at compile time.
func WithAllowMissingHandlers(allow bool) Option {
	return func(c *config) error {
		c.allowMissingHandlers = allow
		return nil
	}
}

// WithAuthenticator registers the authenticator for a security scheme.
func WithAuthenticator(scheme string, a Authenticator) Option {
	return func(c *config) error {
		if a == nil {
			return &oaserrors.ConfigError{Option: "WithAuthenticator", Value: scheme, Message: "authenticator cannot be nil"}
		}
		c.authenticators[scheme] = a
		return nil
	}
}

// WithAuthenticators registers several authenticators at once.
func WithAuthenticators(auths map[string]Authenticator) Option {
	return func(c *config) error {
		for scheme, a := range auths {
			if err := WithAuthenticator(scheme, a)(c); err != nil {
				return err
			}
		}
		return nil
	}
}

// WithMediaTypeParser adds or replaces the parser for a media type pattern
// ("application/json", "text/*", "*/*").
func WithMediaTypeParser(pattern string, p MediaTypeParser) Option {
	return func(c *config) error {
		if p.Parse == nil {
			return &oaserrors.ConfigError{Option: "WithMediaTypeParser", Value: pattern, Message: "Parse cannot be nil"}
		}
		if err := c.parsers.Set(pattern, p); err != nil {
			return &oaserrors.ConfigError{Option: "WithMediaTypeParser", Value: pattern, Cause: err}
		}
		return nil
	}
}

// WithFormat adds a custom string format check.
func WithFormat(name string, fn schema.FormatFunc) Option {
	return func(c *config) error {
		if fn == nil {
			return &oaserrors.ConfigError{Option: "WithFormat", Value: name, Message: "format function cannot be nil"}
		}
		c.formats.Add(name, fn)
		return nil
	}
}

// WithMaxBodySize sets the maximum request body size in bytes.
// Default: 100000.
func WithMaxBodySize(n int64) Option {
	return func(c *config) error {
		if n <= 0 {
			return &oaserrors.ConfigError{Option: "WithMaxBodySize", Value: n, Message: "must be positive"}
		}
		c.maxBodySize = n
		return nil
	}
}

// WithIgnoreServers makes the engine match paths from the root, ignoring the
// servers declared in the contract.
func WithIgnoreServers(ignore bool) Option {
	return func(c *config) error {
		c.ignoreServers = ignore
		return nil
	}
}

// WithResponseValidation enables response validation; fn receives every
// invalid response.
func WithResponseValidation(fn ResponseValidationFunc) Option {
	return func(c *config) error {
		c.onResponseValidation = fn
		return nil
	}
}

// WithValidateDefaultResponses includes responses matched only by the
// "default" entry in response validation.
func WithValidateDefaultResponses(validate bool) Option {
	return func(c *config) error {
		c.validateDefaultResponses = validate
		return nil
	}
}

// WithTreatReturnedJSONAsPure tells response validation that handler return
// values are plain JSON trees (map[string]any, []any, float64, string, bool,
// nil) that may be validated in place instead of through a JSON round trip.
func WithTreatReturnedJSONAsPure(pure bool) Option {
	return func(c *config) error {
		c.treatReturnedJSONAsPure = pure
		return nil
	}
}

// WithPlugins installs plugins. Each plugin must implement at least one hook
// interface.
func WithPlugins(plugins ...Plugin) Option {
	return func(c *config) error {
		for _, p := range plugins {
			if !isPlugin(p) {
				return &oaserrors.ConfigError{Option: "WithPlugins", Value: p, Message: "plugin implements no hooks"}
			}
			c.plugins = append(c.plugins, p)
		}
		return nil
	}
}

// WithAutoHandleHTTPErrors controls whether errors that carry an HTTP status
// are turned into JSON error responses (the default) or returned from Run.
func WithAutoHandleHTTPErrors(auto bool) Option {
	return func(c *config) error {
		c.autoHandleHTTPErrors = auto
		return nil
	}
}

// WithErrorHandler sets how ServeHTTP and Middleware report errors returned
// from Run. Default: WriteError.
func WithErrorHandler(h ErrorHandler) Option {
	return func(c *config) error {
		if h == nil {
			return &oaserrors.ConfigError{Option: "WithErrorHandler", Message: "handler cannot be nil"}
		}
		c.errorHandler = h
		return nil
	}
}

// WithLogger sets the logger used while compiling and serving.
func WithLogger(l parser.Logger) Option {
	return func(c *config) error {
		if l != nil {
			c.logger = l
		}
		return nil
	}
}
