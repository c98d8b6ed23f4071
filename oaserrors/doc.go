// Package oaserrors provides structured error types for the oasengine library.
//
// Import path: github.com/erraggy/oasengine/oaserrors
//
// This package enables programmatic error handling via [errors.Is] and [errors.As],
// allowing callers to distinguish compile-time failures (the contract could not be
// turned into an engine) from request-time failures (a single request was rejected).
//
// # Compile-time Error Types
//
//   - [ParseError]: YAML/JSON parsing failures and structural issues
//   - [ReferenceError]: $ref resolution failures and circular references
//   - [ConfigError]: Invalid options or contract content the engine cannot serve
//     (unsupported version, malformed role lists, missing handlers, ambiguous
//     parameter typing)
//
// # Request-time Error Types
//
//   - [HTTPError]: any failure that maps to an HTTP status (401, 403, 405, 413, 415, ...)
//   - [ValidationError]: every parameter or body problem found in one request,
//     each as an [Issue] tagged with its [Location]
//   - [ResourceLimitError]: a request exceeded a configured limit; usually wrapped
//     in an [HTTPError] with status 413
//
// Anything else returned from the engine is uncategorized and treated as fatal.
//
// # Sentinel Errors
//
//   - [ErrParse]: Matches any [ParseError]
//   - [ErrReference]: Matches any [ReferenceError]
//   - [ErrCircularReference]: Matches [ReferenceError] with IsCircular=true
//   - [ErrConfig]: Matches any [ConfigError]
//   - [ErrHTTP]: Matches any [HTTPError]
//   - [ErrValidation]: Matches any [ValidationError]
//   - [ErrResourceLimit]: Matches any [ResourceLimitError]
//
// # Usage Examples
//
//	eng, err := engine.New(engine.WithFilePath("api.yaml"))
//	if errors.Is(err, oaserrors.ErrConfig) {
//	    // the contract compiled but cannot be served as configured
//	}
//
// Status-carrying errors expose their status through [StatusOf]:
//
//	if status, ok := oaserrors.StatusOf(err); ok {
//	    w.WriteHeader(status)
//	}
package oaserrors
