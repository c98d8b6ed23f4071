package engine

import (
	"context"
	"net/http"

	"github.com/google/uuid"

	"github.com/erraggy/oasengine/oaserrors"
	"github.com/erraggy/oasengine/parser"
)

// RequestIDHeader is read for an inbound request ID.
const RequestIDHeader = "X-Request-Id"

// Params holds decoded parameters by location.
type Params struct {
	Path   map[string]any
	Query  map[string]any
	Header map[string]any
	Cookie map[string]any
	Server map[string]any
}

func newParams() Params {
	return Params{
		Path:   map[string]any{},
		Query:  map[string]any{},
		Header: map[string]any{},
		Cookie: map[string]any{},
		Server: map[string]any{},
	}
}

// Route describes the operation a request resolved to.
type Route struct {
	// Method is the lower-case contract method key.
	Method string
	// Path is the matched path template.
	Path        string
	OperationID string
	Controller  string
	// Server is the matched server URL template.
	Server string
}

// Context is the state of one request. It is owned by the goroutine serving
// the request and must not be shared.
type Context struct {
	// ID identifies the request in logs. It is taken from X-Request-Id or
	// generated.
	ID string
	// Request is the incoming request.
	Request *http.Request
	// Res is the response under construction.
	Res *Response
	// Params are the decoded and validated parameters.
	Params Params
	// Body is the parsed and validated request body; BodyPresent is false
	// when no body was sent and no default applied.
	Body        any
	BodyPresent bool
	// Security holds the results of the security alternative that succeeded.
	Security map[string]*AuthResult
	// User is the user reported by the first scheme of that alternative.
	User any
	// Logger carries request_id.
	Logger parser.Logger

	route  *Route
	op     *Operation
	values map[any]any
}

func newContext(r *http.Request, logger parser.Logger) *Context {
	id := r.Header.Get(RequestIDHeader)
	if id == "" {
		id = uuid.NewString()
	}
	return &Context{
		ID:      id,
		Request: r,
		Res:     newResponse(),
		Params:  newParams(),
		Logger:  logger.With("request_id", id),
	}
}

// Context returns the request's context.
func (c *Context) Context() context.Context {
	return c.Request.Context()
}

// WithContext replaces the request's context, for plugins that attach
// values such as trace spans.
func (c *Context) WithContext(ctx context.Context) {
	c.Request = c.Request.WithContext(ctx)
}

// Route returns the resolved route, or nil before routing and for requests
// that matched nothing.
func (c *Context) Route() *Route {
	return c.route
}

// Set stores a value for later hooks and handlers of the same request.
func (c *Context) Set(key, value any) {
	if c.values == nil {
		c.values = make(map[any]any)
	}
	c.values[key] = value
}

// Get returns a value stored with Set.
func (c *Context) Get(key any) (any, bool) {
	v, ok := c.values[key]
	return v, ok
}

// MakeError creates an error that the runner turns into a response with
// the given status.
func (c *Context) MakeError(status int, message string) *oaserrors.HTTPError {
	return oaserrors.NewHTTPError(status, message)
}

// MakeValidationError creates a 400 error for one problem at loc.
func (c *Context) MakeValidationError(message string, loc oaserrors.Location) *oaserrors.ValidationError {
	return oaserrors.NewValidationError(oaserrors.Issue{Message: message, Location: &loc})
}
