package engine

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/goccy/go-json"

	"github.com/erraggy/oasengine/oaserrors"
)

// Result is a finished response.
type Result struct {
	Status int
	Header http.Header
	Body   io.Reader
}

// Write sends the result to w.
func (r *Result) Write(w http.ResponseWriter) error {
	for k, vs := range r.Header {
		w.Header()[k] = append([]string(nil), vs...)
	}
	w.WriteHeader(r.Status)
	if r.Body == nil {
		return nil
	}
	_, err := io.Copy(w, r.Body)
	return err
}

// resolved is the outcome of routing one request.
type resolved struct {
	op           *Operation
	pathParams   map[string]string
	serverParams map[string]string
}

// Run processes one request through the engine's lifecycle. It returns a
// nil Result and nil error when the request matched no path, or matched an
// operation without a handler; the caller decides what to send then.
//
// Errors that carry an HTTP status are rendered as JSON error results unless
// WithAutoHandleHTTPErrors(false) was given. Any other error is returned.
func (e *Engine) Run(r *http.Request) (*Result, error) {
	ctx := newContext(r, e.cfg.logger)
	res, err := e.run(ctx)
	if err != nil {
		if status, ok := oaserrors.StatusOf(err); ok && e.cfg.autoHandleHTTPErrors && !isFatal(err) {
			res, err = errorResult(status, err)
		}
	}
	if res != nil || err != nil {
		for _, p := range e.cfg.plugins {
			if f, ok := p.(Finisher); ok {
				f.Finish(ctx, res, err)
			}
		}
	}
	return res, err
}

// fatalError marks errors that must reach the caller even when they carry
// a status.
type fatalError struct {
	err error
}

func (f *fatalError) Error() string { return f.err.Error() }
func (f *fatalError) Unwrap() error { return f.err }

func isFatal(err error) bool {
	var f *fatalError
	return errors.As(err, &f)
}

func (e *Engine) run(ctx *Context) (*Result, error) {
	plugins := e.cfg.plugins

	// 1. pre-routing plugins
	if err := runHooks(plugins, phasePreRouting, ctx); err != nil {
		return nil, err
	}

	// 2. routing
	var route *resolved
	if !ctx.Res.Ended() {
		var err error
		route, err = e.route(ctx)
		if err != nil {
			return nil, err
		}
		if route == nil {
			return nil, nil
		}
		ctx.op = route.op
		ctx.Logger.Debug("route resolved",
			"method", route.op.Method,
			"path", route.op.Path,
			"operationId", route.op.OperationID,
		)

		// 3. post-routing plugins
		if err := runHooks(plugins, phasePostRouting, ctx); err != nil {
			return nil, err
		}
	}

	if route != nil {
		// 4. security
		if !ctx.Res.Ended() {
			results, err := route.op.security.authenticate(ctx)
			if err != nil {
				return nil, err
			}
			ctx.Security = results
			for _, name := range route.op.security.order {
				if r, ok := results[name]; ok {
					ctx.User = r.User
					break
				}
			}

			// 5. post-security plugins
			if err := runHooks(plugins, phasePostSecurity, ctx); err != nil {
				return nil, err
			}
		}

		// 6. parameters and body
		if !ctx.Res.Ended() {
			if err := e.resolveInputs(ctx, route); err != nil {
				return nil, err
			}
		}

		// 7. handler
		if !ctx.Res.Ended() {
			value, err := invoke(route.op.handler, ctx)
			if err != nil {
				return nil, err
			}
			if value != nil && !ctx.Res.Ended() {
				ctx.Res.SetBody(value)
			}
		}
	}
	ctx.Res.End()

	// 8. post-controller plugins, the one phase that may change an ended
	// response
	ctx.Res.unlock()
	err := runHooks(plugins, phasePostController, ctx)
	ctx.Res.lock()
	if err != nil {
		return nil, err
	}

	// 9. response shaping
	e.shapeResponse(ctx.Res)

	// 10. response validation
	if route != nil && e.cfg.onResponseValidation != nil {
		issues := route.op.responses.validate(ctx.Res, e.cfg.validateDefaultResponses, e.cfg.treatReturnedJSONAsPure)
		if len(issues) > 0 {
			verr := responseError(issues)
			ctx.Logger.Warn("response failed validation",
				"status", ctx.Res.Status(),
				"issues", len(issues),
				"first", issues[0].String(),
			)
			if err := e.cfg.onResponseValidation(ctx, verr); err != nil {
				return nil, &fatalError{err: &oaserrors.HTTPError{
					Status:  http.StatusInternalServerError,
					Message: "response validation callback failed",
					Cause:   err,
				}}
			}
		}
	}

	// 11. post-response-validation plugins
	if err := runHooks(plugins, phasePostResponseValidation, ctx); err != nil {
		return nil, err
	}

	// 12. assembly
	if err := ctx.Res.Err(); err != nil {
		return nil, &fatalError{err: err}
	}
	return assemble(ctx.Res)
}

// route resolves the server, path and operation. It returns nil when the
// request is not handled, and a 405 error when the path exists but the
// method does not.
func (e *Engine) route(ctx *Context) (*resolved, error) {
	r := ctx.Request
	sm, ok := resolveServer(e.servers, r.Host, r.URL.EscapedPath())
	if !ok {
		return nil, nil
	}
	found, ok := e.paths.Resolve(sm.remainder)
	if !ok {
		return nil, nil
	}
	entry := found.Value
	method := strings.ToLower(r.Method)
	op, ok := entry.ops[method]
	if !ok {
		header := make(http.Header)
		header.Set("Allow", entry.allow)
		return nil, &oaserrors.HTTPError{
			Status:  http.StatusMethodNotAllowed,
			Message: fmt.Sprintf("Method %s not allowed for %s", r.Method, entry.template),
			Header:  header,
		}
	}
	if op.handler == nil {
		return nil, nil
	}
	ctx.route = &Route{
		Method:      method,
		Path:        entry.template,
		OperationID: op.OperationID,
		Controller:  op.Controller,
		Server:      sm.server.url,
	}
	return &resolved{op: op, pathParams: found.Params, serverParams: sm.params}, nil
}

// resolveInputs decodes and validates parameters and the body, reporting
// every problem at once.
func (e *Engine) resolveInputs(ctx *Context, route *resolved) error {
	issues := route.op.resolveParameters(ctx, route.pathParams, route.serverParams)
	if route.op.body != nil {
		value, present, found, err := route.op.body.resolve(ctx.Request, e.cfg.maxBodySize)
		if err != nil {
			return err
		}
		issues = append(issues, found...)
		ctx.Body, ctx.BodyPresent = value, present
	}
	if len(issues) > 0 {
		return oaserrors.NewValidationError(issues...)
	}
	return nil
}

// shapeResponse infers a content type when none was set.
func (e *Engine) shapeResponse(res *Response) {
	if res.header.Get("Content-Type") != "" || res.body == nil {
		return
	}
	switch res.body.(type) {
	case []byte, string, io.Reader:
		res.header.Set("Content-Type", "text/plain")
	default:
		res.header.Set("Content-Type", "application/json")
	}
}

// assemble turns the final response into a Result.
func assemble(res *Response) (*Result, error) {
	out := &Result{Status: res.status, Header: res.header.Clone()}
	switch b := res.body.(type) {
	case nil:
		out.Body = http.NoBody
	case []byte:
		out.Body = bytes.NewReader(b)
	case string:
		out.Body = strings.NewReader(b)
	case io.Reader:
		out.Body = b
	default:
		buf, err := json.Marshal(b)
		if err != nil {
			return nil, &fatalError{err: fmt.Errorf("engine: encoding response body: %w", err)}
		}
		out.Body = bytes.NewReader(buf)
	}
	return out, nil
}
