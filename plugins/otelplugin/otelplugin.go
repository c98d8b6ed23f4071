// Package otelplugin traces engine requests with OpenTelemetry.
//
// A span starts once a request is routed to an operation and ends when the
// engine finishes it. Requests that match no operation are not traced.
package otelplugin

import (
	"strings"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/erraggy/oasengine/engine"
	"github.com/erraggy/oasengine/oaserrors"
)

// ScopeName is the instrumentation scope of the tracer.
const ScopeName = "github.com/erraggy/oasengine/plugins/otelplugin"

// Plugin creates one server span per routed request.
type Plugin struct {
	tracer trace.Tracer
}

type spanKey struct{}

// New returns a plugin using tp, or the global provider when tp is nil.
func New(tp trace.TracerProvider) *Plugin {
	if tp == nil {
		tp = otel.GetTracerProvider()
	}
	return &Plugin{tracer: tp.Tracer(ScopeName)}
}

func span(ctx *engine.Context) trace.Span {
	if v, ok := ctx.Get(spanKey{}); ok {
		if s, ok := v.(trace.Span); ok {
			return s
		}
	}
	return nil
}

// PostRouting starts the span and attaches it to the request context.
func (p *Plugin) PostRouting(ctx *engine.Context) error {
	route := ctx.Route()
	if route == nil {
		return nil
	}
	attrs := []attribute.KeyValue{
		attribute.String("http.request.method", ctx.Request.Method),
		attribute.String("http.route", route.Path),
		attribute.String("url.path", ctx.Request.URL.Path),
		attribute.String("oasengine.request_id", ctx.ID),
	}
	if route.OperationID != "" {
		attrs = append(attrs, attribute.String("oasengine.operation_id", route.OperationID))
	}
	if route.Controller != "" {
		attrs = append(attrs, attribute.String("oasengine.controller", route.Controller))
	}
	spanCtx, s := p.tracer.Start(ctx.Context(), strings.ToUpper(route.Method)+" "+route.Path,
		trace.WithSpanKind(trace.SpanKindServer),
		trace.WithAttributes(attrs...),
	)
	ctx.WithContext(spanCtx)
	ctx.Set(spanKey{}, s)
	return nil
}

// PostSecurity notes which schemes authenticated the request.
func (p *Plugin) PostSecurity(ctx *engine.Context) error {
	if s := span(ctx); s != nil && len(ctx.Security) > 0 {
		schemes := make([]string, 0, len(ctx.Security))
		for name := range ctx.Security {
			schemes = append(schemes, name)
		}
		s.AddEvent("authenticated", trace.WithAttributes(attribute.StringSlice("oasengine.security_schemes", schemes)))
	}
	return nil
}

// PostController marks the end of the handler.
func (p *Plugin) PostController(ctx *engine.Context) error {
	if s := span(ctx); s != nil {
		s.AddEvent("handler.done", trace.WithAttributes(attribute.Int("http.response.status_code", ctx.Res.Status())))
	}
	return nil
}

// Finish records the outcome and ends the span.
func (p *Plugin) Finish(ctx *engine.Context, res *engine.Result, err error) {
	s := span(ctx)
	if s == nil {
		return
	}
	defer s.End()

	status := 0
	switch {
	case res != nil:
		status = res.Status
	case err != nil:
		status, _ = oaserrors.StatusOf(err)
	}
	if status != 0 {
		s.SetAttributes(attribute.Int("http.response.status_code", status))
	}
	if err != nil {
		s.RecordError(err)
		s.SetStatus(codes.Error, err.Error())
		return
	}
	if status >= 500 {
		s.SetStatus(codes.Error, "")
	}
}
