package mcpserver

import (
	"context"

	"github.com/erraggy/oasengine/engine"
	"github.com/erraggy/oasengine/parser"
)

// simulation carries per-request settings from a tool call into the engine's
// authenticators and plugins.
type simulation struct {
	// Roles and Scopes are granted to any credential the request carries.
	Roles     []string
	Scopes    []string
	// RouteOnly stops the request right after routing and reports the route.
	RouteOnly bool
}

type simKey struct{}

func withSimulation(ctx context.Context, sim simulation) context.Context {
	return context.WithValue(ctx, simKey{}, sim)
}

func simulationOf(ctx *engine.Context) simulation {
	sim, _ := ctx.Context().Value(simKey{}).(simulation)
	return sim
}

// compileSimulated compiles doc with an authenticator for every declared
// scheme and an echo handler for every operation.
func compileSimulated(doc *parser.Document) (*engine.Engine, error) {
	auths := make(map[string]engine.Authenticator)
	if doc.OpenAPI.Components != nil {
		for name := range doc.OpenAPI.Components.SecuritySchemes {
			auths[name] = credentialAuth
		}
	}
	return engine.Compile(doc,
		engine.WithAuthenticators(auths),
		engine.WithDefaultHandler(engine.ValueHandler(echo)),
		engine.WithPlugins(routeStop{}),
		engine.WithMaxBodySize(cfg.MaxBodySize),
		engine.WithIgnoreServers(cfg.IgnoreServers),
	)
}

// credentialAuth accepts any credential present in the request.
func credentialAuth(ctx *engine.Context, scheme engine.SchemeInfo) (*engine.AuthResult, error) {
	cred, ok := engine.Credential(ctx.Request, scheme)
	if !ok {
		return nil, nil
	}
	sim := simulationOf(ctx)
	return &engine.AuthResult{User: cred, Roles: sim.Roles, Scopes: sim.Scopes}, nil
}

// echoBody is what the simulated handler returns.
type echoBody struct {
	OperationID string         `json:"operation_id,omitempty"`
	Params      paramsOutput   `json:"params"`
	Body        any            `json:"body,omitempty"`
	User        any            `json:"user,omitempty"`
	Schemes     []string       `json:"schemes,omitempty"`
	Server      map[string]any `json:"server,omitempty"`
}

type paramsOutput struct {
	Path   map[string]any `json:"path,omitempty"`
	Query  map[string]any `json:"query,omitempty"`
	Header map[string]any `json:"header,omitempty"`
	Cookie map[string]any `json:"cookie,omitempty"`
}

func echo(ctx *engine.Context) (any, error) {
	out := echoBody{
		Params: paramsOutput{
			Path:   ctx.Params.Path,
			Query:  ctx.Params.Query,
			Header: ctx.Params.Header,
			Cookie: ctx.Params.Cookie,
		},
		User:   ctx.User,
		Server: ctx.Params.Server,
	}
	if route := ctx.Route(); route != nil {
		out.OperationID = route.OperationID
	}
	if ctx.BodyPresent {
		if b, ok := ctx.Body.([]byte); ok {
			out.Body = string(b)
		} else {
			out.Body = ctx.Body
		}
	}
	for name := range ctx.Security {
		out.Schemes = append(out.Schemes, name)
	}
	return out, nil
}

// routeOutput describes a resolved route.
type routeOutput struct {
	Method      string `json:"method"`
	Path        string `json:"path"`
	OperationID string `json:"operation_id,omitempty"`
	Controller  string `json:"controller,omitempty"`
	Server      string `json:"server,omitempty"`
}

// routeStop ends route-only requests as soon as they are routed.
type routeStop struct{}

func (routeStop) PostRouting(ctx *engine.Context) error {
	if !simulationOf(ctx).RouteOnly {
		return nil
	}
	r := ctx.Route()
	ctx.Res.JSON(routeOutput{
		Method:      r.Method,
		Path:        r.Path,
		OperationID: r.OperationID,
		Controller:  r.Controller,
		Server:      r.Server,
	})
	return nil
}
