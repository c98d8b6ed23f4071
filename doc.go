// Package oasengine turns an OpenAPI 3.0 or 3.1 contract into a request engine.
//
// The contract is compiled once. Every request is then routed to an
// operation, authenticated, and its parameters and body are decoded and
// validated against the contract before the application's handler runs.
// Responses can be validated on the way out.
//
// # Packages
//
//   - parser: load a contract (YAML or JSON) and navigate it with JSON pointers
//   - engine: compile a contract and run requests through it
//   - paramstyle: the OpenAPI parameter serialization styles as pure functions
//   - schema: compile JSON Schema fragments into validators that coerce and fill defaults
//   - oaserrors: compile-time and request-time error types
//   - plugins/promplugin: Prometheus metrics for engine requests
//   - plugins/otelplugin: OpenTelemetry spans for engine requests
//
// # Quick Start
//
//	eng, err := engine.New(
//		engine.WithFilePath("openapi.yaml"),
//		engine.WithHandler("getPet", engine.ValueHandler(func(ctx *engine.Context) (any, error) {
//			return map[string]any{"id": ctx.Params.Path["petId"]}, nil
//		})),
//	)
//	if err != nil {
//		log.Fatal(err)
//	}
//	http.Handle("/", eng)
//
// Requests that match no operation get a 404 from ServeHTTP, or fall through
// to the next handler when the engine is mounted with Middleware.
//
// # Request lifecycle
//
// For each request the engine runs, in order: pre-routing plugins, routing
// (server, then path, then method), post-routing plugins, security,
// post-security plugins, parameter and body decoding, the handler,
// post-controller plugins, response validation and post-response-validation
// plugins. A plugin or handler that ends the response skips the remaining
// request phases.
//
// Errors that carry an HTTP status become JSON responses:
//
//	{"message": "Validation errors", "errors": [{"message": "...", "location": {"in": "query", "name": "limit"}}]}
//
// # Command line
//
// The oasengine command compiles contracts (check), lists their routes
// (routes), serves them with echo handlers (serve) and exposes the engine to
// MCP clients (mcp).
//
// # Version information
//
// [Version], [Commit], [BuildTime] and [BuildInfo] report how the binary was
// built.
package oasengine
