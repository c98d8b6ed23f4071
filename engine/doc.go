// Package engine compiles an OpenAPI 3.x contract into a request handler that
// routes, authenticates, decodes and validates every request before calling
// application code, and optionally validates the response it produces.
//
// # Basic Usage
//
//	eng, err := engine.New(
//	    engine.WithFilePath("openapi.yaml"),
//	    engine.WithHandler("getPet", engine.ValueHandler(func(ctx *engine.Context) (any, error) {
//	        id := ctx.Params.Path["petId"].(float64)
//	        return store.Get(int64(id))
//	    })),
//	    engine.WithAuthenticator("apiKey", checkKey),
//	)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	http.ListenAndServe(":8080", eng)
//
// Compilation fails with an error wrapping [oaserrors.ErrConfig],
// [oaserrors.ErrParse] or [oaserrors.ErrReference] when the contract cannot be
// served: unsupported versions, malformed x-roles, unknown security schemes,
// parameters that could be either arrays or objects, bad references.
//
// # Handlers and Controllers
//
// A handler is found by the x-controller extension in effect for the
// operation (operation, then path item, then document) and the operation's
// x-operation-id or operationId. [WithHandler] registers into the default
// controller, which serves operations without x-controller. Operations with
// no handler are skipped unless [WithAllowMissingHandlers] is false.
//
// A [ValueHandler] returns the response body; a [WriterHandler] builds the
// response through [Context.Res].
//
// # Request Lifecycle
//
// [Engine.Run] processes a request in fixed phases:
//
//  1. PreRouting plugins
//  2. routing: server, path, method (405 with Allow when only the method is wrong)
//  3. PostRouting plugins
//  4. security: authenticators run, one alternative must succeed (401 / 403)
//  5. PostSecurity plugins
//  6. parameters and body are decoded and validated; all issues are reported in one 400
//  7. the handler
//  8. PostController plugins, which may still change the ended response
//  9. content type inference for responses without one
//  10. response validation, when [WithResponseValidation] is set
//  11. PostResponseValidation plugins
//  12. the [Result] is assembled
//
// Once the response has ended, phases 2 through 7 are skipped.
//
// # Parameters
//
// Parameters are decoded with the paramstyle package according to their style
// and explode settings, then validated and coerced by their schema. Decoded
// values use JSON types: float64 for numbers, []any, map[string]any.
//
// # Errors
//
// Errors that carry a status ([oaserrors.HTTPError], [oaserrors.ValidationError])
// become JSON error responses:
//
//	{"message": "Validation errors", "errors": [{"message": "...", "location": {...}}]}
//
// Other errors are returned from Run. [Engine.ServeHTTP] hands them to the
// [ErrorHandler], which by default writes a generic 500.
package engine
