// Package parser loads OpenAPI 3.x contracts for the engine.
//
// A [Document] keeps two views of the same contract. Data is the raw tree
// (map[string]any, []any, float64, string, bool, nil) exactly as written, which
// is what JSON pointers and $ref values address. OpenAPI is a typed view decoded
// from Data for convenient navigation. The declared order of the paths object is
// recorded separately because route resolution depends on it.
//
// # Loading
//
//	doc, err := parser.ParseWithOptions(parser.WithFilePath("openapi.yaml"))
//
// JSON and YAML inputs go through the same YAML decoder.
//
// # References
//
// Only local references ("#/components/schemas/Pet") are supported. Use
// [Document.Follow] to chase a $ref chain from any pointer to the object it
// finally names; reference cycles are reported as [oaserrors.ReferenceError].
//
// # Mutation
//
// Data may be edited (for example by a pre-compile hook). Call [Document.Reload]
// afterwards so the typed view reflects the change.
package parser
