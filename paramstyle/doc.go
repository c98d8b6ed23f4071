// Package paramstyle implements the OpenAPI parameter serialization grammar.
//
// Decoders are pure functions from raw, still percent-encoded input to a
// decoded value made of string, []any and map[string]any. They do not coerce
// scalars: "5" stays a string until schema validation coerces it.
//
// | Location | Styles                                          | Default style | Default explode |
// |----------|-------------------------------------------------|---------------|-----------------|
// | path     | simple, label, matrix                           | simple        | false           |
// | query    | form, spaceDelimited, pipeDelimited, deepObject | form          | true            |
// | header   | simple                                          | simple        | false           |
// | cookie   | form                                            | form          | true            |
// | server   | simple                                          | simple        | false           |
//
// The shape a decoder produces is chosen from the types the parameter schema
// allows (see schema.InferTypes). A schema allowing only arrays always
// decodes to an array; one allowing both arrays and objects is rejected by
// NewParser because its serialized form is ambiguous.
//
// Encode is the inverse of the decoders and is used to build test requests
// and simulated requests.
package paramstyle
