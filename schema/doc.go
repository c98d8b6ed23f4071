// Package schema compiles OpenAPI schema objects into validators.
//
// Compilation runs a fixed sequence of passes, each usable on its own:
//
//  1. Extract copies the schema out of the document and makes it
//     self-contained, pulling referenced schemas into "definitions".
//  2. StripAnnotations removes example and examples.
//  3. FilterRequired drops required-ness of readOnly properties for requests
//     and of writeOnly properties for responses.
//  4. Wrap nests the schema under the "value" property of an envelope
//     object, so an absent value can be expressed as a missing property and
//     defaults apply to it.
//
// The envelope is compiled with github.com/santhosh-tekuri/jsonschema/v5:
// draft 4 for OpenAPI 3.0 documents, with nullable rewritten into a "null"
// type, and draft 2020-12 for 3.1 documents. Named formats are installed as
// the compiler's format checks. Before validation a pre-pass fills
// defaults and, with Options.Coerce set, coerces string input to the
// declared types, converts scalars and one-element arrays into each other
// and removes additional properties that do not fit the schema. Failures
// are reported per keyword as oaserrors.Issue values.
//
// InferTypes computes the set of types a schema admits; parameter decoding
// uses it to choose between scalar, array and object grammars.
package schema
