package schema

import (
	"strings"

	"github.com/go-openapi/jsonpointer"
)

// Direction tells which side of an exchange a schema validates.
type Direction int

const (
	// Request validates client input: readOnly properties are not required.
	Request Direction = iota
	// Response validates server output: writeOnly properties are not required.
	Response
)

func (d Direction) String() string {
	if d == Response {
		return "response"
	}
	return "request"
}

// annotationKeywords are dropped before compilation.
var annotationKeywords = []string{"example", "examples"}

// StripAnnotations removes example annotations from every subschema.
func StripAnnotations(root map[string]any) {
	walkSchemas(root, func(n map[string]any) {
		for _, kw := range annotationKeywords {
			delete(n, kw)
		}
	})
}

// FilterRequired drops required-ness for readOnly properties (Request) or
// writeOnly properties (Response). Property schemas given as local
// references are resolved against root.
func FilterRequired(root map[string]any, dir Direction) {
	flag := "readOnly"
	if dir == Response {
		flag = "writeOnly"
	}
	walkSchemas(root, func(n map[string]any) {
		required, ok := n["required"].([]any)
		if !ok {
			return
		}
		props, _ := n["properties"].(map[string]any)
		kept := make([]any, 0, len(required))
		for _, r := range required {
			name, _ := r.(string)
			if prop := resolveLocal(root, props[name]); prop != nil {
				if set, _ := prop[flag].(bool); set {
					continue
				}
			}
			kept = append(kept, r)
		}
		if len(kept) == 0 {
			delete(n, "required")
		} else {
			n["required"] = kept
		}
	})
}

// resolveLocal follows "#/..." references inside root until it reaches a
// schema without one. It gives up on cycles and on unresolvable pointers.
func resolveLocal(root map[string]any, v any) map[string]any {
	node, _ := v.(map[string]any)
	for range 32 {
		if node == nil {
			return nil
		}
		ref, ok := node["$ref"].(string)
		if !ok {
			return node
		}
		target, err := lookupLocal(root, ref)
		if err != nil {
			return nil
		}
		node, _ = target.(map[string]any)
	}
	return nil
}

func lookupLocal(root map[string]any, ref string) (any, error) {
	frag := strings.TrimPrefix(normalizeRef(ref), "#")
	p, err := jsonpointer.New(frag)
	if err != nil {
		return nil, err
	}
	v, _, err := p.Get(root)
	return v, err
}

// EnvelopeProperty is the property an enveloped value lives under.
const EnvelopeProperty = "value"

// Wrap nests root under an object's "value" property and rewrites every
// internal reference to keep pointing at the same subschema. When required
// is set the envelope requires "value".
func Wrap(root map[string]any, required bool) map[string]any {
	rewriteRefs(root, func(ref string) string {
		if !strings.HasPrefix(ref, "#") {
			return ref
		}
		return "#/properties/" + EnvelopeProperty + strings.TrimPrefix(ref, "#")
	})
	env := map[string]any{
		"type":       "object",
		"properties": map[string]any{EnvelopeProperty: root},
	}
	if required {
		env["required"] = []any{EnvelopeProperty}
	}
	return env
}
