package schema

import (
	"fmt"
	"sort"
	"strings"

	"github.com/erraggy/oasengine/oaserrors"
	"github.com/erraggy/oasengine/parser"
)

// TypeSet is a set of JSON Schema primitive types.
type TypeSet uint8

// JSON Schema primitive types. Integer is a subset of number: a schema
// declaring "number" allows both.
const (
	TypeNull TypeSet = 1 << iota
	TypeBoolean
	TypeObject
	TypeArray
	TypeNumber
	TypeString
	TypeInteger

	// AllTypes is the set allowed by a schema with no type constraints.
	AllTypes = TypeNull | TypeBoolean | TypeObject | TypeArray | TypeNumber | TypeString | TypeInteger
)

var typeNames = []struct {
	name string
	set  TypeSet
}{
	{"null", TypeNull},
	{"boolean", TypeBoolean},
	{"object", TypeObject},
	{"array", TypeArray},
	{"number", TypeNumber},
	{"string", TypeString},
	{"integer", TypeInteger},
}

// ParseType converts a JSON Schema type name to a TypeSet. Unknown names
// yield the empty set.
func ParseType(name string) TypeSet {
	if name == "number" {
		return TypeNumber | TypeInteger
	}
	for _, tn := range typeNames {
		if tn.name == name {
			return tn.set
		}
	}
	return 0
}

// Has reports whether s and t share at least one type.
func (s TypeSet) Has(t TypeSet) bool {
	return s&t != 0
}

// Only reports whether s is non-empty and contained in t.
func (s TypeSet) Only(t TypeSet) bool {
	return s != 0 && s&^t == 0
}

// Names lists the types in s, sorted.
func (s TypeSet) Names() []string {
	var names []string
	for _, tn := range typeNames {
		if s&tn.set != 0 {
			names = append(names, tn.name)
		}
	}
	sort.Strings(names)
	return names
}

func (s TypeSet) String() string {
	if s == AllTypes {
		return "any"
	}
	if s == 0 {
		return "none"
	}
	return strings.Join(s.Names(), "|")
}

// InferTypes computes the set of types a value validated by the schema at ptr
// may have. It intersects "type" and every allOf branch, and unions the
// branches of oneOf and anyOf. References are followed; a reference cycle
// reached through these keywords is an error.
func InferTypes(doc *parser.Document, ptr string) (TypeSet, error) {
	return inferTypes(doc, ptr, make(map[string]bool))
}

func inferTypes(doc *parser.Document, ptr string, visiting map[string]bool) (TypeSet, error) {
	if visiting[ptr] {
		return 0, &oaserrors.ReferenceError{Ref: ptr, IsCircular: true, Message: "schema type depends on itself"}
	}
	visiting[ptr] = true
	defer delete(visiting, ptr)

	raw, err := doc.Lookup(ptr)
	if err != nil {
		return 0, err
	}
	var node map[string]any
	switch v := raw.(type) {
	case bool:
		if v {
			return AllTypes, nil
		}
		return 0, nil
	case map[string]any:
		node = v
	case nil:
		return AllTypes, nil
	default:
		return 0, fmt.Errorf("schema at %s must be an object, got %T", ptr, raw)
	}

	if ref, ok := node["$ref"].(string); ok {
		return inferTypes(doc, ref, visiting)
	}

	result := AllTypes
	switch t := node["type"].(type) {
	case string:
		result &= declaredWithNullable(ParseType(t), node)
	case []any:
		var union TypeSet
		for _, item := range t {
			if name, ok := item.(string); ok {
				union |= ParseType(name)
			}
		}
		result &= declaredWithNullable(union, node)
	}

	if allOf, ok := node["allOf"].([]any); ok {
		for i := range allOf {
			sub, err := inferTypes(doc, parser.JoinPointer(ptr, "allOf", fmt.Sprint(i)), visiting)
			if err != nil {
				return 0, err
			}
			result &= sub
		}
	}
	for _, kw := range []string{"oneOf", "anyOf"} {
		branches, ok := node[kw].([]any)
		if !ok || len(branches) == 0 {
			continue
		}
		var union TypeSet
		for i := range branches {
			sub, err := inferTypes(doc, parser.JoinPointer(ptr, kw, fmt.Sprint(i)), visiting)
			if err != nil {
				return 0, err
			}
			union |= sub
		}
		result &= union
	}
	return result, nil
}

func declaredWithNullable(set TypeSet, node map[string]any) TypeSet {
	if nullable, _ := node["nullable"].(bool); nullable {
		set |= TypeNull
	}
	return set
}

// TypeOf returns the TypeSet of a decoded JSON value. Whole numbers are
// reported as integer and number.
func TypeOf(v any) TypeSet {
	switch n := v.(type) {
	case nil:
		return TypeNull
	case bool:
		return TypeBoolean
	case string:
		return TypeString
	case float64:
		if n == float64(int64(n)) {
			return TypeNumber | TypeInteger
		}
		return TypeNumber
	case int, int32, int64:
		return TypeNumber | TypeInteger
	case []any:
		return TypeArray
	case map[string]any:
		return TypeObject
	}
	return 0
}
