package schema

// Keywords whose value is a single subschema.
var singleSchemaKeywords = []string{
	"items", "additionalProperties", "additionalItems", "not", "if", "then", "else",
	"contains", "propertyNames", "unevaluatedProperties", "unevaluatedItems",
}

// Keywords whose value is an array of subschemas.
var schemaListKeywords = []string{"allOf", "anyOf", "oneOf", "prefixItems", "items"}

// Keywords whose value maps names to subschemas.
var schemaMapKeywords = []string{"properties", "patternProperties", "definitions", "$defs", "dependentSchemas"}

// walkSchemas calls fn for node and every subschema reachable from it through
// schema keywords, depth first. Data keywords such as enum and default are
// never entered, so a property named "example" or a default containing a
// "$ref" key is left alone.
func walkSchemas(node map[string]any, fn func(map[string]any)) {
	if node == nil {
		return
	}
	fn(node)
	for _, kw := range singleSchemaKeywords {
		if sub, ok := node[kw].(map[string]any); ok {
			walkSchemas(sub, fn)
		}
	}
	for _, kw := range schemaListKeywords {
		if list, ok := node[kw].([]any); ok {
			for _, item := range list {
				if sub, ok := item.(map[string]any); ok {
					walkSchemas(sub, fn)
				}
			}
		}
	}
	for _, kw := range schemaMapKeywords {
		if m, ok := node[kw].(map[string]any); ok {
			for _, item := range m {
				if sub, ok := item.(map[string]any); ok {
					walkSchemas(sub, fn)
				}
			}
		}
	}
}

// rewriteRefs replaces every $ref string under node with rewrite(ref).
func rewriteRefs(node map[string]any, rewrite func(string) string) {
	walkSchemas(node, func(n map[string]any) {
		if ref, ok := n["$ref"].(string); ok {
			n["$ref"] = rewrite(ref)
		}
	})
}
