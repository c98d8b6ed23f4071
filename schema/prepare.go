package schema

import (
	"math"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/erraggy/oasengine/parser"
)

// maxRefDepth bounds $ref hops taken without descending into the value.
const maxRefDepth = 64

// preparer shapes a value before validation: it fills defaults, coerces
// untyped input to the declared types and drops additional properties. It
// reports no issues; the compiled schema does. It holds no mutable state.
type preparer struct {
	root             map[string]any
	patterns         map[string]*regexp.Regexp
	coerce           bool
	removeAdditional bool
}

// prepare returns the value to keep, which differs from the input when
// coercion replaced it, and whether the value's shape fits node: its types
// match and its required properties are present. Objects and arrays are
// updated in place.
func (p *preparer) prepare(value any, node map[string]any, refDepth int) (any, bool) {
	if node == nil {
		return value, true
	}

	fits := true
	if ref, ok := node["$ref"].(string); ok {
		if refDepth >= maxRefDepth {
			return value, false
		}
		target, err := lookupLocal(p.root, ref)
		if err != nil {
			return value, false
		}
		switch t := target.(type) {
		case map[string]any:
			value, fits = p.prepare(value, t, refDepth+1)
		case bool:
			fits = t
		}
		if !fits {
			return value, false
		}
	}

	if value == nil && allowsNull(node) {
		return value, true
	}

	if declared := declaredTypes(node); declared != 0 && !typeMatches(value, declared) {
		coerced, ok := value, false
		if p.coerce {
			coerced, ok = coerceTo(value, declared)
		}
		if !ok {
			return value, false
		}
		value = coerced
	}

	switch d := value.(type) {
	case []any:
		fits = p.prepareArray(d, node, refDepth) && fits
	case map[string]any:
		fits = p.prepareObject(d, node, refDepth) && fits
	}

	var compFits bool
	value, compFits = p.prepareComposition(value, node, refDepth)
	return value, fits && compFits
}

func (p *preparer) prepareArray(arr []any, node map[string]any, refDepth int) bool {
	fits := true
	next := 0
	if prefix, ok := node["prefixItems"].([]any); ok {
		for i := 0; i < len(prefix) && i < len(arr); i++ {
			sub, _ := prefix[i].(map[string]any)
			var ok bool
			arr[i], ok = p.prepare(arr[i], sub, refDepth)
			fits = fits && ok
		}
		next = min(len(prefix), len(arr))
	}
	switch items := node["items"].(type) {
	case map[string]any:
		for i := next; i < len(arr); i++ {
			var ok bool
			arr[i], ok = p.prepare(arr[i], items, refDepth)
			fits = fits && ok
		}
	case []any:
		for i := 0; i < len(items) && i < len(arr); i++ {
			sub, _ := items[i].(map[string]any)
			var ok bool
			arr[i], ok = p.prepare(arr[i], sub, refDepth)
			fits = fits && ok
		}
	}
	return fits
}

func (p *preparer) prepareObject(obj map[string]any, node map[string]any, refDepth int) bool {
	fits := true
	props, _ := node["properties"].(map[string]any)

	for name, raw := range props {
		if _, present := obj[name]; present {
			continue
		}
		if prop := resolveLocal(p.root, raw); prop != nil {
			if def, ok := prop["default"]; ok {
				obj[name] = parser.DeepCopy(def)
			}
		}
	}
	if required, ok := node["required"].([]any); ok {
		for _, r := range required {
			name, _ := r.(string)
			if _, present := obj[name]; !present {
				fits = false
			}
		}
	}

	patternProps, _ := node["patternProperties"].(map[string]any)
	for _, name := range sortedNames(obj) {
		matched := false
		if raw, ok := props[name].(map[string]any); ok {
			matched = true
			var ok bool
			obj[name], ok = p.prepare(obj[name], raw, refDepth)
			fits = fits && ok
		}
		for pattern, raw := range patternProps {
			re := p.patterns[pattern]
			sub, ok := raw.(map[string]any)
			if re == nil || !ok || !re.MatchString(name) {
				continue
			}
			matched = true
			obj[name], ok = p.prepare(obj[name], sub, refDepth)
			fits = fits && ok
		}
		if matched {
			continue
		}
		switch extra := node["additionalProperties"].(type) {
		case bool:
			if extra {
				continue
			}
			if p.removeAdditional {
				delete(obj, name)
				continue
			}
			fits = false
		case map[string]any:
			if p.removeAdditional {
				if _, ok := p.prepare(parser.DeepCopy(obj[name]), extra, refDepth); !ok {
					delete(obj, name)
					continue
				}
			}
			var ok bool
			obj[name], ok = p.prepare(obj[name], extra, refDepth)
			fits = fits && ok
		}
	}
	return fits
}

// prepareComposition applies allOf members in turn and the first fitting
// anyOf or oneOf member. if/then/else follows the branch the if schema fits.
func (p *preparer) prepareComposition(value any, node map[string]any, refDepth int) (any, bool) {
	fits := true

	if allOf, ok := node["allOf"].([]any); ok {
		for _, raw := range allOf {
			sub, _ := raw.(map[string]any)
			var ok bool
			value, ok = p.prepare(value, sub, refDepth)
			fits = fits && ok
		}
	}

	for _, kw := range []string{"anyOf", "oneOf"} {
		branches, ok := node[kw].([]any)
		if !ok {
			continue
		}
		matched := false
		for _, raw := range branches {
			sub, _ := raw.(map[string]any)
			if candidate, ok := p.prepare(parser.DeepCopy(value), sub, refDepth); ok {
				value, matched = candidate, true
				break
			}
		}
		fits = fits && matched
	}

	if cond, ok := node["if"].(map[string]any); ok {
		branch := "else"
		if _, ok := p.prepare(parser.DeepCopy(value), cond, refDepth); ok {
			branch = "then"
		}
		if sub, ok := node[branch].(map[string]any); ok {
			var ok bool
			value, ok = p.prepare(value, sub, refDepth)
			fits = fits && ok
		}
	}
	return value, fits
}

// declaredTypes returns the types listed by the type keyword, or 0 when the
// keyword is absent.
func declaredTypes(node map[string]any) TypeSet {
	switch t := node["type"].(type) {
	case string:
		return ParseType(t)
	case []any:
		var set TypeSet
		for _, item := range t {
			if name, ok := item.(string); ok {
				set |= ParseType(name)
			}
		}
		return set
	}
	return 0
}

func allowsNull(node map[string]any) bool {
	if nullable, _ := node["nullable"].(bool); nullable {
		return true
	}
	return declaredTypes(node).Has(TypeNull)
}

func declaredNames(node map[string]any) []string {
	switch t := node["type"].(type) {
	case string:
		return []string{t}
	case []any:
		names := make([]string, 0, len(t))
		for _, item := range t {
			if s, ok := item.(string); ok {
				names = append(names, s)
			}
		}
		return names
	}
	return nil
}

func typeMatches(value any, declared TypeSet) bool {
	actual := TypeOf(value)
	if actual.Has(TypeInteger) {
		return declared.Has(TypeInteger | TypeNumber)
	}
	if actual == TypeNumber {
		return declared.Has(TypeNumber)
	}
	return declared.Has(actual)
}

// coerceTo converts value to one of the declared types: strings to numbers,
// booleans or null, scalars to strings, scalars into one-element arrays, and
// one-element arrays back to their element.
func coerceTo(value any, declared TypeSet) (any, bool) {
	if list, ok := value.([]any); ok {
		if len(list) == 1 && !declared.Has(TypeArray) {
			if typeMatches(list[0], declared) {
				return list[0], true
			}
			return coerceScalar(list[0], declared)
		}
		return nil, false
	}
	if coerced, ok := coerceScalar(value, declared); ok {
		return coerced, true
	}
	if declared.Has(TypeArray) {
		if _, isObj := value.(map[string]any); !isObj {
			return []any{value}, true
		}
	}
	return nil, false
}

func coerceScalar(value any, declared TypeSet) (any, bool) {
	switch v := value.(type) {
	case string:
		if declared.Has(TypeNumber | TypeInteger) {
			if f, err := strconv.ParseFloat(strings.TrimSpace(v), 64); err == nil && v != "" && !math.IsInf(f, 0) && !math.IsNaN(f) {
				if declared.Has(TypeNumber) || f == math.Trunc(f) {
					return f, true
				}
			}
		}
		if declared.Has(TypeBoolean) {
			switch v {
			case "true":
				return true, true
			case "false":
				return false, true
			}
		}
		if declared.Has(TypeNull) && v == "" {
			return nil, true
		}
	case float64:
		if declared.Has(TypeString) {
			return strconv.FormatFloat(v, 'f', -1, 64), true
		}
		if declared.Has(TypeBoolean) && (v == 0 || v == 1) {
			return v == 1, true
		}
	case bool:
		if declared.Has(TypeString) {
			return strconv.FormatBool(v), true
		}
		if declared.Has(TypeNumber | TypeInteger) {
			if v {
				return float64(1), true
			}
			return float64(0), true
		}
	case nil:
		switch {
		case declared.Has(TypeString):
			return "", true
		case declared.Has(TypeNumber | TypeInteger):
			return float64(0), true
		case declared.Has(TypeBoolean):
			return false, true
		}
	}
	return nil, false
}

func sortedNames(obj map[string]any) []string {
	names := make([]string, 0, len(obj))
	for k := range obj {
		names = append(names, k)
	}
	sort.Strings(names)
	return names
}
