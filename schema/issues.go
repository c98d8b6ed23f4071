package schema

import (
	"errors"
	"fmt"
	"math"
	"net/url"
	"reflect"
	"sort"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/go-openapi/jsonpointer"
	"github.com/santhosh-tekuri/jsonschema/v5"
)

// issue is a validation failure at an instance path.
type issue struct {
	path    string
	message string
}

// describe turns a validation error into one issue per failed keyword,
// worded against the schema node and instance value the keyword names.
// Issues are ordered by instance path.
func (v *Validator) describe(err error, env map[string]any) []issue {
	var verr *jsonschema.ValidationError
	if !errors.As(err, &verr) {
		return []issue{{"/" + EnvelopeProperty, err.Error()}}
	}
	var out []issue
	v.collect(verr, env, &out)
	sort.SliceStable(out, func(i, j int) bool { return out[i].path < out[j].path })
	return out
}

// summarized keywords report their own failure instead of their causes.
var summarized = map[string]bool{
	"anyOf": true, "oneOf": true, "not": true,
	"contains": true, "minContains": true, "maxContains": true,
}

func (v *Validator) collect(ve *jsonschema.ValidationError, env map[string]any, out *[]issue) {
	kwTokens := locationTokens(fragment(ve.AbsoluteKeywordLocation))
	keyword := ""
	if n := len(kwTokens); n > 0 {
		keyword = kwTokens[n-1]
	}
	if len(ve.Causes) > 0 && !summarized[keyword] {
		for _, cause := range ve.Causes {
			v.collect(cause, env, out)
		}
		return
	}
	if ve.Message == "" {
		return
	}

	instTokens := locationTokens(ve.InstanceLocation)
	f := failure{
		keyword:  keyword,
		kwTokens: kwTokens,
		path:     pointer(instTokens),
		message:  ve.Message,
	}
	if n := len(kwTokens); n > 0 {
		f.node, _ = lookupTokens(v.envelope, kwTokens[:n-1]).(map[string]any)
	}
	f.value = lookupTokens(env, instTokens)
	if i := indexOf(kwTokens, "propertyNames"); i >= 0 && len(instTokens) > 0 {
		f.value = instTokens[len(instTokens)-1]
	}
	*out = append(*out, v.word(f)...)
}

// failure is a leaf validation error with the context needed to word it.
type failure struct {
	keyword  string
	kwTokens []string
	node     map[string]any
	value    any
	path     string
	message  string
}

func (v *Validator) word(f failure) []issue {
	one := func(format string, args ...any) []issue {
		return []issue{{f.path, fmt.Sprintf(format, args...)}}
	}
	for _, kw := range []string{"dependentRequired", "dependencies"} {
		if i := indexOf(f.kwTokens, kw); i >= 0 && i+3 == len(f.kwTokens) {
			if issues, ok := v.wordDependent(f, i); ok {
				return issues
			}
		}
	}

	node := f.node
	switch f.keyword {
	case "type":
		if n, ok := f.value.(float64); ok && n != math.Trunc(n) {
			declared := declaredTypes(node)
			if declared.Has(TypeInteger) && !declared.Has(TypeNumber) {
				return one("value must be an integer, got %v", n)
			}
		}
		return one("expected type %s but got %s", strings.Join(declaredNames(node), " or "), typeName(f.value))
	case "enum":
		enum, _ := node["enum"].([]any)
		return one("value must be one of %s", formatEnum(enum))
	case "const":
		return one("value must be equal to %v", node["const"])
	case "format":
		return one("value must match format %q", node["format"])
	case "minLength", "maxLength":
		s, _ := f.value.(string)
		length := utf8.RuneCountInString(s)
		if f.keyword == "minLength" {
			return one("string length %d is less than minimum %v", length, node["minLength"])
		}
		return one("string length %d exceeds maximum %v", length, node["maxLength"])
	case "pattern":
		return one("string does not match pattern %q", node["pattern"])
	case "minimum":
		return one("value %v is less than minimum %v", f.value, node["minimum"])
	case "maximum":
		return one("value %v exceeds maximum %v", f.value, node["maximum"])
	case "exclusiveMinimum":
		return one("value %v must be greater than %v", f.value, exclusiveBound(node, "exclusiveMinimum", "minimum"))
	case "exclusiveMaximum":
		return one("value %v must be less than %v", f.value, exclusiveBound(node, "exclusiveMaximum", "maximum"))
	case "multipleOf":
		return one("value %v is not a multiple of %v", f.value, node["multipleOf"])
	case "minItems", "maxItems":
		arr, _ := f.value.([]any)
		if f.keyword == "minItems" {
			return one("array has %d items, minimum is %v", len(arr), node["minItems"])
		}
		return one("array has %d items, maximum is %v", len(arr), node["maxItems"])
	case "uniqueItems":
		return one("array items must be unique")
	case "minProperties", "maxProperties":
		obj, _ := f.value.(map[string]any)
		if f.keyword == "minProperties" {
			return one("object has %d properties, minimum is %v", len(obj), node["minProperties"])
		}
		return one("object has %d properties, maximum is %v", len(obj), node["maxProperties"])
	case "required":
		return v.wordRequired(f)
	case "additionalProperties":
		return v.wordAdditional(f)
	case "anyOf":
		return one("value does not match any of the anyOf schemas")
	case "oneOf":
		if strings.HasPrefix(f.message, "valid against schemas") {
			return one("value matches more than one of the oneOf schemas")
		}
		return one("value does not match any of the oneOf schemas")
	case "not":
		return one("value must not match the schema in not")
	case "contains", "minContains":
		want := 1.0
		if n, ok := node["minContains"].(float64); ok {
			want = n
		}
		return one("array must contain at least %v matching item(s)", want)
	case "maxContains":
		return one("array must contain at most %v matching item(s)", node["maxContains"])
	}
	if f.message == "not allowed" {
		return one("no value is allowed here")
	}
	return one("%s", f.message)
}

func (v *Validator) wordRequired(f failure) []issue {
	obj, _ := f.value.(map[string]any)
	required, _ := f.node["required"].([]any)
	var out []issue
	for _, r := range required {
		name, _ := r.(string)
		if _, present := obj[name]; !present {
			out = append(out, issue{childPath(f.path, name), fmt.Sprintf("required property %q is missing", name)})
		}
	}
	if len(out) == 0 {
		out = append(out, issue{f.path, f.message})
	}
	return out
}

func (v *Validator) wordAdditional(f failure) []issue {
	obj, _ := f.value.(map[string]any)
	props, _ := f.node["properties"].(map[string]any)
	patternProps, _ := f.node["patternProperties"].(map[string]any)
	var out []issue
	for _, name := range sortedNames(obj) {
		if _, declared := props[name]; declared {
			continue
		}
		matched := false
		for pattern := range patternProps {
			if re := v.prep.patterns[pattern]; re != nil && re.MatchString(name) {
				matched = true
				break
			}
		}
		if !matched {
			out = append(out, issue{childPath(f.path, name), fmt.Sprintf("additional property %q is not allowed", name)})
		}
	}
	if len(out) == 0 {
		out = append(out, issue{f.path, f.message})
	}
	return out
}

// wordDependent words a dependentRequired (or draft 4 dependencies) failure
// whose keyword sits at kwTokens[i], followed by the trigger property and
// the index of the property it requires.
func (v *Validator) wordDependent(f failure, i int) ([]issue, bool) {
	owner, _ := lookupTokens(v.envelope, f.kwTokens[:i]).(map[string]any)
	deps, _ := owner[f.kwTokens[i]].(map[string]any)
	trigger := f.kwTokens[i+1]
	list, _ := deps[trigger].([]any)
	idx, err := strconv.Atoi(f.kwTokens[i+2])
	if err != nil || idx < 0 || idx >= len(list) {
		return nil, false
	}
	name, _ := list[idx].(string)
	return []issue{{childPath(f.path, name), fmt.Sprintf("property %q is required when %q is present", name, trigger)}}, true
}

// exclusiveBound reads a numeric exclusive bound, or the plain bound it
// modifies when given in the boolean form.
func exclusiveBound(node map[string]any, exclusive, plain string) any {
	if b, ok := node[exclusive].(bool); ok && b {
		return node[plain]
	}
	return node[exclusive]
}

// fragment returns the part of a location after "#".
func fragment(loc string) string {
	if i := strings.IndexByte(loc, '#'); i >= 0 {
		return loc[i+1:]
	}
	return ""
}

// locationTokens splits a URL-escaped JSON pointer into raw tokens.
func locationTokens(ptr string) []string {
	if ptr == "" || ptr == "/" {
		return nil
	}
	parts := strings.Split(strings.TrimPrefix(ptr, "/"), "/")
	for i, p := range parts {
		if u, err := url.PathUnescape(p); err == nil {
			p = u
		}
		parts[i] = jsonpointer.Unescape(p)
	}
	return parts
}

func pointer(tokens []string) string {
	var b strings.Builder
	for _, t := range tokens {
		b.WriteByte('/')
		b.WriteString(jsonpointer.Escape(t))
	}
	return b.String()
}

// lookupTokens walks raw tokens through maps and arrays; it returns nil when
// the path does not exist.
func lookupTokens(root any, tokens []string) any {
	cur := root
	for _, t := range tokens {
		switch c := cur.(type) {
		case map[string]any:
			cur = c[t]
		case []any:
			i, err := strconv.Atoi(t)
			if err != nil || i < 0 || i >= len(c) {
				return nil
			}
			cur = c[i]
		default:
			return nil
		}
	}
	return cur
}

func indexOf(tokens []string, want string) int {
	for i := len(tokens) - 1; i >= 0; i-- {
		if tokens[i] == want {
			return i
		}
	}
	return -1
}

func typeName(value any) string {
	switch TypeOf(value) {
	case TypeNull:
		return "null"
	case TypeBoolean:
		return "boolean"
	case TypeString:
		return "string"
	case TypeArray:
		return "array"
	case TypeObject:
		return "object"
	case TypeNumber | TypeInteger:
		return "integer"
	case TypeNumber:
		return "number"
	}
	return fmt.Sprintf("%T", value)
}

func childPath(path, token string) string {
	return path + "/" + jsonpointer.Escape(token)
}

func containsValue(list []any, v any) bool {
	for _, item := range list {
		if reflect.DeepEqual(item, v) {
			return true
		}
	}
	return false
}

func formatEnum(enum []any) string {
	parts := make([]string, len(enum))
	for i, v := range enum {
		switch s := v.(type) {
		case string:
			parts[i] = strconv.Quote(s)
		case nil:
			parts[i] = "null"
		default:
			parts[i] = fmt.Sprint(v)
		}
	}
	return "[" + strings.Join(parts, ", ") + "]"
}
