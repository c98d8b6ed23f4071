package paramstyle

import (
	"net/url"
	"sort"
	"strings"
)

// RawValues holds the undecoded values of one location keyed by parameter
// name. Names are decoded; values keep their percent-encoding so that
// delimiters can be told apart from encoded delimiters.
type RawValues map[string][]string

// unescape percent-decodes s, returning it unchanged when it is not valid
// percent-encoding.
func unescape(s string) string {
	if !strings.Contains(s, "%") {
		return s
	}
	if u, err := url.PathUnescape(s); err == nil {
		return u
	}
	return s
}

// splitTokens splits raw on sep and decodes each token.
func splitTokens(raw, sep string) []string {
	parts := strings.Split(raw, sep)
	for i, p := range parts {
		parts[i] = unescape(p)
	}
	return parts
}

// scalarOrList returns a lone token as a string and several as an array.
func scalarOrList(tokens []string) any {
	if len(tokens) == 1 {
		return tokens[0]
	}
	list := make([]any, len(tokens))
	for i, t := range tokens {
		list[i] = t
	}
	return list
}

// pairsToObject builds an object from decoded k,v,k,v tokens. A trailing key
// without a value maps to "".
func pairsToObject(tokens []string) map[string]any {
	obj := make(map[string]any, len(tokens)/2)
	for i := 0; i < len(tokens); i += 2 {
		if i+1 < len(tokens) {
			obj[tokens[i]] = tokens[i+1]
		} else if tokens[i] != "" {
			obj[tokens[i]] = ""
		}
	}
	return obj
}

// assignmentsToObject builds an object from raw "k=v" tokens separated by sep.
func assignmentsToObject(raw, sep string) map[string]any {
	obj := make(map[string]any)
	for _, part := range strings.Split(raw, sep) {
		if part == "" {
			continue
		}
		k, v, _ := strings.Cut(part, "=")
		obj[unescape(k)] = unescape(v)
	}
	return obj
}

// DecodeSimple decodes a simple-style value: "a,b" for arrays, "k,v,k,v" for
// objects, "k=v,k=v" for exploded objects.
func DecodeSimple(raw string, explode bool, shape Shape) any {
	switch shape {
	case ShapeArray:
		return scalarOrList(splitTokens(raw, ","))
	case ShapeObject:
		if explode {
			return assignmentsToObject(raw, ",")
		}
		return pairsToObject(splitTokens(raw, ","))
	default:
		return unescape(raw)
	}
}

// DecodeLabel decodes a label-style value: ".a,b" or, exploded, ".a.b" and ".k=v.k=v".
func DecodeLabel(raw string, explode bool, shape Shape) any {
	raw = strings.TrimPrefix(raw, ".")
	switch shape {
	case ShapeArray:
		if explode {
			return scalarOrList(splitTokens(raw, "."))
		}
		return scalarOrList(splitTokens(raw, ","))
	case ShapeObject:
		if explode {
			return assignmentsToObject(raw, ".")
		}
		return pairsToObject(splitTokens(raw, ","))
	default:
		return unescape(raw)
	}
}

// DecodeForm decodes the occurrences of a form-style parameter. Exploded
// arrays arrive as one occurrence per element; non-exploded values are
// comma separated. Exploded objects need the whole bag: see DecodeExplodedObject.
func DecodeForm(values []string, explode bool, shape Shape) any {
	switch shape {
	case ShapeArray:
		var tokens []string
		for _, v := range values {
			if explode {
				tokens = append(tokens, unescape(v))
			} else {
				tokens = append(tokens, splitTokens(v, ",")...)
			}
		}
		return scalarOrList(tokens)
	case ShapeObject:
		var tokens []string
		for _, v := range values {
			tokens = append(tokens, splitTokens(v, ",")...)
		}
		return pairsToObject(tokens)
	default:
		tokens := make([]string, len(values))
		for i, v := range values {
			tokens[i] = unescape(v)
		}
		return scalarOrList(tokens)
	}
}

// DecodeExplodedObject decodes an exploded form object, which has no prefix
// of its own: every entry of the bag becomes a property.
func DecodeExplodedObject(bag RawValues) map[string]any {
	obj := make(map[string]any, len(bag))
	for k, vs := range bag {
		tokens := make([]string, len(vs))
		for i, v := range vs {
			tokens[i] = unescape(v)
		}
		obj[k] = scalarOrList(tokens)
	}
	return obj
}

// DecodeMatrix decodes a matrix-style value such as ";id=5" or ";id=3;id=4".
// A bare ";id" decodes to "". ok is false when name is not present.
func DecodeMatrix(raw, name string, explode bool, shape Shape) (any, bool) {
	bag := parseAssignments(strings.TrimPrefix(raw, ";"), ";")
	if shape == ShapeObject && explode {
		return DecodeExplodedObject(bag), true
	}
	values, ok := bag[name]
	if !ok {
		return nil, false
	}
	return DecodeForm(values, explode, shape), true
}

// DecodeDelimited decodes spaceDelimited (sep " ") or pipeDelimited (sep "|")
// values. Every occurrence is split and decoded on its own, so clients that
// repeat the parameter instead of delimiting it are accepted.
func DecodeDelimited(values []string, sep string) any {
	var tokens []string
	for _, v := range values {
		switch sep {
		case " ":
			v = strings.ReplaceAll(v, " ", "%20")
			tokens = append(tokens, splitTokens(v, "%20")...)
		case "|":
			v = strings.ReplaceAll(strings.ReplaceAll(v, "%7C", "|"), "%7c", "|")
			tokens = append(tokens, splitTokens(v, "|")...)
		default:
			tokens = append(tokens, splitTokens(v, sep)...)
		}
	}
	return scalarOrList(tokens)
}

// DecodeDeepObject collects name[key]=value entries into an object. Nested
// brackets build nested objects and a trailing "[]" appends to an array.
// ok is false when no entry for name exists.
func DecodeDeepObject(bag RawValues, name string) (map[string]any, bool) {
	prefix := name + "["
	keys := make([]string, 0, len(bag))
	for k := range bag {
		if strings.HasPrefix(k, prefix) {
			keys = append(keys, k)
		}
	}
	if len(keys) == 0 {
		return nil, false
	}
	sort.Strings(keys)

	obj := make(map[string]any)
	for _, k := range keys {
		segments, ok := bracketSegments(k[len(name):])
		if !ok || segments[0] == "" {
			continue
		}
		values := make([]string, len(bag[k]))
		for i, v := range bag[k] {
			values[i] = unescape(v)
		}
		assignDeep(obj, segments, values)
	}
	return obj, true
}

// bracketSegments splits "[a][b][]" into ["a", "b", ""].
func bracketSegments(s string) ([]string, bool) {
	var segments []string
	for len(s) > 0 {
		if s[0] != '[' {
			return nil, false
		}
		end := strings.IndexByte(s, ']')
		if end < 0 {
			return nil, false
		}
		segments = append(segments, s[1:end])
		s = s[end+1:]
	}
	return segments, len(segments) > 0
}

func assignDeep(obj map[string]any, segments []string, values []string) {
	for i, seg := range segments {
		last := i == len(segments)-1
		if last {
			obj[seg] = scalarOrList(values)
			return
		}
		if segments[i+1] == "" && i+1 == len(segments)-1 {
			list, _ := obj[seg].([]any)
			for _, v := range values {
				list = append(list, v)
			}
			obj[seg] = list
			return
		}
		child, ok := obj[seg].(map[string]any)
		if !ok {
			child = make(map[string]any)
			obj[seg] = child
		}
		obj = child
	}
}

// parseAssignments splits raw "k=v" entries on sep into a bag. Keys are
// decoded, values are kept raw, and an entry without "=" has value "".
func parseAssignments(raw, sep string) RawValues {
	bag := make(RawValues)
	for _, part := range strings.Split(raw, sep) {
		if part == "" {
			continue
		}
		k, v, _ := strings.Cut(part, "=")
		key := unescape(k)
		bag[key] = append(bag[key], v)
	}
	return bag
}

// ParseRawQuery splits a raw query string without decoding values. "+" is
// read as an encoded space.
func ParseRawQuery(rawQuery string) RawValues {
	bag := make(RawValues)
	for _, part := range strings.Split(rawQuery, "&") {
		if part == "" {
			continue
		}
		k, v, _ := strings.Cut(part, "=")
		key := unescape(strings.ReplaceAll(k, "+", "%20"))
		bag[key] = append(bag[key], strings.ReplaceAll(v, "+", "%20"))
	}
	return bag
}

// ParseCookies splits a Cookie header into a bag of raw values.
func ParseCookies(header string) RawValues {
	bag := make(RawValues)
	for _, part := range strings.Split(header, ";") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		k, v, _ := strings.Cut(part, "=")
		k = strings.TrimSpace(k)
		v = strings.TrimSpace(v)
		if len(v) > 1 && v[0] == '"' && v[len(v)-1] == '"' {
			v = v[1 : len(v)-1]
		}
		bag[k] = append(bag[k], v)
	}
	return bag
}
