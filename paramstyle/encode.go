package paramstyle

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
)

// Escape percent-encodes s the way browsers encode a URI component: every
// byte except A-Z a-z 0-9 and - _ . ! ~ * ' ( ) is escaped.
func Escape(s string) string {
	const hex = "0123456789ABCDEF"
	var b strings.Builder
	for i := 0; i < len(s); i++ {
		c := s[i]
		if isUnreserved(c) {
			b.WriteByte(c)
			continue
		}
		b.WriteByte('%')
		b.WriteByte(hex[c>>4])
		b.WriteByte(hex[c&0x0f])
	}
	return b.String()
}

func isUnreserved(c byte) bool {
	switch {
	case 'a' <= c && c <= 'z', 'A' <= c && c <= 'Z', '0' <= c && c <= '9':
		return true
	}
	return strings.IndexByte("-_.!~*'()", c) >= 0
}

// FormatScalar renders a scalar the way it appears once serialized.
func FormatScalar(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case bool:
		return strconv.FormatBool(t)
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case float32:
		return strconv.FormatFloat(float64(t), 'f', -1, 32)
	default:
		return fmt.Sprint(v)
	}
}

// Encode serializes value for a parameter named name. Objects are written
// with their keys sorted. The result is what appears in the request: a path
// segment, a header value, or a query string fragment without a leading "?".
func Encode(style Style, explode bool, name string, value any) (string, error) {
	switch style {
	case Simple:
		return encodeSimple(value, explode), nil
	case Label:
		return encodeLabel(value, explode), nil
	case Matrix:
		return encodeMatrix(name, value, explode), nil
	case Form:
		return encodeForm(name, value, explode), nil
	case SpaceDelimited:
		return encodeDelimited(name, value, explode, "%20")
	case PipeDelimited:
		return encodeDelimited(name, value, explode, "|")
	case DeepObject:
		obj, ok := value.(map[string]any)
		if !ok {
			return "", fmt.Errorf("deepObject style requires an object, got %T", value)
		}
		var parts []string
		encodeDeep(Escape(name), obj, &parts)
		return strings.Join(parts, "&"), nil
	default:
		return "", fmt.Errorf("unknown style %q", style)
	}
}

func escapedList(list []any) []string {
	out := make([]string, len(list))
	for i, v := range list {
		out[i] = Escape(FormatScalar(v))
	}
	return out
}

// objectTokens returns the escaped keys and values of obj in key order.
func objectTokens(obj map[string]any) (keys, values []string) {
	sorted := make([]string, 0, len(obj))
	for k := range obj {
		sorted = append(sorted, k)
	}
	sort.Strings(sorted)
	for _, k := range sorted {
		keys = append(keys, Escape(k))
		values = append(values, Escape(FormatScalar(obj[k])))
	}
	return keys, values
}

func joinPairs(keys, values []string, kv, sep string) string {
	parts := make([]string, len(keys))
	for i := range keys {
		parts[i] = keys[i] + kv + values[i]
	}
	return strings.Join(parts, sep)
}

func encodeSimple(value any, explode bool) string {
	switch v := value.(type) {
	case []any:
		return strings.Join(escapedList(v), ",")
	case map[string]any:
		keys, values := objectTokens(v)
		if explode {
			return joinPairs(keys, values, "=", ",")
		}
		return joinPairs(keys, values, ",", ",")
	default:
		return Escape(FormatScalar(v))
	}
}

func encodeLabel(value any, explode bool) string {
	switch v := value.(type) {
	case []any:
		if explode {
			return "." + strings.Join(escapedList(v), ".")
		}
		return "." + strings.Join(escapedList(v), ",")
	case map[string]any:
		keys, values := objectTokens(v)
		if explode {
			return "." + joinPairs(keys, values, "=", ".")
		}
		return "." + joinPairs(keys, values, ",", ",")
	default:
		return "." + Escape(FormatScalar(v))
	}
}

func encodeMatrix(name string, value any, explode bool) string {
	n := Escape(name)
	switch v := value.(type) {
	case []any:
		if explode {
			items := escapedList(v)
			for i, item := range items {
				items[i] = ";" + n + "=" + item
			}
			return strings.Join(items, "")
		}
		return ";" + n + "=" + strings.Join(escapedList(v), ",")
	case map[string]any:
		keys, values := objectTokens(v)
		if explode {
			return ";" + joinPairs(keys, values, "=", ";")
		}
		return ";" + n + "=" + joinPairs(keys, values, ",", ",")
	default:
		s := FormatScalar(v)
		if s == "" {
			return ";" + n
		}
		return ";" + n + "=" + Escape(s)
	}
}

func encodeForm(name string, value any, explode bool) string {
	n := Escape(name)
	switch v := value.(type) {
	case []any:
		if explode {
			items := escapedList(v)
			for i, item := range items {
				items[i] = n + "=" + item
			}
			return strings.Join(items, "&")
		}
		return n + "=" + strings.Join(escapedList(v), ",")
	case map[string]any:
		keys, values := objectTokens(v)
		if explode {
			return joinPairs(keys, values, "=", "&")
		}
		return n + "=" + joinPairs(keys, values, ",", ",")
	default:
		return n + "=" + Escape(FormatScalar(v))
	}
}

func encodeDelimited(name string, value any, explode bool, sep string) (string, error) {
	list, ok := value.([]any)
	if !ok {
		return "", fmt.Errorf("delimited styles require an array, got %T", value)
	}
	if explode {
		return encodeForm(name, list, true), nil
	}
	return Escape(name) + "=" + strings.Join(escapedList(list), sep), nil
}

func encodeDeep(prefix string, obj map[string]any, parts *[]string) {
	keys := make([]string, 0, len(obj))
	for k := range obj {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		key := prefix + "[" + Escape(k) + "]"
		switch v := obj[k].(type) {
		case map[string]any:
			encodeDeep(key, v, parts)
		case []any:
			for _, item := range v {
				*parts = append(*parts, key+"[]="+Escape(FormatScalar(item)))
			}
		default:
			*parts = append(*parts, key+"="+Escape(FormatScalar(v)))
		}
	}
}
