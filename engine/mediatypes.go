package engine

import (
	"bytes"
	"net/url"
	"strings"

	"github.com/goccy/go-json"

	"github.com/erraggy/oasengine/internal/mediatype"
)

// MediaTypeParser turns a request body (or a content-typed parameter) of
// one media type into a value.
type MediaTypeParser struct {
	// Parse decodes data. It is not called for empty bodies.
	Parse func(data []byte) (any, error)
	// Untyped marks values that arrive as strings without type information;
	// their schemas are validated with type coercion.
	Untyped bool
	// Opaque values are passed to handlers without schema validation.
	Opaque bool
}

// JSONParser decodes JSON into map[string]any, []any, float64, string, bool
// or nil.
var JSONParser = MediaTypeParser{
	Parse: func(data []byte) (any, error) {
		if len(bytes.TrimSpace(data)) == 0 {
			return nil, nil
		}
		var v any
		if err := json.Unmarshal(data, &v); err != nil {
			return nil, err
		}
		return v, nil
	},
}

// TextParser yields the body as a string.
var TextParser = MediaTypeParser{
	Parse: func(data []byte) (any, error) {
		return string(data), nil
	},
}

// FormParser decodes application/x-www-form-urlencoded bodies into an object.
// Repeated keys become arrays.
var FormParser = MediaTypeParser{
	Parse: func(data []byte) (any, error) {
		values, err := url.ParseQuery(string(data))
		if err != nil {
			return nil, err
		}
		obj := make(map[string]any, len(values))
		for k, vs := range values {
			if len(vs) == 1 {
				obj[k] = vs[0]
				continue
			}
			list := make([]any, len(vs))
			for i, v := range vs {
				list[i] = v
			}
			obj[k] = list
		}
		return obj, nil
	},
	Untyped: true,
}

// OctetStreamParser yields the raw bytes.
var OctetStreamParser = MediaTypeParser{
	Parse: func(data []byte) (any, error) {
		return data, nil
	},
	Opaque: true,
}

// DefaultParsers returns a registry with the built-in parsers.
func DefaultParsers() *mediatype.Registry[MediaTypeParser] {
	r := mediatype.New[MediaTypeParser]()
	_ = r.Set("application/json", JSONParser)
	_ = r.Set("text/*", TextParser)
	_ = r.Set("application/x-www-form-urlencoded", FormParser)
	_ = r.Set("application/octet-stream", OctetStreamParser)
	return r
}

// lookupParser finds the parser for a media type. Structured syntax suffix
// types such as application/problem+json fall back to the JSON parser.
func lookupParser(parsers *mediatype.Registry[MediaTypeParser], mediaType string) (MediaTypeParser, bool) {
	if p, ok := parsers.Get(mediaType); ok {
		return p, true
	}
	if isJSON(mediaType) {
		return parsers.Get("application/json")
	}
	return MediaTypeParser{}, false
}

func isJSON(mediaType string) bool {
	norm := mediatype.Normalize(mediaType)
	return norm == "application/json" || strings.HasSuffix(norm, "+json")
}

// toJSONTree converts an arbitrary Go value to the raw tree representation
// the validator works on.
func toJSONTree(v any) (any, error) {
	buf, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	var out any
	if err := json.Unmarshal(buf, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// pureJSON reports whether v is already a raw tree value.
func pureJSON(v any) bool {
	switch v.(type) {
	case nil, string, bool, float64, map[string]any, []any:
		return true
	default:
		return false
	}
}
