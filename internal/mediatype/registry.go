// Package mediatype maps media-type patterns to values with most-specific-match
// precedence: an exact "type/subtype" entry wins over "type/*", which wins over "*/*".
package mediatype

import (
	"fmt"
	"mime"
	"strings"
)

// Registry associates media-type patterns with values of type T.
// A Registry is not safe for concurrent mutation; the engine fills it at
// compile time and only reads it afterwards.
type Registry[T any] struct {
	exact    map[string]T
	wildType map[string]T
	any      *T
	order    []string
}

// New returns an empty registry.
func New[T any]() *Registry[T] {
	return &Registry[T]{
		exact:    make(map[string]T),
		wildType: make(map[string]T),
	}
}

// Normalize lowercases a media type and drops its parameters.
// "Application/JSON; charset=utf-8" becomes "application/json".
func Normalize(mediaType string) string {
	mediaType = strings.TrimSpace(mediaType)
	if mediaType == "" {
		return ""
	}
	if mt, _, err := mime.ParseMediaType(mediaType); err == nil {
		return mt
	}
	if idx := strings.IndexByte(mediaType, ';'); idx >= 0 {
		mediaType = mediaType[:idx]
	}
	return strings.ToLower(strings.TrimSpace(mediaType))
}

// Set registers v for pattern, replacing any previous value.
func (r *Registry[T]) Set(pattern string, v T) error {
	norm := Normalize(pattern)
	typ, sub, ok := strings.Cut(norm, "/")
	if !ok || typ == "" || sub == "" {
		return fmt.Errorf("invalid media type pattern %q", pattern)
	}
	switch {
	case typ == "*" && sub == "*":
		r.any = &v
	case typ == "*":
		return fmt.Errorf("invalid media type pattern %q: wildcard type requires wildcard subtype", pattern)
	case sub == "*":
		r.wildType[typ] = v
	default:
		r.exact[norm] = v
	}
	r.remember(norm)
	return nil
}

func (r *Registry[T]) remember(norm string) {
	for _, p := range r.order {
		if p == norm {
			return
		}
	}
	r.order = append(r.order, norm)
}

// Get returns the value registered for the most specific pattern matching
// mediaType.
func (r *Registry[T]) Get(mediaType string) (T, bool) {
	norm := Normalize(mediaType)
	if v, ok := r.exact[norm]; ok {
		return v, true
	}
	if typ, _, ok := strings.Cut(norm, "/"); ok {
		if v, ok := r.wildType[typ]; ok {
			return v, true
		}
	}
	if r.any != nil {
		return *r.any, true
	}
	var zero T
	return zero, false
}

// Patterns returns the registered patterns in registration order.
func (r *Registry[T]) Patterns() []string {
	return append([]string(nil), r.order...)
}

// Len returns the number of registered patterns.
func (r *Registry[T]) Len() int {
	return len(r.order)
}
