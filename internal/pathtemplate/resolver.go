package pathtemplate

import "fmt"

// Resolver maps request paths to values registered under path templates.
//
// Static templates live in an exact-match table and always win. Templated
// entries are tested in registration order and the last one that matches is
// returned, so later contract entries shadow earlier overlapping ones.
type Resolver[T any] struct {
	static    map[string]T
	templates []entry[T]
}

type entry[T any] struct {
	matcher *Matcher
	value   T
}

// Resolved is the outcome of a successful Resolve.
type Resolved[T any] struct {
	Template string
	Value    T
	Params   map[string]string
}

// NewResolver returns an empty resolver.
func NewResolver[T any]() *Resolver[T] {
	return &Resolver[T]{static: make(map[string]T)}
}

// Add registers value under template.
func (r *Resolver[T]) Add(template string, value T) error {
	m, err := Compile(template, Options{})
	if err != nil {
		return err
	}
	if m.IsStatic() {
		if _, dup := r.static[template]; dup {
			return fmt.Errorf("duplicate path %q", template)
		}
		r.static[template] = value
		return nil
	}
	r.templates = append(r.templates, entry[T]{matcher: m, value: value})
	return nil
}

// Resolve finds the value for path.
func (r *Resolver[T]) Resolve(path string) (Resolved[T], bool) {
	if v, ok := r.static[path]; ok {
		return Resolved[T]{Template: path, Value: v, Params: map[string]string{}}, true
	}
	var (
		found Resolved[T]
		ok    bool
	)
	for _, e := range r.templates {
		if m, matched := e.matcher.Match(path); matched {
			found = Resolved[T]{Template: e.matcher.template, Value: e.value, Params: m.Params}
			ok = true
		}
	}
	return found, ok
}

// Len returns the number of registered templates.
func (r *Resolver[T]) Len() int {
	return len(r.static) + len(r.templates)
}
