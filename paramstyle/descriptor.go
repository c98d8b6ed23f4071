package paramstyle

import (
	"fmt"
	"strings"

	"github.com/erraggy/oasengine/schema"
)

// Descriptor describes how one parameter is serialized. It is either Styled
// or ContentTyped.
type Descriptor interface {
	Location() Location
	ParamName() string
	isDescriptor()
}

// Styled is a parameter defined with a schema and a serialization style.
type Styled struct {
	In      Location
	Name    string
	Style   Style
	Explode bool
	// Types are the types the parameter schema allows.
	Types schema.TypeSet
}

// ContentTyped is a parameter defined with a single content entry; its raw
// value is decoded by the media type's decoder.
type ContentTyped struct {
	In        Location
	Name      string
	MediaType string
	Decode    func(raw string) (any, error)
}

// Location implements Descriptor.
func (s Styled) Location() Location { return s.In }

// ParamName implements Descriptor.
func (s Styled) ParamName() string { return s.Name }

func (Styled) isDescriptor() {}

// Location implements Descriptor.
func (c ContentTyped) Location() Location { return c.In }

// ParamName implements Descriptor.
func (c ContentTyped) ParamName() string { return c.Name }

func (ContentTyped) isDescriptor() {}

// Parser extracts one parameter from the raw values of its location.
// ok is false when the parameter is absent.
type Parser func(values RawValues) (value any, ok bool, err error)

// LookupName returns the key a parameter is stored under in RawValues.
// Header names are case-insensitive and stored lower-cased.
func LookupName(in Location, name string) string {
	if in == InHeader {
		return strings.ToLower(name)
	}
	return name
}

// NewParser builds the Parser for d.
func NewParser(d Descriptor) (Parser, error) {
	switch d := d.(type) {
	case Styled:
		return newStyledParser(d)
	case ContentTyped:
		return newContentParser(d)
	default:
		return nil, fmt.Errorf("unsupported parameter descriptor %T", d)
	}
}

func newContentParser(d ContentTyped) (Parser, error) {
	if d.Decode == nil {
		return nil, fmt.Errorf("%s parameter %q: no decoder for media type %q", d.In, d.Name, d.MediaType)
	}
	key := LookupName(d.In, d.Name)
	return func(values RawValues) (any, bool, error) {
		vs, ok := values[key]
		if !ok || len(vs) == 0 {
			return nil, false, nil
		}
		raw := vs[0]
		if d.In != InHeader {
			raw = unescape(raw)
		}
		v, err := d.Decode(raw)
		if err != nil {
			return nil, true, err
		}
		return v, true, nil
	}, nil
}

func newStyledParser(d Styled) (Parser, error) {
	if err := CheckStyle(d.In, d.Style); err != nil {
		return nil, fmt.Errorf("parameter %q: %w", d.Name, err)
	}
	shape, err := ShapeOf(d.Types)
	if err != nil {
		return nil, fmt.Errorf("%s parameter %q: %w", d.In, d.Name, err)
	}
	switch {
	case (d.Style == SpaceDelimited || d.Style == PipeDelimited) && shape == ShapeObject:
		return nil, fmt.Errorf("%s parameter %q: style %s only supports arrays", d.In, d.Name, d.Style)
	case d.Style == DeepObject && shape == ShapeArray:
		return nil, fmt.Errorf("%s parameter %q: style deepObject only supports objects", d.In, d.Name)
	}

	key := LookupName(d.In, d.Name)
	explode := d.Explode

	var decode func(values RawValues) (any, bool)
	switch d.Style {
	case Simple:
		decode = func(values RawValues) (any, bool) {
			vs, ok := values[key]
			if !ok {
				return nil, false
			}
			return DecodeSimple(strings.Join(vs, ","), explode, shape), true
		}
	case Label:
		decode = func(values RawValues) (any, bool) {
			vs, ok := values[key]
			if !ok || len(vs) == 0 {
				return nil, false
			}
			return DecodeLabel(vs[0], explode, shape), true
		}
	case Matrix:
		decode = func(values RawValues) (any, bool) {
			vs, ok := values[key]
			if !ok || len(vs) == 0 {
				return nil, false
			}
			return DecodeMatrix(vs[0], d.Name, explode, shape)
		}
	case Form:
		decode = func(values RawValues) (any, bool) {
			if shape == ShapeObject && explode {
				obj := DecodeExplodedObject(values)
				return obj, len(obj) > 0
			}
			vs, ok := values[key]
			if !ok || len(vs) == 0 {
				return nil, false
			}
			return DecodeForm(vs, explode, shape), true
		}
	case SpaceDelimited, PipeDelimited:
		sep := " "
		if d.Style == PipeDelimited {
			sep = "|"
		}
		decode = func(values RawValues) (any, bool) {
			vs, ok := values[key]
			if !ok || len(vs) == 0 {
				return nil, false
			}
			return DecodeDelimited(vs, sep), true
		}
	case DeepObject:
		decode = func(values RawValues) (any, bool) {
			obj, ok := DecodeDeepObject(values, key)
			if !ok {
				return nil, false
			}
			return obj, true
		}
	}

	arrayOnly := d.Types&^schema.TypeNull == schema.TypeArray
	return func(values RawValues) (any, bool, error) {
		v, ok := decode(values)
		if !ok {
			return nil, false, nil
		}
		if _, isList := v.([]any); arrayOnly && !isList {
			v = []any{v}
		}
		return v, true, nil
	}, nil
}
