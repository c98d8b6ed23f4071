package paramstyle

import (
	"fmt"

	"github.com/erraggy/oasengine/schema"
)

// Location is where a parameter is carried.
type Location string

// Parameter locations. Server covers variables in server URL templates.
const (
	InPath   Location = "path"
	InQuery  Location = "query"
	InHeader Location = "header"
	InCookie Location = "cookie"
	InServer Location = "server"
)

// Locations lists every location in the order parameters are resolved.
var Locations = []Location{InPath, InServer, InQuery, InHeader, InCookie}

// Style is a serialization style.
type Style string

// Serialization styles.
const (
	Simple         Style = "simple"
	Form           Style = "form"
	Matrix         Style = "matrix"
	Label          Style = "label"
	SpaceDelimited Style = "spaceDelimited"
	PipeDelimited  Style = "pipeDelimited"
	DeepObject     Style = "deepObject"
)

var allowedStyles = map[Location][]Style{
	InPath:   {Simple, Label, Matrix},
	InQuery:  {Form, SpaceDelimited, PipeDelimited, DeepObject},
	InHeader: {Simple},
	InCookie: {Form},
	InServer: {Simple},
}

// DefaultStyle returns the style used when a parameter declares none.
func DefaultStyle(in Location) Style {
	switch in {
	case InQuery, InCookie:
		return Form
	default:
		return Simple
	}
}

// DefaultExplode returns the explode value used when a parameter declares none.
func DefaultExplode(style Style) bool {
	return style == Form
}

// CheckStyle reports an error when style cannot be used at in.
func CheckStyle(in Location, style Style) error {
	styles, ok := allowedStyles[in]
	if !ok {
		return fmt.Errorf("unknown parameter location %q", in)
	}
	for _, s := range styles {
		if s == style {
			return nil
		}
	}
	return fmt.Errorf("style %q is not allowed for %s parameters", style, in)
}

// Shape is the structure a decoder produces.
type Shape int

// Decoded shapes.
const (
	ShapeScalar Shape = iota
	ShapeArray
	ShapeObject
)

func (s Shape) String() string {
	switch s {
	case ShapeArray:
		return "array"
	case ShapeObject:
		return "object"
	default:
		return "scalar"
	}
}

// ShapeOf picks the decode shape for the allowed types. An unconstrained
// schema decodes as a scalar. Allowing both arrays and objects is an error.
func ShapeOf(types schema.TypeSet) (Shape, error) {
	if types == schema.AllTypes {
		return ShapeScalar, nil
	}
	arr, obj := types.Has(schema.TypeArray), types.Has(schema.TypeObject)
	switch {
	case arr && obj:
		return ShapeScalar, fmt.Errorf("schema allows both array and object (%s); the serialized form is ambiguous", types)
	case arr:
		return ShapeArray, nil
	case obj:
		return ShapeObject, nil
	default:
		return ShapeScalar, nil
	}
}
