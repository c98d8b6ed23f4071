package schema

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/erraggy/oasengine/oaserrors"
	"github.com/erraggy/oasengine/parser"
)

const typesYAML = `openapi: "3.0.3"
info: {title: t, version: "1"}
paths: {}
components:
  schemas:
    Str: {type: string}
    NullableStr: {type: string, nullable: true}
    Multi: {type: [string, "null"]}
    Num: {type: number}
    Int: {type: integer}
    Empty: {}
    Ref: {$ref: '#/components/schemas/Str'}
    AllOf:
      allOf:
        - {type: [string, integer]}
        - {type: [integer, boolean]}
    OneOf:
      oneOf:
        - {type: array}
        - {$ref: '#/components/schemas/Str'}
    AnyOfObject:
      anyOf:
        - {type: object}
        - {type: array}
    NumberAndInt:
      type: number
      allOf:
        - {type: integer}
    Loop:
      allOf:
        - $ref: '#/components/schemas/Loop'
    Tree:
      type: object
      properties:
        children:
          type: array
          items: {$ref: '#/components/schemas/Tree'}
`

func TestInferTypes(t *testing.T) {
	doc, err := parser.ParseBytes([]byte(typesYAML))
	require.NoError(t, err)

	tests := []struct {
		name string
		want TypeSet
	}{
		{"Str", TypeString},
		{"NullableStr", TypeString | TypeNull},
		{"Multi", TypeString | TypeNull},
		{"Num", TypeNumber | TypeInteger},
		{"Int", TypeInteger},
		{"Empty", AllTypes},
		{"Ref", TypeString},
		{"AllOf", TypeInteger},
		{"OneOf", TypeArray | TypeString},
		{"AnyOfObject", TypeObject | TypeArray},
		{"NumberAndInt", TypeInteger},
		{"Tree", TypeObject},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := InferTypes(doc, "#/components/schemas/"+tt.name)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got, "got %s", got)
		})
	}

	t.Run("circular", func(t *testing.T) {
		_, err := InferTypes(doc, "#/components/schemas/Loop")
		require.Error(t, err)
		assert.ErrorIs(t, err, oaserrors.ErrCircularReference)
	})

	t.Run("missing", func(t *testing.T) {
		_, err := InferTypes(doc, "#/components/schemas/Nope")
		assert.ErrorIs(t, err, oaserrors.ErrReference)
	})

	t.Run("idempotent", func(t *testing.T) {
		a, err := InferTypes(doc, "#/components/schemas/OneOf")
		require.NoError(t, err)
		b, err := InferTypes(doc, "#/components/schemas/OneOf")
		require.NoError(t, err)
		assert.Equal(t, a, b)
	})
}

func TestTypeSet(t *testing.T) {
	s := TypeString | TypeNull
	assert.True(t, s.Has(TypeString))
	assert.False(t, s.Has(TypeArray))
	assert.True(t, TypeArray.Only(TypeArray|TypeNull))
	assert.False(t, s.Only(TypeString))
	assert.False(t, TypeSet(0).Only(TypeString))
	assert.Equal(t, []string{"null", "string"}, s.Names())
	assert.Equal(t, "any", AllTypes.String())
	assert.Equal(t, "none", TypeSet(0).String())
	assert.Equal(t, TypeSet(0), ParseType("bogus"))
}

func TestTypeOf(t *testing.T) {
	assert.Equal(t, TypeNull, TypeOf(nil))
	assert.Equal(t, TypeNumber|TypeInteger, TypeOf(float64(3)))
	assert.Equal(t, TypeNumber, TypeOf(3.5))
	assert.Equal(t, TypeString, TypeOf("x"))
	assert.Equal(t, TypeArray, TypeOf([]any{}))
	assert.Equal(t, TypeObject, TypeOf(map[string]any{}))
	assert.Equal(t, TypeSet(0), TypeOf(struct{}{}))
}
