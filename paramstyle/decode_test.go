package paramstyle

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecodeSimple(t *testing.T) {
	tests := []struct {
		name    string
		raw     string
		explode bool
		shape   Shape
		want    any
	}{
		{"string", "blue%20sky", false, ShapeScalar, "blue sky"},
		{"array with encoded comma", "foo,bar%2Cbaz", false, ShapeArray, []any{"foo", "bar,baz"}},
		{"single element array", "foo", false, ShapeArray, "foo"},
		{"object", "R,100,G,200", false, ShapeObject, map[string]any{"R": "100", "G": "200"}},
		{"exploded object", "R=100,G=a%3Db", true, ShapeObject, map[string]any{"R": "100", "G": "a=b"}},
		{"object trailing key", "R,100,G", false, ShapeObject, map[string]any{"R": "100", "G": ""}},
		{"invalid escape kept", "100%", false, ShapeScalar, "100%"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, DecodeSimple(tt.raw, tt.explode, tt.shape))
		})
	}
}

func TestDecodeLabel(t *testing.T) {
	assert.Equal(t, "blue", DecodeLabel(".blue", false, ShapeScalar))
	assert.Equal(t, []any{"blue", "black"}, DecodeLabel(".blue,black", false, ShapeArray))
	assert.Equal(t, []any{"blue", "black"}, DecodeLabel(".blue.black", true, ShapeArray))
	assert.Equal(t, map[string]any{"R": "100", "G": "200"}, DecodeLabel(".R,100,G,200", false, ShapeObject))
	assert.Equal(t, map[string]any{"R": "100", "G": "200"}, DecodeLabel(".R=100.G=200", true, ShapeObject))
}

func TestDecodeMatrix(t *testing.T) {
	tests := []struct {
		name    string
		raw     string
		explode bool
		shape   Shape
		want    any
		ok      bool
	}{
		{"string", ";var=foo", false, ShapeScalar, "foo", true},
		{"empty string", ";var", false, ShapeScalar, "", true},
		{"array", ";var=a,b", false, ShapeArray, []any{"a", "b"}, true},
		{"exploded array", ";var=a;var=b", true, ShapeArray, []any{"a", "b"}, true},
		{"object", ";var=R,100,G,200", false, ShapeObject, map[string]any{"R": "100", "G": "200"}, true},
		{"exploded object", ";R=100;G=200", true, ShapeObject, map[string]any{"R": "100", "G": "200"}, true},
		{"other name", ";other=1", false, ShapeScalar, nil, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := DecodeMatrix(tt.raw, "var", tt.explode, tt.shape)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestDecodeForm(t *testing.T) {
	tests := []struct {
		name    string
		values  []string
		explode bool
		shape   Shape
		want    any
	}{
		{"exploded repeated array", []string{"foo", "bar%2Cbaz"}, true, ShapeArray, []any{"foo", "bar,baz"}},
		{"comma array", []string{"foo,bar%2Cbaz"}, false, ShapeArray, []any{"foo", "bar,baz"}},
		{"object", []string{"R,100,G,200"}, false, ShapeObject, map[string]any{"R": "100", "G": "200"}},
		{"scalar", []string{"a%20b"}, true, ShapeScalar, "a b"},
		{"repeated scalar", []string{"a", "b"}, true, ShapeScalar, []any{"a", "b"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, DecodeForm(tt.values, tt.explode, tt.shape))
		})
	}
}

func TestDecodeExplodedObject(t *testing.T) {
	bag := ParseRawQuery("role=admin&firstName=Alex&tag=a&tag=b")
	assert.Equal(t, map[string]any{
		"role":      "admin",
		"firstName": "Alex",
		"tag":       []any{"a", "b"},
	}, DecodeExplodedObject(bag))
}

func TestDecodeDelimited(t *testing.T) {
	assert.Equal(t, []any{"a", "b", "c"}, DecodeDelimited([]string{"a%20b%20c"}, " "))
	assert.Equal(t, []any{"a", "b"}, DecodeDelimited([]string{"a b"}, " "))
	assert.Equal(t, []any{"a", "b", "c"}, DecodeDelimited([]string{"a|b%7Cc"}, "|"))

	t.Run("repeated occurrences", func(t *testing.T) {
		assert.Equal(t, []any{"a", "b", "c"}, DecodeDelimited([]string{"a", "b|c"}, "|"))
	})
}

func TestDecodeDeepObject(t *testing.T) {
	t.Run("flat", func(t *testing.T) {
		got, ok := DecodeDeepObject(ParseRawQuery("var[a]=b&var[c]=d"), "var")
		require.True(t, ok)
		assert.Equal(t, map[string]any{"a": "b", "c": "d"}, got)
	})

	t.Run("encoded brackets", func(t *testing.T) {
		got, ok := DecodeDeepObject(ParseRawQuery("var%5Ba%5D=b"), "var")
		require.True(t, ok)
		assert.Equal(t, map[string]any{"a": "b"}, got)
	})

	t.Run("nested and arrays", func(t *testing.T) {
		got, ok := DecodeDeepObject(ParseRawQuery("f[range][min]=1&f[range][max]=9&f[tags][]=x&f[tags][]=y"), "f")
		require.True(t, ok)
		assert.Equal(t, map[string]any{
			"range": map[string]any{"min": "1", "max": "9"},
			"tags":  []any{"x", "y"},
		}, got)
	})

	t.Run("absent", func(t *testing.T) {
		_, ok := DecodeDeepObject(ParseRawQuery("other[a]=b&var=1"), "var")
		assert.False(t, ok)
	})
}

func TestParseRawQuery(t *testing.T) {
	bag := ParseRawQuery("a=1&a=2&b=x+y&c&d=&e%20f=g%2Ch")
	assert.Equal(t, RawValues{
		"a":   {"1", "2"},
		"b":   {"x%20y"},
		"c":   {""},
		"d":   {""},
		"e f": {"g%2Ch"},
	}, bag)
	assert.Empty(t, ParseRawQuery(""))
}

func TestParseCookies(t *testing.T) {
	bag := ParseCookies(`session=abc; theme="dark"; ids=1,2`)
	assert.Equal(t, RawValues{
		"session": {"abc"},
		"theme":   {"dark"},
		"ids":     {"1,2"},
	}, bag)
}
