package schema

import (
	"net/url"
	"strconv"
	"strings"

	"github.com/go-openapi/jsonpointer"

	"github.com/erraggy/oasengine/oaserrors"
	"github.com/erraggy/oasengine/parser"
)

// definitionsKey holds subtrees pulled in from outside the extracted schema.
const definitionsKey = "definitions"

// Extract returns a self-contained deep copy of the schema at ptr.
//
// References into the copied subtree are rewritten relative to its root.
// References elsewhere in the document are copied into the root's
// "definitions" map under a generated name and rewritten to point there. A
// target is extracted once and reused, so reference cycles end at the
// already-named definition.
func Extract(doc *parser.Document, ptr string) (map[string]any, error) {
	raw, err := doc.Lookup(ptr)
	if err != nil {
		return nil, err
	}
	root, err := asSchema(raw, ptr)
	if err != nil {
		return nil, err
	}

	x := &extractor{
		doc:   doc,
		base:  normalizeRef(ptr),
		names: make(map[string]string),
		taken: make(map[string]bool),
	}
	if existing, ok := root[definitionsKey].(map[string]any); ok {
		for name := range existing {
			x.taken[name] = true
		}
	}
	if err := x.rewrite(root); err != nil {
		return nil, err
	}
	if len(x.defs) > 0 {
		defs, _ := root[definitionsKey].(map[string]any)
		if defs == nil {
			defs = make(map[string]any, len(x.defs))
			root[definitionsKey] = defs
		}
		for name, def := range x.defs {
			defs[name] = def
		}
	}
	return root, nil
}

func asSchema(raw any, ptr string) (map[string]any, error) {
	switch v := raw.(type) {
	case map[string]any:
		return parser.DeepCopy(v).(map[string]any), nil
	case bool:
		if v {
			return map[string]any{}, nil
		}
		return map[string]any{"not": map[string]any{}}, nil
	default:
		return nil, &oaserrors.ReferenceError{Ref: ptr, Message: "schema must be an object"}
	}
}

type extractor struct {
	doc   *parser.Document
	base  string
	names map[string]string // normalized document pointer -> definition name
	taken map[string]bool
	defs  map[string]any
	err   error
}

func (x *extractor) rewrite(node map[string]any) error {
	rewriteRefs(node, func(ref string) string {
		if x.err != nil {
			return ref
		}
		out, err := x.resolve(ref)
		if err != nil {
			x.err = err
			return ref
		}
		return out
	})
	return x.err
}

// resolve maps a document reference to a reference valid inside the
// extracted schema, extracting the target when needed.
func (x *extractor) resolve(ref string) (string, error) {
	if !strings.HasPrefix(ref, "#") {
		return "", &oaserrors.ReferenceError{Ref: ref, Message: "only local references are supported"}
	}
	norm := normalizeRef(ref)
	if norm == x.base {
		return "#", nil
	}
	if strings.HasPrefix(norm, x.base+"/") {
		return "#" + escapeFragment(norm[len(x.base):]), nil
	}
	if name, ok := x.names[norm]; ok {
		return "#/" + definitionsKey + "/" + jsonpointer.Escape(name), nil
	}

	raw, err := x.doc.Lookup(ref)
	if err != nil {
		return "", &oaserrors.ReferenceError{Ref: ref, Message: "unresolved schema reference", Cause: err}
	}
	def, err := asSchema(raw, ref)
	if err != nil {
		return "", err
	}
	name := x.nameFor(norm)
	x.names[norm] = name
	if x.defs == nil {
		x.defs = make(map[string]any)
	}
	x.defs[name] = def

	// refs inside the target that point into the target itself stay relative
	// to its new home
	outer := x.base
	defBase := norm
	rewriteRefs(def, func(inner string) string {
		if x.err != nil {
			return inner
		}
		n := normalizeRef(inner)
		if n == defBase || strings.HasPrefix(n, defBase+"/") {
			if !strings.HasPrefix(n, outer+"/") && n != outer {
				return "#/" + definitionsKey + "/" + jsonpointer.Escape(name) + escapeFragment(n[len(defBase):])
			}
		}
		out, err := x.resolve(inner)
		if err != nil {
			x.err = err
			return inner
		}
		return out
	})
	return "#/" + definitionsKey + "/" + jsonpointer.Escape(name), x.err
}

// nameFor derives a unique definition name from the last pointer token.
func (x *extractor) nameFor(norm string) string {
	tokens := strings.Split(norm, "/")
	base := jsonpointer.Unescape(tokens[len(tokens)-1])
	if base == "" || base == "#" {
		base = "schema"
	}
	name := base
	for i := 2; x.taken[name]; i++ {
		name = base + "_" + strconv.Itoa(i)
	}
	x.taken[name] = true
	return name
}

// normalizeRef percent-decodes a "#/..." fragment so equivalent spellings of
// the same pointer compare equal.
func normalizeRef(ref string) string {
	if u, err := url.PathUnescape(ref); err == nil {
		ref = u
	}
	if !strings.HasPrefix(ref, "#") {
		ref = "#" + ref
	}
	return strings.TrimSuffix(ref, "/")
}

// escapeFragment re-escapes characters that a decoded pointer may contain but
// a URI fragment may not.
func escapeFragment(p string) string {
	return strings.ReplaceAll(p, "%", "%25")
}
