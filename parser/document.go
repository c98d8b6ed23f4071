package parser

import (
	"fmt"
	"net/url"
	"sort"
	"strings"

	"github.com/go-openapi/jsonpointer"
	"github.com/goccy/go-json"

	"github.com/erraggy/oasengine/oaserrors"
)

// maxRefChain bounds how many $ref hops Follow will take.
const maxRefChain = 32

// Document is a loaded contract.
type Document struct {
	// SourcePath is the file path or a synthetic name for in-memory sources
	SourcePath string
	// SourceFormat is the detected format of the source
	SourceFormat SourceFormat
	// Version is the openapi field as written
	Version string
	// Data is the raw tree; pointers and $ref values address it
	Data map[string]any
	// OpenAPI is the typed view of Data
	OpenAPI *OpenAPI

	// pathOrder records the declaration order of the paths object keys
	pathOrder []string
}

// FromMap builds a Document from an already-decoded tree. Values are
// normalized to the raw tree representation and the input is not retained.
// Path order falls back to lexical order since maps carry none.
func FromMap(data map[string]any) (*Document, error) {
	raw, _ := normalize(data).(map[string]any)
	d := &Document{
		SourcePath:   "FromMap",
		SourceFormat: SourceFormatUnknown,
		Data:         raw,
	}
	if err := d.Reload(); err != nil {
		return nil, err
	}
	return d, nil
}

// Reload re-derives Version and the typed view from Data.
func (d *Document) Reload() error {
	if d.Data == nil {
		return &oaserrors.ParseError{Path: d.SourcePath, Message: "document is empty"}
	}
	switch v := d.Data["openapi"].(type) {
	case string:
		d.Version = v
	case float64:
		d.Version = fmt.Sprint(v)
	case nil:
		if sw, ok := d.Data["swagger"]; ok {
			d.Version = fmt.Sprint(sw)
		} else {
			return &oaserrors.ParseError{
				Path:    d.SourcePath,
				Message: "unable to detect OpenAPI version: document must contain an 'openapi' field at the root level",
			}
		}
	default:
		return &oaserrors.ParseError{Path: d.SourcePath, Message: fmt.Sprintf("openapi field must be a string, got %T", v)}
	}

	buf, err := json.Marshal(d.Data)
	if err != nil {
		return &oaserrors.ParseError{Path: d.SourcePath, Message: "failed to encode document", Cause: err}
	}
	var api OpenAPI
	if err := json.Unmarshal(buf, &api); err != nil {
		return &oaserrors.ParseError{Path: d.SourcePath, Message: "document structure is invalid", Cause: err}
	}
	d.OpenAPI = &api
	return nil
}

// ParsedVersion parses the document's version marker.
func (d *Document) ParsedVersion() (Version, error) {
	return ParseVersion(d.Version)
}

// Copy returns a deep copy of the document.
func (d *Document) Copy() *Document {
	if d == nil {
		return nil
	}
	c := &Document{
		SourcePath:   d.SourcePath,
		SourceFormat: d.SourceFormat,
		Version:      d.Version,
		pathOrder:    append([]string(nil), d.pathOrder...),
	}
	c.Data, _ = deepCopy(d.Data).(map[string]any)
	if d.OpenAPI != nil {
		// the typed view is cheap to rebuild and must not share maps with d
		if err := c.Reload(); err != nil {
			c.OpenAPI = nil
		}
	}
	return c
}

// PathKeys returns the keys of the paths object in declaration order. Keys
// added after loading (or documents built with FromMap) follow in lexical order.
func (d *Document) PathKeys() []string {
	paths, _ := d.Data["paths"].(map[string]any)
	if len(paths) == 0 {
		return nil
	}
	keys := make([]string, 0, len(paths))
	seen := make(map[string]bool, len(paths))
	for _, k := range d.pathOrder {
		if _, ok := paths[k]; ok && !seen[k] {
			keys = append(keys, k)
			seen[k] = true
		}
	}
	var rest []string
	for k := range paths {
		if !seen[k] {
			rest = append(rest, k)
		}
	}
	sort.Strings(rest)
	return append(keys, rest...)
}

// Lookup returns the raw value addressed by ptr ("#/a/b", "/a/b" or "").
func (d *Document) Lookup(ptr string) (any, error) {
	p, err := pointerFor(ptr)
	if err != nil {
		return nil, &oaserrors.ReferenceError{Ref: ptr, Cause: err}
	}
	v, _, err := p.Get(d.Data)
	if err != nil {
		return nil, &oaserrors.ReferenceError{Ref: ptr, Message: "not found", Cause: err}
	}
	return v, nil
}

// Has reports whether ptr addresses an existing value (which may be null).
func (d *Document) Has(ptr string) bool {
	_, err := d.Lookup(ptr)
	return err == nil
}

// Follow resolves the object at ptr, chasing $ref values until it reaches an
// object without one. It returns the pointer of that final object.
func (d *Document) Follow(ptr string) (string, map[string]any, error) {
	visited := make(map[string]bool)
	current := ptr
	for range maxRefChain {
		if visited[current] {
			return "", nil, &oaserrors.ReferenceError{Ref: current, IsCircular: true}
		}
		visited[current] = true
		v, err := d.Lookup(current)
		if err != nil {
			return "", nil, err
		}
		obj, ok := v.(map[string]any)
		if !ok {
			return "", nil, &oaserrors.ReferenceError{Ref: current, Message: fmt.Sprintf("expected an object, got %T", v)}
		}
		ref, ok := obj["$ref"].(string)
		if !ok {
			return current, obj, nil
		}
		if !strings.HasPrefix(ref, "#") {
			return "", nil, &oaserrors.ReferenceError{Ref: ref, Message: "only local references are supported"}
		}
		current = ref
	}
	return "", nil, &oaserrors.ReferenceError{Ref: ptr, Message: fmt.Sprintf("reference chain longer than %d", maxRefChain)}
}

// Decode follows ptr and decodes the object it names into target. It returns
// the pointer of the decoded object.
func (d *Document) Decode(ptr string, target any) (string, error) {
	resolved, obj, err := d.Follow(ptr)
	if err != nil {
		return "", err
	}
	if err := DecodeValue(obj, target); err != nil {
		return "", &oaserrors.ParseError{Path: resolved, Message: "unexpected structure", Cause: err}
	}
	return resolved, nil
}

// DecodeValue decodes a raw tree value into a typed target.
func DecodeValue(raw any, target any) error {
	buf, err := json.Marshal(raw)
	if err != nil {
		return err
	}
	return json.Unmarshal(buf, target)
}

// JoinPointer appends escaped tokens to a "#/..." pointer.
func JoinPointer(base string, tokens ...string) string {
	if base == "" {
		base = "#"
	}
	var b strings.Builder
	b.WriteString(base)
	for _, t := range tokens {
		b.WriteByte('/')
		b.WriteString(jsonpointer.Escape(t))
	}
	return b.String()
}

// pointerFor parses a fragment or plain JSON pointer. Fragments may be
// percent-encoded as URI fragments.
func pointerFor(ptr string) (jsonpointer.Pointer, error) {
	if strings.HasPrefix(ptr, "#") {
		ptr = ptr[1:]
		if unescaped, err := url.PathUnescape(ptr); err == nil {
			ptr = unescaped
		}
	}
	return jsonpointer.New(ptr)
}
