package schema

import (
	"bytes"
	"fmt"
	"regexp"
	"strings"

	"github.com/goccy/go-json"
	"github.com/santhosh-tekuri/jsonschema/v5"

	"github.com/erraggy/oasengine/oaserrors"
	"github.com/erraggy/oasengine/parser"
)

// resourceURL names the in-memory resource every envelope is compiled from.
const resourceURL = "mem://oasengine/schema.json"

// Options configures Compile.
type Options struct {
	// Direction selects readOnly (Request) or writeOnly (Response) filtering.
	Direction Direction
	// Coerce enables type coercion and drops additional properties that fail
	// validation. Use it for values that arrive as untyped strings.
	Coerce bool
	// Required makes an absent value an error.
	Required bool
	// Formats holds the format checks; nil means DefaultFormats.
	Formats *Formats
	// Location is copied into every reported issue; Path is filled per issue.
	Location oaserrors.Location
	// MissingMessage is reported for an absent required value.
	MissingMessage string
}

// Validator checks values against a compiled schema. It is immutable and
// safe for concurrent use.
type Validator struct {
	compiled *jsonschema.Schema
	prep     *preparer
	envelope map[string]any
	opts     Options
}

// Result is the outcome of Validate.
type Result struct {
	// Value is the validated value after coercion and defaults. Present is
	// false when the value was absent and no default applied.
	Value   any
	Present bool
	Issues  []oaserrors.Issue
}

// OK reports whether validation passed.
func (r Result) OK() bool {
	return len(r.Issues) == 0
}

// Compile builds a Validator for the schema at ptr: it extracts the schema,
// strips annotations, filters required properties for the direction, wraps
// it in an envelope and compiles the envelope as JSON Schema. OpenAPI 3.1
// documents use draft 2020-12; 3.0 documents use draft 4, whose boolean
// exclusiveMinimum and exclusiveMaximum they share.
func Compile(doc *parser.Document, ptr string, opts Options) (*Validator, error) {
	root, err := Extract(doc, ptr)
	if err != nil {
		return nil, err
	}
	StripAnnotations(root)
	FilterRequired(root, opts.Direction)
	env := Wrap(root, opts.Required)

	draft := jsonschema.Draft2020
	if v, err := doc.ParsedVersion(); err == nil && !v.Is31() {
		draft = jsonschema.Draft4
	}
	normalizeNullable(env)
	if draft == jsonschema.Draft4 {
		dropEmptyRequired(env)
	}

	if opts.Formats == nil {
		opts.Formats = DefaultFormats()
	}
	if opts.MissingMessage == "" {
		opts.MissingMessage = "Missing required value"
	}

	patterns, err := compilePatterns(env, ptr)
	if err != nil {
		return nil, err
	}

	compiled, err := compileEnvelope(env, draft, opts.Formats)
	if err != nil {
		return nil, &oaserrors.ConfigError{
			Value:   ptr,
			Message: "invalid schema",
			Cause:   err,
		}
	}

	return &Validator{
		compiled: compiled,
		prep: &preparer{
			root:             env,
			patterns:         patterns,
			coerce:           opts.Coerce,
			removeAdditional: opts.Coerce,
		},
		envelope: env,
		opts:     opts,
	}, nil
}

func compileEnvelope(env map[string]any, draft *jsonschema.Draft, formats *Formats) (*jsonschema.Schema, error) {
	data, err := json.Marshal(env)
	if err != nil {
		return nil, err
	}
	c := jsonschema.NewCompiler()
	c.Draft = draft
	c.AssertFormat = true
	for name, fn := range formats.checks {
		c.Formats[name] = fn
	}
	if err := c.AddResource(resourceURL, bytes.NewReader(data)); err != nil {
		return nil, err
	}
	return c.Compile(resourceURL)
}

// compilePatterns precompiles pattern and patternProperties expressions so a
// broken one fails with the schema pointer it came from.
func compilePatterns(env map[string]any, ptr string) (map[string]*regexp.Regexp, error) {
	patterns := make(map[string]*regexp.Regexp)
	var patternErr error
	walkSchemas(env, func(n map[string]any) {
		var sources []string
		if p, ok := n["pattern"].(string); ok {
			sources = append(sources, p)
		}
		if pp, ok := n["patternProperties"].(map[string]any); ok {
			for p := range pp {
				sources = append(sources, p)
			}
		}
		for _, p := range sources {
			if _, done := patterns[p]; done || patternErr != nil {
				continue
			}
			re, err := regexp.Compile(p)
			if err != nil {
				patternErr = &oaserrors.ConfigError{
					Value:   p,
					Message: fmt.Sprintf("invalid pattern in schema %s", ptr),
					Cause:   err,
				}
				return
			}
			patterns[p] = re
		}
	})
	return patterns, patternErr
}

// normalizeNullable rewrites nullable: true into a "null" member of type and
// of enum, the form JSON Schema validators understand.
func normalizeNullable(env map[string]any) {
	walkSchemas(env, func(n map[string]any) {
		nullable, _ := n["nullable"].(bool)
		delete(n, "nullable")
		if !nullable {
			return
		}
		switch t := n["type"].(type) {
		case string:
			if t != "null" {
				n["type"] = []any{t, "null"}
			}
		case []any:
			if !containsValue(t, "null") {
				n["type"] = append(t, "null")
			}
		}
		if enum, ok := n["enum"].([]any); ok && !containsValue(enum, nil) {
			n["enum"] = append(enum, nil)
		}
	})
}

// dropEmptyRequired removes required: [], which draft 4 rejects.
func dropEmptyRequired(env map[string]any) {
	walkSchemas(env, func(n map[string]any) {
		if r, ok := n["required"].([]any); ok && len(r) == 0 {
			delete(n, "required")
		}
	})
}

// Schema returns the compiled envelope schema. Callers must not modify it.
func (v *Validator) Schema() map[string]any {
	return v.envelope
}

// Validate checks value; present is false when the value was absent from
// the request or response. Objects and arrays in value may be modified in
// place by coercion and defaults.
func (v *Validator) Validate(value any, present bool) Result {
	if !present && v.opts.Required {
		return Result{Issues: []oaserrors.Issue{v.issue("", v.opts.MissingMessage)}}
	}

	env := make(map[string]any, 1)
	if present {
		env[EnvelopeProperty] = value
	}
	v.prep.prepare(env, v.envelope, 0)

	res := Result{}
	res.Value, res.Present = env[EnvelopeProperty]
	if err := v.compiled.Validate(env); err != nil {
		for _, f := range v.describe(err, env) {
			res.Issues = append(res.Issues, v.issue(stripEnvelope(f.path), f.message))
		}
	}
	return res
}

func (v *Validator) issue(path, message string) oaserrors.Issue {
	loc := v.opts.Location
	loc.Path = path
	return oaserrors.Issue{Message: message, Location: &loc}
}

func stripEnvelope(path string) string {
	prefix := "/" + EnvelopeProperty
	if path == prefix {
		return ""
	}
	if strings.HasPrefix(path, prefix+"/") {
		return path[len(prefix):]
	}
	return path
}
