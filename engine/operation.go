package engine

import (
	"bytes"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sort"
	"strconv"
	"strings"

	"github.com/erraggy/oasengine/internal/httputil"
	"github.com/erraggy/oasengine/internal/mediatype"
	"github.com/erraggy/oasengine/internal/pathtemplate"
	"github.com/erraggy/oasengine/oaserrors"
	"github.com/erraggy/oasengine/paramstyle"
	"github.com/erraggy/oasengine/parser"
	"github.com/erraggy/oasengine/schema"
)

// Operation is one compiled (path, method) pair. It is immutable and shared
// by all requests.
type Operation struct {
	// Method is the lower-case contract method key.
	Method string
	// Path is the path template.
	Path        string
	OperationID string
	Controller  string
	// Pointer locates the operation object in the contract.
	Pointer string

	handler   Handler
	params    []*parameter
	body      *requestBody
	responses *responses
	security  *securityPolicy
}

// HasHandler reports whether a handler serves the operation.
func (o *Operation) HasHandler() bool {
	return o.handler != nil
}

// SecuritySchemes lists the security schemes the operation accepts, in the
// order their authenticators run.
func (o *Operation) SecuritySchemes() []string {
	if o.security == nil {
		return nil
	}
	return append([]string(nil), o.security.order...)
}

// Roles returns the role alternatives the operation requires.
func (o *Operation) Roles() [][]string {
	if o.security == nil {
		return nil
	}
	return o.security.roles
}

// Parameters lists the operation's parameters as "in:name".
func (o *Operation) Parameters() []string {
	out := make([]string, len(o.params))
	for i, p := range o.params {
		out[i] = string(p.in) + ":" + p.name
	}
	return out
}

// parameter is a compiled parameter.
type parameter struct {
	in       paramstyle.Location
	name     string
	required bool
	parse    paramstyle.Parser
	// validator is nil for content parameters without a schema
	validator *schema.Validator
	location  oaserrors.Location
	missing   string
}

// mediaType is a compiled content entry.
type mediaType struct {
	pattern   string
	parser    MediaTypeParser
	validator *schema.Validator
}

type requestBody struct {
	required bool
	media    *mediatype.Registry[*mediaType]
	location oaserrors.Location
}

// compileContext is the read-only state threaded through compilation.
type compileContext struct {
	doc *parser.Document
	cfg *config
}

func mustObject(doc *parser.Document, ptr string) (map[string]any, error) {
	v, err := doc.Lookup(ptr)
	if err != nil {
		return nil, err
	}
	obj, ok := v.(map[string]any)
	if !ok {
		return nil, &oaserrors.ConfigError{Option: ptr, Message: fmt.Sprintf("expected an object, got %T", v)}
	}
	return obj, nil
}

// compileOperation wires the parameters, request body, responses and
// security of the operation at opPtr.
func (cc *compileContext) compileOperation(pathTemplate, method, itemPtr, opPtr string, item *parser.PathItem, op *parser.Operation) (*Operation, error) {
	o := &Operation{
		Method:      method,
		Path:        pathTemplate,
		OperationID: op.OperationID,
		Pointer:     opPtr,
	}
	if op.XOperation != "" {
		o.OperationID = op.XOperation
	}
	o.Controller = op.Controller
	if o.Controller == "" {
		o.Controller = item.Controller
	}
	if o.Controller == "" {
		o.Controller = cc.doc.OpenAPI.Controller
	}

	var err error
	if o.params, err = cc.compileParameters(itemPtr, opPtr, item, op); err != nil {
		return nil, err
	}
	if err := checkPathParameters(pathTemplate, opPtr, o.params); err != nil {
		return nil, err
	}
	if op.RequestBody != nil {
		if o.body, err = cc.compileRequestBody(parser.JoinPointer(opPtr, "requestBody")); err != nil {
			return nil, err
		}
	}
	if o.responses, err = cc.compileResponses(opPtr, op); err != nil {
		return nil, err
	}
	if o.security, err = compileSecurity(cc.doc, opPtr, cc.cfg.authenticators); err != nil {
		return nil, err
	}
	return o, nil
}

// checkPathParameters rejects path parameters that name no placeholder of
// the template. Placeholders without a declaration are captured as strings.
func checkPathParameters(template, opPtr string, params []*parameter) error {
	m, err := pathtemplate.Compile(template, pathtemplate.Options{})
	if err != nil {
		return &oaserrors.ConfigError{Option: opPtr, Value: template, Cause: err}
	}
	names := make(map[string]bool, len(m.ParamNames()))
	for _, name := range m.ParamNames() {
		names[name] = true
	}
	for _, p := range params {
		if p.in == paramstyle.InPath && !names[p.name] {
			return &oaserrors.ConfigError{
				Option:  opPtr,
				Value:   p.name,
				Message: fmt.Sprintf("path parameter %q does not appear in %s", p.name, template),
			}
		}
	}
	return nil
}

// compileParameters merges path-level and operation-level parameters. An
// operation parameter replaces a path-level one with the same location and
// name.
func (cc *compileContext) compileParameters(itemPtr, opPtr string, item *parser.PathItem, op *parser.Operation) ([]*parameter, error) {
	var (
		out   []*parameter
		index = make(map[string]int)
	)
	add := func(base string, count int) error {
		for i := 0; i < count; i++ {
			var def parser.Parameter
			ptr, err := cc.doc.Decode(parser.JoinPointer(base, "parameters", strconv.Itoa(i)), &def)
			if err != nil {
				return err
			}
			p, err := cc.compileParameter(ptr, &def)
			if err != nil {
				return err
			}
			key := string(p.in) + ":" + paramstyle.LookupName(p.in, p.name)
			if at, dup := index[key]; dup {
				out[at] = p
				continue
			}
			index[key] = len(out)
			out = append(out, p)
		}
		return nil
	}
	if err := add(itemPtr, len(item.Parameters)); err != nil {
		return nil, err
	}
	if err := add(opPtr, len(op.Parameters)); err != nil {
		return nil, err
	}
	return out, nil
}

func (cc *compileContext) compileParameter(ptr string, def *parser.Parameter) (*parameter, error) {
	in := paramstyle.Location(def.In)
	switch in {
	case paramstyle.InPath, paramstyle.InQuery, paramstyle.InHeader, paramstyle.InCookie:
	default:
		return nil, &oaserrors.ConfigError{Option: ptr, Value: def.In, Message: "unsupported parameter location"}
	}
	if def.Name == "" {
		return nil, &oaserrors.ConfigError{Option: ptr, Message: "parameter has no name"}
	}
	hasSchema, hasContent := def.Schema != nil, len(def.Content) > 0
	if hasSchema == hasContent {
		return nil, &oaserrors.ConfigError{Option: ptr, Value: def.Name, Message: "parameter must define exactly one of schema or content"}
	}

	p := &parameter{
		in:       in,
		name:     def.Name,
		required: def.Required || in == paramstyle.InPath,
		location: oaserrors.Location{In: def.In, Name: def.Name},
		missing:  fmt.Sprintf("Missing required %s parameter %q", def.In, def.Name),
	}
	opts := schema.Options{
		Direction:      schema.Request,
		Required:       p.required,
		Formats:        cc.cfg.formats,
		MissingMessage: p.missing,
	}

	var (
		desc      paramstyle.Descriptor
		schemaPtr string
	)
	if hasSchema {
		schemaPtr = parser.JoinPointer(ptr, "schema")
		types, err := schema.InferTypes(cc.doc, schemaPtr)
		if err != nil {
			return nil, err
		}
		style := paramstyle.Style(def.Style)
		if style == "" {
			style = paramstyle.DefaultStyle(in)
		}
		explode := paramstyle.DefaultExplode(style)
		if def.Explode != nil {
			explode = *def.Explode
		}
		desc = paramstyle.Styled{In: in, Name: def.Name, Style: style, Explode: explode, Types: types}
		opts.Coerce = true
	} else {
		if len(def.Content) != 1 {
			return nil, &oaserrors.ConfigError{Option: ptr, Value: def.Name, Message: "parameter content must have exactly one entry"}
		}
		var (
			mt    string
			media *parser.MediaType
		)
		for k, m := range def.Content {
			mt, media = k, m
		}
		mp, ok := lookupParser(cc.cfg.parsers, mt)
		if !ok {
			return nil, &oaserrors.ConfigError{Option: ptr, Value: mt, Message: "no parser for parameter media type"}
		}
		desc = paramstyle.ContentTyped{
			In:        in,
			Name:      def.Name,
			MediaType: mt,
			Decode: func(raw string) (any, error) {
				return mp.Parse([]byte(raw))
			},
		}
		if media != nil && media.Schema != nil && !mp.Opaque {
			schemaPtr = parser.JoinPointer(ptr, "content", mt, "schema")
		}
		opts.Coerce = mp.Untyped
	}

	parse, err := paramstyle.NewParser(desc)
	if err != nil {
		return nil, &oaserrors.ConfigError{Option: ptr, Cause: err}
	}
	p.parse = parse

	if schemaPtr != "" {
		p.location.DocPath = schemaPtr
		opts.Location = p.location
		if p.validator, err = schema.Compile(cc.doc, schemaPtr, opts); err != nil {
			return nil, err
		}
	}
	return p, nil
}

// compileMedia compiles every content entry under contentPtr.
func (cc *compileContext) compileMedia(contentPtr string, content map[string]*parser.MediaType, opts schema.Options, strict bool) (*mediatype.Registry[*mediaType], error) {
	reg := mediatype.New[*mediaType]()
	types := make([]string, 0, len(content))
	for mt := range content {
		types = append(types, mt)
	}
	sort.Strings(types)

	for _, mt := range types {
		if !httputil.IsValidMediaType(mt) {
			return nil, &oaserrors.ConfigError{Option: contentPtr, Value: mt, Message: "invalid media type"}
		}
		media := content[mt]
		mp, ok := lookupParser(cc.cfg.parsers, mt)
		if !ok && strict {
			return nil, &oaserrors.ConfigError{Option: contentPtr, Value: mt, Message: "no parser for media type"}
		}
		m := &mediaType{pattern: mt, parser: mp}
		if media != nil && media.Schema != nil && !mp.Opaque {
			schemaPtr := parser.JoinPointer(contentPtr, mt, "schema")
			o := opts
			o.Location.DocPath = schemaPtr
			o.Coerce = mp.Untyped
			v, err := schema.Compile(cc.doc, schemaPtr, o)
			if err != nil {
				return nil, err
			}
			m.validator = v
		}
		if err := reg.Set(mt, m); err != nil {
			return nil, &oaserrors.ConfigError{Option: contentPtr, Value: mt, Cause: err}
		}
	}
	return reg, nil
}

func (cc *compileContext) compileRequestBody(ptr string) (*requestBody, error) {
	var def parser.RequestBody
	resolved, err := cc.doc.Decode(ptr, &def)
	if err != nil {
		return nil, err
	}
	loc := oaserrors.Location{In: "request", Name: "body"}
	media, err := cc.compileMedia(parser.JoinPointer(resolved, "content"), def.Content, schema.Options{
		Direction:      schema.Request,
		Required:       def.Required,
		Formats:        cc.cfg.formats,
		Location:       loc,
		MissingMessage: "Missing required request body",
	}, true)
	if err != nil {
		return nil, err
	}
	return &requestBody{required: def.Required, media: media, location: loc}, nil
}

// resolveParameters decodes and validates every parameter, collecting all
// issues.
func (o *Operation) resolveParameters(ctx *Context, pathParams, serverParams map[string]string) []oaserrors.Issue {
	r := ctx.Request
	bags := map[paramstyle.Location]paramstyle.RawValues{
		paramstyle.InPath:   singleValues(pathParams),
		paramstyle.InQuery:  paramstyle.ParseRawQuery(r.URL.RawQuery),
		paramstyle.InHeader: headerValues(r.Header),
		paramstyle.InCookie: paramstyle.ParseCookies(strings.Join(r.Header.Values("Cookie"), "; ")),
	}
	for name, raw := range serverParams {
		ctx.Params.Server[name] = unescapePath(raw)
	}

	var issues []oaserrors.Issue
	for _, p := range o.params {
		value, present, found := p.resolve(bags[p.in])
		issues = append(issues, found...)
		if present {
			ctx.Params.byLocation(p.in)[p.name] = value
		}
	}
	return issues
}

func (p *parameter) resolve(values paramstyle.RawValues) (any, bool, []oaserrors.Issue) {
	value, present, err := p.parse(values)
	if err != nil {
		loc := p.location
		return nil, false, []oaserrors.Issue{{
			Message:  fmt.Sprintf("Could not parse %s parameter %q: %v", p.in, p.name, err),
			Location: &loc,
		}}
	}
	if p.validator == nil {
		if !present && p.required {
			loc := p.location
			return nil, false, []oaserrors.Issue{{Message: p.missing, Location: &loc}}
		}
		return value, present, nil
	}
	res := p.validator.Validate(value, present)
	return res.Value, res.Present, res.Issues
}

// resolveBody reads, parses and validates the request body. Errors carry a
// status (413, 415); parse and validation problems are returned as issues.
func (b *requestBody) resolve(r *http.Request, limit int64) (any, bool, []oaserrors.Issue, error) {
	data, err := readBody(r, limit)
	if err != nil {
		return nil, false, nil, err
	}
	sent := len(bytes.TrimSpace(data)) > 0

	ct := r.Header.Get("Content-Type")
	if ct == "" {
		if sent {
			return nil, false, nil, oaserrors.NewHTTPError(http.StatusUnsupportedMediaType, "Content-Type header is required for a request body")
		}
		if b.required {
			loc := b.location
			return nil, false, []oaserrors.Issue{{Message: "Missing required request body", Location: &loc}}, nil
		}
		return nil, false, nil, nil
	}

	media, ok := b.media.Get(ct)
	if !ok {
		return nil, false, nil, oaserrors.NewHTTPError(http.StatusUnsupportedMediaType,
			fmt.Sprintf("Unsupported content type %q; expected %s", mediatype.Normalize(ct), strings.Join(b.media.Patterns(), ", ")))
	}

	var value any
	if sent {
		if value, err = media.parser.Parse(data); err != nil {
			loc := b.location
			return nil, false, []oaserrors.Issue{{Message: fmt.Sprintf("Invalid request body: %v", err), Location: &loc}}, nil
		}
	}
	if media.validator == nil {
		if !sent && b.required {
			loc := b.location
			return nil, false, []oaserrors.Issue{{Message: "Missing required request body", Location: &loc}}, nil
		}
		return value, sent, nil, nil
	}
	// a default applies only when nothing was sent and nothing was parsed
	res := media.validator.Validate(value, sent || value != nil)
	return res.Value, res.Present, res.Issues, nil
}

func readBody(r *http.Request, limit int64) ([]byte, error) {
	if r.Body == nil || r.Body == http.NoBody {
		return nil, nil
	}
	tooLarge := func(actual int64) error {
		return &oaserrors.HTTPError{
			Status:  http.StatusRequestEntityTooLarge,
			Message: "Request body is too large",
			Cause:   &oaserrors.ResourceLimitError{ResourceType: "body_size", Limit: limit, Actual: actual},
		}
	}
	if r.ContentLength > limit {
		return nil, tooLarge(r.ContentLength)
	}
	data, err := io.ReadAll(io.LimitReader(r.Body, limit+1))
	if err != nil {
		return nil, oaserrors.NewHTTPError(http.StatusBadRequest, "Could not read request body")
	}
	if int64(len(data)) > limit {
		return nil, tooLarge(0)
	}
	return data, nil
}

func (p *Params) byLocation(in paramstyle.Location) map[string]any {
	switch in {
	case paramstyle.InPath:
		return p.Path
	case paramstyle.InQuery:
		return p.Query
	case paramstyle.InHeader:
		return p.Header
	case paramstyle.InCookie:
		return p.Cookie
	default:
		return p.Server
	}
}

func singleValues(m map[string]string) paramstyle.RawValues {
	bag := make(paramstyle.RawValues, len(m))
	for k, v := range m {
		bag[k] = []string{v}
	}
	return bag
}

func headerValues(h http.Header) paramstyle.RawValues {
	bag := make(paramstyle.RawValues, len(h))
	for k, vs := range h {
		key := strings.ToLower(k)
		bag[key] = append(bag[key], vs...)
	}
	return bag
}

func unescapePath(raw string) string {
	if s, err := url.PathUnescape(raw); err == nil {
		return s
	}
	return raw
}
