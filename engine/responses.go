package engine

import (
	"fmt"
	"io"
	"net/http"
	"sort"
	"strings"

	"github.com/erraggy/oasengine/internal/httputil"
	"github.com/erraggy/oasengine/internal/mediatype"
	"github.com/erraggy/oasengine/oaserrors"
	"github.com/erraggy/oasengine/paramstyle"
	"github.com/erraggy/oasengine/parser"
	"github.com/erraggy/oasengine/schema"
)

// responses holds the compiled response entries of one operation.
type responses struct {
	keys  map[string]bool
	byKey map[string]*responseSpec
}

type responseSpec struct {
	media   *mediatype.Registry[*mediaType]
	headers []*parameter
}

func (cc *compileContext) compileResponses(opPtr string, op *parser.Operation) (*responses, error) {
	rs := &responses{keys: make(map[string]bool), byKey: make(map[string]*responseSpec)}
	keys := make([]string, 0, len(op.Responses))
	for k := range op.Responses {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	for _, key := range keys {
		if strings.HasPrefix(key, "x-") {
			continue
		}
		ptr := parser.JoinPointer(opPtr, "responses", key)
		if !httputil.ValidateStatusCode(key) {
			return nil, &oaserrors.ConfigError{Option: ptr, Value: key, Message: "invalid response status code"}
		}
		var def parser.Response
		resolved, err := cc.doc.Decode(ptr, &def)
		if err != nil {
			return nil, err
		}

		loc := oaserrors.Location{In: "response", Name: "body"}
		media, err := cc.compileMedia(parser.JoinPointer(resolved, "content"), def.Content, schema.Options{
			Direction: schema.Response,
			Formats:   cc.cfg.formats,
			Location:  loc,
		}, false)
		if err != nil {
			return nil, err
		}
		spec := &responseSpec{media: media}

		names := make([]string, 0, len(def.Headers))
		for name := range def.Headers {
			names = append(names, name)
		}
		sort.Strings(names)
		for _, name := range names {
			if strings.EqualFold(name, "Content-Type") {
				continue
			}
			h, err := cc.compileResponseHeader(parser.JoinPointer(resolved, "headers", name), name)
			if err != nil {
				return nil, err
			}
			if h != nil {
				spec.headers = append(spec.headers, h)
			}
		}

		// status keys are matched case-insensitively ("2xx" == "2XX")
		norm := strings.ToUpper(key)
		if key == httputil.DefaultStatusKey {
			norm = key
		}
		rs.keys[norm] = true
		rs.byKey[norm] = spec
	}
	return rs, nil
}

// compileResponseHeader compiles a response header as a simple-style header
// parameter. Headers defined by content are not validated.
func (cc *compileContext) compileResponseHeader(ptr, name string) (*parameter, error) {
	var def parser.Header
	resolved, err := cc.doc.Decode(ptr, &def)
	if err != nil {
		return nil, err
	}
	if def.Schema == nil {
		return nil, nil
	}
	schemaPtr := parser.JoinPointer(resolved, "schema")
	types, err := schema.InferTypes(cc.doc, schemaPtr)
	if err != nil {
		return nil, err
	}
	explode := false
	if def.Explode != nil {
		explode = *def.Explode
	}
	parse, err := paramstyle.NewParser(paramstyle.Styled{
		In:      paramstyle.InHeader,
		Name:    name,
		Style:   paramstyle.Simple,
		Explode: explode,
		Types:   types,
	})
	if err != nil {
		return nil, &oaserrors.ConfigError{Option: ptr, Cause: err}
	}
	p := &parameter{
		in:       paramstyle.InHeader,
		name:     name,
		required: def.Required,
		parse:    parse,
		location: oaserrors.Location{In: "response", Name: name, DocPath: schemaPtr},
		missing:  fmt.Sprintf("Missing required response header %q", name),
	}
	p.validator, err = schema.Compile(cc.doc, schemaPtr, schema.Options{
		Direction:      schema.Response,
		Coerce:         true,
		Required:       p.required,
		Formats:        cc.cfg.formats,
		Location:       p.location,
		MissingMessage: p.missing,
	})
	if err != nil {
		return nil, err
	}
	return p, nil
}

// validate checks the response in ctx.Res. includeDefault controls whether
// statuses matched only by "default" are checked.
func (rs *responses) validate(res *Response, includeDefault, pure bool) []oaserrors.Issue {
	status := res.Status()
	key, ok := httputil.MatchStatus(rs.keys, status)
	if !ok {
		return []oaserrors.Issue{{
			Message:  fmt.Sprintf("No response defined for status %d", status),
			Location: &oaserrors.Location{In: "response", Name: "status"},
		}}
	}
	if key == httputil.DefaultStatusKey && !includeDefault {
		return nil
	}
	spec := rs.byKey[key]

	var issues []oaserrors.Issue
	header := res.Header()
	bag := headerValues(header)
	for _, h := range spec.headers {
		_, _, found := h.resolve(bag)
		issues = append(issues, found...)
	}

	body := res.Body()
	if body == nil {
		return issues
	}
	ct := header.Get("Content-Type")
	if spec.media.Len() == 0 {
		return append(issues, oaserrors.Issue{
			Message:  fmt.Sprintf("No content is defined for status %d", status),
			Location: &oaserrors.Location{In: "response", Name: "body"},
		})
	}
	media, ok := spec.media.Get(ct)
	if !ok {
		return append(issues, oaserrors.Issue{
			Message:  fmt.Sprintf("Content type %q is not defined for status %d", mediatype.Normalize(ct), status),
			Location: &oaserrors.Location{In: "response", Name: "body"},
		})
	}
	if media.validator == nil {
		return issues
	}
	value, check, err := responseValue(body, media.parser, pure)
	if err != nil {
		return append(issues, oaserrors.Issue{
			Message:  fmt.Sprintf("Could not read response body: %v", err),
			Location: &oaserrors.Location{In: "response", Name: "body"},
		})
	}
	if !check {
		return issues
	}
	return append(issues, media.validator.Validate(value, true).Issues...)
}

// responseValue converts a response body to the value its schema checks.
// check is false for bodies that cannot be inspected, such as streams.
func responseValue(body any, mp MediaTypeParser, pure bool) (value any, check bool, err error) {
	switch b := body.(type) {
	case io.Reader:
		return nil, false, nil
	case []byte:
		if mp.Parse == nil {
			return nil, false, nil
		}
		v, err := mp.Parse(b)
		return v, err == nil, err
	case string:
		if mp.Parse == nil {
			return nil, false, nil
		}
		v, err := mp.Parse([]byte(b))
		return v, err == nil, err
	default:
		if pure && pureJSON(b) {
			return b, true, nil
		}
		v, err := toJSONTree(b)
		return v, err == nil, err
	}
}

// responseError wraps response validation issues as a 500 error.
func responseError(issues []oaserrors.Issue) *oaserrors.ValidationError {
	return &oaserrors.ValidationError{
		Status:  http.StatusInternalServerError,
		Message: "Response validation failed",
		Issues:  issues,
	}
}
