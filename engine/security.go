package engine

import (
	"fmt"
	"net/http"
	"slices"
	"sort"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/erraggy/oasengine/oaserrors"
	"github.com/erraggy/oasengine/paramstyle"
	"github.com/erraggy/oasengine/parser"
)

// Security scheme types.
const (
	SchemeAPIKey        = "apiKey"
	SchemeHTTP          = "http"
	SchemeOAuth2        = "oauth2"
	SchemeOpenIDConnect = "openIdConnect"
)

// AuthResult is what an authenticator reports for a credential it accepted.
type AuthResult struct {
	// User is the authenticated principal, made available as Context.User.
	User any
	// Roles are checked against the operation's x-roles.
	Roles []string
	// Scopes are checked against the scopes the security requirement lists.
	Scopes []string
}

// SchemeInfo describes the security scheme an authenticator is asked about.
type SchemeInfo struct {
	// Name is the key in components.securitySchemes.
	Name string
	// Type is apiKey, http, oauth2 or openIdConnect.
	Type string
	// Scheme is the HTTP auth scheme ("basic", "bearer") for http schemes.
	Scheme string
	// In and ParamName locate an apiKey credential.
	In        string
	ParamName string
}

// Authenticator checks the credential for one scheme. It returns nil when
// the request carries no acceptable credential. A returned error ends the
// request; use an *oaserrors.HTTPError to pick its status.
type Authenticator func(ctx *Context, scheme SchemeInfo) (*AuthResult, error)

// Credential extracts the raw credential for scheme from the request: the
// apiKey value, or the part of the Authorization header after the auth
// scheme for http, oauth2 and openIdConnect schemes.
func Credential(r *http.Request, scheme SchemeInfo) (string, bool) {
	switch scheme.Type {
	case SchemeAPIKey:
		switch paramstyle.Location(scheme.In) {
		case paramstyle.InHeader:
			v := r.Header.Get(scheme.ParamName)
			return v, v != ""
		case paramstyle.InQuery:
			vs, ok := r.URL.Query()[scheme.ParamName]
			if !ok || len(vs) == 0 {
				return "", false
			}
			return vs[0], true
		case paramstyle.InCookie:
			c, err := r.Cookie(scheme.ParamName)
			if err != nil {
				return "", false
			}
			return c.Value, true
		}
		return "", false
	default:
		auth := r.Header.Get("Authorization")
		want := scheme.Scheme
		if scheme.Type != SchemeHTTP {
			want = "bearer"
		}
		kind, cred, ok := strings.Cut(auth, " ")
		if !ok || !strings.EqualFold(kind, want) {
			return "", false
		}
		cred = strings.TrimSpace(cred)
		return cred, cred != ""
	}
}

// securityPolicy is the effective security of one operation.
type securityPolicy struct {
	// alternatives are the requirement objects; any one suffices
	alternatives []parser.SecurityRequirement
	// roles are role alternatives; a user needs every role of one of them
	roles   [][]string
	schemes map[string]SchemeInfo
	auths   map[string]Authenticator
	// order lists every scheme named across alternatives, first use first
	order []string
}

var titleCaser = cases.Title(language.Und)

// compileSecurity resolves the security requirement and roles in effect for
// the operation at opPtr. Operation values replace document values entirely,
// even when empty.
func compileSecurity(doc *parser.Document, opPtr string, auths map[string]Authenticator) (*securityPolicy, error) {
	api := doc.OpenAPI
	opRaw, _ := mustObject(doc, opPtr)

	alternatives := api.Security
	if raw, ok := opRaw["security"]; ok {
		alternatives = nil
		if err := parser.DecodeValue(raw, &alternatives); err != nil {
			return nil, &oaserrors.ConfigError{Option: opPtr + "/security", Message: "security must be a list of requirement objects", Cause: err}
		}
	}

	rolesRaw := api.Roles
	rolesPtr := "#/" + parser.ExtRoles
	if raw, ok := opRaw[parser.ExtRoles]; ok {
		rolesRaw = raw
		rolesPtr = parser.JoinPointer(opPtr, parser.ExtRoles)
	}
	roles, err := parseRoles(rolesRaw)
	if err != nil {
		return nil, &oaserrors.ConfigError{Option: rolesPtr, Value: rolesRaw, Message: err.Error()}
	}
	if len(roles) > 0 && len(alternatives) == 0 {
		return nil, &oaserrors.ConfigError{Option: rolesPtr, Message: "operation requires roles but has no security requirement"}
	}

	p := &securityPolicy{
		alternatives: alternatives,
		roles:        roles,
		schemes:      make(map[string]SchemeInfo),
		auths:        make(map[string]Authenticator),
	}
	var declared map[string]*parser.SecurityScheme
	if api.Components != nil {
		declared = api.Components.SecuritySchemes
	}
	for _, alt := range alternatives {
		for _, name := range sortedSchemes(alt) {
			if _, seen := p.schemes[name]; seen {
				continue
			}
			def, ok := declared[name]
			if !ok || def == nil {
				return nil, &oaserrors.ConfigError{Option: opPtr, Value: name, Message: "security scheme is not declared in components.securitySchemes"}
			}
			if def.Ref != "" {
				var resolved parser.SecurityScheme
				if _, err := doc.Decode(def.Ref, &resolved); err != nil {
					return nil, err
				}
				def = &resolved
			}
			auth, ok := auths[name]
			if !ok {
				return nil, &oaserrors.ConfigError{Option: opPtr, Value: name, Message: "no authenticator registered for security scheme"}
			}
			p.schemes[name] = SchemeInfo{
				Name:      name,
				Type:      def.Type,
				Scheme:    strings.ToLower(def.Scheme),
				In:        def.In,
				ParamName: def.Name,
			}
			p.auths[name] = auth
			p.order = append(p.order, name)
		}
	}
	return p, nil
}

// parseRoles accepts a list of role names (one alternative needing all of
// them) or a list of such lists.
func parseRoles(raw any) ([][]string, error) {
	if raw == nil {
		return nil, nil
	}
	list, ok := raw.([]any)
	if !ok {
		return nil, fmt.Errorf("roles must be an array of strings or an array of arrays of strings")
	}
	if len(list) == 0 {
		return nil, nil
	}
	if _, nested := list[0].([]any); !nested {
		names, err := stringList(list)
		if err != nil {
			return nil, err
		}
		return [][]string{names}, nil
	}
	out := make([][]string, 0, len(list))
	for _, item := range list {
		inner, ok := item.([]any)
		if !ok {
			return nil, fmt.Errorf("roles must not mix strings and arrays")
		}
		names, err := stringList(inner)
		if err != nil {
			return nil, err
		}
		out = append(out, names)
	}
	return out, nil
}

func stringList(list []any) ([]string, error) {
	out := make([]string, 0, len(list))
	for _, v := range list {
		s, ok := v.(string)
		if !ok {
			return nil, fmt.Errorf("roles must be strings, got %T", v)
		}
		out = append(out, s)
	}
	return out, nil
}

func sortedSchemes(req parser.SecurityRequirement) []string {
	names := make([]string, 0, len(req))
	for name := range req {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// authenticate runs every scheme's authenticator once, in the order the
// schemes first appear, and returns the results of the first alternative
// whose schemes all succeeded with sufficient scopes.
func (p *securityPolicy) authenticate(ctx *Context) (map[string]*AuthResult, error) {
	if p == nil || len(p.alternatives) == 0 {
		return map[string]*AuthResult{}, nil
	}

	results := make(map[string]*AuthResult, len(p.order))
	for _, name := range p.order {
		res, err := p.auths[name](ctx, p.schemes[name])
		if err != nil {
			return nil, err
		}
		if res != nil {
			results[name] = res
		}
	}

	var (
		matched      parser.SecurityRequirement
		scopeProblem string
	)
	for _, alt := range p.alternatives {
		ok := true
		for _, name := range sortedSchemes(alt) {
			res := results[name]
			if res == nil {
				ok = false
				break
			}
			if missing := missingValues(alt[name], res.Scopes); len(missing) > 0 {
				ok = false
				if scopeProblem == "" {
					scopeProblem = fmt.Sprintf("Authenticated using '%s' but missing required scopes: %s.", name, strings.Join(missing, ", "))
				}
				break
			}
		}
		if ok {
			matched = alt
			break
		}
	}

	if matched == nil {
		if scopeProblem != "" {
			return nil, oaserrors.NewHTTPError(http.StatusForbidden, scopeProblem)
		}
		return nil, p.challenge()
	}

	out := make(map[string]*AuthResult, len(matched))
	for _, name := range sortedSchemes(matched) {
		out[name] = results[name]
	}

	if len(p.roles) > 0 {
		for _, name := range sortedSchemes(matched) {
			if p.schemes[name].Type == SchemeOAuth2 {
				continue
			}
			if !rolesSatisfied(out[name].Roles, p.roles) {
				return nil, oaserrors.NewHTTPError(http.StatusForbidden,
					fmt.Sprintf("Authenticated using '%s' but missing required roles: %s.", name, formatRoles(p.roles)))
			}
		}
	}
	return out, nil
}

// challenge builds the 401 error naming every scheme the operation accepts.
func (p *securityPolicy) challenge() error {
	header := make(http.Header)
	for _, name := range p.order {
		if c := challengeFor(p.schemes[name]); c != "" && !slices.Contains(header.Values("WWW-Authenticate"), c) {
			header.Add("WWW-Authenticate", c)
		}
	}
	return &oaserrors.HTTPError{
		Status:  http.StatusUnauthorized,
		Message: fmt.Sprintf("Must authenticate using one of the following schemes: %s.", strings.Join(p.order, ", ")),
		Header:  header,
	}
}

func challengeFor(s SchemeInfo) string {
	switch s.Type {
	case SchemeHTTP:
		if s.Scheme == "" {
			return ""
		}
		return titleCaser.String(s.Scheme)
	case SchemeOAuth2, SchemeOpenIDConnect:
		return "Bearer"
	default:
		return ""
	}
}

func missingValues(want, have []string) []string {
	var missing []string
	for _, w := range want {
		if !slices.Contains(have, w) {
			missing = append(missing, w)
		}
	}
	return missing
}

func rolesSatisfied(have []string, alternatives [][]string) bool {
	for _, alt := range alternatives {
		if len(missingValues(alt, have)) == 0 {
			return true
		}
	}
	return false
}

func formatRoles(alternatives [][]string) string {
	parts := make([]string, len(alternatives))
	for i, alt := range alternatives {
		parts[i] = strings.Join(alt, ", ")
	}
	return strings.Join(parts, " or ")
}
