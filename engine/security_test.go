package engine

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/erraggy/oasengine/internal/testutil"
	"github.com/erraggy/oasengine/oaserrors"
	"github.com/erraggy/oasengine/parser"
)

const kitchenYAML = `openapi: "3.0.3"
info: {title: kitchen, version: "1"}
components:
  securitySchemes:
    basicAuth: {type: http, scheme: basic}
    oauth: {type: http, scheme: bearer}
    oauth2:
      type: oauth2
      flows:
        clientCredentials:
          tokenUrl: https://auth.example.com/token
          scopes: {admin: administer}
security:
  - basicAuth: []
paths:
  /kitchen:
    get:
      security:
        - basicAuth: []
        - oauth: [admin]
      x-roles: [ROLES]
      responses: {"200": {description: ok}}
  /pantry:
    get:
      security:
        - oauth2: [admin]
      x-roles: [chef]
      responses: {"200": {description: ok}}
  /public:
    get:
      security: []
      responses: {"200": {description: ok}}
  /inherited:
    get:
      responses: {"200": {description: ok}}
`

// stubAuth returns an authenticator that reports res and counts its calls.
func stubAuth(res *AuthResult, err error, calls *int) Authenticator {
	return func(*Context, SchemeInfo) (*AuthResult, error) {
		if calls != nil {
			*calls++
		}
		return res, err
	}
}

func kitchenPolicy(t *testing.T, roles, path string, auths map[string]Authenticator) *securityPolicy {
	t.Helper()
	doc := testutil.MustParse(t, strings.Replace(kitchenYAML, "ROLES", roles, 1))
	p, err := compileSecurity(doc, parser.JoinPointer("#/paths", path, "get"), auths)
	require.NoError(t, err)
	return p
}

func testContext() *Context {
	return newContext(httptest.NewRequest(http.MethodGet, "/kitchen", nil), parser.NopLogger{})
}

func TestAuthenticateAlternatives(t *testing.T) {
	bacon := &AuthResult{User: "cook", Roles: []string{"bacon"}, Scopes: []string{"admin"}}

	tests := []struct {
		name      string
		roles     string
		basic     *AuthResult
		oauth     *AuthResult
		want      []string
		status    int
		message   string
		challenge []string
	}{
		{
			name:  "second alternative with roles",
			roles: "bacon",
			oauth: bacon,
			want:  []string{"oauth"},
		},
		{
			name:    "missing role",
			roles:   "missingRole",
			oauth:   bacon,
			status:  http.StatusForbidden,
			message: "Authenticated using 'oauth' but missing required roles: missingRole.",
		},
		{
			name:    "missing scope",
			roles:   "bacon",
			oauth:   &AuthResult{Roles: []string{"bacon"}},
			status:  http.StatusForbidden,
			message: "Authenticated using 'oauth' but missing required scopes: admin.",
		},
		{
			name:      "no credentials",
			roles:     "bacon",
			status:    http.StatusUnauthorized,
			message:   "Must authenticate using one of the following schemes: basicAuth, oauth.",
			challenge: []string{"Basic", "Bearer"},
		},
		{
			name:  "first alternative wins",
			roles: "bacon",
			basic: &AuthResult{User: "basic", Roles: []string{"bacon"}},
			oauth: bacon,
			want:  []string{"basicAuth"},
		},
		{
			name:  "role alternatives",
			roles: "[chef], [bacon]",
			oauth: bacon,
			want:  []string{"oauth"},
		},
		{
			name:    "role alternatives unmet",
			roles:   "[chef], [bacon, eggs]",
			oauth:   bacon,
			status:  http.StatusForbidden,
			message: "Authenticated using 'oauth' but missing required roles: chef or bacon, eggs.",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := kitchenPolicy(t, tt.roles, "/kitchen", map[string]Authenticator{
				"basicAuth": stubAuth(tt.basic, nil, nil),
				"oauth":     stubAuth(tt.oauth, nil, nil),
			})
			got, err := p.authenticate(testContext())
			if tt.status != 0 {
				require.Error(t, err)
				var herr *oaserrors.HTTPError
				require.True(t, errors.As(err, &herr))
				assert.Equal(t, tt.status, herr.Status)
				assert.Equal(t, tt.message, herr.Message)
				if tt.challenge != nil {
					assert.Equal(t, tt.challenge, herr.Header.Values("WWW-Authenticate"))
				}
				return
			}
			require.NoError(t, err)
			names := make([]string, 0, len(got))
			for name := range got {
				names = append(names, name)
			}
			assert.ElementsMatch(t, tt.want, names)
		})
	}
}

func TestAuthenticateRunsEachSchemeOnce(t *testing.T) {
	var basicCalls, oauthCalls int
	p := kitchenPolicy(t, "bacon", "/kitchen", map[string]Authenticator{
		"basicAuth": stubAuth(nil, nil, &basicCalls),
		"oauth":     stubAuth(&AuthResult{Roles: []string{"bacon"}, Scopes: []string{"admin"}}, nil, &oauthCalls),
	})
	_, err := p.authenticate(testContext())
	require.NoError(t, err)
	assert.Equal(t, 1, basicCalls)
	assert.Equal(t, 1, oauthCalls)
}

func TestAuthenticateErrorPropagates(t *testing.T) {
	boom := oaserrors.NewHTTPError(http.StatusBadRequest, "malformed credential")
	p := kitchenPolicy(t, "bacon", "/kitchen", map[string]Authenticator{
		"basicAuth": stubAuth(nil, boom, nil),
		"oauth":     stubAuth(nil, nil, nil),
	})
	_, err := p.authenticate(testContext())
	assert.Same(t, boom, err)
}

func TestAuthenticateOAuth2IgnoresRoles(t *testing.T) {
	p := kitchenPolicy(t, "bacon", "/pantry", map[string]Authenticator{
		"oauth2": stubAuth(&AuthResult{Scopes: []string{"admin"}}, nil, nil),
	})
	got, err := p.authenticate(testContext())
	require.NoError(t, err)
	assert.Contains(t, got, "oauth2")
}

func TestCompileSecurityInheritance(t *testing.T) {
	auths := map[string]Authenticator{
		"basicAuth": stubAuth(nil, nil, nil),
		"oauth":     stubAuth(nil, nil, nil),
		"oauth2":    stubAuth(nil, nil, nil),
	}

	public := kitchenPolicy(t, "bacon", "/public", auths)
	assert.Empty(t, public.alternatives)
	got, err := public.authenticate(testContext())
	require.NoError(t, err)
	assert.Empty(t, got)

	inherited := kitchenPolicy(t, "bacon", "/inherited", auths)
	require.Len(t, inherited.alternatives, 1)
	assert.Equal(t, []string{"basicAuth"}, inherited.order)
}

func TestParseRoles(t *testing.T) {
	tests := []struct {
		name    string
		raw     any
		want    [][]string
		wantErr bool
	}{
		{name: "nil", raw: nil},
		{name: "empty", raw: []any{}},
		{name: "flat", raw: []any{"a", "b"}, want: [][]string{{"a", "b"}}},
		{name: "nested", raw: []any{[]any{"a"}, []any{"b", "c"}}, want: [][]string{{"a"}, {"b", "c"}}},
		{name: "not a list", raw: "admin", wantErr: true},
		{name: "number", raw: []any{float64(1)}, wantErr: true},
		{name: "mixed", raw: []any{[]any{"a"}, "b"}, wantErr: true},
		{name: "nested number", raw: []any{[]any{"a", true}}, wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := parseRoles(tt.raw)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestCredential(t *testing.T) {
	tests := []struct {
		name   string
		scheme SchemeInfo
		setup  func(r *http.Request)
		want   string
		ok     bool
	}{
		{
			name:   "api key header",
			scheme: SchemeInfo{Type: SchemeAPIKey, In: "header", ParamName: "X-API-Key"},
			setup:  func(r *http.Request) { r.Header.Set("X-API-Key", "k1") },
			want:   "k1",
			ok:     true,
		},
		{
			name:   "api key query",
			scheme: SchemeInfo{Type: SchemeAPIKey, In: "query", ParamName: "key"},
			setup:  func(r *http.Request) { r.URL.RawQuery = "key=k2" },
			want:   "k2",
			ok:     true,
		},
		{
			name:   "api key cookie",
			scheme: SchemeInfo{Type: SchemeAPIKey, In: "cookie", ParamName: "sid"},
			setup:  func(r *http.Request) { r.AddCookie(&http.Cookie{Name: "sid", Value: "k3"}) },
			want:   "k3",
			ok:     true,
		},
		{
			name:   "api key absent",
			scheme: SchemeInfo{Type: SchemeAPIKey, In: "header", ParamName: "X-API-Key"},
			setup:  func(*http.Request) {},
		},
		{
			name:   "basic",
			scheme: SchemeInfo{Type: SchemeHTTP, Scheme: "basic"},
			setup:  func(r *http.Request) { r.Header.Set("Authorization", "Basic dXNlcjpwdw==") },
			want:   "dXNlcjpwdw==",
			ok:     true,
		},
		{
			name:   "wrong http scheme",
			scheme: SchemeInfo{Type: SchemeHTTP, Scheme: "basic"},
			setup:  func(r *http.Request) { r.Header.Set("Authorization", "Bearer tok") },
		},
		{
			name:   "oauth2 bearer",
			scheme: SchemeInfo{Type: SchemeOAuth2},
			setup:  func(r *http.Request) { r.Header.Set("Authorization", "bearer tok") },
			want:   "tok",
			ok:     true,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := httptest.NewRequest(http.MethodGet, "/", nil)
			tt.setup(r)
			got, ok := Credential(r, tt.scheme)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestSecurityEndToEnd(t *testing.T) {
	src := strings.Replace(kitchenYAML, "ROLES", "bacon", 1)
	basic := func(ctx *Context, s SchemeInfo) (*AuthResult, error) {
		if cred, ok := Credential(ctx.Request, s); ok && cred == "Y29vazpwdw==" {
			return &AuthResult{User: "cook", Roles: []string{"bacon"}}, nil
		}
		return nil, nil
	}
	eng := newEngine(t, src,
		WithAuthenticators(map[string]Authenticator{
			"basicAuth": basic,
			"oauth":     stubAuth(nil, nil, nil),
			"oauth2":    stubAuth(nil, nil, nil),
		}),
		WithDefaultHandler(ValueHandler(func(ctx *Context) (any, error) {
			return map[string]any{"user": ctx.User, "schemes": len(ctx.Security)}, nil
		})),
	)

	res, _ := run(t, eng, httptest.NewRequest(http.MethodGet, "/kitchen", nil))
	assert.Equal(t, http.StatusUnauthorized, res.Status)
	assert.Equal(t, []string{"Basic", "Bearer"}, res.Header.Values("WWW-Authenticate"))

	req := httptest.NewRequest(http.MethodGet, "/kitchen", nil)
	req.Header.Set("Authorization", "Basic Y29vazpwdw==")
	res, body := run(t, eng, req)
	assert.Equal(t, http.StatusOK, res.Status)
	assert.JSONEq(t, `{"user":"cook","schemes":1}`, body)
}
