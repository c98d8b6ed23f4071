package commands

import (
	"io"
	"os"

	"github.com/erraggy/oasengine/engine"
	"github.com/erraggy/oasengine/parser"
)

// stdin is where "-" reads contracts from.
var stdin io.Reader = os.Stdin

// loadDocument parses the contract at specPath, or stdin for "-".
func loadDocument(specPath string, logger parser.Logger) (*parser.Document, error) {
	opts := []parser.Option{parser.WithLogger(logger)}
	if specPath == StdinFilePath {
		opts = append(opts, parser.WithReader(stdin), parser.WithSourceName(FormatSpecPath(specPath)))
	} else {
		opts = append(opts, parser.WithFilePath(specPath))
	}
	return parser.ParseWithOptions(opts...)
}

// grant is what every accepted credential is given.
type grant struct {
	Roles  []string
	Scopes []string
}

// echoOptions lets any contract compile without application code: every
// declared scheme accepts whatever credential the request carries, and every
// operation echoes what the engine decoded.
func echoOptions(doc *parser.Document, g grant) []engine.Option {
	auths := make(map[string]engine.Authenticator)
	if doc.OpenAPI.Components != nil {
		for name := range doc.OpenAPI.Components.SecuritySchemes {
			auths[name] = g.authenticate
		}
	}
	return []engine.Option{
		engine.WithAuthenticators(auths),
		engine.WithDefaultHandler(engine.ValueHandler(echo)),
	}
}

func (g grant) authenticate(ctx *engine.Context, scheme engine.SchemeInfo) (*engine.AuthResult, error) {
	cred, ok := engine.Credential(ctx.Request, scheme)
	if !ok {
		return nil, nil
	}
	return &engine.AuthResult{User: cred, Roles: g.Roles, Scopes: g.Scopes}, nil
}

type echoResponse struct {
	Operation string         `json:"operation"`
	Path      map[string]any `json:"path,omitempty"`
	Query     map[string]any `json:"query,omitempty"`
	Header    map[string]any `json:"header,omitempty"`
	Cookie    map[string]any `json:"cookie,omitempty"`
	Server    map[string]any `json:"server,omitempty"`
	Body      any            `json:"body,omitempty"`
	User      any            `json:"user,omitempty"`
}

func echo(ctx *engine.Context) (any, error) {
	out := echoResponse{
		Path:   ctx.Params.Path,
		Query:  ctx.Params.Query,
		Header: ctx.Params.Header,
		Cookie: ctx.Params.Cookie,
		Server: ctx.Params.Server,
		User:   ctx.User,
	}
	if r := ctx.Route(); r != nil {
		out.Operation = r.OperationID
		if out.Operation == "" {
			out.Operation = r.Method + " " + r.Path
		}
	}
	if ctx.BodyPresent {
		if b, ok := ctx.Body.([]byte); ok {
			out.Body = string(b)
		} else {
			out.Body = ctx.Body
		}
	}
	return out, nil
}
