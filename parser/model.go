package parser

// Extension keys understood by the engine.
const (
	// ExtController names the controller that holds an operation's handler.
	// It may be set on the document, a path item or an operation.
	ExtController = "x-controller"
	// ExtOperationID overrides operationId for handler lookup.
	ExtOperationID = "x-operation-id"
	// ExtRoles lists the roles an authenticated user must hold.
	ExtRoles = "x-roles"
)

// OpenAPI is the typed view of an OpenAPI 3.x document.
type OpenAPI struct {
	OpenAPI    string                `json:"openapi"`
	Info       *Info                 `json:"info,omitempty"`
	Servers    []*Server             `json:"servers,omitempty"`
	Paths      map[string]*PathItem  `json:"paths,omitempty"`
	Components *Components           `json:"components,omitempty"`
	Security   []SecurityRequirement `json:"security,omitempty"`
	Tags       []*Tag                `json:"tags,omitempty"`
	Controller string                `json:"x-controller,omitempty"`
	Roles      any                   `json:"x-roles,omitempty"`
}

// Info provides metadata about the API
type Info struct {
	Title       string `json:"title"`
	Description string `json:"description,omitempty"`
	Version     string `json:"version"`
}

// Tag adds metadata to a single tag used by operations
type Tag struct {
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
}

// Server represents a server URL template
type Server struct {
	URL         string                     `json:"url"`
	Description string                     `json:"description,omitempty"`
	Variables   map[string]*ServerVariable `json:"variables,omitempty"`
}

// ServerVariable represents a server URL template variable
type ServerVariable struct {
	Enum        []string `json:"enum,omitempty"`
	Default     string   `json:"default"`
	Description string   `json:"description,omitempty"`
}

// PathItem describes the operations available on a single path
type PathItem struct {
	Ref         string       `json:"$ref,omitempty"`
	Summary     string       `json:"summary,omitempty"`
	Description string       `json:"description,omitempty"`
	Get         *Operation   `json:"get,omitempty"`
	Put         *Operation   `json:"put,omitempty"`
	Post        *Operation   `json:"post,omitempty"`
	Delete      *Operation   `json:"delete,omitempty"`
	Options     *Operation   `json:"options,omitempty"`
	Head        *Operation   `json:"head,omitempty"`
	Patch       *Operation   `json:"patch,omitempty"`
	Trace       *Operation   `json:"trace,omitempty"`
	Servers     []*Server    `json:"servers,omitempty"`
	Parameters  []*Parameter `json:"parameters,omitempty"`
	Controller  string       `json:"x-controller,omitempty"`
}

// Operation describes a single API operation on a path
type Operation struct {
	Tags        []string              `json:"tags,omitempty"`
	Summary     string                `json:"summary,omitempty"`
	Description string                `json:"description,omitempty"`
	OperationID string                `json:"operationId,omitempty"`
	Parameters  []*Parameter          `json:"parameters,omitempty"`
	RequestBody *RequestBody          `json:"requestBody,omitempty"`
	Responses   map[string]*Response  `json:"responses,omitempty"`
	Deprecated  bool                  `json:"deprecated,omitempty"`
	Security    []SecurityRequirement `json:"security,omitempty"`
	Servers     []*Server             `json:"servers,omitempty"`
	Controller  string                `json:"x-controller,omitempty"`
	XOperation  string                `json:"x-operation-id,omitempty"`
	Roles       any                   `json:"x-roles,omitempty"`
}

// Parameter describes a single operation parameter
type Parameter struct {
	Ref             string                `json:"$ref,omitempty"`
	Name            string                `json:"name"`
	In              string                `json:"in"`
	Description     string                `json:"description,omitempty"`
	Required        bool                  `json:"required,omitempty"`
	Deprecated      bool                  `json:"deprecated,omitempty"`
	AllowEmptyValue bool                  `json:"allowEmptyValue,omitempty"`
	Style           string                `json:"style,omitempty"`
	Explode         *bool                 `json:"explode,omitempty"`
	AllowReserved   bool                  `json:"allowReserved,omitempty"`
	Schema          map[string]any        `json:"schema,omitempty"`
	Content         map[string]*MediaType `json:"content,omitempty"`
}

// RequestBody describes a single request body
type RequestBody struct {
	Ref         string                `json:"$ref,omitempty"`
	Description string                `json:"description,omitempty"`
	Content     map[string]*MediaType `json:"content"`
	Required    bool                  `json:"required,omitempty"`
}

// MediaType provides schema and examples for a media type
type MediaType struct {
	Schema   map[string]any       `json:"schema,omitempty"`
	Example  any                  `json:"example,omitempty"`
	Examples map[string]any       `json:"examples,omitempty"`
	Encoding map[string]*Encoding `json:"encoding,omitempty"`
}

// Encoding describes a single encoding definition applied to a schema property
type Encoding struct {
	ContentType string             `json:"contentType,omitempty"`
	Headers     map[string]*Header `json:"headers,omitempty"`
	Style       string             `json:"style,omitempty"`
	Explode     *bool              `json:"explode,omitempty"`
}

// Response describes a single response from an API operation
type Response struct {
	Ref         string                `json:"$ref,omitempty"`
	Description string                `json:"description"`
	Headers     map[string]*Header    `json:"headers,omitempty"`
	Content     map[string]*MediaType `json:"content,omitempty"`
}

// Header represents a header parameter on a response
type Header struct {
	Ref         string                `json:"$ref,omitempty"`
	Description string                `json:"description,omitempty"`
	Required    bool                  `json:"required,omitempty"`
	Deprecated  bool                  `json:"deprecated,omitempty"`
	Style       string                `json:"style,omitempty"`
	Explode     *bool                 `json:"explode,omitempty"`
	Schema      map[string]any        `json:"schema,omitempty"`
	Content     map[string]*MediaType `json:"content,omitempty"`
}

// Components holds reusable objects referenced from the rest of the document.
// Schemas stay in raw form; they are addressed by pointer, not decoded.
type Components struct {
	Schemas         map[string]map[string]any  `json:"schemas,omitempty"`
	Responses       map[string]*Response       `json:"responses,omitempty"`
	Parameters      map[string]*Parameter      `json:"parameters,omitempty"`
	RequestBodies   map[string]*RequestBody    `json:"requestBodies,omitempty"`
	Headers         map[string]*Header         `json:"headers,omitempty"`
	SecuritySchemes map[string]*SecurityScheme `json:"securitySchemes,omitempty"`
}

// SecurityScheme defines a security scheme that can be used by operations
type SecurityScheme struct {
	Ref              string      `json:"$ref,omitempty"`
	Type             string      `json:"type"`
	Description      string      `json:"description,omitempty"`
	Name             string      `json:"name,omitempty"`
	In               string      `json:"in,omitempty"`
	Scheme           string      `json:"scheme,omitempty"`
	BearerFormat     string      `json:"bearerFormat,omitempty"`
	Flows            *OAuthFlows `json:"flows,omitempty"`
	OpenIDConnectURL string      `json:"openIdConnectUrl,omitempty"`
}

// OAuthFlows allows configuration of the supported OAuth flows
type OAuthFlows struct {
	Implicit          *OAuthFlow `json:"implicit,omitempty"`
	Password          *OAuthFlow `json:"password,omitempty"`
	ClientCredentials *OAuthFlow `json:"clientCredentials,omitempty"`
	AuthorizationCode *OAuthFlow `json:"authorizationCode,omitempty"`
}

// OAuthFlow contains configuration details for a supported OAuth flow
type OAuthFlow struct {
	AuthorizationURL string            `json:"authorizationUrl,omitempty"`
	TokenURL         string            `json:"tokenUrl,omitempty"`
	RefreshURL       string            `json:"refreshUrl,omitempty"`
	Scopes           map[string]string `json:"scopes"`
}

// SecurityRequirement maps scheme names to the scopes (or role names) it requires.
type SecurityRequirement map[string][]string

// Operations returns the operations of a path item keyed by lowercase method.
func (p *PathItem) Operations() map[string]*Operation {
	if p == nil {
		return nil
	}
	ops := make(map[string]*Operation, 8)
	for method, op := range map[string]*Operation{
		"get": p.Get, "put": p.Put, "post": p.Post, "delete": p.Delete,
		"options": p.Options, "head": p.Head, "patch": p.Patch, "trace": p.Trace,
	} {
		if op != nil {
			ops[method] = op
		}
	}
	return ops
}
