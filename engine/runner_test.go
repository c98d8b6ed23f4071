package engine

import (
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/erraggy/oasengine/oaserrors"
)

const kennelYAML = `openapi: "3.1.0"
info: {title: kennel, version: "1"}
components:
  schemas:
    Dog:
      type: object
      required: [name]
      properties:
        name: {type: string}
paths:
  /dogs:
    get:
      operationId: listDogs
      parameters:
        - {name: X-Trace, in: header, schema: {type: integer}}
        - {name: session, in: cookie, schema: {type: string}}
        - {name: tags, in: query, schema: {type: array, items: {type: string}}}
      responses:
        "200":
          description: ok
          headers:
            X-Count:
              required: true
              schema: {type: integer}
          content:
            application/json:
              schema:
                type: array
                items: {$ref: '#/components/schemas/Dog'}
        default:
          description: error
          content:
            application/json:
              schema:
                type: object
                required: [message]
                properties:
                  message: {type: string}
    post:
      operationId: addDog
      requestBody:
        content:
          application/json:
            schema:
              type: object
              default: {name: rex}
              properties:
                name: {type: string}
          application/x-www-form-urlencoded:
            schema:
              type: object
              properties:
                count: {type: integer}
                tags: {type: array, items: {type: string}}
          application/octet-stream: {}
      responses:
        "201": {description: created}
  /dogs/{name}:
    parameters:
      - {name: name, in: path, required: true, schema: {type: string}}
    get:
      operationId: getDog
      responses:
        "200": {description: ok}
  /dogs/mine:
    get:
      operationId: getMyDog
      responses:
        "200": {description: ok}
  /files/{name}:
    get:
      operationId: fileByName
      parameters:
        - {name: name, in: path, required: true, schema: {type: string}}
      responses:
        "200": {description: ok}
  /files/{name}.{ext}:
    get:
      operationId: fileByExt
      parameters:
        - {name: name, in: path, required: true, schema: {type: string}}
        - {name: ext, in: path, required: true, schema: {type: string}}
      responses:
        "200": {description: ok}
`

// kennel compiles kennelYAML with handlers that return their operation ID
// unless overridden.
func kennel(t *testing.T, handlers map[string]Handler, opts ...Option) *Engine {
	t.Helper()
	ctrl := Controller{}
	for _, id := range []string{"listDogs", "addDog", "getDog", "getMyDog", "fileByName", "fileByExt"} {
		ctrl[id] = ValueHandler(func(*Context) (any, error) { return id, nil })
	}
	for id, h := range handlers {
		ctrl[id] = h
	}
	base := []Option{WithControllers(map[string]Controller{"": ctrl})}
	return newEngine(t, kennelYAML, append(base, opts...)...)
}

func TestRouting(t *testing.T) {
	eng := kennel(t, nil)
	tests := []struct {
		target string
		want   string
	}{
		{"/dogs/mine", "getMyDog"},
		{"/dogs/rex", "getDog"},
		{"/files/readme", "fileByName"},
		{"/files/readme.md", "fileByExt"},
	}
	for _, tt := range tests {
		t.Run(tt.target, func(t *testing.T) {
			_, body := run(t, eng, httptest.NewRequest(http.MethodGet, tt.target, nil))
			assert.Equal(t, tt.want, body)
		})
	}
}

func TestParametersByLocation(t *testing.T) {
	var got Params
	eng := kennel(t, map[string]Handler{
		"listDogs": ValueHandler(func(ctx *Context) (any, error) {
			got = ctx.Params
			return []any{}, nil
		}),
	})

	req := httptest.NewRequest(http.MethodGet, "/dogs?tags=a&tags=b", nil)
	req.Header.Set("X-Trace", "7")
	req.AddCookie(&http.Cookie{Name: "session", Value: "s1"})
	run(t, eng, req)

	assert.Equal(t, float64(7), got.Header["X-Trace"])
	assert.Equal(t, "s1", got.Cookie["session"])
	assert.Equal(t, []any{"a", "b"}, got.Query["tags"])

	req = httptest.NewRequest(http.MethodGet, "/dogs", nil)
	req.Header.Set("X-Trace", "abc")
	res, body := run(t, eng, req)
	assert.Equal(t, http.StatusBadRequest, res.Status)
	eb := decodeErrorBody(t, body)
	require.Len(t, eb.Errors, 1)
	assert.Equal(t, "header", eb.Errors[0].Location.In)
	assert.Equal(t, "X-Trace", eb.Errors[0].Location.Name)
}

func TestRequestBodies(t *testing.T) {
	var (
		body    any
		present bool
	)
	eng := kennel(t, map[string]Handler{
		"addDog": WriterHandler(func(ctx *Context) error {
			body, present = ctx.Body, ctx.BodyPresent
			ctx.Res.SetStatus(http.StatusCreated).End()
			return nil
		}),
	})

	tests := []struct {
		name        string
		contentType string
		payload     string
		want        any
		wantPresent bool
	}{
		{name: "json", contentType: "application/json", payload: `{"name":"fido"}`, want: map[string]any{"name": "fido"}, wantPresent: true},
		{name: "json charset", contentType: "application/json; charset=utf-8", payload: `{"name":"fido"}`, want: map[string]any{"name": "fido"}, wantPresent: true},
		{name: "default applies", contentType: "application/json", payload: "", want: map[string]any{"name": "rex"}, wantPresent: true},
		{name: "no body", payload: ""},
		{
			name: "form coerced", contentType: "application/x-www-form-urlencoded", payload: "count=3&tags=a",
			want: map[string]any{"count": float64(3), "tags": []any{"a"}}, wantPresent: true,
		},
		{name: "octet stream", contentType: "application/octet-stream", payload: "\x00\x01", want: []byte("\x00\x01"), wantPresent: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			body, present = nil, false
			req := httptest.NewRequest(http.MethodPost, "/dogs", strings.NewReader(tt.payload))
			if tt.contentType != "" {
				req.Header.Set("Content-Type", tt.contentType)
			}
			res, _ := run(t, eng, req)
			require.Equal(t, http.StatusCreated, res.Status)
			assert.Equal(t, tt.want, body)
			assert.Equal(t, tt.wantPresent, present)
		})
	}

	t.Run("body without content type", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/dogs", strings.NewReader(`{"name":"fido"}`))
		res, body := run(t, eng, req)
		assert.Equal(t, http.StatusUnsupportedMediaType, res.Status)
		assert.Equal(t, "Content-Type header is required for a request body", decodeErrorBody(t, body).Message)
	})
}

func TestContentTypeInference(t *testing.T) {
	eng := kennel(t, map[string]Handler{
		"getMyDog": ValueHandler(func(ctx *Context) (any, error) {
			switch ctx.Request.URL.Query().Get("kind") {
			case "bytes":
				return []byte("raw"), nil
			case "object":
				return map[string]any{"name": "rex"}, nil
			default:
				return "text", nil
			}
		}),
	})
	tests := []struct {
		kind string
		want string
	}{
		{"text", "text/plain"},
		{"bytes", "text/plain"},
		{"object", "application/json"},
	}
	for _, tt := range tests {
		t.Run(tt.kind, func(t *testing.T) {
			res, _ := run(t, eng, httptest.NewRequest(http.MethodGet, "/dogs/mine?kind="+tt.kind, nil))
			assert.Equal(t, tt.want, res.Header.Get("Content-Type"))
		})
	}
}

func TestHandlerErrors(t *testing.T) {
	eng := kennel(t, map[string]Handler{
		"getDog": ValueHandler(func(ctx *Context) (any, error) {
			if ctx.Params.Path["name"] == "ghost" {
				return nil, ctx.MakeError(http.StatusNotFound, "no such dog")
			}
			return nil, errors.New("database unavailable")
		}),
		"getMyDog": WriterHandler(func(ctx *Context) error {
			ctx.Res.Text("mine")
			ctx.Res.SetStatus(http.StatusTeapot)
			return nil
		}),
	})

	t.Run("status error", func(t *testing.T) {
		res, body := run(t, eng, httptest.NewRequest(http.MethodGet, "/dogs/ghost", nil))
		assert.Equal(t, http.StatusNotFound, res.Status)
		assert.Equal(t, "no such dog", decodeErrorBody(t, body).Message)
	})

	t.Run("plain error", func(t *testing.T) {
		res, err := eng.Run(httptest.NewRequest(http.MethodGet, "/dogs/rex", nil))
		assert.Nil(t, res)
		assert.EqualError(t, err, "database unavailable")

		rec := httptest.NewRecorder()
		eng.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/dogs/rex", nil))
		assert.Equal(t, http.StatusInternalServerError, rec.Code)
		assert.JSONEq(t, `{"message":"Internal server error"}`, rec.Body.String())
	})

	t.Run("changed after end", func(t *testing.T) {
		res, err := eng.Run(httptest.NewRequest(http.MethodGet, "/dogs/mine", nil))
		assert.Nil(t, res)
		assert.ErrorIs(t, err, errResponseEnded)
	})
}

func TestAutoHandleHTTPErrorsDisabled(t *testing.T) {
	eng := kennel(t, nil, WithAutoHandleHTTPErrors(false))
	req := httptest.NewRequest(http.MethodGet, "/dogs", nil)
	req.Header.Set("X-Trace", "abc")

	res, err := eng.Run(req)
	assert.Nil(t, res)
	var verr *oaserrors.ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, http.StatusBadRequest, verr.Status)

	rec := httptest.NewRecorder()
	eng.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestResponseValidation(t *testing.T) {
	type call struct {
		status int
		issues []string
	}
	tests := []struct {
		name            string
		handler         Handler
		includeDefaults bool
		want            *call
	}{
		{
			name: "valid",
			handler: WriterHandler(func(ctx *Context) error {
				ctx.Res.SetHeader("X-Count", "1").JSON([]any{map[string]any{"name": "rex"}})
				return nil
			}),
		},
		{
			name: "invalid body and missing header",
			handler: ValueHandler(func(*Context) (any, error) {
				return []map[string]any{{"name": 5}}, nil
			}),
			want: &call{status: http.StatusInternalServerError, issues: []string{
				`Missing required response header "X-Count"`,
				"expected type string but got integer",
			}},
		},
		{
			name: "default skipped",
			handler: WriterHandler(func(ctx *Context) error {
				ctx.Res.SetStatus(http.StatusServiceUnavailable).JSON(map[string]any{"oops": true})
				return nil
			}),
		},
		{
			name: "default checked when enabled",
			handler: WriterHandler(func(ctx *Context) error {
				ctx.Res.SetStatus(http.StatusServiceUnavailable).JSON(map[string]any{"oops": true})
				return nil
			}),
			includeDefaults: true,
			want:            &call{status: http.StatusInternalServerError, issues: []string{`required property "message" is missing`}},
		},
		{
			name: "undeclared content type",
			handler: WriterHandler(func(ctx *Context) error {
				ctx.Res.SetHeader("X-Count", "1").Bytes("application/xml", []byte("<dogs/>"))
				return nil
			}),
			want: &call{status: http.StatusInternalServerError, issues: []string{`Content type "application/xml" is not defined for status 200`}},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var got *call
			eng := kennel(t, map[string]Handler{"listDogs": tt.handler},
				WithValidateDefaultResponses(tt.includeDefaults),
				WithResponseValidation(func(_ *Context, verr *oaserrors.ValidationError) error {
					c := &call{status: verr.Status}
					for _, issue := range verr.Issues {
						c.issues = append(c.issues, issue.Message)
					}
					got = c
					return nil
				}),
			)
			res, _ := run(t, eng, httptest.NewRequest(http.MethodGet, "/dogs", nil))
			assert.NotEqual(t, http.StatusInternalServerError, res.Status, "response is still sent")
			if tt.want == nil {
				assert.Nil(t, got)
				return
			}
			require.NotNil(t, got)
			assert.Equal(t, tt.want.status, got.status)
			assert.ElementsMatch(t, tt.want.issues, got.issues)
		})
	}
}

func TestResponseValidationStatusAndContent(t *testing.T) {
	var issues []string
	eng := kennel(t, map[string]Handler{
		"getDog": WriterHandler(func(ctx *Context) error {
			ctx.Res.SetStatus(http.StatusTeapot).End()
			return nil
		}),
		"getMyDog": ValueHandler(func(*Context) (any, error) {
			return map[string]any{"name": "rex"}, nil
		}),
	}, WithResponseValidation(func(_ *Context, verr *oaserrors.ValidationError) error {
		for _, issue := range verr.Issues {
			issues = append(issues, issue.Message)
		}
		return nil
	}))

	run(t, eng, httptest.NewRequest(http.MethodGet, "/dogs/rex", nil))
	run(t, eng, httptest.NewRequest(http.MethodGet, "/dogs/mine", nil))
	assert.Equal(t, []string{
		"No response defined for status 418",
		"No content is defined for status 200",
	}, issues)
}

func TestResponseValidationCallbackError(t *testing.T) {
	eng := kennel(t, map[string]Handler{
		"getMyDog": ValueHandler(func(*Context) (any, error) { return "body", nil }),
	}, WithResponseValidation(func(*Context, *oaserrors.ValidationError) error {
		return errors.New("reject")
	}))

	res, err := eng.Run(httptest.NewRequest(http.MethodGet, "/dogs/mine", nil))
	assert.Nil(t, res)
	require.Error(t, err)
	status, ok := oaserrors.StatusOf(err)
	require.True(t, ok)
	assert.Equal(t, http.StatusInternalServerError, status)
	assert.True(t, isFatal(err))
}

// recorder implements every request hook and logs the phases it sees.
type recorder struct {
	phases   []string
	routed   *Route
	finished error
	preEnd   bool
}

func (p *recorder) PreRouting(ctx *Context) error {
	p.phases = append(p.phases, "preRouting")
	if p.preEnd {
		ctx.Res.Text("short-circuit")
	}
	return nil
}

func (p *recorder) PostRouting(ctx *Context) error {
	p.phases = append(p.phases, "postRouting")
	p.routed = ctx.Route()
	return nil
}

func (p *recorder) PostSecurity(*Context) error {
	p.phases = append(p.phases, "postSecurity")
	return nil
}

func (p *recorder) PostController(ctx *Context) error {
	p.phases = append(p.phases, "postController")
	ctx.Res.SetHeader("X-Served-By", "kennel")
	return nil
}

func (p *recorder) PostResponseValidation(*Context) error {
	p.phases = append(p.phases, "postResponseValidation")
	return nil
}

func (p *recorder) Finish(_ *Context, _ *Result, err error) {
	p.phases = append(p.phases, "finish")
	p.finished = err
}

func TestPluginLifecycle(t *testing.T) {
	rec := &recorder{}
	eng := kennel(t, map[string]Handler{
		"getMyDog": ValueHandler(func(*Context) (any, error) {
			rec.phases = append(rec.phases, "handler")
			return "mine", nil
		}),
	}, WithPlugins(rec))

	res, body := run(t, eng, httptest.NewRequest(http.MethodGet, "/dogs/mine", nil))
	assert.Equal(t, "mine", body)
	assert.Equal(t, "kennel", res.Header.Get("X-Served-By"))
	assert.Equal(t, []string{
		"preRouting", "postRouting", "postSecurity", "handler",
		"postController", "postResponseValidation", "finish",
	}, rec.phases)
	require.NotNil(t, rec.routed)
	assert.Equal(t, "getMyDog", rec.routed.OperationID)
	assert.Equal(t, "/dogs/mine", rec.routed.Path)
}

func TestPluginEndsResponseEarly(t *testing.T) {
	rec := &recorder{preEnd: true}
	called := false
	eng := kennel(t, map[string]Handler{
		"getMyDog": ValueHandler(func(*Context) (any, error) {
			called = true
			return "mine", nil
		}),
	}, WithPlugins(rec))

	_, body := run(t, eng, httptest.NewRequest(http.MethodGet, "/dogs/mine", nil))
	assert.Equal(t, "short-circuit", body)
	assert.False(t, called)
	assert.Equal(t, []string{"preRouting", "postController", "postResponseValidation", "finish"}, rec.phases)
}

type failingHook struct{ err error }

func (f failingHook) PostSecurity(*Context) error { return f.err }

func TestPluginErrors(t *testing.T) {
	rec := &recorder{}
	eng := kennel(t, nil, WithPlugins(failingHook{err: oaserrors.NewHTTPError(http.StatusTooManyRequests, "slow down")}, rec))

	res, body := run(t, eng, httptest.NewRequest(http.MethodGet, "/dogs/mine", nil))
	assert.Equal(t, http.StatusTooManyRequests, res.Status)
	assert.Equal(t, "slow down", decodeErrorBody(t, body).Message)
	assert.Contains(t, rec.phases, "finish")
	assert.NotContains(t, rec.phases, "postController")
}

func TestFinisherSkipsUnhandled(t *testing.T) {
	rec := &recorder{}
	eng := kennel(t, nil, WithPlugins(rec))
	res, err := eng.Run(httptest.NewRequest(http.MethodGet, "/cats", nil))
	require.NoError(t, err)
	assert.Nil(t, res)
	assert.NotContains(t, rec.phases, "finish")
}

func TestRequestID(t *testing.T) {
	var ids []string
	eng := kennel(t, map[string]Handler{
		"getMyDog": ValueHandler(func(ctx *Context) (any, error) {
			ids = append(ids, ctx.ID)
			return "mine", nil
		}),
	})

	req := httptest.NewRequest(http.MethodGet, "/dogs/mine", nil)
	req.Header.Set(RequestIDHeader, "req-42")
	run(t, eng, req)
	run(t, eng, httptest.NewRequest(http.MethodGet, "/dogs/mine", nil))

	require.Len(t, ids, 2)
	assert.Equal(t, "req-42", ids[0])
	assert.NotEmpty(t, ids[1])
}

func TestContextValues(t *testing.T) {
	type key struct{}
	eng := kennel(t, map[string]Handler{
		"getMyDog": ValueHandler(func(ctx *Context) (any, error) {
			v, ok := ctx.Get(key{})
			if !ok {
				return nil, errors.New("missing value")
			}
			return v, nil
		}),
	}, WithPlugins(setValue(func(ctx *Context) error {
		ctx.Set(key{}, "from plugin")
		return nil
	})))

	_, body := run(t, eng, httptest.NewRequest(http.MethodGet, "/dogs/mine", nil))
	assert.Equal(t, "from plugin", body)
}

type setValue func(ctx *Context) error

func (f setValue) PostRouting(ctx *Context) error { return f(ctx) }

func TestServeHTTPAndMiddleware(t *testing.T) {
	eng := kennel(t, nil)
	next := http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusTeapot)
		_, _ = io.WriteString(w, "next")
	})

	tests := []struct {
		name    string
		handler http.Handler
		target  string
		status  int
		body    string
	}{
		{"served", eng, "/dogs/mine", http.StatusOK, "getMyDog"},
		{"not found", eng, "/cats", http.StatusNotFound, "404 page not found\n"},
		{"middleware served", eng.Middleware(next), "/dogs/mine", http.StatusOK, "getMyDog"},
		{"middleware falls through", eng.Middleware(next), "/cats", http.StatusTeapot, "next"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			tt.handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, tt.target, nil))
			assert.Equal(t, tt.status, rec.Code)
			assert.Equal(t, tt.body, rec.Body.String())
		})
	}
}

func TestErrorHandlerOption(t *testing.T) {
	var seen error
	eng := kennel(t, map[string]Handler{
		"getMyDog": ValueHandler(func(*Context) (any, error) { return nil, errors.New("boom") }),
	}, WithErrorHandler(func(w http.ResponseWriter, _ *http.Request, err error) {
		seen = err
		w.WriteHeader(http.StatusBadGateway)
	}))

	rec := httptest.NewRecorder()
	eng.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/dogs/mine", nil))
	assert.Equal(t, http.StatusBadGateway, rec.Code)
	assert.EqualError(t, seen, "boom")
}
