package promplugin

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/erraggy/oasengine/engine"
	"github.com/erraggy/oasengine/oaserrors"
	"github.com/erraggy/oasengine/parser"
)

const contract = `openapi: "3.0.3"
info: {title: metrics, version: "1"}
paths:
  /items:
    get:
      operationId: listItems
      parameters:
        - {name: page, in: query, required: true, schema: {type: integer}}
      responses:
        "200":
          description: ok
          content:
            application/json:
              schema: {type: array, items: {type: string}}
`

func newEngine(t *testing.T, p *Plugin, items any) *engine.Engine {
	t.Helper()
	doc, err := parser.ParseBytes([]byte(contract))
	require.NoError(t, err)
	eng, err := engine.Compile(doc,
		engine.WithPlugins(p),
		engine.WithResponseValidation(p.ObserveResponseValidation(nil)),
		engine.WithHandler("listItems", engine.ValueHandler(func(*engine.Context) (any, error) {
			return items, nil
		})),
	)
	require.NoError(t, err)
	return eng
}

func TestPluginCountsRequests(t *testing.T) {
	reg := prometheus.NewRegistry()
	p, err := New(reg, Options{Namespace: "test"})
	require.NoError(t, err)
	eng := newEngine(t, p, []string{"a"})

	for _, target := range []string{"/items?page=1", "/items?page=2", "/items"} {
		rec := httptest.NewRecorder()
		eng.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, target, nil))
	}
	rec := httptest.NewRecorder()
	eng.ServeHTTP(rec, httptest.NewRequest(http.MethodDelete, "/items", nil))
	require.Equal(t, http.StatusMethodNotAllowed, rec.Code)

	assert.Equal(t, float64(2), testutil.ToFloat64(p.requests.WithLabelValues("listItems", "GET", "200")))
	assert.Equal(t, float64(1), testutil.ToFloat64(p.requests.WithLabelValues("listItems", "GET", "400")))
	assert.Equal(t, float64(1), testutil.ToFloat64(p.requests.WithLabelValues(unrouted, "DELETE", "405")))
	assert.Equal(t, float64(1), testutil.ToFloat64(p.validation.WithLabelValues("listItems", "request")))
	assert.Equal(t, 2, testutil.CollectAndCount(p.duration))
}

func TestPluginCountsResponseFailures(t *testing.T) {
	reg := prometheus.NewRegistry()
	p, err := New(reg, Options{})
	require.NoError(t, err)
	eng := newEngine(t, p, []int{1, 2})

	rec := httptest.NewRecorder()
	eng.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/items?page=1", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, float64(1), testutil.ToFloat64(p.validation.WithLabelValues("listItems", "response")))
}

func TestObserveResponseValidationCallsNext(t *testing.T) {
	p, err := New(prometheus.NewRegistry(), Options{})
	require.NoError(t, err)

	called := false
	fn := p.ObserveResponseValidation(func(*engine.Context, *oaserrors.ValidationError) error {
		called = true
		return nil
	})
	require.NoError(t, fn(nil, nil))
	assert.True(t, called)
}

func TestNewRejectsDuplicateRegistration(t *testing.T) {
	reg := prometheus.NewRegistry()
	_, err := New(reg, Options{})
	require.NoError(t, err)

	_, err = New(reg, Options{})
	require.Error(t, err)
	assert.ErrorIs(t, err, oaserrors.ErrConfig)
}
