// Package promplugin records engine request metrics with Prometheus.
//
// Install the plugin and expose the registry:
//
//	reg := prometheus.NewRegistry()
//	metrics, err := promplugin.New(reg, promplugin.Options{Namespace: "petstore"})
//	if err != nil {
//	    log.Fatal(err)
//	}
//	eng, err := engine.New(
//	    engine.WithFilePath("openapi.yaml"),
//	    engine.WithPlugins(metrics),
//	    engine.WithResponseValidation(metrics.ObserveResponseValidation(nil)),
//	)
//	http.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
package promplugin

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/erraggy/oasengine/engine"
	"github.com/erraggy/oasengine/oaserrors"
)

// Label values used when a request never resolved to an operation.
const unrouted = "unrouted"

// Options configure metric names.
type Options struct {
	// Namespace prefixes every metric name.
	Namespace string
	// Buckets for the duration histogram; prometheus.DefBuckets when empty.
	Buckets []float64
}

// Plugin counts requests, observes their duration and counts validation
// failures. It implements engine.PreRouter and engine.Finisher.
type Plugin struct {
	requests   *prometheus.CounterVec
	duration   *prometheus.HistogramVec
	validation *prometheus.CounterVec
}

type startKey struct{}

// New creates the metrics and registers them with reg.
func New(reg prometheus.Registerer, opts Options) (*Plugin, error) {
	buckets := opts.Buckets
	if len(buckets) == 0 {
		buckets = prometheus.DefBuckets
	}
	p := &Plugin{
		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: opts.Namespace,
			Name:      "requests_total",
			Help:      "Requests handled, by operation, method and status code.",
		}, []string{"operation", "method", "code"}),
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: opts.Namespace,
			Name:      "request_duration_seconds",
			Help:      "Time spent processing requests, by operation and method.",
			Buckets:   buckets,
		}, []string{"operation", "method"}),
		validation: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: opts.Namespace,
			Name:      "validation_failures_total",
			Help:      "Requests or responses that failed contract validation.",
		}, []string{"operation", "direction"}),
	}
	for _, c := range []prometheus.Collector{p.requests, p.duration, p.validation} {
		if err := reg.Register(c); err != nil {
			return nil, &oaserrors.ConfigError{Option: "promplugin.New", Message: "registering metrics", Cause: err}
		}
	}
	return p, nil
}

// PreRouting records the start time.
func (p *Plugin) PreRouting(ctx *engine.Context) error {
	ctx.Set(startKey{}, time.Now())
	return nil
}

// Finish records the outcome of a handled request.
func (p *Plugin) Finish(ctx *engine.Context, res *engine.Result, err error) {
	op := operationOf(ctx)
	method := ctx.Request.Method

	code := http.StatusInternalServerError
	switch {
	case res != nil:
		code = res.Status
	case err != nil:
		if status, ok := oaserrors.StatusOf(err); ok {
			code = status
		}
	}
	p.requests.WithLabelValues(op, method, strconv.Itoa(code)).Inc()

	if v, ok := ctx.Get(startKey{}); ok {
		if start, ok := v.(time.Time); ok {
			p.duration.WithLabelValues(op, method).Observe(time.Since(start).Seconds())
		}
	}

	if code == http.StatusBadRequest || errors.Is(err, oaserrors.ErrValidation) {
		p.validation.WithLabelValues(op, "request").Inc()
	}
}

// ObserveResponseValidation wraps a response validation callback so failures
// are counted. A nil next only counts.
func (p *Plugin) ObserveResponseValidation(next engine.ResponseValidationFunc) engine.ResponseValidationFunc {
	return func(ctx *engine.Context, verr *oaserrors.ValidationError) error {
		p.validation.WithLabelValues(operationOf(ctx), "response").Inc()
		if next == nil {
			return nil
		}
		return next(ctx, verr)
	}
}

func operationOf(ctx *engine.Context) string {
	if ctx == nil {
		return unrouted
	}
	route := ctx.Route()
	if route == nil {
		return unrouted
	}
	if route.OperationID != "" {
		return route.OperationID
	}
	return route.Method + " " + route.Path
}
