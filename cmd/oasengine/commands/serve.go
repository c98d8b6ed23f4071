package commands

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"

	"github.com/erraggy/oasengine/engine"
	"github.com/erraggy/oasengine/oaserrors"
	"github.com/erraggy/oasengine/parser"
	"github.com/erraggy/oasengine/plugins/otelplugin"
	"github.com/erraggy/oasengine/plugins/promplugin"
)

// ServeFlags contains flags for the serve command
type ServeFlags struct {
	Addr              string
	Metrics           bool
	Trace             bool
	IgnoreServers     bool
	ValidateResponses bool
	MaxBodySize       int64
	Roles             string
	Scopes            string
	ShutdownTimeout   time.Duration
	Log               LogFlags
}

// SetupServeFlags creates and configures a FlagSet for the serve command.
func SetupServeFlags() (*flag.FlagSet, *ServeFlags) {
	fs := flag.NewFlagSet("serve", flag.ContinueOnError)
	flags := &ServeFlags{Log: defaultLogFlags()}

	fs.StringVar(&flags.Addr, "addr", envString("OASENGINE_ADDR", ":8080"), "listen address")
	fs.BoolVar(&flags.Metrics, "metrics", envBool("OASENGINE_METRICS", false), "expose Prometheus metrics at /metrics")
	fs.BoolVar(&flags.Trace, "trace", envBool("OASENGINE_TRACE", false), "trace requests with OpenTelemetry and log finished spans")
	fs.BoolVar(&flags.IgnoreServers, "ignore-servers", envBool("OASENGINE_IGNORE_SERVERS", false), "route bare paths regardless of declared servers")
	fs.BoolVar(&flags.ValidateResponses, "validate-responses", false, "log responses that do not match the contract")
	fs.Int64Var(&flags.MaxBodySize, "max-body-size", envInt64("OASENGINE_MAX_BODY_SIZE", 100000), "request body limit in bytes")
	fs.StringVar(&flags.Roles, "roles", "", "comma-separated roles granted to any credential")
	fs.StringVar(&flags.Scopes, "scopes", "", "comma-separated scopes granted to any credential")
	fs.DurationVar(&flags.ShutdownTimeout, "shutdown-timeout", 10*time.Second, "grace period for in-flight requests on shutdown")
	fs.StringVar(&flags.Log.Format, "log-format", flags.Log.Format, "log format: text, json, or zap")
	fs.StringVar(&flags.Log.Level, "log-level", flags.Log.Level, "log level: debug, info, warn, or error")

	fs.Usage = func() {
		Writef(fs.Output(), "Usage: oasengine serve [flags] <file>\n\n")
		Writef(fs.Output(), "Serve a contract with handlers that echo the decoded request. Every request is\n")
		Writef(fs.Output(), "routed, authenticated and validated exactly as the engine would in an application.\n\n")
		Writef(fs.Output(), "Flags:\n")
		fs.PrintDefaults()
		Writef(fs.Output(), "\nExamples:\n")
		Writef(fs.Output(), "  oasengine serve openapi.yaml\n")
		Writef(fs.Output(), "  oasengine serve --ignore-servers --metrics --addr :9000 openapi.yaml\n")
		Writef(fs.Output(), "  oasengine serve --roles admin --scopes read:pets openapi.yaml\n")
		Writef(fs.Output(), "\nSecurity:\n")
		Writef(fs.Output(), "  Every declared scheme accepts any credential present in the request.\n")
		Writef(fs.Output(), "  Use --roles and --scopes to grant what protected operations require.\n")
	}

	return fs, flags
}

// HandleServe executes the serve command
func HandleServe(args []string) error {
	fs, flags := SetupServeFlags()
	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return nil
		}
		return err
	}
	if fs.NArg() != 1 {
		fs.Usage()
		return fmt.Errorf("serve command requires exactly one file path")
	}
	logger, err := NewLogger(flags.Log, os.Stderr)
	if err != nil {
		return err
	}
	doc, err := loadDocument(fs.Arg(0), logger)
	if err != nil {
		return fmt.Errorf("parsing contract: %w", err)
	}

	srv, err := newServer(doc, flags, logger, prometheus.NewRegistry())
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	return srv.run(ctx, flags.Addr, flags.ShutdownTimeout)
}

// server is a compiled contract mounted on a chi router.
type server struct {
	handler  http.Handler
	logger   parser.Logger
	tracer   *sdktrace.TracerProvider
	shutdown []func(context.Context) error
}

func newServer(doc *parser.Document, flags *ServeFlags, logger parser.Logger, reg *prometheus.Registry) (*server, error) {
	s := &server{logger: logger}

	opts := append(echoOptions(doc, grant{Roles: splitList(flags.Roles), Scopes: splitList(flags.Scopes)}),
		engine.WithLogger(logger),
		engine.WithIgnoreServers(flags.IgnoreServers),
		engine.WithMaxBodySize(flags.MaxBodySize),
	)

	var onResponse engine.ResponseValidationFunc
	if flags.ValidateResponses {
		onResponse = func(ctx *engine.Context, verr *oaserrors.ValidationError) error {
			ctx.Logger.Warn("response does not match contract", "issues", len(verr.Issues), "error", verr.Error())
			return nil
		}
	}

	if flags.Metrics {
		reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
		prom, err := promplugin.New(reg, promplugin.Options{Namespace: "oasengine"})
		if err != nil {
			return nil, err
		}
		opts = append(opts, engine.WithPlugins(prom))
		if onResponse != nil {
			onResponse = prom.ObserveResponseValidation(onResponse)
		}
	}
	if onResponse != nil {
		opts = append(opts, engine.WithResponseValidation(onResponse))
	}

	if flags.Trace {
		s.tracer = sdktrace.NewTracerProvider(sdktrace.WithSyncer(&logExporter{logger: logger}))
		s.shutdown = append(s.shutdown, s.tracer.Shutdown)
		opts = append(opts, engine.WithPlugins(otelplugin.New(s.tracer)))
	}

	eng, err := engine.Compile(doc, opts...)
	if err != nil {
		return nil, fmt.Errorf("compiling contract: %w", err)
	}

	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(middleware.Heartbeat("/healthz"))
	if flags.Metrics {
		r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg}))
	}
	r.Handle("/*", eng.Middleware(http.HandlerFunc(notFound)))
	s.handler = r
	return s, nil
}

func (s *server) run(ctx context.Context, addr string, grace time.Duration) error {
	hs := &http.Server{
		Addr:              addr,
		Handler:           s.handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errc := make(chan error, 1)
	go func() {
		s.logger.Info("serving contract", "addr", addr)
		errc <- hs.ListenAndServe()
	}()

	select {
	case err := <-errc:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	s.logger.Info("shutting down", "grace", grace.String())
	sctx, cancel := context.WithTimeout(context.Background(), grace)
	defer cancel()
	err := hs.Shutdown(sctx)
	for _, fn := range s.shutdown {
		err = errors.Join(err, fn(sctx))
	}
	return err
}

// notFound answers requests that match no operation with the engine's error
// body shape.
func notFound(w http.ResponseWriter, r *http.Request) {
	engine.WriteError(w, r, &oaserrors.HTTPError{Status: http.StatusNotFound, Message: "No operation matches " + r.Method + " " + r.URL.Path})
}

func splitList(s string) []string {
	if s == "" {
		return nil
	}
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

// logExporter logs finished spans.
type logExporter struct {
	logger parser.Logger
}

func (e *logExporter) ExportSpans(_ context.Context, spans []sdktrace.ReadOnlySpan) error {
	for _, sp := range spans {
		e.logger.Info("span",
			"name", sp.Name(),
			"trace_id", sp.SpanContext().TraceID().String(),
			"span_id", sp.SpanContext().SpanID().String(),
			"duration", sp.EndTime().Sub(sp.StartTime()).String(),
			"status", sp.Status().Code.String(),
			"events", len(sp.Events()),
		)
	}
	return nil
}

func (e *logExporter) Shutdown(context.Context) error { return nil }
