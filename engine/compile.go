package engine

import (
	"fmt"
	"strings"

	"github.com/erraggy/oasengine/internal/httputil"
	"github.com/erraggy/oasengine/internal/pathtemplate"
	"github.com/erraggy/oasengine/oaserrors"
	"github.com/erraggy/oasengine/parser"
)

// Engine serves requests for a compiled contract. It is immutable after
// construction and safe for concurrent use.
//
// Create an Engine with New:
//
//	eng, err := engine.New(
//	    engine.WithFilePath("openapi.yaml"),
//	    engine.WithHandler("listPets", engine.ValueHandler(listPets)),
//	)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	http.ListenAndServe(":8080", eng)
type Engine struct {
	doc        *parser.Document
	cfg        *config
	servers    []*serverMatcher
	paths      *pathtemplate.Resolver[*pathEntry]
	operations []*Operation
}

// pathEntry is one contract path with its operations.
type pathEntry struct {
	template string
	ops      map[string]*Operation
	allow    string
}

// New compiles the contract given by WithDocument or WithFilePath.
func New(opts ...Option) (*Engine, error) {
	cfg, err := applyOptions(opts...)
	if err != nil {
		return nil, fmt.Errorf("engine: invalid options: %w", err)
	}
	doc := cfg.doc
	switch {
	case doc != nil && cfg.filePath != "":
		return nil, &oaserrors.ConfigError{Message: "must specify exactly one contract source"}
	case doc == nil && cfg.filePath == "":
		return nil, &oaserrors.ConfigError{Message: "must specify a contract source (use WithDocument or WithFilePath)"}
	case doc == nil:
		doc, err = parser.ParseWithOptions(parser.WithFilePath(cfg.filePath), parser.WithLogger(cfg.logger))
		if err != nil {
			return nil, err
		}
	default:
		doc = doc.Copy()
	}
	return compile(doc, cfg)
}

// Compile compiles doc. It is New with WithDocument(doc).
func Compile(doc *parser.Document, opts ...Option) (*Engine, error) {
	return New(append([]Option{WithDocument(doc)}, opts...)...)
}

func compile(doc *parser.Document, cfg *config) (*Engine, error) {
	if len(cfg.plugins) > 0 {
		if err := preCompile(cfg.plugins, doc); err != nil {
			return nil, err
		}
		if err := doc.Reload(); err != nil {
			return nil, err
		}
	}

	version, err := doc.ParsedVersion()
	if err != nil || !version.IsSupported() {
		return nil, &oaserrors.ConfigError{Option: "openapi", Value: doc.Version, Message: "unsupported OpenAPI version; 3.0.x and 3.1.x are supported", Cause: err}
	}

	servers, err := compileServers(doc.OpenAPI.Servers, cfg.ignoreServers)
	if err != nil {
		return nil, err
	}
	e := &Engine{
		doc:     doc,
		cfg:     cfg,
		servers: servers,
		paths:   pathtemplate.NewResolver[*pathEntry](),
	}

	cc := &compileContext{doc: doc, cfg: cfg}
	for _, template := range doc.PathKeys() {
		if strings.HasPrefix(template, "x-") {
			continue
		}
		if !strings.HasPrefix(template, "/") {
			return nil, &oaserrors.ConfigError{Option: "#/paths", Value: template, Message: "path must begin with /"}
		}
		entry, err := e.compilePath(cc, template)
		if err != nil {
			return nil, err
		}
		if err := e.paths.Add(template, entry); err != nil {
			return nil, &oaserrors.ConfigError{Option: "#/paths", Value: template, Cause: err}
		}
	}

	cfg.logger.Info("compiled contract",
		"source", doc.SourcePath,
		"version", doc.Version,
		"paths", e.paths.Len(),
		"operations", len(e.operations),
	)
	return e, nil
}

func (e *Engine) compilePath(cc *compileContext, template string) (*pathEntry, error) {
	itemPtr := parser.JoinPointer("#/paths", template)
	var item parser.PathItem
	itemPtr, err := e.doc.Decode(itemPtr, &item)
	if err != nil {
		return nil, err
	}

	entry := &pathEntry{template: template, ops: make(map[string]*Operation)}
	allowed := make(map[string]bool)
	ops := item.Operations()
	for _, method := range httputil.Methods {
		op, ok := ops[method]
		if !ok {
			continue
		}
		opPtr := parser.JoinPointer(itemPtr, method)
		compiled, err := cc.compileOperation(template, method, itemPtr, opPtr, &item, op)
		if err != nil {
			return nil, fmt.Errorf("%s %s: %w", strings.ToUpper(method), template, err)
		}
		if err := e.bindHandler(compiled); err != nil {
			return nil, err
		}
		entry.ops[method] = compiled
		allowed[method] = true
		e.operations = append(e.operations, compiled)
	}
	entry.allow = httputil.AllowHeader(allowed)
	return entry, nil
}

// bindHandler finds the handler for o: the controller's entry for the
// operation ID, then the default handler.
func (e *Engine) bindHandler(o *Operation) error {
	if ctrl, ok := e.cfg.controllers[o.Controller]; ok && o.OperationID != "" {
		if h, ok := ctrl[o.OperationID]; ok {
			o.handler = h
			return nil
		}
	}
	if e.cfg.defaultHandler != nil {
		o.handler = e.cfg.defaultHandler
		return nil
	}
	if !e.cfg.allowMissingHandlers {
		return &oaserrors.ConfigError{
			Option:  o.Pointer,
			Value:   o.OperationID,
			Message: fmt.Sprintf("no handler for %s %s in controller %q", strings.ToUpper(o.Method), o.Path, o.Controller),
		}
	}
	e.cfg.logger.Debug("operation has no handler",
		"method", o.Method,
		"path", o.Path,
		"operationId", o.OperationID,
	)
	return nil
}

// Document returns the compiled contract. Callers must not modify it.
func (e *Engine) Document() *parser.Document {
	return e.doc
}

// Operations returns the compiled operations in contract order.
func (e *Engine) Operations() []*Operation {
	return append([]*Operation(nil), e.operations...)
}
