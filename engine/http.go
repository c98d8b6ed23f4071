package engine

import "net/http"

// ServeHTTP implements http.Handler. Requests the contract does not handle
// get a 404.
func (e *Engine) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	e.serve(w, r, http.NotFoundHandler())
}

// Middleware returns a handler that serves the contract's requests and
// passes everything else to next.
func (e *Engine) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		e.serve(w, r, next)
	})
}

func (e *Engine) serve(w http.ResponseWriter, r *http.Request, next http.Handler) {
	res, err := e.Run(r)
	if err != nil {
		e.cfg.logger.Error("request failed",
			"method", r.Method,
			"path", r.URL.Path,
			"error", err.Error(),
		)
		e.cfg.errorHandler(w, r, err)
		return
	}
	if res == nil {
		next.ServeHTTP(w, r)
		return
	}
	if err := res.Write(w); err != nil {
		e.cfg.logger.Warn("writing response failed", "path", r.URL.Path, "error", err.Error())
	}
}
