package engine

import (
	"bytes"
	"errors"
	"net/http"

	"github.com/goccy/go-json"

	"github.com/erraggy/oasengine/oaserrors"
)

// errResponseEnded is recorded when a handler or plugin changes a response
// that has already been ended.
var errResponseEnded = errors.New("engine: response already ended")

// ErrorBody is the JSON body written for errors that carry a status.
type ErrorBody struct {
	Message string            `json:"message"`
	Errors  []oaserrors.Issue `json:"errors,omitempty"`
}

// NewErrorBody describes err for a client.
func NewErrorBody(err error) ErrorBody {
	var verr *oaserrors.ValidationError
	if errors.As(err, &verr) {
		return ErrorBody{Message: verr.Message, Errors: verr.Issues}
	}
	var herr *oaserrors.HTTPError
	if errors.As(err, &herr) {
		msg := herr.Message
		if msg == "" {
			msg = http.StatusText(herr.Status)
		}
		return ErrorBody{Message: msg}
	}
	return ErrorBody{Message: err.Error()}
}

// errorResult renders a status-carrying error as a Result.
func errorResult(status int, err error) (*Result, error) {
	buf, jerr := json.Marshal(NewErrorBody(err))
	if jerr != nil {
		return nil, jerr
	}
	header := make(http.Header)
	var herr *oaserrors.HTTPError
	if errors.As(err, &herr) {
		for k, vs := range herr.Header {
			header[k] = append([]string(nil), vs...)
		}
	}
	header.Set("Content-Type", "application/json")
	return &Result{Status: status, Header: header, Body: bytes.NewReader(buf)}, nil
}

// WriteError is the default ErrorHandler. Errors with a status are written as
// JSON error bodies; anything else becomes a generic 500.
func WriteError(w http.ResponseWriter, _ *http.Request, err error) {
	status, ok := oaserrors.StatusOf(err)
	if !ok {
		err = oaserrors.NewHTTPError(http.StatusInternalServerError, "Internal server error")
		status = http.StatusInternalServerError
	}
	res, rerr := errorResult(status, err)
	if rerr != nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}
	_ = res.Write(w)
}
