package engine

import (
	"io"
	"net/http"
)

// responseState tracks whether a Response may still be changed.
type responseState int

const (
	// stateBuilding accepts every mutation.
	stateBuilding responseState = iota
	// stateEnded rejects mutation.
	stateEnded
	// stateEndedMutable is an ended response during the post-controller
	// plugin phase, which may still change it.
	stateEndedMutable
)

// Response is the response a handler builds. Once End is called, further
// changes fail and are reported by the runner as a fatal error.
type Response struct {
	state  responseState
	status int
	header http.Header
	body   any
	err    error
}

func newResponse() *Response {
	return &Response{status: http.StatusOK, header: make(http.Header)}
}

// mutable records errResponseEnded when the response may not be changed.
func (r *Response) mutable() bool {
	if r.state == stateEnded {
		if r.err == nil {
			r.err = errResponseEnded
		}
		return false
	}
	return true
}

// Status returns the status code (200 unless set).
func (r *Response) Status() int {
	return r.status
}

// SetStatus sets the status code.
func (r *Response) SetStatus(code int) *Response {
	if r.mutable() {
		r.status = code
	}
	return r
}

// Header returns a copy of the response headers.
func (r *Response) Header() http.Header {
	return r.header.Clone()
}

// SetHeader replaces a response header.
func (r *Response) SetHeader(key, value string) *Response {
	if r.mutable() {
		r.header.Set(key, value)
	}
	return r
}

// AddHeader appends a value to a response header.
func (r *Response) AddHeader(key, value string) *Response {
	if r.mutable() {
		r.header.Add(key, value)
	}
	return r
}

// Body returns the body set so far.
func (r *Response) Body() any {
	return r.body
}

// SetBody sets the body without changing the content type. Strings, byte
// slices and readers are sent as is; other values are encoded as JSON.
func (r *Response) SetBody(body any) *Response {
	if r.mutable() {
		r.body = body
	}
	return r
}

// JSON sets a JSON body and ends the response.
func (r *Response) JSON(v any) {
	r.SetHeader("Content-Type", "application/json").SetBody(v).End()
}

// Text sets a text/plain body and ends the response.
func (r *Response) Text(s string) {
	r.SetHeader("Content-Type", "text/plain").SetBody(s).End()
}

// Bytes sets a binary body with the given content type and ends the response.
func (r *Response) Bytes(contentType string, b []byte) {
	r.SetHeader("Content-Type", contentType).SetBody(b).End()
}

// Stream sends the content of rd and ends the response.
func (r *Response) Stream(contentType string, rd io.Reader) {
	r.SetHeader("Content-Type", contentType).SetBody(rd).End()
}

// End marks the response complete. Ending twice is harmless.
func (r *Response) End() {
	if r.state == stateBuilding {
		r.state = stateEnded
	}
}

// Ended reports whether End was called.
func (r *Response) Ended() bool {
	return r.state != stateBuilding
}

// Err returns the first error caused by changing an ended response.
func (r *Response) Err() error {
	return r.err
}

// unlock opens the post-controller mutation window on an ended response.
func (r *Response) unlock() {
	if r.state == stateEnded {
		r.state = stateEndedMutable
	}
}

// lock closes the mutation window.
func (r *Response) lock() {
	r.state = stateEnded
}
