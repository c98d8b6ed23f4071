package engine

import "fmt"

// Handler is the business logic behind one operation. It is either a
// ValueHandler or a WriterHandler.
type Handler interface {
	isHandler()
}

// ValueHandler returns the response body. A nil value leaves the response
// body empty; a value returned after the handler ended the response itself
// is ignored.
type ValueHandler func(ctx *Context) (any, error)

// WriterHandler writes the response through ctx.Res.
type WriterHandler func(ctx *Context) error

func (ValueHandler) isHandler()  {}
func (WriterHandler) isHandler() {}

// Controller maps operation IDs to handlers. The engine picks the controller
// named by the x-controller extension in effect for an operation.
type Controller map[string]Handler

// invoke runs h and normalizes both variants to a value/error pair.
func invoke(h Handler, ctx *Context) (any, error) {
	switch h := h.(type) {
	case ValueHandler:
		return h(ctx)
	case WriterHandler:
		return nil, h(ctx)
	default:
		return nil, fmt.Errorf("engine: unsupported handler type %T", h)
	}
}
