package engine

import (
	"fmt"

	"github.com/erraggy/oasengine/parser"
)

// Plugin is any value implementing at least one of the hook interfaces
// below. Hooks run in the order plugins were installed.
type Plugin any

// PreCompiler may rewrite the contract before it is compiled.
type PreCompiler interface {
	PreCompile(doc *parser.Document) error
}

// PreRouter runs before the request is routed.
type PreRouter interface {
	PreRouting(ctx *Context) error
}

// PostRouter runs once the operation is known.
type PostRouter interface {
	PostRouting(ctx *Context) error
}

// PostSecurer runs after authentication succeeded.
type PostSecurer interface {
	PostSecurity(ctx *Context) error
}

// PostControllerHook runs after the handler. It may change the response
// even though the response has ended.
type PostControllerHook interface {
	PostController(ctx *Context) error
}

// PostResponseValidator runs after response validation.
type PostResponseValidator interface {
	PostResponseValidation(ctx *Context) error
}

// Finisher is called once per handled request with the outcome that Run
// returns. It cannot change the outcome.
type Finisher interface {
	Finish(ctx *Context, res *Result, err error)
}

func isPlugin(p Plugin) bool {
	switch p.(type) {
	case PreCompiler, PreRouter, PostRouter, PostSecurer, PostControllerHook, PostResponseValidator, Finisher:
		return true
	default:
		return false
	}
}

// phase names a request hook point.
type phase string

const (
	phasePreRouting             phase = "preRouting"
	phasePostRouting            phase = "postRouting"
	phasePostSecurity           phase = "postSecurity"
	phasePostController         phase = "postController"
	phasePostResponseValidation phase = "postResponseValidation"
)

// runHooks calls the hook for ph on every plugin that has one.
func runHooks(plugins []Plugin, ph phase, ctx *Context) error {
	for _, p := range plugins {
		var err error
		switch ph {
		case phasePreRouting:
			if h, ok := p.(PreRouter); ok {
				err = h.PreRouting(ctx)
			}
		case phasePostRouting:
			if h, ok := p.(PostRouter); ok {
				err = h.PostRouting(ctx)
			}
		case phasePostSecurity:
			if h, ok := p.(PostSecurer); ok {
				err = h.PostSecurity(ctx)
			}
		case phasePostController:
			if h, ok := p.(PostControllerHook); ok {
				err = h.PostController(ctx)
			}
		case phasePostResponseValidation:
			if h, ok := p.(PostResponseValidator); ok {
				err = h.PostResponseValidation(ctx)
			}
		}
		if err != nil {
			return fmt.Errorf("%s hook: %w", ph, err)
		}
	}
	return nil
}

func preCompile(plugins []Plugin, doc *parser.Document) error {
	for _, p := range plugins {
		if h, ok := p.(PreCompiler); ok {
			if err := h.PreCompile(doc); err != nil {
				return fmt.Errorf("preCompile hook: %w", err)
			}
		}
	}
	return nil
}
