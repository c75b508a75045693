package concord

import (
	"context"
)

// Call is one RPC invocation as seen by interceptors and handlers.
// Args are in declared parameter order; a missing optional argument is nil.
type Call struct {
	Class   string
	Method  string
	Context Context
	Args    []any
}

// EndpointID returns "Class.method".
func (c *Call) EndpointID() string {
	return c.Class + "." + c.Method
}

// HandlerFunc represents the next handler in an interceptor chain.
type HandlerFunc func(ctx context.Context, call *Call) (any, error)

// UnaryInterceptor wraps handler execution.
//
//	func timing(ctx context.Context, call *concord.Call, next concord.HandlerFunc) (any, error) {
//	    start := time.Now()
//	    res, err := next(ctx, call)
//	    log.Printf("%s took %v", call.EndpointID(), time.Since(start))
//	    return res, err
//	}
//
// Interceptors run after request validation and context extraction, so they
// see validated arguments and the merged context. They may short-circuit by
// returning an error; the error is classified like a handler error.
type UnaryInterceptor func(ctx context.Context, call *Call, next HandlerFunc) (any, error)

// chainInterceptors combines multiple interceptors into a single one.
// The first interceptor in the slice is the outer-most one (runs first).
func chainInterceptors(interceptors []UnaryInterceptor) UnaryInterceptor {
	if len(interceptors) == 0 {
		return nil
	}
	if len(interceptors) == 1 {
		return interceptors[0]
	}
	return func(ctx context.Context, call *Call, handler HandlerFunc) (any, error) {
		chain := handler
		for i := len(interceptors) - 1; i >= 0; i-- {
			current, next := interceptors[i], chain
			chain = func(ctx context.Context, call *Call) (any, error) {
				return current(ctx, call, next)
			}
		}
		return chain(ctx, call)
	}
}
