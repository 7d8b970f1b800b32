package llm

import (
	"context"
)

// Invoker sends a chat request to a provider and returns the accumulated
// reasoning and answer text. Streaming requests block until the upstream
// stream ends.
type Invoker interface {
	Invoke(ctx context.Context, req *Request) (*Result, error)
}

// InvokerFunc adapts a function to the Invoker interface.
type InvokerFunc func(ctx context.Context, req *Request) (*Result, error)

// Invoke calls f(ctx, req).
func (f InvokerFunc) Invoke(ctx context.Context, req *Request) (*Result, error) {
	return f(ctx, req)
}

// Middleware provides hooks for decorating Invoke calls.
type Middleware interface {
	// BeforeRequest is called before sending a request.
	// It can modify the request or return an error to abort.
	BeforeRequest(ctx context.Context, req *Request) (*Request, error)

	// AfterResult is called after a successful call.
	AfterResult(ctx context.Context, req *Request, res *Result) (*Result, error)

	// OnError is called when an error occurs.
	// It can return a modified error or nil to use the original error.
	OnError(ctx context.Context, req *Request, err error) error
}

// MiddlewareFunc is a function type that implements Middleware.
type MiddlewareFunc struct {
	BeforeRequestFunc func(ctx context.Context, req *Request) (*Request, error)
	AfterResultFunc   func(ctx context.Context, req *Request, res *Result) (*Result, error)
	OnErrorFunc       func(ctx context.Context, req *Request, err error) error
}

// BeforeRequest calls the BeforeRequestFunc if set.
func (f MiddlewareFunc) BeforeRequest(ctx context.Context, req *Request) (*Request, error) {
	if f.BeforeRequestFunc != nil {
		return f.BeforeRequestFunc(ctx, req)
	}
	return req, nil
}

// AfterResult calls the AfterResultFunc if set.
func (f MiddlewareFunc) AfterResult(ctx context.Context, req *Request, res *Result) (*Result, error) {
	if f.AfterResultFunc != nil {
		return f.AfterResultFunc(ctx, req, res)
	}
	return res, nil
}

// OnError calls the OnErrorFunc if set.
func (f MiddlewareFunc) OnError(ctx context.Context, req *Request, err error) error {
	if f.OnErrorFunc != nil {
		return f.OnErrorFunc(ctx, req, err)
	}
	return err
}

// WrapWithMiddleware wraps an Invoker with middleware and returns a new Invoker.
func WrapWithMiddleware(inv Invoker, middleware ...Middleware) Invoker {
	if len(middleware) == 0 {
		return inv
	}
	return &invokerWithMiddleware{
		invoker:    inv,
		middleware: middleware,
	}
}

type invokerWithMiddleware struct {
	invoker    Invoker
	middleware []Middleware
}

// Invoke implements Invoker with middleware support.
func (c *invokerWithMiddleware) Invoke(ctx context.Context, req *Request) (*Result, error) {
	for _, mw := range c.middleware {
		var err error
		req, err = mw.BeforeRequest(ctx, req)
		if err != nil {
			return nil, err
		}
	}

	res, err := c.invoker.Invoke(ctx, req)
	if err != nil {
		for _, mw := range c.middleware {
			if handled := mw.OnError(ctx, req, err); handled != nil {
				err = handled
			}
		}
		return nil, err
	}

	// AfterResult runs in reverse order so the outermost middleware sees the final result
	for i := len(c.middleware) - 1; i >= 0; i-- {
		res, err = c.middleware[i].AfterResult(ctx, req, res)
		if err != nil {
			return nil, err
		}
	}

	return res, nil
}
