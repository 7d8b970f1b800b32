package llm

import (
	"context"
	"errors"
	"testing"

	"github.com/rs/zerolog"
)

func TestWrapWithMiddleware_Order(t *testing.T) {
	var calls []string
	base := InvokerFunc(func(ctx context.Context, req *Request) (*Result, error) {
		calls = append(calls, "invoke:"+req.Model)
		return &Result{Answer: "ok"}, nil
	})

	mw := func(name string) Middleware {
		return MiddlewareFunc{
			BeforeRequestFunc: func(ctx context.Context, req *Request) (*Request, error) {
				calls = append(calls, "before:"+name)
				return req, nil
			},
			AfterResultFunc: func(ctx context.Context, req *Request, res *Result) (*Result, error) {
				calls = append(calls, "after:"+name)
				res.Answer += "-" + name
				return res, nil
			},
		}
	}

	inv := WrapWithMiddleware(base, mw("a"), mw("b"))
	res, err := inv.Invoke(context.Background(), &Request{Model: "m"})
	if err != nil {
		t.Fatalf("Invoke failed: %v", err)
	}

	want := []string{"before:a", "before:b", "invoke:m", "after:b", "after:a"}
	if len(calls) != len(want) {
		t.Fatalf("Expected calls %v, got %v", want, calls)
	}
	for i := range want {
		if calls[i] != want[i] {
			t.Errorf("Call %d: expected %q, got %q", i, want[i], calls[i])
		}
	}
	if res.Answer != "ok-b-a" {
		t.Errorf("Expected answer 'ok-b-a', got %q", res.Answer)
	}
}

func TestWrapWithMiddleware_OnError(t *testing.T) {
	cause := errors.New("boom")
	base := InvokerFunc(func(ctx context.Context, req *Request) (*Result, error) {
		return nil, cause
	})

	inv := WrapWithMiddleware(base, LoggingMiddleware("test", zerolog.Nop()))
	_, err := inv.Invoke(context.Background(), &Request{Model: "m"})
	if !errors.Is(err, cause) {
		t.Errorf("Expected original error, got %v", err)
	}
}

func TestWrapWithMiddleware_BeforeRequestAborts(t *testing.T) {
	called := false
	base := InvokerFunc(func(ctx context.Context, req *Request) (*Result, error) {
		called = true
		return &Result{}, nil
	})
	stop := errors.New("stop")
	inv := WrapWithMiddleware(base, MiddlewareFunc{
		BeforeRequestFunc: func(ctx context.Context, req *Request) (*Request, error) {
			return nil, stop
		},
	})

	if _, err := inv.Invoke(context.Background(), &Request{}); !errors.Is(err, stop) {
		t.Errorf("Expected stop error, got %v", err)
	}
	if called {
		t.Error("Expected base invoker not to be called")
	}
}

func TestWrapWithMiddleware_NoMiddleware(t *testing.T) {
	base := InvokerFunc(func(ctx context.Context, req *Request) (*Result, error) {
		return &Result{}, nil
	})
	if inv := WrapWithMiddleware(base); inv == nil {
		t.Fatal("Expected invoker")
	}
}
