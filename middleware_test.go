package aegis

import (
	"context"
	"testing"
)

// tagMW appends the given tag to trace when the wrapped call runs.
func tagMW(tag string, trace *[]string) Middleware[int] {
	return func(next func(context.Context) (int, error)) func(context.Context) (int, error) {
		return func(ctx context.Context) (int, error) {
			*trace = append(*trace, tag)
			return next(ctx)
		}
	}
}

func TestChainAppliesInOrder(t *testing.T) {
	var trace []string

	chain := Chain[int](
		tagMW("outer", &trace),
		tagMW("middle", &trace),
		tagMW("inner", &trace),
	)

	fn := chain(func(context.Context) (int, error) {
		trace = append(trace, "fn")
		return 42, nil
	})

	got, err := fn(context.Background())
	if err != nil {
		t.Fatalf("fn() = %v, want nil", err)
	}
	if got != 42 {
		t.Fatalf("fn() = %d, want 42", got)
	}

	want := []string{"outer", "middle", "inner", "fn"}
	if len(trace) != len(want) {
		t.Fatalf("trace = %v, want %v", trace, want)
	}
	for i := range want {
		if trace[i] != want[i] {
			t.Fatalf("trace[%d] = %q, want %q", i, trace[i], want[i])
		}
	}
}

func TestChainEmptyIsIdentity(t *testing.T) {
	chain := Chain[string]()

	fn := chain(func(context.Context) (string, error) {
		return "ok", nil
	})

	got, err := fn(context.Background())
	if err != nil || got != "ok" {
		t.Fatalf("fn() = (%q, %v), want (ok, nil)", got, err)
	}
}

func TestChainShortCircuit(t *testing.T) {
	var trace []string

	stop := Middleware[int](func(func(context.Context) (int, error)) func(context.Context) (int, error) {
		return func(context.Context) (int, error) {
			trace = append(trace, "stop")
			return 0, errDownstream
		}
	})

	chain := Chain[int](tagMW("outer", &trace), stop, tagMW("inner", &trace))

	fn := chain(func(context.Context) (int, error) {
		trace = append(trace, "fn")
		return 1, nil
	})

	_, err := fn(context.Background())
	if err == nil {
		t.Fatal("fn() = nil, want error from short-circuiting middleware")
	}

	// Nothing past the short-circuit runs.
	want := []string{"outer", "stop"}
	if len(trace) != len(want) {
		t.Fatalf("trace = %v, want %v", trace, want)
	}
}
