package aegis

import (
	"context"
	"errors"
	"testing"
)

func TestDoWithoutOptions(t *testing.T) {
	got, err := Do(context.Background(), func(context.Context) (int, error) {
		return 42, nil
	})

	if err != nil {
		t.Fatalf("Do() = %v, want nil", err)
	}
	if got != 42 {
		t.Fatalf("Do() = %d, want 42", got)
	}
}

func TestDoPropagatesError(t *testing.T) {
	_, err := Do(context.Background(), func(context.Context) (int, error) {
		return 0, errDownstream
	})

	if !errors.Is(err, errDownstream) {
		t.Fatalf("Do() = %v, want downstream error", err)
	}
}

func TestDoWithRetry(t *testing.T) {
	invocations := 0

	got, err := Do(
		context.Background(),
		func(context.Context) (string, error) {
			invocations++
			if invocations < 2 {
				return "", errDownstream
			}
			return "ok", nil
		},
		WithClock(newInstantClock()),
		WithRetry(MaxRetries(2)),
	)

	if err != nil || got != "ok" {
		t.Fatalf("Do() = (%q, %v), want (ok, nil)", got, err)
	}
	if invocations != 2 {
		t.Fatalf("invocations = %d, want 2", invocations)
	}
}

func TestDoNotRegistered(t *testing.T) {
	before := len(DefaultRegistry().Stats())

	Do(context.Background(), func(context.Context) (int, error) {
		return 0, nil
	})

	if got := len(DefaultRegistry().Stats()); got != before {
		t.Fatal("anonymous Do registered a pipeline")
	}
}

func TestDoWithFallback(t *testing.T) {
	got, err := Do(
		context.Background(),
		func(context.Context) (string, error) {
			return "", errDownstream
		},
		WithFallback("default"),
	)

	if err != nil || got != "default" {
		t.Fatalf("Do() = (%q, %v), want (default, nil)", got, err)
	}
}
