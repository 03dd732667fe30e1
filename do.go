package aegis

import "context"

// Do is a convenience function that wraps a single function call with
// controls without creating a named [Pipeline]. It creates an anonymous
// pipeline internally and calls [Pipeline.Do]. The pipeline is not
// registered with any [Registry].
func Do[T any](
	ctx context.Context,
	fn func(context.Context) (T, error),
	opts ...any,
) (T, error) {
	p := NewPipeline[T]("", opts...)

	return p.Do(ctx, fn)
}
