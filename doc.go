// Package aegis wraps calls to unreliable downstream dependencies with
// composable fault-tolerance controls: sliding-window rate limiting, bulkhead
// concurrency isolation, circuit breaking, bounded retry with backoff,
// per-attempt timeouts, and fallbacks.
//
// The central type is Pipeline[T], which chains the controls around a single
// function call and exposes per-component stats snapshots, health reporting,
// and an administrative reset.
package aegis
