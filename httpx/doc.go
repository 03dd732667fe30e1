// Package httpx adapts aegis control rejections to the HTTP transport
// boundary: it maps tagged error kinds to response statuses (429 with a
// numeric Retry-After for rate limiting, 503 for breaker and bulkhead
// rejections) and serves the read-only stats, readiness, and administrative
// reset endpoints for a registry of pipelines.
package httpx
