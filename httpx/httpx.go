package httpx

import (
	"errors"
	"math"
	"net/http"
	"strconv"

	json "github.com/goccy/go-json"

	"github.com/aegixlabs/aegis"
)

// StatusFromError maps a pipeline error to an HTTP status code: 429 for
// rate limiting, 503 for bulkhead and circuit rejections, 504 for a
// per-attempt timeout, and 502 for any downstream failure. A nil error maps
// to 200.
func StatusFromError(err error) int {
	if err == nil {
		return http.StatusOK
	}

	switch aegis.KindOf(err) {
	case aegis.KindRateLimited:
		return http.StatusTooManyRequests
	case aegis.KindBulkheadFull,
		aegis.KindBulkheadTimeout,
		aegis.KindCircuitOpen:
		return http.StatusServiceUnavailable
	case aegis.KindTimeout:
		return http.StatusGatewayTimeout
	default:
		return http.StatusBadGateway
	}
}

// errorBody is the JSON error payload.
type errorBody struct {
	Error      string  `json:"error"`
	Kind       string  `json:"kind"`
	RetryAfter float64 `json:"retry_after_seconds,omitempty"`
}

// WriteError writes err as a JSON error response with the status from
// [StatusFromError]. Rate-limit rejections additionally carry a Retry-After
// header with the wait in whole seconds, rounded up so a compliant client
// never retries early.
func WriteError(w http.ResponseWriter, err error) {
	status := StatusFromError(err)
	kind := aegis.KindOf(err)

	body := errorBody{
		Error: err.Error(),
		Kind:  kind.String(),
	}

	var ce *aegis.Error
	if errors.As(err, &ce) && ce.RetryAfter > 0 {
		seconds := math.Ceil(ce.RetryAfter.Seconds())
		body.RetryAfter = seconds
		w.Header().Set(
			"Retry-After",
			strconv.Itoa(int(seconds)),
		)
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	//nolint:errcheck // best-effort JSON encoding to HTTP response
	_ = json.NewEncoder(w).Encode(body)
}

// StatsHandler returns an [http.Handler] that reports the stats snapshots
// of every pipeline registered with reg as a JSON array.
func StatsHandler(reg *aegis.Registry) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")

		//nolint:errcheck // best-effort JSON encoding to HTTP response
		_ = json.NewEncoder(w).Encode(reg.Stats())
	})
}

// ReadinessHandler returns an [http.Handler] that reports the readiness of
// all pipelines registered with reg. It responds with 200 OK when no
// pipeline is critically unhealthy, and 503 Service Unavailable otherwise.
// The response body is always a JSON-encoded [aegis.ReadinessStatus].
func ReadinessHandler(reg *aegis.Registry) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		status := reg.CheckReadiness()

		w.Header().Set("Content-Type", "application/json")

		if status.Ready {
			w.WriteHeader(http.StatusOK)
		} else {
			w.WriteHeader(http.StatusServiceUnavailable)
		}

		//nolint:errcheck // best-effort JSON encoding to HTTP response
		_ = json.NewEncoder(w).Encode(status)
	})
}

// ResetHandler returns an [http.Handler] for the administrative reset: a
// POST resets every registered pipeline (breakers forced closed, queues
// drained, counters and admission history cleared) and responds 204. Other
// methods get 405.
func ResetHandler(reg *aegis.Registry) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			w.Header().Set("Allow", http.MethodPost)
			w.WriteHeader(http.StatusMethodNotAllowed)

			return
		}

		reg.ResetAll()
		w.WriteHeader(http.StatusNoContent)
	})
}
