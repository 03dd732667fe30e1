package aegis

import (
	"time"

	"go.uber.org/zap"
)

// LoggingHooks returns a [Hooks] value that logs every control lifecycle
// event on the given zap logger with structured fields. A nil logger is
// replaced with a no-op logger. Stack it with user callbacks and
// [MetricsHooks] via [CombineHooks].
func LoggingHooks(logger *zap.Logger) *Hooks {
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Hooks{
		OnRateLimited: func(retryAfter time.Duration) {
			logger.Warn("admission rate limited",
				zap.Duration("retry_after", retryAfter),
			)
		},
		OnBulkheadQueued: func(pool string, depth int) {
			logger.Debug("bulkhead call queued",
				zap.String("pool", pool),
				zap.Int("queue_depth", depth),
			)
		},
		OnBulkheadFull: func(pool string) {
			logger.Warn("bulkhead queue full",
				zap.String("pool", pool),
			)
		},
		OnBulkheadTimeout: func(pool string, waited time.Duration) {
			logger.Warn("bulkhead wait timed out",
				zap.String("pool", pool),
				zap.Duration("waited", waited),
			)
		},
		OnBulkheadAcquired: func(pool string) {
			logger.Debug("bulkhead slot acquired",
				zap.String("pool", pool),
			)
		},
		OnBulkheadReleased: func(pool string) {
			logger.Debug("bulkhead slot released",
				zap.String("pool", pool),
			)
		},
		OnCircuitChange: func(from, to State) {
			logger.Warn("circuit breaker state change",
				zap.Stringer("from", from),
				zap.Stringer("to", to),
			)
		},
		OnCircuitRejected: func() {
			logger.Warn("call rejected by open circuit")
		},
		OnRetry: func(attempt int, delay time.Duration, err error) {
			logger.Info("retrying after failure",
				zap.Int("attempt", attempt),
				zap.Duration("delay", delay),
				zap.Error(err),
			)
		},
		OnTimeout: func() {
			logger.Warn("call attempt timed out")
		},
		OnFallbackUsed: func(err error) {
			logger.Warn("fallback value served",
				zap.Error(err),
			)
		},
	}
}
