package aegis

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	json "github.com/goccy/go-json"
	"gopkg.in/yaml.v3"
)

type (
	// configFile is the top-level config structure.
	configFile struct {
		Pipelines map[string]PipelineConfig `json:"pipelines" yaml:"pipelines"`
	}

	// PipelineConfig holds the decoded configuration for a single pipeline.
	// Export it to embed in your own app config structs for JSON or YAML
	// unmarshaling, then call [BuildOptions] to obtain functional options
	// for [NewPipeline].
	PipelineConfig struct {
		// RateLimit configures the sliding-window admission gate.
		// Optional. Example: {"max_requests": 10, "window": "60s"}.
		RateLimit *RateLimitConfig `json:"rate_limit,omitempty" yaml:"rate_limit,omitempty"`
		// Bulkhead configures the concurrency limiter.
		// Optional. Example: {"max_concurrent": 10, "max_wait": "5s"}.
		Bulkhead *BulkheadConfig `json:"bulkhead,omitempty" yaml:"bulkhead,omitempty"`
		// CircuitBreaker configures the circuit breaker.
		// Optional. Example: {"failure_threshold": 5}.
		CircuitBreaker *CircuitBreakerConfig `json:"circuit_breaker,omitempty" yaml:"circuit_breaker,omitempty"`
		// Retry configures the retry policy.
		// Optional. Example: {"max_retries": 3, "initial_delay": "1s"}.
		Retry *RetryConfig `json:"retry,omitempty" yaml:"retry,omitempty"`
		// Timeout is the per-attempt deadline on the downstream call.
		// Optional. Parsed via time.ParseDuration. Example: "2s".
		Timeout *string `json:"timeout,omitempty" yaml:"timeout,omitempty"`
	}

	// RateLimitConfig holds rate limiter configuration values.
	RateLimitConfig struct {
		// MaxRequests is the admission cap per window. Optional.
		MaxRequests *int `json:"max_requests,omitempty" yaml:"max_requests,omitempty"`
		// Window is the sliding window duration.
		// Optional. Parsed via time.ParseDuration. Example: "60s".
		Window *string `json:"window,omitempty" yaml:"window,omitempty"`
	}

	// BulkheadConfig holds bulkhead configuration values.
	BulkheadConfig struct {
		// Pool names the isolated resource pool; defaults to the pipeline
		// name. Optional.
		Pool *string `json:"pool,omitempty" yaml:"pool,omitempty"`
		// MaxConcurrent is the in-flight call cap. Optional.
		MaxConcurrent *int `json:"max_concurrent,omitempty" yaml:"max_concurrent,omitempty"`
		// MaxQueueSize bounds the pending-call queue. Optional.
		MaxQueueSize *int `json:"max_queue_size,omitempty" yaml:"max_queue_size,omitempty"`
		// MaxWait is the queued-call deadline.
		// Optional. Parsed via time.ParseDuration. Example: "5s".
		MaxWait *string `json:"max_wait,omitempty" yaml:"max_wait,omitempty"`
	}

	// CircuitBreakerConfig holds circuit breaker configuration values.
	CircuitBreakerConfig struct {
		// FailureThreshold is the number of consecutive failures before
		// opening. Optional.
		FailureThreshold *int `json:"failure_threshold,omitempty" yaml:"failure_threshold,omitempty"`
		// ResetTimeout is the duration the breaker stays open.
		// Optional. Parsed via time.ParseDuration. Example: "30s".
		ResetTimeout *string `json:"reset_timeout,omitempty" yaml:"reset_timeout,omitempty"`
		// HalfOpenSuccesses is the number of successful probes needed to
		// close from half-open. Optional.
		HalfOpenSuccesses *int `json:"half_open_successes,omitempty" yaml:"half_open_successes,omitempty"`
	}

	// RetryConfig holds retry configuration values.
	RetryConfig struct {
		// MaxRetries is the number of re-invocations after the first
		// attempt. Optional.
		MaxRetries *int `json:"max_retries,omitempty" yaml:"max_retries,omitempty"`
		// InitialDelay is the delay before the first retry.
		// Optional. Parsed via time.ParseDuration. Example: "1s".
		InitialDelay *string `json:"initial_delay,omitempty" yaml:"initial_delay,omitempty"`
		// BackoffMultiplier is the geometric growth factor. Optional.
		BackoffMultiplier *float64 `json:"backoff_multiplier,omitempty" yaml:"backoff_multiplier,omitempty"`
		// MaxDelay caps the delay between attempts.
		// Optional. Parsed via time.ParseDuration. Example: "10s".
		MaxDelay *string `json:"max_delay,omitempty" yaml:"max_delay,omitempty"`
		// Backoff selects the delay strategy.
		// Optional. One of: "exponential" (default), "constant",
		// "exponential_jitter".
		Backoff *string `json:"backoff,omitempty" yaml:"backoff,omitempty"`
	}
)

// LoadConfig reads a JSON or YAML configuration file (selected by file
// extension: .yaml/.yml for YAML, anything else JSON) and stores the
// pipeline configurations in a [Registry]. Actual [Pipeline] instances are
// not created until [GetPipeline] is called, allowing the caller to provide
// type parameters and additional code-level options.
//
// Duration values are parsed using [time.ParseDuration].
func LoadConfig(path string) (*Registry, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("aegis: read config: %w", err)
	}

	var cfg configFile

	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		err = yaml.Unmarshal(data, &cfg)
	default:
		err = json.Unmarshal(data, &cfg)
	}

	if err != nil {
		return nil, fmt.Errorf("aegis: parse config: %w", err)
	}

	// Validate all pipelines eagerly so errors surface at load time.
	for name, pc := range cfg.Pipelines {
		if _, buildErr := BuildOptions(&pc); buildErr != nil {
			return nil, fmt.Errorf("aegis: pipeline %q: %w", name, buildErr)
		}
	}

	reg := NewRegistry()
	reg.mu.Lock()
	reg.configs = cfg.Pipelines
	reg.mu.Unlock()

	return reg, nil
}

// BuildOptions converts a [PipelineConfig] into a slice of functional option
// values suitable for [NewPipeline]. Use this when you embed
// [PipelineConfig] in your own config struct and want to build a pipeline
// without going through [LoadConfig].
func BuildOptions(pc *PipelineConfig) ([]any, error) {
	var opts []any

	if pc.RateLimit != nil {
		rlOpts, err := buildRateLimitOptions(pc.RateLimit)
		if err != nil {
			return nil, err
		}

		opts = append(opts, WithRateLimit(rlOpts...))
	}

	if pc.Bulkhead != nil {
		bhOpts, err := buildBulkheadOptions(pc.Bulkhead)
		if err != nil {
			return nil, err
		}

		if pc.Bulkhead.Pool != nil {
			opts = append(
				opts,
				WithBulkheadPool(*pc.Bulkhead.Pool, bhOpts...),
			)
		} else {
			opts = append(opts, WithBulkhead(bhOpts...))
		}
	}

	if pc.CircuitBreaker != nil {
		cbOpts, err := buildCircuitBreakerOptions(pc.CircuitBreaker)
		if err != nil {
			return nil, err
		}

		opts = append(opts, WithCircuitBreaker(cbOpts...))
	}

	if pc.Retry != nil {
		retryOpts, err := buildRetryOptions(pc.Retry)
		if err != nil {
			return nil, err
		}

		opts = append(opts, WithRetry(retryOpts...))
	}

	if pc.Timeout != nil {
		d, err := time.ParseDuration(*pc.Timeout)
		if err != nil {
			return nil, fmt.Errorf("timeout: %w", err)
		}

		opts = append(opts, WithTimeout(d))
	}

	return opts, nil
}

func buildRateLimitOptions(rc *RateLimitConfig) ([]RateLimiterOption, error) {
	var opts []RateLimiterOption

	if rc.MaxRequests != nil {
		opts = append(opts, MaxRequests(*rc.MaxRequests))
	}

	if rc.Window != nil {
		d, err := time.ParseDuration(*rc.Window)
		if err != nil {
			return nil, fmt.Errorf("rate_limit.window: %w", err)
		}

		opts = append(opts, Window(d))
	}

	return opts, nil
}

func buildBulkheadOptions(bc *BulkheadConfig) ([]BulkheadOption, error) {
	var opts []BulkheadOption

	if bc.MaxConcurrent != nil {
		opts = append(opts, MaxConcurrent(*bc.MaxConcurrent))
	}

	if bc.MaxQueueSize != nil {
		opts = append(opts, MaxQueueSize(*bc.MaxQueueSize))
	}

	if bc.MaxWait != nil {
		d, err := time.ParseDuration(*bc.MaxWait)
		if err != nil {
			return nil, fmt.Errorf("bulkhead.max_wait: %w", err)
		}

		opts = append(opts, MaxWait(d))
	}

	return opts, nil
}

func buildCircuitBreakerOptions(
	cc *CircuitBreakerConfig,
) ([]CircuitBreakerOption, error) {
	var opts []CircuitBreakerOption

	if cc.FailureThreshold != nil {
		opts = append(opts, FailureThreshold(*cc.FailureThreshold))
	}

	if cc.ResetTimeout != nil {
		d, err := time.ParseDuration(*cc.ResetTimeout)
		if err != nil {
			return nil, fmt.Errorf("circuit_breaker.reset_timeout: %w", err)
		}

		opts = append(opts, ResetTimeout(d))
	}

	if cc.HalfOpenSuccesses != nil {
		opts = append(opts, HalfOpenSuccesses(*cc.HalfOpenSuccesses))
	}

	return opts, nil
}

func buildRetryOptions(rc *RetryConfig) ([]RetryOption, error) {
	var opts []RetryOption

	initialDelay := time.Second
	multiplier := 2.0

	if rc.MaxRetries != nil {
		opts = append(opts, MaxRetries(*rc.MaxRetries))
	}

	if rc.InitialDelay != nil {
		d, err := time.ParseDuration(*rc.InitialDelay)
		if err != nil {
			return nil, fmt.Errorf("retry.initial_delay: %w", err)
		}

		initialDelay = d

		opts = append(opts, InitialDelay(d))
	}

	if rc.BackoffMultiplier != nil {
		multiplier = *rc.BackoffMultiplier

		opts = append(opts, BackoffMultiplier(multiplier))
	}

	if rc.MaxDelay != nil {
		d, err := time.ParseDuration(*rc.MaxDelay)
		if err != nil {
			return nil, fmt.Errorf("retry.max_delay: %w", err)
		}

		opts = append(opts, MaxRetryDelay(d))
	}

	if rc.Backoff != nil {
		strategy, err := parseBackoffStrategy(
			*rc.Backoff,
			initialDelay,
			multiplier,
		)
		if err != nil {
			return nil, fmt.Errorf("retry.backoff: %w", err)
		}

		opts = append(opts, RetryBackoff(strategy))
	}

	return opts, nil
}

// parseBackoffStrategy maps a strategy name to a BackoffStrategy built from
// the retry delay parameters.
//
//nolint:ireturn // callers select the strategy by name, not a concrete type
func parseBackoffStrategy(
	name string,
	base time.Duration,
	factor float64,
) (BackoffStrategy, error) {
	switch name {
	case "constant":
		return ConstantBackoff(base), nil
	case "exponential":
		return ExponentialBackoff(base, factor), nil
	case "exponential_jitter":
		return ExponentialJitterBackoff(base, factor), nil
	default:
		return nil, fmt.Errorf("unknown backoff strategy: %q", name)
	}
}

// GetPipeline retrieves a named pipeline configuration from a config-loaded
// [Registry] and returns a typed [Pipeline] ready for use with
// [Pipeline.Do]. If the name is not found in the stored configs, a bare
// pipeline is created with only the provided opts.
//
// Additional options can be provided to augment or override the
// config-loaded settings (e.g., adding hooks, a custom clock, or a shared
// bulkhead manager). User-provided options are applied after config options,
// so they take precedence.
func GetPipeline[T any](reg *Registry, name string, opts ...any) *Pipeline[T] {
	reg.mu.Lock()
	pc, ok := reg.configs[name]
	reg.mu.Unlock()

	var allOpts []any

	allOpts = append(allOpts, WithRegistry(reg))

	if ok {
		configOpts, err := BuildOptions(&pc)
		if err == nil {
			allOpts = append(allOpts, configOpts...)
		}
	}

	// User opts come last so they can override config values.
	allOpts = append(allOpts, opts...)

	return NewPipeline[T](name, allOpts...)
}
