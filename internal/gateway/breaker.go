package gateway

import (
	"time"

	"github.com/sony/gobreaker/v2"
	"go.uber.org/zap"
)

// BreakerConfig tunes the circuit breakers shared by all gateway clients.
type BreakerConfig struct {
	// ConsecutiveFailures trips the breaker once reached.
	ConsecutiveFailures uint32
	// OpenTimeout is how long an open breaker short-circuits calls before
	// probing the upstream again.
	OpenTimeout time.Duration
	// HalfOpenRequests is how many probe requests a half-open breaker lets
	// through.
	HalfOpenRequests uint32
}

// DefaultBreakerConfig mirrors the tuning used across the platform's clients.
func DefaultBreakerConfig() BreakerConfig {
	return BreakerConfig{
		ConsecutiveFailures: 5,
		OpenTimeout:         30 * time.Second,
		HalfOpenRequests:    3,
	}
}

// newBreaker builds a typed circuit breaker for one named remote operation.
// State transitions are logged so an open breaker is visible in operations.
func newBreaker[T any](name string, cfg BreakerConfig, lg *zap.Logger) *gobreaker.CircuitBreaker[T] {
	return gobreaker.NewCircuitBreaker[T](gobreaker.Settings{
		Name:        name,
		MaxRequests: cfg.HalfOpenRequests,
		Timeout:     cfg.OpenTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= cfg.ConsecutiveFailures
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			lg.Warn("circuit breaker state change",
				zap.String("breaker", name),
				zap.String("from", from.String()),
				zap.String("to", to.String()),
			)
		},
	})
}

// guard runs fn through the breaker and folds any error, including an open
// breaker, into an Unavailable result.
func guard[T any](cb *gobreaker.CircuitBreaker[T], lg *zap.Logger, fn func() (T, error)) Result[T] {
	v, err := cb.Execute(fn)
	if err != nil {
		lg.Warn("gateway call failed",
			zap.String("breaker", cb.Name()),
			zap.Error(err),
		)
		return Unavailable[T]()
	}
	return Value(v)
}
