package redis

import (
	"context"
	"errors"
	"time"

	gobreaker "github.com/sony/gobreaker/v2"

	"github.com/alem-hub/curriculum-progress/internal/metrics"
	"github.com/alem-hub/curriculum-progress/pkg/logger"
)

// ErrCircuitOpen is returned while the breaker rejects counter calls.
var ErrCircuitOpen = errors.New("redis: circuit breaker is open")

// BreakerConfig tunes the counter circuit breaker.
type BreakerConfig struct {
	Name string

	// ConsecutiveFailures trips the breaker.
	ConsecutiveFailures uint32

	// Timeout is how long the breaker stays open before probing again.
	Timeout time.Duration

	// MaxHalfOpenRequests probes are let through while half-open.
	MaxHalfOpenRequests uint32
}

// DefaultBreakerConfig returns settings that stop waiting on an unreachable
// Redis after five straight failures.
func DefaultBreakerConfig() BreakerConfig {
	return BreakerConfig{
		Name:                "redis-ratelimit",
		ConsecutiveFailures: 5,
		Timeout:             30 * time.Second,
		MaxHalfOpenRequests: 1,
	}
}

type increment struct {
	count int64
	ttl   time.Duration
}

// BreakerCounter guards a Counter with a circuit breaker so a dead Redis
// costs one fast error per write instead of a dial timeout.
type BreakerCounter struct {
	next Counter
	cb   *gobreaker.CircuitBreaker[increment]
}

var _ Counter = (*BreakerCounter)(nil)

// NewBreakerCounter wraps next.
func NewBreakerCounter(next Counter, cfg BreakerConfig, log *logger.Logger) *BreakerCounter {
	if log == nil {
		log = logger.Default()
	}
	def := DefaultBreakerConfig()
	if cfg.Name == "" {
		cfg.Name = def.Name
	}
	if cfg.ConsecutiveFailures == 0 {
		cfg.ConsecutiveFailures = def.ConsecutiveFailures
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = def.Timeout
	}
	if cfg.MaxHalfOpenRequests == 0 {
		cfg.MaxHalfOpenRequests = def.MaxHalfOpenRequests
	}

	log = log.With(logger.Component("circuit_breaker"), logger.String("breaker", cfg.Name))
	metrics.CircuitBreakerState.WithLabelValues(cfg.Name).Set(0)

	cb := gobreaker.NewCircuitBreaker[increment](gobreaker.Settings{
		Name:        cfg.Name,
		MaxRequests: cfg.MaxHalfOpenRequests,
		Timeout:     cfg.Timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= cfg.ConsecutiveFailures
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			log.Warn("circuit breaker state change",
				logger.String("from", from.String()),
				logger.String("to", to.String()),
			)
			metrics.RecordBreakerTransition(name, from.String(), to.String(), stateValue(to))
		},
		// A cancelled request says nothing about Redis health.
		IsSuccessful: func(err error) bool {
			return err == nil || errors.Is(err, context.Canceled)
		},
	})

	return &BreakerCounter{next: next, cb: cb}
}

// Increment forwards to the wrapped counter unless the breaker is open.
func (b *BreakerCounter) Increment(ctx context.Context, key string, window time.Duration) (int64, time.Duration, error) {
	res, err := b.cb.Execute(func() (increment, error) {
		count, ttl, err := b.next.Increment(ctx, key, window)
		return increment{count: count, ttl: ttl}, err
	})
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return 0, 0, ErrCircuitOpen
	}
	if err != nil {
		return 0, 0, err
	}
	return res.count, res.ttl, nil
}

// State reports the breaker state: closed, half-open or open.
func (b *BreakerCounter) State() string {
	return b.cb.State().String()
}

func stateValue(s gobreaker.State) float64 {
	switch s {
	case gobreaker.StateHalfOpen:
		return 1
	case gobreaker.StateOpen:
		return 2
	default:
		return 0
	}
}
