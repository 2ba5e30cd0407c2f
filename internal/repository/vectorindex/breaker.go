package vectorindex

import (
	"context"
	"errors"
	"fmt"
	"time"

	gobreaker "github.com/sony/gobreaker/v2"
	"go.uber.org/zap"

	"github.com/kailas-cloud/vecrec/internal/domain"
	"github.com/kailas-cloud/vecrec/internal/domain/vector"
	"github.com/kailas-cloud/vecrec/internal/metrics"
)

// index is the set of operations the breaker guards.
type index interface {
	Ping(ctx context.Context) error
	QueryByID(ctx context.Context, externalID string, k int) ([]vector.Match, error)
	QueryByVector(ctx context.Context, v []float32, k int) ([]vector.Match, error)
	FetchVectors(ctx context.Context, externalIDs []string) (map[string][]float32, error)
	Upsert(ctx context.Context, items []vector.Item) error
	Delete(ctx context.Context, externalIDs []string) error
}

// BreakerConfig tunes the circuit breaker around the vector index.
type BreakerConfig struct {
	Name             string
	MaxFailures      uint32        // consecutive failures that open the circuit
	OpenTimeout      time.Duration // open -> half-open
	HalfOpenRequests uint32
	CallTimeout      time.Duration // per call, 0 = none
}

// Breaker fails fast with domain.ErrVectorIndexUnavailable while the index misbehaves.
type Breaker struct {
	next    index
	cb      *gobreaker.CircuitBreaker[any]
	timeout time.Duration
	name    string
	logger  *zap.Logger
}

// NewBreaker wraps next with a circuit breaker.
func NewBreaker(next index, cfg BreakerConfig, logger *zap.Logger) *Breaker {
	if cfg.Name == "" {
		cfg.Name = "vector-index"
	}
	if cfg.MaxFailures == 0 {
		cfg.MaxFailures = 5
	}
	if cfg.OpenTimeout <= 0 {
		cfg.OpenTimeout = 30 * time.Second
	}
	if cfg.HalfOpenRequests == 0 {
		cfg.HalfOpenRequests = 1
	}

	metrics.VectorIndexBreakerState.WithLabelValues(cfg.Name).Set(0)

	b := &Breaker{next: next, timeout: cfg.CallTimeout, name: cfg.Name, logger: logger}
	b.cb = gobreaker.NewCircuitBreaker[any](gobreaker.Settings{
		Name:        cfg.Name,
		MaxRequests: cfg.HalfOpenRequests,
		Timeout:     cfg.OpenTimeout,
		ReadyToTrip: func(c gobreaker.Counts) bool {
			return c.ConsecutiveFailures >= cfg.MaxFailures
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn("vector index breaker state change",
				zap.String("breaker", name),
				zap.String("from", from.String()),
				zap.String("to", to.String()),
			)
			metrics.VectorIndexBreakerState.WithLabelValues(name).Set(stateValue(to))
		},
		// Missing vectors and caller cancellation say nothing about index health.
		IsSuccessful: func(err error) bool {
			return err == nil ||
				errors.Is(err, domain.ErrVectorNotFound) ||
				errors.Is(err, domain.ErrInvalidInput) ||
				errors.Is(err, domain.ErrVectorDimensionMismatch) ||
				errors.Is(err, context.Canceled)
		},
	})
	return b
}

// State reports the current breaker state.
func (b *Breaker) State() gobreaker.State {
	return b.cb.State()
}

func (b *Breaker) execute(ctx context.Context, op string, fn func(ctx context.Context) (any, error)) (any, error) {
	res, err := b.cb.Execute(func() (any, error) {
		callCtx := ctx
		if b.timeout > 0 {
			var cancel context.CancelFunc
			callCtx, cancel = context.WithTimeout(ctx, b.timeout)
			defer cancel()
		}
		return fn(callCtx)
	})
	if err == nil {
		return res, nil
	}

	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		metrics.VectorIndexErrorsTotal.WithLabelValues(op).Inc()
		return nil, fmt.Errorf("%s: %w", op, domain.ErrVectorIndexUnavailable)
	}
	if !errors.Is(err, domain.ErrVectorNotFound) {
		metrics.VectorIndexErrorsTotal.WithLabelValues(op).Inc()
	}
	return nil, err
}

// Ping checks the index through the breaker.
func (b *Breaker) Ping(ctx context.Context) error {
	_, err := b.execute(ctx, "ping", func(ctx context.Context) (any, error) {
		return nil, b.next.Ping(ctx)
	})
	return err
}

// QueryByID proxies Repo.QueryByID.
func (b *Breaker) QueryByID(ctx context.Context, externalID string, k int) ([]vector.Match, error) {
	res, err := b.execute(ctx, "query_by_id", func(ctx context.Context) (any, error) {
		return b.next.QueryByID(ctx, externalID, k)
	})
	return cast[[]vector.Match](res, err)
}

// QueryByVector proxies Repo.QueryByVector.
func (b *Breaker) QueryByVector(ctx context.Context, v []float32, k int) ([]vector.Match, error) {
	res, err := b.execute(ctx, "query_by_vector", func(ctx context.Context) (any, error) {
		return b.next.QueryByVector(ctx, v, k)
	})
	return cast[[]vector.Match](res, err)
}

// FetchVectors proxies Repo.FetchVectors.
func (b *Breaker) FetchVectors(ctx context.Context, externalIDs []string) (map[string][]float32, error) {
	res, err := b.execute(ctx, "fetch", func(ctx context.Context) (any, error) {
		return b.next.FetchVectors(ctx, externalIDs)
	})
	return cast[map[string][]float32](res, err)
}

// Upsert proxies Repo.Upsert.
func (b *Breaker) Upsert(ctx context.Context, items []vector.Item) error {
	_, err := b.execute(ctx, "upsert", func(ctx context.Context) (any, error) {
		return nil, b.next.Upsert(ctx, items)
	})
	return err
}

// Delete proxies Repo.Delete.
func (b *Breaker) Delete(ctx context.Context, externalIDs []string) error {
	_, err := b.execute(ctx, "delete", func(ctx context.Context) (any, error) {
		return nil, b.next.Delete(ctx, externalIDs)
	})
	return err
}

func cast[T any](res any, err error) (T, error) {
	var zero T
	if err != nil {
		return zero, err
	}
	if res == nil {
		return zero, nil
	}
	v, ok := res.(T)
	if !ok {
		return zero, fmt.Errorf("vector index breaker: unexpected result type %T", res)
	}
	return v, nil
}

func stateValue(s gobreaker.State) float64 {
	switch s {
	case gobreaker.StateClosed:
		return 0
	case gobreaker.StateHalfOpen:
		return 1
	case gobreaker.StateOpen:
		return 2
	default:
		return -1
	}
}
