package resilience

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/sony/gobreaker/v2"
)

// Verdict tells the executor how to treat a failed call: whether the
// same call may be retried, and whether the failure counts toward
// tripping the operation's circuit breaker.
type Verdict struct {
	Retryable     bool
	CountsAgainst bool
}

type Classifier func(err error) Verdict

// Executor wraps outbound calls with bounded retry and a per-operation
// circuit breaker. Breakers are keyed by operation name and created
// lazily on first use.
type Executor struct {
	policy Policy
	log    *slog.Logger

	mu       sync.Mutex
	breakers map[string]*gobreaker.CircuitBreaker[any]
}

func NewExecutor(policy Policy, log *slog.Logger) *Executor {
	if log == nil {
		log = slog.Default()
	}
	return &Executor{
		policy:   policy.withDefaults(),
		log:      log,
		breakers: make(map[string]*gobreaker.CircuitBreaker[any]),
	}
}

func (e *Executor) Do(ctx context.Context, operation string, classify Classifier, fn func(context.Context) error) error {
	if fn == nil {
		return fmt.Errorf("resilience: nil operation callback")
	}
	op := strings.TrimSpace(operation)
	if op == "" {
		op = "unknown"
	}
	if classify == nil {
		classify = neverRetry
	}

	if !e.policy.BreakerEnabled {
		return e.withRetry(ctx, op, classify, fn)
	}
	breaker := e.breakerFor(op, classify)
	_, err := breaker.Execute(func() (any, error) {
		return nil, e.withRetry(ctx, op, classify, fn)
	})
	return err
}

func (e *Executor) withRetry(ctx context.Context, op string, classify Classifier, fn func(context.Context) error) error {
	backoff := e.policy.BackoffBase
	var lastErr error

	for attempt := 1; attempt <= e.policy.AttemptLimit; attempt++ {
		if err := ctx.Err(); err != nil {
			return err
		}

		lastErr = fn(ctx)
		if lastErr == nil {
			return nil
		}
		if verdict := classify(lastErr); !verdict.Retryable || attempt == e.policy.AttemptLimit {
			return lastErr
		}

		e.log.Warn("retrying_operation",
			"operation", op,
			"attempt", attempt,
			"backoff", backoff.String(),
			"error", lastErr,
		)
		timer := time.NewTimer(backoff)
		select {
		case <-ctx.Done():
			timer.Stop()
			return lastErr
		case <-timer.C:
		}

		backoff = time.Duration(float64(backoff) * e.policy.BackoffFactor)
		if backoff > e.policy.BackoffCap {
			backoff = e.policy.BackoffCap
		}
	}
	return lastErr
}

func (e *Executor) breakerFor(op string, classify Classifier) *gobreaker.CircuitBreaker[any] {
	e.mu.Lock()
	defer e.mu.Unlock()

	if breaker, ok := e.breakers[op]; ok {
		return breaker
	}

	breaker := gobreaker.NewCircuitBreaker[any](gobreaker.Settings{
		Name:        op,
		MaxRequests: e.policy.BreakerProbeCalls,
		Timeout:     e.policy.BreakerOpenFor,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			if counts.Requests < e.policy.BreakerMinRequests {
				return false
			}
			return float64(counts.TotalFailures)/float64(counts.Requests) >= e.policy.BreakerFailureRatio
		},
		IsSuccessful: func(err error) bool {
			if err == nil {
				return true
			}
			return !classify(err).CountsAgainst
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			e.log.Warn("breaker_state_change", "operation", name, "from", from.String(), "to", to.String())
		},
	})
	e.breakers[op] = breaker
	return breaker
}

// IsCircuitOpen reports whether err came from a breaker refusing the
// call rather than from the dependency itself.
func IsCircuitOpen(err error) bool {
	return errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests)
}

func neverRetry(error) Verdict {
	return Verdict{Retryable: false, CountsAgainst: true}
}
