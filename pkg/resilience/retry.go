package resilience

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// RetryPolicy bounds how long and how often an operation is retried.
type RetryPolicy struct {
	MaxAttempts    int
	Budget         time.Duration // total time across attempts, 0 means the caller's deadline only
	AttemptTimeout time.Duration // per attempt, capped by the remaining budget
	BaseBackoff    time.Duration
	MaxBackoff     time.Duration
}

func (p RetryPolicy) withDefaults() RetryPolicy {
	if p.MaxAttempts <= 0 {
		p.MaxAttempts = 1
	}
	if p.BaseBackoff <= 0 {
		p.BaseBackoff = 100 * time.Millisecond
	}
	if p.MaxBackoff <= 0 {
		p.MaxBackoff = 5 * time.Second
	}
	return p
}

// Backoff returns the linear delay before attempt+1.
func (p RetryPolicy) Backoff(attempt int) time.Duration {
	p = p.withDefaults()
	return min(time.Duration(attempt+1)*p.BaseBackoff, p.MaxBackoff)
}

// permanentError stops Retry without further attempts.
type permanentError struct{ err error }

func (e *permanentError) Error() string { return e.err.Error() }
func (e *permanentError) Unwrap() error { return e.err }

// Permanent wraps err so Retry gives up immediately.
func Permanent(err error) error {
	if err == nil {
		return nil
	}
	return &permanentError{err: err}
}

// IsPermanent reports whether err was marked with Permanent.
func IsPermanent(err error) bool {
	var p *permanentError
	return errors.As(err, &p)
}

// Retry runs fn until it succeeds, returns a permanent error, the attempts run
// out or the budget expires. fn receives a per-attempt context and the attempt
// number starting at 0. The last error is returned.
func Retry(ctx context.Context, policy RetryPolicy, fn func(ctx context.Context, attempt int) error) error {
	policy = policy.withDefaults()

	budgetCtx, cancelBudget := withBudget(ctx, policy.Budget)
	defer cancelBudget()

	var lastErr error
	for attempt := 0; attempt < policy.MaxAttempts; attempt++ {
		attemptCtx, cancel := withAttemptTimeout(budgetCtx, policy.AttemptTimeout)
		err := fn(attemptCtx, attempt)
		cancel()
		if err == nil {
			return nil
		}
		var perm *permanentError
		if errors.As(err, &perm) {
			return perm.err
		}
		lastErr = err
		if attempt == policy.MaxAttempts-1 {
			break
		}

		wait := policy.Backoff(attempt)
		if retryAfter, isOpen := CircuitOpenRetryAfter(err); isOpen && retryAfter > wait {
			wait = retryAfter
		}
		if !SleepContext(budgetCtx, wait) {
			return fmt.Errorf("%w (last error: %v)", budgetCtx.Err(), lastErr)
		}
	}

	if lastErr == nil {
		return budgetCtx.Err()
	}
	return lastErr
}

// withBudget caps total retry time; an earlier caller deadline wins.
func withBudget(ctx context.Context, budget time.Duration) (context.Context, context.CancelFunc) {
	if budget <= 0 {
		return context.WithCancel(ctx)
	}
	target := time.Now().Add(budget)
	if deadline, ok := ctx.Deadline(); ok && deadline.Before(target) {
		return context.WithCancel(ctx)
	}
	return context.WithDeadline(ctx, target)
}

func withAttemptTimeout(ctx context.Context, timeout time.Duration) (context.Context, context.CancelFunc) {
	if timeout <= 0 {
		return context.WithCancel(ctx)
	}
	if deadline, ok := ctx.Deadline(); ok && time.Until(deadline) < timeout {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, timeout)
}

// CircuitOpenRetryAfter extracts the retry delay from circuit-open errors.
func CircuitOpenRetryAfter(err error) (time.Duration, bool) {
	var openErr *CircuitOpenError
	if errors.As(err, &openErr) {
		return openErr.RetryAfter, true
	}
	if errors.Is(err, ErrCircuitOpen) {
		return 0, true
	}
	return 0, false
}

// SleepContext waits for delay or returns false early if ctx is done.
func SleepContext(ctx context.Context, delay time.Duration) bool {
	if delay <= 0 {
		return ctx.Err() == nil
	}
	timer := time.NewTimer(delay)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}
