package tx

import (
	"context"
	"errors"
	"time"
)

// SQLState codes that mean "re-run the whole transaction".
const (
	sqlStateSerializationFailure = "40001"
	sqlStateDeadlockDetected     = "40P01"
)

// IsSerializationFailure reports whether err carries a serialization or
// deadlock SQLSTATE. Drivers expose it through a SQLState() method.
func IsSerializationFailure(err error) bool {
	var se interface{ SQLState() string }
	if !errors.As(err, &se) {
		return false
	}
	switch se.SQLState() {
	case sqlStateSerializationFailure, sqlStateDeadlockDetected:
		return true
	}
	return false
}

// RetryPolicy controls RunWithRetry.
type RetryPolicy struct {
	MaxAttempts int
	Backoff     time.Duration
	// Retryable decides whether a failed attempt is re-run.
	// Nil means IsSerializationFailure.
	Retryable func(error) bool
}

// RunWithRetry runs fn in a transaction, re-running the whole transaction
// when the policy deems the failure retryable. When ctx already carries a
// transaction fn runs once: the owner of the outer transaction retries.
func RunWithRetry(ctx context.Context, m Manager, policy RetryPolicy, fn func(ctx context.Context) error) error {
	if m.InTransaction(ctx) {
		return m.RunInTransaction(ctx, fn)
	}

	attempts := policy.MaxAttempts
	if attempts <= 0 {
		attempts = 1
	}
	retryable := policy.Retryable
	if retryable == nil {
		retryable = IsSerializationFailure
	}

	var err error
	for attempt := 1; attempt <= attempts; attempt++ {
		err = m.RunInTransaction(ctx, fn)
		if err == nil || !retryable(err) || attempt == attempts {
			return err
		}
		if policy.Backoff > 0 {
			select {
			case <-ctx.Done():
				return errors.Join(err, ctx.Err())
			case <-time.After(policy.Backoff * time.Duration(attempt)):
			}
		}
	}
	return err
}
