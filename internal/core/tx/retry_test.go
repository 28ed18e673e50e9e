package tx

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type txKey struct{}

type countingManager struct {
	runs int
}

func (m *countingManager) RunInTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	m.runs++
	return fn(context.WithValue(ctx, txKey{}, true))
}

func (m *countingManager) InTransaction(ctx context.Context) bool {
	return ctx.Value(txKey{}) != nil
}

func TestIsSerializationFailure(t *testing.T) {
	assert.True(t, IsSerializationFailure(&pgconn.PgError{Code: "40001"}))
	assert.True(t, IsSerializationFailure(fmt.Errorf("wrapped: %w", &pgconn.PgError{Code: "40P01"})))
	assert.False(t, IsSerializationFailure(&pgconn.PgError{Code: "23505"}))
	assert.False(t, IsSerializationFailure(errors.New("boom")))
}

func TestRunWithRetry_RetriesSerializationFailures(t *testing.T) {
	m := &countingManager{}
	calls := 0
	err := RunWithRetry(context.Background(), m, RetryPolicy{MaxAttempts: 3}, func(ctx context.Context) error {
		calls++
		if calls < 3 {
			return &pgconn.PgError{Code: "40001"}
		}
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 3, m.runs)
}

func TestRunWithRetry_GivesUpAfterMaxAttempts(t *testing.T) {
	m := &countingManager{}
	err := RunWithRetry(context.Background(), m, RetryPolicy{MaxAttempts: 2}, func(ctx context.Context) error {
		return &pgconn.PgError{Code: "40P01"}
	})
	assert.True(t, IsSerializationFailure(err))
	assert.Equal(t, 2, m.runs)
}

func TestRunWithRetry_DoesNotRetryOtherErrors(t *testing.T) {
	m := &countingManager{}
	boom := errors.New("boom")
	err := RunWithRetry(context.Background(), m, RetryPolicy{MaxAttempts: 5}, func(ctx context.Context) error {
		return boom
	})
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, 1, m.runs)
}

func TestRunWithRetry_InsideTransactionRunsOnce(t *testing.T) {
	m := &countingManager{}
	ctx := context.WithValue(context.Background(), txKey{}, true)
	err := RunWithRetry(ctx, m, RetryPolicy{MaxAttempts: 5}, func(ctx context.Context) error {
		return &pgconn.PgError{Code: "40001"}
	})
	assert.Error(t, err)
	assert.Equal(t, 1, m.runs)
}

func TestRunWithRetry_CustomRetryable(t *testing.T) {
	m := &countingManager{}
	flaky := errors.New("flaky")
	calls := 0
	err := RunWithRetry(context.Background(), m, RetryPolicy{
		MaxAttempts: 4,
		Retryable:   func(err error) bool { return errors.Is(err, flaky) },
	}, func(ctx context.Context) error {
		calls++
		if calls == 1 {
			return flaky
		}
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 2, m.runs)
}
