package repository

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mmeshcher/gophermarket/internal/apperror"
)

func newRetryRepo() *PostgresRepository {
	return &PostgresRepository{delays: []time.Duration{time.Millisecond, time.Millisecond, time.Millisecond}}
}

func TestWithRetry_RetriesSerializationFailure(t *testing.T) {
	r := newRetryRepo()

	calls := 0
	err := r.withRetry(context.Background(), func() error {
		calls++
		if calls < 3 {
			return fmt.Errorf("commit tx: %w", &pgconn.PgError{Code: pgerrcode.SerializationFailure})
		}
		return nil
	})

	require.NoError(t, err)
	assert.Equal(t, 3, calls)
}

func TestWithRetry_GivesUpAfterDelays(t *testing.T) {
	r := newRetryRepo()

	calls := 0
	err := r.withRetry(context.Background(), func() error {
		calls++
		return &pgconn.PgError{Code: pgerrcode.DeadlockDetected}
	})

	require.Error(t, err)
	assert.Equal(t, len(r.delays)+1, calls)
}

func TestWithRetry_BusinessErrorNotRetried(t *testing.T) {
	r := newRetryRepo()

	calls := 0
	err := r.withRetry(context.Background(), func() error {
		calls++
		return apperror.New(apperror.CodeInsufficientStock, "not enough stock for product 1")
	})

	assert.ErrorIs(t, err, apperror.ErrInsufficientStock)
	assert.Equal(t, 1, calls)
}

func TestWithRetry_StopsOnCancelledContext(t *testing.T) {
	r := &PostgresRepository{delays: []time.Duration{time.Hour}}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := r.withRetry(ctx, func() error {
		return errors.New("dial tcp: connection refused")
	})

	assert.ErrorIs(t, err, context.Canceled)
}

func TestIsPgError(t *testing.T) {
	err := fmt.Errorf("insert user: %w", &pgconn.PgError{Code: pgerrcode.UniqueViolation})

	assert.True(t, isPgError(err, pgerrcode.UniqueViolation))
	assert.False(t, isPgError(err, pgerrcode.ForeignKeyViolation))
	assert.False(t, isPgError(errors.New("plain"), pgerrcode.UniqueViolation))
}
