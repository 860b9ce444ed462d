package database

import (
	"errors"
	"fmt"
	"testing"

	"github.com/lib/pq"
	"github.com/stretchr/testify/require"
)

func TestClassifyError(t *testing.T) {
	tests := []struct {
		name      string
		err       error
		class     ErrorClass
		retryable bool
	}{
		{"nil", nil, ErrorClassPermanent, false},
		{"serialization", &pq.Error{Code: "40001"}, ErrorClassSerialization, true},
		{"deadlock", &pq.Error{Code: "40P01"}, ErrorClassDeadlock, true},
		{"lock not available", fmt.Errorf("lock batches: %w", &pq.Error{Code: "55P03"}), ErrorClassTransient, true},
		{"unique", &pq.Error{Code: "23505"}, ErrorClassPermanent, false},
		{"plain", ErrInsufficientStock, ErrorClassPermanent, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require.Equal(t, tt.class, ClassifyError(tt.err))
			require.Equal(t, tt.retryable, IsRetryable(tt.err))
		})
	}
}

func TestRetriesExhausted(t *testing.T) {
	lockErr := fmt.Errorf("lock batches: %w", &pq.Error{Code: "55P03"})
	err := retriesExhausted(3, lockErr)
	require.ErrorIs(t, err, ErrLockTimeout)
	var pqErr *pq.Error
	require.True(t, errors.As(err, &pqErr))

	err = retriesExhausted(3, &pq.Error{Code: "40P01"})
	require.ErrorIs(t, err, ErrLockTimeout)

	err = retriesExhausted(3, &pq.Error{Code: "40001"})
	require.NotErrorIs(t, err, ErrLockTimeout)
	require.Contains(t, err.Error(), "max retries (3) exceeded")
}

func TestIsUniqueViolation(t *testing.T) {
	require.True(t, IsUniqueViolation(fmt.Errorf("insert: %w", &pq.Error{Code: "23505"})))
	require.False(t, IsUniqueViolation(&pq.Error{Code: "23503"}))
	require.False(t, IsUniqueViolation(nil))
}
