package retry

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"

	"github.com/piresc/topup/internal/pkg/logger"
)

var errTransient = errors.New("transient")

func newTestRetrier(maxRetries int, retryable func(error) bool) *Retrier {
	return New(Config{
		MaxRetries:    maxRetries,
		BaseDelay:     time.Millisecond,
		MaxDelay:      5 * time.Millisecond,
		Multiplier:    2,
		RetryableFunc: retryable,
	}, logger.NewFromZap(zap.NewNop()))
}

func TestExecute_SucceedsAfterRetries(t *testing.T) {
	r := newTestRetrier(3, nil)
	calls := 0

	err := r.Execute(context.Background(), func(ctx context.Context) error {
		calls++
		if calls < 3 {
			return errTransient
		}
		return nil
	})

	assert.NoError(t, err)
	assert.Equal(t, 3, calls)
}

func TestExecute_StopsOnNonRetryable(t *testing.T) {
	permanent := errors.New("rejected")
	r := newTestRetrier(3, func(err error) bool { return errors.Is(err, errTransient) })
	calls := 0

	err := r.Execute(context.Background(), func(ctx context.Context) error {
		calls++
		return permanent
	})

	assert.ErrorIs(t, err, permanent)
	assert.Equal(t, 1, calls)
}

func TestExecute_ExhaustedWrapsLastError(t *testing.T) {
	r := newTestRetrier(2, nil)
	calls := 0

	err := r.Execute(context.Background(), func(ctx context.Context) error {
		calls++
		return errTransient
	})

	assert.ErrorIs(t, err, errTransient)
	assert.Equal(t, 3, calls)
}

func TestExecute_ContextCancelled(t *testing.T) {
	r := newTestRetrier(5, nil)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := r.Execute(ctx, func(ctx context.Context) error {
		t.Fatal("fn must not run on a cancelled context")
		return nil
	})

	assert.ErrorIs(t, err, context.Canceled)
}

func TestCalculateDelay_Capped(t *testing.T) {
	r := newTestRetrier(10, nil)
	assert.Equal(t, time.Millisecond, r.calculateDelay(0))
	assert.Equal(t, 2*time.Millisecond, r.calculateDelay(1))
	assert.Equal(t, 5*time.Millisecond, r.calculateDelay(8))
}
