package websocket

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestBackoff_Growth(t *testing.T) {
	b := NewBackoff(ReconnectConfig{
		InitialDelay:      10 * time.Millisecond,
		MaxDelay:          50 * time.Millisecond,
		BackoffMultiplier: 2,
	}, zap.NewNop())

	assert.Equal(t, 10*time.Millisecond, b.Next())
	b.grow()
	assert.Equal(t, 20*time.Millisecond, b.Next())
	b.grow()
	b.grow()
	assert.Equal(t, 50*time.Millisecond, b.Next(), "capped at max delay")

	b.Reset()
	assert.Equal(t, 10*time.Millisecond, b.Next())
}

func TestBackoff_Jitter(t *testing.T) {
	b := NewBackoff(ReconnectConfig{
		InitialDelay:      100 * time.Millisecond,
		MaxDelay:          time.Second,
		BackoffMultiplier: 2,
		JitterPercent:     0.5,
	}, zap.NewNop())

	for range 50 {
		d := b.Next()
		assert.GreaterOrEqual(t, d, 100*time.Millisecond)
		assert.LessOrEqual(t, d, 150*time.Millisecond)
	}
}

func TestBackoff_RetryUntilSuccess(t *testing.T) {
	b := NewBackoff(ReconnectConfig{
		InitialDelay:      time.Millisecond,
		MaxDelay:          5 * time.Millisecond,
		BackoffMultiplier: 2,
	}, zap.NewNop())

	attempts := 0
	err := b.Retry(context.Background(), func(context.Context) error {
		attempts++
		if attempts < 3 {
			return errors.New("refused")
		}
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 3, attempts)
	assert.Equal(t, time.Millisecond, b.Next(), "success resets the delay")
}

func TestBackoff_RetryContextCancelled(t *testing.T) {
	b := NewBackoff(ReconnectConfig{
		InitialDelay:      time.Hour,
		MaxDelay:          time.Hour,
		BackoffMultiplier: 2,
	}, zap.NewNop())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	called := false
	err := b.Retry(ctx, func(context.Context) error {
		called = true
		return nil
	})
	require.ErrorIs(t, err, context.Canceled)
	assert.False(t, called)
}

func TestNewBackoff_NormalizesConfig(t *testing.T) {
	b := NewBackoff(ReconnectConfig{
		InitialDelay:      20 * time.Millisecond,
		MaxDelay:          time.Millisecond,
		BackoffMultiplier: 0.5,
	}, zap.NewNop())

	b.grow()
	assert.Equal(t, 20*time.Millisecond, b.Next())
}
