package llm

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCircuitBreaker_PassesThroughSuccess(t *testing.T) {
	cb := NewCircuitBreaker("test")

	result, err := cb.Execute(context.Background(), func() (interface{}, error) {
		return "ok", nil
	})
	require.NoError(t, err)
	assert.Equal(t, "ok", result)
	assert.Equal(t, "closed", cb.State())

	metrics := cb.Metrics()
	assert.Equal(t, uint64(1), metrics.TotalRequests)
	assert.Equal(t, uint64(1), metrics.TotalSuccesses)
}

func TestCircuitBreaker_OpensAfterConsecutiveFailures(t *testing.T) {
	cb := NewCircuitBreakerWithConfig("test", CircuitBreakerConfig{
		MaxFailures:          3,
		Timeout:              time.Minute,
		HalfOpenMaxSuccesses: 1,
	})

	boom := errors.New("boom")
	for i := 0; i < 3; i++ {
		_, err := cb.Execute(context.Background(), func() (interface{}, error) {
			return nil, boom
		})
		assert.ErrorIs(t, err, boom)
	}

	assert.Equal(t, "open", cb.State())

	_, err := cb.Execute(context.Background(), func() (interface{}, error) {
		t.Fatal("function must not run while circuit is open")
		return nil, nil
	})
	assert.ErrorIs(t, err, ErrCircuitOpen)
}

func TestCircuitBreaker_CancelledContext(t *testing.T) {
	cb := NewCircuitBreaker("test")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := cb.Execute(ctx, func() (interface{}, error) {
		t.Fatal("function must not run with a cancelled context")
		return nil, nil
	})
	assert.ErrorIs(t, err, context.Canceled)

	// A cancelled caller is not a provider failure; the circuit stays closed.
	assert.Equal(t, "closed", cb.State())
}
