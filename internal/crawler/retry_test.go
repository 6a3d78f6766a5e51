package crawler

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestShouldRetry(t *testing.T) {
	p := NewLinearRetryPolicy(3, time.Second)
	transient := errors.New("connection reset")

	assert.False(t, p.ShouldRetry(nil, 1))
	assert.True(t, p.ShouldRetry(transient, 1))
	assert.True(t, p.ShouldRetry(transient, 2))
	assert.False(t, p.ShouldRetry(transient, 3))
	assert.False(t, p.ShouldRetry(context.Canceled, 1))
	assert.False(t, p.ShouldRetry(context.DeadlineExceeded, 1))

	wrapped := errors.Join(errors.New("proxy fetch canceled"), context.Canceled)
	assert.False(t, p.ShouldRetry(wrapped, 1))
}

func TestBackoffGrowsLinearly(t *testing.T) {
	p := NewLinearRetryPolicy(3, 5*time.Second)
	assert.Equal(t, 5*time.Second, p.Backoff(1))
	assert.Equal(t, 10*time.Second, p.Backoff(2))
	assert.Equal(t, 15*time.Second, p.Backoff(3))
	assert.Equal(t, 5*time.Second, p.Backoff(0))
}

func TestPolicyDefaults(t *testing.T) {
	p := NewLinearRetryPolicy(0, 0)
	assert.Equal(t, 3, p.MaxAttempts())
	assert.Equal(t, 5*time.Second, p.Backoff(1))
}
