package ratelimit

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeIncrementer struct{ count int64 }

func (f *fakeIncrementer) RateLimitIncrement(_ context.Context, _ string, _ time.Duration) (int64, error) {
	f.count++
	return f.count, nil
}

func TestSwitchLimiterAllowsWithinBudget(t *testing.T) {
	inc := &fakeIncrementer{}
	l := NewSwitchLimiter(inc, 2)

	ok, err := l.Allow(context.Background(), "s1")
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = l.Allow(context.Background(), "s1")
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestSwitchLimiterRejectsOverBudget(t *testing.T) {
	inc := &fakeIncrementer{}
	l := NewSwitchLimiter(inc, 1)

	ok, _ := l.Allow(context.Background(), "s1")
	assert.True(t, ok)

	ok, _ = l.Allow(context.Background(), "s1")
	assert.False(t, ok)
}
