package ratelimit

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSimple_FirstCallDoesNotBlock(t *testing.T) {
	r := NewSimple(time.Second, 2*time.Second)

	start := time.Now()
	require.NoError(t, r.Wait(context.Background()))
	assert.Less(t, time.Since(start), 100*time.Millisecond)
}

func TestSimple_EnforcesDelay(t *testing.T) {
	r := NewSimple(50*time.Millisecond, 50*time.Millisecond)

	require.NoError(t, r.Wait(context.Background()))
	start := time.Now()
	require.NoError(t, r.Wait(context.Background()))
	assert.GreaterOrEqual(t, time.Since(start), 40*time.Millisecond)
}

func TestSimple_ContextCancellation(t *testing.T) {
	r := NewSimple(time.Minute, time.Minute)
	require.NoError(t, r.Wait(context.Background()))

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	err := r.Wait(ctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestAdaptive_BacksOffAfterErrors(t *testing.T) {
	a := NewAdaptive(time.Second, 2*time.Second)

	for i := 0; i < 3; i++ {
		a.RecordError()
	}

	assert.Equal(t, 1500*time.Millisecond, a.minDelay)
	assert.Equal(t, 3*time.Second, a.maxDelay)
}

func TestAdaptive_SpeedsUpAfterSuccesses(t *testing.T) {
	a := NewAdaptive(2*time.Second, 4*time.Second)

	for i := 0; i < 6; i++ {
		a.RecordSuccess()
	}

	assert.Equal(t, 1800*time.Millisecond, a.minDelay)
}

func TestAdaptive_SuccessResetsErrorStreak(t *testing.T) {
	a := NewAdaptive(time.Second, 2*time.Second)

	a.RecordError()
	a.RecordError()
	a.RecordSuccess()
	a.RecordError()

	// the streak never reached three, delays unchanged
	assert.Equal(t, time.Second, a.minDelay)
}
