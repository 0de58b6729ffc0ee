package ratelimit

import (
	"context"
	"math/rand"
	"sync"
	"time"
)

// Limiter paces outgoing page fetches.
type Limiter interface {
	Wait(ctx context.Context) error
}

// Simple enforces a randomized delay between consecutive actions. The jitter
// keeps the fetch cadence from looking machine-regular.
type Simple struct {
	minDelay   time.Duration
	maxDelay   time.Duration
	lastAction time.Time
	mu         sync.Mutex
}

func NewSimple(minDelay, maxDelay time.Duration) *Simple {
	if maxDelay < minDelay {
		maxDelay = minDelay
	}
	return &Simple{minDelay: minDelay, maxDelay: maxDelay}
}

func (r *Simple) Wait(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	elapsed := time.Since(r.lastAction)
	delay := r.delay()

	if elapsed < delay {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(delay - elapsed):
		}
	}

	r.lastAction = time.Now()
	return nil
}

func (r *Simple) delay() time.Duration {
	if r.minDelay == r.maxDelay {
		return r.minDelay
	}
	return r.minDelay + time.Duration(rand.Int63n(int64(r.maxDelay-r.minDelay)))
}

// Adaptive slows down after repeated failures (429s and the like) and
// cautiously speeds back up after a streak of successes.
type Adaptive struct {
	*Simple
	errorCount   int
	successCount int
	maxErrors    int
	backoff      float64
}

func NewAdaptive(minDelay, maxDelay time.Duration) *Adaptive {
	return &Adaptive{
		Simple:    NewSimple(minDelay, maxDelay),
		maxErrors: 3,
		backoff:   1.5,
	}
}

func (a *Adaptive) RecordSuccess() {
	a.mu.Lock()
	defer a.mu.Unlock()

	a.successCount++
	a.errorCount = 0

	if a.successCount > 5 {
		newMin := time.Duration(float64(a.minDelay) * 0.9)
		if newMin < time.Second {
			newMin = time.Second
		}
		a.minDelay = newMin
		a.successCount = 0
	}
}

func (a *Adaptive) RecordError() {
	a.mu.Lock()
	defer a.mu.Unlock()

	a.errorCount++
	a.successCount = 0

	if a.errorCount >= a.maxErrors {
		newMin := time.Duration(float64(a.minDelay) * a.backoff)
		newMax := time.Duration(float64(a.maxDelay) * a.backoff)
		if newMin > time.Minute {
			newMin = time.Minute
		}
		if newMax > 2*time.Minute {
			newMax = 2 * time.Minute
		}
		a.minDelay = newMin
		a.maxDelay = newMax
		a.errorCount = 0
	}
}
