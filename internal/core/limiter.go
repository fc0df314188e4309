package core

// limiter.go bounds how many extractions run at once.
//
// Decoding and detecting a large workbook is memory heavy, so the server
// caps parallel extractions; Extractor.DecodeAndExtract holds the slot
// across both phases. When every slot is busy, new requests wait up
// to maxWait before failing with ErrTooManyExtractions. WaitForDrain lets a
// shutting-down server finish in-flight extractions first.

import (
	"context"
	"errors"
	"sync/atomic"
	"time"

	"golang.org/x/sync/semaphore"
)

// ErrTooManyExtractions is returned when no slot frees up within maxWait.
// Clients should retry after a short delay.
var ErrTooManyExtractions = errors.New("too many extractions in progress, please try again later")

// DefaultMaxConcurrentExtractions is the default limit for parallel extractions.
const DefaultMaxConcurrentExtractions = 4

// DefaultMaxWaitTime is how long to wait for a slot before rejecting.
const DefaultMaxWaitTime = 30 * time.Second

// ExtractionLimiter is a weighted semaphore with an active counter.
type ExtractionLimiter struct {
	sem     *semaphore.Weighted
	max     int
	maxWait time.Duration
	active  atomic.Int64
}

// NewExtractionLimiter allows at most maxConcurrent simultaneous extractions.
func NewExtractionLimiter(maxConcurrent int, maxWait time.Duration) *ExtractionLimiter {
	if maxConcurrent <= 0 {
		maxConcurrent = DefaultMaxConcurrentExtractions
	}
	if maxWait <= 0 {
		maxWait = DefaultMaxWaitTime
	}
	return &ExtractionLimiter{
		sem:     semaphore.NewWeighted(int64(maxConcurrent)),
		max:     maxConcurrent,
		maxWait: maxWait,
	}
}

// Acquire takes a slot. The caller must Release it (use defer).
func (l *ExtractionLimiter) Acquire(ctx context.Context) error {
	waitCtx, cancel := context.WithTimeout(ctx, l.maxWait)
	defer cancel()

	if err := l.sem.Acquire(waitCtx, 1); err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return ErrTooManyExtractions
	}
	l.active.Add(1)
	return nil
}

// TryAcquire takes a slot without blocking.
func (l *ExtractionLimiter) TryAcquire() bool {
	if !l.sem.TryAcquire(1) {
		return false
	}
	l.active.Add(1)
	return true
}

// Release frees a slot taken by Acquire or TryAcquire.
func (l *ExtractionLimiter) Release() {
	l.active.Add(-1)
	l.sem.Release(1)
}

// ActiveCount returns the number of running extractions.
func (l *ExtractionLimiter) ActiveCount() int {
	return int(l.active.Load())
}

// MaxConcurrent returns the configured limit.
func (l *ExtractionLimiter) MaxConcurrent() int {
	return l.max
}

// Available returns the number of free slots.
func (l *ExtractionLimiter) Available() int {
	return l.max - l.ActiveCount()
}

// WaitForDrain blocks until no extraction is running or ctx is done.
func (l *ExtractionLimiter) WaitForDrain(ctx context.Context) error {
	ticker := time.NewTicker(100 * time.Millisecond)
	defer ticker.Stop()

	for {
		if l.ActiveCount() == 0 {
			return nil
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

// LimiterStatus is a snapshot of the limiter.
type LimiterStatus struct {
	Active        int `json:"active"`
	Available     int `json:"available"`
	MaxConcurrent int `json:"max_concurrent"`
}

// Status returns the current limiter state for monitoring.
func (l *ExtractionLimiter) Status() LimiterStatus {
	active := l.ActiveCount()
	return LimiterStatus{
		Active:        active,
		Available:     l.max - active,
		MaxConcurrent: l.max,
	}
}
