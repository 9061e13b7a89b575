// internal/scraper/limiter.go
package scraper

import (
	"context"
	"sync"

	"golang.org/x/sync/semaphore"
)

// Limiter is the single counting limiter shared by every fetch+extract unit
// of a run. It records the highest number of slots ever held at once.
type Limiter struct {
	sem      *semaphore.Weighted
	capacity int

	mu       sync.Mutex
	inFlight int
	peak     int
}

// NewLimiter creates a limiter with the given ceiling; values below 1 become 1.
func NewLimiter(capacity int) *Limiter {
	if capacity < 1 {
		capacity = 1
	}
	return &Limiter{
		sem:      semaphore.NewWeighted(int64(capacity)),
		capacity: capacity,
	}
}

// Acquire blocks until a slot is free or ctx is done.
func (l *Limiter) Acquire(ctx context.Context) error {
	if err := l.sem.Acquire(ctx, 1); err != nil {
		return err
	}
	l.mu.Lock()
	l.inFlight++
	if l.inFlight > l.peak {
		l.peak = l.inFlight
	}
	l.mu.Unlock()
	return nil
}

// Release returns a slot acquired with Acquire.
func (l *Limiter) Release() {
	l.mu.Lock()
	l.inFlight--
	l.mu.Unlock()
	l.sem.Release(1)
}

// Capacity returns the configured ceiling.
func (l *Limiter) Capacity() int {
	return l.capacity
}

// InFlight returns the number of slots currently held.
func (l *Limiter) InFlight() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.inFlight
}

// Peak returns the highest number of slots held at once.
func (l *Limiter) Peak() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.peak
}
