package job

// limiter.go bounds how many conversions run at once. A buffered channel is
// the semaphore; when every slot is taken a new job is rejected immediately
// rather than queued, so clients get fast backpressure. WaitForDrain supports
// graceful shutdown.

import (
	"context"
	"sync"
	"time"
)

// DefaultMaxConcurrent is the conversion parallelism used when the
// configuration does not set one.
const DefaultMaxConcurrent = 4

// Limiter restricts parallel conversions with a semaphore.
type Limiter struct {
	semaphore chan struct{}

	mu     sync.RWMutex
	active int
}

// NewLimiter allows at most maxConcurrent simultaneous conversions.
func NewLimiter(maxConcurrent int) *Limiter {
	if maxConcurrent <= 0 {
		maxConcurrent = DefaultMaxConcurrent
	}
	return &Limiter{semaphore: make(chan struct{}, maxConcurrent)}
}

// TryAcquire takes a slot without blocking. The caller must Release exactly
// once per successful acquire.
func (l *Limiter) TryAcquire() bool {
	select {
	case l.semaphore <- struct{}{}:
		l.mu.Lock()
		l.active++
		l.mu.Unlock()
		return true
	default:
		return false
	}
}

// Release frees a previously acquired slot.
func (l *Limiter) Release() {
	l.mu.Lock()
	l.active--
	l.mu.Unlock()
	<-l.semaphore
}

// Active returns the number of conversions currently holding a slot.
func (l *Limiter) Active() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.active
}

// MaxConcurrent returns the slot count.
func (l *Limiter) MaxConcurrent() int { return cap(l.semaphore) }

// WaitForDrain blocks until every active conversion has released its slot or
// the context is cancelled. Used during shutdown.
func (l *Limiter) WaitForDrain(ctx context.Context) error {
	ticker := time.NewTicker(100 * time.Millisecond)
	defer ticker.Stop()

	for {
		if l.Active() == 0 {
			return nil
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}
