package service

import (
	"sync"
	"time"
)

// ProgressEstimator produces display progress for an in-flight generation.
// The backend offers no progress callback, so the default implementation is
// cosmetic; the interface exists so server-sent progress can replace it
// without touching the lifecycle state machine.
type ProgressEstimator interface {
	// Start begins emitting progress values through update until the
	// estimator is cancelled or reaches its cap.
	Start(update func(progress int))
	// Cancel stops the estimator. Cancelling an already-cancelled
	// estimator is a no-op.
	Cancel()
}

// TickerEstimator advances displayed progress by a fixed step at a fixed
// interval, capped below 100 so only a real completion can finish the bar.
type TickerEstimator struct {
	step     int
	cap      int
	interval time.Duration

	mu      sync.Mutex
	stop    chan struct{}
	stopped bool
}

// NewTickerEstimator returns the standard cosmetic estimator: +10 every 2s,
// capped at 90.
func NewTickerEstimator() *TickerEstimator {
	return newTickerEstimator(10, 90, 2*time.Second)
}

func newTickerEstimator(step, cap int, interval time.Duration) *TickerEstimator {
	return &TickerEstimator{
		step:     step,
		cap:      cap,
		interval: interval,
		stop:     make(chan struct{}),
	}
}

func (e *TickerEstimator) Start(update func(progress int)) {
	go func() {
		ticker := time.NewTicker(e.interval)
		defer ticker.Stop()

		progress := 0
		for {
			select {
			case <-e.stop:
				return
			case <-ticker.C:
				progress += e.step
				if progress > e.cap {
					progress = e.cap
				}
				update(progress)
				if progress >= e.cap {
					return
				}
			}
		}
	}()
}

func (e *TickerEstimator) Cancel() {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.stopped {
		return
	}
	e.stopped = true
	close(e.stop)
}
