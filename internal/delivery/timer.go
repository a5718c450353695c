package delivery

import (
	"sync"
	"time"
)

// AutoFlushTimer calls a function at a fixed interval until stopped.
// A non-positive interval disables the timer.
type AutoFlushTimer struct {
	interval time.Duration
	fn       func()

	mu   sync.Mutex
	stop chan struct{}
	done chan struct{}
}

// NewAutoFlushTimer creates a stopped timer.
func NewAutoFlushTimer(interval time.Duration, fn func()) *AutoFlushTimer {
	return &AutoFlushTimer{interval: interval, fn: fn}
}

// Start begins ticking. It is a no-op when disabled or already running.
func (t *AutoFlushTimer) Start() {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.interval <= 0 || t.stop != nil {
		return
	}

	t.stop = make(chan struct{})
	t.done = make(chan struct{})
	go t.run(t.stop, t.done)
}

// Stop cancels the timer and waits for the ticking goroutine to exit, so no
// call to fn starts after Stop returns.
func (t *AutoFlushTimer) Stop() {
	t.mu.Lock()
	stop, done := t.stop, t.done
	t.stop, t.done = nil, nil
	t.mu.Unlock()

	if stop == nil {
		return
	}
	close(stop)
	<-done
}

// Running reports whether the timer is ticking.
func (t *AutoFlushTimer) Running() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.stop != nil
}

func (t *AutoFlushTimer) run(stop <-chan struct{}, done chan<- struct{}) {
	defer close(done)

	ticker := time.NewTicker(t.interval)
	defer ticker.Stop()

	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			// A tick racing with stop must not fire.
			select {
			case <-stop:
				return
			default:
			}
			t.fn()
		}
	}
}
