package sched

import (
	"sync"
	"time"
)

// CancelFunc stops a scheduled callback. Calling it more than once is safe.
type CancelFunc func()

// Clock supplies the current wall-clock time.
type Clock interface {
	Now() time.Time
}

// Scheduler runs callbacks after a delay or on a repeating interval.
// Countdowns and the session controller depend only on this abstraction so
// tests can drive time deterministically.
type Scheduler interface {
	Clock
	Repeating(interval time.Duration, fn func()) CancelFunc
	Once(delay time.Duration, fn func()) CancelFunc
}

type timerScheduler struct{}

// New returns a Scheduler backed by the runtime timer facilities.
func New() Scheduler {
	return timerScheduler{}
}

func (timerScheduler) Now() time.Time {
	return time.Now()
}

func (timerScheduler) Repeating(interval time.Duration, fn func()) CancelFunc {
	if interval <= 0 {
		interval = time.Second
	}

	ticker := time.NewTicker(interval)
	stop := make(chan struct{})
	go func() {
		for {
			select {
			case <-stop:
				return
			case <-ticker.C:
				fn()
			}
		}
	}()

	var once sync.Once
	return func() {
		once.Do(func() {
			ticker.Stop()
			close(stop)
		})
	}
}

func (timerScheduler) Once(delay time.Duration, fn func()) CancelFunc {
	if delay < 0 {
		delay = 0
	}
	timer := time.AfterFunc(delay, fn)
	return func() {
		timer.Stop()
	}
}
