// Package cache holds short-lived read caches in front of the entry store.
package cache

import (
	"sync"
	"time"
)

// Cleaner is implemented by caches that can drop expired items.
type Cleaner interface {
	CleanExpired() int
}

// Janitor periodically cleans a set of caches until stopped.
type Janitor struct {
	caches []Cleaner
	stop   chan struct{}
	done   chan struct{}

	mu      sync.Mutex
	started bool
	stopped bool
}

func NewJanitor(caches ...Cleaner) *Janitor {
	return &Janitor{
		caches: caches,
		stop:   make(chan struct{}),
		done:   make(chan struct{}),
	}
}

// Start runs the cleanup loop in its own goroutine. onClean, when set,
// receives the number of items removed by each non-empty pass.
func (j *Janitor) Start(interval time.Duration, onClean func(removed int)) {
	j.mu.Lock()
	defer j.mu.Unlock()
	if j.started || j.stopped {
		return
	}
	j.started = true

	go func() {
		defer close(j.done)

		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-ticker.C:
				removed := 0
				for _, c := range j.caches {
					removed += c.CleanExpired()
				}
				if removed > 0 && onClean != nil {
					onClean(removed)
				}
			case <-j.stop:
				return
			}
		}
	}()
}

// Stop ends the loop and waits for it to exit. A stopped janitor cannot
// be restarted.
func (j *Janitor) Stop() {
	j.mu.Lock()
	if j.stopped {
		j.mu.Unlock()
		return
	}
	j.stopped = true
	started := j.started
	close(j.stop)
	j.mu.Unlock()

	if started {
		<-j.done
	}
}
