package billing

import (
	"sync"
	"time"
)

// Coordinator provides process-local mutual exclusion and a minimum-interval
// throttle for the billing sweep entry point. It is an explicit state object
// rather than package-level variables so throttle behavior is unit-testable
// without process restarts.
type Coordinator struct {
	mu          sync.Mutex
	running     bool
	lastRunAt   time.Time
	minInterval time.Duration
}

// NewCoordinator creates a coordinator enforcing at most one concurrent run
// and at least minInterval between run starts. The throttle applies whether
// the previous run succeeded or failed.
func NewCoordinator(minInterval time.Duration) *Coordinator {
	return &Coordinator{minInterval: minInterval}
}

// TryAcquire admits a run. It rejects when a run is in flight or when the
// previous run started less than the minimum interval ago. On admission the
// running flag and lastRunAt are set under the same lock as the check, so
// concurrent entrants cannot both pass.
func (c *Coordinator) TryAcquire(now time.Time) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.running {
		return false
	}
	if !c.lastRunAt.IsZero() && now.Sub(c.lastRunAt) < c.minInterval {
		return false
	}

	c.running = true
	c.lastRunAt = now
	return true
}

// Release clears the running flag. Callers must invoke it on every exit
// path after a successful TryAcquire, normally via defer; a missed release
// permanently wedges the sweep.
func (c *Coordinator) Release() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.running = false
}

// Running reports whether a run is currently in flight.
func (c *Coordinator) Running() bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.running
}
