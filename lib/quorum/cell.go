package quorum

import (
	"fmt"
	"sync"
)

// Cell holds the process-wide write quorum. It is the only runtime-mutable
// configuration value: the admin control plane overwrites it while writes
// read it, so all access is serialized by its own lock to keep a concurrent
// reconfiguration from being observed half-applied.
//
// Any value >= 0 is accepted. There is deliberately no upper bound against
// the follower count - an unreachable quorum is a valid configuration that
// makes every subsequent write fail until corrected.
type Cell struct {
	mu sync.RWMutex
	n  int
}

// NewCell creates a quorum cell seeded with the initial quorum.
func NewCell(n int) (*Cell, error) {
	c := &Cell{}
	if err := c.Set(n); err != nil {
		return nil, err
	}
	return c, nil
}

// Get returns the current write quorum.
//
// Thread-safety: This method is thread-safe and can be called concurrently.
func (c *Cell) Get() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.n
}

// Set overwrites the write quorum. Negative values are rejected.
//
// Thread-safety: This method is thread-safe and can be called concurrently.
func (c *Cell) Set(n int) error {
	if n < 0 {
		return fmt.Errorf("write quorum must be >= 0, got %d", n)
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.n = n
	return nil
}
