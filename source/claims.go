package source

import (
	"sync"
)

// Claims records which camera devices are currently held by a stream so a
// second stream asking for the same device fails cleanly instead of
// competing for frames
type Claims struct {
	mu   sync.Mutex
	held map[int]struct{}
}

// DefaultClaims is the process wide registry used by OpenCamera
var DefaultClaims = NewClaims()

// NewClaims returns an empty registry
func NewClaims() *Claims {
	return &Claims{
		held: make(map[int]struct{}),
	}
}

// Acquire claims the device, returning false if it is already held
func (c *Claims) Acquire(device int) bool {

	c.mu.Lock()
	defer c.mu.Unlock()

	if _, ok := c.held[device]; ok {
		return false
	}

	c.held[device] = struct{}{}
	return true
}

// Release gives up the claim on the device
func (c *Claims) Release(device int) {

	c.mu.Lock()
	defer c.mu.Unlock()

	delete(c.held, device)
}

// Held reports whether the device is currently claimed
func (c *Claims) Held(device int) bool {

	c.mu.Lock()
	defer c.mu.Unlock()

	_, ok := c.held[device]
	return ok
}
