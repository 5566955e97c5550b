package admission

import (
	"strings"
	"sync"
)

// Controller tracks documents with a generation request in flight.
// A document id is admitted at most once until it is released.
type Controller struct {
	mu       sync.Mutex
	inFlight map[string]struct{}
}

func New() *Controller {
	return &Controller{
		inFlight: make(map[string]struct{}),
	}
}

// TryAdmit marks id as in flight and reports whether the caller may proceed.
// The membership check and the insertion happen under one lock.
func (c *Controller) TryAdmit(id string) bool {
	if strings.TrimSpace(id) == "" {
		return false
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if _, ok := c.inFlight[id]; ok {
		return false
	}
	c.inFlight[id] = struct{}{}
	return true
}

// Release removes id. Releasing an absent id is a no-op.
func (c *Controller) Release(id string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.inFlight, id)
}

func (c *Controller) InFlight(id string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, ok := c.inFlight[id]
	return ok
}

func (c *Controller) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.inFlight)
}
