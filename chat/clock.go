package chat

import (
	"sync"
	"time"
)

// stampClock hands out strictly increasing times at microsecond resolution,
// so turns written in the same microsecond still sort in order.
type stampClock struct {
	mu   sync.Mutex
	now  func() time.Time
	last time.Time
}

func (c *stampClock) next() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	t := c.now().Truncate(time.Microsecond)
	if !t.After(c.last) {
		t = c.last.Add(time.Microsecond)
	}
	c.last = t
	return t
}
