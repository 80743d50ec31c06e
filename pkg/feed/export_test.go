package feed

import "time"

// Test seams used by the external feed_test package.

// SetClockForTest swaps the controller's timer and clock functions so tests
// can fire backoffs deterministically. Nil arguments keep the real ones.
func (c *Controller) SetClockForTest(after func(time.Duration, func()) *time.Timer, now func() time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if after != nil {
		c.afterFunc = after
	}
	if now != nil {
		c.now = now
	}
}

// BufferForTest exposes the controller's internal buffer.
func (c *Controller) BufferForTest() *Buffer {
	return c.buf
}
