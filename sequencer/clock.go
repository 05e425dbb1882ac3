package sequencer

import (
	"sync"
	"time"
)

// clock is Devnet's adjustable notion of wall time, driven by setTime and
// increaseTime (spec.md §6 devnet_setTime / devnet_increaseTime). Offsets
// accumulate against the real host clock so that
// increaseTime(Δ) applied twice equals increaseTime(2Δ) modulo the real
// time elapsed between calls (spec.md §8 "Round-trip laws").
type clock struct {
	mu     sync.Mutex
	offset int64
}

func newClock(startTime uint64) *clock {
	c := &clock{}
	if startTime != 0 {
		c.offset = int64(startTime) - time.Now().Unix()
	}
	return c
}

// now returns the current adjusted unix time in seconds.
func (c *clock) now() uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return uint64(time.Now().Unix() + c.offset)
}

// setTime pins the clock to t; subsequent now() calls advance from t with
// real elapsed time.
func (c *clock) setTime(t uint64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.offset = int64(t) - time.Now().Unix()
}

// increaseTime adds delta seconds to the current offset and returns the
// resulting now().
func (c *clock) increaseTime(delta uint64) uint64 {
	c.mu.Lock()
	c.offset += int64(delta)
	c.mu.Unlock()
	return c.now()
}
