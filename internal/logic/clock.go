package logic

// Clock divides the periodic tick into seconds.
type Clock struct {
	hz    uint16
	tally uint16
}

// NewClock returns a clock that completes a second every hz ticks.
func NewClock(hz uint16) Clock {
	return Clock{hz: hz}
}

// Tick counts one tick and reports whether a second has elapsed.
func (c *Clock) Tick() bool {
	c.tally++
	if c.tally < c.hz {
		return false
	}
	c.tally = 0
	return true
}

// saturatingInc increments n, sticking at MaxIdleSeconds.
func saturatingInc(n uint16) uint16 {
	if n == MaxIdleSeconds {
		return n
	}
	return n + 1
}
