package logic

import "math/bits"

// Hysteresis band of the rolling window. The latched polarity only flips
// when the window has clearly moved to the other side.
const (
	windowSize = 8
	flipLow    = 3 // latched high flips when fewer than this many bits are set
	flipHigh   = 6 // latched low flips when more than this many bits are set
)

// Debouncer turns raw pin reads into debounced transitions using an 8-sample
// rolling majority vote.
type Debouncer struct {
	window uint8
	index  uint8
	high   bool
}

// NewDebouncer seeds the window and the latched polarity with the pin's
// current level, so a steady pin never reports a transition.
func NewDebouncer(initial bool) Debouncer {
	d := Debouncer{high: initial}
	if initial {
		d.window = 0xFF
	}
	return d
}

// Sample shifts level into the window and reports whether the latched
// polarity flipped.
func (d *Debouncer) Sample(level bool) bool {
	if level {
		d.window |= 1 << d.index
	} else {
		d.window &^= 1 << d.index
	}
	d.index = (d.index + 1) % windowSize

	sum := bits.OnesCount8(d.window)
	if (d.high && sum < flipLow) || (!d.high && sum > flipHigh) {
		d.high = !d.high
		return true
	}
	return false
}

// High returns the latched polarity.
func (d *Debouncer) High() bool {
	return d.high
}
