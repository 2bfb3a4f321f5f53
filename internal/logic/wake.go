package logic

// WakeSampler is the slow-channel debounce run by the watchdog handler. It
// requires depth consecutive samples in the target condition before firing.
// Once it fires it stays saturated and latched: it does not fire again until
// a sample leaves the target condition.
type WakeSampler struct {
	depth   uint8
	policy  DisagreePolicy
	count   uint8
	latched bool
}

// NewWakeSampler returns a sampler that fires on the depth-th agreeing sample.
func NewWakeSampler(depth uint8, policy DisagreePolicy) WakeSampler {
	return WakeSampler{depth: depth, policy: policy}
}

// Sample records one watchdog reading and reports whether the threshold was
// reached on this sample. A disagreeing sample clears the latch, and under
// DisagreeReset also the count.
func (w *WakeSampler) Sample(target bool) bool {
	if w.depth == 0 {
		return false
	}
	if !target {
		w.latched = false
		if w.policy == DisagreeReset {
			w.count = 0
		}
		return false
	}
	if w.latched {
		return false
	}
	if w.count < w.depth {
		w.count++
	}
	if w.count < w.depth {
		return false
	}
	w.latched = true
	return true
}

// Latched reports whether the sampler has fired and is waiting for a
// disagreeing sample.
func (w *WakeSampler) Latched() bool {
	return w.latched
}

// Count returns the current run of agreeing samples.
func (w *WakeSampler) Count() uint8 {
	return w.count
}
