package led

import "sync"

// FakeOutput records every level written for test assertions.
type FakeOutput struct {
	mu sync.Mutex

	// Levels contains every level passed to Set, in order.
	Levels []uint8
	// Enabled is the current driver state.
	Enabled bool
	// Enables and Disables count driver switches.
	Enables  int
	Disables int
	// Closed tracks if Close was called.
	Closed bool

	// SetError, if set, will be returned by Set.
	SetError error
}

// NewFakeOutput creates a FakeOutput for testing.
func NewFakeOutput() *FakeOutput {
	return &FakeOutput{}
}

// Enable records a driver enable.
func (f *FakeOutput) Enable() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Enabled = true
	f.Enables++
	return nil
}

// Disable records a driver disable.
func (f *FakeOutput) Disable() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Enabled = false
	f.Disables++
	return nil
}

// Set records the level.
func (f *FakeOutput) Set(level uint8) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.SetError != nil {
		return f.SetError
	}
	f.Levels = append(f.Levels, level)
	return nil
}

// Close marks the output as closed.
func (f *FakeOutput) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Closed = true
	return nil
}

// State returns the last level written, whether the driver is enabled and
// how many levels were written.
func (f *FakeOutput) State() (last uint8, enabled bool, writes int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if n := len(f.Levels); n > 0 {
		last = f.Levels[n-1]
	}
	return last, f.Enabled, len(f.Levels)
}
