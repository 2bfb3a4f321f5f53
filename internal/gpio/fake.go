package gpio

import (
	"errors"
	"sync"
)

// FakeReader is a test double that returns scripted sensor values.
// It is safe for concurrent use, because the poll loop and the watchdog
// handler read it from different goroutines.
type FakeReader struct {
	mu sync.Mutex

	// Tilt contains scripted tilt levels. Each ReadTilt consumes the next.
	Tilt []bool
	// Dark contains scripted light sensor values. Each ReadDark consumes
	// the next.
	Dark []bool

	tiltIndex int
	darkIndex int
	tiltReads int
	darkReads int
	handler   func()

	// Closed tracks if Close was called
	Closed bool

	// ReadError, if set, will be returned by both reads.
	ReadError error
}

// NewFakeReader creates a FakeReader with the given scripts.
func NewFakeReader(tilt, dark []bool) *FakeReader {
	return &FakeReader{Tilt: tilt, Dark: dark}
}

// next returns script[*i], advancing *i unless it is already on the last
// value, which then repeats.
func next(script []bool, i *int) (bool, error) {
	if len(script) == 0 {
		return false, errors.New("no samples configured")
	}
	v := script[*i]
	if *i < len(script)-1 {
		*i++
	}
	return v, nil
}

// ReadTilt returns the next scripted tilt level.
func (f *FakeReader) ReadTilt() (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.ReadError != nil {
		return false, f.ReadError
	}
	f.tiltReads++
	return next(f.Tilt, &f.tiltIndex)
}

// ReadDark returns the next scripted light sensor value.
func (f *FakeReader) ReadDark() (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.ReadError != nil {
		return false, f.ReadError
	}
	f.darkReads++
	return next(f.Dark, &f.darkIndex)
}

// SetTilt replaces the tilt script with a steady level.
func (f *FakeReader) SetTilt(level bool) {
	f.mu.Lock()
	f.Tilt = []bool{level}
	f.tiltIndex = 0
	f.mu.Unlock()
}

// SetDark replaces the light script with a steady value.
func (f *FakeReader) SetDark(dark bool) {
	f.mu.Lock()
	f.Dark = []bool{dark}
	f.darkIndex = 0
	f.mu.Unlock()
}

// SetReadError sets or clears the error returned by reads.
func (f *FakeReader) SetReadError(err error) {
	f.mu.Lock()
	f.ReadError = err
	f.mu.Unlock()
}

// OnEdge records the edge handler.
func (f *FakeReader) OnEdge(fn func()) {
	f.mu.Lock()
	f.handler = fn
	f.mu.Unlock()
}

// Fire simulates a tilt edge. It reports whether a handler was registered.
func (f *FakeReader) Fire() bool {
	f.mu.Lock()
	fn := f.handler
	f.mu.Unlock()
	if fn == nil {
		return false
	}
	fn()
	return true
}

// Reads returns how many tilt and light reads have been made.
func (f *FakeReader) Reads() (tilt, dark int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.tiltReads, f.darkReads
}

// Close marks the reader as closed.
func (f *FakeReader) Close() error {
	f.mu.Lock()
	f.Closed = true
	f.mu.Unlock()
	return nil
}

// Reset resets the reader to the beginning of both scripts.
func (f *FakeReader) Reset() {
	f.mu.Lock()
	f.tiltIndex = 0
	f.darkIndex = 0
	f.tiltReads = 0
	f.darkReads = 0
	f.Closed = false
	f.mu.Unlock()
}
