//go:build !linux

package gpio

import "errors"

// RealReader is not available on non-Linux platforms.
type RealReader struct{}

// NewRealReader returns an error on non-Linux platforms.
func NewRealReader(chipName string, pinTilt, pinLight int) (*RealReader, error) {
	return nil, errors.New("gpio: not supported on this platform (requires Linux)")
}

// ReadTilt is not implemented on non-Linux platforms.
func (r *RealReader) ReadTilt() (bool, error) {
	return false, errors.New("gpio: not supported")
}

// ReadDark is not implemented on non-Linux platforms.
func (r *RealReader) ReadDark() (bool, error) {
	return false, errors.New("gpio: not supported")
}

// OnEdge is a no-op on non-Linux platforms.
func (r *RealReader) OnEdge(fn func()) {}

// Close is not implemented on non-Linux platforms.
func (r *RealReader) Close() error {
	return nil
}
