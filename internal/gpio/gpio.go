// Package gpio provides sensor input reading with hardware abstraction.
// The real implementation uses Linux GPIO character device.
// The fake implementation allows testing without hardware.
package gpio

// Reader reads the lamp's two sensors and reports tilt edges.
type Reader interface {
	// ReadTilt returns the raw tilt pin level. The pin is pulled up, so
	// true means the switch is open.
	ReadTilt() (bool, error)

	// ReadDark returns the logical light sensor state.
	// The raw value is inverted: raw low = dark.
	ReadDark() (bool, error)

	// OnEdge registers fn to be called on every tilt pin edge. It replaces
	// any previous handler; nil removes it. fn runs on the reader's event
	// goroutine and must not block.
	OnEdge(fn func())

	// Close releases GPIO resources.
	Close() error
}

// Default line offsets on gpiochip0 (BCM numbering).
const (
	DefaultChip     = "gpiochip0"
	DefaultPinTilt  = 17
	DefaultPinLight = 27
)
