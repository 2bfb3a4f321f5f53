//go:build linux

package gpio

import (
	"fmt"
	"sync/atomic"

	"github.com/warthog618/go-gpiocdev"
)

// RealReader reads GPIO from actual hardware using Linux GPIO character device.
type RealReader struct {
	chip     *gpiocdev.Chip
	tiltPin  *gpiocdev.Line
	lightPin *gpiocdev.Line
	handler  atomic.Pointer[func()]
}

// NewRealReader requests the tilt and light lines on the named chip.
func NewRealReader(chipName string, pinTilt, pinLight int) (*RealReader, error) {
	chip, err := gpiocdev.NewChip(chipName)
	if err != nil {
		return nil, fmt.Errorf("open gpio chip %s: %w", chipName, err)
	}

	r := &RealReader{chip: chip}

	// The tilt switch shorts to ground, so it needs the pull-up. Both edges
	// are reported; the kernel timestamps them and the handler only pokes
	// the device state.
	tiltLine, err := chip.RequestLine(pinTilt,
		gpiocdev.AsInput,
		gpiocdev.WithPullUp,
		gpiocdev.WithBothEdges,
		gpiocdev.WithEventHandler(r.handleEvent))
	if err != nil {
		chip.Close()
		return nil, fmt.Errorf("request tilt pin %d: %w", pinTilt, err)
	}

	lightLine, err := chip.RequestLine(pinLight, gpiocdev.AsInput)
	if err != nil {
		tiltLine.Close()
		chip.Close()
		return nil, fmt.Errorf("request light pin %d: %w", pinLight, err)
	}

	r.tiltPin = tiltLine
	r.lightPin = lightLine
	return r, nil
}

func (r *RealReader) handleEvent(gpiocdev.LineEvent) {
	if fn := r.handler.Load(); fn != nil {
		(*fn)()
	}
}

// OnEdge registers the tilt edge handler.
func (r *RealReader) OnEdge(fn func()) {
	if fn == nil {
		r.handler.Store(nil)
		return
	}
	r.handler.Store(&fn)
}

// ReadTilt returns the raw tilt level.
func (r *RealReader) ReadTilt() (bool, error) {
	v, err := r.tiltPin.Value()
	if err != nil {
		return false, fmt.Errorf("read tilt pin: %w", err)
	}
	return v == 1, nil
}

// ReadDark returns true when the light sensor pulls its line low.
func (r *RealReader) ReadDark() (bool, error) {
	v, err := r.lightPin.Value()
	if err != nil {
		return false, fmt.Errorf("read light pin: %w", err)
	}
	return v == 0, nil
}

// Close releases GPIO resources.
// The tilt line goes back to a plain input with its edge handler dropped
// before the lines and chip are closed.
func (r *RealReader) Close() error {
	var errs []error

	r.handler.Store(nil)
	if r.tiltPin != nil {
		if err := r.tiltPin.Reconfigure(gpiocdev.AsInput, gpiocdev.WithPullUp); err != nil {
			errs = append(errs, fmt.Errorf("reconfigure tilt pin: %w", err))
		}
		if err := r.tiltPin.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close tilt pin: %w", err))
		}
	}
	if r.lightPin != nil {
		if err := r.lightPin.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close light pin: %w", err))
		}
	}
	if r.chip != nil {
		if err := r.chip.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close chip: %w", err))
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("close errors: %v", errs)
	}
	return nil
}
