// Package led drives the lamp's PWM output and its brightness ramps.
package led

import (
	"fmt"
	"sync/atomic"
	"time"
)

// MaxLevel is the full-on duty level.
const MaxLevel = 0xFF

// DefaultPin is the PWM-capable header pin driving the LED.
const DefaultPin = "GPIO18"

// Output is a PWM output with a separate driver enable. A disabled output
// is physically off whatever its level.
type Output interface {
	Enable() error
	Disable() error
	Set(level uint8) error
	Close() error
}

// Ramper sweeps an Output's level across its full range one step at a
// time. It is the only writer of the level; callers serialise ramps.
type Ramper struct {
	out   Output
	step  time.Duration
	sleep func(time.Duration)
	level atomic.Uint32
}

// NewRamper returns a Ramper that waits step between levels. sleep may be
// nil, in which case time.Sleep is used.
func NewRamper(out Output, step time.Duration, sleep func(time.Duration)) *Ramper {
	if sleep == nil {
		sleep = time.Sleep
	}
	return &Ramper{out: out, step: step, sleep: sleep}
}

// Level returns the current duty level.
func (r *Ramper) Level() uint8 {
	return uint8(r.level.Load())
}

// Up enables the driver and raises the level to MaxLevel.
func (r *Ramper) Up() error {
	if err := r.out.Enable(); err != nil {
		return fmt.Errorf("enable output: %w", err)
	}
	for l := r.Level(); l < MaxLevel; {
		l++
		if err := r.set(l); err != nil {
			return err
		}
		r.sleep(r.step)
	}
	return nil
}

// Down lowers the level to zero and then disables the driver.
func (r *Ramper) Down() error {
	for l := r.Level(); l > 0; {
		l--
		if err := r.set(l); err != nil {
			return err
		}
		r.sleep(r.step)
	}
	if err := r.out.Disable(); err != nil {
		return fmt.Errorf("disable output: %w", err)
	}
	return nil
}

// Off drops the level to zero at once and disables the driver.
func (r *Ramper) Off() error {
	if err := r.set(0); err != nil {
		return err
	}
	if err := r.out.Disable(); err != nil {
		return fmt.Errorf("disable output: %w", err)
	}
	return nil
}

func (r *Ramper) set(l uint8) error {
	r.level.Store(uint32(l))
	if err := r.out.Set(l); err != nil {
		return fmt.Errorf("set level %d: %w", l, err)
	}
	return nil
}
