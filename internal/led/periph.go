package led

import (
	"fmt"

	"periph.io/x/conn/v3/gpio"
	"periph.io/x/conn/v3/gpio/gpioreg"
	"periph.io/x/conn/v3/physic"
	"periph.io/x/host/v3"
)

// PeriphOutput drives a PWM-capable pin through periph.io. A disabled
// output is switched to an input so the pin floats and the driver stage
// draws nothing.
type PeriphOutput struct {
	pin     gpio.PinIO
	freq    physic.Frequency
	enabled bool
	level   uint8
}

// NewPeriphOutput initialises the host drivers and claims the named pin.
func NewPeriphOutput(name string, freqHz int64) (*PeriphOutput, error) {
	if _, err := host.Init(); err != nil {
		return nil, fmt.Errorf("init periph host: %w", err)
	}
	pin := gpioreg.ByName(name)
	if pin == nil {
		return nil, fmt.Errorf("failed to find GPIO pin '%s'", name)
	}
	o := &PeriphOutput{
		pin:  pin,
		freq: physic.Frequency(freqHz) * physic.Hertz,
	}
	if err := o.apply(); err != nil {
		return nil, err
	}
	return o, nil
}

func dutyFor(level uint8) gpio.Duty {
	return gpio.Duty(int64(gpio.DutyMax) * int64(level) / MaxLevel)
}

func (o *PeriphOutput) apply() error {
	switch {
	case !o.enabled:
		if err := o.pin.In(gpio.PullNoChange, gpio.NoEdge); err != nil {
			return fmt.Errorf("release %s: %w", o.pin, err)
		}
	case o.level == 0:
		if err := o.pin.Out(gpio.Low); err != nil {
			return fmt.Errorf("drive %s low: %w", o.pin, err)
		}
	default:
		if err := o.pin.PWM(dutyFor(o.level), o.freq); err != nil {
			return fmt.Errorf("pwm %s: %w", o.pin, err)
		}
	}
	return nil
}

// Enable turns the output driver on at the current level.
func (o *PeriphOutput) Enable() error {
	o.enabled = true
	return o.apply()
}

// Disable releases the pin.
func (o *PeriphOutput) Disable() error {
	o.enabled = false
	return o.apply()
}

// Set changes the duty level. It only reaches the pin while enabled.
func (o *PeriphOutput) Set(level uint8) error {
	o.level = level
	if !o.enabled {
		return nil
	}
	return o.apply()
}

// Close releases the pin and halts any PWM.
func (o *PeriphOutput) Close() error {
	if err := o.Disable(); err != nil {
		return err
	}
	return o.pin.Halt()
}
