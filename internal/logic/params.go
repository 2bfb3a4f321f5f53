package logic

import (
	"fmt"
	"sort"
	"time"
)

// DisagreePolicy decides what a watchdog sample outside the target condition
// does to the consecutive-agreement counter.
type DisagreePolicy string

const (
	// DisagreeHold leaves the counter where it is.
	DisagreeHold DisagreePolicy = "HOLD"
	// DisagreeReset zeroes the counter.
	DisagreeReset DisagreePolicy = "RESET"
)

// EdgeWake decides what an edge interrupt does when it wakes the device.
type EdgeWake string

const (
	// EdgeWakeNone never arms the edge source for sleep.
	EdgeWakeNone EdgeWake = "NONE"
	// EdgeWakeListen wakes the CPU with the light off; the flip counter decides.
	EdgeWakeListen EdgeWake = "LISTEN"
	// EdgeWakeRampUp wakes straight into a ramp up.
	EdgeWakeRampUp EdgeWake = "RAMP_UP"
)

// MaxIdleSeconds is the value the idle counter saturates at.
const MaxIdleSeconds = 0xFFFF

// Params are the compile-time policy constants of one lamp variant.
// All second-valued thresholds are compared with ">" against the idle counter.
type Params struct {
	Name string

	// TickHz is the software clock rate; TickHz ticks make one second.
	TickHz uint16
	// OnTimeTilt is how long the lamp stays lit after tilt activity.
	OnTimeTilt uint16
	// OnTimeDark is how long the lamp stays lit after a darkness wake.
	// The idle counter is seeded with OnTimeTilt-OnTimeDark.
	OnTimeDark uint16
	// DebounceDepthSecondary is the number of consecutive dark watchdog
	// samples needed to wake. Zero disables light sensing.
	DebounceDepthSecondary uint8
	Disagree               DisagreePolicy
	// FlipThreshold is the number of debounced transitions that toggles the
	// lamp. Zero disables the toggle.
	FlipThreshold uint8
	// RearmAfter re-arms the edge source while awake once the idle counter
	// passes it. Zero keeps the edge source for sleep only.
	RearmAfter uint16
	EdgeWake   EdgeWake

	RampStepDelay  time.Duration
	PollInterval   time.Duration
	WatchdogPeriod time.Duration
}

// TickInterval returns the period of the software clock.
func (p Params) TickInterval() time.Duration {
	return time.Second / time.Duration(p.TickHz)
}

// SamplesLight reports whether the watchdog handler reads the light sensor.
func (p Params) SamplesLight() bool {
	return p.DebounceDepthSecondary > 0
}

// Toggles reports whether debounced flips toggle the lamp.
func (p Params) Toggles() bool {
	return p.FlipThreshold > 0
}

func (p Params) darkSeed() uint16 {
	if p.OnTimeDark >= p.OnTimeTilt {
		return 0
	}
	return p.OnTimeTilt - p.OnTimeDark
}

// Validate checks that every threshold can be reached.
func (p Params) Validate() error {
	if p.TickHz == 0 {
		return fmt.Errorf("variant %q: tick rate must be positive", p.Name)
	}
	// A saturated idle counter must still exceed the on-time, otherwise the
	// lamp could never time out.
	if p.OnTimeTilt >= MaxIdleSeconds {
		return fmt.Errorf("variant %q: on-time %ds cannot be exceeded by a 16-bit counter", p.Name, p.OnTimeTilt)
	}
	if p.RearmAfter >= MaxIdleSeconds {
		return fmt.Errorf("variant %q: re-arm threshold %ds cannot be exceeded", p.Name, p.RearmAfter)
	}
	if p.SamplesLight() && p.Disagree != DisagreeHold && p.Disagree != DisagreeReset {
		return fmt.Errorf("variant %q: unknown disagree policy %q", p.Name, p.Disagree)
	}
	switch p.EdgeWake {
	case EdgeWakeNone, EdgeWakeListen, EdgeWakeRampUp:
	default:
		return fmt.Errorf("variant %q: unknown edge wake %q", p.Name, p.EdgeWake)
	}
	if p.EdgeWake == EdgeWakeNone && !p.SamplesLight() {
		return fmt.Errorf("variant %q: no wake source", p.Name)
	}
	if p.RampStepDelay <= 0 || p.PollInterval <= 0 || p.WatchdogPeriod <= 0 {
		return fmt.Errorf("variant %q: delays must be positive", p.Name)
	}
	return nil
}

// Shared constants of all variants.
const (
	defaultTickHz        = 122
	defaultRampStepDelay = 16 * time.Millisecond
	defaultPollInterval  = 5 * time.Millisecond
	defaultWatchdog      = 8 * time.Second
)

var variants = map[string]Params{
	// Flip the lamp by shaking it, wake it with darkness.
	"toggle": {
		Name:                   "toggle",
		TickHz:                 defaultTickHz,
		OnTimeTilt:             120,
		OnTimeDark:             10,
		DebounceDepthSecondary: 10,
		Disagree:               DisagreeHold,
		FlipThreshold:          7,
		EdgeWake:               EdgeWakeListen,
		RampStepDelay:          defaultRampStepDelay,
		PollInterval:           defaultPollInterval,
		WatchdogPeriod:         defaultWatchdog,
	},
	// Any movement lights the lamp, which stays lit while moving.
	"motion": {
		Name:           "motion",
		TickHz:         defaultTickHz,
		OnTimeTilt:     60,
		RearmAfter:     5,
		EdgeWake:       EdgeWakeRampUp,
		RampStepDelay:  defaultRampStepDelay,
		PollInterval:   defaultPollInterval,
		WatchdogPeriod: defaultWatchdog,
	},
	"light": {
		Name:                   "light",
		TickHz:                 defaultTickHz,
		OnTimeTilt:             120,
		OnTimeDark:             30,
		DebounceDepthSecondary: 4,
		Disagree:               DisagreeReset,
		RearmAfter:             5,
		EdgeWake:               EdgeWakeRampUp,
		RampStepDelay:          defaultRampStepDelay,
		PollInterval:           defaultPollInterval,
		WatchdogPeriod:         defaultWatchdog,
	},
	// Needs about five minutes of darkness before lighting.
	"nightlight": {
		Name:                   "nightlight",
		TickHz:                 defaultTickHz,
		OnTimeTilt:             120,
		OnTimeDark:             60,
		DebounceDepthSecondary: 38,
		Disagree:               DisagreeReset,
		RearmAfter:             5,
		EdgeWake:               EdgeWakeRampUp,
		RampStepDelay:          defaultRampStepDelay,
		PollInterval:           defaultPollInterval,
		WatchdogPeriod:         defaultWatchdog,
	},
}

// DefaultVariant is the variant used when none is configured.
const DefaultVariant = "toggle"

// Variant returns the named preset.
func Variant(name string) (Params, error) {
	p, ok := variants[name]
	if !ok {
		return Params{}, fmt.Errorf("unknown variant %q (have %v)", name, VariantNames())
	}
	return p, nil
}

// VariantNames lists the presets in name order.
func VariantNames() []string {
	names := make([]string, 0, len(variants))
	for n := range variants {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}
