package logic

import "sync"

// Device owns every counter shared between the foreground loop and the
// interrupt handlers. mu plays the part of the global interrupt mask: each
// handler holds it for its whole body, so no handler observes another half
// way through, and multi-byte counters are never torn.
type Device struct {
	mu sync.Mutex
	p  Params

	initial bool

	state  PowerState
	filter Debouncer
	clock  Clock
	dark   WakeSampler

	// secSleep is seconds since the last activity. Only OnTick increments
	// it; everyone else assigns a literal.
	secSleep uint16
	flips    uint8

	edgeArmed    bool
	pending      Action
	cause        WakeSource
	resetPending bool

	wake   chan WakeSource
	counts EventCounts
}

// NewDevice returns a device in the power-on state. initialLevel is the
// tilt pin's level at startup and seeds the debounce window.
func NewDevice(p Params, initialLevel bool) (*Device, error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}
	d := &Device{
		p:       p,
		initial: initialLevel,
		wake:    make(chan WakeSource, 1),
	}
	d.powerOn()
	return d, nil
}

// Params returns the policy constants the device runs with.
func (d *Device) Params() Params {
	return d.p
}

func (d *Device) powerOn() {
	d.state = StateOff
	d.filter = NewDebouncer(d.initial)
	d.clock = NewClock(d.p.TickHz)
	d.dark = NewWakeSampler(d.p.DebounceDepthSecondary, d.p.Disagree)
	d.secSleep = 0
	d.flips = 0
	d.edgeArmed = false
	d.pending = ActNone
	d.cause = WakeNone
}

// Wakeups delivers one value each time an interrupt handler wakes the device
// from sleep. The foreground blocks on it after Sleep.
func (d *Device) Wakeups() <-chan WakeSource {
	return d.wake
}

// Poll is the foreground step. It feeds level to the debounce filter and
// decides the next action from the idle and flip counters.
func (d *Device) Poll(level bool) Action {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.state != StateOff && d.state != StateOn {
		return ActNone
	}

	if a := d.pending; a != ActNone {
		d.pending = ActNone
		if a == ActRampUp && d.state == StateOff {
			return a
		}
	}

	flipped := d.filter.Sample(level)
	if d.p.Toggles() {
		if flipped && d.flips < d.p.FlipThreshold {
			d.flips++
		}
		if d.flips >= d.p.FlipThreshold {
			d.flips = 0
			d.resetIdleLocked()
			d.cause = WakeToggle
			d.counts.Toggles++
			if d.state == StateOn {
				return ActRampDown
			}
			return ActRampUp
		}
	}

	if d.secSleep > d.p.OnTimeTilt {
		if d.state == StateOn {
			return ActRampDown
		}
		return ActSleep
	}

	if d.p.RearmAfter > 0 && d.secSleep > d.p.RearmAfter {
		d.edgeArmed = true
	}
	return ActNone
}

// BeginRamp takes ownership of the duty level for a sweep in dir. It fails
// unless the lamp is settled at the opposite end.
func (d *Device) BeginRamp(dir Direction) bool {
	d.mu.Lock()
	defer d.mu.Unlock()

	switch {
	case dir == Up && d.state == StateOff:
		d.state = StateFadingUp
	case dir == Down && d.state == StateOn:
		d.state = StateFadingDown
	default:
		return false
	}
	d.edgeArmed = false
	return true
}

// EndRamp releases the duty level. A finished ramp down is always followed
// by sleep. completed is false when a reset abandoned the ramp while it ran.
func (d *Device) EndRamp() (next Action, completed bool) {
	d.mu.Lock()
	defer d.mu.Unlock()

	switch d.state {
	case StateFadingUp:
		d.state = StateOn
		d.counts.RampUps++
		return ActNone, true
	case StateFadingDown:
		d.state = StateOff
		d.counts.RampDowns++
		return ActSleep, true
	}
	return ActNone, false
}

// Sleep enters the low-power state. The edge source is disarmed and then
// armed afresh, and any wake left over from the awake period is dropped.
func (d *Device) Sleep() bool {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.state != StateOff {
		return false
	}
	d.resetIdleLocked()
	d.edgeArmed = false
	d.pending = ActNone
drain:
	for {
		select {
		case <-d.wake:
		default:
			break drain
		}
	}
	d.edgeArmed = d.p.EdgeWake != EdgeWakeNone
	d.state = StateAsleep
	d.counts.Sleeps++
	return true
}

// OnTick is the periodic timer handler. It reports whether a second elapsed.
// The clock stops while asleep and while a ramp holds the mask.
func (d *Device) OnTick() bool {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.state != StateOff && d.state != StateOn {
		return false
	}
	if !d.clock.Tick() {
		return false
	}
	d.secSleep = saturatingInc(d.secSleep)
	if d.flips > 0 {
		d.flips--
	}
	return true
}

// WantsLight reports whether the watchdog handler should read the light
// sensor now. It lets the caller skip the pin read.
func (d *Device) WantsLight() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.samplingLocked()
}

func (d *Device) samplingLocked() bool {
	return d.p.SamplesLight() && (d.state == StateAsleep || d.state == StateOff)
}

// OnWatchdog is the watchdog handler's sensing half. It reports whether the
// darkness threshold was reached, which queues a ramp up. The caller must
// acknowledge the watchdog whatever this returns.
func (d *Device) OnWatchdog(dark bool) bool {
	d.mu.Lock()
	defer d.mu.Unlock()

	if !d.samplingLocked() {
		return false
	}
	if !d.dark.Sample(dark) {
		return false
	}
	d.secSleep = d.p.darkSeed()
	d.pending = ActRampUp
	d.cause = WakeWatchdog
	d.wakeLocked(WakeWatchdog)
	return true
}

// OnEdge is the pin-change handler. It is one-shot: it disarms itself and
// resets the idle counter. It reports whether it was armed.
func (d *Device) OnEdge() bool {
	d.mu.Lock()
	defer d.mu.Unlock()

	if !d.edgeArmed {
		return false
	}
	d.edgeArmed = false
	d.resetIdleLocked()

	switch d.state {
	case StateAsleep:
		d.cause = WakeEdge
		if d.p.EdgeWake == EdgeWakeRampUp {
			d.pending = ActRampUp
		}
		d.wakeLocked(WakeEdge)
	case StateOff:
		if d.p.EdgeWake == EdgeWakeRampUp {
			d.cause = WakeEdge
			d.pending = ActRampUp
		}
	}
	return true
}

func (d *Device) wakeLocked(src WakeSource) {
	if d.state != StateAsleep {
		return
	}
	d.state = StateOff
	d.edgeArmed = false
	d.counts.Wakes++
	select {
	case d.wake <- src:
	default:
	}
}

func (d *Device) resetIdleLocked() {
	d.secSleep = 0
}

// Reset is what happens when the watchdog goes unacknowledged: everything
// returns to its power-on value. The foreground learns of it through
// TakeReset and must force the LED off.
func (d *Device) Reset() {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.powerOn()
	d.cause = WakeReset
	d.counts.Resets++
	d.resetPending = true
	select {
	case d.wake <- WakeReset:
	default:
	}
}

// TakeReset reports, once, whether a reset happened since the last call.
func (d *Device) TakeReset() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	r := d.resetPending
	d.resetPending = false
	return r
}

// State returns the current power state.
func (d *Device) State() PowerState {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.state
}

// Snapshot returns a copy of the device state.
func (d *Device) Snapshot() Snapshot {
	d.mu.Lock()
	defer d.mu.Unlock()
	return Snapshot{
		State:         d.state,
		IdleSeconds:   d.secSleep,
		Flips:         d.flips,
		EdgeArmed:     d.edgeArmed,
		DarkSamples:   d.dark.Count(),
		Cause:         d.cause,
		PendingAction: d.pending,
		Counts:        d.counts,
	}
}
