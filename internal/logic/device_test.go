package logic

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newDevice(t *testing.T, variant string) *Device {
	t.Helper()
	p, err := Variant(variant)
	require.NoError(t, err)
	d, err := NewDevice(p, true)
	require.NoError(t, err)
	return d
}

// tickSeconds runs the software clock for n whole seconds.
func tickSeconds(d *Device, n int) {
	for i := 0; i < n*int(d.p.TickHz); i++ {
		d.OnTick()
	}
}

// rampUp drives the device from AWAKE_OFF to AWAKE_ON.
func rampUp(t *testing.T, d *Device) {
	t.Helper()
	require.True(t, d.BeginRamp(Up))
	next, completed := d.EndRamp()
	require.True(t, completed)
	require.Equal(t, ActNone, next)
	require.Equal(t, StateOn, d.State())
}

// rampDownAndSleep drives the device from AWAKE_ON back to ASLEEP.
func rampDownAndSleep(t *testing.T, d *Device) {
	t.Helper()
	require.True(t, d.BeginRamp(Down))
	next, completed := d.EndRamp()
	require.True(t, completed)
	require.Equal(t, ActSleep, next)
	require.True(t, d.Sleep())
}

// flip feeds eight samples of level, which flips the debouncer exactly once
// when it is latched the other way.
func flip(d *Device, level bool) []Action {
	var acts []Action
	for i := 0; i < windowSize; i++ {
		if a := d.Poll(level); a != ActNone {
			acts = append(acts, a)
		}
	}
	return acts
}

func TestNewDeviceStartsAwakeOff(t *testing.T) {
	d := newDevice(t, "toggle")
	snap := d.Snapshot()
	assert.Equal(t, StateOff, snap.State)
	assert.Equal(t, uint16(0), snap.IdleSeconds)
	assert.False(t, snap.EdgeArmed)
}

func TestNewDeviceRejectsInvalidParams(t *testing.T) {
	p, err := Variant("motion")
	require.NoError(t, err)
	p.OnTimeTilt = MaxIdleSeconds
	_, err = NewDevice(p, true)
	assert.Error(t, err)
}

// A steady tilt pin never toggles the lamp.
func TestSteadyInputNeverToggles(t *testing.T) {
	d := newDevice(t, "toggle")
	for i := 0; i < 1000; i++ {
		require.Equal(t, ActNone, d.Poll(true), "poll %d", i)
	}
	assert.Equal(t, uint8(0), d.Snapshot().Flips)
}

// Seven debounced flips while dark ramp the lamp up once.
func TestFlipsToggleLampUpOnce(t *testing.T) {
	d := newDevice(t, "toggle")
	tickSeconds(d, 3)
	require.Equal(t, uint16(3), d.Snapshot().IdleSeconds)

	var acts []Action
	level := false
	for i := 0; i < 7; i++ {
		acts = append(acts, flip(d, level)...)
		level = !level
	}
	assert.Equal(t, []Action{ActRampUp}, acts)

	snap := d.Snapshot()
	assert.Equal(t, uint16(0), snap.IdleSeconds)
	assert.Equal(t, uint8(0), snap.Flips)
	assert.Equal(t, WakeToggle, snap.Cause)
	assert.Equal(t, 1, snap.Counts.Toggles)
}

func TestFlipsToggleLampDownWhenOn(t *testing.T) {
	d := newDevice(t, "toggle")
	rampUp(t, d)

	var acts []Action
	level := false
	for i := 0; i < 7; i++ {
		acts = append(acts, flip(d, level)...)
		level = !level
	}
	assert.Equal(t, []Action{ActRampDown}, acts)
}

func TestFlipsDecayOncePerSecond(t *testing.T) {
	d := newDevice(t, "toggle")
	flip(d, false)
	flip(d, true)
	flip(d, false)
	require.Equal(t, uint8(3), d.Snapshot().Flips)

	tickSeconds(d, 1)
	assert.Equal(t, uint8(2), d.Snapshot().Flips)
	tickSeconds(d, 5)
	assert.Equal(t, uint8(0), d.Snapshot().Flips)
}

func TestSlowFlipsNeverToggle(t *testing.T) {
	d := newDevice(t, "toggle")
	level := false
	for i := 0; i < 20; i++ {
		require.Empty(t, flip(d, level), "flip %d", i)
		level = !level
		tickSeconds(d, 1)
	}
}

func TestMotionVariantIgnoresFlips(t *testing.T) {
	d := newDevice(t, "motion")
	level := false
	for i := 0; i < 20; i++ {
		require.Empty(t, flip(d, level))
		level = !level
	}
}

// The lamp ramps down once the idle counter passes the on-time.
func TestIdleTimeoutRampsDownAndSleeps(t *testing.T) {
	d := newDevice(t, "motion")
	rampUp(t, d)

	for s := 1; s <= int(d.p.OnTimeTilt); s++ {
		tickSeconds(d, 1)
		require.Equal(t, ActNone, d.Poll(true), "second %d", s)
	}
	require.Equal(t, d.p.OnTimeTilt, d.Snapshot().IdleSeconds)

	tickSeconds(d, 1)
	require.Equal(t, ActRampDown, d.Poll(true))
	require.True(t, d.BeginRamp(Down))
	assert.Equal(t, StateFadingDown, d.State())
	next, completed := d.EndRamp()
	require.True(t, completed)
	require.Equal(t, ActSleep, next)
	require.True(t, d.Sleep())

	snap := d.Snapshot()
	assert.Equal(t, StateAsleep, snap.State)
	assert.Equal(t, uint16(0), snap.IdleSeconds)
	assert.True(t, snap.EdgeArmed)
	assert.Equal(t, 1, snap.Counts.RampUps)
	assert.Equal(t, 1, snap.Counts.RampDowns)
	assert.Equal(t, 1, snap.Counts.Sleeps)
}

func TestIdleTimeoutWhileOffSleepsDirectly(t *testing.T) {
	d := newDevice(t, "toggle")
	tickSeconds(d, int(d.p.OnTimeTilt)+1)
	assert.Equal(t, ActSleep, d.Poll(true))
}

// Ten dark samples wake the lamp on the tenth.
func TestWatchdogWakesOnTenthDarkSample(t *testing.T) {
	d := newDevice(t, "toggle")
	require.True(t, d.Sleep())

	for i := 1; i < 10; i++ {
		require.False(t, d.OnWatchdog(true), "sample %d", i)
		require.Equal(t, StateAsleep, d.State())
	}
	require.True(t, d.OnWatchdog(true))

	select {
	case src := <-d.Wakeups():
		assert.Equal(t, WakeWatchdog, src)
	default:
		t.Fatal("expected a wakeup")
	}
	assert.Equal(t, StateOff, d.State())
	assert.Equal(t, ActRampUp, d.Poll(true))

	snap := d.Snapshot()
	assert.Equal(t, uint16(110), snap.IdleSeconds, "dark wake seeds the idle counter")
	assert.Equal(t, 1, snap.Counts.Wakes)
}

// A room that stays dark lights the lamp once, not once per on-time.
func TestContinuousDarkWakesOnce(t *testing.T) {
	for _, variant := range []string{"toggle", "light", "nightlight"} {
		t.Run(variant, func(t *testing.T) {
			d := newDevice(t, variant)
			require.True(t, d.Sleep())

			wakes := 0
			for i := 0; i < 5*int(d.p.DebounceDepthSecondary); i++ {
				if !d.OnWatchdog(true) {
					continue
				}
				wakes++
				require.Equal(t, WakeWatchdog, <-d.Wakeups())
				require.Equal(t, ActRampUp, d.Poll(true))
				rampUp(t, d)
				tickSeconds(d, int(d.p.OnTimeDark)+1)
				require.Equal(t, ActRampDown, d.Poll(true))
				rampDownAndSleep(t, d)
			}
			assert.Equal(t, 1, wakes)
			assert.Equal(t, 1, d.Snapshot().Counts.Wakes)
			assert.Equal(t, StateAsleep, d.State())
		})
	}
}

// Light coming back re-arms the darkness wake for the next dusk.
func TestDarkWakeRearmsAfterLight(t *testing.T) {
	d := newDevice(t, "light")
	require.True(t, d.Sleep())
	depth := int(d.p.DebounceDepthSecondary)

	for i := 0; i < depth; i++ {
		d.OnWatchdog(true)
	}
	<-d.Wakeups()
	require.Equal(t, ActRampUp, d.Poll(true))
	rampUp(t, d)
	tickSeconds(d, int(d.p.OnTimeDark)+1)
	require.Equal(t, ActRampDown, d.Poll(true))
	rampDownAndSleep(t, d)

	require.False(t, d.OnWatchdog(false))
	for i := 1; i < depth; i++ {
		require.False(t, d.OnWatchdog(true), "sample %d", i)
	}
	assert.True(t, d.OnWatchdog(true))
	assert.Equal(t, 2, d.Snapshot().Counts.Wakes)
}

func TestDarkWakeUsesShorterOnTime(t *testing.T) {
	d := newDevice(t, "toggle")
	require.True(t, d.Sleep())
	for i := 0; i < 10; i++ {
		d.OnWatchdog(true)
	}
	<-d.Wakeups()
	require.Equal(t, ActRampUp, d.Poll(true))
	rampUp(t, d)

	tickSeconds(d, int(d.p.OnTimeDark))
	require.Equal(t, ActNone, d.Poll(true))
	tickSeconds(d, 1)
	assert.Equal(t, ActRampDown, d.Poll(true))
}

// Hold policy: a light sample does not lose the run.
func TestWatchdogHoldPolicy(t *testing.T) {
	d := newDevice(t, "toggle")
	require.Equal(t, DisagreeHold, d.p.Disagree)
	require.True(t, d.Sleep())

	for i := 0; i < 5; i++ {
		require.False(t, d.OnWatchdog(true))
	}
	require.False(t, d.OnWatchdog(false))
	assert.Equal(t, uint8(5), d.Snapshot().DarkSamples)
	for i := 0; i < 4; i++ {
		require.False(t, d.OnWatchdog(true))
	}
	assert.True(t, d.OnWatchdog(true))
}

// Reset policy: a light sample restarts the run.
func TestWatchdogResetPolicy(t *testing.T) {
	d := newDevice(t, "light")
	require.Equal(t, DisagreeReset, d.p.Disagree)
	require.True(t, d.Sleep())

	for i := 0; i < 3; i++ {
		require.False(t, d.OnWatchdog(true))
	}
	require.False(t, d.OnWatchdog(false))
	assert.Equal(t, uint8(0), d.Snapshot().DarkSamples)
	for i := 0; i < 3; i++ {
		require.False(t, d.OnWatchdog(true))
	}
	assert.True(t, d.OnWatchdog(true))
}

func TestWatchdogIgnoredWhileLit(t *testing.T) {
	d := newDevice(t, "light")
	rampUp(t, d)
	assert.False(t, d.WantsLight())
	for i := 0; i < 10; i++ {
		assert.False(t, d.OnWatchdog(true))
	}
	assert.Equal(t, uint8(0), d.Snapshot().DarkSamples)
}

func TestMotionVariantNeverSamplesLight(t *testing.T) {
	d := newDevice(t, "motion")
	require.True(t, d.Sleep())
	assert.False(t, d.WantsLight())
	assert.False(t, d.OnWatchdog(true))
}

func TestEdgeWakesIntoRampUp(t *testing.T) {
	d := newDevice(t, "motion")
	require.True(t, d.Sleep())

	require.True(t, d.OnEdge())
	assert.Equal(t, WakeEdge, <-d.Wakeups())
	assert.Equal(t, ActRampUp, d.Poll(true))
	assert.Equal(t, WakeEdge, d.Snapshot().Cause)

	assert.False(t, d.OnEdge(), "the edge source disarms itself")
}

func TestEdgeWakeListensInToggleVariant(t *testing.T) {
	d := newDevice(t, "toggle")
	require.True(t, d.Sleep())

	require.True(t, d.OnEdge())
	assert.Equal(t, WakeEdge, <-d.Wakeups())
	assert.Equal(t, StateOff, d.State())
	assert.Equal(t, ActNone, d.Poll(true))
}

func TestEdgeDisarmedWhileAwakeInToggleVariant(t *testing.T) {
	d := newDevice(t, "toggle")
	tickSeconds(d, 30)
	d.Poll(true)
	assert.False(t, d.OnEdge())
	assert.Equal(t, uint16(30), d.Snapshot().IdleSeconds)
}

func TestEdgeRearmsAndExtendsAwakePeriod(t *testing.T) {
	d := newDevice(t, "motion")
	rampUp(t, d)

	tickSeconds(d, 5)
	d.Poll(true)
	require.False(t, d.Snapshot().EdgeArmed, "not past the re-arm threshold yet")

	tickSeconds(d, 1)
	d.Poll(true)
	require.True(t, d.Snapshot().EdgeArmed)

	tickSeconds(d, 40)
	require.True(t, d.OnEdge())
	assert.Equal(t, uint16(0), d.Snapshot().IdleSeconds)
	assert.False(t, d.Snapshot().EdgeArmed)
	assert.Equal(t, StateOn, d.State())
}

// A tilt held in the tripped position produces one edge; it must not keep
// the lamp awake forever.
func TestHeldTiltStillTimesOut(t *testing.T) {
	d := newDevice(t, "motion")
	rampUp(t, d)
	tickSeconds(d, 6)
	d.Poll(true)
	require.True(t, d.OnEdge())

	var act Action
	for s := 0; s < 200 && act == ActNone; s++ {
		tickSeconds(d, 1)
		act = d.Poll(true)
	}
	assert.Equal(t, ActRampDown, act)
}

func TestSleepDropsStaleWakeups(t *testing.T) {
	d := newDevice(t, "motion")
	d.Reset()
	require.True(t, d.TakeReset())
	require.True(t, d.Sleep())

	select {
	case src := <-d.Wakeups():
		t.Fatalf("unexpected wakeup %s", src)
	default:
	}
}

func TestRampExclusivity(t *testing.T) {
	d := newDevice(t, "light")

	assert.False(t, d.BeginRamp(Down), "nothing to ramp down")
	require.True(t, d.BeginRamp(Up))
	assert.False(t, d.BeginRamp(Up), "ramp already holds the duty level")
	assert.False(t, d.BeginRamp(Down))

	// Nothing else may act while the ramp runs.
	assert.Equal(t, ActNone, d.Poll(false))
	assert.False(t, d.OnWatchdog(true))
	assert.False(t, d.OnTick())
	assert.False(t, d.Sleep())

	next, completed := d.EndRamp()
	require.True(t, completed)
	require.Equal(t, ActNone, next)
	assert.Equal(t, StateOn, d.State())
}

func TestTicksStopWhileAsleep(t *testing.T) {
	d := newDevice(t, "motion")
	require.True(t, d.Sleep())
	tickSeconds(d, 10)
	assert.Equal(t, uint16(0), d.Snapshot().IdleSeconds)
}

func TestIdleCounterSaturates(t *testing.T) {
	d := newDevice(t, "motion")
	d.secSleep = MaxIdleSeconds - 1
	tickSeconds(d, 3)
	assert.Equal(t, uint16(MaxIdleSeconds), d.Snapshot().IdleSeconds)
	assert.Equal(t, ActSleep, d.Poll(true), "a saturated counter is still past the on-time")
}

func TestResetIdleIsIdempotent(t *testing.T) {
	d := newDevice(t, "motion")
	tickSeconds(d, 7)

	d.mu.Lock()
	d.resetIdleLocked()
	once := d.secSleep
	d.resetIdleLocked()
	twice := d.secSleep
	d.mu.Unlock()

	assert.Equal(t, uint16(0), once)
	assert.Equal(t, once, twice)
}

func TestResetReturnsToPowerOn(t *testing.T) {
	d := newDevice(t, "toggle")
	require.True(t, d.Sleep())
	for i := 0; i < 4; i++ {
		d.OnWatchdog(true)
	}

	d.Reset()
	assert.Equal(t, WakeReset, <-d.Wakeups())

	snap := d.Snapshot()
	assert.Equal(t, StateOff, snap.State)
	assert.Equal(t, uint8(0), snap.DarkSamples)
	assert.Equal(t, 1, snap.Counts.Resets)
	assert.Equal(t, 1, snap.Counts.Sleeps, "counts survive the reset")

	assert.True(t, d.TakeReset())
	assert.False(t, d.TakeReset())
}

func TestResetDuringRampAbandonsIt(t *testing.T) {
	d := newDevice(t, "motion")
	require.True(t, d.BeginRamp(Up))
	d.Reset()
	next, completed := d.EndRamp()
	assert.False(t, completed)
	assert.Equal(t, ActNone, next)
	assert.Equal(t, StateOff, d.State())
	assert.Equal(t, 0, d.Snapshot().Counts.RampUps)
}

// At most one of fading up, fading down and asleep holds at any time.
func TestExactlyOneStateThroughCycle(t *testing.T) {
	d := newDevice(t, "light")
	check := func() {
		s := d.State()
		n := 0
		for _, x := range []PowerState{StateFadingUp, StateFadingDown, StateAsleep} {
			if s == x {
				n++
			}
		}
		require.LessOrEqual(t, n, 1)
	}

	for cycle := 0; cycle < 3; cycle++ {
		check()
		require.True(t, d.BeginRamp(Up))
		check()
		d.EndRamp()
		check()
		tickSeconds(d, int(d.p.OnTimeTilt)+1)
		require.Equal(t, ActRampDown, d.Poll(true))
		require.True(t, d.BeginRamp(Down))
		check()
		next, _ := d.EndRamp()
		require.Equal(t, ActSleep, next)
		require.True(t, d.Sleep())
		check()
		require.True(t, d.OnEdge())
		<-d.Wakeups()
		require.Equal(t, ActRampUp, d.Poll(true))
	}
}
