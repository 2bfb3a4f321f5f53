// Package logic contains the lamp's power state machine, debounce filter and
// software clock. This package has NO external dependencies (no GPIO, MQTT,
// OS, or time.Sleep). Handlers are called from whatever goroutine plays the
// role of the interrupt; time is always injectable via time.Time parameters.
package logic

import "time"

// PowerState is the explicit state of the lamp.
type PowerState string

const (
	StateAsleep     PowerState = "ASLEEP"
	StateOff        PowerState = "AWAKE_OFF"
	StateFadingUp   PowerState = "AWAKE_FADING_UP"
	StateOn         PowerState = "AWAKE_ON"
	StateFadingDown PowerState = "AWAKE_FADING_DOWN"
)

// Lit reports whether the LED is (or is becoming) lit in this state.
func (s PowerState) Lit() bool {
	return s == StateFadingUp || s == StateOn || s == StateFadingDown
}

// Action is what the foreground loop must do next.
type Action int

const (
	ActNone Action = iota
	ActRampUp
	ActRampDown
	ActSleep
)

func (a Action) String() string {
	switch a {
	case ActRampUp:
		return "RAMP_UP"
	case ActRampDown:
		return "RAMP_DOWN"
	case ActSleep:
		return "SLEEP"
	default:
		return "NONE"
	}
}

// Direction selects a ramp.
type Direction int

const (
	Up Direction = iota
	Down
)

// WakeSource names what caused the foreground to leave sleep.
type WakeSource string

const (
	WakeNone     WakeSource = ""
	WakeEdge     WakeSource = "EDGE"
	WakeWatchdog WakeSource = "WATCHDOG"
	WakeToggle   WakeSource = "TOGGLE"
	WakeReset    WakeSource = "RESET"
)

// EventType represents a lamp transition to be published.
type EventType string

const (
	EventRampUp   EventType = "RAMP_UP"
	EventRampDown EventType = "RAMP_DOWN"
	EventSleep    EventType = "SLEEP"
	EventWake     EventType = "WAKE"
	EventReset    EventType = "WATCHDOG_RESET"
)

// Event represents a lamp transition.
type Event struct {
	Timestamp time.Time
	Type      EventType
	State     PowerState
	Cause     WakeSource
	Level     uint8
}

// EventCounts tracks the number of each event type since startup.
// Counts survive a watchdog reset.
type EventCounts struct {
	RampUps   int
	RampDowns int
	Sleeps    int
	Wakes     int
	Toggles   int
	Resets    int
}

// Snapshot is a point-in-time copy of the device state.
type Snapshot struct {
	State         PowerState
	IdleSeconds   uint16
	Flips         uint8
	EdgeArmed     bool
	DarkSamples   uint8
	Cause         WakeSource
	PendingAction Action
	Counts        EventCounts
}

// HeartbeatData contains information for a heartbeat event.
type HeartbeatData struct {
	Timestamp time.Time
	Uptime    time.Duration
	Counts    EventCounts
}
