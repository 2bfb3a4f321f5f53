package status

import (
	"encoding/json"
	"time"

	"github.com/sweeney/tilt-lamp/internal/logic"
)

// StatusJSON is the top-level JSON envelope for status output.
type StatusJSON struct {
	Status StatusInner `json:"status"`
}

// StatusInner contains the status details.
type StatusInner struct {
	Event         string       `json:"event,omitempty"`
	Reason        string       `json:"reason,omitempty"`
	State         string       `json:"state"`
	Level         uint8        `json:"level"`
	IdleSeconds   uint16       `json:"idle_seconds"`
	EdgeArmed     bool         `json:"edge_armed"`
	Pending       string       `json:"pending,omitempty"`
	Flips         uint8        `json:"flips"`
	DarkSamples   uint8        `json:"dark_samples"`
	LastWake      string       `json:"last_wake,omitempty"`
	UptimeSeconds int64        `json:"uptime_seconds"`
	StartTime     string       `json:"start_time"`
	Timestamp     string       `json:"timestamp"`
	MQTT          MQTTStatus   `json:"mqtt"`
	Counts        CountsJSON   `json:"event_counts"`
	Network       *NetworkJSON `json:"network,omitempty"`
	Config        ConfigJSON   `json:"config"`
}

// MQTTStatus reports MQTT connection state.
type MQTTStatus struct {
	Connected bool   `json:"connected"`
	Broker    string `json:"broker"`
}

// CountsJSON is the JSON representation of event counts.
type CountsJSON struct {
	RampUps   int `json:"ramp_ups"`
	RampDowns int `json:"ramp_downs"`
	Sleeps    int `json:"sleeps"`
	Wakes     int `json:"wakes"`
	Toggles   int `json:"toggles"`
	Resets    int `json:"watchdog_resets"`
}

// NetworkJSON is the JSON representation of network info.
type NetworkJSON struct {
	Type       string `json:"type"`
	IP         string `json:"ip"`
	Status     string `json:"status"`
	Gateway    string `json:"gateway"`
	WifiStatus string `json:"wifi_status"`
	SSID       string `json:"ssid"`
}

// ConfigJSON is the JSON representation of daemon config.
type ConfigJSON struct {
	Variant     string `json:"variant"`
	PinTilt     int    `json:"pin_tilt"`
	PinLight    int    `json:"pin_light,omitempty"`
	PWMPin      string `json:"pwm_pin"`
	HeartbeatMs int64  `json:"heartbeat_ms"`
	Broker      string `json:"broker"`
	HTTPPort    string `json:"http_port"`
}

func buildInner(snap Snapshot) StatusInner {
	state := string(snap.Device.State)
	if !snap.Updated || state == "" {
		state = "UNKNOWN"
	}
	d := snap.Device

	return StatusInner{
		State:         state,
		Level:         snap.Level,
		IdleSeconds:   d.IdleSeconds,
		EdgeArmed:     d.EdgeArmed,
		Pending:       pendingName(d.PendingAction),
		Flips:         d.Flips,
		DarkSamples:   d.DarkSamples,
		LastWake:      string(d.Cause),
		UptimeSeconds: int64(snap.Uptime().Truncate(time.Second).Seconds()),
		StartTime:     snap.StartTime.UTC().Format(time.RFC3339),
		Timestamp:     snap.Now.UTC().Format(time.RFC3339),
		MQTT:          MQTTStatus{Connected: snap.MQTTConnected, Broker: snap.Config.Broker},
		Counts: CountsJSON{
			RampUps:   d.Counts.RampUps,
			RampDowns: d.Counts.RampDowns,
			Sleeps:    d.Counts.Sleeps,
			Wakes:     d.Counts.Wakes,
			Toggles:   d.Counts.Toggles,
			Resets:    d.Counts.Resets,
		},
		Config: ConfigJSON{
			Variant:     snap.Config.Variant,
			PinTilt:     snap.Config.PinTilt,
			PinLight:    snap.Config.PinLight,
			PWMPin:      snap.Config.PWMPin,
			HeartbeatMs: snap.Config.HeartbeatMs,
			Broker:      snap.Config.Broker,
			HTTPPort:    snap.Config.HTTPPort,
		},
	}
}

// pendingName names the action queued by a handler, or "" when none is.
func pendingName(a logic.Action) string {
	if a == logic.ActNone {
		return ""
	}
	return a.String()
}

func buildNetwork(snap Snapshot, inner *StatusInner) {
	if snap.Network != nil {
		inner.Network = &NetworkJSON{
			Type:       snap.Network.Type,
			IP:         snap.Network.IP,
			Status:     snap.Network.Status,
			Gateway:    snap.Network.Gateway,
			WifiStatus: snap.Network.WifiStatus,
			SSID:       snap.Network.SSID,
		}
	}
}

// FormatJSON returns the JSON status for the web endpoint (no event/reason).
func FormatJSON(snap Snapshot) []byte {
	inner := buildInner(snap)
	buildNetwork(snap, &inner)

	data, _ := json.MarshalIndent(StatusJSON{Status: inner}, "", "  ")
	return data
}

// FormatStatusEvent returns the compact JSON status for an MQTT system event
// or a websocket frame.
func FormatStatusEvent(snap Snapshot, event, reason string) []byte {
	inner := buildInner(snap)
	inner.Event = event
	inner.Reason = reason
	buildNetwork(snap, &inner)

	data, _ := json.Marshal(StatusJSON{Status: inner})
	return data
}
