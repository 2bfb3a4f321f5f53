package web

import (
	"fmt"
	"html/template"
	"io"
	"time"

	"github.com/sweeney/tilt-lamp/internal/status"
)

var indexTmpl = template.Must(template.New("index").Funcs(template.FuncMap{
	"uptime": func(d time.Duration) string {
		d = d.Truncate(time.Second)
		days := int(d.Hours()) / 24
		h := int(d.Hours()) % 24
		m := int(d.Minutes()) % 60
		s := int(d.Seconds()) % 60
		if days > 0 {
			return fmt.Sprintf("%dd %dh %dm %ds", days, h, m, s)
		}
		if h > 0 {
			return fmt.Sprintf("%dh %dm %ds", h, m, s)
		}
		if m > 0 {
			return fmt.Sprintf("%dm %ds", m, s)
		}
		return fmt.Sprintf("%ds", s)
	},
	"stateName": stateName,
	"stateClass": func(snap status.Snapshot) string {
		switch {
		case !snap.Updated:
			return "unknown"
		case snap.Device.State.Lit():
			return "lit"
		default:
			return "dim"
		}
	},
}).Parse(indexHTML))

const indexHTML = `<!DOCTYPE html>
<html>
<head>
<meta charset="utf-8">
<meta name="viewport" content="width=device-width, initial-scale=1">
<title>Tilt Lamp</title>
<style>
body { font-family: monospace; max-width: 600px; margin: 2em auto; padding: 0 1em; }
h1 { font-size: 1.4em; }
table { border-collapse: collapse; width: 100%; margin: 1em 0; }
td, th { text-align: left; padding: 4px 8px; border-bottom: 1px solid #ddd; }
th { width: 40%; }
.lit { color: green; font-weight: bold; }
.dim { color: #888; }
.unknown { color: orange; }
.connected { color: green; }
.disconnected { color: red; }
.live-dot { display: inline-block; width: 8px; height: 8px; border-radius: 50%; margin-left: 6px; vertical-align: middle; }
.live-dot.ok { background: green; }
.live-dot.err { background: red; }
.live-dot.pending { background: orange; }
</style>
</head>
<body>
<h1>Tilt Lamp<span id="live-dot" class="live-dot pending" title="connecting"></span></h1>

<h2>Lamp</h2>
<table>
<tr><th>State</th><td id="state" class="{{stateClass .Snapshot}}">{{stateName .Snapshot}}</td></tr>
<tr><th>Level</th><td id="level">{{.Level}}</td></tr>
<tr><th>Idle</th><td id="idle">{{.Device.IdleSeconds}}s</td></tr>
<tr><th>Edge wake</th><td id="edge">{{if .Device.EdgeArmed}}armed{{else}}disarmed{{end}}</td></tr>
<tr><th>Last wake</th><td id="last-wake">{{with .Device.Cause}}{{.}}{{else}}-{{end}}</td></tr>
</table>

<h2>Connectivity</h2>
<table>
<tr><th>MQTT</th><td id="mqtt" class="{{if .MQTTConnected}}connected{{else}}disconnected{{end}}">{{if .MQTTConnected}}connected{{else}}disconnected{{end}}</td></tr>
<tr><th>Broker</th><td>{{.Config.Broker}}</td></tr>
{{if .Network}}<tr><th>Network</th><td>{{.Network.Status}} ({{.Network.Type}}{{if .Network.SSID}}: {{.Network.SSID}}{{end}})</td></tr>
<tr><th>IP</th><td>{{.Network.IP}}</td></tr>{{end}}
</table>

<h2>Event Counts</h2>
<table>
<tr><th>Ramp up</th><td id="ramp-ups">{{.Device.Counts.RampUps}}</td></tr>
<tr><th>Ramp down</th><td id="ramp-downs">{{.Device.Counts.RampDowns}}</td></tr>
<tr><th>Sleeps</th><td id="sleeps">{{.Device.Counts.Sleeps}}</td></tr>
<tr><th>Wakes</th><td id="wakes">{{.Device.Counts.Wakes}}</td></tr>
<tr><th>Toggles</th><td id="toggles">{{.Device.Counts.Toggles}}</td></tr>
<tr><th>Watchdog resets</th><td id="resets">{{.Device.Counts.Resets}}</td></tr>
</table>

<h2>System</h2>
<table>
<tr><th>Uptime</th><td>{{uptime .Uptime}}</td></tr>
<tr><th>Started</th><td>{{.StartTime.UTC.Format "2006-01-02T15:04:05Z"}}</td></tr>
<tr><th>Variant</th><td>{{.Config.Variant}}</td></tr>
<tr><th>Pins</th><td>tilt={{.Config.PinTilt}}{{if .Config.PinLight}} light={{.Config.PinLight}}{{end}} pwm={{.Config.PWMPin}}</td></tr>
<tr><th>Heartbeat</th><td>{{if eq .Config.HeartbeatMs 0}}disabled{{else}}{{.Config.HeartbeatMs}}ms{{end}}</td></tr>
<tr><th>HTTP</th><td>{{.Config.HTTPPort}}</td></tr>
</table>

<p><a href="/index.json">JSON</a> | <a href="/metrics">metrics</a></p>
<script>
(function() {
  var dot = document.getElementById("live-dot");

  function setDot(cls, title) {
    dot.className = "live-dot " + cls;
    dot.title = title;
  }

  function set(id, text) {
    document.getElementById(id).textContent = text;
  }

  function render(s) {
    var el = document.getElementById("state");
    el.textContent = s.state;
    el.className = s.state.indexOf("AWAKE_") === 0 && s.state !== "AWAKE_OFF" ? "lit" :
      s.state === "UNKNOWN" ? "unknown" : "dim";
    set("level", s.level);
    set("idle", s.idle_seconds + "s");
    set("edge", s.edge_armed ? "armed" : "disarmed");
    set("last-wake", s.last_wake || "-");
    set("ramp-ups", s.event_counts.ramp_ups);
    set("ramp-downs", s.event_counts.ramp_downs);
    set("sleeps", s.event_counts.sleeps);
    set("wakes", s.event_counts.wakes);
    set("toggles", s.event_counts.toggles);
    set("resets", s.event_counts.watchdog_resets);
    var m = document.getElementById("mqtt");
    m.textContent = s.mqtt.connected ? "connected" : "disconnected";
    m.className = s.mqtt.connected ? "connected" : "disconnected";
  }

  function connect() {
    var proto = location.protocol === "https:" ? "wss://" : "ws://";
    var ws = new WebSocket(proto + location.host + "/ws");
    ws.onopen = function() { setDot("ok", "live"); };
    ws.onclose = function() {
      setDot("err", "offline");
      setTimeout(connect, 5000);
    };
    ws.onmessage = function(e) {
      try {
        var msg = JSON.parse(e.data);
        if (msg.status) {
          render(msg.status);
        }
      } catch (err) {}
    };
  }
  connect();
})();
</script>
</body>
</html>
`

func stateName(snap status.Snapshot) string {
	if !snap.Updated || snap.Device.State == "" {
		return "UNKNOWN"
	}
	return string(snap.Device.State)
}

func renderHTML(w io.Writer, snap status.Snapshot) error {
	// Snapshot has Uptime() method but template needs a Duration field.
	data := struct {
		status.Snapshot
		Uptime time.Duration
	}{
		Snapshot: snap,
		Uptime:   snap.Uptime(),
	}
	return indexTmpl.Execute(w, data)
}
