// Package metrics exposes lamp activity as Prometheus metrics.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sweeney/tilt-lamp/internal/logic"
)

const metricPrefix = "tilt_lamp_"

// states is the order used for the state gauge values.
var states = []logic.PowerState{
	logic.StateAsleep,
	logic.StateOff,
	logic.StateFadingUp,
	logic.StateOn,
	logic.StateFadingDown,
}

// Recorder owns a private registry so tests and multiple instances never collide.
type Recorder struct {
	registry *prometheus.Registry

	ramps          *prometheus.CounterVec
	rampDuration   *prometheus.HistogramVec
	wakeups        *prometheus.CounterVec
	sleeps         prometheus.Counter
	toggles        prometheus.Counter
	watchdogResets prometheus.Counter
	publishErrors  prometheus.Counter

	state       *prometheus.GaugeVec
	level       prometheus.Gauge
	idleSeconds prometheus.Gauge
}

// New creates a Recorder with all lamp metrics registered, plus the Go
// runtime and process collectors.
func New() *Recorder {
	r := &Recorder{
		registry: prometheus.NewRegistry(),
		ramps: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "ramps_total",
				Help: "Completed brightness ramps by direction",
			},
			[]string{"direction"},
		),
		rampDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    metricPrefix + "ramp_duration_seconds",
				Help:    "Wall time spent in a brightness ramp",
				Buckets: []float64{0.5, 1, 2, 3, 4, 4.5, 5, 6, 8},
			},
			[]string{"direction"},
		),
		wakeups: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "wakeups_total",
				Help: "Wakeups from sleep by source",
			},
			[]string{"source"},
		),
		sleeps: prometheus.NewCounter(prometheus.CounterOpts{
			Name: metricPrefix + "sleeps_total",
			Help: "Number of times the lamp entered sleep",
		}),
		toggles: prometheus.NewCounter(prometheus.CounterOpts{
			Name: metricPrefix + "toggles_total",
			Help: "Toggle gestures recognised from tilt flips",
		}),
		watchdogResets: prometheus.NewCounter(prometheus.CounterOpts{
			Name: metricPrefix + "watchdog_resets_total",
			Help: "Resets triggered by a missed watchdog re-arm",
		}),
		publishErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Name: metricPrefix + "mqtt_publish_errors_total",
			Help: "MQTT publishes that returned an error",
		}),
		state: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: metricPrefix + "state",
				Help: "1 for the current power state, 0 otherwise",
			},
			[]string{"state"},
		),
		level: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: metricPrefix + "duty_level",
			Help: "Current LED duty level (0-255)",
		}),
		idleSeconds: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: metricPrefix + "idle_seconds",
			Help: "Seconds since the last activity",
		}),
	}

	r.registry.MustRegister(
		r.ramps, r.rampDuration, r.wakeups, r.sleeps, r.toggles,
		r.watchdogResets, r.publishErrors, r.state, r.level, r.idleSeconds,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	for _, s := range states {
		r.state.WithLabelValues(string(s)).Set(0)
	}
	return r
}

// Handler serves the registry in the Prometheus exposition format.
func (r *Recorder) Handler() http.Handler {
	return promhttp.HandlerFor(r.registry, promhttp.HandlerOpts{Registry: r.registry})
}

// ObserveRamp records a finished ramp.
func (r *Recorder) ObserveRamp(dir logic.Direction, d time.Duration) {
	label := "up"
	if dir == logic.Down {
		label = "down"
	}
	r.ramps.WithLabelValues(label).Inc()
	r.rampDuration.WithLabelValues(label).Observe(d.Seconds())
}

// IncWakeup records a wakeup from sleep.
func (r *Recorder) IncWakeup(source logic.WakeSource) {
	if source == logic.WakeNone {
		source = "UNKNOWN"
	}
	r.wakeups.WithLabelValues(string(source)).Inc()
}

func (r *Recorder) IncSleep()         { r.sleeps.Inc() }
func (r *Recorder) IncToggle()        { r.toggles.Inc() }
func (r *Recorder) IncWatchdogReset() { r.watchdogResets.Inc() }
func (r *Recorder) IncPublishError()  { r.publishErrors.Inc() }

// SetDevice updates the state gauges from a device snapshot.
func (r *Recorder) SetDevice(snap logic.Snapshot, level uint8) {
	for _, s := range states {
		v := 0.0
		if s == snap.State {
			v = 1
		}
		r.state.WithLabelValues(string(s)).Set(v)
	}
	r.level.Set(float64(level))
	r.idleSeconds.Set(float64(snap.IdleSeconds))
}
