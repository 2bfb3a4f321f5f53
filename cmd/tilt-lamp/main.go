// Command tilt-lamp drives a tilt and light controlled LED lamp and reports
// its activity to MQTT.
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"sort"
	"strings"
	"syscall"
	"time"

	arg "github.com/alexflint/go-arg"
	"github.com/sirupsen/logrus"

	"github.com/sweeney/tilt-lamp/internal/config"
	"github.com/sweeney/tilt-lamp/internal/gpio"
	"github.com/sweeney/tilt-lamp/internal/lamp"
	"github.com/sweeney/tilt-lamp/internal/led"
	"github.com/sweeney/tilt-lamp/internal/logic"
	"github.com/sweeney/tilt-lamp/internal/metrics"
	"github.com/sweeney/tilt-lamp/internal/mqtt"
	"github.com/sweeney/tilt-lamp/internal/status"
	"github.com/sweeney/tilt-lamp/internal/web"
)

var version = "No version provided"

var log = logrus.New()

// housekeepingInterval paces heartbeat checks and MQTT status refreshes.
const housekeepingInterval = time.Second

type Args struct {
	Config     string `arg:"-c, --config" help:"YAML deployment config (default /etc/tilt-lamp.yaml if present)"`
	Variant    string `arg:"--variant" help:"Lamp variant: motion, light, nightlight or toggle"`
	Broker     string `arg:"--broker" help:"MQTT broker address"`
	HTTP       string `arg:"--http" help:"HTTP status address (\"off\" to disable)"`
	LogLevel   string `arg:"-l, --log-level" default:"info" help:"Set the logging level (debug, info, warn, error)"`
	PrintState bool   `arg:"--print-state" help:"Print the current sensor state and exit"`
}

func (Args) Version() string {
	return version
}

func procArgs() Args {
	var args Args
	arg.MustParse(&args)
	return args
}

func setLogLevel(level string) {
	switch level {
	case "debug":
		log.SetLevel(logrus.DebugLevel)
	case "info":
		log.SetLevel(logrus.InfoLevel)
	case "warn":
		log.SetLevel(logrus.WarnLevel)
	case "error":
		log.SetLevel(logrus.ErrorLevel)
	default:
		log.SetLevel(logrus.InfoLevel)
		log.Warn("Unknown log level, defaulting to info")
	}
}

// customFormatter prints "[LEVEL] message" followed by any fields in key order.
type customFormatter struct{}

func (f *customFormatter) Format(entry *logrus.Entry) ([]byte, error) {
	var b strings.Builder
	fmt.Fprintf(&b, "[%s] %s", strings.ToUpper(entry.Level.String()), entry.Message)
	keys := make([]string, 0, len(entry.Data))
	for k := range entry.Data {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		fmt.Fprintf(&b, " %s=%v", k, entry.Data[k])
	}
	b.WriteByte('\n')
	return []byte(b.String()), nil
}

func main() {
	log.SetFormatter(new(customFormatter))
	args := procArgs()
	setLogLevel(args.LogLevel)

	if err := run(args); err != nil {
		log.Fatal(err.Error())
	}
}

// loadConfig reads the config file and applies command line overrides.
func loadConfig(args Args) (config.Config, error) {
	path, optional := args.Config, false
	if path == "" {
		path, optional = config.DefaultPath, true
	}
	cfg, err := config.Load(path, optional)
	if err != nil {
		return config.Config{}, err
	}

	if args.Variant != "" {
		cfg.Variant = args.Variant
	}
	if args.Broker != "" {
		cfg.MQTT.Broker = args.Broker
	}
	switch args.HTTP {
	case "":
	case "off":
		cfg.HTTP = ""
	default:
		cfg.HTTP = args.HTTP
	}
	if err := cfg.Validate(); err != nil {
		return config.Config{}, err
	}
	return cfg, nil
}

func run(args Args) error {
	log.Info("Running version: ", version)

	cfg, err := loadConfig(args)
	if err != nil {
		return err
	}
	params, err := cfg.Params()
	if err != nil {
		return err
	}

	// Initialize GPIO
	reader, err := gpio.NewRealReader(cfg.GPIO.Chip, cfg.GPIO.PinTilt, cfg.GPIO.PinLight)
	if err != nil {
		return fmt.Errorf("init gpio: %w", err)
	}
	defer reader.Close()

	// Print state mode
	if args.PrintState {
		return printState(reader)
	}

	out, err := led.NewPeriphOutput(cfg.PWM.Pin, cfg.PWM.Frequency)
	if err != nil {
		return fmt.Errorf("init pwm: %w", err)
	}
	defer out.Close()

	// Initialize MQTT
	publisher, err := mqtt.NewRealPublisher(cfg.MQTT.Broker, cfg.MQTT.ClientID, log.WithField("component", "mqtt"))
	if err != nil {
		return fmt.Errorf("init mqtt: %w", err)
	}
	defer publisher.Close()

	// Initialize status tracker (before STARTUP so snapshot is available)
	tracker := status.NewTracker(time.Now(), status.Config{
		Variant:     params.Name,
		PinTilt:     cfg.GPIO.PinTilt,
		PinLight:    cfg.GPIO.PinLight,
		PWMPin:      cfg.PWM.Pin,
		HeartbeatMs: cfg.Heartbeat.Milliseconds(),
		Broker:      cfg.MQTT.Broker,
		HTTPPort:    cfg.HTTP,
	})
	if net := readNetworkInfo(); net != nil {
		tracker.SetNetwork(net)
	}
	recorder := metrics.New()

	ctrl, err := lamp.New(params, lamp.Options{
		Reader:    reader,
		Output:    out,
		Publisher: publisher,
		Tracker:   tracker,
		Metrics:   recorder,
		Log:       log.WithField("component", "lamp"),
	})
	if err != nil {
		return fmt.Errorf("init lamp: %w", err)
	}
	tracker.Update(ctrl.Device().Snapshot(), ctrl.Level())

	// Publish startup event with full status snapshot
	snap := tracker.Snapshot()
	startupEvent := mqtt.SystemEvent{
		Timestamp:  snap.Now,
		Event:      "STARTUP",
		Retained:   true,
		RawPayload: status.FormatStatusEvent(snap, "STARTUP", ""),
	}
	if err := publisher.PublishSystem(startupEvent); err != nil {
		log.WithError(err).Warn("failed to publish startup event")
	} else {
		log.Info("published startup event")
	}

	// Start HTTP status server
	if cfg.HTTP != "" {
		srv := web.New(cfg.HTTP, tracker, recorder.Handler(), log.WithField("component", "web"))
		go func() {
			if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				log.WithError(err).Error("http server error")
			}
		}()
		defer srv.Shutdown(context.Background())
		log.Infof("http status server listening on %s", cfg.HTTP)
	}

	log.Infof("started: variant=%s broker=%s heartbeat=%v", params.Name, cfg.MQTT.Broker, cfg.Heartbeat)

	ticker := time.NewTicker(housekeepingInterval)
	defer ticker.Stop()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	return runLoop(ctrl, publisher, publisher, tracker, cfg.Heartbeat, time.Now, ticker.C, sigCh)
}

// printState reads both sensors once.
func printState(reader gpio.Reader) error {
	tilt, err := reader.ReadTilt()
	if err != nil {
		return fmt.Errorf("read tilt: %w", err)
	}
	dark, err := reader.ReadDark()
	if err != nil {
		return fmt.Errorf("read light: %w", err)
	}
	fmt.Println(formatState(tilt, dark))
	return nil
}

func formatState(tilt, dark bool) string {
	tiltState := "LOW"
	if tilt {
		tiltState = "HIGH"
	}
	lightState := "LIGHT"
	if dark {
		lightState = "DARK"
	}
	return fmt.Sprintf("TILT: %s, LIGHT: %s", tiltState, lightState)
}

// runLoop runs the controller until a signal arrives, publishing heartbeats
// on the way and a SHUTDOWN event at the end.
func runLoop(ctrl *lamp.Controller, publisher mqtt.Publisher, mqttStatus mqtt.ConnectionStatus, tracker *status.Tracker, heartbeat time.Duration, now func() time.Time, tick <-chan time.Time, sig <-chan os.Signal) error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	done := make(chan error, 1)
	go func() { done <- ctrl.Run(ctx) }()

	hb := logic.NewHeartbeat(now())

	for {
		select {
		case s := <-sig:
			log.Infof("received %v, shutting down", s)
			signalName := "UNKNOWN"
			if s == syscall.SIGINT {
				signalName = "SIGINT"
			} else if s == syscall.SIGTERM {
				signalName = "SIGTERM"
			}

			// Stop the lamp first so the snapshot shows the LED off.
			cancel()
			err := <-done

			event := mqtt.SystemEvent{
				Timestamp: now(),
				Event:     "SHUTDOWN",
				Reason:    signalName,
				Retained:  true,
			}
			if tracker != nil {
				refreshTracker(ctrl, mqttStatus, tracker)
				event.RawPayload = status.FormatStatusEvent(tracker.Snapshot(), "SHUTDOWN", signalName)
			}
			if perr := publisher.PublishSystem(event); perr != nil {
				log.WithError(perr).Warn("failed to publish shutdown event")
			} else {
				log.Info("published shutdown event")
			}
			return err

		case err := <-done:
			if err == nil {
				err = errors.New("lamp stopped unexpectedly")
			}
			return err

		case <-tick:
			if tracker != nil && mqttStatus != nil {
				tracker.SetMQTTConnected(mqttStatus.IsConnected())
			}

			counts := ctrl.Device().Snapshot().Counts
			hbData := hb.Check(now(), heartbeat, counts)
			if hbData == nil {
				continue
			}
			log.WithFields(logrus.Fields{
				"uptime":     hbData.Uptime,
				"ramp_ups":   hbData.Counts.RampUps,
				"ramp_downs": hbData.Counts.RampDowns,
				"wakes":      hbData.Counts.Wakes,
				"resets":     hbData.Counts.Resets,
			}).Info("heartbeat")

			hbEvent := mqtt.SystemEvent{
				Timestamp: hbData.Timestamp,
				Event:     "HEARTBEAT",
			}
			if tracker != nil {
				// Refresh network info for heartbeat
				if net := readNetworkInfo(); net != nil {
					tracker.SetNetwork(net)
				}
				refreshTracker(ctrl, mqttStatus, tracker)
				hbEvent.RawPayload = status.FormatStatusEvent(tracker.Snapshot(), "HEARTBEAT", "")
			}
			if err := publisher.PublishSystem(hbEvent); err != nil {
				log.WithError(err).Warn("heartbeat publish error")
			}
		}
	}
}

func refreshTracker(ctrl *lamp.Controller, mqttStatus mqtt.ConnectionStatus, tracker *status.Tracker) {
	if mqttStatus != nil {
		tracker.SetMQTTConnected(mqttStatus.IsConnected())
	}
	tracker.Update(ctrl.Device().Snapshot(), ctrl.Level())
}

// pi-helper env var names (written to /run/pi-helper.env).
const (
	envNetworkType       = "NETWORK_TYPE"
	envNetworkIP         = "NETWORK_IP"
	envNetworkStatus     = "NETWORK_STATUS"
	envNetworkGateway    = "NETWORK_GATEWAY"
	envNetworkWifiStatus = "NETWORK_WIFI_STATUS"
	envNetworkWifiSSID   = "NETWORK_WIFI_SSID"
)

func readNetworkInfo() *status.NetworkInfo {
	s := os.Getenv(envNetworkStatus)
	if s == "" {
		return nil
	}
	return &status.NetworkInfo{
		Type:       os.Getenv(envNetworkType),
		IP:         os.Getenv(envNetworkIP),
		Status:     s,
		Gateway:    os.Getenv(envNetworkGateway),
		WifiStatus: os.Getenv(envNetworkWifiStatus),
		SSID:       os.Getenv(envNetworkWifiSSID),
	}
}
