// Package config loads the deployment settings of a lamp: which pins it is
// wired to and where it reports. Behaviour thresholds are not configurable
// here; they come from the compiled variant presets.
package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/sweeney/tilt-lamp/internal/gpio"
	"github.com/sweeney/tilt-lamp/internal/led"
	"github.com/sweeney/tilt-lamp/internal/logic"
	"github.com/sweeney/tilt-lamp/internal/mqtt"
)

// DefaultPath is read when no --config flag is given. A missing file there is not an error.
const DefaultPath = "/etc/tilt-lamp.yaml"

// Config is the deployment configuration.
type Config struct {
	Variant   string        `yaml:"variant"`
	GPIO      GPIOConfig    `yaml:"gpio"`
	PWM       PWMConfig     `yaml:"pwm"`
	MQTT      MQTTConfig    `yaml:"mqtt"`
	HTTP      string        `yaml:"http"`
	Heartbeat time.Duration `yaml:"heartbeat"`
}

// GPIOConfig names the input lines.
type GPIOConfig struct {
	Chip     string `yaml:"chip"`
	PinTilt  int    `yaml:"pin_tilt"`
	PinLight int    `yaml:"pin_light"`
}

// PWMConfig names the LED output pin.
type PWMConfig struct {
	Pin       string `yaml:"pin"`
	Frequency int64  `yaml:"frequency_hz"`
}

// MQTTConfig is the broker connection.
type MQTTConfig struct {
	Broker   string `yaml:"broker"`
	ClientID string `yaml:"client_id"`
}

// Default returns the configuration used when nothing is overridden.
func Default() Config {
	return Config{
		Variant: logic.DefaultVariant,
		GPIO: GPIOConfig{
			Chip:     gpio.DefaultChip,
			PinTilt:  gpio.DefaultPinTilt,
			PinLight: gpio.DefaultPinLight,
		},
		PWM: PWMConfig{
			Pin:       led.DefaultPin,
			Frequency: 1000,
		},
		MQTT: MQTTConfig{
			Broker:   "tcp://192.168.1.200:1883",
			ClientID: mqtt.DefaultClientID,
		},
		HTTP:      ":80",
		Heartbeat: 15 * time.Minute,
	}
}

// Load returns the defaults overlaid with the YAML file at path. When
// optional is set a missing file yields the defaults.
func Load(path string, optional bool) (Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if optional && errors.Is(err, os.ErrNotExist) {
			return cfg, nil
		}
		return Config{}, fmt.Errorf("read config: %w", err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("parse config %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, fmt.Errorf("config %s: %w", path, err)
	}
	return cfg, nil
}

// Validate checks the fields that would otherwise fail late on hardware.
func (c Config) Validate() error {
	if _, err := logic.Variant(c.Variant); err != nil {
		return err
	}
	if c.GPIO.Chip == "" {
		return errors.New("gpio.chip must be set")
	}
	if c.GPIO.PinTilt < 0 {
		return fmt.Errorf("gpio.pin_tilt %d is negative", c.GPIO.PinTilt)
	}
	if c.GPIO.PinLight < 0 {
		return fmt.Errorf("gpio.pin_light %d is negative", c.GPIO.PinLight)
	}
	if c.PWM.Pin == "" {
		return errors.New("pwm.pin must be set")
	}
	if c.PWM.Frequency <= 0 {
		return fmt.Errorf("pwm.frequency_hz %d must be positive", c.PWM.Frequency)
	}
	if c.Heartbeat < 0 {
		return fmt.Errorf("heartbeat %v is negative", c.Heartbeat)
	}
	return nil
}

// Params resolves the configured variant to its policy parameters.
func (c Config) Params() (logic.Params, error) {
	return logic.Variant(c.Variant)
}
