// Package config loads the pinhub server configuration from a YAML file.
//
// Values missing from the file keep their defaults, so an empty file
// yields a working local setup with no users.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/ilievs/pinhub/core"
)

var ErrInvalidConfig = errors.New("invalid config")

type Config struct {
	MQTT   MQTTConfig   `yaml:"mqtt"`
	HTTP   HTTPConfig   `yaml:"http"`
	Limits LimitsConfig `yaml:"limits"`
	Log    LogConfig    `yaml:"log"`

	// Users seeds the in-memory store.
	Users []UserConfig `yaml:"users"`
}

type MQTTConfig struct {
	// Address of the device-facing MQTT listener.
	Address string `yaml:"address"`
}

type HTTPConfig struct {
	Address string `yaml:"address"`

	// APIKey, when set, is required as a bearer token on /api routes.
	APIKey string `yaml:"api_key"`
}

type LimitsConfig struct {
	// HardwareIdleTimeout is the read-idle timeout of a device link in
	// seconds. 0 disables idle detection and heartbeat retuning.
	HardwareIdleTimeout int `yaml:"hardware_idle_timeout"`

	// DeviceQueueSize bounds the outbound frames queued per device.
	DeviceQueueSize int `yaml:"device_queue_size"`

	// AppQueueSize bounds the outbound frames queued per app connection.
	AppQueueSize int `yaml:"app_queue_size"`

	// DeviceMsgRate caps inbound frames per second per device. 0 means
	// unlimited.
	DeviceMsgRate  float64 `yaml:"device_msg_rate"`
	DeviceMsgBurst int     `yaml:"device_msg_burst"`
}

// IdleTimeout is HardwareIdleTimeout as a duration.
func (l LimitsConfig) IdleTimeout() time.Duration {
	return time.Duration(l.HardwareIdleTimeout) * time.Second
}

type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// SlogLevel maps Level onto slog. Validate has already rejected
// anything it does not know.
func (l LogConfig) SlogLevel() slog.Level {
	switch strings.ToLower(l.Level) {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	}
	return slog.LevelInfo
}

type UserConfig struct {
	Key        core.UserKey      `yaml:"key"`
	Dashboards []DashboardConfig `yaml:"dashboards"`
}

type DashboardConfig struct {
	ID      int           `yaml:"id"`
	Name    string        `yaml:"name"`
	Active  bool          `yaml:"active"`
	Devices []core.Device `yaml:"devices"`
	Widgets []core.Widget `yaml:"widgets"`
}

func Default() *Config {
	return &Config{
		MQTT: MQTTConfig{Address: ":1883"},
		HTTP: HTTPConfig{Address: ":8080"},
		Limits: LimitsConfig{
			HardwareIdleTimeout: 15,
			DeviceQueueSize:     64,
			AppQueueSize:        256,
			DeviceMsgBurst:      10,
		},
		Log: LogConfig{Level: "info", Format: "text"},
	}
}

// Load reads path over the defaults and validates the result.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config: %w", err)
	}
	return Parse(data)
}

func Parse(data []byte) (*Config, error) {
	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing YAML: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) Validate() error {
	var errs []error
	if c.MQTT.Address == "" {
		errs = append(errs, errors.New("mqtt.address is empty"))
	}
	if c.HTTP.Address == "" {
		errs = append(errs, errors.New("http.address is empty"))
	}
	if c.Limits.HardwareIdleTimeout < 0 {
		errs = append(errs, errors.New("limits.hardware_idle_timeout is negative"))
	}
	if c.Limits.DeviceQueueSize <= 0 {
		errs = append(errs, errors.New("limits.device_queue_size must be positive"))
	}
	if c.Limits.AppQueueSize <= 0 {
		errs = append(errs, errors.New("limits.app_queue_size must be positive"))
	}
	if c.Limits.DeviceMsgRate < 0 {
		errs = append(errs, errors.New("limits.device_msg_rate is negative"))
	}
	if c.Limits.DeviceMsgRate > 0 && c.Limits.DeviceMsgBurst <= 0 {
		errs = append(errs, errors.New("limits.device_msg_burst must be positive when a rate is set"))
	}
	switch strings.ToLower(c.Log.Level) {
	case "debug", "info", "warn", "error":
	default:
		errs = append(errs, fmt.Errorf("log.level %q is unknown", c.Log.Level))
	}
	if c.Log.Format != "text" && c.Log.Format != "json" {
		errs = append(errs, fmt.Errorf("log.format %q is unknown", c.Log.Format))
	}
	errs = append(errs, c.validateUsers()...)

	if len(errs) > 0 {
		return fmt.Errorf("%w: %w", ErrInvalidConfig, errors.Join(errs...))
	}
	return nil
}

func (c *Config) validateUsers() []error {
	var errs []error
	users := make(map[core.UserKey]bool)
	tokens := make(map[string]bool)
	for _, u := range c.Users {
		if u.Key == "" {
			errs = append(errs, errors.New("user without key"))
			continue
		}
		if users[u.Key] {
			errs = append(errs, fmt.Errorf("user %q defined twice", u.Key))
		}
		users[u.Key] = true

		dashes := make(map[int]bool)
		for _, d := range u.Dashboards {
			if dashes[d.ID] {
				errs = append(errs, fmt.Errorf("user %q: dashboard %d defined twice", u.Key, d.ID))
			}
			dashes[d.ID] = true

			devices := make(map[int]bool)
			for _, dev := range d.Devices {
				if devices[dev.ID] {
					errs = append(errs, fmt.Errorf("user %q: dashboard %d: device %d defined twice", u.Key, d.ID, dev.ID))
				}
				devices[dev.ID] = true
				switch {
				case dev.Token == "":
					errs = append(errs, fmt.Errorf("user %q: dashboard %d: device %d has no token", u.Key, d.ID, dev.ID))
				case strings.ContainsAny(dev.Token, "/+#"):
					errs = append(errs, fmt.Errorf("user %q: dashboard %d: device %d token is not topic safe", u.Key, d.ID, dev.ID))
				case tokens[dev.Token]:
					errs = append(errs, fmt.Errorf("user %q: dashboard %d: device %d token is already in use", u.Key, d.ID, dev.ID))
				}
				tokens[dev.Token] = true
			}
			for _, w := range d.Widgets {
				if err := w.Validate(); err != nil {
					errs = append(errs, fmt.Errorf("user %q: dashboard %d: widget %d: %w", u.Key, d.ID, w.ID, err))
				}
			}
		}
	}
	return errs
}
