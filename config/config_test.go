package config

import (
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ilievs/pinhub/core"
)

const sample = `
mqtt:
  address: ":11883"
http:
  address: "127.0.0.1:9090"
  api_key: secret
limits:
  hardware_idle_timeout: 10
  device_msg_rate: 50
log:
  level: debug
  format: json
users:
  - key: alice
    dashboards:
      - id: 1
        name: Home
        active: true
        devices:
          - id: 0
            name: esp
            token: tok-a
        widgets:
          - id: 4
            type: SLIDER
            label: Temperature
            pin: 4
            pinType: VIRTUAL
            max: 255
`

func TestParse(t *testing.T) {
	cfg, err := Parse([]byte(sample))
	require.NoError(t, err)

	assert.Equal(t, ":11883", cfg.MQTT.Address)
	assert.Equal(t, "secret", cfg.HTTP.APIKey)
	assert.Equal(t, 10*time.Second, cfg.Limits.IdleTimeout())
	assert.Equal(t, 64, cfg.Limits.DeviceQueueSize, "default kept")
	assert.Equal(t, 10, cfg.Limits.DeviceMsgBurst, "default kept")
	assert.Equal(t, slog.LevelDebug, cfg.Log.SlogLevel())

	require.Len(t, cfg.Users, 1)
	dash := cfg.Users[0].Dashboards[0]
	assert.True(t, dash.Active)
	assert.Equal(t, "tok-a", dash.Devices[0].Token)
	assert.Equal(t, core.KindSlider, dash.Widgets[0].Type)
	assert.Equal(t, core.PinVirtual, dash.Widgets[0].PinType)
	assert.Equal(t, 255.0, dash.Widgets[0].Max)
}

func TestParseEmpty(t *testing.T) {
	cfg, err := Parse(nil)
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)
	assert.Equal(t, slog.LevelInfo, cfg.Log.SlogLevel())
}

func TestLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "pinhub.yaml")
	require.NoError(t, os.WriteFile(path, []byte(sample), 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "127.0.0.1:9090", cfg.HTTP.Address)

	_, err = Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name string
		edit func(c *Config)
	}{
		{"empty mqtt address", func(c *Config) { c.MQTT.Address = "" }},
		{"negative idle timeout", func(c *Config) { c.Limits.HardwareIdleTimeout = -1 }},
		{"zero device queue", func(c *Config) { c.Limits.DeviceQueueSize = 0 }},
		{"rate without burst", func(c *Config) {
			c.Limits.DeviceMsgRate = 5
			c.Limits.DeviceMsgBurst = 0
		}},
		{"bad log level", func(c *Config) { c.Log.Level = "loud" }},
		{"bad log format", func(c *Config) { c.Log.Format = "xml" }},
		{"user without key", func(c *Config) { c.Users = []UserConfig{{}} }},
		{"duplicate token", func(c *Config) {
			c.Users = []UserConfig{{Key: "a", Dashboards: []DashboardConfig{{
				ID:      1,
				Devices: []core.Device{{ID: 0, Token: "t"}, {ID: 1, Token: "t"}},
			}}}}
		}},
		{"wildcard token", func(c *Config) {
			c.Users = []UserConfig{{Key: "a", Dashboards: []DashboardConfig{{
				ID: 1, Devices: []core.Device{{ID: 0, Token: "a/#"}},
			}}}}
		}},
		{"bad widget", func(c *Config) {
			c.Users = []UserConfig{{Key: "a", Dashboards: []DashboardConfig{{
				ID: 1, Widgets: []core.Widget{{ID: 1, Type: "KNOB"}},
			}}}}
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.edit(cfg)
			assert.ErrorIs(t, cfg.Validate(), ErrInvalidConfig)
		})
	}
}

func TestParseRejectsInvalid(t *testing.T) {
	_, err := Parse([]byte("log:\n  format: xml\n"))
	assert.ErrorIs(t, err, ErrInvalidConfig)

	_, err = Parse([]byte("mqtt: [\n"))
	assert.Error(t, err)
}

func TestExampleConfig(t *testing.T) {
	cfg, err := Load(filepath.Join("..", "pinhub.example.yaml"))
	require.NoError(t, err)
	assert.Equal(t, 15*time.Second, cfg.Limits.IdleTimeout())
	require.Len(t, cfg.Users, 1)
	assert.Len(t, cfg.Users[0].Dashboards[0].Widgets, 2)
}
