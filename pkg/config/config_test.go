package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfig(t *testing.T) {
	tempDir, err := os.MkdirTemp("", "rfdetd-config-test")
	if err != nil {
		t.Fatalf("Failed to create temp dir: %v", err)
	}
	defer os.RemoveAll(tempDir)

	t.Run("Valid Config", func(t *testing.T) {
		configContent := `
device:
  name: "bench-unit"

radio:
  driver: "cc1101"
  spi_port: "SPI1.0"

scan:
  default_threshold: -75
  interval_ms: 150

sweep:
  start_mhz: 314.0
  end_mhz: 316.0
  sample_count: 64

power:
  external_reset: true

web:
  port: 9090

storage:
  database_path: "/tmp/rfdetect.db"
  max_detections: 250

logging:
  level: "debug"
  file: "/tmp/rfdetd.log"
  console: true
`
		configPath := filepath.Join(tempDir, "valid.yaml")
		require.NoError(t, os.WriteFile(configPath, []byte(configContent), 0644))

		config, err := LoadConfig(configPath)
		require.NoError(t, err)

		assert.Equal(t, "bench-unit", config.Device.Name)
		assert.Equal(t, "cc1101", config.Radio.Driver)
		assert.Equal(t, "SPI1.0", config.Radio.SPIPort)
		assert.Equal(t, -75, config.Scan.DefaultThreshold)
		assert.Equal(t, 150, config.Scan.IntervalMs)
		assert.Equal(t, 314.0, config.Sweep.StartMHz)
		assert.Equal(t, 316.0, config.Sweep.EndMHz)
		assert.Equal(t, 64, config.Sweep.SampleCount)
		assert.True(t, config.Power.ExternalReset)
		assert.Equal(t, 9090, config.Web.Port)
		assert.Equal(t, 250, config.Storage.MaxDetections)
		assert.Equal(t, "debug", config.Logging.Level)
		assert.NoError(t, config.Validate())
	})

	t.Run("Config With Defaults", func(t *testing.T) {
		configContent := `
device:
  name: "minimal"
`
		configPath := filepath.Join(tempDir, "minimal.yaml")
		require.NoError(t, os.WriteFile(configPath, []byte(configContent), 0644))

		config, err := LoadConfig(configPath)
		require.NoError(t, err)

		assert.Equal(t, "mock", config.Radio.Driver)
		assert.Equal(t, -60, config.Scan.DefaultThreshold)
		assert.Equal(t, 100, config.Scan.IntervalMs)
		assert.Equal(t, 433.05, config.Sweep.StartMHz)
		assert.Equal(t, 434.79, config.Sweep.EndMHz)
		assert.Equal(t, 96, config.Sweep.SampleCount)
		assert.Equal(t, 3000, config.Power.ArmDelayMs)
		assert.Equal(t, 8000, config.Power.ArmDelayExtResetMs)
		assert.Equal(t, 30000, config.Power.ResetGuardMs)
		assert.Equal(t, 100, config.Power.CutEarliestMs)
		assert.Equal(t, 320, config.Power.CutDeadlineMs)
		assert.Equal(t, 1200, config.Power.IdleStableMs)
		assert.Equal(t, 4, config.Audio.QueueCapacity)
		assert.Equal(t, 95, config.Audio.Volume)
		assert.True(t, config.Audio.Enabled)
		assert.True(t, config.Logging.Console)
		assert.Equal(t, "/tmp/rfdetd.sock", config.API.UnixSocket)
		assert.Equal(t, "aplay", config.Audio.Output)
		assert.Equal(t, "menu", config.Display.StartScreen)
		assert.Equal(t, "BAT0", config.Battery.Supply)
	})

	t.Run("File Not Found", func(t *testing.T) {
		_, err := LoadConfig("/nonexistent/path/config.yaml")
		require.Error(t, err)
		if !strings.Contains(err.Error(), "failed to read config file") {
			t.Errorf("Expected 'failed to read config file' error, got: %v", err)
		}
	})

	t.Run("Invalid YAML", func(t *testing.T) {
		configContent := `
device:
  name: [invalid yaml structure
`
		configPath := filepath.Join(tempDir, "invalid.yaml")
		require.NoError(t, os.WriteFile(configPath, []byte(configContent), 0644))

		_, err := LoadConfig(configPath)
		require.Error(t, err)
		if !strings.Contains(err.Error(), "failed to parse config file") {
			t.Errorf("Expected 'failed to parse config file' error, got: %v", err)
		}
	})

	t.Run("Empty File", func(t *testing.T) {
		configPath := filepath.Join(tempDir, "empty.yaml")
		require.NoError(t, os.WriteFile(configPath, []byte(""), 0644))

		config, err := LoadConfig(configPath)
		require.NoError(t, err)
		assert.Equal(t, 16000, config.Audio.SampleRate)
		assert.NoError(t, config.Validate())
	})
}

func TestValidate(t *testing.T) {
	t.Run("Defaults Are Valid", func(t *testing.T) {
		assert.NoError(t, Default().Validate())
	})

	cases := []struct {
		name   string
		mutate func(c *Config)
		want   string
	}{
		{"Unknown Driver", func(c *Config) { c.Radio.Driver = "rtl" }, "unknown radio driver"},
		{"Threshold Too Low", func(c *Config) { c.Scan.DefaultThreshold = -130 }, "default threshold"},
		{"Threshold Too High", func(c *Config) { c.Scan.DefaultThreshold = -20 }, "default threshold"},
		{"Sweep Samples", func(c *Config) { c.Sweep.SampleCount = 200 }, "sweep sample count"},
		{"Sweep Range", func(c *Config) { c.Sweep.EndMHz = c.Sweep.StartMHz }, "sweep end"},
		{"Cut Window", func(c *Config) { c.Power.CutEarliestMs = 400 }, "power cut earliest"},
		{"Hold Window", func(c *Config) { c.Power.HoldMs = 1500 }, "power hold"},
		{"Arm Delay", func(c *Config) { c.Power.ArmDelayExtResetMs = 1000 }, "external-reset arm delay"},
		{"Volume", func(c *Config) { c.Audio.Volume = 150 }, "audio volume"},
		{"Queue Capacity Too Large", func(c *Config) { c.Audio.QueueCapacity = 5 }, "audio queue capacity"},
		{"Queue Capacity Negative", func(c *Config) { c.Audio.QueueCapacity = -1 }, "audio queue capacity"},
		{"Audio Output", func(c *Config) { c.Audio.Output = "pulse" }, "unknown audio output"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			c := Default()
			tc.mutate(c)
			err := c.Validate()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tc.want)
		})
	}
}

func TestDurationHelpers(t *testing.T) {
	assert.Equal(t, 320*time.Millisecond, Millis(320))
	assert.Equal(t, 2500*time.Microsecond, Micros(2500))
}
