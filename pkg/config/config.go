package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v2"
)

// Config represents the rfdetd configuration
type Config struct {
	Device struct {
		Name string `yaml:"name"`
	} `yaml:"device"`

	Radio struct {
		// Driver selects the transceiver backend: "cc1101" or "mock"
		Driver     string `yaml:"driver"`
		SPIPort    string `yaml:"spi_port"`
		SPISpeedHz int    `yaml:"spi_speed_hz"`
		CrystalHz  int    `yaml:"crystal_hz"`
	} `yaml:"radio"`

	Scan struct {
		// Threshold seeds the detection threshold when nothing is persisted
		DefaultThreshold int `yaml:"default_threshold"`
		IntervalMs       int `yaml:"interval_ms"`
		CoarseSettleUs   int `yaml:"coarse_settle_us"`
		StandbySettleUs  int `yaml:"standby_settle_us"`
		ReceiveSettleUs  int `yaml:"receive_settle_us"`
		StatusEvery      int `yaml:"status_every"`
		DetectBeepMinMs  int `yaml:"detect_beep_min_ms"`
	} `yaml:"scan"`

	Sweep struct {
		StartMHz    float64 `yaml:"start_mhz"`
		EndMHz      float64 `yaml:"end_mhz"`
		SampleCount int     `yaml:"sample_count"`
		SettleUs    int     `yaml:"settle_us"`
	} `yaml:"sweep"`

	Audio struct {
		Enabled bool `yaml:"enabled"`
		// Output is "aplay" to play through ALSA or "memory" to only record
		Output         string `yaml:"output"`
		Device         string `yaml:"device"`
		Volume         int    `yaml:"volume"`
		StartupWaitMs  int    `yaml:"startup_wait_ms"`
		SampleRate     int    `yaml:"sample_rate"`
		ChunkFrames    int    `yaml:"chunk_frames"`
		FadeMs         int    `yaml:"fade_ms"`
		QueueCapacity  int    `yaml:"queue_capacity"`
		RecordSessions int    `yaml:"record_sessions"`
	} `yaml:"audio"`

	Power struct {
		ArmDelayMs         int  `yaml:"arm_delay_ms"`
		ArmDelayExtResetMs int  `yaml:"arm_delay_ext_reset_ms"`
		ResetGuardMs       int  `yaml:"reset_guard_ms"`
		HoldMs             int  `yaml:"hold_ms"`
		IdleStableMs       int  `yaml:"idle_stable_ms"`
		CutEarliestMs      int  `yaml:"cut_earliest_ms"`
		CutDeadlineMs      int  `yaml:"cut_deadline_ms"`
		LockDebounceMs     int  `yaml:"lock_debounce_ms"`
		TickMs             int  `yaml:"tick_ms"`
		ExternalReset      bool `yaml:"external_reset"`
	} `yaml:"power"`

	Battery struct {
		Enabled      bool   `yaml:"enabled"`
		Supply       string `yaml:"supply"`
		StartDelayMs int    `yaml:"start_delay_ms"`
		PollMs       int    `yaml:"poll_ms"`
	} `yaml:"battery"`

	Display struct {
		SplashMs  int `yaml:"splash_ms"`
		RefreshMs int `yaml:"refresh_ms"`

		// StartScreen is shown after the splash, "menu" on the device
		StartScreen string `yaml:"start_screen"`
	} `yaml:"display"`

	Web struct {
		Enabled     bool   `yaml:"enabled"`
		Port        int    `yaml:"port"`
		BindAddress string `yaml:"bind_address"`
	} `yaml:"web"`

	API struct {
		UnixSocket string `yaml:"unix_socket"`
	} `yaml:"api"`

	Storage struct {
		DatabasePath  string `yaml:"database_path"`
		MaxDetections int    `yaml:"max_detections"`
	} `yaml:"storage"`

	Logging struct {
		Level      string `yaml:"level"`
		File       string `yaml:"file"`
		Console    bool   `yaml:"console"`
		Structured bool   `yaml:"structured"`
		MaxSize    int    `yaml:"max_size"`
		MaxBackups int    `yaml:"max_backups"`
		MaxAge     int    `yaml:"max_age"`
		Compress   bool   `yaml:"compress"`
	} `yaml:"logging"`

	Hardware struct {
		PowerButtonPin string `yaml:"power_button_pin"`
		LockButtonPin  string `yaml:"lock_button_pin"`
		USBSensePin    string `yaml:"usb_sense_pin"`
		LatchPin       string `yaml:"latch_pin"`
		AmpPin         string `yaml:"amp_pin"`
		BacklightPin   string `yaml:"backlight_pin"`
	} `yaml:"hardware"`
}

// Default returns a configuration with every default applied
func Default() *Config {
	cfg := &Config{}
	cfg.Audio.Enabled = true
	cfg.Battery.Enabled = true
	cfg.Web.Enabled = true
	cfg.Logging.Console = true
	cfg.applyDefaults()
	return cfg
}

// LoadConfig loads configuration from a YAML file
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	config := Default()
	if err := yaml.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	config.applyDefaults()
	return config, nil
}

// applyDefaults fills every zero value with the firmware defaults
func (c *Config) applyDefaults() {
	if c.Device.Name == "" {
		c.Device.Name = "rfdetect"
	}
	if c.Radio.Driver == "" {
		c.Radio.Driver = "mock"
	}
	if c.Radio.SPIPort == "" {
		c.Radio.SPIPort = "SPI0.0"
	}
	if c.Radio.SPISpeedHz == 0 {
		c.Radio.SPISpeedHz = 5000000
	}
	if c.Radio.CrystalHz == 0 {
		c.Radio.CrystalHz = 26000000
	}
	if c.Scan.DefaultThreshold == 0 {
		c.Scan.DefaultThreshold = -60
	}
	if c.Scan.IntervalMs == 0 {
		c.Scan.IntervalMs = 100
	}
	if c.Scan.CoarseSettleUs == 0 {
		c.Scan.CoarseSettleUs = 3000
	}
	if c.Scan.StandbySettleUs == 0 {
		c.Scan.StandbySettleUs = 2000
	}
	if c.Scan.ReceiveSettleUs == 0 {
		c.Scan.ReceiveSettleUs = 8000
	}
	if c.Scan.StatusEvery == 0 {
		c.Scan.StatusEvery = 10
	}
	if c.Scan.DetectBeepMinMs == 0 {
		c.Scan.DetectBeepMinMs = 900
	}
	if c.Sweep.StartMHz == 0 {
		c.Sweep.StartMHz = 433.05
	}
	if c.Sweep.EndMHz == 0 {
		c.Sweep.EndMHz = 434.79
	}
	if c.Sweep.SampleCount == 0 {
		c.Sweep.SampleCount = 96
	}
	if c.Sweep.SettleUs == 0 {
		c.Sweep.SettleUs = 2500
	}
	if c.Audio.Output == "" {
		c.Audio.Output = "aplay"
	}
	if c.Audio.Device == "" {
		c.Audio.Device = "default"
	}
	if c.Audio.Volume == 0 {
		c.Audio.Volume = 95
	}
	if c.Audio.StartupWaitMs == 0 {
		c.Audio.StartupWaitMs = 3000
	}
	if c.Audio.SampleRate == 0 {
		c.Audio.SampleRate = 16000
	}
	if c.Audio.ChunkFrames == 0 {
		c.Audio.ChunkFrames = 256
	}
	if c.Audio.FadeMs == 0 {
		c.Audio.FadeMs = 8
	}
	if c.Audio.QueueCapacity == 0 {
		c.Audio.QueueCapacity = 4
	}
	if c.Audio.RecordSessions == 0 {
		c.Audio.RecordSessions = 16
	}
	if c.Power.ArmDelayMs == 0 {
		c.Power.ArmDelayMs = 3000
	}
	if c.Power.ArmDelayExtResetMs == 0 {
		c.Power.ArmDelayExtResetMs = 8000
	}
	if c.Power.ResetGuardMs == 0 {
		c.Power.ResetGuardMs = 30000
	}
	if c.Power.HoldMs == 0 {
		c.Power.HoldMs = 500
	}
	if c.Power.IdleStableMs == 0 {
		c.Power.IdleStableMs = 1200
	}
	if c.Power.CutEarliestMs == 0 {
		c.Power.CutEarliestMs = 100
	}
	if c.Power.CutDeadlineMs == 0 {
		c.Power.CutDeadlineMs = 320
	}
	if c.Power.LockDebounceMs == 0 {
		c.Power.LockDebounceMs = 500
	}
	if c.Power.TickMs == 0 {
		c.Power.TickMs = 10
	}
	if c.Battery.StartDelayMs == 0 {
		c.Battery.StartDelayMs = 5000
	}
	if c.Battery.PollMs == 0 {
		c.Battery.PollMs = 10000
	}
	if c.Battery.Supply == "" {
		c.Battery.Supply = "BAT0"
	}
	if c.Display.SplashMs == 0 {
		c.Display.SplashMs = 1500
	}
	if c.Display.RefreshMs == 0 {
		c.Display.RefreshMs = 50
	}
	if c.Display.StartScreen == "" {
		c.Display.StartScreen = "menu"
	}
	if c.Web.Port == 0 {
		c.Web.Port = 8080
	}
	if c.Web.BindAddress == "" {
		c.Web.BindAddress = "0.0.0.0"
	}
	if c.API.UnixSocket == "" {
		c.API.UnixSocket = "/tmp/rfdetd.sock"
	}
	if c.Storage.DatabasePath == "" {
		c.Storage.DatabasePath = "./rfdetect.db"
	}
	if c.Storage.MaxDetections == 0 {
		c.Storage.MaxDetections = 5000
	}
	if c.Logging.Level == "" {
		c.Logging.Level = "info"
	}
	if c.Logging.MaxSize == 0 {
		c.Logging.MaxSize = 10
	}
	if c.Logging.MaxBackups == 0 {
		c.Logging.MaxBackups = 3
	}
	if c.Logging.MaxAge == 0 {
		c.Logging.MaxAge = 28
	}
	if c.Hardware.PowerButtonPin == "" {
		c.Hardware.PowerButtonPin = "GPIO16"
	}
	if c.Hardware.LockButtonPin == "" {
		c.Hardware.LockButtonPin = "GPIO0"
	}
	if c.Hardware.USBSensePin == "" {
		c.Hardware.USBSensePin = "GPIO4"
	}
	if c.Hardware.LatchPin == "" {
		c.Hardware.LatchPin = "GPIO6"
	}
	if c.Hardware.AmpPin == "" {
		c.Hardware.AmpPin = "GPIO7"
	}
	if c.Hardware.BacklightPin == "" {
		c.Hardware.BacklightPin = "GPIO12"
	}
}

// maxQueueCapacity matches audio.DefaultQueueCapacity
const maxQueueCapacity = 4

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	switch c.Radio.Driver {
	case "cc1101", "mock":
	default:
		return fmt.Errorf("unknown radio driver %q", c.Radio.Driver)
	}
	if c.Scan.DefaultThreshold < -120 || c.Scan.DefaultThreshold > -30 {
		return fmt.Errorf("default threshold %d dBm outside [-120, -30]", c.Scan.DefaultThreshold)
	}
	if c.Sweep.SampleCount < 2 || c.Sweep.SampleCount > 128 {
		return fmt.Errorf("sweep sample count %d outside [2, 128]", c.Sweep.SampleCount)
	}
	if c.Sweep.EndMHz <= c.Sweep.StartMHz {
		return fmt.Errorf("sweep end %.3f MHz must be above start %.3f MHz", c.Sweep.EndMHz, c.Sweep.StartMHz)
	}
	if c.Power.CutEarliestMs >= c.Power.CutDeadlineMs {
		return fmt.Errorf("power cut earliest (%d ms) must be before deadline (%d ms)",
			c.Power.CutEarliestMs, c.Power.CutDeadlineMs)
	}
	if c.Power.HoldMs >= c.Power.IdleStableMs {
		return fmt.Errorf("power hold (%d ms) must be shorter than idle-stable window (%d ms)",
			c.Power.HoldMs, c.Power.IdleStableMs)
	}
	if c.Power.ArmDelayExtResetMs < c.Power.ArmDelayMs {
		return fmt.Errorf("external-reset arm delay (%d ms) must not be shorter than arm delay (%d ms)",
			c.Power.ArmDelayExtResetMs, c.Power.ArmDelayMs)
	}
	if c.Audio.QueueCapacity < 1 || c.Audio.QueueCapacity > maxQueueCapacity {
		return fmt.Errorf("audio queue capacity %d outside [1, %d]", c.Audio.QueueCapacity, maxQueueCapacity)
	}
	if c.Audio.Output != "aplay" && c.Audio.Output != "memory" {
		return fmt.Errorf("unknown audio output %q", c.Audio.Output)
	}
	if c.Audio.Volume < 0 || c.Audio.Volume > 100 {
		return fmt.Errorf("audio volume %d outside [0, 100]", c.Audio.Volume)
	}
	return nil
}

// Millis converts a millisecond config value to a duration
func Millis(ms int) time.Duration {
	return time.Duration(ms) * time.Millisecond
}

// Micros converts a microsecond config value to a duration
func Micros(us int) time.Duration {
	return time.Duration(us) * time.Microsecond
}
