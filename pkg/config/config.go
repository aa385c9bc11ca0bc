package config

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds the application configuration.
type Config struct {
	Log         LogConfig         `yaml:"log"`
	DB          DBConfig          `yaml:"db"`
	Server      ServerConfig      `yaml:"server"`
	Ticker      TickerConfig      `yaml:"ticker"`
	Sensor      SensorConfig      `yaml:"sensor"`
	Vario       VarioConfig       `yaml:"vario"`
	Tone        ToneConfig        `yaml:"tone"`
	Audio       AudioConfig       `yaml:"audio"`
	Preferences PreferencesConfig `yaml:"preferences"`
}

// LogConfig holds settings for the log files.
type LogConfig struct {
	Server LogSettings `yaml:"server"`
	Events LogSettings `yaml:"events"`
	// Trace enables per-buffer synthesis logging at DEBUG.
	Trace bool `yaml:"trace"`
}

// LogSettings holds settings for a specific logger.
type LogSettings struct {
	Path  string `yaml:"path"`
	Level string `yaml:"level"`
}

// DBConfig holds the preferences database location.
type DBConfig struct {
	Path string `yaml:"path"`
}

// ServerConfig holds the HTTP server settings.
type ServerConfig struct {
	Address string `yaml:"address"`
}

// TickerConfig holds the scheduler intervals.
type TickerConfig struct {
	Heartbeat Duration `yaml:"heartbeat"`
	Uptime    Duration `yaml:"uptime"`
}

// SensorConfig selects and tunes the barometer driver.
type SensorConfig struct {
	Driver    string         `yaml:"driver"` // "mock", "serial", "none"
	Periods   []Duration     `yaml:"periods"`
	QueueSize int            `yaml:"queue_size"`
	Warmup    Duration       `yaml:"warmup"`
	Mock      MockBaroConfig `yaml:"mock"`
	Serial    SerialConfig   `yaml:"serial"`
}

// MockBaroConfig holds settings for the simulated barometer.
type MockBaroConfig struct {
	QNH           float64  `yaml:"qnh"`
	StartAltitude Altitude `yaml:"start_altitude"`
	Noise         float64  `yaml:"noise"`
	Loop          bool     `yaml:"loop"`
	Scenario      string   `yaml:"scenario"` // optional YAML file of flight segments
}

// SerialConfig holds settings for a serial-attached barometer.
type SerialConfig struct {
	Port     string `yaml:"port"`
	BaudRate int    `yaml:"baud_rate"`
	DataBits int    `yaml:"data_bits"`
	StopBits int    `yaml:"stop_bits"`
	Parity   string `yaml:"parity"`
}

// VarioConfig tunes smoothing and differencing.
type VarioConfig struct {
	Smoothing string   `yaml:"smoothing"` // "median", "mean"
	Window    int      `yaml:"window"`
	MinDt     Duration `yaml:"min_dt"`
}

// ToneConfig locates the tone profile.
type ToneConfig struct {
	Profile  string `yaml:"profile"`
	Fallback string `yaml:"fallback"`
}

// AudioConfig selects the output device and synthesis format.
type AudioConfig struct {
	Output     string        `yaml:"output"` // "speaker", "wav", "discard"
	SampleRate int           `yaml:"sample_rate"`
	BufferSize int           `yaml:"buffer_size"`
	Latency    Duration      `yaml:"latency"`
	Queue      int           `yaml:"queue"`
	WAVPath    string        `yaml:"wav_path"`
	Backoff    BackoffConfig `yaml:"backoff"`
}

// BackoffConfig holds exponential backoff settings.
type BackoffConfig struct {
	BaseDelay Duration `yaml:"base_delay"`
	MaxDelay  Duration `yaml:"max_delay"`
}

// PreferencesConfig holds the defaults for user preferences persisted in the state store.
type PreferencesConfig struct {
	QNH         float64 `yaml:"qnh"`
	Units       string  `yaml:"units"` // "metric", "imperial"
	VolumeLevel int     `yaml:"volume_level"`
}

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	return &Config{
		Log: LogConfig{
			Server: LogSettings{
				Path:  "./logs/server.log",
				Level: "INFO",
			},
			Events: LogSettings{
				Path:  "./logs/events.log",
				Level: "INFO",
			},
		},
		DB: DBConfig{
			Path: "./data/variogo.db",
		},
		Server: ServerConfig{
			Address: "localhost:1930",
		},
		Ticker: TickerConfig{
			Heartbeat: Duration(1 * time.Second),
			Uptime:    Duration(1 * time.Minute),
		},
		Sensor: SensorConfig{
			Driver: "mock",
			Periods: []Duration{
				Duration(200 * time.Millisecond),
				Duration(100 * time.Millisecond),
				Duration(66 * time.Millisecond),
			},
			QueueSize: 64,
			Warmup:    Duration(500 * time.Millisecond),
			Mock: MockBaroConfig{
				QNH:           1013.25,
				StartAltitude: Altitude(450),
				Noise:         0.02,
				Loop:          true,
			},
			Serial: SerialConfig{
				Port:     "/dev/ttyUSB0",
				BaudRate: 9600,
			},
		},
		Vario: VarioConfig{
			Smoothing: "median",
			Window:    5,
			MinDt:     Duration(20 * time.Millisecond),
		},
		Tone: ToneConfig{
			Profile:  "./configs/vario_profile.txt",
			Fallback: "./data/vario_profile.txt",
		},
		Audio: AudioConfig{
			Output:     "speaker",
			SampleRate: 44100,
			BufferSize: 2048,
			Latency:    Duration(100 * time.Millisecond),
			Queue:      4,
			WAVPath:    "./data/vario.wav",
			Backoff: BackoffConfig{
				BaseDelay: Duration(1 * time.Second),
				MaxDelay:  Duration(30 * time.Second),
			},
		},
		Preferences: PreferencesConfig{
			QNH:         1013.25,
			Units:       "metric",
			VolumeLevel: 3,
		},
	}
}

// Load loads the configuration from the given path.
// If the file does not exist, it creates it with default values.
// If the file exists, it merges defaults with existing values but does NOT save back to disk (to preserve user formatting and comments).
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create config directory: %w", err)
	}

	if _, err := os.Stat(path); err == nil {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config file: %w", err)
		}
	} else if err := Save(path, cfg); err != nil {
		return nil, fmt.Errorf("failed to save config file: %w", err)
	}

	// Env overrides are applied in memory only.
	if lvl := os.Getenv("VARIOGO_LOG_LEVEL"); lvl != "" {
		cfg.Log.Server.Level = lvl
	}
	expandPaths(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func expandPaths(cfg *Config) {
	for _, p := range []*string{
		&cfg.Log.Server.Path,
		&cfg.Log.Events.Path,
		&cfg.DB.Path,
		&cfg.Tone.Profile,
		&cfg.Tone.Fallback,
		&cfg.Audio.WAVPath,
		&cfg.Sensor.Mock.Scenario,
	} {
		*p = os.ExpandEnv(*p)
	}
}

// Validate checks enum fields and ranges.
func (c *Config) Validate() error {
	switch c.Sensor.Driver {
	case "mock", "serial", "none":
	default:
		return fmt.Errorf("invalid sensor.driver '%s': expected mock, serial or none", c.Sensor.Driver)
	}
	switch c.Vario.Smoothing {
	case "median", "mean":
	default:
		return fmt.Errorf("invalid vario.smoothing '%s': expected median or mean", c.Vario.Smoothing)
	}
	switch c.Audio.Output {
	case "speaker", "wav", "discard":
	default:
		return fmt.Errorf("invalid audio.output '%s': expected speaker, wav or discard", c.Audio.Output)
	}
	if !isValidUnits(c.Preferences.Units) {
		return fmt.Errorf("invalid preferences.units '%s': expected metric or imperial", c.Preferences.Units)
	}
	if c.Preferences.VolumeLevel < 0 || c.Preferences.VolumeLevel > 3 {
		return fmt.Errorf("invalid preferences.volume_level %d: must be 0-3", c.Preferences.VolumeLevel)
	}
	if c.Preferences.QNH <= 0 {
		return fmt.Errorf("invalid preferences.qnh %v: must be positive", c.Preferences.QNH)
	}
	if c.Audio.SampleRate <= 0 {
		return fmt.Errorf("invalid audio.sample_rate %d", c.Audio.SampleRate)
	}
	return nil
}

func isValidUnits(s string) bool {
	return s == UnitsMetric || s == UnitsImperial
}

// Save writes the configuration to the path.
func Save(path string, cfg *Config) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	header := []byte(`# VarioGo Configuration
# ---------------------
# Supported Units:
#   Duration: ns, us (or µs), ms, s, m, h, d (day), w (week)
#   Altitude: m (meters), ft (feet)

`)
	data = append(header, data...)

	reDriver := regexp.MustCompile(`(?m)^(\s+)driver:`)
	data = reDriver.ReplaceAll(data, []byte("${1}# Options: mock, serial, none\n${1}driver:"))

	reSmoothing := regexp.MustCompile(`(?m)^(\s+)smoothing:`)
	data = reSmoothing.ReplaceAll(data, []byte("${1}# Options: median (block), mean (sliding)\n${1}smoothing:"))

	reOutput := regexp.MustCompile(`(?m)^(\s+)output:`)
	data = reOutput.ReplaceAll(data, []byte("${1}# Options: speaker, wav, discard\n${1}output:"))

	reUnits := regexp.MustCompile(`(?m)^(\s+)units:`)
	data = reUnits.ReplaceAll(data, []byte("${1}# Options: "+strings.Join([]string{UnitsMetric, UnitsImperial}, ", ")+"\n${1}units:"))

	reVolume := regexp.MustCompile(`(?m)^(\s+)volume_level:`)
	data = reVolume.ReplaceAll(data, []byte("${1}# 0 off, 1 low, 2 medium, 3 high\n${1}volume_level:"))

	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}

// GenerateDefault creates a default config file at the given path.
// Returns nil if the file already exists.
func GenerateDefault(path string) error {
	if _, err := os.Stat(path); err == nil {
		return nil
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	return Save(path, DefaultConfig())
}
