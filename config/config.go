// Package config handles application configuration.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"
)

const (
	appName        = "parley"
	configFileName = "config.json"
)

// BackendConfig describes how to reach the conference backend.
type BackendConfig struct {
	BaseURL         string `json:"base_url"`
	RequestTimeout  int    `json:"request_timeout_seconds,omitempty"`
	FinalizeTimeout int    `json:"finalize_timeout_seconds,omitempty"`
	RetryCount      int    `json:"retry_count,omitempty"`
}

// AudioConfig describes microphone capture settings.
// Input format and device follow ffmpeg naming (pulse/avfoundation etc).
type AudioConfig struct {
	RecorderCommand string `json:"recorder_command,omitempty"`
	PlayerCommand   string `json:"player_command,omitempty"`
	InputFormat     string `json:"input_format,omitempty"`
	InputDevice     string `json:"input_device,omitempty"`
	ChunkIntervalMS int    `json:"chunk_interval_ms,omitempty"`
}

// Config represents the application configuration.
type Config struct {
	Backend BackendConfig `json:"backend"`
	Audio   AudioConfig   `json:"audio"`

	// DefaultLanguage is the parent language sent at session creation
	// when the record command does not specify one.
	DefaultLanguage string `json:"default_language"`

	// DefaultTargets maps a detected summary language to the translation
	// target used when the translate command omits --target.
	DefaultTargets map[string]string `json:"default_targets"`
}

// Load loads configuration from the config file.
// Returns default config if file doesn't exist.
func Load() (*Config, error) {
	path, err := configPath()
	if err != nil {
		return nil, fmt.Errorf("get config path: %w", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			cfg := defaultConfig()
			cfg.applyEnvOverrides()
			return cfg, nil
		}
		return nil, fmt.Errorf("read config: %w", err)
	}

	var cfg Config
	if err := json.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	cfg.applyDefaults()
	cfg.applyEnvOverrides()
	return &cfg, nil
}

// Save persists the configuration to disk.
func (c *Config) Save() error {
	path, err := configPath()
	if err != nil {
		return fmt.Errorf("get config path: %w", err)
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("create config dir: %w", err)
	}

	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("write config: %w", err)
	}

	return nil
}

// RequestTimeout returns the bounded timeout for ordinary backend calls.
func (c *Config) RequestTimeout() time.Duration {
	return time.Duration(c.Backend.RequestTimeout) * time.Second
}

// FinalizeTimeout returns the timeout for the finalize upload, which
// carries the whole recording and runs backend transcription.
func (c *Config) FinalizeTimeout() time.Duration {
	return time.Duration(c.Backend.FinalizeTimeout) * time.Second
}

// ChunkInterval returns the capture chunk cadence.
func (c *Config) ChunkInterval() time.Duration {
	return time.Duration(c.Audio.ChunkIntervalMS) * time.Millisecond
}

// Set assigns a config value by dotted key. Used by the config command.
func (c *Config) Set(key, value string) error {
	switch key {
	case "backend.base_url":
		c.Backend.BaseURL = value
	case "backend.request_timeout_seconds":
		return assignInt(&c.Backend.RequestTimeout, value)
	case "backend.finalize_timeout_seconds":
		return assignInt(&c.Backend.FinalizeTimeout, value)
	case "backend.retry_count":
		return assignInt(&c.Backend.RetryCount, value)
	case "audio.recorder_command":
		c.Audio.RecorderCommand = value
	case "audio.player_command":
		c.Audio.PlayerCommand = value
	case "audio.input_format":
		c.Audio.InputFormat = value
	case "audio.input_device":
		c.Audio.InputDevice = value
	case "audio.chunk_interval_ms":
		return assignInt(&c.Audio.ChunkIntervalMS, value)
	case "default_language":
		c.DefaultLanguage = value
	default:
		return fmt.Errorf("unknown config key: %s", key)
	}
	return nil
}

func assignInt(dst *int, value string) error {
	var n int
	if _, err := fmt.Sscanf(value, "%d", &n); err != nil || n < 0 {
		return fmt.Errorf("invalid value: %s", value)
	}
	*dst = n
	return nil
}

func (c *Config) applyDefaults() {
	def := defaultConfig()
	if c.Backend.BaseURL == "" {
		c.Backend.BaseURL = def.Backend.BaseURL
	}
	if c.Backend.RequestTimeout <= 0 {
		c.Backend.RequestTimeout = def.Backend.RequestTimeout
	}
	if c.Backend.FinalizeTimeout <= 0 {
		c.Backend.FinalizeTimeout = def.Backend.FinalizeTimeout
	}
	if c.Backend.RetryCount < 0 {
		c.Backend.RetryCount = def.Backend.RetryCount
	}
	if c.Audio.RecorderCommand == "" {
		c.Audio.RecorderCommand = def.Audio.RecorderCommand
	}
	if c.Audio.PlayerCommand == "" {
		c.Audio.PlayerCommand = def.Audio.PlayerCommand
	}
	if c.Audio.InputFormat == "" {
		c.Audio.InputFormat = def.Audio.InputFormat
	}
	if c.Audio.InputDevice == "" {
		c.Audio.InputDevice = def.Audio.InputDevice
	}
	if c.Audio.ChunkIntervalMS <= 0 {
		c.Audio.ChunkIntervalMS = def.Audio.ChunkIntervalMS
	}
	if c.DefaultLanguage == "" {
		c.DefaultLanguage = def.DefaultLanguage
	}
	if c.DefaultTargets == nil {
		c.DefaultTargets = def.DefaultTargets
	}
}

// applyEnvOverrides allows audio input knobs to be overridden without
// editing the config file, for machines with unusual capture setups.
func (c *Config) applyEnvOverrides() {
	if v := strings.TrimSpace(os.Getenv("PARLEY_FFMPEG_COMMAND")); v != "" {
		c.Audio.RecorderCommand = v
	}
	if v := strings.TrimSpace(os.Getenv("PARLEY_AUDIO_INPUT_FORMAT")); v != "" {
		c.Audio.InputFormat = v
	}
	if v := strings.TrimSpace(os.Getenv("PARLEY_AUDIO_INPUT_DEVICE")); v != "" {
		c.Audio.InputDevice = v
	}
}

func configPath() (string, error) {
	dir, err := os.UserConfigDir()
	if err != nil {
		return "", fmt.Errorf("get user config dir: %w", err)
	}
	return filepath.Join(dir, appName, configFileName), nil
}

// CacheDir returns the directory used for the on-disk cache.
func CacheDir() (string, error) {
	dir, err := os.UserConfigDir()
	if err != nil {
		return "", fmt.Errorf("get user config dir: %w", err)
	}
	return filepath.Join(dir, appName, "cache"), nil
}

func defaultConfig() *Config {
	return &Config{
		Backend: BackendConfig{
			BaseURL:         "http://localhost:8000",
			RequestTimeout:  30,
			FinalizeTimeout: 120,
			RetryCount:      2,
		},
		Audio: AudioConfig{
			RecorderCommand: "ffmpeg",
			PlayerCommand:   "ffplay",
			InputFormat:     "pulse",
			InputDevice:     "default",
			ChunkIntervalMS: 1000,
		},
		DefaultLanguage: "en",
		DefaultTargets:  defaultTargets(),
	}
}

func defaultTargets() map[string]string {
	return map[string]string{
		"en": "es",
		"es": "en",
		"fr": "en",
		"de": "en",
		"zh": "en",
		"ar": "en",
	}
}
