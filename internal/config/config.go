// Package config loads application configuration from an optional YAML
// file with environment variable overrides. Environment always wins so
// deployments can tweak a setting without editing the file.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the top-level application configuration.
type Config struct {
	Env      string         `yaml:"env"`
	LogLevel string         `yaml:"log_level"`
	Audio    AudioConfig    `yaml:"audio"`
	Realtime RealtimeConfig `yaml:"realtime"`
	Playback PlaybackConfig `yaml:"playback"`
	Web      WebConfig      `yaml:"web"`
}

// AudioConfig controls the capture side.
type AudioConfig struct {
	Backend        string        `yaml:"backend"`
	Device         string        `yaml:"device"`
	SampleRate     int           `yaml:"sample_rate"`
	Channels       int           `yaml:"channels"`
	BufferDuration time.Duration `yaml:"buffer_duration"`
}

// RealtimeConfig controls the speech service session.
type RealtimeConfig struct {
	APIKey             string        `yaml:"api_key"`
	URL                string        `yaml:"url"`
	Model              string        `yaml:"model"`
	Voice              string        `yaml:"voice"`
	TranscriptionModel string        `yaml:"transcription_model"`
	TranscribeTimeout  time.Duration `yaml:"transcribe_timeout"`
}

// PlaybackConfig controls synthesized-audio playback.
type PlaybackConfig struct {
	Enabled bool `yaml:"enabled"`
}

// WebConfig controls the local status API.
type WebConfig struct {
	Enabled bool   `yaml:"enabled"`
	Addr    string `yaml:"addr"`
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		Env:      "development",
		LogLevel: "info",
		Audio: AudioConfig{
			Backend:        "auto",
			SampleRate:     48000,
			Channels:       1,
			BufferDuration: 100 * time.Millisecond,
		},
		Realtime: RealtimeConfig{
			TranscribeTimeout: 15 * time.Second,
		},
		Playback: PlaybackConfig{Enabled: true},
		Web: WebConfig{
			Enabled: false,
			Addr:    "127.0.0.1:8790",
		},
	}
}

// Load builds the configuration from defaults, an optional YAML file,
// and environment overrides, in that order.
func Load(path string) (Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("config: reading %s: %w", path, err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return Config{}, fmt.Errorf("config: parsing %s: %w", path, err)
		}
	}

	applyEnv(&cfg)

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func applyEnv(cfg *Config) {
	setString(&cfg.Env, "DICTATE_ENV")
	setString(&cfg.LogLevel, "DICTATE_LOG_LEVEL")
	setString(&cfg.Audio.Backend, "DICTATE_AUDIO_BACKEND")
	setString(&cfg.Audio.Device, "DICTATE_AUDIO_DEVICE")
	setInt(&cfg.Audio.SampleRate, "DICTATE_AUDIO_SAMPLE_RATE")
	setInt(&cfg.Audio.Channels, "DICTATE_AUDIO_CHANNELS")
	setString(&cfg.Realtime.APIKey, "OPENAI_API_KEY")
	setString(&cfg.Realtime.URL, "DICTATE_REALTIME_URL")
	setString(&cfg.Realtime.Model, "DICTATE_REALTIME_MODEL")
	setString(&cfg.Realtime.Voice, "DICTATE_REALTIME_VOICE")
	setString(&cfg.Realtime.TranscriptionModel, "DICTATE_TRANSCRIPTION_MODEL")
	setDuration(&cfg.Realtime.TranscribeTimeout, "DICTATE_TRANSCRIBE_TIMEOUT")
	setBool(&cfg.Playback.Enabled, "DICTATE_PLAYBACK")
	setBool(&cfg.Web.Enabled, "DICTATE_WEB")
	setString(&cfg.Web.Addr, "DICTATE_WEB_ADDR")
}

// Validate checks the ranges that would otherwise fail deep inside the
// audio or session layers.
func (c Config) Validate() error {
	if c.Audio.SampleRate <= 0 {
		return fmt.Errorf("config: sample_rate must be positive, got %d", c.Audio.SampleRate)
	}
	if c.Audio.Channels != 1 && c.Audio.Channels != 2 {
		return fmt.Errorf("config: channels must be 1 or 2, got %d", c.Audio.Channels)
	}
	if c.Realtime.TranscribeTimeout <= 0 {
		return fmt.Errorf("config: transcribe_timeout must be positive, got %s", c.Realtime.TranscribeTimeout)
	}
	if c.Web.Enabled && c.Web.Addr == "" {
		return fmt.Errorf("config: web.addr required when web is enabled")
	}
	return nil
}

func setString(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func setInt(dst *int, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			*dst = n
		}
	}
}

func setBool(dst *bool, key string) {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			*dst = b
		}
	}
}

func setDuration(dst *time.Duration, key string) {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			*dst = d
		}
	}
}
