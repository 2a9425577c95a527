// Package audioio provides microphone capture, speaker playback, and the
// fixed-format conversion pipeline used to feed the realtime transcription
// service.
//
// Capture backends:
//   - PortAudio - cross-platform capture and playback on real hardware
//   - Mock - synthetic audio for CI/testing without a device
//
// All audio leaving this package is 16-bit signed PCM, little-endian,
// interleaved. The wire target is mono at 24 kHz.
package audioio

import (
	"fmt"
	"time"
)

// Backend represents the audio backend type.
type Backend string

const (
	// BackendAuto automatically selects the best available backend.
	BackendAuto Backend = "auto"
	// BackendPortAudio uses PortAudio for cross-platform audio I/O.
	BackendPortAudio Backend = "portaudio"
	// BackendMock uses a mock implementation for testing.
	BackendMock Backend = "mock"
)

// Format describes a PCM16 stream: its sample rate and channel count.
type Format struct {
	// SampleRate is the sample rate in Hz.
	SampleRate int `yaml:"sample_rate" json:"sample_rate"`

	// Channels is the number of interleaved channels.
	Channels int `yaml:"channels" json:"channels"`
}

// WireFormat is the fixed format sent to and received from the remote
// service: PCM16 mono at 24 kHz.
var WireFormat = Format{SampleRate: 24000, Channels: 1}

// Validate checks that the format is usable.
func (f Format) Validate() error {
	if f.SampleRate <= 0 {
		return fmt.Errorf("audioio: sample_rate must be positive, got %d", f.SampleRate)
	}
	if f.Channels != 1 && f.Channels != 2 {
		return fmt.Errorf("audioio: channels must be 1 or 2, got %d", f.Channels)
	}
	return nil
}

// Config holds audio device configuration.
type Config struct {
	// Backend specifies which audio backend to use.
	// Default: "auto" (portaudio when available, mock otherwise)
	Backend Backend `yaml:"backend" json:"backend"`

	// Format is the device capture/playback format. Capture may run at
	// whatever rate the host device prefers; the Converter brings it to
	// WireFormat.
	Format Format `yaml:"format" json:"format"`

	// BufferDuration is the size of capture buffers.
	// Default: 20ms (480 frames at 24kHz)
	BufferDuration time.Duration `yaml:"buffer_duration" json:"buffer_duration"`

	// Device is the backend-specific device identifier.
	// PortAudio: device index as a string, empty for system default.
	Device string `yaml:"device" json:"device"`
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() Config {
	return Config{
		Backend:        BackendAuto,
		Format:         WireFormat,
		BufferDuration: 20 * time.Millisecond,
		Device:         "",
	}
}

// Validate checks that the configuration is valid.
func (c *Config) Validate() error {
	if err := c.Format.Validate(); err != nil {
		return err
	}
	if c.BufferDuration <= 0 {
		return fmt.Errorf("audioio: buffer_duration must be positive, got %v", c.BufferDuration)
	}
	return nil
}

// BufferFrames returns the number of frames per capture buffer.
func (c *Config) BufferFrames() int {
	return int(float64(c.Format.SampleRate) * c.BufferDuration.Seconds())
}
