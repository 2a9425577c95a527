package audioio

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strconv"
	"sync"
	"sync/atomic"

	"github.com/gordonklaus/portaudio"
)

// PortAudioSource captures microphone audio via PortAudio.
type PortAudioSource struct {
	cfg    Config
	logger *slog.Logger

	mu       sync.Mutex
	stream   *portaudio.Stream
	running  bool
	closed   bool
	streamCh chan Chunk

	chunksRead  atomic.Int64
	samplesRead atomic.Int64
	overruns    atomic.Int64
}

func newPortAudioSource(cfg Config, logger *slog.Logger) (*PortAudioSource, error) {
	if err := portaudio.Initialize(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDeviceUnavailable, err)
	}

	return &PortAudioSource{
		cfg:    cfg,
		logger: logger.With("component", "audioio.portaudio"),
	}, nil
}

// Start opens the input stream and begins delivering chunks.
func (p *PortAudioSource) Start(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		return io.ErrClosedPipe
	}
	if p.running {
		return nil
	}

	device, err := p.inputDevice()
	if err != nil {
		return err
	}

	params := portaudio.StreamParameters{
		Input: portaudio.StreamDeviceParameters{
			Device:   device,
			Channels: p.cfg.Format.Channels,
			Latency:  device.DefaultHighInputLatency,
		},
		SampleRate:      float64(p.cfg.Format.SampleRate),
		FramesPerBuffer: p.cfg.BufferFrames(),
	}

	p.streamCh = make(chan Chunk, 16)

	stream, err := portaudio.OpenStream(params, p.callback)
	if err != nil {
		return fmt.Errorf("%w: open stream: %v", ErrDeviceUnavailable, err)
	}

	if err := stream.Start(); err != nil {
		stream.Close()
		return fmt.Errorf("%w: start stream: %v", ErrDeviceUnavailable, err)
	}

	p.stream = stream
	p.running = true

	p.logger.Info("capture started",
		"device", device.Name,
		"sample_rate", p.cfg.Format.SampleRate,
	)

	return nil
}

func (p *PortAudioSource) inputDevice() (*portaudio.DeviceInfo, error) {
	if p.cfg.Device == "" {
		device, err := portaudio.DefaultInputDevice()
		if err != nil {
			return nil, fmt.Errorf("%w: no default input device: %v", ErrDeviceUnavailable, err)
		}
		return device, nil
	}

	idx, err := strconv.Atoi(p.cfg.Device)
	if err != nil {
		return nil, fmt.Errorf("%w: invalid device %q", ErrDeviceUnavailable, p.cfg.Device)
	}

	devices, err := portaudio.Devices()
	if err != nil {
		return nil, fmt.Errorf("%w: list devices: %v", ErrDeviceUnavailable, err)
	}
	if idx < 0 || idx >= len(devices) {
		return nil, fmt.Errorf("%w: device index %d out of range", ErrDeviceUnavailable, idx)
	}
	if devices[idx].MaxInputChannels <= 0 {
		return nil, fmt.Errorf("%w: device %q has no input channels", ErrDeviceUnavailable, devices[idx].Name)
	}

	return devices[idx], nil
}

// callback runs on PortAudio's capture thread. It copies the buffer and
// hands it off; a full channel drops the chunk rather than blocking the
// audio thread.
func (p *PortAudioSource) callback(in []int16) {
	samples := make([]int16, len(in))
	copy(samples, in)

	chunk := Chunk{Samples: samples, Format: p.cfg.Format}

	select {
	case p.streamCh <- chunk:
		p.chunksRead.Add(1)
		p.samplesRead.Add(int64(len(samples)))
	default:
		p.overruns.Add(1)
	}
}

// Stop halts capture and closes the stream channel.
func (p *PortAudioSource) Stop() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if !p.running {
		return nil
	}
	p.running = false

	if p.stream != nil {
		p.stream.Stop()
		p.stream.Close()
		p.stream = nil
	}
	close(p.streamCh)

	p.logger.Info("capture stopped",
		"chunks", p.chunksRead.Load(),
		"overruns", p.overruns.Load(),
	)

	return nil
}

// Stream returns the chunk delivery channel.
func (p *PortAudioSource) Stream() <-chan Chunk {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.streamCh
}

// Config returns the audio configuration.
func (p *PortAudioSource) Config() Config {
	return p.cfg
}

// Name returns "portaudio".
func (p *PortAudioSource) Name() string {
	return "portaudio"
}

// Close releases all PortAudio resources.
func (p *PortAudioSource) Close() error {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return nil
	}
	p.closed = true
	p.mu.Unlock()

	p.Stop()
	return portaudio.Terminate()
}

// Stats returns source statistics.
func (p *PortAudioSource) Stats() SourceStats {
	p.mu.Lock()
	running := p.running
	p.mu.Unlock()

	return SourceStats{
		ChunksRead:  p.chunksRead.Load(),
		SamplesRead: p.samplesRead.Load(),
		Overruns:    p.overruns.Load(),
		Running:     running,
		Backend:     "portaudio",
	}
}

var _ SourceWithStats = (*PortAudioSource)(nil)

// PortAudioSink plays audio through the default output device.
type PortAudioSink struct {
	cfg    Config
	logger *slog.Logger

	mu      sync.Mutex
	stream  *portaudio.Stream
	out     []int16
	running bool
	closed  bool

	chunksWritten  atomic.Int64
	samplesWritten atomic.Int64
}

func newPortAudioSink(cfg Config, logger *slog.Logger) (*PortAudioSink, error) {
	if err := portaudio.Initialize(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDeviceUnavailable, err)
	}

	return &PortAudioSink{
		cfg:    cfg,
		logger: logger.With("component", "audioio.portaudio"),
	}, nil
}

// Start opens a blocking output stream.
func (p *PortAudioSink) Start(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		return io.ErrClosedPipe
	}
	if p.running {
		return nil
	}

	frames := p.cfg.BufferFrames()
	p.out = make([]int16, frames*p.cfg.Format.Channels)

	stream, err := portaudio.OpenDefaultStream(
		0, p.cfg.Format.Channels,
		float64(p.cfg.Format.SampleRate),
		frames, &p.out,
	)
	if err != nil {
		return fmt.Errorf("%w: open output stream: %v", ErrDeviceUnavailable, err)
	}

	if err := stream.Start(); err != nil {
		stream.Close()
		return fmt.Errorf("%w: start output stream: %v", ErrDeviceUnavailable, err)
	}

	p.stream = stream
	p.running = true

	return nil
}

// Write plays samples, blocking until the device has consumed them.
func (p *PortAudioSink) Write(ctx context.Context, samples []int16) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if !p.running || p.stream == nil {
		return io.ErrClosedPipe
	}

	for off := 0; off < len(samples); off += len(p.out) {
		if err := ctx.Err(); err != nil {
			return err
		}

		n := copy(p.out, samples[off:])
		for i := n; i < len(p.out); i++ {
			p.out[i] = 0
		}

		if err := p.stream.Write(); err != nil {
			return fmt.Errorf("audioio: write to output stream: %w", err)
		}
	}

	p.chunksWritten.Add(1)
	p.samplesWritten.Add(int64(len(samples)))

	return nil
}

// Flush is a no-op for the blocking stream: Write returns only after the
// device accepted the audio.
func (p *PortAudioSink) Flush(ctx context.Context) error {
	return nil
}

// Clear discards buffered audio by restarting the stream.
func (p *PortAudioSink) Clear() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.stream == nil {
		return nil
	}
	if err := p.stream.Abort(); err != nil {
		return err
	}
	return p.stream.Start()
}

// Stop halts playback.
func (p *PortAudioSink) Stop() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if !p.running {
		return nil
	}
	p.running = false

	if p.stream != nil {
		p.stream.Stop()
		p.stream.Close()
		p.stream = nil
	}

	return nil
}

// Config returns the audio configuration.
func (p *PortAudioSink) Config() Config {
	return p.cfg
}

// Name returns "portaudio".
func (p *PortAudioSink) Name() string {
	return "portaudio"
}

// Close releases all PortAudio resources.
func (p *PortAudioSink) Close() error {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return nil
	}
	p.closed = true
	p.mu.Unlock()

	p.Stop()
	return portaudio.Terminate()
}

// Stats returns sink statistics.
func (p *PortAudioSink) Stats() SinkStats {
	p.mu.Lock()
	running := p.running
	p.mu.Unlock()

	return SinkStats{
		ChunksWritten:  p.chunksWritten.Load(),
		SamplesWritten: p.samplesWritten.Load(),
		Running:        running,
		Backend:        "portaudio",
	}
}

var _ SinkWithStats = (*PortAudioSink)(nil)
