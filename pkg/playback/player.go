// Package playback accumulates streamed synthesized-audio deltas and
// renders them as one playable unit once the server marks the stream done.
package playback

import (
	"context"
	"log/slog"
	"sync"

	"github.com/voxlab/go-dictate/pkg/audioio"
)

// Player buffers decoded synthesized-audio bytes for the current response
// and plays the whole buffer on completion. When disabled, deltas are
// dropped without being buffered so the accumulator cannot grow unbounded.
type Player struct {
	sink   audioio.Sink
	logger *slog.Logger

	mu      sync.Mutex
	enabled bool
	buf     []byte
	playing bool

	// OnPlaybackStart fires when rendering of an accumulated response
	// begins.
	OnPlaybackStart func()

	// OnPlaybackEnd fires when rendering completes or is cancelled.
	OnPlaybackEnd func()
}

// NewPlayer creates a player rendering to the given sink.
func NewPlayer(sink audioio.Sink, logger *slog.Logger) *Player {
	if logger == nil {
		logger = slog.Default()
	}
	return &Player{
		sink:    sink,
		logger:  logger.With("component", "playback"),
		enabled: true,
	}
}

// SetEnabled toggles playback. Disabling discards any partial accumulation.
func (p *Player) SetEnabled(enabled bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.enabled = enabled
	if !enabled {
		p.buf = nil
	}
}

// Enabled reports whether playback is on.
func (p *Player) Enabled() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.enabled
}

// Append adds decoded audio bytes for the current response.
func (p *Player) Append(pcm []byte) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.enabled {
		return
	}
	p.buf = append(p.buf, pcm...)
}

// Buffered returns the number of accumulated bytes.
func (p *Player) Buffered() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.buf)
}

// Flush renders the full accumulated buffer as one unit and clears it.
// Called when the server signals the audio stream is done.
func (p *Player) Flush(ctx context.Context) error {
	p.mu.Lock()
	data := p.buf
	p.buf = nil
	enabled := p.enabled
	p.mu.Unlock()

	if !enabled || len(data) == 0 {
		return nil
	}

	p.mu.Lock()
	p.playing = true
	p.mu.Unlock()

	if p.OnPlaybackStart != nil {
		p.OnPlaybackStart()
	}

	p.logger.Debug("rendering response audio", "bytes", len(data))

	err := p.render(ctx, data)

	p.mu.Lock()
	p.playing = false
	p.mu.Unlock()

	if p.OnPlaybackEnd != nil {
		p.OnPlaybackEnd()
	}

	return err
}

func (p *Player) render(ctx context.Context, data []byte) error {
	if err := p.sink.Start(ctx); err != nil {
		return err
	}

	samples := audioio.BytesToSamples(data)
	if err := p.sink.Write(ctx, samples); err != nil {
		return err
	}

	return p.sink.Flush(ctx)
}

// Cancel drops any accumulated audio and clears the sink's buffer.
func (p *Player) Cancel() {
	p.mu.Lock()
	p.buf = nil
	p.mu.Unlock()

	_ = p.sink.Clear()
}

// IsPlaying reports whether a response is currently rendering.
func (p *Player) IsPlaying() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.playing
}
