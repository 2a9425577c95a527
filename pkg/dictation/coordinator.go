package dictation

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/voxlab/go-dictate/internal/log"
	"github.com/voxlab/go-dictate/pkg/audioio"
	"github.com/voxlab/go-dictate/pkg/permissions"
	"github.com/voxlab/go-dictate/pkg/playback"
	"github.com/voxlab/go-dictate/pkg/realtime"
)

// DefaultTranscribeTimeout bounds the wait for a terminal transcript
// after a recording is committed.
const DefaultTranscribeTimeout = 15 * time.Second

// connectBackoff is the polling schedule used while waiting for a
// freshly dialed session to finish its configuration handshake.
func connectBackoff() []time.Duration {
	d := make([]time.Duration, 0, 11)
	for i := 0; i < 3; i++ {
		d = append(d, 100*time.Millisecond)
	}
	for i := 0; i < 4; i++ {
		d = append(d, 200*time.Millisecond)
	}
	for i := 0; i < 4; i++ {
		d = append(d, 500*time.Millisecond)
	}
	return d
}

// Config holds coordinator tunables.
type Config struct {
	// TranscribeTimeout overrides DefaultTranscribeTimeout when positive.
	TranscribeTimeout time.Duration
	// Logger defaults to the package logger when nil.
	Logger *slog.Logger
}

// Coordinator drives the record-buffer-send-await cycle. It owns the
// recording state machine; the session owns the connection state. All
// mutations happen under one mutex so observers never see a torn state.
type Coordinator struct {
	session   realtime.Session
	source    audioio.Source
	converter *audioio.Converter
	buffer    *audioio.RecordingBuffer
	player    *playback.Player
	perms     permissions.Checker
	logger    *slog.Logger
	metrics   *MetricsCollector
	timeout   time.Duration

	mu            sync.Mutex
	state         State
	connecting    bool
	cancelConnect chan struct{}
	pending       *Timeout
	turnID        string
	transcript    string
	version       uint64
	lastErr       error
	captureDone   chan struct{}
	onLevel       func(float64)
	subs          []func(Snapshot)
	closed        bool
}

// New wires a coordinator over the given session, capture source and
// playback player. The player may be nil when playback is disabled
// entirely.
func New(session realtime.Session, source audioio.Source, player *playback.Player, perms permissions.Checker, cfg Config) (*Coordinator, error) {
	if cfg.TranscribeTimeout <= 0 {
		cfg.TranscribeTimeout = DefaultTranscribeTimeout
	}
	if cfg.Logger == nil {
		cfg.Logger = log.With("component", "dictation")
	}
	if perms == nil {
		perms = permissions.Granted{}
	}
	converter, err := audioio.NewConverter(audioio.WireFormat)
	if err != nil {
		return nil, err
	}
	c := &Coordinator{
		session:   session,
		source:    source,
		converter: converter,
		buffer:    audioio.NewRecordingBuffer(),
		player:    player,
		perms:     perms,
		logger:    cfg.Logger,
		metrics:   NewMetricsCollector(),
		timeout:   cfg.TranscribeTimeout,
	}

	session.OnTranscriptDelta(c.handleTranscriptDelta)
	session.OnTranscriptFinal(c.handleTranscriptFinal)
	session.OnError(c.handleSessionError)
	session.OnDisconnect(c.handleDisconnect)
	if player != nil {
		session.OnAudioDelta(player.Append)
		session.OnAudioDone(func() {
			go func() {
				if err := player.Flush(context.Background()); err != nil {
					c.logger.Warn("playback failed", "error", err)
				}
			}()
		})
	}
	return c, nil
}

// Metrics exposes the latency collector.
func (c *Coordinator) Metrics() *MetricsCollector { return c.metrics }

// OnLevel registers a callback fired with the input level of every
// captured chunk. Must be set before recording starts.
func (c *Coordinator) OnLevel(fn func(float64)) {
	c.mu.Lock()
	c.onLevel = fn
	c.mu.Unlock()
}

// Subscribe registers an observer called with a snapshot after every
// state change.
func (c *Coordinator) Subscribe(fn func(Snapshot)) {
	c.mu.Lock()
	c.subs = append(c.subs, fn)
	c.mu.Unlock()
}

// Snapshot returns the current state.
func (c *Coordinator) Snapshot() Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.snapshotLocked()
}

func (c *Coordinator) snapshotLocked() Snapshot {
	return Snapshot{
		Connection:        c.session.State(),
		Connecting:        c.connecting,
		Recording:         c.state,
		TurnID:            c.turnID,
		Transcript:        c.transcript,
		TranscriptVersion: c.version,
		Err:               c.lastErr,
	}
}

// publish notifies subscribers outside the lock.
func (c *Coordinator) publish() {
	c.mu.Lock()
	snap := c.snapshotLocked()
	subs := make([]func(Snapshot), len(c.subs))
	copy(subs, c.subs)
	c.mu.Unlock()
	for _, fn := range subs {
		fn(snap)
	}
}

// State returns the recording state.
func (c *Coordinator) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Toggle is the single user-facing control. From idle it connects if
// needed and starts recording; while recording it stops and submits.
// Toggles during a pending connection attempt or while a transcription
// is outstanding are ignored, so there is never more than one
// connection attempt in flight.
func (c *Coordinator) Toggle(ctx context.Context) {
	c.mu.Lock()
	if c.closed || c.connecting || c.state == AwaitingTranscription {
		state, connecting := c.state, c.connecting
		c.mu.Unlock()
		c.logger.Debug("toggle ignored", "state", state, "connecting", connecting)
		return
	}
	if c.state == Recording {
		c.mu.Unlock()
		c.StopRecording()
		return
	}
	if c.session.IsConnected() {
		c.mu.Unlock()
		c.StartRecording(ctx)
		return
	}
	cancel := make(chan struct{})
	c.connecting = true
	c.cancelConnect = cancel
	c.mu.Unlock()
	c.publish()
	go c.connectAndStart(ctx, cancel)
}

func (c *Coordinator) connectAndStart(ctx context.Context, cancel <-chan struct{}) {
	if err := c.session.Connect(ctx); err != nil {
		c.finishConnect(err)
		return
	}
	ready := c.session.Ready()
	for _, d := range connectBackoff() {
		if ready {
			break
		}
		select {
		case <-cancel:
			c.finishConnect(nil)
			return
		case <-ctx.Done():
			c.finishConnect(ctx.Err())
			return
		case <-time.After(d):
		}
		ready = c.session.Ready()
	}
	if !ready {
		c.finishConnect(ErrConnectTimeout)
		return
	}
	c.finishConnect(nil)
	c.StartRecording(ctx)
}

func (c *Coordinator) finishConnect(err error) {
	c.mu.Lock()
	c.connecting = false
	c.cancelConnect = nil
	if err != nil {
		c.lastErr = err
		c.logger.Warn("connect failed", "error", err)
	}
	c.mu.Unlock()
	c.publish()
}

// StartRecording begins capturing from the source into the recording
// buffer. It reports whether recording actually started; failures are
// recorded on the snapshot rather than panicking.
func (c *Coordinator) StartRecording(ctx context.Context) bool {
	c.mu.Lock()
	if c.closed || c.state != Idle || !c.session.IsConnected() {
		c.mu.Unlock()
		return false
	}
	c.mu.Unlock()

	if !c.ensureMicAccess() {
		return false
	}

	c.mu.Lock()
	if c.state != Idle {
		c.mu.Unlock()
		return false
	}
	if err := c.converter.Reset(c.source.Config().Format); err != nil {
		c.lastErr = err
		c.mu.Unlock()
		c.publish()
		return false
	}
	if err := c.source.Start(ctx); err != nil {
		c.lastErr = err
		c.logger.Error("capture start failed", "error", err)
		c.mu.Unlock()
		c.publish()
		return false
	}
	c.session.BeginTurn()
	c.buffer.Reset()
	done := make(chan struct{})
	c.captureDone = done
	c.state = Recording
	c.turnID = uuid.NewString()
	c.transcript = ""
	c.lastErr = nil
	c.metrics.MarkRecordStart()
	stream := c.source.Stream()
	c.mu.Unlock()

	c.logger.Info("recording started", "turn", c.turnID)
	go c.captureLoop(stream, done)
	c.publish()
	return true
}

// ensureMicAccess resolves microphone permission, prompting once when
// the status is undetermined.
func (c *Coordinator) ensureMicAccess() bool {
	switch c.perms.Status() {
	case permissions.Authorized:
		return true
	case permissions.NotDetermined:
		if err := c.perms.Request(); err != nil {
			c.setErr(err)
			return false
		}
		if c.perms.Status() == permissions.Authorized {
			return true
		}
		c.setErr(permissions.ErrMicrophoneDenied)
		return false
	default:
		c.setErr(permissions.ErrMicrophoneDenied)
		return false
	}
}

func (c *Coordinator) setErr(err error) {
	c.mu.Lock()
	c.lastErr = err
	c.mu.Unlock()
	c.logger.Warn("dictation error", "error", err)
	c.publish()
}

// captureLoop drains the source stream until it closes, converting each
// chunk to the wire format and appending it to the recording buffer.
// Chunks that fail conversion are dropped, never fatal.
func (c *Coordinator) captureLoop(stream <-chan audioio.Chunk, done chan struct{}) {
	defer close(done)
	for chunk := range stream {
		c.mu.Lock()
		levelFn := c.onLevel
		c.mu.Unlock()
		if levelFn != nil {
			levelFn(audioio.Level(chunk.Samples))
		}
		data, err := c.converter.Convert(chunk)
		if err != nil {
			c.logger.Warn("dropping chunk", "error", err)
			c.metrics.IncrementDropped()
			continue
		}
		c.buffer.Append(data)
		c.metrics.IncrementChunks()
	}
}

// StopRecording ends capture and submits the buffered utterance as one
// append/commit/respond sequence. An empty buffer short-circuits back
// to idle without touching the network.
func (c *Coordinator) StopRecording() {
	c.mu.Lock()
	if c.state != Recording {
		c.mu.Unlock()
		return
	}
	done := c.captureDone
	c.captureDone = nil
	c.mu.Unlock()

	c.source.Stop()
	if done != nil {
		<-done
	}

	data := c.buffer.Drain()
	c.metrics.MarkRecordEnd(len(data))

	c.mu.Lock()
	if len(data) == 0 {
		c.state = Idle
		c.mu.Unlock()
		c.logger.Info("recording empty, nothing to send")
		c.publish()
		return
	}
	c.state = AwaitingTranscription
	turn := c.turnID
	// The token must be armed before the submission goes out: a terminal
	// event can arrive while the writes are still in flight, and it has
	// to find the token it is supposed to cancel.
	var tok *Timeout
	tok = After(c.timeout, func() { c.handleTimeout(tok) })
	c.pending = tok
	c.mu.Unlock()
	c.publish()

	c.logger.Info("submitting recording", "turn", turn, "bytes", len(data))
	if err := c.submit(data); err != nil {
		c.mu.Lock()
		if c.pending == tok {
			tok.Cancel()
			c.pending = nil
		}
		if c.state == AwaitingTranscription {
			c.state = Idle
		}
		c.lastErr = err
		c.mu.Unlock()
		c.logger.Error("submit failed", "turn", turn, "error", err)
		c.publish()
		return
	}
}

func (c *Coordinator) submit(data []byte) error {
	if err := c.session.SendAudio(data); err != nil {
		return err
	}
	if err := c.session.CommitAudio(); err != nil {
		return err
	}
	return c.session.CreateResponse()
}

// handleTimeout fires when no terminal transcript arrived in time. The
// identity check makes superseded timeouts inert even if they race
// their own cancellation.
func (c *Coordinator) handleTimeout(tok *Timeout) {
	c.mu.Lock()
	if c.pending != tok {
		c.mu.Unlock()
		return
	}
	c.pending = nil
	if c.state != AwaitingTranscription {
		c.mu.Unlock()
		return
	}
	c.state = Idle
	c.lastErr = ErrTranscriptionTimeout
	c.mu.Unlock()
	c.logger.Warn("transcription timed out")
	c.publish()
}

func (c *Coordinator) handleTranscriptDelta(string) {
	c.mu.Lock()
	text, _ := c.session.Transcript()
	c.transcript = text
	c.mu.Unlock()
	c.publish()
}

func (c *Coordinator) handleTranscriptFinal(text string, version uint64) {
	c.mu.Lock()
	if c.pending != nil {
		c.pending.Cancel()
		c.pending = nil
	}
	if c.state == AwaitingTranscription {
		c.state = Idle
	}
	c.transcript = text
	c.version = version
	c.mu.Unlock()
	c.metrics.MarkTranscriptDone()
	c.logger.Info("transcript finalized", "version", version, "chars", len(text))
	c.publish()
}

// handleSessionError clears any in-flight recording or timeout so the
// caller can immediately retry.
func (c *Coordinator) handleSessionError(err error) {
	c.mu.Lock()
	if c.pending != nil {
		c.pending.Cancel()
		c.pending = nil
	}
	recording := c.state == Recording
	c.state = Idle
	c.lastErr = err
	c.mu.Unlock()
	if recording {
		c.source.Stop()
	}
	c.logger.Warn("session error", "error", err)
	c.publish()
}

// handleDisconnect force-clears recording state so observers never see
// an active recording on a dead connection.
func (c *Coordinator) handleDisconnect() {
	c.mu.Lock()
	if c.pending != nil {
		c.pending.Cancel()
		c.pending = nil
	}
	recording := c.state == Recording
	c.state = Idle
	c.mu.Unlock()
	if recording {
		c.source.Stop()
	}
	c.logger.Info("session disconnected")
	c.publish()
}

// Disconnect tears the session down deliberately. Recording state is
// cleared synchronously before the close, so no observer sees a live
// recording against a closing connection.
func (c *Coordinator) Disconnect() {
	c.mu.Lock()
	if c.cancelConnect != nil {
		close(c.cancelConnect)
		c.cancelConnect = nil
		c.connecting = false
	}
	if c.pending != nil {
		c.pending.Cancel()
		c.pending = nil
	}
	recording := c.state == Recording
	c.state = Idle
	c.mu.Unlock()
	if recording {
		c.source.Stop()
	}
	if c.player != nil {
		c.player.Cancel()
	}
	if err := c.session.Close(); err != nil {
		c.logger.Debug("session close", "error", err)
	}
	c.publish()
}

// Close releases the coordinator and its capture device.
func (c *Coordinator) Close() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	c.mu.Unlock()
	c.Disconnect()
	return c.source.Close()
}
