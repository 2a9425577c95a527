// Package realtime provides the websocket protocol session for the remote
// speech service: it serializes outbound control/audio messages,
// deserializes the streamed inbound event union, and drives the connection
// and transcript state machines.
package realtime

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"

	"github.com/voxlab/go-dictate/pkg/credentials"
)

const (
	// DefaultURL is the realtime service endpoint.
	DefaultURL = "wss://api.openai.com/v1/realtime"

	// DefaultModel is the realtime model the session connects to.
	DefaultModel = "gpt-4o-realtime-preview-2024-12-17"

	// DefaultVoice is the synthesized-speech voice identity.
	DefaultVoice = "alloy"

	// DefaultTranscriptionModel is the transcription sub-model.
	DefaultTranscriptionModel = "whisper-1"
)

// transcribeInstructions constrains responses to a verbatim transcription.
const transcribeInstructions = "Transcribe the committed audio verbatim. " +
	"Respond with only the transcription text, no commentary."

// Config holds configuration for the realtime Client.
type Config struct {
	// Credentials supplies the bearer token. Required.
	Credentials credentials.Provider

	// URL overrides the service endpoint (tests).
	URL string

	// Model is the realtime model name.
	Model string

	// Voice is the synthesized-speech voice identity.
	Voice string

	// TranscriptionModel is the transcription sub-model.
	TranscriptionModel string

	// HandshakeTimeout bounds the websocket dial.
	HandshakeTimeout time.Duration

	// ReadTimeout is the per-message read deadline.
	ReadTimeout time.Duration

	// WriteTimeout is the per-message write deadline.
	WriteTimeout time.Duration

	// PingInterval is the keepalive ping period.
	PingInterval time.Duration

	// Logger is the structured logger to use.
	Logger *slog.Logger
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() Config {
	return Config{
		URL:                DefaultURL,
		Model:              DefaultModel,
		Voice:              DefaultVoice,
		TranscriptionModel: DefaultTranscriptionModel,
		HandshakeTimeout:   10 * time.Second,
		ReadTimeout:        120 * time.Second,
		WriteTimeout:       10 * time.Second,
		PingInterval:       30 * time.Second,
	}
}

// Client manages the persistent websocket connection to the speech service.
// All shared session state is guarded by one mutex; the receive loop, the
// keepalive loop, and the command surface serialize through it.
type Client struct {
	cfg    Config
	logger *slog.Logger

	mu         sync.Mutex
	conn       *websocket.Conn
	state      ConnectionState
	ready      bool
	closing    bool
	processing bool
	stopPing   chan struct{}
	tr         transcript

	// Callbacks
	onTranscriptDelta func(delta string)
	onTranscriptFinal func(text string, version uint64)
	onAudioDelta      func(pcm []byte)
	onAudioDone       func()
	onError           func(err error)
	onDisconnect      func()

	messagesSent     atomic.Int64
	messagesReceived atomic.Int64
}

// NewClient creates a realtime client. Zero config fields fall back to
// DefaultConfig values.
func NewClient(cfg Config) *Client {
	def := DefaultConfig()
	if cfg.URL == "" {
		cfg.URL = def.URL
	}
	if cfg.Model == "" {
		cfg.Model = def.Model
	}
	if cfg.Voice == "" {
		cfg.Voice = def.Voice
	}
	if cfg.TranscriptionModel == "" {
		cfg.TranscriptionModel = def.TranscriptionModel
	}
	if cfg.HandshakeTimeout <= 0 {
		cfg.HandshakeTimeout = def.HandshakeTimeout
	}
	if cfg.ReadTimeout <= 0 {
		cfg.ReadTimeout = def.ReadTimeout
	}
	if cfg.WriteTimeout <= 0 {
		cfg.WriteTimeout = def.WriteTimeout
	}
	if cfg.PingInterval <= 0 {
		cfg.PingInterval = def.PingInterval
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}

	return &Client{
		cfg:    cfg,
		logger: cfg.Logger.With("component", "realtime.client"),
		state:  StateDisconnected,
	}
}

// Connect dials the service and, once the transport is open, immediately
// declares the session configuration: text+audio modalities, PCM16 in and
// out, the chosen voice, the transcription sub-model, and turn detection
// disabled.
func (c *Client) Connect(ctx context.Context) error {
	if c.cfg.Credentials == nil {
		return ErrMissingCredential
	}
	token, err := c.cfg.Credentials.Token()
	if err != nil || token == "" {
		return fmt.Errorf("%w: %v", ErrMissingCredential, err)
	}

	c.mu.Lock()
	if c.state != StateDisconnected {
		c.mu.Unlock()
		return ErrAlreadyConnected
	}
	c.state = StateConnecting
	c.closing = false
	c.mu.Unlock()

	url := fmt.Sprintf("%s?model=%s", c.cfg.URL, c.cfg.Model)

	headers := http.Header{}
	headers.Set("Authorization", "Bearer "+token)
	headers.Set("OpenAI-Beta", "realtime=v1")

	dialer := websocket.Dialer{
		HandshakeTimeout: c.cfg.HandshakeTimeout,
	}

	c.logger.Info("connecting to realtime service", "model", c.cfg.Model)

	conn, resp, err := dialer.DialContext(ctx, url, headers)
	if err != nil {
		c.mu.Lock()
		c.state = StateDisconnected
		c.mu.Unlock()
		if resp != nil {
			return NewConnectionError(
				fmt.Sprintf("dial failed with status %d", resp.StatusCode),
				err,
				resp.StatusCode >= 500,
			)
		}
		return NewConnectionError("dial failed", err, true)
	}

	c.mu.Lock()
	c.conn = conn
	c.state = StateConnected
	c.ready = false
	c.stopPing = make(chan struct{})
	stopPing := c.stopPing
	c.mu.Unlock()

	if err := c.configureSession(); err != nil {
		c.Close()
		return err
	}

	go c.readLoop(conn)
	go c.keepAlive(conn, stopPing)

	c.logger.Info("connected to realtime service")

	return nil
}

// configureSession sends the session.update declaring formats, voice, the
// transcription sub-model, and turn detection off.
func (c *Client) configureSession() error {
	return c.writeJSON(sessionUpdateEvent{
		Type: typeSessionUpdate,
		Session: sessionConfig{
			Modalities:        []string{"text", "audio"},
			InputAudioFormat:  "pcm16",
			OutputAudioFormat: "pcm16",
			Voice:             c.cfg.Voice,
			InputAudioTranscription: transcriptionConfig{
				Model: c.cfg.TranscriptionModel,
			},
			TurnDetection: nil,
			Tools:         []any{},
		},
	})
}

// Close tears down the connection. Safe to call in any state.
func (c *Client) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.state == StateDisconnected {
		return nil
	}

	c.closing = true

	if c.stopPing != nil {
		close(c.stopPing)
		c.stopPing = nil
	}

	if c.conn != nil {
		deadline := time.Now().Add(time.Second)
		_ = c.conn.WriteControl(
			websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
			deadline,
		)
		c.conn.Close()
		c.conn = nil
	}

	c.state = StateDisconnected
	c.ready = false
	c.processing = false
	c.logger.Info("disconnected from realtime service")

	return nil
}

// State returns the current connection state.
func (c *Client) State() ConnectionState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// IsConnected returns true when the transport is up.
func (c *Client) IsConnected() bool {
	return c.State() == StateConnected
}

// Ready returns true once the server acknowledged the session.
func (c *Client) Ready() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.ready
}

// Processing reports whether the server signaled it is working on the
// committed audio.
func (c *Client) Processing() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.processing
}

// BeginTurn clears the transcript and re-arms finalization for a new
// recording.
func (c *Client) BeginTurn() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.tr.beginTurn()
	c.processing = false
}

// Transcript returns the current transcript text and version counter.
func (c *Client) Transcript() (string, uint64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.tr.text, c.tr.version
}

// SendAudio transmits PCM16 audio as a single base64 payload.
func (c *Client) SendAudio(pcm []byte) error {
	return c.writeJSON(audioAppendEvent{
		Type:  typeAudioAppend,
		Audio: base64.StdEncoding.EncodeToString(pcm),
	})
}

// CommitAudio commits the server-side input buffer.
func (c *Client) CommitAudio() error {
	return c.writeJSON(commitEvent{Type: typeAudioCommit})
}

// CreateResponse requests a text-only verbatim transcription.
func (c *Client) CreateResponse() error {
	return c.writeJSON(responseCreateEvent{
		Type: typeResponseCreate,
		Response: responseConfig{
			Modalities:   []string{"text"},
			Instructions: transcribeInstructions,
		},
	})
}

// Callback setters.

// OnTranscriptDelta sets the callback for incremental transcript text.
func (c *Client) OnTranscriptDelta(fn func(delta string)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.onTranscriptDelta = fn
}

// OnTranscriptFinal sets the callback invoked once per finalized turn.
func (c *Client) OnTranscriptFinal(fn func(text string, version uint64)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.onTranscriptFinal = fn
}

// OnAudioDelta sets the callback for synthesized-audio bytes.
func (c *Client) OnAudioDelta(fn func(pcm []byte)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.onAudioDelta = fn
}

// OnAudioDone sets the callback for the end of an audio stream.
func (c *Client) OnAudioDone(fn func()) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.onAudioDone = fn
}

// OnError sets the callback for service and transport errors.
func (c *Client) OnError(fn func(err error)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.onError = fn
}

// OnDisconnect sets the callback invoked when the transport drops outside
// of a deliberate Close.
func (c *Client) OnDisconnect(fn func()) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.onDisconnect = fn
}

// Stats contains session counters for inspection.
type Stats struct {
	State            string `json:"state"`
	Ready            bool   `json:"ready"`
	Processing       bool   `json:"processing"`
	MessagesSent     int64  `json:"messages_sent"`
	MessagesReceived int64  `json:"messages_received"`
}

// SessionStats returns current session counters.
func (c *Client) SessionStats() Stats {
	c.mu.Lock()
	state := c.state
	ready := c.ready
	processing := c.processing
	c.mu.Unlock()

	return Stats{
		State:            state.String(),
		Ready:            ready,
		Processing:       processing,
		MessagesSent:     c.messagesSent.Load(),
		MessagesReceived: c.messagesReceived.Load(),
	}
}

// writeJSON serializes one outbound message under the session lock.
func (c *Client) writeJSON(v any) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.state != StateConnected || c.conn == nil {
		return ErrNotConnected
	}

	_ = c.conn.SetWriteDeadline(time.Now().Add(c.cfg.WriteTimeout))
	if err := c.conn.WriteJSON(v); err != nil {
		return NewConnectionError("send failed", err, true)
	}

	c.messagesSent.Add(1)
	return nil
}

// keepAlive sends periodic pings so idle sessions stay open.
func (c *Client) keepAlive(conn *websocket.Conn, stop chan struct{}) {
	ticker := time.NewTicker(c.cfg.PingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			deadline := time.Now().Add(c.cfg.WriteTimeout)
			if err := conn.WriteControl(websocket.PingMessage, nil, deadline); err != nil {
				return
			}
		}
	}
}

// readLoop perpetually awaits the next inbound message. A malformed message
// never terminates the loop; only transport closure or error does.
func (c *Client) readLoop(conn *websocket.Conn) {
	for {
		_ = conn.SetReadDeadline(time.Now().Add(c.cfg.ReadTimeout))

		_, data, err := conn.ReadMessage()
		if err != nil {
			c.handleTransportClose(err)
			return
		}

		c.messagesReceived.Add(1)

		var ev serverEvent
		if err := json.Unmarshal(data, &ev); err != nil {
			c.logger.Warn("ignoring unparseable event", "error", err)
			continue
		}

		c.handleEvent(&ev)
	}
}

// handleTransportClose resets connection state after a read failure and,
// unless the close was deliberate, notifies observers so dependent state
// (recording, pending timeout) is force-cleared.
func (c *Client) handleTransportClose(err error) {
	c.mu.Lock()
	wasClosing := c.closing
	c.state = StateDisconnected
	c.ready = false
	c.processing = false
	c.conn = nil
	if c.stopPing != nil {
		close(c.stopPing)
		c.stopPing = nil
	}
	onDisconnect := c.onDisconnect
	onError := c.onError
	c.mu.Unlock()

	if wasClosing {
		return
	}

	if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
		c.logger.Info("connection closed by server")
	} else {
		c.logger.Error("read failed", "error", err)
		if onError != nil {
			onError(NewConnectionError("read failed", err, true))
		}
	}

	if onDisconnect != nil {
		onDisconnect()
	}
}

// handleEvent dispatches one inbound event. Unrecognized event types are
// ignored for forward compatibility.
func (c *Client) handleEvent(ev *serverEvent) {
	switch ev.Type {
	case typeSessionCreated, typeSessionUpdated:
		c.mu.Lock()
		c.ready = true
		c.mu.Unlock()
		c.logger.Debug("session acknowledged", "event", ev.Type)

	case typeSpeechStarted, typeSpeechStopped, typeAudioCommitted:
		c.mu.Lock()
		c.processing = true
		c.mu.Unlock()

	case typeTextDelta, typeAudioTranscriptDelta:
		c.mu.Lock()
		appended := c.tr.appendDelta(ev.Delta)
		fn := c.onTranscriptDelta
		c.mu.Unlock()
		if appended && fn != nil {
			fn(ev.Delta)
		}

	case typeTextDone:
		c.finalizeTranscript(ev.Text)

	case typeAudioTranscriptDone:
		c.finalizeTranscript(ev.Transcript)

	case typeContentPartDone:
		c.finalizeTranscript(ev.Part.text())

	case typeOutputItemDone:
		c.finalizeTranscript(ev.Item.text())

	case typeResponseDone:
		// Generic fallback shape: carries the accumulated output, arrives
		// after any more specific terminal and must not re-finalize.
		c.finalizeTranscript(ev.Response.text())

	case typeAudioDelta:
		pcm, err := base64.StdEncoding.DecodeString(ev.Delta)
		if err != nil {
			c.logger.Warn("ignoring undecodable audio delta", "error", err)
			return
		}
		c.mu.Lock()
		fn := c.onAudioDelta
		c.mu.Unlock()
		if fn != nil {
			fn(pcm)
		}

	case typeAudioDone:
		c.mu.Lock()
		fn := c.onAudioDone
		c.mu.Unlock()
		if fn != nil {
			fn()
		}

	case typeError:
		apiErr := &APIError{Message: "unknown error"}
		if ev.Error != nil {
			apiErr = &APIError{Code: ev.Error.Code, Message: ev.Error.Message}
		}
		c.mu.Lock()
		c.processing = false
		fn := c.onError
		c.mu.Unlock()
		c.logger.Error("service error", "code", apiErr.Code, "message", apiErr.Message)
		if fn != nil {
			fn(apiErr)
		}

	default:
		c.logger.Debug("ignoring event", "type", ev.Type)
	}
}

// finalizeTranscript normalizes every terminal shape into one transition.
// Only the first terminal of a turn increments the version and notifies;
// duplicates are silently ignored.
func (c *Client) finalizeTranscript(final string) {
	c.mu.Lock()
	if !c.tr.finalize(final) {
		c.mu.Unlock()
		c.logger.Debug("duplicate terminal transcript ignored")
		return
	}
	c.processing = false
	text := c.tr.text
	version := c.tr.version
	fn := c.onTranscriptFinal
	c.mu.Unlock()

	c.logger.Info("transcript finalized", "version", version, "chars", len(text))

	if fn != nil {
		fn(text, version)
	}
}

// IsCredentialError reports whether err is a missing-credential
// configuration error.
func IsCredentialError(err error) bool {
	return errors.Is(err, ErrMissingCredential) || errors.Is(err, credentials.ErrNoCredential)
}

// Ensure Client implements Session.
var _ Session = (*Client)(nil)
