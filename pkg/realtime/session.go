package realtime

import "context"

// ConnectionState represents the websocket connection state. It is owned
// exclusively by the session and transitions only via socket lifecycle or
// an explicit Close.
type ConnectionState int

const (
	// StateDisconnected indicates no active connection.
	StateDisconnected ConnectionState = iota
	// StateConnecting indicates connection is being established.
	StateConnecting
	// StateConnected indicates an active connection.
	StateConnected
)

// String returns a human-readable connection state.
func (s ConnectionState) String() string {
	switch s {
	case StateDisconnected:
		return "disconnected"
	case StateConnecting:
		return "connecting"
	case StateConnected:
		return "connected"
	default:
		return "unknown"
	}
}

// Session is the protocol session consumed by the transcription
// coordinator. Client implements it against the live service; Mock
// implements it for tests.
type Session interface {
	// Connect opens the persistent connection and sends the session
	// configuration. Valid only from StateDisconnected; fails immediately
	// with ErrMissingCredential when no credential is available.
	Connect(ctx context.Context) error

	// Close tears the connection down. In-flight state observers are not
	// notified; the caller clears its own dependent state synchronously.
	Close() error

	// State returns the current connection state.
	State() ConnectionState

	// IsConnected returns true when the transport is up.
	IsConnected() bool

	// Ready returns true once the server acknowledged the session.
	Ready() bool

	// BeginTurn clears the accumulated transcript and re-arms
	// finalization for a new recording.
	BeginTurn()

	// Transcript returns the current transcript text and its version
	// counter.
	Transcript() (string, uint64)

	// SendAudio transmits wire-format PCM16 audio as one base64 payload.
	SendAudio(pcm []byte) error

	// CommitAudio commits the server-side input buffer.
	CommitAudio() error

	// CreateResponse requests a text-only verbatim transcription of the
	// committed audio.
	CreateResponse() error

	// OnTranscriptDelta sets the callback for incremental transcript text.
	OnTranscriptDelta(fn func(delta string))

	// OnTranscriptFinal sets the callback invoked exactly once per turn
	// when the transcript finalizes.
	OnTranscriptFinal(fn func(text string, version uint64))

	// OnAudioDelta sets the callback for synthesized-audio bytes.
	OnAudioDelta(fn func(pcm []byte))

	// OnAudioDone sets the callback for the end of an audio stream.
	OnAudioDone(fn func())

	// OnError sets the callback for service and transport errors.
	OnError(fn func(err error))

	// OnDisconnect sets the callback invoked when the transport drops
	// outside of a deliberate Close.
	OnDisconnect(fn func())
}
