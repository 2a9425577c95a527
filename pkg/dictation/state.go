// Package dictation orchestrates buffered push-to-talk recording against
// the realtime session: it owns the recording state machine, the
// transcription timeout policy, and the published state snapshot.
//
// Rationale for buffering: streaming chunks to the server in real time
// yields fragmented, context-poor transcripts. Capturing the entire
// utterance locally and submitting it as one unit lets the remote model
// see full context.
package dictation

import "errors"

// Errors surfaced to the caller.
var (
	// ErrTranscriptionTimeout indicates no terminal transcript arrived
	// within the timeout budget. Retrying the recording recovers.
	ErrTranscriptionTimeout = errors.New("dictation: no transcript received in time")

	// ErrConnectTimeout indicates the session did not become ready within
	// the connect polling budget.
	ErrConnectTimeout = errors.New("dictation: connection attempt timed out")
)

// State is the recording state, owned by the Coordinator.
type State int

const (
	// Idle means no recording is in progress.
	Idle State = iota
	// Recording means audio is being captured and buffered.
	Recording
	// AwaitingTranscription means a recording was sent and the
	// coordinator is waiting for a terminal transcript or the timeout.
	AwaitingTranscription
)

// String returns a human-readable state.
func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Recording:
		return "recording"
	case AwaitingTranscription:
		return "awaiting-transcription"
	default:
		return "unknown"
	}
}
