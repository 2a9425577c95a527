package realtime

import (
	"context"
	"sync"
)

// Mock is a mock implementation of Session for testing. It mirrors the
// Client's transcript normalization so coordinator tests observe the same
// once-per-turn finalization.
type Mock struct {
	mu sync.Mutex

	state ConnectionState
	ready bool
	tr    transcript

	// Callbacks
	onTranscriptDelta func(delta string)
	onTranscriptFinal func(text string, version uint64)
	onAudioDelta      func(pcm []byte)
	onAudioDone       func()
	onError           func(err error)
	onDisconnect      func()

	// Configurable behavior
	ConnectFunc func(ctx context.Context) error

	// ConnectDelayedReady keeps Ready false until SimulateReady is called.
	ConnectDelayedReady bool

	// FailSends makes audio sends fail with ErrNotConnected.
	FailSends bool

	// Captured calls for assertions
	ConnectCalls       int
	AudioSent          [][]byte
	Commits            int
	ResponsesRequested int
}

// NewMock creates a new mock session.
func NewMock() *Mock {
	return &Mock{state: StateDisconnected}
}

// Connect implements Session.
func (m *Mock) Connect(ctx context.Context) error {
	m.mu.Lock()
	m.ConnectCalls++
	fn := m.ConnectFunc
	m.mu.Unlock()

	if fn != nil {
		return fn(ctx)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.state == StateConnected {
		return ErrAlreadyConnected
	}
	m.state = StateConnected
	m.ready = !m.ConnectDelayedReady
	return nil
}

// Close implements Session.
func (m *Mock) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.state = StateDisconnected
	m.ready = false
	return nil
}

// State implements Session.
func (m *Mock) State() ConnectionState {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// IsConnected implements Session.
func (m *Mock) IsConnected() bool {
	return m.State() == StateConnected
}

// Ready implements Session.
func (m *Mock) Ready() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.ready
}

// BeginTurn implements Session.
func (m *Mock) BeginTurn() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.tr.beginTurn()
}

// Transcript implements Session.
func (m *Mock) Transcript() (string, uint64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.tr.text, m.tr.version
}

// SendAudio implements Session.
func (m *Mock) SendAudio(pcm []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.state != StateConnected || m.FailSends {
		return ErrNotConnected
	}
	m.AudioSent = append(m.AudioSent, pcm)
	return nil
}

// CommitAudio implements Session.
func (m *Mock) CommitAudio() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.state != StateConnected || m.FailSends {
		return ErrNotConnected
	}
	m.Commits++
	return nil
}

// CreateResponse implements Session.
func (m *Mock) CreateResponse() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.state != StateConnected || m.FailSends {
		return ErrNotConnected
	}
	m.ResponsesRequested++
	return nil
}

// Callback setters.

func (m *Mock) OnTranscriptDelta(fn func(delta string)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.onTranscriptDelta = fn
}

func (m *Mock) OnTranscriptFinal(fn func(text string, version uint64)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.onTranscriptFinal = fn
}

func (m *Mock) OnAudioDelta(fn func(pcm []byte)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.onAudioDelta = fn
}

func (m *Mock) OnAudioDone(fn func()) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.onAudioDone = fn
}

func (m *Mock) OnError(fn func(err error)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.onError = fn
}

func (m *Mock) OnDisconnect(fn func()) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.onDisconnect = fn
}

// Simulation helpers.

// SimulateReady marks the session acknowledged by the server.
func (m *Mock) SimulateReady() {
	m.mu.Lock()
	m.ready = true
	m.mu.Unlock()
}

// SimulateDelta delivers an incremental transcript fragment.
func (m *Mock) SimulateDelta(delta string) {
	m.mu.Lock()
	appended := m.tr.appendDelta(delta)
	fn := m.onTranscriptDelta
	m.mu.Unlock()
	if appended && fn != nil {
		fn(delta)
	}
}

// SimulateTranscriptFinal delivers a terminal transcript event. Like the
// real client, only the first terminal of a turn notifies.
func (m *Mock) SimulateTranscriptFinal(text string) {
	m.mu.Lock()
	finalized := m.tr.finalize(text)
	final := m.tr.text
	version := m.tr.version
	fn := m.onTranscriptFinal
	m.mu.Unlock()
	if finalized && fn != nil {
		fn(final, version)
	}
}

// SimulateAudioDelta delivers synthesized audio bytes.
func (m *Mock) SimulateAudioDelta(pcm []byte) {
	m.mu.Lock()
	fn := m.onAudioDelta
	m.mu.Unlock()
	if fn != nil {
		fn(pcm)
	}
}

// SimulateAudioDone signals the end of the audio stream.
func (m *Mock) SimulateAudioDone() {
	m.mu.Lock()
	fn := m.onAudioDone
	m.mu.Unlock()
	if fn != nil {
		fn()
	}
}

// SimulateError delivers a service error.
func (m *Mock) SimulateError(err error) {
	m.mu.Lock()
	fn := m.onError
	m.mu.Unlock()
	if fn != nil {
		fn(err)
	}
}

// SimulateDisconnect drops the transport as if the server closed it.
func (m *Mock) SimulateDisconnect() {
	m.mu.Lock()
	m.state = StateDisconnected
	m.ready = false
	fn := m.onDisconnect
	m.mu.Unlock()
	if fn != nil {
		fn()
	}
}

// Ensure Mock implements Session.
var _ Session = (*Mock)(nil)
