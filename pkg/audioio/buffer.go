package audioio

import "sync"

// RecordingBuffer accumulates converted wire-format audio for the duration
// of one recording session. It is reset at the start of each session and
// drained, not copied, when the completed recording is sent.
type RecordingBuffer struct {
	mu   sync.Mutex
	data []byte
}

// NewRecordingBuffer creates an empty recording buffer.
func NewRecordingBuffer() *RecordingBuffer {
	return &RecordingBuffer{}
}

// Append adds converted bytes to the buffer.
func (b *RecordingBuffer) Append(p []byte) {
	if len(p) == 0 {
		return
	}
	b.mu.Lock()
	b.data = append(b.data, p...)
	b.mu.Unlock()
}

// Len returns the number of buffered bytes.
func (b *RecordingBuffer) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.data)
}

// Drain moves the buffered bytes out, leaving the buffer empty.
func (b *RecordingBuffer) Drain() []byte {
	b.mu.Lock()
	defer b.mu.Unlock()
	data := b.data
	b.data = nil
	return data
}

// Reset discards any buffered bytes.
func (b *RecordingBuffer) Reset() {
	b.mu.Lock()
	b.data = nil
	b.mu.Unlock()
}
