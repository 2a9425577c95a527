package realtime

// transcript accumulates the current turn's text and normalizes the
// protocol's several "transcript complete" shapes into exactly one finalize
// transition per turn.
//
// The version counter increments once per logically complete transcription.
// Consumers watch the counter, not the string, to detect a new transcript.
// Not goroutine-safe: the owning Client serializes access.
type transcript struct {
	text      string
	version   uint64
	finalized bool
}

// beginTurn clears the accumulating text and re-arms finalization for a new
// recording. The version counter is never reset.
func (t *transcript) beginTurn() {
	t.text = ""
	t.finalized = false
}

// appendDelta adds an incremental fragment. Deltas arriving after the turn
// finalized are ignored.
func (t *transcript) appendDelta(delta string) bool {
	if t.finalized {
		return false
	}
	t.text += delta
	return true
}

// finalize completes the current turn. The first terminal event wins: a
// non-empty final string replaces the accumulated deltas, an empty one keeps
// them. Returns false for duplicate terminals, which must have no effect.
func (t *transcript) finalize(final string) bool {
	if t.finalized {
		return false
	}
	t.finalized = true
	if final != "" {
		t.text = final
	}
	t.version++
	return true
}
