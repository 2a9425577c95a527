package dictation

import (
	"sync"
	"time"
)

// Timeout is a single-shot deferred action with explicit cancellation.
// A cancelled timeout never fires, and a fired timeout reports Cancel
// as false so callers can tell which side won.
type Timeout struct {
	mu    sync.Mutex
	timer *time.Timer
	done  bool
}

// After schedules fn to run once after d, unless cancelled first.
func After(d time.Duration, fn func()) *Timeout {
	t := &Timeout{}
	t.timer = time.AfterFunc(d, func() {
		t.mu.Lock()
		if t.done {
			t.mu.Unlock()
			return
		}
		t.done = true
		t.mu.Unlock()
		fn()
	})
	return t
}

// Cancel prevents the action from running. It reports whether the
// cancellation won the race against the timer.
func (t *Timeout) Cancel() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.done {
		return false
	}
	t.done = true
	t.timer.Stop()
	return true
}
