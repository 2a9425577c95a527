package dictation

import "github.com/voxlab/go-dictate/pkg/realtime"

// Snapshot is a point-in-time view of the coordinator, safe to hand to
// observers. All fields are value copies.
type Snapshot struct {
	Connection        realtime.ConnectionState
	Connecting        bool
	Recording         State
	TurnID            string
	Transcript        string
	TranscriptVersion uint64
	Err               error
}
