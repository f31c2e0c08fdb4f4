package internal

// State is the job lifecycle state.
type State int32

const (
	// Idle means no job has started yet.
	Idle State = iota
	// Streaming means a job is active and the stream has not ended.
	Streaming
	// Draining means the stream ended while scanlines were still queued.
	Draining
	// Settled means the stream ended and every queued scanline was painted.
	Settled
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Streaming:
		return "streaming"
	case Draining:
		return "draining"
	case Settled:
		return "settled"
	default:
		return "unknown"
	}
}
