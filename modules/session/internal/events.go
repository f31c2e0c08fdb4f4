package internal

// EventKind identifies an inbound lifecycle event.
type EventKind int

const (
	EventJobStart EventKind = iota
	EventData
	EventEnd
	EventClosed
)

func (k EventKind) String() string {
	switch k {
	case EventJobStart:
		return "job_start"
	case EventData:
		return "data"
	case EventEnd:
		return "end"
	case EventClosed:
		return "closed"
	default:
		return "unknown"
	}
}

// Event is one input to the controller. Only the fields relevant to Kind are set.
type Event struct {
	Kind EventKind

	// Job is set for EventJobStart.
	Job Job

	// Payload and Binary are set for EventData.
	Payload []byte
	Binary  bool

	// Err is the optional cause for EventClosed.
	Err error

	// JobID, when set on a stream event, names the job the frame belongs to.
	// Stream events for any other job are ignored. Empty applies to the
	// current job.
	JobID string
}

// ForJob returns a copy of ev tagged with jobID.
func (ev Event) ForJob(jobID string) Event {
	ev.JobID = jobID
	return ev
}

// JobStart resets the controller for job.
func JobStart(job Job) Event {
	return Event{Kind: EventJobStart, Job: job}
}

// Data carries one raw producer frame.
func Data(payload []byte, binary bool) Event {
	return Event{Kind: EventData, Payload: payload, Binary: binary}
}

// End marks the graceful end of the stream.
func End() Event {
	return Event{Kind: EventEnd}
}

// Closed marks the connection going away, with an optional cause.
func Closed(err error) Event {
	return Event{Kind: EventClosed, Err: err}
}
