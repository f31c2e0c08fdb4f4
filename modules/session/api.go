package session

import "github.com/e7canasta/scanview/modules/session/internal"

// Public API - Re-export internal types as stable contract

// State is the job lifecycle state
type State = internal.State

const (
	Idle      = internal.Idle
	Streaming = internal.Streaming
	Draining  = internal.Draining
	Settled   = internal.Settled
)

// Job describes one render job
type Job = internal.Job

// NewJob derives height = floor(width / aspect) and assigns a fresh ID.
func NewJob(width, samples int, aspect float64) (Job, error) {
	return internal.NewJob(width, samples, aspect)
}

// Event is one controller input
type Event = internal.Event

// EventKind identifies an Event
type EventKind = internal.EventKind

const (
	EventJobStart = internal.EventJobStart
	EventData     = internal.EventData
	EventEnd      = internal.EventEnd
	EventClosed   = internal.EventClosed
)

// JobStart resets the controller for job.
func JobStart(job Job) Event { return internal.JobStart(job) }

// Data carries one raw producer frame.
func Data(payload []byte, binary bool) Event { return internal.Data(payload, binary) }

// End marks the graceful end of the stream.
func End() Event { return internal.End() }

// Closed marks the connection going away, with an optional cause.
func Closed(err error) Event { return internal.Closed(err) }

// Options configures a Controller
type Options = internal.Options

// Stats is a point-in-time view of a Controller
type Stats = internal.Stats

const (
	DefaultPaintFPS    = internal.DefaultPaintFPS
	DefaultEventBuffer = internal.DefaultEventBuffer
)

// Public API errors
var (
	ErrAlreadyRunning = internal.ErrAlreadyRunning
	ErrInvalidOptions = internal.ErrInvalidOptions
	ErrInvalidJob     = internal.ErrInvalidJob
)
