package bus

import (
	"errors"
	"time"
)

// Internal errors - mapped to public errors in progress package
var (
	ErrBusClosed          = errors.New("progress: bus is closed")
	ErrSubscriberExists   = errors.New("progress: subscriber already exists")
	ErrSubscriberNotFound = errors.New("progress: subscriber not found")
	ErrNilChannel         = errors.New("progress: nil channel provided")
	ErrReceiverClosed     = errors.New("progress: receiver is closed")
)

// DropPolicy defines how the bus handles updates when a subscriber cannot keep up
type DropPolicy int

const (
	// DropNew drops the incoming update when the subscriber channel is full
	DropNew DropPolicy = iota
	// DropOld replaces the held update with the incoming one (latest only)
	DropOld
)

// String returns the policy name.
func (p DropPolicy) String() string {
	switch p {
	case DropNew:
		return "drop_new"
	case DropOld:
		return "drop_old"
	default:
		return "unknown"
	}
}

// Progress is a snapshot of a render job as seen by the viewer.
type Progress struct {
	JobID       string    `json:"job_id"`
	State       string    `json:"state"`
	Width       int       `json:"width"`
	Height      int       `json:"height"`
	RowsPainted int       `json:"rows_painted"`
	Received    uint64    `json:"received"`
	Dropped     uint64    `json:"dropped"`
	QueueDepth  int       `json:"queue_depth"`
	Seq         uint64    `json:"seq"`
	At          time.Time `json:"at"`
}

// Receiver gives blocking/non-blocking access to the latest update (DropOld)
type Receiver interface {
	// Receive blocks until an update newer than the last one returned is
	// available. ok is false once the receiver is closed.
	Receive() (p Progress, ok bool)

	// TryReceive returns the latest update without blocking.
	TryReceive() (Progress, bool)

	// Close wakes blocked Receive calls and stops delivery.
	Close()
}

// SubscriberStats tracks per-subscriber delivery
type SubscriberStats struct {
	Sent    uint64
	Dropped uint64
}

// BusStats contains global and per-subscriber metrics.
type BusStats struct {
	TotalPublished uint64
	TotalSent      uint64
	TotalDropped   uint64
	Subscribers    map[string]SubscriberStats
}

// Bus distributes progress updates to subscribers
type Bus interface {
	Subscribe(id string, ch chan<- Progress) error
	SubscribeLatest(id string) (Receiver, error)
	Publish(p Progress)
	Unsubscribe(id string) error
	Stats() BusStats
	Close()
}
