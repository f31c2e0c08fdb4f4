package progress

import "github.com/e7canasta/scanview/modules/progress/internal/bus"

// Public API - Re-export internal types as stable contract

// DropPolicy defines how the bus handles updates a subscriber cannot keep up with
type DropPolicy = bus.DropPolicy

const (
	// DropNew drops incoming updates if the subscriber's buffer is full
	DropNew = bus.DropNew
	// DropOld always accepts new updates, replacing the held one (latest-only)
	DropOld = bus.DropOld
)

// Progress is a snapshot of a render job
type Progress = bus.Progress

// Receiver provides blocking/non-blocking access for DropOld subscribers
type Receiver = bus.Receiver

// SubscriberStats tracks per-subscriber delivery
type SubscriberStats = bus.SubscriberStats

// BusStats contains global and per-subscriber metrics
type BusStats = bus.BusStats

// Bus distributes progress updates to subscribers
type Bus = bus.Bus

// Public API errors
var (
	ErrBusClosed          = bus.ErrBusClosed
	ErrSubscriberExists   = bus.ErrSubscriberExists
	ErrSubscriberNotFound = bus.ErrSubscriberNotFound
	ErrNilChannel         = bus.ErrNilChannel
	ErrReceiverClosed     = bus.ErrReceiverClosed
)
