package transport

import "context"

// Sink receives inbound producer frames.
//
// Implementations must guarantee:
//   - Data and End do not block for long (they run on the read goroutine)
//   - Closed may arrive after End; it is delivered exactly once per Run
type Sink interface {
	// Data is called for every frame that is not the end sentinel.
	Data(payload []byte, binary bool)

	// End is called when the producer sends the end sentinel.
	End()

	// Closed is called once when the read loop stops. err is nil for a
	// normal close.
	Closed(err error)
}

// Producer is the contract the viewer needs from a producer connection.
type Producer interface {
	// StartJob sends the job command.
	StartJob(ctx context.Context, settings JobSettings) error

	// Run reads frames into sink until the connection closes or ctx is done.
	Run(ctx context.Context, sink Sink)

	// Close sends a normal close frame and releases the connection.
	// Safe to call multiple times.
	Close() error

	// Stats is safe from any goroutine.
	Stats() ClientStats
}
