// Package session is the stream lifecycle controller of the viewer.
//
// Philosophy: "Never discard what arrived."
//
// A Controller owns one viewer session. Each job start builds a fresh frame
// buffer and ingest queue sized to the job; producer frames are decoded and
// queued; a fixed-rate paint tick composites bounded batches and presents
// the raster. End of stream, graceful or not, lets the queue drain before
// the job settles.
//
//	Idle ──JobStart──▶ Streaming ──End/Closed──▶ Draining ──queue empty──▶ Settled
//	                       ▲                                                  │
//	                       └──────────────────── JobStart ────────────────────┘
//
// Usage:
//
//	ctrl, err := session.New(session.Options{Presenter: surface})
//	go ctrl.Run(ctx)
//
//	job, _ := session.NewJob(30, 100, 1.0)
//	ctrl.Post(ctx, session.JobStart(job))
//	client.Run(ctx, session.NewSink(ctx, ctrl, job.ID))
package session

import (
	"context"

	"github.com/e7canasta/scanview/modules/session/internal"
)

// Controller is the public interface of the lifecycle controller.
//
// Lifecycle: New() → Run() in its own goroutine → Post() from producers.
// Handle and Tick drive the same state machine synchronously and must not be
// mixed with a running Run.
type Controller interface {
	// Run processes events and paint ticks until ctx is done.
	// Returns ErrAlreadyRunning if called twice concurrently.
	Run(ctx context.Context) error

	// Post queues an event for Run. Safe from any goroutine.
	Post(ctx context.Context, ev Event) error

	// Handle applies one event synchronously.
	Handle(ev Event)

	// Tick runs one paint tick and reports whether another should follow.
	Tick() bool

	// State is safe from any goroutine.
	State() State

	// Stats is safe from any goroutine.
	Stats() Stats
}

// New validates opts and returns an idle controller.
func New(opts Options) (Controller, error) {
	c, err := internal.NewController(opts)
	if err != nil {
		return nil, err
	}
	return c, nil
}
