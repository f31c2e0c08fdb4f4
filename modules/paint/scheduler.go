package paint

import (
	"log/slog"

	"github.com/e7canasta/scanview/modules/ingest"
)

// DefaultBatchSize is the number of scanlines composited per tick.
// Small and constant so each tick's work stays bounded whatever the burst size.
const DefaultBatchSize = 8

// SchedulerStats is a snapshot of scheduler counters.
type SchedulerStats struct {
	// Ticks counts Tick calls.
	Ticks uint64

	// Presented counts successful presentations.
	Presented uint64

	// PresentErrors counts presenter failures (non-fatal).
	PresentErrors uint64

	// Composited counts scanlines taken from the queue and handed to the compositor.
	Composited uint64
}

// SchedulerOptions configures a Scheduler.
type SchedulerOptions struct {
	// BatchSize caps scanlines composited per tick (default DefaultBatchSize).
	BatchSize int

	// Presenter receives the raster once per tick. Nil discards frames.
	Presenter Presenter

	// StreamEnded reports whether the producer has finished (end, close or
	// error). Nil means the stream never ends.
	StreamEnded func() bool

	// Logger for presenter failures. Nil uses slog.Default().
	Logger *slog.Logger
}

// Scheduler runs one paint tick at a time. It is driven by a cooperative
// loop: each Tick runs to completion, and the caller schedules the next tick
// only while Tick returns true.
//
// State machine over (queueNonEmpty, streamEnded):
//
//	queueNonEmpty  streamEnded  → composite?  continue?
//	     yes           no             yes        yes
//	     yes           yes            yes        yes   (draining)
//	     no            no             no         yes   (waiting for rows)
//	     no            yes            no         no    (settled)
type Scheduler struct {
	queue       *ingest.Queue
	compositor  *Compositor
	presenter   Presenter
	streamEnded func() bool
	batchSize   int
	logger      *slog.Logger

	stats SchedulerStats
}

// NewScheduler returns a scheduler draining queue into compositor.
func NewScheduler(queue *ingest.Queue, compositor *Compositor, opts SchedulerOptions) *Scheduler {
	s := &Scheduler{
		queue:       queue,
		compositor:  compositor,
		presenter:   opts.Presenter,
		streamEnded: opts.StreamEnded,
		batchSize:   opts.BatchSize,
		logger:      opts.Logger,
	}
	if s.presenter == nil {
		s.presenter = nopPresenter{}
	}
	if s.streamEnded == nil {
		s.streamEnded = func() bool { return false }
	}
	if s.batchSize <= 0 {
		s.batchSize = DefaultBatchSize
	}
	if s.logger == nil {
		s.logger = slog.Default()
	}
	return s
}

// Tick composites at most one batch, presents the raster unconditionally and
// reports whether another tick should be scheduled.
//
// Presenting on idle ticks is harmless: without an intervening composite the
// raster is byte-identical, so the displayed image never regresses.
// Returns false only once the stream has ended and the queue is drained.
func (s *Scheduler) Tick() bool {
	s.stats.Ticks++

	if !s.queue.IsEmpty() {
		batch := s.queue.TakeBatch(s.batchSize)
		s.compositor.CompositeBatch(batch)
		s.stats.Composited += uint64(len(batch))
	}

	s.Present()

	return !s.streamEnded() || !s.queue.IsEmpty()
}

// Present hands the current raster to the presenter without compositing.
// Presenter errors are counted and logged, never propagated.
func (s *Scheduler) Present() {
	if err := s.presenter.Present(s.compositor.Buffer().Snapshot()); err != nil {
		s.stats.PresentErrors++
		s.logger.Warn("paint: presentation failed", "error", err)
		return
	}
	s.stats.Presented++
}

// BatchSize returns the per-tick composite cap.
func (s *Scheduler) BatchSize() int {
	return s.batchSize
}

// Stats returns the current counters.
func (s *Scheduler) Stats() SchedulerStats {
	return s.stats
}
