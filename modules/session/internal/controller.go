// Package internal implements the stream lifecycle controller.
//
// This package is INTERNAL - clients MUST use the public API in the parent package.
package internal

import (
	"context"
	"errors"
	"fmt"
	"image"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/e7canasta/scanview/modules/framebuffer"
	"github.com/e7canasta/scanview/modules/ingest"
	"github.com/e7canasta/scanview/modules/paint"
	"github.com/e7canasta/scanview/modules/progress"
	"github.com/e7canasta/scanview/modules/scanline"
)

const (
	// DefaultPaintFPS is the paint tick rate.
	DefaultPaintFPS = 60

	// DefaultEventBuffer is the capacity of the inbound event channel.
	DefaultEventBuffer = 1024
)

var (
	ErrAlreadyRunning = errors.New("session: controller already running")
	ErrInvalidOptions = errors.New("session: invalid options")
)

// Options configures a Controller.
type Options struct {
	// PaintFPS is the tick rate of Run (1-1000, default 60).
	PaintFPS int

	// BatchSize caps scanlines composited per tick (default paint.DefaultBatchSize).
	BatchSize int

	// Presenter receives the raster every tick. Nil discards frames.
	Presenter paint.Presenter

	// Progress, if set, receives a snapshot after every tick and state change.
	Progress progress.Bus

	// OnSettled fires once per job with a copy of the final raster. It runs
	// on the controller goroutine and must not block.
	OnSettled func(job Job, img *image.RGBA)

	// EventBuffer is the capacity of the Post channel (default 1024).
	EventBuffer int

	// Logger for lifecycle events. Nil uses slog.Default().
	Logger *slog.Logger
}

// Controller owns one viewer session: the current job, its frame buffer,
// ingest queue and paint scheduler.
//
// Everything except State, Stats and Post runs on a single goroutine
// (Run's, or the caller's when driving Handle/Tick directly). Ticks and
// event handling never overlap, so the buffer is never observed mid-write.
type Controller struct {
	opts     Options
	logger   *slog.Logger
	interval time.Duration
	events   chan Event
	running  atomic.Bool

	// Owned by the loop goroutine
	job         Job
	hasJob      bool
	fb          *framebuffer.Buffer
	queue       *ingest.Queue
	compositor  *paint.Compositor
	scheduler   *paint.Scheduler
	arrivals    *ingest.ArrivalRecorder
	streamEnded bool
	endSeen     bool
	ticking     bool
	settled     bool
	seq         uint64

	// Per-job and cumulative counters (loop goroutine only)
	received        uint64
	decodeMalformed uint64
	idleDropped     uint64
	idleMalformed   uint64
	late            uint64
	jobs            uint64
	terminatedEarly uint64
	stale           uint64

	// Published for other goroutines
	state    atomic.Int32
	statsMu  sync.Mutex
	snapshot Stats
}

// NewController validates opts and returns an idle controller.
func NewController(opts Options) (*Controller, error) {
	if opts.PaintFPS == 0 {
		opts.PaintFPS = DefaultPaintFPS
	}
	if opts.PaintFPS < 1 || opts.PaintFPS > 1000 {
		return nil, fmt.Errorf("%w: paint fps must be 1-1000, got %d", ErrInvalidOptions, opts.PaintFPS)
	}
	if opts.BatchSize < 0 {
		return nil, fmt.Errorf("%w: batch size must not be negative, got %d", ErrInvalidOptions, opts.BatchSize)
	}
	if opts.EventBuffer <= 0 {
		opts.EventBuffer = DefaultEventBuffer
	}

	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	c := &Controller{
		opts:     opts,
		logger:   logger,
		interval: time.Second / time.Duration(opts.PaintFPS),
		events:   make(chan Event, opts.EventBuffer),
		arrivals: ingest.NewArrivalRecorder(ingest.DefaultArrivalWindow),
	}
	c.allocate(0, 0)
	c.publishStats()
	return c, nil
}

// Run processes posted events and paint ticks until ctx is done.
//
// The ticker runs only while a job is painting: it starts on job start and
// stops when the job settles.
func (c *Controller) Run(ctx context.Context) error {
	if !c.running.CompareAndSwap(false, true) {
		return ErrAlreadyRunning
	}
	defer c.running.Store(false)

	ticker := time.NewTicker(c.interval)
	defer ticker.Stop()
	if !c.ticking {
		ticker.Stop()
	}

	c.logger.Info("session: controller started", "paint_fps", c.opts.PaintFPS, "batch_size", c.scheduler.BatchSize())

	for {
		select {
		case <-ctx.Done():
			c.logger.Info("session: controller stopped", "state", c.State().String())
			return ctx.Err()

		case ev := <-c.events:
			wasTicking := c.ticking
			c.Handle(ev)
			if c.ticking && !wasTicking {
				ticker.Reset(c.interval)
			}

		case <-ticker.C:
			if !c.Tick() {
				ticker.Stop()
			}
		}
	}
}

// Post queues ev for Run. Safe from any goroutine; blocks only while the
// event buffer is full.
func (c *Controller) Post(ctx context.Context, ev Event) error {
	select {
	case c.events <- ev:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Handle applies one event synchronously.
func (c *Controller) Handle(ev Event) {
	if c.isStale(ev) {
		c.stale++
		c.logger.Debug("session: stale event ignored",
			"kind", ev.Kind.String(),
			"event_job_id", ev.JobID,
			"job_id", c.job.ID)
		c.publishStats()
		return
	}

	switch ev.Kind {
	case EventJobStart:
		c.startJob(ev.Job)
	case EventData:
		c.handleData(ev.Payload, ev.Binary)
	case EventEnd:
		c.handleEnd()
	case EventClosed:
		c.handleClosed(ev.Err)
	default:
		c.logger.Warn("session: unknown event ignored", "kind", ev.Kind.String())
	}
	c.publishStats()
}

// isStale reports a stream event tagged for a job other than the current one.
func (c *Controller) isStale(ev Event) bool {
	if ev.Kind == EventJobStart || ev.JobID == "" {
		return false
	}
	return !c.hasJob || ev.JobID != c.job.ID
}

// Tick runs one paint tick and reports whether another should follow.
// Returns false without painting when no job is painting.
func (c *Controller) Tick() bool {
	if !c.ticking {
		return false
	}

	more := c.scheduler.Tick()
	if !more {
		c.settle()
	}

	c.publishStats()
	c.publishProgress()
	return more
}

// State is safe from any goroutine.
func (c *Controller) State() State {
	return State(c.state.Load())
}

// Stats is safe from any goroutine.
func (c *Controller) Stats() Stats {
	c.statsMu.Lock()
	defer c.statsMu.Unlock()
	return c.snapshot
}

// Job returns the current job and whether one has started.
// Loop goroutine only.
func (c *Controller) Job() (Job, bool) {
	return c.job, c.hasJob
}

// startJob unconditionally discards the previous job and shows a blank
// raster sized to the new one.
func (c *Controller) startJob(job Job) {
	if c.hasJob && !c.settled {
		c.logger.Info("session: job abandoned",
			"job_id", c.job.ID,
			"state", c.State().String(),
			"queued", c.queue.Len())
	}

	c.job = job
	c.hasJob = true
	c.jobs++
	c.allocate(job.Width, job.Height)

	c.received = 0
	c.decodeMalformed = 0
	c.late = 0
	c.streamEnded = false
	c.endSeen = false
	c.settled = false
	c.ticking = true
	c.setState(Streaming)

	c.logger.Info("session: job started",
		"job_id", job.ID,
		"width", job.Width,
		"height", job.Height,
		"samples", job.Samples)

	c.scheduler.Present()
	c.publishProgress()
}

// allocate builds a fresh buffer, queue and scheduler for one job.
func (c *Controller) allocate(width, height int) {
	c.fb = framebuffer.New(width, height)
	c.queue = ingest.NewQueue()
	c.compositor = paint.NewCompositor(c.fb, c.logger)
	c.scheduler = paint.NewScheduler(c.queue, c.compositor, paint.SchedulerOptions{
		BatchSize:   c.opts.BatchSize,
		Presenter:   c.opts.Presenter,
		StreamEnded: func() bool { return c.streamEnded },
		Logger:      c.logger,
	})
	c.arrivals.Reset()
}

func (c *Controller) handleData(payload []byte, binary bool) {
	if !binary && scanline.IsEndSentinel(payload) {
		c.handleEnd()
		return
	}

	s, err := scanline.CodecFor(binary).Decode(payload)

	if !c.hasJob {
		// No dimensions yet: nothing can be placed
		if err != nil {
			c.idleMalformed++
		} else {
			c.idleDropped++
		}
		c.logger.Warn("session: data before job start dropped", "bytes", len(payload), "error", err)
		return
	}

	if c.streamEnded {
		c.late++
		c.logger.Warn("session: data after stream end dropped", "job_id", c.job.ID, "bytes", len(payload))
		return
	}

	if err != nil {
		c.decodeMalformed++
		c.logger.Warn("session: scanline dropped",
			"kind", "malformed_scanline",
			"job_id", c.job.ID,
			"binary", binary,
			"error", err)
		return
	}

	c.queue.Enqueue(s)
	c.received++
	c.arrivals.Record(time.Now())
	c.logger.Debug("session: scanline queued", "row", s.Row, "depth", c.queue.Len())
}

func (c *Controller) handleEnd() {
	if !c.hasJob {
		c.logger.Debug("session: end with no job ignored")
		return
	}
	c.endSeen = true
	c.markEnded("end")
}

func (c *Controller) handleClosed(err error) {
	if !c.hasJob {
		c.logger.Debug("session: close with no job ignored", "error", err)
		return
	}
	if c.endSeen || c.streamEnded {
		c.logger.Debug("session: stream closed", "job_id", c.job.ID, "error", err)
		return
	}

	c.terminatedEarly++
	c.logger.Warn("session: stream terminated early",
		"job_id", c.job.ID,
		"rows_received", c.received,
		"height", c.job.Height,
		"error", err)
	c.markEnded("closed")
}

func (c *Controller) markEnded(reason string) {
	if c.streamEnded {
		return
	}
	c.streamEnded = true

	if !c.queue.IsEmpty() {
		c.setState(Draining)
	}
	c.logger.Info("session: stream ended",
		"job_id", c.job.ID,
		"reason", reason,
		"queued", c.queue.Len())
	c.publishProgress()
}

func (c *Controller) settle() {
	c.ticking = false
	if c.settled {
		return
	}
	c.settled = true
	c.setState(Settled)

	cs := c.compositor.Stats()
	c.logger.Info("session: job settled",
		"job_id", c.job.ID,
		"rows_painted", c.fb.RowsWritten(),
		"height", c.job.Height,
		"written", cs.Written,
		"dropped", cs.Malformed+cs.OutOfRange+c.decodeMalformed+c.late,
		"high_water", c.queue.Stats().HighWater)

	if c.opts.OnSettled != nil {
		c.opts.OnSettled(c.job, c.fb.Clone())
	}
}

func (c *Controller) setState(s State) {
	c.state.Store(int32(s))
}

func (c *Controller) publishStats() {
	cs := c.compositor.Stats()
	ss := c.scheduler.Stats()
	qs := c.queue.Stats()

	st := Stats{
		State:           c.State(),
		Jobs:            c.jobs,
		TerminatedEarly: c.terminatedEarly,
		Stale:           c.stale,
		Received:        c.received,
		Written:         cs.Written,
		Malformed:       c.decodeMalformed + cs.Malformed + c.idleMalformed,
		OutOfRange:      cs.OutOfRange + c.idleDropped,
		Late:            c.late,
		RowsPainted:     c.fb.RowsWritten(),
		StreamEnded:     c.streamEnded,
		QueueDepth:      qs.Depth,
		QueueHighWater:  qs.HighWater,
		Ticks:           ss.Ticks,
		Presented:       ss.Presented,
		PresentErrors:   ss.PresentErrors,
		Arrival:         c.arrivals.Stats(time.Now()),
	}
	if c.hasJob {
		st.JobID = c.job.ID
		st.Width = c.job.Width
		st.Height = c.job.Height
	}

	c.statsMu.Lock()
	c.snapshot = st
	c.statsMu.Unlock()
}

func (c *Controller) publishProgress() {
	if c.opts.Progress == nil || !c.hasJob {
		return
	}
	c.seq++
	cs := c.compositor.Stats()
	c.opts.Progress.Publish(progress.Progress{
		JobID:       c.job.ID,
		State:       c.State().String(),
		Width:       c.job.Width,
		Height:      c.job.Height,
		RowsPainted: c.fb.RowsWritten(),
		Received:    c.received,
		Dropped:     c.decodeMalformed + cs.Malformed + cs.OutOfRange + c.late,
		QueueDepth:  c.queue.Len(),
		Seq:         c.seq,
		At:          time.Now(),
	})
}
