package session

import (
	"context"
	"errors"
	"image"
	"image/color"
	"io"
	"log/slog"
	"math"
	"testing"
	"time"

	"github.com/e7canasta/scanview/modules/progress"
	"github.com/e7canasta/scanview/modules/scanline"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var quiet = slog.New(slog.NewTextHandler(io.Discard, nil))

// surface records presented frames.
type surface struct {
	frames []*image.RGBA
}

func (s *surface) Present(img *image.RGBA) error {
	cp := image.NewRGBA(img.Rect)
	copy(cp.Pix, img.Pix)
	s.frames = append(s.frames, cp)
	return nil
}

func (s *surface) last() *image.RGBA {
	return s.frames[len(s.frames)-1]
}

type settledJob struct {
	job Job
	img *image.RGBA
}

func newTestController(t *testing.T, opts Options) (Controller, *surface, *[]settledJob) {
	t.Helper()
	surf := &surface{}
	var settled []settledJob
	opts.Presenter = surf
	opts.Logger = quiet
	opts.OnSettled = func(job Job, img *image.RGBA) {
		settled = append(settled, settledJob{job: job, img: img})
	}
	c, err := New(opts)
	require.NoError(t, err)
	return c, surf, &settled
}

func mustJob(t *testing.T, width int, aspect float64) Job {
	t.Helper()
	job, err := NewJob(width, 10, aspect)
	require.NoError(t, err)
	return job
}

func row(t *testing.T, r int, pixels ...uint8) Event {
	t.Helper()
	payload, err := scanline.JSONCodec{}.Encode(scanline.Scanline{Row: r, Pixels: pixels})
	require.NoError(t, err)
	return Data(payload, false)
}

func solidRow(t *testing.T, r, width int, v uint8) Event {
	t.Helper()
	pixels := make([]uint8, width*3)
	for i := range pixels {
		pixels[i] = v
	}
	return row(t, r, pixels...)
}

// tickUntilSettled ticks until the controller stops scheduling and returns
// the number of ticks run.
func tickUntilSettled(t *testing.T, c Controller) int {
	t.Helper()
	for ticks := 1; ticks <= 1000; ticks++ {
		if !c.Tick() {
			return ticks
		}
	}
	t.Fatal("controller never settled")
	return 0
}

// TestEndToEnd_FourByTwo validates the reference scenario.
//
// Scenario:
//  1. Job width=4, height=2
//  2. Row 0 = red, green, blue, white; row 1 = all zero; then "end"
//  3. Assert: settled image has (0,0)=(255,0,0,255), (3,0)=(255,255,255,255),
//     every pixel of row 1 = (0,0,0,255)
func TestEndToEnd_FourByTwo(t *testing.T) {
	c, surf, settled := newTestController(t, Options{})

	job := mustJob(t, 4, 2.0)
	require.Equal(t, 2, job.Height)

	c.Handle(JobStart(job))
	c.Handle(row(t, 0, 255, 0, 0, 0, 255, 0, 0, 0, 255, 255, 255, 255))
	c.Handle(row(t, 1, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0))
	c.Handle(Data([]byte("end"), false))

	assert.Equal(t, Draining, c.State())
	tickUntilSettled(t, c)
	assert.Equal(t, Settled, c.State())

	require.Len(t, *settled, 1)
	img := (*settled)[0].img
	assert.Equal(t, job.ID, (*settled)[0].job.ID)
	assert.Equal(t, color.RGBA{255, 0, 0, 255}, img.RGBAAt(0, 0))
	assert.Equal(t, color.RGBA{0, 255, 0, 255}, img.RGBAAt(1, 0))
	assert.Equal(t, color.RGBA{0, 0, 255, 255}, img.RGBAAt(2, 0))
	assert.Equal(t, color.RGBA{255, 255, 255, 255}, img.RGBAAt(3, 0))
	for x := 0; x < 4; x++ {
		assert.Equal(t, color.RGBA{0, 0, 0, 255}, img.RGBAAt(x, 1))
	}

	// The last presented frame matches the settled image
	assert.Equal(t, img.Pix, surf.last().Pix)

	stats := c.Stats()
	assert.Equal(t, uint64(2), stats.Received)
	assert.Equal(t, uint64(2), stats.Written)
	assert.Equal(t, 2, stats.RowsPainted)
	assert.Equal(t, uint64(0), stats.Dropped())
	assert.True(t, stats.StreamEnded)

	t.Logf("✅ 4x2 job settled after %d ticks", stats.Ticks)
}

// TestResetOnRestart validates a new job shows a blank raster of its own size
// before any of its scanlines arrive.
func TestResetOnRestart(t *testing.T) {
	c, surf, settled := newTestController(t, Options{})

	jobA := mustJob(t, 2, 1.0)
	c.Handle(JobStart(jobA))
	c.Handle(solidRow(t, 0, 2, 200))
	c.Handle(solidRow(t, 1, 2, 200))
	c.Handle(End())
	tickUntilSettled(t, c)
	require.Len(t, *settled, 1)
	assert.Equal(t, color.RGBA{200, 200, 200, 255}, (*settled)[0].img.RGBAAt(1, 1))

	jobB := mustJob(t, 3, 1.0)
	framesBefore := len(surf.frames)
	c.Handle(JobStart(jobB))

	require.Len(t, surf.frames, framesBefore+1, "job start presents immediately")
	blank := surf.last()
	assert.Equal(t, image.Rect(0, 0, 3, 3), blank.Rect)
	for _, v := range blank.Pix {
		require.Equal(t, uint8(0), v)
	}

	assert.Equal(t, Streaming, c.State())
	stats := c.Stats()
	assert.Equal(t, jobB.ID, stats.JobID)
	assert.Equal(t, uint64(2), stats.Jobs)
	assert.Equal(t, uint64(0), stats.Received)
	assert.Equal(t, 0, stats.RowsPainted)
	assert.False(t, stats.StreamEnded)

	// The settled image of job A is a copy and survives the reset
	assert.Equal(t, color.RGBA{200, 200, 200, 255}, (*settled)[0].img.RGBAAt(0, 0))
}

// TestRestartMidStream validates a job start discards an unfinished job.
func TestRestartMidStream(t *testing.T) {
	c, _, settled := newTestController(t, Options{})

	c.Handle(JobStart(mustJob(t, 2, 1.0)))
	c.Handle(solidRow(t, 0, 2, 9))
	assert.Equal(t, 1, c.Stats().QueueDepth)

	jobB := mustJob(t, 2, 2.0)
	c.Handle(JobStart(jobB))
	assert.Equal(t, 0, c.Stats().QueueDepth)

	c.Handle(solidRow(t, 0, 2, 50))
	c.Handle(End())
	tickUntilSettled(t, c)

	require.Len(t, *settled, 1, "abandoned job never settles")
	assert.Equal(t, jobB.ID, (*settled)[0].job.ID)
	assert.Equal(t, color.RGBA{50, 50, 50, 255}, (*settled)[0].img.RGBAAt(0, 0))
}

// TestStaleEventsFromPreviousJobIgnored validates that a connection closing
// after the next job started cannot end that job.
//
// Scenario:
//  1. Job A streams one row, ends and settles
//  2. Job B starts; A's connection then reports Closed
//  3. B's rows 0 and 1 arrive, then B ends
//  4. Assert: B settles with both rows painted, nothing late, no early termination
func TestStaleEventsFromPreviousJobIgnored(t *testing.T) {
	c, _, settled := newTestController(t, Options{})

	jobA := mustJob(t, 2, 1.0)
	c.Handle(JobStart(jobA))
	c.Handle(solidRow(t, 0, 2, 10).ForJob(jobA.ID))
	c.Handle(End().ForJob(jobA.ID))
	tickUntilSettled(t, c)

	jobB := mustJob(t, 2, 1.0)
	c.Handle(JobStart(jobB))
	c.Handle(Closed(nil).ForJob(jobA.ID))
	c.Handle(solidRow(t, 0, 2, 77).ForJob(jobA.ID))
	assert.Equal(t, Streaming, c.State())

	c.Handle(solidRow(t, 0, 2, 80).ForJob(jobB.ID))
	c.Handle(solidRow(t, 1, 2, 90).ForJob(jobB.ID))
	c.Handle(End().ForJob(jobB.ID))
	tickUntilSettled(t, c)

	require.Len(t, *settled, 2)
	img := (*settled)[1].img
	assert.Equal(t, jobB.ID, (*settled)[1].job.ID)
	assert.Equal(t, color.RGBA{80, 80, 80, 255}, img.RGBAAt(0, 0))
	assert.Equal(t, color.RGBA{90, 90, 90, 255}, img.RGBAAt(1, 1))

	stats := c.Stats()
	assert.Equal(t, uint64(0), stats.Late)
	assert.Equal(t, uint64(0), stats.TerminatedEarly)
	assert.Equal(t, uint64(2), stats.Stale)
	assert.Equal(t, 2, stats.RowsPainted)
	t.Logf("✅ job B settled with %d rows, %d stale events ignored", stats.RowsPainted, stats.Stale)
}

// TestTaggedEventsBeforeAnyJob validates tagged stream events are ignored
// while no job has started.
func TestTaggedEventsBeforeAnyJob(t *testing.T) {
	c, _, _ := newTestController(t, Options{})

	c.Handle(Closed(nil).ForJob("gone"))
	c.Handle(solidRow(t, 0, 2, 1).ForJob("gone"))

	stats := c.Stats()
	assert.Equal(t, Idle, c.State())
	assert.Equal(t, uint64(2), stats.Stale)
	assert.Equal(t, uint64(0), stats.Dropped())
}

// TestDrainBeforeSettle validates the job keeps painting after end until
// the queue is empty.
//
// Scenario:
//  1. 20 rows queued, batch size 8, then end
//  2. Assert: Draining after ticks 1 and 2, Settled after tick 3
func TestDrainBeforeSettle(t *testing.T) {
	c, _, settled := newTestController(t, Options{BatchSize: 8})

	c.Handle(JobStart(mustJob(t, 20, 1.0)))
	for r := 0; r < 20; r++ {
		c.Handle(solidRow(t, r, 20, uint8(r)))
	}
	c.Handle(End())
	assert.Equal(t, Draining, c.State())

	assert.True(t, c.Tick())
	assert.Equal(t, Draining, c.State())
	assert.Equal(t, 12, c.Stats().QueueDepth)

	assert.True(t, c.Tick())
	assert.Equal(t, Draining, c.State())

	assert.False(t, c.Tick())
	assert.Equal(t, Settled, c.State())
	assert.Equal(t, 20, c.Stats().RowsPainted)
	assert.Len(t, *settled, 1)

	// Further ticks are no-ops and never fire the hook again
	assert.False(t, c.Tick())
	assert.Len(t, *settled, 1)
}

func TestEndWithEmptyQueueSettlesOnNextTick(t *testing.T) {
	c, surf, settled := newTestController(t, Options{})

	c.Handle(JobStart(mustJob(t, 1, 1.0)))
	c.Handle(End())
	assert.Equal(t, Streaming, c.State())

	presented := len(surf.frames)
	assert.False(t, c.Tick())
	assert.Equal(t, Settled, c.State())
	assert.Len(t, surf.frames, presented+1, "settling tick still presents")
	assert.Len(t, *settled, 1)
}

// TestClosedBeforeEnd validates an abrupt disconnect still paints everything
// received and is counted as terminated early.
func TestClosedBeforeEnd(t *testing.T) {
	c, _, settled := newTestController(t, Options{})

	c.Handle(JobStart(mustJob(t, 2, 0.5)))
	c.Handle(solidRow(t, 0, 2, 10))
	c.Handle(solidRow(t, 3, 2, 30))
	c.Handle(Closed(errors.New("connection reset")))

	assert.Equal(t, Draining, c.State())
	tickUntilSettled(t, c)

	require.Len(t, *settled, 1)
	img := (*settled)[0].img
	assert.Equal(t, color.RGBA{10, 10, 10, 255}, img.RGBAAt(0, 0))
	assert.Equal(t, color.RGBA{30, 30, 30, 255}, img.RGBAAt(1, 3))
	assert.Equal(t, color.RGBA{}, img.RGBAAt(0, 1), "missing rows stay zero")

	stats := c.Stats()
	assert.Equal(t, uint64(1), stats.TerminatedEarly)
	assert.Equal(t, 2, stats.RowsPainted)

	// A second close, or a close after a graceful end, is not early
	c.Handle(Closed(nil))
	c.Handle(JobStart(mustJob(t, 1, 1.0)))
	c.Handle(End())
	c.Handle(Closed(nil))
	assert.Equal(t, uint64(1), c.Stats().TerminatedEarly)
}

// TestMalformedAndOutOfRangeAreNonFatal validates bad frames are counted and
// the stream keeps flowing.
func TestMalformedAndOutOfRangeAreNonFatal(t *testing.T) {
	c, _, settled := newTestController(t, Options{})

	c.Handle(JobStart(mustJob(t, 2, 1.0)))
	c.Handle(Data([]byte(`not json`), false))
	c.Handle(Data([]byte(`{"row":0,"pixels":[1,2]}`), false))
	c.Handle(Data([]byte{0xc1}, true))
	c.Handle(solidRow(t, 0, 3, 1)) // wrong width: rejected at composite time
	c.Handle(solidRow(t, 2, 2, 1)) // one past the end
	c.Handle(solidRow(t, 1, 2, 77))
	c.Handle(End())
	tickUntilSettled(t, c)

	stats := c.Stats()
	assert.Equal(t, uint64(3), stats.Received)
	assert.Equal(t, uint64(1), stats.Written)
	assert.Equal(t, uint64(4), stats.Malformed)
	assert.Equal(t, uint64(1), stats.OutOfRange)
	assert.Equal(t, uint64(5), stats.Dropped())

	require.Len(t, *settled, 1)
	assert.Equal(t, color.RGBA{77, 77, 77, 255}, (*settled)[0].img.RGBAAt(1, 1))
}

func TestBinaryFramesUseMsgpack(t *testing.T) {
	c, _, settled := newTestController(t, Options{})

	payload, err := scanline.MsgpackCodec{}.Encode(scanline.Scanline{Row: 0, Pixels: []uint8{5, 6, 7}})
	require.NoError(t, err)

	c.Handle(JobStart(mustJob(t, 1, 1.0)))
	c.Handle(Data(payload, true))
	c.Handle(End())
	tickUntilSettled(t, c)

	require.Len(t, *settled, 1)
	assert.Equal(t, color.RGBA{5, 6, 7, 255}, (*settled)[0].img.RGBAAt(0, 0))
}

func TestDataWhileIdle(t *testing.T) {
	c, surf, _ := newTestController(t, Options{})

	c.Handle(solidRow(t, 0, 2, 1))
	c.Handle(Data([]byte("{"), false))
	c.Handle(End())
	c.Handle(Closed(nil))

	assert.Equal(t, Idle, c.State())
	assert.False(t, c.Tick())
	assert.Empty(t, surf.frames)

	stats := c.Stats()
	assert.Equal(t, uint64(1), stats.OutOfRange)
	assert.Equal(t, uint64(1), stats.Malformed)
	assert.Equal(t, uint64(0), stats.TerminatedEarly)
	assert.Equal(t, uint64(0), stats.Jobs)
}

func TestDataAfterEndIsLate(t *testing.T) {
	c, _, _ := newTestController(t, Options{})

	c.Handle(JobStart(mustJob(t, 1, 1.0)))
	c.Handle(End())
	c.Handle(solidRow(t, 0, 1, 1))

	stats := c.Stats()
	assert.Equal(t, uint64(1), stats.Late)
	assert.Equal(t, uint64(0), stats.Received)
}

// TestRun_PostedEventsSettle validates the goroutine-driven loop.
//
// Scenario:
//  1. Run at 500 fps with a progress bus
//  2. Post job start, 3 rows, end from another goroutine
//  3. Assert: OnSettled fires, the latest progress reports settled and complete
func TestRun_PostedEventsSettle(t *testing.T) {
	bus := progress.New()
	defer bus.Close()
	rec, err := bus.SubscribeLatest("test")
	require.NoError(t, err)

	done := make(chan *image.RGBA, 1)
	c, err := New(Options{
		PaintFPS: 500,
		Progress: bus,
		Logger:   quiet,
		OnSettled: func(job Job, img *image.RGBA) {
			done <- img
		},
	})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	runErr := make(chan error, 1)
	go func() { runErr <- c.Run(ctx) }()

	job := mustJob(t, 3, 1.0)
	require.NoError(t, c.Post(ctx, JobStart(job)))
	for r := 2; r >= 0; r-- {
		require.NoError(t, c.Post(ctx, solidRow(t, r, 3, uint8(100+r))))
	}
	require.NoError(t, c.Post(ctx, End()))

	select {
	case img := <-done:
		assert.Equal(t, color.RGBA{102, 102, 102, 255}, img.RGBAAt(2, 2))
	case <-time.After(2 * time.Second):
		t.Fatal("job did not settle")
	}

	require.Eventually(t, func() bool {
		p, ok := rec.TryReceive()
		return ok && p.State == "settled"
	}, time.Second, 5*time.Millisecond)

	p, _ := rec.TryReceive()
	assert.Equal(t, job.ID, p.JobID)
	assert.Equal(t, 1.0, progress.CompletionRatio(p))
	assert.Equal(t, Settled, c.State())

	cancel()
	assert.ErrorIs(t, <-runErr, context.Canceled)
	t.Logf("✅ posted job settled, progress seq=%d", p.Seq)
}

func TestRun_AlreadyRunning(t *testing.T) {
	c, err := New(Options{Logger: quiet})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	errs := make(chan error, 2)
	go func() { errs <- c.Run(ctx) }()
	go func() { errs <- c.Run(ctx) }()

	// The loser returns immediately; the winner only on cancel
	assert.ErrorIs(t, <-errs, ErrAlreadyRunning)
	cancel()
	assert.ErrorIs(t, <-errs, context.Canceled)
}

func TestPost_RespectsContext(t *testing.T) {
	c, err := New(Options{EventBuffer: 1, Logger: quiet})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	require.NoError(t, c.Post(ctx, End()))
	cancel()
	assert.ErrorIs(t, c.Post(ctx, End()), context.Canceled)
}

func TestNew_InvalidOptions(t *testing.T) {
	for _, opts := range []Options{{PaintFPS: -1}, {PaintFPS: 5000}, {BatchSize: -2}} {
		c, err := New(opts)
		assert.ErrorIs(t, err, ErrInvalidOptions)
		assert.Nil(t, c)
	}
}

func TestNewJob(t *testing.T) {
	tests := []struct {
		name    string
		width   int
		samples int
		aspect  float64
		height  int
		wantErr bool
	}{
		{"square", 30, 100, 1.0, 30, false},
		{"wide", 40, 1, 16.0 / 9.0, 22, false},
		{"tall", 10, 1, 0.5, 20, false},
		{"zero width", 0, 1, 1.0, 0, true},
		{"zero samples", 10, 0, 1.0, 0, true},
		{"zero aspect", 10, 1, 0, 0, true},
		{"no rows", 1, 1, 2.0, 0, true},
		{"too many pixels", 1 << 20, 1, 1.0, 0, true},
		{"tiny aspect", 100000, 1, 1e-9, 0, true},
		{"max width", math.MaxInt, 1, 1.0, 0, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			job, err := NewJob(tt.width, tt.samples, tt.aspect)
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrInvalidJob)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.height, job.Height)
			assert.NotEmpty(t, job.ID)
		})
	}

	a, _ := NewJob(1, 1, 1)
	b, _ := NewJob(1, 1, 1)
	assert.NotEqual(t, a.ID, b.ID)
}

func TestStateString(t *testing.T) {
	assert.Equal(t, "idle", Idle.String())
	assert.Equal(t, "streaming", Streaming.String())
	assert.Equal(t, "draining", Draining.String())
	assert.Equal(t, "settled", Settled.String())
	assert.Equal(t, "unknown", State(42).String())
}
