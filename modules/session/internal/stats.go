package internal

import "github.com/e7canasta/scanview/modules/ingest"

// Stats is a point-in-time view of the controller.
//
// Per-job counters reset on job start; Jobs, TerminatedEarly and Stale
// accumulate across the controller's life.
type Stats struct {
	State  State
	JobID  string
	Width  int
	Height int

	Jobs            uint64
	TerminatedEarly uint64
	// Stale counts stream events tagged for a job that is no longer current.
	Stale uint64

	// Received counts decoded scanlines enqueued for the current job.
	Received uint64
	// Written counts scanlines the compositor wrote.
	Written uint64
	// Malformed counts decode failures and width mismatches.
	Malformed uint64
	// OutOfRange counts rows outside the raster, including data with no job.
	OutOfRange uint64
	// Late counts data frames that arrived after the stream ended.
	Late uint64

	RowsPainted    int
	StreamEnded    bool
	QueueDepth     int
	QueueHighWater int

	Ticks         uint64
	Presented     uint64
	PresentErrors uint64

	Arrival ingest.ArrivalStats
}

// Dropped sums every scanline that never reached the raster.
func (s Stats) Dropped() uint64 {
	return s.Malformed + s.OutOfRange + s.Late
}
