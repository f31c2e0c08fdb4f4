package ingest

import "github.com/e7canasta/scanview/modules/scanline"

// compactThreshold is the number of consumed slots tolerated at the head of
// the backing slice before the live tail is moved to the front.
const compactThreshold = 256

// QueueStats is a snapshot of queue counters.
type QueueStats struct {
	// Enqueued counts scanlines accepted since the last Reset.
	Enqueued uint64

	// Taken counts scanlines handed to the compositor since the last Reset.
	Taken uint64

	// Depth is the number of scanlines currently waiting.
	Depth int

	// HighWater is the largest Depth observed since the last Reset.
	HighWater int
}

// Queue is an unbounded, insertion-ordered buffer of decoded scanlines.
//
// Invariant: a scanline stays in the queue from Enqueue until a TakeBatch
// returns it. Nothing is dropped.
type Queue struct {
	items []scanline.Scanline
	head  int // index of the oldest live entry

	enqueued  uint64
	taken     uint64
	highWater int
}

// NewQueue returns an empty queue.
func NewQueue() *Queue {
	return &Queue{}
}

// Enqueue appends s. Never fails.
func (q *Queue) Enqueue(s scanline.Scanline) {
	q.items = append(q.items, s)
	q.enqueued++

	if depth := q.Len(); depth > q.highWater {
		q.highWater = depth
	}
}

// TakeBatch removes and returns up to max of the oldest entries.
//
// Returns an empty (nil) slice when the queue is empty or max <= 0.
// Never blocks. The returned slice is owned by the caller.
func (q *Queue) TakeBatch(max int) []scanline.Scanline {
	n := q.Len()
	if n == 0 || max <= 0 {
		return nil
	}
	if max < n {
		n = max
	}

	batch := make([]scanline.Scanline, n)
	copy(batch, q.items[q.head:q.head+n])

	// Release consumed slots so their pixel slices can be collected.
	clear(q.items[q.head : q.head+n])
	q.head += n
	q.taken += uint64(n)

	q.compact()
	return batch
}

// IsEmpty reports whether no scanline is waiting.
func (q *Queue) IsEmpty() bool {
	return q.Len() == 0
}

// Len returns the number of waiting scanlines.
func (q *Queue) Len() int {
	return len(q.items) - q.head
}

// Reset drops every waiting scanline and clears the counters.
// Used when a new job replaces the current one.
func (q *Queue) Reset() {
	q.items = nil
	q.head = 0
	q.enqueued = 0
	q.taken = 0
	q.highWater = 0
}

// Stats returns the current counters.
func (q *Queue) Stats() QueueStats {
	return QueueStats{
		Enqueued:  q.enqueued,
		Taken:     q.taken,
		Depth:     q.Len(),
		HighWater: q.highWater,
	}
}

// compact reclaims the consumed head of the backing slice.
func (q *Queue) compact() {
	if q.head == len(q.items) {
		q.items = q.items[:0]
		q.head = 0
		return
	}
	if q.head < compactThreshold || q.head < len(q.items)/2 {
		return
	}

	live := copy(q.items, q.items[q.head:])
	clear(q.items[live:])
	q.items = q.items[:live]
	q.head = 0
}
