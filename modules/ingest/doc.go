// Package ingest holds decoded scanlines between network arrival and paint.
//
// # Philosophy
//
// "Queue everything, drop nothing."
//
// The opposite of a latest-frame mailbox: every row of a progressive render
// is needed for the final image, so the queue is unbounded and no entry is
// ever overwritten. Memory is bounded only by the producer, which is trusted
// and rate-limited upstream. QueueStats.HighWater exposes how far the queue
// grew so that a stricter backpressure policy can be justified with data.
//
// # Thread Safety
//
// None. A Queue is owned by one session loop goroutine that runs event
// handling and paint ticks to completion, one after the other. Enqueue and
// TakeBatch are therefore atomic with respect to each other by construction.
//
// # Arrival statistics
//
// ArrivalRecorder keeps a bounded window of arrival timestamps and
// CalculateArrivalStats turns it into a rows/second profile with jitter,
// used by operators to see whether the producer is steady or bursty.
package ingest
