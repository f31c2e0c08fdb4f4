package ingest

import (
	"math"
	"time"
)

const (
	// rateSteadinessThreshold is the maximum rate standard deviation, as a
	// fraction of the mean rate, for a producer to count as steady.
	rateSteadinessThreshold = 0.15

	// jitterSteadinessThreshold is the maximum mean jitter, as a fraction of
	// the expected inter-arrival interval, for a producer to count as steady.
	jitterSteadinessThreshold = 0.20

	// DefaultArrivalWindow is the number of timestamps an ArrivalRecorder keeps.
	DefaultArrivalWindow = 256
)

// ArrivalStats describes how scanlines arrived over a window.
type ArrivalStats struct {
	// Rows is the number of arrivals in the window.
	Rows int

	// Duration is the window length used for the mean rate.
	Duration time.Duration

	// RateMean is Rows / Duration, in rows per second.
	RateMean float64

	// RateStdDev is the standard deviation of instantaneous rates.
	RateStdDev float64

	// RateMin and RateMax bound the instantaneous rates.
	RateMin float64
	RateMax float64

	// JitterMean and JitterMax measure deviation from the expected interval, in seconds.
	JitterMean float64
	JitterMax  float64

	// IsSteady is true when both rate deviation and jitter are under threshold.
	IsSteady bool
}

// CalculateArrivalStats computes rate and jitter statistics from arrival
// timestamps (oldest first).
//
// Steady means: stddev < 15% of the mean rate AND mean jitter < 20% of the
// expected interval. Fewer than two usable intervals are never steady.
func CalculateArrivalStats(times []time.Time, total time.Duration) ArrivalStats {
	n := len(times)
	stats := ArrivalStats{Rows: n, Duration: total}
	if n == 0 || total <= 0 {
		return stats
	}

	stats.RateMean = float64(n) / total.Seconds()

	rates := make([]float64, 0, n-1)
	for i := 1; i < n; i++ {
		if interval := times[i].Sub(times[i-1]).Seconds(); interval > 0 {
			rates = append(rates, 1.0/interval)
		}
	}
	if len(rates) == 0 {
		return stats
	}

	stats.RateMin, stats.RateMax = rates[0], rates[0]
	var sumSquares float64
	for _, r := range rates {
		stats.RateMin = math.Min(stats.RateMin, r)
		stats.RateMax = math.Max(stats.RateMax, r)
		diff := r - stats.RateMean
		sumSquares += diff * diff
	}
	stats.RateStdDev = math.Sqrt(sumSquares / float64(len(rates)))

	expected := 1.0 / stats.RateMean
	var jitterSum float64
	for i := 1; i < n; i++ {
		jitter := math.Abs(times[i].Sub(times[i-1]).Seconds() - expected)
		jitterSum += jitter
		stats.JitterMax = math.Max(stats.JitterMax, jitter)
	}
	stats.JitterMean = jitterSum / float64(n-1)

	stats.IsSteady = len(rates) >= 2 &&
		stats.RateStdDev < stats.RateMean*rateSteadinessThreshold &&
		stats.JitterMean < expected*jitterSteadinessThreshold

	return stats
}

// ArrivalRecorder keeps the most recent arrival timestamps in a ring.
// Not safe for concurrent use; owned by the session loop like Queue.
type ArrivalRecorder struct {
	samples []time.Time
	next    int
	count   int
}

// NewArrivalRecorder returns a recorder keeping up to window timestamps.
// A non-positive window uses DefaultArrivalWindow.
func NewArrivalRecorder(window int) *ArrivalRecorder {
	if window <= 0 {
		window = DefaultArrivalWindow
	}
	return &ArrivalRecorder{samples: make([]time.Time, window)}
}

// Record adds an arrival, evicting the oldest when full.
func (r *ArrivalRecorder) Record(at time.Time) {
	r.samples[r.next] = at
	r.next = (r.next + 1) % len(r.samples)
	if r.count < len(r.samples) {
		r.count++
	}
}

// Times returns the recorded timestamps, oldest first.
func (r *ArrivalRecorder) Times() []time.Time {
	out := make([]time.Time, 0, r.count)
	start := (r.next - r.count + len(r.samples)) % len(r.samples)
	for i := 0; i < r.count; i++ {
		out = append(out, r.samples[(start+i)%len(r.samples)])
	}
	return out
}

// Stats computes ArrivalStats over the window, measured up to now.
func (r *ArrivalRecorder) Stats(now time.Time) ArrivalStats {
	times := r.Times()
	if len(times) == 0 {
		return ArrivalStats{}
	}
	return CalculateArrivalStats(times, now.Sub(times[0]))
}

// Reset forgets every recorded arrival.
func (r *ArrivalRecorder) Reset() {
	clear(r.samples)
	r.next = 0
	r.count = 0
}
