package progress

// CompletionRatio returns the fraction of rows painted (0.0 to 1.0).
// Returns 0.0 for a job with no rows.
func CompletionRatio(p Progress) float64 {
	if p.Height <= 0 {
		return 0.0
	}
	r := float64(p.RowsPainted) / float64(p.Height)
	if r > 1.0 {
		return 1.0
	}
	return r
}

// CalculateDropRate returns the drop rate as a fraction (0.0 to 1.0).
// Returns 0.0 if nothing has been sent or dropped.
func CalculateDropRate(stats BusStats) float64 {
	total := stats.TotalSent + stats.TotalDropped
	if total == 0 {
		return 0.0
	}
	return float64(stats.TotalDropped) / float64(total)
}

// CalculateSubscriberDropRate returns the drop rate for one subscriber.
// Returns 0.0 if the subscriber is unknown or idle.
func CalculateSubscriberDropRate(stats BusStats, subscriberID string) float64 {
	sub, exists := stats.Subscribers[subscriberID]
	if !exists {
		return 0.0
	}

	total := sub.Sent + sub.Dropped
	if total == 0 {
		return 0.0
	}
	return float64(sub.Dropped) / float64(total)
}
