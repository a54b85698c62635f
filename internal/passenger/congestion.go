package passenger

// Band is an ordered congestion classification.
type Band string

const (
	BandLow      Band = "low"
	BandMedium   Band = "medium"
	BandHigh     Band = "high"
	BandCritical Band = "critical"
)

// Classify bands a waiting count against station capacity.
func Classify(waiting, capacity int) Band {
	if capacity <= 0 {
		return BandCritical
	}
	r := float64(waiting) / float64(capacity)
	switch {
	case r < 0.3:
		return BandLow
	case r < 0.6:
		return BandMedium
	case r < 0.9:
		return BandHigh
	default:
		return BandCritical
	}
}

// Congested reports whether b is high or critical.
func (b Band) Congested() bool { return b == BandHigh || b == BandCritical }

// Congestion bands the queue at a station of the given capacity.
func (q *StationQueue) Congestion(capacity int) Band {
	return Classify(q.Len(), capacity)
}
