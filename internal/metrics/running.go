// Package metrics provides incremental statistics for simulation dashboards.
package metrics

import "math"

// Running holds a mean and variance updated one observation at a time using
// Welford's online algorithm.
type Running struct {
	Count int     `json:"count"`
	Mean  float64 `json:"mean"`
	M2    float64 `json:"m2"` // sum of squared differences from the mean
}

// Observe adds a value.
func (r *Running) Observe(v float64) {
	r.Count++
	delta := v - r.Mean
	r.Mean += delta / float64(r.Count)
	r.M2 += delta * (v - r.Mean)
}

// StdDev is the population standard deviation, 0 below two observations.
func (r *Running) StdDev() float64 {
	if r.Count < 2 {
		return 0
	}
	return math.Sqrt(r.M2 / float64(r.Count))
}

// Summary is a read-only view of a Running.
type Summary struct {
	Count  int     `json:"count"`
	Mean   float64 `json:"mean"`
	StdDev float64 `json:"std_dev"`
}

// Summary returns the current statistics.
func (r *Running) Summary() Summary {
	return Summary{Count: r.Count, Mean: r.Mean, StdDev: r.StdDev()}
}
