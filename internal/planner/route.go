// Package planner computes passenger routes over a transit network: station
// sequences with the line ridden on each hop and the points where a rider
// changes lines.
package planner

import "github.com/cxd309/metro-engine/internal/network"

// Step is one stop on a route. A transfer step repeats the previous station
// with the line the rider changes onto.
type Step struct {
	StationID  network.StationID `json:"station_id"`
	LineID     network.LineID    `json:"line_id"`
	IsTransfer bool              `json:"is_transfer"`
}

// Route is an immutable plan from one station to another.
type Route struct {
	From          network.StationID `json:"from"`
	To            network.StationID `json:"to"`
	Steps         []Step            `json:"steps"`
	TotalDistance int               `json:"total_distance"` // hops plus transfer penalties
	TransferCount int               `json:"transfer_count"`
	EstimatedTime float64           `json:"estimated_time"`
}

// Lines returns the distinct lines the route rides, in order.
func (r *Route) Lines() []network.LineID {
	var out []network.LineID
	for _, s := range r.Steps {
		if len(out) == 0 || out[len(out)-1] != s.LineID {
			out = append(out, s.LineID)
		}
	}
	return out
}

// ShouldTransferAtStation reports whether a rider at step must leave the
// train at sid to change lines.
func ShouldTransferAtStation(r *Route, step int, sid network.StationID) bool {
	if r == nil || step < 0 || step >= len(r.Steps)-1 {
		return false
	}
	cur, next := r.Steps[step], r.Steps[step+1]
	return cur.StationID == sid && next.IsTransfer && next.StationID == sid
}

// TransferLineID returns the line boarded at the transfer following step.
func TransferLineID(r *Route, step int) (network.LineID, bool) {
	if r == nil || step < 0 || step >= len(r.Steps)-1 {
		return 0, false
	}
	next := r.Steps[step+1]
	if !next.IsTransfer {
		return 0, false
	}
	return next.LineID, true
}

// NextTargetStation returns the station of the step after step.
func NextTargetStation(r *Route, step int) (network.StationID, bool) {
	if r == nil || step < 0 || step >= len(r.Steps)-1 {
		return 0, false
	}
	return r.Steps[step+1].StationID, true
}

// AdvanceTo moves a rider's step pointer forward to the first step at or
// after from that stops at sid on line lid. It returns from unchanged when
// the route does not stop there.
func AdvanceTo(r *Route, from int, sid network.StationID, lid network.LineID) int {
	if r == nil {
		return from
	}
	for k := max(from, 0); k < len(r.Steps); k++ {
		if r.Steps[k].StationID == sid && r.Steps[k].LineID == lid {
			return k
		}
	}
	return from
}
