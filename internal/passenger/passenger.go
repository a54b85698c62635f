// Package passenger tracks riders from spawn to trip completion: station
// queues, train manifests and the per-shape counters kept alongside them.
package passenger

import (
	"slices"

	"github.com/cxd309/metro-engine/internal/network"
	"github.com/cxd309/metro-engine/internal/planner"
)

// ID identifies a passenger.
type ID int

// State is where a passenger is in its trip.
type State string

const (
	StateWaiting         State = "waiting"
	StateOnboard         State = "onboard"
	StateTransferWaiting State = "transfer_waiting"
	StateAlighted        State = "alighted"
	StateEvicted         State = "evicted"
)

// Passenger is a single rider. Exactly one container (a station's waiting
// list, its transfer list, or a train manifest) holds it at any time.
type Passenger struct {
	ID                 ID                `json:"passenger_id"`
	From               network.StationID `json:"from"`
	To                 network.StationID `json:"to"`
	Shape              network.Shape     `json:"shape"`
	Route              *planner.Route    `json:"route,omitempty"` // nil when unreachable at spawn
	Step               int               `json:"step"`
	WaitingForTransfer bool              `json:"waiting_for_transfer"`
	CreatedAt          float64           `json:"created_at"` // sim seconds
	WaitStart          float64           `json:"wait_start"` // sim seconds; entry into current station list
	State              State             `json:"state"`
}

// ShapeCounts is a per-shape counter.
type ShapeCounts [network.NumShapes]int

// Total sums all shapes.
func (c ShapeCounts) Total() int {
	n := 0
	for _, v := range c {
		n += v
	}
	return n
}

// Tally mirrors a passenger list as per-shape and per-destination counts.
type Tally struct {
	ByShape ShapeCounts                       `json:"by_shape"`
	ByDest  map[network.StationID]ShapeCounts `json:"by_dest"`
}

// Add counts p.
func (t *Tally) Add(p *Passenger) {
	t.ByShape[p.Shape]++
	if t.ByDest == nil {
		t.ByDest = make(map[network.StationID]ShapeCounts)
	}
	d := t.ByDest[p.To]
	d[p.Shape]++
	t.ByDest[p.To] = d
}

// Remove uncounts p.
func (t *Tally) Remove(p *Passenger) {
	t.ByShape[p.Shape]--
	d := t.ByDest[p.To]
	d[p.Shape]--
	if d.Total() == 0 {
		delete(t.ByDest, p.To)
	} else {
		t.ByDest[p.To] = d
	}
}

// Total is the number of passengers counted.
func (t *Tally) Total() int { return t.ByShape.Total() }

// StationQueue holds the passengers waiting at one station.
type StationQueue struct {
	Waiting  []*Passenger `json:"waiting"`
	Transfer []*Passenger `json:"transfer"`
	Tally    Tally        `json:"tally"`
}

// Len is the number of passengers at the station across both lists.
func (q *StationQueue) Len() int { return len(q.Waiting) + len(q.Transfer) }

// Consistent reports whether the tally matches the lists.
func (q *StationQueue) Consistent() bool {
	var want Tally
	for _, p := range q.Waiting {
		want.Add(p)
	}
	for _, p := range q.Transfer {
		want.Add(p)
	}
	return tallyEqual(want, q.Tally)
}

func (q *StationQueue) pushWaiting(p *Passenger) {
	q.Waiting = append(q.Waiting, p)
	q.Tally.Add(p)
}

func (q *StationQueue) pushTransfer(p *Passenger) {
	q.Transfer = append(q.Transfer, p)
	q.Tally.Add(p)
}

// remove takes p out of whichever list holds it.
func (q *StationQueue) remove(p *Passenger) bool {
	if i := slices.Index(q.Waiting, p); i >= 0 {
		q.Waiting = slices.Delete(q.Waiting, i, i+1)
	} else if i := slices.Index(q.Transfer, p); i >= 0 {
		q.Transfer = slices.Delete(q.Transfer, i, i+1)
	} else {
		return false
	}
	q.Tally.Remove(p)
	return true
}

// Manifest is the list of passengers aboard one train.
type Manifest struct {
	Capacity   int          `json:"capacity"`
	Passengers []*Passenger `json:"passengers"`
	Tally      Tally        `json:"tally"`
}

// NewManifest returns an empty manifest for a train of the given capacity.
func NewManifest(capacity int) *Manifest {
	return &Manifest{Capacity: capacity}
}

// Len is the number of passengers aboard.
func (m *Manifest) Len() int { return len(m.Passengers) }

// Free is the remaining capacity.
func (m *Manifest) Free() int { return max(m.Capacity-len(m.Passengers), 0) }

// LoadFactor is occupancy as a fraction of capacity.
func (m *Manifest) LoadFactor() float64 {
	if m.Capacity <= 0 {
		return 0
	}
	return float64(len(m.Passengers)) / float64(m.Capacity)
}

// Consistent reports whether the tally matches the passenger list.
func (m *Manifest) Consistent() bool {
	var want Tally
	for _, p := range m.Passengers {
		want.Add(p)
	}
	return tallyEqual(want, m.Tally)
}

func (m *Manifest) add(p *Passenger) {
	m.Passengers = append(m.Passengers, p)
	m.Tally.Add(p)
}

func tallyEqual(a, b Tally) bool {
	if a.ByShape != b.ByShape || len(a.ByDest) != len(b.ByDest) {
		return false
	}
	for k, v := range a.ByDest {
		if b.ByDest[k] != v {
			return false
		}
	}
	return true
}
