package train

import (
	"fmt"
	"slices"

	"github.com/paulmach/orb"

	"github.com/cxd309/metro-engine/internal/network"
	"github.com/cxd309/metro-engine/internal/passenger"
)

// Topology is the network view the scheduler needs.
type Topology interface {
	Line(id network.LineID) (*network.Line, error)
	StationLineCount(sid network.StationID) int
	MustStation(id network.StationID) *network.Station
}

// Stop is called by the scheduler at every station arrival. Alight runs
// before the dwell timer is set and Board runs after it.
type Stop interface {
	Alight(t *Train, line *network.Line, sid network.StationID)
	Board(t *Train, line *network.Line, sid network.StationID)
}

// Scheduler owns the fleet and advances it tick by tick.
type Scheduler struct {
	topo   Topology
	cfg    Config
	motion MotionModel
	trains []*Train // stable iteration order
	nextID ID
}

// NewScheduler returns an empty fleet.
func NewScheduler(topo Topology, cfg Config) (*Scheduler, error) {
	m, err := cfg.Motion.Build()
	if err != nil {
		return nil, fmt.Errorf("train motion: %w", err)
	}
	return &Scheduler{topo: topo, cfg: cfg, motion: m, nextID: 1}, nil
}

// Config returns the scheduler's tuning.
func (s *Scheduler) Config() Config { return s.cfg }

// Add places a new train at the start of line lid.
func (s *Scheduler) Add(lid network.LineID, capacity int) *Train {
	if capacity <= 0 {
		capacity = s.cfg.DefaultCapacity
	}
	t := &Train{
		ID:       s.nextID,
		LineID:   lid,
		Dir:      Forward,
		Manifest: passenger.NewManifest(capacity),
	}
	s.nextID++
	s.trains = append(s.trains, t)
	return t
}

// Trains returns the fleet in iteration order.
func (s *Scheduler) Trains() []*Train { return s.trains }

// NextID exposes the id counter for snapshots.
func (s *Scheduler) NextID() ID { return s.nextID }

// OnLine returns the trains assigned to lid.
func (s *Scheduler) OnLine(lid network.LineID) []*Train {
	var out []*Train
	for _, t := range s.trains {
		if t.LineID == lid {
			out = append(out, t)
		}
	}
	return out
}

// RemoveLine withdraws every train on lid and returns them.
func (s *Scheduler) RemoveLine(lid network.LineID) []*Train {
	removed := s.OnLine(lid)
	s.trains = slices.DeleteFunc(s.trains, func(t *Train) bool { return t.LineID == lid })
	return removed
}

// ShiftFrom keeps trains on lid at the same station after a station was
// inserted at index.
func (s *Scheduler) ShiftFrom(lid network.LineID, index int) {
	for _, t := range s.trains {
		if t.LineID == lid && t.AtIndex >= index {
			t.AtIndex++
		}
	}
}

// Reassign moves trains of a split line onto its halves, by which side of
// the cut they were on.
func (s *Scheduler) Reassign(sp network.Split) {
	if sp.First == nil || sp.Second == nil {
		return
	}
	for _, t := range s.trains {
		if t.LineID != sp.Original {
			continue
		}
		if t.AtIndex <= sp.Index {
			t.LineID = sp.First.ID
			t.AtIndex = min(t.AtIndex, sp.First.Last())
		} else {
			t.LineID = sp.Second.ID
			t.AtIndex = clamp(t.AtIndex-(sp.Index+1), 0, sp.Second.Last())
		}
	}
}

// Restore replaces the fleet with persisted trains.
func (s *Scheduler) Restore(records []Record, nextID ID) {
	s.trains = s.trains[:0]
	for _, r := range records {
		s.trains = append(s.trains, &Train{
			ID:       r.ID,
			LineID:   r.LineID,
			AtIndex:  r.AtIndex,
			T:        r.T,
			Dir:      r.Dir,
			Dwell:    r.Dwell,
			Manifest: passenger.NewManifest(r.Capacity),
		})
	}
	s.nextID = nextID
}

// Update advances every train by dt seconds.
func (s *Scheduler) Update(dt float64, stop Stop) {
	for _, t := range s.trains {
		line, err := s.topo.Line(t.LineID)
		if err != nil {
			panic(fmt.Sprintf("train %d: %v", t.ID, err))
		}
		if !line.Serviceable() {
			continue
		}

		if t.Dwell > 0 {
			t.Dwell = max(0, t.Dwell-dt)
			continue
		}

		t.T = s.motion.Advance(t.T, dt)
		if t.T < 1 {
			continue
		}
		t.T = 0
		last := line.Last()
		switch {
		case t.Dir == Forward && t.AtIndex >= last:
			t.Dir = Reverse
		case t.Dir == Reverse && t.AtIndex <= 0:
			t.Dir = Forward
		default:
			t.AtIndex = clamp(t.AtIndex+int(t.Dir), 0, last)
		}

		sid := line.Stations[t.AtIndex]
		stop.Alight(t, line, sid)
		t.Dwell = max(t.Dwell, s.cfg.DwellTime(s.topo.StationLineCount(sid)))
		stop.Board(t, line, sid)
	}
}

// Position interpolates a train's location between its current station and
// the next one in its direction of travel.
func (s *Scheduler) Position(t *Train) orb.Point {
	line, err := s.topo.Line(t.LineID)
	if err != nil || len(line.Stations) == 0 {
		return orb.Point{}
	}
	i := clamp(t.AtIndex, 0, line.Last())
	j := clamp(i+int(t.Dir), 0, line.Last())
	a := s.topo.MustStation(line.Stations[i]).Pos
	b := s.topo.MustStation(line.Stations[j]).Pos
	return orb.Point{
		a.X() + (b.X()-a.X())*t.T,
		a.Y() + (b.Y()-a.Y())*t.T,
	}
}

func clamp(v, lo, hi int) int {
	return max(lo, min(v, hi))
}
