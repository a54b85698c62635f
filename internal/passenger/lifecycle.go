package passenger

import (
	"log"
	"math/rand/v2"

	"github.com/cxd309/metro-engine/internal/network"
	"github.com/cxd309/metro-engine/internal/planner"
)

// Topology is the network view the lifecycle needs.
type Topology interface {
	Stations() []*network.Station
	MustStation(id network.StationID) *network.Station
	Line(id network.LineID) (*network.Line, error)
}

// Router plans passenger routes.
type Router interface {
	FindShortestPath(from, to network.StationID) *planner.Route
}

// Config holds spawn and cleanup tuning.
type Config struct {
	SpawnBaseRate       float64 `yaml:"spawnBaseRate" validate:"gte=0"`
	SpawnRateGrowth     float64 `yaml:"spawnRateGrowth" validate:"gte=0"`    // added to the rate per sim second
	QueueFail           int     `yaml:"queueFail" validate:"gt=0"`           // waiting count that overflows a station
	TransferWaitTimeout float64 `yaml:"transferWaitTimeout" validate:"gt=0"` // seconds
	WaitingTimeout      float64 `yaml:"waitingTimeout" validate:"gt=0"`      // seconds
}

// DefaultConfig returns the standard spawn and cleanup tuning.
func DefaultConfig() Config {
	return Config{
		SpawnBaseRate:       0.05,
		SpawnRateGrowth:     0.005,
		QueueFail:           12,
		TransferWaitTimeout: 60,
		WaitingTimeout:      120,
	}
}

// Counters are running totals over the session.
type Counters struct {
	Spawned   int `json:"spawned"`
	Boarded   int `json:"boarded"`
	Completed int `json:"completed"`
	Transfers int `json:"transfers"`
	Evicted   int `json:"evicted"`
}

// Lifecycle owns every station queue and moves passengers between station
// queues and train manifests.
type Lifecycle struct {
	topo   Topology
	router Router
	cfg    Config
	rng    *rand.Rand
	logger *log.Logger

	queues   map[network.StationID]*StationQueue
	nextID   ID
	counters Counters
	overflow *network.StationID
}

// NewLifecycle returns a Lifecycle drawing randomness from rng.
func NewLifecycle(topo Topology, router Router, cfg Config, rng *rand.Rand) *Lifecycle {
	return &Lifecycle{
		topo:   topo,
		router: router,
		cfg:    cfg,
		rng:    rng,
		logger: log.Default(),
		queues: make(map[network.StationID]*StationQueue),
		nextID: 1,
	}
}

// SetLogger replaces the event logger.
func (lc *Lifecycle) SetLogger(l *log.Logger) { lc.logger = l }

// Counters returns the running totals.
func (lc *Lifecycle) Counters() Counters { return lc.counters }

// Queue returns the queue at sid, creating it on first use.
func (lc *Lifecycle) Queue(sid network.StationID) *StationQueue {
	q, ok := lc.queues[sid]
	if !ok {
		q = &StationQueue{}
		lc.queues[sid] = q
	}
	return q
}

// Overflowed returns the first station whose queue reached QueueFail.
func (lc *Lifecycle) Overflowed() (network.StationID, bool) {
	if lc.overflow == nil {
		return 0, false
	}
	return *lc.overflow, true
}

// Reset drops every passenger and counter.
func (lc *Lifecycle) Reset(nextID ID) {
	lc.queues = make(map[network.StationID]*StationQueue)
	lc.counters = Counters{}
	lc.overflow = nil
	lc.nextID = max(nextID, 1)
}

// NextID exposes the id counter for snapshots.
func (lc *Lifecycle) NextID() ID { return lc.nextID }

// Spawn rolls for a new passenger over a tick of length dt at sim time now.
func (lc *Lifecycle) Spawn(dt, now float64) *Passenger {
	stations := lc.topo.Stations()
	if len(stations) == 0 {
		return nil
	}
	if lc.rng.Float64() >= dt*(lc.cfg.SpawnBaseRate+now*lc.cfg.SpawnRateGrowth) {
		return nil
	}
	from := stations[lc.rng.IntN(len(stations))]
	var candidates []*network.Station
	for _, s := range stations {
		if s.ID != from.ID && s.Shape != from.Shape {
			candidates = append(candidates, s)
		}
	}
	if len(candidates) == 0 {
		return nil
	}
	to := candidates[lc.rng.IntN(len(candidates))]
	return lc.SpawnBetween(from.ID, to.ID, now)
}

// SpawnBetween places a new passenger at from bound for to.
func (lc *Lifecycle) SpawnBetween(from, to network.StationID, now float64) *Passenger {
	p := &Passenger{
		ID:        lc.nextID,
		From:      from,
		To:        to,
		Shape:     lc.topo.MustStation(to).Shape,
		Route:     lc.router.FindShortestPath(from, to),
		CreatedAt: now,
		WaitStart: now,
		State:     StateWaiting,
	}
	lc.nextID++
	q := lc.Queue(from)
	q.pushWaiting(p)
	lc.counters.Spawned++
	lc.checkOverflow(from, q)
	return p
}

// checkOverflow latches the first station whose queue reaches QueueFail.
func (lc *Lifecycle) checkOverflow(sid network.StationID, q *StationQueue) {
	if lc.overflow == nil && q.Tally.Total() >= lc.cfg.QueueFail {
		lc.overflow = &sid
		lc.logger.Printf("station %d overflowed with %d waiting", sid, q.Tally.Total())
	}
}

// Board fills free capacity on a train of line lid stopped at sid, in
// priority order: riders parked mid-transfer for this line, riders whose
// destination is on this line, then riders whose route uses this line from
// here toward a later transfer.
func (lc *Lifecycle) Board(m *Manifest, lid network.LineID, sid network.StationID) []*Passenger {
	if m.Free() == 0 {
		return nil
	}
	line, err := lc.topo.Line(lid)
	if err != nil {
		return nil
	}
	q := lc.Queue(sid)

	var candidates []*Passenger
	for _, p := range q.Transfer {
		if next, ok := planner.TransferLineID(p.Route, p.Step-1); ok && p.WaitingForTransfer && next == lid {
			candidates = append(candidates, p)
		}
	}
	var onPath []*Passenger
	for _, p := range q.Waiting {
		switch {
		case p.Route == nil:
		case line.Contains(p.To):
			candidates = append(candidates, p)
		case usesLineFrom(p, lid, sid):
			onPath = append(onPath, p)
		}
	}
	candidates = append(candidates, onPath...)

	var boarded []*Passenger
	for _, p := range candidates {
		if m.Free() == 0 {
			break
		}
		q.remove(p)
		m.add(p)
		p.State = StateOnboard
		p.WaitingForTransfer = false
		p.Step = planner.AdvanceTo(p.Route, p.Step, sid, lid)
		boarded = append(boarded, p)
	}
	lc.counters.Boarded += len(boarded)
	return boarded
}

func usesLineFrom(p *Passenger, lid network.LineID, sid network.StationID) bool {
	for _, s := range p.Route.Steps[max(p.Step, 0):] {
		if s.LineID == lid && s.StationID == sid {
			return true
		}
	}
	return false
}

// Alight lets riders off a train of line lid stopped at sid. Riders at their
// destination leave the system and are returned; riders whose route changes
// lines here move to the station's transfer list.
func (lc *Lifecycle) Alight(m *Manifest, lid network.LineID, sid network.StationID, now float64) []*Passenger {
	var completed []*Passenger
	kept := m.Passengers[:0]
	for _, p := range m.Passengers {
		p.Step = planner.AdvanceTo(p.Route, p.Step, sid, lid)
		switch {
		case p.To == sid:
			m.Tally.Remove(p)
			p.State = StateAlighted
			completed = append(completed, p)
		case planner.ShouldTransferAtStation(p.Route, p.Step, sid):
			m.Tally.Remove(p)
			p.Step++
			p.WaitingForTransfer = true
			p.State = StateTransferWaiting
			p.WaitStart = now
			q := lc.Queue(sid)
			q.pushTransfer(p)
			lc.checkOverflow(sid, q)
			lc.counters.Transfers++
		default:
			kept = append(kept, p)
		}
	}
	clear(m.Passengers[len(kept):])
	m.Passengers = kept
	lc.counters.Completed += len(completed)
	return completed
}

// Evict removes every passenger aboard m, for trains withdrawn from service.
func (lc *Lifecycle) Evict(m *Manifest) int {
	n := len(m.Passengers)
	for _, p := range m.Passengers {
		p.State = StateEvicted
	}
	m.Passengers = nil
	m.Tally = Tally{}
	lc.counters.Evicted += n
	return n
}

// Cleanup evicts passengers stuck in a station list past its timeout and
// returns how many were removed.
func (lc *Lifecycle) Cleanup(now float64) int {
	evicted := 0
	for _, s := range lc.topo.Stations() {
		q, ok := lc.queues[s.ID]
		if !ok {
			continue
		}
		for _, p := range stale(q.Transfer, now, lc.cfg.TransferWaitTimeout) {
			q.remove(p)
			p.State = StateEvicted
			evicted++
		}
		for _, p := range stale(q.Waiting, now, lc.cfg.WaitingTimeout) {
			q.remove(p)
			p.State = StateEvicted
			evicted++
		}
	}
	if evicted > 0 {
		lc.logger.Printf("evicted %d stranded passengers at t=%.1f", evicted, now)
	}
	lc.counters.Evicted += evicted
	return evicted
}

func stale(ps []*Passenger, now, timeout float64) []*Passenger {
	var out []*Passenger
	for _, p := range ps {
		if now-p.WaitStart > timeout {
			out = append(out, p)
		}
	}
	return out
}
