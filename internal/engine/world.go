// Package engine implements the metro simulation world.
//
// The world advances in fixed timesteps. Each tick runs three phases in
// order:
//
//  1. Spawn - roll for new passengers (and new stations when auto-spawn is on).
//
//  2. Trains - every train, in a stable order, dwells or moves; on arrival it
//     lets riders off, credits their fares, starts its dwell and boards.
//
//  3. Cleanup - every CleanupInterval, passengers stranded past their
//     timeout are evicted.
//
// Topology edits go through the World so that route invalidation and train
// cascades complete before the next tick.
package engine

import (
	"fmt"
	"log"
	"math/rand/v2"

	"github.com/google/uuid"

	"github.com/cxd309/metro-engine/internal/economy"
	"github.com/cxd309/metro-engine/internal/logging"
	"github.com/cxd309/metro-engine/internal/metrics"
	"github.com/cxd309/metro-engine/internal/network"
	"github.com/cxd309/metro-engine/internal/passenger"
	"github.com/cxd309/metro-engine/internal/planner"
	"github.com/cxd309/metro-engine/internal/train"
)

// World owns every simulation component.
type World struct {
	id     string
	cfg    Config
	rng    *rand.Rand
	logger *log.Logger

	net     *network.Network
	planner *planner.Planner
	riders  *passenger.Lifecycle
	trains  *train.Scheduler
	ledger  *economy.Ledger
	fares   economy.FarePolicy

	time         float64 // sim seconds
	sinceCleanup float64
	spawnTimer   float64
	sinceUpkeep  float64
	over         bool
	loads        map[network.LineID]*metrics.Running // departure load factor per line
}

// New builds an empty world.
func New(cfg Config) (*World, error) {
	w := &World{
		id:     uuid.New().String(),
		cfg:    cfg,
		rng:    rand.New(rand.NewPCG(cfg.Seed, cfg.Seed^0x9e3779b97f4a7c15)),
		logger: log.Default(),
		net:    network.New(),
		loads:  make(map[network.LineID]*metrics.Running),
	}
	if cfg.Quiet {
		w.logger = logging.Discard()
	}

	w.planner = planner.New(w.net, cfg.Planner)
	w.net.OnChange(w.planner.Invalidate)

	w.riders = passenger.NewLifecycle(w.net, w.planner, cfg.Passengers, w.rng)
	w.riders.SetLogger(w.logger)

	var err error
	w.trains, err = train.NewScheduler(w.net, cfg.Trains)
	if err != nil {
		return nil, err
	}

	w.fares, err = economy.NewFarePolicy(cfg.Economy.FarePolicy, cfg.Economy.AverageFare, cfg.Economy.Prices)
	if err != nil {
		return nil, err
	}
	w.ledger = economy.NewLedger(cfg.Economy.StartingBalance, w.Time)
	w.ledger.SetInfinite(cfg.Economy.Infinite)
	return w, nil
}

// ID is the session identifier.
func (w *World) ID() string { return w.id }

// Time is the elapsed sim time in seconds.
func (w *World) Time() float64 { return w.time }

// GameOver reports whether a station has overflowed.
func (w *World) GameOver() bool { return w.over }

// Config returns the world's tuning.
func (w *World) Config() Config { return w.cfg }

func (w *World) Network() *network.Network        { return w.net }
func (w *World) Planner() *planner.Planner        { return w.planner }
func (w *World) Passengers() *passenger.Lifecycle { return w.riders }
func (w *World) Trains() *train.Scheduler         { return w.trains }
func (w *World) Ledger() *economy.Ledger          { return w.ledger }
func (w *World) FarePolicy() economy.FarePolicy   { return w.fares }

// SetSpeed changes the global speed multiplier.
func (w *World) SetSpeed(m float64) error {
	if m <= 0 {
		return fmt.Errorf("speed multiplier must be positive, got %v", m)
	}
	w.cfg.SpeedMultiplier = m
	return nil
}

// Update advances the world by dt seconds of wall time, scaled by the speed
// multiplier. It does nothing once the game is over.
func (w *World) Update(dt float64) {
	if w.over || dt <= 0 {
		return
	}
	dt *= w.cfg.SpeedMultiplier
	w.time += dt

	w.riders.Spawn(dt, w.time)
	if w.cfg.AutoSpawnStations {
		w.maybeSpawnStation(dt)
	}

	w.trains.Update(dt, stopHandler{w})
	if w.cfg.Economy.Maintenance {
		w.chargeUpkeep(dt)
	}

	w.sinceCleanup += dt
	if w.sinceCleanup >= w.cfg.CleanupInterval {
		w.sinceCleanup = 0
		w.riders.Cleanup(w.time)
	}

	if sid, ok := w.riders.Overflowed(); ok {
		w.over = true
		w.logger.Printf("game over at t=%.1f: station %d overflowed", w.time, sid)
	}
}

func (w *World) maybeSpawnStation(dt float64) {
	w.spawnTimer += dt
	interval := max(1, min(3-w.time*0.02, 3))
	if w.spawnTimer < interval {
		return
	}
	w.spawnTimer = 0
	if _, ok := w.AddRandomStation(); !ok {
		w.logger.Printf("no free position for a new station at t=%.1f", w.time)
	}
}

func (w *World) chargeUpkeep(dt float64) {
	w.sinceUpkeep += dt
	if w.sinceUpkeep < 60 {
		return
	}
	w.sinceUpkeep -= 60
	n := len(w.trains.Trains())
	if n == 0 {
		return
	}
	cost := w.cfg.Economy.Prices.MaintenanceCost(n, 60)
	if !w.ledger.SpendMoney(cost, fmt.Sprintf("maintenance for %d trains", n)) {
		w.logger.Printf("cannot cover maintenance of %.0f", cost)
	}
}

// stopHandler connects train arrivals to the passenger layer and the ledger.
type stopHandler struct{ w *World }

func (h stopHandler) Alight(t *train.Train, line *network.Line, sid network.StationID) {
	w := h.w
	done := w.riders.Alight(t.Manifest, line.ID, sid, w.time)
	if len(done) == 0 {
		return
	}
	trips := make([]economy.Trip, len(done))
	for i, p := range done {
		trips[i] = w.tripFor(p)
	}
	revenue := w.fares.Revenue(trips)
	w.ledger.AddMoney(revenue, fmt.Sprintf("%d tickets on %s (%s fare)", len(done), line.Name, w.fares.Name()))
	line.Stats.PassengersTransported += len(done)
	line.Stats.Income += revenue
}

func (h stopHandler) Board(t *train.Train, line *network.Line, sid network.StationID) {
	w := h.w
	w.riders.Board(t.Manifest, line.ID, sid)
	r, ok := w.loads[line.ID]
	if !ok {
		r = &metrics.Running{}
		w.loads[line.ID] = r
	}
	r.Observe(t.Manifest.LoadFactor())
}

// tripFor measures a completed trip for fare purposes: stops counted on the
// first line serving both ends, or two when no single line does.
func (w *World) tripFor(p *passenger.Passenger) economy.Trip {
	trip := economy.Trip{Shape: p.Shape, Stops: 2}
	l := w.net.SharedLine(p.From, p.To)
	if l == nil {
		trip.ViaTransfer = p.Route != nil && p.Route.TransferCount > 0
		return trip
	}
	i, j := l.IndexOf(p.From), l.IndexOf(p.To)
	if i > j {
		i, j = j, i
	}
	trip.Stops = j - i + 1
	for _, sid := range l.Stations[i : j+1] {
		if w.net.IsTransferStation(sid) {
			trip.ViaTransfer = true
			break
		}
	}
	return trip
}
