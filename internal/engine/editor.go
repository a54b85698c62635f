package engine

import (
	"errors"
	"fmt"

	"github.com/paulmach/orb"

	"github.com/cxd309/metro-engine/internal/network"
	"github.com/cxd309/metro-engine/internal/train"
)

var (
	ErrInsufficientFunds = errors.New("insufficient funds")
	ErrNoTrains          = errors.New("line has no trains")
)

// purchase applies mutate only if cost is affordable, then charges it. The
// ledger is never charged for a mutation that failed.
func (w *World) purchase(cost float64, desc string, mutate func() error) error {
	if !w.ledger.CanAfford(cost) {
		w.logger.Printf("cannot afford %s: need %.0f, have %.0f", desc, cost, w.ledger.Balance())
		return fmt.Errorf("%s costs %.0f: %w", desc, cost, ErrInsufficientFunds)
	}
	if err := mutate(); err != nil {
		return err
	}
	if !w.ledger.SpendMoney(cost, desc) {
		panic("engine: affordable charge rejected")
	}
	return nil
}

// AddStation places a station. Stations are free.
func (w *World) AddStation(pos orb.Point, shape network.Shape, size network.Size) *network.Station {
	return w.net.AddStation(pos, shape, size)
}

// AddRandomStation places a station of random shape and size at a random
// free position in the spawn area.
func (w *World) AddRandomStation() (*network.Station, bool) {
	pos, ok := w.net.RandomFreePosition(w.rng, network.SpawnArea, w.cfg.StationMinDistance, 30)
	if !ok {
		return nil, false
	}
	return w.net.AddStation(pos, network.RandomShape(w.rng), network.RandomSize(w.rng)), true
}

// CreateLine builds a line from a to b with one train. free skips the charge,
// for scenario setup and the starter line.
func (w *World) CreateLine(a, b network.StationID, name string, free bool) (*network.Line, error) {
	var line *network.Line
	build := func() error {
		var err error
		line, err = w.net.AddLine(a, b, name)
		if err != nil {
			return err
		}
		w.trains.Add(line.ID, 0)
		return nil
	}
	if free {
		if err := build(); err != nil {
			return nil, err
		}
		return line, nil
	}
	if err := w.purchase(w.cfg.Economy.Prices.NewLineCost(), "new line", build); err != nil {
		return nil, err
	}
	return line, nil
}

// ExtendLine attaches station sid to line lid.
func (w *World) ExtendLine(lid network.LineID, sid network.StationID, at network.Attachment) error {
	l, err := w.net.Line(lid)
	if err != nil {
		return err
	}
	return w.purchase(w.cfg.Economy.Prices.ExtensionCost(), "extend "+l.Name, func() error {
		if err := w.net.ExtendLine(lid, sid, at); err != nil {
			return err
		}
		switch a := at.(type) {
		case network.Endpoint:
			if a.Side == network.AtStart {
				w.trains.ShiftFrom(lid, 0)
			}
		case network.Middle:
			w.trains.ShiftFrom(lid, a.InsertIndex)
		}
		return nil
	})
}

// ExtendLineBetween extends lid along the edge from→to, where exactly one of
// the two stations is already on the line.
func (w *World) ExtendLineBetween(lid network.LineID, from, to network.StationID) error {
	l, err := w.net.Line(lid)
	if err != nil {
		return err
	}
	if !w.net.CanExtend(lid, from, to) {
		return fmt.Errorf("extend %s from %d to %d: %w", l.Name, from, to, network.ErrInvalidAttachment)
	}
	if !l.Contains(from) {
		from, to = to, from
	}
	at, _ := network.AttachFrom(l, from)
	return w.ExtendLine(lid, to, at)
}

// RemoveLine deletes a line together with its trains. Riders aboard those
// trains are evicted.
func (w *World) RemoveLine(lid network.LineID) error {
	if _, err := w.net.Line(lid); err != nil {
		return err
	}
	w.withdraw(w.trains.RemoveLine(lid))
	delete(w.loads, lid)
	return w.net.RemoveLine(lid)
}

func (w *World) withdraw(trains []*train.Train) {
	n := 0
	for _, t := range trains {
		n += w.riders.Evict(t.Manifest)
	}
	if n > 0 {
		w.logger.Printf("evicted %d riders from %d withdrawn trains", n, len(trains))
	}
}

// SplitLine cuts line lid at segment seg. Trains move to the half they were
// on and a half left without one gets a new default train; a line too short
// to split is removed with its trains.
func (w *World) SplitLine(lid network.LineID, seg int) (network.Split, error) {
	sp, err := w.net.SplitLine(lid, seg)
	if err != nil {
		return sp, err
	}
	delete(w.loads, lid)
	if sp.First == nil {
		w.withdraw(w.trains.RemoveLine(lid))
		return sp, nil
	}
	w.trains.Reassign(sp)
	for _, half := range []*network.Line{sp.First, sp.Second} {
		if len(w.trains.OnLine(half.ID)) == 0 {
			w.trains.Add(half.ID, 0)
		}
	}
	return sp, nil
}

// BuyTrain adds a train to line lid.
func (w *World) BuyTrain(lid network.LineID) (*train.Train, error) {
	l, err := w.net.Line(lid)
	if err != nil {
		return nil, err
	}
	var t *train.Train
	err = w.purchase(w.cfg.Economy.Prices.TrainCost(), "new train on "+l.Name, func() error {
		t = w.trains.Add(lid, 0)
		return nil
	})
	return t, err
}

// UpgradeCapacity adds one seat to every train on line lid.
func (w *World) UpgradeCapacity(lid network.LineID) error {
	l, err := w.net.Line(lid)
	if err != nil {
		return err
	}
	trains := w.trains.OnLine(lid)
	if len(trains) == 0 {
		return fmt.Errorf("upgrade %s: %w", l.Name, ErrNoTrains)
	}
	cost := w.cfg.Economy.Prices.CapacityUpgradeCost(len(trains))
	return w.purchase(cost, "capacity upgrade on "+l.Name, func() error {
		for _, t := range trains {
			t.Manifest.Capacity++
		}
		return nil
	})
}

// SetInfinite toggles infinite-funds mode.
func (w *World) SetInfinite(on bool) { w.ledger.SetInfinite(on) }
