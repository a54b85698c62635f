package engine

import (
	"github.com/paulmach/orb"

	"github.com/cxd309/metro-engine/internal/metrics"
	"github.com/cxd309/metro-engine/internal/network"
	"github.com/cxd309/metro-engine/internal/passenger"
	"github.com/cxd309/metro-engine/internal/planner"
	"github.com/cxd309/metro-engine/internal/train"
)

// StationCongestion bands a station's occupancy.
func (w *World) StationCongestion(sid network.StationID) (passenger.Band, error) {
	s, err := w.net.Station(sid)
	if err != nil {
		return "", err
	}
	return w.riders.Queue(sid).Congestion(s.Capacity), nil
}

// LineEfficiency is a derived view of how well a line is carrying riders.
type LineEfficiency struct {
	LineID            network.LineID      `json:"line_id"`
	TotalPassengers   int                 `json:"total_passengers"` // currently aboard
	AverageLoadFactor float64             `json:"average_load_factor"`
	CongestionPoints  []network.StationID `json:"congestion_points"`
	TransferStations  []network.StationID `json:"transfer_stations"`
	DepartureLoad     metrics.Summary     `json:"departure_load"`
}

// LineEfficiency reports load and hotspots for line lid.
func (w *World) LineEfficiency(lid network.LineID) (LineEfficiency, error) {
	l, err := w.net.Line(lid)
	if err != nil {
		return LineEfficiency{}, err
	}
	eff := LineEfficiency{LineID: lid}
	trains := w.trains.OnLine(lid)
	for _, t := range trains {
		eff.TotalPassengers += t.Manifest.Len()
		eff.AverageLoadFactor += t.Manifest.LoadFactor()
	}
	if len(trains) > 0 {
		eff.AverageLoadFactor /= float64(len(trains))
	}
	for _, sid := range l.Stations {
		s := w.net.MustStation(sid)
		if w.riders.Queue(sid).Congestion(s.Capacity).Congested() {
			eff.CongestionPoints = append(eff.CongestionPoints, sid)
		}
		if w.net.IsTransferStation(sid) {
			eff.TransferStations = append(eff.TransferStations, sid)
		}
	}
	if r, ok := w.loads[lid]; ok {
		eff.DepartureLoad = r.Summary()
	}
	return eff, nil
}

// SystemStatus is the overall health of the network.
type SystemStatus string

const (
	StatusGood      SystemStatus = "good"
	StatusBusy      SystemStatus = "busy"
	StatusAttention SystemStatus = "attention"
	StatusCongested SystemStatus = "congested"
)

// StationLoad is the occupancy of a station that has anyone waiting or is
// not in the low band.
type StationLoad struct {
	StationID  network.StationID `json:"station_id"`
	Waiting    int               `json:"waiting"`
	Transfer   int               `json:"transfer"`
	Congestion passenger.Band    `json:"congestion"`
	IsTransfer bool              `json:"is_transfer"`
}

// TransferStats aggregates dashboard data across the whole network.
type TransferStats struct {
	TotalWaiting      int                `json:"total_waiting"`
	TotalTransfer     int                `json:"total_transfer"`
	CongestedStations int                `json:"congested_stations"`
	TransferStations  int                `json:"transfer_stations"`
	Stations          []StationLoad      `json:"stations"`
	Lines             []LineEfficiency   `json:"lines"`
	Cache             planner.CacheStats `json:"cache"`
	Counters          passenger.Counters `json:"counters"`
	Status            SystemStatus       `json:"status"`
}

// TransferStats summarises queues, lines and the route cache.
func (w *World) TransferStats() TransferStats {
	var ts TransferStats
	for _, s := range w.net.Stations() {
		q := w.riders.Queue(s.ID)
		load := StationLoad{
			StationID:  s.ID,
			Waiting:    len(q.Waiting),
			Transfer:   len(q.Transfer),
			Congestion: q.Congestion(s.Capacity),
			IsTransfer: w.net.IsTransferStation(s.ID),
		}
		ts.TotalWaiting += load.Waiting
		ts.TotalTransfer += load.Transfer
		if load.Congestion.Congested() {
			ts.CongestedStations++
		}
		if load.IsTransfer {
			ts.TransferStations++
		}
		if load.Waiting > 0 || load.Transfer > 0 || load.Congestion != passenger.BandLow {
			ts.Stations = append(ts.Stations, load)
		}
	}
	for _, l := range w.net.Lines() {
		eff, _ := w.LineEfficiency(l.ID)
		ts.Lines = append(ts.Lines, eff)
	}
	ts.Cache = w.planner.Stats()
	ts.Counters = w.riders.Counters()
	switch {
	case ts.CongestedStations > 3:
		ts.Status = StatusCongested
	case ts.CongestedStations > 1:
		ts.Status = StatusAttention
	case ts.TotalWaiting+ts.TotalTransfer > 50:
		ts.Status = StatusBusy
	default:
		ts.Status = StatusGood
	}
	return ts
}

// StationView is the render state of one station.
type StationView struct {
	ID         network.StationID     `json:"station_id"`
	Pos        orb.Point             `json:"pos"`
	Shape      network.Shape         `json:"shape"`
	Size       network.Size          `json:"size"`
	Capacity   int                   `json:"capacity"`
	Waiting    int                   `json:"waiting"`
	Transfer   int                   `json:"transfer"`
	ByShape    passenger.ShapeCounts `json:"by_shape"`
	Congestion passenger.Band        `json:"congestion"`
}

// LineView is the render state of one line.
type LineView struct {
	ID       network.LineID      `json:"line_id"`
	Name     string              `json:"name"`
	Color    string              `json:"color"`
	Stations []network.StationID `json:"stations"`
	Stats    network.LineStats   `json:"stats"`
}

// TrainView is the render state of one train.
type TrainView struct {
	ID         train.ID          `json:"train_id"`
	LineID     network.LineID    `json:"line_id"`
	AtIndex    int               `json:"at_index"`
	T          float64           `json:"t"`
	Dir        train.Direction   `json:"dir"`
	State      train.State       `json:"state"`
	Pos        orb.Point         `json:"pos"`
	StationID  network.StationID `json:"station_id"` // station at AtIndex
	Passengers int               `json:"passengers"`
	Capacity   int               `json:"capacity"`
}

// Snapshot is a read-only per-tick view for renderers and feeds.
type Snapshot struct {
	SessionID string        `json:"session_id"`
	Time      float64       `json:"time"`
	Balance   float64       `json:"balance"`
	GameOver  bool          `json:"game_over"`
	Stations  []StationView `json:"stations"`
	Lines     []LineView    `json:"lines"`
	Trains    []TrainView   `json:"trains"`
}

// Snapshot captures the current render state.
func (w *World) Snapshot() Snapshot {
	snap := Snapshot{
		SessionID: w.id,
		Time:      w.time,
		Balance:   w.ledger.Balance(),
		GameOver:  w.over,
	}
	for _, s := range w.net.Stations() {
		q := w.riders.Queue(s.ID)
		snap.Stations = append(snap.Stations, StationView{
			ID:         s.ID,
			Pos:        s.Pos,
			Shape:      s.Shape,
			Size:       s.Size,
			Capacity:   s.Capacity,
			Waiting:    len(q.Waiting),
			Transfer:   len(q.Transfer),
			ByShape:    q.Tally.ByShape,
			Congestion: q.Congestion(s.Capacity),
		})
	}
	for _, l := range w.net.Lines() {
		snap.Lines = append(snap.Lines, LineView{
			ID:       l.ID,
			Name:     l.Name,
			Color:    l.Color,
			Stations: append([]network.StationID(nil), l.Stations...),
			Stats:    l.Stats,
		})
	}
	for _, t := range w.trains.Trains() {
		l, err := w.net.Line(t.LineID)
		if err != nil {
			continue
		}
		snap.Trains = append(snap.Trains, TrainView{
			ID:         t.ID,
			LineID:     t.LineID,
			AtIndex:    t.AtIndex,
			T:          t.T,
			Dir:        t.Dir,
			State:      t.State(),
			Pos:        w.trains.Position(t),
			StationID:  l.Stations[t.AtIndex],
			Passengers: t.Manifest.Len(),
			Capacity:   t.Capacity(),
		})
	}
	return snap
}
