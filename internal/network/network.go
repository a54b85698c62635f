// Package network holds the stations and lines of a transit network and the
// read queries the planner and scheduler run against them.
package network

import (
	"errors"
	"fmt"

	"github.com/paulmach/orb"
)

// StationID, LineID are dense integer identifiers handed out by the Network.
type (
	StationID int
	LineID    int
)

var (
	ErrStationNotFound   = errors.New("station not found")
	ErrLineNotFound      = errors.New("line not found")
	ErrInvalidAttachment = errors.New("invalid attachment")
	ErrLineTooShort      = errors.New("line needs at least two stations")
)

// Colors is the palette new lines cycle through.
var Colors = []string{"#e74c3c", "#3498db", "#2ecc71", "#f1c40f", "#9b59b6", "#e67e22"}

// Station is a stop passengers spawn at and travel between.
type Station struct {
	ID       StationID `json:"station_id"`
	Pos      orb.Point `json:"pos"` // canvas units
	Shape    Shape     `json:"shape"`
	Size     Size      `json:"size"`
	Capacity int       `json:"capacity"`
}

// LineStats accumulates per-line gameplay totals.
type LineStats struct {
	PassengersTransported int     `json:"passengers_transported"`
	Income                float64 `json:"income"`
}

// Line is an ordered, repeat-free sequence of stations served by trains.
type Line struct {
	ID       LineID      `json:"line_id"`
	Name     string      `json:"name"`
	Color    string      `json:"color"`
	Stations []StationID `json:"stations"`
	Stats    LineStats   `json:"stats"`
}

// IndexOf returns the position of sid on the line or -1.
func (l *Line) IndexOf(sid StationID) int {
	for i, id := range l.Stations {
		if id == sid {
			return i
		}
	}
	return -1
}

// Contains reports whether sid is on the line.
func (l *Line) Contains(sid StationID) bool { return l.IndexOf(sid) >= 0 }

// Last is the index of the final station.
func (l *Line) Last() int { return len(l.Stations) - 1 }

// Serviceable reports whether trains can run on the line.
func (l *Line) Serviceable() bool { return len(l.Stations) >= 2 }

// Network owns all stations and lines. Every mutation runs the registered
// change hooks before returning so that derived caches never outlive the
// topology they were computed from.
type Network struct {
	stations     map[StationID]*Station
	stationOrder []StationID
	lines        map[LineID]*Line
	lineOrder    []LineID
	nextID       int
	onChange     []func()
}

// New returns an empty Network.
func New() *Network {
	return &Network{
		stations: make(map[StationID]*Station),
		lines:    make(map[LineID]*Line),
		nextID:   1,
	}
}

// OnChange registers fn to be called synchronously after every mutation.
func (n *Network) OnChange(fn func()) {
	n.onChange = append(n.onChange, fn)
}

func (n *Network) changed() {
	for _, fn := range n.onChange {
		fn()
	}
}

func (n *Network) allocID() int {
	id := n.nextID
	n.nextID++
	return id
}

// NextID exposes the id counter for snapshots.
func (n *Network) NextID() int { return n.nextID }

// Station looks up a station by id.
func (n *Network) Station(id StationID) (*Station, error) {
	s, ok := n.stations[id]
	if !ok {
		return nil, fmt.Errorf("station %d: %w", id, ErrStationNotFound)
	}
	return s, nil
}

// MustStation is Station for ids that are structurally guaranteed to exist.
func (n *Network) MustStation(id StationID) *Station {
	s, ok := n.stations[id]
	if !ok {
		panic(fmt.Sprintf("network: dangling station id %d", id))
	}
	return s
}

// Stations returns every station in creation order.
func (n *Network) Stations() []*Station {
	out := make([]*Station, 0, len(n.stationOrder))
	for _, id := range n.stationOrder {
		out = append(out, n.stations[id])
	}
	return out
}

// Line looks up a line by id.
func (n *Network) Line(id LineID) (*Line, error) {
	l, ok := n.lines[id]
	if !ok {
		return nil, fmt.Errorf("line %d: %w", id, ErrLineNotFound)
	}
	return l, nil
}

// Lines returns every line in creation order.
func (n *Network) Lines() []*Line {
	out := make([]*Line, 0, len(n.lineOrder))
	for _, id := range n.lineOrder {
		out = append(out, n.lines[id])
	}
	return out
}

// Restore replaces the whole network with persisted state. On error the
// network is left unchanged.
func (n *Network) Restore(stations []Station, lines []Line, nextID int) error {
	sm := make(map[StationID]*Station, len(stations))
	var so []StationID
	for i := range stations {
		s := stations[i]
		if _, dup := sm[s.ID]; dup {
			return fmt.Errorf("station %d already exists", s.ID)
		}
		sm[s.ID] = &s
		so = append(so, s.ID)
	}
	lm := make(map[LineID]*Line, len(lines))
	var lo []LineID
	for i := range lines {
		l := lines[i]
		l.Stations = append([]StationID(nil), l.Stations...)
		if !l.Serviceable() {
			return fmt.Errorf("line %d: %w", l.ID, ErrLineTooShort)
		}
		for _, sid := range l.Stations {
			if _, ok := sm[sid]; !ok {
				return fmt.Errorf("line %d references station %d: %w", l.ID, sid, ErrStationNotFound)
			}
		}
		lm[l.ID] = &l
		lo = append(lo, l.ID)
	}
	n.stations, n.stationOrder = sm, so
	n.lines, n.lineOrder = lm, lo
	n.nextID = nextID
	n.changed()
	return nil
}
