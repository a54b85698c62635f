package network

import (
	"fmt"
	"slices"

	"github.com/paulmach/orb"
)

// AddStation creates a station at pos.
func (n *Network) AddStation(pos orb.Point, shape Shape, size Size) *Station {
	s := &Station{
		ID:       StationID(n.allocID()),
		Pos:      pos,
		Shape:    shape,
		Size:     size,
		Capacity: size.Capacity(),
	}
	n.stations[s.ID] = s
	n.stationOrder = append(n.stationOrder, s.ID)
	n.changed()
	return s
}

// AddLine creates a two-station line from a to b. An empty name is replaced by
// the lowest free "Line N".
func (n *Network) AddLine(a, b StationID, name string) (*Line, error) {
	if a == b {
		return nil, fmt.Errorf("line from station %d to itself: %w", a, ErrInvalidAttachment)
	}
	for _, id := range []StationID{a, b} {
		if _, err := n.Station(id); err != nil {
			return nil, err
		}
	}
	if name == "" {
		name = fmt.Sprintf("Line %d", n.NextLineNumber())
	}
	l := n.insertLine(name, Colors[len(n.lineOrder)%len(Colors)], []StationID{a, b})
	n.changed()
	return l, nil
}

func (n *Network) insertLine(name, color string, stations []StationID) *Line {
	l := &Line{
		ID:       LineID(n.allocID()),
		Name:     name,
		Color:    color,
		Stations: stations,
	}
	n.lines[l.ID] = l
	n.lineOrder = append(n.lineOrder, l.ID)
	return l
}

// NextLineNumber returns the smallest positive N not used by a "Line N" name.
func (n *Network) NextLineNumber() int {
	used := make(map[int]bool)
	for _, l := range n.lines {
		if num, ok := lineNumber(l.Name); ok {
			used[num] = true
		}
	}
	for i := 1; ; i++ {
		if !used[i] {
			return i
		}
	}
}

func lineNumber(name string) (int, bool) {
	var num int
	if _, err := fmt.Sscanf(name, "Line %d", &num); err != nil {
		return 0, false
	}
	return num, true
}

// CanExtend reports whether line can be extended along the edge from→to:
// exactly one of the two stations must already be on it.
func (n *Network) CanExtend(id LineID, from, to StationID) bool {
	l, ok := n.lines[id]
	if !ok {
		return false
	}
	return l.Contains(from) != l.Contains(to)
}

// ExtendableLines lists the lines CanExtend accepts for from→to.
func (n *Network) ExtendableLines(from, to StationID) []*Line {
	var out []*Line
	for _, l := range n.Lines() {
		if n.CanExtend(l.ID, from, to) {
			out = append(out, l)
		}
	}
	return out
}

// ExtendLine attaches station sid to the line at the given attachment point.
func (n *Network) ExtendLine(id LineID, sid StationID, at Attachment) error {
	l, err := n.Line(id)
	if err != nil {
		return err
	}
	if _, err := n.Station(sid); err != nil {
		return err
	}
	if l.Contains(sid) {
		return fmt.Errorf("station %d already on line %d: %w", sid, id, ErrInvalidAttachment)
	}
	switch a := at.(type) {
	case Endpoint:
		if a.Side == AtStart {
			l.Stations = slices.Insert(l.Stations, 0, sid)
		} else {
			l.Stations = append(l.Stations, sid)
		}
	case Middle:
		if a.InsertIndex <= 0 || a.InsertIndex >= len(l.Stations) {
			return fmt.Errorf("insert index %d on line %d: %w", a.InsertIndex, id, ErrInvalidAttachment)
		}
		l.Stations = slices.Insert(l.Stations, a.InsertIndex, sid)
	default:
		return fmt.Errorf("attachment %T: %w", at, ErrInvalidAttachment)
	}
	n.changed()
	return nil
}

// RemoveLine deletes a line. Callers owning trains must drop the line's
// trains in the same operation.
func (n *Network) RemoveLine(id LineID) error {
	if _, ok := n.lines[id]; !ok {
		return fmt.Errorf("line %d: %w", id, ErrLineNotFound)
	}
	n.dropLine(id)
	n.changed()
	return nil
}

func (n *Network) dropLine(id LineID) {
	delete(n.lines, id)
	n.lineOrder = slices.DeleteFunc(n.lineOrder, func(x LineID) bool { return x == id })
}

// Split is the outcome of SplitLine. First and Second are nil when the line
// was too short to split and was removed instead.
type Split struct {
	Original LineID
	Index    int // segment index the line was cut at
	First    *Line
	Second   *Line
}

// SplitLine cuts the segment between stations[seg] and stations[seg+1]. Both
// halves become new lines; if either half would have fewer than two stations
// the whole line is removed.
func (n *Network) SplitLine(id LineID, seg int) (Split, error) {
	l, err := n.Line(id)
	if err != nil {
		return Split{}, err
	}
	if seg < 0 || seg >= l.Last() {
		return Split{}, fmt.Errorf("segment %d on line %d: %w", seg, id, ErrInvalidAttachment)
	}
	res := Split{Original: id, Index: seg}
	first := slices.Clone(l.Stations[:seg+1])
	second := slices.Clone(l.Stations[seg+1:])
	n.dropLine(id)
	if len(first) >= 2 && len(second) >= 2 {
		var name1, name2 string
		if num, ok := lineNumber(l.Name); ok {
			name1, name2 = fmt.Sprintf("Line %dA", num), fmt.Sprintf("Line %dB", num)
		} else {
			num := n.NextLineNumber()
			name1, name2 = fmt.Sprintf("Line %d", num), fmt.Sprintf("Line %d", num+1)
		}
		res.First = n.insertLine(name1, l.Color, first)
		res.Second = n.insertLine(name2, Colors[len(n.lineOrder)%len(Colors)], second)
		res.First.Stats = l.Stats
	}
	n.changed()
	return res, nil
}

// LineBetween returns the two-station line joining a and b in either order.
func (n *Network) LineBetween(a, b StationID) *Line {
	for _, l := range n.Lines() {
		if len(l.Stations) != 2 {
			continue
		}
		x, y := l.Stations[0], l.Stations[1]
		if (x == a && y == b) || (x == b && y == a) {
			return l
		}
	}
	return nil
}

// LinesServing returns the lines that stop at sid.
func (n *Network) LinesServing(sid StationID) []*Line {
	var out []*Line
	for _, l := range n.Lines() {
		if l.Contains(sid) {
			out = append(out, l)
		}
	}
	return out
}

// StationLineCount is the number of lines serving sid.
func (n *Network) StationLineCount(sid StationID) int {
	c := 0
	for _, l := range n.lines {
		if l.Contains(sid) {
			c++
		}
	}
	return c
}

// IsTransferStation reports whether more than one line serves sid.
func (n *Network) IsTransferStation(sid StationID) bool {
	return n.StationLineCount(sid) > 1
}

// DistanceOnLine is the hop count between a and b along line id. ok is false
// when either station is not on the line.
func (n *Network) DistanceOnLine(id LineID, a, b StationID) (int, bool) {
	l, found := n.lines[id]
	if !found {
		return 0, false
	}
	i, j := l.IndexOf(a), l.IndexOf(b)
	if i < 0 || j < 0 {
		return 0, false
	}
	if i > j {
		return i - j, true
	}
	return j - i, true
}

// SharedLine returns the first line, in creation order, that serves both a
// and b.
func (n *Network) SharedLine(a, b StationID) *Line {
	for _, l := range n.Lines() {
		if l.Contains(a) && l.Contains(b) {
			return l
		}
	}
	return nil
}
