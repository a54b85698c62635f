package network

// Attachment says where a station joins an existing line. It is one of
// Endpoint or Middle.
type Attachment interface {
	isAttachment()
}

// Side selects a line terminus.
type Side uint8

const (
	AtStart Side = iota
	AtEnd
)

// Endpoint prepends or appends the station.
type Endpoint struct {
	Side Side
}

// Middle inserts the station before stations[InsertIndex].
type Middle struct {
	InsertIndex int
}

func (Endpoint) isAttachment() {}
func (Middle) isAttachment()   {}

// AttachFrom picks the attachment for drawing an edge from the on-line
// station from to a new station: termini extend the line outward, interior
// stations splice the new one in right after themselves.
func AttachFrom(l *Line, from StationID) (Attachment, bool) {
	i := l.IndexOf(from)
	switch {
	case i < 0:
		return nil, false
	case i == 0:
		return Endpoint{Side: AtStart}, true
	case i == l.Last():
		return Endpoint{Side: AtEnd}, true
	default:
		return Middle{InsertIndex: i + 1}, true
	}
}
