// Package feed exports world snapshots in formats real transit tooling
// understands: GTFS-Realtime vehicle positions and GeoJSON.
package feed

import (
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/project"
)

// Projection places the canvas on the globe. Canvas x grows east and y grows
// south of Origin, a WGS84 lon/lat point, at MetersPerUnit metres per unit.
type Projection struct {
	Origin        orb.Point
	MetersPerUnit float64
}

// DefaultProjection anchors the canvas at Plaça de Catalunya with ten metres
// per canvas unit.
var DefaultProjection = Projection{Origin: orb.Point{2.1700, 41.3870}, MetersPerUnit: 10}

// ToWGS84 converts a canvas point to lon/lat.
func (p Projection) ToWGS84(c orb.Point) orb.Point {
	o := project.Point(p.Origin, project.WGS84.ToMercator)
	m := orb.Point{o.X() + c.X()*p.MetersPerUnit, o.Y() - c.Y()*p.MetersPerUnit}
	return project.Point(m, project.Mercator.ToWGS84)
}
