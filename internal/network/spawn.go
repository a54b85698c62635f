package network

import (
	"math/rand/v2"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/planar"
)

// SpawnArea is the region auto-spawned stations are placed in.
var SpawnArea = orb.Bound{Min: orb.Point{80, 80}, Max: orb.Point{520, 720}}

// IsPositionFree reports whether p is at least minDistance from every station.
func (n *Network) IsPositionFree(p orb.Point, minDistance float64) bool {
	for _, s := range n.stations {
		if planar.Distance(s.Pos, p) < minDistance {
			return false
		}
	}
	return true
}

// RandomFreePosition samples up to retries points in area and returns the
// first one that IsPositionFree accepts.
func (n *Network) RandomFreePosition(rng *rand.Rand, area orb.Bound, minDistance float64, retries int) (orb.Point, bool) {
	for range retries {
		p := orb.Point{
			area.Min.X() + rng.Float64()*(area.Max.X()-area.Min.X()),
			area.Min.Y() + rng.Float64()*(area.Max.Y()-area.Min.Y()),
		}
		if n.IsPositionFree(p, minDistance) {
			return p, true
		}
	}
	return orb.Point{}, false
}

// RandomShape picks a shape uniformly.
func RandomShape(rng *rand.Rand) Shape {
	return Shape(rng.IntN(NumShapes))
}

// RandomSize picks small, medium or large with weights 0.5, 0.3, 0.2.
func RandomSize(rng *rand.Rand) Size {
	r := rng.Float64()
	switch {
	case r < 0.5:
		return Small
	case r < 0.8:
		return Medium
	default:
		return Large
	}
}
