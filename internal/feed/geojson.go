package feed

import (
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"

	"github.com/cxd309/metro-engine/internal/engine"
	"github.com/cxd309/metro-engine/internal/network"
)

// GeoJSON renders stations, lines and trains of snap as a feature
// collection. Every feature carries a "kind" property.
func GeoJSON(snap engine.Snapshot, proj Projection) *geojson.FeatureCollection {
	fc := geojson.NewFeatureCollection()
	pos := make(map[network.StationID]orb.Point, len(snap.Stations))

	for _, s := range snap.Stations {
		p := proj.ToWGS84(s.Pos)
		pos[s.ID] = p
		f := geojson.NewFeature(p)
		f.ID = StopID(s.ID)
		f.Properties["kind"] = "station"
		f.Properties["station_id"] = int(s.ID)
		f.Properties["shape"] = s.Shape.String()
		f.Properties["size"] = string(s.Size)
		f.Properties["waiting"] = s.Waiting
		f.Properties["transfer"] = s.Transfer
		f.Properties["congestion"] = string(s.Congestion)
		fc.Append(f)
	}

	for _, l := range snap.Lines {
		ls := make(orb.LineString, 0, len(l.Stations))
		for _, sid := range l.Stations {
			ls = append(ls, pos[sid])
		}
		f := geojson.NewFeature(ls)
		f.ID = RouteID(l.ID)
		f.Properties["kind"] = "line"
		f.Properties["line_id"] = int(l.ID)
		f.Properties["name"] = l.Name
		f.Properties["color"] = l.Color
		f.Properties["passengers_transported"] = l.Stats.PassengersTransported
		fc.Append(f)
	}

	for _, t := range snap.Trains {
		f := geojson.NewFeature(proj.ToWGS84(t.Pos))
		f.ID = VehicleID(t.ID)
		f.Properties["kind"] = "train"
		f.Properties["train_id"] = int(t.ID)
		f.Properties["line_id"] = int(t.LineID)
		f.Properties["state"] = string(t.State)
		f.Properties["passengers"] = t.Passengers
		f.Properties["capacity"] = t.Capacity
		fc.Append(f)
	}
	return fc
}
