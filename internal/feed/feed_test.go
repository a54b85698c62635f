package feed

import (
	"encoding/json"
	"testing"
	"time"

	gtfsrtpb "github.com/MobilityData/gtfs-realtime-bindings/golang/gtfs"
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/protobuf/proto"

	"github.com/cxd309/metro-engine/internal/engine"
	"github.com/cxd309/metro-engine/internal/network"
)

func runningWorld(t *testing.T) *engine.World {
	t.Helper()
	cfg := engine.DefaultConfig()
	cfg.Quiet = true
	w, err := engine.New(cfg)
	require.NoError(t, err)
	a := w.AddStation(orb.Point{100, 100}, network.Circle, network.Small)
	b := w.AddStation(orb.Point{300, 100}, network.Triangle, network.Medium)
	c := w.AddStation(orb.Point{300, 300}, network.Square, network.Large)
	_, err = w.CreateLine(a.ID, b.ID, "", true)
	require.NoError(t, err)
	_, err = w.CreateLine(b.ID, c.ID, "", true)
	require.NoError(t, err)
	return w
}

func TestProjectionOrigin(t *testing.T) {
	p := DefaultProjection.ToWGS84(orb.Point{0, 0})
	assert.InDelta(t, DefaultProjection.Origin.Lon(), p.Lon(), 1e-9)
	assert.InDelta(t, DefaultProjection.Origin.Lat(), p.Lat(), 1e-9)

	east := DefaultProjection.ToWGS84(orb.Point{100, 0})
	south := DefaultProjection.ToWGS84(orb.Point{0, 100})
	assert.Greater(t, east.Lon(), p.Lon())
	assert.Less(t, south.Lat(), p.Lat())
}

func TestVehiclePositions(t *testing.T) {
	w := runningWorld(t)
	w.Update(0.1)
	now := time.Unix(1700000000, 0)

	fm := VehiclePositions(w.Snapshot(), DefaultProjection, now)
	require.Len(t, fm.Entity, 2)
	assert.Equal(t, "2.0", fm.GetHeader().GetGtfsRealtimeVersion())
	assert.Equal(t, uint64(now.Unix()), fm.GetHeader().GetTimestamp())

	vp := fm.Entity[0].GetVehicle()
	assert.Equal(t, "train-1", vp.GetVehicle().GetId())
	assert.Equal(t, "line-4", vp.GetTrip().GetRouteId(), "stations and lines share one id counter")
	assert.Equal(t, gtfsrtpb.VehiclePosition_IN_TRANSIT_TO, vp.GetCurrentStatus())
	assert.Equal(t, "station-2", vp.GetStopId())
	assert.Equal(t, gtfsrtpb.VehiclePosition_EMPTY, vp.GetOccupancyStatus())

	b, err := Marshal(fm)
	require.NoError(t, err)
	var decoded gtfsrtpb.FeedMessage
	require.NoError(t, proto.Unmarshal(b, &decoded))
	assert.Len(t, decoded.Entity, 2)
}

func TestVehiclePositionsStoppedAt(t *testing.T) {
	w := runningWorld(t)
	for range 41 {
		w.Update(0.1)
	}
	fm := VehiclePositions(w.Snapshot(), DefaultProjection, time.Now())
	vp := fm.Entity[0].GetVehicle()
	assert.Equal(t, gtfsrtpb.VehiclePosition_STOPPED_AT, vp.GetCurrentStatus())
	assert.Equal(t, "station-2", vp.GetStopId())
}

func TestOccupancyBands(t *testing.T) {
	tests := []struct {
		load float64
		want gtfsrtpb.VehiclePosition_OccupancyStatus
	}{
		{0, gtfsrtpb.VehiclePosition_EMPTY},
		{0.3, gtfsrtpb.VehiclePosition_MANY_SEATS_AVAILABLE},
		{0.6, gtfsrtpb.VehiclePosition_FEW_SEATS_AVAILABLE},
		{0.9, gtfsrtpb.VehiclePosition_STANDING_ROOM_ONLY},
		{1, gtfsrtpb.VehiclePosition_FULL},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, occupancy(tt.load), "load %v", tt.load)
	}
}

func TestGeoJSON(t *testing.T) {
	w := runningWorld(t)
	fc := GeoJSON(w.Snapshot(), DefaultProjection)

	kinds := map[string]int{}
	for _, f := range fc.Features {
		kinds[f.Properties.MustString("kind")]++
	}
	assert.Equal(t, map[string]int{"station": 3, "line": 2, "train": 2}, kinds)

	b, err := json.Marshal(fc)
	require.NoError(t, err)
	back, err := geojson.UnmarshalFeatureCollection(b)
	require.NoError(t, err)
	require.Len(t, back.Features, 7)
	ls, ok := back.Features[3].Geometry.(orb.LineString)
	require.True(t, ok)
	assert.Len(t, ls, 2)
}
