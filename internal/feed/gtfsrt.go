package feed

import (
	"fmt"
	"time"

	gtfsrtpb "github.com/MobilityData/gtfs-realtime-bindings/golang/gtfs"
	"google.golang.org/protobuf/proto"

	"github.com/cxd309/metro-engine/internal/engine"
	"github.com/cxd309/metro-engine/internal/network"
	"github.com/cxd309/metro-engine/internal/train"
)

func StopID(sid network.StationID) string { return fmt.Sprintf("station-%d", sid) }
func RouteID(lid network.LineID) string   { return fmt.Sprintf("line-%d", lid) }
func VehicleID(id train.ID) string        { return fmt.Sprintf("train-%d", id) }

// VehiclePositions builds a full-dataset GTFS-RT feed with one VehiclePosition
// per train in snap.
func VehiclePositions(snap engine.Snapshot, proj Projection, now time.Time) *gtfsrtpb.FeedMessage {
	lines := make(map[network.LineID]engine.LineView, len(snap.Lines))
	for _, l := range snap.Lines {
		lines[l.ID] = l
	}

	fm := &gtfsrtpb.FeedMessage{
		Header: &gtfsrtpb.FeedHeader{
			GtfsRealtimeVersion: proto.String("2.0"),
			Incrementality:      gtfsrtpb.FeedHeader_FULL_DATASET.Enum(),
			Timestamp:           proto.Uint64(uint64(now.Unix())),
		},
	}
	for _, t := range snap.Trains {
		l, ok := lines[t.LineID]
		if !ok {
			continue
		}
		pos := proj.ToWGS84(t.Pos)
		status := gtfsrtpb.VehiclePosition_IN_TRANSIT_TO
		stop := nextStation(l, t)
		if t.State == train.StateDwelling {
			status = gtfsrtpb.VehiclePosition_STOPPED_AT
			stop = t.StationID
		}
		direction := uint32(0)
		if t.Dir == train.Reverse {
			direction = 1
		}
		load := 0.0
		if t.Capacity > 0 {
			load = float64(t.Passengers) / float64(t.Capacity)
		}

		fm.Entity = append(fm.Entity, &gtfsrtpb.FeedEntity{
			Id: proto.String(VehicleID(t.ID)),
			Vehicle: &gtfsrtpb.VehiclePosition{
				Trip: &gtfsrtpb.TripDescriptor{
					RouteId:     proto.String(RouteID(t.LineID)),
					DirectionId: proto.Uint32(direction),
				},
				Vehicle: &gtfsrtpb.VehicleDescriptor{
					Id:    proto.String(VehicleID(t.ID)),
					Label: proto.String(fmt.Sprintf("%s train %d", l.Name, t.ID)),
				},
				Position: &gtfsrtpb.Position{
					Latitude:  proto.Float32(float32(pos.Lat())),
					Longitude: proto.Float32(float32(pos.Lon())),
				},
				StopId:          proto.String(StopID(stop)),
				CurrentStatus:   status.Enum(),
				Timestamp:       proto.Uint64(uint64(now.Unix())),
				OccupancyStatus: occupancy(load).Enum(),
			},
		})
	}
	return fm
}

// Marshal encodes a feed message to protobuf bytes.
func Marshal(fm *gtfsrtpb.FeedMessage) ([]byte, error) {
	b, err := proto.Marshal(fm)
	if err != nil {
		return nil, fmt.Errorf("marshaling feed: %w", err)
	}
	return b, nil
}

func nextStation(l engine.LineView, t engine.TrainView) network.StationID {
	j := t.AtIndex + int(t.Dir)
	if j < 0 || j >= len(l.Stations) {
		return t.StationID
	}
	return l.Stations[j]
}

func occupancy(load float64) gtfsrtpb.VehiclePosition_OccupancyStatus {
	switch {
	case load <= 0:
		return gtfsrtpb.VehiclePosition_EMPTY
	case load < 0.5:
		return gtfsrtpb.VehiclePosition_MANY_SEATS_AVAILABLE
	case load < 0.8:
		return gtfsrtpb.VehiclePosition_FEW_SEATS_AVAILABLE
	case load < 1:
		return gtfsrtpb.VehiclePosition_STANDING_ROOM_ONLY
	default:
		return gtfsrtpb.VehiclePosition_FULL
	}
}
