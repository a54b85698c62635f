package api

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strconv"
	"strings"
	"testing"
	"time"

	gtfsrtpb "github.com/MobilityData/gtfs-realtime-bindings/golang/gtfs"
	"github.com/gorilla/websocket"
	"github.com/paulmach/orb"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/protobuf/proto"

	"github.com/cxd309/metro-engine/internal/engine"
	"github.com/cxd309/metro-engine/internal/feed"
	"github.com/cxd309/metro-engine/internal/network"
	"github.com/cxd309/metro-engine/internal/store"
)

type fixture struct {
	srv      *Server
	handler  http.Handler
	stations []network.StationID
	line     network.LineID
}

func newFixture(t *testing.T, withStore bool) *fixture {
	t.Helper()
	cfg := engine.DefaultConfig()
	cfg.Quiet = true
	w, err := engine.New(cfg)
	require.NoError(t, err)

	f := &fixture{}
	for i, p := range []orb.Point{{100, 100}, {300, 100}, {300, 300}, {500, 300}} {
		s := w.AddStation(p, network.Shape(i), network.Medium)
		f.stations = append(f.stations, s.ID)
	}
	l, err := w.CreateLine(f.stations[0], f.stations[1], "", true)
	require.NoError(t, err)
	f.line = l.ID

	hub := NewHub(nil)
	f.srv = &Server{
		Runner:     NewRunner(w, hub, 100*time.Millisecond),
		Hub:        hub,
		Projection: feed.DefaultProjection,
	}
	if withStore {
		s, err := store.OpenSQLite(context.Background(), filepath.Join(t.TempDir(), "metro.db"))
		require.NoError(t, err)
		t.Cleanup(func() { s.Close() })
		f.srv.Store = s
	}
	f.handler = f.srv.Router([]string{"*"})
	return f
}

func (f *fixture) do(t *testing.T, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var rd io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		require.NoError(t, err)
		rd = bytes.NewReader(b)
	}
	req := httptest.NewRequest(method, path, rd)
	rec := httptest.NewRecorder()
	f.handler.ServeHTTP(rec, req)
	return rec
}

func decodeBody[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v))
	return v
}

func TestHealthAndSnapshot(t *testing.T) {
	f := newFixture(t, false)

	rec := f.do(t, http.MethodGet, "/health", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ok", decodeBody[map[string]any](t, rec)["status"])

	rec = f.do(t, http.MethodGet, "/api/snapshot", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	snap := decodeBody[engine.Snapshot](t, rec)
	assert.Len(t, snap.Stations, 4)
	assert.Len(t, snap.Lines, 1)
	assert.Len(t, snap.Trains, 1)
	assert.Equal(t, 500.0, snap.Balance)
}

func TestCreateLineIsCostGated(t *testing.T) {
	f := newFixture(t, false)
	s := f.stations

	rec := f.do(t, http.MethodPost, "/api/lines", CreateLineRequest{From: s[1], To: s[2]})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	assert.Equal(t, []network.StationID{s[1], s[2]}, decodeBody[network.Line](t, rec).Stations)

	rec = f.do(t, http.MethodPost, "/api/lines", CreateLineRequest{From: s[2], To: s[3]})
	require.Equal(t, http.StatusCreated, rec.Code)

	rec = f.do(t, http.MethodPost, "/api/lines", CreateLineRequest{From: s[0], To: s[3]})
	assert.Equal(t, http.StatusPaymentRequired, rec.Code)

	econ := decodeBody[EconomyResponse](t, f.do(t, http.MethodGet, "/api/economy", nil))
	assert.Equal(t, 100.0, econ.Balance)
	assert.Len(t, econ.Transactions, 2)
	assert.Equal(t, "flat", econ.FarePolicy)

	rec = f.do(t, http.MethodPost, "/api/lines", CreateLineRequest{From: s[0], To: 999})
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestLineEdits(t *testing.T) {
	f := newFixture(t, false)
	s := f.stations
	lid := f.line
	path := func(suffix string) string {
		return "/api/lines/" + strconv.Itoa(int(lid)) + suffix
	}

	rec := f.do(t, http.MethodPost, path("/extend"), ExtendRequest{From: s[1], To: s[2]})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, []network.StationID{s[0], s[1], s[2]}, decodeBody[network.Line](t, rec).Stations)

	rec = f.do(t, http.MethodPost, path("/extend"), ExtendRequest{From: s[2], To: s[0]})
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec = f.do(t, http.MethodGet, path("/efficiency"), nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, lid, decodeBody[engine.LineEfficiency](t, rec).LineID)

	rec = f.do(t, http.MethodPost, path("/upgrade"), nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = f.do(t, http.MethodPost, path("/split"), SplitRequest{Segment: 0})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, decodeBody[SplitResponse](t, rec).Lines, "a two-station half removes the line")

	rec = f.do(t, http.MethodGet, path("/efficiency"), nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	rec = f.do(t, http.MethodGet, "/api/lines/abc/efficiency", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestRemoveLine(t *testing.T) {
	f := newFixture(t, false)
	path := "/api/lines/" + strconv.Itoa(int(f.line))

	assert.Equal(t, http.StatusNoContent, f.do(t, http.MethodDelete, path, nil).Code)
	assert.Equal(t, http.StatusNotFound, f.do(t, http.MethodDelete, path, nil).Code)

	snap := decodeBody[engine.Snapshot](t, f.do(t, http.MethodGet, "/api/snapshot", nil))
	assert.Empty(t, snap.Lines)
	assert.Empty(t, snap.Trains)
}

func TestStations(t *testing.T) {
	f := newFixture(t, false)

	x, y := 450.0, 650.0
	rec := f.do(t, http.MethodPost, "/api/stations", StationRequest{X: &x, Y: &y, Shape: network.Star})
	require.Equal(t, http.StatusCreated, rec.Code)
	st := decodeBody[network.Station](t, rec)
	assert.Equal(t, network.Star, st.Shape)
	assert.Equal(t, network.Medium.Capacity(), st.Capacity)

	rec = f.do(t, http.MethodGet, "/api/stations/"+strconv.Itoa(int(st.ID)), nil)
	require.Equal(t, http.StatusOK, rec.Code)
	view := decodeBody[engine.StationView](t, rec)
	assert.Equal(t, st.ID, view.ID)

	assert.Equal(t, http.StatusNotFound, f.do(t, http.MethodGet, "/api/stations/999", nil).Code)
}

func TestFeeds(t *testing.T) {
	f := newFixture(t, false)
	f.srv.Runner.Tick()

	rec := f.do(t, http.MethodGet, "/gtfs-rt/vehicle-positions.pb", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/x-protobuf", rec.Header().Get("Content-Type"))
	var fm gtfsrtpb.FeedMessage
	require.NoError(t, proto.Unmarshal(rec.Body.Bytes(), &fm))
	assert.Len(t, fm.Entity, 1)

	rec = f.do(t, http.MethodGet, "/api/network.geojson", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/geo+json", rec.Header().Get("Content-Type"))
	assert.Contains(t, rec.Body.String(), `"FeatureCollection"`)

	rec = f.do(t, http.MethodGet, "/api/transfer-stats", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, engine.StatusGood, decodeBody[engine.TransferStats](t, rec).Status)
}

func TestSaveAndRestore(t *testing.T) {
	f := newFixture(t, true)

	rec := f.do(t, http.MethodPost, "/api/save", nil)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	id := decodeBody[map[string]string](t, rec)["id"]
	require.NotEmpty(t, id)

	require.Equal(t, http.StatusNoContent, f.do(t, http.MethodDelete, "/api/lines/"+strconv.Itoa(int(f.line)), nil).Code)

	rec = f.do(t, http.MethodGet, "/api/snapshots", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	list := decodeBody[[]store.SnapshotInfo](t, rec)
	require.Len(t, list, 1)
	assert.Equal(t, id, list[0].ID)

	rec = f.do(t, http.MethodPost, "/api/snapshots/"+id+"/restore", nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	snap := decodeBody[engine.Snapshot](t, rec)
	assert.Len(t, snap.Lines, 1)
	assert.Len(t, snap.Trains, 1)

	rec = f.do(t, http.MethodPost, "/api/snapshots/00000000-0000-0000-0000-000000000000/restore", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestPersistenceDisabled(t *testing.T) {
	f := newFixture(t, false)
	assert.Equal(t, http.StatusServiceUnavailable, f.do(t, http.MethodPost, "/api/save", nil).Code)
	assert.Equal(t, http.StatusServiceUnavailable, f.do(t, http.MethodGet, "/api/snapshots", nil).Code)
}

func TestWebsocketStreamsTicks(t *testing.T) {
	f := newFixture(t, false)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go f.srv.Hub.Run(ctx)

	ts := httptest.NewServer(f.handler)
	defer ts.Close()

	conn, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(ts.URL, "http")+"/ws", nil)
	require.NoError(t, err)
	defer conn.Close()
	conn.SetReadDeadline(time.Now().Add(5 * time.Second))

	var first engine.Snapshot
	require.NoError(t, conn.ReadJSON(&first))
	assert.Zero(t, first.Time)

	// The subscriber registers asynchronously; keep ticking until a tick
	// arrives.
	var next engine.Snapshot
	got := make(chan error, 1)
	go func() { got <- conn.ReadJSON(&next) }()
	deadline := time.After(5 * time.Second)
	for {
		f.srv.Runner.Tick()
		select {
		case err := <-got:
			require.NoError(t, err)
			assert.Greater(t, next.Time, 0.0)
			return
		case <-deadline:
			t.Fatal("no tick received")
		case <-time.After(20 * time.Millisecond):
		}
	}
}
