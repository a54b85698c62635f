package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"slices"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/paulmach/orb"

	"github.com/cxd309/metro-engine/internal/economy"
	"github.com/cxd309/metro-engine/internal/engine"
	"github.com/cxd309/metro-engine/internal/feed"
	"github.com/cxd309/metro-engine/internal/network"
	"github.com/cxd309/metro-engine/internal/store"
)

// ErrorResponse is the JSON body of every failed request.
type ErrorResponse struct {
	Error string `json:"error"`
}

// Server holds the handlers' dependencies. Store may be nil, in which case
// the save and restore routes answer 503.
type Server struct {
	Runner     *Runner
	Hub        *Hub
	Store      store.Store
	Projection feed.Projection
}

// Router builds the HTTP routes.
func (s *Server) Router(allowedOrigins []string) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   allowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"*"},
		AllowCredentials: true,
	}))

	r.Get("/health", s.health)
	r.Get("/ws", s.serveWS)
	r.Get("/gtfs-rt/vehicle-positions.pb", s.vehiclePositions)

	r.Route("/api", func(r chi.Router) {
		r.Get("/snapshot", s.snapshot)
		r.Get("/network.geojson", s.geoJSON)
		r.Get("/transfer-stats", s.transferStats)
		r.Get("/economy", s.economy)

		r.Post("/stations", s.addStation)
		r.Get("/stations/{id}", s.station)

		r.Post("/lines", s.createLine)
		r.Get("/lines/{id}/efficiency", s.lineEfficiency)
		r.Post("/lines/{id}/extend", s.extendLine)
		r.Post("/lines/{id}/split", s.splitLine)
		r.Post("/lines/{id}/trains", s.buyTrain)
		r.Post("/lines/{id}/upgrade", s.upgradeCapacity)
		r.Delete("/lines/{id}", s.removeLine)

		r.Post("/save", s.save)
		r.Get("/snapshots", s.listSnapshots)
		r.Post("/snapshots/{id}/restore", s.restore)
	})
	return r
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, ErrorResponse{Error: msg})
}

// statusFor maps engine errors onto HTTP status codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, network.ErrStationNotFound),
		errors.Is(err, network.ErrLineNotFound),
		errors.Is(err, store.ErrSnapshotNotFound):
		return http.StatusNotFound
	case errors.Is(err, engine.ErrInsufficientFunds):
		return http.StatusPaymentRequired
	case errors.Is(err, network.ErrInvalidAttachment),
		errors.Is(err, network.ErrLineTooShort),
		errors.Is(err, engine.ErrNoTrains):
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

func writeEngineError(w http.ResponseWriter, err error) {
	writeError(w, statusFor(err), err.Error())
}

func pathID(w http.ResponseWriter, r *http.Request) (int, bool) {
	id, err := strconv.Atoi(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "id must be an integer")
		return 0, false
	}
	return id, true
}

func decode(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return false
	}
	return true
}

func (s *Server) health(w http.ResponseWriter, r *http.Request) {
	var simTime float64
	var over bool
	s.Runner.Do(func(wld *engine.World) error {
		simTime, over = wld.Time(), wld.GameOver()
		return nil
	})
	writeJSON(w, http.StatusOK, map[string]any{
		"status":    "ok",
		"sim_time":  simTime,
		"game_over": over,
		"store":     s.Store != nil,
		"timestamp": time.Now().UTC(),
	})
}

func (s *Server) serveWS(w http.ResponseWriter, r *http.Request) {
	first, err := json.Marshal(s.Runner.Snapshot())
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.Hub.ServeWS(w, r, first)
}

func (s *Server) snapshot(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.Runner.Snapshot())
}

func (s *Server) geoJSON(w http.ResponseWriter, r *http.Request) {
	fc := feed.GeoJSON(s.Runner.Snapshot(), s.Projection)
	b, err := fc.MarshalJSON()
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	w.Header().Set("Content-Type", "application/geo+json")
	w.Write(b)
}

func (s *Server) vehiclePositions(w http.ResponseWriter, r *http.Request) {
	b, err := feed.Marshal(feed.VehiclePositions(s.Runner.Snapshot(), s.Projection, time.Now()))
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	w.Header().Set("Content-Type", "application/x-protobuf")
	w.Write(b)
}

func (s *Server) transferStats(w http.ResponseWriter, r *http.Request) {
	var ts engine.TransferStats
	s.Runner.Do(func(wld *engine.World) error {
		ts = wld.TransferStats()
		return nil
	})
	writeJSON(w, http.StatusOK, ts)
}

// EconomyResponse is the body of GET /api/economy.
type EconomyResponse struct {
	Balance      float64               `json:"balance"`
	TotalIncome  float64               `json:"total_income"`
	TotalExpense float64               `json:"total_expense"`
	Infinite     bool                  `json:"infinite"`
	FarePolicy   string                `json:"fare_policy"`
	Transactions []economy.Transaction `json:"transactions"`
}

func (s *Server) economy(w http.ResponseWriter, r *http.Request) {
	var resp EconomyResponse
	s.Runner.Do(func(wld *engine.World) error {
		st := wld.Ledger().State()
		resp = EconomyResponse{
			Balance:      st.Balance,
			TotalIncome:  st.TotalIncome,
			TotalExpense: st.TotalExpense,
			Infinite:     st.Infinite,
			FarePolicy:   wld.FarePolicy().Name(),
			Transactions: st.Transactions,
		}
		return nil
	})
	writeJSON(w, http.StatusOK, resp)
}

// StationRequest places a station. Without a position one is chosen at
// random.
type StationRequest struct {
	X     *float64      `json:"x"`
	Y     *float64      `json:"y"`
	Shape network.Shape `json:"shape"`
	Size  network.Size  `json:"size"`
}

func (s *Server) addStation(w http.ResponseWriter, r *http.Request) {
	var req StationRequest
	if !decode(w, r, &req) {
		return
	}
	var st *network.Station
	err := s.Runner.Do(func(wld *engine.World) error {
		if req.X == nil || req.Y == nil {
			var ok bool
			if st, ok = wld.AddRandomStation(); !ok {
				return errors.New("no free position for a station")
			}
			return nil
		}
		size := req.Size
		if size == "" {
			size = network.Medium
		}
		st = wld.AddStation(orb.Point{*req.X, *req.Y}, req.Shape, size)
		return nil
	})
	if err != nil {
		writeError(w, http.StatusConflict, err.Error())
		return
	}
	writeJSON(w, http.StatusCreated, st)
}

func (s *Server) station(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	for _, st := range s.Runner.Snapshot().Stations {
		if st.ID == network.StationID(id) {
			writeJSON(w, http.StatusOK, st)
			return
		}
	}
	writeError(w, http.StatusNotFound, "station not found")
}

// CreateLineRequest builds a two-station line.
type CreateLineRequest struct {
	From network.StationID `json:"from"`
	To   network.StationID `json:"to"`
	Name string            `json:"name"`
}

func (s *Server) createLine(w http.ResponseWriter, r *http.Request) {
	var req CreateLineRequest
	if !decode(w, r, &req) {
		return
	}
	var line network.Line
	err := s.Runner.Do(func(wld *engine.World) error {
		l, err := wld.CreateLine(req.From, req.To, req.Name, false)
		if err != nil {
			return err
		}
		line = copyLine(l)
		return nil
	})
	if err != nil {
		writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, line)
}

func (s *Server) lineEfficiency(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	var eff engine.LineEfficiency
	err := s.Runner.Do(func(wld *engine.World) error {
		var err error
		eff, err = wld.LineEfficiency(network.LineID(id))
		return err
	})
	if err != nil {
		writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, eff)
}

// copyLine detaches a line from the world so it can be encoded after the
// runner's lock is released.
func copyLine(l *network.Line) network.Line {
	c := *l
	c.Stations = slices.Clone(l.Stations)
	return c
}

// ExtendRequest extends a line along the edge From-To; exactly one of the two
// stations must already be on the line.
type ExtendRequest struct {
	From network.StationID `json:"from"`
	To   network.StationID `json:"to"`
}

// lineResult runs edit on line id and answers with the line's new state.
func (s *Server) lineResult(w http.ResponseWriter, r *http.Request, edit func(*engine.World, network.LineID) error) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	var line network.Line
	err := s.Runner.Do(func(wld *engine.World) error {
		if err := edit(wld, network.LineID(id)); err != nil {
			return err
		}
		l, err := wld.Network().Line(network.LineID(id))
		if err != nil {
			return err
		}
		line = copyLine(l)
		return nil
	})
	if err != nil {
		writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, line)
}

func (s *Server) extendLine(w http.ResponseWriter, r *http.Request) {
	var req ExtendRequest
	if !decode(w, r, &req) {
		return
	}
	s.lineResult(w, r, func(wld *engine.World, lid network.LineID) error {
		return wld.ExtendLineBetween(lid, req.From, req.To)
	})
}

func (s *Server) upgradeCapacity(w http.ResponseWriter, r *http.Request) {
	s.lineResult(w, r, func(wld *engine.World, lid network.LineID) error {
		return wld.UpgradeCapacity(lid)
	})
}

func (s *Server) buyTrain(w http.ResponseWriter, r *http.Request) {
	s.lineResult(w, r, func(wld *engine.World, lid network.LineID) error {
		_, err := wld.BuyTrain(lid)
		return err
	})
}

// SplitRequest cuts a line between stations[Segment] and stations[Segment+1].
type SplitRequest struct {
	Segment int `json:"segment"`
}

// SplitResponse lists the lines a split produced; it is empty when the line
// was too short and was removed.
type SplitResponse struct {
	Lines []network.Line `json:"lines"`
}

func (s *Server) splitLine(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	var req SplitRequest
	if !decode(w, r, &req) {
		return
	}
	resp := SplitResponse{Lines: []network.Line{}}
	err := s.Runner.Do(func(wld *engine.World) error {
		sp, err := wld.SplitLine(network.LineID(id), req.Segment)
		if err != nil {
			return err
		}
		if sp.First != nil {
			resp.Lines = append(resp.Lines, copyLine(sp.First), copyLine(sp.Second))
		}
		return nil
	})
	if err != nil {
		writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) removeLine(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	err := s.Runner.Do(func(wld *engine.World) error {
		return wld.RemoveLine(network.LineID(id))
	})
	if err != nil {
		writeEngineError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) requireStore(w http.ResponseWriter) bool {
	if s.Store == nil {
		writeError(w, http.StatusServiceUnavailable, "persistence is disabled")
		return false
	}
	return true
}

func (s *Server) save(w http.ResponseWriter, r *http.Request) {
	if !s.requireStore(w) {
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), 10*time.Second)
	defer cancel()
	id, err := s.Runner.Save(ctx, s.Store)
	if err != nil {
		writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]string{"id": id})
}

func (s *Server) listSnapshots(w http.ResponseWriter, r *http.Request) {
	if !s.requireStore(w) {
		return
	}
	limit := 20
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			writeError(w, http.StatusBadRequest, "limit must be a positive integer")
			return
		}
		limit = n
	}
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()
	list, err := s.Store.ListSnapshots(ctx, limit)
	if err != nil {
		writeEngineError(w, err)
		return
	}
	if list == nil {
		list = []store.SnapshotInfo{}
	}
	writeJSON(w, http.StatusOK, list)
}

func (s *Server) restore(w http.ResponseWriter, r *http.Request) {
	if !s.requireStore(w) {
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), 10*time.Second)
	defer cancel()
	if err := s.Runner.Restore(ctx, s.Store, chi.URLParam(r, "id")); err != nil {
		writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, s.Runner.Snapshot())
}
