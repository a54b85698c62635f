// Command server runs a metro world in real time, serves it over HTTP and
// websockets, and autosaves it to the configured store.
package main

import (
	"context"
	"errors"
	"flag"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/paulmach/orb"

	"github.com/cxd309/metro-engine/internal/api"
	"github.com/cxd309/metro-engine/internal/config"
	"github.com/cxd309/metro-engine/internal/engine"
	"github.com/cxd309/metro-engine/internal/feed"
	"github.com/cxd309/metro-engine/internal/logging"
	"github.com/cxd309/metro-engine/internal/network"
	"github.com/cxd309/metro-engine/internal/store"
)

func main() {
	configPath := flag.String("config", "config.yml", "path to the YAML config")
	resume := flag.Bool("resume", true, "restore the latest stored snapshot on start")
	flag.Parse()

	logging.Init()

	// Load base .env first, then .env.local (which overrides for local development)
	_ = godotenv.Load(".env")
	_ = godotenv.Overload(".env.local")

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	world, err := engine.New(cfg.Simulation)
	if err != nil {
		log.Fatalf("Failed to build world: %v", err)
	}

	var st store.Store
	if cfg.Store.Driver != "none" {
		st, err = store.Open(ctx, cfg.Store.Driver, cfg.Store.DSN)
		if err != nil {
			log.Fatalf("Failed to open %s store: %v", cfg.Store.Driver, err)
		}
		defer st.Close()
		log.Printf("Connected to %s store", cfg.Store.Driver)
	}

	if !restoreLatest(ctx, world, st, *resume) {
		seed(world)
	}

	hub := api.NewHub(cfg.Server.AllowedOrigins)
	runner := api.NewRunner(world, hub, cfg.Server.TickInterval)
	srv := &api.Server{Runner: runner, Hub: hub, Store: st, Projection: feed.DefaultProjection}

	go hub.Run(ctx)
	go runner.Run(ctx)
	if st != nil && cfg.Server.AutosaveInterval > 0 {
		go runner.Autosave(ctx, st, cfg.Server.AutosaveInterval, cfg.Server.Retention)
	}

	httpSrv := &http.Server{
		Addr:              ":" + strconv.Itoa(cfg.Server.Port),
		Handler:           srv.Router(cfg.Server.AllowedOrigins),
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if st != nil {
			if id, err := runner.Save(shutdownCtx, st); err != nil {
				log.Printf("Final save failed: %v", err)
			} else {
				log.Printf("Saved snapshot %s on shutdown", id)
			}
		}
		httpSrv.Shutdown(shutdownCtx)
	}()

	log.Printf("Metro server starting on %s (session %s)", httpSrv.Addr, world.ID())
	if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Fatalf("Server failed to start: %v", err)
	}
}

// restoreLatest loads the newest snapshot into w and reports whether it did.
func restoreLatest(ctx context.Context, w *engine.World, st store.Store, resume bool) bool {
	if st == nil || !resume {
		return false
	}
	sd, err := st.LatestSnapshot(ctx)
	if errors.Is(err, store.ErrSnapshotNotFound) {
		return false
	}
	if err != nil {
		log.Printf("Could not load latest snapshot: %v", err)
		return false
	}
	if err := w.Restore(sd); err != nil {
		log.Printf("Could not restore snapshot from %s: %v", sd.Timestamp.Format(time.RFC3339), err)
		return false
	}
	log.Printf("Resumed session %s at t=%.1f", sd.SessionID, sd.SimTime)
	return true
}

// seed starts a new game with three stations of distinct shapes and a free
// starter line.
func seed(w *engine.World) {
	a := w.AddStation(orb.Point{200, 300}, network.Circle, network.Medium)
	b := w.AddStation(orb.Point{400, 300}, network.Triangle, network.Medium)
	w.AddStation(orb.Point{300, 500}, network.Square, network.Medium)
	if _, err := w.CreateLine(a.ID, b.ID, "", true); err != nil {
		log.Fatalf("Failed to create starter line: %v", err)
	}
}
