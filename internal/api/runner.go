// Package api serves a running world over HTTP and streams its ticks over
// websockets.
package api

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/cxd309/metro-engine/internal/economy"
	"github.com/cxd309/metro-engine/internal/engine"
	"github.com/cxd309/metro-engine/internal/store"
)

// Runner owns a World and is the only way to reach it concurrently. The world
// itself is single-threaded; every access goes through the runner's lock.
type Runner struct {
	mu        sync.Mutex
	saveMu    sync.Mutex // one save at a time, so ledger rows are appended once
	world     *engine.World
	hub       *Hub
	interval  time.Duration
	lastSaved int // highest transaction id already written to the store
}

// NewRunner wraps w. hub may be nil.
func NewRunner(w *engine.World, hub *Hub, interval time.Duration) *Runner {
	return &Runner{world: w, hub: hub, interval: interval}
}

// Do runs fn with exclusive access to the world.
func (r *Runner) Do(fn func(w *engine.World) error) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return fn(r.world)
}

// Snapshot returns the current render state.
func (r *Runner) Snapshot() engine.Snapshot {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.world.Snapshot()
}

// Tick advances the world by one interval and broadcasts the snapshot.
func (r *Runner) Tick() {
	r.mu.Lock()
	r.world.Update(r.interval.Seconds())
	snap := r.world.Snapshot()
	r.mu.Unlock()

	if r.hub == nil {
		return
	}
	msg, err := json.Marshal(snap)
	if err != nil {
		log.Printf("encoding tick snapshot: %v", err)
		return
	}
	r.hub.Broadcast(msg)
}

// Run ticks until ctx is done.
func (r *Runner) Run(ctx context.Context) {
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			r.Tick()
		}
	}
}

// Save writes a snapshot to s together with the ledger entries recorded since
// the previous save, and returns the snapshot id.
func (r *Runner) Save(ctx context.Context, s store.Store) (string, error) {
	r.saveMu.Lock()
	defer r.saveMu.Unlock()

	r.mu.Lock()
	sd := r.world.Save()
	since := r.lastSaved
	r.mu.Unlock()

	id, err := s.SaveSnapshot(ctx, sd)
	if err != nil {
		return "", err
	}
	var fresh []economy.Transaction
	for _, t := range sd.Economy.Transactions {
		if t.ID > since {
			fresh = append(fresh, t)
		}
	}
	if err := s.AppendTransactions(ctx, id, fresh); err != nil {
		return id, fmt.Errorf("snapshot %s transactions: %w", id, err)
	}
	if n := len(sd.Economy.Transactions); n > 0 {
		r.mu.Lock()
		r.lastSaved = max(r.lastSaved, sd.Economy.Transactions[n-1].ID)
		r.mu.Unlock()
	}
	return id, nil
}

// Restore replaces the world state with snapshot id from s.
func (r *Runner) Restore(ctx context.Context, s store.Store, id string) error {
	sd, err := s.LoadSnapshot(ctx, id)
	if err != nil {
		return err
	}
	r.saveMu.Lock()
	defer r.saveMu.Unlock()
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.world.Restore(sd); err != nil {
		return err
	}
	r.lastSaved = 0
	if n := len(sd.Economy.Transactions); n > 0 {
		r.lastSaved = sd.Economy.Transactions[n-1].ID
	}
	return nil
}

// Autosave saves to s every interval until ctx is done and prunes snapshots
// older than retention.
func (r *Runner) Autosave(ctx context.Context, s store.Store, interval, retention time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			id, err := r.Save(ctx, s)
			if err != nil {
				log.Printf("autosave failed: %v", err)
				continue
			}
			log.Printf("autosaved snapshot %s", id)
			if retention > 0 {
				if _, err := s.Cleanup(ctx, retention); err != nil {
					log.Printf("snapshot cleanup failed: %v", err)
				}
			}
		}
	}
}
