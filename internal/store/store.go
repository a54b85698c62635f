// Package store persists world snapshots and the ledger transactions written
// alongside them.
package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/cxd309/metro-engine/internal/economy"
	"github.com/cxd309/metro-engine/internal/engine"
)

var ErrSnapshotNotFound = errors.New("snapshot not found")

// timeLayout is fixed width so stored timestamps sort lexically.
const timeLayout = "2006-01-02T15:04:05.000000Z"

// SnapshotInfo describes a stored snapshot without its payload.
type SnapshotInfo struct {
	ID        string    `json:"id"`
	SessionID string    `json:"session_id"`
	Version   string    `json:"version"`
	SimTime   float64   `json:"sim_time"`
	Balance   float64   `json:"balance"`
	CreatedAt time.Time `json:"created_at"`
}

// Store is a snapshot repository.
type Store interface {
	SaveSnapshot(ctx context.Context, sd engine.SaveData) (string, error)
	LoadSnapshot(ctx context.Context, id string) (engine.SaveData, error)
	LatestSnapshot(ctx context.Context) (engine.SaveData, error)
	ListSnapshots(ctx context.Context, limit int) ([]SnapshotInfo, error)
	AppendTransactions(ctx context.Context, snapshotID string, txs []economy.Transaction) error
	Transactions(ctx context.Context, snapshotID string) ([]economy.Transaction, error)
	Cleanup(ctx context.Context, retention time.Duration) (int, error)
	Close() error
}

// Open connects to the store selected by driver.
func Open(ctx context.Context, driver, dsn string) (Store, error) {
	switch driver {
	case "sqlite":
		return OpenSQLite(ctx, dsn)
	case "postgres":
		return OpenPostgres(ctx, dsn)
	default:
		return nil, fmt.Errorf("unknown store driver %q", driver)
	}
}

func createdAt(sd engine.SaveData) time.Time {
	if sd.Timestamp.IsZero() {
		return time.Now().UTC()
	}
	return sd.Timestamp.UTC()
}
