package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/cxd309/metro-engine/internal/economy"
	"github.com/cxd309/metro-engine/internal/engine"
)

const postgresSchema = `
CREATE TABLE IF NOT EXISTS snapshots (
    id          UUID PRIMARY KEY,
    session_id  TEXT NOT NULL,
    version     TEXT NOT NULL,
    sim_time    DOUBLE PRECISION NOT NULL,
    balance     DOUBLE PRECISION NOT NULL,
    created_at  TIMESTAMPTZ NOT NULL,
    data        JSONB NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_snapshots_created_at ON snapshots (created_at);
CREATE TABLE IF NOT EXISTS ledger_transactions (
    snapshot_id  UUID NOT NULL REFERENCES snapshots (id) ON DELETE CASCADE,
    tx_id        INTEGER NOT NULL,
    direction    TEXT NOT NULL,
    amount       DOUBLE PRECISION NOT NULL,
    description  TEXT NOT NULL,
    sim_time     DOUBLE PRECISION NOT NULL,
    PRIMARY KEY (snapshot_id, tx_id)
);`

// PostgresStore keeps snapshots in PostgreSQL.
type PostgresStore struct {
	pool *pgxpool.Pool
}

// OpenPostgres connects to databaseURL and ensures the schema exists.
func OpenPostgres(ctx context.Context, databaseURL string) (*PostgresStore, error) {
	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to create connection pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}
	if _, err := pool.Exec(ctx, postgresSchema); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to create schema: %w", err)
	}
	return &PostgresStore{pool: pool}, nil
}

func (s *PostgresStore) Close() error {
	s.pool.Close()
	return nil
}

func (s *PostgresStore) SaveSnapshot(ctx context.Context, sd engine.SaveData) (string, error) {
	data, err := json.Marshal(sd)
	if err != nil {
		return "", fmt.Errorf("encoding snapshot: %w", err)
	}
	id := uuid.New()
	_, err = s.pool.Exec(ctx, `
		INSERT INTO snapshots (id, session_id, version, sim_time, balance, created_at, data)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		id, sd.SessionID, sd.Version, sd.SimTime, sd.Economy.Balance, createdAt(sd), data,
	)
	if err != nil {
		return "", fmt.Errorf("failed to insert snapshot: %w", err)
	}
	return id.String(), nil
}

func (s *PostgresStore) LoadSnapshot(ctx context.Context, id string) (engine.SaveData, error) {
	uid, err := uuid.Parse(id)
	if err != nil {
		return engine.SaveData{}, fmt.Errorf("snapshot %s: %w", id, ErrSnapshotNotFound)
	}
	row := s.pool.QueryRow(ctx, `SELECT data FROM snapshots WHERE id = $1`, uid)
	return scanPgSaveData(row, id)
}

func (s *PostgresStore) LatestSnapshot(ctx context.Context) (engine.SaveData, error) {
	row := s.pool.QueryRow(ctx, `SELECT data FROM snapshots ORDER BY created_at DESC LIMIT 1`)
	return scanPgSaveData(row, "latest")
}

func scanPgSaveData(row pgx.Row, id string) (engine.SaveData, error) {
	var data []byte
	if err := row.Scan(&data); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return engine.SaveData{}, fmt.Errorf("snapshot %s: %w", id, ErrSnapshotNotFound)
		}
		return engine.SaveData{}, fmt.Errorf("failed to query snapshot: %w", err)
	}
	var sd engine.SaveData
	if err := json.Unmarshal(data, &sd); err != nil {
		return engine.SaveData{}, fmt.Errorf("decoding snapshot %s: %w", id, err)
	}
	return sd, nil
}

func (s *PostgresStore) ListSnapshots(ctx context.Context, limit int) ([]SnapshotInfo, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, session_id, version, sim_time, balance, created_at
		FROM snapshots
		ORDER BY created_at DESC
		LIMIT $1`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query snapshots: %w", err)
	}
	defer rows.Close()

	var out []SnapshotInfo
	for rows.Next() {
		var (
			info SnapshotInfo
			id   uuid.UUID
		)
		if err := rows.Scan(&id, &info.SessionID, &info.Version, &info.SimTime, &info.Balance, &info.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan snapshot row: %w", err)
		}
		info.ID = id.String()
		info.CreatedAt = info.CreatedAt.UTC()
		out = append(out, info)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating snapshot rows: %w", err)
	}
	return out, nil
}

func (s *PostgresStore) AppendTransactions(ctx context.Context, snapshotID string, txs []economy.Transaction) error {
	if len(txs) == 0 {
		return nil
	}
	uid, err := uuid.Parse(snapshotID)
	if err != nil {
		return fmt.Errorf("snapshot %s: %w", snapshotID, ErrSnapshotNotFound)
	}
	batch := &pgx.Batch{}
	for _, t := range txs {
		batch.Queue(`
			INSERT INTO ledger_transactions (snapshot_id, tx_id, direction, amount, description, sim_time)
			VALUES ($1, $2, $3, $4, $5, $6)`,
			uid, t.ID, string(t.Direction), t.Amount, t.Description, t.Timestamp)
	}
	if err := s.pool.SendBatch(ctx, batch).Close(); err != nil {
		return fmt.Errorf("failed to insert transactions: %w", err)
	}
	return nil
}

func (s *PostgresStore) Transactions(ctx context.Context, snapshotID string) ([]economy.Transaction, error) {
	uid, err := uuid.Parse(snapshotID)
	if err != nil {
		return nil, fmt.Errorf("snapshot %s: %w", snapshotID, ErrSnapshotNotFound)
	}
	rows, err := s.pool.Query(ctx, `
		SELECT tx_id, direction, amount, description, sim_time
		FROM ledger_transactions
		WHERE snapshot_id = $1
		ORDER BY tx_id`, uid)
	if err != nil {
		return nil, fmt.Errorf("failed to query transactions: %w", err)
	}
	defer rows.Close()

	var out []economy.Transaction
	for rows.Next() {
		var (
			t   economy.Transaction
			dir string
		)
		if err := rows.Scan(&t.ID, &dir, &t.Amount, &t.Description, &t.Timestamp); err != nil {
			return nil, fmt.Errorf("failed to scan transaction row: %w", err)
		}
		t.Direction = economy.Direction(dir)
		out = append(out, t)
	}
	return out, rows.Err()
}

func (s *PostgresStore) Cleanup(ctx context.Context, retention time.Duration) (int, error) {
	tag, err := s.pool.Exec(ctx, `DELETE FROM snapshots WHERE created_at < $1`, time.Now().UTC().Add(-retention))
	if err != nil {
		return 0, fmt.Errorf("failed to cleanup snapshots: %w", err)
	}
	n := int(tag.RowsAffected())
	if n > 0 {
		log.Printf("Cleanup: deleted %d snapshots older than %s", n, retention)
	}
	return n, nil
}
