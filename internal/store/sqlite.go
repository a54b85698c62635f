package store

import (
	"context"
	"database/sql"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"github.com/cxd309/metro-engine/internal/economy"
	"github.com/cxd309/metro-engine/internal/engine"
)

// schemaSQL is embedded from schema.sql.
//
//go:embed schema.sql
var schemaSQL string

// SQLiteStore keeps snapshots in a single SQLite file.
type SQLiteStore struct {
	conn    *sql.DB
	writeMu sync.Mutex // SQLite allows one writer at a time
}

// OpenSQLite opens path with WAL mode and foreign keys enabled and ensures the
// schema exists.
func OpenSQLite(ctx context.Context, path string) (*SQLiteStore, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("failed to create database directory: %w", err)
	}
	dsn := path + "?_pragma=journal_mode(WAL)&_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)"
	conn, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	conn.SetMaxOpenConns(1)
	conn.SetMaxIdleConns(1)
	conn.SetConnMaxLifetime(time.Hour)

	if err := conn.PingContext(ctx); err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	pragmas := []string{
		"PRAGMA synchronous = NORMAL",
		"PRAGMA temp_store = MEMORY",
	}
	for _, pragma := range pragmas {
		if _, err := conn.ExecContext(ctx, pragma); err != nil {
			log.Printf("Warning: failed to set %s: %v", pragma, err)
		}
	}

	s := &SQLiteStore{conn: conn}
	if err := s.ensureSchema(ctx); err != nil {
		conn.Close()
		return nil, err
	}
	return s, nil
}

func (s *SQLiteStore) ensureSchema(ctx context.Context) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	if _, err := s.conn.ExecContext(ctx, schemaSQL); err != nil {
		return fmt.Errorf("failed to create schema: %w", err)
	}
	return nil
}

func (s *SQLiteStore) Close() error { return s.conn.Close() }

// SaveSnapshot stores sd under a new id.
func (s *SQLiteStore) SaveSnapshot(ctx context.Context, sd engine.SaveData) (string, error) {
	data, err := json.Marshal(sd)
	if err != nil {
		return "", fmt.Errorf("encoding snapshot: %w", err)
	}
	id := uuid.NewString()

	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	_, err = s.conn.ExecContext(ctx, `
		INSERT INTO snapshots (id, session_id, version, sim_time, balance, created_at, data)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		id, sd.SessionID, sd.Version, sd.SimTime, sd.Economy.Balance,
		createdAt(sd).Format(timeLayout), string(data),
	)
	if err != nil {
		return "", fmt.Errorf("failed to insert snapshot: %w", err)
	}
	return id, nil
}

// LoadSnapshot returns the snapshot stored under id.
func (s *SQLiteStore) LoadSnapshot(ctx context.Context, id string) (engine.SaveData, error) {
	row := s.conn.QueryRowContext(ctx, `SELECT data FROM snapshots WHERE id = ?`, id)
	return scanSaveData(row, id)
}

// LatestSnapshot returns the most recently created snapshot.
func (s *SQLiteStore) LatestSnapshot(ctx context.Context) (engine.SaveData, error) {
	row := s.conn.QueryRowContext(ctx, `SELECT data FROM snapshots ORDER BY created_at DESC, rowid DESC LIMIT 1`)
	return scanSaveData(row, "latest")
}

func scanSaveData(row *sql.Row, id string) (engine.SaveData, error) {
	var data string
	if err := row.Scan(&data); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return engine.SaveData{}, fmt.Errorf("snapshot %s: %w", id, ErrSnapshotNotFound)
		}
		return engine.SaveData{}, fmt.Errorf("failed to query snapshot: %w", err)
	}
	var sd engine.SaveData
	if err := json.Unmarshal([]byte(data), &sd); err != nil {
		return engine.SaveData{}, fmt.Errorf("decoding snapshot %s: %w", id, err)
	}
	return sd, nil
}

// ListSnapshots returns up to limit snapshots, newest first.
func (s *SQLiteStore) ListSnapshots(ctx context.Context, limit int) ([]SnapshotInfo, error) {
	rows, err := s.conn.QueryContext(ctx, `
		SELECT id, session_id, version, sim_time, balance, created_at
		FROM snapshots
		ORDER BY created_at DESC, rowid DESC
		LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query snapshots: %w", err)
	}
	defer rows.Close()

	var out []SnapshotInfo
	for rows.Next() {
		var (
			info    SnapshotInfo
			created string
		)
		if err := rows.Scan(&info.ID, &info.SessionID, &info.Version, &info.SimTime, &info.Balance, &created); err != nil {
			return nil, fmt.Errorf("failed to scan snapshot row: %w", err)
		}
		info.CreatedAt, err = time.Parse(timeLayout, created)
		if err != nil {
			return nil, fmt.Errorf("snapshot %s created_at: %w", info.ID, err)
		}
		out = append(out, info)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating snapshot rows: %w", err)
	}
	return out, nil
}

// AppendTransactions records ledger entries against a stored snapshot.
func (s *SQLiteStore) AppendTransactions(ctx context.Context, snapshotID string, txs []economy.Transaction) error {
	if len(txs) == 0 {
		return nil
	}
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	tx, err := s.conn.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO ledger_transactions (snapshot_id, tx_id, direction, amount, description, sim_time)
		VALUES (?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("failed to prepare insert: %w", err)
	}
	defer stmt.Close()

	for _, t := range txs {
		if _, err := stmt.ExecContext(ctx, snapshotID, t.ID, string(t.Direction), t.Amount, t.Description, t.Timestamp); err != nil {
			return fmt.Errorf("failed to insert transaction %d: %w", t.ID, err)
		}
	}
	return tx.Commit()
}

// Transactions returns the ledger entries recorded against snapshotID in id
// order.
func (s *SQLiteStore) Transactions(ctx context.Context, snapshotID string) ([]economy.Transaction, error) {
	rows, err := s.conn.QueryContext(ctx, `
		SELECT tx_id, direction, amount, description, sim_time
		FROM ledger_transactions
		WHERE snapshot_id = ?
		ORDER BY tx_id`, snapshotID)
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

// Cleanup deletes snapshots older than retention and returns how many went.
func (s *SQLiteStore) Cleanup(ctx context.Context, retention time.Duration) (int, error) {
	cutoff := time.Now().UTC().Add(-retention).Format(timeLayout)

	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	if _, err := s.conn.ExecContext(ctx, `
		DELETE FROM ledger_transactions
		WHERE snapshot_id IN (SELECT id FROM snapshots WHERE created_at < ?)`, cutoff); err != nil {
		return 0, fmt.Errorf("failed to cleanup transactions: %w", err)
	}
	res, err := s.conn.ExecContext(ctx, `DELETE FROM snapshots WHERE created_at < ?`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("failed to cleanup snapshots: %w", err)
	}
	n, _ := res.RowsAffected()
	if n > 0 {
		log.Printf("Cleanup: deleted %d snapshots older than %s", n, retention)
	}
	return int(n), nil
}
