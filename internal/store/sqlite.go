package store

import (
	"context"
	"database/sql"
	"errors"
	"os"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/ubhp-protocol/agenthub/internal/models"
)

// SQLiteStore handles SQLite database operations. It is the zero-config
// default peer registry when no DATABASE_URL is configured.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore creates a new SQLite store.
// If dbPath is empty, defaults to "./data/agenthub.db"
func NewSQLiteStore(ctx context.Context, dbPath string) (*SQLiteStore, error) {
	if dbPath == "" {
		dbPath = "./data/agenthub.db"
	}

	// Ensure directory exists
	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, err
	}

	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_foreign_keys=on")
	if err != nil {
		return nil, err
	}

	if err := db.PingContext(ctx); err != nil {
		return nil, err
	}

	store := &SQLiteStore{db: db}

	// Initialize schema
	if err := store.initSchema(ctx); err != nil {
		return nil, err
	}

	return store, nil
}

// initSchema creates tables if they don't exist.
func (s *SQLiteStore) initSchema(ctx context.Context) error {
	schema := `
	CREATE TABLE IF NOT EXISTS peers (
		id TEXT PRIMARY KEY,
		name TEXT DEFAULT '',
		kind TEXT DEFAULT '',
		token_hash TEXT DEFAULT '',
		connect_count INTEGER DEFAULT 0,
		first_seen DATETIME DEFAULT CURRENT_TIMESTAMP,
		last_seen DATETIME DEFAULT CURRENT_TIMESTAMP
	);

	CREATE INDEX IF NOT EXISTS idx_peers_last_seen ON peers(last_seen);
	`

	_, err := s.db.ExecContext(ctx, schema)
	return err
}

// Close closes the database connection.
func (s *SQLiteStore) Close() {
	s.db.Close()
}

// Ping checks the database connection.
func (s *SQLiteStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// UpsertPeer creates or updates a peer registration. Re-registering an
// existing ID rotates the stored token hash and updates the name.
func (s *SQLiteStore) UpsertPeer(ctx context.Context, id, name, tokenHash string) (*models.Peer, error) {
	now := time.Now()

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO peers (id, name, token_hash, first_seen, last_seen)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			name = excluded.name,
			token_hash = excluded.token_hash,
			last_seen = excluded.last_seen
	`, id, name, tokenHash, now, now)
	if err != nil {
		return nil, err
	}

	return s.GetPeer(ctx, id)
}

// GetPeer retrieves a peer by ID.
func (s *SQLiteStore) GetPeer(ctx context.Context, id string) (*models.Peer, error) {
	peer := &models.Peer{}
	err := s.db.QueryRowContext(ctx, `
		SELECT id, name, kind, token_hash, connect_count, first_seen, last_seen
		FROM peers WHERE id = ?
	`, id).Scan(
		&peer.ID,
		&peer.Name,
		&peer.Kind,
		&peer.TokenHash,
		&peer.ConnectCount,
		&peer.FirstSeen,
		&peer.LastSeen,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return peer, nil
}

// GetPeerTokenHash retrieves the bcrypt token hash for a peer.
func (s *SQLiteStore) GetPeerTokenHash(ctx context.Context, id string) (string, error) {
	var tokenHash string
	err := s.db.QueryRowContext(ctx, `
		SELECT token_hash FROM peers WHERE id = ?
	`, id).Scan(&tokenHash)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", nil
		}
		return "", err
	}
	return tokenHash, nil
}

// RecordConnect bumps a peer's connect count and last-seen timestamp,
// creating the row if the peer never registered explicitly.
func (s *SQLiteStore) RecordConnect(ctx context.Context, id, kind string) error {
	now := time.Now()
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO peers (id, kind, connect_count, first_seen, last_seen)
		VALUES (?, ?, 1, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			kind = excluded.kind,
			connect_count = connect_count + 1,
			last_seen = excluded.last_seen
	`, id, kind, now, now)
	return err
}

// CountPeers returns the total number of known peers.
func (s *SQLiteStore) CountPeers(ctx context.Context) (int64, error) {
	var count int64
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM peers`).Scan(&count)
	return count, err
}

// SumConnects returns the total connect count across all peers.
func (s *SQLiteStore) SumConnects(ctx context.Context) (int64, error) {
	var sum int64
	err := s.db.QueryRowContext(ctx, `SELECT COALESCE(SUM(connect_count), 0) FROM peers`).Scan(&sum)
	return sum, err
}
