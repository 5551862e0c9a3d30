package store

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/ubhp-protocol/agenthub/internal/models"
)

// PostgresStore handles PostgreSQL database operations.
type PostgresStore struct {
	pool *pgxpool.Pool
}

// NewPostgresStore creates a new PostgreSQL store with a connection pool.
func NewPostgresStore(ctx context.Context, databaseURL string) (*PostgresStore, error) {
	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, err
	}

	if err := pool.Ping(ctx); err != nil {
		return nil, err
	}

	store := &PostgresStore{pool: pool}

	if err := store.initSchema(ctx); err != nil {
		return nil, err
	}

	return store, nil
}

// initSchema creates tables if they don't exist.
func (s *PostgresStore) initSchema(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS peers (
			id TEXT PRIMARY KEY,
			name TEXT DEFAULT '',
			kind TEXT DEFAULT '',
			token_hash TEXT DEFAULT '',
			connect_count BIGINT DEFAULT 0,
			first_seen TIMESTAMPTZ DEFAULT NOW(),
			last_seen TIMESTAMPTZ DEFAULT NOW()
		);

		CREATE INDEX IF NOT EXISTS idx_peers_last_seen ON peers(last_seen);
	`)
	return err
}

// Close closes the database connection pool.
func (s *PostgresStore) Close() {
	s.pool.Close()
}

// Ping checks the database connection.
func (s *PostgresStore) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

// UpsertPeer creates or updates a peer registration. Re-registering an
// existing ID rotates the stored token hash and updates the name.
func (s *PostgresStore) UpsertPeer(ctx context.Context, id, name, tokenHash string) (*models.Peer, error) {
	peer := &models.Peer{}
	err := s.pool.QueryRow(ctx, `
		INSERT INTO peers (id, name, token_hash)
		VALUES ($1, $2, $3)
		ON CONFLICT (id) DO UPDATE SET
			name = EXCLUDED.name,
			token_hash = EXCLUDED.token_hash,
			last_seen = NOW()
		RETURNING id, name, kind, token_hash, connect_count, first_seen, last_seen
	`, id, name, tokenHash).Scan(
		&peer.ID,
		&peer.Name,
		&peer.Kind,
		&peer.TokenHash,
		&peer.ConnectCount,
		&peer.FirstSeen,
		&peer.LastSeen,
	)
	if err != nil {
		return nil, err
	}
	return peer, nil
}

// GetPeer retrieves a peer by ID.
func (s *PostgresStore) GetPeer(ctx context.Context, id string) (*models.Peer, error) {
	peer := &models.Peer{}
	err := s.pool.QueryRow(ctx, `
		SELECT id, name, kind, token_hash, connect_count, first_seen, last_seen
		FROM peers WHERE id = $1
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
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return peer, nil
}

// GetPeerTokenHash retrieves the bcrypt token hash for a peer.
func (s *PostgresStore) GetPeerTokenHash(ctx context.Context, id string) (string, error) {
	var tokenHash string
	err := s.pool.QueryRow(ctx, `
		SELECT token_hash FROM peers WHERE id = $1
	`, id).Scan(&tokenHash)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return "", nil
		}
		return "", err
	}
	return tokenHash, nil
}

// RecordConnect bumps a peer's connect count and last-seen timestamp,
// creating the row if the peer never registered explicitly.
func (s *PostgresStore) RecordConnect(ctx context.Context, id, kind string) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO peers (id, kind, connect_count)
		VALUES ($1, $2, 1)
		ON CONFLICT (id) DO UPDATE SET
			kind = EXCLUDED.kind,
			connect_count = peers.connect_count + 1,
			last_seen = NOW()
	`, id, kind)
	return err
}

// CountPeers returns the total number of known peers.
func (s *PostgresStore) CountPeers(ctx context.Context) (int64, error) {
	var count int64
	err := s.pool.QueryRow(ctx, `SELECT COUNT(*) FROM peers`).Scan(&count)
	return count, err
}

// SumConnects returns the total connect count across all peers.
func (s *PostgresStore) SumConnects(ctx context.Context) (int64, error) {
	var sum int64
	err := s.pool.QueryRow(ctx, `SELECT COALESCE(SUM(connect_count), 0) FROM peers`).Scan(&sum)
	return sum, err
}
