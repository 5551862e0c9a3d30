package store

import (
	"context"

	"github.com/ubhp-protocol/agenthub/internal/models"
)

// DataStore defines the interface for persistent storage of the peer
// registry. Both PostgresStore and SQLiteStore implement this interface.
type DataStore interface {
	// Connection management
	Close()
	Ping(ctx context.Context) error

	// Peer operations
	UpsertPeer(ctx context.Context, id, name, tokenHash string) (*models.Peer, error)
	GetPeer(ctx context.Context, id string) (*models.Peer, error)
	GetPeerTokenHash(ctx context.Context, id string) (string, error)
	RecordConnect(ctx context.Context, id, kind string) error
	CountPeers(ctx context.Context) (int64, error)
	SumConnects(ctx context.Context) (int64, error)
}
