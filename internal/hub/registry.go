package hub

import (
	"errors"
	"sync"

	"github.com/ubhp-protocol/agenthub/internal/models"
)

var (
	ErrUnknownPeer = errors.New("unknown destination peer")
	ErrSlowPeer    = errors.New("peer send buffer full")
)

// Sender delivers an encoded envelope to one connected peer. The production
// implementation is the WebSocket peer's buffered send channel; tests inject
// fakes so routing can be exercised without a live socket.
type Sender interface {
	ID() string
	Kind() string
	// Send queues data for delivery. It returns false when the peer's
	// buffer is full; the caller decides whether to evict.
	Send(data []byte) bool
	// Close tears down the peer's connection.
	Close()
}

// Registry tracks connected peers by kind and ID. It replaces the global
// mutable connection maps of the original relay with an injected capability.
type Registry interface {
	// Register adds a peer, returning the peer it displaced when the same
	// kind/ID pair was already connected. The caller closes the displaced
	// peer.
	Register(s Sender) (displaced Sender)
	// Unregister removes the peer if it is still the registered one for
	// its kind/ID. A peer displaced by a reconnect is not removed twice.
	Unregister(s Sender)
	// SendTo delivers to one peer. ErrUnknownPeer when the destination is
	// not connected, ErrSlowPeer when its buffer is full.
	SendTo(kind, id string, data []byte) error
	// Broadcast delivers to every peer of the given kind except the one
	// named by exclude. It returns the number of peers reached.
	Broadcast(kind string, data []byte, exclude string) int
	// IDs lists connected peer IDs for a kind.
	IDs(kind string) []string
	// Count returns the number of connected peers of a kind.
	Count(kind string) int
}

// memoryRegistry is the in-process Registry used by the hub.
type memoryRegistry struct {
	mu    sync.RWMutex
	peers map[string]map[string]Sender // kind -> id -> peer
}

// NewRegistry creates an empty in-memory registry.
func NewRegistry() Registry {
	return &memoryRegistry{
		peers: map[string]map[string]Sender{
			models.KindClient: {},
			models.KindAgent:  {},
		},
	}
}

func (r *memoryRegistry) Register(s Sender) Sender {
	r.mu.Lock()
	defer r.mu.Unlock()

	byID, ok := r.peers[s.Kind()]
	if !ok {
		byID = make(map[string]Sender)
		r.peers[s.Kind()] = byID
	}

	displaced := byID[s.ID()]
	byID[s.ID()] = s
	return displaced
}

func (r *memoryRegistry) Unregister(s Sender) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if byID, ok := r.peers[s.Kind()]; ok && byID[s.ID()] == s {
		delete(byID, s.ID())
	}
}

func (r *memoryRegistry) SendTo(kind, id string, data []byte) error {
	r.mu.RLock()
	peer := r.peers[kind][id]
	r.mu.RUnlock()

	if peer == nil {
		return ErrUnknownPeer
	}
	if !peer.Send(data) {
		return ErrSlowPeer
	}
	return nil
}

func (r *memoryRegistry) Broadcast(kind string, data []byte, exclude string) int {
	r.mu.RLock()
	targets := make([]Sender, 0, len(r.peers[kind]))
	for id, peer := range r.peers[kind] {
		if id == exclude {
			continue
		}
		targets = append(targets, peer)
	}
	r.mu.RUnlock()

	reached := 0
	for _, peer := range targets {
		if peer.Send(data) {
			reached++
		}
	}
	return reached
}

func (r *memoryRegistry) IDs(kind string) []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	ids := make([]string, 0, len(r.peers[kind]))
	for id := range r.peers[kind] {
		ids = append(ids, id)
	}
	return ids
}

func (r *memoryRegistry) Count(kind string) int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.peers[kind])
}
