package models

import "time"

// Peer is a registered relay peer. Registration is optional unless the hub
// runs with HUB_REQUIRE_AUTH, in which case a peer must present the access
// token issued at registration when opening its WebSocket connection.
type Peer struct {
	ID           string    `json:"id"`
	Name         string    `json:"name,omitempty"`
	Kind         string    `json:"kind,omitempty"` // last kind seen on connect
	TokenHash    string    `json:"-"`              // bcrypt hash, never serialized
	ConnectCount int64     `json:"connect_count"`
	FirstSeen    time.Time `json:"first_seen"`
	LastSeen     time.Time `json:"last_seen"`
}
