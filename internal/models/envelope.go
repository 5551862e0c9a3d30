package models

import (
	"encoding/json"
	"errors"
	"fmt"
)

// Channel selects which peer set receives an envelope.
const (
	ChannelAgentToAgent = "a2a"
	ChannelUserToAgent  = "u2a"
	ChannelAgentToUser  = "a2u"
)

// Peer kinds accepted on the hub's WebSocket endpoint.
const (
	KindClient = "client"
	KindAgent  = "agent"
)

// Roles carried by envelopes. The role is an origin classification and is
// not enforced against the connection identity.
const (
	RoleUser   = "user"
	RoleAgent  = "agent"
	RoleSystem = "system"
)

var (
	ErrUnknownChannel = errors.New("unknown routing channel")
	ErrEmptyContent   = errors.New("envelope content is empty")
)

// Meta carries routing metadata for an envelope.
type Meta struct {
	Channel string `json:"channel"`
}

// Envelope is the JSON message object exchanged over the relay.
// Delivery is fire-and-forget: no acknowledgment, ordering, or retry.
type Envelope struct {
	ID        string          `json:"id,omitempty"` // ULID, stamped by the hub
	Role      string          `json:"role,omitempty"`
	From      string          `json:"from,omitempty"`
	To        string          `json:"to,omitempty"` // empty means broadcast
	Type      string          `json:"type,omitempty"`
	Meta      Meta            `json:"meta"`
	Content   json.RawMessage `json:"content"`
	Signature string          `json:"signature,omitempty"` // display hash, never verified
	Timestamp int64           `json:"ts,omitempty"`        // unix ms, stamped by the hub
}

// Validate checks the routing fields the hub depends on. Content and type
// are deliberately unvalidated: payloads are opaque to the relay.
func (e *Envelope) Validate() error {
	switch e.Meta.Channel {
	case ChannelAgentToAgent, ChannelUserToAgent, ChannelAgentToUser:
	default:
		return fmt.Errorf("%w: %q", ErrUnknownChannel, e.Meta.Channel)
	}
	if len(e.Content) == 0 {
		return ErrEmptyContent
	}
	return nil
}

// HarmonicSignature computes the legacy display hash over the stringified
// content: a multiplicative rolling hash, hex-encoded. It is a debug
// artifact only and must never be treated as an integrity check.
func HarmonicSignature(content json.RawMessage) string {
	var h uint64
	for _, b := range content {
		h = h*31 + uint64(b)
	}
	return fmt.Sprintf("%016x", h)
}

// ErrorEnvelope builds the system envelope sent back to a peer whose
// message could not be routed.
func ErrorEnvelope(to, reason string) *Envelope {
	content, _ := json.Marshal(map[string]string{"error": reason})
	return &Envelope{
		Role:    RoleSystem,
		From:    "hub",
		To:      to,
		Type:    "error",
		Meta:    Meta{Channel: ChannelAgentToUser},
		Content: content,
	}
}
