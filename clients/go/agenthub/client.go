// Package agenthub provides a client for the agent hub relay and its
// UBHP bridge.
package agenthub

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

// Channels recognized by the hub's routing table.
const (
	ChannelAgentToAgent = "a2a"
	ChannelUserToAgent  = "u2a"
	ChannelAgentToUser  = "a2u"
)

// Meta carries routing metadata for an envelope.
type Meta struct {
	Channel string `json:"channel"`
}

// Envelope is the JSON message object exchanged over the relay.
type Envelope struct {
	ID        string          `json:"id,omitempty"`
	Role      string          `json:"role,omitempty"`
	From      string          `json:"from,omitempty"`
	To        string          `json:"to,omitempty"`
	Type      string          `json:"type,omitempty"`
	Meta      Meta            `json:"meta"`
	Content   json.RawMessage `json:"content"`
	Signature string          `json:"signature,omitempty"`
	Timestamp int64           `json:"ts,omitempty"`
}

// Client is a WebSocket peer on the hub.
type Client struct {
	HubURL string
	ID     string
	Kind   string // "client" or "agent"
	Token  string // peer token, when the hub requires auth

	mu   sync.Mutex
	conn *websocket.Conn
}

// NewClient creates a hub client. Call Connect before Send or Receive.
func NewClient(hubURL, id, kind string) *Client {
	if kind == "" {
		kind = "client"
	}
	return &Client{HubURL: hubURL, ID: id, Kind: kind}
}

// Connect dials the hub.
func (c *Client) Connect(ctx context.Context) error {
	u, err := url.Parse(c.HubURL)
	if err != nil {
		return err
	}
	q := u.Query()
	q.Set("id", c.ID)
	q.Set("kind", c.Kind)
	if c.Token != "" {
		q.Set("token", c.Token)
	}
	u.RawQuery = q.Encode()

	conn, _, err := websocket.DefaultDialer.DialContext(ctx, u.String(), nil)
	if err != nil {
		return fmt.Errorf("dial hub: %w", err)
	}

	c.mu.Lock()
	c.conn = conn
	c.mu.Unlock()
	return nil
}

// Close closes the hub connection.
func (c *Client) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.conn == nil {
		return nil
	}
	err := c.conn.Close()
	c.conn = nil
	return err
}

// Send writes one envelope to the hub.
func (c *Client) Send(env *Envelope) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.conn == nil {
		return fmt.Errorf("not connected")
	}
	c.conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
	return c.conn.WriteJSON(env)
}

// SendContent marshals content and sends it on the given channel.
func (c *Client) SendContent(channel, to, msgType string, content interface{}) error {
	data, err := json.Marshal(content)
	if err != nil {
		return err
	}
	role := "user"
	if c.Kind == "agent" {
		role = "agent"
	}
	return c.Send(&Envelope{
		Role:    role,
		To:      to,
		Type:    msgType,
		Meta:    Meta{Channel: channel},
		Content: data,
	})
}

// Receive blocks until the next envelope arrives.
func (c *Client) Receive() (*Envelope, error) {
	c.mu.Lock()
	conn := c.conn
	c.mu.Unlock()
	if conn == nil {
		return nil, fmt.Errorf("not connected")
	}

	var env Envelope
	if err := conn.ReadJSON(&env); err != nil {
		return nil, err
	}
	return &env, nil
}

// BridgeClient posts UBHP envelopes to the bridge's HTTP ingress.
type BridgeClient struct {
	BaseURL    string
	APIKey     string // sent as X-API-Key when set
	Bearer     string // sent as Authorization: Bearer when set
	HTTPClient *http.Client
}

// NewBridgeClient creates a bridge client.
func NewBridgeClient(baseURL string) *BridgeClient {
	return &BridgeClient{
		BaseURL:    baseURL,
		HTTPClient: &http.Client{Timeout: 30 * time.Second},
	}
}

// SendRequest is the UBHP ingress body.
type SendRequest struct {
	Sender            string          `json:"sender"`
	Receiver          string          `json:"receiver,omitempty"`
	Modality          string          `json:"modality,omitempty"`
	Content           json.RawMessage `json:"content"`
	HarmonicSignature string          `json:"harmonic_signature,omitempty"`
}

// SendResponse acknowledges an accepted envelope.
type SendResponse struct {
	Status  string `json:"status"`
	Channel string `json:"channel"`
	To      string `json:"to,omitempty"`
}

// Send posts one envelope to the bridge.
func (b *BridgeClient) Send(ctx context.Context, req SendRequest) (*SendResponse, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return nil, err
	}

	httpReq, err := http.NewRequestWithContext(ctx, "POST", b.BaseURL+"/ubhp/send", bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	httpReq.Header.Set("Content-Type", "application/json")
	if b.APIKey != "" {
		httpReq.Header.Set("X-API-Key", b.APIKey)
	} else if b.Bearer != "" {
		httpReq.Header.Set("Authorization", "Bearer "+b.Bearer)
	}

	resp, err := b.HTTPClient.Do(httpReq)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}

	if resp.StatusCode != http.StatusAccepted {
		var apiErr struct {
			Error string `json:"error"`
		}
		if json.Unmarshal(respBody, &apiErr) == nil && apiErr.Error != "" {
			return nil, fmt.Errorf("bridge: %s (HTTP %d)", apiErr.Error, resp.StatusCode)
		}
		return nil, fmt.Errorf("bridge: HTTP %d", resp.StatusCode)
	}

	var out SendResponse
	if err := json.Unmarshal(respBody, &out); err != nil {
		return nil, err
	}
	return &out, nil
}
