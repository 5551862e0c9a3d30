package bridge

import (
	"context"
	"encoding/json"
	"errors"
	"net/url"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/ubhp-protocol/agenthub/internal/metrics"
	"github.com/ubhp-protocol/agenthub/internal/models"
)

// PeerID is the connection ID the bridge uses on the hub.
const PeerID = "ubhp-bridge"

const (
	reconnectDelay = time.Second
	hubWriteWait   = 10 * time.Second
)

var ErrHubDown = errors.New("hub connection is down")

// Forwarder pushes envelopes toward the hub. The production implementation
// is HubClient; tests inject fakes.
type Forwarder interface {
	Forward(env *models.Envelope) error
	Connected() bool
}

// HubClient maintains the bridge's outbound WebSocket connection to the
// hub, redialing with a fixed delay whenever it drops. Sends while
// disconnected fail fast; nothing is queued.
type HubClient struct {
	hubURL string
	token  string // peer token, when the hub requires auth
	logger zerolog.Logger

	mu   sync.Mutex
	conn *websocket.Conn
}

// NewHubClient creates a hub client. Run must be called to connect.
func NewHubClient(hubURL, token string, logger zerolog.Logger) *HubClient {
	return &HubClient{hubURL: hubURL, token: token, logger: logger}
}

// Run dials the hub and keeps the connection alive until ctx is cancelled.
func (c *HubClient) Run(ctx context.Context) {
	for {
		if err := c.connect(ctx); err != nil {
			c.logger.Warn().Err(err).Str("hub_url", c.hubURL).Msg("hub dial failed")
		} else {
			c.readLoop(ctx)
		}

		c.setConn(nil)

		select {
		case <-ctx.Done():
			return
		case <-time.After(reconnectDelay):
		}
	}
}

// connect dials the hub as a client peer.
func (c *HubClient) connect(ctx context.Context) error {
	u, err := url.Parse(c.hubURL)
	if err != nil {
		return err
	}
	q := u.Query()
	q.Set("id", PeerID)
	q.Set("kind", models.KindClient)
	if c.token != "" {
		q.Set("token", c.token)
	}
	u.RawQuery = q.Encode()

	dialCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	conn, _, err := websocket.DefaultDialer.DialContext(dialCtx, u.String(), nil)
	if err != nil {
		return err
	}

	c.setConn(conn)
	c.logger.Info().Str("hub_url", c.hubURL).Msg("connected to hub")
	return nil
}

// readLoop drains inbound frames so control messages are processed. The
// bridge ignores hub-to-bridge traffic; it exists only to push envelopes in.
func (c *HubClient) readLoop(ctx context.Context) {
	conn := c.getConn()
	if conn == nil {
		return
	}

	done := make(chan struct{})
	go func() {
		select {
		case <-ctx.Done():
			conn.Close()
		case <-done:
		}
	}()
	defer close(done)

	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			c.logger.Warn().Err(err).Msg("hub connection lost")
			return
		}
	}
}

func (c *HubClient) setConn(conn *websocket.Conn) {
	c.mu.Lock()
	old := c.conn
	c.conn = conn
	c.mu.Unlock()

	if conn != nil {
		metrics.BridgeHubConnected.Set(1)
	} else {
		metrics.BridgeHubConnected.Set(0)
	}
	if old != nil && old != conn {
		old.Close()
	}
}

func (c *HubClient) getConn() *websocket.Conn {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.conn
}

// Connected reports whether the hub connection is currently up.
func (c *HubClient) Connected() bool {
	return c.getConn() != nil
}

// Forward sends one envelope to the hub. It fails immediately when the
// connection is down; the caller surfaces that as 503.
func (c *HubClient) Forward(env *models.Envelope) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.conn == nil {
		return ErrHubDown
	}

	data, err := json.Marshal(env)
	if err != nil {
		return err
	}

	c.conn.SetWriteDeadline(time.Now().Add(hubWriteWait))
	if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
		// The read loop will notice the broken connection and redial.
		return err
	}
	return nil
}
