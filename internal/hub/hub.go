package hub

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/oklog/ulid/v2"
	"github.com/rs/zerolog"
	"golang.org/x/crypto/bcrypt"

	"github.com/ubhp-protocol/agenthub/internal/metrics"
	"github.com/ubhp-protocol/agenthub/internal/models"
	"github.com/ubhp-protocol/agenthub/internal/store"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = 30 * time.Second
	maxMessageSize = 64 * 1024
	sendBufferSize = 256
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// Peers are agents and CLIs, not browsers; origin is not meaningful.
	CheckOrigin: func(r *http.Request) bool { return true },
}

// Hub routes envelopes between WebSocket-connected peers. Delivery is
// fire-and-forget: a disconnected or slow destination drops the envelope.
type Hub struct {
	registry    Registry
	data        store.DataStore
	redis       *store.RedisStore
	logger      zerolog.Logger
	requireAuth bool
}

// Options configures optional Hub behavior.
type Options struct {
	// Data is the peer registry store used for connect accounting and,
	// when RequireAuth is set, token verification. May be nil.
	Data store.DataStore
	// Redis enables per-channel envelope history. May be nil.
	Redis *store.RedisStore
	// RequireAuth makes the WS endpoint demand a registered peer token.
	RequireAuth bool
}

// New creates a Hub around the given registry.
func New(registry Registry, logger zerolog.Logger, opts Options) *Hub {
	return &Hub{
		registry:    registry,
		data:        opts.Data,
		redis:       opts.Redis,
		logger:      logger,
		requireAuth: opts.RequireAuth,
	}
}

// Registry exposes the connection registry for status handlers.
func (h *Hub) Registry() Registry {
	return h.registry
}

// HandleWS upgrades GET /?id=<string>&kind=client|agent to a WebSocket
// connection and runs the peer's read/write pumps.
func (h *Hub) HandleWS(w http.ResponseWriter, r *http.Request) {
	id := r.URL.Query().Get("id")
	if id == "" {
		id = uuid.NewString()
	}

	kind := r.URL.Query().Get("kind")
	if kind == "" {
		kind = models.KindClient
	}
	if kind != models.KindClient && kind != models.KindAgent {
		http.Error(w, `{"error":"kind must be client or agent"}`, http.StatusBadRequest)
		return
	}

	if h.requireAuth {
		if !h.checkPeerToken(r.Context(), id, peerToken(r)) {
			http.Error(w, `{"error":"invalid or missing peer token"}`, http.StatusUnauthorized)
			return
		}
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn().Err(err).Str("peer", id).Msg("websocket upgrade failed")
		return
	}

	peer := &wsPeer{
		id:   id,
		kind: kind,
		conn: conn,
		send: make(chan []byte, sendBufferSize),
	}

	// A reconnecting peer with the same ID replaces the old socket.
	if displaced := h.registry.Register(peer); displaced != nil {
		h.logger.Info().Str("peer", id).Str("kind", kind).Msg("peer reconnected, displacing previous connection")
		displaced.Close()
	}

	metrics.ConnectedPeers.WithLabelValues(kind).Inc()
	h.logger.Info().Str("peer", id).Str("kind", kind).Str("remote_addr", r.RemoteAddr).Msg("peer connected")

	if h.data != nil {
		// Connect accounting is best-effort; a registry outage must not
		// block the socket.
		go func() {
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := h.data.RecordConnect(ctx, id, kind); err != nil {
				h.logger.Warn().Err(err).Str("peer", id).Msg("connect accounting failed")
			}
		}()
	}

	go peer.writePump()
	go h.readPump(peer)
}

// peerToken extracts the peer access token from the upgrade request.
func peerToken(r *http.Request) string {
	if tok := r.URL.Query().Get("token"); tok != "" {
		return tok
	}
	const prefix = "Bearer "
	if authz := r.Header.Get("Authorization"); len(authz) > len(prefix) && authz[:len(prefix)] == prefix {
		return authz[len(prefix):]
	}
	return ""
}

func (h *Hub) checkPeerToken(ctx context.Context, id, token string) bool {
	if h.data == nil || token == "" {
		return false
	}
	hash, err := h.data.GetPeerTokenHash(ctx, id)
	if err != nil || hash == "" {
		return false
	}
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(token)) == nil
}

// readPump reads envelopes from one peer and routes them until the
// connection drops.
func (h *Hub) readPump(peer *wsPeer) {
	defer func() {
		h.registry.Unregister(peer)
		peer.Close()
		peer.conn.Close()
		metrics.ConnectedPeers.WithLabelValues(peer.kind).Dec()
		h.logger.Info().Str("peer", peer.id).Str("kind", peer.kind).Msg("peer disconnected")
	}()

	peer.conn.SetReadLimit(maxMessageSize)
	peer.conn.SetReadDeadline(time.Now().Add(pongWait))
	peer.conn.SetPongHandler(func(string) error {
		peer.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, raw, err := peer.conn.ReadMessage()
		if err != nil {
			return
		}
		h.Route(peer, raw)
	}
}

// Route decodes one raw message from src and forwards it by channel. The
// sender is told about undeliverable envelopes with a system error envelope;
// beyond that the relay keeps its fire-and-forget semantics.
func (h *Hub) Route(src Sender, raw []byte) {
	var env models.Envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		metrics.EnvelopesDropped.WithLabelValues("malformed").Inc()
		h.logger.Debug().Err(err).Str("peer", src.ID()).Msg("dropping malformed envelope")
		h.notify(src, "malformed envelope: invalid JSON")
		return
	}

	if err := env.Validate(); err != nil {
		metrics.EnvelopesDropped.WithLabelValues("unknown_channel").Inc()
		h.logger.Debug().Err(err).Str("peer", src.ID()).Msg("dropping unroutable envelope")
		h.notify(src, err.Error())
		return
	}

	// Stamp hub-owned fields.
	env.ID = ulid.Make().String()
	env.Timestamp = time.Now().UnixMilli()
	if env.From == "" {
		env.From = src.ID()
	}
	if env.Signature == "" {
		env.Signature = models.HarmonicSignature(env.Content)
	}

	data, err := json.Marshal(&env)
	if err != nil {
		metrics.EnvelopesDropped.WithLabelValues("malformed").Inc()
		return
	}

	h.forward(src, &env, data)
}

// forward applies the channel routing table.
func (h *Hub) forward(src Sender, env *models.Envelope, data []byte) {
	var (
		err     error
		reached int
	)

	switch env.Meta.Channel {
	case models.ChannelAgentToAgent:
		if env.To != "" {
			err = h.registry.SendTo(models.KindAgent, env.To, data)
		} else {
			exclude := ""
			if src.Kind() == models.KindAgent {
				exclude = src.ID()
			}
			reached = h.registry.Broadcast(models.KindAgent, data, exclude)
		}
	case models.ChannelUserToAgent:
		if env.To != "" {
			err = h.registry.SendTo(models.KindAgent, env.To, data)
		} else {
			reached = h.registry.Broadcast(models.KindAgent, data, "")
		}
	case models.ChannelAgentToUser:
		if env.To != "" {
			err = h.registry.SendTo(models.KindClient, env.To, data)
		} else {
			reached = h.registry.Broadcast(models.KindClient, data, "")
		}
	}

	if err != nil {
		reason := "unknown_peer"
		if err == ErrSlowPeer {
			reason = "slow_peer"
		}
		metrics.EnvelopesDropped.WithLabelValues(reason).Inc()
		h.logger.Debug().
			Str("peer", src.ID()).
			Str("to", env.To).
			Str("channel", env.Meta.Channel).
			Str("reason", reason).
			Msg("envelope dropped")
		h.notify(src, "undeliverable: "+err.Error())
		return
	}

	metrics.EnvelopesRouted.WithLabelValues(env.Meta.Channel).Inc()
	h.logger.Debug().
		Str("id", env.ID).
		Str("from", env.From).
		Str("to", env.To).
		Str("channel", env.Meta.Channel).
		Int("reached", reached).
		Msg("envelope routed")

	if h.redis != nil {
		go func() {
			ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
			defer cancel()
			if err := h.redis.AddEnvelope(ctx, env); err != nil {
				h.logger.Warn().Err(err).Msg("envelope history write failed")
			}
		}()
	}
}

// notify sends a system error envelope back to the originating peer.
func (h *Hub) notify(src Sender, reason string) {
	data, err := json.Marshal(models.ErrorEnvelope(src.ID(), reason))
	if err != nil {
		return
	}
	src.Send(data)
}

// wsPeer is the production Sender: a gorilla connection with a buffered
// send channel drained by writePump.
type wsPeer struct {
	id   string
	kind string
	conn *websocket.Conn
	send chan []byte

	mu     sync.Mutex
	closed bool
}

func (p *wsPeer) ID() string   { return p.id }
func (p *wsPeer) Kind() string { return p.kind }

// Send queues data for the write pump. A full buffer means the peer is too
// slow to keep up; the envelope is dropped rather than blocking the router.
func (p *wsPeer) Send(data []byte) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return false
	}
	select {
	case p.send <- data:
		return true
	default:
		return false
	}
}

// Close stops the write pump, which closes the underlying connection.
func (p *wsPeer) Close() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.closed {
		p.closed = true
		close(p.send)
	}
}

func (p *wsPeer) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		p.conn.Close()
	}()

	for {
		select {
		case message, ok := <-p.send:
			p.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				p.conn.WriteMessage(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseGoingAway, "replaced"))
				return
			}
			if err := p.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}

		case <-ticker.C:
			p.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := p.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
