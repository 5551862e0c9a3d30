package hub

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/ubhp-protocol/agenthub/internal/models"
)

func newTestHub(t *testing.T) (*Hub, Registry) {
	t.Helper()
	registry := NewRegistry()
	return New(registry, zerolog.Nop(), Options{}), registry
}

func envelope(t *testing.T, channel, to string) []byte {
	t.Helper()
	data, err := json.Marshal(&models.Envelope{
		Role:    models.RoleAgent,
		To:      to,
		Type:    "text",
		Meta:    models.Meta{Channel: channel},
		Content: json.RawMessage(`{"text":"hi"}`),
	})
	if err != nil {
		t.Fatal(err)
	}
	return data
}

func decode(t *testing.T, data []byte) *models.Envelope {
	t.Helper()
	var env models.Envelope
	if err := json.Unmarshal(data, &env); err != nil {
		t.Fatal(err)
	}
	return &env
}

func TestRouteAddressedAgentToAgent(t *testing.T) {
	h, r := newTestHub(t)
	src := &fakePeer{id: "a1", kind: models.KindAgent}
	target := &fakePeer{id: "a2", kind: models.KindAgent}
	other := &fakePeer{id: "a3", kind: models.KindAgent}
	r.Register(src)
	r.Register(target)
	r.Register(other)

	h.Route(src, envelope(t, models.ChannelAgentToAgent, "a2"))

	if len(target.recv) != 1 {
		t.Fatalf("target expected 1 message, got %d", len(target.recv))
	}
	if len(other.recv) != 0 || len(src.recv) != 0 {
		t.Fatal("exactly the addressed peer must receive the message and no other peer")
	}
}

func TestRouteBroadcastUserToAgent(t *testing.T) {
	h, r := newTestHub(t)
	src := &fakePeer{id: "c1", kind: models.KindClient}
	a1 := &fakePeer{id: "a1", kind: models.KindAgent}
	a2 := &fakePeer{id: "a2", kind: models.KindAgent}
	c2 := &fakePeer{id: "c2", kind: models.KindClient}
	r.Register(src)
	r.Register(a1)
	r.Register(a2)
	r.Register(c2)

	h.Route(src, envelope(t, models.ChannelUserToAgent, ""))

	if len(a1.recv) != 1 || len(a2.recv) != 1 {
		t.Fatal("every connected agent must receive a u2a broadcast")
	}
	if len(c2.recv) != 0 {
		t.Fatal("clients must not receive a u2a broadcast")
	}
}

func TestRouteAgentToAgentBroadcastExcludesSender(t *testing.T) {
	h, r := newTestHub(t)
	src := &fakePeer{id: "a1", kind: models.KindAgent}
	a2 := &fakePeer{id: "a2", kind: models.KindAgent}
	r.Register(src)
	r.Register(a2)

	h.Route(src, envelope(t, models.ChannelAgentToAgent, ""))

	if len(src.recv) != 0 {
		t.Fatal("sender must not receive its own a2a broadcast")
	}
	if len(a2.recv) != 1 {
		t.Fatal("other agent missed the broadcast")
	}
}

func TestRouteAgentToUser(t *testing.T) {
	h, r := newTestHub(t)
	src := &fakePeer{id: "a1", kind: models.KindAgent}
	c1 := &fakePeer{id: "c1", kind: models.KindClient}
	r.Register(src)
	r.Register(c1)

	h.Route(src, envelope(t, models.ChannelAgentToUser, "c1"))

	if len(c1.recv) != 1 {
		t.Fatalf("client expected 1 message, got %d", len(c1.recv))
	}
}

func TestRouteStampsHubFields(t *testing.T) {
	h, r := newTestHub(t)
	src := &fakePeer{id: "a1", kind: models.KindAgent}
	target := &fakePeer{id: "a2", kind: models.KindAgent}
	r.Register(src)
	r.Register(target)

	h.Route(src, envelope(t, models.ChannelAgentToAgent, "a2"))

	out := decode(t, target.recv[0])
	if out.ID == "" {
		t.Fatal("hub must stamp an envelope ID")
	}
	if out.Timestamp == 0 {
		t.Fatal("hub must stamp a timestamp")
	}
	if out.From != "a1" {
		t.Fatalf("hub must stamp from with the connection ID, got %q", out.From)
	}
	if out.Signature != models.HarmonicSignature(out.Content) {
		t.Fatal("hub must stamp the display signature when absent")
	}
}

func TestRouteKeepsExplicitFrom(t *testing.T) {
	h, r := newTestHub(t)
	src := &fakePeer{id: "bridge", kind: models.KindClient}
	target := &fakePeer{id: "a1", kind: models.KindAgent}
	r.Register(src)
	r.Register(target)

	data, _ := json.Marshal(&models.Envelope{
		From:    "external-user",
		To:      "a1",
		Meta:    models.Meta{Channel: models.ChannelUserToAgent},
		Content: json.RawMessage(`{"text":"hi"}`),
	})
	h.Route(src, data)

	out := decode(t, target.recv[0])
	if out.From != "external-user" {
		t.Fatalf("explicit from must be preserved, got %q", out.From)
	}
}

func TestRouteMalformedJSONNotifiesSender(t *testing.T) {
	h, r := newTestHub(t)
	src := &fakePeer{id: "a1", kind: models.KindAgent}
	r.Register(src)

	h.Route(src, []byte("{not json"))

	if len(src.recv) != 1 {
		t.Fatalf("sender expected an error envelope, got %d messages", len(src.recv))
	}
	out := decode(t, src.recv[0])
	if out.Role != models.RoleSystem || out.Type != "error" {
		t.Fatalf("expected system error envelope, got role=%s type=%s", out.Role, out.Type)
	}
}

func TestRouteUnknownChannelNotifiesSender(t *testing.T) {
	h, r := newTestHub(t)
	src := &fakePeer{id: "a1", kind: models.KindAgent}
	other := &fakePeer{id: "a2", kind: models.KindAgent}
	r.Register(src)
	r.Register(other)

	h.Route(src, envelope(t, "bogus", ""))

	if len(other.recv) != 0 {
		t.Fatal("unroutable envelope must not be forwarded")
	}
	if len(src.recv) != 1 {
		t.Fatal("sender expected an error envelope")
	}
}

func TestRouteUnknownDestinationNotifiesSender(t *testing.T) {
	h, r := newTestHub(t)
	src := &fakePeer{id: "a1", kind: models.KindAgent}
	r.Register(src)

	h.Route(src, envelope(t, models.ChannelAgentToAgent, "ghost"))

	if len(src.recv) != 1 {
		t.Fatal("sender expected an error envelope")
	}
	out := decode(t, src.recv[0])
	if out.Type != "error" {
		t.Fatalf("expected error envelope, got type=%s", out.Type)
	}
}

// TestHubEndToEnd exercises the full WebSocket path: two live peers, one
// addressed envelope.
func TestHubEndToEnd(t *testing.T) {
	relay, _ := newTestHub(t)
	srv := httptest.NewServer(http.HandlerFunc(relay.HandleWS))
	defer srv.Close()

	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http")

	agent, _, err := websocket.DefaultDialer.Dial(wsURL+"/?id=a1&kind=agent", nil)
	if err != nil {
		t.Fatal(err)
	}
	defer agent.Close()

	client, _, err := websocket.DefaultDialer.Dial(wsURL+"/?id=c1&kind=client", nil)
	if err != nil {
		t.Fatal(err)
	}
	defer client.Close()

	// Give the hub a moment to register both peers.
	deadline := time.Now().Add(2 * time.Second)
	for relay.Registry().Count(models.KindClient) == 0 || relay.Registry().Count(models.KindAgent) == 0 {
		if time.Now().After(deadline) {
			t.Fatal("peers did not register in time")
		}
		time.Sleep(10 * time.Millisecond)
	}

	err = agent.WriteJSON(&models.Envelope{
		Role:    models.RoleAgent,
		To:      "c1",
		Type:    "text",
		Meta:    models.Meta{Channel: models.ChannelAgentToUser},
		Content: json.RawMessage(`{"text":"hello"}`),
	})
	if err != nil {
		t.Fatal(err)
	}

	client.SetReadDeadline(time.Now().Add(2 * time.Second))
	var got models.Envelope
	if err := client.ReadJSON(&got); err != nil {
		t.Fatal(err)
	}

	if got.From != "a1" || got.To != "c1" {
		t.Fatalf("unexpected envelope: from=%s to=%s", got.From, got.To)
	}
	if got.ID == "" || got.Timestamp == 0 {
		t.Fatal("hub did not stamp id/ts")
	}
}

func TestHandleWSRejectsBadKind(t *testing.T) {
	relay, _ := newTestHub(t)
	srv := httptest.NewServer(http.HandlerFunc(relay.HandleWS))
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/?id=x&kind=gateway")
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", resp.StatusCode)
	}
}
