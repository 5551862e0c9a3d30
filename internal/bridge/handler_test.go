package bridge

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/rs/zerolog"

	"github.com/ubhp-protocol/agenthub/internal/models"
)

type fakeForwarder struct {
	connected bool
	err       error
	sent      []*models.Envelope
}

func (f *fakeForwarder) Connected() bool { return f.connected }

func (f *fakeForwarder) Forward(env *models.Envelope) error {
	if f.err != nil {
		return f.err
	}
	f.sent = append(f.sent, env)
	return nil
}

func postSend(h *Handler, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, "/ubhp/send", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	h.Send(rec, req)
	return rec
}

func TestSendAccepted(t *testing.T) {
	fw := &fakeForwarder{connected: true}
	h := NewHandler(fw, zerolog.Nop())

	rec := postSend(h, `{"sender":"user-1","receiver":"agent-1","content":{"text":"hi"}}`)
	if rec.Code != http.StatusAccepted {
		t.Fatalf("status = %d, want 202: %s", rec.Code, rec.Body.String())
	}

	var resp SendResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatal(err)
	}
	if resp.Status != "accepted" || resp.Channel != models.ChannelUserToAgent || resp.To != "agent-1" {
		t.Fatalf("unexpected response: %+v", resp)
	}

	if len(fw.sent) != 1 {
		t.Fatalf("forwarded %d envelopes, want 1", len(fw.sent))
	}
	env := fw.sent[0]
	if env.Role != models.RoleUser || env.From != "user-1" || env.To != "agent-1" {
		t.Fatalf("unexpected envelope: %+v", env)
	}
	if env.Meta.Channel != models.ChannelUserToAgent {
		t.Fatalf("channel = %q, want u2a", env.Meta.Channel)
	}
	if env.Type != "text" {
		t.Fatalf("modality must default to text, got %q", env.Type)
	}
}

func TestSendCarriesModalityAndSignature(t *testing.T) {
	fw := &fakeForwarder{connected: true}
	h := NewHandler(fw, zerolog.Nop())

	rec := postSend(h, `{"sender":"u","modality":"audio","harmonic_signature":"cafebabe","content":{"uri":"x"}}`)
	if rec.Code != http.StatusAccepted {
		t.Fatalf("status = %d, want 202", rec.Code)
	}
	env := fw.sent[0]
	if env.Type != "audio" || env.Signature != "cafebabe" {
		t.Fatalf("unexpected envelope: type=%q signature=%q", env.Type, env.Signature)
	}
}

func TestSendBadRequests(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"invalid json", `{nope`},
		{"missing sender", `{"content":{"text":"hi"}}`},
		{"missing content", `{"sender":"u"}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fw := &fakeForwarder{connected: true}
			h := NewHandler(fw, zerolog.Nop())
			rec := postSend(h, tt.body)
			if rec.Code != http.StatusBadRequest {
				t.Fatalf("status = %d, want 400", rec.Code)
			}
			if len(fw.sent) != 0 {
				t.Fatal("rejected request must not be forwarded")
			}
		})
	}
}

func TestSendHubDown(t *testing.T) {
	h := NewHandler(&fakeForwarder{connected: false}, zerolog.Nop())
	rec := postSend(h, `{"sender":"u","content":{"text":"hi"}}`)
	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("status = %d, want 503", rec.Code)
	}
}

func TestSendForwardError(t *testing.T) {
	h := NewHandler(&fakeForwarder{connected: true, err: errors.New("write: broken pipe")}, zerolog.Nop())
	rec := postSend(h, `{"sender":"u","content":{"text":"hi"}}`)
	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("status = %d, want 503", rec.Code)
	}
}

func TestHealth(t *testing.T) {
	h := NewHandler(&fakeForwarder{connected: true}, zerolog.Nop())
	rec := httptest.NewRecorder()
	h.Health(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("connected: status = %d, want 200", rec.Code)
	}

	h = NewHandler(&fakeForwarder{connected: false}, zerolog.Nop())
	rec = httptest.NewRecorder()
	h.Health(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("disconnected: status = %d, want 503", rec.Code)
	}
}
