package bridge

import (
	"encoding/json"
	"net/http"

	"github.com/rs/zerolog"

	"github.com/ubhp-protocol/agenthub/internal/metrics"
	"github.com/ubhp-protocol/agenthub/internal/models"
)

// SendRequest is the UBHP ingress body accepted on POST /ubhp/send.
type SendRequest struct {
	Sender            string          `json:"sender"`
	Receiver          string          `json:"receiver"`
	Modality          string          `json:"modality"`
	Content           json.RawMessage `json:"content"`
	HarmonicSignature string          `json:"harmonic_signature"`
}

// SendResponse acknowledges an accepted envelope. Acceptance means the
// envelope was written to the hub, not that it was delivered: the relay is
// fire-and-forget end to end.
type SendResponse struct {
	Status  string `json:"status"`
	Channel string `json:"channel"`
	To      string `json:"to,omitempty"`
}

// Handler serves the bridge's HTTP ingress.
type Handler struct {
	fw     Forwarder
	logger zerolog.Logger
}

// NewHandler creates a bridge handler around a hub forwarder.
func NewHandler(fw Forwarder, logger zerolog.Logger) *Handler {
	return &Handler{fw: fw, logger: logger}
}

// Send handles POST /ubhp/send: translate the UBHP body to a u2a envelope
// and push it into the hub.
func (h *Handler) Send(w http.ResponseWriter, r *http.Request) {
	metrics.BridgeRequests.Inc()

	var req SendRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.Error(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	if req.Sender == "" {
		h.Error(w, http.StatusBadRequest, "sender is required")
		return
	}
	if len(req.Content) == 0 {
		h.Error(w, http.StatusBadRequest, "content is required")
		return
	}

	modality := req.Modality
	if modality == "" {
		modality = "text"
	}

	env := &models.Envelope{
		Role:      models.RoleUser,
		From:      req.Sender,
		To:        req.Receiver,
		Type:      modality,
		Meta:      models.Meta{Channel: models.ChannelUserToAgent},
		Content:   req.Content,
		Signature: req.HarmonicSignature,
	}

	if !h.fw.Connected() {
		h.Error(w, http.StatusServiceUnavailable, "hub connection is down")
		return
	}

	if err := h.fw.Forward(env); err != nil {
		h.logger.Error().Err(err).Str("sender", req.Sender).Msg("forward to hub failed")
		h.Error(w, http.StatusServiceUnavailable, "failed to forward to hub")
		return
	}

	metrics.BridgeForwarded.Inc()
	h.logger.Debug().
		Str("sender", req.Sender).
		Str("receiver", req.Receiver).
		Str("modality", modality).
		Msg("envelope forwarded")

	h.JSON(w, http.StatusAccepted, SendResponse{
		Status:  "accepted",
		Channel: models.ChannelUserToAgent,
		To:      req.Receiver,
	})
}

// JSON sends a JSON response with the given status code.
func (h *Handler) JSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

// Error sends a JSON error response with the given status code.
func (h *Handler) Error(w http.ResponseWriter, status int, message string) {
	h.JSON(w, status, map[string]string{"error": message})
}

// Health handles the bridge health endpoint: 200 while the hub connection
// is up, 503 while it is down.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	if !h.fw.Connected() {
		h.JSON(w, http.StatusServiceUnavailable, map[string]string{
			"status": "degraded",
			"hub":    "disconnected",
		})
		return
	}
	h.JSON(w, http.StatusOK, map[string]string{
		"status": "healthy",
		"hub":    "connected",
	})
}
