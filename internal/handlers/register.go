package handlers

import (
	"crypto/rand"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net/http"
	"regexp"

	"golang.org/x/crypto/bcrypt"

	"github.com/ubhp-protocol/agenthub/internal/metrics"
)

// Peer ID validation: alphanumeric plus separators, 1-64 chars. Free-text
// IDs are the wire contract, but the registry rejects IDs that would be
// unusable as query parameters or log fields.
var peerIDRegex = regexp.MustCompile(`^[a-zA-Z0-9._:-]{1,64}$`)

// RegisterRequest represents the registration request body.
type RegisterRequest struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// RegisterResponse represents the registration response. The token is
// returned once and stored only as a bcrypt hash; re-registering the same
// ID rotates it.
type RegisterResponse struct {
	ID         string `json:"id"`
	Token      string `json:"token"`
	ProfileURL string `json:"profile_url"`
}

// Register handles peer registration.
func (h *Handler) Register(w http.ResponseWriter, r *http.Request) {
	if h.data == nil {
		h.Error(w, http.StatusServiceUnavailable, "peer registry not configured")
		return
	}

	var req RegisterRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.Error(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	if req.ID == "" {
		h.Error(w, http.StatusBadRequest, "id is required")
		return
	}
	if !peerIDRegex.MatchString(req.ID) {
		h.Error(w, http.StatusBadRequest, "id must be 1-64 characters: letters, digits, dot, underscore, colon, hyphen")
		return
	}

	name := sanitizeName(req.Name)

	token, err := newToken()
	if err != nil {
		h.Error(w, http.StatusInternalServerError, "failed to generate token")
		return
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(token), bcrypt.DefaultCost)
	if err != nil {
		h.Error(w, http.StatusInternalServerError, "failed to hash token")
		return
	}

	peer, err := h.data.UpsertPeer(r.Context(), req.ID, name, string(hash))
	if err != nil {
		h.Error(w, http.StatusInternalServerError, "failed to register peer")
		return
	}

	metrics.PeersRegistered.Inc()

	h.JSON(w, http.StatusCreated, RegisterResponse{
		ID:         peer.ID,
		Token:      token,
		ProfileURL: fmt.Sprintf("/who/%s", peer.ID),
	})
}

// newToken returns 32 random bytes, base64url-encoded.
func newToken() (string, error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(buf), nil
}
