package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"
)

// WhoResponse represents the peer profile response.
type WhoResponse struct {
	ID           string `json:"id"`
	Name         string `json:"name,omitempty"`
	Kind         string `json:"kind,omitempty"`
	ConnectCount int64  `json:"connect_count"`
	FirstSeen    string `json:"first_seen"`
	LastSeen     string `json:"last_seen"`
	Connected    bool   `json:"connected"`
}

// Who handles peer profile lookup.
func (h *Handler) Who(w http.ResponseWriter, r *http.Request) {
	if h.data == nil {
		h.Error(w, http.StatusServiceUnavailable, "peer registry not configured")
		return
	}

	id := chi.URLParam(r, "id")

	peer, err := h.data.GetPeer(r.Context(), id)
	if err != nil {
		h.Error(w, http.StatusInternalServerError, "database error")
		return
	}

	if peer == nil {
		h.Error(w, http.StatusNotFound, "peer not found")
		return
	}

	connected := false
	if peer.Kind != "" {
		for _, cid := range h.registry.IDs(peer.Kind) {
			if cid == peer.ID {
				connected = true
				break
			}
		}
	}

	h.JSON(w, http.StatusOK, WhoResponse{
		ID:           peer.ID,
		Name:         peer.Name,
		Kind:         peer.Kind,
		ConnectCount: peer.ConnectCount,
		FirstSeen:    peer.FirstSeen.UTC().Format("2006-01-02T15:04:05Z"),
		LastSeen:     peer.LastSeen.UTC().Format("2006-01-02T15:04:05Z"),
		Connected:    connected,
	})
}
