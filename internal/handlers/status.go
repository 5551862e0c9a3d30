package handlers

import (
	"net/http"
	"sort"

	"github.com/ubhp-protocol/agenthub/internal/models"
)

// StatusResponse lists the currently connected peers.
type StatusResponse struct {
	Clients     []string `json:"clients"`
	Agents      []string `json:"agents"`
	ClientCount int      `json:"client_count"`
	AgentCount  int      `json:"agent_count"`
}

// Status handles GET /status: connected client/agent ID lists and counts.
func (h *Handler) Status(w http.ResponseWriter, r *http.Request) {
	clients := h.registry.IDs(models.KindClient)
	agents := h.registry.IDs(models.KindAgent)
	sort.Strings(clients)
	sort.Strings(agents)

	h.JSON(w, http.StatusOK, StatusResponse{
		Clients:     clients,
		Agents:      agents,
		ClientCount: len(clients),
		AgentCount:  len(agents),
	})
}
