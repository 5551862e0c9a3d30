package handlers

import (
	"net/http"

	"github.com/ubhp-protocol/agenthub/internal/models"
)

// ChannelHistoryStats represents retained-history counts for one channel.
type ChannelHistoryStats struct {
	Channel  string `json:"channel"`
	Retained int64  `json:"retained"`
}

// StatsResponse represents the response from the stats endpoint.
type StatsResponse struct {
	KnownPeers      int64                 `json:"known_peers"`
	TotalConnects   int64                 `json:"total_connects"`
	ConnectedAgents int                   `json:"connected_agents"`
	ConnectedUsers  int                   `json:"connected_clients"`
	History         []ChannelHistoryStats `json:"history,omitempty"`
}

// Stats returns relay statistics: registry totals plus live connection
// counts. History counts appear only when Redis is configured.
func (h *Handler) Stats(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	resp := StatsResponse{
		ConnectedAgents: h.registry.Count(models.KindAgent),
		ConnectedUsers:  h.registry.Count(models.KindClient),
	}

	if h.data != nil {
		knownPeers, err := h.data.CountPeers(ctx)
		if err != nil {
			h.Error(w, http.StatusInternalServerError, "failed to count peers")
			return
		}
		resp.KnownPeers = knownPeers

		totalConnects, err := h.data.SumConnects(ctx)
		if err != nil {
			h.Error(w, http.StatusInternalServerError, "failed to sum connects")
			return
		}
		resp.TotalConnects = totalConnects
	}

	if h.redis != nil {
		for _, channel := range []string{
			models.ChannelAgentToAgent,
			models.ChannelUserToAgent,
			models.ChannelAgentToUser,
		} {
			retained, err := h.redis.CountChannelEnvelopes(ctx, channel)
			if err != nil {
				// Non-fatal, history stats are best-effort
				continue
			}
			resp.History = append(resp.History, ChannelHistoryStats{
				Channel:  channel,
				Retained: retained,
			})
		}
	}

	h.JSON(w, http.StatusOK, resp)
}
