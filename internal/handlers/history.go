package handlers

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/ubhp-protocol/agenthub/internal/models"
)

// HistoryResponse represents the envelope history response.
type HistoryResponse struct {
	Channel   string            `json:"channel"`
	Envelopes []models.Envelope `json:"envelopes"`
	HasMore   bool              `json:"has_more"`
}

// History handles GET /history/{channel}: recent envelopes routed on a
// channel, newest first. Requires Redis; without it the hub retains nothing.
func (h *Handler) History(w http.ResponseWriter, r *http.Request) {
	if h.redis == nil {
		h.Error(w, http.StatusServiceUnavailable, "envelope history not configured")
		return
	}

	channel := chi.URLParam(r, "channel")
	switch channel {
	case models.ChannelAgentToAgent, models.ChannelUserToAgent, models.ChannelAgentToUser:
	default:
		h.Error(w, http.StatusBadRequest, "channel must be a2a, u2a, or a2u")
		return
	}

	limit := 50
	if limitStr := r.URL.Query().Get("limit"); limitStr != "" {
		if l, err := strconv.Atoi(limitStr); err == nil && l > 0 {
			limit = l
		}
	}
	if limit > 200 {
		limit = 200
	}

	var before int64 = 0
	if beforeStr := r.URL.Query().Get("before"); beforeStr != "" {
		if b, err := strconv.ParseInt(beforeStr, 10, 64); err == nil {
			before = b
		}
	}

	// Fetch +1 for the has_more check
	envelopes, err := h.redis.GetChannelEnvelopes(r.Context(), channel, limit+1, before)
	if err != nil {
		h.Error(w, http.StatusInternalServerError, "failed to fetch history")
		return
	}

	hasMore := len(envelopes) > limit
	if hasMore {
		envelopes = envelopes[:limit]
	}

	h.JSON(w, http.StatusOK, HistoryResponse{
		Channel:   channel,
		Envelopes: envelopes,
		HasMore:   hasMore,
	})
}
