package handlers

import (
	"net/http"

	"github.com/dynsweep/bili-dynamic-cleaner/middleware"
	"github.com/dynsweep/bili-dynamic-cleaner/types"
)

// HandleGetUnfollowQueue returns the authors currently queued for unfollowing
func (h *Handler) HandleGetUnfollowQueue(w http.ResponseWriter, r *http.Request) {
	reqID := requestID(w, r)

	entries, err := h.Queue.List()
	if err != nil {
		middleware.RespondInternalError(w, err, reqID)
		return
	}
	if entries == nil {
		entries = []types.UnfollowEntry{}
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"entries": entries,
		"count":   len(entries),
	})
}
