package handlers

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/dynsweep/bili-dynamic-cleaner/config"
	"github.com/dynsweep/bili-dynamic-cleaner/middleware"
	"github.com/sirupsen/logrus"
)

// settingsPayload is the JSON shape of the operator settings
type settingsPayload struct {
	UnfollowEnabled     bool `json:"unfollow_enabled"`
	AutoPauseEnabled    bool `json:"auto_pause_enabled"`
	LotteryQueryRetries int  `json:"lottery_query_retries"`
}

// HandleGetSettings returns the current operator settings
func (h *Handler) HandleGetSettings(w http.ResponseWriter, r *http.Request) {
	reqID := requestID(w, r)

	settings, err := h.Settings.Load()
	if err != nil {
		middleware.RespondInternalError(w, err, reqID)
		return
	}

	writeJSON(w, http.StatusOK, settingsPayload{
		UnfollowEnabled:     settings.UnfollowEnabled,
		AutoPauseEnabled:    settings.AutoPauseEnabled,
		LotteryQueryRetries: settings.LotteryQueryRetries,
	})
}

/*
HandleUpdateSettings replaces the operator settings.

The new values take effect at the start of the next run; an active run keeps
the settings it was started with.

Response:
  - 200 OK: Settings persisted.
  - 400 Bad Request: Malformed body or out-of-range values.
*/
func (h *Handler) HandleUpdateSettings(w http.ResponseWriter, r *http.Request) {
	reqID := requestID(w, r)

	var payload settingsPayload
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		middleware.RespondBadRequest(w, fmt.Errorf("invalid request body: %w", err), reqID)
		return
	}

	settings := config.Settings{
		UnfollowEnabled:     payload.UnfollowEnabled,
		AutoPauseEnabled:    payload.AutoPauseEnabled,
		LotteryQueryRetries: payload.LotteryQueryRetries,
	}
	if err := h.Settings.Save(settings); err != nil {
		middleware.RespondValidationError(w, err, reqID)
		return
	}

	h.Logger.WithFields(logrus.Fields{
		"request_id":            reqID,
		"unfollow_enabled":      settings.UnfollowEnabled,
		"auto_pause_enabled":    settings.AutoPauseEnabled,
		"lottery_query_retries": settings.LotteryQueryRetries,
	}).Info("Settings updated")

	writeJSON(w, http.StatusOK, payload)
}
