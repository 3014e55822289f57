package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/dynsweep/bili-dynamic-cleaner/engine"
	"github.com/dynsweep/bili-dynamic-cleaner/middleware"
	"github.com/dynsweep/bili-dynamic-cleaner/types"
	"github.com/sirupsen/logrus"
)

// startRunRequest is the request body for starting a run
type startRunRequest struct {
	Mode  string `json:"mode"`
	Param string `json:"param"`
}

// startRunResponse is the response body for a started run
type startRunResponse struct {
	RunID string `json:"run_id"`
	State string `json:"state"`
}

/*
HandleStartRun launches a new cleanup run.

Request body:

	{"mode": "auto" | "user" | "days_ago", "param": "<mode parameter>"}

Response:
  - 202 Accepted: Run started, body carries the run id.
  - 400 Bad Request: Malformed body or invalid mode parameter.
  - 409 Conflict: A run is already active.
*/
func (h *Handler) HandleStartRun(w http.ResponseWriter, r *http.Request) {
	reqID := requestID(w, r)

	var req startRunRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		middleware.RespondBadRequest(w, fmt.Errorf("invalid request body: %w", err), reqID)
		return
	}

	h.Logger.WithFields(logrus.Fields{
		"request_id": reqID,
		"mode":       req.Mode,
		"action":     "start_run",
	}).Info("Processing run start request")

	runID, err := h.Controller.Start(r.Context(), types.CleanMode(req.Mode), req.Param)
	if err != nil {
		if errors.Is(err, engine.ErrRunActive) {
			middleware.RespondConflict(w, err, reqID)
			return
		}
		middleware.RespondValidationError(w, err, reqID)
		return
	}

	writeJSON(w, http.StatusAccepted, startRunResponse{RunID: runID, State: string(types.StateRunning)})
}

// HandlePauseRun suspends the active run between batches
func (h *Handler) HandlePauseRun(w http.ResponseWriter, r *http.Request) {
	reqID := requestID(w, r)
	if err := h.Controller.Pause(); err != nil {
		middleware.RespondConflict(w, err, reqID)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"state": string(types.StatePaused)})
}

// HandleResumeRun continues a paused run
func (h *Handler) HandleResumeRun(w http.ResponseWriter, r *http.Request) {
	reqID := requestID(w, r)
	if err := h.Controller.Resume(); err != nil {
		middleware.RespondConflict(w, err, reqID)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"state": string(types.StateRunning)})
}

// HandleStopRun requests the active run to finish after the current batch
func (h *Handler) HandleStopRun(w http.ResponseWriter, r *http.Request) {
	reqID := requestID(w, r)
	if err := h.Controller.Stop(); err != nil {
		middleware.RespondConflict(w, err, reqID)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"state": string(types.StateStopping)})
}
