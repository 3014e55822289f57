package handlers

import (
	"fmt"
	"net/http"
	"strconv"

	"github.com/dynsweep/bili-dynamic-cleaner/engine"
	"github.com/dynsweep/bili-dynamic-cleaner/middleware"
)

// HandleGetStatus returns a point-in-time snapshot of the current or last run
func (h *Handler) HandleGetStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.Controller.Snapshot())
}

/*
HandleGetReport returns the completed-run report.

Query Parameters:
  - format: "json" (default) or "text" for the rendered plain-text report.

Response:
  - 200 OK: The report.
  - 404 Not Found: No run has finished yet.
*/
func (h *Handler) HandleGetReport(w http.ResponseWriter, r *http.Request) {
	reqID := requestID(w, r)

	report := h.Controller.Report()
	if report == nil {
		middleware.RespondNotFound(w, fmt.Errorf("no completed run report available"), reqID)
		return
	}

	if r.URL.Query().Get("format") == "text" {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		w.WriteHeader(http.StatusOK)
		fmt.Fprint(w, engine.RenderReport(report))
		return
	}

	writeJSON(w, http.StatusOK, report)
}

/*
HandleGetLogs returns run journal events.

Query Parameters:
  - after: Only events with a sequence number greater than this are returned.
    Defaults to 0, returning every retained event.
*/
func (h *Handler) HandleGetLogs(w http.ResponseWriter, r *http.Request) {
	reqID := requestID(w, r)

	var afterSeq int64
	if raw := r.URL.Query().Get("after"); raw != "" {
		parsed, err := strconv.ParseInt(raw, 10, 64)
		if err != nil || parsed < 0 {
			middleware.RespondBadRequest(w, fmt.Errorf("invalid after parameter %q", raw), reqID)
			return
		}
		afterSeq = parsed
	}

	events := h.Journal.EventsAfter(afterSeq)
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"events": events,
		"count":  len(events),
	})
}
