package handlers

import (
	"net/http"
	"time"

	"github.com/dynsweep/bili-dynamic-cleaner/middleware"
	"github.com/sirupsen/logrus"
)

var startTime = time.Now()

// HealthStatus represents the health check response
type HealthStatus struct {
	Status    string            `json:"status"`
	Timestamp string            `json:"timestamp"`
	Version   string            `json:"version"`
	Services  map[string]string `json:"services"`
	Uptime    string            `json:"uptime"`
}

// HandleHealthCheck provides the overall health of the service
func (h *Handler) HandleHealthCheck(w http.ResponseWriter, r *http.Request) {
	health := HealthStatus{
		Status:    "healthy",
		Timestamp: time.Now().Format(time.RFC3339),
		Version:   "1.0.0",
		Services:  make(map[string]string),
		Uptime:    time.Since(startTime).String(),
	}

	if err := h.checkQueueHealth(); err != nil {
		health.Status = "unhealthy"
		health.Services["unfollow_queue"] = "unhealthy: " + err.Error()
		h.Logger.WithFields(logrus.Fields{
			"service": "unfollow_queue",
			"error":   err.Error(),
		}).Error("Health check failed for unfollow queue")
	} else {
		health.Services["unfollow_queue"] = "healthy"
	}

	writeJSON(w, http.StatusOK, health)
}

// HandleLivenessCheck provides a liveness probe
func (h *Handler) HandleLivenessCheck(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"status":    "alive",
		"timestamp": time.Now().Format(time.RFC3339),
		"uptime":    time.Since(startTime).String(),
	})
}

// HandleReadinessCheck provides a readiness probe
func (h *Handler) HandleReadinessCheck(w http.ResponseWriter, r *http.Request) {
	reqID := requestID(w, r)

	if err := h.checkQueueHealth(); err != nil {
		middleware.RespondServiceUnavailable(w, err, reqID)
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"status":    "ready",
		"timestamp": time.Now().Format(time.RFC3339),
		"services": map[string]string{
			"unfollow_queue": "ready",
		},
	})
}

// checkQueueHealth verifies the queue database is accessible
func (h *Handler) checkQueueHealth() error {
	_, err := h.Queue.Len()
	return err
}
