/*
Package handlers provides the HTTP control surface with dependency injection support.

This package defines the Handler struct that contains all service dependencies,
eliminating global variables and enabling better testability and separation of concerns.
*/
package handlers

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/dynsweep/bili-dynamic-cleaner/config"
	"github.com/dynsweep/bili-dynamic-cleaner/types"
	"github.com/dynsweep/bili-dynamic-cleaner/utils"
	"github.com/sirupsen/logrus"
)

// RunControllerInterface defines the run lifecycle operations
type RunControllerInterface interface {
	Start(ctx context.Context, mode types.CleanMode, param string) (string, error)
	Pause() error
	Resume() error
	Stop() error
	Snapshot() types.RunSnapshot
	Report() *types.RunReport
}

// JournalInterface defines read access to the run journal
type JournalInterface interface {
	EventsAfter(afterSeq int64) []types.LogEvent
}

// SettingsStoreInterface defines the settings persistence operations
type SettingsStoreInterface interface {
	Load() (config.Settings, error)
	Save(settings config.Settings) error
}

// QueueInterface defines read access to the unfollow queue
type QueueInterface interface {
	List() ([]types.UnfollowEntry, error)
	Len() (int, error)
}

// Handler contains all service dependencies for HTTP handlers
type Handler struct {
	Controller RunControllerInterface
	Journal    JournalInterface
	Settings   SettingsStoreInterface
	Queue      QueueInterface
	Logger     *logrus.Logger
}

// NewHandler creates a new handler instance with injected dependencies
func NewHandler(controller RunControllerInterface, journal JournalInterface, settings SettingsStoreInterface, queue QueueInterface, logger *logrus.Logger) *Handler {
	return &Handler{
		Controller: controller,
		Journal:    journal,
		Settings:   settings,
		Queue:      queue,
		Logger:     logger,
	}
}

// requestID returns the inbound request id, generating one when absent
func requestID(w http.ResponseWriter, r *http.Request) string {
	id := r.Header.Get("X-Request-ID")
	if id == "" {
		id = utils.GenerateRequestID()
		w.Header().Set("X-Request-ID", id)
	}
	return id
}

// writeJSON writes a JSON response with the given status code
func writeJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(payload)
}
