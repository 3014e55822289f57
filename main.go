/*
Package main initializes the dynamic cleaner backend server.

This backend sweeps the configured account's forwarded-post feed and deletes
the forwards that match the selected policy: concluded giveaways, forwards of
listed authors, or forwards older than a day window. Origin authors of deleted
forwards can optionally be unfollowed after the run.

Run the application:

	$ BILI_SUBJECT_UID=<mid> go run main.go

Endpoints:
  - POST /api/run/start: Start a cleanup run ({"mode": "auto", "param": ""}).
  - POST /api/run/pause | /api/run/resume | /api/run/stop: Run control.
  - GET /api/run/status: Current run snapshot.
  - GET /api/run/report: Completed-run report (?format=text for plain text).
  - GET /api/run/logs?after=<seq>: Run journal events.
  - GET/PUT /api/settings: Operator settings.
  - GET /api/unfollow-queue: Authors queued for unfollowing.
*/
package main

import (
	"context"
	"crypto/sha256"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/dynsweep/bili-dynamic-cleaner/config"
	"github.com/dynsweep/bili-dynamic-cleaner/container"
	"github.com/dynsweep/bili-dynamic-cleaner/middleware"
	"github.com/dynsweep/bili-dynamic-cleaner/monitoring"
	"github.com/dynsweep/bili-dynamic-cleaner/utils"
	"github.com/gorilla/mux"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/time/rate"
)

// RateLimiter implements a simple token bucket rate limiter
type RateLimiter struct {
	clients map[string]*ClientLimiter
	mutex   sync.RWMutex
	rate    rate.Limit
	burst   int
}

// ClientLimiter represents a rate limiter for a specific client
type ClientLimiter struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// NewRateLimiter creates a new rate limiter
func NewRateLimiter(r rate.Limit, b int) *RateLimiter {
	return &RateLimiter{
		clients: make(map[string]*ClientLimiter),
		rate:    r,
		burst:   b,
	}
}

// Allow checks if a client is allowed to make a request
func (rl *RateLimiter) Allow(clientID string) bool {
	rl.mutex.Lock()
	defer rl.mutex.Unlock()

	if _, exists := rl.clients[clientID]; !exists {
		rl.clients[clientID] = &ClientLimiter{
			limiter:  rate.NewLimiter(rl.rate, rl.burst),
			lastSeen: time.Now(),
		}
	}

	rl.clients[clientID].lastSeen = time.Now()
	return rl.clients[clientID].limiter.Allow()
}

// Cleanup removes stale client entries
func (rl *RateLimiter) Cleanup() {
	rl.mutex.Lock()
	defer rl.mutex.Unlock()

	cutoff := time.Now().Add(-10 * time.Minute)
	for clientID, client := range rl.clients {
		if client.lastSeen.Before(cutoff) {
			delete(rl.clients, clientID)
		}
	}
}

// getClientIdentifier builds a stable client id from the request
func getClientIdentifier(r *http.Request) string {
	identifiers := []string{r.RemoteAddr}

	if userAgent := r.Header.Get("User-Agent"); userAgent != "" {
		hash := sha256.Sum256([]byte(userAgent))
		identifiers = append(identifiers, "ua:"+fmt.Sprintf("%x", hash)[:8])
	}

	combined := strings.Join(identifiers, "|")
	finalHash := sha256.Sum256([]byte(combined))
	return fmt.Sprintf("%x", finalHash)[:16]
}

// RateLimitMiddleware implements rate limiting for HTTP handlers
func RateLimitMiddleware(limiter *RateLimiter, next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		clientID := getClientIdentifier(r)

		if !limiter.Allow(clientID) {
			requestID := r.Header.Get("X-Request-ID")
			if requestID == "" {
				requestID = utils.GenerateRequestID()
			}
			middleware.RespondRateLimited(w, fmt.Errorf("rate limit exceeded"), requestID)
			return
		}

		next.ServeHTTP(w, r)
	}
}

// responseWriter captures the status code for monitoring
type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

// MonitoringMiddleware adds metrics and tracing to HTTP handlers
func MonitoringMiddleware(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := monitoring.CreateSpan(r.Context(), fmt.Sprintf("%s %s", r.Method, r.URL.Path))
		defer span.End()

		monitoring.SetSpanAttributes(span, map[string]interface{}{
			"http.method":     r.Method,
			"http.url":        r.URL.String(),
			"http.user_agent": r.UserAgent(),
			"remote.addr":     r.RemoteAddr,
		})

		r = r.WithContext(ctx)
		rw := &responseWriter{ResponseWriter: w, statusCode: 200}

		next.ServeHTTP(rw, r)

		monitoring.RecordHTTPRequest(r.Method, r.URL.Path, fmt.Sprintf("%d", rw.statusCode))
	}
}

func main() {
	// Optional .env file for local development
	_ = godotenv.Load()

	tracerProvider, err := monitoring.InitTracing("bili-dynamic-cleaner")
	if err != nil {
		log.Fatalf("Failed to initialize tracing: %v", err)
	}
	defer monitoring.ShutdownTracing(tracerProvider)

	cfg := config.NewConfig()
	if err := cfg.Validate(); err != nil {
		log.Fatalf("Invalid configuration: %v", err)
	}

	middleware.InitLogger(cfg.LogLevel)
	middleware.Logger.Info("Starting Dynamic Cleaner Backend Server")

	services := container.NewContainer()
	if err := services.InitializeServices(cfg, middleware.Logger); err != nil {
		log.Fatalf("Failed to initialize services: %v", err)
	}
	defer services.Close()

	handler, err := services.GetHandler()
	if err != nil {
		log.Fatalf("Failed to initialize handler: %v", err)
	}

	limiter := NewRateLimiter(rate.Limit(cfg.RateLimitRequestsPerMinute/60.0), cfg.RateLimitBurst)
	go func() {
		ticker := time.NewTicker(cfg.ClientCleanupInterval)
		defer ticker.Stop()
		for range ticker.C {
			limiter.Cleanup()
		}
	}()

	router := mux.NewRouter()

	// Metrics and health endpoints (no rate limiting)
	router.Handle("/metrics", promhttp.Handler()).Methods("GET")
	router.HandleFunc("/health", handler.HandleHealthCheck).Methods("GET")
	router.HandleFunc("/health/live", handler.HandleLivenessCheck).Methods("GET")
	router.HandleFunc("/health/ready", handler.HandleReadinessCheck).Methods("GET")

	// Run control API with rate limiting and monitoring middleware
	router.HandleFunc("/api/run/start", MonitoringMiddleware(RateLimitMiddleware(limiter, handler.HandleStartRun))).Methods("POST")
	router.HandleFunc("/api/run/pause", MonitoringMiddleware(RateLimitMiddleware(limiter, handler.HandlePauseRun))).Methods("POST")
	router.HandleFunc("/api/run/resume", MonitoringMiddleware(RateLimitMiddleware(limiter, handler.HandleResumeRun))).Methods("POST")
	router.HandleFunc("/api/run/stop", MonitoringMiddleware(RateLimitMiddleware(limiter, handler.HandleStopRun))).Methods("POST")
	router.HandleFunc("/api/run/status", MonitoringMiddleware(RateLimitMiddleware(limiter, handler.HandleGetStatus))).Methods("GET")
	router.HandleFunc("/api/run/report", MonitoringMiddleware(RateLimitMiddleware(limiter, handler.HandleGetReport))).Methods("GET")
	router.HandleFunc("/api/run/logs", MonitoringMiddleware(RateLimitMiddleware(limiter, handler.HandleGetLogs))).Methods("GET")
	router.HandleFunc("/api/settings", MonitoringMiddleware(RateLimitMiddleware(limiter, handler.HandleGetSettings))).Methods("GET")
	router.HandleFunc("/api/settings", MonitoringMiddleware(RateLimitMiddleware(limiter, handler.HandleUpdateSettings))).Methods("PUT")
	router.HandleFunc("/api/unfollow-queue", MonitoringMiddleware(RateLimitMiddleware(limiter, handler.HandleGetUnfollowQueue))).Methods("GET")

	withLogging := middleware.LoggingMiddleware(router)

	server := &http.Server{
		Addr:    ":" + cfg.ServerPort,
		Handler: withLogging,
	}

	// Shut down cleanly on SIGINT/SIGTERM so the queue database closes properly
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	go func() {
		middleware.Logger.Infof("Server starting on :%s", cfg.ServerPort)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Server failed: %v", err)
		}
	}()

	<-ctx.Done()
	middleware.Logger.Info("Shutting down server")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		middleware.Logger.WithError(err).Error("Server shutdown failed")
	}
}
