// Package server exposes the platform over HTTP: the dashboard page, the
// JSON API under /api/v1, and the live snapshot WebSocket.
package server

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"houstonintel/internal/analytics"
	"houstonintel/internal/auth"
	"houstonintel/internal/config"
	"houstonintel/internal/dashboard"
	"houstonintel/internal/errors"
	"houstonintel/internal/intel"
)

// Platform bundles the subsystems the HTTP surface serves.
type Platform struct {
	Config    *config.Config
	DB        *analytics.Database
	Engine    *analytics.Engine
	Alerting  *analytics.AlertingSystem
	Registry  *intel.Registry
	Dashboard *dashboard.Generator
	Reports   *dashboard.ReportGenerator
	Auth      *auth.Service
	Hub       *Hub
}

// Server represents the HTTP server
type Server struct {
	router *mux.Router
	server *http.Server
}

// NewServer creates a new HTTP server
func NewServer(port int) *Server {
	router := mux.NewRouter()

	// Create server with timeouts
	server := &http.Server{
		Addr:              fmt.Sprintf(":%d", port),
		Handler:           router,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
		ReadHeaderTimeout: 10 * time.Second,
	}

	return &Server{
		router: router,
		server: server,
	}
}

// Router exposes the mux for tests.
func (s *Server) Router() *mux.Router {
	return s.router
}

// Shutdown drains in-flight requests and stops the server.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.server.Shutdown(ctx)
}

// Start wires middleware and routes and serves until Shutdown or failure.
func Start(ctx context.Context, server *Server, platform *Platform) error {
	port := platform.Config.ServerPort

	// Apply global middleware
	rateLimiter := errors.NewRateLimiter(time.Minute, 300)
	server.router.Use(recoveryMiddleware)
	server.router.Use(errors.CORSMiddleware)
	server.router.Use(securityHeadersMiddleware)
	server.router.Use(requestIDMiddleware)
	server.router.Use(errors.RateLimitMiddleware(rateLimiter))
	server.router.Use(errors.ValidationMiddleware)
	server.router.Use(platform.trackingMiddleware)

	SetupRoutes(server.router, platform)

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			log.Printf("⚠️ Server shutdown error: %v", err)
		}
	}()

	log.Printf("🌐 Starting Houston Intelligence server on port %d...", port)
	log.Printf("📊 API endpoints available on http://localhost:%d/api/v1/", port)
	log.Printf("🔗 WebSocket available on ws://localhost:%d/ws", port)

	err := server.server.ListenAndServe()
	if err == http.ErrServerClosed {
		return nil
	}
	return err
}

// SetupRoutes configures all the HTTP routes.
func SetupRoutes(router *mux.Router, p *Platform) {
	api := router.PathPrefix("/api/v1").Subrouter()

	// WebSocket endpoint for live snapshot streaming
	router.HandleFunc("/ws", func(w http.ResponseWriter, r *http.Request) {
		p.Hub.HandleConnection(w, r, p.Engine.Snapshot())
	})

	// Health check
	router.HandleFunc("/healthz", handleHealth).Methods("GET")

	// Dashboard page
	router.HandleFunc("/", p.handleDashboardPage).Methods("GET")

	// Analytics endpoints
	api.HandleFunc("/metrics", p.handleMetrics).Methods("GET")
	api.HandleFunc("/endpoints", p.handleEndpoints).Methods("GET")
	api.HandleFunc("/calls/recent", p.handleRecentCalls).Methods("GET")
	api.HandleFunc("/sessions", p.handleSessions).Methods("GET")
	api.HandleFunc("/system", p.handleSystem).Methods("GET")

	// Alerts endpoints
	api.HandleFunc("/alerts", p.handleAlerts).Methods("GET")
	api.HandleFunc("/alerts/{id}/resolve", p.handleResolveAlert).Methods("POST")

	// Intelligence endpoints
	api.HandleFunc("/insights", p.handleInsights).Methods("GET")
	api.HandleFunc("/insights/{domain}", p.handleInsightByDomain).Methods("GET")
	api.HandleFunc("/analyze/{domain}", p.Auth.RequireRole(auth.RoleAnalyst, p.handleAnalyze)).Methods("POST")

	// Reports
	api.HandleFunc("/reports/daily", p.handleDailyReport).Methods("GET")
}

// handleHealth returns health check status
func handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	w.Write([]byte(`{"status":"healthy","timestamp":"` + time.Now().Format(time.RFC3339) + `"}`))
}
