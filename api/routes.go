package api

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// setupRoutes configures all HTTP routes for the API server
func (s *Server) setupRoutes() *http.ServeMux {
	mux := http.NewServeMux()

	// Health check endpoint
	mux.HandleFunc("/health", s.handleHealth)

	// API v1 endpoints
	mux.HandleFunc("/api/v1/dispense", s.handleDispense)
	mux.HandleFunc("/api/v1/balance", s.handleBalance)

	// Prometheus scrape endpoint
	mux.Handle("/metrics", promhttp.Handler())

	return mux
}
