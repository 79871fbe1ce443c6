// Package api is the HTTP surface over the dispatcher: dispense, balance
// inspection, health, and Prometheus metrics.
package api

import (
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/rs/zerolog"
)

// Server provides HTTP endpoints
type Server struct {
	logger     zerolog.Logger
	dispatcher Faucet
	server     *http.Server
}

// NewServer creates a new Server instance
func NewServer(logger zerolog.Logger, dispatcher Faucet, port int) *Server {
	s := &Server{
		logger:     logger.With().Str("component", "api").Logger(),
		dispatcher: dispatcher,
	}

	mux := s.setupRoutes()

	s.server = &http.Server{
		Addr:              fmt.Sprintf(":%d", port),
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	return s
}

// Start starts the HTTP server
func (s *Server) Start() error {
	if s.server == nil {
		return fmt.Errorf("api server is nil")
	}

	startupChan := make(chan error, 1)

	go func() {
		// Create a test listener to verify the port is available
		ln, err := net.Listen("tcp", s.server.Addr)
		if err != nil {
			startupChan <- fmt.Errorf("failed to bind to address %s: %w", s.server.Addr, err)
			return
		}
		ln.Close()

		startupChan <- nil

		err = s.server.ListenAndServe()
		switch err {
		case nil:
			s.logger.Info().Msg("api server stopped normally")
		case http.ErrServerClosed:
			s.logger.Info().Msg("api server closed gracefully")
		default:
			s.logger.Error().Err(err).Msg("api server error")
		}
	}()

	select {
	case err := <-startupChan:
		if err != nil {
			return err
		}
		return nil
	case <-time.After(5 * time.Second):
		return fmt.Errorf("server startup timeout")
	}
}

// Stop gracefully shuts down the HTTP server
func (s *Server) Stop() error {
	if s.server != nil {
		return s.server.Close()
	}
	return nil
}
