package api

import (
	"encoding/json"
	"net"
	"net/http"
	"strings"

	"github.com/testnetops/faucetd/dispatcher"
	fauceterrors "github.com/testnetops/faucetd/errors"
)

// handleHealth handles GET /health
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("OK"))
}

// handleDispense handles POST /api/v1/dispense
func (s *Server) handleDispense(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req DispenseRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Address == "" {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusBadRequest)
		json.NewEncoder(w).Encode(ErrorResponse{Error: "body must be JSON with a non-empty address field"})
		return
	}

	result := s.dispatcher.Serve(r.Context(), req.Address, clientIP(r))

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCodeFor(result))
	json.NewEncoder(w).Encode(result)
}

// handleBalance handles GET /api/v1/balance?address=<address>
func (s *Server) handleBalance(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	address := r.URL.Query().Get("address")
	if address == "" {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusBadRequest)
		json.NewEncoder(w).Encode(ErrorResponse{Error: "address parameter is required"})
		return
	}

	tokens, err := s.dispatcher.InspectBalance(r.Context(), address)
	if err != nil {
		status := http.StatusBadGateway
		if fauceterrors.IsKind(err, fauceterrors.KindInvalidAddress) {
			status = http.StatusBadRequest
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		json.NewEncoder(w).Encode(ErrorResponse{Error: err.Error()})
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(BalanceResponse{Address: address, Tokens: tokens})
}

// statusCodeFor maps a dispense outcome onto an HTTP status.
func statusCodeFor(result *dispatcher.Result) int {
	switch result.Status {
	case dispatcher.StatusSuccess, dispatcher.StatusPartial, dispatcher.StatusSkipped:
		return http.StatusOK
	case dispatcher.StatusRateLimited:
		return http.StatusTooManyRequests
	default:
		switch result.ErrorKind {
		case fauceterrors.KindInvalidAddress:
			return http.StatusBadRequest
		case fauceterrors.KindBusy:
			return http.StatusServiceUnavailable
		default:
			return http.StatusBadGateway
		}
	}
}

// clientIP resolves the caller's address, trusting X-Forwarded-For when the
// service runs behind a proxy. The first entry is the original client.
func clientIP(r *http.Request) string {
	if fwd := r.Header.Get("X-Forwarded-For"); fwd != "" {
		parts := strings.Split(fwd, ",")
		if ip := strings.TrimSpace(parts[0]); ip != "" {
			return ip
		}
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
