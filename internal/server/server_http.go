package server

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"

	apperrors "github.com/keybridge/keybridge/internal/errors"
)

// pairRequest is the POST /pair body. The caller key arrives in the
// Authorization header, not the body.
type pairRequest struct {
	ServiceName     string `json:"serviceName"`
	ServiceImageURL string `json:"serviceImageUrl"`
}

// resultEnvelope is the JSON envelope every REST endpoint responds with.
// Internal error types never cross the HTTP boundary; they are flattened
// to a reason string here.
type resultEnvelope struct {
	Success bool   `json:"success"`
	Reason  string `json:"reason,omitempty"`
	Status  string `json:"status,omitempty"`
	State   *int   `json:"state,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		log.Printf("server: failed to write response: %v", err)
	}
}

// handleStatus serves GET /status: the current device state and status
// text. Never fails.
func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeJSON(w, http.StatusMethodNotAllowed, resultEnvelope{Success: false, Reason: "method not allowed"})
		return
	}

	st := s.machine.Status()
	state := st.State
	writeJSON(w, http.StatusOK, resultEnvelope{
		Success: true,
		Status:  st.Status,
		State:   &state,
	})
}

// handleDevice serves GET /device: the cached hardware feature blob.
// An empty body means no device has reported features yet.
func (s *Server) handleDevice(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeJSON(w, http.StatusMethodNotAllowed, resultEnvelope{Success: false, Reason: "method not allowed"})
		return
	}

	features := s.machine.Features()
	if features == nil {
		w.WriteHeader(http.StatusOK)
		return
	}
	writeJSON(w, http.StatusOK, features)
}

// handlePair serves POST /pair. The request suspends until the user
// decides, so callers must apply their own client-side timeout.
func (s *Server) handlePair(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeJSON(w, http.StatusMethodNotAllowed, resultEnvelope{Success: false, Reason: "method not allowed"})
		return
	}

	if s.pairLimiter != nil && !s.pairLimiter.Allow() {
		writeJSON(w, http.StatusTooManyRequests, resultEnvelope{Success: false, Reason: "Too many pairing requests"})
		return
	}

	var req pairRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusInternalServerError, resultEnvelope{
			Success: false,
			Reason:  apperrors.PairingMissingBody().Message,
		})
		return
	}

	callerKey := r.Header.Get("Authorization")

	alreadyPaired, err := s.broker.Pair(r.Context(), req.ServiceName, req.ServiceImageURL, callerKey)
	if err == nil {
		reason := ""
		if alreadyPaired {
			reason = "Service already exists"
		}
		writeJSON(w, http.StatusOK, resultEnvelope{Success: true, Reason: reason})
		return
	}

	if errors.Is(err, context.Canceled) {
		// Caller disconnected mid-prompt; nothing to write.
		log.Printf("server: /pair caller disconnected for %q", req.ServiceName)
		return
	}

	writeJSON(w, pairStatusCode(err), resultEnvelope{
		Success: false,
		Reason:  apperrors.GetMessage(err),
	})
}

// pairStatusCode maps a pairing failure to its HTTP status.
func pairStatusCode(err error) int {
	switch apperrors.GetCode(err) {
	case apperrors.CodePairingRejected, apperrors.CodePairingExpired:
		return http.StatusUnauthorized
	case apperrors.CodePairingRateLimited:
		return http.StatusTooManyRequests
	default:
		// Missing body, UI unreachable, persistence failure.
		return http.StatusInternalServerError
	}
}

// handleServices serves GET /services: the current paired-service list.
func (s *Server) handleServices(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeJSON(w, http.StatusMethodNotAllowed, resultEnvelope{Success: false, Reason: "method not allowed"})
		return
	}

	services, err := s.store.ListServices()
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, resultEnvelope{Success: false, Reason: apperrors.GetMessage(err)})
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"success":  true,
		"services": services,
	})
}
