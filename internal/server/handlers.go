// Package server exposes HTTP handlers, including WebSocket upgrades and
// health checks.
package server

import (
	"errors"
	"fmt"
	"net/http"

	"go.uber.org/zap"

	"github.com/Tyrowin/ichat/internal/auth"
)

// identify resolves the caller's identity from its token. A request without
// a token yields a nil identity and no error.
func (s *Server) identify(r *http.Request) (*auth.Identity, error) {
	token := auth.TokenFromRequest(r)
	if token == "" {
		return nil, nil
	}
	id, err := s.verifier.Verify(token)
	if err != nil {
		return nil, err
	}
	return &id, nil
}

// WebSocketHandler handles WebSocket upgrade requests. It authenticates the
// caller, upgrades the HTTP connection, creates a Client and registers it
// with the hub, which starts the client's read/write pumps.
func (s *Server) WebSocketHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed. WebSocket endpoint only accepts GET requests.", http.StatusMethodNotAllowed)
		return
	}

	identity, err := s.identify(r)
	if err != nil {
		s.log.Info("rejected WebSocket authentication", zap.String("addr", r.RemoteAddr), zap.Error(err))
		msg := "Authentication error: Invalid token"
		if errors.Is(err, auth.ErrExpiredToken) {
			msg = "Authentication error: Token expired"
		}
		http.Error(w, msg, http.StatusUnauthorized)
		return
	}
	if identity == nil && !s.cfg.Auth.AllowAnonymous {
		s.log.Info("rejected WebSocket authentication", zap.String("addr", r.RemoteAddr), zap.Error(auth.ErrMissingToken))
		http.Error(w, "Authentication error: No token provided", http.StatusUnauthorized)
		return
	}

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.Info("WebSocket upgrade failed", zap.String("addr", r.RemoteAddr), zap.Error(err))
		return
	}

	client := NewClient(conn, s.hub, r.RemoteAddr, identity, ClientLimits{
		MaxMessageSize: s.cfg.MaxMessageSize,
		Burst:          s.cfg.RateLimit.Burst,
		RefillInterval: s.cfg.RateLimit.RefillInterval,
	})
	if err := s.hub.Register(client); err != nil {
		s.log.Info("refusing client", zap.Error(err))
		_ = conn.Close()
	}
}

// HealthHandler provides a simple health check endpoint that returns server status.
// It responds with a plain text message indicating the server is running.
func HealthHandler(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain")
	_, _ = fmt.Fprintf(w, "ichat server is running!")
}

type healthResponse struct {
	Status  string `json:"status"`
	Clients int    `json:"clients"`
}

// HealthzHandler reports liveness together with the live connection count.
func (s *Server) HealthzHandler(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, s.log, http.StatusOK, healthResponse{Status: "ok", Clients: s.hub.Count()})
}
