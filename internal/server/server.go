// Package server assembles the HTTP service from its configuration and the
// chat, file and metrics components.
package server

import (
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/Tyrowin/ichat/internal/auth"
	"github.com/Tyrowin/ichat/internal/chat"
	"github.com/Tyrowin/ichat/internal/config"
	"github.com/Tyrowin/ichat/internal/files"
	"github.com/Tyrowin/ichat/internal/metrics"
)

// Deps are the components the HTTP layer is built on.
type Deps struct {
	Config      *config.Config
	Logger      *zap.Logger
	Coordinator *chat.Coordinator
	Files       *files.Service
	Verifier    auth.Verifier
	Metrics     *metrics.Collector
}

// Server owns the HTTP handlers and the live WebSocket clients.
type Server struct {
	cfg      *config.Config
	log      *zap.Logger
	hub      *Hub
	files    *files.Service
	verifier auth.Verifier
	metrics  *metrics.Collector
	origins  *originPolicy
	upgrader websocket.Upgrader
	uploads  *limiterPool
}

// New builds a Server from its dependencies.
func New(d Deps) *Server {
	log := d.Logger
	if log == nil {
		log = zap.NewNop()
	}
	s := &Server{
		cfg:      d.Config,
		log:      log,
		hub:      NewHub(d.Coordinator, log.Named("hub")),
		files:    d.Files,
		verifier: d.Verifier,
		metrics:  d.Metrics,
		origins:  newOriginPolicy(d.Config.AllowedOrigins, log),
		uploads:  newLimiterPool(d.Config.Files.UploadRPS, d.Config.Files.UploadBurst, limiterTTL),
	}
	s.upgrader = websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin:     s.origins.check,
	}
	go s.uploads.cleanupLoop(limiterCleanupPeriod)
	return s
}

// Close stops the server's background maintenance.
func (s *Server) Close() {
	s.uploads.Close()
}

// Hub returns the client hub for shutdown coordination.
func (s *Server) Hub() *Hub {
	return s.hub
}
