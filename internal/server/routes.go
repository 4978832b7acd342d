// Package server wires HTTP handlers into a ServeMux for the ichat
// application via routing helpers.
package server

import "net/http"

// SetupRoutes configures and returns an HTTP ServeMux with all application
// routes: health checks, the WebSocket endpoint, metrics and the file API.
func (s *Server) SetupRoutes() *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("/", HealthHandler)
	mux.HandleFunc("/healthz", s.HealthzHandler)
	mux.HandleFunc("/ws", s.WebSocketHandler)
	if s.metrics != nil {
		mux.Handle("GET /metrics", s.metrics.Handler())
	}

	mux.HandleFunc("POST /api/files", s.UploadHandler)
	mux.HandleFunc("GET /api/files", s.ListHandler)
	mux.HandleFunc("GET /api/files/{id}", s.DownloadHandler)
	mux.HandleFunc("DELETE /api/files/{id}", s.DeleteHandler)
	mux.HandleFunc("GET /api/files/{id}/access", s.AccessHandler)
	mux.HandleFunc("PUT /api/files/{id}/access", s.UpdateAccessHandler)
	return mux
}
