// Package server exposes the ichat HTTP surface: the WebSocket endpoint that
// feeds the chat coordinator, the file sharing API, health checks and
// metrics.
package server
