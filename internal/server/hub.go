// Package server tracks live WebSocket clients for the chat coordinator via
// the Hub type, which owns their pump goroutines and shutdown.
package server

import (
	"context"
	"errors"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/Tyrowin/ichat/internal/chat"
)

var errHubClosed = errors.New("hub is shutting down")

// Hub tracks live clients, starts their pumps and connects them to the chat
// coordinator. It waits for every pump to finish during shutdown.
type Hub struct {
	clients     map[*Client]struct{}
	coordinator *chat.Coordinator
	mutex       sync.RWMutex
	wg          sync.WaitGroup
	closing     bool
	log         *zap.Logger
}

// NewHub creates a hub that registers clients with coordinator.
func NewHub(coordinator *chat.Coordinator, log *zap.Logger) *Hub {
	if log == nil {
		log = zap.NewNop()
	}
	return &Hub{
		clients:     make(map[*Client]struct{}),
		coordinator: coordinator,
		log:         log,
	}
}

// Register announces the client to the coordinator and starts its pumps.
func (h *Hub) Register(client *Client) error {
	h.mutex.Lock()
	if h.closing {
		h.mutex.Unlock()
		return errHubClosed
	}
	h.clients[client] = struct{}{}
	clientCount := len(h.clients)
	h.wg.Add(2)
	h.mutex.Unlock()

	if !h.coordinator.Connect(client.id, client, client.identity, client.addr) {
		client.Close()
	}
	client.log.Info("client registered", zap.Int("clients", clientCount))

	go func() {
		defer h.wg.Done()
		client.writePump()
	}()
	go func() {
		defer h.wg.Done()
		client.readPump()
	}()
	return nil
}

// unregister forgets the client and tells the coordinator it is gone.
func (h *Hub) unregister(client *Client) {
	h.mutex.Lock()
	_, ok := h.clients[client]
	delete(h.clients, client)
	clientCount := len(h.clients)
	h.mutex.Unlock()
	if !ok {
		return
	}

	client.Close()
	h.coordinator.Disconnect(client.id)
	client.log.Info("client unregistered", zap.Int("clients", clientCount))
}

// Count returns the number of live clients.
func (h *Hub) Count() int {
	h.mutex.RLock()
	defer h.mutex.RUnlock()
	return len(h.clients)
}

// Shutdown refuses new clients, closes every live connection and waits for
// the pump goroutines to finish or the timeout to pass.
func (h *Hub) Shutdown(timeout time.Duration) error {
	h.log.Info("initiating hub shutdown")

	h.mutex.Lock()
	h.closing = true
	clients := make([]*Client, 0, len(h.clients))
	for client := range h.clients {
		clients = append(clients, client)
	}
	h.mutex.Unlock()

	for _, client := range clients {
		client.Close()
	}
	h.log.Info("closed client connections", zap.Int("clients", len(clients)))

	done := make(chan struct{})
	go func() {
		h.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		h.log.Info("hub shutdown completed")
		return nil
	case <-time.After(timeout):
		h.log.Warn("hub shutdown timeout reached, some goroutines may still be running")
		return context.DeadlineExceeded
	}
}
