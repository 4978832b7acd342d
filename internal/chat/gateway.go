package chat

import (
	"encoding/json"
	"sync"

	"go.uber.org/zap"
)

// Conn is the transport side of a session. Send must not block; it reports
// false when the payload could not be queued.
type Conn interface {
	Send(payload []byte) bool
	Close()
}

// Gateway delivers events to attached connections, either directly, by
// topic or to everyone.
type Gateway struct {
	mu     sync.RWMutex
	conns  map[string]Conn
	topics map[string]map[string]struct{}
	log    *zap.Logger
	rec    Recorder
}

// NewGateway returns an empty gateway.
func NewGateway(log *zap.Logger, rec Recorder) *Gateway {
	if log == nil {
		log = zap.NewNop()
	}
	if rec == nil {
		rec = NopRecorder{}
	}
	return &Gateway{
		conns:  make(map[string]Conn),
		topics: make(map[string]map[string]struct{}),
		log:    log,
		rec:    rec,
	}
}

// Attach binds a connection to a session id.
func (g *Gateway) Attach(id string, c Conn) {
	g.mu.Lock()
	g.conns[id] = c
	g.mu.Unlock()
}

// Detach unbinds a session id from its connection and every topic. The
// connection is returned so the caller may close it.
func (g *Gateway) Detach(id string) Conn {
	g.mu.Lock()
	defer g.mu.Unlock()
	c := g.conns[id]
	delete(g.conns, id)
	for topic, members := range g.topics {
		delete(members, id)
		if len(members) == 0 {
			delete(g.topics, topic)
		}
	}
	return c
}

// JoinTopic subscribes a session to a topic.
func (g *Gateway) JoinTopic(id, topic string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	members, ok := g.topics[topic]
	if !ok {
		members = make(map[string]struct{})
		g.topics[topic] = members
	}
	members[id] = struct{}{}
}

// LeaveTopic unsubscribes a session from a topic.
func (g *Gateway) LeaveTopic(id, topic string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if members, ok := g.topics[topic]; ok {
		delete(members, id)
		if len(members) == 0 {
			delete(g.topics, topic)
		}
	}
}

// Len returns the number of attached connections.
func (g *Gateway) Len() int {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return len(g.conns)
}

// Send delivers ev to one session.
func (g *Gateway) Send(id string, ev Event) {
	payload, ok := g.encode(ev)
	if !ok {
		return
	}
	g.mu.RLock()
	c, found := g.conns[id]
	g.mu.RUnlock()
	if found {
		g.deliver(id, c, payload)
	}
}

// SendMany delivers ev to each listed session once.
func (g *Gateway) SendMany(ids []string, ev Event) {
	if len(ids) == 0 {
		return
	}
	payload, ok := g.encode(ev)
	if !ok {
		return
	}
	for _, id := range dedupe(ids) {
		g.mu.RLock()
		c, found := g.conns[id]
		g.mu.RUnlock()
		if found {
			g.deliver(id, c, payload)
		}
	}
}

// Publish delivers ev to every subscriber of topic except the listed ids.
func (g *Gateway) Publish(topic string, ev Event, except ...string) {
	payload, ok := g.encode(ev)
	if !ok {
		return
	}
	g.mu.RLock()
	targets := make(map[string]Conn, len(g.topics[topic]))
	for id := range g.topics[topic] {
		if c, found := g.conns[id]; found {
			targets[id] = c
		}
	}
	g.mu.RUnlock()
	for _, id := range except {
		delete(targets, id)
	}
	for id, c := range targets {
		g.deliver(id, c, payload)
	}
}

// Broadcast delivers ev to every attached connection.
func (g *Gateway) Broadcast(ev Event) {
	payload, ok := g.encode(ev)
	if !ok {
		return
	}
	g.mu.RLock()
	targets := make(map[string]Conn, len(g.conns))
	for id, c := range g.conns {
		targets[id] = c
	}
	g.mu.RUnlock()
	for id, c := range targets {
		g.deliver(id, c, payload)
	}
}

func (g *Gateway) encode(ev Event) ([]byte, bool) {
	payload, err := json.Marshal(ev)
	if err != nil {
		g.log.Error("failed to encode event", zap.String("type", ev.Type), zap.Error(err))
		return nil, false
	}
	return payload, true
}

// deliver hands payload to c. A connection whose buffer is full is closed;
// its read side then reports the disconnect.
func (g *Gateway) deliver(id string, c Conn, payload []byte) {
	if c.Send(payload) {
		return
	}
	g.rec.DeliveryDropped()
	g.log.Warn("send buffer full, closing connection", zap.String("session", id))
	c.Close()
}

func dedupe(ids []string) []string {
	seen := make(map[string]struct{}, len(ids))
	out := ids[:0:0]
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}
