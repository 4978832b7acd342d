package chat

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/Tyrowin/ichat/internal/auth"
)

type frame struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data"`
}

// fakeConn records every payload it is sent.
type fakeConn struct {
	mu     sync.Mutex
	frames []frame
	closed bool
	full   bool
}

func (f *fakeConn) Send(payload []byte) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.full || f.closed {
		return false
	}
	var fr frame
	if err := json.Unmarshal(payload, &fr); err != nil {
		panic(err)
	}
	f.frames = append(f.frames, fr)
	return true
}

func (f *fakeConn) Close() {
	f.mu.Lock()
	f.closed = true
	f.mu.Unlock()
}

func (f *fakeConn) isClosed() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.closed
}

func (f *fakeConn) reset() {
	f.mu.Lock()
	f.frames = nil
	f.mu.Unlock()
}

func (f *fakeConn) ofType(typ string) []json.RawMessage {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []json.RawMessage
	for _, fr := range f.frames {
		if fr.Type == typ {
			out = append(out, fr.Data)
		}
	}
	return out
}

func (f *fakeConn) messages(t *testing.T, typ string) []Message {
	t.Helper()
	var out []Message
	for _, raw := range f.ofType(typ) {
		var m Message
		require.NoError(t, json.Unmarshal(raw, &m))
		out = append(out, m)
	}
	return out
}

func (f *fakeConn) notices(t *testing.T) []SystemNotice {
	t.Helper()
	var out []SystemNotice
	for _, raw := range f.ofType(EventSystemMessage) {
		var n SystemNotice
		require.NoError(t, json.Unmarshal(raw, &n))
		out = append(out, n)
	}
	return out
}

func (f *fakeConn) noticeTexts(t *testing.T) []string {
	t.Helper()
	var out []string
	for _, n := range f.notices(t) {
		out = append(out, n.Message)
	}
	return out
}

func (f *fakeConn) errors(t *testing.T) []string {
	t.Helper()
	var out []string
	for _, raw := range f.ofType(EventErrorMessage) {
		var s string
		require.NoError(t, json.Unmarshal(raw, &s))
		out = append(out, s)
	}
	return out
}

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

type harness struct {
	t     *testing.T
	ctx   context.Context
	c     *Coordinator
	gw    *Gateway
	clock *fakeClock
	conns map[string]*fakeConn
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	clock := &fakeClock{now: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)}
	log := zaptest.NewLogger(t)
	gw := NewGateway(log, nil)
	c := New(gw, log, Options{
		HistoryLimit: 50,
		Now:          clock.Now,
		Presence: PresenceOptions{
			SweepInterval: time.Hour,
			IdleAfter:     10 * time.Minute,
			AwayAfter:     30 * time.Minute,
			ManualTTL:     30 * time.Minute,
		},
	})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		c.Run(ctx)
	}()
	t.Cleanup(func() {
		cancel()
		<-done
	})
	return &harness{t: t, ctx: ctx, c: c, gw: gw, clock: clock, conns: make(map[string]*fakeConn)}
}

// connect opens a session; an empty user connects anonymously.
func (h *harness) connect(id, user string) *fakeConn {
	h.t.Helper()
	conn := &fakeConn{}
	var ident *auth.Identity
	if user != "" {
		ident = &auth.Identity{Username: user, Role: auth.RoleUser}
	}
	require.True(h.t, h.c.Connect(id, conn, ident, "127.0.0.1"))
	h.conns[id] = conn
	h.sync()
	return conn
}

func (h *harness) send(id, typ string, data any) {
	h.t.Helper()
	raw, err := json.Marshal(data)
	require.NoError(h.t, err)
	require.True(h.t, h.c.Dispatch(id, Inbound{Type: typ, Data: raw}))
	h.sync()
}

func (h *harness) command(id, text string) {
	h.t.Helper()
	h.send(id, InboundCommand, map[string]string{"text": text})
}

func (h *harness) post(id, room, text string) {
	h.t.Helper()
	h.send(id, InboundMessage, MessagePayload{Room: room, Text: text})
}

// sync waits until every event submitted so far has been handled.
func (h *harness) sync() {
	h.t.Helper()
	require.NoError(h.t, h.c.Do(h.ctx, func() {}))
}

func (h *harness) resetAll() {
	for _, c := range h.conns {
		c.reset()
	}
}

func (h *harness) snapshot() UserListUpdate {
	h.t.Helper()
	snap, err := h.c.Snapshot(h.ctx)
	require.NoError(h.t, err)
	return snap
}

func (h *harness) statusOf(id string) Status {
	h.t.Helper()
	for _, u := range h.snapshot().Users {
		if u.ID == id {
			return u.Status
		}
	}
	h.t.Fatalf("session %s not found", id)
	return ""
}
