package chat

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/Tyrowin/ichat/internal/auth"
)

// ErrStopped is returned when work is submitted after the coordinator loop
// has exited.
var ErrStopped = errors.New("chat: coordinator stopped")

const defaultQueueSize = 1024

// Options configures a Coordinator.
type Options struct {
	HistoryLimit int
	QueueSize    int
	Presence     PresenceOptions
	Recorder     Recorder
	Now          func() time.Time
}

// Coordinator owns all chat state and processes events one at a time.
type Coordinator struct {
	log      *zap.Logger
	gw       *Gateway
	sessions *Registry
	rooms    *RoomDirectory
	groups   *GroupDirectory
	presence *PresenceMonitor
	rec      Recorder
	now      func() time.Time
	events   chan func()
	stopped  chan struct{}
}

// New builds a coordinator that delivers through gw.
func New(gw *Gateway, log *zap.Logger, opts Options) *Coordinator {
	if log == nil {
		log = zap.NewNop()
	}
	if opts.Recorder == nil {
		opts.Recorder = NopRecorder{}
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.QueueSize <= 0 {
		opts.QueueSize = defaultQueueSize
	}
	c := &Coordinator{
		log:      log,
		gw:       gw,
		sessions: NewRegistry(),
		rooms:    NewRoomDirectory(opts.HistoryLimit),
		groups:   NewGroupDirectory(),
		rec:      opts.Recorder,
		now:      opts.Now,
		events:   make(chan func(), opts.QueueSize),
		stopped:  make(chan struct{}),
	}
	c.presence = NewPresenceMonitor(c.sessions, opts.Presence, opts.Now, c.onPresenceChange)
	return c
}

// Run processes submitted events until ctx is cancelled. It also drives the
// presence sweep.
func (c *Coordinator) Run(ctx context.Context) {
	defer close(c.stopped)
	go c.presence.Run(ctx, c.Submit)

	c.log.Info("chat coordinator started")
	for {
		select {
		case <-ctx.Done():
			c.log.Info("chat coordinator stopped")
			return
		case fn := <-c.events:
			c.exec(fn)
		}
	}
}

func (c *Coordinator) exec(fn func()) {
	defer func() {
		if r := recover(); r != nil {
			c.log.Error("panic in chat event", zap.Any("panic", r), zap.Stack("stack"))
		}
	}()
	fn()
}

// Submit queues fn on the coordinator loop. It blocks while the queue is
// full and returns false once the loop has stopped.
func (c *Coordinator) Submit(fn func()) bool {
	select {
	case <-c.stopped:
		return false
	default:
	}
	select {
	case c.events <- fn:
		return true
	case <-c.stopped:
		return false
	}
}

// Do runs fn on the coordinator loop and waits for it to finish.
func (c *Coordinator) Do(ctx context.Context, fn func()) error {
	done := make(chan struct{})
	if !c.Submit(func() {
		defer close(done)
		fn()
	}) {
		return ErrStopped
	}
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	case <-c.stopped:
		return ErrStopped
	}
}

// Connect registers a new session. identity is nil for anonymous
// connections.
func (c *Coordinator) Connect(id string, conn Conn, identity *auth.Identity, addr string) bool {
	return c.Submit(func() { c.handleConnect(id, conn, identity, addr) })
}

// Disconnect tears a session down. Unknown ids are ignored.
func (c *Coordinator) Disconnect(id string) bool {
	return c.Submit(func() { c.handleDisconnect(id) })
}

// Dispatch routes one inbound frame from a session.
func (c *Coordinator) Dispatch(id string, in Inbound) bool {
	return c.Submit(func() { c.handleInbound(id, in) })
}

func (c *Coordinator) handleInbound(id string, in Inbound) {
	defer func() {
		if r := recover(); r != nil {
			c.log.Error("panic handling inbound event",
				zap.String("session", id),
				zap.String("type", in.Type),
				zap.Any("panic", r),
				zap.Stack("stack"))
			c.replyError(id, internal(fmt.Errorf("panic: %v", r)))
		}
	}()

	switch in.Type {
	case InboundMessage:
		var p MessagePayload
		if !decodeObject(in.Data, &p) {
			c.replyError(id, validationf("Malformed message payload"))
			return
		}
		c.handleMessage(id, p)
	case InboundCommand:
		text, ok := decodeText(in.Data, "text")
		if !ok {
			c.replyError(id, validationf("Malformed command payload"))
			return
		}
		c.handleCommand(id, text)
	case InboundJoinRoom:
		name, ok := decodeText(in.Data, "name")
		if !ok {
			c.replyError(id, validationf("Malformed join-room payload"))
			return
		}
		c.handleJoinRoom(id, name)
	case InboundHeartbeat:
		var p StatusPayload
		if !decodeObject(in.Data, &p) {
			c.replyError(id, validationf("Malformed heartbeat payload"))
			return
		}
		c.handleHeartbeat(id, p)
	case InboundUserUpdate:
		var p StatusPayload
		if !decodeObject(in.Data, &p) {
			c.replyError(id, validationf("Malformed user-update payload"))
			return
		}
		c.handleUserUpdate(id, p)
	case InboundFeedback:
		var p FeedbackPayload
		if !decodeObject(in.Data, &p) {
			c.replyError(id, validationf("Malformed feedback payload"))
			return
		}
		c.handleFeedback(id, p)
	default:
		c.replyError(id, validationf("Unknown event type %q", in.Type))
	}
}

func (c *Coordinator) handleConnect(id string, conn Conn, identity *auth.Identity, addr string) {
	if _, exists := c.sessions.Get(id); exists {
		c.log.Warn("duplicate session id", zap.String("session", id))
		return
	}
	now := c.now()
	s := &Session{
		ID:          id,
		Name:        anonymousName,
		Addr:        addr,
		Room:        DefaultRoom,
		Status:      StatusOnline,
		LastSeen:    now,
		ConnectedAt: now,
	}
	if identity != nil {
		s.Identity = *identity
		s.Name = identity.Username
		s.authenticated = true
	}

	c.gw.Attach(id, conn)
	c.sessions.Add(s)
	c.rooms.Enter(id, DefaultRoom)
	c.gw.JoinTopic(id, roomTopic(DefaultRoom))

	c.log.Info("session connected",
		zap.String("session", id),
		zap.String("user", s.Name),
		zap.Bool("authenticated", s.authenticated),
		zap.String("addr", addr))

	c.broadcastClientsTotal()
	c.broadcastUserList()
	if s.authenticated {
		c.gw.Publish(roomTopic(DefaultRoom), systemEvent(s.Name+" has joined the chat!", NoticeJoin), id)
	}
	c.sendRoomState(id, DefaultRoom)
}

func (c *Coordinator) handleDisconnect(id string) {
	s, ok := c.sessions.Get(id)
	if !ok {
		c.gw.Detach(id)
		return
	}
	if s.authenticated {
		c.gw.Publish(roomTopic(s.Room), systemEvent(s.Name+" has left the chat", NoticeLeave), id)
	}
	c.removeSession(s)
	c.log.Info("session disconnected", zap.String("session", id), zap.String("user", s.Name))
	c.broadcastClientsTotal()
	c.broadcastUserList()
}

// removeSession drops every trace of s and returns its connection.
func (c *Coordinator) removeSession(s *Session) Conn {
	c.rooms.Leave(s.ID, s.Room)
	c.sessions.Remove(s.ID)
	return c.gw.Detach(s.ID)
}

func (c *Coordinator) sendRoomState(id, room string) {
	c.gw.Send(id, Event{Type: EventRoomChanged, Data: RoomChanged{Room: room}})
	var history []Message
	if r, ok := c.rooms.Get(room); ok {
		history = r.History()
	}
	if history == nil {
		history = []Message{}
	}
	c.gw.Send(id, Event{Type: EventRoomHistory, Data: RoomHistory{Room: room, Messages: history}})
}

func (c *Coordinator) system(id, text, kind string) {
	c.gw.Send(id, systemEvent(text, kind))
}

func (c *Coordinator) sendUser(username string, ev Event) {
	c.gw.SendMany(c.sessions.SessionsOf(username), ev)
}

func (c *Coordinator) replyError(id string, err error) {
	c.log.Debug("rejected request",
		zap.String("session", id),
		zap.Stringer("kind", KindOf(err)),
		zap.Error(err))
	c.gw.Send(id, Event{Type: EventErrorMessage, Data: publicMessage(err)})
}

func systemEvent(text, kind string) Event {
	return Event{Type: EventSystemMessage, Data: SystemNotice{Message: text, Type: kind}}
}

func (c *Coordinator) broadcastClientsTotal() {
	c.gw.Broadcast(Event{Type: EventClientsTotal, Data: c.sessions.Len()})
}

// broadcastUserList sends the presence snapshot to everyone and each room's
// member count to that room.
func (c *Coordinator) broadcastUserList() {
	snapshot := c.snapshot()
	c.gw.Broadcast(Event{Type: EventUserListUpdate, Data: snapshot})
	for _, r := range snapshot.Rooms {
		c.gw.Publish(roomTopic(r.Name), Event{Type: EventRoomUsersCount, Data: RoomUsersCount{Room: r.Name, Count: r.UserCount}})
	}

	c.rec.SetSessions(c.sessions.Len())
	c.rec.SetPresent(c.sessions.PresentCount())
	c.rec.SetRooms(c.rooms.Len())
	c.rec.SetGroups(c.groups.Len())
}

func (c *Coordinator) snapshot() UserListUpdate {
	out := UserListUpdate{
		Users:  []UserView{},
		Rooms:  []RoomView{},
		Groups: []GroupView{},
	}
	for _, s := range c.sessions.All() {
		out.Users = append(out.Users, s.view())
	}
	for _, r := range c.rooms.All() {
		out.Rooms = append(out.Rooms, RoomView{Name: r.Name, UserCount: r.Len()})
	}
	for _, g := range c.groups.All() {
		out.Groups = append(out.Groups, g.view())
	}
	return out
}

// Snapshot returns the current presence snapshot.
func (c *Coordinator) Snapshot(ctx context.Context) (UserListUpdate, error) {
	var out UserListUpdate
	err := c.Do(ctx, func() { out = c.snapshot() })
	return out, err
}

func (c *Coordinator) onPresenceChange(changes []Transition) {
	for _, t := range changes {
		c.rec.PresenceTransition(string(t.From), string(t.To))
		c.log.Debug("presence changed",
			zap.String("session", t.SessionID),
			zap.String("user", t.Username),
			zap.String("from", string(t.From)),
			zap.String("to", string(t.To)))
	}
	c.broadcastUserList()
}
