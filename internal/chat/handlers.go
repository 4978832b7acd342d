package chat

import (
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// handleMessage posts to the sender's current room. Anonymous senders and
// posts addressed to a room the sender is not in are dropped.
func (c *Coordinator) handleMessage(id string, p MessagePayload) {
	s, ok := c.sessions.Get(id)
	if !ok || !s.authenticated {
		return
	}
	room := normalizeName(p.Room)
	if room == "" {
		room = s.Room
	}
	if room != s.Room {
		c.log.Debug("dropping message for foreign room",
			zap.String("session", id),
			zap.String("room", room),
			zap.String("current", s.Room))
		return
	}
	if strings.TrimSpace(p.Text) == "" && p.Attachment == nil {
		return
	}

	msg := Message{
		ID:       uuid.NewString(),
		Target:   TargetRoom,
		Name:     s.Name,
		Message:  p.Text,
		Room:     room,
		DateTime: c.now(),
		FileInfo: p.Attachment,
	}
	c.rooms.Post(room, msg)
	c.gw.Publish(roomTopic(room), Event{Type: EventChatMessage, Data: msg}, id)
	c.rec.MessageRouted(string(TargetRoom))
}

func (c *Coordinator) handleJoinRoom(id, name string) {
	s, ok := c.sessions.Get(id)
	if !ok {
		return
	}
	if !s.authenticated {
		c.replyError(id, permissionf("You must be authenticated to join rooms"))
		return
	}
	room := normalizeName(name)
	if !validName(room) {
		c.replyError(id, validationf("Room name must be between 2 and 20 characters"))
		return
	}
	if room == s.Room {
		c.sendRoomState(id, room)
		return
	}

	prev := s.Room
	c.rooms.Move(id, prev, room)
	c.gw.LeaveTopic(id, roomTopic(prev))
	c.gw.JoinTopic(id, roomTopic(room))
	s.Room = room

	c.log.Debug("session changed room",
		zap.String("session", id),
		zap.String("from", prev),
		zap.String("to", room))

	c.sendRoomState(id, room)
	c.gw.Publish(roomTopic(room), systemEvent(s.Name+" has joined "+room, NoticeJoin), id)
	c.broadcastUserList()
}

// handleHeartbeat refreshes activity. A heartbeat may carry the client's
// view of its status; without one, an inactive session returns to online
// unless a manual status is in force.
func (c *Coordinator) handleHeartbeat(id string, p StatusPayload) {
	s, ok := c.sessions.Get(id)
	if !ok {
		return
	}
	next := s.Status
	if p.Status != "" {
		st, valid := ParseStatus(p.Status)
		if !valid {
			c.replyError(id, validationf("Invalid status %q", p.Status))
			return
		}
		next = st
	} else if !s.ManualStatus {
		next = StatusOnline
	}
	s.LastSeen = c.now()
	if next != s.Status {
		s.Status = next
		c.broadcastUserList()
	}
}

// handleUserUpdate applies a manual status, which the presence sweep leaves
// alone until it expires.
func (c *Coordinator) handleUserUpdate(id string, p StatusPayload) {
	s, ok := c.sessions.Get(id)
	if !ok {
		return
	}
	st, valid := ParseStatus(p.Status)
	if !valid {
		c.replyError(id, validationf("Invalid status %q", p.Status))
		return
	}
	now := c.now()
	s.Status = st
	s.LastSeen = now
	s.ManualStatus = true
	s.ManualAt = now
	c.broadcastUserList()
}

// handleFeedback relays typing indicators to the sender's room, a group the
// sender belongs to, or a private peer.
func (c *Coordinator) handleFeedback(id string, p FeedbackPayload) {
	s, ok := c.sessions.Get(id)
	if !ok || !s.authenticated {
		return
	}
	text := ""
	if p.Feedback {
		text = s.Name + " is typing a message"
	}

	switch TargetKind(strings.ToLower(p.ChatType)) {
	case TargetGroup:
		g, found := c.groups.Get(normalizeName(p.Source))
		if !found || !g.HasMember(s.Username()) {
			return
		}
		ev := Event{Type: EventFeedback, Data: Feedback{Feedback: text, ChatType: string(TargetGroup), Source: g.Name}}
		for _, member := range g.Members {
			if member != s.Username() {
				c.sendUser(member, ev)
			}
		}
	case TargetPrivate:
		target, found := c.sessions.Resolve(p.Source)
		if !found || target == s.Username() {
			return
		}
		c.sendUser(target, Event{Type: EventFeedback, Data: Feedback{Feedback: text, ChatType: string(TargetPrivate), Source: s.Username()}})
	default:
		ev := Event{Type: EventFeedback, Data: Feedback{Feedback: text, ChatType: string(TargetRoom), Source: s.Room}}
		c.gw.Publish(roomTopic(s.Room), ev, c.sessions.SessionsOf(s.Username())...)
	}
}
