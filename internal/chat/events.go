package chat

import (
	"encoding/json"
	"time"
)

// Outbound event types.
const (
	EventClientsTotal      = "clients-total"
	EventUserListUpdate    = "user-list-update"
	EventRoomChanged       = "room-changed"
	EventRoomUsersCount    = "room-users-count"
	EventRoomHistory       = "room-history"
	EventChatMessage       = "chat-message"
	EventPrivateMessage    = "private-message"
	EventGroupMessage      = "group-message"
	EventSystemMessage     = "system-message"
	EventErrorMessage      = "error-message"
	EventFeedback          = "feedback"
	EventFileShared        = "file-shared"
	EventFileDeleted       = "file-deleted"
	EventFileAccessUpdated = "file-access-updated"
)

// Inbound event types.
const (
	InboundMessage    = "message"
	InboundCommand    = "command"
	InboundJoinRoom   = "join-room"
	InboundHeartbeat  = "heartbeat"
	InboundUserUpdate = "user-update"
	InboundFeedback   = "feedback"
)

// System notice categories.
const (
	NoticeJoin    = "join"
	NoticeLeave   = "leave"
	NoticeInfo    = "info"
	NoticeGroup   = "group"
	NoticeWarning = "warning"
)

// Event is one outbound frame.
type Event struct {
	Type string `json:"type"`
	Data any    `json:"data"`
}

// Inbound is one frame received from a connection.
type Inbound struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data,omitempty"`
}

// TargetKind discriminates where a message was addressed.
type TargetKind string

// Message targets.
const (
	TargetRoom    TargetKind = "room"
	TargetGroup   TargetKind = "group"
	TargetPrivate TargetKind = "private"
)

// Attachment references an uploaded file shared alongside a message.
type Attachment struct {
	FileID       string `json:"filename"`
	OriginalName string `json:"originalName,omitempty"`
	Size         int64  `json:"size,omitempty"`
	IsPrivate    bool   `json:"isPrivate,omitempty"`
}

// Message is a routed chat message.
type Message struct {
	ID       string      `json:"id"`
	Target   TargetKind  `json:"target"`
	Name     string      `json:"name"`
	Message  string      `json:"message"`
	Room     string      `json:"room,omitempty"`
	Group    string      `json:"group,omitempty"`
	To       string      `json:"to,omitempty"`
	From     string      `json:"from,omitempty"`
	DateTime time.Time   `json:"dateTime"`
	FileInfo *Attachment `json:"fileInfo,omitempty"`
}

// SystemNotice is the payload of a system-message event.
type SystemNotice struct {
	Message string `json:"message"`
	Type    string `json:"type"`
}

// RoomChanged acknowledges a room change to the requester.
type RoomChanged struct {
	Room string `json:"room"`
}

// RoomUsersCount reports a room's member count to its members.
type RoomUsersCount struct {
	Room  string `json:"room"`
	Count int    `json:"count"`
}

// RoomHistory replays a room's retained messages to a joining session.
type RoomHistory struct {
	Room     string    `json:"room"`
	Messages []Message `json:"messages"`
}

// UserView is one entry of the user list.
type UserView struct {
	ID            string    `json:"id"`
	Name          string    `json:"name"`
	Status        Status    `json:"status"`
	LastSeen      time.Time `json:"lastSeen"`
	CurrentRoom   string    `json:"currentRoom"`
	Authenticated bool      `json:"authenticated"`
}

// RoomView is one entry of the room list.
type RoomView struct {
	Name      string `json:"name"`
	UserCount int    `json:"userCount"`
}

// GroupView is one entry of the group list.
type GroupView struct {
	Name        string   `json:"name"`
	Owner       string   `json:"owner"`
	MemberCount int      `json:"memberCount"`
	Members     []string `json:"members"`
}

// UserListUpdate is the global presence snapshot.
type UserListUpdate struct {
	Users  []UserView  `json:"users"`
	Rooms  []RoomView  `json:"rooms"`
	Groups []GroupView `json:"groups"`
}

// Feedback is a typing indicator.
type Feedback struct {
	Feedback string `json:"feedback"`
	ChatType string `json:"chatType"`
	Source   string `json:"source"`
}

// FileNotice describes a shared file in file events.
type FileNotice struct {
	Filename     string `json:"filename"`
	OriginalName string `json:"originalName"`
	Size         int64  `json:"size"`
	SizeText     string `json:"sizeText"`
	IsPrivate    bool   `json:"isPrivate"`
}

// FileShared announces a new upload to its chat context.
type FileShared struct {
	Username   string     `json:"username"`
	Room       string     `json:"room"`
	ChatType   string     `json:"chatType"`
	ChatTarget string     `json:"chatTarget"`
	FileInfo   FileNotice `json:"fileInfo"`
}

// FileDeleted announces a deletion to the file's chat context.
type FileDeleted struct {
	Username     string `json:"username"`
	Room         string `json:"room"`
	Filename     string `json:"filename"`
	OriginalName string `json:"originalName"`
}

// FileAccessUpdated announces an access change to the file's chat context.
type FileAccessUpdated struct {
	UpdatedBy string `json:"updatedBy"`
	Room      string `json:"room"`
	Filename  string `json:"filename"`
	IsPrivate bool   `json:"isPrivate"`
}

// MessagePayload is the body of an inbound message event.
type MessagePayload struct {
	Room       string      `json:"room"`
	Text       string      `json:"text"`
	Attachment *Attachment `json:"attachment,omitempty"`
}

// StatusPayload is the body of heartbeat and user-update events.
type StatusPayload struct {
	Status string `json:"status"`
}

// FeedbackPayload is the body of an inbound feedback event.
type FeedbackPayload struct {
	Feedback bool   `json:"feedback"`
	ChatType string `json:"chatType"`
	Source   string `json:"source"`
}

// decodeText accepts either a bare JSON string or an object carrying the
// text under key.
func decodeText(raw json.RawMessage, key string) (string, bool) {
	if len(raw) == 0 {
		return "", false
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s, true
	}
	var obj map[string]any
	if err := json.Unmarshal(raw, &obj); err != nil {
		return "", false
	}
	s, ok := obj[key].(string)
	return s, ok
}

// decodeObject unmarshals raw into v; an empty payload leaves v untouched.
func decodeObject(raw json.RawMessage, v any) bool {
	if len(raw) == 0 || string(raw) == "null" {
		return true
	}
	return json.Unmarshal(raw, v) == nil
}
