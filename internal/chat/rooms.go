package chat

import (
	"sort"
	"strings"
	"unicode/utf8"
)

// DefaultRoom is where every session starts. It is never evicted.
const DefaultRoom = "general"

const (
	minNameLen = 2
	maxNameLen = 20
)

// normalizeName canonicalizes room and group names.
func normalizeName(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}

func validName(name string) bool {
	n := utf8.RuneCountInString(name)
	return n >= minNameLen && n <= maxNameLen
}

func roomTopic(name string) string {
	return "room:" + name
}

// Room is a named channel with its members and a bounded message history.
type Room struct {
	Name    string
	members map[string]struct{}
	history []Message
	limit   int
}

// Len returns the number of sessions in the room.
func (r *Room) Len() int {
	return len(r.members)
}

// Members returns the member session ids, sorted.
func (r *Room) Members() []string {
	ids := make([]string, 0, len(r.members))
	for id := range r.members {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// History returns a copy of the retained messages, oldest first.
func (r *Room) History() []Message {
	return append([]Message(nil), r.history...)
}

func (r *Room) append(m Message) {
	if r.limit <= 0 {
		return
	}
	r.history = append(r.history, m)
	if len(r.history) > r.limit {
		r.history = append([]Message(nil), r.history[len(r.history)-r.limit:]...)
	}
}

// RoomDirectory holds every live room. It is owned by the coordinator loop.
type RoomDirectory struct {
	rooms        map[string]*Room
	historyLimit int
}

// NewRoomDirectory returns a directory containing only the default room.
func NewRoomDirectory(historyLimit int) *RoomDirectory {
	d := &RoomDirectory{
		rooms:        make(map[string]*Room),
		historyLimit: historyLimit,
	}
	d.ensure(DefaultRoom)
	return d
}

func (d *RoomDirectory) ensure(name string) *Room {
	r, ok := d.rooms[name]
	if !ok {
		r = &Room{Name: name, members: make(map[string]struct{}), limit: d.historyLimit}
		d.rooms[name] = r
	}
	return r
}

// Get looks a room up by its canonical name.
func (d *RoomDirectory) Get(name string) (*Room, bool) {
	r, ok := d.rooms[name]
	return r, ok
}

// Enter adds a session to a room, creating the room on first use.
func (d *RoomDirectory) Enter(sessionID, name string) *Room {
	r := d.ensure(name)
	r.members[sessionID] = struct{}{}
	return r
}

// Leave removes a session from a room. Empty rooms other than the default
// are discarded together with their history.
func (d *RoomDirectory) Leave(sessionID, name string) {
	r, ok := d.rooms[name]
	if !ok {
		return
	}
	delete(r.members, sessionID)
	if len(r.members) == 0 && name != DefaultRoom {
		delete(d.rooms, name)
	}
}

// Move transfers a session between rooms.
func (d *RoomDirectory) Move(sessionID, from, to string) *Room {
	if from != to {
		d.Leave(sessionID, from)
	}
	return d.Enter(sessionID, to)
}

// Post appends m to the room's history.
func (d *RoomDirectory) Post(name string, m Message) bool {
	r, ok := d.rooms[name]
	if !ok {
		return false
	}
	r.append(m)
	return true
}

// Len returns the number of live rooms.
func (d *RoomDirectory) Len() int {
	return len(d.rooms)
}

// All returns the live rooms sorted by name.
func (d *RoomDirectory) All() []*Room {
	all := make([]*Room, 0, len(d.rooms))
	for _, r := range d.rooms {
		all = append(all, r)
	}
	sort.Slice(all, func(i, j int) bool { return all[i].Name < all[j].Name })
	return all
}
