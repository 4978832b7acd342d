package chat

import (
	"sort"
	"strings"
	"time"

	"github.com/Tyrowin/ichat/internal/auth"
)

// Status is a session's presence status.
type Status string

// Presence statuses.
const (
	StatusOnline Status = "online"
	StatusIdle   Status = "idle"
	StatusAway   Status = "away"
)

// ParseStatus validates a client-supplied status.
func ParseStatus(s string) (Status, bool) {
	switch st := Status(strings.ToLower(strings.TrimSpace(s))); st {
	case StatusOnline, StatusIdle, StatusAway:
		return st, true
	default:
		return "", false
	}
}

const anonymousName = "anonymous"

// Session is one live connection.
type Session struct {
	ID            string
	Identity      auth.Identity
	Name          string
	Addr          string
	Room          string
	Status        Status
	LastSeen      time.Time
	ConnectedAt   time.Time
	ManualStatus  bool
	ManualAt      time.Time
	authenticated bool
}

// Authenticated reports whether the session carries a verified identity.
func (s *Session) Authenticated() bool {
	return s.authenticated
}

// Username returns the identity's username, or "" for anonymous sessions.
func (s *Session) Username() string {
	if !s.authenticated {
		return ""
	}
	return s.Identity.Username
}

func (s *Session) view() UserView {
	return UserView{
		ID:            s.ID,
		Name:          s.Name,
		Status:        s.Status,
		LastSeen:      s.LastSeen,
		CurrentRoom:   s.Room,
		Authenticated: s.authenticated,
	}
}

// Registry indexes live sessions by id and by username. It is owned by the
// coordinator loop and is not safe for concurrent use.
type Registry struct {
	sessions map[string]*Session
	byUser   map[string]map[string]struct{}
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		sessions: make(map[string]*Session),
		byUser:   make(map[string]map[string]struct{}),
	}
}

// Add registers s.
func (r *Registry) Add(s *Session) {
	r.sessions[s.ID] = s
	if name := s.Username(); name != "" {
		ids, ok := r.byUser[name]
		if !ok {
			ids = make(map[string]struct{})
			r.byUser[name] = ids
		}
		ids[s.ID] = struct{}{}
	}
}

// Remove unregisters the session with the given id.
func (r *Registry) Remove(id string) (*Session, bool) {
	s, ok := r.sessions[id]
	if !ok {
		return nil, false
	}
	delete(r.sessions, id)
	if name := s.Username(); name != "" {
		if ids, ok := r.byUser[name]; ok {
			delete(ids, id)
			if len(ids) == 0 {
				delete(r.byUser, name)
			}
		}
	}
	return s, true
}

// Get looks a session up by id.
func (r *Registry) Get(id string) (*Session, bool) {
	s, ok := r.sessions[id]
	return s, ok
}

// Len returns the number of live sessions.
func (r *Registry) Len() int {
	return len(r.sessions)
}

// PresentCount returns the number of distinct present usernames.
func (r *Registry) PresentCount() int {
	return len(r.byUser)
}

// IsPresent reports whether username has at least one live session.
func (r *Registry) IsPresent(username string) bool {
	_, ok := r.byUser[username]
	return ok
}

// SessionsOf returns the ids of username's sessions in a stable order.
func (r *Registry) SessionsOf(username string) []string {
	ids := make([]string, 0, len(r.byUser[username]))
	for id := range r.byUser[username] {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Usernames returns the sorted list of present usernames.
func (r *Registry) Usernames() []string {
	names := make([]string, 0, len(r.byUser))
	for name := range r.byUser {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Resolve maps a user-typed name onto a present username, preferring an exact
// match over a case-insensitive one.
func (r *Registry) Resolve(name string) (string, bool) {
	if r.IsPresent(name) {
		return name, true
	}
	for _, candidate := range r.Usernames() {
		if strings.EqualFold(candidate, name) {
			return candidate, true
		}
	}
	return "", false
}

// All returns every session ordered by connection time.
func (r *Registry) All() []*Session {
	all := make([]*Session, 0, len(r.sessions))
	for _, s := range r.sessions {
		all = append(all, s)
	}
	sort.Slice(all, func(i, j int) bool {
		if all[i].ConnectedAt.Equal(all[j].ConnectedAt) {
			return all[i].ID < all[j].ID
		}
		return all[i].ConnectedAt.Before(all[j].ConnectedAt)
	})
	return all
}
