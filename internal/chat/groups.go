package chat

import (
	"slices"
	"sort"
	"time"
)

// Group is a named, owner-managed set of usernames.
type Group struct {
	Name      string
	Owner     string
	Members   []string
	CreatedAt time.Time
}

// HasMember reports whether username belongs to the group.
func (g *Group) HasMember(username string) bool {
	return slices.Contains(g.Members, username)
}

func (g *Group) remove(username string) {
	g.Members = slices.DeleteFunc(g.Members, func(m string) bool { return m == username })
}

func (g *Group) view() GroupView {
	return GroupView{
		Name:        g.Name,
		Owner:       g.Owner,
		MemberCount: len(g.Members),
		Members:     append([]string(nil), g.Members...),
	}
}

// GroupDirectory holds every group. It is owned by the coordinator loop.
type GroupDirectory struct {
	groups map[string]*Group
}

// NewGroupDirectory returns an empty directory.
func NewGroupDirectory() *GroupDirectory {
	return &GroupDirectory{groups: make(map[string]*Group)}
}

// Get looks a group up by its canonical name.
func (d *GroupDirectory) Get(name string) (*Group, bool) {
	g, ok := d.groups[name]
	return g, ok
}

// Create registers a new group. members must already contain the owner.
func (d *GroupDirectory) Create(name, owner string, members []string, now time.Time) (*Group, error) {
	if _, exists := d.groups[name]; exists {
		return nil, conflictf("Group %q already exists", name)
	}
	g := &Group{Name: name, Owner: owner, Members: members, CreatedAt: now}
	d.groups[name] = g
	return g, nil
}

// Delete removes a group.
func (d *GroupDirectory) Delete(name string) {
	delete(d.groups, name)
}

// Len returns the number of groups.
func (d *GroupDirectory) Len() int {
	return len(d.groups)
}

// All returns the groups sorted by name.
func (d *GroupDirectory) All() []*Group {
	all := make([]*Group, 0, len(d.groups))
	for _, g := range d.groups {
		all = append(all, g)
	}
	sort.Slice(all, func(i, j int) bool { return all[i].Name < all[j].Name })
	return all
}
