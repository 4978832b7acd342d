// Package files stores shared uploads and enforces their access rules.
package files

import (
	"maps"
	"slices"
	"strings"
	"time"

	"github.com/Tyrowin/ichat/internal/auth"
)

// Visibility is a file's default access for users without an override.
type Visibility string

// Visibilities.
const (
	VisibilityPublic  Visibility = "public"
	VisibilityPrivate Visibility = "private"
)

// Permission is a per-user access level.
type Permission string

// Permissions, weakest first.
const (
	PermNone Permission = "none"
	PermView Permission = "view"
	PermEdit Permission = "edit"
	PermFull Permission = "full"
)

var permRank = map[Permission]int{
	PermNone: 0,
	PermView: 1,
	PermEdit: 2,
	PermFull: 3,
}

// ParsePermission validates a permission name.
func ParsePermission(s string) (Permission, bool) {
	p := Permission(strings.ToLower(strings.TrimSpace(s)))
	_, ok := permRank[p]
	return p, ok
}

// AtLeast reports whether p grants at least min.
func (p Permission) AtLeast(min Permission) bool {
	return permRank[p] >= permRank[min]
}

// ChatType is the kind of conversation a file was shared into.
type ChatType string

// Chat types.
const (
	ChatRoom    ChatType = "room"
	ChatGroup   ChatType = "group"
	ChatPrivate ChatType = "private"
)

// ChatContext binds a file to the conversation it was shared into.
type ChatContext struct {
	Type   ChatType `json:"type"`
	Target string   `json:"target"`
}

// Valid reports whether the context names a known chat type and a target.
func (c ChatContext) Valid() bool {
	switch c.Type {
	case ChatRoom, ChatGroup, ChatPrivate:
		return strings.TrimSpace(c.Target) != ""
	default:
		return false
	}
}

// Record is the metadata and access list of one stored file.
type Record struct {
	ID           string                `json:"filename"`
	OriginalName string                `json:"originalName"`
	MimeType     string                `json:"mimeType,omitempty"`
	Size         int64                 `json:"size"`
	Owner        string                `json:"uploadedBy"`
	Room         string                `json:"room"`
	Context      ChatContext           `json:"chatContext"`
	Visibility   Visibility            `json:"defaultAccess"`
	Overrides    map[string]Permission `json:"userPermissions"`
	UploadedAt   time.Time             `json:"uploadedAt"`
}

// IsPrivate reports whether the default visibility is private.
func (r Record) IsPrivate() bool {
	return r.Visibility == VisibilityPrivate
}

// Clone returns a deep copy of r.
func (r Record) Clone() Record {
	r.Overrides = maps.Clone(r.Overrides)
	return r
}

// Effective returns the permission id holds on the file. The owner and
// admins always hold full access.
func (r Record) Effective(id auth.Identity) Permission {
	if id.IsAdmin() || (id.Username != "" && id.Username == r.Owner) {
		return PermFull
	}
	if p, ok := r.Overrides[id.Username]; ok {
		return p
	}
	if r.Visibility == VisibilityPublic {
		return PermView
	}
	return PermNone
}

// CanRead reports whether id may see the file in listings and download it.
func CanRead(r Record, id auth.Identity) bool {
	if id.IsAdmin() || id.Username == r.Owner || r.Visibility == VisibilityPublic {
		return true
	}
	p, ok := r.Overrides[id.Username]
	return ok && p != PermNone
}

// CanDelete reports whether id may delete the file.
func CanDelete(r Record, id auth.Identity) bool {
	return id.IsAdmin() || id.Username == r.Owner
}

// CanManageAccess reports whether id may view or change the access list.
func CanManageAccess(r Record, id auth.Identity) bool {
	return id.IsAdmin() || id.Username == r.Owner
}

// AccessUpdate changes a file's default visibility and user overrides.
type AccessUpdate struct {
	DefaultAccess   string            `json:"defaultAccess,omitempty"`
	UserPermissions map[string]string `json:"userPermissions,omitempty"`
}

// Rejection explains why one entry of an AccessUpdate was not applied.
type Rejection struct {
	Username string `json:"username,omitempty"`
	Value    string `json:"value"`
	Reason   string `json:"reason"`
}

// ApplyAccessUpdate applies the valid parts of upd to r and reports the
// entries it skipped.
func ApplyAccessUpdate(r *Record, upd AccessUpdate) []Rejection {
	var rejected []Rejection
	if upd.DefaultAccess != "" {
		switch v := Visibility(strings.ToLower(strings.TrimSpace(upd.DefaultAccess))); v {
		case VisibilityPublic, VisibilityPrivate:
			r.Visibility = v
		default:
			rejected = append(rejected, Rejection{Value: upd.DefaultAccess, Reason: "invalid default access"})
		}
	}

	for _, username := range slices.Sorted(maps.Keys(upd.UserPermissions)) {
		raw := upd.UserPermissions[username]
		p, ok := ParsePermission(raw)
		switch {
		case !ok:
			rejected = append(rejected, Rejection{Username: username, Value: raw, Reason: "invalid permission"})
		case username == r.Owner:
			rejected = append(rejected, Rejection{Username: username, Value: raw, Reason: "owner permission cannot be changed"})
		default:
			if r.Overrides == nil {
				r.Overrides = make(map[string]Permission)
			}
			r.Overrides[username] = p
		}
	}
	return rejected
}
