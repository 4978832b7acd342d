package files

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/Tyrowin/ichat/internal/auth"
)

func record(visibility Visibility, overrides map[string]Permission) Record {
	return Record{
		ID:         "f1",
		Owner:      "alice",
		Visibility: visibility,
		Overrides:  overrides,
		Context:    ChatContext{Type: ChatRoom, Target: "general"},
	}
}

// TestAccessChecks tests the read, delete and manage rules. It verifies
// admins and owners always pass and overrides other than none grant read.
func TestAccessChecks(t *testing.T) {
	alice := auth.Identity{Username: "alice", Role: auth.RoleUser}
	bob := auth.Identity{Username: "bob", Role: auth.RoleUser}
	root := auth.Identity{Username: "root", Role: auth.RoleAdmin}

	tests := []struct {
		name       string
		rec        Record
		who        auth.Identity
		wantRead   bool
		wantDelete bool
	}{
		{name: "owner private", rec: record(VisibilityPrivate, nil), who: alice, wantRead: true, wantDelete: true},
		{name: "admin private", rec: record(VisibilityPrivate, nil), who: root, wantRead: true, wantDelete: true},
		{name: "stranger public", rec: record(VisibilityPublic, nil), who: bob, wantRead: true},
		{name: "stranger private", rec: record(VisibilityPrivate, nil), who: bob},
		{name: "view override", rec: record(VisibilityPrivate, map[string]Permission{"bob": PermView}), who: bob, wantRead: true},
		{name: "none override", rec: record(VisibilityPrivate, map[string]Permission{"bob": PermNone}), who: bob},
		{name: "full override cannot delete", rec: record(VisibilityPrivate, map[string]Permission{"bob": PermFull}), who: bob, wantRead: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.wantRead, CanRead(tt.rec, tt.who))
			assert.Equal(t, tt.wantDelete, CanDelete(tt.rec, tt.who))
			assert.Equal(t, tt.wantDelete, CanManageAccess(tt.rec, tt.who))
		})
	}
}

// TestEffectivePermission tests the permission reported in listings.
func TestEffectivePermission(t *testing.T) {
	rec := record(VisibilityPublic, map[string]Permission{"alice": PermNone, "bob": PermEdit, "carol": PermNone})
	user := func(name string) auth.Identity { return auth.Identity{Username: name, Role: auth.RoleUser} }
	root := auth.Identity{Username: "root", Role: auth.RoleAdmin}

	assert.Equal(t, PermFull, rec.Effective(user("alice")), "owner is always full")
	assert.Equal(t, PermEdit, rec.Effective(user("bob")))
	assert.Equal(t, PermNone, rec.Effective(user("carol")))
	assert.Equal(t, PermView, rec.Effective(user("dave")))
	assert.Equal(t, PermFull, rec.Effective(root))

	rec.Visibility = VisibilityPrivate
	assert.Equal(t, PermNone, rec.Effective(user("dave")))
	assert.Equal(t, PermFull, rec.Effective(root), "admins are full on private files")
	assert.True(t, PermFull.AtLeast(PermEdit))
	assert.False(t, PermView.AtLeast(PermEdit))
}

// TestApplyAccessUpdate tests access list edits. It verifies valid entries
// apply while invalid values and owner changes are reported.
func TestApplyAccessUpdate(t *testing.T) {
	rec := record(VisibilityPublic, map[string]Permission{"alice": PermFull})

	rejected := ApplyAccessUpdate(&rec, AccessUpdate{
		DefaultAccess: "Private",
		UserPermissions: map[string]string{
			"bob":   "view",
			"carol": "admin",
			"alice": "none",
			"dave":  "EDIT",
		},
	})

	assert.Equal(t, VisibilityPrivate, rec.Visibility)
	assert.Equal(t, map[string]Permission{"alice": PermFull, "bob": PermView, "dave": PermEdit}, rec.Overrides)
	assert.Equal(t, []Rejection{
		{Username: "alice", Value: "none", Reason: "owner permission cannot be changed"},
		{Username: "carol", Value: "admin", Reason: "invalid permission"},
	}, rejected)

	rejected = ApplyAccessUpdate(&rec, AccessUpdate{DefaultAccess: "secret"})
	assert.Equal(t, VisibilityPrivate, rec.Visibility)
	assert.Equal(t, []Rejection{{Value: "secret", Reason: "invalid default access"}}, rejected)
}
