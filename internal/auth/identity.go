// Package auth resolves connection identities: verified usernames, roles and
// the ordering between roles.
package auth

import "strings"

// Role is an opaque role name issued by the credential authority.
type Role string

// Known roles.
const (
	RoleUser  Role = "User"
	RoleAdmin Role = "Admin"
)

var roleLevels = map[Role]int{
	RoleUser:  1,
	RoleAdmin: 2,
}

// ParseRole maps a role name onto a known role, ignoring case. Unknown names
// are returned unchanged and rank below every known role.
func ParseRole(name string) Role {
	trimmed := strings.TrimSpace(name)
	for role := range roleLevels {
		if strings.EqualFold(string(role), trimmed) {
			return role
		}
	}
	return Role(trimmed)
}

// Level returns the ordering level of the role; unknown roles are level 0.
func (r Role) Level() int {
	return roleLevels[ParseRole(string(r))]
}

// AtLeast reports whether r ranks at or above min.
func (r Role) AtLeast(min Role) bool {
	return r.Level() >= min.Level()
}

// Identity is an authenticated username together with its role.
type Identity struct {
	Username string `json:"username"`
	Role     Role   `json:"role"`
}

// IsAdmin reports whether the identity carries the admin role.
func (id Identity) IsAdmin() bool {
	return id.Role.Level() >= RoleAdmin.Level()
}
