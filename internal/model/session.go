// Package model defines the chama view models exchanged with the backend API.
package model

import "strings"

// Role is a member's role inside a chama.
type Role string

// Known roles. The backend may send other values; they are treated as members.
const (
	RoleAdmin     Role = "admin"
	RoleChair     Role = "chairperson"
	RoleTreasurer Role = "treasurer"
	RoleSecretary Role = "secretary"
	RoleMember    Role = "member"
)

// User is the authenticated account as returned by the auth endpoints.
type User struct {
	ID       string `json:"id"`
	Username string `json:"username,omitempty"`
	Email    string `json:"email,omitempty"`
	Name     string `json:"name,omitempty"`
	Phone    string `json:"phone,omitempty"`
	Role     Role   `json:"role,omitempty"`
	ChamaID  string `json:"chamaId,omitempty"`
}

// DisplayName returns the best human label for the user.
func (u User) DisplayName() string {
	switch {
	case u.Name != "":
		return u.Name
	case u.Username != "":
		return u.Username
	default:
		return u.Email
	}
}

func (u User) hasRole(roles ...Role) bool {
	r := Role(strings.ToLower(string(u.Role)))
	for _, want := range roles {
		if r == want {
			return true
		}
	}
	return false
}

// IsAdmin reports whether the user administers the group.
func (u User) IsAdmin() bool { return u.hasRole(RoleAdmin) }

// IsTreasurer reports whether the user holds the group's books.
func (u User) IsTreasurer() bool { return u.hasRole(RoleTreasurer) }

// IsSecretary reports whether the user keeps the group's records.
func (u User) IsSecretary() bool { return u.hasRole(RoleSecretary) }

// IsOfficial reports whether the user holds any office in the group.
func (u User) IsOfficial() bool {
	return u.hasRole(RoleAdmin, RoleChair, RoleTreasurer, RoleSecretary)
}

// CanApproveChanges reports whether the user may vote on settings changes.
// Every member votes; the check only excludes accounts without a group.
func (u User) CanApproveChanges() bool { return u.ChamaID != "" }

// CanManageDocuments reports whether the user may upload or delete
// documents and policies.
func (u User) CanManageDocuments() bool {
	return u.hasRole(RoleAdmin, RoleChair, RoleSecretary)
}

// CanRequestClosure reports whether the user may propose closing the group.
func (u User) CanRequestClosure() bool { return u.hasRole(RoleAdmin, RoleChair) }

// Session is a resolved login: the upstream-issued token and its user.
type Session struct {
	Token string `json:"token"`
	User  User   `json:"user"`
}

// Valid reports whether the session carries a token.
func (s *Session) Valid() bool { return s != nil && s.Token != "" }
