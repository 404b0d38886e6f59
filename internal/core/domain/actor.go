package domain

import "strings"

type Role string

const (
	RoleAdmin Role = "admin"
	RoleUser  Role = "user"
)

func ParseRole(raw string) (Role, bool) {
	switch Role(strings.ToLower(strings.TrimSpace(raw))) {
	case RoleAdmin:
		return RoleAdmin, true
	case RoleUser:
		return RoleUser, true
	default:
		return "", false
	}
}

// Actor is an authenticated identity as supplied by the identity layer.
type Actor struct {
	ID       string
	Username string
	Role     Role
}

func (a Actor) IsAdmin() bool {
	return a.Role == RoleAdmin
}

func (a Actor) Ref() ActorRef {
	return ActorRef{ActorID: a.ID, DisplayName: a.Username}
}

// ActorRef is the denormalized {userId, username} pair stored on notifications and
// permission requests.
type ActorRef struct {
	ActorID     string `json:"userId"`
	DisplayName string `json:"username"`
}

func (r ActorRef) IsZero() bool {
	return r.ActorID == ""
}
