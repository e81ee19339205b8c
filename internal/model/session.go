package model

import (
	"strings"
	"time"
)

type Role int

const (
	RoleAnonymous Role = iota
	RoleCustomer
	RoleAdmin
)

func (r Role) String() string {
	switch r {
	case RoleCustomer:
		return "customer"
	case RoleAdmin:
		return "admin"
	default:
		return "anonymous"
	}
}

// ParseRole normalizes a backend role string. The backend is not consistent
// about casing, so "ADMIN", "Admin" and "admin" are all RoleAdmin. Any other
// role of a signed-in user is RoleCustomer.
func ParseRole(s string) Role {
	if strings.EqualFold(s, "admin") {
		return RoleAdmin
	}
	return RoleCustomer
}

// Session is the authenticated identity for the current login.
type Session struct {
	Token     string         `json:"token"`
	Role      string         `json:"role"`
	UserID    string         `json:"userId,omitempty"`
	ExpiresAt *time.Time     `json:"expiresAt,omitempty"`
	Identity  map[string]any `json:"identity,omitempty"`
}

// RoleOf returns the normalized role; a session without a token is anonymous.
func (s *Session) RoleOf() Role {
	if s == nil || s.Token == "" {
		return RoleAnonymous
	}
	return ParseRole(s.Role)
}

// Expired reports whether the token expiry, when known, is not after now.
func (s *Session) Expired(now time.Time) bool {
	return s != nil && s.ExpiresAt != nil && !now.Before(*s.ExpiresAt)
}
