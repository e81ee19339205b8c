// Package router decides which view a path resolves to for a given role.
package router

import (
	"strings"

	"teakspice-storefront/internal/model"
)

type View string

const (
	ViewHome     View = "/"
	ViewLogin    View = "/login"
	ViewRegister View = "/register"
	ViewCart     View = "/cart"
	ViewOrders   View = "/order"
	ViewSuccess  View = "/success"
	ViewAdmin    View = "/admin"
)

// Decision is the outcome of a navigation. When Redirect is set, View is
// where the user is sent instead of the requested path.
type Decision struct {
	View     View
	Redirect bool
}

func open(v View) Decision       { return Decision{View: v} }
func redirectTo(v View) Decision { return Decision{View: v, Redirect: true} }

// Resolve gates path for role.
func Resolve(path string, role model.Role) Decision {
	v := View(normalize(path))
	switch v {
	case ViewAdmin:
		if role != model.RoleAdmin {
			return redirectTo(ViewHome)
		}
		return open(v)
	case ViewCart, ViewOrders, ViewSuccess:
		if role == model.RoleAnonymous {
			return redirectTo(ViewLogin)
		}
		return open(v)
	case ViewHome:
		if role == model.RoleAdmin {
			return redirectTo(ViewAdmin)
		}
		return open(v)
	case ViewLogin, ViewRegister:
		return open(v)
	default:
		return redirectTo(ViewHome)
	}
}

// LoginTarget is where a fresh login lands.
func LoginTarget(role model.Role) View {
	if role == model.RoleAdmin {
		return ViewAdmin
	}
	return ViewHome
}

type Link struct {
	Label string `json:"label"`
	Path  string `json:"path"`
}

// NavLinks lists the navigation entries shown for role.
func NavLinks(role model.Role) []Link {
	links := []Link{{Label: "Home", Path: string(ViewHome)}}
	switch role {
	case model.RoleAdmin:
		links = append(links, Link{Label: "Admin Panel", Path: string(ViewAdmin)})
	case model.RoleCustomer:
		links = append(links, Link{Label: "Cart", Path: string(ViewCart)})
	}
	if role == model.RoleAnonymous {
		return append(links,
			Link{Label: "Login", Path: string(ViewLogin)},
			Link{Label: "Register", Path: string(ViewRegister)},
		)
	}
	return append(links, Link{Label: "Logout", Path: "/logout"})
}

func normalize(path string) string {
	if i := strings.IndexAny(path, "?#"); i >= 0 {
		path = path[:i]
	}
	if path == "" {
		return "/"
	}
	if len(path) > 1 {
		path = strings.TrimRight(path, "/")
		if path == "" {
			return "/"
		}
	}
	return path
}
