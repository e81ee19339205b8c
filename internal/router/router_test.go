package router

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"teakspice-storefront/internal/model"
)

func TestResolve(t *testing.T) {
	tests := []struct {
		name string
		path string
		role model.Role
		want Decision
	}{
		{"anonymous home", "/", model.RoleAnonymous, Decision{View: ViewHome}},
		{"customer home", "/", model.RoleCustomer, Decision{View: ViewHome}},
		{"admin home goes to panel", "/", model.RoleAdmin, Decision{View: ViewAdmin, Redirect: true}},
		{"anonymous cart", "/cart", model.RoleAnonymous, Decision{View: ViewLogin, Redirect: true}},
		{"customer cart", "/cart", model.RoleCustomer, Decision{View: ViewCart}},
		{"admin cart", "/cart", model.RoleAdmin, Decision{View: ViewCart}},
		{"anonymous orders", "/order", model.RoleAnonymous, Decision{View: ViewLogin, Redirect: true}},
		{"anonymous success", "/success?session=1", model.RoleAnonymous, Decision{View: ViewLogin, Redirect: true}},
		{"customer orders trailing slash", "/order/", model.RoleCustomer, Decision{View: ViewOrders}},
		{"anonymous admin", "/admin", model.RoleAnonymous, Decision{View: ViewHome, Redirect: true}},
		{"customer admin", "/admin", model.RoleCustomer, Decision{View: ViewHome, Redirect: true}},
		{"admin admin", "/admin", model.RoleAdmin, Decision{View: ViewAdmin}},
		{"login open", "/login", model.RoleCustomer, Decision{View: ViewLogin}},
		{"register open", "/register", model.RoleAnonymous, Decision{View: ViewRegister}},
		{"unknown", "/nope", model.RoleCustomer, Decision{View: ViewHome, Redirect: true}},
		{"empty", "", model.RoleAnonymous, Decision{View: ViewHome}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Resolve(tt.path, tt.role))
		})
	}
}

func TestAdminGateUsesNormalizedRole(t *testing.T) {
	for _, role := range []string{"ADMIN", "Admin", "admin"} {
		got := Resolve("/admin", model.ParseRole(role))
		assert.False(t, got.Redirect, role)
	}
	assert.True(t, Resolve("/admin", model.ParseRole("admin2")).Redirect)
}

func TestLoginTarget(t *testing.T) {
	assert.Equal(t, ViewAdmin, LoginTarget(model.RoleAdmin))
	assert.Equal(t, ViewHome, LoginTarget(model.RoleCustomer))
}

func TestNavLinks(t *testing.T) {
	labels := func(links []Link) []string {
		var out []string
		for _, l := range links {
			out = append(out, l.Label)
		}
		return out
	}

	assert.Equal(t, []string{"Home", "Login", "Register"}, labels(NavLinks(model.RoleAnonymous)))
	assert.Equal(t, []string{"Home", "Cart", "Logout"}, labels(NavLinks(model.RoleCustomer)))
	assert.Equal(t, []string{"Home", "Admin Panel", "Logout"}, labels(NavLinks(model.RoleAdmin)))
}
