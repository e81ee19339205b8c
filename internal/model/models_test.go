package model

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseRole(t *testing.T) {
	tests := []struct {
		in   string
		want Role
	}{
		{"admin", RoleAdmin},
		{"Admin", RoleAdmin},
		{"ADMIN", RoleAdmin},
		{"admin2", RoleCustomer},
		{"user", RoleCustomer},
		{"", RoleCustomer},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, ParseRole(tt.in))
		})
	}
}

func TestSessionRoleOf(t *testing.T) {
	var nilSession *Session
	assert.Equal(t, RoleAnonymous, nilSession.RoleOf())
	assert.Equal(t, RoleAnonymous, (&Session{Role: "admin"}).RoleOf())
	assert.Equal(t, RoleAdmin, (&Session{Token: "t", Role: "ADMIN"}).RoleOf())
	assert.Equal(t, RoleCustomer, (&Session{Token: "t", Role: "admin2"}).RoleOf())
}

func TestSessionExpired(t *testing.T) {
	now := time.Now()
	past := now.Add(-time.Minute)
	future := now.Add(time.Minute)

	assert.False(t, (&Session{Token: "t"}).Expired(now))
	assert.True(t, (&Session{Token: "t", ExpiresAt: &past}).Expired(now))
	assert.False(t, (&Session{Token: "t", ExpiresAt: &future}).Expired(now))
}

func TestParseAdminStatus(t *testing.T) {
	st, ok := ParseAdminStatus("shipped")
	require.True(t, ok)
	assert.Equal(t, OrderShipped, st)

	_, ok = ParseAdminStatus("Confirmed")
	assert.False(t, ok, "confirmed is set by payment, not by an admin")

	_, ok = ParseAdminStatus("Lost")
	assert.False(t, ok)
}

func TestCartLineSubtotal(t *testing.T) {
	l := CartLine{Product: Product{Price: decimal.RequireFromString("2.50")}, Quantity: 3}
	assert.True(t, l.Subtotal().Equal(decimal.RequireFromString("7.5")))
}

func TestDecodeBackendOrder(t *testing.T) {
	raw := `{"_id":"o1","status":"pending","totalPrice":19.98,
		"products":[{"product":{"_id":"p1","name":"Tea","price":9.99,"stock":4},"quantity":2}]}`

	var o Order
	require.NoError(t, json.Unmarshal([]byte(raw), &o))
	assert.True(t, o.Pending())
	require.Len(t, o.Lines, 1)
	assert.Equal(t, "p1", o.Lines[0].Product.ID)
	assert.True(t, o.TotalPrice.Equal(decimal.RequireFromString("19.98")))
}

func TestPricesEncodeAsNumbers(t *testing.T) {
	b, err := json.Marshal(CheckoutRequest{Amount: decimal.RequireFromString("12.5")})
	require.NoError(t, err)
	assert.JSONEq(t, `{"items":null,"amount":12.5}`, string(b))
}
