package apperr

import (
	"net/http"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
)

func TestFromStatus(t *testing.T) {
	tests := []struct {
		status int
		want   Kind
	}{
		{http.StatusUnauthorized, KindAuth},
		{http.StatusForbidden, KindAuth},
		{http.StatusNotFound, KindNotFound},
		{http.StatusBadRequest, KindValidation},
		{http.StatusConflict, KindValidation},
		{http.StatusUnprocessableEntity, KindValidation},
		{http.StatusInternalServerError, KindServer},
		{http.StatusBadGateway, KindServer},
	}
	for _, tt := range tests {
		t.Run(http.StatusText(tt.status), func(t *testing.T) {
			err := FromStatus("op", tt.status, "")
			assert.Equal(t, tt.want, err.Kind)
			assert.Equal(t, http.StatusText(tt.status), err.Message)
		})
	}
}

func TestKindOfWrapped(t *testing.T) {
	base := NotFound("cart.remove", "line not in cart")
	wrapped := errors.Wrap(base, "remove")

	assert.Equal(t, KindNotFound, KindOf(wrapped))
	assert.True(t, Is(wrapped, KindNotFound))
	assert.False(t, Is(nil, KindNotFound))
	assert.Equal(t, KindUnknown, KindOf(errors.New("plain")))
}

func TestNetworkUnwraps(t *testing.T) {
	cause := errors.New("connection refused")
	err := Network("products.list", cause)

	assert.Equal(t, KindNetwork, err.Kind)
	assert.ErrorIs(t, err, cause)
	assert.Contains(t, err.Error(), "connection refused")
}

func TestErrorString(t *testing.T) {
	assert.Equal(t, "cart.order: validation error: Your cart is empty",
		Validation("cart.order", "Your cart is empty").Error())
	assert.Equal(t, "orders.update: auth error 403: forbidden",
		FromStatus("orders.update", 403, "forbidden").Error())
}
