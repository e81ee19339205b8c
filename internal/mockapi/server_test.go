package mockapi

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap/zaptest"
)

type harness struct {
	t      *testing.T
	srv    *Server
	store  *MemoryStore
	http   *httptest.Server
	admin  string
	user   string
	bowlID string
	boxID  string
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	store := NewMemoryStore()
	require.NoError(t, Seed(context.Background(), store, DefaultSeed()))
	srv := New(store, WithLogger(zaptest.NewLogger(t)), WithSecret("test-secret"))
	h := &harness{t: t, srv: srv, store: store, http: httptest.NewServer(srv.Handler())}
	t.Cleanup(h.http.Close)

	h.admin = h.login("admin@teakspice.local", "admin123")
	h.user = h.login("customer@teakspice.local", "customer123")
	products, _ := store.Products(context.Background())
	h.bowlID = products[0].ID.Hex()
	h.boxID = products[3].ID.Hex()
	return h
}

func (h *harness) do(method, path, token string, body any) (int, map[string]any) {
	h.t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(h.t, json.NewEncoder(&buf).Encode(body))
	}
	req, err := http.NewRequest(method, h.http.URL+"/api"+path, &buf)
	require.NoError(h.t, err)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := http.DefaultClient.Do(req)
	require.NoError(h.t, err)
	defer resp.Body.Close()

	var raw any
	_ = json.NewDecoder(resp.Body).Decode(&raw)
	switch v := raw.(type) {
	case map[string]any:
		return resp.StatusCode, v
	default:
		return resp.StatusCode, map[string]any{"list": v}
	}
}

func (h *harness) login(email, password string) string {
	h.t.Helper()
	code, body := h.do(http.MethodPost, "/auth/login", "", map[string]string{"email": email, "password": password})
	require.Equal(h.t, http.StatusOK, code)
	return body["token"].(string)
}

func TestLogin(t *testing.T) {
	h := newHarness(t)

	code, body := h.do(http.MethodPost, "/auth/login", "", map[string]string{
		"email": "admin@teakspice.local", "password": "admin123",
	})
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, "Admin", body["role"])
	user := body["user"].(map[string]any)
	assert.NotEmpty(t, user["_id"])
	assert.NotContains(t, user, "password")

	code, _ = h.do(http.MethodPost, "/auth/login", "", map[string]string{
		"email": "admin@teakspice.local", "password": "nope",
	})
	assert.Equal(t, http.StatusUnauthorized, code)
}

func TestRegister(t *testing.T) {
	h := newHarness(t)
	reg := map[string]string{"name": "New", "email": "new@example.com", "password": "pw"}

	code, _ := h.do(http.MethodPost, "/auth/register", "", reg)
	assert.Equal(t, http.StatusCreated, code)
	code, _ = h.do(http.MethodPost, "/auth/register", "", reg)
	assert.Equal(t, http.StatusConflict, code)

	assert.NotEmpty(t, h.login("new@example.com", "pw"))
}

func TestAuthRequired(t *testing.T) {
	h := newHarness(t)

	code, _ := h.do(http.MethodGet, "/cart/view", "", nil)
	assert.Equal(t, http.StatusUnauthorized, code)
	code, _ = h.do(http.MethodGet, "/cart/view", "garbage", nil)
	assert.Equal(t, http.StatusUnauthorized, code)

	code, _ = h.do(http.MethodGet, "/orders", h.user, nil)
	assert.Equal(t, http.StatusForbidden, code)
	code, _ = h.do(http.MethodGet, "/orders", h.admin, nil)
	assert.Equal(t, http.StatusOK, code)
}

func TestCartFlow(t *testing.T) {
	h := newHarness(t)

	code, _ := h.do(http.MethodPost, "/cart/add", h.user, map[string]any{"productId": h.bowlID, "quantity": 1})
	require.Equal(t, http.StatusOK, code)

	code, _ = h.do(http.MethodPut, "/cart/update/"+h.bowlID, h.user, map[string]int{"change": 1})
	require.Equal(t, http.StatusOK, code)
	code, _ = h.do(http.MethodPut, "/cart/update/"+h.bowlID, h.user, map[string]int{"change": 5})
	assert.Equal(t, http.StatusBadRequest, code)

	_, body := h.do(http.MethodGet, "/cart/view", h.user, nil)
	items := body["items"].([]any)
	require.Len(t, items, 1)
	line := items[0].(map[string]any)
	assert.EqualValues(t, 2, line["quantity"])
	assert.Equal(t, h.bowlID, line["product"].(map[string]any)["_id"])

	code, _ = h.do(http.MethodPut, "/cart/update/"+h.bowlID, h.user, map[string]int{"change": -1})
	require.Equal(t, http.StatusOK, code)
	code, _ = h.do(http.MethodPut, "/cart/update/"+h.bowlID, h.user, map[string]int{"change": -1})
	assert.Equal(t, http.StatusBadRequest, code, "quantity floor")

	code, _ = h.do(http.MethodDelete, "/cart/remove/"+h.bowlID, h.user, nil)
	require.Equal(t, http.StatusOK, code)
	_, body = h.do(http.MethodGet, "/cart/view", h.user, nil)
	assert.Empty(t, body["items"])
}

func TestOrderLifecycle(t *testing.T) {
	h := newHarness(t)
	lines := []map[string]any{{"product": map[string]string{"_id": h.bowlID}, "quantity": 2}}

	code, body := h.do(http.MethodPost, "/orders/create", h.user, map[string]any{"cartItems": lines})
	require.Equal(t, http.StatusCreated, code)
	order := body["order"].(map[string]any)
	assert.Equal(t, StatusPending, order["status"])
	assert.EqualValues(t, 49, order["totalPrice"])
	orderID := order["_id"].(string)

	_, body = h.do(http.MethodGet, "/orders/my-orders", h.user, nil)
	assert.Len(t, body["list"], 1)

	code, body = h.do(http.MethodPut, "/orders/update/"+orderID, h.admin, map[string]string{"status": "shipped"})
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, StatusShipped, body["status"])

	code, _ = h.do(http.MethodPut, "/orders/update/"+orderID, h.admin, map[string]string{"status": "lost"})
	assert.Equal(t, http.StatusBadRequest, code)
}

func TestOrderStockConflict(t *testing.T) {
	h := newHarness(t)
	lines := []map[string]any{{"product": map[string]string{"_id": h.boxID}, "quantity": 4}}

	code, body := h.do(http.MethodPost, "/orders/create", h.user, map[string]any{"cartItems": lines})
	assert.Equal(t, http.StatusConflict, code)
	assert.Equal(t, "Insufficient stock", body["error"])

	orders, err := h.store.Orders(context.Background(), primitive.NilObjectID)
	require.NoError(t, err)
	assert.Empty(t, orders)
}

func TestPaymentConfirmsPending(t *testing.T) {
	h := newHarness(t)
	lines := []map[string]any{{"product": map[string]string{"_id": h.bowlID}, "quantity": 1}}
	code, _ := h.do(http.MethodPost, "/orders/create", h.user, map[string]any{"cartItems": lines})
	require.Equal(t, http.StatusCreated, code)

	code, body := h.do(http.MethodPost, "/payments/checkout", h.user, map[string]any{
		"items": lines, "amount": 24.5,
	})
	require.Equal(t, http.StatusOK, code)
	assert.Contains(t, body["url"], DefaultCheckoutURL)

	code, body = h.do(http.MethodPost, "/orders/success", h.user, struct{}{})
	require.Equal(t, http.StatusOK, code)
	assert.EqualValues(t, 1, body["updated"])

	_, body = h.do(http.MethodGet, "/orders/my-orders", h.user, nil)
	list := body["list"].([]any)
	assert.Equal(t, StatusConfirmed, list[0].(map[string]any)["status"])
}

func TestAdminProducts(t *testing.T) {
	h := newHarness(t)

	code, body := h.do(http.MethodPost, "/products/create", h.admin, map[string]any{
		"name": "Clove 50g", "price": 3.5, "stock": 9,
	})
	require.Equal(t, http.StatusCreated, code)
	id := body["_id"].(string)

	code, body = h.do(http.MethodPut, "/products/update/"+id, h.admin, map[string]any{
		"name": "Clove 100g", "price": 6, "stock": 9,
	})
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, "Clove 100g", body["name"])

	code, _ = h.do(http.MethodDelete, "/products/delete/"+id, h.admin, nil)
	assert.Equal(t, http.StatusOK, code)
	code, _ = h.do(http.MethodDelete, "/products/delete/"+id, h.admin, nil)
	assert.Equal(t, http.StatusNotFound, code)

	code, _ = h.do(http.MethodPost, "/products/create", h.user, map[string]any{"name": "x"})
	assert.Equal(t, http.StatusForbidden, code)
}

func TestFailRoute(t *testing.T) {
	h := newHarness(t)

	h.srv.FailRoute(http.MethodGet, "/products", http.StatusServiceUnavailable)
	code, body := h.do(http.MethodGet, "/products", "", nil)
	assert.Equal(t, http.StatusServiceUnavailable, code)
	assert.Equal(t, "injected failure", body["error"])

	h.srv.FailRoute(http.MethodGet, "/products", 0)
	code, _ = h.do(http.MethodGet, "/products", "", nil)
	assert.Equal(t, http.StatusOK, code)
}
