package api

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"teakspice-storefront/internal/apperr"
	"teakspice-storefront/internal/metrics"
	"teakspice-storefront/internal/model"
)

func newTestClient(t *testing.T, h http.HandlerFunc, opts ...Option) *Client {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	opts = append([]Option{WithLogger(zaptest.NewLogger(t))}, opts...)
	return New(srv.URL, opts...)
}

func TestListProductsEnvelope(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/products", r.URL.Path)
		assert.Empty(t, r.Header.Get("Authorization"))
		assert.NotEmpty(t, r.Header.Get("X-Request-ID"))
		_, _ = io.WriteString(w, `{"data":[{"_id":"p1","name":"Tea","price":4.5,"stock":3}]}`)
	})

	products, err := c.ListProducts(context.Background())
	require.NoError(t, err)
	require.Len(t, products, 1)
	assert.Equal(t, "Tea", products[0].Name)
	assert.True(t, products[0].Price.Equal(decimal.RequireFromString("4.5")))
}

func TestListProductsNullData(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, `{"data":null}`)
	})
	products, err := c.ListProducts(context.Background())
	require.NoError(t, err)
	assert.Empty(t, products)
}

func TestCreateProductRawObject(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "Bearer tok", r.Header.Get("Authorization"))
		body, _ := io.ReadAll(r.Body)
		assert.JSONEq(t, `{"name":"Mug","price":12,"description":"","stock":5}`, string(body))
		_, _ = io.WriteString(w, `{"_id":"p9","name":"Mug","price":12,"stock":5}`)
	}, WithTokenSource(TokenFunc(func() string { return "tok" })))

	p, err := c.CreateProduct(context.Background(), model.ProductDraft{Name: "Mug", Price: decimal.NewFromInt(12), Stock: 5})
	require.NoError(t, err)
	assert.Equal(t, "p9", p.ID)
}

func TestViewCart(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, `{"data":{"items":[{"product":{"_id":"p1","price":2},"quantity":3}]}}`)
	}, WithTokenSource(TokenFunc(func() string { return "tok" })))

	lines, err := c.ViewCart(context.Background())
	require.NoError(t, err)
	require.Len(t, lines, 1)
	assert.Equal(t, 3, lines[0].Quantity)
}

func TestAuthedCallWithoutToken(t *testing.T) {
	called := false
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) { called = true })

	_, err := c.ViewCart(context.Background())
	assert.True(t, apperr.Is(err, apperr.KindAuth))
	assert.False(t, called, "no request without a token")
}

func TestErrorMapping(t *testing.T) {
	tests := []struct {
		name   string
		status int
		body   string
		kind   apperr.Kind
		msg    string
	}{
		{"unauthorized", 401, `{"error":"invalid token"}`, apperr.KindAuth, "invalid token"},
		{"not found", 404, `{"message":"Cart item not found"}`, apperr.KindNotFound, "Cart item not found"},
		{"bad request", 400, ``, apperr.KindValidation, "Bad Request"},
		{"server", 500, `oops`, apperr.KindServer, "Internal Server Error"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = io.WriteString(w, tt.body)
			}, WithTokenSource(TokenFunc(func() string { return "tok" })))

			err := c.UpdateCartLine(context.Background(), "p1", 1)
			var e *apperr.Error
			require.ErrorAs(t, err, &e)
			assert.Equal(t, tt.kind, e.Kind)
			assert.Equal(t, tt.status, e.Status)
			assert.Equal(t, tt.msg, e.Message)
		})
	}
}

func TestUnauthorizedHandler(t *testing.T) {
	invalidated := 0
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	},
		WithTokenSource(TokenFunc(func() string { return "expired" })),
		WithUnauthorizedHandler(func() { invalidated++ }),
	)

	_, err := c.MyOrders(context.Background())
	assert.True(t, apperr.Is(err, apperr.KindAuth))
	assert.Equal(t, 1, invalidated)

	// Failed logins are 401 too but carry no session to invalidate.
	_, err = c.Login(context.Background(), model.Credentials{Email: "a@b.c", Password: "x"})
	assert.True(t, apperr.Is(err, apperr.KindAuth))
	assert.Equal(t, 1, invalidated)
}

func TestNetworkError(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	c := New(url, WithLogger(zaptest.NewLogger(t)))
	_, err := c.ListProducts(context.Background())
	assert.True(t, apperr.Is(err, apperr.KindNetwork))
}

func TestCheckoutRequiresURL(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, `{}`)
	}, WithTokenSource(TokenFunc(func() string { return "tok" })))

	_, err := c.Checkout(context.Background(), model.CheckoutRequest{Amount: decimal.NewFromInt(1)})
	assert.True(t, apperr.Is(err, apperr.KindServer))
}

func TestMetricsObserved(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := metrics.NewAPI(reg)
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, `{"data":[]}`)
	}, WithMetrics(m))

	_, err := c.ListProducts(context.Background())
	require.NoError(t, err)

	n, err := testutil.GatherAndCount(reg, "storefront_api_requests_total")
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestWithTimeoutLeavesCallerClient(t *testing.T) {
	hc := &http.Client{Timeout: time.Minute}
	c := New("http://localhost", WithHTTPClient(hc), WithTimeout(time.Second))
	assert.Equal(t, time.Minute, hc.Timeout)
	assert.Equal(t, time.Second, c.http.Timeout)
}
