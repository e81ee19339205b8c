package app

import (
	"context"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"teakspice-storefront/internal/config"
	"teakspice-storefront/internal/mockapi"
	"teakspice-storefront/internal/model"
	"teakspice-storefront/internal/session"
)

func backend(t *testing.T) (*mockapi.Server, *httptest.Server) {
	t.Helper()
	store := mockapi.NewMemoryStore()
	require.NoError(t, mockapi.Seed(context.Background(), store, mockapi.DefaultSeed()))
	srv := mockapi.New(store, mockapi.WithLogger(zaptest.NewLogger(t)))
	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(ts.Close)
	return srv, ts
}

func testConfig(t *testing.T, baseURL string) *config.Config {
	cfg := config.DefaultConfig()
	cfg.API.BaseURL = baseURL + "/api"
	cfg.Session.Path = filepath.Join(t.TempDir(), "session.db")
	return cfg
}

func TestUnauthorizedInvalidatesSession(t *testing.T) {
	srv, ts := backend(t)
	a, err := New(testConfig(t, ts.URL), WithPersister(&session.MemoryPersister{}), WithLogger(zaptest.NewLogger(t)))
	require.NoError(t, err)
	t.Cleanup(func() { _ = a.Close() })

	ctx := context.Background()
	_, err = a.Session.Login(ctx, model.Credentials{Email: "customer@teakspice.local", Password: "customer123"})
	require.NoError(t, err)
	require.Equal(t, model.RoleCustomer, a.Session.CurrentRole())

	srv.FailRoute(http.MethodGet, "/cart/view", http.StatusUnauthorized)
	assert.Error(t, a.Cart.Load(ctx))
	assert.Equal(t, model.RoleAnonymous, a.Session.CurrentRole())

	var sawEnded bool
	for _, n := range a.Notices.Drain() {
		if n.Message == "Your session has ended. Please login again." {
			sawEnded = true
		}
	}
	assert.True(t, sawEnded)
}

func TestSessionSurvivesRestart(t *testing.T) {
	_, ts := backend(t)
	cfg := testConfig(t, ts.URL)
	ctx := context.Background()

	first, err := New(cfg, WithLogger(zaptest.NewLogger(t)))
	require.NoError(t, err)
	_, err = first.Session.Login(ctx, model.Credentials{Email: "admin@teakspice.local", Password: "admin123"})
	require.NoError(t, err)
	require.NoError(t, first.Close())

	second, err := New(cfg, WithLogger(zaptest.NewLogger(t)))
	require.NoError(t, err)
	t.Cleanup(func() { _ = second.Close() })
	assert.Equal(t, model.RoleAdmin, second.Session.CurrentRole())

	second.Session.Logout()
	require.NoError(t, second.Close())

	third, err := New(cfg, WithLogger(zaptest.NewLogger(t)))
	require.NoError(t, err)
	t.Cleanup(func() { _ = third.Close() })
	assert.Equal(t, model.RoleAnonymous, third.Session.CurrentRole())
}

func TestMetricsRecorded(t *testing.T) {
	_, ts := backend(t)
	a, err := New(testConfig(t, ts.URL), WithPersister(&session.MemoryPersister{}), WithLogger(zaptest.NewLogger(t)))
	require.NoError(t, err)
	t.Cleanup(func() { _ = a.Close() })

	require.NoError(t, a.Catalog.Load(context.Background()))
	families, err := a.Registry().Gather()
	require.NoError(t, err)

	var found bool
	for _, f := range families {
		if f.GetName() == "storefront_api_requests_total" {
			found = true
		}
	}
	assert.True(t, found)
}
