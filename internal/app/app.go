// Package app wires the storefront's components into one Application.
package app

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.uber.org/multierr"
	"go.uber.org/zap"

	"teakspice-storefront/internal/admin"
	"teakspice-storefront/internal/api"
	"teakspice-storefront/internal/cart"
	"teakspice-storefront/internal/catalog"
	"teakspice-storefront/internal/checkout"
	"teakspice-storefront/internal/config"
	"teakspice-storefront/internal/metrics"
	"teakspice-storefront/internal/notice"
	"teakspice-storefront/internal/session"
)

// Application owns one session and the views that share it.
type Application struct {
	cfg      *config.Config
	log      *zap.Logger
	registry *prometheus.Registry

	Notices  *notice.Recorder
	API      *api.Client
	Session  *session.Store
	Cart     *cart.Synchronizer
	Catalog  *catalog.Browser
	Checkout *checkout.Flow
	Admin    *admin.Manager

	closers []func() error
}

type Option func(*options)

type options struct {
	persister  session.Persister
	httpClient *http.Client
	logger     *zap.Logger
}

// WithPersister replaces the bbolt session file, e.g. with a MemoryPersister.
func WithPersister(p session.Persister) Option {
	return func(o *options) { o.persister = p }
}

func WithHTTPClient(hc *http.Client) Option {
	return func(o *options) { o.httpClient = hc }
}

func WithLogger(log *zap.Logger) Option {
	return func(o *options) { o.logger = log }
}

// New builds the application and restores any persisted session.
func New(cfg *config.Config, opts ...Option) (*Application, error) {
	o := options{logger: zap.L()}
	for _, fn := range opts {
		fn(&o)
	}

	a := &Application{
		cfg:      cfg,
		log:      o.logger,
		registry: prometheus.NewRegistry(),
	}
	a.registry.MustRegister(collectors.NewGoCollector())
	a.Notices = notice.NewRecorder(notice.NewLogger(a.log))

	persister := o.persister
	if persister == nil {
		bp, err := session.OpenBolt(cfg.Session.Path)
		if err != nil {
			return nil, err
		}
		a.closers = append(a.closers, bp.Close)
		persister = bp
	}

	var store *session.Store
	clientOpts := []api.Option{
		api.WithLogger(a.log),
		api.WithMetrics(metrics.NewAPI(a.registry)),
		api.WithTokenSource(api.TokenFunc(func() string { return store.Token() })),
		api.WithUnauthorizedHandler(func() { store.Invalidate("backend rejected the token") }),
	}
	if o.httpClient != nil {
		clientOpts = append(clientOpts, api.WithHTTPClient(o.httpClient))
	}
	clientOpts = append(clientOpts, api.WithTimeout(cfg.API.Timeout))
	a.API = api.New(cfg.API.BaseURL, clientOpts...)

	store = session.New(a.API, persister,
		session.WithLogger(a.log),
		session.WithNotices(a.Notices),
	)
	a.Session = store

	a.Cart = cart.New(a.API, a.Notices, a.log)
	a.Catalog = catalog.New(a.API, store, a.Cart, a.Notices, a.log)
	a.Checkout = checkout.New(a.API, a.Notices, a.log)
	a.Admin = admin.New(a.API, store, a.Notices, a.log)

	cancel := store.Subscribe(a.onSessionChange)
	a.closers = append(a.closers, func() error { cancel(); return nil })

	if err := store.Restore(); err != nil {
		_ = a.Close()
		return nil, err
	}
	return a, nil
}

// onSessionChange drops whatever the previous identity had in flight.
func (a *Application) onSessionChange(c session.Change) {
	switch c.Event {
	case session.EventLogout, session.EventInvalidated, session.EventLogin:
		a.Cart.Close()
		a.Checkout.Close()
		a.Admin.Close()
		a.Catalog.Close()
	}
	if c.Event == session.EventInvalidated {
		a.Notices.Notify(notice.Info("Your session has ended. Please login again."))
	}
	a.log.Debug("session changed", zap.String("event", string(c.Event)), zap.String("role", c.Role.String()))
}

func (a *Application) Config() *config.Config { return a.cfg }

func (a *Application) Logger() *zap.Logger { return a.log }

// Registry holds the client metrics.
func (a *Application) Registry() *prometheus.Registry { return a.registry }

// Close releases the session file.
func (a *Application) Close() error {
	var err error
	for i := len(a.closers) - 1; i >= 0; i-- {
		err = multierr.Append(err, a.closers[i]())
	}
	a.closers = nil
	return err
}
