package main

import (
	"context"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"teakspice-storefront/internal/app"
	"teakspice-storefront/internal/mockapi"
	"teakspice-storefront/internal/web"
)

func serveCmd(e *env) *cobra.Command {
	var addr string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the app shell HTTP server",
		RunE: func(cmd *cobra.Command, args []string) error {
			if addr != "" {
				e.cfg.Server.Addr = addr
			}
			a, err := app.New(e.cfg, app.WithLogger(e.log))
			if err != nil {
				return err
			}
			defer func() {
				if err := a.Close(); err != nil {
					e.log.Warn("close failed", zap.Error(err))
				}
			}()
			e.log.Info("app shell starting",
				zap.String("backend", e.cfg.API.BaseURL),
				zap.String("role", a.Session.CurrentRole().String()),
			)
			return web.Serve(cmd.Context(), e.cfg.Server.Addr, web.New(a).Handler(), e.log)
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "", "Listen address (overrides server.addr)")
	return cmd
}

func mockAPICmd(e *env) *cobra.Command {
	var (
		addr   string
		memory bool
	)
	cmd := &cobra.Command{
		Use:   "mock-api",
		Short: "Run a local backend implementing the storefront REST API",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			mc := e.cfg.MockAPI
			if addr != "" {
				mc.Addr = addr
			}

			var store mockapi.Store
			if mc.MongoURL != "" && !memory {
				ms, err := mockapi.DialMongo(ctx, mc.MongoURL, mc.Database)
				if err != nil {
					return err
				}
				e.log.Info("connected to MongoDB", zap.String("database", mc.Database))
				store = ms
			} else {
				e.log.Info("using in-memory store")
				store = mockapi.NewMemoryStore()
			}

			if mc.Seed {
				if err := mockapi.Seed(ctx, store, mockapi.DefaultSeed()); err != nil {
					_ = store.Close(context.Background())
					return err
				}
			}

			opts := []mockapi.Option{
				mockapi.WithSecret(mc.JWTSecret),
				mockapi.WithLogger(e.log),
			}
			if mc.CheckoutURL != "" {
				opts = append(opts, mockapi.WithCheckoutURL(mc.CheckoutURL))
			}
			if origins := e.cfg.Server.AllowOrigins; len(origins) > 0 {
				opts = append(opts, mockapi.WithAllowOrigins(origins...))
			}
			srv := mockapi.New(store, opts...)
			defer func() {
				closeCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer cancel()
				if err := srv.Close(closeCtx); err != nil {
					e.log.Warn("store close failed", zap.Error(err))
				}
			}()
			return web.Serve(ctx, mc.Addr, srv.Handler(), e.log)
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "", "Listen address (overrides mock_api.addr)")
	cmd.Flags().BoolVar(&memory, "memory", false, "Ignore mongo_url and keep data in memory")
	return cmd
}
