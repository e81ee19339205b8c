// Package main provides the storefront binary: the app shell server, a
// command-line client for the same views, and a local mock backend.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"runtime"
	"syscall"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"teakspice-storefront/internal/app"
	"teakspice-storefront/internal/config"
	"teakspice-storefront/internal/logging"
	"teakspice-storefront/internal/router"
)

var (
	Version   = "0.1.0"
	BuildTime = "dev"
)

const appName = "storefront"

func main() {
	defer func() {
		if r := recover(); r != nil {
			buf := make([]byte, 4096)
			n := runtime.Stack(buf, false)
			_, _ = fmt.Fprintf(os.Stderr, "PANIC: %v\nStack trace:\n%s\n", r, string(buf[:n]))
			os.Exit(2)
		}
	}()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := rootCmd().ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// env is what every subcommand shares once flags are parsed.
type env struct {
	configPath string
	logLevel   string

	cfg     *config.Config
	log     *zap.Logger
	restore func()
}

func rootCmd() *cobra.Command {
	e := &env{}
	cmd := &cobra.Command{
		Use:           appName,
		Short:         "Teak & Spice storefront client",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return e.setup()
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			if e.restore != nil {
				e.restore()
			}
		},
	}
	cmd.PersistentFlags().StringVarP(&e.configPath, "config", "c", "", "Config file path (YAML)")
	cmd.PersistentFlags().StringVar(&e.logLevel, "log-level", "", "Log level (debug, info, warn, error)")

	cmd.AddCommand(
		serveCmd(e),
		mockAPICmd(e),
		loginCmd(e),
		logoutCmd(e),
		whoamiCmd(e),
		productsCmd(e),
		cartCmd(e),
		ordersCmd(e),
		adminCmd(e),
		&cobra.Command{
			Use:   "version",
			Short: "Print version information",
			Run: func(cmd *cobra.Command, args []string) {
				fmt.Printf("%s version %s (build: %s)\n", appName, Version, BuildTime)
			},
		},
	)
	return cmd
}

func (e *env) setup() error {
	boot, err := logging.New(config.LoggerConfig{Mode: "production", Level: "warn"})
	if err != nil {
		return err
	}
	loader := config.NewLoader(boot)
	if e.configPath != "" {
		loader = loader.WithFile(e.configPath)
	} else if err := loader.EnsureUserConfig(); err != nil {
		boot.Warn("could not write default user config", zap.Error(err))
	}
	cfg, err := loader.Load()
	if err != nil {
		return errors.Wrap(err, "load config")
	}
	if e.logLevel != "" {
		cfg.Logger.Level = e.logLevel
	}
	log, restore, err := logging.Install(cfg.Logger)
	if err != nil {
		return err
	}
	e.cfg, e.log, e.restore = cfg, log, restore
	return nil
}

// withApp builds the application around fn, prints the notices fn raised
// and releases the session file afterwards.
func (e *env) withApp(fn func(ctx context.Context, a *app.Application) error) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) error {
		a, err := app.New(e.cfg, app.WithLogger(e.log))
		if err != nil {
			return err
		}
		defer func() {
			if err := a.Close(); err != nil {
				e.log.Warn("close failed", zap.Error(err))
			}
		}()
		runErr := fn(cmd.Context(), a)
		for _, n := range a.Notices.Drain() {
			fmt.Fprintf(cmd.ErrOrStderr(), "[%s] %s\n", n.Level, n.Message)
		}
		return runErr
	}
}

// requireView applies the same role gate the app shell uses.
func requireView(a *app.Application, view router.View) error {
	d := router.Resolve(string(view), a.Session.CurrentRole())
	if !d.Redirect {
		return nil
	}
	if d.View == router.ViewLogin {
		return errors.New("not logged in; run `storefront login` first")
	}
	return errors.Errorf("%s is not available to %s users", view, a.Session.CurrentRole())
}

