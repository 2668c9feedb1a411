package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"os/signal"
	"syscall"

	httpapi "github.com/veloramarket/velora/internal/gateway/http"
	"github.com/veloramarket/velora/pkg/cookiex"
	"github.com/veloramarket/velora/pkg/jwtx"
	"github.com/veloramarket/velora/pkg/slogx"
)

const (
	// BuildVersion should be set at build time via ldflags.
	BuildVersion = "v0.1.0"
)

// AuthMount is the public prefix the auth service is exposed under. The
// refresh cookie path and the bridge's refresh routes both derive from it.
const AuthMount = "/api/auth"

// Application encapsulates the gateway with its dependencies.
type Application struct {
	cfg    Config
	logger *slog.Logger

	server *http.Server
	router *httpapi.Router
}

// New creates a new Application instance with all dependencies initialized.
func New(cfg Config) (*Application, error) {
	app := &Application{
		cfg: cfg,
		logger: slogx.New(slogx.Config{
			Service: httpapi.ServiceName,
			Version: BuildVersion,
			Env:     cfg.Env,
			Level:   cfg.LogLevel,
			Format:  cfg.LogFormat,
		}),
	}

	verifier, err := jwtx.NewPublicVerifier(cfg.PublicKeyPEM, cfg.Issuer, cfg.Audience)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize token verifier: %w", err)
	}

	upstreams, err := app.buildUpstreams()
	if err != nil {
		return nil, err
	}

	// Seller-facing surfaces prefer the seller access cookie; everything
	// else defaults to the buyer session.
	bridge := cookiex.NewBridge(cookiex.NewPolicy(cfg.Env), AuthMount, []cookiex.Route{
		{Prefix: AuthMount + "/seller", Role: jwtx.RoleSeller},
		{Prefix: "/api/product", Role: jwtx.RoleSeller},
		{Prefix: "/api/payment", Role: jwtx.RoleSeller},
	})

	app.router = httpapi.NewRouter(verifier, bridge, app.logger)
	app.router.ApplyRoutes(upstreams, cfg.ProxyTimeout)

	app.server = &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Port),
		Handler: app.router,
	}

	return app, nil
}

func (app *Application) buildUpstreams() ([]httpapi.Upstream, error) {
	targets := []struct {
		prefix string
		rawURL string
	}{
		{AuthMount, app.cfg.AuthServiceURL},
		{"/api/payment", app.cfg.PaymentServiceURL},
		{"/api/product", app.cfg.ProductServiceURL},
	}

	upstreams := make([]httpapi.Upstream, 0, len(targets))
	for _, t := range targets {
		u, err := url.Parse(t.rawURL)
		if err != nil {
			return nil, fmt.Errorf("invalid upstream url for %s: %w", t.prefix, err)
		}
		upstreams = append(upstreams, httpapi.Upstream{Prefix: t.prefix, Target: u})
	}
	return upstreams, nil
}

// Run starts the gateway and blocks until shutdown is requested.
func (app *Application) Run() error {
	app.logger.Info("api gateway starting", "port", app.cfg.Port, "version", BuildVersion)

	serverErrors := make(chan error, 1)
	go func() {
		serverErrors <- app.server.ListenAndServe()
	}()

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, os.Interrupt, syscall.SIGTERM)

	select {
	case err := <-serverErrors:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server failed: %w", err)
		}
	case sig := <-shutdown:
		app.logger.Info("shutdown signal received", "signal", sig)
		if err := app.Shutdown(); err != nil {
			return fmt.Errorf("graceful shutdown failed: %w", err)
		}
	}

	return nil
}

// Shutdown gracefully shuts down the gateway.
func (app *Application) Shutdown() error {
	app.logger.Info("shutting down api gateway...")

	ctx, cancel := context.WithTimeout(context.Background(), app.cfg.ShutdownGracePeriod)
	defer cancel()

	if err := app.server.Shutdown(ctx); err != nil {
		app.logger.Error("graceful server shutdown failed", "error", err)
		if err := app.server.Close(); err != nil {
			app.logger.Error("error closing server", "error", err)
			return err
		}
	}

	app.logger.Info("api gateway stopped")
	return nil
}
