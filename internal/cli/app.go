package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"askai/internal/api"
	"askai/internal/chat"
	"askai/internal/config"
	"askai/internal/domain"
	"askai/internal/gateway"
	"askai/internal/llm"
	"askai/internal/logging"
	"askai/internal/remote"
	"askai/internal/session"
	"askai/internal/settings"
	"askai/internal/store"

	"golang.org/x/sync/errgroup"
)

const shutdownTimeout = 10 * time.Second

// app wires every component from one configuration
type app struct {
	cfg        *config.Config
	logger     *logging.Logger
	logCloser  io.Closer
	store      *store.Store
	gateway    *gateway.Gateway
	settings   *settings.Service
	completer  *llm.Client
	hub        *api.WebSocketHub
	workspaces *chat.Workspaces
}

func seconds(n int) time.Duration {
	return time.Duration(n) * time.Second
}

func newApp(cfg *config.Config, console io.Writer) (*app, error) {
	out, closer, err := logging.NewOutput(console, cfg.Logging.File, cfg.Logging.MaxSizeMB, cfg.Logging.MaxBackups)
	if err != nil {
		return nil, fmt.Errorf("failed to open log file: %w", err)
	}
	logger := logging.NewLogger("askai", logging.ParseLevel(cfg.Logging.Level), out)

	st, err := store.NewStore(cfg.Persistence.DatabasePath, cfg.Persistence.Namespace)
	if err != nil {
		closer.Close()
		return nil, fmt.Errorf("failed to initialize store: %w", err)
	}
	logger.Debug("Database initialized at %s", cfg.Persistence.DatabasePath)

	rc := remote.NewClient(cfg.Persistence.APIBaseURL, seconds(cfg.Persistence.TimeoutSeconds), st, logger.Named("remote"))
	if !rc.Enabled() {
		logger.Info("No remote API configured, using local storage only")
	}
	gw := gateway.New(rc, st, logger.Named("gateway"))

	completer := llm.NewClient(llm.Config{
		APIKey:         cfg.Completion.APIKey,
		BaseURL:        cfg.Completion.BaseURL,
		MaxAttempts:    cfg.Completion.MaxAttempts,
		AttemptTimeout: seconds(cfg.Completion.TimeoutSeconds),
	}, logger.Named("llm"))

	hub := api.NewWebSocketHub(logger.Named("ws"))

	return &app{
		cfg:        cfg,
		logger:     logger,
		logCloser:  closer,
		store:      st,
		gateway:    gw,
		settings:   settings.NewService(st, logger.Named("settings")),
		completer:  completer,
		hub:        hub,
		workspaces: chat.NewWorkspaces(gw, completer, logger.Named("chat"), session.WithObserver(hub.Publish)),
	}, nil
}

// close drains pending session writes before the store goes away
func (a *app) close() {
	a.workspaces.CloseAll()
	if err := a.store.Close(); err != nil {
		a.logger.WithContext("error", err.Error()).Warn("failed to close store")
	}
	a.logCloser.Close()
}

// reload applies the settings that can change without a restart
func (a *app) reload(cfg *config.Config) {
	a.logger.SetLevel(logging.ParseLevel(cfg.Logging.Level))
	a.completer.SetAPIKey(cfg.Completion.APIKey)
}

// signedIn returns the cached user, signing in first when credentials are given
func (a *app) signedIn(ctx context.Context, email, password string) (*domain.User, error) {
	if email != "" {
		res, err := a.gateway.AuthenticateUser(ctx, email, password)
		if err != nil {
			return nil, err
		}
		return &res.User, nil
	}
	u, err := a.gateway.CurrentUser(ctx)
	if errors.Is(err, domain.ErrNoActiveUser) {
		return nil, fmt.Errorf("not signed in, pass --email and --password: %w", err)
	}
	return u, err
}

// httpWriteTimeout leaves room for every completion attempt plus backoff
func (a *app) httpWriteTimeout() time.Duration {
	c := a.cfg.Completion
	return seconds(c.MaxAttempts*c.TimeoutSeconds) + 15*time.Second
}

// serve runs the HTTP server, the event hub and the config watcher until ctx
// ends or one of them fails.
func (a *app) serve(ctx context.Context, configPath string) error {
	server := api.NewServer(a.gateway, a.settings, a.workspaces, a.hub, a.logger.Named("api"))
	addr := a.cfg.ListenAddr()
	httpServer := &http.Server{
		Addr:         addr,
		Handler:      server.Handler(),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: a.httpWriteTimeout(),
		IdleTimeout:  60 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		a.hub.Run(gctx)
		return nil
	})

	g.Go(func() error {
		a.logger.Info("Server listening on http://%s", addr)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		a.logger.Info("Shutting down gracefully...")
		sctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return httpServer.Shutdown(sctx)
	})

	if configPath != "" {
		g.Go(func() error {
			if err := config.Watch(gctx, configPath, a.logger.Named("config"), a.reload); err != nil {
				a.logger.WithContext("error", err.Error()).Warn("config reload disabled")
			}
			return nil
		})
	}

	return g.Wait()
}
