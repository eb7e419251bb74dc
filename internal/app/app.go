package app

import (
	"context"
	"fmt"
	stdhttp "net/http"
	"time"

	"github.com/rs/zerolog"

	"github.com/rmacedo/salachat-server/internal/auth"
	"github.com/rmacedo/salachat-server/internal/avatar"
	"github.com/rmacedo/salachat-server/internal/config"
	"github.com/rmacedo/salachat-server/internal/core"
	"github.com/rmacedo/salachat-server/internal/service/moderation"
	"github.com/rmacedo/salachat-server/internal/store"
	"github.com/rmacedo/salachat-server/internal/store/sqlite"
	transporthttp "github.com/rmacedo/salachat-server/internal/transport/http"
)

// App wires together store, hub, services and transport.
type App struct {
	server          *stdhttp.Server
	shutdownTimeout time.Duration
	hub             *core.Hub
	store           store.Store
	log             *zerolog.Logger
}

// New constructs the application with provided configuration.
func New(ctx context.Context, cfg config.Config, logger *zerolog.Logger) (*App, error) {
	st, err := sqlite.New(cfg.DatabasePath)
	if err != nil {
		return nil, fmt.Errorf("init store: %w", err)
	}

	logger.Info().Str("db_path", cfg.DatabasePath).Msg("database initialized")

	// Bootstrap the admin account so moderation is usable on a fresh
	// database.
	adminHash, err := auth.HashPassword(cfg.AdminPassword)
	if err != nil {
		st.Close()
		return nil, fmt.Errorf("hash admin password: %w", err)
	}
	if err := st.EnsureAdmin(ctx, cfg.AdminUsername, adminHash); err != nil {
		st.Close()
		return nil, fmt.Errorf("ensure admin: %w", err)
	}

	jwtConfig := &auth.JWTConfig{
		Secret:   []byte(cfg.JWTSecret),
		Issuer:   cfg.JWTIssuer,
		Audience: cfg.JWTAudience,
		TTL:      cfg.JWTTTL,
	}
	authService := auth.NewService(st, jwtConfig)

	avatars, err := avatar.New(ctx, cfg)
	if err != nil {
		st.Close()
		return nil, fmt.Errorf("init avatar storage: %w", err)
	}

	hub := core.NewHub(st, st, cfg.HistoryLimit, *logger)
	mod := moderation.NewService(st, hub, *logger)

	server := transporthttp.NewServer(transporthttp.Deps{
		Store:      st,
		Hub:        hub,
		Auth:       authService,
		Moderation: mod,
		Avatars:    avatars,
	}, cfg, logger)

	return &App{
		server:          server,
		shutdownTimeout: cfg.ShutdownTimeout,
		hub:             hub,
		store:           st,
		log:             logger,
	}, nil
}

// Run starts the HTTP server and blocks until context cancellation or fatal error.
func (a *App) Run(ctx context.Context) error {
	serverErr := make(chan error, 1)

	go a.hub.Run(ctx)

	go func() {
		if err := a.server.ListenAndServe(); err != nil && err != stdhttp.ErrServerClosed {
			serverErr <- err
			return
		}
		serverErr <- nil
	}()

	select {
	case err := <-serverErr:
		a.cleanup()
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), a.shutdownTimeout)
		defer cancel()

		a.log.Info().Msg("shutting down http server")
		if err := a.server.Shutdown(shutdownCtx); err != nil {
			a.cleanup()
			return err
		}

		a.cleanup()
		return <-serverErr
	}
}

// cleanup closes database and other resources.
func (a *App) cleanup() {
	if a.store != nil {
		if err := a.store.Close(); err != nil {
			a.log.Warn().Err(err).Msg("failed to close store")
		} else {
			a.log.Info().Msg("store closed")
		}
	}
}
