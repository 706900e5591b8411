package app

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	stdhttp "net/http"
	"time"

	"github.com/rs/zerolog"

	"github.com/vovakirdan/modchat-server/internal/auth"
	"github.com/vovakirdan/modchat-server/internal/config"
	"github.com/vovakirdan/modchat-server/internal/core"
	"github.com/vovakirdan/modchat-server/internal/history"
	"github.com/vovakirdan/modchat-server/internal/metrics"
	"github.com/vovakirdan/modchat-server/internal/moderation"
	"github.com/vovakirdan/modchat-server/internal/store"
	"github.com/vovakirdan/modchat-server/internal/store/jsonfile"
	"github.com/vovakirdan/modchat-server/internal/store/sqlite"
	transporthttp "github.com/vovakirdan/modchat-server/internal/transport/http"
)

// App wires together core and transport layers.
type App struct {
	server          *stdhttp.Server
	shutdownTimeout time.Duration
	hub             *core.Hub
	store           store.Store
	log             *zerolog.Logger
}

// OpenStore opens the durable backend selected by cfg.StorageDriver.
func OpenStore(cfg *config.Config) (store.Store, error) {
	switch cfg.StorageDriver {
	case config.StorageJSON:
		return jsonfile.New(cfg.DataDir)
	case config.StorageSQLite:
		return sqlite.New(cfg.ResolvedDatabasePath())
	default:
		return nil, fmt.Errorf("%w: %q", store.ErrUnknownDriver, cfg.StorageDriver)
	}
}

// New constructs the application with provided configuration.
func New(ctx context.Context, cfg *config.Config, logger *zerolog.Logger) (*App, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	st, err := OpenStore(cfg)
	if err != nil {
		return nil, fmt.Errorf("init store: %w", err)
	}
	logger.Info().Str("driver", cfg.StorageDriver).Str("data_dir", cfg.DataDir).Msg("store initialized")

	app, err := build(ctx, cfg, st, logger)
	if err != nil {
		_ = st.Close()
		return nil, err
	}
	return app, nil
}

func build(ctx context.Context, cfg *config.Config, st store.Store, logger *zerolog.Logger) (*App, error) {
	mod, err := moderation.New(ctx, st, st)
	if err != nil {
		return nil, fmt.Errorf("init moderation: %w", err)
	}
	hist, err := history.New(ctx, st, cfg.HistoryLimit)
	if err != nil {
		return nil, fmt.Errorf("init history: %w", err)
	}
	logger.Info().
		Int("bans", len(mod.Bans())).
		Int("banned_words", len(mod.BannedWords())).
		Int("messages", hist.Len()).
		Msg("state loaded")

	secret := cfg.IdentitySecret
	if secret == "" {
		secret, err = randomSecret()
		if err != nil {
			return nil, fmt.Errorf("generate identity secret: %w", err)
		}
		logger.Warn().Msg("identity_secret not set; participant tokens will not survive a restart")
	}
	identities := auth.NewService(&auth.JWTConfig{
		Secret: []byte(secret),
		Issuer: "modchat",
		TTL:    cfg.IdentityTTL,
	})

	admin, err := auth.NewAdminVerifier(cfg.AdminPassword, cfg.AdminPasswordHash)
	if err != nil {
		return nil, fmt.Errorf("init admin verifier: %w", err)
	}
	if !admin.Enabled() {
		logger.Warn().Msg("admin password not set; HTTP admin endpoints are disabled")
	}

	m := metrics.New()
	engine := core.NewEngine(mod, hist, core.Options{
		AdminIDs: cfg.AdminIDs,
		Metrics:  m,
		Logger:   logger,
	})
	hub := core.NewHub(engine, logger)
	server := transporthttp.NewServer(hub, identities, admin, m, cfg, logger)

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

	hubCtx, stopHub := context.WithCancel(context.Background())
	hubDone := make(chan struct{})
	go func() {
		a.hub.Run(hubCtx)
		close(hubDone)
	}()

	go func() {
		a.log.Info().Str("addr", a.server.Addr).Msg("http server listening")
		if err := a.server.ListenAndServe(); err != nil && err != stdhttp.ErrServerClosed {
			serverErr <- err
			return
		}
		serverErr <- nil
	}()

	// The hub outlives the HTTP server so in-flight admin requests can finish.
	defer func() {
		stopHub()
		<-hubDone
		a.cleanup()
	}()

	select {
	case err := <-serverErr:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), a.shutdownTimeout)
		defer cancel()

		a.log.Info().Msg("shutting down http server")
		if err := a.server.Shutdown(shutdownCtx); err != nil {
			return err
		}
		return <-serverErr
	}
}

// cleanup closes the store.
func (a *App) cleanup() {
	if a.store != nil {
		if err := a.store.Close(); err != nil {
			a.log.Warn().Err(err).Msg("failed to close store")
		} else {
			a.log.Info().Msg("store closed")
		}
	}
}

func randomSecret() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}
