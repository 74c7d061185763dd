// @title        Portal API
// @version      1.0
// @description  Sign-in, registration and session endpoints of the project portal.
// @BasePath     /
package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"github.com/taskflow/portal/internal/api"
	"github.com/taskflow/portal/internal/api/handler"
	"github.com/taskflow/portal/internal/core/domain"
	"github.com/taskflow/portal/internal/core/service"
	"github.com/taskflow/portal/internal/infrastructure/credentialapi"
	mongodb "github.com/taskflow/portal/internal/infrastructure/db/mongo"
	redisdb "github.com/taskflow/portal/internal/infrastructure/db/redis"
	"github.com/taskflow/portal/internal/infrastructure/devapi"
	"github.com/taskflow/portal/internal/infrastructure/queue"
	"github.com/taskflow/portal/internal/pkg/config"
	"github.com/taskflow/portal/pkg/logger"
)

const shutdownTimeout = 10 * time.Second

func main() {
	cfg := config.Load()
	log := logger.New(logger.Options{
		Level:   cfg.LogLevel,
		Pretty:  !cfg.IsProduction(),
		Service: "portal",
		Env:     cfg.Env,
	})

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, log); err != nil {
		log.Fatal().Err(err).Msg("portal stopped")
	}
	log.Info().Msg("portal stopped")
}

func run(ctx context.Context, cfg *config.Config, log zerolog.Logger) error {
	stores, err := redisdb.Open(ctx, redisdb.Options{
		Addr:       cfg.Redis.Addr,
		Password:   cfg.Redis.Password,
		DB:         cfg.Redis.DB,
		PendingTTL: cfg.Session.PendingMarkerTTL,
	})
	if err != nil {
		return err
	}
	defer func() { _ = stores.Close() }()

	mongoStore, err := mongodb.Open(ctx, mongodb.Options{URI: cfg.Mongo.URI, Database: cfg.Mongo.Database, AppName: "portal"})
	if err != nil {
		return err
	}
	defer func() { _ = mongoStore.Close() }()

	lifecycleRepo := mongoStore.Lifecycle
	if err := lifecycleRepo.EnsureIndexes(ctx); err != nil {
		log.Warn().Err(err).Msg("could not ensure lifecycle indexes")
	}

	// The journal outlives request contexts; it drains after the server stops.
	journalCtx, stopJournal := context.WithCancel(context.Background())
	journal := queue.NewDispatcher(0, lifecycleRepo, log.With().Str("component", "journal").Logger())
	journal.Start(journalCtx)

	var dev *devapi.Server
	if cfg.Upstream.Dev {
		dev = newDevUpstream(cfg.VisitorSecret, cfg.Upstream.DevSeed, log)
		log.Warn().Str("prefix", api.DevUpstreamPrefix).Msg("serving in-process dev credential API")
	}

	credentials := credentialapi.New(cfg.Upstream.BaseURL, cfg.Upstream.Timeout,
		credentialapi.WithLogger(log.With().Str("component", "credentialapi").Logger()))

	visitors := service.NewVisitorRegistry(stores.Session, credentials, log)
	portal := service.NewPortal(
		visitors,
		service.NewIssuanceService(credentials, log),
		service.NewLifecycleController(stores.Pending, journal, log),
		credentials,
		log,
	)

	e := api.NewRouter(api.Dependencies{
		Portal:   portal,
		Activity: lifecycleRepo,
		Checks: map[string]handler.Check{
			"mongodb": mongoStore.Ping,
			"redis":   stores.Ping,
		},
		VisitorSecret: []byte(cfg.VisitorSecret),
		SecureCookies: cfg.IsProduction(),
		LoadWait:      cfg.Session.LoadWait,
		DevUpstream:   dev,
		Log:           log,
	})

	go sweepVisitors(ctx, visitors, cfg.Session.VisitorIdleTTL, log)

	errCh := make(chan error, 1)
	go func() {
		log.Info().Str("port", cfg.Port).Msg("portal listening")
		if err := e.Start(":" + cfg.Port); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
		log.Info().Msg("shutting down")
	case err = <-errCh:
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if serr := e.Shutdown(shutdownCtx); serr != nil {
		log.Error().Err(serr).Msg("server shutdown")
	}

	stopJournal()
	journal.Wait()
	return err
}

func sweepVisitors(ctx context.Context, visitors *service.VisitorRegistry, idle time.Duration, log zerolog.Logger) {
	ticker := time.NewTicker(idle / 2)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n := visitors.Sweep(idle); n > 0 {
				log.Debug().Int("removed", n).Int("remaining", visitors.Len()).Msg("swept idle visitors")
			}
		}
	}
}

// newDevUpstream builds the fake credential API from the DEV_* seed settings.
func newDevUpstream(secret string, seed config.DevSeedConfig, log zerolog.Logger) *devapi.Server {
	dev := devapi.New(secret + ":dev-upstream")
	invites := map[domain.Role]string{
		domain.RoleDeveloper:  seed.DeveloperInvite,
		domain.RoleAdmin:      seed.AdminInvite,
		domain.RoleSuperAdmin: seed.SuperAdminInvite,
	}
	for role, code := range invites {
		if code != "" {
			dev.AddInvite(code, role)
		}
	}
	if seed.SuperAdminEmail != "" && seed.SuperAdminPassword != "" {
		u := domain.User{Email: strings.ToLower(seed.SuperAdminEmail), FirstName: "Admin", Role: domain.RoleSuperAdmin}
		if err := dev.AddUser(u, seed.SuperAdminPassword); err != nil {
			log.Warn().Err(err).Msg("could not seed dev super admin")
		}
	}
	return dev
}
