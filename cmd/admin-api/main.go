package main

import (
	"context"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog/log"

	"github.com/hackgods/clinic-booking/internal/api"
	"github.com/hackgods/clinic-booking/internal/app"
	"github.com/hackgods/clinic-booking/internal/auth"
	"github.com/hackgods/clinic-booking/internal/config"
	"github.com/hackgods/clinic-booking/internal/logging"
)

var version = "dev"

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("config load error")
	}

	logging.Init("admin-api", cfg.Env, cfg.LogLevel)
	log.Info().Str("env", cfg.Env).Str("http_port", cfg.AdminHTTPPort).Msg("admin-api starting up")

	if err := cfg.RequireSecrets(false, true); err != nil {
		log.Fatal().Err(err).Msg("invalid config")
	}
	if cfg.AdminUsername == "" || cfg.AdminPassword == "" {
		log.Warn().Msg("ADMIN_USERNAME or ADMIN_PASSWORD unset, admin login is disabled")
	}

	rootCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	deps, err := app.Build(rootCtx, cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("startup failed")
	}
	defer deps.Close()

	// Slots are managed here, so an empty table is only worth a warning.
	if err := deps.CheckCapacity(rootCtx, false); err != nil {
		log.Fatal().Err(err).Msg("capacity check failed")
	}

	router := api.NewAdminRouter(api.RouterConfig{
		Bookings: deps.Bookings,
		Catalog:  deps.Catalog,
		Admins:   auth.NewAdmins(cfg.AdminJWTSecret, cfg.AdminUsername, cfg.AdminPassword, cfg.AdminTokenTTL),
		PgPool:   deps.Pool,
		Redis:    deps.Redis,
		Metrics:  deps.Registry,
		Env:      cfg.Env,
		Version:  version,
	})

	if err := app.Serve(rootCtx, app.NewServer(cfg.AdminHTTPPort, router), cfg.ShutdownTimeout); err != nil {
		log.Error().Err(err).Msg("http server error")
	}
	log.Info().Msg("admin-api stopped")
}
