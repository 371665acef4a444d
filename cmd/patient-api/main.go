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

	logging.Init("patient-api", cfg.Env, cfg.LogLevel)
	log.Info().Str("env", cfg.Env).Str("http_port", cfg.PatientHTTPPort).Msg("patient-api starting up")

	if err := cfg.RequireSecrets(true, false); err != nil {
		log.Fatal().Err(err).Msg("invalid config")
	}

	rootCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	deps, err := app.Build(rootCtx, cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("startup failed")
	}
	defer deps.Close()

	if err := deps.CheckCapacity(rootCtx, cfg.IsProd()); err != nil {
		log.Fatal().Err(err).Msg("capacity check failed")
	}

	router := api.NewPatientRouter(api.RouterConfig{
		Bookings: deps.Bookings,
		Catalog:  deps.Catalog,
		Sessions: auth.NewSessions(deps.Redis, cfg.SessionSecret, cfg.SessionTTL),
		PgPool:   deps.Pool,
		Redis:    deps.Redis,
		Metrics:  deps.Registry,
		Env:      cfg.Env,
		Version:  version,
	})

	if err := app.Serve(rootCtx, app.NewServer(cfg.PatientHTTPPort, router), cfg.ShutdownTimeout); err != nil {
		log.Error().Err(err).Msg("http server error")
	}
	log.Info().Msg("patient-api stopped")
}
