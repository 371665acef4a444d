package main

import (
	"context"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog/log"

	"github.com/hackgods/clinic-booking/internal/app"
	"github.com/hackgods/clinic-booking/internal/config"
	"github.com/hackgods/clinic-booking/internal/gateway"
	"github.com/hackgods/clinic-booking/internal/logging"
)

var version = "dev"

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("config load error")
	}

	logging.Init("gateway", cfg.Env, cfg.LogLevel)

	upstreams, err := gateway.ParseUpstreams(cfg.PatientUpstream, cfg.AdminUpstream)
	if err != nil {
		log.Fatal().Err(err).Msg("invalid upstream")
	}
	log.Info().
		Str("http_port", cfg.GatewayHTTPPort).
		Str("patient", upstreams.Patient.String()).
		Str("admin", upstreams.Admin.String()).
		Msg("gateway starting up")

	rootCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	router := gateway.NewRouter(upstreams, cfg.Env, version)
	if err := app.Serve(rootCtx, app.NewServer(cfg.GatewayHTTPPort, router), cfg.ShutdownTimeout); err != nil {
		log.Error().Err(err).Msg("http server error")
	}
	log.Info().Msg("gateway stopped")
}
