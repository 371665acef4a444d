package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"

	"github.com/hackgods/clinic-booking/internal/appointment"
	"github.com/hackgods/clinic-booking/internal/catalog"
	"github.com/hackgods/clinic-booking/internal/config"
	"github.com/hackgods/clinic-booking/internal/db"
	"github.com/hackgods/clinic-booking/internal/metrics"
	redisclient "github.com/hackgods/clinic-booking/internal/redis"
)

// Deps holds the connections and services shared by the patient and admin binaries.
type Deps struct {
	Pool     *pgxpool.Pool
	Redis    *redis.Client
	Registry *prometheus.Registry
	Bookings *appointment.Service
	Catalog  *catalog.Service
}

// Build connects Postgres and Redis and wires the scheduling engine.
func Build(ctx context.Context, cfg config.Config) (*Deps, error) {
	if err := cfg.RequirePostgres(); err != nil {
		return nil, err
	}

	policy, err := appointment.ParsePolicy(cfg.ClinicOpen, cfg.ClinicClose,
		cfg.ClinicLunchStart, cfg.ClinicLunchEnd, cfg.ClinicTimezone)
	if err != nil {
		return nil, err
	}

	pgCtx, cancelPg := context.WithTimeout(ctx, 10*time.Second)
	pool, err := db.ConnectPostgres(pgCtx, cfg.PostgresDSN)
	cancelPg()
	if err != nil {
		return nil, fmt.Errorf("postgres connection error: %w", err)
	}
	log.Info().Msg("connected to Postgres")

	rdb, err := redisclient.NewRedisClient(ctx, cfg.RedisAddr, cfg.RedisUsername, cfg.RedisPassword)
	if err != nil {
		pool.Close()
		return nil, fmt.Errorf("redis connection error: %w", err)
	}
	log.Info().Str("addr", cfg.RedisAddr).Msg("connected to Redis")

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	catalogRepo := catalog.NewPgRepository(pool)
	bookings := appointment.NewService(
		appointment.NewPgRepository(pool),
		catalogRepo,
		redisclient.NewRedisLocker(rdb, cfg.LockTTL, cfg.LockWait),
		policy,
		metrics.NewBookingMetrics(reg),
	)

	return &Deps{
		Pool:     pool,
		Redis:    rdb,
		Registry: reg,
		Bookings: bookings,
		Catalog:  catalog.NewService(catalogRepo),
	}, nil
}

// CheckCapacity refuses to start a production service with no capacity slots.
// Elsewhere it only warns.
func (d *Deps) CheckCapacity(ctx context.Context, prod bool) error {
	err := d.Bookings.CheckCapacityConfigured(ctx)
	if errors.Is(err, appointment.ErrCapacityUnconfigured) && !prod {
		log.Warn().Msg("no capacity slots configured, clinic capacity is unconstrained")
		return nil
	}
	return err
}

func (d *Deps) Close() {
	if err := d.Redis.Close(); err != nil {
		log.Error().Err(err).Msg("error closing redis")
	}
	d.Pool.Close()
}

// Serve runs srv until ctx is canceled, then drains in-flight requests.
func Serve(ctx context.Context, srv *http.Server, shutdownTimeout time.Duration) error {
	errCh := make(chan error, 1)
	go func() {
		log.Info().Str("addr", srv.Addr).Msg("http server listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	log.Info().Msg("shutdown signal received")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("graceful shutdown: %w", err)
	}
	return nil
}

// NewServer applies the timeouts every service binary uses.
func NewServer(port string, h http.Handler) *http.Server {
	return &http.Server{
		Addr:              ":" + port,
		Handler:           h,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
}
