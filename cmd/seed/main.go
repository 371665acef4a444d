package main

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/brianvoe/gofakeit/v6"
	"github.com/rs/zerolog/log"

	"github.com/hackgods/clinic-booking/internal/appointment"
	"github.com/hackgods/clinic-booking/internal/catalog"
	"github.com/hackgods/clinic-booking/internal/config"
	"github.com/hackgods/clinic-booking/internal/db"
	"github.com/hackgods/clinic-booking/internal/logging"
)

var departments = []string{
	"Dermatology",
	"Cosmetic Dermatology",
	"Laser Therapy",
	"Pediatric Dermatology",
	"Dermatologic Surgery",
}

var treatments = []struct {
	name    string
	minutes int
}{
	{"Skin consultation", 30},
	{"Acne treatment", 30},
	{"Mole removal", 60},
	{"Laser toning", 60},
	{"Chemical peel", 30},
	{"Botox", 30},
	{"Filler", 60},
	{"Scar revision", 90},
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("config load error")
	}
	logging.Init("seed", cfg.Env, cfg.LogLevel)

	if err := cfg.RequirePostgres(); err != nil {
		log.Fatal().Err(err).Msg("invalid config")
	}
	policy, err := appointment.ParsePolicy(cfg.ClinicOpen, cfg.ClinicClose,
		cfg.ClinicLunchStart, cfg.ClinicLunchEnd, cfg.ClinicTimezone)
	if err != nil {
		log.Fatal().Err(err).Msg("invalid clinic hours")
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	pool, err := db.ConnectPostgres(ctx, cfg.PostgresDSN)
	if err != nil {
		log.Fatal().Err(err).Msg("connect postgres")
	}
	defer pool.Close()

	if err := db.MigrateUp(cfg.PostgresDSN); err != nil {
		log.Fatal().Err(err).Msg("migrate")
	}

	svc := catalog.NewService(catalog.NewPgRepository(pool))
	gofakeit.Seed(time.Now().UnixNano())

	if err := seedDoctors(ctx, svc, envInt("SEED_DOCTORS", 5)); err != nil {
		log.Fatal().Err(err).Msg("seed doctors")
	}
	if err := seedTreatments(ctx, svc); err != nil {
		log.Fatal().Err(err).Msg("seed treatments")
	}
	if err := seedCapacitySlots(ctx, svc, policy, envInt("SEED_SLOT_CAPACITY", 3)); err != nil {
		log.Fatal().Err(err).Msg("seed capacity slots")
	}

	log.Info().Msg("seed complete")
}

func seedDoctors(ctx context.Context, svc *catalog.Service, count int) error {
	for i := 0; i < count; i++ {
		d, err := svc.CreateDoctor(ctx, catalog.Doctor{
			Name:       "Dr. " + gofakeit.LastName(),
			Department: departments[gofakeit.Number(0, len(departments)-1)],
		})
		if err != nil {
			return err
		}
		log.Debug().Str("doctor_id", d.ID.String()).Str("name", d.Name).Msg("doctor created")
	}
	log.Info().Int("count", count).Msg("doctors seeded")
	return nil
}

func seedTreatments(ctx context.Context, svc *catalog.Service) error {
	for _, t := range treatments {
		_, err := svc.CreateTreatment(ctx, catalog.Treatment{
			Name:            t.name,
			DurationMinutes: t.minutes,
			Price:           int64(gofakeit.Number(3, 40)) * 10000,
			Description:     fmt.Sprintf("%s, %d minutes", t.name, t.minutes),
		})
		if err != nil {
			return fmt.Errorf("%s: %w", t.name, err)
		}
	}
	log.Info().Int("count", len(treatments)).Msg("treatments seeded")
	return nil
}

// seedCapacitySlots covers the opening hours outside lunch with 30 minute slots.
// Rerunning the seed resets existing slots to capacity.
func seedCapacitySlots(ctx context.Context, svc *catalog.Service, policy appointment.Policy, capacity int) error {
	existing, err := svc.ListCapacitySlots(ctx)
	if err != nil {
		return err
	}
	byBounds := make(map[[2]catalog.TimeOfDay]catalog.CapacitySlot, len(existing))
	for _, s := range existing {
		byBounds[[2]catalog.TimeOfDay{s.Start, s.End}] = s
	}

	step := catalog.TimeOfDay(catalog.SlotGranularity)
	created, updated := 0, 0
	for start := policy.Open; start+step <= policy.Close; start += step {
		end := start + step
		if start < policy.LunchEnd && end > policy.LunchStart {
			continue
		}
		if s, ok := byBounds[[2]catalog.TimeOfDay{start, end}]; ok {
			if s.MaxCapacity != capacity {
				if _, err := svc.UpdateCapacitySlot(ctx, s.ID, catalog.CapacitySlotPatch{MaxCapacity: &capacity}); err != nil {
					return fmt.Errorf("slot %s-%s: %w", start, end, err)
				}
				updated++
			}
			continue
		}
		_, err := svc.CreateCapacitySlot(ctx, catalog.CapacitySlot{Start: start, End: end, MaxCapacity: capacity})
		if err != nil {
			return fmt.Errorf("slot %s-%s: %w", start, end, err)
		}
		created++
	}
	log.Info().Int("created", created).Int("updated", updated).Int("capacity", capacity).Msg("capacity slots seeded")
	return nil
}

func envInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			return n
		}
	}
	return def
}
